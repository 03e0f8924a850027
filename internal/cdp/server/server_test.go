package server

import (
	"net"
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/sys/unix"

	"github.com/citc-os/workstation/internal/cdp/wire"
	"github.com/citc-os/workstation/internal/compositor/input"
	"github.com/citc-os/workstation/internal/compositor/wm"
)

func newTestServer(t *testing.T) (*Server, string) {
	t.Helper()
	s := New(1920, 1080)
	sockPath := filepath.Join(t.TempDir(), "cdp.sock")
	if err := s.Listen(sockPath); err != nil {
		t.Fatalf("Listen: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s, sockPath
}

func dial(t *testing.T, path string) *wire.Conn {
	t.Helper()
	c, err := net.Dial("unix", path)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	return wire.NewConn(c)
}

func TestAcceptSendsWelcome(t *testing.T) {
	s, path := newTestServer(t)
	client := dial(t, path)
	defer client.Close()

	if err := s.acceptOne(); err != nil {
		t.Fatalf("acceptOne: %v", err)
	}

	typ, payload, err := client.Recv()
	if err != nil {
		t.Fatalf("Recv: %v", err)
	}
	if typ != wire.EvtWelcome {
		t.Fatalf("type = %v, want EvtWelcome", typ)
	}
	w, err := wire.DecodeWelcome(payload)
	if err != nil {
		t.Fatalf("DecodeWelcome: %v", err)
	}
	if w.ScreenW != 1920 || w.ScreenH != 1080 || w.Version != protocolVersion {
		t.Fatalf("welcome = %+v", w)
	}
}

func TestCreateSurfaceReturnsSurfaceID(t *testing.T) {
	s, path := newTestServer(t)
	client := dial(t, path)
	defer client.Close()

	if err := s.acceptOne(); err != nil {
		t.Fatalf("acceptOne: %v", err)
	}
	if _, _, err := client.Recv(); err != nil { // drain WELCOME
		t.Fatalf("Recv welcome: %v", err)
	}

	req := wire.CreateSurface{X: 100, Y: 100, W: 300, H: 200}
	if err := client.Send(wire.ReqCreateSurface, req.Encode()); err != nil {
		t.Fatalf("Send: %v", err)
	}
	s.pollClient(0)

	typ, payload, err := client.Recv()
	if err != nil {
		t.Fatalf("Recv: %v", err)
	}
	if typ != wire.EvtSurfaceID {
		t.Fatalf("type = %v, want EvtSurfaceID", typ)
	}
	sid, err := wire.DecodeSurfaceID(payload)
	if err != nil {
		t.Fatalf("DecodeSurfaceID: %v", err)
	}
	if sid.ID != 1 {
		t.Fatalf("surface id = %d, want 1", sid.ID)
	}
}

func TestDisconnectClientClearsSurfacesAndWindows(t *testing.T) {
	s, path := newTestServer(t)
	client := dial(t, path)

	if err := s.acceptOne(); err != nil {
		t.Fatalf("acceptOne: %v", err)
	}
	client.Recv() // WELCOME

	req := wire.CreateSurface{X: 0, Y: 0, W: 100, H: 100}
	client.Send(wire.ReqCreateSurface, req.Encode())
	s.pollClient(0)
	client.Recv() // SURFACE_ID

	client.Close()
	s.pollClient(0) // observes EOF, disconnects

	for _, sf := range s.surfaces {
		if sf != nil {
			t.Fatal("expected all surfaces to be cleared after disconnect")
		}
	}
	if s.clients[0] != nil {
		t.Fatal("expected client slot to be freed after disconnect")
	}
	if !s.Damage.Full() {
		t.Fatal("expected full damage after client disconnect")
	}
}

func TestClipboardSetThenGetRoundTrips(t *testing.T) {
	s, path := newTestServer(t)
	client := dial(t, path)
	defer client.Close()

	s.acceptOne()
	client.Recv() // WELCOME

	payload := wire.Bytes{Data: []byte("hello clipboard")}
	client.Send(wire.ReqClipboardSet, payload.Encode())
	s.pollClient(0)

	client.Send(wire.ReqClipboardGet, nil)
	s.pollClient(0)

	typ, got, err := client.Recv()
	if err != nil {
		t.Fatalf("Recv: %v", err)
	}
	if typ != wire.EvtClipboardData {
		t.Fatalf("type = %v, want EvtClipboardData", typ)
	}
	b, err := wire.DecodeBytes(got)
	if err != nil {
		t.Fatalf("DecodeBytes: %v", err)
	}
	if string(b.Data) != "hello clipboard" {
		t.Fatalf("clipboard = %q", b.Data)
	}
}

func TestSocketActivationIsSkippedWithoutEnv(t *testing.T) {
	os.Unsetenv("LISTEN_FDS")
	os.Unsetenv("LISTEN_PID")
	s := New(800, 600)
	ok, err := s.AdoptSocketActivation()
	if err != nil {
		t.Fatalf("AdoptSocketActivation: %v", err)
	}
	if ok {
		t.Fatal("expected activation to be skipped without LISTEN_FDS/LISTEN_PID")
	}
}

func TestListenKeepsListenerFdOpenForPolling(t *testing.T) {
	s, _ := newTestServer(t)
	if s.lnFile == nil {
		t.Fatal("expected Listen to cache a dup'd listener fd for the poll loop")
	}
	fds := s.buildPollSet(nil)
	if len(fds) != 1 {
		t.Fatalf("buildPollSet() = %d fds, want 1", len(fds))
	}
	if fds[0].Fd != int32(s.lnFile.Fd()) {
		t.Fatalf("polled fd = %d, want cached listener fd %d", fds[0].Fd, s.lnFile.Fd())
	}
	// The fd must still be valid (not closed out from under the caller)
	// after buildPollSet returns, since unix.Poll runs on it afterward.
	if _, err := unix.FcntlInt(s.lnFile.Fd(), unix.F_GETFD, 0); err != nil {
		t.Fatalf("listener fd invalid after buildPollSet: %v", err)
	}
}

func dialAndCreateSurface(t *testing.T, s *Server, path string, geom wire.CreateSurface) (*wire.Conn, wm.ID) {
	t.Helper()
	client := dial(t, path)
	if err := s.acceptOne(); err != nil {
		t.Fatalf("acceptOne: %v", err)
	}
	if _, _, err := client.Recv(); err != nil { // WELCOME
		t.Fatalf("recv welcome: %v", err)
	}
	if err := client.Send(wire.ReqCreateSurface, geom.Encode()); err != nil {
		t.Fatalf("send CREATE_SURFACE: %v", err)
	}
	s.pollClient(0)
	_, payload, err := client.Recv() // SURFACE_ID
	if err != nil {
		t.Fatalf("recv surface id: %v", err)
	}
	sid, err := wire.DecodeSurfaceID(payload)
	if err != nil {
		t.Fatalf("decode surface id: %v", err)
	}
	sf := s.surfaceByID(sid.ID)
	if sf == nil {
		t.Fatal("expected a surface to exist after CREATE_SURFACE")
	}
	return client, sf.WindowID
}

func TestTitlebarDragMovesWindowAndFocuses(t *testing.T) {
	s, path := newTestServer(t)
	client, wid := dialAndCreateSurface(t, s, path, wire.CreateSurface{X: 50, Y: 50, W: 200, H: 100})
	defer client.Close()

	mods := InputModifiers{}
	pointer := struct{ X, Y int }{X: 60, Y: 60} // inside the titlebar, left of the buttons

	s.RouteInput(input.Event{Type: input.EventButton, Pressed: true}, &mods, &pointer)
	if s.Table.Mode() != wm.Dragging {
		t.Fatalf("mode = %v, want Dragging", s.Table.Mode())
	}
	if f := s.Table.Focused(); f == nil || f.ID != wid {
		t.Fatal("expected titlebar press to focus the window")
	}

	s.RouteInput(input.Event{Type: input.EventPointerAbs, XRaw: 80, YRaw: 90}, &mods, &pointer)
	w := s.Table.Get(wid)
	if w.Geometry.X != 70 || w.Geometry.Y != 80 {
		t.Fatalf("geometry after drag = %+v, want {70 80 ...}", w.Geometry)
	}

	s.RouteInput(input.Event{Type: input.EventButton, Pressed: false}, &mods, &pointer)
	if s.Table.Mode() != wm.Idle {
		t.Fatal("expected Idle after button-up")
	}
}

func TestResizeBottomRightEmitsConfigure(t *testing.T) {
	s, path := newTestServer(t)
	client, wid := dialAndCreateSurface(t, s, path, wire.CreateSurface{X: 0, Y: 0, W: 300, H: 200})
	defer client.Close()

	w := s.Table.Get(wid)
	// The window's total geometry is content (300x200) plus the
	// titlebar, so its bottom-right corner sits at (300, 224).
	cornerX, cornerY := w.Geometry.X+w.Geometry.W-3, w.Geometry.Y+w.Geometry.H-3

	mods := InputModifiers{}
	pointer := struct{ X, Y int }{X: cornerX, Y: cornerY}
	s.RouteInput(input.Event{Type: input.EventButton, Pressed: true}, &mods, &pointer)
	if s.Table.Mode() != wm.Resizing {
		t.Fatalf("mode = %v, want Resizing", s.Table.Mode())
	}

	pointer = struct{ X, Y int }{X: cornerX + 40, Y: cornerY + 30}
	s.RouteInput(input.Event{Type: input.EventPointerAbs, XRaw: pointer.X, YRaw: pointer.Y}, &mods, &pointer)
	s.RouteInput(input.Event{Type: input.EventButton, Pressed: false}, &mods, &pointer)

	if s.Table.Mode() != wm.Idle {
		t.Fatal("expected Idle after button-up")
	}

	typ, payload, err := client.Recv()
	if err != nil {
		t.Fatalf("recv: %v", err)
	}
	if typ != wire.EvtConfigure {
		t.Fatalf("type = %v, want EvtConfigure", typ)
	}
	cf, err := wire.DecodeConfigure(payload)
	if err != nil {
		t.Fatalf("DecodeConfigure: %v", err)
	}
	if cf.W != 340 || cf.H != 230 {
		t.Fatalf("configure = %+v, want {W:340 H:230}", cf)
	}
}

func TestMaximizeTogglesGeometryAndEmitsConfigure(t *testing.T) {
	s, path := newTestServer(t)
	client, wid := dialAndCreateSurface(t, s, path, wire.CreateSurface{X: 50, Y: 50, W: 200, H: 100})
	defer client.Close()

	w := s.Table.Get(wid)
	maxBtnX := w.Geometry.X + w.Geometry.W - 4 - wm.ButtonSize - wm.ButtonSize - 4 // maximize is the middle button
	maxBtnY := w.Geometry.Y + (wm.TitlebarHeight-wm.ButtonSize)/2

	mods := InputModifiers{}
	pointer := struct{ X, Y int }{X: maxBtnX, Y: maxBtnY}
	s.RouteInput(input.Event{Type: input.EventButton, Pressed: true}, &mods, &pointer)

	if w := s.Table.Get(wid); !w.Maximized || w.Geometry.X != 0 || w.Geometry.Y != 0 || w.Geometry.W != s.ScreenW {
		t.Fatalf("window not maximized: %+v", w.Geometry)
	}

	typ, payload, err := client.Recv()
	if err != nil {
		t.Fatalf("recv: %v", err)
	}
	if typ != wire.EvtConfigure {
		t.Fatalf("type = %v, want EvtConfigure", typ)
	}
	if _, err := wire.DecodeConfigure(payload); err != nil {
		t.Fatalf("DecodeConfigure: %v", err)
	}
}

func TestCloseButtonCascadesSurfaceDestruction(t *testing.T) {
	s, path := newTestServer(t)
	client, wid := dialAndCreateSurface(t, s, path, wire.CreateSurface{X: 50, Y: 50, W: 200, H: 100})
	defer client.Close()

	w := s.Table.Get(wid)
	closeBtnX := w.Geometry.X + w.Geometry.W - 4 - wm.ButtonSize/2
	closeBtnY := w.Geometry.Y + wm.TitlebarHeight/2

	mods := InputModifiers{}
	pointer := struct{ X, Y int }{X: closeBtnX, Y: closeBtnY}
	s.RouteInput(input.Event{Type: input.EventButton, Pressed: true}, &mods, &pointer)

	if s.Table.Get(wid) != nil {
		t.Fatal("expected window to be destroyed after close button press")
	}
	for _, sf := range s.surfaces {
		if sf != nil {
			t.Fatal("expected surface slot to be freed after close")
		}
	}
}
