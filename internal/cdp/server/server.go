// Package server implements the CDP server (C7): accepts clients, owns
// per-client sockets and per-surface shared-memory mappings, translates
// requests into window-table mutations, and routes input events to
// client messages.
//
// It is grounded on the internal/sessionbroker.Broker: a map
// of live sessions keyed by an index and a single-threaded accept+poll
// loop (Listen(stop <-chan struct{})). Connections are not
// rate-limited; the only bound is MaxClients.
// Socket activation (LISTEN_FDS/LISTEN_PID) uses the same
// golang.org/x/sys/unix surface already relied on elsewhere in this
// tree for unix-socket specific syscalls.
package server

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"sync"

	"github.com/citc-os/workstation/internal/cdp/wire"
	"github.com/citc-os/workstation/internal/compositor/damage"
	"github.com/citc-os/workstation/internal/compositor/wm"
	"github.com/citc-os/workstation/internal/logging"
)

const (
	// MaxClients bounds the number of simultaneously connected clients;
	// beyond this, new connections are accepted then immediately closed.
	MaxClients = 64

	// MaxSurfaces bounds the number of live surfaces.
	MaxSurfaces = 256

	// ClipboardMax bounds the clipboard buffer's length.
	ClipboardMax = 64 * 1024

	protocolVersion = 1
)

var log = logging.L("cdp-server")

// Client is one connected CDP session.
type Client struct {
	idx    int
	conn   *wire.Conn
	active bool
}

// Surface is a server-side CDP surface: a shared-memory mapping plus
// the geometry/format metadata needed to composite it.
type Surface struct {
	ClientIdx int
	WindowID  wm.ID

	Mapping []byte
	W, H, Stride int
	Format       wire.PixelFormat

	Committed      bool
	FrameRequested bool

	active bool
}

// Server owns the listening socket, client slots, surface slots, the
// window table, and the damage tracker. All of its state is touched
// only from the single goroutine running Run; apart from mu, which
// guards the clipboard, there is no locking, per the concurrency model.
type Server struct {
	ln net.Listener
	// lnFile is a dup of ln's descriptor, held open for the listener's
	// lifetime so the poll loop (run_linux.go) has a stable fd to poll;
	// closing it per-iteration would invalidate it before unix.Poll runs.
	lnFile *os.File

	clients  [MaxClients]*Client
	surfaces [MaxSurfaces]*Surface

	Table   *wm.Table
	Damage  *damage.Tracker

	ScreenW, ScreenH int

	clipboard []byte

	hoverWindow wm.ID // last window POINTER_ENTER was sent for, 0 if none
	lastFocused wm.ID // last window FOCUS_IN was sent for, 0 if none

	// resizeStartX/Y latch the pointer position at BeginResize, since
	// wm.Table.ResizeTo takes a delta from resize start rather than an
	// absolute cursor position (unlike DragTo).
	resizeStartX, resizeStartY int

	mu sync.Mutex // guards clipboard only, which test helpers may read concurrently
}

// New constructs a Server bound to screenW x screenH. It does not yet
// own a listener; call Listen or AdoptSocketActivation.
func New(screenW, screenH int) *Server {
	return &Server{
		Table:   wm.NewTable(),
		Damage:  damage.New(),
		ScreenW: screenW,
		ScreenH: screenH,
	}
}

// Listen binds and listens on a new Unix socket at path, removing any
// stale socket file first.
func (s *Server) Listen(path string) error {
	_ = os.Remove(path)
	ln, err := net.Listen("unix", path)
	if err != nil {
		return fmt.Errorf("cdp: listen %s: %w", path, err)
	}
	s.ln = ln
	s.cacheListenerFile()
	return nil
}

// cacheListenerFile dups s.ln's descriptor into s.lnFile, once, for the
// poll loop to use. The dup is independent of the listener's own fd, so
// it must be closed separately in Close.
func (s *Server) cacheListenerFile() {
	type fileListener interface {
		File() (*os.File, error)
	}
	fl, ok := s.ln.(fileListener)
	if !ok {
		return
	}
	f, err := fl.File()
	if err != nil {
		return
	}
	s.lnFile = f
}

// AdoptSocketActivation inspects LISTEN_FDS/LISTEN_PID and, if they
// name this process, adopts fd 3 as an already-listening socket,
// skipping bind/listen entirely. It reports whether activation applied.
func (s *Server) AdoptSocketActivation() (bool, error) {
	nfds := os.Getenv("LISTEN_FDS")
	pid := os.Getenv("LISTEN_PID")
	if nfds == "" || pid == "" {
		return false, nil
	}
	wantPid, err := strconv.Atoi(pid)
	if err != nil || wantPid != os.Getpid() {
		return false, nil
	}
	n, err := strconv.Atoi(nfds)
	if err != nil || n < 1 {
		return false, nil
	}

	f := os.NewFile(3, "listen-fd-3")
	ln, err := net.FileListener(f)
	if err != nil {
		return false, fmt.Errorf("cdp: adopt fd 3: %w", err)
	}
	s.ln = ln
	s.cacheListenerFile()
	return true, nil
}

// Close shuts down the listener and every client connection.
func (s *Server) Close() error {
	if s.lnFile != nil {
		s.lnFile.Close()
	}
	if s.ln != nil {
		s.ln.Close()
	}
	for i, c := range s.clients {
		if c != nil {
			s.disconnectClient(i)
		}
	}
	return nil
}

// AcceptOne blocks for and services a single pending connection; it is
// exported for callers (and tests) that want to drive the accept loop
// one connection at a time instead of via Run.
func (s *Server) AcceptOne() error { return s.acceptOne() }

// acceptOne accepts a single pending connection and assigns it a slot,
// closing it immediately if the server is at capacity. It sends WELCOME
// on success.
func (s *Server) acceptOne() error {
	conn, err := s.ln.Accept()
	if err != nil {
		return err
	}

	idx := s.freeClientSlot()
	if idx < 0 {
		log.Warn("rejecting connection: client slots exhausted")
		conn.Close()
		return nil
	}

	wc := wire.NewConn(conn)
	s.clients[idx] = &Client{idx: idx, conn: wc, active: true}

	welcome := wire.Welcome{ScreenW: uint32(s.ScreenW), ScreenH: uint32(s.ScreenH), Version: protocolVersion}
	if err := wc.Send(wire.EvtWelcome, welcome.Encode()); err != nil {
		log.Warn("send WELCOME failed", logging.KeyError, err)
		s.disconnectClient(idx)
		return nil
	}
	log.Info("client connected", logging.KeyClientIdx, idx)
	return nil
}

func (s *Server) freeClientSlot() int {
	for i, c := range s.clients {
		if c == nil {
			return i
		}
	}
	return -1
}

func (s *Server) freeSurfaceSlot() int {
	for i, sf := range s.surfaces {
		if sf == nil {
			return i
		}
	}
	return -1
}

// disconnectClient implements the "client cleanup" invariant: close the
// socket, unmap every shm buffer owned by the client, hide the
// corresponding windows, and mark full damage.
func (s *Server) disconnectClient(idx int) {
	c := s.clients[idx]
	if c == nil {
		return
	}
	c.conn.Close()
	s.clients[idx] = nil

	for i, sf := range s.surfaces {
		if sf == nil || sf.ClientIdx != idx {
			continue
		}
		if w := s.Table.Get(sf.WindowID); w != nil {
			w.Visible = false
		}
		s.Table.Destroy(sf.WindowID)
		unmap(sf.Mapping)
		s.surfaces[i] = nil
	}
	s.Damage.AddFull()
	log.Info("client disconnected", logging.KeyClientIdx, idx)
}

// surfaceIDFor returns the wire-level surface ID (slot+1) for a slot
// index; it does not check the slot against MaxSurfaces.
func surfaceIDFor(slot int) uint32 { return uint32(slot + 1) }

func slotForSurfaceID(id uint32) int { return int(id) - 1 }

func (s *Server) surfaceByID(id uint32) *Surface {
	slot := slotForSurfaceID(id)
	if slot < 0 || slot >= MaxSurfaces {
		return nil
	}
	return s.surfaces[slot]
}

// SurfaceView returns the surface with the given wire-level ID, or nil.
// It exists so the render package's SurfaceSource can be satisfied
// without the render package importing server (which would cycle back
// through wm and damage); callers adapt the result to their own view
// type.
func (s *Server) SurfaceView(id int) *Surface {
	return s.surfaceByID(uint32(id))
}

// EmitFrameDone sends FRAME_DONE to the owning client of surface id and
// clears its FrameRequested flag, as the final step of compositing a
// frame that surface participated in.
func (s *Server) EmitFrameDone(id int) {
	sf := s.surfaceByID(uint32(id))
	if sf == nil {
		return
	}
	sf.FrameRequested = false
	reply := wire.IDOnly{ID: uint32(id)}
	s.send(sf, wire.EvtFrameDone, reply.Encode())
}
