// Package user32 implements the message-loop half of the Win32 stub
// runtime: window classes, windows, the message queue, timers, and the
// focused HWND, bridging CDP events (C8) into Win32 MSGs. Grounded on
// the provider-registry pattern the same way kernel32 is, via
// winabi.StubRegistry, and on the single-threaded host model
// described for the compositor, generalized one level up: this runtime
// is itself single-threaded except for PostMessageA from a non-main
// thread, which crosses through a buffered channel instead of locking
// the message queue directly.
package user32

import (
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/citc-os/workstation/internal/cdp/client"
	"github.com/citc-os/workstation/internal/cdp/wire"
	"github.com/citc-os/workstation/internal/logging"
	"github.com/citc-os/workstation/internal/wcl/gdi32"
	"github.com/citc-os/workstation/internal/wcl/winabi"
)

var log = logging.L("user32")

// msg mirrors the fields of Win32's MSG that this port actually uses;
// time and cursor position are not modeled.
type msg struct {
	HWND    uint64
	Message uint32
	WParam  uint64
	LParam  uint64
}

const msgSize = 32

func writeMSG(mem winabi.ProcessMemory, addr uint64, m msg) {
	winabi.WriteUint64(mem, addr, m.HWND)
	winabi.WriteUint32(mem, addr+8, m.Message)
	winabi.WriteUint64(mem, addr+16, m.WParam)
	winabi.WriteUint64(mem, addr+24, m.LParam)
}

type wndClass struct {
	wndProc    uint64
	style      uint32
	background uint32
}

type window struct {
	className string
	title     string
	x, y, w, h int32
	style, exStyle uint32
	userData   uint64
	visible    bool
	needsPaint bool

	surface *client.Surface       // nil if the compositor connection is unavailable
	target  *gdi32.PixelTarget     // always present: either the surface's shared buffer or a local fallback
	hdc     uint64                 // nonzero while a BeginPaint is outstanding
	handle  uint64
}

type timer struct {
	id       uint64
	hwnd     uint64
	interval time.Duration
	next     time.Time
}

// CallProc invokes a guest window procedure under the Windows ABI and
// returns its result. DispatchMessageA and SendMessageA use it when set.
// wcl-run does not set it, so there both fall back to running
// DefWindowProcA in-process: the guest's own window procedure is not
// called, and only the WM_CLOSE/WM_PAINT default handling applies.
type CallProc func(addr, hwnd, message, wParam, lParam uint64) uint64

// Host owns every piece of user32 process state: WNDCLASSes, windows,
// the message queue, timers, and the focused HWND.
type Host struct {
	mu sync.Mutex // not locked anywhere: post needs no lock since postChan is a buffered channel; the main-thread fields below are touched only from GetMessageA's caller

	mem winabi.ProcessMemory
	gdi *gdi32.Host

	classes     map[string]*wndClass
	windows     *winabi.Table[window]
	windowOrder []uint64 // allocation order, for GetMessageA's needs-paint scan

	socketPath string
	conn       *client.Connection
	bySurface  map[uint32]uint64 // CDP surface ID -> HWND

	postChan chan msg // cross-thread PostMessageA and CDP-dispatched events land here

	eg errgroup.Group // supervises the CDP dispatch goroutine so wcl-run can wait for it to exit cleanly

	timers    []*timer
	nextTimer uint64

	focused   uint64
	lastVK    uint16
	quit      bool
	quitCode  uint32

	screenW, screenH int

	CallProc CallProc
}

// NewHost constructs a user32 host that lazily dials socketPath on the
// first CreateWindowExA.
func NewHost(socketPath string, gdi *gdi32.Host) *Host {
	return &Host{
		mem:        nil,
		gdi:        gdi,
		classes:    make(map[string]*wndClass),
		windows:    winabi.NewTable[window](winabi.RangeHWND),
		socketPath: socketPath,
		bySurface:  make(map[uint32]uint64),
		postChan:   make(chan msg, 256),
	}
}

// Attach binds the host to a loaded image's address space.
func (h *Host) Attach(mem winabi.ProcessMemory) { h.mem = mem }

// SetScreenSize records the virtual screen dimensions GetSystemMetrics
// reports, wired in once at startup from the compositor's own screen
// geometry rather than hardcoded.
func (h *Host) SetScreenSize(w, hh int) { h.screenW, h.screenH = w, hh }

// --- WNDCLASS ---

// RegisterClassA(const WNDCLASSA *lpWndClass) simplified to (name,
// wndProc, style, background brush color); returns 1 on success.
func (h *Host) RegisterClassA(name string, wndProc uint64, style uint32, background uint32) uint64 {
	h.classes[name] = &wndClass{wndProc: wndProc, style: style, background: background}
	return 1
}

// --- Windows ---

// CreateWindowExA creates a window of the named class. It attempts to
// connect to the compositor once per process (on the first call); if
// that fails, every window falls back to a local, unbacked pixel
// buffer that gdi32 can still draw into but which is never displayed.
func (h *Host) CreateWindowExA(exStyle uint32, className, title string, style uint32, x, y, w, h int32) uint64 {
	h.ensureConnected()

	win := &window{className: className, title: title, x: x, y: y, w: w, h: h, style: style, exStyle: exStyle, visible: false}

	if h.conn != nil {
		sf, err := h.conn.CreateSurface(int(x), int(y), int(w), int(h), title)
		if err != nil {
			log.Warn("CreateSurface failed, falling back to local buffer", logging.KeyError, err)
		} else {
			win.surface = sf
			win.target = &gdi32.PixelTarget{Pix: sf.Pix, W: sf.W, H: sf.H, Stride: sf.Stride}
		}
	}
	if win.target == nil {
		stride := int(w) * 4
		win.target = &gdi32.PixelTarget{Pix: make([]byte, stride*int(h)), W: int(w), H: int(h), Stride: stride}
	}

	handle := uint64(h.windows.Alloc(win))
	win.handle = handle
	h.windowOrder = append(h.windowOrder, handle)
	if win.surface != nil {
		h.bySurface[win.surface.ID] = handle
	}
	return handle
}

// ensureConnected dials the compositor exactly once; failures are
// remembered (socketPath is cleared and conn stays nil) so every later
// CreateWindowExA call also falls back, rather than retrying on each call.
func (h *Host) ensureConnected() {
	if h.conn != nil || h.socketPath == "" {
		return
	}
	conn, err := client.Connect(h.socketPath, client.Callbacks{
		OnFrameDone: func(id uint32) { h.post(msg{HWND: h.bySurface[id], Message: wmPaint}) },
		OnPointerMotion: func(id uint32, x, y int32) {
			h.post(msg{HWND: h.bySurface[id], Message: wmMouseMove, LParam: packPoint(x, y)})
		},
		OnPointerButton: func(id, btn, state uint32) {
			m := uint32(wmLButton) + btn*2
			if state == 0 {
				m++ // release: the UP message follows the DOWN one
			}
			h.post(msg{HWND: h.bySurface[id], Message: m})
		},
		OnKey: func(keycode, state, char, mods uint32) {
			h.onKey(keycode, state, char)
		},
		OnConfigure: func(id, w, hh uint32) {
			hwnd := h.bySurface[id]
			h.post(msg{HWND: hwnd, Message: wmSize, LParam: packPoint(int32(w), int32(hh))})
		},
		OnFocusIn: func(id uint32) {
			h.focused = h.bySurface[id]
			h.post(msg{HWND: h.focused, Message: wmSetFocus})
		},
		OnFocusOut: func(id uint32) {
			hwnd := h.bySurface[id]
			if h.focused == hwnd {
				h.focused = 0
			}
			h.post(msg{HWND: hwnd, Message: wmKillFocus})
		},
	})
	if err != nil {
		log.Warn("compositor connect failed", logging.KeyError, err)
		h.socketPath = ""
		return
	}
	h.conn = conn
	h.eg.Go(h.dispatchLoop)
}

// dispatchLoop runs under h.eg so wcl-run's shutdown path can Wait for
// it instead of leaking a goroutine past the guest's message loop exit.
func (h *Host) dispatchLoop() error {
	for {
		if err := h.conn.Dispatch(); err != nil {
			log.Info("cdp connection closed", logging.KeyError, err)
			return nil
		}
	}
}

// Wait blocks until the CDP dispatch goroutine (if any was started)
// returns. It is safe to call even if the compositor connection was
// never established.
func (h *Host) Wait() error {
	return h.eg.Wait()
}

func (h *Host) onKey(keycode, state, char uint32) {
	vk := uint16(0)
	if int(keycode) < len(evdevToVK) {
		vk = evdevToVK[keycode]
	}
	h.lastVK = vk
	m := uint32(wmKeyUp)
	if state == 1 {
		m = wmKeyDown
	}
	lParam := uint64(1) | uint64(keycode&0xFF)<<16
	if state == 0 {
		lParam |= uint64(1) << 30
		lParam |= uint64(1) << 31
	}
	h.post(msg{HWND: h.focused, Message: m, WParam: uint64(vk), LParam: lParam})
	if state == 1 && char != 0 {
		h.post(msg{HWND: h.focused, Message: wmChar, WParam: uint64(char)})
	}
}

func packPoint(x, y int32) uint64 {
	return uint64(uint32(x)) | uint64(uint32(y))<<32
}

// post enqueues m, safe to call from any goroutine (PostMessageA from a
// guest thread, or the CDP dispatch goroutine).
func (h *Host) post(m msg) {
	select {
	case h.postChan <- m:
	default:
		log.Warn("user32 message queue full, dropping message", "message", m.Message)
	}
}

// DestroyWindow(HWND hWnd)
func (h *Host) DestroyWindow(hwnd uint64) uint64 {
	win, err := h.windows.Get(winabi.Handle(hwnd))
	if err != nil {
		return 0
	}
	if win.surface != nil {
		win.surface.Destroy()
		delete(h.bySurface, win.surface.ID)
	}
	h.windows.Free(winabi.Handle(hwnd))
	for i, id := range h.windowOrder {
		if id == hwnd {
			h.windowOrder = append(h.windowOrder[:i], h.windowOrder[i+1:]...)
			break
		}
	}
	h.post(msg{HWND: hwnd, Message: wmDestroy})
	return 1
}

// ShowWindow(HWND hWnd, int nCmdShow)
func (h *Host) ShowWindow(hwnd uint64, cmdShow uint32) uint64 {
	win, err := h.windows.Get(winabi.Handle(hwnd))
	if err != nil {
		return 0
	}
	prev := win.visible
	win.visible = cmdShow != swHide
	if win.visible && win.surface != nil {
		win.surface.Commit()
	}
	return boolToU64(prev)
}

// UpdateWindow(HWND hWnd) posts a WM_PAINT to the message queue if the
// window needs painting; it does not call the window procedure directly.
func (h *Host) UpdateWindow(hwnd uint64) uint64 {
	win, err := h.windows.Get(winabi.Handle(hwnd))
	if err != nil {
		return 0
	}
	if win.needsPaint {
		h.post(msg{HWND: hwnd, Message: wmPaint})
	}
	return 1
}

// InvalidateRect(HWND hWnd, const RECT *lpRect, BOOL bErase) marks the
// whole client area dirty; per-rect damage tracking is not modeled.
func (h *Host) InvalidateRect(hwnd uint64) uint64 {
	win, err := h.windows.Get(winabi.Handle(hwnd))
	if err != nil {
		return 0
	}
	win.needsPaint = true
	return 1
}

// MoveWindow(HWND hWnd, int X, int Y, int nWidth, int nHeight, BOOL bRepaint)
func (h *Host) MoveWindow(hwnd uint64, x, y, w, hh int32) uint64 {
	win, err := h.windows.Get(winabi.Handle(hwnd))
	if err != nil {
		return 0
	}
	win.x, win.y, win.w, win.h = x, y, w, hh
	win.needsPaint = true
	return 1
}

// GetWindowLongA(HWND hWnd, int nIndex)
func (h *Host) GetWindowLongA(hwnd uint64, index int32) uint64 {
	win, err := h.windows.Get(winabi.Handle(hwnd))
	if err != nil {
		return 0
	}
	switch index {
	case gwlStyle:
		return uint64(win.style)
	case gwlExStyle:
		return uint64(win.exStyle)
	case gwlUserData:
		return win.userData
	case gwlWndProc:
		if cls, ok := h.classes[win.className]; ok {
			return cls.wndProc
		}
	}
	return 0
}

// SetWindowLongA(HWND hWnd, int nIndex, LONG dwNewLong) returns the
// previous value.
func (h *Host) SetWindowLongA(hwnd uint64, index int32, value uint64) uint64 {
	win, err := h.windows.Get(winabi.Handle(hwnd))
	if err != nil {
		return 0
	}
	prev := h.GetWindowLongA(hwnd, index)
	switch index {
	case gwlStyle:
		win.style = uint32(value)
	case gwlExStyle:
		win.exStyle = uint32(value)
	case gwlUserData:
		win.userData = value
	}
	return prev
}

// GetWindowTextA(HWND hWnd) returns the window's title.
func (h *Host) GetWindowTextA(hwnd uint64) string {
	win, err := h.windows.Get(winabi.Handle(hwnd))
	if err != nil {
		return ""
	}
	return win.title
}

// SetWindowTextA(HWND hWnd, LPCSTR lpString)
func (h *Host) SetWindowTextA(hwnd uint64, title string) uint64 {
	win, err := h.windows.Get(winabi.Handle(hwnd))
	if err != nil {
		return 0
	}
	win.title = title
	return 1
}

// GetFocus() / SetFocus(HWND hWnd)
func (h *Host) GetFocus() uint64 { return h.focused }

func (h *Host) SetFocus(hwnd uint64) uint64 {
	prev := h.focused
	h.focused = hwnd
	return prev
}

// GetSystemMetrics(int nIndex)
func (h *Host) GetSystemMetrics(index uint32, screenW, screenH int) uint64 {
	switch index {
	case smCxScreen:
		return uint64(screenW)
	case smCyScreen:
		return uint64(screenH)
	}
	return 0
}

// LoadCursorA / LoadIconA return an opaque non-zero token regardless of
// the requested resource; this runtime never renders custom cursors or
// icons.
func (h *Host) LoadCursorA() uint64 { return 1 }
func (h *Host) LoadIconA() uint64   { return 1 }

// MessageBoxA(HWND, LPCSTR lpText, LPCSTR lpCaption, UINT uType) is
// print-only: it logs the dialog and returns IDOK immediately.
func (h *Host) MessageBoxA(text, caption string) uint64 {
	log.Info("MessageBoxA", "caption", caption, "text", text)
	const idOK = 1
	return idOK
}

// --- Paint ---

// BeginPaint(HWND hWnd, LPPAINTSTRUCT lpPaint) creates an HDC bound to
// the window's pixel buffer and clears needsPaint.
func (h *Host) BeginPaint(hwnd uint64) uint64 {
	win, err := h.windows.Get(winabi.Handle(hwnd))
	if err != nil {
		return 0
	}
	win.needsPaint = false
	win.hdc = h.gdi.CreateDC(win.target)
	return win.hdc
}

// EndPaint(HWND hWnd, const PAINTSTRUCT *lpPaint) releases the HDC and
// commits the surface. Idempotent: calling it without a matching
// BeginPaint, or twice, is a no-op.
func (h *Host) EndPaint(hwnd uint64) uint64 {
	win, err := h.windows.Get(winabi.Handle(hwnd))
	if err != nil || win.hdc == 0 {
		return 1
	}
	h.gdi.ReleaseDC(win.hdc)
	win.hdc = 0
	if win.surface != nil {
		copy(win.surface.Pix, win.target.Pix)
		win.surface.Commit()
	}
	return 1
}

func boolToU64(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}

// Register installs every user32 export into reg under the "user32"
// DLL name, mirroring kernel32.Register's add-closure pattern. String
// arguments are read out of guest memory via winabi.ReadCStringA;
// GetWindowTextA writes its result back into the caller's buffer the
// same way kernel32's buffer-filling exports do.
func (h *Host) Register(reg *winabi.StubRegistry) {
	add := func(name string, fn func(args []uint64) uint64) {
		reg.Add(winabi.Export{DLL: "user32", Name: name, Fn: fn})
	}
	add("RegisterClassA", func(a []uint64) uint64 {
		name := winabi.ReadCStringA(h.mem, winabi.ReadUint64(h.mem, a[0]+16))
		wndProc := winabi.ReadUint64(h.mem, a[0])
		style := winabi.ReadUint32(h.mem, a[0]+8)
		background := winabi.ReadUint32(h.mem, a[0]+24)
		return h.RegisterClassA(name, wndProc, style, background)
	})
	add("CreateWindowExA", func(a []uint64) uint64 {
		className := winabi.ReadCStringA(h.mem, a[1])
		title := winabi.ReadCStringA(h.mem, a[2])
		return h.CreateWindowExA(uint32(a[0]), className, title, uint32(a[3]),
			int32(a[4]), int32(a[5]), int32(a[6]), int32(a[7]))
	})
	add("DestroyWindow", func(a []uint64) uint64 { return h.DestroyWindow(a[0]) })
	add("ShowWindow", func(a []uint64) uint64 { return h.ShowWindow(a[0], uint32(a[1])) })
	add("UpdateWindow", func(a []uint64) uint64 { return h.UpdateWindow(a[0]) })
	add("InvalidateRect", func(a []uint64) uint64 { return h.InvalidateRect(a[0]) })
	add("MoveWindow", func(a []uint64) uint64 {
		return h.MoveWindow(a[0], int32(a[1]), int32(a[2]), int32(a[3]), int32(a[4]))
	})
	add("GetWindowLongA", func(a []uint64) uint64 { return h.GetWindowLongA(a[0], int32(a[1])) })
	add("SetWindowLongA", func(a []uint64) uint64 { return h.SetWindowLongA(a[0], int32(a[1]), a[2]) })
	add("GetWindowTextA", func(a []uint64) uint64 {
		text := h.GetWindowTextA(a[0])
		return uint64(winabi.WriteCStringA(h.mem, a[1], int(a[2]), text))
	})
	add("SetWindowTextA", func(a []uint64) uint64 {
		return h.SetWindowTextA(a[0], winabi.ReadCStringA(h.mem, a[1]))
	})
	add("GetSystemMetrics", func(a []uint64) uint64 { return h.GetSystemMetrics(uint32(a[0]), h.screenW, h.screenH) })
	add("GetFocus", func(a []uint64) uint64 { return h.GetFocus() })
	add("SetFocus", func(a []uint64) uint64 { return h.SetFocus(a[0]) })
	add("LoadCursorA", func(a []uint64) uint64 { return h.LoadCursorA() })
	add("LoadIconA", func(a []uint64) uint64 { return h.LoadIconA() })
	add("MessageBoxA", func(a []uint64) uint64 {
		return h.MessageBoxA(winabi.ReadCStringA(h.mem, a[1]), winabi.ReadCStringA(h.mem, a[2]))
	})
	add("BeginPaint", func(a []uint64) uint64 { return h.BeginPaint(a[0]) })
	add("EndPaint", func(a []uint64) uint64 { return h.EndPaint(a[0]) })
	add("GetMessageA", func(a []uint64) uint64 { return h.GetMessageA(a[0]) })
	add("TranslateMessage", func(a []uint64) uint64 { return h.TranslateMessage(a[0]) })
	add("DispatchMessageA", func(a []uint64) uint64 { return h.DispatchMessageA(a[0]) })
	add("DefWindowProcA", func(a []uint64) uint64 { return h.DefWindowProcA(a[0], uint32(a[1]), a[2], a[3]) })
	add("PostQuitMessage", func(a []uint64) uint64 { h.PostQuitMessage(uint32(a[0])); return 0 })
	add("PostMessageA", func(a []uint64) uint64 { return h.PostMessageA(a[0], uint32(a[1]), a[2], a[3]) })
	add("SendMessageA", func(a []uint64) uint64 { return h.SendMessageA(a[0], uint32(a[1]), a[2], a[3]) })
	add("SetTimer", func(a []uint64) uint64 { return h.SetTimer(a[0], a[1], uint32(a[2])) })
	add("KillTimer", func(a []uint64) uint64 { return h.KillTimer(a[0], a[1]) })
}
