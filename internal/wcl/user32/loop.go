package user32

import (
	"time"

	"github.com/citc-os/workstation/internal/wcl/winabi"
)

// GetMessageA(LPMSG lpMsg, HWND hWnd, UINT wMsgFilterMin, UINT wMsgFilterMax)
// writes the next message to lpMsg, in priority order: the quit latch,
// the normal queue (non-blocking), due timers, auto-WM_PAINT for
// windows with needsPaint, then a blocking wait on the queue/timer
// wakeup. Returns 0 once WM_QUIT has been delivered, matching Win32's
// "message loop exits when GetMessage returns FALSE" contract.
func (h *Host) GetMessageA(msgAddr uint64) uint64 {
	if h.quit {
		return 0
	}
	for {
		select {
		case m := <-h.postChan:
			return h.deliver(m, msgAddr)
		default:
		}

		if hwnd, id, ok := h.dueTimer(); ok {
			return h.deliver(msg{HWND: hwnd, Message: wmTimer, WParam: id}, msgAddr)
		}

		if hwnd, ok := h.nextNeedsPaint(); ok {
			return h.deliver(msg{HWND: hwnd, Message: wmPaint}, msgAddr)
		}

		wait := h.timerWakeDelay()
		select {
		case m := <-h.postChan:
			return h.deliver(m, msgAddr)
		case <-time.After(wait):
		}
	}
}

func (h *Host) deliver(m msg, msgAddr uint64) uint64 {
	if m.Message == wmQuit {
		h.quit = true
	}
	if m.Message == wmKeyDown {
		h.lastVK = uint16(m.WParam)
	}
	writeMSG(h.mem, msgAddr, m)
	return 1
}

func (h *Host) nextNeedsPaint() (uint64, bool) {
	for _, id := range h.windowOrder {
		if w, err := h.windows.Get(winabi.Handle(id)); err == nil && w.needsPaint {
			return id, true
		}
	}
	return 0, false
}

func (h *Host) dueTimer() (hwnd uint64, id uint64, ok bool) {
	now := time.Now()
	for _, t := range h.timers {
		if !now.Before(t.next) {
			t.next = t.next.Add(t.interval)
			return t.hwnd, t.id, true
		}
	}
	return 0, 0, false
}

func (h *Host) timerWakeDelay() time.Duration {
	if len(h.timers) == 0 {
		return 50 * time.Millisecond
	}
	soonest := h.timers[0].next
	for _, t := range h.timers[1:] {
		if t.next.Before(soonest) {
			soonest = t.next
		}
	}
	d := time.Until(soonest)
	if d < time.Millisecond {
		return time.Millisecond
	}
	return d
}

// TranslateMessage(const MSG *lpMsg) synthesizes WM_CHAR from the last
// recorded virtual key when the caller's key event carried no
// character (state-only transitions, or keys this port has no base
// table entry for).
func (h *Host) TranslateMessage(msgAddr uint64) uint64 {
	m := readMSG(h.mem, msgAddr)
	if m.Message != wmKeyDown {
		return 0
	}
	ch := synthesizeChar(uint16(m.WParam))
	if ch == 0 {
		return 0
	}
	h.post(msg{HWND: m.HWND, Message: wmChar, WParam: uint64(ch)})
	return 1
}

func readMSG(mem winabi.ProcessMemory, addr uint64) msg {
	b := mem.Slice(addr, msgSize)
	return msg{
		HWND:    leUint64(b[0:8]),
		Message: uint32(leUint64(b[8:16])),
		WParam:  leUint64(b[16:24]),
		LParam:  leUint64(b[24:32]),
	}
}

func leUint64(b []byte) uint64 {
	var v uint64
	for i := 7; i >= 0; i-- {
		v = v<<8 | uint64(b[i])
	}
	return v
}

// DispatchMessageA(const MSG *lpMsg) calls the owning window's WNDPROC
// via h.CallProc if wired, otherwise runs DefWindowProcA in-process.
func (h *Host) DispatchMessageA(msgAddr uint64) uint64 {
	m := readMSG(h.mem, msgAddr)
	win, err := h.windows.Get(winabi.Handle(m.HWND))
	var proc uint64
	if err == nil {
		if cls, ok := h.classes[win.className]; ok {
			proc = cls.wndProc
		}
	}
	if proc != 0 && h.CallProc != nil {
		return h.CallProc(proc, m.HWND, uint64(m.Message), m.WParam, m.LParam)
	}
	return h.DefWindowProcA(m.HWND, m.Message, m.WParam, m.LParam)
}

// DefWindowProcA handles WM_CLOSE by destroying the window and
// WM_PAINT by clearing needsPaint (BeginPaint/EndPaint are the usual
// path; this covers a guest that never calls them).
func (h *Host) DefWindowProcA(hwnd uint64, message uint32, wParam, lParam uint64) uint64 {
	switch message {
	case wmClose:
		h.DestroyWindow(hwnd)
	case wmPaint:
		if win, err := h.windows.Get(winabi.Handle(hwnd)); err == nil {
			win.needsPaint = false
		}
	}
	return 0
}

// PostQuitMessage(int nExitCode) enqueues WM_QUIT with nExitCode as
// wParam; GetMessageA returns 0 once it is delivered.
func (h *Host) PostQuitMessage(exitCode uint32) {
	h.quitCode = exitCode
	h.post(msg{Message: wmQuit, WParam: uint64(exitCode)})
}

// PostMessageA(HWND hWnd, UINT Msg, WPARAM wParam, LPARAM lParam) is
// safe to call from any guest thread: it only ever touches postChan.
func (h *Host) PostMessageA(hwnd uint64, message uint32, wParam, lParam uint64) uint64 {
	h.post(msg{HWND: hwnd, Message: message, WParam: wParam, LParam: lParam})
	return 1
}

// SendMessageA delivers synchronously: it calls the window procedure
// (or DefWindowProcA) directly rather than going through the queue,
// matching Win32's send-vs-post distinction.
func (h *Host) SendMessageA(hwnd uint64, message uint32, wParam, lParam uint64) uint64 {
	win, err := h.windows.Get(winabi.Handle(hwnd))
	var proc uint64
	if err == nil {
		if cls, ok := h.classes[win.className]; ok {
			proc = cls.wndProc
		}
	}
	if proc != 0 && h.CallProc != nil {
		return h.CallProc(proc, hwnd, uint64(message), wParam, lParam)
	}
	return h.DefWindowProcA(hwnd, message, wParam, lParam)
}

// SetTimer(HWND hWnd, UINT_PTR nIDEvent, UINT uElapse, TIMERPROC) arms
// a repeating timer; SetTimer re-arming after fire (not one-shot) is
// the only variant this runtime supports.
func (h *Host) SetTimer(hwnd uint64, id uint64, elapseMS uint32) uint64 {
	for _, t := range h.timers {
		if t.hwnd == hwnd && t.id == id {
			t.interval = time.Duration(elapseMS) * time.Millisecond
			t.next = time.Now().Add(t.interval)
			return id
		}
	}
	h.timers = append(h.timers, &timer{
		id:       id,
		hwnd:     hwnd,
		interval: time.Duration(elapseMS) * time.Millisecond,
		next:     time.Now().Add(time.Duration(elapseMS) * time.Millisecond),
	})
	return id
}

// KillTimer(HWND hWnd, UINT_PTR uIDEvent)
func (h *Host) KillTimer(hwnd uint64, id uint64) uint64 {
	for i, t := range h.timers {
		if t.hwnd == hwnd && t.id == id {
			h.timers = append(h.timers[:i], h.timers[i+1:]...)
			return 1
		}
	}
	return 0
}
