package user32

import (
	"testing"
	"time"

	"github.com/citc-os/workstation/internal/wcl/gdi32"
	"github.com/citc-os/workstation/internal/wcl/winabi"
)

// fakeMemory is a flat byte slice standing in for a loaded image's
// address space, the same shape kernel32_test.go uses.
type fakeMemory struct {
	base uint64
	buf  []byte
}

func (m *fakeMemory) Slice(addr uint64, n int) []byte {
	off := addr - m.base
	return m.buf[off : off+uint64(n)]
}

func newTestHost(t *testing.T) (*Host, *fakeMemory) {
	t.Helper()
	h := NewHost("", gdi32.NewHost()) // empty socketPath: CreateWindowExA always falls back to a local buffer
	mem := &fakeMemory{base: 0x1000, buf: make([]byte, 4096)}
	h.Attach(mem)
	return h, mem
}

func TestCreateWindowFallsBackToLocalBuffer(t *testing.T) {
	h, _ := newTestHost(t)
	hwnd := h.CreateWindowExA(0, "MAINWND", "hello", 0, 0, 0, 320, 200)
	if hwnd == 0 {
		t.Fatal("expected non-zero HWND")
	}
	if got := h.GetWindowTextA(hwnd); got != "hello" {
		t.Fatalf("title = %q, want hello", got)
	}
}

func TestPostAndGetMessageRoundTrip(t *testing.T) {
	h, mem := newTestHost(t)
	hwnd := h.CreateWindowExA(0, "MAINWND", "t", 0, 0, 0, 100, 100)

	h.PostMessageA(hwnd, wmChar, uint64('x'), 0)

	const msgAddr = 0x1100
	if got := h.GetMessageA(msgAddr); got != 1 {
		t.Fatalf("GetMessageA = %d, want 1", got)
	}
	m := readMSG(mem, msgAddr)
	if m.Message != wmChar || m.WParam != uint64('x') || m.HWND != hwnd {
		t.Fatalf("unexpected message: %+v", m)
	}
}

func TestPostQuitMessageEndsLoop(t *testing.T) {
	h, _ := newTestHost(t)
	h.PostQuitMessage(7)

	const msgAddr = 0x1100
	if got := h.GetMessageA(msgAddr); got != 1 {
		t.Fatalf("first GetMessageA = %d, want 1 (delivering WM_QUIT)", got)
	}
	if got := h.GetMessageA(msgAddr); got != 0 {
		t.Fatalf("GetMessageA after WM_QUIT = %d, want 0", got)
	}
}

// TestTimerFairness exercises the timer-fairness invariant: a
// timer armed with interval T produces at least floor(elapsed/T)-1
// WM_TIMER messages over any interval once armed. We arm a 5ms timer,
// let ~55ms elapse, and expect at least 8 fires (floor(55/5)-1 = 10,
// minus slack for scheduling jitter).
func TestTimerFairness(t *testing.T) {
	h, _ := newTestHost(t)
	hwnd := h.CreateWindowExA(0, "MAINWND", "t", 0, 0, 0, 100, 100)
	h.SetTimer(hwnd, 1, 5)

	const msgAddr = 0x1100
	deadline := time.Now().Add(55 * time.Millisecond)
	fires := 0
	for time.Now().Before(deadline) {
		if h.GetMessageA(msgAddr) != 1 {
			continue
		}
		m := readMSG(h.mem, msgAddr)
		if m.Message == wmTimer {
			fires++
		}
	}
	if fires < 8 {
		t.Fatalf("got %d WM_TIMER fires over 55ms at 5ms interval, want >= 8", fires)
	}
}

func TestKillTimerStopsFiring(t *testing.T) {
	h, _ := newTestHost(t)
	hwnd := h.CreateWindowExA(0, "MAINWND", "t", 0, 0, 0, 100, 100)
	h.SetTimer(hwnd, 42, 5)
	if got := h.KillTimer(hwnd, 42); got != 1 {
		t.Fatalf("KillTimer = %d, want 1", got)
	}
	if got := h.KillTimer(hwnd, 42); got != 0 {
		t.Fatalf("second KillTimer = %d, want 0 (already removed)", got)
	}
}

func TestTranslateMessageSynthesizesCharFromVK(t *testing.T) {
	h, mem := newTestHost(t)
	hwnd := h.CreateWindowExA(0, "MAINWND", "t", 0, 0, 0, 100, 100)

	const msgAddr = 0x1100
	writeMSG(mem, msgAddr, msg{HWND: hwnd, Message: wmKeyDown, WParam: uint64(vkSpace)})
	if got := h.TranslateMessage(msgAddr); got != 1 {
		t.Fatalf("TranslateMessage = %d, want 1", got)
	}
	if got := h.GetMessageA(msgAddr); got != 1 {
		t.Fatal("expected a posted WM_CHAR")
	}
	m := readMSG(mem, msgAddr)
	if m.Message != wmChar || m.WParam != uint64(' ') {
		t.Fatalf("synthesized message = %+v, want WM_CHAR ' '", m)
	}
}

func TestGetSetWindowLongRoundTrip(t *testing.T) {
	h, _ := newTestHost(t)
	hwnd := h.CreateWindowExA(0, "MAINWND", "t", 0x10, 0, 0, 100, 100)

	if got := h.GetWindowLongA(hwnd, gwlStyle); got != 0x10 {
		t.Fatalf("GetWindowLongA(style) = %#x, want 0x10", got)
	}
	prev := h.SetWindowLongA(hwnd, gwlUserData, 0xCAFE)
	if prev != 0 {
		t.Fatalf("prev userdata = %#x, want 0", prev)
	}
	if got := h.GetWindowLongA(hwnd, gwlUserData); got != 0xCAFE {
		t.Fatalf("userdata = %#x, want 0xCAFE", got)
	}
}

func TestDestroyWindowRemovesFromOrder(t *testing.T) {
	h, _ := newTestHost(t)
	a := h.CreateWindowExA(0, "MAINWND", "a", 0, 0, 0, 10, 10)
	b := h.CreateWindowExA(0, "MAINWND", "b", 0, 0, 0, 10, 10)

	h.DestroyWindow(a)
	if _, err := h.windows.Get(winabi.Handle(a)); err == nil {
		t.Fatal("expected destroyed handle to be unresolvable")
	}
	if len(h.windowOrder) != 1 || h.windowOrder[0] != b {
		t.Fatalf("windowOrder = %v, want only %d", h.windowOrder, b)
	}
}

func TestBeginEndPaintClearsNeedsPaint(t *testing.T) {
	h, _ := newTestHost(t)
	hwnd := h.CreateWindowExA(0, "MAINWND", "t", 0, 0, 0, 10, 10)
	h.InvalidateRect(hwnd)

	hdc := h.BeginPaint(hwnd)
	if hdc == 0 {
		t.Fatal("expected non-zero HDC")
	}
	win, _ := h.windows.Get(winabi.Handle(hwnd))
	if win.needsPaint {
		t.Fatal("BeginPaint should clear needsPaint")
	}
	if got := h.EndPaint(hwnd); got != 1 {
		t.Fatalf("EndPaint = %d, want 1", got)
	}
	// Idempotent: a second EndPaint without a matching BeginPaint is a no-op.
	if got := h.EndPaint(hwnd); got != 1 {
		t.Fatalf("second EndPaint = %d, want 1", got)
	}
}

func TestWaitReturnsWhenNoConnection(t *testing.T) {
	h, _ := newTestHost(t)
	done := make(chan error, 1)
	go func() { done <- h.Wait() }()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Wait() = %v, want nil", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Wait() blocked with no dispatch goroutine started")
	}
}
