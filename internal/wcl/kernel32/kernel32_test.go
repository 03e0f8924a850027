package kernel32

import (
	"os"
	"testing"
	"time"

	"github.com/citc-os/workstation/internal/wcl/winabi"
)

// fakeMemory is a flat byte slice standing in for a loaded image's
// address space, addressed from base.
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
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { r.Close(); w.Close() })
	h := NewHost(w, w, r)
	mem := &fakeMemory{base: 0x1000, buf: make([]byte, 4096)}
	h.Attach(mem)
	return h, mem
}

func TestGetStdHandleReturnsDistinctHandles(t *testing.T) {
	h, _ := newTestHost(t)
	out := h.GetStdHandle(StdOutputHandle)
	err := h.GetStdHandle(StdErrorHandle)
	in := h.GetStdHandle(StdInputHandle)
	if out == 0 || err == 0 || in == 0 {
		t.Fatal("expected non-zero standard handles")
	}
	if out == err || out == in || err == in {
		t.Fatal("expected distinct handles")
	}
}

func TestWriteFileWritesGuestBuffer(t *testing.T) {
	h, mem := newTestHost(t)
	copy(mem.buf, "hello\n")

	out := h.GetStdHandle(StdOutputHandle)
	written := mem.base + 0x100
	ok := h.WriteFile(out, mem.base, 6, written)
	if ok != 1 {
		t.Fatal("WriteFile returned failure")
	}
	if got := winabi.ReadUint32(mem, written); got != 6 {
		t.Fatalf("bytes written = %d, want 6", got)
	}
}

func TestWriteFileInvalidHandleFails(t *testing.T) {
	h, _ := newTestHost(t)
	if h.WriteFile(0x999999, 0, 0, 0) != 0 {
		t.Fatal("expected failure for invalid handle")
	}
}

func TestHeapAllocAndFree(t *testing.T) {
	h, _ := newTestHost(t)
	heap := h.HeapCreate()
	block := h.HeapAlloc(heap, 64)
	if block == 0 {
		t.Fatal("expected non-zero heap block")
	}
	if h.HeapFree(block) != 1 {
		t.Fatal("HeapFree failed")
	}
}

func TestTlsRoundTripPerThread(t *testing.T) {
	h, _ := newTestHost(t)
	slot := uint32(h.TlsAlloc())

	h.BindThread(0)
	h.TlsSetValue(slot, 42)
	h.BindThread(7)
	h.TlsSetValue(slot, 99)

	h.BindThread(0)
	if got := h.TlsGetValue(slot); got != 42 {
		t.Fatalf("thread 0 slot = %d, want 42", got)
	}
	h.BindThread(7)
	if got := h.TlsGetValue(slot); got != 99 {
		t.Fatalf("thread 7 slot = %d, want 99", got)
	}
}

func TestTlsFreeClearsAllThreads(t *testing.T) {
	h, _ := newTestHost(t)
	slot := uint32(h.TlsAlloc())
	h.BindThread(0)
	h.TlsSetValue(slot, 1)
	h.BindThread(7)
	h.TlsSetValue(slot, 2)
	h.TlsFree(slot)
	for _, tid := range []uint32{0, 7} {
		h.BindThread(tid)
		if got := h.TlsGetValue(slot); got != 0 {
			t.Fatalf("thread %d: expected cleared slot, got %d", tid, got)
		}
	}
}

func TestCriticalSectionMutualExclusion(t *testing.T) {
	h, _ := newTestHost(t)
	addr := uint64(0x3000)
	h.InitializeCriticalSection(addr)

	h.EnterCriticalSection(addr)
	released := make(chan struct{})
	go func() {
		h.EnterCriticalSection(addr)
		close(released)
		h.LeaveCriticalSection(addr)
	}()

	select {
	case <-released:
		t.Fatal("second EnterCriticalSection should have blocked")
	case <-time.After(20 * time.Millisecond):
	}

	h.LeaveCriticalSection(addr)
	select {
	case <-released:
	case <-time.After(time.Second):
		t.Fatal("second goroutine never acquired the critical section")
	}
	h.DeleteCriticalSection(addr)
}

func TestCreateThreadRunsStartRoutine(t *testing.T) {
	h, _ := newTestHost(t)
	done := make(chan uint32, 1)
	id := h.CreateThread(func(param uint64) uint32 {
		done <- uint32(param)
		return 0
	}, 55)
	if id == 0 {
		t.Fatal("expected non-zero thread handle")
	}
	select {
	case got := <-done:
		if got != 55 {
			t.Fatalf("param = %d, want 55", got)
		}
	case <-time.After(time.Second):
		t.Fatal("thread never ran")
	}
}

func TestExitProcessRecordsCode(t *testing.T) {
	h, _ := newTestHost(t)
	h.ExitProcess(7)
	if !h.Exited() {
		t.Fatal("expected Exited() true")
	}
	if h.ExitCode() != 7 {
		t.Fatalf("ExitCode() = %d, want 7", h.ExitCode())
	}
}

func TestRegisterPopulatesStubRegistry(t *testing.T) {
	h, _ := newTestHost(t)
	reg := winabi.NewStubRegistry()
	h.Register(reg)
	if _, ok := reg.Resolve("kernel32", "ExitProcess"); !ok {
		t.Fatal("ExitProcess not registered")
	}
	if _, ok := reg.Resolve("kernel32", "WriteFile"); !ok {
		t.Fatal("WriteFile not registered")
	}
}
