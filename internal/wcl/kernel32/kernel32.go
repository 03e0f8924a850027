// Package kernel32 implements the subset of kernel32.dll a minimal
// Win32 executable needs to boot: process exit, standard handles, file
// I/O, heap allocation, module handle queries, TLS slots, critical
// sections, and thread creation.
//
// Grounded on the provider-registry pattern
// (internal/patching.Provider) as generalized one level down by
// internal/wcl/winabi.StubRegistry: this package is a "stub DLL" that
// registers its export table once, exactly as a patching.Provider
// registers itself once by ID.
package kernel32

import (
	"os"
	"sync"

	"github.com/citc-os/workstation/internal/logging"
	"github.com/citc-os/workstation/internal/wcl/winabi"
	"github.com/citc-os/workstation/internal/workerpool"
)

var log = logging.L("kernel32")

// Standard handle identifiers, matching Windows' well-known negative
// values (sign-extended into the 32 bits a guest passes) so a guest's
// GetStdHandle(STD_OUTPUT_HANDLE) call round-trips.
const (
	StdOutputHandle = 0xFFFFFFF5 // -11
	StdErrorHandle  = 0xFFFFFFF4 // -12
	StdInputHandle  = 0xFFFFFFF6 // -10
)

// osHandle is the single slot type backing every OS-handle-family
// value: files and heap blocks share one table (and therefore one
// numeric range) so a handle is unambiguous within the family, keeping
// the disjoint-handle-range invariant, instead of two Table
// instances silently reusing the same numbers for different kinds.
type osHandle struct {
	file *os.File   // set for file/std handles
	heap []byte     // set for heap blocks
}

// Host owns every piece of process-wide kernel32 state: the handle
// table, heap blocks, TLS slots, critical sections keyed by guest
// address, and the bounded worker pool backing CreateThread.
//
// All of it is single-threaded by contract (§5): every exported
// function runs on the Win32 host's one logical thread, except
// CreateThread's spawned task, which calls BindThread before touching
// any TLS slot so TLS reads observe the right "thread". Because guest
// threads in this port are simulated by a bounded worker pool rather
// than real preemptive OS threads, BindThread's notion of "current
// thread" is approximate under true concurrency; every exported
// kernel32 call still serializes through mu, which is sufficient for
// the single-PE-at-a-time host this loader targets.
type Host struct {
	mu sync.Mutex

	handles *winabi.Table[osHandle]

	tls         map[uint32]map[uint32]uint64
	nextTLSSlot uint32
	freedSlots  map[uint32]bool

	critSections map[uint64]*sync.Mutex

	currentThread uint32
	nextThreadID  uint32
	pool          *workerpool.Pool

	mem winabi.ProcessMemory

	stdoutHandle, stderrHandle, stdinHandle uint64

	exitCode int
	exited   bool
}

// NewHost constructs a kernel32 host with its standard handles wired to
// the given files, and a bounded worker pool backing CreateThread.
func NewHost(stdout, stderr, stdin *os.File) *Host {
	h := &Host{
		handles:      winabi.NewTable[osHandle](winabi.RangeOSHandle),
		tls:          map[uint32]map[uint32]uint64{0: {}},
		freedSlots:   make(map[uint32]bool),
		critSections: make(map[uint64]*sync.Mutex),
		pool:         workerpool.New(8, 64),
	}
	h.stdoutHandle = uint64(h.handles.Alloc(&osHandle{file: stdout}))
	h.stderrHandle = uint64(h.handles.Alloc(&osHandle{file: stderr}))
	h.stdinHandle = uint64(h.handles.Alloc(&osHandle{file: stdin}))
	return h
}

// Attach binds the host to a loaded image's address space. Call once
// after pe.Load returns, before invoking any export.
func (h *Host) Attach(mem winabi.ProcessMemory) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.mem = mem
}

// ExitCode reports the process's requested exit code, valid once
// Exited() is true.
func (h *Host) ExitCode() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.exitCode
}

// Exited reports whether ExitProcess was called.
func (h *Host) Exited() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.exited
}

// Shutdown stops accepting new CreateThread tasks. Call once the host
// process is tearing down.
func (h *Host) Shutdown() {
	h.pool.StopAccepting()
}

// BindThread marks id as the thread the calling goroutine represents,
// so subsequent TLS slot reads/writes resolve against id's slot map.
func (h *Host) BindThread(id uint32) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.currentThread = id
	if _, ok := h.tls[id]; !ok {
		h.tls[id] = make(map[uint32]uint64)
	}
}

// --- Exports ---

// ExitProcess(UINT uExitCode)
func (h *Host) ExitProcess(code uint32) uint64 {
	h.mu.Lock()
	h.exited = true
	h.exitCode = int(code)
	h.mu.Unlock()
	log.Info("ExitProcess", "code", code)
	return 0
}

// GetStdHandle(DWORD nStdHandle)
func (h *Host) GetStdHandle(which uint32) uint64 {
	switch which {
	case StdOutputHandle:
		return h.stdoutHandle
	case StdErrorHandle:
		return h.stderrHandle
	case StdInputHandle:
		return h.stdinHandle
	default:
		return 0
	}
}

// WriteFile(HANDLE hFile, LPCVOID lpBuffer, DWORD nNumberOfBytesToWrite,
// LPDWORD lpNumberOfBytesWritten, LPOVERLAPPED lpOverlapped)
// returns BOOL in the low bit of the result.
func (h *Host) WriteFile(handle uint64, bufAddr uint64, n uint32, writtenAddr uint64) uint64 {
	h.mu.Lock()
	oh, err := h.handles.Get(winabi.Handle(handle))
	h.mu.Unlock()
	if err != nil || oh.file == nil {
		return 0
	}
	data := winabi.ReadBytes(h.mem, bufAddr, int(n))
	written, werr := oh.file.Write(data)
	if writtenAddr != 0 {
		winabi.WriteUint32(h.mem, writtenAddr, uint32(written))
	}
	if werr != nil {
		return 0
	}
	return 1
}

// ReadFile(HANDLE hFile, LPVOID lpBuffer, DWORD nNumberOfBytesToRead,
// LPDWORD lpNumberOfBytesRead, LPOVERLAPPED lpOverlapped)
func (h *Host) ReadFile(handle uint64, bufAddr uint64, n uint32, readAddr uint64) uint64 {
	h.mu.Lock()
	oh, err := h.handles.Get(winabi.Handle(handle))
	h.mu.Unlock()
	if err != nil || oh.file == nil {
		return 0
	}
	buf := make([]byte, n)
	read, rerr := oh.file.Read(buf)
	if read > 0 {
		winabi.WriteBytes(h.mem, bufAddr, buf[:read])
	}
	if readAddr != 0 {
		winabi.WriteUint32(h.mem, readAddr, uint32(read))
	}
	if rerr != nil && read == 0 {
		return 0
	}
	return 1
}

// CreateFileA(LPCSTR lpFileName, ...) simplified to (name, access,
// createDisposition); returns a HANDLE or the invalid-handle sentinel.
func (h *Host) CreateFileA(nameAddr uint64, access, createDisposition uint32) uint64 {
	name := winabi.ReadCStringA(h.mem, nameAddr)
	var flag int
	switch createDisposition {
	case 2: // CREATE_ALWAYS
		flag = os.O_CREATE | os.O_TRUNC
	case 4: // OPEN_ALWAYS
		flag = os.O_CREATE
	default: // OPEN_EXISTING and friends
		flag = 0
	}
	if access&0x40000000 != 0 { // GENERIC_WRITE
		flag |= os.O_WRONLY
		if flag&os.O_CREATE == 0 {
			flag |= os.O_CREATE
		}
	} else {
		flag |= os.O_RDONLY
	}

	f, err := os.OpenFile(name, flag, 0o644)
	if err != nil {
		log.Warn("CreateFileA failed", "name", name, logging.KeyError, err)
		return ^uint64(0) // INVALID_HANDLE_VALUE
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return uint64(h.handles.Alloc(&osHandle{file: f}))
}

// CloseHandle(HANDLE hObject)
func (h *Host) CloseHandle(handle uint64) uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	oh, err := h.handles.Get(winabi.Handle(handle))
	if err != nil {
		return 0
	}
	if oh.file != nil {
		oh.file.Close()
	}
	h.handles.Free(winabi.Handle(handle))
	return 1
}

// HeapCreate(DWORD flOptions, SIZE_T dwInitialSize, SIZE_T dwMaximumSize)
// always succeeds: heap blocks are backed by the Go allocator.
func (h *Host) HeapCreate() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return uint64(h.handles.Alloc(&osHandle{}))
}

// HeapAlloc(HANDLE hHeap, DWORD dwFlags, SIZE_T dwBytes) returns an
// OS-family handle for the block, not an address. Since this host has no real
// guest address space to carve heap memory from beyond the mapped
// image, HeapAlloc is only meaningful for callers that immediately
// pass the block back into another stub (e.g. DirectSound buffers)
// rather than dereferencing it as a raw pointer from guest code.
func (h *Host) HeapAlloc(heapHandle uint64, size uint32) uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return uint64(h.handles.Alloc(&osHandle{heap: make([]byte, size)}))
}

// HeapFree(HANDLE hHeap, DWORD dwFlags, LPVOID lpMem)
func (h *Host) HeapFree(blockHandle uint64) uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.handles.Free(winabi.Handle(blockHandle))
	return 1
}

// GetModuleHandleA(LPCSTR lpModuleName) — a single in-process image has
// exactly one module, so any name (including NULL, meaning "this
// module") resolves to the same opaque non-zero token.
func (h *Host) GetModuleHandleA(uint64) uint64 { return 1 }

// TlsAlloc() reuses a freed slot index before minting a new one,
// matching real TLS index reuse semantics.
func (h *Host) TlsAlloc() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	for slot := range h.freedSlots {
		delete(h.freedSlots, slot)
		return uint64(slot)
	}
	slot := h.nextTLSSlot
	h.nextTLSSlot++
	return uint64(slot)
}

// TlsGetValue(DWORD dwTlsIndex)
func (h *Host) TlsGetValue(slot uint32) uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.tls[h.currentThread][slot]
}

// TlsSetValue(DWORD dwTlsIndex, LPVOID lpTlsValue)
func (h *Host) TlsSetValue(slot uint32, value uint64) uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.tls[h.currentThread][slot] = value
	return 1
}

// TlsFree(DWORD dwTlsIndex)
func (h *Host) TlsFree(slot uint32) uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.freedSlots[slot] = true
	for tid := range h.tls {
		delete(h.tls[tid], slot)
	}
	return 1
}

// InitializeCriticalSection(LPCRITICAL_SECTION lpCriticalSection)
// keys off the guest address of the caller-allocated struct rather
// than a separate handle, matching real Win32 (the struct lives in the
// guest's own memory; the host never hands out a handle for it).
func (h *Host) InitializeCriticalSection(addr uint64) uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.critSections[addr]; !ok {
		h.critSections[addr] = &sync.Mutex{}
	}
	return 0
}

// EnterCriticalSection(LPCRITICAL_SECTION lpCriticalSection)
func (h *Host) EnterCriticalSection(addr uint64) uint64 {
	h.mu.Lock()
	cs, ok := h.critSections[addr]
	h.mu.Unlock()
	if !ok {
		return 0
	}
	cs.Lock()
	return 0
}

// LeaveCriticalSection(LPCRITICAL_SECTION lpCriticalSection)
func (h *Host) LeaveCriticalSection(addr uint64) uint64 {
	h.mu.Lock()
	cs, ok := h.critSections[addr]
	h.mu.Unlock()
	if !ok {
		return 0
	}
	cs.Unlock()
	return 0
}

// DeleteCriticalSection(LPCRITICAL_SECTION lpCriticalSection)
func (h *Host) DeleteCriticalSection(addr uint64) uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.critSections, addr)
	return 0
}

// ThreadStart is the guest start routine a CreateThread call schedules;
// the caller resolves the function-pointer argument into one of these
// before calling CreateThread, since this host dispatches guest thread
// entry points as Go closures rather than jumping into native code.
type ThreadStart func(param uint64) uint32

// CreateThread spawns start on the bounded worker pool, binding a fresh
// thread ID for TLS purposes before invoking it. It returns a thread
// handle immediately; the caller does not block on completion.
func (h *Host) CreateThread(start ThreadStart, param uint64) uint64 {
	h.mu.Lock()
	h.nextThreadID++
	id := h.nextThreadID
	h.mu.Unlock()

	ok := h.pool.Submit(func() {
		h.BindThread(id)
		start(param)
	})
	if !ok {
		log.Warn("CreateThread: worker pool saturated, thread not started")
		return 0
	}
	return uint64(id)
}

// Register installs every kernel32 export into reg under the "kernel32"
// DLL name.
func (h *Host) Register(reg *winabi.StubRegistry) {
	add := func(name string, fn func(args []uint64) uint64) {
		reg.Add(winabi.Export{DLL: "kernel32", Name: name, Fn: fn})
	}
	add("ExitProcess", func(a []uint64) uint64 { return h.ExitProcess(uint32(a[0])) })
	add("GetStdHandle", func(a []uint64) uint64 { return h.GetStdHandle(uint32(a[0])) })
	add("WriteFile", func(a []uint64) uint64 { return h.WriteFile(a[0], a[1], uint32(a[2]), a[3]) })
	add("ReadFile", func(a []uint64) uint64 { return h.ReadFile(a[0], a[1], uint32(a[2]), a[3]) })
	add("CreateFileA", func(a []uint64) uint64 { return h.CreateFileA(a[0], uint32(a[1]), uint32(a[4])) })
	add("CloseHandle", func(a []uint64) uint64 { return h.CloseHandle(a[0]) })
	add("HeapCreate", func(a []uint64) uint64 { return h.HeapCreate() })
	add("HeapAlloc", func(a []uint64) uint64 { return h.HeapAlloc(a[0], uint32(a[2])) })
	add("HeapFree", func(a []uint64) uint64 { return h.HeapFree(a[2]) })
	add("GetModuleHandleA", func(a []uint64) uint64 { return h.GetModuleHandleA(a[0]) })
	add("TlsAlloc", func(a []uint64) uint64 { return h.TlsAlloc() })
	add("TlsGetValue", func(a []uint64) uint64 { return h.TlsGetValue(uint32(a[0])) })
	add("TlsSetValue", func(a []uint64) uint64 { return h.TlsSetValue(uint32(a[0]), a[1]) })
	add("TlsFree", func(a []uint64) uint64 { return h.TlsFree(uint32(a[0])) })
	add("InitializeCriticalSection", func(a []uint64) uint64 { return h.InitializeCriticalSection(a[0]) })
	add("EnterCriticalSection", func(a []uint64) uint64 { return h.EnterCriticalSection(a[0]) })
	add("LeaveCriticalSection", func(a []uint64) uint64 { return h.LeaveCriticalSection(a[0]) })
	add("DeleteCriticalSection", func(a []uint64) uint64 { return h.DeleteCriticalSection(a[0]) })
}
