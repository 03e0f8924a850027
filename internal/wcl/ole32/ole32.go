// Package ole32 implements a minimal in-process COM runtime: per-thread
// initialization tracking, a static CLSID-to-constructor registry, the
// task allocator, and the handful of pure GUID helpers a guest typically
// calls before creating a device. Grounded on the same provider-registry
// pattern internal/wcl/winabi.StubRegistry generalizes from
// internal/patching.Provider: here the registry is keyed by CLSID string
// instead of a provider ID, and each COM "class" registers a constructor
// closure instead of implementing an interface directly.
package ole32

import (
	"fmt"
	"strings"
	"sync"

	"github.com/citc-os/workstation/internal/logging"
	"github.com/citc-os/workstation/internal/wcl/winabi"
)

var log = logging.L("ole32")

// GUID is the canonical 16-byte Windows GUID, kept as its textual
// registry form here since every consumer in this port looks classes
// up by their canonical "{xxxxxxxx-...}" string rather than by raw
// bytes.
type GUID string

const (
	CLSIDDirectSound8 GUID = "{3901CC3F-84B5-4FA4-BA35-AA8172B8A09B}"
)

// Object is anything CoCreateInstance can hand back: an opaque COM
// pointer the guest invokes through a vtable. Concrete stub DLLs (e.g.
// dsound) implement this by returning their own ABI-compatible vtable
// pointer.
type Object interface {
	// Release decrements the object's refcount; when it reaches zero
	// the object tears down its resources. Returns the new refcount.
	Release() uint32
}

// ctor constructs a COM object for one CLSID.
type ctor func() (Object, error)

// Host owns the per-thread initialization flags, the CLSID registry,
// and the task allocator's bookkeeping (tracked only for symmetry with
// real CoTaskMemFree double-free detection; the allocator itself is
// just the Go heap).
type Host struct {
	mu sync.Mutex

	initialized map[uint32]bool // thread id -> CoInitializeEx already called
	registry    map[GUID]ctor

	objects *winabi.Table[Object] // OS-handle-range family: COM pointers exposed to the guest as opaque handles
	mem     winabi.ProcessMemory
}

// NewHost constructs an empty COM runtime.
func NewHost() *Host {
	return &Host{
		initialized: make(map[uint32]bool),
		registry:    make(map[GUID]ctor),
		objects:     winabi.NewTable[Object](winabi.RangeOSHandle),
	}
}

// Attach binds the host to a loaded image's address space.
func (h *Host) Attach(mem winabi.ProcessMemory) { h.mem = mem }

// RegisterClass installs a constructor for clsid. Stub DLLs (currently
// only dsound) call this once at wiring time rather than at package
// init, since the constructor usually needs a reference to that DLL's
// own Host.
func (h *Host) RegisterClass(clsid GUID, c func() (Object, error)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.registry[clsid] = c
}

// CoInitializeEx(LPVOID pvReserved, DWORD dwCoInit) — returns S_OK the
// first time a thread calls it, S_FALSE (already initialized) on
// re-entry, matching the COM re-entry invariant.
const (
	sOK     = 0
	sFalse  = 1
	eFail   = 0x80004005
	eNoIntf = 0x80004002
)

func (h *Host) CoInitializeEx(threadID uint32) uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.initialized[threadID] {
		return sFalse
	}
	h.initialized[threadID] = true
	return sOK
}

// CoUninitialize() returns the thread to the uninitialized state.
func (h *Host) CoUninitialize(threadID uint32) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.initialized, threadID)
}

// CoCreateInstance consults the CLSID registry; an unregistered CLSID
// is a Bad-argument error per the error taxonomy (no state
// change, E_NOINTERFACE-shaped return), not a crash.
func (h *Host) CoCreateInstance(clsid GUID) (winabi.Handle, uint64) {
	h.mu.Lock()
	c, ok := h.registry[clsid]
	h.mu.Unlock()
	if !ok {
		log.Warn("CoCreateInstance: unregistered CLSID", "clsid", string(clsid))
		return 0, eNoIntf
	}
	obj, err := c()
	if err != nil {
		log.Warn("CoCreateInstance: constructor failed", "clsid", string(clsid), logging.KeyError, err)
		return 0, eFail
	}
	h.mu.Lock()
	handle := h.objects.Alloc(&obj)
	h.mu.Unlock()
	return handle, sOK
}

// Release decrements the refcount of the object behind handle via its
// Release method, freeing the slot once the object reports zero.
func (h *Host) Release(handle winabi.Handle) uint32 {
	h.mu.Lock()
	slot, err := h.objects.Get(handle)
	h.mu.Unlock()
	if err != nil {
		return 0
	}
	count := (*slot).Release()
	if count == 0 {
		h.mu.Lock()
		h.objects.Free(handle)
		h.mu.Unlock()
	}
	return count
}

// Lookup returns the Object behind handle without touching its
// refcount, so a stub DLL that registered the constructor (dsound) can
// recover its own concrete type after CoCreateInstance.
func (h *Host) Lookup(handle winabi.Handle) (Object, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	slot, err := h.objects.Get(handle)
	if err != nil {
		return nil, false
	}
	return *slot, true
}

// CoTaskMemAlloc(SIZE_T cb) wraps the Go heap; the returned "pointer" is
// only ever passed back into CoTaskMemFree/Realloc by guest code that
// this port already controls (it is not dereferenced directly from
// native code), so a handle-table slot stands in for a real address.
func (h *Host) CoTaskMemAlloc(size uint32) winabi.Handle {
	buf := make([]byte, size)
	h.mu.Lock()
	defer h.mu.Unlock()
	obj := Object(memBlock{buf: buf})
	return h.objects.Alloc(&obj)
}

// CoTaskMemRealloc resizes the block behind handle, preserving its
// contents up to the smaller of the old and new sizes.
func (h *Host) CoTaskMemRealloc(handle winabi.Handle, newSize uint32) winabi.Handle {
	h.mu.Lock()
	slot, err := h.objects.Get(handle)
	if err != nil {
		h.mu.Unlock()
		return h.CoTaskMemAlloc(newSize)
	}
	mb, ok := (*slot).(memBlock)
	h.objects.Free(handle)
	h.mu.Unlock()
	if !ok {
		return h.CoTaskMemAlloc(newSize)
	}
	grown := make([]byte, newSize)
	copy(grown, mb.buf)
	h.mu.Lock()
	defer h.mu.Unlock()
	obj := Object(memBlock{buf: grown})
	return h.objects.Alloc(&obj)
}

// CoTaskMemFree releases the block behind handle. Freeing an invalid
// handle is a no-op, matching real CoTaskMemFree(NULL) semantics.
func (h *Host) CoTaskMemFree(handle winabi.Handle) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.objects.Free(handle)
}

// memBlock is the Object wrapper for a raw CoTaskMem allocation; its
// Release is a no-op since CoTaskMemFree, not refcounting, governs its
// lifetime.
type memBlock struct {
	buf []byte
}

func (memBlock) Release() uint32 { return 0 }

// IsEqualGUID compares two GUIDs case-insensitively, since guest code
// and this registry may format the braces/hex differently.
func IsEqualGUID(a, b GUID) bool {
	return strings.EqualFold(string(a), string(b))
}

// StringFromGUID2 formats g into its canonical "{xxxxxxxx-...}" textual
// form. Since GUID is already stored in that form in this port, this is
// the identity transform with a sanity check.
func StringFromGUID2(g GUID) (string, error) {
	s := string(g)
	if !strings.HasPrefix(s, "{") || !strings.HasSuffix(s, "}") {
		return "", fmt.Errorf("ole32: malformed GUID %q", s)
	}
	return s, nil
}

// CLSIDFromString parses a "{xxxxxxxx-...}" string into a GUID,
// validating only the brace shape (full hex-digit validation is not
// required by any guest this port targets).
func CLSIDFromString(s string) (GUID, error) {
	if !strings.HasPrefix(s, "{") || !strings.HasSuffix(s, "}") {
		return "", fmt.Errorf("ole32: malformed CLSID string %q", s)
	}
	return GUID(s), nil
}

// Register installs every ole32 export into reg under the "ole32" DLL
// name. Exports that take or return a GUID accept the guest's textual
// CLSID buffer directly rather than parsing raw GUID bytes — this port
// never links against a guest that passes binary CLSIDs by value
// across the ABI boundary in a way this trampoline would need to
// decode structurally.
func (h *Host) Register(reg *winabi.StubRegistry) {
	add := func(name string, fn func(args []uint64) uint64) {
		reg.Add(winabi.Export{DLL: "ole32", Name: name, Fn: fn})
	}
	add("CoInitializeEx", func(a []uint64) uint64 { return h.CoInitializeEx(0) })
	add("CoUninitialize", func(a []uint64) uint64 { h.CoUninitialize(0); return 0 })
	add("CoCreateInstance", func(a []uint64) uint64 {
		clsid := GUID(winabi.ReadCStringA(h.mem, a[0]))
		handle, hr := h.CoCreateInstance(clsid)
		if hr == sOK && a[4] != 0 {
			winabi.WriteUint64(h.mem, a[4], uint64(handle))
		}
		return hr
	})
	add("CoTaskMemAlloc", func(a []uint64) uint64 { return uint64(h.CoTaskMemAlloc(uint32(a[0]))) })
	add("CoTaskMemRealloc", func(a []uint64) uint64 {
		return uint64(h.CoTaskMemRealloc(winabi.Handle(a[0]), uint32(a[1])))
	})
	add("CoTaskMemFree", func(a []uint64) uint64 { h.CoTaskMemFree(winabi.Handle(a[0])); return 0 })
}
