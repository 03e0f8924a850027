package winabi

import "fmt"

// Export is a single resolved import-table entry: a DLL function bound
// to a Go implementation the PE boundary trampoline can invoke.
type Export struct {
	DLL     string
	Name    string
	Ordinal uint16
	Fn      func(args []uint64) uint64
}

// stubCallBase is the synthetic address space exports are assigned
// into. It is chosen well outside any real loaded image's address
// range so a stub address can never collide with mapped image memory.
// Lookup maps such an address back to its Export, but no code at these
// addresses is mapped and the pe trampoline does not intercept them, so
// a native call through an IAT slot does not reach the Go stub.
const stubCallBase = uint64(0x7FFF_0000_0000)

// StubRegistry is the in-process table of DLL stubs the import
// resolver binds against, grounded on the provider-registry
// pattern (internal/patching.Provider + a registry keyed by ID): here
// the registry is keyed by (dll_name, symbol_name) instead of a
// provider ID, and each stub DLL package calls Register once at
// process init to populate its export table. Every registered export
// is also assigned a synthetic address in the IAT slot it resolves
// to, so the loaded image calls it exactly like any other imported
// function pointer.
type StubRegistry struct {
	byNameOrdinal map[string]uint64
	byAddr        map[uint64]*Export
	next          uint64
}

// NewStubRegistry returns an empty registry.
func NewStubRegistry() *StubRegistry {
	return &StubRegistry{
		byNameOrdinal: make(map[string]uint64),
		byAddr:        make(map[uint64]*Export),
		next:          stubCallBase,
	}
}

func key(dll, name string, ordinal uint16) string {
	if name != "" {
		return dll + "!" + name
	}
	return fmt.Sprintf("%s!#%d", dll, ordinal)
}

// Add registers one export. A second Add for the same (dll, name)
// overwrites the first, so a host can layer test doubles over the
// default registry.
func (r *StubRegistry) Add(e Export) {
	addr := r.next
	r.next += 16 // leave room, never reused across the process lifetime
	k := key(e.DLL, e.Name, e.Ordinal)
	r.byNameOrdinal[k] = addr
	r.byAddr[addr] = &e
}

// Resolve looks up an import by DLL and symbol name, returning the
// synthetic call address the PE loader writes into the IAT.
func (r *StubRegistry) Resolve(dll, name string) (uint64, bool) {
	addr, ok := r.byNameOrdinal[key(dll, name, 0)]
	return addr, ok
}

// ResolveOrdinal looks up an import by DLL and ordinal.
func (r *StubRegistry) ResolveOrdinal(dll string, ordinal uint16) (uint64, bool) {
	addr, ok := r.byNameOrdinal[key(dll, "", ordinal)]
	return addr, ok
}

// Lookup resolves a synthetic call address back to the Export the
// trampoline should invoke instead of executing native code at it.
func (r *StubRegistry) Lookup(addr uint64) (*Export, bool) {
	e, ok := r.byAddr[addr]
	return e, ok
}
