//go:build linux && amd64

package pe

// callWin64 invokes fn as a Windows x86-64 function pointer: the four
// integer/pointer arguments go in RCX, RDX, R8, R9 with 32 bytes of
// caller-allocated shadow space, and the return value comes back in
// RAX. This is the one native boundary a from-scratch PE loader cannot
// borrow from any available library — nothing calls foreign-ABI
// function pointers this way, so the register shuffle is hand
// written in trampoline_amd64.s rather than adapted from existing
// source. It is intended for entry points that are themselves thin
// native shims (produced by the stub runtime's own tooling) that
// return promptly; it is not a general x86 interpreter.
func callWin64(fn uintptr, a0, a1, a2, a3 uint64) uint64

// CallEntry invokes the image's entry point under the Windows x86-64
// calling convention, passing up to four integer arguments. It jumps
// straight into native code: a call the entry makes through an IAT slot
// goes to the synthetic stub address written there, which is not mapped
// code and is not routed to the Go stub, so only an entry point that
// returns without calling an import runs to completion.
func (img *Image) CallEntry(a0, a1, a2, a3 uint64) uint64 {
	entry := uintptr(img.Base) + uintptr(img.EntryRVA)
	return callWin64(entry, a0, a1, a2, a3)
}
