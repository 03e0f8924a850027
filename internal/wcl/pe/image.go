// Package pe parses a PE/COFF image, maps its sections into the host
// address space, applies base relocations, resolves its import table
// against a winabi.StubRegistry, and invokes its entry point.
//
// Nothing else in the tree parses PE directly, so this package follows
// the executor idiom instead (internal/executor/executor.go):
// its careful separation of "prepare" (validate, build argv/env) from
// "launch" (one syscall boundary, captured exit semantics) is mirrored
// here as "parse/validate" vs. "map/relocate/resolve/jump".
package pe

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/google/uuid"
)

const (
	dosSignature = 0x5A4D // "MZ"
	peSignature  = 0x00004550

	machineAMD64 = 0x8664

	imageScnMemExecute = 0x20000000
	imageScnMemRead    = 0x40000000
	imageScnMemWrite   = 0x80000000
)

// SectionProtection mirrors the target protection a section must end
// up with: .text=R-X, .rdata=R--, .data/.bss=RW-.
type SectionProtection struct {
	Read, Write, Execute bool
}

// Section is one loaded section: its virtual range within the image
// and the protection it must be adjusted to.
type Section struct {
	Name            string
	VirtualAddress  uint32
	VirtualSize     uint32
	RawData         []byte
	Protection      SectionProtection
}

// Import is one resolved (dll, symbol) -> IAT slot binding.
type Import struct {
	DLL          string
	Name         string
	Ordinal      uint16
	IATRVA       uint32
	ResolvedAddr uint64
}

// Image is a mapped, relocated, import-resolved PE image ready to jump
// into.
type Image struct {
	ProcessID   string // uuid v4, internal bookkeeping/log correlation only
	SourcePath  string

	Base          uint64
	PreferredBase uint64
	SizeOfImage   uint32
	EntryRVA      uint32

	Sections []Section
	Imports  []Import

	Memory []byte // the mapped region, length SizeOfImage, at Base
}

// AllowUnresolvedImports, when true, leaves unresolved imports' IAT
// slots at zero instead of failing Load — an explicit opt-out from the
// default that unresolved imports are fatal.
type LoadOptions struct {
	AllowUnresolvedImports bool
	PreferredLoadBase      uint64 // used when the image has no preferred base of its own
}

// Resolver looks up a stub implementation's address for (dll, name) or
// (dll, ordinal); internal/wcl/winabi.StubRegistry satisfies this.
type Resolver interface {
	Resolve(dll, name string) (addr uint64, ok bool)
	ResolveOrdinal(dll string, ordinal uint16) (addr uint64, ok bool)
}

// Load validates headers, maps sections, relocates, and resolves
// imports against resolver. It does not invoke the entry point —
// callers do that via a platform-specific trampoline so the calling
// convention stays isolated from parsing.
func Load(raw []byte, path string, resolver Resolver, opts LoadOptions) (*Image, error) {
	dosHeader, err := parseDOSHeader(raw)
	if err != nil {
		return nil, err
	}
	ntHeader, sections, err := parseNTHeaders(raw, dosHeader.peHeaderOffset)
	if err != nil {
		return nil, err
	}

	img := &Image{
		ProcessID:     uuid.NewString(),
		SourcePath:    path,
		PreferredBase: ntHeader.imageBase,
		SizeOfImage:   ntHeader.sizeOfImage,
		EntryRVA:      ntHeader.addressOfEntryPoint,
		Sections:      sections,
	}

	base := ntHeader.imageBase
	if opts.PreferredLoadBase != 0 {
		base = opts.PreferredLoadBase
	}
	img.Base = base

	img.Memory = make([]byte, ntHeader.sizeOfImage)
	for _, s := range sections {
		if s.VirtualAddress+uint32(len(s.RawData)) > uint32(len(img.Memory)) {
			return nil, fmt.Errorf("pe: section %q overruns image size", s.Name)
		}
		copy(img.Memory[s.VirtualAddress:], s.RawData)
		// the tail up to VirtualSize is already zero: make() zeros memory
	}

	if base != ntHeader.imageBase {
		if err := applyRelocations(img, raw, ntHeader, base); err != nil {
			return nil, fmt.Errorf("pe: relocations: %w", err)
		}
	}

	imports, err := parseImportDirectory(raw, img.Memory, ntHeader)
	if err != nil {
		return nil, fmt.Errorf("pe: import directory: %w", err)
	}
	img.Imports = imports

	if err := resolveImports(img, resolver, opts.AllowUnresolvedImports); err != nil {
		return nil, err
	}

	return img, nil
}

// Slice returns a view into the image's mapped memory at virtual
// address addr, satisfying winabi.ProcessMemory. addr is an absolute
// address (img.Base-relative), matching the pointers a loaded image's
// native code actually passes across the PE boundary.
func (img *Image) Slice(addr uint64, n int) []byte {
	if addr < img.Base {
		panic("pe: address below image base")
	}
	off := addr - img.Base
	if off+uint64(n) > uint64(len(img.Memory)) {
		panic("pe: address range outside mapped image")
	}
	return img.Memory[off : off+uint64(n)]
}

type dosHeaderInfo struct {
	peHeaderOffset uint32
}

func parseDOSHeader(raw []byte) (*dosHeaderInfo, error) {
	if len(raw) < 64 {
		return nil, fmt.Errorf("pe: image too small for DOS header")
	}
	if binary.LittleEndian.Uint16(raw[0:2]) != dosSignature {
		return nil, fmt.Errorf("pe: bad DOS signature")
	}
	peOff := binary.LittleEndian.Uint32(raw[0x3C:0x40])
	if int(peOff)+24 > len(raw) {
		return nil, fmt.Errorf("pe: PE header offset out of range")
	}
	return &dosHeaderInfo{peHeaderOffset: peOff}, nil
}

type ntHeaderInfo struct {
	machine             uint16
	numberOfSections    uint16
	sizeOfOptionalHeader uint16
	imageBase           uint64
	sizeOfImage         uint32
	addressOfEntryPoint uint32
	dataDirectories     [16]dataDirectory
}

type dataDirectory struct {
	VirtualAddress uint32
	Size           uint32
}

const (
	dirExport = 0
	dirImport = 1
	dirBaseReloc = 5
)

func parseNTHeaders(raw []byte, peOff uint32) (*ntHeaderInfo, []Section, error) {
	if binary.LittleEndian.Uint32(raw[peOff:peOff+4]) != peSignature {
		return nil, nil, fmt.Errorf("pe: bad PE signature")
	}
	coffOff := peOff + 4
	machine := binary.LittleEndian.Uint16(raw[coffOff : coffOff+2])
	if machine != machineAMD64 {
		return nil, nil, fmt.Errorf("pe: unsupported machine type %#x (only x86-64 supported)", machine)
	}
	numSections := binary.LittleEndian.Uint16(raw[coffOff+2 : coffOff+4])
	sizeOptHeader := binary.LittleEndian.Uint16(raw[coffOff+16 : coffOff+18])

	optOff := coffOff + 20
	magic := binary.LittleEndian.Uint16(raw[optOff : optOff+2])
	if magic != 0x20B {
		return nil, nil, fmt.Errorf("pe: expected PE32+ optional header, got magic %#x", magic)
	}

	imageBase := binary.LittleEndian.Uint64(raw[optOff+24 : optOff+32])
	sizeOfImage := binary.LittleEndian.Uint32(raw[optOff+56 : optOff+60])
	entryPoint := binary.LittleEndian.Uint32(raw[optOff+16 : optOff+20])

	numDirs := binary.LittleEndian.Uint32(raw[optOff+108 : optOff+112])
	dirsOff := optOff + 112
	var dirs [16]dataDirectory
	for i := 0; i < int(numDirs) && i < 16; i++ {
		off := dirsOff + uint32(i)*8
		dirs[i] = dataDirectory{
			VirtualAddress: binary.LittleEndian.Uint32(raw[off : off+4]),
			Size:           binary.LittleEndian.Uint32(raw[off+4 : off+8]),
		}
	}

	sectionTableOff := optOff + uint32(sizeOptHeader)
	sections := make([]Section, 0, numSections)
	for i := 0; i < int(numSections); i++ {
		off := sectionTableOff + uint32(i)*40
		if int(off)+40 > len(raw) {
			return nil, nil, fmt.Errorf("pe: section table overruns image")
		}
		name := bytes.TrimRight(raw[off:off+8], "\x00")
		virtualSize := binary.LittleEndian.Uint32(raw[off+8 : off+12])
		virtualAddr := binary.LittleEndian.Uint32(raw[off+12 : off+16])
		rawSize := binary.LittleEndian.Uint32(raw[off+16 : off+20])
		rawPtr := binary.LittleEndian.Uint32(raw[off+20 : off+24])
		characteristics := binary.LittleEndian.Uint32(raw[off+36 : off+40])

		if int(rawPtr)+int(rawSize) > len(raw) {
			return nil, nil, fmt.Errorf("pe: section %q raw data overruns image", name)
		}

		sections = append(sections, Section{
			Name:           string(name),
			VirtualAddress: virtualAddr,
			VirtualSize:    virtualSize,
			RawData:        raw[rawPtr : rawPtr+rawSize],
			Protection:     protectionFor(string(name), characteristics),
		})
	}

	return &ntHeaderInfo{
		machine: machine, numberOfSections: numSections, sizeOfOptionalHeader: sizeOptHeader,
		imageBase: imageBase, sizeOfImage: sizeOfImage, addressOfEntryPoint: entryPoint,
		dataDirectories: dirs,
	}, sections, nil
}

func protectionFor(name string, characteristics uint32) SectionProtection {
	switch name {
	case ".text":
		return SectionProtection{Read: true, Execute: true}
	case ".rdata":
		return SectionProtection{Read: true}
	case ".data", ".bss":
		return SectionProtection{Read: true, Write: true}
	}
	return SectionProtection{
		Read:    characteristics&imageScnMemRead != 0,
		Write:   characteristics&imageScnMemWrite != 0,
		Execute: characteristics&imageScnMemExecute != 0,
	}
}
