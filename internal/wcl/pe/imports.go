package pe

import (
	"encoding/binary"
	"fmt"
	"strings"
)

const (
	ordinalFlag64 = uint64(1) << 63
)

// importDescriptor mirrors IMAGE_IMPORT_DESCRIPTOR.
type importDescriptor struct {
	originalFirstThunk uint32
	name               uint32
	firstThunk         uint32
}

func parseImportDirectory(raw []byte, mem []byte, nt *ntHeaderInfo) ([]Import, error) {
	dir := nt.dataDirectories[dirImport]
	if dir.Size == 0 {
		return nil, nil
	}

	var imports []Import
	off := dir.VirtualAddress
	for {
		if int(off)+20 > len(mem) {
			return nil, fmt.Errorf("import descriptor table out of range")
		}
		desc := importDescriptor{
			originalFirstThunk: binary.LittleEndian.Uint32(mem[off : off+4]),
			name:               binary.LittleEndian.Uint32(mem[off+12 : off+16]),
			firstThunk:         binary.LittleEndian.Uint32(mem[off+16 : off+20]),
		}
		if desc.originalFirstThunk == 0 && desc.name == 0 && desc.firstThunk == 0 {
			break // null terminator
		}

		dllName := readCString(mem, desc.name)

		thunkRVA := desc.originalFirstThunk
		if thunkRVA == 0 {
			thunkRVA = desc.firstThunk
		}
		iatRVA := desc.firstThunk

		for i := 0; ; i++ {
			thunkOff := thunkRVA + uint32(i)*8
			if int(thunkOff)+8 > len(mem) {
				return nil, fmt.Errorf("import thunk table out of range for %q", dllName)
			}
			thunk := binary.LittleEndian.Uint64(mem[thunkOff : thunkOff+8])
			if thunk == 0 {
				break
			}

			imp := Import{DLL: dllName, IATRVA: iatRVA + uint32(i)*8}
			if thunk&ordinalFlag64 != 0 {
				imp.Ordinal = uint16(thunk & 0xFFFF)
			} else {
				hintNameRVA := uint32(thunk)
				imp.Name = readCString(mem, hintNameRVA+2) // skip 2-byte hint
			}
			imports = append(imports, imp)
		}

		off += 20
	}
	return imports, nil
}

func readCString(mem []byte, rva uint32) string {
	if int(rva) >= len(mem) {
		return ""
	}
	end := rva
	for int(end) < len(mem) && mem[end] != 0 {
		end++
	}
	return string(mem[rva:end])
}

func resolveImports(img *Image, resolver Resolver, allowUnresolved bool) error {
	for i := range img.Imports {
		imp := &img.Imports[i]
		var addr uint64
		var ok bool
		if imp.Name != "" {
			addr, ok = resolver.Resolve(imp.DLL, imp.Name)
		} else {
			addr, ok = resolver.ResolveOrdinal(imp.DLL, imp.Ordinal)
		}
		if !ok {
			if allowUnresolved {
				continue
			}
			return fmt.Errorf("pe: unresolved import %s!%s", imp.DLL, importLabel(*imp))
		}
		imp.ResolvedAddr = addr
		if int(imp.IATRVA)+8 > len(img.Memory) {
			return fmt.Errorf("pe: IAT slot for %s!%s out of range", imp.DLL, importLabel(*imp))
		}
		binary.LittleEndian.PutUint64(img.Memory[imp.IATRVA:imp.IATRVA+8], addr)
	}
	return nil
}

func importLabel(imp Import) string {
	if imp.Name != "" {
		return imp.Name
	}
	return "#" + itoa(imp.Ordinal)
}

func itoa(v uint16) string {
	if v == 0 {
		return "0"
	}
	var b []byte
	for v > 0 {
		b = append([]byte{byte('0' + v%10)}, b...)
		v /= 10
	}
	return string(b)
}

// NormalizeDLLName lower-cases and strips a trailing ".dll" so lookups
// are forgiving of the casing and extension PE import tables carry.
func NormalizeDLLName(name string) string {
	n := strings.ToLower(name)
	n = strings.TrimSuffix(n, ".dll")
	return n
}
