package pe

import (
	"encoding/binary"
	"fmt"
)

const (
	relBasedAbsolute = 0
	relBasedDir64    = 10
)

// applyRelocations walks the .reloc directory and adjusts every
// DIR64 (IMAGE_REL_BASED_DIR64) slot in img.Memory by the delta
// between the preferred and actual load base. x86-64 images only use
// DIR64 entries; any other relocation type is rejected rather than
// silently skipped, since ignoring it would leave a dangling pointer.
func applyRelocations(img *Image, raw []byte, nt *ntHeaderInfo, newBase uint64) error {
	dir := nt.dataDirectories[dirBaseReloc]
	if dir.Size == 0 {
		return fmt.Errorf("image has no relocation directory but needs rebasing")
	}
	delta := int64(newBase) - int64(nt.imageBase)

	mem := img.Memory
	off := dir.VirtualAddress
	end := dir.VirtualAddress + dir.Size
	for off < end {
		if int(off)+8 > len(mem) {
			return fmt.Errorf("relocation block header out of range")
		}
		pageRVA := binary.LittleEndian.Uint32(mem[off : off+4])
		blockSize := binary.LittleEndian.Uint32(mem[off+4 : off+8])
		if blockSize < 8 {
			return fmt.Errorf("relocation block size too small")
		}
		numEntries := (blockSize - 8) / 2
		for i := uint32(0); i < numEntries; i++ {
			entryOff := off + 8 + i*2
			entry := binary.LittleEndian.Uint16(mem[entryOff : entryOff+2])
			relType := entry >> 12
			pageOffset := entry & 0xFFF

			switch relType {
			case relBasedAbsolute:
				// padding entry, no-op
			case relBasedDir64:
				addr := pageRVA + uint32(pageOffset)
				if int(addr)+8 > len(mem) {
					return fmt.Errorf("relocation target out of range")
				}
				orig := binary.LittleEndian.Uint64(mem[addr : addr+8])
				binary.LittleEndian.PutUint64(mem[addr:addr+8], uint64(int64(orig)+delta))
			default:
				return fmt.Errorf("unsupported relocation type %d", relType)
			}
		}
		off += blockSize
	}
	return nil
}
