package pe

import (
	"encoding/binary"
	"testing"
)

// buildMinimalImage constructs a tiny valid PE32+ image with one .text
// section and one import (kernel32!ExitProcess), enough to exercise
// Load end to end without a real linker.
func buildMinimalImage(t *testing.T) []byte {
	t.Helper()

	const (
		imageBase    = 0x140000000
		textRVA      = 0x1000
		importDirRVA = 0x2000
		iatRVA       = 0x2100
		nameRVA      = 0x2200
	)

	buf := make([]byte, 0x3000)

	// DOS header
	binary.LittleEndian.PutUint16(buf[0:2], dosSignature)
	binary.LittleEndian.PutUint32(buf[0x3C:0x40], 0x80)

	peOff := uint32(0x80)
	binary.LittleEndian.PutUint32(buf[peOff:peOff+4], peSignature)

	coffOff := peOff + 4
	binary.LittleEndian.PutUint16(buf[coffOff:coffOff+2], machineAMD64)
	binary.LittleEndian.PutUint16(buf[coffOff+2:coffOff+4], 1) // one section
	sizeOptHeader := uint16(240)
	binary.LittleEndian.PutUint16(buf[coffOff+16:coffOff+18], sizeOptHeader)

	optOff := coffOff + 20
	binary.LittleEndian.PutUint16(buf[optOff:optOff+2], 0x20B) // PE32+
	binary.LittleEndian.PutUint32(buf[optOff+16:optOff+20], textRVA)  // entry point
	binary.LittleEndian.PutUint64(buf[optOff+24:optOff+32], imageBase)
	binary.LittleEndian.PutUint32(buf[optOff+56:optOff+60], 0x3000) // size of image
	binary.LittleEndian.PutUint32(buf[optOff+108:optOff+112], 16)   // number of RVAs and sizes

	dirsOff := optOff + 112
	// import directory = directory index 1
	binary.LittleEndian.PutUint32(buf[dirsOff+8:dirsOff+12], importDirRVA)
	binary.LittleEndian.PutUint32(buf[dirsOff+12:dirsOff+16], 20)

	sectionTableOff := optOff + uint32(sizeOptHeader)
	copy(buf[sectionTableOff:sectionTableOff+8], []byte(".text\x00\x00\x00"))
	binary.LittleEndian.PutUint32(buf[sectionTableOff+8:sectionTableOff+12], 0x2000)    // virtual size
	binary.LittleEndian.PutUint32(buf[sectionTableOff+12:sectionTableOff+16], textRVA)  // virtual address
	binary.LittleEndian.PutUint32(buf[sectionTableOff+16:sectionTableOff+20], 0x2000)   // size of raw data
	binary.LittleEndian.PutUint32(buf[sectionTableOff+20:sectionTableOff+24], textRVA)  // ptr to raw data (identity mapped for the test)
	binary.LittleEndian.PutUint32(buf[sectionTableOff+36:sectionTableOff+40], imageScnMemExecute|imageScnMemRead)

	// import descriptor table, one entry + null terminator
	binary.LittleEndian.PutUint32(buf[importDirRVA:importDirRVA+4], iatRVA) // OriginalFirstThunk == FirstThunk (no hint table)
	binary.LittleEndian.PutUint32(buf[importDirRVA+12:importDirRVA+16], nameRVA)
	binary.LittleEndian.PutUint32(buf[importDirRVA+16:importDirRVA+20], iatRVA)

	copy(buf[nameRVA:], []byte("kernel32.dll\x00"))

	// thunk: named import "ExitProcess" at nameRVA+0x20, hint/name entry
	hintNameRVA := nameRVA + 0x20
	copy(buf[hintNameRVA+2:], []byte("ExitProcess\x00"))
	binary.LittleEndian.PutUint64(buf[iatRVA:iatRVA+8], uint64(hintNameRVA))
	// thunk terminator already zero at iatRVA+8

	return buf
}

func TestLoadParsesMinimalImage(t *testing.T) {
	raw := buildMinimalImage(t)
	resolver := &fakeResolver{addrs: map[string]uint64{"kernel32.dll!ExitProcess": 0x7FFF00000010}}

	img, err := Load(raw, "hello.exe", resolver, LoadOptions{})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if len(img.Sections) != 1 || img.Sections[0].Name != ".text" {
		t.Fatalf("expected one .text section, got %+v", img.Sections)
	}
	if !img.Sections[0].Protection.Execute || !img.Sections[0].Protection.Read || img.Sections[0].Protection.Write {
		t.Fatalf(".text protection wrong: %+v", img.Sections[0].Protection)
	}
	if len(img.Imports) != 1 || img.Imports[0].Name != "ExitProcess" {
		t.Fatalf("expected one ExitProcess import, got %+v", img.Imports)
	}
	if img.Imports[0].ResolvedAddr != 0x7FFF00000010 {
		t.Fatalf("import not resolved to stub address: %#x", img.Imports[0].ResolvedAddr)
	}
}

func TestLoadRejectsBadDOSSignature(t *testing.T) {
	raw := buildMinimalImage(t)
	raw[0] = 0 // corrupt "MZ"
	if _, err := Load(raw, "bad.exe", &fakeResolver{addrs: map[string]uint64{}}, LoadOptions{}); err == nil {
		t.Fatal("expected error for bad DOS signature")
	}
}

func TestLoadFailsOnUnresolvedImportByDefault(t *testing.T) {
	raw := buildMinimalImage(t)
	resolver := &fakeResolver{addrs: map[string]uint64{}}
	if _, err := Load(raw, "hello.exe", resolver, LoadOptions{}); err == nil {
		t.Fatal("expected unresolved import to fail Load")
	}
	if _, err := Load(raw, "hello.exe", resolver, LoadOptions{AllowUnresolvedImports: true}); err != nil {
		t.Fatalf("expected AllowUnresolvedImports to let Load succeed, got %v", err)
	}
}
