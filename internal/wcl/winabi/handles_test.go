package winabi

import "testing"

func TestAllocReturnsHandleInFamilyRange(t *testing.T) {
	tbl := NewTable[int](RangeHWND)
	v := 42
	h := tbl.Alloc(&v)
	if h < RangeHWND || h >= RangeHDC {
		t.Fatalf("handle %#x escaped HWND range", uint64(h))
	}
}

func TestGetRoundTrips(t *testing.T) {
	tbl := NewTable[string](RangeOSHandle)
	s := "payload"
	h := tbl.Alloc(&s)

	got, err := tbl.Get(h)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if *got != "payload" {
		t.Fatalf("got %q", *got)
	}
}

func TestGetRejectsForeignFamilyHandle(t *testing.T) {
	tbl := NewTable[int](RangeHWND)
	v := 1
	tbl.Alloc(&v)

	_, err := tbl.Get(RangeGDIObject)
	if err == nil {
		t.Fatal("expected an error decoding a handle from a different family")
	}
}

func TestFreeThenGetIsInvalid(t *testing.T) {
	tbl := NewTable[int](RangeHDC)
	v := 7
	h := tbl.Alloc(&v)
	tbl.Free(h)

	if _, err := tbl.Get(h); err == nil {
		t.Fatal("expected error after Free")
	}
}

func TestAllocReusesFreedSlot(t *testing.T) {
	tbl := NewTable[int](RangeGDIObject)
	a, b := 1, 2
	h1 := tbl.Alloc(&a)
	tbl.Free(h1)
	h2 := tbl.Alloc(&b)
	if h1 != h2 {
		t.Fatalf("expected freed slot to be reused: h1=%#x h2=%#x", uint64(h1), uint64(h2))
	}
}
