package ole32

import "testing"

// TestCoInitializeExReentry covers the COM re-entry invariant:
// two consecutive CoInitializeEx calls on the same thread return "ok"
// then "already initialized", and CoUninitialize returns to the
// uninitialized state.
func TestCoInitializeExReentry(t *testing.T) {
	h := NewHost()
	if got := h.CoInitializeEx(1); got != sOK {
		t.Fatalf("first CoInitializeEx = %d, want sOK", got)
	}
	if got := h.CoInitializeEx(1); got != sFalse {
		t.Fatalf("second CoInitializeEx = %d, want sFalse", got)
	}
	h.CoUninitialize(1)
	if got := h.CoInitializeEx(1); got != sOK {
		t.Fatalf("CoInitializeEx after uninitialize = %d, want sOK", got)
	}
}

func TestCoInitializeExPerThread(t *testing.T) {
	h := NewHost()
	h.CoInitializeEx(1)
	if got := h.CoInitializeEx(2); got != sOK {
		t.Fatalf("different thread should initialize independently, got %d", got)
	}
}

type fakeObject struct{ released bool }

func (f *fakeObject) Release() uint32 {
	f.released = true
	return 0
}

func TestCoCreateInstanceUnregisteredCLSID(t *testing.T) {
	h := NewHost()
	_, hr := h.CoCreateInstance(GUID("{00000000-0000-0000-0000-000000000000}"))
	if hr != eNoIntf {
		t.Fatalf("hr = %#x, want E_NOINTERFACE", hr)
	}
}

func TestCoCreateInstanceRegistered(t *testing.T) {
	h := NewHost()
	h.RegisterClass(CLSIDDirectSound8, func() (Object, error) {
		return &fakeObject{}, nil
	})
	handle, hr := h.CoCreateInstance(CLSIDDirectSound8)
	if hr != sOK {
		t.Fatalf("hr = %#x, want sOK", hr)
	}
	if handle == 0 {
		t.Fatal("expected nonzero handle")
	}
	if got := h.Release(handle); got != 0 {
		t.Fatalf("Release = %d, want 0", got)
	}
}

func TestIsEqualGUIDCaseInsensitive(t *testing.T) {
	a := GUID("{3901CC3F-84B5-4FA4-BA35-AA8172B8A09B}")
	b := GUID("{3901cc3f-84b5-4fa4-ba35-aa8172b8a09b}")
	if !IsEqualGUID(a, b) {
		t.Fatal("expected case-insensitive GUID equality")
	}
}

func TestCLSIDFromStringRejectsMalformed(t *testing.T) {
	if _, err := CLSIDFromString("not-a-guid"); err == nil {
		t.Fatal("expected error for malformed CLSID string")
	}
}

func TestCoTaskMemRoundTrip(t *testing.T) {
	h := NewHost()
	handle := h.CoTaskMemAlloc(16)
	grown := h.CoTaskMemRealloc(handle, 32)
	if grown == 0 {
		t.Fatal("expected nonzero handle after realloc")
	}
	h.CoTaskMemFree(grown)
	h.CoTaskMemFree(0) // freeing an invalid handle must not panic
}
