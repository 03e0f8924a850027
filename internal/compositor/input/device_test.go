package input

import "testing"

func TestModifiersTracksShiftAndCtrlTransitions(t *testing.T) {
	var m Modifiers

	if !m.Apply(KeyLeftShift, true) {
		t.Fatal("expected shift key to be consumed as a modifier")
	}
	if !m.Shift {
		t.Fatal("expected Shift true after press")
	}
	if !m.Apply(KeyLeftShift, false) {
		t.Fatal("expected shift release to be consumed")
	}
	if m.Shift {
		t.Fatal("expected Shift false after release")
	}
}

func TestApplyIgnoresNonModifierKeys(t *testing.T) {
	var m Modifiers
	if m.Apply(30 /* 'a' */, true) {
		t.Fatal("non-modifier key should not be consumed")
	}
}

func TestTranslateBaseAndShift(t *testing.T) {
	aKey := 30
	if got := Translate(aKey, Modifiers{}); got != 'a' {
		t.Fatalf("got %q, want 'a'", got)
	}
	if got := Translate(aKey, Modifiers{Shift: true}); got != 'A' {
		t.Fatalf("got %q, want 'A'", got)
	}
}

// TestCtrlProducesControlCharacterRegardlessOfShift covers: "with Ctrl
// held and a letter, the emitted character is letter-'a'+1, regardless
// of shift."
func TestCtrlProducesControlCharacterRegardlessOfShift(t *testing.T) {
	cKey := 46 // 'c'
	want := byte('c' - 'a' + 1)

	if got := Translate(cKey, Modifiers{Ctrl: true}); got != want {
		t.Fatalf("Ctrl+c = %d, want %d", got, want)
	}
	if got := Translate(cKey, Modifiers{Ctrl: true, Shift: true}); got != want {
		t.Fatalf("Ctrl+Shift+c = %d, want %d", got, want)
	}
}

func TestTranslateUnknownKeyReturnsZero(t *testing.T) {
	if got := Translate(999, Modifiers{}); got != 0 {
		t.Fatalf("got %d, want 0 for unmapped key", got)
	}
}

func TestFakeDeviceDrainsQueue(t *testing.T) {
	f := &Fake{KindValue: Keyboard, Queue: []Event{{Type: EventKey, RawCode: 30, Pressed: true}}}
	evs, err := f.ReadEvents()
	if err != nil {
		t.Fatalf("ReadEvents: %v", err)
	}
	if len(evs) != 1 {
		t.Fatalf("got %d events, want 1", len(evs))
	}
	if more, _ := f.ReadEvents(); len(more) != 0 {
		t.Fatal("expected queue to be drained after first read")
	}
}
