package damage

import "testing"

func TestIdleTrackerHasNoDamage(t *testing.T) {
	tr := New()
	if tr.HasAny() {
		t.Fatal("new tracker should have no damage")
	}
}

func TestAddRectAccumulates(t *testing.T) {
	tr := New()
	tr.AddRect(0, 0, 10, 10)
	tr.AddRect(5, 5, 20, 20)
	if !tr.HasAny() {
		t.Fatal("expected damage after AddRect")
	}
	if got := len(tr.Rects()); got != 2 {
		t.Fatalf("rects = %d, want 2", got)
	}
}

func TestOverflowCollapsesToFull(t *testing.T) {
	tr := New()
	for i := 0; i < maxRects+5; i++ {
		tr.AddRect(i, i, 1, 1)
	}
	if !tr.Full() {
		t.Fatal("expected tracker to collapse to full after overflow")
	}
}

// TestAddFullThenAddRectIsIdempotent covers the damage-idempotence
// invariant: add_full() followed by any sequence of add_rect leaves
// has_any()==true, and reset() returns to idle.
func TestAddFullThenAddRectIsIdempotent(t *testing.T) {
	tr := New()
	tr.AddFull()
	tr.AddRect(1, 1, 1, 1)
	tr.AddRect(2, 2, 2, 2)

	if !tr.Full() {
		t.Fatal("expected Full to remain true after AddRect")
	}
	if len(tr.Rects()) != 0 {
		t.Fatal("expected no discrete rects once full")
	}
	if !tr.HasAny() {
		t.Fatal("expected HasAny true while full")
	}

	tr.Reset()
	if tr.HasAny() {
		t.Fatal("expected idle state after Reset")
	}
	if tr.Full() {
		t.Fatal("expected Full to clear after Reset")
	}
}

func TestZeroSizedRectIgnored(t *testing.T) {
	tr := New()
	tr.AddRect(0, 0, 0, 5)
	tr.AddRect(0, 0, 5, 0)
	if tr.HasAny() {
		t.Fatal("zero-area rects should not register as damage")
	}
}
