package fbdev

import "testing"

func TestHeadlessBeginFrameReturnsBackBuffer(t *testing.T) {
	d := NewHeadless(64, 48)
	back, err := d.BeginFrame()
	if err != nil {
		t.Fatalf("BeginFrame: %v", err)
	}
	if back == d.Front() {
		t.Fatal("back buffer must not be the front buffer")
	}
}

func TestHeadlessPresentSwapsFrontAndBack(t *testing.T) {
	d := NewHeadless(64, 48)
	back, _ := d.BeginFrame()
	back.Pix[0] = 0xAB

	if err := d.Present(); err != nil {
		t.Fatalf("Present: %v", err)
	}
	if d.Front().Pix[0] != 0xAB {
		t.Fatal("expected written buffer to become the front buffer after Present")
	}
	if d.PresentCount != 1 {
		t.Fatalf("PresentCount = %d, want 1", d.PresentCount)
	}
}

func TestHeadlessPresentFailureIsRecoverable(t *testing.T) {
	d := NewHeadless(64, 48)
	d.FailNextPresent = true
	if err := d.Present(); err == nil {
		t.Fatal("expected simulated present failure")
	}
	// A subsequent present should succeed, matching the "failure
	// during present is logged and retried on the next frame".
	if err := d.Present(); err != nil {
		t.Fatalf("Present after failure: %v", err)
	}
}
