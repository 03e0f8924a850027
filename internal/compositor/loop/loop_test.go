package loop

import (
	"testing"

	"github.com/citc-os/workstation/internal/cdp/server"
	"github.com/citc-os/workstation/internal/compositor/fbdev"
	"github.com/citc-os/workstation/internal/compositor/render"
)

func TestRunFrameSkipsWhenNoDamage(t *testing.T) {
	s := server.New(320, 240)
	dev := fbdev.NewHeadless(320, 240)
	c := &Compositor{Server: s, Device: dev, Renderer: &render.Renderer{ScreenW: 320, ScreenH: 240}}

	c.RunFrame()
	if dev.PresentCount != 0 {
		t.Fatalf("expected no present when damage is empty, got %d", dev.PresentCount)
	}
}

func TestRunFramePresentsWhenDamaged(t *testing.T) {
	s := server.New(320, 240)
	dev := fbdev.NewHeadless(320, 240)
	c := &Compositor{Server: s, Device: dev, Renderer: &render.Renderer{ScreenW: 320, ScreenH: 240}}

	s.Damage.AddFull()
	c.RunFrame()

	if dev.PresentCount != 1 {
		t.Fatalf("expected one present, got %d", dev.PresentCount)
	}
	if s.Damage.HasAny() {
		t.Fatal("expected damage to be reset after a frame")
	}
}

func TestRunFramePresentsWithNoSurfaces(t *testing.T) {
	s := server.New(320, 240)
	dev := fbdev.NewHeadless(320, 240)
	c := &Compositor{Server: s, Device: dev, Renderer: &render.Renderer{ScreenW: 320, ScreenH: 240}}

	// No surface exists, so the renderer returns no FRAME_DONE IDs; full
	// damage alone is still enough for RunFrame to present.
	s.Damage.AddFull()
	c.RunFrame()
	if dev.PresentCount != 1 {
		t.Fatalf("expected a present even with no surfaces, got %d", dev.PresentCount)
	}
}
