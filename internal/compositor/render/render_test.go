package render

import (
	"testing"

	"github.com/citc-os/workstation/internal/cdp/wire"
	"github.com/citc-os/workstation/internal/compositor/damage"
	"github.com/citc-os/workstation/internal/compositor/fbdev"
	"github.com/citc-os/workstation/internal/compositor/wm"
)

type fakeSurfaces map[int]SurfaceView

func (f fakeSurfaces) Surface(id int) (SurfaceView, bool) {
	sv, ok := f[id]
	return sv, ok
}

func solidXRGB(w, h int, b, g, r byte) []byte {
	out := make([]byte, w*h*4)
	for i := 0; i < w*h; i++ {
		out[i*4+0] = b
		out[i*4+1] = g
		out[i*4+2] = r
		out[i*4+3] = 0xFF
	}
	return out
}

func TestOpaqueXRGBSurfacePaintsExactPixels(t *testing.T) {
	fb := fbdev.NewHeadless(320, 240)
	back, _ := fb.BeginFrame()

	tbl := wm.NewTable()
	id := tbl.Create(wm.Geometry{X: 10, Y: 10, W: 100, H: 80 + wm.TitlebarHeight}, "", 0, wm.External, 1)
	_ = id

	surfaces := fakeSurfaces{
		1: {Pix: solidXRGB(100, 80, 0x00, 0x00, 0xFF), W: 100, H: 80, Stride: 400, Format: wire.FormatXRGB8888, Committed: true},
	}

	r := &Renderer{ScreenW: 320, ScreenH: 240}
	r.Frame(back, tbl, damage.New(), surfaces, Cursor{})

	off := (10+wm.TitlebarHeight)*back.StrideBytes + 10*4
	if back.Pix[off+2] != 0xFF {
		t.Fatalf("expected red channel 0xFF at surface origin, got %#x", back.Pix[off+2])
	}
}

func TestAlphaZeroLeavesDestinationUnchanged(t *testing.T) {
	fb := fbdev.NewHeadless(64, 64)
	back, _ := fb.BeginFrame()
	for i := range back.Pix {
		back.Pix[i] = 0x77
	}

	argb := make([]byte, 4*4)
	argb[0], argb[1], argb[2], argb[3] = 0x00, 0x00, 0xFF, 0x00 // alpha 0

	before := append([]byte(nil), back.Pix[:4]...)
	blitARGBOver(back, 0, 0, 1, 1, argb, 4)

	for i := 0; i < 4; i++ {
		if back.Pix[i] != before[i] {
			t.Fatalf("alpha=0 blend must leave destination unchanged: byte %d changed %x -> %x", i, before[i], back.Pix[i])
		}
	}
}

func TestAlphaFullReplacesDestination(t *testing.T) {
	fb := fbdev.NewHeadless(64, 64)
	back, _ := fb.BeginFrame()
	for i := range back.Pix {
		back.Pix[i] = 0x11
	}

	argb := []byte{0xAA, 0xBB, 0xCC, 0xFF}
	blitARGBOver(back, 0, 0, 1, 1, argb, 4)

	if back.Pix[0] != 0xAA || back.Pix[1] != 0xBB || back.Pix[2] != 0xCC || back.Pix[3] != 0xFF {
		t.Fatalf("alpha=0xFF blend should replace bit-for-bit, got %v", back.Pix[:4])
	}
}
