package raster

import "testing"

func fixedVS(v InputVertex) ShadedVertex {
	return ShadedVertex{ClipPos: v.Position, Color: v.Color, TexCoord: v.TexCoord}
}

func colorPS(in PixelInput) [4]float32 { return in.Color }

func newTarget(w, h int) *Target {
	return &Target{Width: w, Height: h, Color: make([]byte, w*h*4), Depth: make([]float32, w*h)}
}

func TestDrawTriangleFillsCenterPixel(t *testing.T) {
	tgt := newTarget(8, 8)
	tgt.Clear([4]float32{0, 0, 0, 1}, 1)

	r := &Rasterizer{Target: tgt, Viewport: Viewport{Width: 8, Height: 8}, Cull: CullNone}
	red := [4]float32{1, 0, 0, 1}
	v0 := InputVertex{Position: [4]float32{-1, -1, 0, 1}, Color: red}
	v1 := InputVertex{Position: [4]float32{3, -1, 0, 1}, Color: red}
	v2 := InputVertex{Position: [4]float32{-1, 3, 0, 1}, Color: red}
	r.DrawTriangle(v0, v1, v2, fixedVS, colorPS)

	idx := (4*8 + 4) * 4
	if tgt.Color[idx] != 255 || tgt.Color[idx+1] != 0 {
		t.Fatalf("center pixel = %v, want opaque red", tgt.Color[idx:idx+4])
	}
}

func TestCullBackDropsBackfacingTriangle(t *testing.T) {
	tgt := newTarget(8, 8)
	tgt.Clear([4]float32{0, 0, 0, 0}, 1)

	r := &Rasterizer{Target: tgt, Viewport: Viewport{Width: 8, Height: 8}, Cull: CullBack}
	red := [4]float32{1, 0, 0, 1}
	// Clockwise in screen space after the viewport's Y-flip becomes a
	// backfacing (negative-area) triangle for CullBack.
	v0 := InputVertex{Position: [4]float32{-1, 3, 0, 1}, Color: red}
	v1 := InputVertex{Position: [4]float32{3, -1, 0, 1}, Color: red}
	v2 := InputVertex{Position: [4]float32{-1, -1, 0, 1}, Color: red}
	r.DrawTriangle(v0, v1, v2, fixedVS, colorPS)

	idx := (4*8 + 4) * 4
	if tgt.Color[idx+3] != 0 {
		t.Fatalf("expected backfacing triangle to be culled, alpha=%d", tgt.Color[idx+3])
	}
}

func TestDepthTestRejectsFartherPixel(t *testing.T) {
	tgt := newTarget(4, 4)
	tgt.Clear([4]float32{0, 0, 0, 1}, 1)
	// Pre-seed the depth buffer as if something nearer already drew here.
	for i := range tgt.Depth {
		tgt.Depth[i] = 0.1
	}

	r := &Rasterizer{Target: tgt, Viewport: Viewport{Width: 4, Height: 4}, DepthFunc: DepthLess, Cull: CullNone}
	red := [4]float32{1, 0, 0, 1}
	v0 := InputVertex{Position: [4]float32{-1, -1, 0.9, 1}, Color: red}
	v1 := InputVertex{Position: [4]float32{3, -1, 0.9, 1}, Color: red}
	v2 := InputVertex{Position: [4]float32{-1, 3, 0.9, 1}, Color: red}
	r.DrawTriangle(v0, v1, v2, fixedVS, colorPS)

	idx := (2*4 + 2) * 4
	if tgt.Color[idx] == 255 {
		t.Fatal("expected depth test to reject a pixel farther than the seeded depth")
	}
}

func TestSourceOverAlphaZeroIsNoOp(t *testing.T) {
	dst := []byte{10, 20, 30, 255}
	sourceOver(dst, [4]float32{1, 1, 1, 0})
	if dst[0] != 10 || dst[1] != 20 || dst[2] != 30 {
		t.Fatalf("alpha=0 blend mutated destination: %v", dst)
	}
}

func TestSourceOverAlphaOneReplaces(t *testing.T) {
	dst := []byte{10, 20, 30, 255}
	sourceOver(dst, [4]float32{1, 0, 0, 1})
	if dst[0] != 255 || dst[1] != 0 || dst[2] != 0 {
		t.Fatalf("alpha=1 blend = %v, want opaque red", dst)
	}
}
