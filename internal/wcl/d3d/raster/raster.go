// Package raster implements the triangle scan-converter behind
// internal/wcl/d3d's D3D11/D3D12 device facades: viewport transform,
// backface culling, a depth buffer, and per-pixel shading through a
// pluggable vertex/pixel shader pair (either the fixed-function
// vertex-color path, or a DXBC-interpreted one). No path samples
// textures.
// Grounded on the DXGI desktop-capture family
// (internal/remote/desktop/dxgi_*_windows.go) for the shape of a thin
// Go facade presenting a typed resource/present pipeline — generalized
// here from "capture the screen into a texture" to "draw into a
// texture, then present it".
package raster

// InputVertex is one vertex attribute bundle before shading: a clip-
// space-bound position plus up to two generic attribute vectors
// (color, texcoord) passed through to the pixel shader unless the
// vertex shader remaps them.
type InputVertex struct {
	Position [4]float32
	Color    [4]float32
	TexCoord [2]float32
}

// ShadedVertex is a vertex after the vertex shader: a clip-space
// position (to be perspective-divided by the rasterizer) plus the
// varyings it interpolates across the triangle.
type ShadedVertex struct {
	ClipPos  [4]float32
	Color    [4]float32
	TexCoord [2]float32
}

// VertexShader transforms one InputVertex into a ShadedVertex.
type VertexShader func(InputVertex) ShadedVertex

// PixelInput is the per-pixel interpolated varyings a PixelShader
// receives, plus a texture sampler closure field. DrawTriangle never
// sets Sample, so it is always nil.
type PixelInput struct {
	Color    [4]float32
	TexCoord [2]float32
	Sample   func(u, v float32) [4]float32
}

// PixelShader computes one pixel's output color.
type PixelShader func(PixelInput) [4]float32

// DepthFunc selects the depth comparison this allows.
type DepthFunc int

const (
	DepthAlways DepthFunc = iota
	DepthLess
)

// CullMode selects backface culling.
type CullMode int

const (
	CullNone CullMode = iota
	CullBack
)

// Target is the render target + depth buffer pair a Rasterizer draws
// into. Color is RGBA8 (4 bytes/pixel, row-major); Depth is one
// float32 per pixel, or nil if no DSV is bound (depth test is then
// always-pass).
type Target struct {
	Width, Height int
	Color         []byte
	Depth         []float32
}

// Clear fills Color with c (each component 0..1) and, if Depth is
// non-nil, fills it with d.
func (t *Target) Clear(c [4]float32, d float32) {
	r, g, b, a := toByte(c[0]), toByte(c[1]), toByte(c[2]), toByte(c[3])
	for i := 0; i < t.Width*t.Height; i++ {
		t.Color[i*4+0] = r
		t.Color[i*4+1] = g
		t.Color[i*4+2] = b
		t.Color[i*4+3] = a
	}
	if t.Depth != nil {
		for i := range t.Depth {
			t.Depth[i] = d
		}
	}
}

func toByte(v float32) byte {
	if v <= 0 {
		return 0
	}
	if v >= 1 {
		return 255
	}
	return byte(v * 255)
}

// Viewport is the clip-to-screen transform, matching D3D11_VIEWPORT's
// fields this port uses.
type Viewport struct {
	X, Y, Width, Height float32
}

// Rasterizer draws triangle lists into a Target under a bound
// Viewport, DepthFunc, and CullMode. It holds no resource ownership —
// internal/wcl/d3d's context wires vertex/index buffers and shader
// programs into calls to DrawTriangle.
type Rasterizer struct {
	Target    *Target
	Viewport  Viewport
	DepthFunc DepthFunc
	Cull      CullMode
}

// DrawTriangle shades v0,v1,v2 through vs, clips/culls, and rasterizes
// the result into r.Target using ps for each covered pixel.
func (r *Rasterizer) DrawTriangle(v0, v1, v2 InputVertex, vs VertexShader, ps PixelShader) {
	s0 := vs(v0)
	s1 := vs(v1)
	s2 := vs(v2)

	// Perspective divide + viewport transform. A vertex behind the eye
	// (w<=0) degenerates the triangle to nothing rather than dividing
	// by a non-positive w, which is sufficient fidelity for this
	// port's software pipeline (no near-plane clipping).
	if s0.ClipPos[3] <= 0 || s1.ClipPos[3] <= 0 || s2.ClipPos[3] <= 0 {
		return
	}
	p0, w0 := r.toScreen(s0.ClipPos)
	p1, w1 := r.toScreen(s1.ClipPos)
	p2, w2 := r.toScreen(s2.ClipPos)

	area := edge(p0, p1, p2)
	if area == 0 {
		return
	}
	if r.Cull == CullBack && area < 0 {
		return
	}
	if r.Cull == CullNone && area < 0 {
		// Swap winding so the rest of the routine can assume a
		// consistent positive-area orientation for barycentric signs.
		p1, p2 = p2, p1
		s1, s2 = s2, s1
		w1, w2 = w2, w1
		area = -area
	}

	minX, minY, maxX, maxY := boundingBox(p0, p1, p2, r.Target.Width, r.Target.Height)
	for y := minY; y <= maxY; y++ {
		for x := minX; x <= maxX; x++ {
			pt := [2]float32{float32(x) + 0.5, float32(y) + 0.5}
			w0b := edge(p1, p2, pt)
			w1b := edge(p2, p0, pt)
			w2b := edge(p0, p1, pt)
			if w0b < 0 || w1b < 0 || w2b < 0 {
				continue
			}

			b0, b1, b2 := w0b/area, w1b/area, w2b/area
			invW := b0/w0 + b1/w1 + b2/w2
			depth := (b0*s0.ClipPos[2]/w0 + b1*s1.ClipPos[2]/w1 + b2*s2.ClipPos[2]/w2) / invW

			idx := y*r.Target.Width + x
			if r.Target.Depth != nil {
				switch r.DepthFunc {
				case DepthLess:
					if depth >= r.Target.Depth[idx] {
						continue
					}
				}
			}

			col := lerpColor(b0/w0, b1/w1, b2/w2, invW, s0.Color, s1.Color, s2.Color)
			uv := lerpUV(b0/w0, b1/w1, b2/w2, invW, s0.TexCoord, s1.TexCoord, s2.TexCoord)

			out := ps(PixelInput{Color: col, TexCoord: uv})
			sourceOver(r.Target.Color[idx*4:idx*4+4], out)

			if r.Target.Depth != nil {
				r.Target.Depth[idx] = depth
			}
		}
	}
}

func (r *Rasterizer) toScreen(clip [4]float32) ([2]float32, float32) {
	w := clip[3]
	ndcX := clip[0] / w
	ndcY := clip[1] / w
	x := r.Viewport.X + (ndcX*0.5+0.5)*r.Viewport.Width
	y := r.Viewport.Y + (1-(ndcY*0.5+0.5))*r.Viewport.Height
	return [2]float32{x, y}, w
}

func edge(a, b, c [2]float32) float32 {
	return (c[0]-a[0])*(b[1]-a[1]) - (c[1]-a[1])*(b[0]-a[0])
}

func boundingBox(p0, p1, p2 [2]float32, width, height int) (minX, minY, maxX, maxY int) {
	minXf := minF(p0[0], minF(p1[0], p2[0]))
	minYf := minF(p0[1], minF(p1[1], p2[1]))
	maxXf := maxF(p0[0], maxF(p1[0], p2[0]))
	maxYf := maxF(p0[1], maxF(p1[1], p2[1]))

	minX, minY = int(minXf), int(minYf)
	maxX, maxY = int(maxXf)+1, int(maxYf)+1
	if minX < 0 {
		minX = 0
	}
	if minY < 0 {
		minY = 0
	}
	if maxX > width-1 {
		maxX = width - 1
	}
	if maxY > height-1 {
		maxY = height - 1
	}
	return
}

func minF(a, b float32) float32 {
	if a < b {
		return a
	}
	return b
}

func maxF(a, b float32) float32 {
	if a > b {
		return a
	}
	return b
}

func lerpColor(b0, b1, b2, invW float32, c0, c1, c2 [4]float32) [4]float32 {
	var out [4]float32
	for i := 0; i < 4; i++ {
		out[i] = (b0*c0[i] + b1*c1[i] + b2*c2[i]) / invW
	}
	return out
}

func lerpUV(b0, b1, b2, invW float32, t0, t1, t2 [2]float32) [2]float32 {
	return [2]float32{
		(b0*t0[0] + b1*t1[0] + b2*t2[0]) / invW,
		(b0*t0[1] + b1*t1[1] + b2*t2[1]) / invW,
	}
}

// sourceOver blends out (0..1 components, straight alpha) over the
// RGBA8 pixel at dst as out*a + dst*(1-a). Unlike the compositor's blend
// (internal/compositor/render), which adds the source unscaled, the
// source color here is multiplied by its alpha.
func sourceOver(dst []byte, out [4]float32) {
	sa := out[3]
	if sa <= 0 {
		return
	}
	if sa >= 1 {
		dst[0] = toByte(out[0])
		dst[1] = toByte(out[1])
		dst[2] = toByte(out[2])
		dst[3] = 255
		return
	}
	for i := 0; i < 3; i++ {
		s := out[i] * sa
		d := float32(dst[i]) / 255 * (1 - sa)
		dst[i] = toByte(s + d)
	}
	dst[3] = 255
}
