package d3d

import (
	"encoding/binary"
	"math"

	"github.com/citc-os/workstation/internal/wcl/d3d/dxbc"
	"github.com/citc-os/workstation/internal/wcl/d3d/raster"
	"github.com/citc-os/workstation/internal/wcl/winabi"
)

// vertexStride is the fixed-function input-assembler layout this
// software pipeline understands: position (4 float32), color (4
// float32), texcoord (2 float32). Guests using a different vertex
// layout still render through the same fixed-function passthrough as
// long as they pack attributes in this order (see DESIGN.md).
const vertexStride = (4 + 4 + 2) * 4

// Context is an ID3D11DeviceContext: pipeline-state binding plus
// Draw/DrawIndexed, which immediately rasterize through
// internal/wcl/d3d/raster rather than deferring to a command list —
// matching D3D11's immediate-context semantics. D3D12's explicit
// command lists are handled separately (d3d12.go).
type Context struct {
	dev *Device

	rtv, dsv winabi.Handle
	viewport raster.Viewport
	cull     raster.CullMode
	depth    raster.DepthFunc

	vb, ib   winabi.Handle
	ibWide   bool // true: 32-bit indices, false: 16-bit
	vs, ps   winabi.Handle
	cbsVS    [4]winabi.Handle
	cbsPS    [4]winabi.Handle
	srvs     [4]winabi.Handle
	samplers [4]winabi.Handle
}

// NewContext returns a Context bound to dev with no pipeline state set.
func NewContext(dev *Device) *Context {
	return &Context{dev: dev}
}

func (c *Context) SetViewport(vp raster.Viewport) { c.viewport = vp }

// OMSetRenderTargets(UINT NumViews, ID3D11RenderTargetView*const*, ID3D11DepthStencilView*)
func (c *Context) OMSetRenderTargets(rtv, dsv winabi.Handle) {
	c.rtv, c.dsv = rtv, dsv
}

// OMSetDepthStencilState(ID3D11DepthStencilState*, UINT StencilRef)
func (c *Context) OMSetDepthStencilState(h winabi.Handle) {
	r, err := c.dev.get(h)
	if err != nil || r.Kind != KindDepthStencilState {
		c.depth = raster.DepthAlways
		return
	}
	if r.DSState.DepthEnable {
		c.depth = r.DSState.Func
	} else {
		c.depth = raster.DepthAlways
	}
}

// RSSetState(ID3D11RasterizerState*)
func (c *Context) RSSetState(h winabi.Handle) {
	r, err := c.dev.get(h)
	if err != nil || r.Kind != KindRasterizerState {
		c.cull = raster.CullNone
		return
	}
	c.cull = r.RSState.Cull
}

// IASetVertexBuffers(..., ID3D11Buffer*const*, ...) simplified to one
// slot, since every guest this port targets binds a single
// interleaved vertex stream.
func (c *Context) IASetVertexBuffers(vb winabi.Handle) { c.vb = vb }

// IASetIndexBuffer(ID3D11Buffer*, DXGI_FORMAT Format, UINT Offset)
func (c *Context) IASetIndexBuffer(ib winabi.Handle, wide bool) {
	c.ib, c.ibWide = ib, wide
}

func (c *Context) VSSetShader(h winabi.Handle) { c.vs = h }
func (c *Context) PSSetShader(h winabi.Handle) { c.ps = h }

func (c *Context) VSSetConstantBuffer(slot int, h winabi.Handle) {
	if slot >= 0 && slot < len(c.cbsVS) {
		c.cbsVS[slot] = h
	}
}
func (c *Context) PSSetConstantBuffer(slot int, h winabi.Handle) {
	if slot >= 0 && slot < len(c.cbsPS) {
		c.cbsPS[slot] = h
	}
}
func (c *Context) PSSetShaderResource(slot int, h winabi.Handle) {
	if slot >= 0 && slot < len(c.srvs) {
		c.srvs[slot] = h
	}
}
func (c *Context) PSSetSampler(slot int, h winabi.Handle) {
	if slot >= 0 && slot < len(c.samplers) {
		c.samplers[slot] = h
	}
}

// ClearRenderTargetView(ID3D11RenderTargetView*, const FLOAT ColorRGBA[4])
func (c *Context) ClearRenderTargetView(h winabi.Handle, color [4]float32) {
	r, err := c.dev.get(h)
	if err != nil || r.Kind != KindRenderTargetView {
		return
	}
	tex := r.RTV.Tex
	for i := 0; i < tex.Width*tex.Height; i++ {
		tex.Pix[i*4+0] = toByteC(color[0])
		tex.Pix[i*4+1] = toByteC(color[1])
		tex.Pix[i*4+2] = toByteC(color[2])
		tex.Pix[i*4+3] = toByteC(color[3])
	}
}

// ClearDepthStencilView(ID3D11DepthStencilView*, UINT ClearFlags, FLOAT Depth, UINT8 Stencil)
func (c *Context) ClearDepthStencilView(h winabi.Handle, depth float32) {
	r, err := c.dev.get(h)
	if err != nil || r.Kind != KindDepthStencilView {
		return
	}
	for i := range r.DSV.Depth {
		r.DSV.Depth[i] = depth
	}
}

func toByteC(v float32) byte {
	if v <= 0 {
		return 0
	}
	if v >= 1 {
		return 255
	}
	return byte(v * 255)
}

// UpdateSubresource(ID3D11Resource*, ..., const void *pSrcData, ...)
// simplified to "overwrite the whole buffer".
func (c *Context) UpdateSubresource(h winabi.Handle, data []byte) {
	r, err := c.dev.get(h)
	if err != nil || r.Kind != KindBuffer {
		return
	}
	copy(r.Buffer.Data, data)
}

func (c *Context) target() (*raster.Target, bool) {
	rtvRes, err := c.dev.get(c.rtv)
	if err != nil || rtvRes.Kind != KindRenderTargetView {
		return nil, false
	}
	tgt := &raster.Target{
		Width:  rtvRes.RTV.Tex.Width,
		Height: rtvRes.RTV.Tex.Height,
		Color:  rtvRes.RTV.Tex.Pix,
	}
	if dsvRes, err := c.dev.get(c.dsv); err == nil && dsvRes.Kind == KindDepthStencilView {
		tgt.Depth = dsvRes.DSV.Depth
	}
	return tgt, true
}

// vertexShaderFunc builds a raster.VertexShader from the bound VS: a
// DXBC-interpreted one if decoding succeeded, otherwise the
// fixed-function clip-space passthrough (position/color/texcoord
// unmodified) so a malformed shader degrades instead of crashing.
func (c *Context) vertexShaderFunc() raster.VertexShader {
	prog, cbs := c.shaderProgram(c.vs, c.cbsVS[:])
	if prog == nil {
		return func(v raster.InputVertex) raster.ShadedVertex {
			return raster.ShadedVertex{ClipPos: v.Position, Color: v.Color, TexCoord: v.TexCoord}
		}
	}
	return func(v raster.InputVertex) raster.ShadedVertex {
		ctx := dxbc.NewContext(prog, 3, 3, cbs)
		ctx.Inputs[0] = dxbc.Vec4(v.Position)
		ctx.Inputs[1] = dxbc.Vec4(v.Color)
		ctx.Inputs[2] = dxbc.Vec4{v.TexCoord[0], v.TexCoord[1], 0, 0}
		if err := dxbc.Exec(prog, ctx); err != nil {
			return raster.ShadedVertex{ClipPos: v.Position, Color: v.Color, TexCoord: v.TexCoord}
		}
		return raster.ShadedVertex{
			ClipPos:  [4]float32(ctx.Outputs[0]),
			Color:    [4]float32(ctx.Outputs[1]),
			TexCoord: [2]float32{ctx.Outputs[2][0], ctx.Outputs[2][1]},
		}
	}
}

// pixelShaderFunc mirrors vertexShaderFunc for the bound PS; the
// fixed-function fallback is vertex-color passthrough, ignoring any
// bound texture (no-SRV guests never needed more).
func (c *Context) pixelShaderFunc() raster.PixelShader {
	prog, cbs := c.shaderProgram(c.ps, c.cbsPS[:])
	if prog == nil {
		return func(in raster.PixelInput) [4]float32 { return in.Color }
	}
	return func(in raster.PixelInput) [4]float32 {
		ctx := dxbc.NewContext(prog, 2, 1, cbs)
		ctx.Inputs[0] = dxbc.Vec4(in.Color)
		ctx.Inputs[1] = dxbc.Vec4{in.TexCoord[0], in.TexCoord[1], 0, 0}
		if err := dxbc.Exec(prog, ctx); err != nil {
			return in.Color
		}
		return [4]float32(ctx.Outputs[0])
	}
}

func (c *Context) shaderProgram(h winabi.Handle, cbHandles []winabi.Handle) (*dxbc.Program, [][]dxbc.Vec4) {
	r, err := c.dev.get(h)
	if err != nil || r.Kind != KindShader || r.Shader.Program == nil {
		return nil, nil
	}
	cbs := make([][]dxbc.Vec4, 0, len(cbHandles))
	for _, ch := range cbHandles {
		br, err := c.dev.get(ch)
		if err != nil || br.Kind != KindBuffer {
			cbs = append(cbs, nil)
			continue
		}
		cbs = append(cbs, decodeConstantBuffer(br.Buffer.Data))
	}
	return r.Shader.Program, cbs
}

func decodeConstantBuffer(data []byte) []dxbc.Vec4 {
	n := len(data) / 16
	out := make([]dxbc.Vec4, n)
	for i := 0; i < n; i++ {
		for j := 0; j < 4; j++ {
			bits := binary.LittleEndian.Uint32(data[i*16+j*4:])
			out[i][j] = math.Float32frombits(bits)
		}
	}
	return out
}

func decodeVertex(data []byte, idx int) raster.InputVertex {
	off := idx * vertexStride
	var v raster.InputVertex
	for i := 0; i < 4; i++ {
		v.Position[i] = readF32(data, off+i*4)
	}
	for i := 0; i < 4; i++ {
		v.Color[i] = readF32(data, off+16+i*4)
	}
	for i := 0; i < 2; i++ {
		v.TexCoord[i] = readF32(data, off+32+i*4)
	}
	return v
}

func readF32(data []byte, off int) float32 {
	if off+4 > len(data) {
		return 0
	}
	return math.Float32frombits(binary.LittleEndian.Uint32(data[off:]))
}

// Draw(UINT VertexCount, UINT StartVertexLocation)
func (c *Context) Draw(vertexCount, startVertex int) {
	tgt, ok := c.target()
	if !ok {
		return
	}
	vbRes, err := c.dev.get(c.vb)
	if err != nil || vbRes.Kind != KindBuffer {
		return
	}
	r := &raster.Rasterizer{Target: tgt, Viewport: c.viewport, DepthFunc: c.depth, Cull: c.cull}
	vs, ps := c.vertexShaderFunc(), c.pixelShaderFunc()
	for i := startVertex; i+2 < startVertex+vertexCount; i += 3 {
		v0 := decodeVertex(vbRes.Buffer.Data, i)
		v1 := decodeVertex(vbRes.Buffer.Data, i+1)
		v2 := decodeVertex(vbRes.Buffer.Data, i+2)
		r.DrawTriangle(v0, v1, v2, vs, ps)
	}
}

// DrawIndexed(UINT IndexCount, UINT StartIndexLocation, INT BaseVertexLocation)
func (c *Context) DrawIndexed(indexCount, startIndex, baseVertex int) {
	tgt, ok := c.target()
	if !ok {
		return
	}
	vbRes, err := c.dev.get(c.vb)
	if err != nil || vbRes.Kind != KindBuffer {
		return
	}
	ibRes, err := c.dev.get(c.ib)
	if err != nil || ibRes.Kind != KindBuffer {
		return
	}
	indices := decodeIndices(ibRes.Buffer.Data, c.ibWide)

	r := &raster.Rasterizer{Target: tgt, Viewport: c.viewport, DepthFunc: c.depth, Cull: c.cull}
	vs, ps := c.vertexShaderFunc(), c.pixelShaderFunc()
	for i := startIndex; i+2 < startIndex+indexCount && i+2 < len(indices); i += 3 {
		v0 := decodeVertex(vbRes.Buffer.Data, baseVertex+indices[i])
		v1 := decodeVertex(vbRes.Buffer.Data, baseVertex+indices[i+1])
		v2 := decodeVertex(vbRes.Buffer.Data, baseVertex+indices[i+2])
		r.DrawTriangle(v0, v1, v2, vs, ps)
	}
}

func decodeIndices(data []byte, wide bool) []int {
	if wide {
		out := make([]int, len(data)/4)
		for i := range out {
			out[i] = int(binary.LittleEndian.Uint32(data[i*4:]))
		}
		return out
	}
	out := make([]int, len(data)/2)
	for i := range out {
		out[i] = int(binary.LittleEndian.Uint16(data[i*2:]))
	}
	return out
}
