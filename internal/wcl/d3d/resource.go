// Package d3d implements the D3D11/D3D12/DXGI facades backing the
// software rasterizer (C12): resource tables, command
// recording, a DXBC interpreter hookup, and a triangle rasterizer with
// a depth buffer. Grounded on the DXGI desktop-capture
// family (internal/remote/desktop/dxgi_*_windows.go) for the shape of
// a thin Go facade over a native-looking resource/present pipeline,
// and on internal/wcl/winabi.Table for every handle family this
// package mints, the same typed-index-internally/handle-at-the-ABI-
// boundary split every other stub DLL in this port uses.
package d3d

import (
	"github.com/citc-os/workstation/internal/wcl/d3d/dxbc"
	"github.com/citc-os/workstation/internal/wcl/d3d/raster"
	"github.com/citc-os/workstation/internal/wcl/winabi"
)

// ResourceKind tags the variant stored in one resource slot, matching
// the D3D resource type union.
type ResourceKind int

const (
	KindBuffer ResourceKind = iota
	KindTexture2D
	KindRenderTargetView
	KindDepthStencilView
	KindShaderResourceView
	KindSamplerState
	KindDepthStencilState
	KindRasterizerState
	KindShader
	KindPipeline
	KindDescriptorHeap
	KindFence
)

// Buffer backs a vertex/index/constant buffer: a flat byte slice the
// context reads through typed views (Vec4 rows for cb0[k] access,
// raw strides for VB/IB).
type Buffer struct {
	Data   []byte
	Stride uint32 // 0 for index buffers, which carry their own format
}

// Texture2D is a single-mip RGBA8 image; Width*Height*4 bytes.
type Texture2D struct {
	Width, Height int
	Pix           []byte // RGBA8, row-major
}

// RenderTargetView / DepthStencilView / ShaderResourceView bind a
// Texture2D (or, for RTV, sometimes the back buffer) for one of the
// three roles a pipeline stage can use it in.
type RenderTargetView struct{ Tex *Texture2D }
type DepthStencilView struct {
	Width, Height int
	Depth         []float32
}
type ShaderResourceView struct{ Tex *Texture2D }

// SamplerState records the addressing mode a guest requests. It is
// stored and bound only: neither the fixed-function path nor the DXBC
// interpreter (which has no sample instruction) reads textures, so no
// filtering of any kind takes place.
type SamplerState struct {
	Wrap bool // true: repeat addressing, false: clamp-to-edge
}

// DepthStencilState / RasterizerState carry the two fixed-function
// knobs this requires: depth comparison and cull mode.
type DepthStencilState struct {
	DepthEnable bool
	Func        raster.DepthFunc
}
type RasterizerState struct {
	Cull raster.CullMode
}

// Shader is either a DXBC program or, when DXBC decoding fails or the
// guest never supplied bytecode, nil — callers fall back to the fixed-
// function VS/PS path. Identical byte content returns the same cached
// Shader pointer (Device.shaderCache), matching the shader-
// cache requirement.
type Shader struct {
	Stage   ShaderStage
	Bytes   string        // raw bytecode, keyed on for shader-cache dedup
	Program *dxbc.Program // nil if decoding failed or bytecode was never supplied
}

// ShaderStage distinguishes vertex vs. pixel shaders.
type ShaderStage int

const (
	StageVertex ShaderStage = iota
	StagePixel
)

// Pipeline is a D3D12 pipeline-state object: a frozen bundle of VS/PS,
// depth-stencil state, and rasterizer state, minted once by
// CreateGraphicsPipelineState and referenced by handle thereafter
// instead of rebinding each piece separately the way D3D11 does.
type Pipeline struct {
	VS, PS winabi.Handle
	DSS    winabi.Handle
	RS     winabi.Handle
}

// DescriptorHeap is a flat array of handles a D3D12 guest indexes into
// by descriptor slot instead of binding resources directly.
type DescriptorHeap struct {
	Slots []winabi.Handle
}

// Fence is a monotonically signalled counter. Because this rasterizer
// is synchronous, Signal makes GetCompletedValue observe the new value
// immediately — there is no deferred GPU timeline to wait on.
type Fence struct {
	Completed uint64
}

// resource is the tagged union one handle table slot actually stores;
// only the field matching Kind is populated.
type resource struct {
	Kind ResourceKind

	Buffer   *Buffer
	Texture  *Texture2D
	RTV      *RenderTargetView
	DSV      *DepthStencilView
	SRV      *ShaderResourceView
	Sampler  *SamplerState
	DSState  *DepthStencilState
	RSState  *RasterizerState
	Shader   *Shader
	Pipeline *Pipeline
	Heap     *DescriptorHeap
	Fence    *Fence
}
