package d3d

import (
	"github.com/citc-os/workstation/internal/logging"
	"github.com/citc-os/workstation/internal/wcl/d3d/dxbc"
	"github.com/citc-os/workstation/internal/wcl/d3d/raster"
	"github.com/citc-os/workstation/internal/wcl/winabi"
)

var log = logging.L("d3d")

// Device owns every resource this process creates, keyed through one
// handle table spanning winabi.RangeD3DResource. Grounded on
// internal/wcl/winabi.Table the same way every other stub DLL's
// handle-family table is.
type Device struct {
	resources   *winabi.Table[resource]
	shaderCache map[string]winabi.Handle // bytecode string -> existing Shader handle
}

// NewDevice constructs an empty D3D11 device.
func NewDevice() *Device {
	return &Device{
		resources:   winabi.NewTable[resource](winabi.RangeD3DResource),
		shaderCache: make(map[string]winabi.Handle),
	}
}

func (d *Device) alloc(r resource) winabi.Handle {
	return d.resources.Alloc(&r)
}

// CreateBuffer(const D3D11_BUFFER_DESC*, const D3D11_SUBRESOURCE_DATA*)
// simplified to (size, stride, initial data).
func (d *Device) CreateBuffer(size uint32, stride uint32, initial []byte) winabi.Handle {
	buf := &Buffer{Data: make([]byte, size), Stride: stride}
	if initial != nil {
		copy(buf.Data, initial)
	}
	return d.alloc(resource{Kind: KindBuffer, Buffer: buf})
}

// CreateTexture2D(const D3D11_TEXTURE2D_DESC*, ...)
func (d *Device) CreateTexture2D(width, height int) winabi.Handle {
	tex := &Texture2D{Width: width, Height: height, Pix: make([]byte, width*height*4)}
	return d.alloc(resource{Kind: KindTexture2D, Texture: tex})
}

func (d *Device) texture(h winabi.Handle) *Texture2D {
	r, err := d.resources.Get(h)
	if err != nil || r.Kind != KindTexture2D {
		return nil
	}
	return r.Texture
}

// CreateRenderTargetView(ID3D11Resource*, ...)
func (d *Device) CreateRenderTargetView(texHandle winabi.Handle) winabi.Handle {
	tex := d.texture(texHandle)
	if tex == nil {
		return 0
	}
	return d.alloc(resource{Kind: KindRenderTargetView, RTV: &RenderTargetView{Tex: tex}})
}

// CreateDepthStencilView(ID3D11Resource*, ...) allocates its own depth
// plane sized to width/height rather than reusing a texture's pixel
// storage, since depth is float32 per texel, not RGBA8.
func (d *Device) CreateDepthStencilView(width, height int) winabi.Handle {
	return d.alloc(resource{Kind: KindDepthStencilView, DSV: &DepthStencilView{
		Width: width, Height: height, Depth: make([]float32, width*height),
	}})
}

// CreateShaderResourceView(ID3D11Resource*, ...)
func (d *Device) CreateShaderResourceView(texHandle winabi.Handle) winabi.Handle {
	tex := d.texture(texHandle)
	if tex == nil {
		return 0
	}
	return d.alloc(resource{Kind: KindShaderResourceView, SRV: &ShaderResourceView{Tex: tex}})
}

// CreateSamplerState(const D3D11_SAMPLER_DESC*) simplified to a single
// wrap/clamp flag. The state is stored only; nothing in the pipeline
// samples textures (see resource.go's SamplerState doc).
func (d *Device) CreateSamplerState(wrap bool) winabi.Handle {
	return d.alloc(resource{Kind: KindSamplerState, Sampler: &SamplerState{Wrap: wrap}})
}

// CreateDepthStencilState(const D3D11_DEPTH_STENCIL_DESC*) simplified
// to (depthEnable, func).
func (d *Device) CreateDepthStencilState(enable bool, fn raster.DepthFunc) winabi.Handle {
	return d.alloc(resource{Kind: KindDepthStencilState, DSState: &DepthStencilState{DepthEnable: enable, Func: fn}})
}

// CreateRasterizerState(const D3D11_RASTERIZER_DESC*) simplified to
// (cullMode).
func (d *Device) CreateRasterizerState(cull raster.CullMode) winabi.Handle {
	return d.alloc(resource{Kind: KindRasterizerState, RSState: &RasterizerState{Cull: cull}})
}

// createShader builds Instructions from a flat token stream already
// decoded by the caller (this port never parses a real SM4 byte
// stream end-to-end — see DESIGN.md); bytecode identical to an
// existing shader's returns the cached handle instead of a new one,
// matching the shader-cache requirement.
func (d *Device) createShader(stage ShaderStage, bytecode string, instrs []dxbc.Instruction) winabi.Handle {
	if h, ok := d.shaderCache[bytecode]; ok {
		return h
	}
	sh := &Shader{Stage: stage, Bytes: bytecode}
	if len(instrs) > 0 {
		prog, err := dxbc.Decode(instrs)
		if err != nil {
			log.Warn("d3d: shader decode failed, falling back to fixed-function", logging.KeyError, err)
		} else {
			sh.Program = prog
		}
	}
	h := d.alloc(resource{Kind: KindShader, Shader: sh})
	d.shaderCache[bytecode] = h
	return h
}

// CreateVertexShader(const void *pShaderBytecode, SIZE_T BytecodeLength, ...)
func (d *Device) CreateVertexShader(bytecode string, instrs []dxbc.Instruction) winabi.Handle {
	return d.createShader(StageVertex, bytecode, instrs)
}

// CreatePixelShader(const void *pShaderBytecode, SIZE_T BytecodeLength, ...)
func (d *Device) CreatePixelShader(bytecode string, instrs []dxbc.Instruction) winabi.Handle {
	return d.createShader(StagePixel, bytecode, instrs)
}

func (d *Device) get(h winabi.Handle) (*resource, error) {
	return d.resources.Get(h)
}
