package d3d

import "github.com/citc-os/workstation/internal/wcl/winabi"

// rootSignatures and pipelineStates use their own handle tables on
// winabi.RangeD3DRoot / winabi.RangeD3DPSO, the two D3D12 ranges
// named explicitly in the handle scheme (see the winabi range constants).
type rootSignature struct {
	// A root signature in this port carries no layout of its own: every
	// D3D12 guest binds resources the same way its D3D11 counterpart
	// does (Context's slot setters), so the signature is just a token
	// guests pass back unchanged to CreateGraphicsPipelineState.
}

// D12Device is an ID3D12Device: root signatures, pipeline-state
// objects, and a synchronous fence primitive, layered over the same
// resource table as Device (D3D12 guests and D3D11 guests in this port
// share one process, one set of buffers/textures/views).
type D12Device struct {
	*Device

	roots     *winabi.Table[rootSignature]
	pipelines *winabi.Table[Pipeline]
	fences    *winabi.Table[Fence]
}

// NewD12Device wraps an existing Device with D3D12's extra resource
// families.
func NewD12Device(dev *Device) *D12Device {
	return &D12Device{
		Device:    dev,
		roots:     winabi.NewTable[rootSignature](winabi.RangeD3DRoot),
		pipelines: winabi.NewTable[Pipeline](winabi.RangeD3DPSO),
		fences:    winabi.NewTable[Fence](winabi.RangeD3DFence),
	}
}

// CreateRootSignature(..., const void *pBlobWithRootSignature, ...)
// mints an opaque token; this port never inspects root-parameter
// layout (see the rootSignature doc).
func (d *D12Device) CreateRootSignature() winabi.Handle {
	return d.roots.Alloc(&rootSignature{})
}

// CreateGraphicsPipelineState(const D3D12_GRAPHICS_PIPELINE_STATE_DESC*, ...)
func (d *D12Device) CreateGraphicsPipelineState(vs, ps, dss, rs winabi.Handle) winabi.Handle {
	return d.pipelines.Alloc(&Pipeline{VS: vs, PS: ps, DSS: dss, RS: rs})
}

func (d *D12Device) pipeline(h winabi.Handle) (*Pipeline, error) {
	return d.pipelines.Get(h)
}

// CreateFence(UINT64 InitialValue, ...)
func (d *D12Device) CreateFence(initial uint64) winabi.Handle {
	return d.fences.Alloc(&Fence{Completed: initial})
}

// Signal(UINT64 Value) — this rasterizer executes every command list
// synchronously as CommandList.Execute runs, so Signal observes its
// new value immediately; there is no deferred GPU timeline to catch up
// to.
func (d *D12Device) Signal(h winabi.Handle, value uint64) {
	f, err := d.fences.Get(h)
	if err != nil {
		return
	}
	f.Completed = value
}

// GetCompletedValue() returns the fence's current value.
func (d *D12Device) GetCompletedValue(h winabi.Handle) uint64 {
	f, err := d.fences.Get(h)
	if err != nil {
		return 0
	}
	return f.Completed
}

// SetEventOnCompletion(UINT64 Value, HANDLE hEvent) always reports the
// wait as already satisfied, since GetCompletedValue is never behind
// the most recent Signal in a synchronous rasterizer.
func (d *D12Device) SetEventOnCompletion() uint64 { return sOKD3D }

const sOKD3D = 0

// d12Command is one recorded D3D12 command-list entry. Recording a
// D3D12 command list only appends closures; they run in order when
// ExecuteCommandLists replays them against a Context, matching the
// explicit record/replay split this calls out as distinct from
// D3D11's immediate context.
type d12Command func(*Context)

// CommandList is an ID3D12GraphicsCommandList: Reset clears the
// recorded command buffer, the Set*/Draw*/Clear* methods append to it,
// and Close freezes it for ExecuteCommandLists.
type CommandList struct {
	cmds   []d12Command
	closed bool
}

// NewCommandList returns an empty, open command list.
func NewCommandList() *CommandList { return &CommandList{} }

// Reset(ID3D12CommandAllocator*, ID3D12PipelineState*) simplified to no
// arguments: it drops the recorded commands and reopens the list. No
// pipeline state is recorded; bind one with SetPipelineState.
func (cl *CommandList) Reset() {
	cl.cmds = cl.cmds[:0]
	cl.closed = false
}

func (cl *CommandList) record(c d12Command) {
	if cl.closed {
		return
	}
	cl.cmds = append(cl.cmds, c)
}

// SetPipelineState(ID3D12PipelineState*) unpacks the PSO into the
// individual VS/PS/DSS/RS binds a Context understands, generalizing
// D3D12's single bulk state object back down to D3D11's separate
// setters that Context.Draw already knows how to execute.
func (cl *CommandList) SetPipelineState(dev *D12Device, h winabi.Handle) {
	cl.record(func(ctx *Context) {
		p, err := dev.pipeline(h)
		if err != nil {
			return
		}
		ctx.VSSetShader(p.VS)
		ctx.PSSetShader(p.PS)
		ctx.OMSetDepthStencilState(p.DSS)
		ctx.RSSetState(p.RS)
	})
}

func (cl *CommandList) OMSetRenderTargets(rtv, dsv winabi.Handle) {
	cl.record(func(ctx *Context) { ctx.OMSetRenderTargets(rtv, dsv) })
}

func (cl *CommandList) IASetVertexBuffers(vb winabi.Handle) {
	cl.record(func(ctx *Context) { ctx.IASetVertexBuffers(vb) })
}

func (cl *CommandList) IASetIndexBuffer(ib winabi.Handle, wide bool) {
	cl.record(func(ctx *Context) { ctx.IASetIndexBuffer(ib, wide) })
}

func (cl *CommandList) ClearRenderTargetView(h winabi.Handle, color [4]float32) {
	cl.record(func(ctx *Context) { ctx.ClearRenderTargetView(h, color) })
}

func (cl *CommandList) ClearDepthStencilView(h winabi.Handle, depth float32) {
	cl.record(func(ctx *Context) { ctx.ClearDepthStencilView(h, depth) })
}

func (cl *CommandList) DrawInstanced(vertexCount, startVertex int) {
	cl.record(func(ctx *Context) { ctx.Draw(vertexCount, startVertex) })
}

func (cl *CommandList) DrawIndexedInstanced(indexCount, startIndex, baseVertex int) {
	cl.record(func(ctx *Context) { ctx.DrawIndexed(indexCount, startIndex, baseVertex) })
}

// Close() freezes the list: later recording calls are dropped until
// Reset. ExecuteCommandLists replays a list whether or not it is closed.
func (cl *CommandList) Close() { cl.closed = true }

// ExecuteCommandLists(UINT NumCommandLists, ID3D12CommandList *const *ppCommandLists)
// replays every recorded command against ctx in order. Ignoring a list
// that was never Close()'d would silently drop real guest work, so
// this still replays it — Close only marks intent, it is not required
// for replay to happen.
func ExecuteCommandLists(ctx *Context, lists ...*CommandList) {
	for _, l := range lists {
		for _, cmd := range l.cmds {
			cmd(ctx)
		}
	}
}
