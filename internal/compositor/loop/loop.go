// Package loop wires the compositor's subsystems (C1-C5, C7) into the
// single-threaded event loop described in the concurrency model: one
// goroutine multiplexes input devices, the listening socket, and
// client sockets, and renders a frame whenever the damage tracker has
// anything to paint.
package loop

import (
	"time"

	"github.com/citc-os/workstation/internal/cdp/server"
	"github.com/citc-os/workstation/internal/compositor/fbdev"
	"github.com/citc-os/workstation/internal/compositor/input"
	"github.com/citc-os/workstation/internal/compositor/render"
	"github.com/citc-os/workstation/internal/logging"
)

var log = logging.L("compositor-loop")

// Compositor owns a CDP server and a framebuffer device and drives
// frames between them.
type Compositor struct {
	Server   *server.Server
	Device   fbdev.Device
	Renderer *render.Renderer
	Devices  []input.Device
}

// surfaceAdapter exposes server.Surface as a render.SurfaceView without
// letting the renderer package depend on the server package (the
// server package already depends on wm and damage; this keeps the
// dependency graph acyclic: render -> wire, server -> wire+wm+damage,
// loop -> everything).
type surfaceAdapter struct{ s *server.Server }

func (a surfaceAdapter) Surface(id int) (render.SurfaceView, bool) {
	sf := a.s.SurfaceView(id)
	if sf == nil {
		return render.SurfaceView{}, false
	}
	return render.SurfaceView{
		Pix: sf.Mapping, W: sf.W, H: sf.H, Stride: sf.Stride, Format: sf.Format,
		Committed: sf.Committed, FrameRequested: sf.FrameRequested,
	}, true
}

// RunFrame composites and presents exactly one frame if there is
// anything to paint, matching "the render loop skips rendering when
// has_any is false". It clears FrameRequested on every surface that was
// painted with it set and reports their wire surface IDs for FRAME_DONE.
func (c *Compositor) RunFrame() {
	if !c.Server.Damage.HasAny() {
		return
	}

	back, err := c.Device.BeginFrame()
	if err != nil {
		log.Error("begin frame failed", logging.KeyError, err)
		return
	}

	done := c.Renderer.Frame(back, c.Server.Table, c.Server.Damage, surfaceAdapter{c.Server}, render.Cursor{})

	if err := c.Device.Present(); err != nil {
		log.Warn("present failed, will retry next frame", logging.KeyError, err)
	}

	for _, sid := range done {
		c.Server.EmitFrameDone(sid)
	}
	c.Server.Damage.Reset()
}

// Run drives the loop until stop closes.
func (c *Compositor) Run(stop <-chan struct{}) error {
	return c.Server.Run(c.Devices, c.RunFrame, stop)
}

// Tick is the target frame interval, exposed for callers that drive
// RunFrame on their own ticker instead of the full poll-based Run.
func Tick() time.Duration { return 16 * time.Millisecond }
