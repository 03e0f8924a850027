// Package render implements the compositor's painting pass: background,
// status bar, windows back-to-front, panels, cursor. Alpha blending
// mirrors the pixel-format conversion idioms in colorconv.go
// (BGRA/RGBA swizzling, fixed-point per-channel math), generalized from
// a one-shot capture-format conversion to a repeated per-frame
// source-over blend between XRGB8888/ARGB8888 surfaces and an
// XRGB8888 back-buffer.
package render

import (
	"github.com/citc-os/workstation/internal/cdp/wire"
	"github.com/citc-os/workstation/internal/compositor/damage"
	"github.com/citc-os/workstation/internal/compositor/fbdev"
	"github.com/citc-os/workstation/internal/compositor/wm"
)

// SurfaceView is the read-only surface state the renderer needs per
// window; C7 (the CDP server) implements this over its surface table.
type SurfaceView struct {
	Pix    []byte
	W, H   int
	Stride int
	Format wire.PixelFormat

	Committed      bool
	FrameRequested bool
}

// SurfaceSource resolves a window's linked surface, if any.
type SurfaceSource interface {
	Surface(surfaceID int) (SurfaceView, bool)
}

// Cursor is the software cursor's current screen position and bitmap.
type Cursor struct {
	X, Y int
	Pix  []byte // ARGB8888, CursorW x CursorH
}

const (
	CursorW = 16
	CursorH = 16
)

// Renderer paints one frame at a time. It holds no state across frames
// beyond the (optional) cached background image.
type Renderer struct {
	Background []byte // XRGB8888, ScreenW x ScreenH; nil means use a gradient
	ScreenW    int
	ScreenH    int
	StatusBar  []byte // ARGB8888 strip painted at the very top, may be nil
	StatusBarH int
}

// Frame paints exactly one frame into fb and returns the surface IDs
// that had FrameRequested set, for the caller to emit FRAME_DONE and
// clear the flag.
func (r *Renderer) Frame(fb *fbdev.Backbuffer, tbl *wm.Table, dmg *damage.Tracker, surfaces SurfaceSource, cursor Cursor) []int {
	r.paintBackground(fb)
	if r.StatusBar != nil {
		blitARGBOver(fb, 0, 0, r.StatusBarH, fb.Width, r.StatusBar, fb.Width*4)
	}

	var done []int

	for _, w := range tbl.NormalWindows() {
		if !w.Visible {
			continue
		}
		paintChrome(fb, w)
		if w.Kind == wm.External {
			if sv, ok := surfaces.Surface(w.SurfaceID); ok && sv.Committed {
				paintSurface(fb, w, sv)
				if sv.FrameRequested {
					done = append(done, w.SurfaceID)
				}
			}
		}
	}

	for _, p := range tbl.Panels() {
		if !p.Visible {
			continue
		}
		if p.Kind == wm.External {
			if sv, ok := surfaces.Surface(p.SurfaceID); ok && sv.Committed {
				paintSurfaceNoChrome(fb, p, sv)
				if sv.FrameRequested {
					done = append(done, p.SurfaceID)
				}
			}
		}
	}

	paintCursor(fb, cursor)
	return done
}

func (r *Renderer) paintBackground(fb *fbdev.Backbuffer) {
	if r.Background != nil {
		copy(fb.Pix, r.Background)
		return
	}
	for y := 0; y < fb.Height; y++ {
		shade := byte(16 + (y*48)/max1(fb.Height))
		row := fb.Pix[y*fb.StrideBytes : y*fb.StrideBytes+fb.Width*4]
		for x := 0; x < len(row); x += 4 {
			row[x+0] = shade
			row[x+1] = shade / 2
			row[x+2] = shade / 3
			row[x+3] = 0xFF
		}
	}
}

func max1(v int) int {
	if v <= 0 {
		return 1
	}
	return v
}

const (
	titlebarColorB, titlebarColorG, titlebarColorR = 0x40, 0x40, 0x40
)

func paintChrome(fb *fbdev.Backbuffer, w *wm.Window) {
	g := w.Geometry
	fillRect(fb, g.X, g.Y, g.W, wm.TitlebarHeight, colorBytes(w.ChromeColor))
	strokeRect(fb, g.X, g.Y, g.W, g.H, 0xFF808080)
}

func colorBytes(c uint32) [4]byte {
	return [4]byte{byte(c), byte(c >> 8), byte(c >> 16), 0xFF}
}

func fillRect(fb *fbdev.Backbuffer, x, y, w, h int, color [4]byte) {
	x0, y0, x1, y1 := clipRect(fb, x, y, w, h)
	for yy := y0; yy < y1; yy++ {
		row := fb.Pix[yy*fb.StrideBytes:]
		for xx := x0; xx < x1; xx++ {
			off := xx * 4
			row[off+0] = color[0]
			row[off+1] = color[1]
			row[off+2] = color[2]
			row[off+3] = color[3]
		}
	}
}

func strokeRect(fb *fbdev.Backbuffer, x, y, w, h int, argb uint32) {
	c := [4]byte{byte(argb), byte(argb >> 8), byte(argb >> 16), byte(argb >> 24)}
	fillRect(fb, x, y, w, 1, c)
	fillRect(fb, x, y+h-1, w, 1, c)
	fillRect(fb, x, y, 1, h, c)
	fillRect(fb, x+w-1, y, 1, h, c)
}

func clipRect(fb *fbdev.Backbuffer, x, y, w, h int) (x0, y0, x1, y1 int) {
	x0, y0 = x, y
	x1, y1 = x+w, y+h
	if x0 < 0 {
		x0 = 0
	}
	if y0 < 0 {
		y0 = 0
	}
	if x1 > fb.Width {
		x1 = fb.Width
	}
	if y1 > fb.Height {
		y1 = fb.Height
	}
	if x1 < x0 {
		x1 = x0
	}
	if y1 < y0 {
		y1 = y0
	}
	return
}

func paintSurface(fb *fbdev.Backbuffer, w *wm.Window, sv SurfaceView) {
	paintSurfaceAt(fb, w.Geometry.X, w.Geometry.Y+wm.TitlebarHeight, w.Geometry.W, w.ContentHeight(), sv)
}

func paintSurfaceNoChrome(fb *fbdev.Backbuffer, w *wm.Window, sv SurfaceView) {
	paintSurfaceAt(fb, w.Geometry.X, w.Geometry.Y, w.Geometry.W, w.Geometry.H, sv)
}

func paintSurfaceAt(fb *fbdev.Backbuffer, dstX, dstY, clipW, clipH int, sv SurfaceView) {
	w := sv.W
	if w > clipW {
		w = clipW
	}
	h := sv.H
	if h > clipH {
		h = clipH
	}
	x0, y0, x1, y1 := clipRect(fb, dstX, dstY, w, h)

	switch sv.Format {
	case wire.FormatXRGB8888:
		for yy := y0; yy < y1; yy++ {
			srcY := yy - dstY
			srcRow := sv.Pix[srcY*sv.Stride : srcY*sv.Stride+(x1-x0)*4]
			dstRow := fb.Pix[yy*fb.StrideBytes+x0*4 : yy*fb.StrideBytes+x1*4]
			copy(dstRow, srcRow)
		}
	case wire.FormatARGB8888:
		blitARGBOverAt(fb, x0, y0, x1, y1, dstX, dstY, sv)
	}
}

// blitARGBOverAt composites an ARGB8888 source region onto fb using
// source-over, with fast paths for fully opaque and fully transparent
// pixels (fixed `out = s + d*(1-s_a)`, matching the blend rule).
func blitARGBOverAt(fb *fbdev.Backbuffer, x0, y0, x1, y1, dstX, dstY int, sv SurfaceView) {
	for yy := y0; yy < y1; yy++ {
		srcY := yy - dstY
		for xx := x0; xx < x1; xx++ {
			srcX := xx - dstX
			si := srcY*sv.Stride + srcX*4
			sB, sG, sR, sA := sv.Pix[si], sv.Pix[si+1], sv.Pix[si+2], sv.Pix[si+3]

			if sA == 0 {
				continue
			}
			di := yy*fb.StrideBytes + xx*4
			if sA == 0xFF {
				fb.Pix[di+0] = sB
				fb.Pix[di+1] = sG
				fb.Pix[di+2] = sR
				fb.Pix[di+3] = 0xFF
				continue
			}
			inv := 255 - uint32(sA)
			fb.Pix[di+0] = blendChannel(sB, fb.Pix[di+0], inv)
			fb.Pix[di+1] = blendChannel(sG, fb.Pix[di+1], inv)
			fb.Pix[di+2] = blendChannel(sR, fb.Pix[di+2], inv)
			fb.Pix[di+3] = 0xFF
		}
	}
}

// blitARGBOver composites an ARGB strip into fb starting at (x,y),
// used for the status bar (no source surface geometry involved).
func blitARGBOver(fb *fbdev.Backbuffer, x, y, h, w int, src []byte, srcStride int) {
	x0, y0, x1, y1 := clipRect(fb, x, y, w, h)
	for yy := y0; yy < y1; yy++ {
		for xx := x0; xx < x1; xx++ {
			si := (yy-y)*srcStride + (xx-x)*4
			if si+4 > len(src) {
				continue
			}
			sB, sG, sR, sA := src[si], src[si+1], src[si+2], src[si+3]
			if sA == 0 {
				continue
			}
			di := yy*fb.StrideBytes + xx*4
			if sA == 0xFF {
				fb.Pix[di+0], fb.Pix[di+1], fb.Pix[di+2], fb.Pix[di+3] = sB, sG, sR, 0xFF
				continue
			}
			inv := 255 - uint32(sA)
			fb.Pix[di+0] = blendChannel(sB, fb.Pix[di+0], inv)
			fb.Pix[di+1] = blendChannel(sG, fb.Pix[di+1], inv)
			fb.Pix[di+2] = blendChannel(sR, fb.Pix[di+2], inv)
			fb.Pix[di+3] = 0xFF
		}
	}
}

func blendChannel(s, d byte, invAlpha uint32) byte {
	return byte((uint32(s) + (uint32(d)*invAlpha)/255))
}

func paintCursor(fb *fbdev.Backbuffer, c Cursor) {
	if c.Pix == nil {
		return
	}
	blitARGBOver(fb, c.X, c.Y, CursorH, CursorW, c.Pix, CursorW*4)
}
