// Package gdi32 implements the software drawing pipeline behind an HDC:
// solid brushes, pixel/rect fills, and bitmap-font text, writing
// directly into a window's XRGB8888 pixel buffer, using the same
// provider-registry pattern (internal/patching.Provider) as
// internal/wcl/kernel32, via winabi.StubRegistry.
package gdi32

import (
	"image"
	"image/color"
	"image/draw"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/citc-os/workstation/internal/wcl/winabi"
)

// PixelTarget is the drawable backing a window's client area: a
// byte-per-channel BGRX buffer, B,G,R,X per pixel, row-major with
// Stride bytes per row. user32 owns the buffer (either a CDP surface's
// shared-memory Pix or a local fallback) and hands gdi32 a pointer to
// it each time a new HDC is created.
type PixelTarget struct {
	Pix    []byte
	W, H   int
	Stride int
}

// ColorModel/At/Bounds/Set make PixelTarget satisfy draw.Image so
// TextOutA can drive it through golang.org/x/image/font's Drawer
// instead of hand-rolling glyph rasterization.
func (t *PixelTarget) ColorModel() color.Model { return color.RGBAModel }

func (t *PixelTarget) Bounds() image.Rectangle { return image.Rect(0, 0, t.W, t.H) }

func (t *PixelTarget) At(x, y int) color.Color {
	if x < 0 || y < 0 || x >= t.W || y >= t.H {
		return color.RGBA{}
	}
	i := y*t.Stride + x*4
	return color.RGBA{R: t.Pix[i+2], G: t.Pix[i+1], B: t.Pix[i], A: 0xFF}
}

func (t *PixelTarget) Set(x, y int, c color.Color) {
	if x < 0 || y < 0 || x >= t.W || y >= t.H {
		return
	}
	r, g, b, _ := c.RGBA()
	i := y*t.Stride + x*4
	t.Pix[i+0] = byte(b >> 8)
	t.Pix[i+1] = byte(g >> 8)
	t.Pix[i+2] = byte(r >> 8)
	t.Pix[i+3] = 0xFF
}

var _ draw.Image = (*PixelTarget)(nil)

type gdiObjectKind int

const (
	objBrush gdiObjectKind = iota
	objPen
)

type gdiObject struct {
	kind  gdiObjectKind
	color uint32 // 0x00RRGGBB
}

type dc struct {
	target    *PixelTarget
	textColor uint32
	bkColor   uint32
	bkMode    uint32 // 1=TRANSPARENT, 2=OPAQUE
	selected  winabi.Handle
}

// Host owns every HDC and GDI object minted by this process.
type Host struct {
	dcs     *winabi.Table[dc]
	objects *winabi.Table[gdiObject]
	mem     winabi.ProcessMemory
}

// NewHost constructs an empty gdi32 host.
func NewHost() *Host {
	return &Host{
		dcs:     winabi.NewTable[dc](winabi.RangeHDC),
		objects: winabi.NewTable[gdiObject](winabi.RangeGDIObject),
	}
}

// Attach binds the host to a loaded image's address space, so
// string-taking exports (TextOutA) can resolve guest pointers.
func (h *Host) Attach(mem winabi.ProcessMemory) { h.mem = mem }

// CreateDC binds a new HDC to target for BeginPaint. Not a Win32
// export itself — user32.BeginPaint calls this internal API to create
// an HDC bound to an HWND's pixel buffer.
func (h *Host) CreateDC(target *PixelTarget) uint64 {
	return uint64(h.dcs.Alloc(&dc{target: target, bkMode: 2}))
}

// ReleaseDC tears down hdc. Idempotent: releasing an already-released
// or unknown handle is a no-op, matching EndPaint's contract.
func (h *Host) ReleaseDC(hdc uint64) {
	h.dcs.Free(winabi.Handle(hdc))
}

// CreateSolidBrush(COLORREF crColor)
func (h *Host) CreateSolidBrush(color uint32) uint64 {
	return uint64(h.objects.Alloc(&gdiObject{kind: objBrush, color: color}))
}

// SelectObject(HDC hdc, HGDIOBJ h) returns the previously selected
// object, or 0 if none.
func (h *Host) SelectObject(hdc, obj uint64) uint64 {
	d, err := h.dcs.Get(winabi.Handle(hdc))
	if err != nil {
		return 0
	}
	prev := uint64(d.selected)
	d.selected = winabi.Handle(obj)
	return prev
}

// SetTextColor(HDC hdc, COLORREF color)
func (h *Host) SetTextColor(hdc uint64, color uint32) uint64 {
	d, err := h.dcs.Get(winabi.Handle(hdc))
	if err != nil {
		return 0xFFFFFFFF
	}
	prev := d.textColor
	d.textColor = color
	return uint64(prev)
}

// SetBkColor(HDC hdc, COLORREF color)
func (h *Host) SetBkColor(hdc uint64, color uint32) uint64 {
	d, err := h.dcs.Get(winabi.Handle(hdc))
	if err != nil {
		return 0xFFFFFFFF
	}
	prev := d.bkColor
	d.bkColor = color
	return uint64(prev)
}

// SetBkMode(HDC hdc, int mode)
func (h *Host) SetBkMode(hdc uint64, mode uint32) uint64 {
	d, err := h.dcs.Get(winabi.Handle(hdc))
	if err != nil {
		return 0
	}
	prev := d.bkMode
	d.bkMode = mode
	return uint64(prev)
}

// SetPixel(HDC hdc, int x, int y, COLORREF color)
func (h *Host) SetPixel(hdc uint64, x, y int, clr uint32) uint64 {
	d, err := h.dcs.Get(winabi.Handle(hdc))
	if err != nil {
		return 0xFFFFFFFF
	}
	d.target.Set(x, y, rgbColor(clr))
	return uint64(clr)
}

// FillRect(HDC hdc, const RECT *lprc, HBRUSH hbr)
func (h *Host) FillRect(hdc uint64, x0, y0, x1, y1 int, brush uint64) uint64 {
	d, err := h.dcs.Get(winabi.Handle(hdc))
	if err != nil {
		return 0
	}
	clr := d.bkColor
	if obj, err := h.objects.Get(winabi.Handle(brush)); err == nil {
		clr = obj.color
	}
	fillRect(d.target, x0, y0, x1, y1, clr)
	return 1
}

// Rectangle(HDC hdc, int left, int top, int right, int bottom) fills
// with the currently selected brush, the common simplification of
// treating the pen-stroked outline and brush fill as one solid region.
func (h *Host) Rectangle(hdc uint64, x0, y0, x1, y1 int) uint64 {
	d, err := h.dcs.Get(winabi.Handle(hdc))
	if err != nil {
		return 0
	}
	clr := d.bkColor
	if obj, err := h.objects.Get(winabi.Handle(d.selected)); err == nil && obj.kind == objBrush {
		clr = obj.color
	}
	fillRect(d.target, x0, y0, x1, y1, clr)
	return 1
}

func fillRect(t *PixelTarget, x0, y0, x1, y1 int, clr uint32) {
	c := rgbColor(clr)
	for y := y0; y < y1; y++ {
		for x := x0; x < x1; x++ {
			t.Set(x, y, c)
		}
	}
}

func rgbColor(clr uint32) color.RGBA {
	return color.RGBA{R: byte(clr >> 16), G: byte(clr >> 8), B: byte(clr), A: 0xFF}
}

// TextOutA(HDC hdc, int x, int y, LPCSTR lpString, int c) draws text in
// a fixed 7x13 bitmap font via golang.org/x/image/font, optionally
// painting an opaque background cell first when SetBkMode(OPAQUE) is
// in effect.
func (h *Host) TextOutA(hdc uint64, x, y int, text string) uint64 {
	d, err := h.dcs.Get(winabi.Handle(hdc))
	if err != nil {
		return 0
	}
	face := basicfont.Face7x13
	if d.bkMode == 2 {
		w := face.Advance * len(text)
		fillRect(d.target, x, y, x+w, y+face.Height, d.bkColor)
	}
	drawer := &font.Drawer{
		Dst:  d.target,
		Src:  image.NewUniform(rgbColor(d.textColor)),
		Face: face,
		Dot:  fixed.P(x, y+face.Ascent),
	}
	drawer.DrawString(text)
	return 1
}

// Register installs every gdi32 export into reg under the "gdi32" DLL
// name. HDC lifetime (CreateDC/ReleaseDC) is not part of this table:
// those are called directly by user32, not resolved through the
// guest's import table.
func (h *Host) Register(reg *winabi.StubRegistry) {
	add := func(name string, fn func(args []uint64) uint64) {
		reg.Add(winabi.Export{DLL: "gdi32", Name: name, Fn: fn})
	}
	add("CreateSolidBrush", func(a []uint64) uint64 { return h.CreateSolidBrush(uint32(a[0])) })
	add("SelectObject", func(a []uint64) uint64 { return h.SelectObject(a[0], a[1]) })
	add("SetTextColor", func(a []uint64) uint64 { return h.SetTextColor(a[0], uint32(a[1])) })
	add("SetBkColor", func(a []uint64) uint64 { return h.SetBkColor(a[0], uint32(a[1])) })
	add("SetBkMode", func(a []uint64) uint64 { return h.SetBkMode(a[0], uint32(a[1])) })
	add("SetPixel", func(a []uint64) uint64 { return h.SetPixel(a[0], int(int32(a[1])), int(int32(a[2])), uint32(a[3])) })
	add("FillRect", func(a []uint64) uint64 { return h.FillRect(a[0], int(int32(a[1])), int(int32(a[2])), int(int32(a[3])), int(int32(a[4])), a[5]) })
	add("Rectangle", func(a []uint64) uint64 {
		return h.Rectangle(a[0], int(int32(a[1])), int(int32(a[2])), int(int32(a[3])), int(int32(a[4])))
	})
	add("TextOutA", func(a []uint64) uint64 {
		text := winabi.ReadCStringA(h.mem, a[3])
		return h.TextOutA(a[0], int(int32(a[1])), int(int32(a[2])), text)
	})
}
