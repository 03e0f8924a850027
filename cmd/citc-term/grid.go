package main

import (
	"image"
	"image/color"
	"image/draw"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

const (
	glyphW = 7
	glyphH = 13
)

// glyphGrid is a fixed-size character grid rendered with
// golang.org/x/image/font's basicfont, the same 7x13 bitmap font
// internal/wcl/gdi32 uses for TextOutA. It backs the CDP surface's
// shared pixel buffer directly: repaint writes straight into Pix.
type glyphGrid struct {
	mu   sync.Mutex
	cols int
	rows int
	cells []byte // cols*rows, ASCII
	cursorCol, cursorRow int
}

func newGlyphGrid(cols, rows int) *glyphGrid {
	g := &glyphGrid{cols: cols, rows: rows, cells: make([]byte, cols*rows)}
	for i := range g.cells {
		g.cells[i] = ' '
	}
	return g
}

func (g *glyphGrid) pixelW() int { return g.cols * glyphW }
func (g *glyphGrid) pixelH() int { return g.rows * glyphH }

// feed appends a byte stream to the grid, advancing the cursor and
// handling '\n', '\r', and backspace; it does not implement ANSI escape
// sequences — this is a demo terminal for exercising the display
// protocol, not a full VT100 emulator.
func (g *glyphGrid) feed(p []byte) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, b := range p {
		switch b {
		case '\n':
			g.cursorRow++
			g.cursorCol = 0
		case '\r':
			g.cursorCol = 0
		case '\b', 0x7f:
			if g.cursorCol > 0 {
				g.cursorCol--
				g.set(g.cursorCol, g.cursorRow, ' ')
			}
		default:
			if b < 0x20 {
				continue
			}
			g.set(g.cursorCol, g.cursorRow, b)
			g.cursorCol++
			if g.cursorCol >= g.cols {
				g.cursorCol = 0
				g.cursorRow++
			}
		}
		if g.cursorRow >= g.rows {
			g.scroll()
			g.cursorRow = g.rows - 1
		}
	}
}

func (g *glyphGrid) set(col, row int, b byte) {
	if col < 0 || col >= g.cols || row < 0 || row >= g.rows {
		return
	}
	g.cells[row*g.cols+col] = b
}

func (g *glyphGrid) scroll() {
	copy(g.cells, g.cells[g.cols:])
	for i := len(g.cells) - g.cols; i < len(g.cells); i++ {
		g.cells[i] = ' '
	}
}

// pixTarget adapts a CDP surface's XRGB8888 shared buffer to
// draw.Image so glyphGrid can drive it through font.Drawer, mirroring
// gdi32.PixelTarget's ColorModel/At/Set shape.
type pixTarget struct {
	pix    []byte
	stride int
	w, h   int
}

func (t *pixTarget) ColorModel() color.Model { return color.RGBAModel }
func (t *pixTarget) Bounds() image.Rectangle { return image.Rect(0, 0, t.w, t.h) }
func (t *pixTarget) At(x, y int) color.Color {
	if x < 0 || y < 0 || x >= t.w || y >= t.h {
		return color.RGBA{}
	}
	i := y*t.stride + x*4
	return color.RGBA{R: t.pix[i+2], G: t.pix[i+1], B: t.pix[i], A: 0xFF}
}
func (t *pixTarget) Set(x, y int, c color.Color) {
	if x < 0 || y < 0 || x >= t.w || y >= t.h {
		return
	}
	r, gg, b, _ := c.RGBA()
	i := y*t.stride + x*4
	t.pix[i+0] = byte(b >> 8)
	t.pix[i+1] = byte(gg >> 8)
	t.pix[i+2] = byte(r >> 8)
	t.pix[i+3] = 0xFF
}

var _ draw.Image = (*pixTarget)(nil)

// render paints every cell of the grid into pix (stride bytes/row),
// background black, foreground light grey, plus a solid cursor cell.
func (g *glyphGrid) render(pix []byte, stride int) {
	g.mu.Lock()
	defer g.mu.Unlock()

	target := &pixTarget{pix: pix, stride: stride, w: g.cols * glyphW, h: g.rows * glyphH}
	draw.Draw(target, target.Bounds(), &image.Uniform{C: color.RGBA{0, 0, 0, 0xFF}}, image.Point{}, draw.Src)

	fg := color.RGBA{0xD0, 0xD0, 0xD0, 0xFF}
	drawer := &font.Drawer{Dst: target, Src: &image.Uniform{C: fg}, Face: basicfont.Face7x13}

	for row := 0; row < g.rows; row++ {
		for col := 0; col < g.cols; col++ {
			ch := g.cells[row*g.cols+col]
			if ch == ' ' {
				continue
			}
			drawer.Dot = fixed.P(col*glyphW, row*glyphH+glyphH-3)
			drawer.DrawString(string(rune(ch)))
		}
	}

	cx, cy := g.cursorCol*glyphW, g.cursorRow*glyphH
	draw.Draw(target, image.Rect(cx, cy, cx+glyphW, cy+2), &image.Uniform{C: fg}, image.Point{}, draw.Src)
}
