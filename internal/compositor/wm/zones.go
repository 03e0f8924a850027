package wm

// Chrome button layout: three square buttons right-aligned in the
// titlebar, minimize/maximize/close left to right, matching the
// titlebar strip paintChrome draws in internal/compositor/render.
const (
	ButtonSize   = 16
	buttonMargin = 4
	resizeBorder = 6
)

// Zone identifies which chrome region of a non-panel window a point
// falls in, per spec.md section 4.4's per-button-down state table.
type Zone int

const (
	ZoneClient Zone = iota
	ZoneTitlebar
	ZoneClose
	ZoneMinimize
	ZoneMaximize
	ZoneResize
)

// HitChrome classifies (x,y) against w's geometry into a chrome zone
// and, for ZoneResize, the edge being hit. Resize edges are checked
// first so a corner still resizes even though it also falls within the
// titlebar's row; buttons are checked before the titlebar so they take
// priority over a drag start; anything below the titlebar is client
// area. Maximized windows have no resize edges (there's no screen
// space left to resize into).
func (w *Window) HitChrome(x, y int) (Zone, Edge) {
	g := w.Geometry
	if !w.Maximized {
		onRight := x >= g.X+g.W-resizeBorder && x < g.X+g.W
		onBottom := y >= g.Y+g.H-resizeBorder && y < g.Y+g.H
		switch {
		case onRight && onBottom:
			return ZoneResize, EdgeBottomRight
		case onRight:
			return ZoneResize, EdgeRight
		case onBottom:
			return ZoneResize, EdgeBottom
		}
	}

	if y < g.Y || y >= g.Y+TitlebarHeight {
		return ZoneClient, EdgeNone
	}

	by := g.Y + (TitlebarHeight-ButtonSize)/2
	if y < by || y >= by+ButtonSize {
		return ZoneTitlebar, EdgeNone
	}
	bx := g.X + g.W - buttonMargin - ButtonSize
	if x >= bx && x < bx+ButtonSize {
		return ZoneClose, EdgeNone
	}
	bx -= ButtonSize + buttonMargin
	if x >= bx && x < bx+ButtonSize {
		return ZoneMaximize, EdgeNone
	}
	bx -= ButtonSize + buttonMargin
	if x >= bx && x < bx+ButtonSize {
		return ZoneMinimize, EdgeNone
	}
	return ZoneTitlebar, EdgeNone
}
