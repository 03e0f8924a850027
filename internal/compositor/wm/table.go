// Package wm owns the Z-ordered window stack: geometry, chrome, focus,
// and drag/resize/maximize state, using the same session-map +
// state-transition shape as internal/sessionbroker
// (broker.go, session.go): a broker owning a map of live sessions with
// lifecycle transitions is the same shape as a window table owning a
// Z-order with drag/resize modes, generalized from "session keyed by
// token" to "window keyed by slot, ordered by stack position".
package wm

import "fmt"

// MinW and MinH are the minimum content dimensions for a non-panel
// window, matching the w >= MIN_W, h >= MIN_H invariant.
const (
	MinW = 64
	MinH = 48

	// TitlebarHeight is the chrome height added above a window's content
	// area for non-panel windows.
	TitlebarHeight = 24
)

// ID identifies a window; stable for the window's lifetime.
type ID int

// Kind distinguishes server-owned content from a CDP-backed surface.
type Kind int

const (
	Internal Kind = iota
	External
)

// Mode is the table's current interaction mode, driven by pointer input.
type Mode int

const (
	Idle Mode = iota
	Dragging
	Resizing
)

// Edge identifies which border of a window is being dragged during a
// resize.
type Edge int

const (
	EdgeNone Edge = iota
	EdgeRight
	EdgeBottom
	EdgeBottomRight
)

// Geometry is a window's screen-space rectangle.
type Geometry struct {
	X, Y, W, H int
}

// Window is one entry in the stack.
type Window struct {
	ID ID

	Geometry     Geometry
	SavedGeom    Geometry
	HasSavedGeom bool

	Title       string
	ChromeColor uint32

	Kind      Kind
	SurfaceID int // valid when Kind == External; 0 otherwise

	Visible   bool
	Panel     bool
	Minimized bool
	Maximized bool
}

// ContentHeight returns the height available to window content, below
// the titlebar, or the full height for a panel.
func (w *Window) ContentHeight() int {
	if w.Panel {
		return w.Geometry.H
	}
	return w.Geometry.H - TitlebarHeight
}

// Table owns the stack of windows, back-to-front.
type Table struct {
	windows []*Window
	nextID  ID

	focused ID // 0 means no window focused

	mode       Mode
	activeID   ID
	dragOffX   int
	dragOffY   int
	resizeEdge Edge
	latched    Geometry
}

// NewTable returns an empty window table.
func NewTable() *Table {
	return &Table{}
}

// Create appends a new window to the top of its region (panels always
// sort above normal windows during render; within the slice, Create
// simply appends — render.go separates panels itself).
func (t *Table) Create(geom Geometry, title string, chromeColor uint32, kind Kind, surfaceID int) ID {
	t.nextID++
	w := &Window{
		ID:          t.nextID,
		Geometry:    geom,
		Title:       title,
		ChromeColor: chromeColor,
		Kind:        kind,
		SurfaceID:   surfaceID,
		Visible:     true,
	}
	t.windows = append(t.windows, w)
	return w.ID
}

// Get returns the window with the given ID, or nil.
func (t *Table) Get(id ID) *Window {
	for _, w := range t.windows {
		if w.ID == id {
			return w
		}
	}
	return nil
}

// All returns the stack back-to-front, panels and normal windows
// interleaved in table order. Callers that need draw order should use
// NormalWindows/Panels instead.
func (t *Table) All() []*Window { return t.windows }

// NormalWindows returns non-panel windows back-to-front.
func (t *Table) NormalWindows() []*Window {
	out := make([]*Window, 0, len(t.windows))
	for _, w := range t.windows {
		if !w.Panel {
			out = append(out, w)
		}
	}
	return out
}

// Panels returns panel windows back-to-front.
func (t *Table) Panels() []*Window {
	out := make([]*Window, 0)
	for _, w := range t.windows {
		if w.Panel {
			out = append(out, w)
		}
	}
	return out
}

// ReservedBottom sums the height of every visible bottom-anchored
// panel, for callers computing how much screen a maximized window may
// occupy.
func (t *Table) ReservedBottom() int {
	h := 0
	for _, w := range t.windows {
		if w.Panel && w.Visible {
			h += w.Geometry.H
		}
	}
	return h
}

// Focused returns the currently focused window, or nil.
func (t *Table) Focused() *Window {
	if t.focused == 0 {
		return nil
	}
	return t.Get(t.focused)
}

// Destroy removes a window from the stack, clearing focus if it was
// focused. Callers are responsible for cascading surface destruction.
func (t *Table) Destroy(id ID) {
	for i, w := range t.windows {
		if w.ID == id {
			t.windows = append(t.windows[:i], t.windows[i+1:]...)
			if t.focused == id {
				t.focused = 0
			}
			if t.activeID == id {
				t.mode = Idle
				t.activeID = 0
			}
			return
		}
	}
}

// Focus moves w to the top of the non-panel region and makes it the
// focused window. Panels are never focusable.
func (t *Table) Focus(id ID) {
	w := t.Get(id)
	if w == nil || w.Panel {
		return
	}

	// Remove w from its current position and re-insert it immediately
	// before the first panel (so panels stay rendered last) — this
	// keeps "topmost non-panel" true without disturbing panel order.
	idx := -1
	for i, ww := range t.windows {
		if ww == w {
			idx = i
			break
		}
	}
	if idx < 0 {
		return
	}
	t.windows = append(t.windows[:idx], t.windows[idx+1:]...)

	insertAt := len(t.windows)
	for i, ww := range t.windows {
		if ww.Panel {
			insertAt = i
			break
		}
	}
	t.windows = append(t.windows, nil)
	copy(t.windows[insertAt+1:], t.windows[insertAt:])
	t.windows[insertAt] = w

	t.focused = id
}

// ClearFocusIfEqual clears the focused window if it matches id, used by
// close/minimize handling.
func (t *Table) ClearFocusIfEqual(id ID) {
	if t.focused == id {
		t.focused = 0
	}
}

// HitTest returns the topmost window under (x,y), panels first (their
// hit zone is their full rect), then non-panels front-to-back.
func (t *Table) HitTest(x, y int) (ID, bool) {
	panels := t.Panels()
	for i := len(panels) - 1; i >= 0; i-- {
		if contains(panels[i].Geometry, x, y) {
			return panels[i].ID, true
		}
	}
	normal := t.NormalWindows()
	for i := len(normal) - 1; i >= 0; i-- {
		if normal[i].Visible && contains(normal[i].Geometry, x, y) {
			return normal[i].ID, true
		}
	}
	return 0, false
}

func contains(g Geometry, x, y int) bool {
	return x >= g.X && x < g.X+g.W && y >= g.Y && y < g.Y+g.H
}

// BeginDrag enters Dragging mode for id, latching the pointer's offset
// from the window origin.
func (t *Table) BeginDrag(id ID, offX, offY int) {
	t.mode = Dragging
	t.activeID = id
	t.dragOffX = offX
	t.dragOffY = offY
}

// BeginResize enters Resizing mode for id at the given edge, latching
// the original geometry so the final size is always computed from a
// stable reference point.
func (t *Table) BeginResize(id ID, edge Edge) {
	w := t.Get(id)
	if w == nil {
		return
	}
	t.mode = Resizing
	t.activeID = id
	t.resizeEdge = edge
	t.latched = w.Geometry
}

// Mode reports the table's current interaction mode.
func (t *Table) Mode() Mode { return t.mode }

// ActiveID reports the window id under drag/resize, or 0 in Idle mode.
func (t *Table) ActiveID() ID { return t.activeID }

// DragTo updates the active window's position while Dragging.
func (t *Table) DragTo(cursorX, cursorY int) {
	if t.mode != Dragging {
		return
	}
	w := t.Get(t.activeID)
	if w == nil {
		return
	}
	w.Geometry.X = cursorX - t.dragOffX
	w.Geometry.Y = cursorY - t.dragOffY
}

// ResizeTo updates the active window's size while Resizing, from the
// latched original geometry and a cursor delta.
func (t *Table) ResizeTo(dx, dy int) {
	if t.mode != Resizing {
		return
	}
	w := t.Get(t.activeID)
	if w == nil {
		return
	}
	w.Geometry = t.latched
	switch t.resizeEdge {
	case EdgeRight:
		w.Geometry.W = clampMin(t.latched.W+dx, MinW)
	case EdgeBottom:
		w.Geometry.H = clampMin(t.latched.H+dy, MinH+TitlebarHeight)
	case EdgeBottomRight:
		w.Geometry.W = clampMin(t.latched.W+dx, MinW)
		w.Geometry.H = clampMin(t.latched.H+dy, MinH+TitlebarHeight)
	}
}

func clampMin(v, min int) int {
	if v < min {
		return min
	}
	return v
}

// EndInteraction exits Dragging/Resizing. When exiting Resizing, it
// reports the final content size (window size minus titlebar) so the
// caller can emit a Configure event; wasResize is false when no resize
// was in progress.
func (t *Table) EndInteraction() (id ID, contentW, contentH int, wasResize bool) {
	id = t.activeID
	wasResize = t.mode == Resizing
	if w := t.Get(id); w != nil && wasResize {
		contentW = w.Geometry.W
		contentH = w.ContentHeight()
	}
	t.mode = Idle
	t.activeID = 0
	return
}

// ToggleMaximize toggles maximized state, saving/restoring geometry
// against the given screen size and bottom-reserved area (panel
// height). Returns true if the resulting geometry changed so the caller
// can emit Configure.
func (t *Table) ToggleMaximize(id ID, screenW, screenH, reservedBottom int) bool {
	w := t.Get(id)
	if w == nil || w.Panel {
		return false
	}
	if w.Maximized {
		if w.HasSavedGeom {
			w.Geometry = w.SavedGeom
		}
		w.Maximized = false
		return true
	}
	w.SavedGeom = w.Geometry
	w.HasSavedGeom = true
	w.Geometry = Geometry{X: 0, Y: 0, W: screenW, H: screenH - reservedBottom}
	w.Maximized = true
	return true
}

// Minimize hides a window and clears focus if it was focused.
func (t *Table) Minimize(id ID) {
	w := t.Get(id)
	if w == nil {
		return
	}
	w.Visible = false
	w.Minimized = true
	t.ClearFocusIfEqual(id)
}

// Restore un-minimizes a window.
func (t *Table) Restore(id ID) {
	w := t.Get(id)
	if w == nil {
		return
	}
	w.Visible = true
	w.Minimized = false
}

// Raise un-minimizes (if needed) and moves id to the topmost non-panel
// position, matching RAISE_SURFACE semantics. It does so through Focus,
// so the raised window also becomes the focused one.
func (t *Table) Raise(id ID) error {
	w := t.Get(id)
	if w == nil {
		return fmt.Errorf("wm: raise: no such window %d", id)
	}
	if w.Minimized {
		t.Restore(id)
	}
	t.Focus(id)
	return nil
}
