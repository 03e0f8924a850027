package wm

import "testing"

func newWindow(t *Table, x, y, w, h int) ID {
	return t.Create(Geometry{X: x, Y: y, W: w, H: h}, "", 0, External, 0)
}

func TestFocusMovesWindowToTop(t *testing.T) {
	tbl := NewTable()
	a := newWindow(tbl, 0, 0, 100, 100)
	b := newWindow(tbl, 10, 10, 100, 100)
	_ = b

	tbl.Focus(a)

	normal := tbl.NormalWindows()
	if normal[len(normal)-1].ID != a {
		t.Fatalf("expected %d topmost, got %d", a, normal[len(normal)-1].ID)
	}
	if tbl.Focused().ID != a {
		t.Fatalf("expected focused = %d, got %d", a, tbl.Focused().ID)
	}
}

func TestFocusPreservesPanelRelativeOrder(t *testing.T) {
	tbl := NewTable()
	p1 := tbl.Create(Geometry{0, 0, 800, 32}, "", 0, External, 0)
	tbl.Get(p1).Panel = true
	p2 := tbl.Create(Geometry{0, 600, 800, 32}, "", 0, External, 0)
	tbl.Get(p2).Panel = true

	a := newWindow(tbl, 0, 0, 100, 100)
	tbl.Focus(a)

	panels := tbl.Panels()
	if len(panels) != 2 || panels[0].ID != p1 || panels[1].ID != p2 {
		t.Fatalf("panel order changed: %+v", panels)
	}
}

func TestHitTestPrefersPanelOverWindow(t *testing.T) {
	tbl := NewTable()
	w := newWindow(tbl, 0, 550, 800, 100)
	p := tbl.Create(Geometry{0, 600 - 32, 800, 32}, "", 0, External, 0)
	tbl.Get(p).Panel = true
	_ = w

	got, ok := tbl.HitTest(10, 590)
	if !ok {
		t.Fatal("expected a hit")
	}
	if got != p {
		t.Fatalf("hit = %d, want panel %d", got, p)
	}
}

func TestDestroyCascadesFocus(t *testing.T) {
	tbl := NewTable()
	a := newWindow(tbl, 0, 0, 100, 100)
	tbl.Focus(a)
	tbl.Destroy(a)

	if tbl.Focused() != nil {
		t.Fatal("expected no focused window after destroying the focused one")
	}
	if tbl.Get(a) != nil {
		t.Fatal("expected window to be gone")
	}
}

func TestResizeLatchesFromOriginalGeometry(t *testing.T) {
	tbl := NewTable()
	a := newWindow(tbl, 0, 0, 300, 200+TitlebarHeight)

	tbl.BeginResize(a, EdgeBottomRight)
	tbl.ResizeTo(40, 30)
	tbl.ResizeTo(40, 30) // idempotent: repeated deltas from the same latch

	w := tbl.Get(a)
	if w.Geometry.W != 340 {
		t.Fatalf("W = %d, want 340", w.Geometry.W)
	}
	if w.Geometry.H != 200+TitlebarHeight+30 {
		t.Fatalf("H = %d, want %d", w.Geometry.H, 200+TitlebarHeight+30)
	}

	_, contentW, contentH, wasResize := tbl.EndInteraction()
	if !wasResize {
		t.Fatal("expected EndInteraction to report a resize")
	}
	if contentW != 340 || contentH != 230 {
		t.Fatalf("content size = %dx%d, want 340x230", contentW, contentH)
	}
}

func TestToggleMaximizeSavesAndRestoresGeometry(t *testing.T) {
	tbl := NewTable()
	a := newWindow(tbl, 10, 10, 300, 200)

	tbl.ToggleMaximize(a, 1920, 1080, 32)
	w := tbl.Get(a)
	if !w.Maximized || w.Geometry.W != 1920 || w.Geometry.H != 1080-32 {
		t.Fatalf("unexpected maximized geometry: %+v", w.Geometry)
	}

	tbl.ToggleMaximize(a, 1920, 1080, 32)
	w = tbl.Get(a)
	if w.Maximized || w.Geometry.W != 300 || w.Geometry.H != 200 {
		t.Fatalf("unexpected restored geometry: %+v", w.Geometry)
	}
}
