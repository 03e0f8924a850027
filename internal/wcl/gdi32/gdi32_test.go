package gdi32

import "testing"

func newTestTarget(w, h int) *PixelTarget {
	stride := w * 4
	return &PixelTarget{Pix: make([]byte, stride*h), W: w, H: h, Stride: stride}
}

func TestSetPixelWritesBGRX(t *testing.T) {
	h := NewHost()
	target := newTestTarget(10, 10)
	hdc := h.CreateDC(target)

	h.SetPixel(hdc, 2, 3, 0x00FF0000) // pure red
	i := 3*target.Stride + 2*4
	if target.Pix[i+0] != 0x00 || target.Pix[i+1] != 0x00 || target.Pix[i+2] != 0xFF {
		t.Fatalf("pixel bytes = %v, want B=0 G=0 R=0xFF", target.Pix[i:i+3])
	}
}

func TestFillRectFillsBoundedRegion(t *testing.T) {
	h := NewHost()
	target := newTestTarget(10, 10)
	hdc := h.CreateDC(target)
	brush := h.CreateSolidBrush(0x0000FF00) // green

	h.FillRect(hdc, 2, 2, 5, 5, brush)

	// Inside the rect: green.
	i := 3*target.Stride + 3*4
	if target.Pix[i+1] != 0xFF {
		t.Fatalf("inside rect G = %#x, want 0xFF", target.Pix[i+1])
	}
	// Outside the rect: untouched (zero).
	j := 7*target.Stride + 7*4
	if target.Pix[j] != 0 || target.Pix[j+1] != 0 || target.Pix[j+2] != 0 {
		t.Fatalf("outside rect = %v, want zero", target.Pix[j:j+3])
	}
}

func TestSelectObjectReturnsPrevious(t *testing.T) {
	h := NewHost()
	target := newTestTarget(4, 4)
	hdc := h.CreateDC(target)
	b1 := h.CreateSolidBrush(0x00010101)
	b2 := h.CreateSolidBrush(0x00020202)

	if prev := h.SelectObject(hdc, b1); prev != 0 {
		t.Fatalf("first SelectObject prev = %#x, want 0", prev)
	}
	if prev := h.SelectObject(hdc, b2); prev != b1 {
		t.Fatalf("second SelectObject prev = %#x, want %#x", prev, b1)
	}
}

func TestReleaseDCIsIdempotent(t *testing.T) {
	h := NewHost()
	target := newTestTarget(4, 4)
	hdc := h.CreateDC(target)
	h.ReleaseDC(hdc)
	h.ReleaseDC(hdc) // must not panic

	if got := h.SetPixel(hdc, 0, 0, 0); got != 0xFFFFFFFF {
		t.Fatalf("SetPixel on released HDC = %#x, want failure sentinel", got)
	}
}

func TestTextOutAPaintsOpaqueBackground(t *testing.T) {
	h := NewHost()
	target := newTestTarget(80, 20)
	hdc := h.CreateDC(target)
	h.SetBkMode(hdc, 2) // OPAQUE
	h.SetBkColor(hdc, 0x00001122)
	h.SetTextColor(hdc, 0x00FFFFFF)

	h.TextOutA(hdc, 0, 0, "A")

	// The top-left corner of the cell is background fill, not glyph ink.
	i := 0*target.Stride + 0*4
	if target.Pix[i+0] != 0x22 || target.Pix[i+1] != 0x11 || target.Pix[i+2] != 0x00 {
		t.Fatalf("background pixel = %v, want B=0x22 G=0x11 R=0x00", target.Pix[i:i+3])
	}
}
