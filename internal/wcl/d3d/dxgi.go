package d3d

import (
	"github.com/citc-os/workstation/internal/wcl/gdi32"
	"github.com/citc-os/workstation/internal/wcl/winabi"
)

// SwapChain is an IDXGISwapChain: a back-buffer texture plus a
// Present that copies it into a window's pixel buffer and commits the
// surface — the same "internal API wired directly to the HWND's
// PixelTarget" shape user32's BeginPaint/gdi32.CreateDC pairing uses,
// generalized from "blit on WM_PAINT" to "blit on Present".
type SwapChain struct {
	dev        *Device
	backBuffer winabi.Handle
	backRTV    winabi.Handle

	target *gdi32.PixelTarget
	commit func() // nil if the compositor connection is unavailable; Present then just blits locally
}

// NewSwapChain creates a back buffer sized to target and binds
// Present to copy into it. commit is called after every successful
// blit to flush the surface to the compositor; pass nil to skip that
// (headless/local-fallback windows, per user32's own local-buffer
// fallback).
func NewSwapChain(dev *Device, target *gdi32.PixelTarget, commit func()) *SwapChain {
	back := dev.CreateTexture2D(target.W, target.H)
	rtv := dev.CreateRenderTargetView(back)
	return &SwapChain{dev: dev, backBuffer: back, backRTV: rtv, target: target, commit: commit}
}

// GetBuffer(UINT Buffer, REFIID riid, void **ppSurface) — this port
// only ever has one back buffer, so the index is ignored.
func (s *SwapChain) GetBuffer() winabi.Handle { return s.backBuffer }

// GetRenderTargetView returns the RTV bound to the back buffer, for
// OMSetRenderTargets — GetBuffer returns the underlying texture
// resource, matching ID3D12Resource vs. a bound RTV being distinct
// objects in the real API.
func (s *SwapChain) GetRenderTargetView() winabi.Handle { return s.backRTV }

// Present(UINT SyncInterval, UINT Flags) copies the back buffer's
// RGBA8 plane into the window's BGRX PixelTarget and commits the
// surface, matching the "Present copies that plane into the
// HWND's pixel buffer and commits the surface" requirement.
func (s *SwapChain) Present() {
	tex := s.dev.texture(s.backBuffer)
	if tex == nil {
		return
	}
	w, h := tex.Width, tex.Height
	if w > s.target.W {
		w = s.target.W
	}
	if h > s.target.H {
		h = s.target.H
	}
	for y := 0; y < h; y++ {
		srcRow := y * tex.Width * 4
		dstRow := y * s.target.Stride
		for x := 0; x < w; x++ {
			si := srcRow + x*4
			di := dstRow + x*4
			r, g, b, a := tex.Pix[si], tex.Pix[si+1], tex.Pix[si+2], tex.Pix[si+3]
			s.target.Pix[di+0] = b
			s.target.Pix[di+1] = g
			s.target.Pix[di+2] = r
			s.target.Pix[di+3] = a
		}
	}
	if s.commit != nil {
		s.commit()
	}
}

// ResizeBuffers(UINT BufferCount, UINT Width, UINT Height, ...)
func (s *SwapChain) ResizeBuffers(width, height int) {
	s.dev.resources.Free(s.backBuffer)
	s.dev.resources.Free(s.backRTV)
	s.backBuffer = s.dev.CreateTexture2D(width, height)
	s.backRTV = s.dev.CreateRenderTargetView(s.backBuffer)
}
