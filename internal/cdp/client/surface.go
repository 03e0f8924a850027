package client

import (
	"fmt"

	"github.com/citc-os/workstation/internal/cdp/wire"
)

// Surface is a client-owned CDP surface: a CREATE_SURFACE'd window
// backed by an anonymous shared-memory buffer the client writes into
// and the server samples after COMMIT.
type Surface struct {
	conn *Connection

	ID     uint32
	W, H   int
	Stride int
	Format wire.PixelFormat

	Pix []byte // read-write, owned by the client until Destroy
	fd  int
}

// CreateSurface performs CREATE_SURFACE, awaits SURFACE_ID, allocates
// and maps an anonymous shared-memory buffer sized w*h XRGB8888 pixels,
// attaches it, and sets the title.
func (c *Connection) CreateSurface(x, y, w, h int, title string) (*Surface, error) {
	req := wire.CreateSurface{X: int32(x), Y: int32(y), W: int32(w), H: int32(h)}
	if err := c.conn.Send(wire.ReqCreateSurface, req.Encode()); err != nil {
		return nil, fmt.Errorf("cdp client: CREATE_SURFACE: %w", err)
	}

	typ, payload, err := c.conn.Recv()
	if err != nil {
		return nil, fmt.Errorf("cdp client: awaiting SURFACE_ID: %w", err)
	}
	if typ != wire.EvtSurfaceID {
		return nil, fmt.Errorf("cdp client: expected SURFACE_ID, got type %d", typ)
	}
	sid, err := wire.DecodeSurfaceID(payload)
	if err != nil {
		return nil, err
	}

	stride := w * 4
	fd, pix, err := allocSharedBuffer(stride * h)
	if err != nil {
		return nil, fmt.Errorf("cdp client: alloc shared buffer: %w", err)
	}

	s := &Surface{conn: c, ID: sid.ID, W: w, H: h, Stride: stride, Format: wire.FormatXRGB8888, Pix: pix, fd: fd}

	attach := wire.AttachBuffer{ID: s.ID, W: uint32(w), H: uint32(h), Stride: uint32(stride), Format: s.Format}
	if err := c.conn.SendWithFD(wire.ReqAttachBuffer, attach.Encode(), fd); err != nil {
		return nil, fmt.Errorf("cdp client: ATTACH_BUFFER: %w", err)
	}

	titleReq := wire.SetTitle{ID: s.ID, Title: title}
	if err := c.conn.Send(wire.ReqSetTitle, titleReq.Encode()); err != nil {
		return nil, fmt.Errorf("cdp client: SET_TITLE: %w", err)
	}

	return s, nil
}

// Commit marks the attached buffer ready to sample.
func (s *Surface) Commit() error {
	req := wire.IDOnly{ID: s.ID}
	return s.conn.conn.Send(wire.ReqCommit, req.Encode())
}

// RequestFrame arms a one-shot FRAME_DONE for the next composited frame.
func (s *Surface) RequestFrame() error {
	req := wire.IDOnly{ID: s.ID}
	return s.conn.conn.Send(wire.ReqFrame, req.Encode())
}

// Destroy sends DESTROY_SURFACE and releases the shared buffer.
func (s *Surface) Destroy() error {
	req := wire.IDOnly{ID: s.ID}
	if err := s.conn.conn.Send(wire.ReqDestroySurface, req.Encode()); err != nil {
		return err
	}
	return freeSharedBuffer(s.fd, s.Pix)
}

// SetPanel reshapes this surface into a panel anchored to edge with the
// given height.
func (s *Surface) SetPanel(edge wire.PanelEdge, height int) error {
	req := wire.SetPanel{ID: s.ID, Edge: edge, Height: uint32(height)}
	return s.conn.conn.Send(wire.ReqSetPanel, req.Encode())
}

// Damage reports a client-local damaged rectangle.
func (s *Surface) Damage(x, y, w, h int) error {
	req := wire.Damage{ID: s.ID, X: int32(x), Y: int32(y), W: int32(w), H: int32(h)}
	return s.conn.conn.Send(wire.ReqDamage, req.Encode())
}

// Raise requests RAISE_SURFACE for this surface.
func (s *Surface) Raise() error {
	req := wire.IDOnly{ID: s.ID}
	return s.conn.conn.Send(wire.ReqRaiseSurface, req.Encode())
}

// ListWindows requests the server's window list.
func (c *Connection) ListWindows() error {
	return c.conn.Send(wire.ReqListWindows, nil)
}

// ClipboardSet overwrites the server's clipboard buffer.
func (c *Connection) ClipboardSet(data []byte) error {
	req := wire.Bytes{Data: data}
	return c.conn.Send(wire.ReqClipboardSet, req.Encode())
}

// ClipboardGet requests the server's current clipboard contents; the
// result arrives asynchronously via the OnClipboardData callback.
func (c *Connection) ClipboardGet() error {
	return c.conn.Send(wire.ReqClipboardGet, nil)
}
