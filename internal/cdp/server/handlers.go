package server

import (
	"fmt"

	"github.com/citc-os/workstation/internal/cdp/wire"
	"github.com/citc-os/workstation/internal/compositor/wm"
)

// handle dispatches one decoded frame from client idx. Any returned
// error causes the caller to disconnect the client, matching the
// "protocol violation closes the connection" rule.
func (s *Server) handle(idx int, typ wire.Type, payload []byte, fd int) error {
	c := s.clients[idx]
	switch typ {
	case wire.ReqCreateSurface:
		return s.handleCreateSurface(c, payload)
	case wire.ReqDestroySurface:
		return s.handleDestroySurface(c, payload)
	case wire.ReqAttachBuffer:
		return s.handleAttachBuffer(c, payload, fd)
	case wire.ReqCommit:
		return s.handleCommit(c, payload)
	case wire.ReqFrame:
		return s.handleFrame(c, payload)
	case wire.ReqSetTitle:
		return s.handleSetTitle(c, payload)
	case wire.ReqSetPanel:
		return s.handleSetPanel(c, payload)
	case wire.ReqDamage:
		return s.handleDamage(c, payload)
	case wire.ReqSetMode:
		return nil // geometry changes are host-driven; accepted as a no-op
	case wire.ReqListWindows:
		return s.handleListWindows(c)
	case wire.ReqRaiseSurface:
		return s.handleRaiseSurface(c, payload)
	case wire.ReqClipboardSet:
		return s.handleClipboardSet(c, payload)
	case wire.ReqClipboardGet:
		return s.handleClipboardGet(c)
	default:
		return fmt.Errorf("cdp: unknown request type %d", typ)
	}
}

func (s *Server) handleCreateSurface(c *Client, payload []byte) error {
	req, err := wire.DecodeCreateSurface(payload)
	if err != nil {
		return err
	}

	slot := s.freeSurfaceSlot()
	if slot < 0 {
		return nil // resource exhaustion: no reply, client may retry
	}

	windowH := int(req.H) + wm.TitlebarHeight
	wid := s.Table.Create(wm.Geometry{X: int(req.X), Y: int(req.Y), W: int(req.W), H: windowH}, "", 0x303030, wm.External, int(surfaceIDFor(slot)))

	s.surfaces[slot] = &Surface{ClientIdx: c.idx, WindowID: wid, active: true}
	s.Damage.AddFull()

	reply := wire.SurfaceID{ID: surfaceIDFor(slot)}
	return c.conn.Send(wire.EvtSurfaceID, reply.Encode())
}

func (s *Server) handleDestroySurface(c *Client, payload []byte) error {
	req, err := wire.DecodeIDOnly(payload)
	if err != nil {
		return err
	}
	sf := s.surfaceByID(req.ID)
	if sf == nil || sf.ClientIdx != c.idx {
		return nil
	}
	if w := s.Table.Get(sf.WindowID); w != nil {
		w.Visible = false
	}
	s.Table.Destroy(sf.WindowID)
	unmap(sf.Mapping)
	s.surfaces[slotForSurfaceID(req.ID)] = nil
	s.Damage.AddFull()
	return nil
}

func (s *Server) handleAttachBuffer(c *Client, payload []byte, fd int) error {
	req, err := wire.DecodeAttachBuffer(payload)
	if err != nil {
		return err
	}
	if fd < 0 {
		return fmt.Errorf("cdp: ATTACH_BUFFER missing descriptor")
	}
	sf := s.surfaceByID(req.ID)
	if sf == nil || sf.ClientIdx != c.idx {
		closeFD(fd)
		return nil
	}

	size := int(req.Stride) * int(req.H)
	mapping, err := mapReadOnly(fd, size)
	closeFD(fd)
	if err != nil {
		return fmt.Errorf("cdp: map attached buffer: %w", err)
	}

	unmap(sf.Mapping) // close the previous buffer's mapping, if any
	sf.Mapping = mapping
	sf.W, sf.H, sf.Stride = int(req.W), int(req.H), int(req.Stride)
	sf.Format = req.Format
	return nil
}

func (s *Server) handleCommit(c *Client, payload []byte) error {
	req, err := wire.DecodeIDOnly(payload)
	if err != nil {
		return err
	}
	sf := s.surfaceByID(req.ID)
	if sf == nil || sf.ClientIdx != c.idx {
		return nil
	}
	sf.Committed = true
	if w := s.Table.Get(sf.WindowID); w != nil {
		s.Damage.AddRect(w.Geometry.X, w.Geometry.Y, w.Geometry.W, w.Geometry.H)
	}
	return nil
}

func (s *Server) handleFrame(c *Client, payload []byte) error {
	req, err := wire.DecodeIDOnly(payload)
	if err != nil {
		return err
	}
	sf := s.surfaceByID(req.ID)
	if sf == nil || sf.ClientIdx != c.idx {
		return nil
	}
	sf.FrameRequested = true
	return nil
}

func (s *Server) handleSetTitle(c *Client, payload []byte) error {
	req, err := wire.DecodeSetTitle(payload)
	if err != nil {
		return err
	}
	sf := s.surfaceByID(req.ID)
	if sf == nil || sf.ClientIdx != c.idx {
		return nil
	}
	if w := s.Table.Get(sf.WindowID); w != nil {
		w.Title = req.Title
		s.Damage.AddRect(w.Geometry.X, w.Geometry.Y, w.Geometry.W, wm.TitlebarHeight)
	}
	return nil
}

func (s *Server) handleSetPanel(c *Client, payload []byte) error {
	req, err := wire.DecodeSetPanel(payload)
	if err != nil {
		return err
	}
	sf := s.surfaceByID(req.ID)
	if sf == nil || sf.ClientIdx != c.idx {
		return nil
	}
	w := s.Table.Get(sf.WindowID)
	if w == nil {
		return nil
	}
	w.Panel = true
	w.Geometry = wm.Geometry{X: 0, Y: s.ScreenH - int(req.Height), W: s.ScreenW, H: int(req.Height)}
	s.Damage.AddFull()
	return nil
}

func (s *Server) handleDamage(c *Client, payload []byte) error {
	req, err := wire.DecodeDamage(payload)
	if err != nil {
		return err
	}
	sf := s.surfaceByID(req.ID)
	if sf == nil || sf.ClientIdx != c.idx {
		return nil
	}
	w := s.Table.Get(sf.WindowID)
	if w == nil {
		return nil
	}
	originY := w.Geometry.Y
	if !w.Panel {
		originY += wm.TitlebarHeight
	}
	s.Damage.AddRect(w.Geometry.X+int(req.X), originY+int(req.Y), int(req.W), int(req.H))
	return nil
}

func (s *Server) handleListWindows(c *Client) error {
	list := wire.WindowList{}
	for _, w := range s.Table.NormalWindows() {
		if w.Kind != wm.External {
			continue
		}
		list.Entries = append(list.Entries, wire.WindowListEntry{
			SurfaceID: uint32(w.SurfaceID), Minimized: w.Minimized, Title: w.Title,
		})
	}
	return c.conn.Send(wire.EvtWindowList, list.Encode())
}

func (s *Server) handleRaiseSurface(c *Client, payload []byte) error {
	req, err := wire.DecodeIDOnly(payload)
	if err != nil {
		return err
	}
	sf := s.surfaceByID(req.ID)
	if sf == nil {
		return nil
	}
	if err := s.Table.Raise(sf.WindowID); err != nil {
		return nil
	}
	s.Damage.AddFull()
	return nil
}

func (s *Server) handleClipboardSet(c *Client, payload []byte) error {
	b, err := wire.DecodeBytes(payload)
	if err != nil {
		return err
	}
	data := b.Data
	if len(data) > ClipboardMax {
		data = data[:ClipboardMax]
	}
	s.mu.Lock()
	s.clipboard = data
	s.mu.Unlock()
	return nil
}

func (s *Server) handleClipboardGet(c *Client) error {
	s.mu.Lock()
	data := append([]byte(nil), s.clipboard...)
	s.mu.Unlock()
	reply := wire.Bytes{Data: data}
	return c.conn.Send(wire.EvtClipboardData, reply.Encode())
}
