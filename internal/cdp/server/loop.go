package server

import (
	"io"

	"github.com/citc-os/workstation/internal/cdp/wire"
	"github.com/citc-os/workstation/internal/compositor/input"
	"github.com/citc-os/workstation/internal/compositor/wm"
	"github.com/citc-os/workstation/internal/logging"
)

// pollClient drains exactly one frame from client idx and applies it.
// Any error (including io.EOF) causes that client to be disconnected,
// matching "any read/write error or 0-byte read on a client triggers
// disconnect_client(idx)".
func (s *Server) pollClient(idx int) {
	c := s.clients[idx]
	if c == nil {
		return
	}

	// RecvWithFD degrades gracefully (fd==-1) when no ancillary data
	// arrives, so it is always safe to call even for requests that
	// never carry a descriptor.
	typ, payload, fd, err := c.conn.RecvWithFD()
	if err != nil {
		if err != io.EOF {
			log.Debug("client read error", logging.KeyClientIdx, idx, logging.KeyError, err)
		}
		s.disconnectClient(idx)
		return
	}

	if err := s.handle(idx, typ, payload, fd); err != nil {
		log.Warn("protocol violation, closing connection", logging.KeyClientIdx, idx, logging.KeyError, err)
		s.disconnectClient(idx)
	}
}

// InputModifiers is process-wide shift/ctrl state threaded through
// RouteInput across calls.
type InputModifiers = input.Modifiers

// RouteInput applies one normalized input event, updating the window
// table's drag/resize/focus state and/or serializing the event to the
// appropriate client, per the input-routing rules. pointer is
// the last known absolute pointer position, updated here for motion
// events and read back for button events (a button event carries no
// position of its own).
func (s *Server) RouteInput(ev input.Event, mods *InputModifiers, pointer *struct{ X, Y int }) {
	switch ev.Type {
	case input.EventKey:
		if mods.Apply(ev.RawCode, ev.Pressed) {
			return
		}
		s.routeKey(ev, *mods)
	case input.EventPointerAbs:
		pointer.X, pointer.Y = ev.XRaw, ev.YRaw
		s.routePointerMotion(pointer.X, pointer.Y)
	case input.EventPointerRel:
		pointer.X += ev.DX
		pointer.Y += ev.DY
		s.routePointerMotion(pointer.X, pointer.Y)
	case input.EventButton:
		s.routePointerButton(pointer.X, pointer.Y, ev)
	}
}

// routeKey sends a KEY event only to the focused external surface's
// client; an internal focused window consumes it locally (a no-op
// here, since this port has no internal-window content renderer).
func (s *Server) routeKey(ev input.Event, mods InputModifiers) {
	w := s.Table.Focused()
	if w == nil {
		return
	}
	sf := s.surfaceFor(w)
	if sf == nil {
		return
	}
	ch := input.Translate(ev.RawCode, mods)
	modBits := uint32(0)
	if mods.Shift {
		modBits |= 1
	}
	if mods.Ctrl {
		modBits |= 2
	}
	evt := wire.Key{Keycode: uint32(ev.RawCode), State: boolToU32(ev.Pressed), Char: uint32(ch), Mods: modBits}
	s.send(sf, wire.EvtKey, evt.Encode())
}

// routePointerMotion resolves the window under (x,y) — panel or
// focused — and forwards a client-local POINTER_MOTION, additionally
// sending POINTER_LEAVE/POINTER_ENTER to the previous/new hover
// surface whenever the window under the pointer changes. While the
// table is Dragging or Resizing, motion instead updates the active
// window's geometry directly and marks full damage — the pointer may
// be over any window (or none) mid-drag, so hover/enter/leave routing
// does not apply.
func (s *Server) routePointerMotion(x, y int) {
	switch s.Table.Mode() {
	case wm.Dragging:
		s.Table.DragTo(x, y)
		s.Damage.AddFull()
		return
	case wm.Resizing:
		s.Table.ResizeTo(x-s.resizeStartX, y-s.resizeStartY)
		s.Damage.AddFull()
		return
	}

	w := s.windowForPointer(x, y)
	s.updateHover(w, x, y)
	if w == nil {
		return
	}
	sf := s.surfaceFor(w)
	if sf == nil {
		return
	}
	evt := wire.PointerMotion{ID: uint32(w.SurfaceID), X: int32(x - w.Geometry.X), Y: int32(y - w.Geometry.Y)}
	s.send(sf, wire.EvtPointerMotion, evt.Encode())
}

// updateHover emits POINTER_LEAVE to the window that previously had the
// pointer and POINTER_ENTER to w, if either changed since last call.
func (s *Server) updateHover(w *wm.Window, x, y int) {
	var newID wm.ID
	if w != nil {
		newID = w.ID
	}
	if newID == s.hoverWindow {
		return
	}
	if old := s.Table.Get(s.hoverWindow); old != nil {
		if sf := s.surfaceFor(old); sf != nil {
			s.send(sf, wire.EvtPointerLeave, wire.IDOnly{ID: uint32(old.SurfaceID)}.Encode())
		}
	}
	s.hoverWindow = newID
	if w != nil {
		if sf := s.surfaceFor(w); sf != nil {
			evt := wire.PointerMotion{ID: uint32(w.SurfaceID), X: int32(x - w.Geometry.X), Y: int32(y - w.Geometry.Y)}
			s.send(sf, wire.EvtPointerEnter, evt.Encode())
		}
	}
}

// setFocus focuses id in the window table and emits FOCUS_OUT/FOCUS_IN
// to the surfaces losing and gaining focus.
func (s *Server) setFocus(id wm.ID) {
	prev := s.lastFocused
	s.Table.Focus(id)
	s.lastFocused = id
	if prev == id {
		return
	}
	if old := s.Table.Get(prev); old != nil {
		if sf := s.surfaceFor(old); sf != nil {
			s.send(sf, wire.EvtFocusOut, wire.IDOnly{ID: uint32(old.SurfaceID)}.Encode())
		}
	}
	if w := s.Table.Get(id); w != nil {
		if sf := s.surfaceFor(w); sf != nil {
			s.send(sf, wire.EvtFocusIn, wire.IDOnly{ID: uint32(w.SurfaceID)}.Encode())
		}
	}
}

// routePointerButton implements the §4.4 per-button-down chrome state
// machine. Panels receive a routed POINTER_BUTTON without changing
// focus or entering any interaction mode. On a non-panel window,
// button-down hit-tests close/minimize/maximize/resize-edge/titlebar/
// client-area and dispatches accordingly; button-up exits
// Dragging/Resizing, emitting CONFIGURE when a resize just ended.
func (s *Server) routePointerButton(x, y int, ev input.Event) {
	if !ev.Pressed {
		s.endInteraction()
	}

	w := s.windowForPointer(x, y)
	if w == nil {
		return
	}
	if w.Panel {
		sf := s.surfaceFor(w)
		if sf != nil {
			evt := wire.PointerButton{ID: uint32(w.SurfaceID), Button: uint32(ev.ButtonCode), State: boolToU32(ev.Pressed)}
			s.send(sf, wire.EvtPointerButton, evt.Encode())
		}
		return
	}
	if !ev.Pressed {
		return // release already handled by endInteraction above
	}

	zone, edge := w.HitChrome(x, y)
	switch zone {
	case wm.ZoneClose:
		s.closeWindow(w)
	case wm.ZoneMinimize:
		s.Table.Minimize(w.ID)
		s.Damage.AddFull()
	case wm.ZoneMaximize:
		if s.Table.ToggleMaximize(w.ID, s.ScreenW, s.ScreenH, s.Table.ReservedBottom()) {
			s.Damage.AddFull()
			s.emitConfigure(w, w.Geometry.W, w.ContentHeight())
		}
	case wm.ZoneResize:
		s.Table.BeginResize(w.ID, edge)
		s.resizeStartX, s.resizeStartY = x, y
	case wm.ZoneTitlebar:
		s.setFocus(w.ID)
		s.Table.BeginDrag(w.ID, x-w.Geometry.X, y-w.Geometry.Y)
	case wm.ZoneClient:
		s.setFocus(w.ID)
	}
}

// endInteraction exits Dragging/Resizing, if either is active, and
// emits CONFIGURE carrying the new content size when a resize ends.
func (s *Server) endInteraction() {
	id, contentW, contentH, wasResize := s.Table.EndInteraction()
	if !wasResize {
		return
	}
	if w := s.Table.Get(id); w != nil {
		s.emitConfigure(w, contentW, contentH)
	}
}

// emitConfigure sends CONFIGURE to w's client, if it has one.
func (s *Server) emitConfigure(w *wm.Window, width, height int) {
	sf := s.surfaceFor(w)
	if sf == nil {
		return
	}
	evt := wire.Configure{ID: uint32(w.SurfaceID), W: uint32(width), H: uint32(height)}
	s.send(sf, wire.EvtConfigure, evt.Encode())
}

// closeWindow implements the close-button transition: hide the
// window, cascade surface destruction exactly as DESTROY_SURFACE does,
// and clear focus if it pointed at this window.
func (s *Server) closeWindow(w *wm.Window) {
	w.Visible = false
	s.Table.ClearFocusIfEqual(w.ID)
	if sf := s.surfaceFor(w); sf != nil {
		unmap(sf.Mapping)
		if slot := slotForSurfaceID(uint32(w.SurfaceID)); slot >= 0 && slot < MaxSurfaces {
			s.surfaces[slot] = nil
		}
	}
	s.Table.Destroy(w.ID)
	s.Damage.AddFull()
}

func (s *Server) windowForPointer(x, y int) *wm.Window {
	id, ok := s.Table.HitTest(x, y)
	if !ok {
		return nil
	}
	return s.Table.Get(id)
}

func boolToU32(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}

func (s *Server) surfaceFor(w *wm.Window) *Surface {
	if w.Kind != wm.External {
		return nil
	}
	return s.surfaceByID(uint32(w.SurfaceID))
}

func (s *Server) send(sf *Surface, typ wire.Type, payload []byte) {
	c := s.clients[sf.ClientIdx]
	if c == nil {
		return
	}
	if err := c.conn.Send(typ, payload); err != nil {
		s.disconnectClient(sf.ClientIdx)
	}
}
