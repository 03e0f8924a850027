// Package client implements the CDP client library (C8): connection,
// surface creation, shared-buffer allocation, commit, and event dispatch
// callbacks. It is grounded on the internal/userhelper
// client-side connect-with-retry idiom and the ipc.Conn request/
// response wrapper shape, generalized from JSON-over-socket requests to
// CDP's binary framing plus fd-backed shared memory.
package client

import (
	"fmt"
	"net"
	"time"

	"github.com/citc-os/workstation/internal/cdp/wire"
	"github.com/citc-os/workstation/internal/logging"
)

var log = logging.L("cdp-client")

// Connection is one CDP session from the client's perspective.
type Connection struct {
	conn *wire.Conn

	ScreenW, ScreenH, Version uint32

	onFrameDone      func(surfaceID uint32)
	onPointerMotion  func(id uint32, x, y int32)
	onPointerButton  func(id, btn, state uint32)
	onPointerEnter   func(id uint32, x, y int32)
	onPointerLeave   func(id uint32)
	onFocusIn        func(id uint32)
	onFocusOut       func(id uint32)
	onKey            func(keycode, state, char, mods uint32)
	onConfigure      func(id, w, h uint32)
	onWindowList     func(wire.WindowList)
	onClipboardData  func([]byte)
}

// Callbacks installs event handlers; any left nil are simply ignored
// when their event type arrives.
type Callbacks struct {
	OnFrameDone     func(surfaceID uint32)
	OnPointerMotion func(id uint32, x, y int32)
	OnPointerButton func(id, btn, state uint32)
	OnPointerEnter  func(id uint32, x, y int32)
	OnPointerLeave  func(id uint32)
	OnFocusIn       func(id uint32)
	OnFocusOut      func(id uint32)
	OnKey           func(keycode, state, char, mods uint32)
	OnConfigure     func(id, w, h uint32)
	OnWindowList    func(wire.WindowList)
	OnClipboardData func([]byte)
}

// Connect dials the compositor's Unix socket, retrying several times on
// ECONNREFUSED (the server boot race), then awaits WELCOME.
func Connect(socketPath string, cb Callbacks) (*Connection, error) {
	var (
		raw net.Conn
		err error
	)
	for attempt := 0; attempt < 10; attempt++ {
		raw, err = net.Dial("unix", socketPath)
		if err == nil {
			break
		}
		time.Sleep(100 * time.Millisecond)
	}
	if err != nil {
		return nil, fmt.Errorf("cdp client: connect: %w", err)
	}

	c := &Connection{
		conn:            wire.NewConn(raw),
		onFrameDone:     cb.OnFrameDone,
		onPointerMotion: cb.OnPointerMotion,
		onPointerButton: cb.OnPointerButton,
		onPointerEnter:  cb.OnPointerEnter,
		onPointerLeave:  cb.OnPointerLeave,
		onFocusIn:       cb.OnFocusIn,
		onFocusOut:      cb.OnFocusOut,
		onKey:           cb.OnKey,
		onConfigure:     cb.OnConfigure,
		onWindowList:    cb.OnWindowList,
		onClipboardData: cb.OnClipboardData,
	}

	typ, payload, err := c.conn.Recv()
	if err != nil {
		raw.Close()
		return nil, fmt.Errorf("cdp client: awaiting WELCOME: %w", err)
	}
	if typ != wire.EvtWelcome {
		raw.Close()
		return nil, fmt.Errorf("cdp client: expected WELCOME, got type %d", typ)
	}
	welcome, err := wire.DecodeWelcome(payload)
	if err != nil {
		raw.Close()
		return nil, err
	}
	c.ScreenW, c.ScreenH, c.Version = welcome.ScreenW, welcome.ScreenH, welcome.Version
	return c, nil
}

// Close closes the underlying connection.
func (c *Connection) Close() error { return c.conn.Close() }

// Dispatch reads one event and invokes the matching installed callback.
// It returns io.EOF on disconnect.
func (c *Connection) Dispatch() error {
	typ, payload, err := c.conn.Recv()
	if err != nil {
		return err
	}

	switch typ {
	case wire.EvtFrameDone:
		if id, err := wire.DecodeIDOnly(payload); err == nil && c.onFrameDone != nil {
			c.onFrameDone(id.ID)
		}
	case wire.EvtPointerMotion:
		if m, err := wire.DecodePointerMotion(payload); err == nil && c.onPointerMotion != nil {
			c.onPointerMotion(m.ID, m.X, m.Y)
		}
	case wire.EvtPointerButton:
		if b, err := wire.DecodePointerButton(payload); err == nil && c.onPointerButton != nil {
			c.onPointerButton(b.ID, b.Button, b.State)
		}
	case wire.EvtPointerEnter:
		if m, err := wire.DecodePointerMotion(payload); err == nil && c.onPointerEnter != nil {
			c.onPointerEnter(m.ID, m.X, m.Y)
		}
	case wire.EvtPointerLeave:
		if id, err := wire.DecodeIDOnly(payload); err == nil && c.onPointerLeave != nil {
			c.onPointerLeave(id.ID)
		}
	case wire.EvtFocusIn:
		if id, err := wire.DecodeIDOnly(payload); err == nil && c.onFocusIn != nil {
			c.onFocusIn(id.ID)
		}
	case wire.EvtFocusOut:
		if id, err := wire.DecodeIDOnly(payload); err == nil && c.onFocusOut != nil {
			c.onFocusOut(id.ID)
		}
	case wire.EvtKey:
		if k, err := wire.DecodeKey(payload); err == nil && c.onKey != nil {
			c.onKey(k.Keycode, k.State, k.Char, k.Mods)
		}
	case wire.EvtConfigure:
		if cf, err := wire.DecodeConfigure(payload); err == nil && c.onConfigure != nil {
			c.onConfigure(cf.ID, cf.W, cf.H)
		}
	case wire.EvtWindowList:
		if wl, err := wire.DecodeWindowList(payload); err == nil && c.onWindowList != nil {
			c.onWindowList(wl)
		}
	case wire.EvtClipboardData:
		if b, err := wire.DecodeBytes(payload); err == nil && c.onClipboardData != nil {
			c.onClipboardData(b.Data)
		}
	default:
		log.Debug("dispatch: unhandled event type", "type", typ)
	}
	return nil
}
