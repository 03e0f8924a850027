package wire

import (
	"encoding/binary"
	"fmt"
)

// Payload structs and their Encode/Decode pairs. Every struct encodes to
// a flat, fixed-order little-endian layout; variable-length fields
// (titles, clipboard bytes) are length-prefixed with a uint32.

type CreateSurface struct{ X, Y, W, H int32 }

func (m CreateSurface) Encode() []byte {
	b := make([]byte, 16)
	putI32(b[0:4], m.X)
	putI32(b[4:8], m.Y)
	putI32(b[8:12], m.W)
	putI32(b[12:16], m.H)
	return b
}

func DecodeCreateSurface(p []byte) (CreateSurface, error) {
	if len(p) < 16 {
		return CreateSurface{}, errShort("CreateSurface", 16, len(p))
	}
	return CreateSurface{
		X: getI32(p[0:4]), Y: getI32(p[4:8]), W: getI32(p[8:12]), H: getI32(p[12:16]),
	}, nil
}

type SurfaceID struct{ ID uint32 }

func (m SurfaceID) Encode() []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, m.ID)
	return b
}

func DecodeSurfaceID(p []byte) (SurfaceID, error) {
	if len(p) < 4 {
		return SurfaceID{}, errShort("SurfaceID", 4, len(p))
	}
	return SurfaceID{ID: binary.LittleEndian.Uint32(p[0:4])}, nil
}

type AttachBuffer struct {
	ID             uint32
	W, H, Stride   uint32
	Format         PixelFormat
}

func (m AttachBuffer) Encode() []byte {
	b := make([]byte, 20)
	binary.LittleEndian.PutUint32(b[0:4], m.ID)
	binary.LittleEndian.PutUint32(b[4:8], m.W)
	binary.LittleEndian.PutUint32(b[8:12], m.H)
	binary.LittleEndian.PutUint32(b[12:16], m.Stride)
	binary.LittleEndian.PutUint32(b[16:20], uint32(m.Format))
	return b
}

func DecodeAttachBuffer(p []byte) (AttachBuffer, error) {
	if len(p) < 20 {
		return AttachBuffer{}, errShort("AttachBuffer", 20, len(p))
	}
	return AttachBuffer{
		ID:     binary.LittleEndian.Uint32(p[0:4]),
		W:      binary.LittleEndian.Uint32(p[4:8]),
		H:      binary.LittleEndian.Uint32(p[8:12]),
		Stride: binary.LittleEndian.Uint32(p[12:16]),
		Format: PixelFormat(binary.LittleEndian.Uint32(p[16:20])),
	}, nil
}

type Damage struct {
	ID      uint32
	X, Y, W, H int32
}

func (m Damage) Encode() []byte {
	b := make([]byte, 20)
	binary.LittleEndian.PutUint32(b[0:4], m.ID)
	putI32(b[4:8], m.X)
	putI32(b[8:12], m.Y)
	putI32(b[12:16], m.W)
	putI32(b[16:20], m.H)
	return b
}

func DecodeDamage(p []byte) (Damage, error) {
	if len(p) < 20 {
		return Damage{}, errShort("Damage", 20, len(p))
	}
	return Damage{
		ID: binary.LittleEndian.Uint32(p[0:4]),
		X:  getI32(p[4:8]), Y: getI32(p[8:12]), W: getI32(p[12:16]), H: getI32(p[16:20]),
	}, nil
}

type SetPanel struct {
	ID     uint32
	Edge   PanelEdge
	Height uint32
}

func (m SetPanel) Encode() []byte {
	b := make([]byte, 12)
	binary.LittleEndian.PutUint32(b[0:4], m.ID)
	binary.LittleEndian.PutUint32(b[4:8], uint32(m.Edge))
	binary.LittleEndian.PutUint32(b[8:12], m.Height)
	return b
}

func DecodeSetPanel(p []byte) (SetPanel, error) {
	if len(p) < 12 {
		return SetPanel{}, errShort("SetPanel", 12, len(p))
	}
	return SetPanel{
		ID:     binary.LittleEndian.Uint32(p[0:4]),
		Edge:   PanelEdge(binary.LittleEndian.Uint32(p[4:8])),
		Height: binary.LittleEndian.Uint32(p[8:12]),
	}, nil
}

type SetTitle struct {
	ID    uint32
	Title string
}

func (m SetTitle) Encode() []byte {
	titleBytes := []byte(m.Title)
	b := make([]byte, 8+len(titleBytes))
	binary.LittleEndian.PutUint32(b[0:4], m.ID)
	binary.LittleEndian.PutUint32(b[4:8], uint32(len(titleBytes)))
	copy(b[8:], titleBytes)
	return b
}

func DecodeSetTitle(p []byte) (SetTitle, error) {
	if len(p) < 8 {
		return SetTitle{}, errShort("SetTitle", 8, len(p))
	}
	id := binary.LittleEndian.Uint32(p[0:4])
	n := binary.LittleEndian.Uint32(p[4:8])
	if uint32(len(p)) < 8+n {
		return SetTitle{}, errShort("SetTitle.title", int(8+n), len(p))
	}
	return SetTitle{ID: id, Title: string(p[8 : 8+n])}, nil
}

type SetMode struct{ Width, Height uint32 }

func (m SetMode) Encode() []byte {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint32(b[0:4], m.Width)
	binary.LittleEndian.PutUint32(b[4:8], m.Height)
	return b
}

func DecodeSetMode(p []byte) (SetMode, error) {
	if len(p) < 8 {
		return SetMode{}, errShort("SetMode", 8, len(p))
	}
	return SetMode{Width: binary.LittleEndian.Uint32(p[0:4]), Height: binary.LittleEndian.Uint32(p[4:8])}, nil
}

type Bytes struct{ Data []byte }

func (m Bytes) Encode() []byte {
	b := make([]byte, 4+len(m.Data))
	binary.LittleEndian.PutUint32(b[0:4], uint32(len(m.Data)))
	copy(b[4:], m.Data)
	return b
}

func DecodeBytes(p []byte) (Bytes, error) {
	if len(p) < 4 {
		return Bytes{}, errShort("Bytes", 4, len(p))
	}
	n := binary.LittleEndian.Uint32(p[0:4])
	if uint32(len(p)) < 4+n {
		return Bytes{}, errShort("Bytes.data", int(4+n), len(p))
	}
	out := make([]byte, n)
	copy(out, p[4:4+n])
	return Bytes{Data: out}, nil
}

type IDOnly struct{ ID uint32 }

func (m IDOnly) Encode() []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, m.ID)
	return b
}

func DecodeIDOnly(p []byte) (IDOnly, error) {
	if len(p) < 4 {
		return IDOnly{}, errShort("IDOnly", 4, len(p))
	}
	return IDOnly{ID: binary.LittleEndian.Uint32(p[0:4])}, nil
}

type Welcome struct{ ScreenW, ScreenH, Version uint32 }

func (m Welcome) Encode() []byte {
	b := make([]byte, 12)
	binary.LittleEndian.PutUint32(b[0:4], m.ScreenW)
	binary.LittleEndian.PutUint32(b[4:8], m.ScreenH)
	binary.LittleEndian.PutUint32(b[8:12], m.Version)
	return b
}

func DecodeWelcome(p []byte) (Welcome, error) {
	if len(p) < 12 {
		return Welcome{}, errShort("Welcome", 12, len(p))
	}
	return Welcome{
		ScreenW: binary.LittleEndian.Uint32(p[0:4]),
		ScreenH: binary.LittleEndian.Uint32(p[4:8]),
		Version: binary.LittleEndian.Uint32(p[8:12]),
	}, nil
}

type PointerMotion struct {
	ID   uint32
	X, Y int32
}

func (m PointerMotion) Encode() []byte {
	b := make([]byte, 12)
	binary.LittleEndian.PutUint32(b[0:4], m.ID)
	putI32(b[4:8], m.X)
	putI32(b[8:12], m.Y)
	return b
}

func DecodePointerMotion(p []byte) (PointerMotion, error) {
	if len(p) < 12 {
		return PointerMotion{}, errShort("PointerMotion", 12, len(p))
	}
	return PointerMotion{ID: binary.LittleEndian.Uint32(p[0:4]), X: getI32(p[4:8]), Y: getI32(p[8:12])}, nil
}

type PointerButton struct{ ID, Button, State uint32 }

func (m PointerButton) Encode() []byte {
	b := make([]byte, 12)
	binary.LittleEndian.PutUint32(b[0:4], m.ID)
	binary.LittleEndian.PutUint32(b[4:8], m.Button)
	binary.LittleEndian.PutUint32(b[8:12], m.State)
	return b
}

func DecodePointerButton(p []byte) (PointerButton, error) {
	if len(p) < 12 {
		return PointerButton{}, errShort("PointerButton", 12, len(p))
	}
	return PointerButton{
		ID: binary.LittleEndian.Uint32(p[0:4]), Button: binary.LittleEndian.Uint32(p[4:8]), State: binary.LittleEndian.Uint32(p[8:12]),
	}, nil
}

type Key struct{ Keycode, State, Char, Mods uint32 }

func (m Key) Encode() []byte {
	b := make([]byte, 16)
	binary.LittleEndian.PutUint32(b[0:4], m.Keycode)
	binary.LittleEndian.PutUint32(b[4:8], m.State)
	binary.LittleEndian.PutUint32(b[8:12], m.Char)
	binary.LittleEndian.PutUint32(b[12:16], m.Mods)
	return b
}

func DecodeKey(p []byte) (Key, error) {
	if len(p) < 16 {
		return Key{}, errShort("Key", 16, len(p))
	}
	return Key{
		Keycode: binary.LittleEndian.Uint32(p[0:4]),
		State:   binary.LittleEndian.Uint32(p[4:8]),
		Char:    binary.LittleEndian.Uint32(p[8:12]),
		Mods:    binary.LittleEndian.Uint32(p[12:16]),
	}, nil
}

type Configure struct{ ID, W, H uint32 }

func (m Configure) Encode() []byte {
	b := make([]byte, 12)
	binary.LittleEndian.PutUint32(b[0:4], m.ID)
	binary.LittleEndian.PutUint32(b[4:8], m.W)
	binary.LittleEndian.PutUint32(b[8:12], m.H)
	return b
}

func DecodeConfigure(p []byte) (Configure, error) {
	if len(p) < 12 {
		return Configure{}, errShort("Configure", 12, len(p))
	}
	return Configure{ID: binary.LittleEndian.Uint32(p[0:4]), W: binary.LittleEndian.Uint32(p[4:8]), H: binary.LittleEndian.Uint32(p[8:12])}, nil
}

// WindowListEntry describes one window in a LIST_WINDOWS reply.
type WindowListEntry struct {
	SurfaceID uint32
	Minimized bool
	Title     string
}

type WindowList struct{ Entries []WindowListEntry }

func (m WindowList) Encode() []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, uint32(len(m.Entries)))
	for _, e := range m.Entries {
		titleBytes := []byte(e.Title)
		entry := make([]byte, 9+len(titleBytes))
		binary.LittleEndian.PutUint32(entry[0:4], e.SurfaceID)
		if e.Minimized {
			entry[4] = 1
		}
		binary.LittleEndian.PutUint32(entry[5:9], uint32(len(titleBytes)))
		copy(entry[9:], titleBytes)
		b = append(b, entry...)
	}
	return b
}

func DecodeWindowList(p []byte) (WindowList, error) {
	if len(p) < 4 {
		return WindowList{}, errShort("WindowList", 4, len(p))
	}
	count := binary.LittleEndian.Uint32(p[0:4])
	p = p[4:]
	out := make([]WindowListEntry, 0, count)
	for i := uint32(0); i < count; i++ {
		if len(p) < 9 {
			return WindowList{}, errShort("WindowList.entry", 9, len(p))
		}
		id := binary.LittleEndian.Uint32(p[0:4])
		minimized := p[4] != 0
		n := binary.LittleEndian.Uint32(p[5:9])
		if uint32(len(p)) < 9+n {
			return WindowList{}, errShort("WindowList.entry.title", int(9+n), len(p))
		}
		out = append(out, WindowListEntry{SurfaceID: id, Minimized: minimized, Title: string(p[9 : 9+n])})
		p = p[9+n:]
	}
	return WindowList{Entries: out}, nil
}

func errShort(what string, want, got int) error {
	return fmt.Errorf("wire: %s payload too short: want >= %d bytes, got %d", what, want, got)
}

func putI32(b []byte, v int32) { binary.LittleEndian.PutUint32(b, uint32(v)) }
func getI32(b []byte) int32    { return int32(binary.LittleEndian.Uint32(b)) }
