// Package audiomix implements the audio mixing server (C11): a
// connectionless, per-stream protocol over a Unix socket that ingests
// 16-bit PCM, mixes every open stream by saturating sum, and pushes the
// result to the system audio sink, using the same connection-registry
// idiom as internal/remote/desktop ws_manager.go (a
// map of live per-connection state with add/remove under a mutex,
// serviced by one goroutine per connection forwarding parsed frames to
// a shared sink) generalized from "per-viewer websocket" to "per-stream
// PCM ingest socket".
package audiomix

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Message types on the wire. Each frame is a 1-byte type, a 4-byte LE
// payload length, then the payload — the same length-prefixed shape as
// the CDP wire protocol (internal/cdp/wire), scaled down since this
// protocol never passes descriptors.
const (
	MsgOpenStream  byte = 1 // payload: OpenStream
	MsgWritePacket byte = 2 // payload: u32 stream_id, PCM bytes
	MsgCloseStream byte = 3 // payload: u32 stream_id
	MsgStreamID    byte = 4 // reply payload: u32 stream_id
)

// OpenStream describes the format of a stream about to be opened.
type OpenStream struct {
	Rate     uint32
	Channels uint16
	Bits     uint16
}

func (o OpenStream) encode() []byte {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint32(buf[0:4], o.Rate)
	binary.LittleEndian.PutUint16(buf[4:6], o.Channels)
	binary.LittleEndian.PutUint16(buf[6:8], o.Bits)
	return buf
}

func decodeOpenStream(b []byte) (OpenStream, error) {
	if len(b) < 8 {
		return OpenStream{}, fmt.Errorf("audiomix: short OpenStream payload")
	}
	return OpenStream{
		Rate:     binary.LittleEndian.Uint32(b[0:4]),
		Channels: binary.LittleEndian.Uint16(b[4:6]),
		Bits:     binary.LittleEndian.Uint16(b[6:8]),
	}, nil
}

// writeFrame writes one length-prefixed frame with one Write for the
// header and one for the payload; it does not loop, relying on the
// io.Writer contract that a short write returns an error.
func writeFrame(w io.Writer, typ byte, payload []byte) error {
	header := make([]byte, 5)
	header[0] = typ
	binary.LittleEndian.PutUint32(header[1:5], uint32(len(payload)))
	if _, err := w.Write(header); err != nil {
		return err
	}
	if len(payload) == 0 {
		return nil
	}
	_, err := w.Write(payload)
	return err
}

// readFrame reads one length-prefixed frame. A zero-byte read on the
// type byte is reported as io.EOF.
func readFrame(r io.Reader) (byte, []byte, error) {
	header := make([]byte, 5)
	if _, err := io.ReadFull(r, header); err != nil {
		return 0, nil, err
	}
	n := binary.LittleEndian.Uint32(header[1:5])
	const maxPayload = 1 << 20
	if n > maxPayload {
		return 0, nil, fmt.Errorf("audiomix: oversized payload %d", n)
	}
	payload := make([]byte, n)
	if n > 0 {
		if _, err := io.ReadFull(r, payload); err != nil {
			return 0, nil, err
		}
	}
	return header[0], payload, nil
}
