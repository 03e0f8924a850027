// Package wire implements the CDP frame format: a length-prefixed binary
// message framing over a stream socket, with a side-channel for passing
// file descriptors alongside REQ_ATTACH_BUFFER.
//
// The framing follows the same shape as internal/ipc.Conn: a 4-byte
// length header followed by a payload, with full-read/full-write and
// EINTR-retry baked into the helpers rather than left to callers. CDP
// diverges from that source in payload shape (binary type+size+bytes
// rather than a JSON envelope with HMAC/sequence numbers) because this
// is a single-seat, same-host protocol with no authentication story —
// but the "wrap net.Conn, never let a caller see a short read"
// discipline carries over unchanged.
package wire

import (
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"sync"
)

// MaxPayloadSize bounds a single frame's payload. CLIPBOARD_SET/GET and
// WINDOW_LIST need headroom for realistic titles and clipboard
// contents, so this uses a larger bound than a minimal demo protocol
// would need (see DESIGN.md, "max payload size").
const MaxPayloadSize = 64 * 1024

// Type is a frame's message type. Requests and events live in disjoint
// numeric ranges so a decoder can never confuse one for the other.
type Type uint32

// Conn wraps a net.Conn (always a *net.UnixConn in practice) with
// length-prefixed framing. Send/Recv are safe to call from at most one
// goroutine each; Send additionally serializes against concurrent callers
// so a server fan-out of events never interleaves two partial writes.
type Conn struct {
	nc net.Conn
	uc *net.UnixConn // non-nil when nc supports fd passing

	writeMu sync.Mutex
	readMu  sync.Mutex
}

// NewConn wraps conn for framed I/O. If conn is a *net.UnixConn, fd
// passing via SendWithFD/RecvWithFD becomes available.
func NewConn(conn net.Conn) *Conn {
	c := &Conn{nc: conn}
	if uc, ok := conn.(*net.UnixConn); ok {
		c.uc = uc
	}
	return c
}

// Raw returns the underlying net.Conn.
func (c *Conn) Raw() net.Conn { return c.nc }

// Close closes the underlying connection.
func (c *Conn) Close() error { return c.nc.Close() }

// Send writes a single frame: type, length, payload.
func (c *Conn) Send(typ Type, payload []byte) error {
	if len(payload) > MaxPayloadSize {
		return fmt.Errorf("wire: payload too large: %d > %d", len(payload), MaxPayloadSize)
	}

	header := make([]byte, 8)
	binary.LittleEndian.PutUint32(header[0:4], uint32(typ))
	binary.LittleEndian.PutUint32(header[4:8], uint32(len(payload)))

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := fullWrite(c.nc, header); err != nil {
		return fmt.Errorf("wire: write header: %w", err)
	}
	if len(payload) > 0 {
		if err := fullWrite(c.nc, payload); err != nil {
			return fmt.Errorf("wire: write payload: %w", err)
		}
	}
	return nil
}

// Recv reads a single frame. io.EOF is returned verbatim on a clean
// end-of-stream so callers can distinguish "client disconnected" from a
// genuine protocol error.
func (c *Conn) Recv() (Type, []byte, error) {
	c.readMu.Lock()
	defer c.readMu.Unlock()

	header := make([]byte, 8)
	if err := fullRead(c.nc, header); err != nil {
		return 0, nil, err
	}

	typ := Type(binary.LittleEndian.Uint32(header[0:4]))
	size := binary.LittleEndian.Uint32(header[4:8])
	if size > MaxPayloadSize {
		return 0, nil, fmt.Errorf("wire: frame payload exceeds maximum: %d > %d", size, MaxPayloadSize)
	}

	payload := make([]byte, size)
	if size > 0 {
		if err := fullRead(c.nc, payload); err != nil {
			return 0, nil, fmt.Errorf("wire: read payload: %w", err)
		}
	}
	return typ, payload, nil
}

// fullWrite writes all of p, retrying on EINTR-shaped partial writes.
// net.Conn.Write already loops internally on most platforms, but we keep
// this wrapper (mirroring the ipc.Conn.Send) so the retry
// policy is explicit and local rather than implied by the stdlib.
func fullWrite(w io.Writer, p []byte) error {
	for len(p) > 0 {
		n, err := w.Write(p)
		if err != nil {
			return err
		}
		p = p[n:]
	}
	return nil
}

// fullRead reads exactly len(p) bytes. A zero-byte read with no error is
// end-of-stream and is surfaced as io.EOF; any other short read keeps
// looping until the buffer is full or an error occurs.
func fullRead(r io.Reader, p []byte) error {
	_, err := io.ReadFull(r, p)
	return err
}
