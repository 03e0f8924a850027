package audiomix

import (
	"fmt"
	"net"
	"time"
)

// Client is a thin wrapper over one connection to the mixing server,
// used by internal/wcl/dsound and internal/wcl/xaudio2 to background-
// stream a sound buffer's PCM. Grounded on the same connect-with-retry
// shape internal/cdp/client.Connect uses against the compositor socket
// (the server boot race is identical: a client started before the
// mixer has bound its socket should retry rather than fail outright).
type Client struct {
	conn net.Conn
}

// Dial connects to the mixing server at path, retrying briefly on
// ECONNREFUSED.
func Dial(path string) (*Client, error) {
	var lastErr error
	for i := 0; i < 10; i++ {
		conn, err := net.Dial("unix", path)
		if err == nil {
			return &Client{conn: conn}, nil
		}
		lastErr = err
		time.Sleep(20 * time.Millisecond)
	}
	return nil, fmt.Errorf("audiomix client: dial %s: %w", path, lastErr)
}

// OpenStream requests a new stream in the given format and returns its
// server-assigned id.
func (c *Client) OpenStream(rate uint32, channels, bits uint16) (uint32, error) {
	o := OpenStream{Rate: rate, Channels: channels, Bits: bits}
	if err := writeFrame(c.conn, MsgOpenStream, o.encode()); err != nil {
		return 0, err
	}
	typ, payload, err := readFrame(c.conn)
	if err != nil {
		return 0, err
	}
	if typ != MsgStreamID || len(payload) < 4 {
		return 0, fmt.Errorf("audiomix client: expected stream id reply")
	}
	return getU32(payload), nil
}

// WritePacket submits one packet of interleaved 16-bit PCM for stream
// id.
func (c *Client) WritePacket(id uint32, pcm []byte) error {
	payload := make([]byte, 4+len(pcm))
	putU32(payload, id)
	copy(payload[4:], pcm)
	return writeFrame(c.conn, MsgWritePacket, payload)
}

// CloseStream ends stream id.
func (c *Client) CloseStream(id uint32) error {
	payload := make([]byte, 4)
	putU32(payload, id)
	return writeFrame(c.conn, MsgCloseStream, payload)
}

// Close closes the underlying connection.
func (c *Client) Close() error { return c.conn.Close() }
