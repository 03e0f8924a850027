package wire

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// SendWithFD sends a frame the same way Send does, but attaches fd as
// SCM_RIGHTS ancillary data. Used for REQ_ATTACH_BUFFER, where the
// payload describes a shared-memory buffer and fd is the memfd/shm fd
// backing it. c must wrap a *net.UnixConn.
func (c *Conn) SendWithFD(typ Type, payload []byte, fd int) error {
	if c.uc == nil {
		return fmt.Errorf("wire: SendWithFD requires a unix socket connection")
	}
	if len(payload) > MaxPayloadSize {
		return fmt.Errorf("wire: payload too large: %d > %d", len(payload), MaxPayloadSize)
	}

	header := frameHeader(typ, len(payload))
	frame := append(header, payload...)
	rights := unix.UnixRights(fd)

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	raw, err := c.uc.SyscallConn()
	if err != nil {
		return fmt.Errorf("wire: syscall conn: %w", err)
	}

	var sendErr error
	ctrlErr := raw.Control(func(sysfd uintptr) {
		sendErr = unix.Sendmsg(int(sysfd), frame, rights, nil, 0)
	})
	if ctrlErr != nil {
		return fmt.Errorf("wire: control: %w", ctrlErr)
	}
	if sendErr != nil {
		return fmt.Errorf("wire: sendmsg: %w", sendErr)
	}
	return nil
}

// RecvWithFD reads a single frame and, if the kernel delivered ancillary
// SCM_RIGHTS data alongside it, returns the first received fd. fd is -1
// if no ancillary data arrived (callers that require one must treat that
// as a protocol error). The caller owns the returned fd and must close
// it when done with it.
func (c *Conn) RecvWithFD() (Type, []byte, int, error) {
	if c.uc == nil {
		return 0, nil, -1, fmt.Errorf("wire: RecvWithFD requires a unix socket connection")
	}

	c.readMu.Lock()
	defer c.readMu.Unlock()

	buf := make([]byte, 8)
	oob := make([]byte, unix.CmsgSpace(4))

	raw, err := c.uc.SyscallConn()
	if err != nil {
		return 0, nil, -1, fmt.Errorf("wire: syscall conn: %w", err)
	}

	var n, oobn int
	var recvErr error
	ctrlErr := raw.Read(func(sysfd uintptr) bool {
		n, oobn, _, _, recvErr = unix.Recvmsg(int(sysfd), buf, oob, 0)
		return recvErr != unix.EAGAIN
	})
	if ctrlErr != nil {
		return 0, nil, -1, fmt.Errorf("wire: control: %w", ctrlErr)
	}
	if recvErr != nil {
		return 0, nil, -1, fmt.Errorf("wire: recvmsg: %w", recvErr)
	}
	if n < 8 {
		if err := fullRead(c.nc, buf[n:]); err != nil {
			return 0, nil, -1, err
		}
	}

	typ, size, err := parseHeader(buf)
	if err != nil {
		return 0, nil, -1, err
	}

	payload := make([]byte, size)
	if size > 0 {
		if err := fullRead(c.nc, payload); err != nil {
			return 0, nil, -1, fmt.Errorf("wire: read payload: %w", err)
		}
	}

	fd := -1
	if oobn > 0 {
		cmsgs, err := unix.ParseSocketControlMessage(oob[:oobn])
		if err == nil && len(cmsgs) > 0 {
			if fds, err := unix.ParseUnixRights(&cmsgs[0]); err == nil && len(fds) > 0 {
				fd = fds[0]
				for _, extra := range fds[1:] {
					unix.Close(extra)
				}
			}
		}
	}

	return typ, payload, fd, nil
}

func frameHeader(typ Type, size int) []byte {
	b := make([]byte, 8)
	putU32(b[0:4], uint32(typ))
	putU32(b[4:8], uint32(size))
	return b
}

func parseHeader(b []byte) (Type, uint32, error) {
	typ := Type(getU32(b[0:4]))
	size := getU32(b[4:8])
	if size > MaxPayloadSize {
		return 0, 0, fmt.Errorf("wire: frame payload exceeds maximum: %d > %d", size, MaxPayloadSize)
	}
	return typ, size, nil
}

func putU32(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}

func getU32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

// DupAsFD duplicates f's underlying fd for handoff across SendWithFD,
// leaving f itself open and owned by the caller.
func DupAsFD(f *os.File) (int, error) {
	fd, err := unix.Dup(int(f.Fd()))
	if err != nil {
		return -1, fmt.Errorf("wire: dup: %w", err)
	}
	return fd, nil
}
