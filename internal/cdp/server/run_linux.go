//go:build linux

package server

import (
	"net"
	"os"
	"time"

	"golang.org/x/sys/unix"

	"github.com/citc-os/workstation/internal/compositor/input"
)

// Run is the compositor's single-threaded event loop: a
// unix.Poll-driven multiplexer over the listening socket, every
// connected client socket, and the input devices, generalized from the
// single-goroutine net.Listener.Accept loop in
// sessionbroker.Broker.Listen. A goroutine-per-client model would need
// locking around C3/C4/C7's state, which this forbids, so this
// loop deliberately stays single-threaded instead.
//
// frameTick fires at ~60Hz; on each tick the caller-supplied onFrame is
// invoked to composite and present. stop closes to end the loop.
func (s *Server) Run(devices []input.Device, onFrame func(), stop <-chan struct{}) error {
	mods := InputModifiers{}
	pointer := struct{ X, Y int }{X: s.ScreenW / 2, Y: s.ScreenH / 2}

	ticker := time.NewTicker(16 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return nil
		case <-ticker.C:
			onFrame()
		default:
		}

		fds := s.buildPollSet(devices)
		n, err := unix.Poll(fds, 16)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return err
		}
		if n == 0 {
			continue
		}

		s.servicePollSet(fds, devices, &mods, &pointer)
	}
}

func (s *Server) buildPollSet(devices []input.Device) []unix.PollFd {
	fds := make([]unix.PollFd, 0, 1+len(s.clients)+len(devices))
	hasListener := s.lnFile != nil
	if hasListener {
		fds = append(fds, unix.PollFd{Fd: int32(s.lnFile.Fd()), Events: unix.POLLIN})
	}
	for _, c := range s.clients {
		if c == nil {
			continue
		}
		if raw, err := syscallConnFd(c); err == nil {
			fds = append(fds, unix.PollFd{Fd: int32(raw), Events: unix.POLLIN})
		}
	}
	for _, d := range devices {
		fds = append(fds, unix.PollFd{Fd: int32(d.Fd()), Events: unix.POLLIN})
	}
	return fds
}

func (s *Server) servicePollSet(fds []unix.PollFd, devices []input.Device, mods *InputModifiers, pointer *struct{ X, Y int }) {
	idx := 0
	if len(fds) == 0 {
		return
	}
	if s.lnFile != nil {
		if fds[idx].Revents&unix.POLLIN != 0 {
			s.acceptOne()
		}
		idx++
	}

	for i := range s.clients {
		if s.clients[i] == nil {
			continue
		}
		if idx >= len(fds) {
			break
		}
		if fds[idx].Revents&(unix.POLLIN|unix.POLLHUP|unix.POLLERR) != 0 {
			s.pollClient(i)
		}
		idx++
	}

	for _, d := range devices {
		if idx >= len(fds) {
			break
		}
		if fds[idx].Revents&unix.POLLIN != 0 {
			evs, err := d.ReadEvents()
			if err == nil {
				for _, ev := range evs {
					s.RouteInput(ev, mods, pointer)
				}
			}
		}
		idx++
	}
}

// syscallConnFd extracts the raw fd behind a *wire.Conn's *net.UnixConn
// for polling purposes.
func syscallConnFd(c *Client) (uintptr, error) {
	uc, ok := c.conn.Raw().(*net.UnixConn)
	if !ok {
		return 0, os.ErrInvalid
	}
	raw, err := uc.SyscallConn()
	if err != nil {
		return 0, err
	}
	var fd uintptr
	err = raw.Control(func(f uintptr) { fd = f })
	return fd, err
}
