package wire

import (
	"fmt"
	"net"
	"os"
	"testing"

	"golang.org/x/sys/unix"
)

// socketpair returns two connected *net.UnixConn endpoints backed by a
// real AF_UNIX socketpair, the only net.Conn shape that supports
// ancillary-data fd passing. net.Pipe is in-memory and cannot carry
// SCM_RIGHTS, so the fd-passing tests need this instead.
func socketpair(t *testing.T) (*net.UnixConn, *net.UnixConn, error) {
	t.Helper()

	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	if err != nil {
		return nil, nil, fmt.Errorf("socketpair: %w", err)
	}

	f1 := os.NewFile(uintptr(fds[0]), "sp0")
	f2 := os.NewFile(uintptr(fds[1]), "sp1")
	defer f1.Close()
	defer f2.Close()

	c1, err := net.FileConn(f1)
	if err != nil {
		return nil, nil, fmt.Errorf("FileConn 0: %w", err)
	}
	c2, err := net.FileConn(f2)
	if err != nil {
		c1.Close()
		return nil, nil, fmt.Errorf("FileConn 1: %w", err)
	}

	uc1, ok1 := c1.(*net.UnixConn)
	uc2, ok2 := c2.(*net.UnixConn)
	if !ok1 || !ok2 {
		c1.Close()
		c2.Close()
		return nil, nil, fmt.Errorf("socketpair: FileConn did not return *net.UnixConn")
	}
	return uc1, uc2, nil
}

func unixClose(fd int) {
	unix.Close(fd)
}
