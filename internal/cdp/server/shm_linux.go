//go:build linux

package server

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// mapReadOnly maps size bytes of fd read-only, matching the invariant
// that "while active, the mapping is read-only in the server".
func mapReadOnly(fd, size int) ([]byte, error) {
	if size <= 0 {
		return nil, fmt.Errorf("cdp: non-positive mapping size %d", size)
	}
	return unix.Mmap(fd, 0, size, unix.PROT_READ, unix.MAP_SHARED)
}

func closeFD(fd int) {
	unix.Close(fd)
}

func unmap(b []byte) {
	if len(b) > 0 {
		unix.Munmap(b)
	}
}
