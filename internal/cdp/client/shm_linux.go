//go:build linux

package client

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// allocSharedBuffer creates an anonymous memfd of the given size and
// maps it read-write, returning both the fd (for ATTACH_BUFFER) and the
// mapped slice the client writes pixels into.
func allocSharedBuffer(size int) (int, []byte, error) {
	fd, err := unix.MemfdCreate("citc-surface", 0)
	if err != nil {
		return -1, nil, fmt.Errorf("memfd_create: %w", err)
	}
	if err := unix.Ftruncate(fd, int64(size)); err != nil {
		unix.Close(fd)
		return -1, nil, fmt.Errorf("ftruncate: %w", err)
	}
	pix, err := unix.Mmap(fd, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		unix.Close(fd)
		return -1, nil, fmt.Errorf("mmap: %w", err)
	}
	return fd, pix, nil
}

func freeSharedBuffer(fd int, pix []byte) error {
	if len(pix) > 0 {
		unix.Munmap(pix)
	}
	return unix.Close(fd)
}
