//go:build linux

package fbdev

import (
	"fmt"
	"os"
	"sync"
	"unsafe"

	"golang.org/x/sys/unix"
)

// fbVarScreeninfo mirrors struct fb_var_screeninfo from <linux/fb.h>:
// the leading fields this package touches, then an unused tail that
// pads the struct to the kernel's full 160 bytes, which ioctl
// overwrites in place.
type fbVarScreeninfo struct {
	XRes, YRes             uint32
	XResVirtual, YResVirtual uint32
	XOffset, YOffset       uint32
	BitsPerPixel           uint32
	_                      [160 - 7*4]byte // grayscale, color bitfields, timings, reserved (unused)
}

const (
	fbioGetVScreenInfo = 0x4600
	fbioPanDisplay     = 0x4606
)

// linuxDevice implements Device over /dev/fb0 via mmap + ioctl.
type linuxDevice struct {
	mu     sync.Mutex
	f      *os.File
	mapped []byte

	width       int
	height      int
	strideBytes int

	buffers    [2]Backbuffer
	frontIndex int
}

// Open maps path (typically "/dev/fb0") and returns a Device backed by
// two equal-sized regions of the mapped framebuffer memory, matching
// the "front buffer owned by scanout, back buffer writable" invariant.
// When the device cannot be opened, ErrDeviceAbsent is returned so
// callers can treat it as fatal-at-acquisition per this.
func Open(path string) (Device, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, &ErrDeviceAbsent{Path: path}
	}

	var info fbVarScreeninfo
	if err := ioctl(f.Fd(), fbioGetVScreenInfo, unsafe.Pointer(&info)); err != nil {
		f.Close()
		return nil, fmt.Errorf("fbdev: FBIOGET_VSCREENINFO: %w", err)
	}

	width := int(info.XRes)
	height := int(info.YRes)
	bpp := int(info.BitsPerPixel)
	if bpp != 32 {
		f.Close()
		return nil, fmt.Errorf("fbdev: unsupported bits-per-pixel %d (want 32)", bpp)
	}
	stride := width * 4
	frameSize := stride * height

	mapped, err := unix.Mmap(int(f.Fd()), 0, frameSize*2, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		// Many real devices only expose a single visible frame's worth
		// of memory; fall back to a single mapped region and keep the
		// second buffer purely in host memory.
		mapped, err = unix.Mmap(int(f.Fd()), 0, frameSize, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("fbdev: mmap: %w", err)
		}
		d := &linuxDevice{
			f: f, mapped: mapped,
			width: width, height: height, strideBytes: stride,
		}
		d.buffers[0] = Backbuffer{Width: width, Height: height, StrideBytes: stride, Pix: mapped}
		d.buffers[1] = Backbuffer{Width: width, Height: height, StrideBytes: stride, Pix: make([]byte, frameSize)}
		return d, nil
	}

	d := &linuxDevice{
		f: f, mapped: mapped,
		width: width, height: height, strideBytes: stride,
	}
	d.buffers[0] = Backbuffer{Width: width, Height: height, StrideBytes: stride, Pix: mapped[0:frameSize]}
	d.buffers[1] = Backbuffer{Width: width, Height: height, StrideBytes: stride, Pix: mapped[frameSize : frameSize*2]}
	return d, nil
}

func (d *linuxDevice) BeginFrame() (*Backbuffer, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	back := 1 - d.frontIndex
	return &d.buffers[back], nil
}

func (d *linuxDevice) Present() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	back := 1 - d.frontIndex
	var info fbVarScreeninfo
	if err := ioctl(d.f.Fd(), fbioGetVScreenInfo, unsafe.Pointer(&info)); err != nil {
		return fmt.Errorf("fbdev: present: read screeninfo: %w", err)
	}
	info.YOffset = uint32(back * d.height)
	if err := ioctl(d.f.Fd(), fbioPanDisplay, unsafe.Pointer(&info)); err != nil {
		return fmt.Errorf("fbdev: present: pan display: %w", err)
	}
	d.frontIndex = back
	return nil
}

func (d *linuxDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	unix.Munmap(d.mapped)
	return d.f.Close()
}

func ioctl(fd uintptr, req uint, arg unsafe.Pointer) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, fd, uintptr(req), uintptr(arg))
	if errno != 0 {
		return errno
	}
	return nil
}
