// Package fbdev exposes a double-buffered linear XRGB8888 back-buffer
// and a page-flip primitive over Linux's /dev/fb0, plus a headless
// in-memory implementation for tests, using the same ScreenCapturer
// interface + platform-specific-implementation pattern
// (internal/remote/desktop/capture.go and its capture_linux.go /
// capture_other.go build-tagged variants), generalized from "capture the
// screen into an image.RGBA" to "own the screen and hand out a
// mutable back-buffer".
package fbdev

import "fmt"

// Backbuffer is one of the two equal-sized pixel planes. Pix is laid
// out XRGB8888, byte order B,G,R,X on little-endian, StrideBytes may
// exceed Width*4.
type Backbuffer struct {
	Width       int
	Height      int
	StrideBytes int
	Pix         []byte
}

// Device acquires a display and exposes the double-buffered
// begin_frame/present cycle. Failure at Open is fatal to the
// compositor; failure during Present is logged and retried on the next
// frame, per the component's error-handling design.
type Device interface {
	// BeginFrame returns the current back-buffer for writing. The
	// caller must not retain the pointer across Present.
	BeginFrame() (*Backbuffer, error)

	// Present publishes the written buffer and swaps front/back.
	Present() error

	// Close releases the device.
	Close() error
}

// ErrDeviceAbsent is returned by Open when no framebuffer device is
// available; callers treat this as the "Device absent" error kind and
// degrade (e.g. fall back to the headless device for CI).
type ErrDeviceAbsent struct{ Path string }

func (e *ErrDeviceAbsent) Error() string {
	return fmt.Sprintf("fbdev: device absent: %s", e.Path)
}
