//go:build linux

package input

import (
	"fmt"
	"os"
	"path/filepath"
	"unsafe"

	"golang.org/x/sys/unix"
)

const (
	evKey = 0x01
	evRel = 0x02
	evAbs = 0x03

	relX = 0x00
	relY = 0x01

	absX = 0x00
	absY = 0x01

	keyA = 30 // KEY_A, the key probed to recognise a keyboard

	eviocgbitEv  = 0x80044520 // EVIOCGBIT(0, ...) sized for the event-type bitmap
	eviocgbitKey = 0x80604521 // EVIOCGBIT(EV_KEY, ...) sized for the key bitmap
	eviocgbitAbs = 0x80644522 // EVIOCGBIT(EV_ABS, ...)
)

type evdevDevice struct {
	f    *os.File
	kind Kind
	maxX int
	maxY int
}

// ScanDevices opens every /dev/input/event* node and classifies it per
// the rules: a device advertising absolute X/Y is an absolute
// pointer (even if it also reports relative axes, e.g. a scroll wheel);
// a device advertising relative motion but no absolute X is a relative
// pointer; a device with an alphabetical key is a keyboard. Devices
// that fail to open are skipped rather than failing the scan.
func ScanDevices() ([]Device, error) {
	matches, err := filepath.Glob("/dev/input/event*")
	if err != nil {
		return nil, fmt.Errorf("input: glob: %w", err)
	}

	var out []Device
	for _, path := range matches {
		d, err := openAndClassify(path)
		if err != nil {
			continue
		}
		out = append(out, d)
	}
	return out, nil
}

func openAndClassify(path string) (Device, error) {
	f, err := os.OpenFile(path, os.O_RDONLY, 0)
	if err != nil {
		return nil, err
	}

	hasAbsXY := testBit(f, eviocgbitAbs, absX) && testBit(f, eviocgbitAbs, absY)
	hasRel := testBit(f, eviocgbitEv, evRel)
	hasKeyA := testBit(f, eviocgbitKey, keyA)

	var kind Kind
	var maxX, maxY int
	switch {
	case hasAbsXY:
		kind = AbsolutePointer
		maxX, maxY = absMax(f, absX), absMax(f, absY)
	case hasRel:
		kind = RelativePointer
	case hasKeyA:
		kind = Keyboard
	default:
		f.Close()
		return nil, fmt.Errorf("input: %s: unclassifiable device", path)
	}

	return &evdevDevice{f: f, kind: kind, maxX: maxX, maxY: maxY}, nil
}

func testBit(f *os.File, ioctlReq uint, bit int) bool {
	buf := make([]byte, 128) // at least the largest size encoded in the requests above (0x64)
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, f.Fd(), uintptr(ioctlReq), uintptr(unsafe.Pointer(&buf[0])))
	if errno != 0 {
		return false
	}
	byteIdx := bit / 8
	if byteIdx >= len(buf) {
		return false
	}
	return buf[byteIdx]&(1<<uint(bit%8)) != 0
}

func absMax(f *os.File, axis int) int {
	// struct input_absinfo { value, minimum, maximum, fuzz, flat, resolution int32 }
	var info [6]int32
	req := uintptr(0x80184540 + axis)
	unix.Syscall(unix.SYS_IOCTL, f.Fd(), req, uintptr(unsafe.Pointer(&info[0])))
	return int(info[2])
}

func (d *evdevDevice) Kind() Kind { return d.kind }
func (d *evdevDevice) Fd() int    { return int(d.f.Fd()) }
func (d *evdevDevice) Close() error { return d.f.Close() }

// inputEventLinux mirrors struct input_event on 64-bit Linux.
type inputEventLinux struct {
	Sec   int64
	Usec  int64
	Type  uint16
	Code  uint16
	Value int32
}

const inputEventSize = int(unsafe.Sizeof(inputEventLinux{}))

func (d *evdevDevice) ReadEvents() ([]Event, error) {
	buf := make([]byte, inputEventSize*64)
	n, err := unix.Read(int(d.f.Fd()), buf)
	if err != nil {
		return nil, err
	}

	var out []Event
	for off := 0; off+inputEventSize <= n; off += inputEventSize {
		raw := (*inputEventLinux)(unsafe.Pointer(&buf[off]))
		switch raw.Type {
		case evKey:
			out = append(out, Event{Type: EventKey, RawCode: int(raw.Code), Pressed: raw.Value != 0})
		case evRel:
			switch raw.Code {
			case relX:
				out = append(out, Event{Type: EventPointerRel, DX: int(raw.Value)})
			case relY:
				out = append(out, Event{Type: EventPointerRel, DY: int(raw.Value)})
			}
		case evAbs:
			switch raw.Code {
			case absX:
				out = append(out, Event{Type: EventPointerAbs, XRaw: int(raw.Value), MaxX: d.maxX, MaxY: d.maxY})
			case absY:
				out = append(out, Event{Type: EventPointerAbs, YRaw: int(raw.Value), MaxX: d.maxX, MaxY: d.maxY})
			}
		}
	}
	return out, nil
}
