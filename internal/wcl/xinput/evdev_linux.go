//go:build linux

package xinput

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"unsafe"

	"golang.org/x/sys/unix"
)

const (
	evKey = 0x01
	evAbs = 0x03
	evFF  = 0x15

	absX  = 0x00
	absY  = 0x01
	absZ  = 0x02
	absRX = 0x03
	absRY = 0x04
	absRZ = 0x05

	btnSouth  = 0x130 // BTN_A / BTN_SOUTH
	btnEast   = 0x131
	btnNorth  = 0x133
	btnWest   = 0x134
	btnTL     = 0x136
	btnTR     = 0x137
	btnSelect = 0x13a
	btnStart  = 0x13b
	btnThumbL = 0x13d
	btnThumbR = 0x13e

	eviocgbitEv  = 0x80044520
	eviocgbitKey = 0x80604521
)

// scanPads opens every /dev/input/event* node and keeps the ones that
// advertise a gamepad-shaped button set (BTN_SOUTH present), matching
// the classify-on-open pattern used by the compositor's input
// dispatcher.
func scanPads() ([]Pad, error) {
	matches, err := filepath.Glob("/dev/input/event*")
	if err != nil {
		return nil, fmt.Errorf("xinput: glob: %w", err)
	}

	var out []Pad
	for _, path := range matches {
		p, ok := openPad(path)
		if ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func openPad(path string) (*evdevPad, bool) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		f, err = os.OpenFile(path, os.O_RDONLY, 0)
		if err != nil {
			return nil, false
		}
	}
	if !testBit(f, eviocgbitKey, btnSouth) {
		f.Close()
		return nil, false
	}

	p := &evdevPad{f: f}
	p.lx = absInfo(f, absX)
	p.ly = absInfo(f, absY)
	p.rx = absInfo(f, absRX)
	p.ry = absInfo(f, absRY)
	p.lt = absInfo(f, absZ)
	p.rt = absInfo(f, absRZ)
	return p, true
}

func testBit(f *os.File, ioctlReq uint, bit int) bool {
	buf := make([]byte, 96)
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

type axisRange struct{ min, max int32 }

func absInfo(f *os.File, axis int) axisRange {
	var info [6]int32
	req := uintptr(0x80184540 + axis)
	unix.Syscall(unix.SYS_IOCTL, f.Fd(), req, uintptr(unsafe.Pointer(&info[0])))
	return axisRange{min: info[1], max: info[2]}
}

type inputEventLinux struct {
	Sec   int64
	Usec  int64
	Type  uint16
	Code  uint16
	Value int32
}

const inputEventSize = int(unsafe.Sizeof(inputEventLinux{}))

// evdevPad tracks the last-seen axis/button state, since XInputGetState
// is a poll, not an event callback: each Poll drains pending kernel
// events and returns the accumulated State.
type evdevPad struct {
	mu sync.Mutex
	f  *os.File

	lx, ly, rx, ry, lt, rt axisRange
	state                  State
}

func (p *evdevPad) Poll() (State, error) {
	buf := make([]byte, inputEventSize*64)
	_ = unix.SetNonblock(int(p.f.Fd()), true)
	n, err := unix.Read(int(p.f.Fd()), buf)
	if err != nil && err != unix.EAGAIN {
		return State{}, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	for off := 0; off+inputEventSize <= n; off += inputEventSize {
		ev := (*inputEventLinux)(unsafe.Pointer(&buf[off]))
		switch ev.Type {
		case evKey:
			bit := buttonBit(ev.Code)
			if bit == 0 {
				continue
			}
			if ev.Value != 0 {
				p.state.Buttons |= bit
			} else {
				p.state.Buttons &^= bit
			}
		case evAbs:
			switch ev.Code {
			case absX:
				p.state.ThumbLX = normalizeAxis(ev.Value, p.lx.min, p.lx.max)
			case absY:
				p.state.ThumbLY = normalizeAxis(ev.Value, p.ly.min, p.ly.max)
			case absRX:
				p.state.ThumbRX = normalizeAxis(ev.Value, p.rx.min, p.rx.max)
			case absRY:
				p.state.ThumbRY = normalizeAxis(ev.Value, p.ry.min, p.ry.max)
			case absZ:
				p.state.LeftTrigger = normalizeTrigger(ev.Value, p.lt.min, p.lt.max)
			case absRZ:
				p.state.RightTrigger = normalizeTrigger(ev.Value, p.rt.min, p.rt.max)
			}
		}
	}
	return p.state, nil
}

func buttonBit(code uint16) uint16 {
	switch code {
	case btnSouth:
		return ButtonA
	case btnEast:
		return ButtonB
	case btnWest:
		return ButtonX
	case btnNorth:
		return ButtonY
	case btnTL:
		return ButtonLShoulder
	case btnTR:
		return ButtonRShoulder
	case btnSelect:
		return ButtonBack
	case btnStart:
		return ButtonStart
	case btnThumbL:
		return ButtonLThumb
	case btnThumbR:
		return ButtonRThumb
	default:
		return 0
	}
}

// ffEffect mirrors struct ff_effect's leading fields sufficiently for a
// simple rumble (strong/weak magnitude, infinite-ish duration).
type ffEffect struct {
	Type      uint16
	ID        int16
	Direction uint16
	_         [4]byte // trigger{button,interval}
	_         [6]byte // replay{length,delay}
	Strong    uint16
	Weak      uint16
	_         [4]byte // padding to satisfy kernel struct alignment expectations
}

const (
	ffRumble  = 0x50
	eviocsff  = 0x402c4580
	eviocrmff = 0x40045581
)

func (p *evdevPad) Rumble(left, right uint16) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	effect := ffEffect{Type: ffRumble, ID: -1, Strong: left, Weak: right}
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, p.f.Fd(), uintptr(eviocsff), uintptr(unsafe.Pointer(&effect)))
	if errno != 0 {
		return errno
	}

	var play inputEventLinux
	play.Type = evFF
	play.Code = uint16(effect.ID)
	play.Value = 1
	_, err := unix.Write(int(p.f.Fd()), (*[unsafe.Sizeof(play)]byte)(unsafe.Pointer(&play))[:])
	return err
}

func (p *evdevPad) Close() error { return p.f.Close() }
