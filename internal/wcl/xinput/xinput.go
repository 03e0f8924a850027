// Package xinput implements XInput's device surface over Linux evdev:
// a one-time scan classifying gamepad-like devices, axis/trigger
// normalization to XInput's ranges, button-bit mapping, and rumble via
// force-feedback effects. Grounded on
// internal/compositor/input.ScanDevices's evdev classification idiom
// (open every /dev/input/event* node, ioctl-probe its capability
// bitmaps, skip what fails to open or classify) generalized from
// "keyboard/pointer" to "gamepad".
package xinput

import (
	"github.com/citc-os/workstation/internal/logging"
)

var log = logging.L("xinput")

// State mirrors XINPUT_GAMEPAD's fields.
type State struct {
	Buttons      uint16
	LeftTrigger  uint8
	RightTrigger uint8
	ThumbLX      int16
	ThumbLY      int16
	ThumbRX      int16
	ThumbRY      int16
}

// Standard XInput button bits.
const (
	ButtonDPadUp    uint16 = 0x0001
	ButtonDPadDown  uint16 = 0x0002
	ButtonDPadLeft  uint16 = 0x0004
	ButtonDPadRight uint16 = 0x0008
	ButtonStart     uint16 = 0x0010
	ButtonBack      uint16 = 0x0020
	ButtonLThumb    uint16 = 0x0040
	ButtonRThumb    uint16 = 0x0080
	ButtonLShoulder uint16 = 0x0100
	ButtonRShoulder uint16 = 0x0200
	ButtonA         uint16 = 0x1000
	ButtonB         uint16 = 0x2000
	ButtonX         uint16 = 0x4000
	ButtonY         uint16 = 0x8000
)

const maxControllers = 4

// Pad is one classified gamepad device.
type Pad interface {
	// Poll returns the pad's current normalized State.
	Poll() (State, error)
	// Rumble drives a force-feedback effect at the given left/right
	// motor strengths (0-65535).
	Rumble(left, right uint16) error
	Close() error
}

// Host owns the up-to-four controller slots XInput exposes
// (XUSER_MAX_COUNT). A slot is nil if no pad was found for that index.
type Host struct {
	pads [maxControllers]Pad
}

// NewHost scans for gamepad-like evdev devices once and fills up to
// four controller slots, matching XInput's fixed four-controller
// surface. Devices beyond the fourth found are left unused rather than
// erroring — XInput itself has no "too many controllers" error either.
func NewHost() *Host {
	h := &Host{}
	pads, err := scanPads()
	if err != nil {
		log.Warn("xinput: evdev scan failed, zero controllers available", logging.KeyError, err)
		return h
	}
	for i, p := range pads {
		if i >= maxControllers {
			break
		}
		h.pads[i] = p
	}
	log.Info("xinput: controllers found", "count", min(len(pads), maxControllers))
	return h
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// XInputGetState(DWORD dwUserIndex, XINPUT_STATE *pState) — returns
// ERROR_SUCCESS (0) with state filled in, or
// ERROR_DEVICE_NOT_CONNECTED (1167) if the slot is empty.
const (
	errSuccess           = 0
	errDeviceNotConnected = 1167
)

func (h *Host) XInputGetState(userIndex uint32) (State, uint32) {
	if userIndex >= maxControllers || h.pads[userIndex] == nil {
		return State{}, errDeviceNotConnected
	}
	st, err := h.pads[userIndex].Poll()
	if err != nil {
		return State{}, errDeviceNotConnected
	}
	return st, errSuccess
}

// XInputSetState(DWORD dwUserIndex, XINPUT_VIBRATION *pVibration)
func (h *Host) XInputSetState(userIndex uint32, left, right uint16) uint32 {
	if userIndex >= maxControllers || h.pads[userIndex] == nil {
		return errDeviceNotConnected
	}
	if err := h.pads[userIndex].Rumble(left, right); err != nil {
		return errDeviceNotConnected
	}
	return errSuccess
}

// normalizeAxis maps a raw evdev axis value in [min,max] to XInput's
// signed 16-bit thumbstick range.
func normalizeAxis(raw, min, max int32) int16 {
	if max == min {
		return 0
	}
	span := max - min
	v := int64(raw-min) * 65535 / int64(span)
	v -= 32768
	if v > 32767 {
		v = 32767
	}
	if v < -32768 {
		v = -32768
	}
	return int16(v)
}

// normalizeTrigger maps a raw evdev axis value in [min,max] to XInput's
// unsigned 8-bit trigger range.
func normalizeTrigger(raw, min, max int32) uint8 {
	if max == min {
		return 0
	}
	span := max - min
	v := int64(raw-min) * 255 / int64(span)
	if v > 255 {
		v = 255
	}
	if v < 0 {
		v = 0
	}
	return uint8(v)
}
