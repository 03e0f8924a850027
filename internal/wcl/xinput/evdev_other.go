//go:build !linux

package xinput

// scanPads reports zero controllers on non-Linux hosts; XInputGetState
// then always returns ERROR_DEVICE_NOT_CONNECTED, per the device-absent
// degrade rule.
func scanPads() ([]Pad, error) {
	return nil, nil
}
