package xinput

import "github.com/citc-os/workstation/internal/wcl/winabi"

// writeState encodes State into XINPUT_STATE's GAMEPAD layout at addr
// (skipping the leading dwPacketNumber field, which this port always
// reports as 0 since it has no meaningful sequencing of out-of-band
// evdev polls).
func writeState(mem winabi.ProcessMemory, addr uint64, st State) {
	winabi.WriteUint32(mem, addr, 0) // dwPacketNumber
	base := addr + 4
	winabi.WriteUint32(mem, base, uint32(st.Buttons)|uint32(st.LeftTrigger)<<16|uint32(st.RightTrigger)<<24)
	b := mem.Slice(base+4, 8)
	putI16(b[0:2], st.ThumbLX)
	putI16(b[2:4], st.ThumbLY)
	putI16(b[4:6], st.ThumbRX)
	putI16(b[6:8], st.ThumbRY)
}

func putI16(b []byte, v int16) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
}

// Register installs xinput's exports into reg.
func (h *Host) Register(reg *winabi.StubRegistry, mem winabi.ProcessMemory) {
	add := func(name string, fn func(args []uint64) uint64) {
		reg.Add(winabi.Export{DLL: "xinput1_4", Name: name, Fn: fn})
	}
	add("XInputGetState", func(a []uint64) uint64 {
		st, code := h.XInputGetState(uint32(a[0]))
		if code == errSuccess && a[1] != 0 {
			writeState(mem, a[1], st)
		}
		return uint64(code)
	})
	add("XInputSetState", func(a []uint64) uint64 {
		left := uint16(a[1])
		right := uint16(a[1] >> 16)
		return uint64(h.XInputSetState(uint32(a[0]), left, right))
	})
}
