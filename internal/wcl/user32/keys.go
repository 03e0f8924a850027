package user32

// Virtual-key codes this port needs; values match the real Win32
// constants so a guest's VK_* comparisons behave correctly.
const (
	vkBack   = 0x08
	vkTab    = 0x09
	vkReturn = 0x0D
	vkEscape = 0x1B
	vkSpace  = 0x20
	vkLeft   = 0x25
	vkUp     = 0x26
	vkRight  = 0x27
	vkDown   = 0x28
	vkShift  = 0x10
	vkControl = 0x11
)

// evdevToVK is the fixed 128-entry table mapping a Linux evdev keycode
// to a Windows virtual-key code, covering the keys this runtime's input
// pipeline (internal/compositor/input) actually reports. Entries left
// zero have no VK mapping and are not forwarded as WM_KEYDOWN/WM_KEYUP.
var evdevToVK = buildVKTable()

func buildVKTable() [128]uint16 {
	var t [128]uint16
	t[1] = vkEscape
	t[14] = vkBack
	t[15] = vkTab
	t[28] = vkReturn
	t[29] = vkControl
	t[42] = vkShift
	t[54] = vkShift
	t[57] = vkSpace
	t[103] = vkUp
	t[105] = vkLeft
	t[106] = vkRight
	t[108] = vkDown

	digitRow := []int{2, 3, 4, 5, 6, 7, 8, 9, 10, 11}
	for i, code := range digitRow {
		t[code] = uint16('0' + (i+1)%10)
	}

	qwerty := []struct {
		code int
		ch   byte
	}{
		{16, 'Q'}, {17, 'W'}, {18, 'E'}, {19, 'R'}, {20, 'T'}, {21, 'Y'}, {22, 'U'}, {23, 'I'}, {24, 'O'}, {25, 'P'},
		{30, 'A'}, {31, 'S'}, {32, 'D'}, {33, 'F'}, {34, 'G'}, {35, 'H'}, {36, 'J'}, {37, 'K'}, {38, 'L'},
		{44, 'Z'}, {45, 'X'}, {46, 'C'}, {47, 'V'}, {48, 'B'}, {49, 'N'}, {50, 'M'},
	}
	for _, k := range qwerty {
		t[k.code] = uint16(k.ch)
	}
	return t
}

// synthesizeChar produces the character TranslateMessage emits for vk
// when the key event arrived without a translated character, matching
// the "letters lowercased, digits literal, SPACE/RETURN/TAB/BACK
// special" rule.
func synthesizeChar(vk uint16) byte {
	switch vk {
	case vkSpace:
		return ' '
	case vkReturn:
		return '\r'
	case vkTab:
		return '\t'
	case vkBack:
		return 8
	}
	if vk >= 'A' && vk <= 'Z' {
		return byte(vk) - 'A' + 'a'
	}
	if vk >= '0' && vk <= '9' {
		return byte(vk)
	}
	return 0
}
