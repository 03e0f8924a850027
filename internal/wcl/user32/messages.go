package user32

// Window messages this runtime generates or accepts. Values match the
// real Win32 constants.
const (
	wmDestroy   = 0x0002
	wmClose     = 0x0010
	wmQuit      = 0x0012
	wmPaint     = 0x000F
	wmKeyDown   = 0x0100
	wmKeyUp     = 0x0101
	wmChar      = 0x0102
	wmSetFocus  = 0x0007
	wmKillFocus = 0x0008
	wmMouseMove = 0x0200
	wmLButton   = 0x0201 // LBUTTONDOWN; +1 is LBUTTONUP
	wmTimer     = 0x0113
	wmSize      = 0x0005
)

// GetWindowLongA / SetWindowLongA indices.
const (
	gwlWndProc   = -4
	gwlStyle     = -16
	gwlExStyle   = -20
	gwlUserData  = -21
)

// ShowWindow flags.
const (
	swHide = 0
	swShow = 5
)

// GetSystemMetrics indices this runtime answers.
const (
	smCxScreen = 0
	smCyScreen = 1
)
