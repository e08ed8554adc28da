package input

// Linux input 事件类型与按键码（来自 <linux/input-event-codes.h>）
const (
	EvSyn = 0x00
	EvKey = 0x01
	EvRel = 0x02
	EvAbs = 0x03

	SynReport  = 0x00
	SynDropped = 0x03

	RelX = 0x00
	RelY = 0x01

	AbsX     = 0x00
	AbsY     = 0x01
	AbsHat0X = 0x10
	AbsHat0Y = 0x11
	AbsMax   = 0x3f

	KeyEsc        = 1
	KeyEnter      = 28
	KeyA          = 30
	KeyLeftShift  = 42
	KeyRightShift = 54
	KeySpace      = 57
	KeyUp         = 103
	KeyLeft       = 105
	KeyRight      = 106
	KeyDown       = 108
	KeyMax        = 0x2ff

	BtnLeft   = 0x110
	BtnRight  = 0x111
	BtnMiddle = 0x112

	BtnSouth  = 0x130 // BTN_A
	BtnEast   = 0x131 // BTN_B
	BtnTL     = 0x136
	BtnTR     = 0x137
	BtnSelect = 0x13a
	BtnStart  = 0x13b

	BtnDpadUp    = 0x220
	BtnDpadDown  = 0x221
	BtnDpadLeft  = 0x222
	BtnDpadRight = 0x223
)

// 按键事件取值
const (
	ValueRelease = 0
	ValuePress   = 1
	ValueRepeat  = 2
)
