package input

import (
	"math"

	"gridpointer/grid"
)

// DefaultAxisRange 设备未报告范围时使用的 16 位有符号轴范围
var DefaultAxisRange = AxisInfo{Min: -32768, Max: 32767}

var keyDirections = map[uint16]grid.Direction{
	KeyUp:        grid.DirUp,
	KeyDown:      grid.DirDown,
	KeyLeft:      grid.DirLeft,
	KeyRight:     grid.DirRight,
	BtnDpadUp:    grid.DirUp,
	BtnDpadDown:  grid.DirDown,
	BtnDpadLeft:  grid.DirLeft,
	BtnDpadRight: grid.DirRight,
}

// 按住即为冲刺修饰键
var dashModifiers = []uint16{KeyLeftShift, KeyRightShift, BtnTL, BtnTR}

// Normalizer 把单个设备的原始采样翻译成 Intent。
// 只保存设备状态（按下的修饰键、轴的当前值），不保存任何移动状态，也不做网格相关的计算
type Normalizer struct {
	deadZone func() float64
	axis     func(code uint16) (AxisInfo, bool)

	held  map[uint16]bool
	axes  map[uint16]int32
	dirty bool
}

// NewNormalizer 创建翻译器；deadZone 每次读取，以便配置热更新生效
func NewNormalizer(deadZone func() float64, axis func(code uint16) (AxisInfo, bool)) *Normalizer {
	if axis == nil {
		axis = func(uint16) (AxisInfo, bool) { return AxisInfo{}, false }
	}
	return &Normalizer{
		deadZone: deadZone,
		axis:     axis,
		held:     make(map[uint16]bool),
		axes:     make(map[uint16]int32),
	}
}

// Feed 输入一条采样，返回产生的 Intent（通常 0 或 1 个）
func (n *Normalizer) Feed(s Sample) []Intent {
	switch s.Type {
	case EvKey:
		return n.key(s.Code, s.Value)
	case EvAbs:
		return n.abs(s.Code, s.Value)
	case EvSyn:
		switch s.Code {
		case SynReport:
			if n.dirty {
				n.dirty = false
				if a, ok := n.Analog(); ok {
					return []Intent{a}
				}
			}
		case SynDropped:
			// 内核缓冲溢出：丢弃可能已失真的按键状态
			n.held = make(map[uint16]bool)
		}
	}
	return nil
}

func (n *Normalizer) key(code uint16, value int32) []Intent {
	switch value {
	case ValueRepeat:
		// 离散移动每次按下只跳一次
		return nil
	case ValueRelease:
		delete(n.held, code)
		return nil
	}
	n.held[code] = true

	if dir, ok := keyDirections[code]; ok {
		return []Intent{Move{Direction: dir, Dash: n.dashHeld()}}
	}
	switch code {
	case KeySpace, BtnSouth:
		return []Intent{Click{Button: ButtonLeft}}
	case BtnEast:
		return []Intent{Click{Button: ButtonRight}}
	case KeyEsc, BtnStart:
		return []Intent{Quit{}}
	}
	return nil
}

func (n *Normalizer) abs(code uint16, value int32) []Intent {
	switch code {
	case AbsHat0X, AbsHat0Y:
		prev := n.axes[code]
		n.axes[code] = value
		if value == 0 || value == prev {
			return nil
		}
		var dir grid.Direction
		switch {
		case code == AbsHat0X && value < 0:
			dir = grid.DirLeft
		case code == AbsHat0X:
			dir = grid.DirRight
		case value < 0:
			dir = grid.DirUp
		default:
			dir = grid.DirDown
		}
		return []Intent{Move{Direction: dir, Dash: n.dashHeld()}}
	case AbsX, AbsY:
		n.axes[code] = value
		n.dirty = true
	}
	return nil
}

func (n *Normalizer) dashHeld() bool {
	for _, c := range dashModifiers {
		if n.held[c] {
			return true
		}
	}
	return false
}

// Analog 返回摇杆当前偏移；低于死区时 ok 为 false
func (n *Normalizer) Analog() (Analog, bool) {
	_, hasX := n.axes[AbsX]
	_, hasY := n.axes[AbsY]
	if !hasX && !hasY {
		return Analog{}, false
	}
	dx := n.normalize(AbsX)
	dy := n.normalize(AbsY)
	m := math.Min(1, math.Hypot(dx, dy))
	dz := 0.0
	if n.deadZone != nil {
		dz = n.deadZone()
	}
	if m < dz || m == 0 {
		return Analog{}, false
	}
	return Analog{DX: dx, DY: dy, Magnitude: m}, true
}

// normalize 将原始轴值映射到 [-1,1]，以范围中点为 0
func (n *Normalizer) normalize(code uint16) float64 {
	raw, ok := n.axes[code]
	if !ok {
		return 0
	}
	info, ok := n.axis(code)
	if !ok || info.Max <= info.Min {
		info = DefaultAxisRange
	}
	center := (float64(info.Min) + float64(info.Max)) / 2
	half := (float64(info.Max) - float64(info.Min)) / 2
	v := (float64(raw) - center) / half
	return math.Max(-1, math.Min(1, v))
}
