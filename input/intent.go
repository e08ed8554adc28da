// Package input 将原始设备采样转换为一小组抽象的移动意图（Intent）。
package input

import (
	"fmt"

	"gridpointer/grid"
)

// Intent 移动意图（封闭和类型：Move / Analog / Click / Quit）
type Intent interface {
	isIntent()
}

// Move 离散移动一格；Dash 时移动 dash_cells 格
type Move struct {
	Direction grid.Direction
	Dash      bool
}

// Analog 摇杆偏移，DX/DY ∈ [-1,1]，Magnitude ∈ [0,1]
type Analog struct {
	DX, DY    float64
	Magnitude float64
}

// Click 点击，绕过状态机直接转发到输出端
type Click struct {
	Button Button
}

// Quit 终止调度循环
type Quit struct{}

func (Move) isIntent()   {}
func (Analog) isIntent() {}
func (Click) isIntent()  {}
func (Quit) isIntent()   {}

func (m Move) String() string {
	if m.Dash {
		return fmt.Sprintf("dash(%s)", m.Direction)
	}
	return fmt.Sprintf("move(%s)", m.Direction)
}

func (a Analog) String() string {
	return fmt.Sprintf("analog(%.2f,%.2f|%.2f)", a.DX, a.DY, a.Magnitude)
}

func (c Click) String() string { return fmt.Sprintf("click(%s)", c.Button) }
func (Quit) String() string    { return "quit" }

// Button 鼠标按键
type Button int

const (
	ButtonLeft Button = iota
	ButtonRight
	ButtonMiddle
)

func (b Button) String() string {
	switch b {
	case ButtonLeft:
		return "left"
	case ButtonRight:
		return "right"
	case ButtonMiddle:
		return "middle"
	default:
		return "unknown"
	}
}

// Code 返回 Linux 按键码（BTN_LEFT 等）
func (b Button) Code() uint16 {
	switch b {
	case ButtonRight:
		return BtnRight
	case ButtonMiddle:
		return BtnMiddle
	default:
		return BtnLeft
	}
}
