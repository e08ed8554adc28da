package motion

import (
	"fmt"
	"time"

	"gridpointer/grid"
)

// State 运动状态（封闭和类型），任意时刻只有一个处于活动状态
type State interface {
	isState()
	String() string
}

// Idle 静止于某个格子
type Idle struct {
	Position grid.Cell
}

// Tweening 两个格子之间的缓动过渡。
// From/To/Duration 以及两端屏幕坐标在过渡开始时固定，之后的配置变更不影响
type Tweening struct {
	From     grid.Cell
	To       grid.Cell
	Elapsed  time.Duration
	Duration time.Duration
	Dash     bool
	Analog   bool

	fromPt grid.Point
	toPt   grid.Point
}

func (Idle) isState()     {}
func (Tweening) isState() {}

func (s Idle) String() string { return fmt.Sprintf("idle%s", s.Position) }

func (s Tweening) String() string {
	return fmt.Sprintf("tween%s->%s %v/%v", s.From, s.To, s.Elapsed, s.Duration)
}

// Progress 当前插值比例 t ∈ [0,1]
func (s Tweening) Progress() float64 {
	if s.Duration <= 0 || s.Elapsed >= s.Duration {
		return 1
	}
	return float64(s.Elapsed) / float64(s.Duration)
}

// Target 目标格子的屏幕坐标（过渡开始时计算）
func (s Tweening) Target() grid.Point { return s.toPt }
