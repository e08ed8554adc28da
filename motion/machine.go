package motion

import (
	"math"
	"time"

	"gridpointer/config"
	"gridpointer/grid"
	"gridpointer/input"
)

// Transition 一次过渡的描述，用于日志、追踪与状态推送
type Transition struct {
	From     grid.Cell     `json:"from"`
	To       grid.Cell     `json:"to"`
	Duration time.Duration `json:"duration"`
	Dash     bool          `json:"dash"`
	Analog   bool          `json:"analog"`
}

// Result 一次 Step 的输出
type Result struct {
	// Delta 本帧需要发送给输出端的相对位移（像素）
	Delta grid.Point

	Started  *Transition // 本帧开始的过渡
	Finished *Transition // 本帧完成的过渡

	Accepted int // 被接受的移动意图（每帧至多 1 个）
	Dropped  int // 过渡期间或同帧多余而被丢弃的移动意图
	Ignored  int // 低于死区的摇杆意图
}

// Machine 持有光标的逻辑格子位置与进行中的过渡。
// 非并发安全：只允许调度协程调用
type Machine struct {
	state   State
	emitted grid.Point
	monitor grid.Size
}

// New 以 Idle(start) 创建状态机，并假定指针已位于 start 的屏幕中心
func New(start grid.Cell, cfg *config.Config, monitor grid.Size) *Machine {
	start = grid.Clamp(start, cfg.Grid.Cols, cfg.Grid.Rows)
	return &Machine{
		state:   Idle{Position: start},
		emitted: grid.CellToScreen(start, cfg.Grid.Cols, cfg.Grid.Rows, monitor),
		monitor: monitor,
	}
}

// State 当前状态
func (m *Machine) State() State { return m.state }

// Emitted 已发送给输出端的累计屏幕位置
func (m *Machine) Emitted() grid.Point { return m.emitted }

// Monitor 当前使用的显示器尺寸
func (m *Machine) Monitor() grid.Size { return m.monitor }

// SetMonitor 更新显示器尺寸；只影响之后开始的过渡
func (m *Machine) SetMonitor(s grid.Size) { m.monitor = s }

// Position 逻辑位置：静止时为所在格子，过渡中为目标格子
func (m *Machine) Position() grid.Cell {
	switch s := m.state.(type) {
	case Tweening:
		return s.To
	case Idle:
		return s.Position
	}
	return grid.Cell{}
}

// Step 推进一帧：先推进进行中的过渡，再处理本帧的移动意图，最后把静止位置限制在当前网格内。
// 只有帧开始时处于 Idle 才会接受意图，且只接受第一个；其余全部丢弃，不跨帧保留。
// 新开始的过渡 elapsed 为 0，从下一帧开始推进
func (m *Machine) Step(cfg *config.Config, dt time.Duration, intents []input.Intent) Result {
	var res Result
	_, wasIdle := m.state.(Idle)

	if tw, ok := m.state.(Tweening); ok {
		res.Delta, res.Finished = m.advance(tw, dt)
	}

	for _, in := range intents {
		switch in := in.(type) {
		case input.Move, input.Analog:
			if a, ok := in.(input.Analog); ok && !aboveDeadZone(a, cfg.Input.DeadZone) {
				res.Ignored++
				continue
			}
			if !wasIdle || res.Accepted > 0 {
				res.Dropped++
				continue
			}
			res.Accepted++
			res.Started = m.start(cfg, in)
		}
	}
	m.clampIdle(cfg)
	return res
}

// clampIdle 网格缩小后，静止位置收回到新网格内（已发送的位置不变，下一次过渡从那里开始）
func (m *Machine) clampIdle(cfg *config.Config) {
	if idle, ok := m.state.(Idle); ok {
		m.state = Idle{Position: grid.Clamp(idle.Position, cfg.Grid.Cols, cfg.Grid.Rows)}
	}
}

func aboveDeadZone(a input.Analog, deadZone float64) bool {
	return a.Magnitude > 0 && a.Magnitude >= deadZone
}

// advance 推进过渡；到期时精确落在目标点，避免浮点累积误差
func (m *Machine) advance(tw Tweening, dt time.Duration) (grid.Point, *Transition) {
	if dt < 0 {
		dt = 0
	}
	tw.Elapsed += dt
	if tw.Elapsed >= tw.Duration {
		delta := tw.toPt.Sub(m.emitted)
		m.emitted = tw.toPt
		m.state = Idle{Position: tw.To}
		return delta, tw.transition()
	}
	pt := tw.fromPt.Lerp(tw.toPt, Ease(tw.Progress()))
	delta := pt.Sub(m.emitted)
	m.emitted = pt
	m.state = tw
	return delta, nil
}

// start 从 Idle 开始新的过渡；目标被边界挡住时保持 Idle
func (m *Machine) start(cfg *config.Config, in input.Intent) *Transition {
	idle := m.state.(Idle)
	cols, rows := cfg.Grid.Cols, cfg.Grid.Rows
	pos := grid.Clamp(idle.Position, cols, rows)

	tw := Tweening{From: pos}
	switch in := in.(type) {
	case input.Move:
		n := 1
		if in.Dash {
			n = cfg.Movement.DashCells
		}
		tw.To = grid.Clamp(pos.Step(in.Direction, n), cols, rows)
		tw.Duration = cfg.TweenDuration()
		tw.Dash = in.Dash
	case input.Analog:
		dc, dr := AnalogOffset(in, cfg.Movement.AnalogCells)
		tw.To = grid.Clamp(pos.Add(dc, dr), cols, rows)
		tw.Duration = cfg.AnalogTweenDuration()
		tw.Analog = true
	}

	if tw.To == pos {
		m.state = Idle{Position: pos}
		return nil
	}
	// 起点取当前已发送的位置：网格或显示器变更后不会出现跳变
	tw.fromPt = m.emitted
	tw.toPt = grid.CellToScreen(tw.To, cols, rows, m.monitor)
	m.state = tw
	return tw.transition()
}

func (tw Tweening) transition() *Transition {
	return &Transition{From: tw.From, To: tw.To, Duration: tw.Duration, Dash: tw.Dash, Analog: tw.Analog}
}

// AnalogOffset 摇杆偏移映射为整格位移：
// 步数 max(1, round(magnitude*cells))，沿单位方向各轴独立取整
func AnalogOffset(a input.Analog, cells int) (dc, dr int) {
	length := math.Hypot(a.DX, a.DY)
	if length == 0 || a.Magnitude <= 0 {
		return 0, 0
	}
	if cells < 1 {
		cells = 1
	}
	steps := math.Max(1, math.Round(a.Magnitude*float64(cells)))
	ux, uy := a.DX/length, a.DY/length
	return int(math.Round(ux * steps)), int(math.Round(uy * steps))
}
