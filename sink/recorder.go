package sink

import (
	"sync"

	"gridpointer/grid"
	"gridpointer/input"
)

// Command 记录下来的一条输出命令
type Command struct {
	Kind   string       `json:"kind"` // move | click
	Delta  grid.Point   `json:"delta,omitempty"`
	Button input.Button `json:"button,omitempty"`
}

// Recorder 内存输出端：记录所有命令，供 demo 与测试使用
type Recorder struct {
	mu       sync.Mutex
	commands []Command
	total    grid.Point
	closed   bool

	// Fail 非空时所有命令返回该错误（模拟输出端不可用）
	Fail error
}

func NewRecorder() *Recorder { return &Recorder{} }

func (r *Recorder) MoveBy(dx, dy float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Fail != nil {
		return r.Fail
	}
	d := grid.Point{X: dx, Y: dy}
	r.commands = append(r.commands, Command{Kind: "move", Delta: d})
	r.total = r.total.Add(d)
	return nil
}

func (r *Recorder) Click(b input.Button) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Fail != nil {
		return r.Fail
	}
	r.commands = append(r.commands, Command{Kind: "click", Button: b})
	return nil
}

func (r *Recorder) Close() error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	return nil
}

// Commands 返回命令副本
func (r *Recorder) Commands() []Command {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Command(nil), r.commands...)
}

// Total 所有位移之和
func (r *Recorder) Total() grid.Point {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.total
}

// Clicks 记录到的点击按键
func (r *Recorder) Clicks() []input.Button {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []input.Button
	for _, c := range r.commands {
		if c.Kind == "click" {
			out = append(out, c.Button)
		}
	}
	return out
}

func (r *Recorder) Closed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}
