package sink

import (
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"gridpointer/grid"
	"gridpointer/input"
)

// PreviewFPS 终端预览刷新率
const PreviewFPS = 60

// Layout 预览渲染需要的网格与显示器参数（每帧读取，跟随热更新）
type Layout struct {
	Cols    int
	Rows    int
	Monitor grid.Size
}

// PreviewState 预览输出端的只读快照
type PreviewState struct {
	Pos       grid.Point
	Moves     int
	Clicks    int
	LastClick input.Button
}

// Preview 终端预览输出端：只在内存中累积指针位置，由 bubbletea 程序按帧读取渲染
type Preview struct {
	mu    sync.Mutex
	state PreviewState
}

// NewPreview start 为指针初始屏幕位置
func NewPreview(start grid.Point) *Preview {
	return &Preview{state: PreviewState{Pos: start}}
}

func (p *Preview) MoveBy(dx, dy float64) error {
	p.mu.Lock()
	p.state.Pos = p.state.Pos.Add(grid.Point{X: dx, Y: dy})
	p.state.Moves++
	p.mu.Unlock()
	return nil
}

func (p *Preview) Click(b input.Button) error {
	p.mu.Lock()
	p.state.Clicks++
	p.state.LastClick = b
	p.mu.Unlock()
	return nil
}

func (p *Preview) Close() error { return nil }

func (p *Preview) Snapshot() PreviewState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// StopMsg 通知预览程序退出（调度循环已结束）
type StopMsg struct{}

type frameMsg time.Time

func frame() tea.Cmd {
	return tea.Tick(time.Second/PreviewFPS, func(t time.Time) tea.Msg { return frameMsg(t) })
}

var (
	previewTitleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
	previewCellStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	previewPointerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	previewStatusStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	previewHelpStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Italic(true)
	previewBoxStyle     = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

var previewArrows = map[string]uint16{
	"up":    input.KeyUp,
	"down":  input.KeyDown,
	"left":  input.KeyLeft,
	"right": input.KeyRight,
}

// PreviewModel bubbletea 模型：把终端按键转换为虚拟设备上的 evdev 采样，
// 并按帧渲染网格与指针
type PreviewModel struct {
	sink   *Preview
	keys   *input.VirtualDevice
	layout func() Layout
	status func() string

	state    PreviewState
	quitting bool
}

var _ tea.Model = PreviewModel{}

// NewPreviewModel status 可为空，用于显示状态机等附加信息
func NewPreviewModel(sink *Preview, keys *input.VirtualDevice, layout func() Layout, status func() string) PreviewModel {
	return PreviewModel{sink: sink, keys: keys, layout: layout, status: status, state: sink.Snapshot()}
}

func (m PreviewModel) Init() tea.Cmd { return frame() }

func (m PreviewModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case frameMsg:
		m.state = m.sink.Snapshot()
		return m, frame()
	case StopMsg:
		m.quitting = true
		return m, tea.Quit
	case tea.KeyMsg:
		key := msg.String()
		if code, ok := previewArrows[key]; ok {
			m.keys.Tap(code)
			return m, nil
		}
		if dir, ok := strings.CutPrefix(key, "shift+"); ok {
			if code, ok := previewArrows[dir]; ok {
				m.keys.Chord(input.KeyLeftShift, code)
			}
			return m, nil
		}
		switch key {
		case " ", "enter":
			m.keys.Tap(input.KeySpace)
		case "r":
			m.keys.Tap(input.BtnEast)
		case "esc", "q":
			m.keys.Tap(input.KeyEsc)
		case "ctrl+c":
			m.keys.Tap(input.KeyEsc)
			m.quitting = true
			return m, tea.Quit
		}
	}
	return m, nil
}

// pointerCell 指针当前所在的格子
func pointerCell(pos grid.Point, l Layout) grid.Cell {
	if l.Cols <= 0 || l.Rows <= 0 || l.Monitor.Width <= 0 || l.Monitor.Height <= 0 {
		return grid.Cell{}
	}
	c := grid.Cell{
		Col: int(math.Floor(pos.X / (l.Monitor.Width / float64(l.Cols)))),
		Row: int(math.Floor(pos.Y / (l.Monitor.Height / float64(l.Rows)))),
	}
	return grid.Clamp(c, l.Cols, l.Rows)
}

func (m PreviewModel) View() string {
	if m.quitting {
		return ""
	}
	l := m.layout()
	at := pointerCell(m.state.Pos, l)

	var b strings.Builder
	for r := 0; r < l.Rows; r++ {
		for c := 0; c < l.Cols; c++ {
			if c > 0 {
				b.WriteByte(' ')
			}
			if at.Col == c && at.Row == r {
				b.WriteString(previewPointerStyle.Render("●"))
			} else {
				b.WriteString(previewCellStyle.Render("·"))
			}
		}
		if r < l.Rows-1 {
			b.WriteByte('\n')
		}
	}

	status := fmt.Sprintf("pointer (%.1f, %.1f)  cell %s  moves %d  clicks %d",
		m.state.Pos.X, m.state.Pos.Y, at, m.state.Moves, m.state.Clicks)
	if m.status != nil {
		status += "  " + m.status()
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		previewTitleStyle.Render(fmt.Sprintf("gridpointer preview  %dx%d on %.0fx%.0f", l.Cols, l.Rows, l.Monitor.Width, l.Monitor.Height)),
		previewBoxStyle.Render(b.String()),
		previewStatusStyle.Render(status),
		previewHelpStyle.Render("arrows: move  shift+arrows: dash  space: click  r: right click  esc/q: quit"),
	)
}
