// Package config 保存当前生效的不可变配置快照，并支持热更新。
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mitchellh/go-homedir"

	"gridpointer/grid"
)

// Config 一份不可变的配置快照；发布到 Store 后不得再修改
type Config struct {
	Grid     GridConfig     `mapstructure:"grid" json:"grid"`
	Movement MovementConfig `mapstructure:"movement" json:"movement"`
	Input    InputConfig    `mapstructure:"input" json:"input"`
	Display  DisplayConfig  `mapstructure:"display" json:"display"`
	Log      LogConfig      `mapstructure:"log" json:"log"`

	// Source 配置来源（文件路径或 <defaults>）
	Source string `mapstructure:"-" json:"source"`
}

// GridConfig 网格尺寸与初始位置（-1 表示网格中心）
type GridConfig struct {
	Cols     int `mapstructure:"cols" json:"cols"`
	Rows     int `mapstructure:"rows" json:"rows"`
	StartCol int `mapstructure:"start_col" json:"start_col"`
	StartRow int `mapstructure:"start_row" json:"start_row"`
}

// MovementConfig 冲刺距离与补间时长
type MovementConfig struct {
	DashCells     int `mapstructure:"dash_cells" json:"dash_cells"`
	TweenMS       int `mapstructure:"tween_ms" json:"tween_ms"`
	AnalogCells   int `mapstructure:"analog_cells" json:"analog_cells"`
	AnalogTweenMS int `mapstructure:"analog_tween_ms" json:"analog_tween_ms"`
}

// InputConfig 输入设备选择；都为空时自动探测键盘与手柄
type InputConfig struct {
	KeyboardDevice string   `mapstructure:"keyboard_device" json:"keyboard_device"`
	GamepadDevice  string   `mapstructure:"gamepad_device" json:"gamepad_device"`
	DevicePaths    []string `mapstructure:"device_paths" json:"device_paths"`
	DeadZone       float64  `mapstructure:"dead_zone" json:"dead_zone"`
	Grab           bool     `mapstructure:"grab" json:"grab"`
}

// DisplayConfig 目标显示器；无法从 DRM 读取分辨率时使用 Width/Height
type DisplayConfig struct {
	TargetMonitor string `mapstructure:"target_monitor" json:"target_monitor"`
	Width         int    `mapstructure:"width" json:"width"`
	Height        int    `mapstructure:"height" json:"height"`
}

// LogConfig 日志级别与文件
type LogConfig struct {
	Level string `mapstructure:"level" json:"level"`
	File  string `mapstructure:"file" json:"file"`
}

// DefaultDeadZone 摇杆死区推荐值
const DefaultDeadZone = 0.15

// Default 返回内置默认配置：20x12 网格，冲刺 5 格，补间 150ms
func Default() *Config {
	return &Config{
		Grid: GridConfig{Cols: 20, Rows: 12, StartCol: -1, StartRow: -1},
		Movement: MovementConfig{
			DashCells:     5,
			TweenMS:       150,
			AnalogCells:   3,
			AnalogTweenMS: 60,
		},
		Input: InputConfig{
			DevicePaths: []string{},
			DeadZone:    DefaultDeadZone,
		},
		Display: DisplayConfig{TargetMonitor: "auto", Width: 1920, Height: 1080},
		Log:     LogConfig{Level: "info"},
		Source:  "<defaults>",
	}
}

// Validate 检查配置是否合理；返回的错误合并了所有问题
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}
	var errs []error
	if c.Grid.Cols < 1 {
		errs = append(errs, fmt.Errorf("grid.cols must be >= 1, got %d", c.Grid.Cols))
	}
	if c.Grid.Rows < 1 {
		errs = append(errs, fmt.Errorf("grid.rows must be >= 1, got %d", c.Grid.Rows))
	}
	if c.Grid.StartCol != -1 && (c.Grid.StartCol < 0 || c.Grid.StartCol >= c.Grid.Cols) {
		errs = append(errs, fmt.Errorf("grid.start_col %d outside grid", c.Grid.StartCol))
	}
	if c.Grid.StartRow != -1 && (c.Grid.StartRow < 0 || c.Grid.StartRow >= c.Grid.Rows) {
		errs = append(errs, fmt.Errorf("grid.start_row %d outside grid", c.Grid.StartRow))
	}
	if c.Movement.DashCells < 1 {
		errs = append(errs, fmt.Errorf("movement.dash_cells must be >= 1, got %d", c.Movement.DashCells))
	}
	if c.Movement.TweenMS < 1 {
		errs = append(errs, fmt.Errorf("movement.tween_ms must be >= 1, got %d", c.Movement.TweenMS))
	}
	if c.Movement.AnalogCells < 1 {
		errs = append(errs, fmt.Errorf("movement.analog_cells must be >= 1, got %d", c.Movement.AnalogCells))
	}
	if c.Movement.AnalogTweenMS < 1 {
		errs = append(errs, fmt.Errorf("movement.analog_tween_ms must be >= 1, got %d", c.Movement.AnalogTweenMS))
	}
	if c.Input.DeadZone < 0 || c.Input.DeadZone >= 1 {
		errs = append(errs, fmt.Errorf("input.dead_zone must be in [0,1), got %g", c.Input.DeadZone))
	}
	if c.Display.Width <= 0 || c.Display.Height <= 0 {
		errs = append(errs, fmt.Errorf("display size must be positive, got %dx%d", c.Display.Width, c.Display.Height))
	}
	if strings.TrimSpace(c.Display.TargetMonitor) == "" {
		errs = append(errs, errors.New("display.target_monitor must not be empty"))
	}
	switch strings.ToLower(strings.TrimSpace(c.Log.Level)) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, fmt.Errorf("log.level %q not one of debug|info|warn|error", c.Log.Level))
	}
	return errors.Join(errs...)
}

// Clone 深拷贝，用于在发布前派生新快照
func (c *Config) Clone() *Config {
	out := *c
	out.Input.DevicePaths = append([]string(nil), c.Input.DevicePaths...)
	return &out
}

// TweenDuration 离散移动的补间时长
func (c *Config) TweenDuration() time.Duration {
	return time.Duration(c.Movement.TweenMS) * time.Millisecond
}

// AnalogTweenDuration 摇杆移动的补间时长
func (c *Config) AnalogTweenDuration() time.Duration {
	return time.Duration(c.Movement.AnalogTweenMS) * time.Millisecond
}

// AnalogRepeatDivisor 摇杆保持偏移时，每个摇杆补间内重复投递的次数
const AnalogRepeatDivisor = 4

// AnalogRepeatInterval 摇杆保持偏移时的重复投递间隔。
// 短于补间时长：补间结束后的下一次投递最多晚一个间隔，连续偏移时补间首尾相接
func (c *Config) AnalogRepeatInterval() time.Duration {
	d := c.AnalogTweenDuration() / AnalogRepeatDivisor
	if d < time.Millisecond {
		d = time.Millisecond
	}
	return d
}

// StartCell 初始单元格；未配置时为网格中心
func (c *Config) StartCell() grid.Cell {
	center := grid.Center(c.Grid.Cols, c.Grid.Rows)
	cell := center
	if c.Grid.StartCol >= 0 {
		cell.Col = c.Grid.StartCol
	}
	if c.Grid.StartRow >= 0 {
		cell.Row = c.Grid.StartRow
	}
	return grid.Clamp(cell, c.Grid.Cols, c.Grid.Rows)
}

// FallbackSize 配置中的显示器尺寸
func (c *Config) FallbackSize() grid.Size {
	return grid.Size{Width: float64(c.Display.Width), Height: float64(c.Display.Height)}
}

// DevicePaths 合并 keyboard/gamepad/device_paths，展开 ~ 并去重
func (c *Config) DevicePaths() []string {
	var out []string
	seen := make(map[string]struct{})
	add := func(p string) {
		p = strings.TrimSpace(p)
		if p == "" {
			return
		}
		if expanded, err := homedir.Expand(p); err == nil {
			p = expanded
		}
		if _, ok := seen[p]; ok {
			return
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	add(c.Input.KeyboardDevice)
	add(c.Input.GamepadDevice)
	for _, p := range c.Input.DevicePaths {
		add(p)
	}
	return out
}
