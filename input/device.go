package input

import (
	"context"
	"time"
)

// Sample 一条原始设备采样，沿用 evdev 的 type/code/value 语义；
// 非 evdev 来源（终端按键、脚本）也转换成同样的形式
type Sample struct {
	At    time.Time
	Type  uint16
	Code  uint16
	Value int32
}

// AxisInfo 模拟轴的取值范围
type AxisInfo struct {
	Min, Max int32
	Flat     int32
}

// Device 可被读取的输入源
type Device interface {
	// Path 设备路径或名称，用于日志与上报
	Path() string
	// ReadSamples 阻塞读取采样直到 ctx 结束或设备断开（返回错误）
	ReadSamples(ctx context.Context, emit func(Sample)) error
	// Axis 返回轴的取值范围，未知时 ok 为 false
	Axis(code uint16) (AxisInfo, bool)
	Close() error
}

// Class 设备类型
type Class string

const (
	ClassKeyboard Class = "keyboard"
	ClassGamepad  Class = "gamepad"
	ClassOther    Class = "other"
)

// DeviceInfo 设备探测结果
type DeviceInfo struct {
	Path  string
	Name  string
	Class Class
	Err   error
}
