package input

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrDeviceClosed 虚拟设备已关闭
var ErrDeviceClosed = errors.New("device closed")

// VirtualDevice 进程内输入源：终端按键（preview）与脚本（demo）都通过它
// 以 evdev 采样的形式进入同一条翻译链路
type VirtualDevice struct {
	name    string
	samples chan Sample
	axes    map[uint16]AxisInfo
	clock   func() time.Time

	closeOnce sync.Once
	closed    chan struct{}
}

// NewVirtualDevice 创建虚拟设备，buffer 为采样缓冲
func NewVirtualDevice(name string, buffer int) *VirtualDevice {
	if buffer <= 0 {
		buffer = 64
	}
	return &VirtualDevice{
		name:    name,
		samples: make(chan Sample, buffer),
		axes:    make(map[uint16]AxisInfo),
		clock:   time.Now,
		closed:  make(chan struct{}),
	}
}

// SetAxis 声明模拟轴范围（需在读取前设置）
func (v *VirtualDevice) SetAxis(code uint16, info AxisInfo) { v.axes[code] = info }

// Push 非阻塞写入一条采样；缓冲满或已关闭时返回 false
func (v *VirtualDevice) Push(s Sample) bool {
	if s.At.IsZero() {
		s.At = v.clock()
	}
	select {
	case <-v.closed:
		return false
	default:
	}
	select {
	case v.samples <- s:
		return true
	default:
		return false
	}
}

// Tap 模拟一次按键（按下 + 松开）
func (v *VirtualDevice) Tap(code uint16) bool {
	return v.Push(Sample{Type: EvKey, Code: code, Value: ValuePress}) &&
		v.Push(Sample{Type: EvKey, Code: code, Value: ValueRelease})
}

// Chord 按住修饰键的同时点按 code
func (v *VirtualDevice) Chord(modifier, code uint16) bool {
	return v.Push(Sample{Type: EvKey, Code: modifier, Value: ValuePress}) &&
		v.Tap(code) &&
		v.Push(Sample{Type: EvKey, Code: modifier, Value: ValueRelease})
}

// Stick 设置摇杆位置并提交一次 SYN_REPORT
func (v *VirtualDevice) Stick(x, y int32) bool {
	return v.Push(Sample{Type: EvAbs, Code: AbsX, Value: x}) &&
		v.Push(Sample{Type: EvAbs, Code: AbsY, Value: y}) &&
		v.Push(Sample{Type: EvSyn, Code: SynReport})
}

func (v *VirtualDevice) Path() string { return v.name }

func (v *VirtualDevice) Axis(code uint16) (AxisInfo, bool) {
	info, ok := v.axes[code]
	return info, ok
}

func (v *VirtualDevice) ReadSamples(ctx context.Context, emit func(Sample)) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-v.closed:
			return ErrDeviceClosed
		case s := <-v.samples:
			emit(s)
		}
	}
}

func (v *VirtualDevice) Close() error {
	v.closeOnce.Do(func() { close(v.closed) })
	return nil
}
