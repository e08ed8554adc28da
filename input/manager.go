package input

import (
	"context"
	"errors"
	"sync"
	"time"

	"gridpointer/fault"
	"gridpointer/logger"
)

// OpenFunc 打开设备的方法（测试中可替换）
type OpenFunc func(path string, grab bool) (Device, error)

// Settings 生产者运行期需要读取的配置（每次读取，支持热更新）
type Settings interface {
	DeadZone() float64
	AnalogRepeat() time.Duration
}

// Manager 为每个设备启动一个生产者协程，把 Intent 投递到调度器队列。
// 单个设备失败只上报 DeviceUnavailable，其他设备继续工作
type Manager struct {
	Devices  []Device
	Offer    func(Intent) bool
	Settings Settings
	Reporter *fault.Reporter
}

// OpenAll 逐个打开设备；失败的设备上报后跳过
func OpenAll(paths []string, grab bool, open OpenFunc, reporter *fault.Reporter) []Device {
	if open == nil {
		open = Open
	}
	devices := make([]Device, 0, len(paths))
	for _, p := range paths {
		d, err := open(p, grab)
		if err != nil {
			ferr := fault.DeviceUnavailable(p, err)
			logger.Log.Warnf("%v", ferr)
			reporter.Report(ferr)
			continue
		}
		logger.Log.Infof("input device opened: %s", p)
		devices = append(devices, d)
	}
	return devices
}

// AutoDetect 未配置设备时，选择第一个键盘与第一个手柄
func AutoDetect(infos []DeviceInfo) []string {
	var keyboard, gamepad string
	for _, info := range infos {
		if info.Err != nil {
			continue
		}
		switch info.Class {
		case ClassKeyboard:
			if keyboard == "" {
				keyboard = info.Path
			}
		case ClassGamepad:
			if gamepad == "" {
				gamepad = info.Path
			}
		}
	}
	var out []string
	if keyboard != "" {
		out = append(out, keyboard)
	}
	if gamepad != "" {
		out = append(out, gamepad)
	}
	return out
}

// Run 阻塞直到 ctx 结束且所有生产者退出
func (m *Manager) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for _, d := range m.Devices {
		wg.Add(1)
		go func(d Device) {
			defer wg.Done()
			defer d.Close()
			if err := m.pump(ctx, d); err != nil {
				ferr := fault.DeviceUnavailable(d.Path(), err)
				logger.Log.Warnf("input device lost, continuing with remaining devices: %v", ferr)
				m.Reporter.Report(ferr)
			}
		}(d)
	}
	<-ctx.Done()
	for _, d := range m.Devices {
		_ = d.Close()
	}
	wg.Wait()
}

// pump 单个设备的生产者：读采样 → 翻译 → 非阻塞投递。
// 摇杆保持偏移时按 AnalogRepeat 周期重复投递，使移动持续
func (m *Manager) pump(ctx context.Context, d Device) error {
	norm := NewNormalizer(m.Settings.DeadZone, d.Axis)

	samples := make(chan Sample, 64)
	readErr := make(chan error, 1)
	go func() {
		readErr <- d.ReadSamples(ctx, func(s Sample) {
			select {
			case samples <- s:
			case <-ctx.Done():
			}
		})
	}()

	repeat := time.NewTimer(m.Settings.AnalogRepeat())
	defer repeat.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-readErr:
			if err == nil || errors.Is(err, context.Canceled) || ctx.Err() != nil {
				return nil
			}
			return err
		case s := <-samples:
			for _, in := range norm.Feed(s) {
				m.Offer(in)
			}
		case <-repeat.C:
			if a, ok := norm.Analog(); ok {
				m.Offer(a)
			}
			repeat.Reset(m.Settings.AnalogRepeat())
		}
	}
}
