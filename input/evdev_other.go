//go:build !linux

package input

import (
	"errors"
	"runtime"
)

var errUnsupported = errors.New("evdev input is only supported on linux, not " + runtime.GOOS)

// Discover 非 Linux 平台没有 evdev 设备
func Discover() []DeviceInfo { return nil }

// Open 非 Linux 平台不可用
func Open(path string, grab bool) (Device, error) {
	return nil, errUnsupported
}
