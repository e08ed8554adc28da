// Package fault 定义守护进程的错误分类以及非致命错误的上报通道。
package fault

import (
	"errors"
	"fmt"
)

// Kind 错误分类
type Kind int

const (
	KindDeviceUnavailable Kind = iota + 1 // 某个输入源缺失：降级继续
	KindConfigInvalid                     // 配置重载被拒绝：保留旧配置
	KindSinkUnreachable                   // 输出命令被丢弃：继续 Tick
	KindFatal                             // 启动期初始化失败：退出
)

var (
	ErrDeviceUnavailable = errors.New("input device unavailable")
	ErrConfigInvalid     = errors.New("config invalid")
	ErrSinkUnreachable   = errors.New("output sink unreachable")
	ErrFatal             = errors.New("fatal initialization failure")
)

func (k Kind) String() string {
	switch k {
	case KindDeviceUnavailable:
		return "device_unavailable"
	case KindConfigInvalid:
		return "config_invalid"
	case KindSinkUnreachable:
		return "sink_unreachable"
	case KindFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

func (k Kind) sentinel() error {
	switch k {
	case KindDeviceUnavailable:
		return ErrDeviceUnavailable
	case KindConfigInvalid:
		return ErrConfigInvalid
	case KindSinkUnreachable:
		return ErrSinkUnreachable
	case KindFatal:
		return ErrFatal
	default:
		return nil
	}
}

// Error 携带分类与来源（设备路径、配置文件等）的错误
type Error struct {
	Kind   Kind
	Source string
	Err    error
}

func (e *Error) Error() string {
	msg := e.Kind.sentinel()
	if msg == nil {
		msg = errors.New(e.Kind.String())
	}
	switch {
	case e.Source != "" && e.Err != nil:
		return fmt.Sprintf("%v: %s: %v", msg, e.Source, e.Err)
	case e.Source != "":
		return fmt.Sprintf("%v: %s", msg, e.Source)
	case e.Err != nil:
		return fmt.Sprintf("%v: %v", msg, e.Err)
	default:
		return msg.Error()
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Is 让 errors.Is(err, ErrDeviceUnavailable) 之类的判断成立
func (e *Error) Is(target error) bool {
	s := e.Kind.sentinel()
	return s != nil && target == s
}

func newError(k Kind, source string, err error) *Error {
	return &Error{Kind: k, Source: source, Err: err}
}

func DeviceUnavailable(source string, err error) *Error {
	return newError(KindDeviceUnavailable, source, err)
}

func ConfigInvalid(source string, err error) *Error {
	return newError(KindConfigInvalid, source, err)
}

func SinkUnreachable(source string, err error) *Error {
	return newError(KindSinkUnreachable, source, err)
}

func Fatal(source string, err error) *Error {
	return newError(KindFatal, source, err)
}

// KindOf 返回错误链中的分类，未分类返回 0
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return 0
}
