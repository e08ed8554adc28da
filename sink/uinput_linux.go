//go:build linux

package sink

import (
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"sync"
	"unsafe"

	"golang.org/x/sys/unix"

	"gridpointer/input"
)

// DefaultUinputPath uinput 控制设备
const DefaultUinputPath = "/dev/uinput"

// uinput.h
const (
	uiDevCreate  = 0x5501
	uiDevDestroy = 0x5502
	uiSetEvBit   = 0x40045564
	uiSetKeyBit  = 0x40045565
	uiSetRelBit  = 0x40045566
	uiSetPropBit = 0x4004556e

	uinputMaxNameSize = 80
	absCount          = 64
	busVirtual        = 0x06
	propPointer       = 0x00
)

type inputID struct {
	Bustype uint16
	Vendor  uint16
	Product uint16
	Version uint16
}

// uinputUserDev struct uinput_user_dev（旧式接口，所有内核都支持）
type uinputUserDev struct {
	Name       [uinputMaxNameSize]byte
	ID         inputID
	EffectsMax uint32
	Absmax     [absCount]int32
	Absmin     [absCount]int32
	Absfuzz    [absCount]int32
	Absflat    [absCount]int32
}

var timevalSize = int(unsafe.Sizeof(unix.Timeval{}))

// Uinput 通过 /dev/uinput 创建的虚拟相对鼠标。
// 小数位移累积到余量中，整数部分才写出，避免亚像素移动丢失。
// 注意：桌面环境的指针加速会作用于这些相对事件，需要关闭加速才能精确落点
type Uinput struct {
	mu     sync.Mutex
	f      *os.File
	remX   float64
	remY   float64
	closed bool
}

// OpenUinput 创建虚拟鼠标；path 为空时使用 /dev/uinput
func OpenUinput(path, name string) (*Uinput, error) {
	if path == "" {
		path = DefaultUinputPath
	}
	f, err := os.OpenFile(path, os.O_WRONLY|unix.O_NONBLOCK, 0)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	u := &Uinput{f: f}
	if err := u.setup(name); err != nil {
		f.Close()
		return nil, fmt.Errorf("create uinput device: %w", err)
	}
	return u, nil
}

// ioctl 通过 RawConn 执行，避免 f.Fd() 把文件切回阻塞模式
func (u *Uinput) ioctl(req uintptr, arg uintptr) error {
	rc, err := u.f.SyscallConn()
	if err != nil {
		return err
	}
	var errno unix.Errno
	cerr := rc.Control(func(fd uintptr) {
		_, _, errno = unix.Syscall(unix.SYS_IOCTL, fd, req, arg)
	})
	if cerr != nil {
		return cerr
	}
	if errno != 0 {
		return errno
	}
	return nil
}

func (u *Uinput) setup(name string) error {
	bits := []struct {
		req  uintptr
		code uintptr
	}{
		{uiSetEvBit, input.EvSyn},
		{uiSetEvBit, input.EvKey},
		{uiSetEvBit, input.EvRel},
		{uiSetKeyBit, input.BtnLeft},
		{uiSetKeyBit, input.BtnRight},
		{uiSetKeyBit, input.BtnMiddle},
		{uiSetRelBit, input.RelX},
		{uiSetRelBit, input.RelY},
		{uiSetPropBit, propPointer},
	}
	for _, b := range bits {
		if err := u.ioctl(b.req, b.code); err != nil {
			return fmt.Errorf("ioctl %#x(%d): %w", b.req, b.code, err)
		}
	}

	var dev uinputUserDev
	copy(dev.Name[:uinputMaxNameSize-1], name)
	dev.ID = inputID{Bustype: busVirtual, Vendor: 0x1d6b, Product: 0x0104, Version: 1}
	if err := binary.Write(u.f, binary.LittleEndian, &dev); err != nil {
		return fmt.Errorf("write uinput_user_dev: %w", err)
	}
	return u.ioctl(uiDevCreate, 0)
}

// event 编码一条 struct input_event（时间戳由内核填写）
func event(buf []byte, typ, code uint16, value int32) []byte {
	ev := make([]byte, timevalSize+8)
	binary.LittleEndian.PutUint16(ev[timevalSize:], typ)
	binary.LittleEndian.PutUint16(ev[timevalSize+2:], code)
	binary.LittleEndian.PutUint32(ev[timevalSize+4:], uint32(value))
	return append(buf, ev...)
}

func (u *Uinput) MoveBy(dx, dy float64) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.closed {
		return os.ErrClosed
	}
	u.remX += dx
	u.remY += dy
	ix := math.Trunc(u.remX)
	iy := math.Trunc(u.remY)
	if ix == 0 && iy == 0 {
		return nil
	}
	u.remX -= ix
	u.remY -= iy

	var buf []byte
	if ix != 0 {
		buf = event(buf, input.EvRel, input.RelX, int32(ix))
	}
	if iy != 0 {
		buf = event(buf, input.EvRel, input.RelY, int32(iy))
	}
	buf = event(buf, input.EvSyn, input.SynReport, 0)
	if _, err := u.f.Write(buf); err != nil {
		// 写失败时整数部分没有送出，留到下一次
		u.remX += ix
		u.remY += iy
		return err
	}
	return nil
}

// Click 一次完整点击：按下帧 + 松开帧
func (u *Uinput) Click(b input.Button) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.closed {
		return os.ErrClosed
	}
	var buf []byte
	buf = event(buf, input.EvKey, b.Code(), input.ValuePress)
	buf = event(buf, input.EvSyn, input.SynReport, 0)
	buf = event(buf, input.EvKey, b.Code(), input.ValueRelease)
	buf = event(buf, input.EvSyn, input.SynReport, 0)
	_, err := u.f.Write(buf)
	return err
}

func (u *Uinput) Close() error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.closed {
		return nil
	}
	u.closed = true
	_ = u.ioctl(uiDevDestroy, 0)
	return u.f.Close()
}
