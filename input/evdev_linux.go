//go:build linux

package input

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"
)

// ioctl 请求编码（Linux _IOC 宏）
const (
	iocNRBits   = 8
	iocTypeBits = 8
	iocSizeBits = 14

	iocNRShift   = 0
	iocTypeShift = iocNRShift + iocNRBits
	iocSizeShift = iocTypeShift + iocTypeBits
	iocDirShift  = iocSizeShift + iocSizeBits

	iocWrite = 1
	iocRead  = 2
)

func ioc(dir, typ, nr, size uint32) uintptr {
	return uintptr(dir<<iocDirShift | typ<<iocTypeShift | nr<<iocNRShift | size<<iocSizeShift)
}

type absInfo struct {
	Value      int32
	Min        int32
	Max        int32
	Fuzz       int32
	Flat       int32
	Resolution int32
}

func eviocGName(n int) uintptr      { return ioc(iocRead, 'E', 0x06, uint32(n)) }
func eviocGBit(ev, n int) uintptr   { return ioc(iocRead, 'E', uint32(0x20+ev), uint32(n)) }
func eviocGAbs(code uint16) uintptr { return ioc(iocRead, 'E', uint32(0x40+code), uint32(unsafe.Sizeof(absInfo{}))) }
func eviocGrab() uintptr            { return ioc(iocWrite, 'E', 0x90, uint32(unsafe.Sizeof(int32(0)))) }

// struct input_event: timeval + type(u16) + code(u16) + value(s32)
var (
	timevalSize = int(unsafe.Sizeof(unix.Timeval{}))
	eventSize   = timevalSize + 8
)

// DefaultReadTimeout 单次阻塞读的超时；超时后检查 ctx 再继续
const DefaultReadTimeout = 500 * time.Millisecond

// Evdev 一个打开的 /dev/input/event* 设备
type Evdev struct {
	path string
	name string
	f    *os.File
	keys []byte
	abs  []byte

	mu   sync.Mutex
	axes map[uint16]AxisInfo

	closeOnce sync.Once
}

// OpenEvdev 打开设备并读取名称、能力位与轴范围；grab 为 true 时独占设备
func OpenEvdev(path string, grab bool) (*Evdev, error) {
	f, err := os.OpenFile(path, os.O_RDONLY|unix.O_NONBLOCK, 0)
	if err != nil {
		return nil, err
	}
	d := &Evdev{path: path, f: f, axes: make(map[uint16]AxisInfo)}
	if err := d.probe(); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("probe %s: %w", path, err)
	}
	if grab {
		if err := d.ioctl(eviocGrab(), 1); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("grab %s: %w", path, err)
		}
	}
	return d, nil
}

// ioctl 通过 RawConn 执行，避免 f.Fd() 把文件切回阻塞模式
func (d *Evdev) ioctl(req, arg uintptr) error {
	rc, err := d.f.SyscallConn()
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

func (d *Evdev) probe() error {
	name := make([]byte, 256)
	if err := d.ioctl(eviocGName(len(name)), uintptr(unsafe.Pointer(&name[0]))); err != nil {
		return fmt.Errorf("EVIOCGNAME: %w", err)
	}
	d.name = strings.TrimRight(string(name), "\x00")

	d.keys = make([]byte, KeyMax/8+1)
	if err := d.ioctl(eviocGBit(EvKey, len(d.keys)), uintptr(unsafe.Pointer(&d.keys[0]))); err != nil {
		return fmt.Errorf("EVIOCGBIT(EV_KEY): %w", err)
	}
	d.abs = make([]byte, AbsMax/8+1)
	if err := d.ioctl(eviocGBit(EvAbs, len(d.abs)), uintptr(unsafe.Pointer(&d.abs[0]))); err != nil {
		return fmt.Errorf("EVIOCGBIT(EV_ABS): %w", err)
	}
	for _, code := range []uint16{AbsX, AbsY, AbsHat0X, AbsHat0Y} {
		if !hasBit(d.abs, code) {
			continue
		}
		var info absInfo
		if err := d.ioctl(eviocGAbs(code), uintptr(unsafe.Pointer(&info))); err != nil {
			continue
		}
		d.axes[code] = AxisInfo{Min: info.Min, Max: info.Max, Flat: info.Flat}
	}
	return nil
}

func hasBit(bits []byte, code uint16) bool {
	i := int(code / 8)
	return i < len(bits) && bits[i]&(1<<(code%8)) != 0
}

func (d *Evdev) Path() string { return d.path }
func (d *Evdev) Name() string { return d.name }

// HasKey 设备是否声明了该按键
func (d *Evdev) HasKey(code uint16) bool { return hasBit(d.keys, code) }

// HasAbs 设备是否声明了该轴
func (d *Evdev) HasAbs(code uint16) bool { return hasBit(d.abs, code) }

// Class 按能力位分类：KEY_A+KEY_SPACE 为键盘，BTN_SOUTH+BTN_EAST 为手柄
func (d *Evdev) Class() Class {
	switch {
	case d.HasKey(BtnSouth) && d.HasKey(BtnEast):
		return ClassGamepad
	case d.HasKey(KeyA) && d.HasKey(KeySpace):
		return ClassKeyboard
	default:
		return ClassOther
	}
}

func (d *Evdev) Axis(code uint16) (AxisInfo, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	info, ok := d.axes[code]
	return info, ok
}

// ReadSamples 读取 input_event 流；ctx 结束返回 nil，设备断开返回错误
func (d *Evdev) ReadSamples(ctx context.Context, emit func(Sample)) error {
	buf := make([]byte, eventSize*64)
	for {
		if ctx.Err() != nil {
			return nil
		}
		_ = d.f.SetReadDeadline(time.Now().Add(DefaultReadTimeout))
		n, err := d.f.Read(buf)
		if err != nil {
			switch {
			case errors.Is(err, os.ErrDeadlineExceeded):
				continue
			case ctx.Err() != nil:
				return nil
			case errors.Is(err, io.EOF), errors.Is(err, unix.ENODEV):
				return fmt.Errorf("%s disconnected: %w", d.path, err)
			default:
				return fmt.Errorf("read %s: %w", d.path, err)
			}
		}
		for off := 0; off+eventSize <= n; off += eventSize {
			emit(decodeEvent(buf[off : off+eventSize]))
		}
	}
}

func decodeEvent(ev []byte) Sample {
	var sec, usec int64
	if timevalSize == 16 {
		sec = int64(binary.LittleEndian.Uint64(ev[0:8]))
		usec = int64(binary.LittleEndian.Uint64(ev[8:16]))
	} else {
		sec = int64(int32(binary.LittleEndian.Uint32(ev[0:4])))
		usec = int64(int32(binary.LittleEndian.Uint32(ev[4:8])))
	}
	o := timevalSize
	return Sample{
		At:    time.Unix(sec, usec*1000),
		Type:  binary.LittleEndian.Uint16(ev[o : o+2]),
		Code:  binary.LittleEndian.Uint16(ev[o+2 : o+4]),
		Value: int32(binary.LittleEndian.Uint32(ev[o+4 : o+8])),
	}
}

func (d *Evdev) Close() error {
	var err error
	d.closeOnce.Do(func() { err = d.f.Close() })
	return err
}

// Discover 枚举 /dev/input/event* 并分类；无法打开的设备在 Err 中给出原因
func Discover() []DeviceInfo {
	paths, _ := filepath.Glob("/dev/input/event*")
	sort.Slice(paths, func(i, j int) bool { return eventIndex(paths[i]) < eventIndex(paths[j]) })

	out := make([]DeviceInfo, 0, len(paths))
	for _, p := range paths {
		d, err := OpenEvdev(p, false)
		if err != nil {
			out = append(out, DeviceInfo{Path: p, Class: ClassOther, Err: err})
			continue
		}
		out = append(out, DeviceInfo{Path: p, Name: d.Name(), Class: d.Class()})
		_ = d.Close()
	}
	return out
}

func eventIndex(path string) int {
	var n int
	_, _ = fmt.Sscanf(filepath.Base(path), "event%d", &n)
	return n
}

// Open 打开 evdev 设备，供 Manager 使用
func Open(path string, grab bool) (Device, error) {
	return OpenEvdev(path, grab)
}
