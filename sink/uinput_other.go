//go:build !linux

package sink

import (
	"errors"
	"runtime"

	"gridpointer/input"
)

const DefaultUinputPath = "/dev/uinput"

// Uinput 仅 Linux 可用
type Uinput struct{}

func OpenUinput(path, name string) (*Uinput, error) {
	return nil, errors.New("uinput not supported on " + runtime.GOOS)
}

func (*Uinput) MoveBy(dx, dy float64) error { return errors.ErrUnsupported }
func (*Uinput) Click(b input.Button) error { return errors.ErrUnsupported }
func (*Uinput) Close() error { return nil }
