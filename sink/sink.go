// Package sink 输出端：接收相对位移与点击命令，真正移动屏幕上的指针。
package sink

import (
	"gridpointer/input"
)

// Sink 输出端接口。两个命令都是即发即弃，只返回成功或失败
type Sink interface {
	MoveBy(dx, dy float64) error
	Click(b input.Button) error
	Close() error
}
