package sink

import (
	"errors"
	"sync"
	"sync/atomic"

	"gridpointer/fault"
	"gridpointer/input"
	"gridpointer/logger"
)

// DefaultQueueSize 异步输出队列容量
const DefaultQueueSize = 128

var (
	errQueueFull = errors.New("output queue full")
	errClosed    = errors.New("output sink closed")
)

type command struct {
	click  bool
	dx, dy float64
	button input.Button
}

// Async 包装一个可能阻塞的输出端：调用方只做非阻塞入队，独立协程负责写出。
// 队列满或写出失败时丢弃命令并上报 SinkUnreachable，调度循环永不因输出端停顿
type Async struct {
	inner    Sink
	queue    chan command
	reporter *fault.Reporter
	source   string

	sent    atomic.Int64
	dropped atomic.Int64
	failed  atomic.Int64

	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// NewAsync 创建异步输出端并启动写协程
func NewAsync(inner Sink, size int, reporter *fault.Reporter, source string) *Async {
	if size <= 0 {
		size = DefaultQueueSize
	}
	a := &Async{
		inner:    inner,
		queue:    make(chan command, size),
		reporter: reporter,
		source:   source,
		done:     make(chan struct{}),
	}
	a.wg.Add(1)
	go a.writePump()
	return a
}

func (a *Async) MoveBy(dx, dy float64) error {
	return a.enqueue(command{dx: dx, dy: dy})
}

func (a *Async) Click(b input.Button) error {
	return a.enqueue(command{click: true, button: b})
}

// enqueue 非阻塞入队，满则丢弃
func (a *Async) enqueue(c command) error {
	select {
	case <-a.done:
		return fault.SinkUnreachable(a.source, errClosed)
	default:
	}
	select {
	case a.queue <- c:
		return nil
	default:
		a.dropped.Add(1)
		err := fault.SinkUnreachable(a.source, errQueueFull)
		a.reporter.Report(err)
		return err
	}
}

// writePump 独立协程，从队列写出到真实输出端
func (a *Async) writePump() {
	defer a.wg.Done()
	for {
		select {
		case <-a.done:
			a.drain()
			return
		case c := <-a.queue:
			a.write(c)
		}
	}
}

// drain 关闭时写出已入队的命令
func (a *Async) drain() {
	for {
		select {
		case c := <-a.queue:
			a.write(c)
		default:
			return
		}
	}
}

func (a *Async) write(c command) {
	var err error
	if c.click {
		err = a.inner.Click(c.button)
	} else {
		err = a.inner.MoveBy(c.dx, c.dy)
	}
	if err != nil {
		a.failed.Add(1)
		ferr := fault.SinkUnreachable(a.source, err)
		logger.Log.Debugf("%v", ferr)
		a.reporter.Report(ferr)
		return
	}
	a.sent.Add(1)
}

// Close 写出剩余命令后停止写协程，并关闭底层输出端
func (a *Async) Close() error {
	var err error
	a.closeOnce.Do(func() {
		close(a.done)
		a.wg.Wait()
		err = a.inner.Close()
	})
	return err
}

// Snapshot 返回只读计数，便于 HTTP 输出
func (a *Async) Snapshot() map[string]any {
	return map[string]any{
		"sink_sent":    a.sent.Load(),
		"sink_dropped": a.dropped.Load(),
		"sink_failed":  a.failed.Load(),
		"sink_queued":  len(a.queue),
	}
}
