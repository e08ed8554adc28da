package fault

import (
	"sync"
	"sync/atomic"
	"time"
)

// Report 一条非致命错误上报
type Report struct {
	At   time.Time
	Kind Kind
	Err  error
}

// Reporter 非致命错误上报通道：有界、非阻塞，满则丢弃并计数
type Reporter struct {
	ch      chan Report
	dropped atomic.Int64
	counts  [KindFatal + 1]atomic.Int64
	clock   func() time.Time

	mu        sync.Mutex
	listeners []func(Report)
}

// NewReporter 创建上报通道，size 为缓冲容量
func NewReporter(size int) *Reporter {
	if size <= 0 {
		size = 64
	}
	return &Reporter{ch: make(chan Report, size), clock: time.Now}
}

// Report 上报错误（不阻塞调用方，Tick 线程可以安全调用）
func (r *Reporter) Report(err error) {
	if r == nil || err == nil {
		return
	}
	k := KindOf(err)
	if int(k) < len(r.counts) {
		r.counts[k].Add(1)
	}
	select {
	case r.ch <- Report{At: r.clock(), Kind: k, Err: err}:
	default:
		r.dropped.Add(1)
	}
}

// Subscribe 注册监听者，由 Run 所在协程调用
func (r *Reporter) Subscribe(fn func(Report)) {
	if r == nil {
		return
	}
	r.mu.Lock()
	r.listeners = append(r.listeners, fn)
	r.mu.Unlock()
}

// C 返回只读通道，供不使用 Run 的调用方直接消费
func (r *Reporter) C() <-chan Report { return r.ch }

// Run 分发上报直到 done 关闭
func (r *Reporter) Run(done <-chan struct{}) {
	for {
		select {
		case <-done:
			return
		case rep := <-r.ch:
			r.mu.Lock()
			ls := r.listeners
			r.mu.Unlock()
			for _, fn := range ls {
				fn(rep)
			}
		}
	}
}

// Count 返回某一分类累计上报次数
func (r *Reporter) Count(k Kind) int64 {
	if r == nil || int(k) >= len(r.counts) {
		return 0
	}
	return r.counts[k].Load()
}

// Dropped 因通道满而丢弃的上报数
func (r *Reporter) Dropped() int64 {
	if r == nil {
		return 0
	}
	return r.dropped.Load()
}
