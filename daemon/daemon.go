// Package daemon 固定频率的调度循环：单协程推进运动状态机，把位移发送到输出端。
package daemon

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"gridpointer/config"
	"gridpointer/fault"
	"gridpointer/grid"
	"gridpointer/input"
	"gridpointer/logger"
	"gridpointer/motion"
	"gridpointer/sink"
	"gridpointer/telemetry"
)

const (
	// TicksPerSecond 调度频率（360 TPS）
	TicksPerSecond = 360

	// IntentQueueSize 意图队列容量，足够缓冲，避免设备读阻塞影响 Tick
	IntentQueueSize = 256
)

// TickPeriod 2778µs
var TickPeriod = time.Second / TicksPerSecond

// Options 创建调度器的参数
type Options struct {
	Store    *config.Store
	Sink     sink.Sink
	Monitor  grid.Size
	Reporter *fault.Reporter
	Tracer   *telemetry.Tracer

	// MonitorFromConfig 显示器尺寸来自配置（未读到 DRM）时，重载后跟随配置变化
	MonitorFromConfig bool

	Period time.Duration
	Clock  func() time.Time
}

// Daemon 调度器：权威运动状态维护在内存，单线程 Tick 推进
type Daemon struct {
	store    *config.Store
	sink     sink.Sink
	reporter *fault.Reporter
	tracer   *telemetry.Tracer
	clock    func() time.Time
	period   time.Duration

	monitorFromConfig bool

	intents chan input.Intent
	batch   []input.Intent
	machine *motion.Machine
	metrics *Metrics

	last    time.Time
	version uint64
	ticks   int64

	status atomic.Pointer[Status]

	mu        sync.Mutex
	listeners []func(Event)
}

// New 创建调度器，状态机以配置的起始格子进入 Idle
func New(opts Options) *Daemon {
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Period <= 0 {
		opts.Period = TickPeriod
	}
	cfg := opts.Store.Current()
	d := &Daemon{
		store:             opts.Store,
		sink:              opts.Sink,
		reporter:          opts.Reporter,
		tracer:            opts.Tracer,
		clock:             opts.Clock,
		period:            opts.Period,
		monitorFromConfig: opts.MonitorFromConfig,
		intents:           make(chan input.Intent, IntentQueueSize),
		batch:             make([]input.Intent, 0, IntentQueueSize),
		machine:           motion.New(cfg.StartCell(), cfg, opts.Monitor),
		metrics:           &Metrics{},
		version:           opts.Store.Version(),
	}
	d.publish(time.Time{})
	return d
}

// OnIntent 入站意图（不立即改变状态），等下一次 Tick 处理。
// 不阻塞：队列满时丢弃并计数，保证 Tick 准时
func (d *Daemon) OnIntent(in input.Intent) bool {
	select {
	case d.intents <- in:
		d.metrics.IncQueued()
		return true
	default:
		d.metrics.IncQueueFull()
		return false
	}
}

// Subscribe 注册事件监听；回调在 Tick 线程执行，必须不阻塞
func (d *Daemon) Subscribe(fn func(Event)) {
	d.mu.Lock()
	d.listeners = append(d.listeners, fn)
	d.mu.Unlock()
}

func (d *Daemon) Metrics() *Metrics { return d.metrics }

// Status 最近一次发布的快照（任意协程可调用）
func (d *Daemon) Status() Status { return *d.status.Load() }

// drain 非阻塞取出 Tick 开始时已在队列中的意图；之后到达的留给下一帧
func (d *Daemon) drain() []input.Intent {
	d.batch = d.batch[:0]
	n := len(d.intents)
	for i := 0; i < n; i++ {
		select {
		case in := <-d.intents:
			d.batch = append(d.batch, in)
		default:
			return d.batch
		}
	}
	return d.batch
}

// Tick 执行一帧：取意图 → 计算帧间隔 → 推进状态机 → 发送位移 → 转发点击/处理退出。
// 返回 true 表示收到 Quit，调度循环应立即停止
func (d *Daemon) Tick(now time.Time) bool {
	intents := d.drain()

	var dt time.Duration
	if !d.last.IsZero() {
		dt = now.Sub(d.last)
	}
	d.last = now
	d.metrics.ObserveDt(dt)

	// 先读版本再读快照：替换发生在两次读取之间时，记录的是旧版本，下一帧会再次生效
	v := d.store.Version()
	cfg := d.store.Current()
	reloaded := false
	if v != d.version {
		reloaded = true
		d.version = v
		if d.monitorFromConfig {
			d.machine.SetMonitor(cfg.FallbackSize())
		}
		logger.Log.Infof("config v%d active for next transition (source %s)", v, cfg.Source)
		d.emit(Event{Type: EventConfig, At: now, Version: v})
	}

	res := d.machine.Step(cfg, dt, intents)
	d.metrics.AddAccepted(res.Accepted)
	d.metrics.AddDropped(res.Dropped)
	d.metrics.AddIgnored(res.Ignored)
	if res.Dropped > 0 {
		logger.Log.Debugf("dropped %d movement intents (state %s)", res.Dropped, d.machine.State())
	}

	if res.Finished != nil {
		d.metrics.IncTweenFinished()
		d.tracer.TweenFinished(now, res.Finished)
		d.emit(Event{Type: EventTweenEnd, At: now, Transition: res.Finished})
	}
	if res.Started != nil {
		d.metrics.IncTweenStarted()
		d.tracer.TweenStarted(now, res.Started)
		logger.Log.Debugf("tween %s -> %s over %v", res.Started.From, res.Started.To, res.Started.Duration)
		d.emit(Event{Type: EventTweenStart, At: now, Transition: res.Started})
	}

	if !res.Delta.IsZero() {
		d.send(d.sink.MoveBy(res.Delta.X, res.Delta.Y))
	}

	quit := false
	for _, in := range intents {
		switch in := in.(type) {
		case input.Click:
			d.metrics.IncClicks()
			d.send(d.sink.Click(in.Button))
			d.emit(clickEvent(now, in.Button))
		case input.Quit:
			quit = true
		}
	}

	d.ticks++
	if reloaded || res.Started != nil || res.Finished != nil || !res.Delta.IsZero() || d.ticks%TicksPerSecond == 0 {
		d.publish(now)
	}
	if quit {
		logger.Log.Infof("quit requested in state %s", d.machine.State())
		d.emit(Event{Type: EventQuit, At: now})
	}
	return quit
}

// send 输出端错误只计数上报，从不打断 Tick
func (d *Daemon) send(err error) {
	if err == nil {
		return
	}
	d.metrics.IncSinkErrors()
	if fault.KindOf(err) == 0 {
		// 未经异步包装的输出端：由这里上报
		d.reporter.Report(fault.SinkUnreachable("sink", err))
	}
}

func (d *Daemon) emit(ev Event) {
	d.mu.Lock()
	ls := d.listeners
	d.mu.Unlock()
	for _, fn := range ls {
		fn(ev)
	}
}

func (d *Daemon) publish(now time.Time) {
	_, tweening := d.machine.State().(motion.Tweening)
	d.status.Store(&Status{
		State:         d.machine.State().String(),
		Tweening:      tweening,
		Position:      d.machine.Position(),
		Emitted:       d.machine.Emitted(),
		Monitor:       d.machine.Monitor(),
		ConfigVersion: d.version,
		Tick:          d.ticks,
		At:            now,
	})
}

// Run 启动固定频率的 Tick 循环，阻塞直到收到 Quit（返回 nil）或 ctx 结束（返回 ctx.Err()）。
// 每帧实际测量时间间隔，补间时长跟随真实时间而不是假定的周期
func (d *Daemon) Run(ctx context.Context) error {
	ticker := time.NewTicker(d.period)
	defer ticker.Stop()

	d.last = d.clock()
	logger.Log.Infof("scheduler started: %v period, start %s", d.period, d.machine.State())
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			// 核心循环：处理意图 → 推进状态机 → 输出位移
			start := d.clock()
			stop := d.Tick(start)
			d.metrics.AddTick(d.clock().Sub(start))
			if stop {
				return nil
			}
		}
	}
}
