package daemon

import (
	"sync/atomic"
	"time"
)

// Metrics 记录调度循环运行期的关键指标（用于监控与调试）
type Metrics struct {
	TickCount          int64 // 统计的 Tick 次数
	IntentsQueued      int64 // 成功入队的意图数
	QueueFullDiscarded int64 // 因队列满被丢弃的意图数
	IntentsAccepted    int64 // 被状态机接受的移动意图数
	IntentsDropped     int64 // 过渡期间或同帧多余而被丢弃的移动意图数
	IntentsIgnored     int64 // 低于死区的摇杆意图数
	TweensStarted      int64
	TweensFinished     int64
	Clicks             int64
	SinkErrors         int64 // 输出端拒绝的命令数
	TotalTickNs        int64 // Tick 累计耗时（纳秒）
	MaxDtNs            int64 // 观测到的最大帧间隔（纳秒）
}

func (m *Metrics) IncQueued() { atomic.AddInt64(&m.IntentsQueued, 1) }
func (m *Metrics) IncQueueFull() { atomic.AddInt64(&m.QueueFullDiscarded, 1) }
func (m *Metrics) AddAccepted(n int) { atomic.AddInt64(&m.IntentsAccepted, int64(n)) }
func (m *Metrics) AddDropped(n int) { atomic.AddInt64(&m.IntentsDropped, int64(n)) }
func (m *Metrics) AddIgnored(n int) { atomic.AddInt64(&m.IntentsIgnored, int64(n)) }
func (m *Metrics) IncTweenStarted() { atomic.AddInt64(&m.TweensStarted, 1) }
func (m *Metrics) IncTweenFinished() { atomic.AddInt64(&m.TweensFinished, 1) }
func (m *Metrics) IncClicks() { atomic.AddInt64(&m.Clicks, 1) }
func (m *Metrics) IncSinkErrors() { atomic.AddInt64(&m.SinkErrors, 1) }
func (m *Metrics) AddTick(elapsed time.Duration) {
	atomic.AddInt64(&m.TickCount, 1)
	atomic.AddInt64(&m.TotalTickNs, elapsed.Nanoseconds())
}

// ObserveDt 记录帧间隔，用于发现调度抖动
func (m *Metrics) ObserveDt(dt time.Duration) {
	ns := dt.Nanoseconds()
	for {
		cur := atomic.LoadInt64(&m.MaxDtNs)
		if ns <= cur || atomic.CompareAndSwapInt64(&m.MaxDtNs, cur, ns) {
			return
		}
	}
}

// Snapshot 返回只读副本，便于 HTTP 输出
func (m *Metrics) Snapshot() map[string]any {
	tick := atomic.LoadInt64(&m.TickCount)
	total := atomic.LoadInt64(&m.TotalTickNs)
	var avgMs float64
	if tick > 0 {
		avgMs = float64(total) / float64(tick) / 1e6
	}
	return map[string]any{
		"tick_count":           tick,
		"intents_queued":       atomic.LoadInt64(&m.IntentsQueued),
		"queue_full_discarded": atomic.LoadInt64(&m.QueueFullDiscarded),
		"intents_accepted":     atomic.LoadInt64(&m.IntentsAccepted),
		"intents_dropped":      atomic.LoadInt64(&m.IntentsDropped),
		"intents_ignored":      atomic.LoadInt64(&m.IntentsIgnored),
		"tweens_started":       atomic.LoadInt64(&m.TweensStarted),
		"tweens_finished":      atomic.LoadInt64(&m.TweensFinished),
		"clicks":               atomic.LoadInt64(&m.Clicks),
		"sink_errors":          atomic.LoadInt64(&m.SinkErrors),
		"avg_tick_ms":          avgMs,
		"max_dt_ms":            float64(atomic.LoadInt64(&m.MaxDtNs)) / 1e6,
	}
}
