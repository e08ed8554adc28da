package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"gridpointer/fault"
	"gridpointer/logger"
)

// DefaultReloadDelay 合并连续写入事件的窗口（编辑器保存通常会触发多次写）
const DefaultReloadDelay = 100 * time.Millisecond

// Watcher 监听配置文件变化，重新解析后替换 Store；失败则上报并保留旧配置
type Watcher struct {
	Path     string
	Store    *Store
	Reporter *fault.Reporter
	Delay    time.Duration

	// OnReload 每次重载后回调（err 为 nil 表示成功），用于指标统计
	OnReload func(cfg *Config, err error)
}

// Run 阻塞运行直到 ctx 结束
func (w *Watcher) Run(ctx context.Context) error {
	path, err := filepath.Abs(w.Path)
	if err != nil {
		return fmt.Errorf("config: resolve %s: %w", w.Path, err)
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("config: ensure dir: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("config: create watcher: %w", err)
	}
	defer watcher.Close()

	// 监听目录而不是文件：编辑器常用 rename 覆盖，直接监听文件会丢失后续事件
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("config: watch %s: %w", dir, err)
	}

	delay := w.Delay
	if delay <= 0 {
		delay = DefaultReloadDelay
	}
	t := newReloadThrottle(delay)
	defer t.Stop()

	logger.Log.Infof("watching config %s", path)
	for {
		select {
		case <-ctx.Done():
			return nil
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Log.Warnf("config watcher error: %v", err)
		case evt, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(evt.Name) != path {
				continue
			}
			if evt.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			t.Trigger(func() { w.reload(path) })
		}
	}
}

func (w *Watcher) reload(path string) {
	cfg, err := Load(path)
	if err == nil {
		err = w.Store.Swap(cfg)
	} else {
		err = fault.ConfigInvalid(path, err)
	}
	if err != nil {
		logger.Log.Warnf("config reload rejected, keeping previous: %v", err)
		w.Reporter.Report(err)
	} else {
		logger.Log.Infof("configuration reloaded: grid=%dx%d dash=%d tween=%dms",
			cfg.Grid.Cols, cfg.Grid.Rows, cfg.Movement.DashCells, cfg.Movement.TweenMS)
	}
	if w.OnReload != nil {
		w.OnReload(cfg, err)
	}
}

// reloadThrottle 合并短时间内的多次触发，只执行最后一次
type reloadThrottle struct {
	mu     sync.Mutex
	timer  *time.Timer
	delay  time.Duration
	action func()
}

func newReloadThrottle(delay time.Duration) *reloadThrottle {
	return &reloadThrottle{delay: delay}
}

func (t *reloadThrottle) Trigger(action func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.action = action
	if t.timer == nil {
		t.timer = time.AfterFunc(t.delay, t.fire)
	}
}

func (t *reloadThrottle) fire() {
	t.mu.Lock()
	action := t.action
	t.action = nil
	t.timer = nil
	t.mu.Unlock()
	if action != nil {
		action()
	}
}

func (t *reloadThrottle) Stop() {
	t.mu.Lock()
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	t.mu.Unlock()
}
