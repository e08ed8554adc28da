package commands

import (
	"context"
	"errors"
	"sync"

	"gridpointer/config"
	"gridpointer/daemon"
	"gridpointer/display"
	"gridpointer/fault"
	"gridpointer/input"
	"gridpointer/logger"
	"gridpointer/server"
	"gridpointer/sink"
	"gridpointer/telemetry"
)

// engine 把配置、输入、调度器、输出端与管理接口组装在一起
type engine struct {
	store    *config.Store
	reporter *fault.Reporter
	tracer   *telemetry.Tracer

	out       *sink.Async
	daemon    *daemon.Daemon
	manager   *input.Manager
	watcher   *config.Watcher
	admin     *server.Server
	adminAddr string
}

// newEngine 创建配置快照、错误上报与追踪；configPath 为空时不监听配置文件
func newEngine(ctx context.Context, cfg *config.Config, configPath string) (*engine, error) {
	store, err := config.NewStore(cfg)
	if err != nil {
		return nil, fault.Fatal("config", err)
	}
	tracer, err := telemetry.New(ctx)
	if err != nil {
		logger.Log.Warnf("tracing disabled: %v", err)
		tracer = nil
	}
	e := &engine{
		store:    store,
		reporter: fault.NewReporter(256),
		tracer:   tracer,
	}
	e.reporter.Subscribe(func(r fault.Report) {
		logger.Log.Debugf("reported %s: %v", r.Kind, r.Err)
	})
	if configPath != "" {
		e.watcher = &config.Watcher{Path: configPath, Store: store, Reporter: e.reporter}
	}
	return e, nil
}

// attach 接入输出端与输入设备，创建调度器；adminAddr 非空时启用管理接口
func (e *engine) attach(out sink.Sink, sinkName string, devices []input.Device, monitor display.Resolution, adminAddr string) {
	e.out = sink.NewAsync(out, sink.DefaultQueueSize, e.reporter, sinkName)
	e.daemon = daemon.New(daemon.Options{
		Store:             e.store,
		Sink:              e.out,
		Monitor:           monitor.Size,
		MonitorFromConfig: monitor.Source == "config",
		Reporter:          e.reporter,
		Tracer:            e.tracer,
	})
	e.manager = &input.Manager{
		Devices:  devices,
		Offer:    e.daemon.OnIntent,
		Settings: e.store,
		Reporter: e.reporter,
	}
	if adminAddr != "" {
		e.adminAddr = adminAddr
		e.admin = server.New(server.Options{
			Store:    e.store,
			Reporter: e.reporter,
			Status:   e.daemon.Status,
			Metrics:  []func() map[string]any{e.daemon.Metrics().Snapshot, e.out.Snapshot},
		})
		e.daemon.Subscribe(e.admin.Hub().PublishEvent)
		e.reporter.Subscribe(e.admin.Hub().PublishFault)
	}
}

// run 阻塞直到收到 Quit 或 ctx 结束；之后停止所有生产者、监听与输出协程
func (e *engine) run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	spawn := func(fn func()) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fn()
		}()
	}

	spawn(func() { e.reporter.Run(ctx.Done()) })
	spawn(func() { e.manager.Run(ctx) })
	if e.watcher != nil {
		spawn(func() {
			if err := e.watcher.Run(ctx); err != nil {
				logger.Log.Warnf("config watcher stopped: %v", err)
			}
		})
	}
	if e.admin != nil {
		spawn(func() {
			if err := e.admin.ListenAndServe(ctx, e.adminAddr); err != nil {
				logger.Log.Errorf("admin server: %v", err)
			}
		})
	}

	err := e.daemon.Run(ctx)
	cancel()
	wg.Wait()

	if cerr := e.out.Close(); cerr != nil {
		logger.Log.Warnf("close output: %v", cerr)
	}
	if serr := e.tracer.Shutdown(context.Background()); serr != nil {
		logger.Log.Warnf("tracer shutdown: %v", serr)
	}
	logger.Log.Infof("stopped: %v", e.daemon.Metrics().Snapshot())
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
