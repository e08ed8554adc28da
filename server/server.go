// Package server 本机管理与状态接口：指标、配置热更新、健康检查与状态推送。
// 只监听回环地址，不接受任何输入意图
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"gridpointer/config"
	"gridpointer/daemon"
	"gridpointer/fault"
	"gridpointer/logger"
)

// Options 管理接口依赖
type Options struct {
	Store    *config.Store
	Reporter *fault.Reporter
	Status   func() daemon.Status
	// Metrics 各组件的指标快照，按顺序合并输出
	Metrics []func() map[string]any
}

// Server 管理接口
type Server struct {
	store    *config.Store
	reporter *fault.Reporter
	status   func() daemon.Status
	metrics  []func() map[string]any
	hub      *Hub
	started  time.Time
}

func New(opts Options) *Server {
	return &Server{
		store:    opts.Store,
		reporter: opts.Reporter,
		status:   opts.Status,
		metrics:  opts.Metrics,
		hub:      NewHub(),
		started:  time.Now(),
	}
}

// Hub 状态推送中心，供调度器与错误上报订阅
func (s *Server) Hub() *Hub { return s.hub }

// Handler 路由
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.HandleWS)
	mux.HandleFunc("/admin/config", s.HandleAdminConfig)
	mux.HandleFunc("/metrics", s.HandleMetrics)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}

// CheckLoopback 只允许回环地址（127.0.0.0/8、::1、localhost）
func CheckLoopback(addr string) error {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Errorf("admin address %q: %w", addr, err)
	}
	if strings.EqualFold(host, "localhost") {
		return nil
	}
	if ip := net.ParseIP(host); ip != nil && ip.IsLoopback() {
		return nil
	}
	return fmt.Errorf("admin address %q is not a loopback address", addr)
}

// ListenAndServe 阻塞直到 ctx 结束；ctx 结束后优雅关闭
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	if err := CheckLoopback(addr); err != nil {
		return err
	}
	srv := &http.Server{Addr: addr, Handler: s.Handler(), ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		logger.Log.Infof("admin server listening on http://%s/", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	s.hub.CloseAll()
	return srv.Shutdown(shutdownCtx)
}
