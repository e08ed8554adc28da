package server

import (
	"encoding/json"
	"net/http"
	"time"

	"gridpointer/config"
	"gridpointer/fault"
	"gridpointer/logger"
)

// configPatch 可热更新的字段；只修改出现的字段
type configPatch struct {
	Cols          *int     `json:"cols,omitempty"`
	Rows          *int     `json:"rows,omitempty"`
	DashCells     *int     `json:"dash_cells,omitempty"`
	TweenMS       *int     `json:"tween_ms,omitempty"`
	AnalogCells   *int     `json:"analog_cells,omitempty"`
	AnalogTweenMS *int     `json:"analog_tween_ms,omitempty"`
	DeadZone      *float64 `json:"dead_zone,omitempty"`
	Width         *int     `json:"width,omitempty"`
	Height        *int     `json:"height,omitempty"`
}

func (p configPatch) apply(c *config.Config) {
	setInt := func(dst *int, v *int) {
		if v != nil {
			*dst = *v
		}
	}
	setInt(&c.Grid.Cols, p.Cols)
	setInt(&c.Grid.Rows, p.Rows)
	setInt(&c.Movement.DashCells, p.DashCells)
	setInt(&c.Movement.TweenMS, p.TweenMS)
	setInt(&c.Movement.AnalogCells, p.AnalogCells)
	setInt(&c.Movement.AnalogTweenMS, p.AnalogTweenMS)
	setInt(&c.Display.Width, p.Width)
	setInt(&c.Display.Height, p.Height)
	if p.DeadZone != nil {
		c.Input.DeadZone = *p.DeadZone
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// HandleAdminConfig 提供配置的读取与热更新
// GET  /admin/config  返回当前快照与版本
// POST /admin/config  以 JSON 载荷更新部分字段；校验失败时保留旧配置并返回 422
func (s *Server) HandleAdminConfig(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, map[string]any{
			"version": s.store.Version(),
			"config":  s.store.Current(),
		})
	case http.MethodPost:
		var body configPatch
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&body); err != nil {
			http.Error(w, "invalid json: "+err.Error(), http.StatusBadRequest)
			return
		}
		next, err := s.store.Update(func(c *config.Config) {
			body.apply(c)
			c.Source = "admin"
		})
		if err != nil {
			logger.Log.Warnf("admin config update rejected: %v", err)
			s.reporter.Report(err)
			writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"ok": false, "error": err.Error()})
			return
		}
		logger.Log.Infof("config updated via admin: v%d grid=%dx%d dash=%d tween=%dms",
			s.store.Version(), next.Grid.Cols, next.Grid.Rows, next.Movement.DashCells, next.Movement.TweenMS)
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "version": s.store.Version(), "config": next})
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// HandleMetrics 输出调度器、输出端与错误上报的运行指标
// GET /metrics
func (s *Server) HandleMetrics(w http.ResponseWriter, r *http.Request) {
	merged := make(map[string]any)
	for _, fn := range s.metrics {
		for k, v := range fn() {
			merged[k] = v
		}
	}
	faults := map[string]int64{
		"dropped": s.reporter.Dropped(),
	}
	for _, k := range []fault.Kind{fault.KindDeviceUnavailable, fault.KindConfigInvalid, fault.KindSinkUnreachable} {
		faults[k.String()] = s.reporter.Count(k)
	}
	payload := map[string]any{
		"uptime_s":       time.Since(s.started).Seconds(),
		"config_version": s.store.Version(),
		"metrics":        merged,
		"faults":         faults,
		"ws_clients":     s.hub.Count(),
	}
	if s.status != nil {
		payload["status"] = s.status()
	}
	writeJSON(w, http.StatusOK, payload)
}
