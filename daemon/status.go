package daemon

import (
	"time"

	"gridpointer/grid"
	"gridpointer/input"
	"gridpointer/motion"
)

// Status 调度循环对外发布的只读快照
type Status struct {
	State         string     `json:"state"`
	Tweening      bool       `json:"tweening"`
	Position      grid.Cell  `json:"position"`
	Emitted       grid.Point `json:"emitted"`
	Monitor       grid.Size  `json:"monitor"`
	ConfigVersion uint64     `json:"config_version"`
	Tick          int64      `json:"tick"`
	At            time.Time  `json:"at"`
}

// EventType 状态推送事件类型
type EventType string

const (
	EventTweenStart EventType = "tween_start"
	EventTweenEnd   EventType = "tween_end"
	EventClick      EventType = "click"
	EventQuit       EventType = "quit"
	EventConfig     EventType = "config"
)

// Event 推送给订阅者（状态流、预览）的事件
type Event struct {
	Type       EventType          `json:"type"`
	At         time.Time          `json:"at"`
	Transition *motion.Transition `json:"transition,omitempty"`
	Button     string             `json:"button,omitempty"`
	Version    uint64             `json:"version,omitempty"`
}

func clickEvent(at time.Time, b input.Button) Event {
	return Event{Type: EventClick, At: at, Button: b.String()}
}
