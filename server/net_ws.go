package server

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"gridpointer/daemon"
	"gridpointer/fault"
	"gridpointer/logger"
)

// ClientConn 负责发送（写）数据到客户端的轻量包装
type ClientConn struct {
	ws   *websocket.Conn
	send chan []byte

	closeOnce sync.Once
	done      chan struct{}
}

func NewClientConn(ws *websocket.Conn) *ClientConn {
	return &ClientConn{
		ws:   ws,
		send: make(chan []byte, 64),
		done: make(chan struct{}),
	}
}

// Enqueue 将要发送的消息压入队列（非阻塞，满则丢弃）
func (c *ClientConn) Enqueue(b []byte) {
	select {
	case <-c.done:
		return
	default:
	}
	select {
	case c.send <- b:
	default:
		// 为了实时性，丢弃消息（防止阻塞 Tick）
	}
}

// Close 结束写协程并关闭底层连接
func (c *ClientConn) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.ws.Close()
	})
}

// writePump 独立协程，负责从 send 队列写出到 WS
func (c *ClientConn) writePump() {
	defer c.Close()
	ping := time.NewTicker(30 * time.Second)
	defer ping.Stop()
	for {
		select {
		case <-c.done:
			return
		case msg := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := c.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ping.C:
			c.ws.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump 只处理控制帧；状态流是只读的，客户端消息一律忽略
func (c *ClientConn) readPump(onClose func()) {
	defer onClose()
	defer c.Close()
	c.ws.SetReadLimit(4 << 10)
	c.ws.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.ws.SetPongHandler(func(string) error { c.ws.SetReadDeadline(time.Now().Add(60 * time.Second)); return nil })
	for {
		if _, _, err := c.ws.ReadMessage(); err != nil {
			return
		}
	}
}

// Hub 管理所有状态流连接
type Hub struct {
	mu      sync.RWMutex
	clients map[*ClientConn]struct{}
}

func NewHub() *Hub {
	return &Hub{clients: make(map[*ClientConn]struct{})}
}

func (h *Hub) add(c *ClientConn) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
}

func (h *Hub) remove(c *ClientConn) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
}

// Count 当前连接数
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast 序列化一次后推送给所有连接（非阻塞）
func (h *Hub) Broadcast(v any) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if len(h.clients) == 0 {
		return
	}
	b, err := json.Marshal(v)
	if err != nil {
		logger.Log.Warnf("status stream marshal: %v", err)
		return
	}
	for c := range h.clients {
		c.Enqueue(b)
	}
}

// CloseAll 关闭全部连接
func (h *Hub) CloseAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		c.Close()
		delete(h.clients, c)
	}
}

// StreamMessage 状态流消息
type StreamMessage struct {
	Type   string         `json:"type"` // status | event | fault
	Status *daemon.Status `json:"status,omitempty"`
	Event  *daemon.Event  `json:"event,omitempty"`
	Fault  *FaultMessage  `json:"fault,omitempty"`
}

// FaultMessage 非致命错误上报
type FaultMessage struct {
	At    time.Time `json:"at"`
	Kind  string    `json:"kind"`
	Error string    `json:"error"`
}

// PublishEvent 调度器事件回调（在 Tick 线程执行，不阻塞）
func (h *Hub) PublishEvent(ev daemon.Event) {
	h.Broadcast(StreamMessage{Type: "event", Event: &ev})
}

// PublishFault 错误上报回调
func (h *Hub) PublishFault(r fault.Report) {
	h.Broadcast(StreamMessage{Type: "fault", Fault: &FaultMessage{At: r.At, Kind: r.Kind.String(), Error: r.Err.Error()}})
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// 只监听回环地址，允许本机任意来源
		return true
	},
}

// HandleWS 状态流接入：连接后先推送一次当前状态，之后推送事件与错误上报
func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Log.Warnf("upgrade error: %v", err)
		return
	}
	client := NewClientConn(ws)
	if s.status != nil {
		st := s.status()
		if b, err := json.Marshal(StreamMessage{Type: "status", Status: &st}); err == nil {
			client.Enqueue(b)
		}
	}
	s.hub.add(client)

	go client.writePump()
	go client.readPump(func() { s.hub.remove(client) })
}
