package project

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"DMPlayer/logger"

	"github.com/gorilla/websocket"
)

// EventType 项目事件类型
type EventType string

const (
	EventTrackAdded     EventType = "track_added"
	EventTrackDeleted   EventType = "track_deleted"
	EventCueCreated     EventType = "cue_created"
	EventCueUpdated     EventType = "cue_updated"
	EventCueDeleted     EventType = "cue_deleted"
	EventProjectUpdated EventType = "project_updated"
	EventProjectDeleted EventType = "project_deleted"

	EventPing EventType = "ping"
	EventPong EventType = "pong"
)

// Event WebSocket 消息结构
type Event struct {
	Type      EventType       `json:"type"`
	ProjectID string          `json:"projectId,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

const (
	sendBuffer   = 64
	readLimit    = 4096
	pongWait     = 60 * time.Second
	pingInterval = 30 * time.Second
	writeWait    = 10 * time.Second
)

// Client 订阅某个项目事件的 WebSocket 连接
type Client struct {
	hub       *Hub
	conn      *websocket.Conn
	send      chan []byte
	projectID string
}

// NewClient wraps an upgraded connection subscribed to projectID.
func NewClient(hub *Hub, conn *websocket.Conn, projectID string) *Client {
	return &Client{
		hub:       hub,
		conn:      conn,
		send:      make(chan []byte, sendBuffer),
		projectID: projectID,
	}
}

type broadcastMessage struct {
	projectID string
	message   []byte
}

// Hub 项目 WebSocket 管理中心
type Hub struct {
	// 项目 -> 客户端集合
	projects map[string]map[*Client]bool

	register   chan *Client
	unregister chan *Client
	broadcast  chan *broadcastMessage

	mu   sync.RWMutex
	done chan struct{}
	once sync.Once
}

// NewHub 创建 Hub，需调用 Run 启动
func NewHub() *Hub {
	return &Hub{
		projects:   make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *broadcastMessage, 256),
		done:       make(chan struct{}),
	}
}

// Run 启动 Hub 主循环
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.mu.Lock()
			h.removeClient(client)
			h.mu.Unlock()

		case msg := <-h.broadcast:
			h.broadcastToProject(msg)

		case <-h.done:
			h.cleanup()
			return
		}
	}
}

// Stop 停止 Hub
func (h *Hub) Stop() {
	h.once.Do(func() { close(h.done) })
}

func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.projects[client.projectID] == nil {
		h.projects[client.projectID] = make(map[*Client]bool)
	}
	h.projects[client.projectID][client] = true

	logger.Debug("ws client registered",
		logger.String("project", client.projectID),
		logger.Int("clients", len(h.projects[client.projectID])))
}

// removeClient 移除客户端（需要持有锁）
func (h *Hub) removeClient(client *Client) {
	clients, ok := h.projects[client.projectID]
	if !ok {
		return
	}
	if _, ok := clients[client]; !ok {
		return
	}
	delete(clients, client)
	close(client.send)
	if len(clients) == 0 {
		delete(h.projects, client.projectID)
	}
}

func (h *Hub) broadcastToProject(msg *broadcastMessage) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.projects[msg.projectID] {
		select {
		case client.send <- msg.message:
		default:
			// 发送缓冲区满，断开慢客户端
			logger.Warn("ws client too slow, dropping", logger.String("project", msg.projectID))
			h.removeClient(client)
		}
	}
}

func (h *Hub) cleanup() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, clients := range h.projects {
		for client := range clients {
			close(client.send)
		}
	}
	h.projects = make(map[string]map[*Client]bool)
}

// Register 注册客户端
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.done:
		close(client.send)
	}
}

// Unregister 注销客户端
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Publish 向订阅项目的所有客户端广播事件
func (h *Hub) Publish(projectID string, typ EventType, data interface{}) error {
	ev := Event{Type: typ, ProjectID: projectID, Timestamp: time.Now().UnixMilli()}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return err
		}
		ev.Data = raw
	}
	msg, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	select {
	case h.broadcast <- &broadcastMessage{projectID: projectID, message: msg}:
	case <-h.done:
	}
	return nil
}

// ClientCount 获取项目订阅者数量
func (h *Hub) ClientCount(projectID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.projects[projectID])
}

// ReadPump 读取消息循环，只处理心跳
func (c *Client) ReadPump(ctx context.Context) {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(readLimit)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if ctx.Err() != nil {
			return
		}
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Warn("websocket read error",
					logger.ErrorField(err),
					logger.String("project", c.projectID))
			}
			return
		}

		var ev Event
		if err := json.Unmarshal(message, &ev); err != nil || ev.Type != EventPing {
			continue
		}
		pong, _ := json.Marshal(Event{Type: EventPong, Timestamp: time.Now().UnixMilli()})
		c.hub.mu.RLock()
		if c.hub.projects[c.projectID][c] {
			select {
			case c.send <- pong:
			default:
			}
		}
		c.hub.mu.RUnlock()
	}
}

// WritePump 写入消息循环
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub 关闭了通道
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
