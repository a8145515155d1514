package realtime

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/quickbite/internal/logger"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4 * 1024
)

// ErrChannelForbidden 无权订阅该频道
var ErrChannelForbidden = errors.New("channel subscription forbidden")

// 客户端指令
const (
	ActionSubscribe   = "subscribe"
	ActionUnsubscribe = "unsubscribe"
)

// ClientMessage 客户端发来的订阅指令
type ClientMessage struct {
	Action  string `json:"action"`
	Channel string `json:"channel"`
}

// ServerMessage 服务端对指令的应答
type ServerMessage struct {
	Type    string `json:"type"` // subscribed / unsubscribed / error
	Channel string `json:"channel,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Client 单个 WebSocket 连接
type Client struct {
	hub      *Hub
	conn     *websocket.Conn
	userID   uint
	send     chan []byte
	channels map[string]struct{} // 由 hub.mu 保护
	once     sync.Once
}

func newClient(hub *Hub, conn *websocket.Conn, userID uint, buffer int) *Client {
	return &Client{
		hub:      hub,
		conn:     conn,
		userID:   userID,
		send:     make(chan []byte, buffer),
		channels: make(map[string]struct{}),
	}
}

func (c *Client) closeSend() {
	c.once.Do(func() {
		close(c.send)
	})
}

func (c *Client) readPump() {
	defer func() {
		c.hub.remove(c)
		_ = c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Warnw("realtime_read_failed", "user_id", c.userID, "error", err)
			}
			return
		}
		c.handle(raw)
	}
}

func (c *Client) handle(raw []byte) {
	var msg ClientMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		c.reply(ServerMessage{Type: "error", Error: "invalid message"})
		return
	}
	switch msg.Action {
	case ActionSubscribe:
		if err := c.hub.Subscribe(c, msg.Channel); err != nil {
			if !errors.Is(err, ErrChannelForbidden) {
				logger.Warnw("realtime_subscribe_failed", "user_id", c.userID, "channel", msg.Channel, "error", err)
			}
			c.reply(ServerMessage{Type: "error", Channel: msg.Channel, Error: "forbidden"})
			return
		}
		c.reply(ServerMessage{Type: "subscribed", Channel: msg.Channel})
	case ActionUnsubscribe:
		c.hub.Unsubscribe(c, msg.Channel)
		c.reply(ServerMessage{Type: "unsubscribed", Channel: msg.Channel})
	default:
		c.reply(ServerMessage{Type: "error", Error: "unknown action"})
	}
}

// reply 应答经由发送队列写出，避免与 writePump 并发写
func (c *Client) reply(msg ServerMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	c.hub.mu.RLock()
	defer c.hub.mu.RUnlock()
	if _, ok := c.hub.clients[c]; !ok {
		return
	}
	select {
	case c.send <- data:
	default:
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				logger.Warnw("realtime_write_failed", "user_id", c.userID, "error", err)
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
