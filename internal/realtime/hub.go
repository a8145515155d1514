package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"

	"github.com/quickbite/internal/events"
	"github.com/quickbite/internal/logger"

	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
)

// Authorizer 频道订阅鉴权
type Authorizer interface {
	Allow(userID uint, channel string) (bool, error)
}

// Options Hub 选项
type Options struct {
	AllowedOrigins []string
	SendBufferSize int
	// Subscriber 非空时通过 Redis PSubscribe 接收其他进程发布的事件
	Subscriber *events.RedisPublisher
	Redis      *redis.Client
}

type delivery struct {
	channel string
	data    []byte
}

// Hub 管理 WebSocket 连接与频道订阅，同时作为本进程的事件投递端
type Hub struct {
	name       string
	authorizer Authorizer
	upgrader   websocket.Upgrader
	sendBuffer int
	subscriber *events.RedisPublisher
	redis      *redis.Client

	mu       sync.RWMutex
	clients  map[*Client]struct{}
	channels map[string]map[*Client]struct{}

	broadcast chan delivery
	done      chan struct{}
	stopOnce  sync.Once
}

// NewHub 创建 Hub
func NewHub(authorizer Authorizer, opts Options) *Hub {
	buffer := opts.SendBufferSize
	if buffer <= 0 {
		buffer = 256
	}
	h := &Hub{
		name:       "realtime",
		authorizer: authorizer,
		sendBuffer: buffer,
		subscriber: opts.Subscriber,
		redis:      opts.Redis,
		clients:    make(map[*Client]struct{}),
		channels:   make(map[string]map[*Client]struct{}),
		broadcast:  make(chan delivery, 1024),
		done:       make(chan struct{}),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(opts.AllowedOrigins),
	}
	return h
}

func originChecker(allowed []string) func(r *http.Request) bool {
	set := make(map[string]bool, len(allowed))
	for _, origin := range allowed {
		origin = strings.TrimSpace(origin)
		if origin == "*" {
			return func(*http.Request) bool { return true }
		}
		if origin != "" {
			set[origin] = true
		}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		// 非浏览器客户端不带 Origin
		return origin == "" || set[origin]
	}
}

// Name 服务名称
func (h *Hub) Name() string {
	return h.name
}

// Start 运行投递循环，启用 Redis 时同时订阅跨进程事件
func (h *Hub) Start(ctx context.Context) error {
	if h.subscriber != nil && h.redis != nil {
		go h.consumeRedis(ctx)
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-h.done:
			return nil
		case msg := <-h.broadcast:
			h.deliver(msg)
		}
	}
}

// Stop 关闭全部连接
func (h *Hub) Stop(context.Context) error {
	h.stopOnce.Do(func() {
		close(h.done)
		h.mu.Lock()
		for client := range h.clients {
			client.closeSend()
			delete(h.clients, client)
		}
		h.channels = make(map[string]map[*Client]struct{})
		h.mu.Unlock()
	})
	return nil
}

// Publish 实现 events.Publisher，投递给本进程内的订阅者
func (h *Hub) Publish(_ context.Context, event events.Event) error {
	for _, channel := range event.Channels {
		single := event
		single.Channels = []string{channel}
		data, err := json.Marshal(single)
		if err != nil {
			return err
		}
		h.enqueue(delivery{channel: channel, data: data})
	}
	return nil
}

func (h *Hub) enqueue(msg delivery) {
	select {
	case h.broadcast <- msg:
	default:
		logger.Warnw("realtime_broadcast_dropped", "channel", msg.channel)
	}
}

// ServeWS 升级连接并自动订阅用户频道
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, userID uint) error {
	if userID == 0 {
		return errors.New("user id is required")
	}
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	client := newClient(h, conn, userID, h.sendBuffer)
	h.mu.Lock()
	h.clients[client] = struct{}{}
	h.mu.Unlock()
	h.subscribe(client, events.UserChannel(userID))
	logger.Debugw("realtime_client_registered", "user_id", userID)
	go client.writePump()
	go client.readPump()
	return nil
}

// Subscribe 鉴权后订阅频道
func (h *Hub) Subscribe(client *Client, channel string) error {
	channel = strings.TrimSpace(channel)
	if channel == "" {
		return ErrChannelForbidden
	}
	if h.authorizer == nil {
		return ErrChannelForbidden
	}
	ok, err := h.authorizer.Allow(client.userID, channel)
	if err != nil {
		return err
	}
	if !ok {
		return ErrChannelForbidden
	}
	h.subscribe(client, channel)
	return nil
}

// Unsubscribe 取消订阅
func (h *Hub) Unsubscribe(client *Client, channel string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if members, ok := h.channels[channel]; ok {
		delete(members, client)
		if len(members) == 0 {
			delete(h.channels, channel)
		}
	}
	delete(client.channels, channel)
}

// Subscribers 频道当前的连接数
func (h *Hub) Subscribers(channel string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.channels[channel])
}

func (h *Hub) subscribe(client *Client, channel string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	members, ok := h.channels[channel]
	if !ok {
		members = make(map[*Client]struct{})
		h.channels[channel] = members
	}
	members[client] = struct{}{}
	client.channels[channel] = struct{}{}
}

func (h *Hub) remove(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[client]; !ok {
		return
	}
	delete(h.clients, client)
	for channel := range client.channels {
		if members, ok := h.channels[channel]; ok {
			delete(members, client)
			if len(members) == 0 {
				delete(h.channels, channel)
			}
		}
	}
	client.closeSend()
	logger.Debugw("realtime_client_unregistered", "user_id", client.userID)
}

func (h *Hub) deliver(msg delivery) {
	h.mu.RLock()
	var slow []*Client
	for client := range h.channels[msg.channel] {
		select {
		case client.send <- msg.data:
		default:
			slow = append(slow, client)
		}
	}
	h.mu.RUnlock()
	for _, client := range slow {
		logger.Warnw("realtime_client_send_buffer_full", "user_id", client.userID, "channel", msg.channel)
		h.remove(client)
	}
}

// consumeRedis 订阅 Redis 主题并投递到本地连接（go-redis 内部负责断线重连）
func (h *Hub) consumeRedis(ctx context.Context) {
	pubsub := h.redis.PSubscribe(ctx, h.subscriber.Pattern())
	go func() {
		select {
		case <-ctx.Done():
		case <-h.done:
		}
		_ = pubsub.Close()
	}()
	logger.Infow("realtime_redis_subscribed", "pattern", h.subscriber.Pattern())
	for msg := range pubsub.Channel() {
		h.enqueue(delivery{channel: h.subscriber.ChannelOf(msg.Channel), data: []byte(msg.Payload)})
	}
}
