package events

import (
	"context"
	"fmt"
	"time"
)

// Event 实时事件
type Event struct {
	Type       string      `json:"type"`
	Channels   []string    `json:"channels"`
	Payload    interface{} `json:"payload"`
	OccurredAt time.Time   `json:"occurred_at"`
}

// Publisher 事件发布接口
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// New 创建事件
func New(eventType string, payload interface{}, channels ...string) Event {
	return Event{
		Type:       eventType,
		Channels:   channels,
		Payload:    payload,
		OccurredAt: time.Now(),
	}
}

// StoreChannel 门店频道
func StoreChannel(storeID uint) string {
	return fmt.Sprintf("store:%d", storeID)
}

// UserChannel 用户频道
func UserChannel(userID uint) string {
	return fmt.Sprintf("user:%d", userID)
}

// CartChannel 购物车频道（拼单成员共享）
func CartChannel(cartID uint) string {
	return fmt.Sprintf("cart:%d", cartID)
}

// NopPublisher 丢弃所有事件
type NopPublisher struct{}

// Publish 实现 Publisher
func (NopPublisher) Publish(context.Context, Event) error {
	return nil
}

// MultiPublisher 依次发布到多个 Publisher，返回第一个错误
type MultiPublisher []Publisher

// Publish 实现 Publisher
func (m MultiPublisher) Publish(ctx context.Context, event Event) error {
	var firstErr error
	for _, p := range m {
		if p == nil {
			continue
		}
		if err := p.Publish(ctx, event); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
