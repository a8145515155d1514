package events

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/redis/go-redis/v9"
)

// RedisPublisher 通过 Redis PubSub 跨进程广播事件
type RedisPublisher struct {
	client *redis.Client
	prefix string
}

// NewRedisPublisher 创建 Redis 发布器
func NewRedisPublisher(client *redis.Client, prefix string) *RedisPublisher {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = "qb:events"
	}
	return &RedisPublisher{client: client, prefix: prefix}
}

// Pattern 订阅全部频道的匹配模式
func (p *RedisPublisher) Pattern() string {
	return p.prefix + ":*"
}

// Topic 频道对应的 Redis 主题
func (p *RedisPublisher) Topic(channel string) string {
	return p.prefix + ":" + channel
}

// ChannelOf 从 Redis 主题解析频道
func (p *RedisPublisher) ChannelOf(topic string) string {
	return strings.TrimPrefix(topic, p.prefix+":")
}

// Publish 实现 Publisher，每个频道发布一次
func (p *RedisPublisher) Publish(ctx context.Context, event Event) error {
	if p == nil || p.client == nil {
		return nil
	}
	for _, channel := range event.Channels {
		single := event
		single.Channels = []string{channel}
		payload, err := json.Marshal(single)
		if err != nil {
			return err
		}
		if err := p.client.Publish(ctx, p.Topic(channel), payload).Err(); err != nil {
			return err
		}
	}
	return nil
}
