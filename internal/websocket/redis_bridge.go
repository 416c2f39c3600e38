package websocket

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"storefront-chat/internal/redis"
	"storefront-chat/pkg/logger"
)

// RedisPusher publishes room pushes to Redis so every relay instance can
// deliver them.
type RedisPusher struct {
	publisher *redis.Publisher
}

func NewRedisPusher(publisher *redis.Publisher) *RedisPusher {
	return &RedisPusher{publisher: publisher}
}

func (p *RedisPusher) Push(ctx context.Context, room string, frame []byte) error {
	return p.publisher.Publish(ctx, redis.RoomChannel(room), frame)
}

// RedisBridge delivers room pushes published on Redis into the local hub.
type RedisBridge struct {
	subscriber *redis.Subscriber
	hub        *Hub
	logger     *logger.Logger
}

func NewRedisBridge(subscriber *redis.Subscriber, hub *Hub, l *logger.Logger) *RedisBridge {
	if l == nil {
		l = logger.NewNop()
	}
	return &RedisBridge{subscriber: subscriber, hub: hub, logger: l.Named("redis_bridge")}
}

// Run blocks until ctx ends or the subscription fails.
func (b *RedisBridge) Run(ctx context.Context) error {
	return b.subscriber.Subscribe(ctx, []string{redis.RoomChannelPrefix + "*"}, func(channel string, payload []byte) {
		room := roomKey(channel)
		if room == "" {
			return
		}
		n := b.hub.Broadcast(room, payload)
		b.logger.Debug("fanout delivered", zap.String("room", room), zap.Int("clients", n))
	})
}

func roomKey(channel string) string {
	return strings.TrimPrefix(channel, redis.RoomChannelPrefix)
}
