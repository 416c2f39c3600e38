package redis

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// RoomChannelPrefix namespaces relay fan-out channels; one channel per room.
const RoomChannelPrefix = "chat:room:"

func RoomChannel(room string) string {
	return RoomChannelPrefix + room
}

type Publisher struct {
	client *redis.Client
}

func NewPublisher(client *redis.Client) *Publisher {
	return &Publisher{client: client}
}

func (p *Publisher) Publish(ctx context.Context, channel string, payload []byte) error {
	return p.client.Publish(ctx, channel, payload).Err()
}
