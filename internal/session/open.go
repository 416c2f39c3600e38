package session

import (
	"context"
	"fmt"

	"storefront-chat/config"
	chatredis "storefront-chat/internal/redis"
	"storefront-chat/pkg/logger"
)

const (
	BackendFile   = "file"
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// OpenStore builds the store selected by cfg.SessionBackend. The returned
// closer releases any connection the store holds.
func OpenStore(ctx context.Context, cfg *config.Config, l *logger.Logger) (Store, func(), error) {
	noop := func() {}
	switch cfg.SessionBackend {
	case BackendMemory:
		return NewMemoryStore(), noop, nil
	case BackendRedis:
		client, err := chatredis.Connect(ctx, chatredis.Config{
			Host:     cfg.RedisHost,
			Port:     cfg.RedisPort,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			return nil, noop, err
		}
		store := NewRedisStore(chatredis.NewCacheStore(client, cfg.SessionTTL), cfg.SessionProfile)
		return NewFallbackStore(store, l), func() { client.Close() }, nil
	case BackendFile, "":
		return NewFallbackStore(NewFileStore(cfg.SessionDir, cfg.SessionProfile), l), noop, nil
	default:
		return nil, noop, fmt.Errorf("unknown session backend %q", cfg.SessionBackend)
	}
}
