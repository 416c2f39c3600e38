package session

import (
	"context"

	chatredis "storefront-chat/internal/redis"
)

// RedisStore keeps values under session:<profile>:<key> with a sliding TTL.
type RedisStore struct {
	cache   *chatredis.CacheStore
	profile string
}

func NewRedisStore(cache *chatredis.CacheStore, profile string) *RedisStore {
	return &RedisStore{cache: cache, profile: profile}
}

func (s *RedisStore) key(k string) string {
	return "session:" + s.profile + ":" + k
}

func (s *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	v, ok, err := s.cache.Get(ctx, s.key(key))
	if err != nil || !ok {
		return "", false, err
	}
	if err := s.cache.Refresh(ctx, s.key(key)); err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (s *RedisStore) Set(ctx context.Context, key, value string) error {
	return s.cache.Set(ctx, s.key(key), value)
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	return s.cache.Delete(ctx, s.key(key))
}

func (s *RedisStore) Clear(ctx context.Context) error {
	return s.cache.DeletePattern(ctx, "session:"+s.profile+":*")
}
