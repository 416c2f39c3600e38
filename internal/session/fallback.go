package session

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"storefront-chat/pkg/logger"
)

// FallbackStore uses primary until it fails once, then serves every call
// from memory for the rest of the process.
type FallbackStore struct {
	primary  Store
	memory   *MemoryStore
	log      *logger.Logger
	mu       sync.RWMutex
	degraded bool
}

func NewFallbackStore(primary Store, l *logger.Logger) *FallbackStore {
	if l == nil {
		l = logger.NewNop()
	}
	return &FallbackStore{primary: primary, memory: NewMemoryStore(), log: l.Named("session")}
}

// Degraded reports whether the store switched to memory.
func (s *FallbackStore) Degraded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.degraded
}

func (s *FallbackStore) active() Store {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.degraded {
		return s.memory
	}
	return s.primary
}

func (s *FallbackStore) degrade(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.degraded {
		return
	}
	s.degraded = true
	s.log.Warn("session storage unavailable, using memory", zap.String("op", op), zap.Error(err))
}

func (s *FallbackStore) Get(ctx context.Context, key string) (string, bool, error) {
	v, ok, err := s.active().Get(ctx, key)
	if err != nil {
		s.degrade("get", err)
		return s.memory.Get(ctx, key)
	}
	return v, ok, nil
}

func (s *FallbackStore) Set(ctx context.Context, key, value string) error {
	if err := s.active().Set(ctx, key, value); err != nil {
		s.degrade("set", err)
		return s.memory.Set(ctx, key, value)
	}
	return nil
}

func (s *FallbackStore) Delete(ctx context.Context, key string) error {
	if err := s.active().Delete(ctx, key); err != nil {
		s.degrade("delete", err)
		return s.memory.Delete(ctx, key)
	}
	return nil
}

func (s *FallbackStore) Clear(ctx context.Context) error {
	if err := s.active().Clear(ctx); err != nil {
		s.degrade("clear", err)
		return s.memory.Clear(ctx)
	}
	return nil
}
