package session

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"storefront-chat/internal/domain"
	chat_errors "storefront-chat/pkg/errors"
	"storefront-chat/pkg/logger"
)

const (
	userKey  = "user"
	tokenKey = "token"
)

// Manager loads and saves the signed-in session.
type Manager struct {
	store Store
	log   *logger.Logger
}

func NewManager(store Store, l *logger.Logger) *Manager {
	if l == nil {
		l = logger.NewNop()
	}
	return &Manager{store: store, log: l.Named("session")}
}

// Load returns the stored session. A missing, "undefined", malformed or
// invalid user record yields ErrNoSession and is removed.
func (m *Manager) Load(ctx context.Context) (domain.Session, error) {
	raw, ok, err := m.store.Get(ctx, userKey)
	if err != nil {
		return domain.Session{}, fmt.Errorf("read session: %w", err)
	}
	if !ok || raw == "" || raw == "undefined" || raw == "null" {
		if ok {
			m.discard(ctx, "empty user record")
		}
		return domain.Session{}, chat_errors.ErrNoSession
	}

	var user domain.User
	if err := json.Unmarshal([]byte(raw), &user); err != nil {
		m.discard(ctx, "malformed user record")
		return domain.Session{}, chat_errors.ErrNoSession
	}
	if err := user.Validate(); err != nil {
		m.discard(ctx, err.Error())
		return domain.Session{}, chat_errors.ErrNoSession
	}

	token, _, err := m.store.Get(ctx, tokenKey)
	if err != nil {
		return domain.Session{}, fmt.Errorf("read token: %w", err)
	}
	return domain.Session{User: user, Token: token}, nil
}

func (m *Manager) Save(ctx context.Context, s domain.Session) error {
	if err := s.Validate(); err != nil {
		return err
	}
	data, err := json.Marshal(s.User)
	if err != nil {
		return err
	}
	if err := m.store.Set(ctx, userKey, string(data)); err != nil {
		return fmt.Errorf("save user: %w", err)
	}
	if err := m.store.Set(ctx, tokenKey, s.Token); err != nil {
		return fmt.Errorf("save token: %w", err)
	}
	return nil
}

// Clear removes the session (logout).
func (m *Manager) Clear(ctx context.Context) error {
	return m.store.Clear(ctx)
}

func (m *Manager) discard(ctx context.Context, reason string) {
	m.log.Warn("discarding stored session", zap.String("reason", reason))
	if err := m.store.Delete(ctx, userKey); err != nil {
		m.log.Warn("failed to remove stored session", zap.Error(err))
	}
}
