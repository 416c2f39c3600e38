package repository

import (
	"context"
	"sort"
	"sync"

	"storefront-chat/internal/domain"
	chat_errors "storefront-chat/pkg/errors"
)

// MemoryStore keeps users and messages in process memory.
type MemoryStore struct {
	mu       sync.RWMutex
	users    map[string]domain.User
	messages []domain.Message
	byClient map[string]int
}

func NewMemoryStore(users []domain.User) *MemoryStore {
	s := &MemoryStore{
		users:    make(map[string]domain.User, len(users)),
		byClient: make(map[string]int),
	}
	for _, u := range users {
		s.users[u.ID] = u
	}
	return s
}

func clientKey(senderID, clientMessageID string) string {
	return senderID + "\x00" + clientMessageID
}

func (s *MemoryStore) GetUserByID(_ context.Context, id string) (domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return domain.User{}, chat_errors.ErrNotFound
	}
	return u, nil
}

func (s *MemoryStore) ListUsersByRole(_ context.Context, role domain.Role) ([]domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	users := []domain.User{}
	for _, u := range s.users {
		if u.Role == role {
			users = append(users, u)
		}
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Name < users[j].Name })
	return users, nil
}

func (s *MemoryStore) Create(_ context.Context, m domain.Message) (domain.Message, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m.ClientMessageID != "" {
		if i, ok := s.byClient[clientKey(m.SenderID, m.ClientMessageID)]; ok {
			return s.messages[i], false, nil
		}
	}
	for _, existing := range s.messages {
		if existing.ID == m.ID {
			return domain.Message{}, false, chat_errors.ErrAlreadyExists
		}
	}
	m.State = domain.DeliveryStateSent
	s.messages = append(s.messages, m)
	if m.ClientMessageID != "" {
		s.byClient[clientKey(m.SenderID, m.ClientMessageID)] = len(s.messages) - 1
	}
	return m, true, nil
}

func (s *MemoryStore) GetConversation(_ context.Context, a, b string) ([]domain.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []domain.Message{}
	for _, m := range s.messages {
		if m.Between(a, b) || m.Between(b, a) {
			out = append(out, m)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryStore) Ping(context.Context) error { return nil }

func (s *MemoryStore) Close() {}
