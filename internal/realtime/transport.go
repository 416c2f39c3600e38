package realtime

import (
	"context"
	"sort"
	"sync"

	"storefront-chat/internal/domain"
)

// Handler receives every decoded receive-message event. Handlers run on the
// connection's read goroutine and must not block.
type Handler func(domain.Message)

type HandlerID uint64

// Transport is the realtime surface the chat module depends on.
type Transport interface {
	JoinRoom(ctx context.Context, userID string, role domain.Role) error
	Send(ctx context.Context, msg domain.OutgoingMessage) error
	OnReceive(h Handler) HandlerID
	OffReceive(id HandlerID)
}

// handlerSet is a registry of receive handlers keyed by subscription id.
type handlerSet struct {
	mu       sync.RWMutex
	next     HandlerID
	handlers map[HandlerID]Handler
}

func newHandlerSet() *handlerSet {
	return &handlerSet{handlers: make(map[HandlerID]Handler)}
}

func (s *handlerSet) add(h Handler) HandlerID {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next++
	s.handlers[s.next] = h
	return s.next
}

func (s *handlerSet) remove(id HandlerID) {
	s.mu.Lock()
	delete(s.handlers, id)
	s.mu.Unlock()
}

func (s *handlerSet) len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.handlers)
}

// dispatch calls handlers in subscription order, outside the lock so a
// handler may unsubscribe itself.
func (s *handlerSet) dispatch(msg domain.Message) {
	s.mu.RLock()
	ids := make([]HandlerID, 0, len(s.handlers))
	for id := range s.handlers {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	hs := make([]Handler, 0, len(ids))
	for _, id := range ids {
		hs = append(hs, s.handlers[id])
	}
	s.mu.RUnlock()

	for _, h := range hs {
		h(msg)
	}
}
