package chat

import (
	"context"
	"strconv"
	"sync"
	"time"

	"storefront-chat/internal/domain"
	"storefront-chat/internal/realtime"
)

type fakeTransport struct {
	mu       sync.Mutex
	next     realtime.HandlerID
	handlers map[realtime.HandlerID]realtime.Handler
	joins    []domain.Participant
	sent     []domain.OutgoingMessage
	sendErr  error
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{handlers: make(map[realtime.HandlerID]realtime.Handler)}
}

func (t *fakeTransport) JoinRoom(_ context.Context, userID string, role domain.Role) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.joins = append(t.joins, domain.Participant{UserID: userID, Role: role})
	return nil
}

func (t *fakeTransport) Send(_ context.Context, msg domain.OutgoingMessage) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sent = append(t.sent, msg)
	return t.sendErr
}

func (t *fakeTransport) OnReceive(h realtime.Handler) realtime.HandlerID {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.next++
	t.handlers[t.next] = h
	return t.next
}

func (t *fakeTransport) OffReceive(id realtime.HandlerID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.handlers, id)
}

func (t *fakeTransport) deliver(m domain.Message) {
	t.mu.Lock()
	hs := make([]realtime.Handler, 0, len(t.handlers))
	for _, h := range t.handlers {
		hs = append(hs, h)
	}
	t.mu.Unlock()
	for _, h := range hs {
		h(m)
	}
}

func (t *fakeTransport) handlerCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.handlers)
}

func (t *fakeTransport) sentCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.sent)
}

func (t *fakeTransport) joined() []domain.Participant {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]domain.Participant, len(t.joins))
	copy(out, t.joins)
	return out
}

// fakeBackend serves canned contacts and history. A gate registered for a
// contact holds that contact's history response until it is closed.
type fakeBackend struct {
	mu          sync.Mutex
	contacts    map[domain.Role][]domain.Contact
	contactErr  error
	history     map[string][]domain.Message
	historyErr  error
	gates       map[string]chan struct{}
	persistErr  error
	persistGate chan struct{}
	persisted   []domain.OutgoingMessage
	seq         int
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		contacts: make(map[domain.Role][]domain.Contact),
		history:  make(map[string][]domain.Message),
		gates:    make(map[string]chan struct{}),
	}
}

func (b *fakeBackend) FetchContacts(_ context.Context, role domain.Role) ([]domain.Contact, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.contactErr != nil {
		return nil, b.contactErr
	}
	return b.contacts[role], nil
}

func (b *fakeBackend) FetchHistory(ctx context.Context, _, contactID string) ([]domain.Message, error) {
	b.mu.Lock()
	gate := b.gates[contactID]
	b.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.historyErr != nil {
		return nil, b.historyErr
	}
	out := make([]domain.Message, len(b.history[contactID]))
	copy(out, b.history[contactID])
	return out, nil
}

func (b *fakeBackend) SendMessage(ctx context.Context, out domain.OutgoingMessage) (domain.Message, error) {
	b.mu.Lock()
	gate := b.persistGate
	b.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return domain.Message{}, ctx.Err()
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.persisted = append(b.persisted, out)
	if b.persistErr != nil {
		return domain.Message{}, b.persistErr
	}
	b.seq++
	return domain.Message{
		ID:              serverID(b.seq),
		SenderID:        out.Sender.UserID,
		SenderRole:      out.Sender.Role,
		ReceiverID:      out.Receiver.UserID,
		ReceiverRole:    out.Receiver.Role,
		Text:            out.Text,
		CreatedAt:       time.Date(2024, 5, 1, 12, 0, b.seq, 0, time.UTC),
		ClientMessageID: out.ClientMessageID,
		State:           domain.DeliveryStateSent,
	}, nil
}

func (b *fakeBackend) gate(contactID string) chan struct{} {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan struct{})
	b.gates[contactID] = ch
	return ch
}

func (b *fakeBackend) setPersistErr(err error) {
	b.mu.Lock()
	b.persistErr = err
	b.mu.Unlock()
}

func serverID(n int) string {
	return "srv-" + strconv.Itoa(n)
}

func msg(id, from, to, text string, minute int) domain.Message {
	return domain.Message{
		ID:         id,
		SenderID:   from,
		ReceiverID: to,
		Text:       text,
		CreatedAt:  time.Date(2024, 5, 1, 10, minute, 0, 0, time.UTC),
		State:      domain.DeliveryStateSent,
	}
}

func ids(ms []domain.Message) []string {
	out := make([]string, len(ms))
	for i, m := range ms {
		out[i] = m.ID
	}
	return out
}
