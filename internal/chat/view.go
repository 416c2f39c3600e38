package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"storefront-chat/internal/domain"
	"storefront-chat/internal/realtime"
	chat_errors "storefront-chat/pkg/errors"
	"storefront-chat/pkg/logger"
)

// ErrStale is returned by Open when another conversation was opened before
// the history arrived. The late history is discarded.
var ErrStale = errors.New("conversation changed before history arrived")

// Listener is called with a snapshot after every change to the view. It runs
// synchronously and must not call Open, Reset, Send or Retry.
type Listener func([]domain.Message)

// ConversationView holds the messages of the one open conversation and keeps
// them consistent with history, realtime pushes and optimistic sends.
type ConversationView struct {
	me        domain.User
	history   HistorySource
	persister Persister
	transport realtime.Transport
	log       *logger.Logger
	handlerID realtime.HandlerID

	mu        sync.Mutex
	epoch     uint64
	contact   *domain.Contact
	list      *MessageList
	closed    bool
	version   uint64
	listeners map[int]Listener
	nextLID   int

	notifyMu  sync.Mutex
	delivered uint64

	inflight sync.WaitGroup
}

// NewConversationView subscribes to transport immediately; Close releases
// the subscription.
func NewConversationView(me domain.User, history HistorySource, persister Persister, transport realtime.Transport, l *logger.Logger) *ConversationView {
	if l == nil {
		l = logger.NewNop()
	}
	v := &ConversationView{
		me:        me,
		history:   history,
		persister: persister,
		transport: transport,
		log:       l.Named("conversation").With(zap.String("user_id", me.ID)),
		list:      NewMessageList(),
		listeners: make(map[int]Listener),
	}
	v.handlerID = transport.OnReceive(v.receive)
	return v
}

// Open switches the view to contact and loads its history.
func (v *ConversationView) Open(ctx context.Context, contact domain.Contact) error {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return chat_errors.ErrClosed
	}
	v.epoch++
	epoch := v.epoch
	c := contact
	v.contact = &c
	v.list = NewMessageList()
	snap, version := v.changedLocked()
	v.mu.Unlock()
	v.publish(snap, version)

	history, err := v.history.FetchHistory(ctx, v.me.ID, contact.ID)

	v.mu.Lock()
	if v.closed || v.epoch != epoch {
		v.mu.Unlock()
		v.log.Debug("discarding stale history", zap.String("contact_id", contact.ID))
		return ErrStale
	}
	if err != nil {
		v.mu.Unlock()
		v.log.Error("failed to load history", zap.String("contact_id", contact.ID), zap.Error(err))
		return fmt.Errorf("load history with %s: %w", contact.ID, err)
	}

	merged := NewMessageList()
	merged.Replace(history)
	persisted := make(map[string]bool)
	for _, m := range history {
		if m.ClientMessageID != "" {
			persisted[m.ClientMessageID] = true
		}
	}
	for _, m := range v.list.Snapshot() {
		if m.IsTemporary() && persisted[m.ClientMessageID] {
			continue
		}
		merged.Insert(m)
	}
	v.list = merged
	snap, version = v.changedLocked()
	v.mu.Unlock()
	v.publish(snap, version)

	v.log.Debug("history loaded", zap.String("contact_id", contact.ID), zap.Int("count", len(history)))
	return nil
}

// Reset closes the open conversation without opening another one.
func (v *ConversationView) Reset() {
	v.mu.Lock()
	v.epoch++
	v.contact = nil
	v.list = NewMessageList()
	snap, version := v.changedLocked()
	v.mu.Unlock()
	v.publish(snap, version)
}

func (v *ConversationView) receive(m domain.Message) {
	v.mu.Lock()
	if v.closed || v.contact == nil || !m.Between(v.contact.ID, v.me.ID) {
		v.mu.Unlock()
		return
	}
	m.State = domain.DeliveryStateSent
	if !v.list.Insert(m) {
		v.mu.Unlock()
		return
	}
	snap, version := v.changedLocked()
	v.mu.Unlock()
	v.publish(snap, version)
}

// Send appends an optimistic entry and returns it. Emission and persistence
// run in the background; the entry is confirmed or marked failed when the
// persist call returns.
func (v *ConversationView) Send(ctx context.Context, text string) (domain.Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return domain.Message{}, fmt.Errorf("empty message: %w", chat_errors.ErrInvalidInput)
	}

	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return domain.Message{}, chat_errors.ErrClosed
	}
	if v.contact == nil {
		v.mu.Unlock()
		return domain.Message{}, fmt.Errorf("no conversation open: %w", chat_errors.ErrInvalidInput)
	}
	tempID := domain.NewTempID()
	msg := domain.Message{
		ID:              tempID,
		SenderID:        v.me.ID,
		SenderRole:      v.me.Role,
		ReceiverID:      v.contact.ID,
		ReceiverRole:    v.contact.Role,
		Text:            text,
		CreatedAt:       time.Now().UTC(),
		ClientMessageID: tempID,
		State:           domain.DeliveryStatePending,
	}
	v.list.Insert(msg)
	epoch := v.epoch
	v.inflight.Add(2)
	snap, version := v.changedLocked()
	v.mu.Unlock()
	v.publish(snap, version)

	v.dispatch(ctx, epoch, msg)
	return msg, nil
}

// Retry re-sends a failed entry with its original client message id.
func (v *ConversationView) Retry(ctx context.Context, id string) error {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return chat_errors.ErrClosed
	}
	msg, ok := v.list.Get(id)
	if !ok {
		v.mu.Unlock()
		return fmt.Errorf("message %s: %w", id, chat_errors.ErrNotFound)
	}
	if msg.State != domain.DeliveryStateFailed {
		v.mu.Unlock()
		return fmt.Errorf("message %s is %s: %w", id, msg.State, chat_errors.ErrConflict)
	}
	v.list.MarkPending(id)
	msg.State = domain.DeliveryStatePending
	epoch := v.epoch
	v.inflight.Add(2)
	snap, version := v.changedLocked()
	v.mu.Unlock()
	v.publish(snap, version)

	v.dispatch(ctx, epoch, msg)
	return nil
}

// dispatch emits and persists msg concurrently. The caller has already
// added both goroutines to inflight.
func (v *ConversationView) dispatch(ctx context.Context, epoch uint64, msg domain.Message) {
	ctx = context.WithoutCancel(ctx)
	out := msg.Outgoing()

	go func() {
		defer v.inflight.Done()
		if err := v.transport.Send(ctx, out); err != nil {
			v.log.Warn("realtime emit failed",
				zap.String("message_id", msg.ID),
				zap.String("contact_id", msg.ReceiverID),
				zap.Error(err))
		}
	}()

	go func() {
		defer v.inflight.Done()
		server, err := v.persister.SendMessage(ctx, out)
		v.settle(epoch, msg.ID, server, err)
	}()
}

func (v *ConversationView) settle(epoch uint64, tempID string, server domain.Message, err error) {
	v.mu.Lock()
	if v.closed || v.epoch != epoch {
		v.mu.Unlock()
		return
	}
	var changed bool
	if err != nil {
		changed = v.list.MarkFailed(tempID)
		v.log.Error("failed to persist message", zap.String("message_id", tempID), zap.Error(err))
	} else {
		changed = v.list.Confirm(tempID, server)
	}
	if !changed {
		v.mu.Unlock()
		return
	}
	snap, version := v.changedLocked()
	v.mu.Unlock()
	v.publish(snap, version)
}

func (v *ConversationView) Messages() []domain.Message {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.list.Snapshot()
}

func (v *ConversationView) Contact() (domain.Contact, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.contact == nil {
		return domain.Contact{}, false
	}
	return *v.contact, true
}

// OnChange registers l and returns a function that removes it.
func (v *ConversationView) OnChange(l Listener) func() {
	v.mu.Lock()
	id := v.nextLID
	v.nextLID++
	v.listeners[id] = l
	v.mu.Unlock()
	return func() {
		v.mu.Lock()
		delete(v.listeners, id)
		v.mu.Unlock()
	}
}

// Wait blocks until every in-flight emit and persist call has returned.
func (v *ConversationView) Wait() {
	v.inflight.Wait()
}

// Close unsubscribes from the transport. Results arriving afterwards are
// ignored.
func (v *ConversationView) Close() {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return
	}
	v.closed = true
	v.listeners = make(map[int]Listener)
	v.mu.Unlock()
	v.transport.OffReceive(v.handlerID)
}

func (v *ConversationView) changedLocked() ([]domain.Message, uint64) {
	v.version++
	return v.list.Snapshot(), v.version
}

// publish delivers snap to listeners unless a newer snapshot already went out.
func (v *ConversationView) publish(snap []domain.Message, version uint64) {
	v.notifyMu.Lock()
	defer v.notifyMu.Unlock()
	if version <= v.delivered {
		return
	}
	v.delivered = version

	v.mu.Lock()
	ls := make([]Listener, 0, len(v.listeners))
	for _, l := range v.listeners {
		ls = append(ls, l)
	}
	v.mu.Unlock()

	for _, l := range ls {
		l(snap)
	}
}
