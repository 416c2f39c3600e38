package chat

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront-chat/internal/domain"
	chat_errors "storefront-chat/pkg/errors"
	"storefront-chat/pkg/logger"
)

var (
	me      = domain.User{ID: "u1", Name: "Ann", Role: domain.RoleCustomer}
	admin   = domain.Contact{ID: "a1", Name: "Admin", Role: domain.RoleAdmin}
	driver  = domain.Contact{ID: "d1", Name: "Dan", Role: domain.RoleDeliveryAgent}
	manager = domain.Contact{ID: "s1", Name: "Sam", Role: domain.RoleStoreManager}
)

func newView(t *testing.T) (*ConversationView, *fakeBackend, *fakeTransport) {
	t.Helper()
	backend := newFakeBackend()
	transport := newFakeTransport()
	v := NewConversationView(me, backend, backend, transport, logger.NewNop())
	t.Cleanup(func() {
		v.Close()
		v.Wait()
	})
	return v, backend, transport
}

func TestReceiveDedupsByID(t *testing.T) {
	v, backend, transport := newView(t)
	backend.history[admin.ID] = []domain.Message{msg("m1", admin.ID, me.ID, "hello", 0)}
	require.NoError(t, v.Open(context.Background(), admin))

	transport.deliver(msg("m1", admin.ID, me.ID, "hello", 0))
	transport.deliver(msg("m2", admin.ID, me.ID, "again", 1))
	transport.deliver(msg("m2", admin.ID, me.ID, "again", 1))

	assert.Equal(t, []string{"m1", "m2"}, ids(v.Messages()))
}

func TestReceiveScopedToOpenConversation(t *testing.T) {
	v, _, transport := newView(t)

	transport.deliver(msg("early", admin.ID, me.ID, "before open", 0))
	require.NoError(t, v.Open(context.Background(), admin))

	transport.deliver(msg("other-sender", driver.ID, me.ID, "x", 1))
	transport.deliver(msg("other-receiver", admin.ID, "u2", "x", 2))
	transport.deliver(msg("reverse", me.ID, admin.ID, "x", 3))
	transport.deliver(msg("m5", admin.ID, me.ID, "later", 5))
	transport.deliver(msg("m4", admin.ID, me.ID, "earlier", 4))

	assert.Equal(t, []string{"m5", "m4"}, ids(v.Messages()))
}

func TestSendIsOptimisticThenConfirmed(t *testing.T) {
	v, backend, transport := newView(t)
	require.NoError(t, v.Open(context.Background(), admin))

	backend.persistGate = make(chan struct{})
	sent, err := v.Send(context.Background(), "  where is my order  ")
	require.NoError(t, err)

	assert.True(t, sent.IsTemporary())
	assert.Equal(t, "where is my order", sent.Text)
	assert.Equal(t, domain.DeliveryStatePending, sent.State)
	assert.Equal(t, sent.ID, sent.ClientMessageID)

	msgs := v.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, sent.ID, msgs[0].ID)

	close(backend.persistGate)
	v.Wait()

	msgs = v.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "srv-1", msgs[0].ID)
	assert.Equal(t, domain.DeliveryStateSent, msgs[0].State)
	assert.Equal(t, sent.ID, msgs[0].ClientMessageID)

	require.Equal(t, 1, transport.sentCount())
	assert.Equal(t, admin.ID, transport.sent[0].Receiver.UserID)
	assert.Equal(t, domain.RoleAdmin, transport.sent[0].Receiver.Role)
	assert.Equal(t, sent.ID, backend.persisted[0].ClientMessageID)
}

func TestSendValidation(t *testing.T) {
	v, _, _ := newView(t)

	_, err := v.Send(context.Background(), "hello")
	assert.ErrorIs(t, err, chat_errors.ErrInvalidInput, "no contact open")

	require.NoError(t, v.Open(context.Background(), admin))
	_, err = v.Send(context.Background(), "   ")
	assert.ErrorIs(t, err, chat_errors.ErrInvalidInput)
	assert.Empty(t, v.Messages())
}

func TestEmitFailureDoesNotFailSend(t *testing.T) {
	v, _, transport := newView(t)
	transport.sendErr = chat_errors.ErrNotConnected
	require.NoError(t, v.Open(context.Background(), admin))

	_, err := v.Send(context.Background(), "hi")
	require.NoError(t, err)
	v.Wait()

	msgs := v.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, domain.DeliveryStateSent, msgs[0].State)
}

func TestFailedPersistCanBeRetried(t *testing.T) {
	v, backend, transport := newView(t)
	require.NoError(t, v.Open(context.Background(), admin))

	backend.setPersistErr(&chat_errors.StatusError{Status: 503})
	sent, err := v.Send(context.Background(), "hi")
	require.NoError(t, err)
	v.Wait()

	msgs := v.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, sent.ID, msgs[0].ID)
	assert.Equal(t, domain.DeliveryStateFailed, msgs[0].State)

	backend.setPersistErr(nil)
	require.NoError(t, v.Retry(context.Background(), sent.ID))
	v.Wait()

	msgs = v.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "srv-1", msgs[0].ID)
	assert.Equal(t, domain.DeliveryStateSent, msgs[0].State)

	require.Len(t, backend.persisted, 2)
	assert.Equal(t, backend.persisted[0].ClientMessageID, backend.persisted[1].ClientMessageID)
	assert.Equal(t, 2, transport.sentCount())
}

func TestRetryRejectsNonFailedEntries(t *testing.T) {
	v, _, _ := newView(t)
	require.NoError(t, v.Open(context.Background(), admin))

	sent, err := v.Send(context.Background(), "hi")
	require.NoError(t, err)
	v.Wait()

	assert.ErrorIs(t, v.Retry(context.Background(), sent.ID), chat_errors.ErrNotFound)
	assert.ErrorIs(t, v.Retry(context.Background(), "srv-1"), chat_errors.ErrConflict)
}

func TestStaleHistoryIsDiscarded(t *testing.T) {
	v, backend, _ := newView(t)
	backend.history[admin.ID] = []domain.Message{msg("a-1", admin.ID, me.ID, "from admin", 0)}
	backend.history[driver.ID] = []domain.Message{msg("d-1", driver.ID, me.ID, "from driver", 0)}
	gate := backend.gate(admin.ID)

	errA := make(chan error, 1)
	go func() { errA <- v.Open(context.Background(), admin) }()
	require.Eventually(t, func() bool {
		c, ok := v.Contact()
		return ok && c.ID == admin.ID
	}, time.Second, time.Millisecond)

	require.NoError(t, v.Open(context.Background(), driver))
	close(gate)

	assert.ErrorIs(t, <-errA, ErrStale)
	assert.Equal(t, []string{"d-1"}, ids(v.Messages()))
	c, _ := v.Contact()
	assert.Equal(t, driver.ID, c.ID)
}

func TestOpenMergesEntriesArrivingDuringFetch(t *testing.T) {
	v, backend, transport := newView(t)
	backend.history[admin.ID] = []domain.Message{
		msg("m1", admin.ID, me.ID, "one", 0),
		msg("m2", admin.ID, me.ID, "two", 1),
	}
	gate := backend.gate(admin.ID)

	done := make(chan error, 1)
	go func() { done <- v.Open(context.Background(), admin) }()
	require.Eventually(t, func() bool {
		_, ok := v.Contact()
		return ok
	}, time.Second, time.Millisecond)

	transport.deliver(msg("m2", admin.ID, me.ID, "two", 1))
	transport.deliver(msg("m3", admin.ID, me.ID, "three", 2))
	close(gate)
	require.NoError(t, <-done)

	assert.Equal(t, []string{"m1", "m2", "m3"}, ids(v.Messages()))
}

func TestOpenFailureLeavesEmptyList(t *testing.T) {
	v, backend, _ := newView(t)
	backend.history[admin.ID] = []domain.Message{msg("m1", admin.ID, me.ID, "one", 0)}
	require.NoError(t, v.Open(context.Background(), admin))

	backend.historyErr = errors.New("boom")
	err := v.Open(context.Background(), driver)
	require.Error(t, err)
	assert.Empty(t, v.Messages())
}

func TestLatePersistForOldConversationIsIgnored(t *testing.T) {
	v, backend, _ := newView(t)
	require.NoError(t, v.Open(context.Background(), admin))

	backend.persistGate = make(chan struct{})
	_, err := v.Send(context.Background(), "hi")
	require.NoError(t, err)

	require.NoError(t, v.Open(context.Background(), driver))
	close(backend.persistGate)
	v.Wait()

	assert.Empty(t, v.Messages())
}

func TestCloseRemovesHandler(t *testing.T) {
	backend := newFakeBackend()
	transport := newFakeTransport()
	v := NewConversationView(me, backend, backend, transport, logger.NewNop())
	require.Equal(t, 1, transport.handlerCount())
	require.NoError(t, v.Open(context.Background(), admin))

	v.Close()
	assert.Equal(t, 0, transport.handlerCount())

	_, err := v.Send(context.Background(), "hi")
	assert.ErrorIs(t, err, chat_errors.ErrClosed)
	assert.ErrorIs(t, v.Open(context.Background(), admin), chat_errors.ErrClosed)
}

func TestOnChangeReceivesSnapshots(t *testing.T) {
	v, _, transport := newView(t)

	var mu sync.Mutex
	var last []domain.Message
	calls := 0
	unsubscribe := v.OnChange(func(ms []domain.Message) {
		mu.Lock()
		defer mu.Unlock()
		last = ms
		calls++
	})

	require.NoError(t, v.Open(context.Background(), admin))
	transport.deliver(msg("m1", admin.ID, me.ID, "hi", 0))

	mu.Lock()
	assert.Equal(t, []string{"m1"}, ids(last))
	seen := calls
	mu.Unlock()

	unsubscribe()
	transport.deliver(msg("m2", admin.ID, me.ID, "hi", 1))
	mu.Lock()
	assert.Equal(t, seen, calls)
	mu.Unlock()
}
