package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront-chat/internal/domain"
	"storefront-chat/internal/repository"
	"storefront-chat/internal/services"
	"storefront-chat/internal/transport/httpdto"
	"storefront-chat/pkg/logger"
)

var testUsers = []domain.User{
	{ID: "cust-1", Name: "Asha", Role: domain.RoleCustomer},
	{ID: "admin-1", Name: "Admin", Role: domain.RoleAdmin},
	{ID: "agent-1", Name: "Dev", Role: domain.RoleDeliveryAgent},
}

type testRelay struct {
	url     string
	hub     *Hub
	auth    *services.AuthService
	store   *repository.MemoryStore
	metrics *services.Metrics
}

func newTestRelay(t *testing.T, secret string, limits Limits) *testRelay {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := repository.NewMemoryStore(testUsers)
	hub := runHub(t, nil)
	metrics := services.NewMetrics(nil)
	auth := services.NewAuthService(secret)
	svc := services.NewMessageService(store, store, hub, metrics, logger.NewNop())
	h := NewHandler(auth, hub, NewRoomAuthorizer(store), svc, metrics, limits, logger.NewNop())

	r := gin.New()
	r.GET("/socket", h.Connect)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	return &testRelay{
		url:     "ws" + strings.TrimPrefix(srv.URL, "http") + "/socket",
		hub:     hub,
		auth:    auth,
		store:   store,
		metrics: metrics,
	}
}

func (r *testRelay) dial(t *testing.T, token string) *websocket.Conn {
	t.Helper()
	header := http.Header{}
	if token != "" {
		header.Set("Authorization", "Bearer "+token)
	}
	conn, _, err := websocket.DefaultDialer.Dial(r.url, header)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func (r *testRelay) join(t *testing.T, conn *websocket.Conn, userID string, role domain.Role) {
	t.Helper()
	emit(t, conn, httpdto.EventJoinRoom, httpdto.JoinRoomPayload{UserID: userID, Role: string(role)})
	require.Eventually(t, func() bool { return r.hub.RoomSize(userID) == 1 }, 2*time.Second, 5*time.Millisecond)
}

func emit(t *testing.T, conn *websocket.Conn, event string, data any) {
	t.Helper()
	frame, err := httpdto.NewEnvelope(event, data)
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, frame))
}

func readEnvelope(t *testing.T, conn *websocket.Conn) httpdto.Envelope {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var env httpdto.Envelope
	require.NoError(t, json.Unmarshal(data, &env))
	return env
}

func readError(t *testing.T, conn *websocket.Conn) httpdto.ErrorPayload {
	t.Helper()
	env := readEnvelope(t, conn)
	require.Equal(t, httpdto.EventError, env.Event)
	var p httpdto.ErrorPayload
	require.NoError(t, json.Unmarshal(env.Data, &p))
	return p
}

func sendPayload(text, clientID string) httpdto.SendMessagePayload {
	return httpdto.SendMessagePayload{
		Sender:          httpdto.ParticipantPayload{UserID: "cust-1", Role: "customer"},
		Receiver:        httpdto.ParticipantPayload{UserID: "admin-1", Role: "admin"},
		Text:            text,
		ClientMessageID: clientID,
	}
}

func TestRelayDeliversToReceiverRoom(t *testing.T) {
	relay := newTestRelay(t, "", Limits{})
	customer := relay.dial(t, "")
	admin := relay.dial(t, "")
	relay.join(t, customer, "cust-1", domain.RoleCustomer)
	relay.join(t, admin, "admin-1", domain.RoleAdmin)

	emit(t, customer, httpdto.EventSendMessage, sendPayload("is my order on the way?", "tmp-1"))

	env := readEnvelope(t, admin)
	require.Equal(t, httpdto.EventReceiveMessage, env.Event)
	m, err := httpdto.DecodeMessage(env.Data)
	require.NoError(t, err)
	assert.Equal(t, "cust-1", m.SenderID)
	assert.Equal(t, "admin-1", m.ReceiverID)
	assert.Equal(t, "is my order on the way?", m.Text)
	assert.Equal(t, "tmp-1", m.ClientMessageID)
	assert.NotEmpty(t, m.ID)

	history, err := relay.store.GetConversation(context.Background(), "cust-1", "admin-1")
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, m.ID, history[0].ID)
}

func TestRelayReplayPushesSameMessage(t *testing.T) {
	relay := newTestRelay(t, "", Limits{})
	customer := relay.dial(t, "")
	admin := relay.dial(t, "")
	relay.join(t, admin, "admin-1", domain.RoleAdmin)

	emit(t, customer, httpdto.EventSendMessage, sendPayload("hello", "tmp-dup"))
	emit(t, customer, httpdto.EventSendMessage, sendPayload("hello", "tmp-dup"))

	first, err := httpdto.DecodeMessage(readEnvelope(t, admin).Data)
	require.NoError(t, err)
	second, err := httpdto.DecodeMessage(readEnvelope(t, admin).Data)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	history, err := relay.store.GetConversation(context.Background(), "cust-1", "admin-1")
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestRelayRejectsBadFrames(t *testing.T) {
	relay := newTestRelay(t, "", Limits{})
	conn := relay.dial(t, "")

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))
	assert.Equal(t, "INVALID_REQUEST", readError(t, conn).Code)

	emit(t, conn, "typing", map[string]string{})
	assert.Equal(t, "INVALID_REQUEST", readError(t, conn).Code)

	emit(t, conn, httpdto.EventJoinRoom, httpdto.JoinRoomPayload{UserID: "cust-1", Role: "owner"})
	assert.Equal(t, "INVALID_REQUEST", readError(t, conn).Code)

	emit(t, conn, httpdto.EventJoinRoom, httpdto.JoinRoomPayload{UserID: "ghost", Role: "customer"})
	assert.Equal(t, "FORBIDDEN", readError(t, conn).Code)

	emit(t, conn, httpdto.EventJoinRoom, httpdto.JoinRoomPayload{UserID: "admin-1", Role: "customer"})
	assert.Equal(t, "FORBIDDEN", readError(t, conn).Code)

	emit(t, conn, httpdto.EventSendMessage, sendPayload("   ", "tmp-2"))
	assert.Equal(t, "INVALID_REQUEST", readError(t, conn).Code)

	assert.Equal(t, float64(1), testutil.ToFloat64(relay.metrics.RejectedFrames.WithLabelValues("unknown_event")))
	assert.Equal(t, float64(2), testutil.ToFloat64(relay.metrics.RejectedFrames.WithLabelValues("forbidden")))
}

func TestRelayRateLimit(t *testing.T) {
	relay := newTestRelay(t, "", Limits{SendRate: 0.001, SendBurst: 1})
	customer := relay.dial(t, "")
	admin := relay.dial(t, "")
	relay.join(t, admin, "admin-1", domain.RoleAdmin)

	emit(t, customer, httpdto.EventSendMessage, sendPayload("one", "tmp-a"))
	assert.Equal(t, httpdto.EventReceiveMessage, readEnvelope(t, admin).Event)

	emit(t, customer, httpdto.EventSendMessage, sendPayload("two", "tmp-b"))
	assert.Equal(t, "RATE_LIMITED", readError(t, customer).Code)
}

func TestRelayAuthentication(t *testing.T) {
	relay := newTestRelay(t, "test-secret", Limits{})

	_, resp, err := websocket.DefaultDialer.Dial(relay.url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	_, resp, err = websocket.DefaultDialer.Dial(relay.url+"?token=garbage", nil)
	require.Error(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	token, err := relay.auth.IssueAccessToken(testUsers[0])
	require.NoError(t, err)

	// the query parameter works too
	viaQuery, _, err := websocket.DefaultDialer.Dial(relay.url+"?token="+token, nil)
	require.NoError(t, err)
	viaQuery.Close()

	conn := relay.dial(t, token)
	emit(t, conn, httpdto.EventJoinRoom, httpdto.JoinRoomPayload{UserID: "admin-1", Role: "admin"})
	assert.Equal(t, "FORBIDDEN", readError(t, conn).Code)

	forged := sendPayload("hi", "tmp-x")
	forged.Sender = httpdto.ParticipantPayload{UserID: "agent-1", Role: "deliveryAgent"}
	emit(t, conn, httpdto.EventSendMessage, forged)
	assert.Equal(t, "FORBIDDEN", readError(t, conn).Code)

	relay.join(t, conn, "cust-1", domain.RoleCustomer)
}
