package server

import (
	"context"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront-chat/config"
	"storefront-chat/internal/api"
	"storefront-chat/internal/chat"
	"storefront-chat/internal/domain"
	"storefront-chat/internal/realtime"
	"storefront-chat/pkg/database"
)

type testClient struct {
	chat      *chat.Chat
	transport *realtime.Client
}

func startRelay(t *testing.T, cfg *config.Config) (*Relay, string) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())

	relay, err := NewRelay(ctx, cfg, nil)
	require.NoError(t, err)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- relay.Serve(ctx, ln) }()
	t.Cleanup(func() {
		cancel()
		<-done
		relay.Close()
	})
	return relay, ln.Addr().String()
}

func demoUser(t *testing.T, id string) domain.User {
	t.Helper()
	for _, u := range database.DemoUsers() {
		if u.ID == id {
			return u
		}
	}
	t.Fatalf("no demo user %s", id)
	return domain.User{}
}

func connect(t *testing.T, relay *Relay, addr string, u domain.User) *testClient {
	t.Helper()
	token, err := relay.Auth.IssueAccessToken(u)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	transport := realtime.NewClient(realtime.Config{
		URL:            "ws://" + addr + "/socket",
		InitialBackoff: 20 * time.Millisecond,
		MaxBackoff:     100 * time.Millisecond,
	}, func() string { return token }, nil)
	go transport.Run(ctx)

	backend := api.New(api.DefaultConfig("http://"+addr+"/api"), api.StaticToken(token), nil)
	c, err := chat.New(domain.Session{User: u, Token: token}, backend, transport, nil)
	require.NoError(t, err)
	t.Cleanup(func() {
		c.Close()
		transport.Close()
		cancel()
	})

	require.NoError(t, c.Start(context.Background()))
	require.Eventually(t, func() bool { return relay.Hub.RoomSize(u.ID) == 1 }, 3*time.Second, 10*time.Millisecond)
	return &testClient{chat: c, transport: transport}
}

func TestRelayRoundTrip(t *testing.T) {
	cfg := &config.Config{RelayMode: TestMode, RelayStore: StoreMemory, JWTSecret: "round-trip-secret", SendRate: 50, SendBurst: 50}
	relay, addr := startRelay(t, cfg)
	ctx := context.Background()

	customer := connect(t, relay, addr, demoUser(t, "cust-1"))
	admin := connect(t, relay, addr, demoUser(t, "admin-1"))

	// the customer's default filter lists admins, the admin's lists customers
	_, ok := customer.chat.Directory().Find("admin-1")
	require.True(t, ok)
	_, ok = admin.chat.Directory().Find("cust-1")
	require.True(t, ok)

	require.NoError(t, customer.chat.Select(ctx, "admin-1"))
	require.NoError(t, admin.chat.Select(ctx, "cust-1"))

	sent, err := customer.chat.Send(ctx, "  Is my order on the way?  ")
	require.NoError(t, err)
	assert.True(t, sent.IsTemporary())
	customer.chat.View().Wait()

	mine := customer.chat.View().Messages()
	require.Len(t, mine, 1)
	assert.Equal(t, domain.DeliveryStateSent, mine[0].State)
	assert.False(t, mine[0].IsTemporary())
	assert.Equal(t, "Is my order on the way?", mine[0].Text)

	require.Eventually(t, func() bool {
		got := admin.chat.View().Messages()
		return len(got) == 1 && got[0].ID == mine[0].ID
	}, 3*time.Second, 10*time.Millisecond)

	_, err = admin.chat.Send(ctx, "Out for delivery")
	require.NoError(t, err)
	admin.chat.View().Wait()

	require.Eventually(t, func() bool {
		got := customer.chat.View().Messages()
		return len(got) == 2 && got[1].Text == "Out for delivery"
	}, 3*time.Second, 10*time.Millisecond)

	// socket and REST paths resolved to one stored message per send
	history, err := relay.Store.GetConversation(ctx, "cust-1", "admin-1")
	require.NoError(t, err)
	assert.Len(t, history, 2)
}

func TestRelayOperationalRoutes(t *testing.T) {
	relay, addr := startRelay(t, &config.Config{RelayMode: TestMode, RelayStore: StoreMemory})
	require.NotNil(t, relay.Registry)

	get := func(path string) (int, string) {
		resp, err := http.Get("http://" + addr + path)
		require.NoError(t, err)
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		return resp.StatusCode, string(body)
	}

	status, body := get("/ping")
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, "pong")

	status, body = get("/health")
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, "healthy")

	status, body = get("/metrics")
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, "storefront_chat_connected_sockets")

	// auth is off without a secret
	status, body = get("/api/chats/contacts/deliveryAgent")
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, "agent-1")
}

func TestRelayRequiresTokenWhenSecretSet(t *testing.T) {
	_, addr := startRelay(t, &config.Config{RelayMode: TestMode, RelayStore: StoreMemory, JWTSecret: "s3cret"})

	resp, err := http.Get("http://" + addr + "/api/chats/contacts/admin")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestNewRelayRejectsUnknownStore(t *testing.T) {
	_, err := NewRelay(context.Background(), &config.Config{RelayMode: TestMode, RelayStore: "pebble"}, nil)
	assert.Error(t, err)
}
