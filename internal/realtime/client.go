package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"storefront-chat/internal/domain"
	"storefront-chat/internal/transport/httpdto"
	chat_errors "storefront-chat/pkg/errors"
	"storefront-chat/pkg/logger"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	dialTimeout    = 10 * time.Second
	maxMessageSize = 512 * 1024
)

type Config struct {
	URL            string
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	// PongWait is how long the connection may stay silent before it is
	// considered dead. The relay pings well within this window.
	PongWait time.Duration
}

// Client is the realtime channel to the chat backend. One Client is shared
// by the whole process and handed to consumers explicitly.
type Client struct {
	cfg    Config
	dialer *websocket.Dialer
	token  func() string
	log    *logger.Logger

	handlers *handlerSet

	mu       sync.Mutex
	conn     *websocket.Conn
	identity *domain.Participant

	writeMu sync.Mutex

	closeOnce sync.Once
	done      chan struct{}
}

func NewClient(cfg Config, token func() string, l *logger.Logger) *Client {
	if l == nil {
		l = logger.NewNop()
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = 500 * time.Millisecond
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = 30 * time.Second
	}
	if cfg.PongWait <= 0 {
		cfg.PongWait = pongWait
	}
	if token == nil {
		token = func() string { return "" }
	}
	return &Client{
		cfg:      cfg,
		dialer:   &websocket.Dialer{HandshakeTimeout: dialTimeout, Proxy: http.ProxyFromEnvironment},
		token:    token,
		log:      l.Named("realtime"),
		handlers: newHandlerSet(),
		done:     make(chan struct{}),
	}
}

// Run keeps the connection alive until ctx ends or Close is called,
// reconnecting with exponential backoff. Every fresh connection re-joins the
// last joined room.
func (c *Client) Run(ctx context.Context) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.cfg.InitialBackoff
	b.MaxInterval = c.cfg.MaxBackoff
	b.MaxElapsedTime = 0

	for {
		connected, err := c.connectOnce(ctx)
		select {
		case <-c.done:
			return nil
		default:
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if connected {
			b.Reset()
		}

		wait := b.NextBackOff()
		c.log.Warn("realtime connection lost, reconnecting",
			zap.String("url", c.cfg.URL),
			zap.Duration("wait", wait),
			zap.Error(err))

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-c.done:
			timer.Stop()
			return nil
		case <-timer.C:
		}
	}
}

// connectOnce dials, re-joins and reads until the connection fails. The bool
// reports whether the dial succeeded.
func (c *Client) connectOnce(ctx context.Context) (bool, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-c.done:
			cancel()
		case <-ctx.Done():
		}
	}()

	header := http.Header{}
	if token := c.token(); token != "" {
		header.Set("Authorization", "Bearer "+token)
	}

	dialCtx, cancelDial := context.WithTimeout(ctx, dialTimeout)
	conn, _, err := c.dialer.DialContext(dialCtx, c.cfg.URL, header)
	cancelDial()
	if err != nil {
		return false, fmt.Errorf("dial %s: %w", c.cfg.URL, err)
	}

	// Close may have run while dialing and found no connection to close.
	c.mu.Lock()
	select {
	case <-c.done:
		c.mu.Unlock()
		conn.Close()
		return false, chat_errors.ErrNotConnected
	default:
	}
	c.conn = conn
	identity := c.identity
	c.mu.Unlock()

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer func() {
		stop()
		c.mu.Lock()
		if c.conn == conn {
			c.conn = nil
		}
		c.mu.Unlock()
		conn.Close()
	}()

	c.log.Info("realtime connected", zap.String("url", c.cfg.URL))

	if identity != nil {
		if err := c.writeEvent(conn, httpdto.EventJoinRoom, joinPayload(*identity)); err != nil {
			return true, fmt.Errorf("join room: %w", err)
		}
		c.log.Debug("room joined", zap.String("user_id", identity.UserID))
	}

	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
	conn.SetPingHandler(func(appData string) error {
		conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
		err := conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(writeWait))
		if err == websocket.ErrCloseSent {
			return nil
		}
		return err
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return true, err
		}
		conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
		c.handleFrame(data)
	}
}

func (c *Client) handleFrame(data []byte) {
	var env httpdto.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		c.log.Warn("dropping malformed realtime frame", zap.Error(err))
		return
	}

	switch env.Event {
	case httpdto.EventReceiveMessage:
		msg, err := httpdto.DecodeMessage(env.Data)
		if err != nil {
			c.log.Warn("dropping malformed receive-message", zap.Error(err))
			return
		}
		c.handlers.dispatch(msg)
	case httpdto.EventError:
		var payload httpdto.ErrorPayload
		_ = json.Unmarshal(env.Data, &payload)
		c.log.Warn("realtime error from server",
			zap.String("code", payload.Code),
			zap.String("message", payload.Message))
	default:
		c.log.Debug("ignoring realtime event", zap.String("event", env.Event))
	}
}

// JoinRoom records the identity whose room this client belongs to. The join
// is emitted now if connected and again on every reconnect. No ack is awaited.
func (c *Client) JoinRoom(ctx context.Context, userID string, role domain.Role) error {
	if userID == "" || !role.Valid() {
		return fmt.Errorf("join room for %q/%q: %w", userID, role, chat_errors.ErrInvalidInput)
	}
	identity := domain.Participant{UserID: userID, Role: role}

	c.mu.Lock()
	c.identity = &identity
	conn := c.conn
	c.mu.Unlock()

	if conn == nil {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return c.writeEvent(conn, httpdto.EventJoinRoom, joinPayload(identity))
}

// Identity returns the last joined participant.
func (c *Client) Identity() (domain.Participant, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.identity == nil {
		return domain.Participant{}, false
	}
	return *c.identity, true
}

// Send emits a send-message event. It is not queued while offline.
func (c *Client) Send(ctx context.Context, msg domain.OutgoingMessage) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()

	if conn == nil {
		return chat_errors.ErrNotConnected
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return c.writeEvent(conn, httpdto.EventSendMessage, httpdto.SendPayloadFromOutgoing(msg))
}

func (c *Client) OnReceive(h Handler) HandlerID {
	return c.handlers.add(h)
}

func (c *Client) OffReceive(id HandlerID) {
	c.handlers.remove(id)
}

func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// Close stops Run and closes the active connection.
func (c *Client) Close() error {
	c.closeOnce.Do(func() { close(c.done) })

	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	if conn == nil {
		return nil
	}
	c.writeMu.Lock()
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
	c.writeMu.Unlock()
	return conn.Close()
}

func (c *Client) writeEvent(conn *websocket.Conn, event string, payload any) error {
	frame, err := httpdto.NewEnvelope(event, payload)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteMessage(websocket.TextMessage, frame)
}

func joinPayload(p domain.Participant) httpdto.JoinRoomPayload {
	return httpdto.JoinRoomPayload{UserID: p.UserID, Role: string(p.Role)}
}

var _ Transport = (*Client)(nil)
