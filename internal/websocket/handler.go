package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"storefront-chat/internal/domain"
	"storefront-chat/internal/services"
	"storefront-chat/internal/transport/httpdto"
	chat_errors "storefront-chat/pkg/errors"
	"storefront-chat/pkg/logger"
)

// Relayer persists an outgoing message and pushes it to the receiver.
type Relayer interface {
	Relay(ctx context.Context, out domain.OutgoingMessage) (domain.Message, error)
}

// Limits bound how fast one connection may send.
type Limits struct {
	SendRate  float64 // messages per second, <= 0 disables the limit
	SendBurst int
}

type Handler struct {
	auth       *services.AuthService
	hub        *Hub
	authorizer *RoomAuthorizer
	relayer    Relayer
	metrics    *services.Metrics
	limits     Limits
	log        *socketLogger
	upgrader   websocket.Upgrader
}

func NewHandler(auth *services.AuthService, hub *Hub, authorizer *RoomAuthorizer, relayer Relayer, metrics *services.Metrics, limits Limits, l *logger.Logger) *Handler {
	if metrics == nil {
		metrics = services.NewMetrics(nil)
	}
	return &Handler{
		auth:       auth,
		hub:        hub,
		authorizer: authorizer,
		relayer:    relayer,
		metrics:    metrics,
		limits:     limits,
		log:        newSocketLogger(l),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

func (h *Handler) Connect(c *gin.Context) {
	subject := ""
	if h.auth.Enabled() {
		token := requestToken(c)
		if token == "" {
			c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
			return
		}
		claims, err := h.auth.ParseAccessToken(token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
			return
		}
		subject = strings.TrimSpace(claims.UserID)
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	client := NewClient(conn, subject, h.newLimiter())
	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	h.hub.Register(client)
	h.log.Info("connect", client)
	go client.WriteLoop(ctx)

	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Warn("read", client, zap.Error(err))
			}
			break
		}
		conn.SetReadDeadline(time.Now().Add(pongWait))
		h.handleFrame(ctx, client, data)
	}

	h.hub.Unregister(client)
	h.log.Info("disconnect", client)
}

func (h *Handler) handleFrame(ctx context.Context, client *Client, data []byte) {
	var env httpdto.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		h.reject(client, "malformed", &chat_errors.DecodeError{Kind: "envelope", Err: err})
		return
	}

	switch env.Event {
	case httpdto.EventJoinRoom:
		h.joinRoom(ctx, client, env.Data)
	case httpdto.EventSendMessage:
		h.sendMessage(ctx, client, env.Data)
	default:
		h.reject(client, "unknown_event", fmt.Errorf("unknown event %q: %w", env.Event, chat_errors.ErrInvalidInput))
	}
}

func (h *Handler) joinRoom(ctx context.Context, client *Client, data json.RawMessage) {
	var p httpdto.JoinRoomPayload
	if err := json.Unmarshal(data, &p); err != nil {
		h.reject(client, "malformed", &chat_errors.DecodeError{Kind: "join-room", Err: err})
		return
	}
	role, err := domain.ParseRole(p.Role)
	if err != nil {
		h.reject(client, "invalid", err)
		return
	}
	if err := h.authorizer.CanJoin(ctx, client.Subject, p.UserID, role); err != nil {
		h.reject(client, "forbidden", err)
		return
	}

	h.hub.Join(client, p.UserID)
	h.log.Info(httpdto.EventJoinRoom, client, zap.String("room", p.UserID), zap.String("role", role.String()))
}

func (h *Handler) sendMessage(ctx context.Context, client *Client, data json.RawMessage) {
	if !client.Allow() {
		h.reject(client, "rate_limited", fmt.Errorf("too many messages: %w", chat_errors.ErrRateLimited))
		return
	}

	var p httpdto.SendMessagePayload
	if err := json.Unmarshal(data, &p); err != nil {
		h.reject(client, "malformed", &chat_errors.DecodeError{Kind: "send-message", Err: err})
		return
	}
	out, err := p.ToOutgoing()
	if err != nil {
		h.reject(client, "invalid", err)
		return
	}
	if err := h.authorizer.CanSend(client.Subject, out.Sender); err != nil {
		h.reject(client, "forbidden", err)
		return
	}

	stored, err := h.relayer.Relay(ctx, out)
	if err != nil {
		h.log.Error(httpdto.EventSendMessage, client, err)
		h.sendError(client, err)
		return
	}
	h.log.Info(httpdto.EventSendMessage, client,
		zap.String("message_id", stored.ID),
		zap.String("receiver_id", stored.ReceiverID))
}

func (h *Handler) reject(client *Client, reason string, err error) {
	h.metrics.RejectedFrames.WithLabelValues(reason).Inc()
	h.log.Warn("rejected", client, zap.String("reason", reason), zap.Error(err))
	h.sendError(client, err)
}

func (h *Handler) sendError(client *Client, err error) {
	frame, mErr := httpdto.NewEnvelope(httpdto.EventError, httpdto.ErrorPayload{
		Message: err.Error(),
		Code:    chat_errors.Code(err),
	})
	if mErr != nil {
		return
	}
	client.SendMessage(frame)
}

func (h *Handler) newLimiter() *rate.Limiter {
	if h.limits.SendRate <= 0 {
		return nil
	}
	burst := h.limits.SendBurst
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(h.limits.SendRate), burst)
}

// requestToken reads the access token from the Authorization header or the
// token query parameter.
func requestToken(c *gin.Context) string {
	if header := c.GetHeader("Authorization"); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
	}
	return c.Query("token")
}
