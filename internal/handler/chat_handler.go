package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"storefront-chat/internal/domain"
	"storefront-chat/internal/services"
	"storefront-chat/internal/transport/httpdto"
	chat_errors "storefront-chat/pkg/errors"
	"storefront-chat/pkg/logger"
)

// ChatService is what the REST chat routes need from the message service.
type ChatService interface {
	Contacts(ctx context.Context, role domain.Role) ([]domain.Contact, error)
	History(ctx context.Context, a, b string) ([]domain.Message, error)
	Persist(ctx context.Context, out domain.OutgoingMessage, path string) (domain.Message, error)
}

type ChatHandler struct {
	service ChatService
	logger  *logger.Logger
}

func NewChatHandler(service ChatService, l *logger.Logger) *ChatHandler {
	if l == nil {
		l = logger.NewNop()
	}
	return &ChatHandler{service: service, logger: l.Named("chat_handler")}
}

// Contacts answers with a bare array of contacts holding the role.
func (h *ChatHandler) Contacts(c *gin.Context) {
	role, err := domain.ParseRole(c.Param("role"))
	if err != nil {
		h.fail(c, err)
		return
	}
	contacts, err := h.service.Contacts(c.Request.Context(), role)
	if err != nil {
		h.fail(c, err)
		return
	}
	out := make([]httpdto.Contact, 0, len(contacts))
	for _, ct := range contacts {
		out = append(out, httpdto.ContactFromDomain(ct))
	}
	c.JSON(http.StatusOK, out)
}

// Messages answers with the conversation between the two path ids, oldest
// first.
func (h *ChatHandler) Messages(c *gin.Context) {
	senderID := c.Param("senderId")
	receiverID := c.Param("receiverId")
	if senderID == "" || receiverID == "" {
		h.fail(c, chat_errors.ErrInvalidInput)
		return
	}
	if !h.participant(c, senderID, receiverID) {
		return
	}
	messages, err := h.service.History(c.Request.Context(), senderID, receiverID)
	if err != nil {
		h.fail(c, err)
		return
	}
	out := make([]httpdto.Message, 0, len(messages))
	for _, m := range messages {
		out = append(out, httpdto.MessageFromDomain(m))
	}
	c.JSON(http.StatusOK, out)
}

// Send persists a message. It does not push; realtime delivery belongs to
// the socket path.
func (h *ChatHandler) Send(c *gin.Context) {
	var req httpdto.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid request", "INVALID_REQUEST"))
		return
	}
	out, err := req.ToOutgoing()
	if err != nil {
		h.fail(c, err)
		return
	}
	if uid, ok := services.UserIDFromContext(c.Request.Context()); ok && uid != out.Sender.UserID {
		h.fail(c, chat_errors.ErrForbidden)
		return
	}

	stored, err := h.service.Persist(c.Request.Context(), out, services.PathREST)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.MessageFromDomain(stored))
}

// participant rejects reads of a conversation the caller is not part of.
// Without auth every conversation is readable.
func (h *ChatHandler) participant(c *gin.Context, a, b string) bool {
	uid, ok := services.UserIDFromContext(c.Request.Context())
	if !ok || uid == a || uid == b {
		return true
	}
	h.fail(c, chat_errors.ErrForbidden)
	return false
}

func (h *ChatHandler) fail(c *gin.Context, err error) {
	status := chat_errors.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		h.logger.Ctx(c.Request.Context()).Error("chat request failed",
			zap.String("path", c.FullPath()), zap.Error(err))
	}
	c.JSON(status, httpdto.ErrorResponseFrom(err))
}
