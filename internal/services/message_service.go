package services

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"storefront-chat/internal/domain"
	"storefront-chat/internal/repository"
	"storefront-chat/internal/transport/httpdto"
	chat_errors "storefront-chat/pkg/errors"
	"storefront-chat/pkg/logger"
)

const maxTextLength = 4000

// Pusher delivers an encoded frame to every connection in a room.
type Pusher interface {
	Push(ctx context.Context, room string, frame []byte) error
}

// Send paths, used as a metric label.
const (
	PathSocket = "socket"
	PathREST   = "rest"
)

type MessageService struct {
	users    repository.UserRepository
	messages repository.MessageRepository
	pusher   Pusher
	metrics  *Metrics
	logger   *logger.Logger
	now      func() time.Time
}

func NewMessageService(users repository.UserRepository, messages repository.MessageRepository, pusher Pusher, metrics *Metrics, l *logger.Logger) *MessageService {
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	if l == nil {
		l = logger.NewNop()
	}
	return &MessageService{
		users:    users,
		messages: messages,
		pusher:   pusher,
		metrics:  metrics,
		logger:   l.Named("messages"),
		now:      time.Now,
	}
}

// Contacts lists every user with role.
func (s *MessageService) Contacts(ctx context.Context, role domain.Role) ([]domain.Contact, error) {
	if !role.Valid() {
		return nil, fmt.Errorf("unknown role %q: %w", role, chat_errors.ErrInvalidInput)
	}
	users, err := s.users.ListUsersByRole(ctx, role)
	if err != nil {
		return nil, err
	}
	contacts := make([]domain.Contact, 0, len(users))
	for _, u := range users {
		contacts = append(contacts, domain.ContactFromUser(u))
	}
	return contacts, nil
}

// History returns the conversation between a and b, oldest first.
func (s *MessageService) History(ctx context.Context, a, b string) ([]domain.Message, error) {
	if a == "" || b == "" {
		return nil, chat_errors.ErrInvalidInput
	}
	return s.messages.GetConversation(ctx, a, b)
}

// Persist stores out. Repeating a send with the same client message id
// returns the first stored message.
func (s *MessageService) Persist(ctx context.Context, out domain.OutgoingMessage, path string) (domain.Message, error) {
	if err := validateOutgoing(out); err != nil {
		return domain.Message{}, err
	}
	m := domain.Message{
		ID:              uuid.NewString(),
		SenderID:        out.Sender.UserID,
		SenderRole:      out.Sender.Role,
		ReceiverID:      out.Receiver.UserID,
		ReceiverRole:    out.Receiver.Role,
		Text:            out.Text,
		CreatedAt:       s.now().UTC(),
		ClientMessageID: out.ClientMessageID,
		State:           domain.DeliveryStateSent,
	}
	stored, created, err := s.messages.Create(ctx, m)
	if err != nil {
		return domain.Message{}, fmt.Errorf("persist message: %w", err)
	}
	s.metrics.PersistedMessages.WithLabelValues(path, strconv.FormatBool(!created)).Inc()
	s.logger.Ctx(ctx).Debug("message persisted",
		zap.String("message_id", stored.ID),
		zap.String("path", path),
		zap.Bool("replay", !created))
	return stored, nil
}

// Relay persists out and pushes it to the receiver's room. Replays are
// pushed again; receivers drop duplicates by id.
func (s *MessageService) Relay(ctx context.Context, out domain.OutgoingMessage) (domain.Message, error) {
	stored, err := s.Persist(ctx, out, PathSocket)
	if err != nil {
		return domain.Message{}, err
	}
	frame, err := httpdto.NewEnvelope(httpdto.EventReceiveMessage, httpdto.MessageFromDomain(stored))
	if err != nil {
		return domain.Message{}, err
	}
	if err := s.pusher.Push(ctx, stored.ReceiverID, frame); err != nil {
		s.logger.Ctx(ctx).Error("push failed", zap.String("message_id", stored.ID), zap.Error(err))
		return stored, err
	}
	s.metrics.PushesTotal.Inc()
	return stored, nil
}

func validateOutgoing(out domain.OutgoingMessage) error {
	switch {
	case out.Sender.UserID == "" || out.Receiver.UserID == "":
		return fmt.Errorf("sender and receiver are required: %w", chat_errors.ErrInvalidInput)
	case !out.Sender.Role.Valid() || !out.Receiver.Role.Valid():
		return fmt.Errorf("unknown participant role: %w", chat_errors.ErrInvalidInput)
	case strings.TrimSpace(out.Text) == "":
		return fmt.Errorf("text is required: %w", chat_errors.ErrInvalidInput)
	case len(out.Text) > maxTextLength:
		return fmt.Errorf("text longer than %d bytes: %w", maxTextLength, chat_errors.ErrInvalidInput)
	case out.Sender.UserID == out.Receiver.UserID:
		return fmt.Errorf("cannot message yourself: %w", chat_errors.ErrInvalidInput)
	case !domain.CanMessage(out.Sender.Role, out.Receiver.Role):
		return fmt.Errorf("%s cannot message %s: %w", out.Sender.Role, out.Receiver.Role, chat_errors.ErrForbidden)
	}
	return nil
}
