package websocket

import (
	"context"
	"errors"
	"fmt"

	"storefront-chat/internal/domain"
	"storefront-chat/internal/repository"
	chat_errors "storefront-chat/pkg/errors"
)

// RoomAuthorizer decides which room a connection may join.
type RoomAuthorizer struct {
	users repository.UserRepository
}

// NewRoomAuthorizer creates an authorizer. With a nil repository only the
// token subject is checked.
func NewRoomAuthorizer(users repository.UserRepository) *RoomAuthorizer {
	return &RoomAuthorizer{users: users}
}

// CanJoin checks that subject may join the room of userID acting as role.
// An empty subject means authentication is off.
func (a *RoomAuthorizer) CanJoin(ctx context.Context, subject, userID string, role domain.Role) error {
	if userID == "" || !role.Valid() {
		return fmt.Errorf("join needs a user id and a known role: %w", chat_errors.ErrInvalidInput)
	}
	if subject != "" && subject != userID {
		return fmt.Errorf("token subject cannot join room %s: %w", userID, chat_errors.ErrForbidden)
	}
	if a.users == nil {
		return nil
	}

	u, err := a.users.GetUserByID(ctx, userID)
	if errors.Is(err, chat_errors.ErrNotFound) {
		return fmt.Errorf("unknown user %s: %w", userID, chat_errors.ErrForbidden)
	}
	if err != nil {
		return err
	}
	if u.Role != role {
		return fmt.Errorf("user %s is not a %s: %w", userID, role, chat_errors.ErrForbidden)
	}
	return nil
}

// CanSend checks that subject may send as sender.
func (a *RoomAuthorizer) CanSend(subject string, sender domain.Participant) error {
	if subject != "" && subject != sender.UserID {
		return fmt.Errorf("token subject cannot send as %s: %w", sender.UserID, chat_errors.ErrForbidden)
	}
	return nil
}
