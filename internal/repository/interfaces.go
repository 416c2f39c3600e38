package repository

import (
	"context"

	"storefront-chat/internal/domain"
)

type UserRepository interface {
	GetUserByID(ctx context.Context, id string) (domain.User, error)
	ListUsersByRole(ctx context.Context, role domain.Role) ([]domain.User, error)
}

type MessageRepository interface {
	// Create stores m. When m carries a client message id already stored
	// for the same sender, the stored message is returned with created=false.
	Create(ctx context.Context, m domain.Message) (stored domain.Message, created bool, err error)
	// GetConversation returns the messages exchanged between a and b in
	// either direction, oldest first.
	GetConversation(ctx context.Context, a, b string) ([]domain.Message, error)
}

// Store is everything the relay persists.
type Store interface {
	UserRepository
	MessageRepository
	Ping(ctx context.Context) error
	Close()
}
