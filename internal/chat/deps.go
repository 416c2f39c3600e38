package chat

import (
	"context"

	"storefront-chat/internal/domain"
)

// ContactSource lists chat counterparts for a role filter.
type ContactSource interface {
	FetchContacts(ctx context.Context, role domain.Role) ([]domain.Contact, error)
}

// HistorySource returns a conversation in server order.
type HistorySource interface {
	FetchHistory(ctx context.Context, userID, contactID string) ([]domain.Message, error)
}

// Persister stores an outgoing message and returns the server copy.
type Persister interface {
	SendMessage(ctx context.Context, out domain.OutgoingMessage) (domain.Message, error)
}

// Backend is the REST surface the chat module needs. *api.Client satisfies it.
type Backend interface {
	ContactSource
	HistorySource
	Persister
}
