package chat

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"storefront-chat/internal/domain"
	chat_errors "storefront-chat/pkg/errors"
	"storefront-chat/pkg/logger"
)

// Directory lists the counterparts available under the active role filter.
// Nothing is cached across filters.
type Directory struct {
	source ContactSource
	role   domain.Role
	log    *logger.Logger

	mu       sync.Mutex
	gen      uint64
	filter   domain.Role
	contacts []domain.Contact
	lastErr  error
}

func NewDirectory(source ContactSource, role domain.Role, l *logger.Logger) *Directory {
	if l == nil {
		l = logger.NewNop()
	}
	return &Directory{source: source, role: role, log: l.Named("directory")}
}

// Load fetches the contacts for filter. Failures yield an empty list; the
// cause is available from LastError.
func (d *Directory) Load(ctx context.Context, filter domain.Role) []domain.Contact {
	d.mu.Lock()
	d.gen++
	gen := d.gen
	d.filter = filter
	d.contacts = nil
	d.mu.Unlock()

	contacts, err := d.fetch(ctx, filter)

	d.mu.Lock()
	defer d.mu.Unlock()
	if gen != d.gen {
		return cloneContacts(contacts)
	}
	d.lastErr = err
	if err != nil {
		d.log.Error("failed to load contacts", zap.String("filter", string(filter)), zap.Error(err))
		return []domain.Contact{}
	}
	d.contacts = contacts
	return cloneContacts(contacts)
}

func (d *Directory) fetch(ctx context.Context, filter domain.Role) ([]domain.Contact, error) {
	if !domain.CanContact(d.role, filter) {
		return nil, fmt.Errorf("role %s cannot chat with %s: %w", d.role, filter, chat_errors.ErrInvalidInput)
	}
	return d.source.FetchContacts(ctx, filter)
}

func (d *Directory) Contacts() []domain.Contact {
	d.mu.Lock()
	defer d.mu.Unlock()
	return cloneContacts(d.contacts)
}

func (d *Directory) Filter() domain.Role {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.filter
}

func (d *Directory) Find(id string) (domain.Contact, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, c := range d.contacts {
		if c.ID == id {
			return c, true
		}
	}
	return domain.Contact{}, false
}

func (d *Directory) LastError() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lastErr
}

func cloneContacts(in []domain.Contact) []domain.Contact {
	out := make([]domain.Contact, len(in))
	copy(out, in)
	return out
}
