package chat

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"storefront-chat/internal/domain"
	"storefront-chat/internal/realtime"
	chat_errors "storefront-chat/pkg/errors"
	"storefront-chat/pkg/logger"
)

// Chat ties the directory, the conversation view and the realtime room of
// one signed-in user together.
type Chat struct {
	backend   Backend
	transport realtime.Transport
	log       *logger.Logger

	mu        sync.Mutex
	session   domain.Session
	directory *Directory
	view      *ConversationView
	filter    domain.Role
	selected  *domain.Contact

	listeners map[int]Listener
	detach    map[int]func()
	nextLID   int
}

func New(session domain.Session, backend Backend, transport realtime.Transport, l *logger.Logger) (*Chat, error) {
	if err := session.Validate(); err != nil {
		return nil, err
	}
	if l == nil {
		l = logger.NewNop()
	}
	c := &Chat{
		backend:   backend,
		transport: transport,
		log:       l.Named("chat"),
		listeners: make(map[int]Listener),
	}
	c.bind(session)
	return c, nil
}

func (c *Chat) bind(session domain.Session) {
	c.session = session
	c.directory = NewDirectory(c.backend, session.User.Role, c.log)
	c.view = NewConversationView(session.User, c.backend, c.backend, c.transport, c.log)
	c.detach = make(map[int]func(), len(c.listeners))
	for id, l := range c.listeners {
		c.detach[id] = c.view.OnChange(l)
	}
	c.filter, _ = domain.DefaultFilter(session.User.Role)
	c.selected = nil
}

// Start joins the user's room and loads the default filter.
func (c *Chat) Start(ctx context.Context) error {
	c.mu.Lock()
	user := c.session.User
	filter := c.filter
	c.mu.Unlock()

	if err := c.transport.JoinRoom(ctx, user.ID, user.Role); err != nil {
		return fmt.Errorf("join room: %w", err)
	}
	c.log.Info("chat started", zap.String("user_id", user.ID), zap.String("role", string(user.Role)))
	if filter != "" {
		c.SetFilter(ctx, filter)
	}
	return nil
}

// Rejoin switches to session when its identity differs from the current
// one. The previous conversation is discarded.
func (c *Chat) Rejoin(ctx context.Context, session domain.Session) error {
	if err := session.Validate(); err != nil {
		return err
	}
	c.mu.Lock()
	current := c.session.User
	if current.ID == session.User.ID && current.Role == session.User.Role {
		c.session.Token = session.Token
		c.mu.Unlock()
		return nil
	}
	old := c.view
	c.bind(session)
	c.mu.Unlock()

	old.Close()
	c.log.Info("identity changed", zap.String("from", current.ID), zap.String("to", session.User.ID))
	return c.Start(ctx)
}

// SetFilter clears the selected contact and loads contacts for role.
func (c *Chat) SetFilter(ctx context.Context, role domain.Role) []domain.Contact {
	c.mu.Lock()
	c.filter = role
	c.selected = nil
	view := c.view
	directory := c.directory
	c.mu.Unlock()

	view.Reset()
	return directory.Load(ctx, role)
}

// Select opens the conversation with a contact from the current list. An
// unknown contact is an error. A failed or stale history load leaves the
// conversation open and empty; the returned error only reports it.
func (c *Chat) Select(ctx context.Context, contactID string) error {
	c.mu.Lock()
	directory := c.directory
	view := c.view
	c.mu.Unlock()

	contact, ok := directory.Find(contactID)
	if !ok {
		return fmt.Errorf("contact %s: %w", contactID, chat_errors.ErrNotFound)
	}

	c.mu.Lock()
	c.selected = &contact
	c.mu.Unlock()

	return view.Open(ctx, contact)
}

func (c *Chat) Send(ctx context.Context, text string) (domain.Message, error) {
	return c.View().Send(ctx, text)
}

func (c *Chat) Retry(ctx context.Context, id string) error {
	return c.View().Retry(ctx, id)
}

func (c *Chat) Selected() (domain.Contact, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.selected == nil {
		return domain.Contact{}, false
	}
	return *c.selected, true
}

// OnChange registers l on the current conversation view and on every view
// created by a later Rejoin. The returned function removes it.
func (c *Chat) OnChange(l Listener) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextLID
	c.nextLID++
	c.listeners[id] = l
	c.detach[id] = c.view.OnChange(l)
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.listeners, id)
		if off, ok := c.detach[id]; ok {
			off()
			delete(c.detach, id)
		}
	}
}

// View returns the current conversation view. Rejoin replaces it; use
// Chat.OnChange rather than View().OnChange to keep listening across that.
func (c *Chat) View() *ConversationView {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.view
}

func (c *Chat) Directory() *Directory {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.directory
}

func (c *Chat) Filter() domain.Role {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.filter
}

func (c *Chat) Filters() []domain.Role {
	c.mu.Lock()
	defer c.mu.Unlock()
	return domain.ContactFilters(c.session.User.Role)
}

func (c *Chat) Session() domain.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// Close releases the view and waits for in-flight sends.
func (c *Chat) Close() {
	view := c.View()
	view.Close()
	view.Wait()
}
