package api

import (
	"context"
	"net/http"
	"net/url"

	"storefront-chat/internal/domain"
	"storefront-chat/internal/transport/httpdto"
)

// FetchContacts lists the chat counterparts with the given role.
func (c *Client) FetchContacts(ctx context.Context, role domain.Role) ([]domain.Contact, error) {
	data, err := c.do(ctx, http.MethodGet, "/chats/contacts/"+url.PathEscape(string(role)), nil)
	if err != nil {
		return nil, err
	}
	return httpdto.DecodeContacts(data)
}

// FetchHistory returns the conversation between userID and contactID in
// ascending creation order, as the server sends it.
func (c *Client) FetchHistory(ctx context.Context, userID, contactID string) ([]domain.Message, error) {
	path := "/chats/messages/" + url.PathEscape(userID) + "/" + url.PathEscape(contactID)
	data, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	return httpdto.DecodeMessages(data)
}

// SendMessage persists a message and returns the stored copy.
func (c *Client) SendMessage(ctx context.Context, out domain.OutgoingMessage) (domain.Message, error) {
	data, err := c.do(ctx, http.MethodPost, "/chats/send", httpdto.SendRequestFromOutgoing(out))
	if err != nil {
		return domain.Message{}, err
	}
	return httpdto.DecodeMessage(data)
}
