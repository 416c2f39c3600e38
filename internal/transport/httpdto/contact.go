package httpdto

import (
	"encoding/json"

	"storefront-chat/internal/domain"
	chat_errors "storefront-chat/pkg/errors"
)

type Contact struct {
	ID   string `json:"_id"`
	Name string `json:"name"`
	Role string `json:"role"`
}

func (c Contact) Validate() error {
	switch {
	case c.ID == "":
		return &chat_errors.DecodeError{Kind: "contact", Field: "_id", Reason: "missing"}
	case c.Name == "":
		return &chat_errors.DecodeError{Kind: "contact", Field: "name", Reason: "missing"}
	case !domain.Role(c.Role).Valid():
		return &chat_errors.DecodeError{Kind: "contact", Field: "role", Reason: "unknown role " + c.Role}
	}
	return nil
}

func ContactFromDomain(c domain.Contact) Contact {
	return Contact{ID: c.ID, Name: c.Name, Role: string(c.Role)}
}

// DecodeContacts strictly decodes a contact list response.
func DecodeContacts(data []byte) ([]domain.Contact, error) {
	if !isArray(data) {
		return nil, &chat_errors.DecodeError{Kind: "contacts", Reason: "expected array"}
	}
	var items []Contact
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, &chat_errors.DecodeError{Kind: "contacts", Err: err}
	}
	out := make([]domain.Contact, 0, len(items))
	for _, item := range items {
		if err := item.Validate(); err != nil {
			return nil, err
		}
		out = append(out, domain.Contact{ID: item.ID, Name: item.Name, Role: domain.Role(item.Role)})
	}
	return out, nil
}
