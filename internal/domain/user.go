package domain

import (
	"fmt"

	chat_errors "storefront-chat/pkg/errors"
)

// User is owned by the auth backend; the chat subsystem only reads it.
type User struct {
	ID    string `json:"_id"`
	Name  string `json:"name"`
	Role  Role   `json:"role"`
	Email string `json:"email,omitempty"`
}

// Session is the signed-in identity handed to the chat module.
type Session struct {
	User  User
	Token string
}

func (u User) Validate() error {
	if u.ID == "" {
		return fmt.Errorf("user id is required: %w", chat_errors.ErrInvalidInput)
	}
	if !u.Role.Valid() {
		return fmt.Errorf("user role %q: %w", u.Role, chat_errors.ErrInvalidInput)
	}
	return nil
}

func (s Session) Validate() error {
	return s.User.Validate()
}
