package domain

import (
	"fmt"

	chat_errors "storefront-chat/pkg/errors"
)

type Role string

const (
	RoleCustomer      Role = "customer"
	RoleAdmin         Role = "admin"
	RoleStoreManager  Role = "storeManager"
	RoleDeliveryAgent Role = "deliveryAgent"
)

var roles = []Role{RoleCustomer, RoleAdmin, RoleStoreManager, RoleDeliveryAgent}

// contactFilters lists, per role, the counterpart roles offered as chat
// filters. The first entry is the filter selected when the chat opens.
var contactFilters = map[Role][]Role{
	RoleCustomer:      {RoleAdmin, RoleDeliveryAgent, RoleStoreManager},
	RoleStoreManager:  {RoleCustomer, RoleAdmin, RoleDeliveryAgent},
	RoleDeliveryAgent: {RoleCustomer, RoleAdmin},
	RoleAdmin:         {RoleCustomer, RoleStoreManager, RoleDeliveryAgent},
}

func Roles() []Role {
	out := make([]Role, len(roles))
	copy(out, roles)
	return out
}

func (r Role) Valid() bool {
	for _, known := range roles {
		if r == known {
			return true
		}
	}
	return false
}

func (r Role) String() string {
	return string(r)
}

func ParseRole(value string) (Role, error) {
	r := Role(value)
	if !r.Valid() {
		return "", fmt.Errorf("unknown role %q: %w", value, chat_errors.ErrInvalidInput)
	}
	return r, nil
}

// ContactFilters returns the roles a user with role r may chat with.
func ContactFilters(r Role) []Role {
	filters := contactFilters[r]
	out := make([]Role, len(filters))
	copy(out, filters)
	return out
}

func DefaultFilter(r Role) (Role, bool) {
	filters := contactFilters[r]
	if len(filters) == 0 {
		return "", false
	}
	return filters[0], true
}

// CanContact reports whether role r may open chats with counterparts of role filter.
func CanContact(r, filter Role) bool {
	for _, f := range contactFilters[r] {
		if f == filter {
			return true
		}
	}
	return false
}

// DeliveryState tracks a displayed message through the optimistic send flow.
type DeliveryState string

const (
	DeliveryStatePending DeliveryState = "PENDING"
	DeliveryStateSent    DeliveryState = "SENT"
	DeliveryStateFailed  DeliveryState = "FAILED"
)

// CanMessage reports whether a and b may exchange messages. Either side
// listing the other as a filter is enough, so every opened chat can be answered.
func CanMessage(a, b Role) bool {
	return CanContact(a, b) || CanContact(b, a)
}
