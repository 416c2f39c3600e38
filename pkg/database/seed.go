package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"storefront-chat/internal/domain"
)

// DemoUsers is one or two users per role, enough to chat across every
// filter locally.
func DemoUsers() []domain.User {
	return []domain.User{
		{ID: "cust-1", Name: "Asha Customer", Role: domain.RoleCustomer, Email: "asha@example.com"},
		{ID: "cust-2", Name: "Ben Customer", Role: domain.RoleCustomer, Email: "ben@example.com"},
		{ID: "admin-1", Name: "Store Admin", Role: domain.RoleAdmin, Email: "admin@example.com"},
		{ID: "mgr-1", Name: "Maya Manager", Role: domain.RoleStoreManager, Email: "maya@example.com"},
		{ID: "agent-1", Name: "Dev Driver", Role: domain.RoleDeliveryAgent, Email: "dev@example.com"},
		{ID: "agent-2", Name: "Lee Rider", Role: domain.RoleDeliveryAgent, Email: "lee@example.com"},
	}
}

// Seed upserts users. It is safe to run repeatedly.
func Seed(ctx context.Context, pool *pgxpool.Pool, users []domain.User) error {
	for _, u := range users {
		if err := u.Validate(); err != nil {
			return fmt.Errorf("seed user %s: %w", u.ID, err)
		}
		_, err := pool.Exec(ctx,
			`INSERT INTO chat_users (id, name, role, email) VALUES ($1, $2, $3, $4)
			 ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, role = EXCLUDED.role, email = EXCLUDED.email`,
			u.ID, u.Name, string(u.Role), u.Email)
		if err != nil {
			return fmt.Errorf("seed user %s: %w", u.ID, err)
		}
	}
	return nil
}
