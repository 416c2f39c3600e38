package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS chat_users (
		id    TEXT PRIMARY KEY,
		name  TEXT NOT NULL,
		role  TEXT NOT NULL,
		email TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE INDEX IF NOT EXISTS chat_users_role_idx ON chat_users (role, name)`,
	`CREATE TABLE IF NOT EXISTS chat_messages (
		id                TEXT PRIMARY KEY,
		sender_id         TEXT NOT NULL,
		sender_role       TEXT NOT NULL,
		receiver_id       TEXT NOT NULL,
		receiver_role     TEXT NOT NULL,
		text              TEXT NOT NULL,
		client_message_id TEXT,
		created_at        TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS chat_messages_client_idx
		ON chat_messages (sender_id, client_message_id)
		WHERE client_message_id IS NOT NULL`,
	`CREATE INDEX IF NOT EXISTS chat_messages_pair_idx
		ON chat_messages (sender_id, receiver_id, created_at)`,
}

var tables = []string{"chat_messages", "chat_users"}

// Migrate creates the relay tables and indexes if they are missing.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range schema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}

// DropAll removes every relay table.
func DropAll(ctx context.Context, pool *pgxpool.Pool) error {
	for _, table := range tables {
		if _, err := pool.Exec(ctx, "DROP TABLE IF EXISTS "+table+" CASCADE"); err != nil {
			return fmt.Errorf("failed to drop table %s: %w", table, err)
		}
	}
	return nil
}

// TableCounts reports the row count of every relay table that exists.
func TableCounts(ctx context.Context, pool *pgxpool.Pool) (map[string]int64, error) {
	counts := make(map[string]int64, len(tables))
	for _, table := range tables {
		var exists bool
		err := pool.QueryRow(ctx,
			`SELECT EXISTS (SELECT FROM information_schema.tables WHERE table_schema = 'public' AND table_name = $1)`,
			table).Scan(&exists)
		if err != nil {
			return nil, err
		}
		if !exists {
			continue
		}
		var n int64
		if err := pool.QueryRow(ctx, "SELECT COUNT(*) FROM "+table).Scan(&n); err != nil {
			return nil, err
		}
		counts[table] = n
	}
	return counts, nil
}
