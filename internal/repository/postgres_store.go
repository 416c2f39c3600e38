package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore is the relay Store backed by a pgx pool.
type PostgresStore struct {
	*PostgresUserRepository
	*PostgresMessageRepository
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{
		PostgresUserRepository:    NewUserRepository(pool),
		PostgresMessageRepository: NewMessageRepository(pool),
		pool:                      pool,
	}
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}
