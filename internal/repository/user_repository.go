package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"storefront-chat/internal/domain"
	chat_errors "storefront-chat/pkg/errors"
)

type PostgresUserRepository struct {
	db *pgxpool.Pool
}

func NewUserRepository(db *pgxpool.Pool) *PostgresUserRepository {
	return &PostgresUserRepository{db: db}
}

func (r *PostgresUserRepository) GetUserByID(ctx context.Context, id string) (domain.User, error) {
	var u domain.User
	var role string
	err := r.db.QueryRow(ctx, `SELECT id, name, role, email FROM chat_users WHERE id = $1`, id).
		Scan(&u.ID, &u.Name, &role, &u.Email)
	if err != nil {
		if isNoRows(err) {
			return domain.User{}, chat_errors.ErrNotFound
		}
		return domain.User{}, err
	}
	u.Role = domain.Role(role)
	return u, nil
}

func (r *PostgresUserRepository) ListUsersByRole(ctx context.Context, role domain.Role) ([]domain.User, error) {
	rows, err := r.db.Query(ctx, `SELECT id, name, role, email FROM chat_users WHERE role = $1 ORDER BY name`, string(role))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := []domain.User{}
	for rows.Next() {
		var u domain.User
		var r string
		if err := rows.Scan(&u.ID, &u.Name, &r, &u.Email); err != nil {
			return nil, err
		}
		u.Role = domain.Role(r)
		users = append(users, u)
	}
	return users, rows.Err()
}
