package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"storefront-chat/internal/domain"
)

const messageColumns = `id, sender_id, sender_role, receiver_id, receiver_role, text, COALESCE(client_message_id, ''), created_at`

type PostgresMessageRepository struct {
	db *pgxpool.Pool
}

func NewMessageRepository(db *pgxpool.Pool) *PostgresMessageRepository {
	return &PostgresMessageRepository{db: db}
}

func (r *PostgresMessageRepository) Create(ctx context.Context, m domain.Message) (domain.Message, bool, error) {
	_, err := r.db.Exec(ctx,
		`INSERT INTO chat_messages (id, sender_id, sender_role, receiver_id, receiver_role, text, client_message_id, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		m.ID, m.SenderID, string(m.SenderRole), m.ReceiverID, string(m.ReceiverRole), m.Text,
		nullString(m.ClientMessageID), m.CreatedAt)
	if err == nil {
		return m, true, nil
	}
	if !isUniqueViolation(err) || m.ClientMessageID == "" {
		return domain.Message{}, false, err
	}

	row := r.db.QueryRow(ctx,
		`SELECT `+messageColumns+` FROM chat_messages WHERE sender_id = $1 AND client_message_id = $2`,
		m.SenderID, m.ClientMessageID)
	existing, err := scanMessage(row)
	if err != nil {
		return domain.Message{}, false, err
	}
	return existing, false, nil
}

func (r *PostgresMessageRepository) GetConversation(ctx context.Context, a, b string) ([]domain.Message, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+messageColumns+` FROM chat_messages
		 WHERE (sender_id = $1 AND receiver_id = $2) OR (sender_id = $2 AND receiver_id = $1)
		 ORDER BY created_at ASC, id ASC`, a, b)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	messages := []domain.Message{}
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

func scanMessage(row pgx.Row) (domain.Message, error) {
	var m domain.Message
	var senderRole, receiverRole string
	var createdAt time.Time
	if err := row.Scan(&m.ID, &m.SenderID, &senderRole, &m.ReceiverID, &receiverRole, &m.Text,
		&m.ClientMessageID, &createdAt); err != nil {
		return domain.Message{}, err
	}
	m.SenderRole = domain.Role(senderRole)
	m.ReceiverRole = domain.Role(receiverRole)
	m.CreatedAt = createdAt.UTC()
	m.State = domain.DeliveryStateSent
	return m, nil
}
