package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"cabride/internal/domain"
	"cabride/internal/repository"
)

// ChatRepository is a PostgreSQL implementation of repository.ChatRepository.
type ChatRepository struct {
	q Querier
}

var _ repository.ChatRepository = (*ChatRepository)(nil)

// NewChatRepository creates a new PostgreSQL chat repository.
func NewChatRepository(db *sql.DB) *ChatRepository {
	return &ChatRepository{q: db}
}

// NewChatRepositoryWithTx creates a chat repository using a transaction.
func NewChatRepositoryWithTx(tx *sql.Tx) *ChatRepository {
	return &ChatRepository{q: tx}
}

// EnsureSession returns the ride's chat session, creating it if absent.
func (r *ChatRepository) EnsureSession(ctx context.Context, rideID string) (*domain.ChatSession, error) {
	query := `
		WITH session AS (
			INSERT INTO chat_sessions (id, ride_id, created_at)
			VALUES ($1, $2, $3)
			ON CONFLICT (ride_id) DO UPDATE SET ride_id = EXCLUDED.ride_id
			RETURNING id, ride_id, created_at
		), link AS (
			UPDATE rides SET chat_session_id = session.id
			FROM session
			WHERE rides.id = session.ride_id AND rides.chat_session_id IS NULL
		)
		SELECT id, ride_id, created_at FROM session
	`

	var session domain.ChatSession
	err := r.q.QueryRowContext(ctx, query, uuid.New().String(), rideID, time.Now().UTC()).Scan(
		&session.ID,
		&session.RideID,
		&session.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// Append stores msg at the end of the ride's session.
func (r *ChatRepository) Append(ctx context.Context, msg *domain.ChatMessage) error {
	query := `
		WITH session AS (
			INSERT INTO chat_sessions (id, ride_id, created_at)
			VALUES ($1, $2, $6)
			ON CONFLICT (ride_id) DO UPDATE SET ride_id = EXCLUDED.ride_id
			RETURNING id, ride_id
		), link AS (
			UPDATE rides SET chat_session_id = session.id
			FROM session
			WHERE rides.id = session.ride_id AND rides.chat_session_id IS NULL
		)
		INSERT INTO chat_messages (id, session_id, sender_id, text, created_at)
		SELECT $3, session.id, $4, $5, $6 FROM session
	`

	_, err := r.q.ExecContext(ctx, query,
		uuid.New().String(), msg.RideID, msg.ID, msg.SenderID, msg.Text, msg.Timestamp)
	return err
}

// History returns the ride's messages in append order.
func (r *ChatRepository) History(ctx context.Context, rideID string) ([]domain.ChatMessage, error) {
	query := `
		SELECT m.id, s.ride_id, m.sender_id, u.username, m.text, m.created_at
		FROM chat_messages m
		JOIN chat_sessions s ON s.id = m.session_id
		JOIN users u ON u.id = m.sender_id
		WHERE s.ride_id = $1
		ORDER BY m.seq ASC
	`

	rows, err := r.q.QueryContext(ctx, query, rideID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	messages := []domain.ChatMessage{}
	for rows.Next() {
		var msg domain.ChatMessage
		if err := rows.Scan(&msg.ID, &msg.RideID, &msg.SenderID, &msg.SenderName, &msg.Text, &msg.Timestamp); err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}
