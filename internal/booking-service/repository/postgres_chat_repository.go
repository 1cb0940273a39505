package repository

import (
	"context"
	"fmt"
	"time"

	"carpool/internal/booking-service/domain"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresChatRepository implements domain.ChatRepository
type PostgresChatRepository struct {
	db *pgxpool.Pool
}

// NewPostgresChatRepository creates a new PostgreSQL repository
func NewPostgresChatRepository(db *pgxpool.Pool) *PostgresChatRepository {
	return &PostgresChatRepository{
		db: db,
	}
}

// Save persists a new chat message
func (r *PostgresChatRepository) Save(ctx context.Context, message *domain.Message) error {
	var id string
	err := r.db.QueryRow(ctx, `
		INSERT INTO chat_messages (
			booking_id, sender_id, message, read, created_at
		) VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`,
		message.BookingID(),
		message.SenderID(),
		message.Text(),
		message.Read(),
		message.CreatedAt(),
	).Scan(&id)
	if err != nil {
		return fmt.Errorf("insert chat message: %w", err)
	}

	message.SetID(id)
	return nil
}

// ListByBooking returns a booking's messages oldest first
func (r *PostgresChatRepository) ListByBooking(ctx context.Context, bookingID string) ([]*domain.Message, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, booking_id, sender_id, message, read, created_at
		FROM chat_messages
		WHERE booking_id = $1
		ORDER BY created_at ASC
	`, bookingID)
	if err != nil {
		return nil, fmt.Errorf("list chat messages: %w", err)
	}
	defer rows.Close()

	var messages []*domain.Message
	for rows.Next() {
		var (
			id        string
			bID       string
			senderID  string
			text      string
			read      bool
			createdAt time.Time
		)
		if err := rows.Scan(&id, &bID, &senderID, &text, &read, &createdAt); err != nil {
			return nil, fmt.Errorf("scan chat message: %w", err)
		}
		messages = append(messages, domain.ReconstructMessage(id, bID, senderID, text, read, createdAt))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chat messages: %w", err)
	}
	return messages, nil
}

// MarkRead flags unread counterpart messages as read
func (r *PostgresChatRepository) MarkRead(ctx context.Context, bookingID, readerID string) error {
	_, err := r.db.Exec(ctx, `
		UPDATE chat_messages
		SET read = TRUE
		WHERE booking_id = $1 AND sender_id <> $2 AND read = FALSE
	`, bookingID, readerID)
	if err != nil {
		return fmt.Errorf("mark chat messages read: %w", err)
	}
	return nil
}
