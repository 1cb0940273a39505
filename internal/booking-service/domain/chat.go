package domain

import (
	"strings"
	"time"
)

const maxMessageLength = 2000

// Message is a chat message between the passenger and the driver of a
// booking.
type Message struct {
	id        string
	bookingID string
	senderID  string
	text      string
	read      bool
	createdAt time.Time
}

// NewMessage creates a new unread chat message with validation
func NewMessage(bookingID, senderID, text string) (*Message, error) {
	if bookingID == "" {
		return nil, NewValidationError("booking_id", "must not be empty")
	}
	if senderID == "" {
		return nil, NewValidationError("sender_id", "must not be empty")
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, NewValidationError("message", "must not be empty")
	}
	if len(text) > maxMessageLength {
		return nil, NewValidationError("message", "too long")
	}

	return &Message{
		bookingID: bookingID,
		senderID:  senderID,
		text:      text,
		createdAt: time.Now(),
	}, nil
}

// ReconstructMessage reconstructs a message from persistence
func ReconstructMessage(id, bookingID, senderID, text string, read bool, createdAt time.Time) *Message {
	return &Message{
		id:        id,
		bookingID: bookingID,
		senderID:  senderID,
		text:      text,
		read:      read,
		createdAt: createdAt,
	}
}

func (m *Message) ID() string           { return m.id }
func (m *Message) BookingID() string    { return m.bookingID }
func (m *Message) SenderID() string     { return m.senderID }
func (m *Message) Text() string         { return m.text }
func (m *Message) Read() bool           { return m.read }
func (m *Message) CreatedAt() time.Time { return m.createdAt }

// SetID sets the message ID (used after persistence)
func (m *Message) SetID(id string) {
	m.id = id
}
