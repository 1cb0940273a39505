package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"carpool/internal/booking-service/domain"

	"github.com/google/uuid"
)

type messageRecord struct {
	id        string
	bookingID string
	senderID  string
	text      string
	read      bool
	createdAt time.Time
}

// ChatRepository stores chat messages in memory.
type ChatRepository struct {
	mu       sync.RWMutex
	messages map[string]*messageRecord
}

func NewChatRepository() *ChatRepository {
	return &ChatRepository{
		messages: make(map[string]*messageRecord),
	}
}

func (r *ChatRepository) Save(ctx context.Context, message *domain.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if message.ID() == "" {
		message.SetID(uuid.NewString())
	}
	r.messages[message.ID()] = &messageRecord{
		id:        message.ID(),
		bookingID: message.BookingID(),
		senderID:  message.SenderID(),
		text:      message.Text(),
		read:      message.Read(),
		createdAt: message.CreatedAt(),
	}
	return nil
}

func (r *ChatRepository) ListByBooking(ctx context.Context, bookingID string) ([]*domain.Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var messages []*domain.Message
	for _, rec := range r.messages {
		if rec.bookingID == bookingID {
			messages = append(messages, domain.ReconstructMessage(
				rec.id, rec.bookingID, rec.senderID, rec.text, rec.read, rec.createdAt,
			))
		}
	}
	sort.Slice(messages, func(i, j int) bool {
		return messages[i].CreatedAt().Before(messages[j].CreatedAt())
	})
	return messages, nil
}

func (r *ChatRepository) MarkRead(ctx context.Context, bookingID, readerID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, rec := range r.messages {
		if rec.bookingID == bookingID && rec.senderID != readerID && !rec.read {
			rec.read = true
		}
	}
	return nil
}
