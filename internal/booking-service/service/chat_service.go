package service

import (
	"context"
	"fmt"
	"time"

	"carpool/internal/booking-service/domain"
	"carpool/pkg/logger"
)

// ChatService handles per-booking messaging between the passenger and
// the ride's driver.
type ChatService struct {
	chats    domain.ChatRepository
	bookings domain.BookingRepository
	rides    domain.RideRepository
	notifier domain.Notifier
	log      logger.Logger
}

func NewChatService(
	chats domain.ChatRepository,
	bookings domain.BookingRepository,
	rides domain.RideRepository,
	notifier domain.Notifier,
	log logger.Logger,
) *ChatService {
	return &ChatService{
		chats:    chats,
		bookings: bookings,
		rides:    rides,
		notifier: notifier,
		log:      log,
	}
}

// Send posts a message on a booking's chat. Only the booking's
// passenger and the ride's driver may write.
func (s *ChatService) Send(ctx context.Context, senderID, bookingID, text string) (*domain.Message, error) {
	message, err := domain.NewMessage(bookingID, senderID, text)
	if err != nil {
		return nil, err
	}

	counterpart, rideID, err := s.counterpart(ctx, senderID, bookingID)
	if err != nil {
		return nil, err
	}

	if err := s.chats.Save(ctx, message); err != nil {
		return nil, fmt.Errorf("save message: %w", err)
	}

	s.notifier.Notify(ctx, domain.Event{
		Type:        domain.EventChatMessage,
		RideID:      rideID,
		BookingID:   bookingID,
		ActorID:     senderID,
		RecipientID: counterpart,
		OccurredAt:  time.Now(),
		Data: map[string]interface{}{
			"message_id": message.ID(),
			"text":       message.Text(),
		},
	})

	return message, nil
}

// History returns a booking's messages oldest first.
func (s *ChatService) History(ctx context.Context, userID, bookingID string) ([]*domain.Message, error) {
	if _, _, err := s.counterpart(ctx, userID, bookingID); err != nil {
		return nil, err
	}
	return s.chats.ListByBooking(ctx, bookingID)
}

// MarkRead flags the counterpart's messages on a booking as read.
func (s *ChatService) MarkRead(ctx context.Context, readerID, bookingID string) error {
	if _, _, err := s.counterpart(ctx, readerID, bookingID); err != nil {
		return err
	}
	if err := s.chats.MarkRead(ctx, bookingID, readerID); err != nil {
		return fmt.Errorf("mark messages read: %w", err)
	}
	return nil
}

// counterpart verifies the user is a party to the booking and returns
// the other party plus the ride id.
func (s *ChatService) counterpart(ctx context.Context, userID, bookingID string) (string, string, error) {
	booking, err := s.bookings.FindByID(ctx, bookingID)
	if err != nil {
		return "", "", fmt.Errorf("find booking %s: %w", bookingID, err)
	}
	ride, err := s.rides.FindByID(ctx, booking.RideID())
	if err != nil {
		return "", "", fmt.Errorf("find ride %s: %w", booking.RideID(), err)
	}

	switch userID {
	case booking.PassengerID():
		return ride.DriverID(), ride.ID(), nil
	case ride.DriverID():
		return booking.PassengerID(), ride.ID(), nil
	default:
		return "", "", fmt.Errorf("user %s is not a party to booking %s: %w", userID, bookingID, domain.ErrForbidden)
	}
}
