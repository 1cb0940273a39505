package service

import (
	"context"
	"fmt"
	"time"

	"carpool/internal/booking-service/domain"
	"carpool/internal/booking-service/ledger"
	"carpool/pkg/logger"
)

// BookingService drives the booking lifecycle state machine. Seats are
// reserved at creation time, so a pending booking already holds its
// seats and approval is a pure status change. The seat ledger is the
// only path that touches a ride's available_seats.
type BookingService struct {
	bookings domain.BookingRepository
	rides    domain.RideRepository
	ledger   *ledger.Ledger
	notifier domain.Notifier
	log      logger.Logger
}

func NewBookingService(
	bookings domain.BookingRepository,
	rides domain.RideRepository,
	ledger *ledger.Ledger,
	notifier domain.Notifier,
	log logger.Logger,
) *BookingService {
	return &BookingService{
		bookings: bookings,
		rides:    rides,
		ledger:   ledger,
		notifier: notifier,
		log:      log,
	}
}

// Create books seats on a ride for a passenger. The seat decrement
// happens first via the ledger's conditional write; the booking row is
// inserted only after the seats are held, and a failed insert is
// compensated by releasing them again.
func (s *BookingService) Create(ctx context.Context, passengerID, rideID string, seats int) (*domain.Booking, error) {
	booking, err := domain.NewBooking(rideID, passengerID, seats)
	if err != nil {
		return nil, err
	}

	ride, err := s.rides.FindByID(ctx, rideID)
	if err != nil {
		return nil, fmt.Errorf("find ride %s: %w", rideID, err)
	}
	if ride.IsOwnedBy(passengerID) {
		return nil, domain.NewValidationError("ride_id", "cannot book your own ride")
	}
	if ride.HasDeparted(time.Now()) {
		return nil, domain.NewValidationError("departure", "ride has already departed")
	}

	exists, err := s.bookings.HasActiveBooking(ctx, rideID, passengerID)
	if err != nil {
		return nil, fmt.Errorf("check existing booking: %w", err)
	}
	if exists {
		return nil, domain.NewValidationError("ride_id", "you already have a booking on this ride")
	}

	if err := s.ledger.Reserve(ctx, rideID, seats); err != nil {
		return nil, err
	}

	if err := s.bookings.Save(ctx, booking); err != nil {
		// The seats are already held; give them back. If that also
		// fails the ride's counter is leaking and an operator has to
		// intervene, so log with everything needed to repair it.
		if relErr := s.ledger.Release(ctx, rideID, seats); relErr != nil {
			s.log.WithFields(logger.LogFields{
				"ride_id":      rideID,
				"passenger_id": passengerID,
				"seats":        seats,
				"save_error":   err.Error(),
			}).Error("booking_compensation_failed", relErr)
			return nil, fmt.Errorf("booking insert and seat release both failed on ride %s: %w", rideID, domain.ErrInconsistentState)
		}
		return nil, fmt.Errorf("save booking: %w", err)
	}

	s.log.WithFields(logger.LogFields{
		"booking_id":   booking.ID(),
		"ride_id":      rideID,
		"passenger_id": passengerID,
		"seats":        seats,
	}).Info("booking_created", "Booking created, seats reserved")

	s.notifier.Notify(ctx, domain.Event{
		Type:        domain.EventBookingCreated,
		RideID:      rideID,
		BookingID:   booking.ID(),
		ActorID:     passengerID,
		RecipientID: ride.DriverID(),
		OccurredAt:  time.Now(),
		Data:        map[string]interface{}{"seats": seats},
	})

	return booking, nil
}

// Approve confirms a pending booking. Seats were reserved at creation,
// so this is a status transition only.
func (s *BookingService) Approve(ctx context.Context, driverID, bookingID string) error {
	booking, ride, err := s.findForDriver(ctx, driverID, bookingID)
	if err != nil {
		return err
	}

	ok, err := s.bookings.TransitionStatus(ctx, bookingID,
		[]domain.BookingStatus{domain.BookingStatusPending}, domain.BookingStatusConfirmed)
	if err != nil {
		return fmt.Errorf("confirm booking %s: %w", bookingID, err)
	}
	if !ok {
		return domain.NewValidationError("status", "booking is not pending")
	}

	s.log.WithFields(logger.LogFields{
		"booking_id": bookingID,
		"ride_id":    ride.ID(),
	}).Info("booking_approved", "Booking confirmed by driver")

	s.notifier.Notify(ctx, domain.Event{
		Type:        domain.EventBookingApproved,
		RideID:      ride.ID(),
		BookingID:   bookingID,
		ActorID:     driverID,
		RecipientID: booking.PassengerID(),
		OccurredAt:  time.Now(),
	})
	return nil
}

// Reject declines a pending booking and returns its seats.
func (s *BookingService) Reject(ctx context.Context, driverID, bookingID string) error {
	booking, ride, err := s.findForDriver(ctx, driverID, bookingID)
	if err != nil {
		return err
	}

	ok, err := s.bookings.TransitionStatus(ctx, bookingID,
		[]domain.BookingStatus{domain.BookingStatusPending}, domain.BookingStatusCancelled)
	if err != nil {
		return fmt.Errorf("reject booking %s: %w", bookingID, err)
	}
	if !ok {
		return domain.NewValidationError("status", "booking is not pending")
	}

	if err := s.releaseSeats(ctx, booking); err != nil {
		return err
	}

	s.log.WithFields(logger.LogFields{
		"booking_id": bookingID,
		"ride_id":    ride.ID(),
	}).Info("booking_rejected", "Booking rejected, seats released")

	s.notifier.Notify(ctx, domain.Event{
		Type:        domain.EventBookingRejected,
		RideID:      ride.ID(),
		BookingID:   bookingID,
		ActorID:     driverID,
		RecipientID: booking.PassengerID(),
		OccurredAt:  time.Now(),
	})
	return nil
}

// Cancel cancels a pending or confirmed booking. Both the passenger
// and the ride's driver may cancel. Cancelling an already-cancelled
// booking is a no-op success; the conditional status transition
// guarantees the seats cannot be released twice.
func (s *BookingService) Cancel(ctx context.Context, actorID, bookingID string) error {
	booking, err := s.bookings.FindByID(ctx, bookingID)
	if err != nil {
		return fmt.Errorf("find booking %s: %w", bookingID, err)
	}
	ride, err := s.rides.FindByID(ctx, booking.RideID())
	if err != nil {
		return fmt.Errorf("find ride %s: %w", booking.RideID(), err)
	}
	if !booking.BelongsTo(actorID) && !ride.IsOwnedBy(actorID) {
		return fmt.Errorf("user %s is not a party to booking %s: %w", actorID, bookingID, domain.ErrForbidden)
	}

	ok, err := s.bookings.TransitionStatus(ctx, bookingID,
		[]domain.BookingStatus{domain.BookingStatusPending, domain.BookingStatusConfirmed},
		domain.BookingStatusCancelled)
	if err != nil {
		return fmt.Errorf("cancel booking %s: %w", bookingID, err)
	}
	if !ok {
		// Every non-cancelled status is in the from-set, so losing the
		// transition means the booking is already cancelled.
		s.log.WithFields(logger.LogFields{
			"booking_id": bookingID,
		}).Debug("booking_cancel_noop", "Booking already cancelled")
		return nil
	}

	if err := s.releaseSeats(ctx, booking); err != nil {
		return err
	}

	recipient := ride.DriverID()
	if actorID == ride.DriverID() {
		recipient = booking.PassengerID()
	}

	s.log.WithFields(logger.LogFields{
		"booking_id": bookingID,
		"ride_id":    ride.ID(),
		"actor_id":   actorID,
	}).Info("booking_cancelled", "Booking cancelled, seats released")

	s.notifier.Notify(ctx, domain.Event{
		Type:        domain.EventBookingCancelled,
		RideID:      ride.ID(),
		BookingID:   bookingID,
		ActorID:     actorID,
		RecipientID: recipient,
		OccurredAt:  time.Now(),
	})
	return nil
}

// ListByPassenger returns all bookings made by a passenger, newest first.
func (s *BookingService) ListByPassenger(ctx context.Context, passengerID string) ([]*domain.Booking, error) {
	return s.bookings.ListByPassenger(ctx, passengerID)
}

// PendingRequests returns the driver's approval inbox: pending
// bookings on rides the driver owns.
func (s *BookingService) PendingRequests(ctx context.Context, driverID string) ([]*domain.Booking, error) {
	return s.bookings.ListPendingByDriver(ctx, driverID)
}

func (s *BookingService) findForDriver(ctx context.Context, driverID, bookingID string) (*domain.Booking, *domain.Ride, error) {
	booking, err := s.bookings.FindByID(ctx, bookingID)
	if err != nil {
		return nil, nil, fmt.Errorf("find booking %s: %w", bookingID, err)
	}
	ride, err := s.rides.FindByID(ctx, booking.RideID())
	if err != nil {
		return nil, nil, fmt.Errorf("find ride %s: %w", booking.RideID(), err)
	}
	if !ride.IsOwnedBy(driverID) {
		return nil, nil, fmt.Errorf("user %s does not own ride %s: %w", driverID, ride.ID(), domain.ErrForbidden)
	}
	return booking, ride, nil
}

// releaseSeats returns a booking's seats after its status has already
// transitioned to cancelled. A failure here leaks seats, which is the
// one state an operator must repair by hand.
func (s *BookingService) releaseSeats(ctx context.Context, booking *domain.Booking) error {
	if err := s.ledger.Release(ctx, booking.RideID(), booking.Seats()); err != nil {
		s.log.WithFields(logger.LogFields{
			"booking_id": booking.ID(),
			"ride_id":    booking.RideID(),
			"seats":      booking.Seats(),
		}).Error("seat_release_failed", err)
		return fmt.Errorf("booking %s cancelled but seats not released on ride %s: %w",
			booking.ID(), booking.RideID(), domain.ErrInconsistentState)
	}
	return nil
}
