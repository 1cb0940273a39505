package service

import (
	"context"
	"fmt"
	"time"

	"carpool/internal/booking-service/domain"
	"carpool/internal/booking-service/ledger"
	"carpool/pkg/logger"
)

// CreateRideCommand represents the input for posting a ride
type CreateRideCommand struct {
	FromLocation string
	ToLocation   string
	Departure    time.Time
	Seats        int
	PricePerSeat float64
	CarModel     string
	Description  string
}

// RideService manages ride offers: posting, search, cancellation with
// its booking cascade, and completion.
type RideService struct {
	rides    domain.RideRepository
	bookings domain.BookingRepository
	ledger   *ledger.Ledger
	notifier domain.Notifier
	log      logger.Logger
}

func NewRideService(
	rides domain.RideRepository,
	bookings domain.BookingRepository,
	ledger *ledger.Ledger,
	notifier domain.Notifier,
	log logger.Logger,
) *RideService {
	return &RideService{
		rides:    rides,
		bookings: bookings,
		ledger:   ledger,
		notifier: notifier,
		log:      log,
	}
}

// Create posts a new ride offer for a driver.
func (s *RideService) Create(ctx context.Context, driverID string, cmd CreateRideCommand) (*domain.Ride, error) {
	ride, err := domain.NewRide(
		driverID,
		cmd.FromLocation,
		cmd.ToLocation,
		cmd.Departure,
		cmd.Seats,
		cmd.PricePerSeat,
		cmd.CarModel,
		cmd.Description,
	)
	if err != nil {
		return nil, err
	}

	if err := s.rides.Save(ctx, ride); err != nil {
		return nil, fmt.Errorf("save ride: %w", err)
	}

	s.log.WithFields(logger.LogFields{
		"ride_id":   ride.ID(),
		"driver_id": driverID,
		"seats":     cmd.Seats,
	}).Info("ride_created", "Ride posted")

	return ride, nil
}

// Get returns a single ride.
func (s *RideService) Get(ctx context.Context, rideID string) (*domain.Ride, error) {
	ride, err := s.rides.FindByID(ctx, rideID)
	if err != nil {
		return nil, fmt.Errorf("find ride %s: %w", rideID, err)
	}
	return ride, nil
}

// Search finds active rides by route substring and departure date.
func (s *RideService) Search(ctx context.Context, from, to string, date time.Time) ([]*domain.Ride, error) {
	return s.rides.Search(ctx, from, to, date)
}

// ListByDriver returns the rides a driver has offered.
func (s *RideService) ListByDriver(ctx context.Context, driverID string) ([]*domain.Ride, error) {
	return s.rides.ListByDriver(ctx, driverID)
}

// Cancel cancels a ride and cascades to all its non-cancelled
// bookings: each one transitions to cancelled and its seats are
// released, so the capacity invariant holds even on a dead ride.
// Cancelling an already-cancelled ride is a no-op success.
func (s *RideService) Cancel(ctx context.Context, driverID, rideID string) error {
	ride, err := s.rides.FindByID(ctx, rideID)
	if err != nil {
		return fmt.Errorf("find ride %s: %w", rideID, err)
	}
	if !ride.IsOwnedBy(driverID) {
		return fmt.Errorf("user %s does not own ride %s: %w", driverID, rideID, domain.ErrForbidden)
	}

	ok, err := s.rides.TransitionStatus(ctx, rideID, domain.RideStatusActive, domain.RideStatusCancelled)
	if err != nil {
		return fmt.Errorf("cancel ride %s: %w", rideID, err)
	}
	if !ok {
		current, err := s.rides.FindByID(ctx, rideID)
		if err != nil {
			return fmt.Errorf("find ride %s: %w", rideID, err)
		}
		if current.Status() == domain.RideStatusCancelled {
			return nil
		}
		return domain.NewValidationError("status", fmt.Sprintf("ride is %s and cannot be cancelled", current.Status()))
	}

	active, err := s.bookings.ListActiveByRide(ctx, rideID)
	if err != nil {
		return fmt.Errorf("list bookings for ride %s: %w", rideID, err)
	}

	for _, booking := range active {
		cancelled, err := s.bookings.TransitionStatus(ctx, booking.ID(),
			[]domain.BookingStatus{domain.BookingStatusPending, domain.BookingStatusConfirmed},
			domain.BookingStatusCancelled)
		if err != nil {
			return fmt.Errorf("cascade cancel booking %s: %w", booking.ID(), err)
		}
		if !cancelled {
			// A concurrent cancellation beat the cascade; its path
			// already released the seats.
			continue
		}
		if err := s.ledger.Release(ctx, rideID, booking.Seats()); err != nil {
			s.log.WithFields(logger.LogFields{
				"booking_id": booking.ID(),
				"ride_id":    rideID,
				"seats":      booking.Seats(),
			}).Error("cascade_release_failed", err)
			return fmt.Errorf("booking %s cancelled but seats not released on ride %s: %w",
				booking.ID(), rideID, domain.ErrInconsistentState)
		}

		s.notifier.Notify(ctx, domain.Event{
			Type:        domain.EventBookingCancelled,
			RideID:      rideID,
			BookingID:   booking.ID(),
			ActorID:     driverID,
			RecipientID: booking.PassengerID(),
			OccurredAt:  time.Now(),
			Data:        map[string]interface{}{"reason": "ride cancelled"},
		})
	}

	s.log.WithFields(logger.LogFields{
		"ride_id":           rideID,
		"driver_id":         driverID,
		"cascaded_bookings": len(active),
	}).Info("ride_cancelled", "Ride cancelled with booking cascade")

	s.notifier.Notify(ctx, domain.Event{
		Type:       domain.EventRideCancelled,
		RideID:     rideID,
		ActorID:    driverID,
		OccurredAt: time.Now(),
	})
	return nil
}

// Complete marks a ride as completed once its departure time has
// elapsed.
func (s *RideService) Complete(ctx context.Context, driverID, rideID string) error {
	ride, err := s.rides.FindByID(ctx, rideID)
	if err != nil {
		return fmt.Errorf("find ride %s: %w", rideID, err)
	}
	if !ride.IsOwnedBy(driverID) {
		return fmt.Errorf("user %s does not own ride %s: %w", driverID, rideID, domain.ErrForbidden)
	}
	if !ride.HasDeparted(time.Now()) {
		return domain.NewValidationError("departure", "ride has not departed yet")
	}

	ok, err := s.rides.TransitionStatus(ctx, rideID, domain.RideStatusActive, domain.RideStatusCompleted)
	if err != nil {
		return fmt.Errorf("complete ride %s: %w", rideID, err)
	}
	if !ok {
		return domain.NewValidationError("status", "ride is not active")
	}

	s.log.WithFields(logger.LogFields{
		"ride_id":   rideID,
		"driver_id": driverID,
	}).Info("ride_completed", "Ride completed")

	s.notifier.Notify(ctx, domain.Event{
		Type:       domain.EventRideCompleted,
		RideID:     rideID,
		ActorID:    driverID,
		OccurredAt: time.Now(),
	})
	return nil
}
