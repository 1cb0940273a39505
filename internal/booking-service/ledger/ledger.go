// Package ledger is the sole authority over a ride's available-seat
// counter. Every reservation goes through a read followed by a
// conditional decrement against the store; a lost race is retried a
// bounded number of times before surfacing as a conflict.
package ledger

import (
	"context"
	"fmt"

	"carpool/internal/booking-service/domain"
	"carpool/pkg/logger"
)

const defaultMaxRetries = 3

// Ledger reserves and releases seats against a ride's capacity.
type Ledger struct {
	seats      domain.SeatStore
	log        logger.Logger
	maxRetries int
}

// New creates a ledger over the given seat store. maxRetries bounds
// how often a lost compare-and-swap is retried; values below 1 fall
// back to the default of 3.
func New(seats domain.SeatStore, log logger.Logger, maxRetries int) *Ledger {
	if maxRetries < 1 {
		maxRetries = defaultMaxRetries
	}
	return &Ledger{
		seats:      seats,
		log:        log,
		maxRetries: maxRetries,
	}
}

// Reserve atomically takes seats from the ride's available capacity.
// It fails with a CapacityError when the ride is not active or has
// fewer seats left than requested, and with ErrSeatConflict when the
// conditional write keeps losing against concurrent writers.
func (l *Ledger) Reserve(ctx context.Context, rideID string, seats int) error {
	if seats < 1 {
		return domain.NewValidationError("seats", "must be at least 1")
	}

	for attempt := 1; attempt <= l.maxRetries; attempt++ {
		available, status, err := l.seats.SeatAvailability(ctx, rideID)
		if err != nil {
			return fmt.Errorf("read seat availability: %w", err)
		}
		if status != domain.RideStatusActive {
			return &domain.CapacityError{
				RideID:    rideID,
				Requested: seats,
				Available: available,
				Reason:    fmt.Sprintf("ride is %s, not accepting bookings", status),
			}
		}
		if seats > available {
			return &domain.CapacityError{
				RideID:    rideID,
				Requested: seats,
				Available: available,
			}
		}

		ok, err := l.seats.DecrementSeats(ctx, rideID, seats, available)
		if err != nil {
			return fmt.Errorf("decrement seats: %w", err)
		}
		if ok {
			return nil
		}

		// Lost the race: someone changed available_seats between the
		// read and the write. Re-read and try again.
		l.log.WithFields(logger.LogFields{
			"ride_id": rideID,
			"attempt": attempt,
		}).Debug("seat_reserve_retry", "Conditional seat decrement lost race, retrying")
	}

	return fmt.Errorf("reserve %d seats on ride %s after %d attempts: %w",
		seats, rideID, l.maxRetries, domain.ErrSeatConflict)
}

// Release returns seats to the ride's available capacity. It is
// unconditional; callers guarantee it runs at most once per reserved
// booking by gating it behind a conditional status transition.
func (l *Ledger) Release(ctx context.Context, rideID string, seats int) error {
	if seats < 1 {
		return domain.NewValidationError("seats", "must be at least 1")
	}
	if err := l.seats.IncrementSeats(ctx, rideID, seats); err != nil {
		return fmt.Errorf("increment seats: %w", err)
	}
	return nil
}
