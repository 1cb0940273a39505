package domain

import (
	"time"
)

// BookingStatus represents the lifecycle state of a booking
type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "PENDING"
	BookingStatusConfirmed BookingStatus = "CONFIRMED"
	BookingStatusCancelled BookingStatus = "CANCELLED"
)

// String returns string representation of status
func (s BookingStatus) String() string {
	return string(s)
}

// IsValid checks if status is valid
func (s BookingStatus) IsValid() bool {
	switch s {
	case BookingStatusPending, BookingStatusConfirmed, BookingStatusCancelled:
		return true
	}
	return false
}

// IsTerminal reports whether no further transition is allowed.
// CONFIRMED is not terminal; a confirmed booking can still be cancelled.
func (s BookingStatus) IsTerminal() bool {
	return s == BookingStatusCancelled
}

// Booking is a passenger's seat reservation against a ride. The ride
// reference, passenger and seat count are immutable after creation;
// only the status moves.
type Booking struct {
	id          string
	rideID      string
	passengerID string
	seats       int
	status      BookingStatus
	createdAt   time.Time
	updatedAt   time.Time
}

// NewBooking creates a new pending booking with validation
func NewBooking(rideID, passengerID string, seats int) (*Booking, error) {
	if rideID == "" {
		return nil, NewValidationError("ride_id", "must not be empty")
	}
	if passengerID == "" {
		return nil, NewValidationError("passenger_id", "must not be empty")
	}
	if seats < 1 {
		return nil, NewValidationError("seats", "must be at least 1")
	}

	now := time.Now()
	return &Booking{
		rideID:      rideID,
		passengerID: passengerID,
		seats:       seats,
		status:      BookingStatusPending,
		createdAt:   now,
		updatedAt:   now,
	}, nil
}

// ReconstructBooking reconstructs a booking from persistence (used by repository)
func ReconstructBooking(
	id string,
	rideID string,
	passengerID string,
	seats int,
	status BookingStatus,
	createdAt time.Time,
	updatedAt time.Time,
) *Booking {
	return &Booking{
		id:          id,
		rideID:      rideID,
		passengerID: passengerID,
		seats:       seats,
		status:      status,
		createdAt:   createdAt,
		updatedAt:   updatedAt,
	}
}

// Query methods

// IsPending checks if the booking awaits driver action
func (b *Booking) IsPending() bool {
	return b.status == BookingStatusPending
}

// IsCancelled checks if the booking is cancelled
func (b *Booking) IsCancelled() bool {
	return b.status == BookingStatusCancelled
}

// CanBeCancelled checks if the booking can still be cancelled
func (b *Booking) CanBeCancelled() bool {
	return !b.status.IsTerminal()
}

// BelongsTo checks booking ownership
func (b *Booking) BelongsTo(userID string) bool {
	return b.passengerID == userID
}

// Getters (encapsulation)

func (b *Booking) ID() string            { return b.id }
func (b *Booking) RideID() string        { return b.rideID }
func (b *Booking) PassengerID() string   { return b.passengerID }
func (b *Booking) Seats() int            { return b.seats }
func (b *Booking) Status() BookingStatus { return b.status }
func (b *Booking) CreatedAt() time.Time  { return b.createdAt }
func (b *Booking) UpdatedAt() time.Time  { return b.updatedAt }

// SetID sets the booking ID (used after persistence)
func (b *Booking) SetID(id string) {
	b.id = id
}

// SetStatus overwrites the in-memory status after the repository has
// performed the conditional transition. It does not persist anything.
func (b *Booking) SetStatus(status BookingStatus) {
	b.status = status
	b.updatedAt = time.Now()
}
