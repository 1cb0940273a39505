package domain

import (
	"context"
	"time"
)

// RideRepository persists rides. Status changes go through
// TransitionStatus, a conditional write guarded by the current status,
// so a terminal ride can never be reactivated by a stale writer.
type RideRepository interface {
	Save(ctx context.Context, ride *Ride) error
	FindByID(ctx context.Context, rideID string) (*Ride, error)

	// Search returns active rides whose locations contain the given
	// substrings (case-insensitive) departing on or after date,
	// ordered by departure time.
	Search(ctx context.Context, from, to string, date time.Time) ([]*Ride, error)
	ListByDriver(ctx context.Context, driverID string) ([]*Ride, error)

	// TransitionStatus atomically moves a ride from one status to
	// another. It returns false if the ride was not in the expected
	// status, without reporting an error.
	TransitionStatus(ctx context.Context, rideID string, from, to RideStatus) (bool, error)
}

// SeatStore is the durable-store surface the seat ledger works
// against: a snapshot read plus a compare-and-swap decrement and an
// unconditional increment of a ride's available seats.
type SeatStore interface {
	// SeatAvailability reads the current available seats and status.
	SeatAvailability(ctx context.Context, rideID string) (available int, status RideStatus, err error)

	// DecrementSeats subtracts seats from available_seats only if it
	// still equals expected. Returns false when the condition failed
	// because a concurrent writer got there first.
	DecrementSeats(ctx context.Context, rideID string, seats, expected int) (bool, error)

	// IncrementSeats adds seats back unconditionally.
	IncrementSeats(ctx context.Context, rideID string, seats int) error
}

// BookingRepository persists bookings.
type BookingRepository interface {
	Save(ctx context.Context, booking *Booking) error
	FindByID(ctx context.Context, bookingID string) (*Booking, error)

	ListByPassenger(ctx context.Context, passengerID string) ([]*Booking, error)

	// ListPendingByDriver returns pending bookings on rides owned by
	// the driver, i.e. the driver's approval inbox.
	ListPendingByDriver(ctx context.Context, driverID string) ([]*Booking, error)

	// ListActiveByRide returns all non-cancelled bookings for a ride.
	ListActiveByRide(ctx context.Context, rideID string) ([]*Booking, error)

	// HasActiveBooking reports whether the passenger already holds a
	// non-cancelled booking on the ride.
	HasActiveBooking(ctx context.Context, rideID, passengerID string) (bool, error)

	// TransitionStatus atomically moves a booking from one of the
	// given statuses to another. It returns false if the booking was
	// in none of the expected statuses.
	TransitionStatus(ctx context.Context, bookingID string, from []BookingStatus, to BookingStatus) (bool, error)
}

// ChatRepository persists per-booking chat messages.
type ChatRepository interface {
	Save(ctx context.Context, message *Message) error
	ListByBooking(ctx context.Context, bookingID string) ([]*Message, error)

	// MarkRead flags every unread message on the booking that was not
	// sent by the reader.
	MarkRead(ctx context.Context, bookingID, readerID string) error
}

// LocationRepository stores the latest reported driver positions.
type LocationRepository interface {
	Upsert(ctx context.Context, location *DriverLocation) error
	Find(ctx context.Context, driverID string) (*DriverLocation, error)
}
