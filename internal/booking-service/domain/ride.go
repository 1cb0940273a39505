package domain

import (
	"strings"
	"time"
)

// RideStatus represents the state of a ride
type RideStatus string

const (
	RideStatusActive    RideStatus = "ACTIVE"
	RideStatusCompleted RideStatus = "COMPLETED"
	RideStatusCancelled RideStatus = "CANCELLED"
)

// String returns string representation of status
func (s RideStatus) String() string {
	return string(s)
}

// IsValid checks if status is valid
func (s RideStatus) IsValid() bool {
	switch s {
	case RideStatusActive, RideStatusCompleted, RideStatusCancelled:
		return true
	}
	return false
}

// IsTerminal reports whether no further transition is allowed.
func (s RideStatus) IsTerminal() bool {
	return s == RideStatusCompleted || s == RideStatusCancelled
}

// Ride is a driver's posted trip offer. availableSeats is mutated only
// through the seat ledger's conditional-write path; totalSeats is the
// capacity fixed at creation and never changes.
type Ride struct {
	id             string
	driverID       string
	fromLocation   string
	toLocation     string
	departure      time.Time
	totalSeats     int
	availableSeats int
	pricePerSeat   float64
	carModel       string
	description    string
	status         RideStatus
	createdAt      time.Time
	updatedAt      time.Time
}

// NewRide creates a new ride with validation
func NewRide(
	driverID string,
	fromLocation string,
	toLocation string,
	departure time.Time,
	seats int,
	pricePerSeat float64,
	carModel string,
	description string,
) (*Ride, error) {
	if driverID == "" {
		return nil, NewValidationError("driver_id", "must not be empty")
	}
	if strings.TrimSpace(fromLocation) == "" {
		return nil, NewValidationError("from_location", "must not be empty")
	}
	if strings.TrimSpace(toLocation) == "" {
		return nil, NewValidationError("to_location", "must not be empty")
	}
	if !departure.After(time.Now()) {
		return nil, NewValidationError("departure", "must be in the future")
	}
	if seats < 1 {
		return nil, NewValidationError("seats", "must be at least 1")
	}
	if pricePerSeat < 0 {
		return nil, NewValidationError("price", "must not be negative")
	}

	now := time.Now()
	return &Ride{
		driverID:       driverID,
		fromLocation:   strings.TrimSpace(fromLocation),
		toLocation:     strings.TrimSpace(toLocation),
		departure:      departure,
		totalSeats:     seats,
		availableSeats: seats,
		pricePerSeat:   pricePerSeat,
		carModel:       carModel,
		description:    description,
		status:         RideStatusActive,
		createdAt:      now,
		updatedAt:      now,
	}, nil
}

// ReconstructRide reconstructs a ride from persistence (used by repository)
func ReconstructRide(
	id string,
	driverID string,
	fromLocation string,
	toLocation string,
	departure time.Time,
	totalSeats int,
	availableSeats int,
	pricePerSeat float64,
	carModel string,
	description string,
	status RideStatus,
	createdAt time.Time,
	updatedAt time.Time,
) *Ride {
	return &Ride{
		id:             id,
		driverID:       driverID,
		fromLocation:   fromLocation,
		toLocation:     toLocation,
		departure:      departure,
		totalSeats:     totalSeats,
		availableSeats: availableSeats,
		pricePerSeat:   pricePerSeat,
		carModel:       carModel,
		description:    description,
		status:         status,
		createdAt:      createdAt,
		updatedAt:      updatedAt,
	}
}

// Query methods

// IsActive checks if the ride can still accept bookings
func (r *Ride) IsActive() bool {
	return r.status == RideStatusActive
}

// HasDeparted reports whether the departure time has elapsed.
func (r *Ride) HasDeparted(now time.Time) bool {
	return now.After(r.departure)
}

// IsOwnedBy checks ride ownership
func (r *Ride) IsOwnedBy(userID string) bool {
	return r.driverID == userID
}

// CanBeCancelled checks if the ride can still be cancelled
func (r *Ride) CanBeCancelled() bool {
	return !r.status.IsTerminal()
}

// Getters (encapsulation)

func (r *Ride) ID() string            { return r.id }
func (r *Ride) DriverID() string      { return r.driverID }
func (r *Ride) FromLocation() string  { return r.fromLocation }
func (r *Ride) ToLocation() string    { return r.toLocation }
func (r *Ride) Departure() time.Time  { return r.departure }
func (r *Ride) TotalSeats() int       { return r.totalSeats }
func (r *Ride) AvailableSeats() int   { return r.availableSeats }
func (r *Ride) PricePerSeat() float64 { return r.pricePerSeat }
func (r *Ride) CarModel() string      { return r.carModel }
func (r *Ride) Description() string   { return r.description }
func (r *Ride) Status() RideStatus    { return r.status }
func (r *Ride) CreatedAt() time.Time  { return r.createdAt }
func (r *Ride) UpdatedAt() time.Time  { return r.updatedAt }

// SetID sets the ride ID (used after persistence)
func (r *Ride) SetID(id string) {
	r.id = id
}
