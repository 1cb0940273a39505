package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"carpool/internal/booking-service/domain"

	"github.com/google/uuid"
)

// bookingRecord is the mutable stored form of a booking.
type bookingRecord struct {
	id          string
	rideID      string
	passengerID string
	seats       int
	status      domain.BookingStatus
	createdAt   time.Time
	updatedAt   time.Time
}

// BookingRepository stores bookings in memory. It holds a reference to
// the ride repository to answer the driver-inbox query, which in SQL
// is a join on ride ownership.
type BookingRepository struct {
	mu       sync.RWMutex
	bookings map[string]*bookingRecord
	rides    *RideRepository
}

func NewBookingRepository(rides *RideRepository) *BookingRepository {
	return &BookingRepository{
		bookings: make(map[string]*bookingRecord),
		rides:    rides,
	}
}

func (r *BookingRepository) Save(ctx context.Context, booking *domain.Booking) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if booking.ID() == "" {
		// Mirrors the store's partial unique index on
		// (ride_id, passenger_id) over non-cancelled rows: the check
		// here runs under the repository lock, so two racing inserts
		// cannot both pass it.
		for _, rec := range r.bookings {
			if rec.rideID == booking.RideID() && rec.passengerID == booking.PassengerID() &&
				rec.status != domain.BookingStatusCancelled {
				return domain.NewValidationError("ride_id", "you already have a booking on this ride")
			}
		}
		booking.SetID(uuid.NewString())
	}
	r.bookings[booking.ID()] = &bookingRecord{
		id:          booking.ID(),
		rideID:      booking.RideID(),
		passengerID: booking.PassengerID(),
		seats:       booking.Seats(),
		status:      booking.Status(),
		createdAt:   booking.CreatedAt(),
		updatedAt:   booking.UpdatedAt(),
	}
	return nil
}

func (r *BookingRepository) FindByID(ctx context.Context, bookingID string) (*domain.Booking, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, exists := r.bookings[bookingID]
	if !exists {
		return nil, domain.ErrNotFound
	}
	return rec.toDomain(), nil
}

func (r *BookingRepository) ListByPassenger(ctx context.Context, passengerID string) ([]*domain.Booking, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var bookings []*domain.Booking
	for _, rec := range r.bookings {
		if rec.passengerID == passengerID {
			bookings = append(bookings, rec.toDomain())
		}
	}
	sortByCreatedDesc(bookings)
	return bookings, nil
}

func (r *BookingRepository) ListPendingByDriver(ctx context.Context, driverID string) ([]*domain.Booking, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var bookings []*domain.Booking
	for _, rec := range r.bookings {
		if rec.status != domain.BookingStatusPending {
			continue
		}
		ride, err := r.rides.FindByID(ctx, rec.rideID)
		if err != nil {
			continue
		}
		if ride.DriverID() == driverID {
			bookings = append(bookings, rec.toDomain())
		}
	}
	sortByCreatedDesc(bookings)
	return bookings, nil
}

func (r *BookingRepository) ListActiveByRide(ctx context.Context, rideID string) ([]*domain.Booking, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var bookings []*domain.Booking
	for _, rec := range r.bookings {
		if rec.rideID == rideID && rec.status != domain.BookingStatusCancelled {
			bookings = append(bookings, rec.toDomain())
		}
	}
	sortByCreatedDesc(bookings)
	return bookings, nil
}

func (r *BookingRepository) HasActiveBooking(ctx context.Context, rideID, passengerID string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, rec := range r.bookings {
		if rec.rideID == rideID && rec.passengerID == passengerID && rec.status != domain.BookingStatusCancelled {
			return true, nil
		}
	}
	return false, nil
}

func (r *BookingRepository) TransitionStatus(ctx context.Context, bookingID string, from []domain.BookingStatus, to domain.BookingStatus) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, exists := r.bookings[bookingID]
	if !exists {
		return false, domain.ErrNotFound
	}
	for _, s := range from {
		if rec.status == s {
			rec.status = to
			rec.updatedAt = time.Now()
			return true, nil
		}
	}
	return false, nil
}

func (rec *bookingRecord) toDomain() *domain.Booking {
	return domain.ReconstructBooking(
		rec.id,
		rec.rideID,
		rec.passengerID,
		rec.seats,
		rec.status,
		rec.createdAt,
		rec.updatedAt,
	)
}

func sortByCreatedDesc(bookings []*domain.Booking) {
	sort.Slice(bookings, func(i, j int) bool {
		return bookings[i].CreatedAt().After(bookings[j].CreatedAt())
	})
}
