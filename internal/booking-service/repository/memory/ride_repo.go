package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"carpool/internal/booking-service/domain"

	"github.com/google/uuid"
)

// rideRecord is the mutable stored form of a ride. The seat counter
// and status live here so conditional writes can be checked under the
// repository lock.
type rideRecord struct {
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
	status         domain.RideStatus
	createdAt      time.Time
	updatedAt      time.Time
}

// RideRepository stores rides in memory. It implements both
// domain.RideRepository and domain.SeatStore; the single mutex makes
// the seat compare-and-swap atomic, mirroring what the SQL
// implementation gets from a conditional UPDATE.
type RideRepository struct {
	mu    sync.RWMutex
	rides map[string]*rideRecord
}

func NewRideRepository() *RideRepository {
	return &RideRepository{
		rides: make(map[string]*rideRecord),
	}
}

func (r *RideRepository) Save(ctx context.Context, ride *domain.Ride) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if ride.ID() == "" {
		ride.SetID(uuid.NewString())
	}
	r.rides[ride.ID()] = &rideRecord{
		id:             ride.ID(),
		driverID:       ride.DriverID(),
		fromLocation:   ride.FromLocation(),
		toLocation:     ride.ToLocation(),
		departure:      ride.Departure(),
		totalSeats:     ride.TotalSeats(),
		availableSeats: ride.AvailableSeats(),
		pricePerSeat:   ride.PricePerSeat(),
		carModel:       ride.CarModel(),
		description:    ride.Description(),
		status:         ride.Status(),
		createdAt:      ride.CreatedAt(),
		updatedAt:      ride.UpdatedAt(),
	}
	return nil
}

func (r *RideRepository) FindByID(ctx context.Context, rideID string) (*domain.Ride, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, exists := r.rides[rideID]
	if !exists {
		return nil, domain.ErrNotFound
	}
	return rec.toDomain(), nil
}

func (r *RideRepository) Search(ctx context.Context, from, to string, date time.Time) ([]*domain.Ride, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var rides []*domain.Ride
	for _, rec := range r.rides {
		if rec.status != domain.RideStatusActive {
			continue
		}
		if !strings.Contains(strings.ToLower(rec.fromLocation), strings.ToLower(from)) {
			continue
		}
		if !strings.Contains(strings.ToLower(rec.toLocation), strings.ToLower(to)) {
			continue
		}
		// Same comparison as the SQL implementation: departure >= date,
		// no truncation. Callers pass local midnight for day queries.
		if rec.departure.Before(date) {
			continue
		}
		rides = append(rides, rec.toDomain())
	}
	sort.Slice(rides, func(i, j int) bool {
		return rides[i].Departure().Before(rides[j].Departure())
	})
	return rides, nil
}

func (r *RideRepository) ListByDriver(ctx context.Context, driverID string) ([]*domain.Ride, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var rides []*domain.Ride
	for _, rec := range r.rides {
		if rec.driverID == driverID {
			rides = append(rides, rec.toDomain())
		}
	}
	sort.Slice(rides, func(i, j int) bool {
		return rides[i].Departure().Before(rides[j].Departure())
	})
	return rides, nil
}

func (r *RideRepository) TransitionStatus(ctx context.Context, rideID string, from, to domain.RideStatus) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, exists := r.rides[rideID]
	if !exists {
		return false, domain.ErrNotFound
	}
	if rec.status != from {
		return false, nil
	}
	rec.status = to
	rec.updatedAt = time.Now()
	return true, nil
}

// SeatStore implementation

func (r *RideRepository) SeatAvailability(ctx context.Context, rideID string) (int, domain.RideStatus, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, exists := r.rides[rideID]
	if !exists {
		return 0, "", domain.ErrNotFound
	}
	return rec.availableSeats, rec.status, nil
}

func (r *RideRepository) DecrementSeats(ctx context.Context, rideID string, seats, expected int) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, exists := r.rides[rideID]
	if !exists {
		return false, domain.ErrNotFound
	}
	if rec.availableSeats != expected || rec.availableSeats < seats {
		return false, nil
	}
	rec.availableSeats -= seats
	rec.updatedAt = time.Now()
	return true, nil
}

func (r *RideRepository) IncrementSeats(ctx context.Context, rideID string, seats int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, exists := r.rides[rideID]
	if !exists {
		return domain.ErrNotFound
	}
	rec.availableSeats += seats
	if rec.availableSeats > rec.totalSeats {
		rec.availableSeats = rec.totalSeats
	}
	rec.updatedAt = time.Now()
	return nil
}

func (rec *rideRecord) toDomain() *domain.Ride {
	return domain.ReconstructRide(
		rec.id,
		rec.driverID,
		rec.fromLocation,
		rec.toLocation,
		rec.departure,
		rec.totalSeats,
		rec.availableSeats,
		rec.pricePerSeat,
		rec.carModel,
		rec.description,
		rec.status,
		rec.createdAt,
		rec.updatedAt,
	)
}
