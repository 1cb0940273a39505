package memory

import (
	"context"
	"sync"

	"carpool/internal/booking-service/domain"
)

// LocationRepository stores the latest driver positions in memory.
type LocationRepository struct {
	mu        sync.RWMutex
	locations map[string]*domain.DriverLocation
}

func NewLocationRepository() *LocationRepository {
	return &LocationRepository{
		locations: make(map[string]*domain.DriverLocation),
	}
}

func (r *LocationRepository) Upsert(ctx context.Context, location *domain.DriverLocation) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored := *location
	r.locations[location.DriverID] = &stored
	return nil
}

func (r *LocationRepository) Find(ctx context.Context, driverID string) (*domain.DriverLocation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	loc, exists := r.locations[driverID]
	if !exists {
		return nil, domain.ErrNotFound
	}
	found := *loc
	return &found, nil
}
