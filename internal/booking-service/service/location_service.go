package service

import (
	"context"
	"fmt"
	"time"

	"carpool/internal/booking-service/domain"
	"carpool/pkg/logger"
)

// LocationService records driver positions and fans them out to
// realtime subscribers.
type LocationService struct {
	locations domain.LocationRepository
	notifier  domain.Notifier
	log       logger.Logger
}

func NewLocationService(locations domain.LocationRepository, notifier domain.Notifier, log logger.Logger) *LocationService {
	return &LocationService{
		locations: locations,
		notifier:  notifier,
		log:       log,
	}
}

// Update upserts a driver's latest position.
func (s *LocationService) Update(ctx context.Context, location *domain.DriverLocation) error {
	if err := location.Validate(); err != nil {
		return err
	}
	location.UpdatedAt = time.Now()

	if err := s.locations.Upsert(ctx, location); err != nil {
		return fmt.Errorf("upsert driver location: %w", err)
	}

	data := map[string]interface{}{
		"latitude":  location.Latitude,
		"longitude": location.Longitude,
	}
	if location.Heading != nil {
		data["heading"] = *location.Heading
	}
	if location.Speed != nil {
		data["speed"] = *location.Speed
	}

	s.notifier.Notify(ctx, domain.Event{
		Type:       domain.EventDriverLocation,
		ActorID:    location.DriverID,
		OccurredAt: location.UpdatedAt,
		Data:       data,
	})
	return nil
}

// Get returns a driver's last reported position.
func (s *LocationService) Get(ctx context.Context, driverID string) (*domain.DriverLocation, error) {
	location, err := s.locations.Find(ctx, driverID)
	if err != nil {
		return nil, fmt.Errorf("find driver location %s: %w", driverID, err)
	}
	return location, nil
}
