package repository

import (
	"context"
	"errors"
	"fmt"

	"carpool/internal/booking-service/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresLocationRepository implements domain.LocationRepository
type PostgresLocationRepository struct {
	db *pgxpool.Pool
}

// NewPostgresLocationRepository creates a new PostgreSQL repository
func NewPostgresLocationRepository(db *pgxpool.Pool) *PostgresLocationRepository {
	return &PostgresLocationRepository{
		db: db,
	}
}

// Upsert stores the driver's latest position, one row per driver
func (r *PostgresLocationRepository) Upsert(ctx context.Context, location *domain.DriverLocation) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO driver_locations (driver_id, latitude, longitude, heading, speed, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (driver_id) DO UPDATE SET
			latitude = EXCLUDED.latitude,
			longitude = EXCLUDED.longitude,
			heading = EXCLUDED.heading,
			speed = EXCLUDED.speed,
			updated_at = EXCLUDED.updated_at
	`,
		location.DriverID,
		location.Latitude,
		location.Longitude,
		location.Heading,
		location.Speed,
		location.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert driver location: %w", err)
	}
	return nil
}

// Find returns a driver's last reported position
func (r *PostgresLocationRepository) Find(ctx context.Context, driverID string) (*domain.DriverLocation, error) {
	location := &domain.DriverLocation{}
	err := r.db.QueryRow(ctx, `
		SELECT driver_id, latitude, longitude, heading, speed, updated_at
		FROM driver_locations
		WHERE driver_id = $1
	`, driverID).Scan(
		&location.DriverID,
		&location.Latitude,
		&location.Longitude,
		&location.Heading,
		&location.Speed,
		&location.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("select driver location: %w", err)
	}
	return location, nil
}
