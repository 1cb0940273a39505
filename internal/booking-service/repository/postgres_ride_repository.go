package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"carpool/internal/booking-service/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRideRepository implements domain.RideRepository and
// domain.SeatStore over a pgx pool. The seat compare-and-swap is a
// conditional UPDATE guarded by the expected available_seats value.
type PostgresRideRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRideRepository creates a new PostgreSQL repository
func NewPostgresRideRepository(db *pgxpool.Pool) *PostgresRideRepository {
	return &PostgresRideRepository{
		db: db,
	}
}

// Save persists a new ride
func (r *PostgresRideRepository) Save(ctx context.Context, ride *domain.Ride) error {
	var id string
	err := r.db.QueryRow(ctx, `
		INSERT INTO rides (
			driver_id, from_location, to_location, departure,
			total_seats, available_seats, price_per_seat,
			car_model, description, status, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW())
		RETURNING id
	`,
		ride.DriverID(),
		ride.FromLocation(),
		ride.ToLocation(),
		ride.Departure(),
		ride.TotalSeats(),
		ride.AvailableSeats(),
		ride.PricePerSeat(),
		ride.CarModel(),
		ride.Description(),
		ride.Status().String(),
		ride.CreatedAt(),
	).Scan(&id)
	if err != nil {
		return fmt.Errorf("insert ride: %w", err)
	}

	ride.SetID(id)
	return nil
}

// FindByID retrieves a ride by its ID
func (r *PostgresRideRepository) FindByID(ctx context.Context, rideID string) (*domain.Ride, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, driver_id, from_location, to_location, departure,
		       total_seats, available_seats, price_per_seat,
		       car_model, description, status, created_at, updated_at
		FROM rides
		WHERE id = $1
	`, rideID)

	ride, err := scanRide(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("select ride: %w", err)
	}
	return ride, nil
}

// Search finds active rides matching the route substrings departing on
// or after the given date, ordered by departure.
func (r *PostgresRideRepository) Search(ctx context.Context, from, to string, date time.Time) ([]*domain.Ride, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, driver_id, from_location, to_location, departure,
		       total_seats, available_seats, price_per_seat,
		       car_model, description, status, created_at, updated_at
		FROM rides
		WHERE status = $1
		  AND from_location ILIKE '%' || $2 || '%'
		  AND to_location ILIKE '%' || $3 || '%'
		  AND departure >= $4
		ORDER BY departure ASC
	`, domain.RideStatusActive.String(), from, to, date)
	if err != nil {
		return nil, fmt.Errorf("search rides: %w", err)
	}
	defer rows.Close()

	return collectRides(rows)
}

// ListByDriver returns all rides offered by a driver
func (r *PostgresRideRepository) ListByDriver(ctx context.Context, driverID string) ([]*domain.Ride, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, driver_id, from_location, to_location, departure,
		       total_seats, available_seats, price_per_seat,
		       car_model, description, status, created_at, updated_at
		FROM rides
		WHERE driver_id = $1
		ORDER BY departure ASC
	`, driverID)
	if err != nil {
		return nil, fmt.Errorf("list rides by driver: %w", err)
	}
	defer rows.Close()

	return collectRides(rows)
}

// TransitionStatus atomically moves a ride between statuses
func (r *PostgresRideRepository) TransitionStatus(ctx context.Context, rideID string, from, to domain.RideStatus) (bool, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE rides
		SET status = $1, updated_at = NOW()
		WHERE id = $2 AND status = $3
	`, to.String(), rideID, from.String())
	if err != nil {
		return false, fmt.Errorf("transition ride status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Distinguish "wrong status" from "no such ride".
		var exists bool
		if err := r.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM rides WHERE id = $1)`, rideID).Scan(&exists); err != nil {
			return false, fmt.Errorf("check ride exists: %w", err)
		}
		if !exists {
			return false, domain.ErrNotFound
		}
		return false, nil
	}
	return true, nil
}

// SeatStore implementation

// SeatAvailability reads the current seat counter and status
func (r *PostgresRideRepository) SeatAvailability(ctx context.Context, rideID string) (int, domain.RideStatus, error) {
	var (
		available int
		status    string
	)
	err := r.db.QueryRow(ctx, `
		SELECT available_seats, status FROM rides WHERE id = $1
	`, rideID).Scan(&available, &status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, "", domain.ErrNotFound
		}
		return 0, "", fmt.Errorf("select seat availability: %w", err)
	}
	return available, domain.RideStatus(status), nil
}

// DecrementSeats performs the conditional seat decrement. The WHERE
// clause is the compare-and-swap: it only fires while available_seats
// still equals the value the caller read.
func (r *PostgresRideRepository) DecrementSeats(ctx context.Context, rideID string, seats, expected int) (bool, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE rides
		SET available_seats = available_seats - $1, updated_at = NOW()
		WHERE id = $2 AND available_seats = $3 AND available_seats >= $1
	`, seats, rideID, expected)
	if err != nil {
		return false, fmt.Errorf("decrement seats: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// IncrementSeats returns seats to the counter, capped at the ride's
// original capacity.
func (r *PostgresRideRepository) IncrementSeats(ctx context.Context, rideID string, seats int) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE rides
		SET available_seats = LEAST(available_seats + $1, total_seats), updated_at = NOW()
		WHERE id = $2
	`, seats, rideID)
	if err != nil {
		return fmt.Errorf("increment seats: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func scanRide(row pgx.Row) (*domain.Ride, error) {
	var (
		id             string
		driverID       string
		fromLocation   string
		toLocation     string
		departure      time.Time
		totalSeats     int
		availableSeats int
		pricePerSeat   float64
		carModel       *string
		description    *string
		status         string
		createdAt      time.Time
		updatedAt      time.Time
	)
	err := row.Scan(
		&id, &driverID, &fromLocation, &toLocation, &departure,
		&totalSeats, &availableSeats, &pricePerSeat,
		&carModel, &description, &status, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	return domain.ReconstructRide(
		id,
		driverID,
		fromLocation,
		toLocation,
		departure,
		totalSeats,
		availableSeats,
		pricePerSeat,
		derefString(carModel),
		derefString(description),
		domain.RideStatus(status),
		createdAt,
		updatedAt,
	), nil
}

func collectRides(rows pgx.Rows) ([]*domain.Ride, error) {
	var rides []*domain.Ride
	for rows.Next() {
		ride, err := scanRide(rows)
		if err != nil {
			return nil, fmt.Errorf("scan ride: %w", err)
		}
		rides = append(rides, ride)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rides: %w", err)
	}
	return rides, nil
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
