package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"carpool/internal/booking-service/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// uniqueViolation is the Postgres error code raised by the partial
// unique index on (ride_id, passenger_id) WHERE status <> 'CANCELLED'.
const uniqueViolation = "23505"

// PostgresBookingRepository implements domain.BookingRepository
type PostgresBookingRepository struct {
	db *pgxpool.Pool
}

// NewPostgresBookingRepository creates a new PostgreSQL repository
func NewPostgresBookingRepository(db *pgxpool.Pool) *PostgresBookingRepository {
	return &PostgresBookingRepository{
		db: db,
	}
}

// Save persists a new booking
func (r *PostgresBookingRepository) Save(ctx context.Context, booking *domain.Booking) error {
	var id string
	err := r.db.QueryRow(ctx, `
		INSERT INTO bookings (
			ride_id, passenger_id, seats, status, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, NOW())
		RETURNING id
	`,
		booking.RideID(),
		booking.PassengerID(),
		booking.Seats(),
		booking.Status().String(),
		booking.CreatedAt(),
	).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			// The service's duplicate pre-check is read-then-act; the
			// index is the authority when two creates race.
			return domain.NewValidationError("ride_id", "you already have a booking on this ride")
		}
		return fmt.Errorf("insert booking: %w", err)
	}

	booking.SetID(id)
	return nil
}

// FindByID retrieves a booking by its ID
func (r *PostgresBookingRepository) FindByID(ctx context.Context, bookingID string) (*domain.Booking, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, ride_id, passenger_id, seats, status, created_at, updated_at
		FROM bookings
		WHERE id = $1
	`, bookingID)

	booking, err := scanBooking(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("select booking: %w", err)
	}
	return booking, nil
}

// ListByPassenger returns a passenger's bookings, newest first
func (r *PostgresBookingRepository) ListByPassenger(ctx context.Context, passengerID string) ([]*domain.Booking, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, ride_id, passenger_id, seats, status, created_at, updated_at
		FROM bookings
		WHERE passenger_id = $1
		ORDER BY created_at DESC
	`, passengerID)
	if err != nil {
		return nil, fmt.Errorf("list bookings by passenger: %w", err)
	}
	defer rows.Close()

	return collectBookings(rows)
}

// ListPendingByDriver returns pending bookings on the driver's rides,
// the driver's approval inbox. The join resolves ride ownership.
func (r *PostgresBookingRepository) ListPendingByDriver(ctx context.Context, driverID string) ([]*domain.Booking, error) {
	rows, err := r.db.Query(ctx, `
		SELECT b.id, b.ride_id, b.passenger_id, b.seats, b.status, b.created_at, b.updated_at
		FROM bookings b
		JOIN rides r ON r.id = b.ride_id
		WHERE b.status = $1 AND r.driver_id = $2
		ORDER BY b.created_at DESC
	`, domain.BookingStatusPending.String(), driverID)
	if err != nil {
		return nil, fmt.Errorf("list pending bookings by driver: %w", err)
	}
	defer rows.Close()

	return collectBookings(rows)
}

// ListActiveByRide returns all non-cancelled bookings for a ride
func (r *PostgresBookingRepository) ListActiveByRide(ctx context.Context, rideID string) ([]*domain.Booking, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, ride_id, passenger_id, seats, status, created_at, updated_at
		FROM bookings
		WHERE ride_id = $1 AND status <> $2
		ORDER BY created_at DESC
	`, rideID, domain.BookingStatusCancelled.String())
	if err != nil {
		return nil, fmt.Errorf("list active bookings by ride: %w", err)
	}
	defer rows.Close()

	return collectBookings(rows)
}

// HasActiveBooking reports whether the passenger already holds a
// non-cancelled booking on the ride
func (r *PostgresBookingRepository) HasActiveBooking(ctx context.Context, rideID, passengerID string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM bookings
			WHERE ride_id = $1 AND passenger_id = $2 AND status <> $3
		)
	`, rideID, passengerID, domain.BookingStatusCancelled.String()).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check active booking: %w", err)
	}
	return exists, nil
}

// TransitionStatus atomically moves a booking from one of the expected
// statuses to the target status
func (r *PostgresBookingRepository) TransitionStatus(ctx context.Context, bookingID string, from []domain.BookingStatus, to domain.BookingStatus) (bool, error) {
	fromStatuses := make([]string, 0, len(from))
	for _, s := range from {
		fromStatuses = append(fromStatuses, s.String())
	}

	tag, err := r.db.Exec(ctx, `
		UPDATE bookings
		SET status = $1, updated_at = NOW()
		WHERE id = $2 AND status = ANY($3)
	`, to.String(), bookingID, fromStatuses)
	if err != nil {
		return false, fmt.Errorf("transition booking status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := r.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM bookings WHERE id = $1)`, bookingID).Scan(&exists); err != nil {
			return false, fmt.Errorf("check booking exists: %w", err)
		}
		if !exists {
			return false, domain.ErrNotFound
		}
		return false, nil
	}
	return true, nil
}

func scanBooking(row pgx.Row) (*domain.Booking, error) {
	var (
		id          string
		rideID      string
		passengerID string
		seats       int
		status      string
		createdAt   time.Time
		updatedAt   time.Time
	)
	err := row.Scan(&id, &rideID, &passengerID, &seats, &status, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	return domain.ReconstructBooking(
		id,
		rideID,
		passengerID,
		seats,
		domain.BookingStatus(status),
		createdAt,
		updatedAt,
	), nil
}

func collectBookings(rows pgx.Rows) ([]*domain.Booking, error) {
	var bookings []*domain.Booking
	for rows.Next() {
		booking, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("scan booking: %w", err)
		}
		bookings = append(bookings, booking)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate bookings: %w", err)
	}
	return bookings, nil
}
