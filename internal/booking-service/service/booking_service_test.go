package service_test

import (
	"context"
	"errors"
	"testing"

	"carpool/internal/booking-service/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateBookingReservesSeats(t *testing.T) {
	f := newFixture(t)
	ride := f.postRide(t, "driver-1", 3)

	booking, err := f.bookingService.Create(context.Background(), "passenger-1", ride.ID(), 2)
	require.NoError(t, err)

	assert.NotEmpty(t, booking.ID())
	assert.Equal(t, domain.BookingStatusPending, booking.Status())
	assert.Equal(t, 1, f.availableSeats(t, ride.ID()))

	created := f.notifier.EventsOfType(domain.EventBookingCreated)
	require.Len(t, created, 1)
	assert.Equal(t, "driver-1", created[0].RecipientID)
	assert.Equal(t, booking.ID(), created[0].BookingID)
}

func TestCreateBookingRejectsOwnRide(t *testing.T) {
	f := newFixture(t)
	ride := f.postRide(t, "driver-1", 3)

	_, err := f.bookingService.Create(context.Background(), "driver-1", ride.ID(), 1)
	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.Equal(t, 3, f.availableSeats(t, ride.ID()))
}

func TestCreateBookingRejectsDepartedRide(t *testing.T) {
	f := newFixture(t)
	ride := f.postDepartedRide(t, "driver-1", 3)

	_, err := f.bookingService.Create(context.Background(), "passenger-1", ride.ID(), 1)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestCreateBookingRejectsDuplicate(t *testing.T) {
	f := newFixture(t)
	ride := f.postRide(t, "driver-1", 4)

	_, err := f.bookingService.Create(context.Background(), "passenger-1", ride.ID(), 1)
	require.NoError(t, err)

	_, err = f.bookingService.Create(context.Background(), "passenger-1", ride.ID(), 1)
	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.Equal(t, 3, f.availableSeats(t, ride.ID()))
}

func TestCreateBookingAllowsRebookAfterCancel(t *testing.T) {
	f := newFixture(t)
	ride := f.postRide(t, "driver-1", 4)

	first, err := f.bookingService.Create(context.Background(), "passenger-1", ride.ID(), 2)
	require.NoError(t, err)
	require.NoError(t, f.bookingService.Cancel(context.Background(), "passenger-1", first.ID()))

	_, err = f.bookingService.Create(context.Background(), "passenger-1", ride.ID(), 2)
	require.NoError(t, err)
	assert.Equal(t, 2, f.availableSeats(t, ride.ID()))
}

func TestCreateBookingInsufficientSeats(t *testing.T) {
	f := newFixture(t)
	ride := f.postRide(t, "driver-1", 2)

	_, err := f.bookingService.Create(context.Background(), "passenger-1", ride.ID(), 3)
	require.Error(t, err)

	var capErr *domain.CapacityError
	require.ErrorAs(t, err, &capErr)
	assert.Equal(t, 2, capErr.Available)
	assert.Equal(t, 2, f.availableSeats(t, ride.ID()))
	assert.Empty(t, f.notifier.Events())
}

func TestCreateBookingUnknownRide(t *testing.T) {
	f := newFixture(t)

	_, err := f.bookingService.Create(context.Background(), "passenger-1", "missing", 1)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

// failingBookingRepo rejects inserts to exercise the compensation path.
type failingBookingRepo struct {
	domain.BookingRepository
}

func (r *failingBookingRepo) Save(ctx context.Context, booking *domain.Booking) error {
	return errors.New("insert failed")
}

func TestCreateBookingCompensatesFailedInsert(t *testing.T) {
	f := newFixture(t)
	ride := f.postRide(t, "driver-1", 3)

	broken := newFixtureWithBookings(t, f, &failingBookingRepo{BookingRepository: f.bookings})
	_, err := broken.Create(context.Background(), "passenger-1", ride.ID(), 2)
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrInconsistentState)

	assert.Equal(t, 3, f.availableSeats(t, ride.ID()), "reserved seats must be released when the insert fails")
	assert.Empty(t, f.notifier.Events())
}

// leakySeatStore fails every seat release, leaving reserved seats
// stranded on the counter.
type leakySeatStore struct {
	domain.SeatStore
}

func (s *leakySeatStore) IncrementSeats(ctx context.Context, rideID string, seats int) error {
	return errors.New("increment failed")
}

func TestCreateBookingSeatLeakWhenCompensationFails(t *testing.T) {
	f := newFixture(t)
	ride := f.postRide(t, "driver-1", 3)

	broken := newBookingServiceOver(t, f,
		&failingBookingRepo{BookingRepository: f.bookings},
		&leakySeatStore{SeatStore: f.rides})
	_, err := broken.Create(context.Background(), "passenger-1", ride.ID(), 2)
	require.ErrorIs(t, err, domain.ErrInconsistentState)

	assert.Equal(t, 1, f.availableSeats(t, ride.ID()), "the leaked reservation stays on the counter for the operator to repair")
	assert.Empty(t, f.notifier.Events())
}

func TestCancelSeatLeakWhenReleaseFails(t *testing.T) {
	f := newFixture(t)
	ride := f.postRide(t, "driver-1", 3)
	booking, err := f.bookingService.Create(context.Background(), "passenger-1", ride.ID(), 2)
	require.NoError(t, err)

	broken := newBookingServiceOver(t, f, f.bookings, &leakySeatStore{SeatStore: f.rides})
	err = broken.Cancel(context.Background(), "passenger-1", booking.ID())
	require.ErrorIs(t, err, domain.ErrInconsistentState)

	// The status transition fired before the release failed, so the
	// booking is cancelled while its seats remain held.
	stored, err := f.bookings.FindByID(context.Background(), booking.ID())
	require.NoError(t, err)
	assert.Equal(t, domain.BookingStatusCancelled, stored.Status())
	assert.Equal(t, 1, f.availableSeats(t, ride.ID()))
}

// blindDuplicateCheck never sees an existing booking, forcing the
// store's own duplicate rejection to carry the race.
type blindDuplicateCheck struct {
	domain.BookingRepository
}

func (r *blindDuplicateCheck) HasActiveBooking(ctx context.Context, rideID, passengerID string) (bool, error) {
	return false, nil
}

func TestCreateBookingDuplicateRejectedByStore(t *testing.T) {
	f := newFixture(t)
	ride := f.postRide(t, "driver-1", 3)

	racing := newFixtureWithBookings(t, f, &blindDuplicateCheck{BookingRepository: f.bookings})
	_, err := racing.Create(context.Background(), "passenger-1", ride.ID(), 1)
	require.NoError(t, err)

	_, err = racing.Create(context.Background(), "passenger-1", ride.ID(), 1)
	require.ErrorIs(t, err, domain.ErrValidation)

	assert.Equal(t, 2, f.availableSeats(t, ride.ID()), "the losing insert's reservation must be released")
}

func TestRejectSeatLeakWhenReleaseFails(t *testing.T) {
	f := newFixture(t)
	ride := f.postRide(t, "driver-1", 3)
	booking, err := f.bookingService.Create(context.Background(), "passenger-1", ride.ID(), 2)
	require.NoError(t, err)

	broken := newBookingServiceOver(t, f, f.bookings, &leakySeatStore{SeatStore: f.rides})
	err = broken.Reject(context.Background(), "driver-1", booking.ID())
	require.ErrorIs(t, err, domain.ErrInconsistentState)
	assert.Equal(t, 1, f.availableSeats(t, ride.ID()))
}

func TestApproveBooking(t *testing.T) {
	f := newFixture(t)
	ride := f.postRide(t, "driver-1", 3)
	booking, err := f.bookingService.Create(context.Background(), "passenger-1", ride.ID(), 2)
	require.NoError(t, err)

	require.NoError(t, f.bookingService.Approve(context.Background(), "driver-1", booking.ID()))

	stored, err := f.bookings.FindByID(context.Background(), booking.ID())
	require.NoError(t, err)
	assert.Equal(t, domain.BookingStatusConfirmed, stored.Status())
	assert.Equal(t, 1, f.availableSeats(t, ride.ID()), "approval must not touch the seat counter")

	approved := f.notifier.EventsOfType(domain.EventBookingApproved)
	require.Len(t, approved, 1)
	assert.Equal(t, "passenger-1", approved[0].RecipientID)
}

func TestApproveRequiresRideOwner(t *testing.T) {
	f := newFixture(t)
	ride := f.postRide(t, "driver-1", 3)
	booking, err := f.bookingService.Create(context.Background(), "passenger-1", ride.ID(), 1)
	require.NoError(t, err)

	err = f.bookingService.Approve(context.Background(), "driver-2", booking.ID())
	assert.ErrorIs(t, err, domain.ErrForbidden)
}

func TestApproveNonPendingBooking(t *testing.T) {
	f := newFixture(t)
	ride := f.postRide(t, "driver-1", 3)
	booking, err := f.bookingService.Create(context.Background(), "passenger-1", ride.ID(), 1)
	require.NoError(t, err)
	require.NoError(t, f.bookingService.Approve(context.Background(), "driver-1", booking.ID()))

	err = f.bookingService.Approve(context.Background(), "driver-1", booking.ID())
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestRejectReleasesSeats(t *testing.T) {
	f := newFixture(t)
	ride := f.postRide(t, "driver-1", 3)
	booking, err := f.bookingService.Create(context.Background(), "passenger-1", ride.ID(), 2)
	require.NoError(t, err)

	require.NoError(t, f.bookingService.Reject(context.Background(), "driver-1", booking.ID()))

	stored, err := f.bookings.FindByID(context.Background(), booking.ID())
	require.NoError(t, err)
	assert.Equal(t, domain.BookingStatusCancelled, stored.Status())
	assert.Equal(t, 3, f.availableSeats(t, ride.ID()))
}

func TestCancelByPassengerReleasesSeats(t *testing.T) {
	f := newFixture(t)
	ride := f.postRide(t, "driver-1", 3)
	booking, err := f.bookingService.Create(context.Background(), "passenger-1", ride.ID(), 2)
	require.NoError(t, err)
	require.NoError(t, f.bookingService.Approve(context.Background(), "driver-1", booking.ID()))

	require.NoError(t, f.bookingService.Cancel(context.Background(), "passenger-1", booking.ID()))

	stored, err := f.bookings.FindByID(context.Background(), booking.ID())
	require.NoError(t, err)
	assert.Equal(t, domain.BookingStatusCancelled, stored.Status())
	assert.Equal(t, 3, f.availableSeats(t, ride.ID()))

	cancelled := f.notifier.EventsOfType(domain.EventBookingCancelled)
	require.Len(t, cancelled, 1)
	assert.Equal(t, "driver-1", cancelled[0].RecipientID)
}

func TestCancelByDriverNotifiesPassenger(t *testing.T) {
	f := newFixture(t)
	ride := f.postRide(t, "driver-1", 3)
	booking, err := f.bookingService.Create(context.Background(), "passenger-1", ride.ID(), 1)
	require.NoError(t, err)

	require.NoError(t, f.bookingService.Cancel(context.Background(), "driver-1", booking.ID()))

	cancelled := f.notifier.EventsOfType(domain.EventBookingCancelled)
	require.Len(t, cancelled, 1)
	assert.Equal(t, "passenger-1", cancelled[0].RecipientID)
}

func TestCancelIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ride := f.postRide(t, "driver-1", 3)
	booking, err := f.bookingService.Create(context.Background(), "passenger-1", ride.ID(), 2)
	require.NoError(t, err)

	require.NoError(t, f.bookingService.Cancel(context.Background(), "passenger-1", booking.ID()))
	require.NoError(t, f.bookingService.Cancel(context.Background(), "passenger-1", booking.ID()))

	assert.Equal(t, 3, f.availableSeats(t, ride.ID()), "seats must be released exactly once")
	assert.Len(t, f.notifier.EventsOfType(domain.EventBookingCancelled), 1)
}

func TestCancelByStrangerForbidden(t *testing.T) {
	f := newFixture(t)
	ride := f.postRide(t, "driver-1", 3)
	booking, err := f.bookingService.Create(context.Background(), "passenger-1", ride.ID(), 1)
	require.NoError(t, err)

	err = f.bookingService.Cancel(context.Background(), "somebody-else", booking.ID())
	assert.ErrorIs(t, err, domain.ErrForbidden)
	assert.Equal(t, 2, f.availableSeats(t, ride.ID()))
}

func TestPendingRequestsInbox(t *testing.T) {
	f := newFixture(t)
	mine := f.postRide(t, "driver-1", 4)
	other := f.postRide(t, "driver-2", 4)

	pending, err := f.bookingService.Create(context.Background(), "passenger-1", mine.ID(), 1)
	require.NoError(t, err)
	confirmed, err := f.bookingService.Create(context.Background(), "passenger-2", mine.ID(), 1)
	require.NoError(t, err)
	require.NoError(t, f.bookingService.Approve(context.Background(), "driver-1", confirmed.ID()))
	_, err = f.bookingService.Create(context.Background(), "passenger-1", other.ID(), 1)
	require.NoError(t, err)

	inbox, err := f.bookingService.PendingRequests(context.Background(), "driver-1")
	require.NoError(t, err)
	require.Len(t, inbox, 1)
	assert.Equal(t, pending.ID(), inbox[0].ID())
}

func TestListByPassenger(t *testing.T) {
	f := newFixture(t)
	ride := f.postRide(t, "driver-1", 4)
	other := f.postRide(t, "driver-2", 4)

	first, err := f.bookingService.Create(context.Background(), "passenger-1", ride.ID(), 1)
	require.NoError(t, err)
	second, err := f.bookingService.Create(context.Background(), "passenger-1", other.ID(), 1)
	require.NoError(t, err)
	_, err = f.bookingService.Create(context.Background(), "passenger-2", ride.ID(), 1)
	require.NoError(t, err)

	mine, err := f.bookingService.ListByPassenger(context.Background(), "passenger-1")
	require.NoError(t, err)
	require.Len(t, mine, 2)
	ids := []string{mine[0].ID(), mine[1].ID()}
	assert.Contains(t, ids, first.ID())
	assert.Contains(t, ids, second.ID())
}
