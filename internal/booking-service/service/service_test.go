package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"carpool/internal/booking-service/domain"
	"carpool/internal/booking-service/ledger"
	"carpool/internal/booking-service/repository/memory"
	"carpool/internal/booking-service/service"
	"carpool/pkg/logger"

	"github.com/stretchr/testify/require"
)

// recordingNotifier captures dispatched events for assertions.
type recordingNotifier struct {
	mu     sync.Mutex
	events []domain.Event
}

func (n *recordingNotifier) Notify(ctx context.Context, event domain.Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
}

func (n *recordingNotifier) Events() []domain.Event {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]domain.Event, len(n.events))
	copy(out, n.events)
	return out
}

func (n *recordingNotifier) EventsOfType(t domain.EventType) []domain.Event {
	var out []domain.Event
	for _, e := range n.Events() {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

// fixture wires the services over in-memory repositories.
type fixture struct {
	rides    *memory.RideRepository
	bookings *memory.BookingRepository
	notifier *recordingNotifier
	ledger   *ledger.Ledger

	rideService    *service.RideService
	bookingService *service.BookingService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	log := logger.NewLogger("test")
	rides := memory.NewRideRepository()
	bookings := memory.NewBookingRepository(rides)
	notifier := &recordingNotifier{}
	seatLedger := ledger.New(rides, log, 3)

	return &fixture{
		rides:          rides,
		bookings:       bookings,
		notifier:       notifier,
		ledger:         seatLedger,
		rideService:    service.NewRideService(rides, bookings, seatLedger, notifier, log),
		bookingService: service.NewBookingService(bookings, rides, seatLedger, notifier, log),
	}
}

// newFixtureWithBookings rebuilds the booking service over a custom
// booking repository, keeping the fixture's rides, ledger and notifier.
func newFixtureWithBookings(t *testing.T, f *fixture, bookings domain.BookingRepository) *service.BookingService {
	t.Helper()
	return service.NewBookingService(bookings, f.rides, f.ledger, f.notifier, logger.NewLogger("test"))
}

// newBookingServiceOver rebuilds the booking service over custom
// booking and seat stores, sharing the fixture's rides and notifier.
func newBookingServiceOver(t *testing.T, f *fixture, bookings domain.BookingRepository, seats domain.SeatStore) *service.BookingService {
	t.Helper()
	log := logger.NewLogger("test")
	return service.NewBookingService(bookings, f.rides, ledger.New(seats, log, 3), f.notifier, log)
}

// postRide saves an active ride for driverID departing tomorrow.
func (f *fixture) postRide(t *testing.T, driverID string, seats int) *domain.Ride {
	t.Helper()
	ride, err := f.rideService.Create(context.Background(), driverID, service.CreateRideCommand{
		FromLocation: "Berlin",
		ToLocation:   "Hamburg",
		Departure:    time.Now().Add(24 * time.Hour),
		Seats:        seats,
		PricePerSeat: 12.5,
		CarModel:     "VW Golf",
	})
	require.NoError(t, err)
	return ride
}

// postDepartedRide saves a ride whose departure time already passed,
// bypassing the constructor's future-departure check.
func (f *fixture) postDepartedRide(t *testing.T, driverID string, seats int) *domain.Ride {
	t.Helper()
	now := time.Now()
	ride := domain.ReconstructRide(
		"",
		driverID,
		"Berlin",
		"Hamburg",
		now.Add(-2*time.Hour),
		seats,
		seats,
		12.5,
		"VW Golf",
		"",
		domain.RideStatusActive,
		now.Add(-48*time.Hour),
		now.Add(-48*time.Hour),
	)
	require.NoError(t, f.rides.Save(context.Background(), ride))
	return ride
}

func (f *fixture) availableSeats(t *testing.T, rideID string) int {
	t.Helper()
	available, _, err := f.rides.SeatAvailability(context.Background(), rideID)
	require.NoError(t, err)
	return available
}
