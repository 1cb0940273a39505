package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"carpool/internal/booking-service/domain"
	"carpool/internal/booking-service/handler"
	"carpool/internal/booking-service/ledger"
	"carpool/internal/booking-service/repository/memory"
	"carpool/internal/booking-service/service"
	"carpool/pkg/auth"
	"carpool/pkg/logger"
	"carpool/pkg/ratelimit"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type noopNotifier struct{}

func (noopNotifier) Notify(ctx context.Context, event domain.Event) {}

type harness struct {
	handler *handler.Handler
	rides   *memory.RideRepository
	ride    *service.RideService
	booking *service.BookingService
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	log := logger.NewLogger("test")
	rides := memory.NewRideRepository()
	bookings := memory.NewBookingRepository(rides)
	chats := memory.NewChatRepository()
	locations := memory.NewLocationRepository()
	seatLedger := ledger.New(rides, log, 3)
	notifier := noopNotifier{}

	rideService := service.NewRideService(rides, bookings, seatLedger, notifier, log)
	bookingService := service.NewBookingService(bookings, rides, seatLedger, notifier, log)
	chatService := service.NewChatService(chats, bookings, rides, notifier, log)
	locationService := service.NewLocationService(locations, notifier, log)
	limiter := ratelimit.NewMemoryLimiter(time.Minute, 2)
	jwtManager := auth.NewJWTManager("test-secret", time.Hour)

	return &harness{
		handler: handler.New(rideService, bookingService, chatService, locationService, limiter, jwtManager, log),
		rides:   rides,
		ride:    rideService,
		booking: bookingService,
	}
}

// request builds an authenticated request with path values set.
func request(t *testing.T, method, target, userID string, body interface{}, pathValues map[string]string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	if userID != "" {
		claims := &auth.AppClaims{UserID: userID, Role: auth.RolePassenger}
		req = req.WithContext(auth.ContextWithClaims(req.Context(), claims))
	}
	for k, v := range pathValues {
		req.SetPathValue(k, v)
	}
	return req
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.NewDecoder(rec.Body).Decode(v))
}

func (h *harness) postRide(t *testing.T, driverID string, seats int) *domain.Ride {
	t.Helper()
	ride, err := h.ride.Create(context.Background(), driverID, service.CreateRideCommand{
		FromLocation: "Berlin",
		ToLocation:   "Hamburg",
		Departure:    time.Now().Add(24 * time.Hour),
		Seats:        seats,
		PricePerSeat: 10,
	})
	require.NoError(t, err)
	return ride
}

func TestHealthEndpoint(t *testing.T) {
	h := newHarness(t)
	rec := httptest.NewRecorder()

	h.handler.Health(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCreateRideEndpoint(t *testing.T) {
	h := newHarness(t)
	tomorrow := time.Now().Add(24 * time.Hour)

	rec := httptest.NewRecorder()
	h.handler.CreateRide(rec, request(t, http.MethodPost, "/rides", "driver-1", map[string]interface{}{
		"from_location":  "Berlin",
		"to_location":    "Hamburg",
		"departure_date": tomorrow.Format("2006-01-02"),
		"departure_time": tomorrow.Format("15:04"),
		"seats":          3,
		"price_per_seat": 12.5,
	}, nil))

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp struct {
		ID             string `json:"id"`
		AvailableSeats int    `json:"available_seats"`
		Status         string `json:"status"`
	}
	decodeBody(t, rec, &resp)
	assert.NotEmpty(t, resp.ID)
	assert.Equal(t, 3, resp.AvailableSeats)
	assert.Equal(t, "ACTIVE", resp.Status)
}

func TestCreateRideEndpointBadDeparture(t *testing.T) {
	h := newHarness(t)

	rec := httptest.NewRecorder()
	h.handler.CreateRide(rec, request(t, http.MethodPost, "/rides", "driver-1", map[string]interface{}{
		"from_location":  "Berlin",
		"to_location":    "Hamburg",
		"departure_date": "tomorrow",
		"departure_time": "soon",
		"seats":          3,
	}, nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var resp struct {
		Field string `json:"field"`
	}
	decodeBody(t, rec, &resp)
	assert.Equal(t, "departure", resp.Field)
}

func TestGetRideNotFound(t *testing.T) {
	h := newHarness(t)

	rec := httptest.NewRecorder()
	h.handler.GetRide(rec, request(t, http.MethodGet, "/rides/missing", "user-1", nil, map[string]string{
		"ride_id": "missing",
	}))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateBookingEndpoint(t *testing.T) {
	h := newHarness(t)
	ride := h.postRide(t, "driver-1", 3)

	rec := httptest.NewRecorder()
	h.handler.CreateBooking(rec, request(t, http.MethodPost,
		fmt.Sprintf("/rides/%s/bookings", ride.ID()), "passenger-1",
		map[string]interface{}{"seats": 2}, map[string]string{"ride_id": ride.ID()}))

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp struct {
		Status string `json:"status"`
		Seats  int    `json:"seats"`
	}
	decodeBody(t, rec, &resp)
	assert.Equal(t, "PENDING", resp.Status)
	assert.Equal(t, 2, resp.Seats)
}

func TestCreateBookingCapacityConflict(t *testing.T) {
	h := newHarness(t)
	ride := h.postRide(t, "driver-1", 2)

	rec := httptest.NewRecorder()
	h.handler.CreateBooking(rec, request(t, http.MethodPost,
		fmt.Sprintf("/rides/%s/bookings", ride.ID()), "passenger-1",
		map[string]interface{}{"seats": 5}, map[string]string{"ride_id": ride.ID()}))

	assert.Equal(t, http.StatusConflict, rec.Code)

	var resp struct {
		SeatsAvailable *int `json:"seats_available"`
	}
	decodeBody(t, rec, &resp)
	require.NotNil(t, resp.SeatsAvailable)
	assert.Equal(t, 2, *resp.SeatsAvailable)
}

func TestCancelBookingForbidden(t *testing.T) {
	h := newHarness(t)
	ride := h.postRide(t, "driver-1", 3)
	booking, err := h.booking.Create(context.Background(), "passenger-1", ride.ID(), 1)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	h.handler.CancelBooking(rec, request(t, http.MethodPost,
		fmt.Sprintf("/bookings/%s/cancel", booking.ID()), "somebody-else",
		nil, map[string]string{"booking_id": booking.ID()}))

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

// leakySeatStore fails every release so cancellations end up with the
// booking cancelled but its seats still held.
type leakySeatStore struct {
	domain.SeatStore
}

func (s *leakySeatStore) IncrementSeats(ctx context.Context, rideID string, seats int) error {
	return errors.New("increment failed")
}

func TestCancelBookingSeatLeakReturns500(t *testing.T) {
	log := logger.NewLogger("test")
	rides := memory.NewRideRepository()
	bookings := memory.NewBookingRepository(rides)
	notifier := noopNotifier{}

	rideService := service.NewRideService(rides, bookings, ledger.New(rides, log, 3), notifier, log)
	bookingService := service.NewBookingService(bookings, rides, ledger.New(rides, log, 3), notifier, log)
	ride, err := rideService.Create(context.Background(), "driver-1", service.CreateRideCommand{
		FromLocation: "Berlin",
		ToLocation:   "Hamburg",
		Departure:    time.Now().Add(24 * time.Hour),
		Seats:        3,
		PricePerSeat: 12.5,
	})
	require.NoError(t, err)
	booking, err := bookingService.Create(context.Background(), "passenger-1", ride.ID(), 1)
	require.NoError(t, err)

	leakyLedger := ledger.New(&leakySeatStore{SeatStore: rides}, log, 3)
	brokenBooking := service.NewBookingService(bookings, rides, leakyLedger, notifier, log)
	chatService := service.NewChatService(memory.NewChatRepository(), bookings, rides, notifier, log)
	locationService := service.NewLocationService(memory.NewLocationRepository(), notifier, log)
	h := handler.New(rideService, brokenBooking, chatService, locationService,
		ratelimit.NewMemoryLimiter(time.Minute, 2), auth.NewJWTManager("test-secret", time.Hour), log)

	rec := httptest.NewRecorder()
	h.CancelBooking(rec, request(t, http.MethodPost,
		fmt.Sprintf("/bookings/%s/cancel", booking.ID()), "passenger-1",
		nil, map[string]string{"booking_id": booking.ID()}))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestIssueTokenEndpoint(t *testing.T) {
	h := newHarness(t)

	rec := httptest.NewRecorder()
	h.handler.IssueToken(rec, request(t, http.MethodPost, "/auth/token", "", map[string]interface{}{
		"user_id": "user-1",
		"role":    "DRIVER",
	}, nil))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		Token string `json:"token"`
	}
	decodeBody(t, rec, &resp)
	assert.NotEmpty(t, resp.Token)
}

func TestIssueTokenRateLimited(t *testing.T) {
	h := newHarness(t)
	body := map[string]interface{}{"user_id": "user-1", "role": "PASSENGER"}

	var last *httptest.ResponseRecorder
	for i := 0; i < 3; i++ {
		last = httptest.NewRecorder()
		h.handler.IssueToken(last, request(t, http.MethodPost, "/auth/token", "", body, nil))
	}

	assert.Equal(t, http.StatusTooManyRequests, last.Code)
}

func TestIssueTokenRejectsUnknownRole(t *testing.T) {
	h := newHarness(t)

	rec := httptest.NewRecorder()
	h.handler.IssueToken(rec, request(t, http.MethodPost, "/auth/token", "", map[string]interface{}{
		"user_id": "user-1",
		"role":    "RIDER",
	}, nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
