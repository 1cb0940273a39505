package handler

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"carpool/internal/booking-service/domain"
	"carpool/internal/booking-service/service"
	"carpool/pkg/auth"
	"carpool/pkg/logger"
	"carpool/pkg/ratelimit"
)

// Handler exposes the booking platform over HTTP. All mutating routes
// sit behind the JWT middleware; the authenticated user id is the
// actor for every ownership check.
type Handler struct {
	rides     *service.RideService
	bookings  *service.BookingService
	chat      *service.ChatService
	locations *service.LocationService
	limiter   ratelimit.Limiter
	jwt       *auth.JWTManager
	log       logger.Logger
}

func New(
	rides *service.RideService,
	bookings *service.BookingService,
	chat *service.ChatService,
	locations *service.LocationService,
	limiter ratelimit.Limiter,
	jwt *auth.JWTManager,
	log logger.Logger,
) *Handler {
	return &Handler{
		rides:     rides,
		bookings:  bookings,
		chat:      chat,
		locations: locations,
		limiter:   limiter,
		jwt:       jwt,
		log:       log,
	}
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// --- auth ---

type tokenRequest struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
}

type tokenResponse struct {
	Token  string `json:"token"`
	UserID string `json:"user_id"`
	Role   string `json:"role"`
}

// IssueToken exchanges a user id for a bearer token. The identity
// provider proper lives outside this service; this endpoint stands in
// for it and is throttled per user id against brute-force attempts.
func (h *Handler) IssueToken(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.UserID == "" {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}
	role := auth.Role(req.Role)
	if !role.IsValid() {
		writeError(w, http.StatusBadRequest, "role must be PASSENGER, DRIVER or ADMIN")
		return
	}

	allowed, err := h.limiter.Allow(r.Context(), "token:"+req.UserID)
	if err != nil {
		h.log.Error("ratelimit_check_failed", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if !allowed {
		writeError(w, http.StatusTooManyRequests, "too many attempts, try again later")
		return
	}

	token, err := h.jwt.GenerateToken(req.UserID, role)
	if err != nil {
		h.log.Error("generate_token_failed", err)
		writeError(w, http.StatusInternalServerError, "failed to generate token")
		return
	}

	writeJSON(w, http.StatusOK, tokenResponse{Token: token, UserID: req.UserID, Role: req.Role})
}

// --- rides ---

type createRideRequest struct {
	FromLocation  string  `json:"from_location"`
	ToLocation    string  `json:"to_location"`
	DepartureDate string  `json:"departure_date"`
	DepartureTime string  `json:"departure_time"`
	Seats         int     `json:"seats"`
	PricePerSeat  float64 `json:"price_per_seat"`
	CarModel      string  `json:"car_model,omitempty"`
	Description   string  `json:"description,omitempty"`
}

type rideResponse struct {
	ID             string  `json:"id"`
	DriverID       string  `json:"driver_id"`
	FromLocation   string  `json:"from_location"`
	ToLocation     string  `json:"to_location"`
	Departure      string  `json:"departure"`
	TotalSeats     int     `json:"total_seats"`
	AvailableSeats int     `json:"available_seats"`
	PricePerSeat   float64 `json:"price_per_seat"`
	CarModel       string  `json:"car_model,omitempty"`
	Description    string  `json:"description,omitempty"`
	Status         string  `json:"status"`
	CreatedAt      string  `json:"created_at"`
}

func toRideResponse(ride *domain.Ride) rideResponse {
	return rideResponse{
		ID:             ride.ID(),
		DriverID:       ride.DriverID(),
		FromLocation:   ride.FromLocation(),
		ToLocation:     ride.ToLocation(),
		Departure:      ride.Departure().Format(time.RFC3339),
		TotalSeats:     ride.TotalSeats(),
		AvailableSeats: ride.AvailableSeats(),
		PricePerSeat:   ride.PricePerSeat(),
		CarModel:       ride.CarModel(),
		Description:    ride.Description(),
		Status:         ride.Status().String(),
		CreatedAt:      ride.CreatedAt().Format(time.RFC3339),
	}
}

func (h *Handler) CreateRide(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing claims")
		return
	}

	var req createRideRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	departure, err := parseDeparture(req.DepartureDate, req.DepartureTime)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	ride, err := h.rides.Create(r.Context(), claims.UserID, service.CreateRideCommand{
		FromLocation: req.FromLocation,
		ToLocation:   req.ToLocation,
		Departure:    departure,
		Seats:        req.Seats,
		PricePerSeat: req.PricePerSeat,
		CarModel:     req.CarModel,
		Description:  req.Description,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toRideResponse(ride))
}

func (h *Handler) GetRide(w http.ResponseWriter, r *http.Request) {
	ride, err := h.rides.Get(r.Context(), r.PathValue("ride_id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRideResponse(ride))
}

func (h *Handler) SearchRides(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	now := time.Now()
	date := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	if raw := q.Get("date"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			writeDomainError(w, domain.NewValidationError("date", "must be YYYY-MM-DD"))
			return
		}
		date = parsed
	}

	rides, err := h.rides.Search(r.Context(), q.Get("from"), q.Get("to"), date)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	out := make([]rideResponse, 0, len(rides))
	for _, ride := range rides {
		out = append(out, toRideResponse(ride))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"rides": out})
}

func (h *Handler) CancelRide(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing claims")
		return
	}
	if err := h.rides.Cancel(r.Context(), claims.UserID, r.PathValue("ride_id")); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
}

func (h *Handler) CompleteRide(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing claims")
		return
	}
	if err := h.rides.Complete(r.Context(), claims.UserID, r.PathValue("ride_id")); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "completed"})
}

// MyRides returns the rides the user offered and the bookings they
// made, the combined "my rides" view.
func (h *Handler) MyRides(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing claims")
		return
	}

	offered, err := h.rides.ListByDriver(r.Context(), claims.UserID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	booked, err := h.bookings.ListByPassenger(r.Context(), claims.UserID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	offeredOut := make([]rideResponse, 0, len(offered))
	for _, ride := range offered {
		offeredOut = append(offeredOut, toRideResponse(ride))
	}
	bookedOut := make([]bookingResponse, 0, len(booked))
	for _, booking := range booked {
		bookedOut = append(bookedOut, toBookingResponse(booking))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"offered": offeredOut,
		"booked":  bookedOut,
	})
}

// --- bookings ---

type createBookingRequest struct {
	Seats int `json:"seats"`
}

type bookingResponse struct {
	ID          string `json:"id"`
	RideID      string `json:"ride_id"`
	PassengerID string `json:"passenger_id"`
	Seats       int    `json:"seats"`
	Status      string `json:"status"`
	CreatedAt   string `json:"created_at"`
}

func toBookingResponse(booking *domain.Booking) bookingResponse {
	return bookingResponse{
		ID:          booking.ID(),
		RideID:      booking.RideID(),
		PassengerID: booking.PassengerID(),
		Seats:       booking.Seats(),
		Status:      booking.Status().String(),
		CreatedAt:   booking.CreatedAt().Format(time.RFC3339),
	}
}

func (h *Handler) CreateBooking(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing claims")
		return
	}

	var req createBookingRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	booking, err := h.bookings.Create(r.Context(), claims.UserID, r.PathValue("ride_id"), req.Seats)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toBookingResponse(booking))
}

func (h *Handler) ApproveBooking(w http.ResponseWriter, r *http.Request) {
	h.transitionBooking(w, r, h.bookings.Approve, "confirmed")
}

func (h *Handler) RejectBooking(w http.ResponseWriter, r *http.Request) {
	h.transitionBooking(w, r, h.bookings.Reject, "cancelled")
}

func (h *Handler) CancelBooking(w http.ResponseWriter, r *http.Request) {
	h.transitionBooking(w, r, h.bookings.Cancel, "cancelled")
}

func (h *Handler) transitionBooking(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, actorID, bookingID string) error, result string) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing claims")
		return
	}
	if err := op(r.Context(), claims.UserID, r.PathValue("booking_id")); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": result})
}

// PendingRequests is the driver's approval inbox.
func (h *Handler) PendingRequests(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing claims")
		return
	}
	requests, err := h.bookings.PendingRequests(r.Context(), claims.UserID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	out := make([]bookingResponse, 0, len(requests))
	for _, booking := range requests {
		out = append(out, toBookingResponse(booking))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"requests": out})
}

// --- chat ---

type sendMessageRequest struct {
	Message string `json:"message"`
}

type messageResponse struct {
	ID        string `json:"id"`
	BookingID string `json:"booking_id"`
	SenderID  string `json:"sender_id"`
	Message   string `json:"message"`
	Read      bool   `json:"read"`
	CreatedAt string `json:"created_at"`
}

func toMessageResponse(message *domain.Message) messageResponse {
	return messageResponse{
		ID:        message.ID(),
		BookingID: message.BookingID(),
		SenderID:  message.SenderID(),
		Message:   message.Text(),
		Read:      message.Read(),
		CreatedAt: message.CreatedAt().Format(time.RFC3339),
	}
}

func (h *Handler) SendMessage(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing claims")
		return
	}

	var req sendMessageRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	message, err := h.chat.Send(r.Context(), claims.UserID, r.PathValue("booking_id"), req.Message)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toMessageResponse(message))
}

func (h *Handler) ListMessages(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing claims")
		return
	}
	messages, err := h.chat.History(r.Context(), claims.UserID, r.PathValue("booking_id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	out := make([]messageResponse, 0, len(messages))
	for _, message := range messages {
		out = append(out, toMessageResponse(message))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"messages": out})
}

func (h *Handler) MarkMessagesRead(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing claims")
		return
	}
	if err := h.chat.MarkRead(r.Context(), claims.UserID, r.PathValue("booking_id")); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "read"})
}

// --- driver location ---

type updateLocationRequest struct {
	Latitude  float64  `json:"latitude"`
	Longitude float64  `json:"longitude"`
	Heading   *float64 `json:"heading,omitempty"`
	Speed     *float64 `json:"speed,omitempty"`
}

type locationResponse struct {
	DriverID  string   `json:"driver_id"`
	Latitude  float64  `json:"latitude"`
	Longitude float64  `json:"longitude"`
	Heading   *float64 `json:"heading,omitempty"`
	Speed     *float64 `json:"speed,omitempty"`
	UpdatedAt string   `json:"updated_at"`
}

func (h *Handler) UpdateLocation(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing claims")
		return
	}

	var req updateLocationRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	err := h.locations.Update(r.Context(), &domain.DriverLocation{
		DriverID:  claims.UserID,
		Latitude:  req.Latitude,
		Longitude: req.Longitude,
		Heading:   req.Heading,
		Speed:     req.Speed,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

func (h *Handler) GetLocation(w http.ResponseWriter, r *http.Request) {
	location, err := h.locations.Get(r.Context(), r.PathValue("driver_id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, locationResponse{
		DriverID:  location.DriverID,
		Latitude:  location.Latitude,
		Longitude: location.Longitude,
		Heading:   location.Heading,
		Speed:     location.Speed,
		UpdatedAt: location.UpdatedAt.Format(time.RFC3339),
	})
}

// parseDeparture combines the date and time fields clients submit into
// a single timestamp.
func parseDeparture(date, clock string) (time.Time, error) {
	if date == "" {
		return time.Time{}, domain.NewValidationError("departure_date", "is required")
	}
	if clock == "" {
		return time.Time{}, domain.NewValidationError("departure_time", "is required")
	}
	departure, err := time.Parse("2006-01-02 15:04", fmt.Sprintf("%s %s", date, clock))
	if err != nil {
		return time.Time{}, domain.NewValidationError("departure", "must be YYYY-MM-DD and HH:MM")
	}
	return departure, nil
}
