package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"carpool/internal/booking-service/consumer"
	"carpool/internal/booking-service/domain"
	"carpool/internal/booking-service/handler"
	"carpool/internal/booking-service/ledger"
	"carpool/internal/booking-service/notifier"
	"carpool/internal/booking-service/repository"
	"carpool/internal/booking-service/service"
	"carpool/pkg/auth"
	"carpool/pkg/config"
	"carpool/pkg/db"
	"carpool/pkg/logger"
	"carpool/pkg/rabbitmq"
	"carpool/pkg/ratelimit"
	"carpool/pkg/websocket"
)

func main() {
	// Load config
	cfg, err := config.LoadConfig(".env")
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	// Initialize logger
	log := logger.NewLogger("booking-service")
	log.Info("service_starting", fmt.Sprintf("Booking Service starting on port %d", cfg.HTTP.Port))

	// Connect to database
	dbConn, err := db.NewConnection(cfg, log)
	if err != nil {
		log.Error("db_connect_failed", err)
		os.Exit(1)
	}
	defer dbConn.Close()

	// Connect to RabbitMQ
	rabbit, err := rabbitmq.NewConnection(cfg, log)
	if err != nil {
		log.Error("rabbitmq_connect_failed", err)
		os.Exit(1)
	}
	defer rabbit.Close()

	// Initialize JWT manager
	jwtManager := auth.NewJWTManager(cfg.Auth.Secret, cfg.Auth.TokenDuration)

	// Initialize WebSocket manager
	wsManager := websocket.NewManager(log)

	// Repositories
	rideRepo := repository.NewPostgresRideRepository(dbConn)
	bookingRepo := repository.NewPostgresBookingRepository(dbConn)
	chatRepo := repository.NewPostgresChatRepository(dbConn)
	locationRepo := repository.NewPostgresLocationRepository(dbConn)

	// Core services
	seatLedger := ledger.New(rideRepo, log, cfg.Ledger.MaxRetries)
	dispatcher := notifier.NewRabbitDispatcher(rabbit, log)
	rideService := service.NewRideService(rideRepo, bookingRepo, seatLedger, dispatcher, log)
	bookingService := service.NewBookingService(bookingRepo, rideRepo, seatLedger, dispatcher, log)
	chatService := service.NewChatService(chatRepo, bookingRepo, rideRepo, dispatcher, log)
	locationService := service.NewLocationService(locationRepo, dispatcher, log)

	limiter := ratelimit.NewMemoryLimiter(cfg.RateLimit.Window, cfg.RateLimit.MaxAttempts)

	// Initialize handler
	h := handler.New(rideService, bookingService, chatService, locationService, limiter, jwtManager, log)

	// Initialize and start event consumers
	eventConsumer := consumer.New(rabbit, log, wsManager)
	ctx := context.Background()
	if err := eventConsumer.StartConsuming(ctx); err != nil {
		log.Error("consumer_start_failed", err)
		os.Exit(1)
	}

	// Setup routes
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", h.Health)

	// Public endpoint for testing - generates tokens (remove in production!)
	mux.HandleFunc("POST /auth/token", h.IssueToken)

	protect := func(hf http.HandlerFunc) http.Handler {
		return jwtManager.AuthMiddleware(hf)
	}

	// Rides
	mux.Handle("POST /rides", protect(h.CreateRide))
	mux.Handle("GET /rides/search", protect(h.SearchRides))
	mux.Handle("GET /rides/{ride_id}", protect(h.GetRide))
	mux.Handle("POST /rides/{ride_id}/cancel", protect(h.CancelRide))
	mux.Handle("POST /rides/{ride_id}/complete", protect(h.CompleteRide))
	mux.Handle("GET /users/me/rides", protect(h.MyRides))

	// Bookings
	mux.Handle("POST /rides/{ride_id}/bookings", protect(h.CreateBooking))
	mux.Handle("POST /bookings/{booking_id}/approve", protect(h.ApproveBooking))
	mux.Handle("POST /bookings/{booking_id}/reject", protect(h.RejectBooking))
	mux.Handle("POST /bookings/{booking_id}/cancel", protect(h.CancelBooking))
	mux.Handle("GET /drivers/me/requests", protect(h.PendingRequests))

	// Chat
	mux.Handle("POST /bookings/{booking_id}/messages", protect(h.SendMessage))
	mux.Handle("GET /bookings/{booking_id}/messages", protect(h.ListMessages))
	mux.Handle("POST /bookings/{booking_id}/messages/read", protect(h.MarkMessagesRead))

	// Driver location
	mux.Handle("POST /drivers/me/location", protect(h.UpdateLocation))
	mux.Handle("GET /drivers/{driver_id}/location", protect(h.GetLocation))

	// WebSocket endpoint for booking events and chat. Only the two
	// parties of the booking may subscribe.
	mux.HandleFunc("GET /ws/bookings/{booking_id}", func(w http.ResponseWriter, r *http.Request) {
		bookingID := r.PathValue("booking_id")
		if bookingID == "" {
			http.Error(w, "booking_id is required", http.StatusBadRequest)
			return
		}

		topic := "booking:" + bookingID
		wsHandler := websocket.NewHandler(
			log,
			jwtManager,
			func(claims *auth.AppClaims) error {
				booking, err := bookingRepo.FindByID(r.Context(), bookingID)
				if err != nil {
					return err
				}
				if booking.BelongsTo(claims.UserID) {
					return nil
				}
				ride, err := rideRepo.FindByID(r.Context(), booking.RideID())
				if err != nil {
					return err
				}
				if !ride.IsOwnedBy(claims.UserID) {
					return domain.ErrForbidden
				}
				return nil
			},
			func(conn *websocket.Connection) {
				wsManager.Subscribe(topic, conn)
				conn.ReadPump(
					func(msgType int, p []byte) {
						log.WithFields(logger.LogFields{
							"booking_id": bookingID,
							"message":    string(p),
						}).Debug("booking_ws_message", "Message from subscriber")
					},
					func() {
						wsManager.Unsubscribe(topic, conn)
					},
				)
			},
		)
		wsHandler.ServeHTTP(w, r)
	})

	// WebSocket endpoint for a driver's live location feed. Any
	// authenticated user may watch.
	mux.HandleFunc("GET /ws/drivers/{driver_id}", func(w http.ResponseWriter, r *http.Request) {
		driverID := r.PathValue("driver_id")
		if driverID == "" {
			http.Error(w, "driver_id is required", http.StatusBadRequest)
			return
		}

		topic := "driver:" + driverID
		wsHandler := websocket.NewHandler(
			log,
			jwtManager,
			nil,
			func(conn *websocket.Connection) {
				wsManager.Subscribe(topic, conn)
				conn.ReadPump(
					func(msgType int, p []byte) {},
					func() {
						wsManager.Unsubscribe(topic, conn)
					},
				)
			},
		)
		wsHandler.ServeHTTP(w, r)
	})

	// Start server
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler: mux,
	}

	// Graceful shutdown
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server_failed", err)
			os.Exit(1)
		}
	}()

	log.Info("server_running", fmt.Sprintf("Booking Service running on :%d", cfg.HTTP.Port))

	// Wait for interrupt
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("server_shutdown", "Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	srv.Shutdown(shutdownCtx)
	log.Info("server_stopped", "Server stopped gracefully")
}
