package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/diagnosis/van-reservations/pkg/config"
	"github.com/diagnosis/van-reservations/pkg/events"
	"github.com/diagnosis/van-reservations/pkg/logger"
	"github.com/diagnosis/van-reservations/pkg/mailer"
	mw "github.com/diagnosis/van-reservations/pkg/middleware"
)

func main() {
	logger.SetDefault(logger.New(os.Stdout, os.Getenv("LOG_LEVEL")))

	cfg, err := config.LoadWithFile(getEnv("ENV_FILE", ".env"))
	if err != nil {
		logger.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	m, err := mailer.New(cfg.Email)
	if err != nil {
		logger.Error("Failed to create mailer", "error", err)
		os.Exit(1)
	}

	bus, err := events.NewNATSEventBus(cfg.NATS.URL, "notify")
	if err != nil {
		logger.Error("Failed to connect to NATS", "error", err)
		os.Exit(1)
	}

	if err := bus.QueueSubscribe(events.ReservationBookingCreated, cfg.NATS.Queue, confirmationHandler(m, 10*time.Second)); err != nil {
		logger.Error("Failed to subscribe", "subject", events.ReservationBookingCreated, "error", err)
		os.Exit(1)
	}

	port := getEnv("NOTIFY_PORT", "8086")
	r := chi.NewRouter()
	r.Use(mw.RequestID)
	r.Use(mw.ServiceName("notify"))
	r.Use(mw.Recover)
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		status, code := "healthy", http.StatusOK
		if err := bus.Ping(r.Context()); err != nil {
			status, code = "degraded", http.StatusServiceUnavailable
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_, _ = w.Write([]byte(`{"status":"` + status + `"}`))
	})

	srv := &http.Server{Addr: ":" + port, Handler: r, ReadTimeout: 5 * time.Second}
	go func() {
		logger.Info("Starting notify service", "port", port, "subject", events.ReservationBookingCreated, "queue", cfg.NATS.Queue)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Notify health server error", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down notify service...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Health server shutdown error", "error", err)
	}
	if err := bus.Close(); err != nil {
		logger.Error("NATS drain error", "error", err)
	}
}

// confirmationHandler sends the confirmation email for a booking event.
// Failures are logged; the booking already exists.
func confirmationHandler(m mailer.Service, timeout time.Duration) func(*events.Message) {
	return func(msg *events.Message) {
		var event events.BookingCreatedEvent
		if err := msg.Decode(&event); err != nil {
			logger.Error("Malformed booking event", "subject", msg.Subject, "error", err)
			return
		}
		if event.Email == "" {
			logger.Warn("Booking event without recipient", "reservation_id", event.ReservationID)
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		c := mailer.Confirmation{
			ReservationID: event.ReservationID,
			To:            event.Email,
			Name:          event.Name,
			Start:         event.Start,
			End:           event.End,
			Department:    event.Department,
			Reason:        event.Reason,
		}
		if err := m.SendBookingConfirmation(ctx, c); err != nil {
			logger.Error("Failed to send booking confirmation", "reservation_id", event.ReservationID, "error", err)
			return
		}
		logger.Info("Booking confirmation sent", "reservation_id", event.ReservationID)
	}
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}
