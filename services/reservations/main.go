package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"github.com/diagnosis/van-reservations/pkg/auth"
	"github.com/diagnosis/van-reservations/pkg/cache"
	"github.com/diagnosis/van-reservations/pkg/config"
	"github.com/diagnosis/van-reservations/pkg/database"
	"github.com/diagnosis/van-reservations/pkg/events"
	"github.com/diagnosis/van-reservations/pkg/logger"
	"github.com/diagnosis/van-reservations/pkg/mailer"
	mw "github.com/diagnosis/van-reservations/pkg/middleware"
	"github.com/diagnosis/van-reservations/services/reservations/internal/domain"
	"github.com/diagnosis/van-reservations/services/reservations/internal/handlers"
	"github.com/diagnosis/van-reservations/services/reservations/internal/repository"
	"github.com/diagnosis/van-reservations/services/reservations/internal/service"
)

func main() {
	logger.SetDefault(logger.New(os.Stdout, os.Getenv("LOG_LEVEL")))

	cfg, err := config.LoadWithFile(getEnv("ENV_FILE", ".env"))
	if err != nil {
		logger.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	if err := run(cfg); err != nil {
		logger.Error("Reservations service stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()

	if cfg.Database.MigrateOnStart {
		if err := database.Migrate(ctx, pool); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}

	loc, err := time.LoadLocation(cfg.Email.DisplayTimezone)
	if err != nil {
		return err
	}

	checks := []handlers.HealthCheck{{Name: "database", Ping: pool.Ping}}

	var availability service.AvailabilityCache
	if cfg.Redis.Enabled {
		rdb, err := cache.NewRedisClient(ctx, cfg.Redis.URL)
		if err != nil {
			logger.Warn("Redis unavailable, availability cache disabled", "error", err)
		} else {
			defer rdb.Close()
			availability = cache.NewWindowCache(rdb, "van:availability", cfg.Redis.CacheTTL)
			checks = append(checks, handlers.HealthCheck{
				Name: "redis",
				Ping: func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
			})
		}
	}

	var publisher events.Publisher = events.Discard{}
	if cfg.NATS.Enabled {
		bus, err := events.NewNATSEventBus(cfg.NATS.URL, "reservations")
		if err != nil {
			return err
		}
		defer bus.Close()
		publisher = bus
		checks = append(checks, handlers.HealthCheck{Name: "nats", Ping: bus.Ping})
	}

	var notifier service.Notifier
	switch cfg.Notify.Mode {
	case config.NotifyEvents:
		notifier = service.NewEventNotifier(publisher)
	default:
		m, err := mailer.New(cfg.Email)
		if err != nil {
			return fmt.Errorf("mailer: %w", err)
		}
		mn := service.NewMailNotifier(m)
		defer func() {
			waitCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := mn.Wait(waitCtx); err != nil {
				logger.Warn("Pending confirmation emails abandoned", "error", err)
			}
		}()
		notifier = mn
	}

	// The key set refreshes in the background until shutdown.
	jwksCtx, cancelJWKS := context.WithCancel(context.Background())
	defer cancelJWKS()
	keys, err := auth.NewJWKS(jwksCtx, cfg.Auth.JWKSURL)
	if err != nil {
		return err
	}
	verifier := auth.NewVerifier(keys, auth.Options{
		ClientID:       cfg.Auth.ClientID,
		TenantID:       cfg.Auth.TenantID,
		AllowedTenants: cfg.Auth.AllowedTenants,
		AdminEmails:    cfg.Auth.AdminEmails,
	})

	reservationRepo := repository.NewReservationRepository(pool)
	idempotencyRepo := repository.NewIdempotencyRepository(pool)
	photoRepo := repository.NewPhotoRepository(pool)

	reservationService := service.NewReservationService(reservationRepo, idempotencyRepo, availability, notifier, publisher, service.Options{
		Policy:   domain.DefaultPolicy(cfg.Reservations.StrictBlocks),
		Location: loc,
	})
	photoService := service.NewPhotoService(photoRepo, cfg.Uploads.Dir, "/uploads", cfg.Uploads.MaxBytes)

	h := handlers.New(reservationService, photoService, verifier, handlers.FrontendConfig{
		ClientID:    cfg.Auth.ClientID,
		AdminEmails: cfg.Auth.AdminEmails,
	}, checks...)

	proxies, err := mw.ParseTrustedProxies(cfg.Server.TrustedProxies)
	if err != nil {
		return fmt.Errorf("TRUSTED_PROXIES: %w", err)
	}
	rateCounter := mw.NewPostgresRateCounter(pool)
	limiter := mw.NewRateLimiter(rateCounter, mw.RateLimitConfig{
		Requests:       cfg.RateLimit.Requests,
		Window:         cfg.RateLimit.Window,
		TrustedProxies: proxies,
	})

	r := chi.NewRouter()
	r.Use(mw.RequestID)
	r.Use(mw.ServiceName("reservations"))
	r.Use(mw.Logging)
	r.Use(mw.Recover)
	r.Use(mw.CORS(cfg.Server.AllowedOrigins))

	h.Mount(r, handlers.RouteOptions{
		BookingLimiter: limiter.Middleware(),
		UploadDir:      cfg.Uploads.Dir,
		StaticDir:      staticDir(cfg.Server.StaticDir),
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting reservations service",
			"port", cfg.Server.Port,
			"notify_mode", cfg.Notify.Mode,
			"strict_blocks", cfg.Reservations.StrictBlocks,
			"redis", availability != nil,
			"nats", cfg.NATS.Enabled,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down reservations service...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		sweep(gctx, idempotencyRepo, rateCounter)
		return nil
	})

	return g.Wait()
}

// sweep deletes expired idempotency keys and rate limit windows every hour.
func sweep(ctx context.Context, idem repository.IdempotencyRepository, rate *mw.PostgresRateCounter) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n, err := idem.CleanupExpired(ctx); err != nil {
				logger.Warn("Idempotency cleanup failed", "error", err)
			} else if n > 0 {
				logger.Info("Expired idempotency keys removed", "count", n)
			}
			if _, err := rate.CleanupExpired(ctx); err != nil {
				logger.Warn("Rate limit cleanup failed", "error", err)
			}
		}
	}
}

// staticDir returns dir when it holds an index.html, else "".
func staticDir(dir string) string {
	if dir == "" {
		return ""
	}
	if _, err := os.Stat(dir + "/index.html"); err != nil {
		return ""
	}
	return dir
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}
