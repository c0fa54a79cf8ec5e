package service

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/diagnosis/van-reservations/internal/utils"
	"github.com/diagnosis/van-reservations/pkg/events"
	"github.com/diagnosis/van-reservations/pkg/logger"
	"github.com/diagnosis/van-reservations/services/reservations/internal/domain"
	"github.com/diagnosis/van-reservations/services/reservations/internal/repository"
)

// AvailabilityCache holds availability responses per window. Get returns the
// cache generation it read; Set stores under that generation. Invalidate
// drops every cached window.
type AvailabilityCache interface {
	Get(ctx context.Context, start, end time.Time, dst any) (gen int64, hit bool, err error)
	Set(ctx context.Context, gen int64, start, end time.Time, v any) error
	Invalidate(ctx context.Context) error
}

type ReservationService interface {
	// CreateBooking reports replayed=true when idempotencyKey matched an
	// earlier booking, which is returned instead of creating a new one.
	CreateBooking(ctx context.Context, req domain.BookingRequest, idempotencyKey string) (res *domain.Reservation, replayed bool, err error)
	CreateBlock(ctx context.Context, req domain.BlockRequest, createdBy string) (*domain.Reservation, error)
	Availability(ctx context.Context, window domain.Interval) (*domain.Summary, error)
	ListBookings(ctx context.Context) ([]domain.Reservation, error)
	Location() *time.Location
}

type Options struct {
	Policy         domain.Policy
	Location       *time.Location
	IdempotencyTTL time.Duration
	Now            func() time.Time
}

type reservationService struct {
	reservations repository.ReservationRepository
	idempotency  repository.IdempotencyRepository
	cache        AvailabilityCache
	notifier     Notifier
	publisher    events.Publisher
	opts         Options
}

// NewReservationService wires the service. cache may be nil.
func NewReservationService(
	reservations repository.ReservationRepository,
	idempotency repository.IdempotencyRepository,
	cache AvailabilityCache,
	notifier Notifier,
	publisher events.Publisher,
	opts Options,
) ReservationService {
	if opts.Policy == nil {
		opts.Policy = domain.DefaultPolicy(false)
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.IdempotencyTTL == 0 {
		opts.IdempotencyTTL = 24 * time.Hour
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if publisher == nil {
		publisher = events.Discard{}
	}
	return &reservationService{
		reservations: reservations,
		idempotency:  idempotency,
		cache:        cache,
		notifier:     notifier,
		publisher:    publisher,
		opts:         opts,
	}
}

func (s *reservationService) Location() *time.Location {
	return s.opts.Location
}

func (s *reservationService) CreateBooking(ctx context.Context, req domain.BookingRequest, idempotencyKey string) (*domain.Reservation, bool, error) {
	if err := domain.CheckRequired(&req); err != nil {
		return nil, false, err
	}

	if idempotencyKey != "" {
		if prior, err := s.replay(ctx, idempotencyKey); err != nil {
			return nil, false, err
		} else if prior != nil {
			logger.InfoContext(ctx, "Replaying idempotent booking", "reservation_id", prior.ID)
			return prior, true, nil
		}
	}

	window, err := domain.ParseInterval(req.Start, req.End, s.opts.Location)
	if err != nil {
		return nil, false, err
	}
	rules := s.opts.Policy.Rules(domain.KindBooking)
	if err := domain.Validate(window, rules, s.opts.Now()); err != nil {
		return nil, false, err
	}

	candidate := &domain.Reservation{
		Kind:       domain.KindBooking,
		Interval:   window,
		Name:       utils.CollapseSpaces(req.Name),
		Email:      utils.NormalizeEmail(req.Email),
		Phone:      req.Phone,
		Department: req.Department,
		Reason:     req.Reason,
	}

	// The key is resolved again under the timeline lock, so a retry racing
	// the original request gets the original booking rather than a conflict.
	created, replayed, err := s.reservations.Create(ctx, candidate, rules, repository.IdempotencyKey{
		Key: idempotencyKey,
		TTL: s.opts.IdempotencyTTL,
	})
	if err != nil {
		if domain.IsConflict(err) {
			return nil, false, err
		}
		return nil, false, fmt.Errorf("create booking: %w", err)
	}
	if replayed {
		logger.InfoContext(ctx, "Replaying idempotent booking", "reservation_id", created.ID)
		return created, true, nil
	}

	s.invalidate(ctx)
	logger.InfoContext(ctx, "Booking created",
		"reservation_id", created.ID,
		"start", created.Interval.Start,
		"end", created.Interval.End,
	)
	if s.notifier != nil {
		s.notifier.BookingCreated(ctx, *created)
	}
	return created, false, nil
}

func (s *reservationService) replay(ctx context.Context, key string) (*domain.Reservation, error) {
	id, ok, err := s.idempotency.Lookup(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("idempotency lookup: %w", err)
	}
	if !ok {
		return nil, nil
	}
	return s.reservations.GetByID(ctx, id)
}

func (s *reservationService) CreateBlock(ctx context.Context, req domain.BlockRequest, createdBy string) (*domain.Reservation, error) {
	if err := domain.CheckRequired(&req); err != nil {
		return nil, err
	}

	window, err := domain.ParseInterval(req.Start, req.End, s.opts.Location)
	if err != nil {
		return nil, err
	}
	rules := s.opts.Policy.Rules(domain.KindMaintenanceBlock)
	if err := domain.Validate(window, rules, s.opts.Now()); err != nil {
		return nil, err
	}

	created, _, err := s.reservations.Create(ctx, &domain.Reservation{
		Kind:      domain.KindMaintenanceBlock,
		Interval:  window,
		Reason:    req.Reason,
		CreatedBy: utils.NormalizeEmail(createdBy),
	}, rules, repository.IdempotencyKey{})
	if err != nil {
		if domain.IsConflict(err) {
			return nil, err
		}
		return nil, fmt.Errorf("create block: %w", err)
	}

	s.invalidate(ctx)
	logger.InfoContext(ctx, "Period blocked", "reservation_id", created.ID, "created_by", created.CreatedBy)

	event := events.BlockCreatedEvent{
		ReservationID: created.ID.String(),
		Reason:        created.Reason,
		CreatedBy:     created.CreatedBy,
		Start:         created.Interval.Start,
		End:           created.Interval.End,
		CreatedAt:     created.CreatedAt,
	}
	if err := s.publisher.Publish(ctx, events.ReservationBlockCreated, event); err != nil {
		logger.ErrorContext(ctx, "Failed to publish block created event", "error", err, "reservation_id", created.ID)
	}
	return created, nil
}

// Availability returns every booking and block touching window. Boundaries
// are inclusive.
func (s *reservationService) Availability(ctx context.Context, window domain.Interval) (*domain.Summary, error) {
	if window.End.Before(window.Start) {
		return nil, domain.ErrInvalidRange
	}

	var (
		cached    cachedSummary
		gen       int64
		cacheable bool
	)
	if s.cache != nil {
		current, hit, err := s.cache.Get(ctx, window.Start, window.End, &cached)
		gen, cacheable = current, err == nil
		if err != nil {
			logger.WarnContext(ctx, "Availability cache read failed", "error", err)
		} else if hit {
			return &domain.Summary{Window: window, Bookings: cached.Bookings, Blocked: cached.Blocked}, nil
		}
	}

	summary := &domain.Summary{Window: window}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		rs, err := s.reservations.FindOverlapping(gctx, domain.KindBooking, window)
		summary.Bookings = rs
		return err
	})
	g.Go(func() error {
		rs, err := s.reservations.FindOverlapping(gctx, domain.KindMaintenanceBlock, window)
		summary.Blocked = rs
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("load availability: %w", err)
	}

	if cacheable {
		if err := s.cache.Set(ctx, gen, window.Start, window.End, cachedSummary{Bookings: summary.Bookings, Blocked: summary.Blocked}); err != nil {
			logger.WarnContext(ctx, "Availability cache write failed", "error", err)
		}
	}
	return summary, nil
}

func (s *reservationService) ListBookings(ctx context.Context) ([]domain.Reservation, error) {
	rs, err := s.reservations.ListByKind(ctx, domain.KindBooking)
	if err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}
	return rs, nil
}

func (s *reservationService) invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx); err != nil {
		logger.ErrorContext(ctx, "Availability cache invalidation failed", "error", err)
	}
}

type cachedSummary struct {
	Bookings []domain.Reservation `json:"bookings"`
	Blocked  []domain.Reservation `json:"blocked"`
}
