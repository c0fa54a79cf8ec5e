package service

import (
	"context"
	"sync"
	"time"

	"github.com/diagnosis/van-reservations/pkg/events"
	"github.com/diagnosis/van-reservations/pkg/logger"
	"github.com/diagnosis/van-reservations/pkg/mailer"
	"github.com/diagnosis/van-reservations/services/reservations/internal/domain"
)

// Notifier is told about every created booking. Implementations must not
// block the caller and must not report delivery failures back to it.
type Notifier interface {
	BookingCreated(ctx context.Context, r domain.Reservation)
}

// ConfirmationFor builds the email content for a booking.
func ConfirmationFor(r domain.Reservation) mailer.Confirmation {
	return mailer.Confirmation{
		ReservationID: r.ID.String(),
		To:            r.Email,
		Name:          r.Name,
		Start:         r.Interval.Start,
		End:           r.Interval.End,
		Department:    r.Department,
		Reason:        r.Reason,
	}
}

// MailNotifier sends the confirmation itself from a background goroutine.
type MailNotifier struct {
	mailer  mailer.Service
	timeout time.Duration
	wg      sync.WaitGroup
}

func NewMailNotifier(m mailer.Service) *MailNotifier {
	return &MailNotifier{mailer: m, timeout: 10 * time.Second}
}

func (n *MailNotifier) BookingCreated(ctx context.Context, r domain.Reservation) {
	// The request context is cancelled once the response is written.
	ctx = context.WithoutCancel(ctx)

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()

		ctx, cancel := context.WithTimeout(ctx, n.timeout)
		defer cancel()

		if err := n.mailer.SendBookingConfirmation(ctx, ConfirmationFor(r)); err != nil {
			logger.ErrorContext(ctx, "Failed to send booking confirmation",
				"error", err,
				"reservation_id", r.ID,
			)
		}
	}()
}

// Wait blocks until in-flight sends finish or ctx ends.
func (n *MailNotifier) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		n.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// EventNotifier hands confirmations to the notify service over the event bus.
type EventNotifier struct {
	publisher events.Publisher
}

func NewEventNotifier(p events.Publisher) *EventNotifier {
	return &EventNotifier{publisher: p}
}

func (n *EventNotifier) BookingCreated(ctx context.Context, r domain.Reservation) {
	event := events.BookingCreatedEvent{
		ReservationID: r.ID.String(),
		Name:          r.Name,
		Email:         r.Email,
		Phone:         r.Phone,
		Department:    r.Department,
		Reason:        r.Reason,
		Start:         r.Interval.Start,
		End:           r.Interval.End,
		CreatedAt:     r.CreatedAt,
	}
	if err := n.publisher.Publish(ctx, events.ReservationBookingCreated, event); err != nil {
		logger.ErrorContext(ctx, "Failed to publish booking created event", "error", err, "reservation_id", r.ID)
	}
}
