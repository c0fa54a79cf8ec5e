package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/diagnosis/van-reservations/pkg/logger"
)

type Publisher interface {
	Publish(ctx context.Context, subject string, data any) error
}

type Subscriber interface {
	QueueSubscribe(subject, queue string, handler func(msg *Message)) error
}

type Message struct {
	Subject   string
	Data      []byte
	Timestamp time.Time
}

// Decode unmarshals the message payload into v.
func (m *Message) Decode(v any) error {
	return json.Unmarshal(m.Data, v)
}

type NATSEventBus struct {
	conn *nats.Conn
}

func NewNATSEventBus(url, name string) (*NATSEventBus, error) {
	conn, err := nats.Connect(url,
		nats.Name(name),
		nats.Timeout(5*time.Second),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("NATS disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("NATS reconnected", "url", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return &NATSEventBus{conn: conn}, nil
}

func (n *NATSEventBus) Publish(ctx context.Context, subject string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal event data: %w", err)
	}

	msg := nats.NewMsg(subject)
	msg.Data = payload
	if id := logger.RequestID(ctx); id != "" {
		msg.Header.Set("X-Request-ID", id)
	}

	logger.DebugContext(ctx, "Publishing event", "subject", subject, "bytes", len(payload))
	return n.conn.PublishMsg(msg)
}

func (n *NATSEventBus) QueueSubscribe(subject, queue string, handler func(msg *Message)) error {
	_, err := n.conn.QueueSubscribe(subject, queue, func(msg *nats.Msg) {
		handler(&Message{
			Subject:   msg.Subject,
			Data:      msg.Data,
			Timestamp: time.Now(),
		})
	})
	return err
}

// Ping reports whether the connection is currently usable.
func (n *NATSEventBus) Ping(ctx context.Context) error {
	if !n.conn.IsConnected() {
		return fmt.Errorf("nats status %s", n.conn.Status())
	}
	timeout := 2 * time.Second
	if dl, ok := ctx.Deadline(); ok {
		timeout = time.Until(dl)
	}
	return n.conn.FlushTimeout(timeout)
}

// Close drains subscriptions and pending publishes before closing.
func (n *NATSEventBus) Close() error {
	if err := n.conn.Drain(); err != nil {
		n.conn.Close()
		return err
	}
	return nil
}

// Discard is a Publisher that drops every event. It stands in when NATS is
// disabled.
type Discard struct{}

func (Discard) Publish(context.Context, string, any) error { return nil }

const (
	ReservationBookingCreated = "reservation.booking.created"
	ReservationBlockCreated   = "reservation.block.created"
)

type BookingCreatedEvent struct {
	ReservationID string    `json:"reservation_id"`
	Name          string    `json:"name"`
	Email         string    `json:"email"`
	Phone         string    `json:"phone"`
	Department    string    `json:"department"`
	Reason        string    `json:"reason"`
	Start         time.Time `json:"start_datetime"`
	End           time.Time `json:"end_datetime"`
	CreatedAt     time.Time `json:"created_at"`
}

type BlockCreatedEvent struct {
	ReservationID string    `json:"reservation_id"`
	Reason        string    `json:"reason"`
	CreatedBy     string    `json:"created_by"`
	Start         time.Time `json:"start_datetime"`
	End           time.Time `json:"end_datetime"`
	CreatedAt     time.Time `json:"created_at"`
}
