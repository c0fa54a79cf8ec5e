package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/diagnosis/van-reservations/services/reservations/internal/domain"
	"github.com/diagnosis/van-reservations/services/reservations/internal/repository"
)

// memoryReservations models the database: Create holds one lock across the
// key lookup, the overlap check, the insert and the key binding.
type memoryReservations struct {
	mu      sync.Mutex
	rows    []domain.Reservation
	keys    *memoryIdempotency
	failAll error
	queries int

	// arrivals, when set, holds every Create until that many callers
	// have reached it.
	arrivals *sync.WaitGroup
}

func (m *memoryReservations) Create(_ context.Context, r *domain.Reservation, rules domain.KindRules, key repository.IdempotencyKey) (*domain.Reservation, bool, error) {
	if m.arrivals != nil {
		m.arrivals.Done()
		m.arrivals.Wait()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAll != nil {
		return nil, false, m.failAll
	}
	if key.Key != "" && m.keys != nil {
		if id, ok := m.keys.get(key.Key); ok {
			for _, row := range m.rows {
				if row.ID == id {
					out := row
					return &out, true, nil
				}
			}
		}
	}
	if err := domain.CheckConflicts(r.Interval, m.rows, rules); err != nil {
		return nil, false, err
	}
	out := *r
	out.ID = uuid.New()
	out.CreatedAt = time.Now()
	m.rows = append(m.rows, out)
	if key.Key != "" && m.keys != nil {
		m.keys.bind(key.Key, out.ID)
	}
	return &out, false, nil
}

func (m *memoryReservations) FindOverlapping(_ context.Context, kind domain.Kind, window domain.Interval) ([]domain.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queries++
	if m.failAll != nil {
		return nil, m.failAll
	}
	out := []domain.Reservation{}
	for _, r := range m.rows {
		if r.Kind == kind && domain.Touches(r.Interval, window) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memoryReservations) ListByKind(_ context.Context, kind domain.Kind) ([]domain.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []domain.Reservation{}
	for i := len(m.rows) - 1; i >= 0; i-- {
		if m.rows[i].Kind == kind {
			out = append(out, m.rows[i])
		}
	}
	return out, nil
}

func (m *memoryReservations) GetByID(_ context.Context, id uuid.UUID) (*domain.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.rows {
		if r.ID == id {
			out := r
			return &out, nil
		}
	}
	return nil, nil
}

type memoryIdempotency struct {
	mu   sync.Mutex
	keys map[string]uuid.UUID
}

func newMemoryIdempotency() *memoryIdempotency {
	return &memoryIdempotency{keys: map[string]uuid.UUID{}}
}

func (m *memoryIdempotency) Lookup(_ context.Context, key string) (uuid.UUID, bool, error) {
	id, ok := m.get(key)
	return id, ok, nil
}

func (m *memoryIdempotency) get(key string) (uuid.UUID, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.keys[key]
	return id, ok
}

func (m *memoryIdempotency) bind(key string, id uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.keys[key] = id
}

func (m *memoryIdempotency) CleanupExpired(context.Context) (int64, error) { return 0, nil }

type memoryCache struct {
	mu      sync.Mutex
	gen     int64
	entries map[string][]byte
	err     error
}

func newMemoryCache() *memoryCache {
	return &memoryCache{entries: map[string][]byte{}}
}

func cacheKey(gen int64, start, end time.Time) string {
	b, _ := json.Marshal([]any{gen, start.UnixNano(), end.UnixNano()})
	return string(b)
}

func (c *memoryCache) Get(_ context.Context, start, end time.Time, dst any) (int64, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return 0, false, c.err
	}
	raw, ok := c.entries[cacheKey(c.gen, start, end)]
	if !ok {
		return c.gen, false, nil
	}
	return c.gen, true, json.Unmarshal(raw, dst)
}

func (c *memoryCache) Set(_ context.Context, gen int64, start, end time.Time, v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.entries[cacheKey(gen, start, end)] = raw
	return nil
}

func (c *memoryCache) Invalidate(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	return nil
}

type recordingNotifier struct {
	mu       sync.Mutex
	bookings []domain.Reservation
}

func (n *recordingNotifier) BookingCreated(_ context.Context, r domain.Reservation) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.bookings = append(n.bookings, r)
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.bookings)
}

type published struct {
	subject string
	data    any
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []published
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, subject string, data any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, published{subject, data})
	return nil
}

var errDB = errors.New("connection refused")
