package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/diagnosis/van-reservations/services/reservations/internal/domain"
)

// IdempotencyKey binds a create to a client supplied key for TTL. An empty
// Key disables it.
type IdempotencyKey struct {
	Key string
	TTL time.Duration
}

type ReservationRepository interface {
	// Create admits r under rules atomically: the overlap check and the
	// insert run in one transaction holding the timeline lock. When key is
	// already bound to a live reservation, that reservation is returned with
	// replayed=true and nothing is inserted; otherwise key is bound to the
	// new row in the same transaction.
	Create(ctx context.Context, r *domain.Reservation, rules domain.KindRules, key IdempotencyKey) (res *domain.Reservation, replayed bool, err error)
	FindOverlapping(ctx context.Context, kind domain.Kind, window domain.Interval) ([]domain.Reservation, error)
	ListByKind(ctx context.Context, kind domain.Kind) ([]domain.Reservation, error)
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Reservation, error)
}

type reservationRepository struct {
	pool *pgxpool.Pool
}

func NewReservationRepository(pool *pgxpool.Pool) ReservationRepository {
	return &reservationRepository{pool: pool}
}

// There is one van, so one lock covers the whole timeline.
const timelineLockKey int64 = 0x76616e

const reservationCols = `id, kind, start_datetime, end_datetime,
name, email, phone, department, reason, created_by, created_at`

func (r *reservationRepository) Create(ctx context.Context, res *domain.Reservation, rules domain.KindRules, key IdempotencyKey) (*domain.Reservation, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var (
		created  *domain.Reservation
		replayed bool
	)
	err := pgx.BeginTxFunc(ctx, r.pool, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(tx pgx.Tx) error {
		// Read committed is enough: the lock orders writers, and every
		// statement after it sees rows committed by the previous holder.
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, timelineLockKey); err != nil {
			return fmt.Errorf("acquire timeline lock: %w", err)
		}

		if key.Key != "" {
			prior, err := boundReservation(ctx, tx, key.Key)
			if err != nil {
				return err
			}
			if prior != nil {
				created, replayed = prior, true
				return nil
			}
		}

		if len(rules.ConflictsWith) > 0 {
			existing, err := findConflicting(ctx, tx, rules.ConflictsWith, res.Interval)
			if err != nil {
				return err
			}
			if err := domain.CheckConflicts(res.Interval, existing, rules); err != nil {
				return err
			}
		}

		const q = `INSERT INTO reservations (
			id, kind, start_datetime, end_datetime,
			name, email, phone, department, reason, created_by
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		RETURNING ` + reservationCols

		id := res.ID
		if id == uuid.Nil {
			id = uuid.New()
		}
		row := tx.QueryRow(ctx, q,
			id, res.Kind, res.Interval.Start, res.Interval.End,
			res.Name, res.Email, res.Phone, res.Department, res.Reason, res.CreatedBy,
		)
		out, err := scanReservation(row)
		if err != nil {
			return fmt.Errorf("insert reservation: %w", err)
		}

		if key.Key != "" {
			if _, err := tx.Exec(ctx, bindKeySQL, HashKey(key.Key), out.ID, time.Now().Add(key.TTL)); err != nil {
				return fmt.Errorf("bind idempotency key: %w", err)
			}
		}
		created = out
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return created, replayed, nil
}

// boundReservation returns the reservation a live key points at, or nil.
func boundReservation(ctx context.Context, tx pgx.Tx, key string) (*domain.Reservation, error) {
	const q = `SELECT ` + reservationCols + ` FROM reservations
		WHERE id = (
			SELECT reservation_id FROM reservation_idempotency
			WHERE key_hash = $1 AND expires_at > now()
		)`

	res, err := scanReservation(tx.QueryRow(ctx, q, HashKey(key)))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("resolve idempotency key: %w", err)
	}
	return res, nil
}

// findConflicting returns rows of the given kinds sharing an instant with
// window, using half-open ranges so touching rows are excluded.
func findConflicting(ctx context.Context, tx pgx.Tx, kinds []domain.Kind, window domain.Interval) ([]domain.Reservation, error) {
	const q = `SELECT ` + reservationCols + ` FROM reservations
		WHERE kind = ANY($1)
		  AND tstzrange(start_datetime, end_datetime, '[)') && tstzrange($2, $3, '[)')
		ORDER BY start_datetime`

	names := make([]string, 0, len(kinds))
	for _, k := range kinds {
		names = append(names, string(k))
	}

	rows, err := tx.Query(ctx, q, names, window.Start, window.End)
	if err != nil {
		return nil, fmt.Errorf("query conflicts: %w", err)
	}
	return collectReservations(rows)
}

func (r *reservationRepository) FindOverlapping(ctx context.Context, kind domain.Kind, window domain.Interval) ([]domain.Reservation, error) {
	const q = `SELECT ` + reservationCols + ` FROM reservations
		WHERE kind = $1 AND start_datetime <= $2 AND end_datetime >= $3
		ORDER BY start_datetime`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	rows, err := r.pool.Query(ctx, q, kind, window.End, window.Start)
	if err != nil {
		return nil, err
	}
	return collectReservations(rows)
}

func (r *reservationRepository) ListByKind(ctx context.Context, kind domain.Kind) ([]domain.Reservation, error) {
	const q = `SELECT ` + reservationCols + ` FROM reservations
		WHERE kind = $1 ORDER BY start_datetime DESC`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	rows, err := r.pool.Query(ctx, q, kind)
	if err != nil {
		return nil, err
	}
	return collectReservations(rows)
}

func (r *reservationRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Reservation, error) {
	const q = `SELECT ` + reservationCols + ` FROM reservations WHERE id = $1`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	res, err := scanReservation(r.pool.QueryRow(ctx, q, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return res, err
}

func scanReservation(row pgx.Row) (*domain.Reservation, error) {
	var res domain.Reservation
	err := row.Scan(
		&res.ID, &res.Kind, &res.Interval.Start, &res.Interval.End,
		&res.Name, &res.Email, &res.Phone, &res.Department, &res.Reason,
		&res.CreatedBy, &res.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

func collectReservations(rows pgx.Rows) ([]domain.Reservation, error) {
	defer rows.Close()

	out := []domain.Reservation{}
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *res)
	}
	return out, rows.Err()
}
