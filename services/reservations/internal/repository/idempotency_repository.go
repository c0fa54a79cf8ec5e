package repository

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type IdempotencyRepository interface {
	// Lookup returns the reservation recorded for key, if it has not expired.
	Lookup(ctx context.Context, key string) (uuid.UUID, bool, error)
	CleanupExpired(ctx context.Context) (int64, error)
}

type idempotencyRepository struct {
	pool *pgxpool.Pool
}

func NewIdempotencyRepository(pool *pgxpool.Pool) IdempotencyRepository {
	return &idempotencyRepository{pool: pool}
}

// HashKey stores keys as sha256 so client supplied values never hit the table.
func HashKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

// bindKeySQL records a key inside the creating transaction. An expired
// binding for the same key is taken over.
const bindKeySQL = `INSERT INTO reservation_idempotency (key_hash, reservation_id, expires_at)
	VALUES ($1, $2, $3)
	ON CONFLICT (key_hash) DO UPDATE
	SET reservation_id = EXCLUDED.reservation_id, expires_at = EXCLUDED.expires_at
	WHERE reservation_idempotency.expires_at <= now()`

// Lookup is a lock free fast path; Create resolves keys authoritatively.
func (r *idempotencyRepository) Lookup(ctx context.Context, key string) (uuid.UUID, bool, error) {
	const q = `SELECT reservation_id FROM reservation_idempotency
		WHERE key_hash = $1 AND expires_at > now()`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var id uuid.UUID
	err := r.pool.QueryRow(ctx, q, HashKey(key)).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return uuid.Nil, false, nil
	}
	if err != nil {
		return uuid.Nil, false, err
	}
	return id, true, nil
}

func (r *idempotencyRepository) CleanupExpired(ctx context.Context) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	tag, err := r.pool.Exec(ctx, `DELETE FROM reservation_idempotency WHERE expires_at < now()`)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
