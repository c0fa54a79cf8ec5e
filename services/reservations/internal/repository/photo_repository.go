package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/diagnosis/van-reservations/services/reservations/internal/domain"
)

type PhotoRepository interface {
	Create(ctx context.Context, p *domain.Photo) (*domain.Photo, error)
	List(ctx context.Context) ([]domain.Photo, error)
	// Delete removes the row and returns it, or nil when no row matched.
	Delete(ctx context.Context, id uuid.UUID) (*domain.Photo, error)
}

type photoRepository struct {
	pool *pgxpool.Pool
}

func NewPhotoRepository(pool *pgxpool.Pool) PhotoRepository {
	return &photoRepository{pool: pool}
}

const photoCols = `id, file_name, file_url, uploaded_by, uploaded_at`

func (r *photoRepository) Create(ctx context.Context, p *domain.Photo) (*domain.Photo, error) {
	const q = `INSERT INTO photos (id, file_name, file_url, uploaded_by)
		VALUES ($1, $2, $3, $4)
		RETURNING ` + photoCols

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	id := p.ID
	if id == uuid.Nil {
		id = uuid.New()
	}

	var out domain.Photo
	err := r.pool.QueryRow(ctx, q, id, p.FileName, p.FileURL, p.UploadedBy).
		Scan(&out.ID, &out.FileName, &out.FileURL, &out.UploadedBy, &out.UploadedAt)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *photoRepository) List(ctx context.Context) ([]domain.Photo, error) {
	const q = `SELECT ` + photoCols + ` FROM photos ORDER BY uploaded_at DESC`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	rows, err := r.pool.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	photos := []domain.Photo{}
	for rows.Next() {
		var p domain.Photo
		if err := rows.Scan(&p.ID, &p.FileName, &p.FileURL, &p.UploadedBy, &p.UploadedAt); err != nil {
			return nil, err
		}
		photos = append(photos, p)
	}
	return photos, rows.Err()
}

func (r *photoRepository) Delete(ctx context.Context, id uuid.UUID) (*domain.Photo, error) {
	const q = `DELETE FROM photos WHERE id = $1 RETURNING ` + photoCols

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var p domain.Photo
	err := r.pool.QueryRow(ctx, q, id).
		Scan(&p.ID, &p.FileName, &p.FileURL, &p.UploadedBy, &p.UploadedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}
