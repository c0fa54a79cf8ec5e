package service

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/diagnosis/van-reservations/internal/utils"
	"github.com/diagnosis/van-reservations/pkg/logger"
	"github.com/diagnosis/van-reservations/services/reservations/internal/domain"
	"github.com/diagnosis/van-reservations/services/reservations/internal/repository"
)

type PhotoService interface {
	Upload(ctx context.Context, originalName string, body io.Reader, uploadedBy string) (*domain.Photo, error)
	List(ctx context.Context) ([]domain.Photo, error)
	Delete(ctx context.Context, id uuid.UUID) error
	// MaxBytes is the largest accepted upload.
	MaxBytes() int64
}

type photoService struct {
	photos    repository.PhotoRepository
	dir       string
	urlPrefix string
	maxBytes  int64
	now       func() time.Time
}

// NewPhotoService stores uploads under dir and publishes them below
// urlPrefix (e.g. "/uploads").
func NewPhotoService(photos repository.PhotoRepository, dir, urlPrefix string, maxBytes int64) PhotoService {
	if maxBytes <= 0 {
		maxBytes = domain.MaxPhotoBytes
	}
	return &photoService{
		photos:    photos,
		dir:       dir,
		urlPrefix: strings.TrimRight(urlPrefix, "/"),
		maxBytes:  maxBytes,
		now:       time.Now,
	}
}

func (s *photoService) MaxBytes() int64 { return s.maxBytes }

func (s *photoService) Upload(ctx context.Context, originalName string, body io.Reader, uploadedBy string) (*domain.Photo, error) {
	ext := strings.ToLower(filepath.Ext(originalName))
	want, ok := domain.PhotoTypes[ext]
	if !ok {
		return nil, fmt.Errorf("%w: extension %q", domain.ErrInvalidPhoto, ext)
	}

	br := bufio.NewReaderSize(body, 512)
	head, err := br.Peek(512)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if got := http.DetectContentType(head); got != want {
		return nil, fmt.Errorf("%w: content is %s, not %s", domain.ErrInvalidPhoto, got, want)
	}

	token, err := utils.RandomToken(5)
	if err != nil {
		return nil, err
	}
	name := fmt.Sprintf("%d-%s%s", s.now().UnixMilli(), token, ext)

	if err := s.write(name, br); err != nil {
		return nil, err
	}

	photo, err := s.photos.Create(ctx, &domain.Photo{
		FileName:   name,
		FileURL:    path.Join(s.urlPrefix, name),
		UploadedBy: utils.NormalizeEmail(uploadedBy),
	})
	if err != nil {
		s.remove(ctx, name)
		return nil, fmt.Errorf("save photo: %w", err)
	}

	logger.InfoContext(ctx, "Photo uploaded", "photo_id", photo.ID, "file", name)
	return photo, nil
}

// write streams r into dir/name, failing with ErrPhotoTooLarge past the
// size limit. The file only appears under its final name once complete.
func (s *photoService) write(name string, r io.Reader) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create upload dir: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, ".upload-*")
	if err != nil {
		return fmt.Errorf("create upload file: %w", err)
	}
	defer os.Remove(tmp.Name())

	n, err := io.Copy(tmp, io.LimitReader(r, s.maxBytes+1))
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("write upload: %w", err)
	}
	if n > s.maxBytes {
		return domain.ErrPhotoTooLarge
	}

	if err := os.Rename(tmp.Name(), filepath.Join(s.dir, name)); err != nil {
		return fmt.Errorf("store upload: %w", err)
	}
	return nil
}

func (s *photoService) remove(ctx context.Context, name string) {
	err := os.Remove(filepath.Join(s.dir, filepath.Base(name)))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.WarnContext(ctx, "Failed to remove photo file", "file", name, "error", err)
	}
}

func (s *photoService) List(ctx context.Context) ([]domain.Photo, error) {
	photos, err := s.photos.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list photos: %w", err)
	}
	return photos, nil
}

func (s *photoService) Delete(ctx context.Context, id uuid.UUID) error {
	photo, err := s.photos.Delete(ctx, id)
	if err != nil {
		return fmt.Errorf("delete photo: %w", err)
	}
	if photo == nil {
		return domain.ErrNotFound
	}
	s.remove(ctx, photo.FileName)
	logger.InfoContext(ctx, "Photo deleted", "photo_id", id)
	return nil
}
