package service

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/diagnosis/van-reservations/services/reservations/internal/domain"
)

type memoryPhotos struct {
	mu     sync.Mutex
	photos []domain.Photo
	err    error
}

func (m *memoryPhotos) Create(_ context.Context, p *domain.Photo) (*domain.Photo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	out := *p
	out.ID = uuid.New()
	out.UploadedAt = time.Now()
	m.photos = append(m.photos, out)
	return &out, nil
}

func (m *memoryPhotos) List(context.Context) ([]domain.Photo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.Photo{}, m.photos...), nil
}

func (m *memoryPhotos) Delete(_ context.Context, id uuid.UUID) (*domain.Photo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, p := range m.photos {
		if p.ID == id {
			m.photos = append(m.photos[:i], m.photos[i+1:]...)
			return &p, nil
		}
	}
	return nil, nil
}

// pngHeader is enough for content sniffing to report image/png.
var pngHeader = []byte("\x89PNG\x0D\x0A\x1A\x0A\x00\x00\x00\x0DIHDR")

func files(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestPhotoUploadAndDelete(t *testing.T) {
	dir := t.TempDir()
	repo := &memoryPhotos{}
	svc := NewPhotoService(repo, dir, "/uploads/", 0)
	ctx := context.Background()

	photo, err := svc.Upload(ctx, "Busje.PNG", bytes.NewReader(pngHeader), "Admin@Example.com")
	require.NoError(t, err)

	assert.True(t, strings.HasSuffix(photo.FileName, ".png"))
	assert.Equal(t, "/uploads/"+photo.FileName, photo.FileURL)
	assert.Equal(t, "admin@example.com", photo.UploadedBy)
	assert.Equal(t, []string{photo.FileName}, files(t, dir))

	stored, err := os.ReadFile(filepath.Join(dir, photo.FileName))
	require.NoError(t, err)
	assert.Equal(t, pngHeader, stored)

	list, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	require.NoError(t, svc.Delete(ctx, photo.ID))
	assert.Empty(t, files(t, dir))

	assert.ErrorIs(t, svc.Delete(ctx, photo.ID), domain.ErrNotFound)
}

func TestPhotoUploadRejects(t *testing.T) {
	tests := []struct {
		name string
		file string
		body []byte
		max  int64
		want error
	}{
		{"unknown extension", "notes.txt", []byte("hello"), 0, domain.ErrInvalidPhoto},
		{"content does not match extension", "van.jpg", pngHeader, 0, domain.ErrInvalidPhoto},
		{"not an image", "van.gif", []byte("<html></html>"), 0, domain.ErrInvalidPhoto},
		{"too large", "van.png", append(append([]byte{}, pngHeader...), make([]byte, 64)...), 32, domain.ErrPhotoTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			repo := &memoryPhotos{}
			svc := NewPhotoService(repo, dir, "/uploads", tt.max)

			_, err := svc.Upload(context.Background(), tt.file, bytes.NewReader(tt.body), "admin@example.com")
			assert.ErrorIs(t, err, tt.want)
			assert.Empty(t, files(t, dir), "nothing is left on disk")
			assert.Empty(t, repo.photos)
		})
	}
}

func TestPhotoUploadRemovesFileWhenSaveFails(t *testing.T) {
	dir := t.TempDir()
	svc := NewPhotoService(&memoryPhotos{err: errDB}, dir, "/uploads", 0)

	_, err := svc.Upload(context.Background(), "van.png", bytes.NewReader(pngHeader), "admin@example.com")
	assert.ErrorIs(t, err, errDB)
	assert.Empty(t, files(t, dir))
}
