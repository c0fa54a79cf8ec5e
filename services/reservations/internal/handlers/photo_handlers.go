package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/diagnosis/van-reservations/internal/http/response"
	"github.com/diagnosis/van-reservations/pkg/logger"
	"github.com/diagnosis/van-reservations/services/reservations/internal/domain"
)

// multipart overhead allowed on top of the photo itself
const uploadSlack = 1 << 20

func (h *Handlers) ListPhotos(w http.ResponseWriter, r *http.Request) {
	photos, err := h.photos.List(r.Context())
	if err != nil {
		writeServiceError(w, r, err, "Fout bij ophalen foto's")
		return
	}
	writeJSON(w, http.StatusOK, photos)
}

// UploadPhoto serves POST /api/admin/photos with the file in form field
// "photo".
func (h *Handlers) UploadPhoto(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.photos.MaxBytes()+uploadSlack)
	if err := r.ParseMultipartForm(uploadSlack); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeServiceError(w, r, domain.ErrPhotoTooLarge, "")
			return
		}
		response.BadRequest(w, "Geen foto geüpload")
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("photo")
	if err != nil {
		response.BadRequest(w, "Geen foto geüpload")
		return
	}
	defer file.Close()

	var uploadedBy string
	if identity, ok := IdentityFrom(r.Context()); ok {
		uploadedBy = identity.Email
	}

	photo, err := h.photos.Upload(r.Context(), header.Filename, file, uploadedBy)
	if err != nil {
		writeServiceError(w, r, err, "Fout bij uploaden foto")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"message": "Foto succesvol geüpload",
		"photo":   photo,
	})
}

// DeletePhoto serves DELETE /api/admin/photos/{id}.
func (h *Handlers) DeletePhoto(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.NotFound(w, "Foto niet gevonden")
		return
	}

	if err := h.photos.Delete(r.Context(), id); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			response.NotFound(w, "Foto niet gevonden")
			return
		}
		writeServiceError(w, r, err, "Fout bij verwijderen foto")
		return
	}

	logger.InfoContext(r.Context(), "Photo removed by admin", "photo_id", id)
	writeJSON(w, http.StatusOK, map[string]string{"message": "Foto succesvol verwijderd"})
}
