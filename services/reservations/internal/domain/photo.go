package domain

import (
	"time"

	"github.com/google/uuid"
)

type Photo struct {
	ID         uuid.UUID `json:"id"`
	FileName   string    `json:"file_name"`
	FileURL    string    `json:"file_url"`
	UploadedBy string    `json:"uploaded_by"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// Accepted upload types, keyed by extension, with the sniffed content type
// each must match.
var PhotoTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
}

const MaxPhotoBytes = 10 << 20
