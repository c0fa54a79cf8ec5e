package domain

import (
	"errors"
	"strings"
)

var (
	ErrInvalidRange        = errors.New("end must be after start")
	ErrInvalidTimestamp    = errors.New("invalid timestamp")
	ErrPastStart           = errors.New("start cannot be in the past")
	ErrBookingConflict     = errors.New("period overlaps an existing booking")
	ErrMaintenanceConflict = errors.New("period overlaps a maintenance block")
	ErrNotFound            = errors.New("not found")
	ErrInvalidPhoto        = errors.New("invalid photo")
	ErrPhotoTooLarge       = errors.New("photo exceeds size limit")
)

// MissingFieldError lists required fields that were absent or blank.
type MissingFieldError struct {
	Fields []string
}

func (e *MissingFieldError) Error() string {
	return "missing required fields: " + strings.Join(e.Fields, ", ")
}

// IsValidation reports whether err should be answered with 400.
func IsValidation(err error) bool {
	var missing *MissingFieldError
	return errors.As(err, &missing) ||
		errors.Is(err, ErrInvalidRange) ||
		errors.Is(err, ErrInvalidTimestamp) ||
		errors.Is(err, ErrPastStart) ||
		errors.Is(err, ErrInvalidPhoto)
}

// IsConflict reports whether err should be answered with 409.
func IsConflict(err error) bool {
	return errors.Is(err, ErrBookingConflict) || errors.Is(err, ErrMaintenanceConflict)
}
