package domain

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

type Kind string

const (
	KindBooking          Kind = "booking"
	KindMaintenanceBlock Kind = "maintenance_block"
)

// Reservation is any claim on the van's timeline. Bookings carry contact
// details; maintenance blocks only a reason.
type Reservation struct {
	ID         uuid.UUID
	Kind       Kind
	Interval   Interval
	Name       string
	Email      string
	Phone      string
	Department string
	Reason     string
	CreatedBy  string
	CreatedAt  time.Time
}

// KindRules decide how a new reservation of one kind is admitted.
type KindRules struct {
	// ConflictsWith lists the kinds checked for overlap, in reporting order.
	ConflictsWith  []Kind
	AllowPastStart bool
}

// Policy maps each kind to its admission rules.
type Policy map[Kind]KindRules

// DefaultPolicy checks bookings against bookings and blocks and admits
// blocks unconditionally, including in the past. With strictBlocks, blocks
// are checked against both sets as well.
func DefaultPolicy(strictBlocks bool) Policy {
	p := Policy{
		KindBooking: {
			ConflictsWith: []Kind{KindBooking, KindMaintenanceBlock},
		},
		KindMaintenanceBlock: {
			AllowPastStart: true,
		},
	}
	if strictBlocks {
		rules := p[KindMaintenanceBlock]
		rules.ConflictsWith = []Kind{KindBooking, KindMaintenanceBlock}
		p[KindMaintenanceBlock] = rules
	}
	return p
}

func (p Policy) Rules(k Kind) KindRules {
	return p[k]
}

// BookingRequest is the body of POST /api/bookings.
type BookingRequest struct {
	Start      string `json:"start_datetime" validate:"required"`
	End        string `json:"end_datetime" validate:"required"`
	Name       string `json:"name" validate:"required"`
	Email      string `json:"email" validate:"required"`
	Phone      string `json:"phone" validate:"required"`
	Department string `json:"department" validate:"required"`
	Reason     string `json:"reason" validate:"required"`
}

// BlockRequest is the body of POST /api/admin/blocked-slots.
type BlockRequest struct {
	Start  string `json:"start_datetime" validate:"required"`
	End    string `json:"end_datetime" validate:"required"`
	Reason string `json:"reason" validate:"required"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

func init() {
	validate.RegisterTagNameFunc(jsonFieldName)
}

// CheckRequired reports blank required fields of a request struct using
// their JSON names.
func CheckRequired(req any) error {
	trimStrings(req)
	err := validate.Struct(req)
	if err == nil {
		return nil
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err
	}
	missing := &MissingFieldError{}
	for _, fe := range verrs {
		missing.Fields = append(missing.Fields, fe.Field())
	}
	return missing
}

func trimStrings(req any) {
	switch r := req.(type) {
	case *BookingRequest:
		r.Start = strings.TrimSpace(r.Start)
		r.End = strings.TrimSpace(r.End)
		r.Name = strings.TrimSpace(r.Name)
		r.Email = strings.TrimSpace(r.Email)
		r.Phone = strings.TrimSpace(r.Phone)
		r.Department = strings.TrimSpace(r.Department)
		r.Reason = strings.TrimSpace(r.Reason)
	case *BlockRequest:
		r.Start = strings.TrimSpace(r.Start)
		r.End = strings.TrimSpace(r.End)
		r.Reason = strings.TrimSpace(r.Reason)
	}
}

// Validate applies the range and past-start rules to a candidate.
func Validate(candidate Interval, rules KindRules, now time.Time) error {
	if !candidate.Valid() {
		return ErrInvalidRange
	}
	if !rules.AllowPastStart && candidate.Start.Before(now) {
		return ErrPastStart
	}
	return nil
}

// CheckConflicts returns the conflict error for the first kind in
// rules.ConflictsWith that has a record overlapping candidate.
func CheckConflicts(candidate Interval, existing []Reservation, rules KindRules) error {
	for _, kind := range rules.ConflictsWith {
		for _, r := range existing {
			if r.Kind == kind && Overlaps(candidate, r.Interval) {
				return conflictFor(kind)
			}
		}
	}
	return nil
}

func conflictFor(k Kind) error {
	switch k {
	case KindMaintenanceBlock:
		return ErrMaintenanceConflict
	default:
		return ErrBookingConflict
	}
}

var instantLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// ParseInstant accepts RFC 3339 as well as the zone-less forms produced by
// HTML date and datetime-local inputs, which are read in loc.
func ParseInstant(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	for _, layout := range instantLayouts[1:] {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q is not a valid date-time", ErrInvalidTimestamp, s)
}

// ParseInterval parses both ends of a request interval.
func ParseInterval(start, end string, loc *time.Location) (Interval, error) {
	s, err := ParseInstant(start, loc)
	if err != nil {
		return Interval{}, err
	}
	e, err := ParseInstant(end, loc)
	if err != nil {
		return Interval{}, err
	}
	return Interval{Start: s, End: e}, nil
}

func jsonFieldName(fld reflect.StructField) string {
	name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
	if name == "-" || name == "" {
		return fld.Name
	}
	return name
}
