package domain

import (
	"time"

	"github.com/google/uuid"
)

type BookingDTO struct {
	ID         uuid.UUID `json:"id"`
	Start      time.Time `json:"start_datetime"`
	End        time.Time `json:"end_datetime"`
	Name       string    `json:"name"`
	Email      string    `json:"email"`
	Phone      string    `json:"phone"`
	Department string    `json:"department"`
	Reason     string    `json:"reason"`
	CreatedAt  time.Time `json:"created_at"`
}

type BlockedSlotDTO struct {
	ID        uuid.UUID `json:"id"`
	Start     time.Time `json:"start_datetime"`
	End       time.Time `json:"end_datetime"`
	Reason    string    `json:"reason"`
	CreatedBy string    `json:"created_by,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func ToBookingDTO(r Reservation) BookingDTO {
	return BookingDTO{
		ID:         r.ID,
		Start:      r.Interval.Start,
		End:        r.Interval.End,
		Name:       r.Name,
		Email:      r.Email,
		Phone:      r.Phone,
		Department: r.Department,
		Reason:     r.Reason,
		CreatedAt:  r.CreatedAt,
	}
}

func ToBlockedSlotDTO(r Reservation) BlockedSlotDTO {
	return BlockedSlotDTO{
		ID:        r.ID,
		Start:     r.Interval.Start,
		End:       r.Interval.End,
		Reason:    r.Reason,
		CreatedBy: r.CreatedBy,
		CreatedAt: r.CreatedAt,
	}
}

func ToBookingDTOs(rs []Reservation) []BookingDTO {
	out := make([]BookingDTO, 0, len(rs))
	for _, r := range rs {
		out = append(out, ToBookingDTO(r))
	}
	return out
}

// BookingSlotDTO is the public view of a booking: who has the van when,
// without contact details.
type BookingSlotDTO struct {
	ID    uuid.UUID `json:"id"`
	Start time.Time `json:"start_datetime"`
	End   time.Time `json:"end_datetime"`
	Name  string    `json:"name"`
}

// AvailabilityDTO is the body of GET /api/availability.
type AvailabilityDTO struct {
	Bookings []BookingSlotDTO `json:"bookings"`
	Blocked  []BlockedSlotDTO `json:"blocked"`
	Days     []DayStatus      `json:"days,omitempty"`
}

// ToAvailabilityDTO renders a summary for the public calendar. Block
// authors are left out.
func ToAvailabilityDTO(s Summary) AvailabilityDTO {
	out := AvailabilityDTO{
		Bookings: make([]BookingSlotDTO, 0, len(s.Bookings)),
		Blocked:  make([]BlockedSlotDTO, 0, len(s.Blocked)),
	}
	for _, r := range s.Bookings {
		out.Bookings = append(out.Bookings, BookingSlotDTO{ID: r.ID, Start: r.Interval.Start, End: r.Interval.End, Name: r.Name})
	}
	for _, r := range s.Blocked {
		slot := ToBlockedSlotDTO(r)
		slot.CreatedBy = ""
		out.Blocked = append(out.Blocked, slot)
	}
	return out
}
