package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func day(d, hour int) time.Time {
	return time.Date(2025, 6, d, hour, 0, 0, 0, time.UTC)
}

func TestReduceDays(t *testing.T) {
	s := Summary{
		Bookings: []Reservation{
			{Kind: KindBooking, Interval: Interval{Start: day(3, 9), End: day(4, 17)}},
		},
		Blocked: []Reservation{
			{Kind: KindMaintenanceBlock, Interval: Interval{Start: day(4, 8), End: day(6, 12)}},
		},
	}

	got := ReduceDays(s, day(1, 0), day(7, 0), time.UTC)

	want := []DayStatus{
		{"2025-06-01", StatusAvailable},
		{"2025-06-02", StatusAvailable},
		{"2025-06-03", StatusBooked},
		{"2025-06-04", StatusBooked}, // booked beats blocked
		{"2025-06-05", StatusBlocked},
		{"2025-06-06", StatusBlocked},
		{"2025-06-07", StatusAvailable},
	}
	assert.Equal(t, want, got)
}

func TestReduceDays_EmptySummaryIsAllAvailable(t *testing.T) {
	got := ReduceDays(Summary{}, day(1, 0), day(30, 0), time.UTC)
	assert.Len(t, got, 30)
	for _, d := range got {
		assert.Equal(t, StatusAvailable, d.Status)
	}
}

func TestReduceDays_UsesDisplayZone(t *testing.T) {
	brussels, _ := time.LoadLocation("Europe/Brussels")
	// 22:30 UTC on the 9th is already the 10th in Brussels.
	s := Summary{Bookings: []Reservation{{
		Kind:     KindBooking,
		Interval: Interval{Start: time.Date(2025, 6, 9, 22, 30, 0, 0, time.UTC), End: time.Date(2025, 6, 9, 23, 30, 0, 0, time.UTC)},
	}}}

	got := ReduceDays(s, time.Date(2025, 6, 9, 12, 0, 0, 0, brussels), time.Date(2025, 6, 10, 12, 0, 0, 0, brussels), brussels)
	assert.Equal(t, []DayStatus{{"2025-06-09", StatusAvailable}, {"2025-06-10", StatusBooked}}, got)
}

func TestReduceDays_InvertedRange(t *testing.T) {
	assert.Nil(t, ReduceDays(Summary{}, day(5, 0), day(1, 0), time.UTC))
}

func TestToAvailabilityDTO_HidesContactDetails(t *testing.T) {
	s := Summary{
		Bookings: []Reservation{{
			Kind: KindBooking, Interval: Interval{Start: day(3, 9), End: day(3, 17)},
			Name: "Jan", Email: "jan@example.com", Phone: "0470",
		}},
		Blocked: []Reservation{{
			Kind: KindMaintenanceBlock, Interval: Interval{Start: day(4, 8), End: day(4, 12)},
			Reason: "Onderhoud", CreatedBy: "admin@example.com",
		}},
	}

	dto := ToAvailabilityDTO(s)

	assert.Equal(t, []BookingSlotDTO{{Start: day(3, 9), End: day(3, 17), Name: "Jan"}}, dto.Bookings)
	assert.Len(t, dto.Blocked, 1)
	assert.Equal(t, "Onderhoud", dto.Blocked[0].Reason)
	assert.Empty(t, dto.Blocked[0].CreatedBy)
}

func TestToAvailabilityDTO_EmptyListsNotNull(t *testing.T) {
	dto := ToAvailabilityDTO(Summary{})
	assert.NotNil(t, dto.Bookings)
	assert.NotNil(t, dto.Blocked)
}
