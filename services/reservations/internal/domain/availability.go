package domain

import "time"

type Status string

const (
	StatusAvailable Status = "available"
	StatusBlocked   Status = "blocked"
	StatusBooked    Status = "booked"
)

// Summary holds every booking and block touching a display window.
type Summary struct {
	Window   Interval
	Bookings []Reservation
	Blocked  []Reservation
}

type DayStatus struct {
	Date   string `json:"date"`
	Status Status `json:"status"`
}

// ReduceDays gives each calendar day from..to (inclusive, in loc) a status.
// A day is booked when it falls between the start day and end day of any
// booking, else blocked when a block covers it, else available.
func ReduceDays(s Summary, from, to time.Time, loc *time.Location) []DayStatus {
	first := dayOf(from, loc)
	last := dayOf(to, loc)
	if last.Before(first) {
		return nil
	}

	var days []DayStatus
	for d := first; !d.After(last); d = d.AddDate(0, 0, 1) {
		status := StatusAvailable
		switch {
		case coversDay(s.Bookings, d, loc):
			status = StatusBooked
		case coversDay(s.Blocked, d, loc):
			status = StatusBlocked
		}
		days = append(days, DayStatus{Date: d.Format("2006-01-02"), Status: status})
	}
	return days
}

func coversDay(rs []Reservation, day time.Time, loc *time.Location) bool {
	for _, r := range rs {
		start := dayOf(r.Interval.Start, loc)
		end := dayOf(r.Interval.End, loc)
		if !day.Before(start) && !day.After(end) {
			return true
		}
	}
	return false
}

func dayOf(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}
