package domain

import "time"

// Interval is a time range on the van's timeline. Valid intervals have
// Start strictly before End.
type Interval struct {
	Start time.Time `json:"start_datetime"`
	End   time.Time `json:"end_datetime"`
}

func (i Interval) Valid() bool {
	return i.Start.Before(i.End)
}

// Overlaps reports whether a and b share any instant. Intervals that only
// touch (a.End == b.Start) do not overlap.
func Overlaps(a, b Interval) bool {
	return a.Start.Before(b.End) && b.Start.Before(a.End)
}

// Touches is the display test used for calendar windows: boundaries count,
// so a reservation ending exactly at window.Start is still included.
func Touches(r, window Interval) bool {
	return !r.Start.After(window.End) && !r.End.Before(window.Start)
}
