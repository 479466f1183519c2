package app

import (
	"time"

	_ "time/tzdata"
)

// Timeslot is one of the two bookable half-day codes.
type Timeslot string

const (
	SlotMorning   Timeslot = "FM" // 08:00–12:00 local
	SlotAfternoon Timeslot = "EF" // 12:00–16:00 local
)

const dateLayout = "2006-01-02"

// ParseTimeslot validates a wire-level slot code.
func ParseTimeslot(s string) (Timeslot, error) {
	switch Timeslot(s) {
	case SlotMorning, SlotAfternoon:
		return Timeslot(s), nil
	default:
		return "", ErrInvalidSlot
	}
}

// SlotClock converts a civil date plus a half-day code into an absolute
// UTC interval. The conversion goes through wall-clock time in the
// configured zone, so the UTC offset is whatever the zone observes on
// that particular date (DST included).
type SlotClock struct {
	loc *time.Location
}

func NewSlotClock(zone string) (*SlotClock, error) {
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return nil, err
	}
	return &SlotClock{loc: loc}, nil
}

// Interval returns the UTC start and end instants for date ("yyyy-MM-dd")
// and slot. The result is always exactly four hours long.
func (c *SlotClock) Interval(date string, slot Timeslot) (time.Time, time.Time, error) {
	d, err := time.ParseInLocation(dateLayout, date, c.loc)
	if err != nil {
		return time.Time{}, time.Time{}, ErrInvalidDate
	}

	startHour, endHour := 8, 12
	if slot == SlotAfternoon {
		startHour, endHour = 12, 16
	}

	year, month, day := d.Date()
	start := time.Date(year, month, day, startHour, 0, 0, 0, c.loc)
	end := time.Date(year, month, day, endHour, 0, 0, 0, c.loc)
	return start.UTC(), end.UTC(), nil
}
