package app

import "time"

// Booking is the persisted reservation row. StartAt/EndAt are the source
// of truth for conflict checks; Timeslot is kept for display.
type Booking struct {
	ID            int64
	ResourceID    int64
	UserID        string
	StartAt       time.Time
	EndAt         time.Time
	Timeslot      Timeslot
	IsActive      bool
	CreatedAt     time.Time
	ResourceName  string // resolved via join, not stored on the row
	CalendarEvent string // Google Calendar mirror event id, empty if not mirrored
}

// Resource is the externally managed entity a booking points at. This
// service only reads it (and clears IsBooked on administrative delete).
type Resource struct {
	ID       int64  `json:"resourceId"`
	Name     string `json:"name"`
	TypeName string `json:"resourceTypeName"`
	IsBooked bool   `json:"isBooked"`
}

// BookingRequest is the wire shape for create and update.
type BookingRequest struct {
	ResourceID  int64  `json:"resourceId"`
	BookingDate string `json:"bookingDate"`
	Timeslot    string `json:"timeslot"`
}

// BookingResponse is the wire shape returned for every booking read or
// mutation. Instants are UTC ISO timestamps.
type BookingResponse struct {
	BookingID    int64     `json:"bookingId"`
	BookingDate  time.Time `json:"bookingDate"`
	EndDate      time.Time `json:"endDate"`
	Timeslot     Timeslot  `json:"timeslot"`
	IsActive     bool      `json:"isActive"`
	ResourceID   int64     `json:"resourceId"`
	ResourceName string    `json:"resourceName"`
	UserID       string    `json:"userId"`

	// CalendarEvent carries the Google Calendar mirror id to handlers;
	// it is never serialized.
	CalendarEvent string `json:"-"`
}

// ResourceWindow is a booked interval on a resource, used for
// availability rendering.
type ResourceWindow struct {
	StartAt time.Time `json:"bookingDate"`
	EndAt   time.Time `json:"endDate"`
}

func (b *Booking) response() BookingResponse {
	return BookingResponse{
		BookingID:    b.ID,
		BookingDate:  b.StartAt,
		EndDate:      b.EndAt,
		Timeslot:     b.Timeslot,
		IsActive:     b.IsActive,
		ResourceID:   b.ResourceID,
		ResourceName: b.ResourceName,
		UserID:       b.UserID,

		CalendarEvent: b.CalendarEvent,
	}
}
