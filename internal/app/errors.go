package app

import "errors"

// Domain error taxonomy. Handlers map these to HTTP statuses; the engine
// never wraps one of these inside another.
var (
	ErrInvalidDate        = errors.New("invalid booking date")
	ErrInvalidSlot        = errors.New("invalid timeslot")
	ErrResourceNotFound   = errors.New("resource not found")
	ErrBookingNotFound    = errors.New("booking not found")
	ErrSlotTaken          = errors.New("timeslot already booked")
	ErrForbidden          = errors.New("not allowed")
	ErrStorageUnavailable = errors.New("storage unavailable")
)
