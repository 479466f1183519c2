package app

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// Event is a domain notification produced after a successful mutation.
// UserID, when set, targets a single subscriber; otherwise the event is
// broadcast to everyone.
type Event struct {
	Name    string `json:"event"`
	Payload any    `json:"payload"`
	UserID  string `json:"-"`
}

// Notifier delivers events to connected clients. Delivery is best-effort
// and decoupled from persistence; the engine only guarantees it emits
// after the store write is acknowledged.
type Notifier interface {
	Emit(ctx context.Context, ev Event)
}

// Store is the persistence boundary for bookings. Implementations must
// enforce uniqueness of (resource, start, end) among active rows
// atomically at write time: under concurrent inserts for the same slot,
// exactly one succeeds and the rest fail with ErrSlotTaken. Everything
// else about conflict handling in the engine is a fast-path optimization
// on top of that guarantee.
type Store interface {
	ByID(ctx context.Context, id int64) (*Booking, error)
	ListAll(ctx context.Context) ([]Booking, error)
	ListForUser(ctx context.Context, userID string, includeInactive bool) ([]Booking, error)
	ListForResource(ctx context.Context, resourceID int64, includeInactive bool) ([]ResourceWindow, error)
	ExistsConflict(ctx context.Context, resourceID int64, start, end time.Time, excludeID int64) (bool, error)
	Insert(ctx context.Context, b *Booking) error
	Update(ctx context.Context, b *Booking) error
	Deactivate(ctx context.Context, id int64) error
	Remove(ctx context.Context, id int64) error
}

// ResourceDirectory resolves resources owned by the inventory side of the
// platform. The engine only reads names and clears the booked flag.
type ResourceDirectory interface {
	Resource(ctx context.Context, id int64) (*Resource, error)
	ClearBooked(ctx context.Context, id int64) (*Resource, error)
}

// Engine validates booking requests, computes slot intervals, performs
// conflict detection and drives the booking lifecycle. It owns no
// persistence and no delivery; both are injected.
type Engine struct {
	store     Store
	resources ResourceDirectory
	clock     *SlotClock
	notify    Notifier
	logger    *slog.Logger
}

func NewEngine(store Store, resources ResourceDirectory, clock *SlotClock, notify Notifier, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{store: store, resources: resources, clock: clock, notify: notify, logger: logger}
}

// Create validates the request, checks the slot is free and persists a
// new active booking. The pre-insert conflict check is advisory; the
// store's uniqueness guarantee is what actually decides races.
func (e *Engine) Create(ctx context.Context, userID string, req BookingRequest) (*BookingResponse, error) {
	res, err := e.resources.Resource(ctx, req.ResourceID)
	if err != nil {
		return nil, err
	}

	slot, err := ParseTimeslot(req.Timeslot)
	if err != nil {
		return nil, err
	}
	start, end, err := e.clock.Interval(req.BookingDate, slot)
	if err != nil {
		return nil, err
	}

	taken, err := e.store.ExistsConflict(ctx, req.ResourceID, start, end, 0)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, ErrSlotTaken
	}

	b := &Booking{
		ResourceID: req.ResourceID,
		UserID:     userID,
		StartAt:    start,
		EndAt:      end,
		Timeslot:   slot,
		IsActive:   true,
	}
	if err := e.store.Insert(ctx, b); err != nil {
		return nil, err
	}
	b.ResourceName = res.Name

	e.notify.Emit(ctx, Event{Name: "BookingCreated", Payload: map[string]string{
		"resourceName": res.Name,
		"userId":       userID,
	}})

	resp := b.response()
	return &resp, nil
}

// Update re-runs the create validation pipeline against the booking's own
// resource, excluding the booking itself from the conflict check so that
// re-submitting the current slot is not a self-conflict.
func (e *Engine) Update(ctx context.Context, bookingID int64, req BookingRequest) (*BookingResponse, error) {
	existing, err := e.store.ByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	slot, err := ParseTimeslot(req.Timeslot)
	if err != nil {
		return nil, err
	}
	start, end, err := e.clock.Interval(req.BookingDate, slot)
	if err != nil {
		return nil, err
	}

	taken, err := e.store.ExistsConflict(ctx, existing.ResourceID, start, end, bookingID)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, ErrSlotTaken
	}

	existing.StartAt = start
	existing.EndAt = end
	existing.Timeslot = slot
	if err := e.store.Update(ctx, existing); err != nil {
		return nil, err
	}

	resp := existing.response()
	e.notify.Emit(ctx, Event{Name: "BookingUpdated", Payload: resp})
	return &resp, nil
}

// Cancel deactivates a booking. Members may cancel only their own
// bookings; admins may cancel any. The row is kept for history.
func (e *Engine) Cancel(ctx context.Context, requesterID string, isAdmin bool, bookingID int64) (*BookingResponse, error) {
	b, err := e.store.ByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if !isAdmin && b.UserID != requesterID {
		return nil, ErrForbidden
	}

	if err := e.store.Deactivate(ctx, bookingID); err != nil {
		return nil, err
	}
	b.IsActive = false

	resp := b.response()
	e.notify.Emit(ctx, Event{Name: "BookingCancelled", Payload: resp})
	return &resp, nil
}

// Delete removes a booking permanently. Privilege is enforced by the
// caller; the engine additionally clears the resource's stale booked
// flag and announces both changes.
func (e *Engine) Delete(ctx context.Context, bookingID int64) (*BookingResponse, error) {
	b, err := e.store.ByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if err := e.store.Remove(ctx, bookingID); err != nil {
		return nil, err
	}

	if res, err := e.resources.ClearBooked(ctx, b.ResourceID); err != nil {
		// The booking is gone either way; a stale flag is display-only.
		e.logger.Warn("clear booked flag failed", "resourceId", b.ResourceID, "err", err)
	} else {
		e.notify.Emit(ctx, Event{Name: "ResourceUpdated", Payload: res})
	}

	resp := b.response()
	e.notify.Emit(ctx, Event{Name: "BookingDeleted", Payload: resp})
	return &resp, nil
}

// Get returns a single booking.
func (e *Engine) Get(ctx context.Context, bookingID int64) (*BookingResponse, error) {
	b, err := e.store.ByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	resp := b.response()
	return &resp, nil
}

// ListAll returns every booking, resource names resolved.
func (e *Engine) ListAll(ctx context.Context) ([]BookingResponse, error) {
	bookings, err := e.store.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	return responses(bookings), nil
}

// ListMine returns the caller's bookings. With includeInactive false,
// cancelled and expired bookings are filtered out.
func (e *Engine) ListMine(ctx context.Context, userID string, includeInactive bool) ([]BookingResponse, error) {
	bookings, err := e.store.ListForUser(ctx, userID, includeInactive)
	if err != nil {
		return nil, err
	}
	return responses(bookings), nil
}

// ListForResource returns the booked intervals on a resource for
// availability rendering.
func (e *Engine) ListForResource(ctx context.Context, resourceID int64, includeInactive bool) ([]ResourceWindow, error) {
	return e.store.ListForResource(ctx, resourceID, includeInactive)
}

func responses(bookings []Booking) []BookingResponse {
	out := make([]BookingResponse, 0, len(bookings))
	for i := range bookings {
		out = append(out, bookings[i].response())
	}
	return out
}

// IsNotFound reports whether err is one of the absence errors, for
// callers that treat them alike.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrBookingNotFound) || errors.Is(err, ErrResourceNotFound)
}
