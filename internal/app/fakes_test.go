package app_test

import (
	"context"
	"sync"
	"time"

	"innovia-booking/internal/app"
)

// memStore is an in-memory Store for engine tests. Insert and Update
// enforce the active-slot uniqueness atomically under the mutex, the
// same guarantee the Postgres partial unique index gives.
type memStore struct {
	mu        sync.Mutex
	nextID    int64
	rows      map[int64]*app.Booking
	resources map[int64]string // id -> name, for the join fields
}

func newMemStore(resources map[int64]string) *memStore {
	return &memStore{rows: make(map[int64]*app.Booking), resources: resources}
}

func (s *memStore) conflictLocked(resourceID int64, start, end time.Time, excludeID int64) bool {
	for _, r := range s.rows {
		if r.ID == excludeID || !r.IsActive || r.ResourceID != resourceID {
			continue
		}
		if r.StartAt.Equal(start) && r.EndAt.Equal(end) {
			return true
		}
	}
	return false
}

func (s *memStore) ByID(ctx context.Context, id int64) (*app.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rows[id]
	if !ok {
		return nil, app.ErrBookingNotFound
	}
	cp := *r
	cp.ResourceName = s.resources[r.ResourceID]
	return &cp, nil
}

func (s *memStore) ListAll(ctx context.Context) ([]app.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []app.Booking
	for _, r := range s.rows {
		cp := *r
		cp.ResourceName = s.resources[r.ResourceID]
		out = append(out, cp)
	}
	return out, nil
}

func (s *memStore) ListForUser(ctx context.Context, userID string, includeInactive bool) ([]app.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	var out []app.Booking
	for _, r := range s.rows {
		if r.UserID != userID {
			continue
		}
		if !includeInactive && (!r.IsActive || !r.EndAt.After(now)) {
			continue
		}
		cp := *r
		cp.ResourceName = s.resources[r.ResourceID]
		out = append(out, cp)
	}
	return out, nil
}

func (s *memStore) ListForResource(ctx context.Context, resourceID int64, includeInactive bool) ([]app.ResourceWindow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	var out []app.ResourceWindow
	for _, r := range s.rows {
		if r.ResourceID != resourceID {
			continue
		}
		if !includeInactive && (!r.IsActive || !r.EndAt.After(now)) {
			continue
		}
		out = append(out, app.ResourceWindow{StartAt: r.StartAt, EndAt: r.EndAt})
	}
	return out, nil
}

func (s *memStore) ExistsConflict(ctx context.Context, resourceID int64, start, end time.Time, excludeID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conflictLocked(resourceID, start, end, excludeID), nil
}

func (s *memStore) Insert(ctx context.Context, b *app.Booking) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b.IsActive && s.conflictLocked(b.ResourceID, b.StartAt, b.EndAt, 0) {
		return app.ErrSlotTaken
	}
	s.nextID++
	b.ID = s.nextID
	b.CreatedAt = time.Now()
	cp := *b
	s.rows[b.ID] = &cp
	return nil
}

func (s *memStore) Update(ctx context.Context, b *app.Booking) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rows[b.ID]
	if !ok {
		return app.ErrBookingNotFound
	}
	if b.IsActive && s.conflictLocked(b.ResourceID, b.StartAt, b.EndAt, b.ID) {
		return app.ErrSlotTaken
	}
	r.StartAt = b.StartAt
	r.EndAt = b.EndAt
	r.Timeslot = b.Timeslot
	return nil
}

func (s *memStore) Deactivate(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rows[id]
	if !ok {
		return app.ErrBookingNotFound
	}
	r.IsActive = false
	return nil
}

func (s *memStore) Remove(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rows[id]; !ok {
		return app.ErrBookingNotFound
	}
	delete(s.rows, id)
	return nil
}

func (s *memStore) SetCalendarEvent(ctx context.Context, id int64, eventID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.rows[id]; ok {
		r.CalendarEvent = eventID
	}
	return nil
}

// fakeDirectory is an in-memory ResourceDirectory.
type fakeDirectory struct {
	mu        sync.Mutex
	resources map[int64]*app.Resource
}

func newFakeDirectory(resources ...app.Resource) *fakeDirectory {
	d := &fakeDirectory{resources: make(map[int64]*app.Resource)}
	for i := range resources {
		r := resources[i]
		d.resources[r.ID] = &r
	}
	return d
}

func (d *fakeDirectory) Resource(ctx context.Context, id int64) (*app.Resource, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	r, ok := d.resources[id]
	if !ok {
		return nil, app.ErrResourceNotFound
	}
	cp := *r
	return &cp, nil
}

func (d *fakeDirectory) ClearBooked(ctx context.Context, id int64) (*app.Resource, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	r, ok := d.resources[id]
	if !ok {
		return nil, app.ErrResourceNotFound
	}
	r.IsBooked = false
	cp := *r
	return &cp, nil
}

// recorder captures emitted events.
type recorder struct {
	mu     sync.Mutex
	events []app.Event
}

func (r *recorder) Emit(ctx context.Context, ev app.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) named(name string) []app.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []app.Event
	for _, ev := range r.events {
		if ev.Name == name {
			out = append(out, ev)
		}
	}
	return out
}
