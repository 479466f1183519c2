package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PG implements Store and ResourceDirectory on Postgres. The partial
// unique index bookings_active_slot_key on (resource_id, start_at,
// end_at) WHERE is_active is the authoritative conflict guard: racing
// inserts for the same slot resolve inside the database, which is why
// this holds across multiple process instances.
type PG struct {
	db *pgxpool.Pool
}

func NewPG(db *pgxpool.Pool) *PG {
	return &PG{db: db}
}

const uniqueViolation = "23505"

// storeErr normalizes driver failures: uniqueness violations become
// ErrSlotTaken, everything else is a storage fault the caller may retry.
func storeErr(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return ErrSlotTaken
	}
	return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
}

const bookingCols = `b.id, b.resource_id, b.user_id, b.start_at, b.end_at,
       b.timeslot, b.is_active, b.created_at, COALESCE(b.calendar_event_id, ''), r.name`

func scanBooking(row pgx.Row) (*Booking, error) {
	var b Booking
	err := row.Scan(&b.ID, &b.ResourceID, &b.UserID, &b.StartAt, &b.EndAt,
		&b.Timeslot, &b.IsActive, &b.CreatedAt, &b.CalendarEvent, &b.ResourceName)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (p *PG) ByID(ctx context.Context, id int64) (*Booking, error) {
	q := `SELECT ` + bookingCols + `
	      FROM bookings b JOIN resources r ON r.id = b.resource_id
	      WHERE b.id=$1`
	b, err := scanBooking(p.db.QueryRow(ctx, q, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrBookingNotFound
	}
	if err != nil {
		return nil, storeErr(err)
	}
	return b, nil
}

func (p *PG) ListAll(ctx context.Context) ([]Booking, error) {
	q := `SELECT ` + bookingCols + `
	      FROM bookings b JOIN resources r ON r.id = b.resource_id
	      ORDER BY b.start_at`
	rows, err := p.db.Query(ctx, q)
	if err != nil {
		return nil, storeErr(err)
	}
	defer rows.Close()
	return collectBookings(rows)
}

func (p *PG) ListForUser(ctx context.Context, userID string, includeInactive bool) ([]Booking, error) {
	var (
		rows pgx.Rows
		err  error
	)
	if includeInactive {
		q := `SELECT ` + bookingCols + `
		      FROM bookings b JOIN resources r ON r.id = b.resource_id
		      WHERE b.user_id=$1
		      ORDER BY b.start_at`
		rows, err = p.db.Query(ctx, q, userID)
	} else {
		q := `SELECT ` + bookingCols + `
		      FROM bookings b JOIN resources r ON r.id = b.resource_id
		      WHERE b.user_id=$1 AND b.is_active AND b.end_at > now()
		      ORDER BY b.start_at`
		rows, err = p.db.Query(ctx, q, userID)
	}
	if err != nil {
		return nil, storeErr(err)
	}
	defer rows.Close()
	return collectBookings(rows)
}

func collectBookings(rows pgx.Rows) ([]Booking, error) {
	var out []Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, storeErr(err)
		}
		out = append(out, *b)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr(err)
	}
	return out, nil
}

func (p *PG) ListForResource(ctx context.Context, resourceID int64, includeInactive bool) ([]ResourceWindow, error) {
	q := `SELECT start_at, end_at FROM bookings
	      WHERE resource_id=$1 ORDER BY start_at`
	if !includeInactive {
		q = `SELECT start_at, end_at FROM bookings
		     WHERE resource_id=$1 AND is_active AND end_at > now()
		     ORDER BY start_at`
	}
	rows, err := p.db.Query(ctx, q, resourceID)
	if err != nil {
		return nil, storeErr(err)
	}
	defer rows.Close()

	var out []ResourceWindow
	for rows.Next() {
		var w ResourceWindow
		if err := rows.Scan(&w.StartAt, &w.EndAt); err != nil {
			return nil, storeErr(err)
		}
		out = append(out, w)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr(err)
	}
	return out, nil
}

// ExistsConflict matches both instants for equality rather than testing
// interval overlap. Every interval this system writes is one of the two
// canonical half-day shapes per date, so equality is sufficient; if slot
// boundaries ever become flexible this must become a true overlap test.
func (p *PG) ExistsConflict(ctx context.Context, resourceID int64, start, end time.Time, excludeID int64) (bool, error) {
	q := `SELECT EXISTS (
	        SELECT 1 FROM bookings
	        WHERE resource_id=$1 AND is_active
	          AND start_at=$2 AND end_at=$3
	          AND ($4 = 0 OR id <> $4)
	      )`
	var taken bool
	if err := p.db.QueryRow(ctx, q, resourceID, start, end, excludeID).Scan(&taken); err != nil {
		return false, storeErr(err)
	}
	return taken, nil
}

func (p *PG) Insert(ctx context.Context, b *Booking) error {
	q := `INSERT INTO bookings (resource_id, user_id, start_at, end_at, timeslot, is_active, created_at)
	      VALUES ($1,$2,$3,$4,$5,$6, now())
	      RETURNING id, created_at`
	err := p.db.QueryRow(ctx, q,
		b.ResourceID, b.UserID, b.StartAt, b.EndAt, b.Timeslot, b.IsActive,
	).Scan(&b.ID, &b.CreatedAt)
	if err != nil {
		return storeErr(err)
	}
	return nil
}

func (p *PG) Update(ctx context.Context, b *Booking) error {
	q := `UPDATE bookings
	      SET start_at=$1, end_at=$2, timeslot=$3
	      WHERE id=$4`
	tag, err := p.db.Exec(ctx, q, b.StartAt, b.EndAt, b.Timeslot, b.ID)
	if err != nil {
		return storeErr(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrBookingNotFound
	}
	return nil
}

func (p *PG) Deactivate(ctx context.Context, id int64) error {
	tag, err := p.db.Exec(ctx, `UPDATE bookings SET is_active=false WHERE id=$1`, id)
	if err != nil {
		return storeErr(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrBookingNotFound
	}
	return nil
}

func (p *PG) Remove(ctx context.Context, id int64) error {
	tag, err := p.db.Exec(ctx, `DELETE FROM bookings WHERE id=$1`, id)
	if err != nil {
		return storeErr(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrBookingNotFound
	}
	return nil
}

// SetCalendarEvent records the mirrored Google Calendar event id.
func (p *PG) SetCalendarEvent(ctx context.Context, id int64, eventID string) error {
	_, err := p.db.Exec(ctx, `UPDATE bookings SET calendar_event_id=$1 WHERE id=$2`, eventID, id)
	if err != nil {
		return storeErr(err)
	}
	return nil
}
