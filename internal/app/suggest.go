package app

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
)

// ErrNoSuggestion marks a user with no stored suggestion yet.
var ErrNoSuggestion = errors.New("no suggestion")

// Suggestion is an opaque assistant recommendation. The engine never
// interprets these; they are stored and served as-is.
type Suggestion struct {
	ID           uuid.UUID `json:"id"`
	UserID       string    `json:"userId"`
	ResourceName string    `json:"resourceName"`
	Date         string    `json:"date"`
	Timeslot     Timeslot  `json:"timeslot"`
	Reason       string    `json:"reason"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Suggester produces a recommendation for a user. Implementations may
// call out to a model service; the in-repo one works from booking
// history alone.
type Suggester interface {
	Suggest(ctx context.Context, userID string) (*Suggestion, error)
}

// SuggestionStore persists suggestion rows.
type SuggestionStore interface {
	LatestSuggestion(ctx context.Context, userID string) (*Suggestion, error)
	InsertSuggestion(ctx context.Context, s *Suggestion) error
}

// Gate rate-gates suggestion generation per user. Acquire returns false
// while a previous acquisition is still within the cooldown window.
type Gate interface {
	Acquire(ctx context.Context, userID string) (bool, error)
}

// RedisGate implements Gate with a TTL key, so the cooldown holds across
// process instances.
type RedisGate struct {
	rdb      *redis.Client
	cooldown time.Duration
}

func NewRedisGate(rdb *redis.Client, cooldown time.Duration) *RedisGate {
	return &RedisGate{rdb: rdb, cooldown: cooldown}
}

func (g *RedisGate) Acquire(ctx context.Context, userID string) (bool, error) {
	return g.rdb.SetNX(ctx, "suggest:cooldown:"+userID, 1, g.cooldown).Result()
}

// SuggestionService serves assistant suggestions: inside the cooldown
// window it returns the last persisted row, otherwise it asks the
// generator for a fresh one, persists it and notifies the user.
type SuggestionService struct {
	store  SuggestionStore
	gen    Suggester
	gate   Gate
	notify Notifier
	logger *slog.Logger
}

func NewSuggestionService(store SuggestionStore, gen Suggester, gate Gate, notify Notifier, logger *slog.Logger) *SuggestionService {
	if logger == nil {
		logger = slog.Default()
	}
	return &SuggestionService{store: store, gen: gen, gate: gate, notify: notify, logger: logger}
}

func (s *SuggestionService) For(ctx context.Context, userID string) (*Suggestion, error) {
	fresh, err := s.gate.Acquire(ctx, userID)
	if err != nil {
		// The gate is advisory; losing redis only costs deduplication.
		s.logger.Warn("suggestion gate unavailable", "err", err)
		fresh = true
	}
	if !fresh {
		if last, err := s.store.LatestSuggestion(ctx, userID); err == nil {
			return last, nil
		}
	}

	sug, err := s.gen.Suggest(ctx, userID)
	if err != nil {
		s.logger.Warn("suggestion generation failed", "userId", userID, "err", err)
		sug = &Suggestion{
			ResourceName: "N/A",
			Date:         time.Now().UTC().Format(dateLayout),
			Timeslot:     SlotMorning,
			Reason:       "Could not generate a suggestion right now",
		}
	}
	sug.ID = uuid.New()
	sug.UserID = userID
	sug.CreatedAt = time.Now().UTC()

	if err := s.store.InsertSuggestion(ctx, sug); err != nil {
		s.logger.Warn("persist suggestion failed", "err", err)
	}
	s.notify.Emit(ctx, Event{Name: "SuggestionReady", UserID: userID, Payload: sug})
	return sug, nil
}

// --- persistence ---

func (p *PG) LatestSuggestion(ctx context.Context, userID string) (*Suggestion, error) {
	q := `SELECT id, user_id, resource_name, booking_date, timeslot, reason, created_at
	      FROM suggestions WHERE user_id=$1
	      ORDER BY created_at DESC LIMIT 1`
	var s Suggestion
	err := p.db.QueryRow(ctx, q, userID).Scan(
		&s.ID, &s.UserID, &s.ResourceName, &s.Date, &s.Timeslot, &s.Reason, &s.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNoSuggestion
	}
	if err != nil {
		return nil, storeErr(err)
	}
	return &s, nil
}

func (p *PG) InsertSuggestion(ctx context.Context, s *Suggestion) error {
	q := `INSERT INTO suggestions (id, user_id, resource_name, booking_date, timeslot, reason, created_at)
	      VALUES ($1,$2,$3,$4,$5,$6,$7)`
	_, err := p.db.Exec(ctx, q, s.ID, s.UserID, s.ResourceName, s.Date, s.Timeslot, s.Reason, s.CreatedAt)
	if err != nil {
		return storeErr(err)
	}
	return nil
}

// HistorySuggester recommends the user's most booked resource and slot
// for the next day, straight from booking history.
type HistorySuggester struct {
	db *PG
}

func NewHistorySuggester(db *PG) *HistorySuggester {
	return &HistorySuggester{db: db}
}

func (h *HistorySuggester) Suggest(ctx context.Context, userID string) (*Suggestion, error) {
	q := `SELECT r.name, b.timeslot, COUNT(*) AS n
	      FROM bookings b JOIN resources r ON r.id = b.resource_id
	      WHERE b.user_id=$1
	      GROUP BY r.name, b.timeslot
	      ORDER BY n DESC, r.name
	      LIMIT 1`
	var (
		name string
		slot Timeslot
		n    int64
	)
	err := h.db.db.QueryRow(ctx, q, userID).Scan(&name, &slot, &n)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errors.New("no booking history")
	}
	if err != nil {
		return nil, storeErr(err)
	}

	return &Suggestion{
		ResourceName: name,
		Date:         time.Now().UTC().AddDate(0, 0, 1).Format(dateLayout),
		Timeslot:     slot,
		Reason:       "You book this resource and timeslot most often",
	}, nil
}
