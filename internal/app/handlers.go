package app

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// CalendarEventStore records mirror event ids next to bookings.
type CalendarEventStore interface {
	SetCalendarEvent(ctx context.Context, id int64, eventID string) error
}

// Subscriber hands a request over to the notification hub.
type Subscriber interface {
	Subscribe(w http.ResponseWriter, r *http.Request, userID string) error
}

// API exposes the scheduling engine over HTTP.
type API struct {
	engine      *Engine
	suggestions *SuggestionService
	mirror      *CalendarMirror // nil when not configured
	calEvents   CalendarEventStore
	ws          Subscriber
	logger      *slog.Logger
}

func NewAPI(engine *Engine, suggestions *SuggestionService, mirror *CalendarMirror, calEvents CalendarEventStore, ws Subscriber, logger *slog.Logger) *API {
	if logger == nil {
		logger = slog.Default()
	}
	return &API{
		engine:      engine,
		suggestions: suggestions,
		mirror:      mirror,
		calEvents:   calEvents,
		ws:          ws,
		logger:      logger,
	}
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrInvalidDate), errors.Is(err, ErrInvalidSlot):
		return http.StatusBadRequest
	case IsNotFound(err):
		return http.StatusNotFound
	case errors.Is(err, ErrSlotTaken):
		return http.StatusConflict
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrStorageUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (api *API) fail(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		api.logger.Error("request failed", "path", c.FullPath(), "err", err)
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return id, true
}

// POST /api/bookings
func (api *API) CreateBookingHandler(c *gin.Context) {
	var req BookingRequest
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := c.GetString(ctxUserID)
	resp, err := api.engine.Create(c.Request.Context(), userID, req)
	if err != nil {
		api.fail(c, err)
		return
	}

	if token := c.GetHeader("X-Google-Token"); token != "" && api.mirror != nil {
		if eventID, err := api.mirror.MirrorCreate(c.Request.Context(), token, *resp); err != nil {
			api.logger.Warn("calendar mirror failed", "bookingId", resp.BookingID, "err", err)
		} else if err := api.calEvents.SetCalendarEvent(c.Request.Context(), resp.BookingID, eventID); err != nil {
			api.logger.Warn("record calendar event failed", "bookingId", resp.BookingID, "err", err)
		}
	}

	c.JSON(http.StatusCreated, resp)
}

// PUT /api/bookings/:id
func (api *API) UpdateBookingHandler(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req BookingRequest
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resp, err := api.engine.Update(c.Request.Context(), id, req)
	if err != nil {
		api.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// DELETE /api/bookings/:id
func (api *API) CancelBookingHandler(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	userID := c.GetString(ctxUserID)
	isAdmin := c.GetBool(ctxIsAdmin)
	resp, err := api.engine.Cancel(c.Request.Context(), userID, isAdmin, id)
	if err != nil {
		api.fail(c, err)
		return
	}

	if token := c.GetHeader("X-Google-Token"); token != "" && api.mirror != nil && resp.CalendarEvent != "" {
		if err := api.mirror.MirrorDelete(c.Request.Context(), token, resp.CalendarEvent); err != nil {
			api.logger.Warn("calendar unmirror failed", "bookingId", resp.BookingID, "err", err)
		}
	}

	c.JSON(http.StatusOK, resp)
}

// DELETE /api/admin/bookings/:id
func (api *API) DeleteBookingHandler(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	resp, err := api.engine.Delete(c.Request.Context(), id)
	if err != nil {
		api.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// GET /api/bookings/:id
func (api *API) GetBookingHandler(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	resp, err := api.engine.Get(c.Request.Context(), id)
	if err != nil {
		api.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// GET /api/bookings
func (api *API) ListBookingsHandler(c *gin.Context) {
	bookings, err := api.engine.ListAll(c.Request.Context())
	if err != nil {
		api.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, bookings)
}

// GET /api/bookings/my?includeInactive=bool
func (api *API) ListMyBookingsHandler(c *gin.Context) {
	includeInactive := c.Query("includeInactive") == "true"
	userID := c.GetString(ctxUserID)
	bookings, err := api.engine.ListMine(c.Request.Context(), userID, includeInactive)
	if err != nil {
		api.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, bookings)
}

// GET /api/resources/:id/bookings?includeInactive=bool
func (api *API) ListResourceBookingsHandler(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	includeInactive := c.Query("includeInactive") == "true"
	windows, err := api.engine.ListForResource(c.Request.Context(), id, includeInactive)
	if err != nil {
		api.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, windows)
}

// GET /api/suggestions
func (api *API) SuggestionHandler(c *gin.Context) {
	userID := c.GetString(ctxUserID)
	sug, err := api.suggestions.For(c.Request.Context(), userID)
	if err != nil {
		api.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, sug)
}

// GET /api/ws
func (api *API) WSHandler(c *gin.Context) {
	userID := c.GetString(ctxUserID)
	if err := api.ws.Subscribe(c.Writer, c.Request, userID); err != nil {
		api.logger.Warn("websocket upgrade failed", "err", err)
	}
}
