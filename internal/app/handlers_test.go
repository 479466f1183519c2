package app_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"innovia-booking/internal/app"
)

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := newMemStore(map[int64]string{7: "VR Set Alpha"})
	dir := newFakeDirectory(app.Resource{ID: 7, Name: "VR Set Alpha", TypeName: "VR Set"})
	events := &recorder{}
	engine := app.NewEngine(store, dir, stockholmClock(t), events, nil)

	suggestions := app.NewSuggestionService(
		&memSuggestionStore{},
		&stubSuggester{sug: &app.Suggestion{ResourceName: "VR Set Alpha", Date: "2025-06-11", Timeslot: app.SlotMorning, Reason: "history"}},
		&memGate{},
		events,
		nil,
	)
	api := app.NewAPI(engine, suggestions, nil, store, nil, nil)

	router := gin.New()
	router.Use(app.AuthMiddleware(testSecret))
	apiGroup := router.Group("/api")
	{
		bookings := apiGroup.Group("/bookings")
		{
			bookings.POST("", api.CreateBookingHandler)
			bookings.GET("", app.RequireAdmin(), api.ListBookingsHandler)
			bookings.GET("/my", api.ListMyBookingsHandler)
			bookings.GET("/:id", api.GetBookingHandler)
			bookings.PUT("/:id", api.UpdateBookingHandler)
			bookings.DELETE("/:id", api.CancelBookingHandler)
		}
		apiGroup.DELETE("/admin/bookings/:id", app.RequireAdmin(), api.DeleteBookingHandler)
		apiGroup.GET("/resources/:id/bookings", api.ListResourceBookingsHandler)
		apiGroup.GET("/suggestions", api.SuggestionHandler)
	}
	return router
}

func doJSON(t *testing.T, router *gin.Engine, method, url, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body != "" {
		reader = strings.NewReader(body)
	} else {
		reader = strings.NewReader("")
	}
	req := httptest.NewRequest(method, url, reader)
	req.Header.Set("Authorization", "Bearer "+token)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestCreateBookingEndpoint(t *testing.T) {
	t.Parallel()
	router := newTestRouter(t)
	token := signToken(t, "user-1", false)

	w := doJSON(t, router, http.MethodPost, "/api/bookings", token,
		`{"resourceId":7,"bookingDate":"2025-06-10","timeslot":"FM"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}

	var resp map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	checks := map[string]any{
		"bookingDate":  "2025-06-10T06:00:00Z",
		"endDate":      "2025-06-10T10:00:00Z",
		"timeslot":     "FM",
		"isActive":     true,
		"resourceId":   float64(7),
		"resourceName": "VR Set Alpha",
		"userId":       "user-1",
	}
	for field, want := range checks {
		if resp[field] != want {
			t.Errorf("%s = %v, want %v", field, resp[field], want)
		}
	}
	if resp["bookingId"] == float64(0) {
		t.Error("bookingId not assigned")
	}

	// Immediately repeating the identical request conflicts.
	w = doJSON(t, router, http.MethodPost, "/api/bookings", token,
		`{"resourceId":7,"bookingDate":"2025-06-10","timeslot":"FM"}`)
	if w.Code != http.StatusConflict {
		t.Errorf("duplicate status = %d, want 409", w.Code)
	}
}

func TestCreateBookingValidationStatuses(t *testing.T) {
	t.Parallel()
	router := newTestRouter(t)
	token := signToken(t, "user-1", false)

	tests := []struct {
		name string
		body string
		want int
	}{
		{"bad slot", `{"resourceId":7,"bookingDate":"2025-06-10","timeslot":"XX"}`, http.StatusBadRequest},
		{"bad date", `{"resourceId":7,"bookingDate":"nope","timeslot":"FM"}`, http.StatusBadRequest},
		{"unknown resource", `{"resourceId":99,"bookingDate":"2025-06-10","timeslot":"FM"}`, http.StatusNotFound},
		{"not json", `resourceId=7`, http.StatusBadRequest},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			w := doJSON(t, router, http.MethodPost, "/api/bookings", token, tc.body)
			if w.Code != tc.want {
				t.Errorf("status = %d, want %d (body %s)", w.Code, tc.want, w.Body.String())
			}
		})
	}
}

func TestCancelEndpointOwnership(t *testing.T) {
	t.Parallel()
	router := newTestRouter(t)
	owner := signToken(t, "owner", false)
	stranger := signToken(t, "stranger", false)

	w := doJSON(t, router, http.MethodPost, "/api/bookings", owner,
		`{"resourceId":7,"bookingDate":"2030-06-10","timeslot":"FM"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("create: %d %s", w.Code, w.Body.String())
	}
	var created map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	id := jsonNumber(created["bookingId"].(float64))

	w = doJSON(t, router, http.MethodDelete, "/api/bookings/"+id, stranger, "")
	if w.Code != http.StatusForbidden {
		t.Errorf("stranger cancel status = %d, want 403", w.Code)
	}

	w = doJSON(t, router, http.MethodDelete, "/api/bookings/"+id, owner, "")
	if w.Code != http.StatusOK {
		t.Errorf("owner cancel status = %d, body %s", w.Code, w.Body.String())
	}

	// Cancelled booking disappears from the active listing.
	w = doJSON(t, router, http.MethodGet, "/api/bookings/my", owner, "")
	if w.Code != http.StatusOK {
		t.Fatalf("listMine: %d", w.Code)
	}
	if body := strings.TrimSpace(w.Body.String()); body != "null" && body != "[]" {
		t.Errorf("active bookings after cancel: %s", body)
	}
}

func jsonNumber(id float64) string {
	b, _ := json.Marshal(int64(id))
	return string(b)
}

func TestAdminRoutes(t *testing.T) {
	t.Parallel()
	router := newTestRouter(t)
	member := signToken(t, "user-1", false)
	admin := signToken(t, "admin-1", true)

	if w := doJSON(t, router, http.MethodGet, "/api/bookings", member, ""); w.Code != http.StatusForbidden {
		t.Errorf("member list-all status = %d, want 403", w.Code)
	}
	if w := doJSON(t, router, http.MethodGet, "/api/bookings", admin, ""); w.Code != http.StatusOK {
		t.Errorf("admin list-all status = %d, want 200", w.Code)
	}

	w := doJSON(t, router, http.MethodPost, "/api/bookings", member,
		`{"resourceId":7,"bookingDate":"2030-06-10","timeslot":"EF"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("create: %d", w.Code)
	}
	var created map[string]any
	json.Unmarshal(w.Body.Bytes(), &created)
	id := jsonNumber(created["bookingId"].(float64))

	if w := doJSON(t, router, http.MethodDelete, "/api/admin/bookings/"+id, member, ""); w.Code != http.StatusForbidden {
		t.Errorf("member hard delete status = %d, want 403", w.Code)
	}
	if w := doJSON(t, router, http.MethodDelete, "/api/admin/bookings/"+id, admin, ""); w.Code != http.StatusOK {
		t.Errorf("admin hard delete status = %d, body %s", w.Code, w.Body.String())
	}
	if w := doJSON(t, router, http.MethodGet, "/api/bookings/"+id, member, ""); w.Code != http.StatusNotFound {
		t.Errorf("deleted booking lookup status = %d, want 404", w.Code)
	}
}

func TestResourceAvailabilityEndpoint(t *testing.T) {
	t.Parallel()
	router := newTestRouter(t)
	token := signToken(t, "user-1", false)

	w := doJSON(t, router, http.MethodPost, "/api/bookings", token,
		`{"resourceId":7,"bookingDate":"2030-06-10","timeslot":"FM"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("create: %d", w.Code)
	}

	w = doJSON(t, router, http.MethodGet, "/api/resources/7/bookings", token, "")
	if w.Code != http.StatusOK {
		t.Fatalf("availability: %d", w.Code)
	}
	var windows []map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &windows); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(windows) != 1 {
		t.Fatalf("windows = %d, want 1", len(windows))
	}
	if windows[0]["bookingDate"] == nil || windows[0]["endDate"] == nil {
		t.Errorf("window shape: %v", windows[0])
	}
}

func TestSuggestionEndpoint(t *testing.T) {
	t.Parallel()
	router := newTestRouter(t)
	token := signToken(t, "user-1", false)

	w := doJSON(t, router, http.MethodGet, "/api/suggestions", token, "")
	if w.Code != http.StatusOK {
		t.Fatalf("suggestion: %d %s", w.Code, w.Body.String())
	}
	var sug map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &sug); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if sug["resourceName"] != "VR Set Alpha" || sug["userId"] != "user-1" {
		t.Errorf("suggestion = %v", sug)
	}
}
