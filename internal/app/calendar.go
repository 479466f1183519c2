package app

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
)

// CalendarMirror pushes a member's reservations into their Google
// Calendar. The mirror is advisory: failures are logged and never affect
// the booking itself. Members opt in by completing the OAuth2 flow and
// sending the resulting token with their booking requests.
type CalendarMirror struct {
	config *oauth2.Config
}

// NewCalendarMirror returns nil when the OAuth2 client is not configured,
// in which case all mirror routes and calls are skipped.
func NewCalendarMirror(clientID, clientSecret, redirectURL string) *CalendarMirror {
	if clientID == "" || clientSecret == "" || redirectURL == "" {
		return nil
	}
	return &CalendarMirror{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Scopes:       []string{calendar.CalendarEventsScope},
			Endpoint:     google.Endpoint,
		},
	}
}

// AuthHandler starts the OAuth2 consent flow.
func (m *CalendarMirror) AuthHandler(c *gin.Context) {
	state := fmt.Sprintf("user_%s_%d", c.GetString(ctxUserID), time.Now().Unix())
	c.JSON(http.StatusOK, gin.H{
		"authUrl": m.config.AuthCodeURL(state, oauth2.AccessTypeOffline),
		"state":   state,
	})
}

// CallbackHandler exchanges the authorization code for a token. The
// client keeps the token and presents it in X-Google-Token on booking
// calls; this service stores nothing.
func (m *CalendarMirror) CallbackHandler(c *gin.Context) {
	code := c.Query("code")
	if code == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "authorization code required"})
		return
	}
	token, err := m.config.Exchange(c.Request.Context(), code)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to exchange code for token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"state": c.Query("state"),
		"token": token,
	})
}

func (m *CalendarMirror) service(ctx context.Context, tokenJSON string) (*calendar.Service, error) {
	var token oauth2.Token
	if err := json.Unmarshal([]byte(tokenJSON), &token); err != nil {
		return nil, fmt.Errorf("invalid calendar token: %w", err)
	}
	client := m.config.Client(ctx, &token)
	return calendar.NewService(ctx, option.WithHTTPClient(client))
}

// MirrorCreate inserts a calendar event for a freshly created booking
// and returns the event id.
func (m *CalendarMirror) MirrorCreate(ctx context.Context, tokenJSON string, b BookingResponse) (string, error) {
	srv, err := m.service(ctx, tokenJSON)
	if err != nil {
		return "", err
	}
	ev := &calendar.Event{
		Summary:     fmt.Sprintf("Innovia Hub: %s", b.ResourceName),
		Description: fmt.Sprintf("Reservation #%d (%s)", b.BookingID, b.Timeslot),
		Start:       &calendar.EventDateTime{DateTime: b.BookingDate.Format(time.RFC3339)},
		End:         &calendar.EventDateTime{DateTime: b.EndDate.Format(time.RFC3339)},
	}
	created, err := srv.Events.Insert("primary", ev).Context(ctx).Do()
	if err != nil {
		return "", err
	}
	return created.Id, nil
}

// MirrorDelete removes the mirrored event after a cancellation.
func (m *CalendarMirror) MirrorDelete(ctx context.Context, tokenJSON, eventID string) error {
	srv, err := m.service(ctx, tokenJSON)
	if err != nil {
		return err
	}
	return srv.Events.Delete("primary", eventID).Context(ctx).Do()
}
