// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package calendar

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/linuxfoundation/lfx-v2-meeting-recorder/internal/domain"
	"github.com/linuxfoundation/lfx-v2-meeting-recorder/internal/domain/models"
	"github.com/linuxfoundation/lfx-v2-meeting-recorder/internal/logging"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"
)

const (
	// GoogleCalendarBaseURL is the Calendar v3 REST root
	GoogleCalendarBaseURL = "https://www.googleapis.com/calendar/v3"
	// GoogleMaxResults caps the events read per sync
	GoogleMaxResults = 50
	// primaryCalendarID is used when a connection does not name a calendar
	primaryCalendarID = "primary"
)

// GoogleScopes are the read-only scopes requested when a Google calendar is linked.
var GoogleScopes = []string{
	"https://www.googleapis.com/auth/calendar.readonly",
	"https://www.googleapis.com/auth/calendar.events.readonly",
}

// GoogleConfig holds the OAuth client and API settings for Google Calendar.
type GoogleConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	// Optional: override the Calendar API root for testing
	BaseURL string
	// Optional: override the OAuth token endpoint for testing
	TokenURL string
	Timeout  time.Duration
	// Optional: HTTP client used for both the API and token refreshes
	HTTPClient *http.Client
}

// GoogleProvider reads events from Google Calendar.
type GoogleProvider struct {
	oauth      *oauth2.Config
	baseURL    string
	httpClient *http.Client
	now        func() time.Time
}

var _ domain.CalendarProvider = (*GoogleProvider)(nil)

// NewGoogleProvider creates a Google Calendar provider.
func NewGoogleProvider(cfg GoogleConfig) *GoogleProvider {
	endpoint := endpoints.Google
	if cfg.TokenURL != "" {
		endpoint.TokenURL = cfg.TokenURL
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = GoogleCalendarBaseURL
	}

	return &GoogleProvider{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Endpoint:     endpoint,
			Scopes:       GoogleScopes,
		},
		baseURL:    cfg.BaseURL,
		httpClient: newHTTPClient(cfg.HTTPClient, cfg.Timeout),
		now:        time.Now,
	}
}

// Name implements domain.CalendarProvider.
func (g *GoogleProvider) Name() string {
	return models.CalendarProviderGoogle
}

// googleEventList is the subset of an events.list response the recorder reads.
type googleEventList struct {
	Items []googleEvent `json:"items"`
}

type googleEvent struct {
	ID          string          `json:"id"`
	Status      string          `json:"status"`
	Summary     string          `json:"summary"`
	Description string          `json:"description"`
	Location    string          `json:"location"`
	HangoutLink string          `json:"hangoutLink"`
	Start       googleEventTime `json:"start"`
	End         googleEventTime `json:"end"`
	Conference  *struct {
		EntryPoints []struct {
			EntryPointType string `json:"entryPointType"`
			URI            string `json:"uri"`
		} `json:"entryPoints"`
	} `json:"conferenceData"`
}

type googleEventTime struct {
	DateTime string `json:"dateTime"`
	Date     string `json:"date"`
}

func (t googleEventTime) parse() (time.Time, error) {
	if t.DateTime != "" {
		return time.Parse(time.RFC3339, t.DateTime)
	}
	return time.Parse(time.DateOnly, t.Date)
}

// ListUpcomingEvents reads single (expanded) events starting within hoursAhead.
func (g *GoogleProvider) ListUpcomingEvents(ctx context.Context, connection *models.CalendarConnection, hoursAhead int) ([]models.ProviderEvent, error) {
	if connection.AccessToken == "" && connection.RefreshToken == "" {
		return nil, domain.NewValidationError("google connection has no credentials")
	}

	now := g.now().UTC()
	calendarID := connection.CalendarID
	if calendarID == "" {
		calendarID = primaryCalendarID
	}

	query := url.Values{}
	query.Set("timeMin", now.Format(time.RFC3339))
	query.Set("timeMax", now.Add(time.Duration(hoursAhead)*time.Hour).Format(time.RFC3339))
	query.Set("singleEvents", "true")
	query.Set("orderBy", "startTime")
	query.Set("maxResults", strconv.Itoa(GoogleMaxResults))
	endpoint := fmt.Sprintf("%s/calendars/%s/events?%s", g.baseURL, url.PathEscape(calendarID), query.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := g.client(ctx, connection).Do(req)
	if err != nil {
		return nil, domain.NewProviderUnavailableError(models.CalendarProviderGoogle, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, domain.NewProviderUnavailableError(models.CalendarProviderGoogle, err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, domain.NewProviderUnavailableError(models.CalendarProviderGoogle,
			fmt.Errorf("google calendar API error (status %d): %s", resp.StatusCode, string(body)))
	}

	var list googleEventList
	if err := json.Unmarshal(body, &list); err != nil {
		return nil, fmt.Errorf("failed to decode google events: %w", err)
	}

	events := make([]models.ProviderEvent, 0, len(list.Items))
	for _, item := range list.Items {
		if item.Status == "cancelled" {
			continue
		}
		event, err := item.toProviderEvent()
		if err != nil {
			slog.WarnContext(ctx, "skipping google event with unreadable time",
				"connection_uid", connection.UID,
				"event_id", item.ID,
				logging.ErrKey, err)
			continue
		}
		events = append(events, event)
	}

	slog.DebugContext(ctx, "fetched google calendar events",
		"connection_uid", connection.UID,
		"count", len(events))
	return events, nil
}

func (e googleEvent) toProviderEvent() (models.ProviderEvent, error) {
	start, err := e.Start.parse()
	if err != nil {
		return models.ProviderEvent{}, fmt.Errorf("start: %w", err)
	}
	end, err := e.End.parse()
	if err != nil {
		return models.ProviderEvent{}, fmt.Errorf("end: %w", err)
	}

	title := e.Summary
	if title == "" {
		title = "No title"
	}

	event := models.ProviderEvent{
		ID:          e.ID,
		Title:       title,
		Description: e.Description,
		Location:    e.Location,
		Start:       start,
		End:         end,
		HangoutLink: e.HangoutLink,
	}
	if e.Conference != nil {
		for _, ep := range e.Conference.EntryPoints {
			event.EntryPoints = append(event.EntryPoints, models.ConferenceEntryPoint{
				EntryPointType: ep.EntryPointType,
				URI:            ep.URI,
			})
		}
	}
	return event, nil
}

// RefreshAccessToken exchanges the connection's refresh token for a new access token.
func (g *GoogleProvider) RefreshAccessToken(ctx context.Context, connection *models.CalendarConnection) (*models.TokenRefresh, error) {
	if connection.RefreshToken == "" {
		return nil, domain.NewValidationError("no refresh token available")
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, g.httpClient)
	token, err := g.oauth.TokenSource(ctx, &oauth2.Token{
		RefreshToken: connection.RefreshToken,
		Expiry:       time.Unix(1, 0),
	}).Token()
	if err != nil {
		return nil, domain.NewProviderUnavailableError(models.CalendarProviderGoogle, err)
	}

	expiry := token.Expiry
	if expiry.IsZero() {
		expiry = g.now().Add(time.Hour)
	}

	slog.InfoContext(ctx, "refreshed google access token", "connection_uid", connection.UID)
	return &models.TokenRefresh{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		Expiry:       expiry,
	}, nil
}

// client returns an HTTP client that authorizes with the connection's tokens.
func (g *GoogleProvider) client(ctx context.Context, connection *models.CalendarConnection) *http.Client {
	token := &oauth2.Token{
		AccessToken:  connection.AccessToken,
		RefreshToken: connection.RefreshToken,
		TokenType:    "Bearer",
	}
	if connection.TokenExpiry != nil {
		token.Expiry = *connection.TokenExpiry
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, g.httpClient)
	return g.oauth.Client(ctx, token)
}
