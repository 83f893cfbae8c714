// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package models

import (
	"fmt"
	"time"
)

// Calendar provider names.
const (
	CalendarProviderGoogle = "google"
	CalendarProviderICS    = "ics"
)

// CalendarConnection is one linked external calendar.
type CalendarConnection struct {
	UID           string     `json:"uid"`
	UserID        string     `json:"user_id"`
	Provider      string     `json:"provider"`
	CalendarEmail string     `json:"calendar_email"`
	CalendarID    string     `json:"calendar_id,omitempty"`
	AccessToken   string     `json:"access_token,omitempty"`
	RefreshToken  string     `json:"refresh_token,omitempty"`
	TokenExpiry   *time.Time `json:"token_expiry,omitempty"`
	FeedURL       string     `json:"feed_url,omitempty"`
	IsActive      bool       `json:"is_active"`
	SyncEnabled   bool       `json:"sync_enabled"`
	LastSyncAt    *time.Time `json:"last_sync_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// TokenExpired reports whether the access token must be refreshed before use at now.
func (c *CalendarConnection) TokenExpired(now time.Time) bool {
	return c.TokenExpiry != nil && !c.TokenExpiry.After(now)
}

// Syncable reports whether the sync engine should pull events for the connection.
func (c *CalendarConnection) Syncable() bool {
	return c.IsActive && c.SyncEnabled
}

// UniqueKey identifies the (user, provider, calendar account) tuple a connection belongs to.
func (c *CalendarConnection) UniqueKey() string {
	return c.UserID + "|" + c.Provider + "|" + c.CalendarEmail
}

// ConnectCalendarRequest links a new calendar for a user.
type ConnectCalendarRequest struct {
	UserID        string     `json:"-"`
	Provider      string     `json:"provider"`
	CalendarEmail string     `json:"calendar_email"`
	CalendarID    string     `json:"calendar_id,omitempty"`
	AccessToken   string     `json:"access_token,omitempty"`
	RefreshToken  string     `json:"refresh_token,omitempty"`
	TokenExpiry   *time.Time `json:"token_expiry,omitempty"`
	FeedURL       string     `json:"feed_url,omitempty"`
}

// Validate checks provider-specific required fields.
func (r *ConnectCalendarRequest) Validate() error {
	if r.UserID == "" {
		return fmt.Errorf("user id is required")
	}
	if r.CalendarEmail == "" {
		return fmt.Errorf("calendar email is required")
	}
	switch r.Provider {
	case CalendarProviderGoogle:
		if r.RefreshToken == "" && r.AccessToken == "" {
			return fmt.Errorf("google connections require an access or refresh token")
		}
	case CalendarProviderICS:
		if r.FeedURL == "" {
			return fmt.Errorf("ics connections require a feed url")
		}
	default:
		return fmt.Errorf("unsupported calendar provider %q", r.Provider)
	}
	return nil
}

// CalendarEvent is an upcoming event pulled from a calendar connection.
type CalendarEvent struct {
	UID             string    `json:"uid"`
	ConnectionUID   string    `json:"connection_uid"`
	UserID          string    `json:"user_id"`
	ExternalEventID string    `json:"external_event_id"`
	Title           string    `json:"title"`
	Description     string    `json:"description,omitempty"`
	StartTime       time.Time `json:"start_time"`
	EndTime         time.Time `json:"end_time"`
	MeetingURL      string    `json:"meeting_url,omitempty"`
	Platform        Platform  `json:"platform,omitempty"`
	BotJoined       bool      `json:"bot_joined"`
	MeetingUID      string    `json:"meeting_uid,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Joinable reports whether the auto-join scheduler may start a bot for the event.
func (e *CalendarEvent) Joinable() bool {
	return !e.BotJoined && e.MeetingURL != "" && e.Platform != ""
}

// StartsWithin reports whether the event starts inside [from, to).
func (e *CalendarEvent) StartsWithin(from, to time.Time) bool {
	return !e.StartTime.Before(from) && e.StartTime.Before(to)
}

// ConferenceEntryPoint is one structured conferencing access point of a provider event.
type ConferenceEntryPoint struct {
	EntryPointType string `json:"entry_point_type"`
	URI            string `json:"uri"`
}

// ProviderEvent is a calendar event as returned by a calendar provider, before
// meeting url extraction.
type ProviderEvent struct {
	ID          string                 `json:"id"`
	Title       string                 `json:"title"`
	Description string                 `json:"description"`
	Location    string                 `json:"location"`
	Start       time.Time              `json:"start"`
	End         time.Time              `json:"end"`
	HangoutLink string                 `json:"hangout_link,omitempty"`
	EntryPoints []ConferenceEntryPoint `json:"entry_points,omitempty"`
}

// TokenRefresh is the result of an OAuth refresh-token exchange.
type TokenRefresh struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	Expiry       time.Time `json:"expiry"`
}

// SyncResult is the outcome of syncing one calendar connection.
type SyncResult struct {
	ConnectionUID string `json:"connection_uid"`
	UserID        string `json:"user_id"`
	Success       bool   `json:"success"`
	Skipped       bool   `json:"skipped,omitempty"`
	EventsFetched int    `json:"events_fetched"`
	EventsSynced  int    `json:"events_synced"`
	EventsPruned  int    `json:"events_pruned,omitempty"`
	Error         string `json:"error,omitempty"`
}

// AutoJoinResult summarizes one auto-join scan.
type AutoJoinResult struct {
	UsersScanned  int `json:"users_scanned"`
	EventsMatched int `json:"events_matched"`
	Joined        int `json:"joined"`
	Failed        int `json:"failed"`
}
