// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package models

import (
	"fmt"
	"slices"
	"time"
)

// MeetingStatus is the lifecycle state of a recorded meeting.
type MeetingStatus string

// Meeting lifecycle states.
const (
	MeetingStatusScheduled  MeetingStatus = "scheduled"
	MeetingStatusRecording  MeetingStatus = "recording"
	MeetingStatusProcessing MeetingStatus = "processing"
	MeetingStatusProcessed  MeetingStatus = "processed"
	MeetingStatusCompleted  MeetingStatus = "completed"
	MeetingStatusFailed     MeetingStatus = "failed"
	MeetingStatusError      MeetingStatus = "error"
)

var meetingStatuses = []MeetingStatus{
	MeetingStatusScheduled,
	MeetingStatusRecording,
	MeetingStatusProcessing,
	MeetingStatusProcessed,
	MeetingStatusCompleted,
	MeetingStatusFailed,
	MeetingStatusError,
}

// IsValid reports whether s is one of the known lifecycle states.
func (s MeetingStatus) IsValid() bool {
	return slices.Contains(meetingStatuses, s)
}

// IsTerminal reports whether s ends the lifecycle. An error meeting may still be
// completed by its recording.
func (s MeetingStatus) IsTerminal() bool {
	switch s {
	case MeetingStatusCompleted, MeetingStatusFailed, MeetingStatusError:
		return true
	}
	return false
}

// Platform is the video conferencing platform hosting a meeting.
type Platform string

// Supported platforms.
const (
	PlatformZoom  Platform = "zoom"
	PlatformMeet  Platform = "meet"
	PlatformTeams Platform = "teams"
	PlatformWebex Platform = "webex"
	PlatformOther Platform = "other"
)

// IsValid reports whether p is a known platform.
func (p Platform) IsValid() bool {
	switch p {
	case PlatformZoom, PlatformMeet, PlatformTeams, PlatformWebex, PlatformOther:
		return true
	}
	return false
}

// Meeting is one recorded session.
type Meeting struct {
	UID              string        `json:"uid"`
	UserID           string        `json:"user_id"`
	Title            string        `json:"title"`
	Description      string        `json:"description,omitempty"`
	MeetingURL       string        `json:"meeting_url"`
	Platform         Platform      `json:"platform"`
	BotID            string        `json:"bot_id,omitempty"`
	Status           MeetingStatus `json:"status"`
	ScheduledAt      *time.Time    `json:"scheduled_at,omitempty"`
	StartedAt        *time.Time    `json:"started_at,omitempty"`
	EndedAt          *time.Time    `json:"ended_at,omitempty"`
	DurationMinutes  int           `json:"duration_minutes"`
	RecordingURL     string        `json:"recording_url,omitempty"`
	DeletionDate     *time.Time    `json:"deletion_date,omitempty"`
	ErrorMessage     string        `json:"error_message,omitempty"`
	CalendarEventUID string        `json:"calendar_event_uid,omitempty"`
	CreatedAt        time.Time     `json:"created_at"`
	UpdatedAt        time.Time     `json:"updated_at"`
}

// HasRecording reports whether provider-side media is still referenced.
func (m *Meeting) HasRecording() bool {
	return m != nil && m.RecordingURL != ""
}

// RetentionExpired reports whether the meeting's media is due for deletion at now.
func (m *Meeting) RetentionExpired(now time.Time) bool {
	return m.HasRecording() && m.DeletionDate != nil && !m.DeletionDate.After(now)
}

// CreateMeetingRequest carries the inputs of a meeting creation, either from the API
// or from the auto-join scheduler.
type CreateMeetingRequest struct {
	UserID           string   `json:"-"`
	Title            string   `json:"title"`
	MeetingURL       string   `json:"meeting_url"`
	Platform         Platform `json:"platform"`
	Description      string   `json:"description,omitempty"`
	CalendarEventUID string   `json:"-"`
}

// Validate checks that all required fields are present.
func (r *CreateMeetingRequest) Validate() error {
	switch {
	case r.UserID == "":
		return fmt.Errorf("user id is required")
	case r.Title == "":
		return fmt.Errorf("title is required")
	case r.MeetingURL == "":
		return fmt.Errorf("meeting url is required")
	case r.Platform == "":
		return fmt.Errorf("platform is required")
	case !r.Platform.IsValid():
		return fmt.Errorf("unsupported platform %q", r.Platform)
	}
	return nil
}
