// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package domain

import (
	"context"
	"time"

	"github.com/linuxfoundation/lfx-v2-meeting-recorder/internal/domain/models"
)

// MeetingRepository defines the interface for meeting storage operations.
// Updates are conditional on the revision returned by the last read.
type MeetingRepository interface {
	CreateMeeting(ctx context.Context, meeting *models.Meeting) error
	GetMeeting(ctx context.Context, meetingUID string) (*models.Meeting, error)
	GetMeetingWithRevision(ctx context.Context, meetingUID string) (*models.Meeting, uint64, error)
	UpdateMeeting(ctx context.Context, meeting *models.Meeting, revision uint64) error
	DeleteMeeting(ctx context.Context, meetingUID string, revision uint64) error

	// FindMeetingByBotID returns (nil, nil) when no meeting owns the bot.
	FindMeetingByBotID(ctx context.Context, botID string) (*models.Meeting, error)

	ListMeetingsByUser(ctx context.Context, userID string) ([]*models.Meeting, error)
	ListMeetingsWithExpiredRetention(ctx context.Context, now time.Time) ([]*models.Meeting, error)
}

// TranscriptRepository stores at most one transcript per meeting.
type TranscriptRepository interface {
	// CreateTranscriptIfAbsent reports false when a transcript already exists for the meeting.
	CreateTranscriptIfAbsent(ctx context.Context, transcript *models.Transcript) (bool, error)
	GetTranscript(ctx context.Context, meetingUID string) (*models.Transcript, error)
	DeleteTranscript(ctx context.Context, meetingUID string) error
}

// SummaryRepository stores at most one summary per meeting.
type SummaryRepository interface {
	CreateSummaryIfAbsent(ctx context.Context, summary *models.Summary) (bool, error)
	GetSummary(ctx context.Context, meetingUID string) (*models.Summary, error)
	DeleteSummary(ctx context.Context, meetingUID string) error
}

// TaskRepository stores extracted action items.
type TaskRepository interface {
	CreateTask(ctx context.Context, task *models.Task) error
	GetTaskWithRevision(ctx context.Context, taskUID string) (*models.Task, uint64, error)
	UpdateTask(ctx context.Context, task *models.Task, revision uint64) error
	DeleteTask(ctx context.Context, taskUID string) error
	ListTasksByMeeting(ctx context.Context, meetingUID string) ([]*models.Task, error)
}

// CalendarConnectionRepository stores linked calendars.
type CalendarConnectionRepository interface {
	// CreateConnection fails with a conflict error when the user already linked the same
	// provider account.
	CreateConnection(ctx context.Context, connection *models.CalendarConnection) error
	GetConnection(ctx context.Context, connectionUID string) (*models.CalendarConnection, error)
	GetConnectionWithRevision(ctx context.Context, connectionUID string) (*models.CalendarConnection, uint64, error)
	UpdateConnection(ctx context.Context, connection *models.CalendarConnection, revision uint64) error
	DeleteConnection(ctx context.Context, connectionUID string) error
	ListConnectionsByUser(ctx context.Context, userID string) ([]*models.CalendarConnection, error)
	ListSyncableConnections(ctx context.Context) ([]*models.CalendarConnection, error)
}

// CalendarEventRepository stores pulled calendar events keyed by (connection, external id).
type CalendarEventRepository interface {
	// UpsertEvent creates the event or refreshes its calendar fields, keeping the
	// auto-join state of an existing row.
	UpsertEvent(ctx context.Context, event *models.CalendarEvent) (*models.CalendarEvent, error)
	GetEventWithRevision(ctx context.Context, eventUID string) (*models.CalendarEvent, uint64, error)
	UpdateEvent(ctx context.Context, event *models.CalendarEvent, revision uint64) error
	ListEventsByUser(ctx context.Context, userID string) ([]*models.CalendarEvent, error)
	DeleteEventsByConnection(ctx context.Context, connectionUID string) error
	// DeleteEventsEndedBefore removes the connection's events that ended before cutoff
	// and reports how many were removed.
	DeleteEventsEndedBefore(ctx context.Context, connectionUID string, cutoff time.Time) (int, error)
}

// AccountRepository reads and updates the user fields the recorder depends on.
type AccountRepository interface {
	GetUser(ctx context.Context, userID string) (*models.User, error)
	ListAutoJoinUsers(ctx context.Context) ([]*models.User, error)
	UpdateAutoJoinSettings(ctx context.Context, userID string, settings models.AutoJoinSettings) (*models.User, error)
	UpdateRetentionDays(ctx context.Context, userID string, days int) (*models.User, error)
}

// LedgerRepository records credit movements. Every method is atomic.
type LedgerRepository interface {
	// SettleUsage deducts minutes (floored at zero) and writes the usage and transaction
	// rows. A meeting is settled at most once.
	SettleUsage(ctx context.Context, settlement models.Settlement) (*models.SettlementResult, error)
	RecordPurchase(ctx context.Context, purchase models.CreditPurchase) (int, error)
	ListUsageByUser(ctx context.Context, userID string) ([]*models.Usage, error)
	DeleteUsageByMeeting(ctx context.Context, meetingUID string) error
}
