// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package store

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/linuxfoundation/lfx-v2-meeting-recorder/internal/domain"
	"github.com/linuxfoundation/lfx-v2-meeting-recorder/internal/domain/models"
	"github.com/linuxfoundation/lfx-v2-meeting-recorder/internal/logging"
)

// NatsCalendarConnectionRepository implements domain.CalendarConnectionRepository.
// "lookup/connection/<hash of user, provider, email>" holds the UID of the one
// connection allowed per tuple.
type NatsCalendarConnectionRepository struct {
	*NatsBaseRepository[models.CalendarConnection]
	keyBuilder *KeyBuilder
}

// NewNatsCalendarConnectionRepository creates a new calendar connection repository
func NewNatsCalendarConnectionRepository(kvStore INatsKeyValue) *NatsCalendarConnectionRepository {
	return &NatsCalendarConnectionRepository{
		NatsBaseRepository: NewNatsBaseRepository[models.CalendarConnection](kvStore, "calendar connection"),
		keyBuilder:         NewKeyBuilder(""),
	}
}

func (r *NatsCalendarConnectionRepository) connectionKey(connectionUID string) string {
	return r.keyBuilder.EntityKey(KeyPrefixConnection, connectionUID)
}

func (r *NatsCalendarConnectionRepository) uniqueKey(connection *models.CalendarConnection) string {
	return r.keyBuilder.LookupKey(KeyPrefixLookupConnection, HashKey(connection.UserID, connection.Provider, connection.CalendarEmail))
}

// CreateConnection claims the (user, provider, email) tuple and stores the connection.
func (r *NatsCalendarConnectionRepository) CreateConnection(ctx context.Context, connection *models.CalendarConnection) error {
	if connection.UID == "" {
		connection.UID = uuid.New().String()
	}

	if err := r.ClaimLookup(ctx, r.uniqueKey(connection), connection.UID); err != nil {
		if domain.IsErrorType(err, domain.ErrorTypeConflict) {
			return domain.NewConflictError(fmt.Sprintf("%s calendar %s is already connected", connection.Provider, connection.CalendarEmail), err)
		}
		return err
	}

	if err := r.Create(ctx, r.connectionKey(connection.UID), connection); err != nil {
		if relErr := r.ReleaseLookup(ctx, r.uniqueKey(connection)); relErr != nil {
			slog.WarnContext(ctx, "failed to release connection lookup", logging.ErrKey, relErr, "connection_uid", connection.UID)
		}
		return err
	}

	return nil
}

// GetConnection retrieves a connection by UID
func (r *NatsCalendarConnectionRepository) GetConnection(ctx context.Context, connectionUID string) (*models.CalendarConnection, error) {
	return r.Get(ctx, r.connectionKey(connectionUID))
}

// GetConnectionWithRevision retrieves a connection with its revision
func (r *NatsCalendarConnectionRepository) GetConnectionWithRevision(ctx context.Context, connectionUID string) (*models.CalendarConnection, uint64, error) {
	return r.GetWithRevision(ctx, r.connectionKey(connectionUID))
}

// UpdateConnection writes the connection if it is still at revision
func (r *NatsCalendarConnectionRepository) UpdateConnection(ctx context.Context, connection *models.CalendarConnection, revision uint64) error {
	return r.Update(ctx, r.connectionKey(connection.UID), connection, revision)
}

// DeleteConnection removes a connection and releases its uniqueness claim
func (r *NatsCalendarConnectionRepository) DeleteConnection(ctx context.Context, connectionUID string) error {
	connection, err := r.GetConnection(ctx, connectionUID)
	if err != nil {
		return err
	}

	if err := r.DeleteWithoutRevision(ctx, r.connectionKey(connectionUID)); err != nil {
		return err
	}

	if err := r.ReleaseLookup(ctx, r.uniqueKey(connection)); err != nil {
		slog.WarnContext(ctx, "failed to release connection lookup", logging.ErrKey, err, "connection_uid", connectionUID)
	}
	return nil
}

// ListConnectionsByUser returns a user's connections, oldest first
func (r *NatsCalendarConnectionRepository) ListConnectionsByUser(ctx context.Context, userID string) ([]*models.CalendarConnection, error) {
	connections, err := r.ListEntitiesWhere(ctx, r.keyBuilder.EntityPrefix(KeyPrefixConnection), func(c *models.CalendarConnection) bool {
		return c.UserID == userID
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(connections, func(i, j int) bool {
		return connections[i].CreatedAt.Before(connections[j].CreatedAt)
	})
	return connections, nil
}

// ListSyncableConnections returns every active connection with sync enabled
func (r *NatsCalendarConnectionRepository) ListSyncableConnections(ctx context.Context) ([]*models.CalendarConnection, error) {
	return r.ListEntitiesWhere(ctx, r.keyBuilder.EntityPrefix(KeyPrefixConnection), func(c *models.CalendarConnection) bool {
		return c.Syncable()
	})
}

// NatsCalendarEventRepository implements domain.CalendarEventRepository. Event
// UIDs are derived from (connection UID, external event id) so repeated syncs
// address the same row. "index/user/<user id>/<event uid>" scopes a user's events.
type NatsCalendarEventRepository struct {
	*NatsBaseRepository[models.CalendarEvent]
	keyBuilder *KeyBuilder
	now        func() time.Time
}

// NewNatsCalendarEventRepository creates a new calendar event repository
func NewNatsCalendarEventRepository(kvStore INatsKeyValue) *NatsCalendarEventRepository {
	return &NatsCalendarEventRepository{
		NatsBaseRepository: NewNatsBaseRepository[models.CalendarEvent](kvStore, "calendar event"),
		keyBuilder:         NewKeyBuilder(""),
		now:                time.Now,
	}
}

// CalendarEventUID is the deterministic UID of an event within a connection.
func CalendarEventUID(connectionUID, externalEventID string) string {
	return HashKey(connectionUID, externalEventID)
}

func (r *NatsCalendarEventRepository) eventKey(eventUID string) string {
	return r.keyBuilder.EntityKey(KeyPrefixEvent, eventUID)
}

func (r *NatsCalendarEventRepository) userIndexKey(event *models.CalendarEvent) string {
	return r.keyBuilder.IndexKey(KeyPrefixIndexUser, event.UserID, event.UID)
}

// indexUser writes the event's user index entry. Every upsert rewrites it, so a
// failed write is repaired by the next sync.
func (r *NatsCalendarEventRepository) indexUser(ctx context.Context, event *models.CalendarEvent) {
	if err := r.PutIndex(ctx, r.userIndexKey(event)); err != nil {
		slog.WarnContext(ctx, "failed to index calendar event by user", logging.ErrKey, err, "event_uid", event.UID)
	}
}

// UpsertEvent inserts the event or refreshes the calendar-owned fields of the
// stored row, and indexes it under its user. BotJoined and MeetingUID of an
// existing row are never overwritten.
func (r *NatsCalendarEventRepository) UpsertEvent(ctx context.Context, event *models.CalendarEvent) (*models.CalendarEvent, error) {
	event.UID = CalendarEventUID(event.ConnectionUID, event.ExternalEventID)
	key := r.eventKey(event.UID)

	for attempt := 0; attempt < 3; attempt++ {
		existing, revision, err := r.GetWithRevision(ctx, key)
		if err != nil && !domain.IsErrorType(err, domain.ErrorTypeNotFound) {
			return nil, err
		}

		now := r.now().UTC()
		if existing == nil {
			fresh := *event
			fresh.BotJoined = false
			fresh.MeetingUID = ""
			fresh.CreatedAt = now
			fresh.UpdatedAt = now

			created, err := r.CreateIfAbsent(ctx, key, &fresh)
			if err != nil {
				return nil, err
			}
			if created {
				r.indexUser(ctx, &fresh)
				return &fresh, nil
			}
			continue
		}

		merged := *existing
		merged.UserID = event.UserID
		merged.Title = event.Title
		merged.Description = event.Description
		merged.StartTime = event.StartTime
		merged.EndTime = event.EndTime
		merged.MeetingURL = event.MeetingURL
		merged.Platform = event.Platform
		merged.UpdatedAt = now

		err = r.Update(ctx, key, &merged, revision)
		if err == nil {
			r.indexUser(ctx, &merged)
			return &merged, nil
		}
		if !domain.IsErrorType(err, domain.ErrorTypeConflict) {
			return nil, err
		}
	}

	return nil, domain.NewConflictError(fmt.Sprintf("calendar event %s kept changing during upsert", event.UID))
}

// GetEventWithRevision retrieves an event with its revision
func (r *NatsCalendarEventRepository) GetEventWithRevision(ctx context.Context, eventUID string) (*models.CalendarEvent, uint64, error) {
	return r.GetWithRevision(ctx, r.eventKey(eventUID))
}

// UpdateEvent writes the event if it is still at revision
func (r *NatsCalendarEventRepository) UpdateEvent(ctx context.Context, event *models.CalendarEvent, revision uint64) error {
	return r.Update(ctx, r.eventKey(event.UID), event, revision)
}

// ListEventsByUser returns the user's events ordered by start time. Only the
// user's index entries are resolved.
func (r *NatsCalendarEventRepository) ListEventsByUser(ctx context.Context, userID string) ([]*models.CalendarEvent, error) {
	keys, err := r.ListKeys(ctx)
	if err != nil {
		return nil, err
	}

	indexPrefix := r.keyBuilder.IndexPrefix(KeyPrefixIndexUser, userID)
	var events []*models.CalendarEvent

	for _, key := range keys {
		if !matchesPattern(key, indexPrefix) {
			continue
		}
		eventUID := strings.TrimPrefix(key, indexPrefix)
		event, err := r.Get(ctx, r.eventKey(eventUID))
		if err != nil {
			if domain.IsErrorType(err, domain.ErrorTypeNotFound) {
				slog.DebugContext(ctx, "user index points at a missing event", "event_uid", eventUID)
			} else {
				slog.WarnContext(ctx, "failed to get indexed event, skipping", logging.ErrKey, err, "event_uid", eventUID)
			}
			continue
		}
		events = append(events, event)
	}

	sort.SliceStable(events, func(i, j int) bool {
		return events[i].StartTime.Before(events[j].StartTime)
	})
	return events, nil
}

// DeleteEventsByConnection removes every event pulled through a connection
func (r *NatsCalendarEventRepository) DeleteEventsByConnection(ctx context.Context, connectionUID string) error {
	deleted, err := r.deleteEventsWhere(ctx, func(e *models.CalendarEvent) bool {
		return e.ConnectionUID == connectionUID
	})
	if err != nil {
		return err
	}
	slog.DebugContext(ctx, "calendar events deleted", "connection_uid", connectionUID, "count", deleted)
	return nil
}

// DeleteEventsEndedBefore removes the connection's events whose end time is before cutoff.
func (r *NatsCalendarEventRepository) DeleteEventsEndedBefore(ctx context.Context, connectionUID string, cutoff time.Time) (int, error) {
	return r.deleteEventsWhere(ctx, func(e *models.CalendarEvent) bool {
		return e.ConnectionUID == connectionUID && !e.EndTime.IsZero() && e.EndTime.Before(cutoff)
	})
}

// deleteEventsWhere removes every event matching keep together with its user index entry.
func (r *NatsCalendarEventRepository) deleteEventsWhere(ctx context.Context, keep func(*models.CalendarEvent) bool) (int, error) {
	events, err := r.ListEntitiesWhere(ctx, r.keyBuilder.EntityPrefix(KeyPrefixEvent), keep)
	if err != nil {
		return 0, err
	}

	var deleted, failed int
	for _, event := range events {
		if err := r.DeleteWithoutRevision(ctx, r.eventKey(event.UID)); err != nil && !domain.IsErrorType(err, domain.ErrorTypeNotFound) {
			slog.WarnContext(ctx, "failed to delete calendar event", logging.ErrKey, err, "event_uid", event.UID)
			failed++
			continue
		}
		if err := r.DeleteIndex(ctx, r.userIndexKey(event)); err != nil {
			slog.WarnContext(ctx, "failed to delete calendar event index", logging.ErrKey, err, "event_uid", event.UID)
		}
		deleted++
	}
	if failed > 0 {
		return deleted, domain.NewInternalError(fmt.Sprintf("failed to delete %d calendar events", failed))
	}
	return deleted, nil
}
