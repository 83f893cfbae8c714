// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/linuxfoundation/lfx-v2-meeting-recorder/internal/domain"
	"github.com/linuxfoundation/lfx-v2-meeting-recorder/internal/domain/models"
	"github.com/linuxfoundation/lfx-v2-meeting-recorder/internal/logging"
	"github.com/linuxfoundation/lfx-v2-meeting-recorder/internal/utils"
	"github.com/linuxfoundation/lfx-v2-meeting-recorder/pkg/constants"
)

// CalendarSyncService pulls upcoming events from linked calendars into CalendarEvent rows
// and manages the calendar connections themselves.
type CalendarSyncService struct {
	ConnectionRepository domain.CalendarConnectionRepository
	EventRepository      domain.CalendarEventRepository
	ProviderRegistry     domain.CalendarProviderRegistry
	Clock                Clock
}

// NewCalendarSyncService creates a new CalendarSyncService.
func NewCalendarSyncService(
	connectionRepository domain.CalendarConnectionRepository,
	eventRepository domain.CalendarEventRepository,
	providerRegistry domain.CalendarProviderRegistry,
) *CalendarSyncService {
	return &CalendarSyncService{
		ConnectionRepository: connectionRepository,
		EventRepository:      eventRepository,
		ProviderRegistry:     providerRegistry,
	}
}

// ServiceReady checks if the service is ready for use.
func (s *CalendarSyncService) ServiceReady() bool {
	return s.ConnectionRepository != nil &&
		s.EventRepository != nil &&
		s.ProviderRegistry != nil
}

// SyncConnection refreshes the connection's token when it has expired, then upserts every
// upcoming event that carries a meeting link. Events without a link are skipped. Events
// of the connection that have already ended are pruned.
func (s *CalendarSyncService) SyncConnection(ctx context.Context, connectionUID string) (*models.SyncResult, error) {
	connection, revision, err := s.ConnectionRepository.GetConnectionWithRevision(ctx, connectionUID)
	if err != nil {
		return nil, err
	}

	result := &models.SyncResult{ConnectionUID: connection.UID, UserID: connection.UserID}
	ctx = logging.AppendCtx(ctx, slog.String("connection_uid", connection.UID))

	if !connection.Syncable() {
		slog.DebugContext(ctx, "connection is not syncable, skipping")
		result.Success = true
		result.Skipped = true
		return result, nil
	}

	provider, err := s.ProviderRegistry.GetProvider(connection.Provider)
	if err != nil {
		result.Error = err.Error()
		return result, err
	}

	if connection.TokenExpired(utcNow(s.Clock)) {
		connection, revision, err = s.refreshToken(ctx, provider, connection, revision)
		if err != nil {
			result.Error = err.Error()
			return result, err
		}
	}

	events, err := provider.ListUpcomingEvents(ctx, connection, constants.CalendarSyncHoursAhead)
	if err != nil {
		result.Error = err.Error()
		return result, err
	}
	result.EventsFetched = len(events)

	for _, event := range events {
		meetingURL, platform := utils.ExtractMeetingURL(event)
		if meetingURL == "" {
			continue
		}

		_, err := s.EventRepository.UpsertEvent(ctx, &models.CalendarEvent{
			ConnectionUID:   connection.UID,
			UserID:          connection.UserID,
			ExternalEventID: event.ID,
			Title:           event.Title,
			Description:     event.Description,
			StartTime:       event.Start,
			EndTime:         event.End,
			MeetingURL:      meetingURL,
			Platform:        platform,
		})
		if err != nil {
			slog.WarnContext(ctx, "failed to store calendar event", logging.ErrKey, err, "external_event_id", event.ID)
			continue
		}
		result.EventsSynced++
	}

	pruned, err := s.EventRepository.DeleteEventsEndedBefore(ctx, connection.UID, utcNow(s.Clock))
	if err != nil {
		slog.WarnContext(ctx, "failed to prune ended calendar events", logging.ErrKey, err)
	}
	result.EventsPruned = pruned

	s.stampSynced(ctx, connection, revision)

	result.Success = true
	slog.InfoContext(ctx, "calendar synced",
		"events_fetched", result.EventsFetched,
		"events_synced", result.EventsSynced,
		"events_pruned", result.EventsPruned)
	return result, nil
}

// refreshToken exchanges the refresh token and persists the new access token. The
// returned revision belongs to the persisted connection.
func (s *CalendarSyncService) refreshToken(ctx context.Context, provider domain.CalendarProvider, connection *models.CalendarConnection, revision uint64) (*models.CalendarConnection, uint64, error) {
	refreshed, err := provider.RefreshAccessToken(ctx, connection)
	if err != nil {
		slog.WarnContext(ctx, "failed to refresh calendar token", logging.ErrKey, err)
		return nil, 0, err
	}

	connection.AccessToken = refreshed.AccessToken
	if refreshed.RefreshToken != "" {
		connection.RefreshToken = refreshed.RefreshToken
	}
	expiry := refreshed.Expiry.UTC()
	connection.TokenExpiry = &expiry
	connection.UpdatedAt = utcNow(s.Clock)

	if err := s.ConnectionRepository.UpdateConnection(ctx, connection, revision); err != nil {
		return nil, 0, err
	}

	slog.DebugContext(ctx, "calendar token refreshed", "expiry", expiry)
	return s.ConnectionRepository.GetConnectionWithRevision(ctx, connection.UID)
}

// stampSynced records LastSyncAt. A concurrent edit of the connection wins; the stamp is
// informational only.
func (s *CalendarSyncService) stampSynced(ctx context.Context, connection *models.CalendarConnection, revision uint64) {
	now := utcNow(s.Clock)
	connection.LastSyncAt = &now
	connection.UpdatedAt = now
	if err := s.ConnectionRepository.UpdateConnection(ctx, connection, revision); err != nil {
		slog.WarnContext(ctx, "failed to record last sync time", logging.ErrKey, err)
	}
}

// SyncAllConnections syncs every active, sync-enabled connection in turn. Failures are
// reported per connection.
func (s *CalendarSyncService) SyncAllConnections(ctx context.Context) ([]models.SyncResult, error) {
	connections, err := s.ConnectionRepository.ListSyncableConnections(ctx)
	if err != nil {
		return nil, err
	}
	return s.syncEach(ctx, connections), nil
}

// SyncUser syncs the user's syncable connections.
func (s *CalendarSyncService) SyncUser(ctx context.Context, userID string) ([]models.SyncResult, error) {
	connections, err := s.ConnectionRepository.ListConnectionsByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	syncable := connections[:0:0]
	for _, connection := range connections {
		if connection.Syncable() {
			syncable = append(syncable, connection)
		}
	}
	return s.syncEach(ctx, syncable), nil
}

func (s *CalendarSyncService) syncEach(ctx context.Context, connections []*models.CalendarConnection) []models.SyncResult {
	results := make([]models.SyncResult, 0, len(connections))
	for _, connection := range connections {
		if ctx.Err() != nil {
			results = append(results, models.SyncResult{
				ConnectionUID: connection.UID,
				UserID:        connection.UserID,
				Error:         ctx.Err().Error(),
			})
			continue
		}

		result, err := s.SyncConnection(ctx, connection.UID)
		if err != nil {
			slog.WarnContext(ctx, "calendar sync failed", logging.ErrKey, err, "connection_uid", connection.UID)
			if result == nil {
				result = &models.SyncResult{ConnectionUID: connection.UID, UserID: connection.UserID, Error: err.Error()}
			}
		}
		results = append(results, *result)
	}
	return results
}

// ListUpcomingEvents returns the user's stored events that have not ended yet.
func (s *CalendarSyncService) ListUpcomingEvents(ctx context.Context, userID string) ([]*models.CalendarEvent, error) {
	events, err := s.EventRepository.ListEventsByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	now := utcNow(s.Clock)
	upcoming := make([]*models.CalendarEvent, 0, len(events))
	for _, event := range events {
		if event.EndTime.After(now) {
			upcoming = append(upcoming, event)
		}
	}
	return upcoming, nil
}

// ConnectCalendar links a calendar for the user. Linking the same provider account twice
// is a conflict.
func (s *CalendarSyncService) ConnectCalendar(ctx context.Context, req models.ConnectCalendarRequest) (*models.CalendarConnection, error) {
	if err := req.Validate(); err != nil {
		return nil, domain.NewValidationError(err.Error())
	}
	if _, err := s.ProviderRegistry.GetProvider(req.Provider); err != nil {
		return nil, err
	}

	now := utcNow(s.Clock)
	connection := &models.CalendarConnection{
		UID:           uuid.New().String(),
		UserID:        req.UserID,
		Provider:      req.Provider,
		CalendarEmail: req.CalendarEmail,
		CalendarID:    req.CalendarID,
		AccessToken:   req.AccessToken,
		RefreshToken:  req.RefreshToken,
		TokenExpiry:   req.TokenExpiry,
		FeedURL:       req.FeedURL,
		IsActive:      true,
		SyncEnabled:   true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.ConnectionRepository.CreateConnection(ctx, connection); err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "calendar connected",
		"connection_uid", connection.UID,
		"user_id", connection.UserID,
		"provider", connection.Provider)
	return connection, nil
}

// DisconnectCalendar removes one of the user's connections together with its events.
func (s *CalendarSyncService) DisconnectCalendar(ctx context.Context, connectionUID, userID string) error {
	connection, err := s.ConnectionRepository.GetConnection(ctx, connectionUID)
	if err != nil {
		return err
	}
	if connection.UserID != userID {
		return domain.NewNotFoundError(fmt.Sprintf("calendar connection %s not found", connectionUID))
	}

	if err := s.EventRepository.DeleteEventsByConnection(ctx, connectionUID); err != nil {
		return err
	}
	if err := s.ConnectionRepository.DeleteConnection(ctx, connectionUID); err != nil {
		return err
	}

	slog.InfoContext(ctx, "calendar disconnected", "connection_uid", connectionUID, "user_id", userID)
	return nil
}

// ListConnections returns the user's calendar connections.
func (s *CalendarSyncService) ListConnections(ctx context.Context, userID string) ([]*models.CalendarConnection, error) {
	return s.ConnectionRepository.ListConnectionsByUser(ctx, userID)
}
