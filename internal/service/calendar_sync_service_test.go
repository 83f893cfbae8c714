// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/linuxfoundation/lfx-v2-meeting-recorder/internal/domain"
	"github.com/linuxfoundation/lfx-v2-meeting-recorder/internal/domain/mocks"
	"github.com/linuxfoundation/lfx-v2-meeting-recorder/internal/domain/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type calendarFixture struct {
	connections *mocks.MockCalendarConnectionRepository
	events      *mocks.MockCalendarEventRepository
	registry    *mocks.MockCalendarProviderRegistry
	google      *mocks.MockCalendarProvider
	service     *CalendarSyncService
}

func newCalendarFixture() *calendarFixture {
	f := &calendarFixture{
		connections: &mocks.MockCalendarConnectionRepository{},
		events:      &mocks.MockCalendarEventRepository{},
		registry:    &mocks.MockCalendarProviderRegistry{},
		google:      &mocks.MockCalendarProvider{ProviderName: models.CalendarProviderGoogle},
	}
	f.service = NewCalendarSyncService(f.connections, f.events, f.registry)
	f.service.Clock = fixedClock
	return f
}

func googleConnection(expiry time.Time) *models.CalendarConnection {
	return &models.CalendarConnection{
		UID:           "conn-1",
		UserID:        "user-1",
		Provider:      models.CalendarProviderGoogle,
		CalendarEmail: "ann@example.com",
		AccessToken:   "old-access",
		RefreshToken:  "refresh",
		TokenExpiry:   &expiry,
		IsActive:      true,
		SyncEnabled:   true,
	}
}

func TestCalendarSyncService_SyncConnection(t *testing.T) {
	f := newCalendarFixture()
	connection := googleConnection(fixedNow.Add(time.Hour))
	start := fixedNow.Add(3 * time.Hour)

	f.connections.On("GetConnectionWithRevision", mock.Anything, "conn-1").Return(connection, uint64(2), nil)
	f.registry.On("GetProvider", models.CalendarProviderGoogle).Return(f.google, nil)
	f.google.On("ListUpcomingEvents", mock.Anything, connection, 48).Return([]models.ProviderEvent{
		{ID: "evt-meet", Title: "Standup", Start: start, End: start.Add(15 * time.Minute), HangoutLink: "https://meet.google.com/abc-defg-hij"},
		{ID: "evt-zoom", Title: "Customer call", Start: start, End: start.Add(time.Hour), Description: "Join: https://acme.zoom.us/j/987654"},
		{ID: "evt-lunch", Title: "Lunch", Start: start, End: start.Add(time.Hour), Location: "Cafeteria"},
	}, nil)
	f.events.On("UpsertEvent", mock.Anything, mock.MatchedBy(func(e *models.CalendarEvent) bool {
		return e.ExternalEventID == "evt-meet" && e.Platform == models.PlatformMeet && e.ConnectionUID == "conn-1" && e.UserID == "user-1"
	})).Return(&models.CalendarEvent{UID: "e-1"}, nil)
	f.events.On("UpsertEvent", mock.Anything, mock.MatchedBy(func(e *models.CalendarEvent) bool {
		return e.ExternalEventID == "evt-zoom" && e.Platform == models.PlatformZoom && e.MeetingURL == "https://acme.zoom.us/j/987654"
	})).Return(&models.CalendarEvent{UID: "e-2"}, nil)
	f.events.On("DeleteEventsEndedBefore", mock.Anything, "conn-1", fixedNow).Return(4, nil)
	f.connections.On("UpdateConnection", mock.Anything, connection, uint64(2)).Return(nil)

	result, err := f.service.SyncConnection(context.Background(), "conn-1")
	require.NoError(t, err)

	assert.Equal(t, &models.SyncResult{
		ConnectionUID: "conn-1",
		UserID:        "user-1",
		Success:       true,
		EventsFetched: 3,
		EventsSynced:  2,
		EventsPruned:  4,
	}, result)
	require.NotNil(t, connection.LastSyncAt)
	assert.Equal(t, fixedNow, *connection.LastSyncAt)
	f.events.AssertNumberOfCalls(t, "UpsertEvent", 2)
	f.connections.AssertExpectations(t)
}

func TestCalendarSyncService_SyncConnection_RefreshesExpiredToken(t *testing.T) {
	f := newCalendarFixture()
	expired := googleConnection(fixedNow.Add(-time.Minute))
	newExpiry := fixedNow.Add(time.Hour)
	refreshed := googleConnection(newExpiry)
	refreshed.AccessToken = "new-access"

	f.connections.On("GetConnectionWithRevision", mock.Anything, "conn-1").Return(expired, uint64(2), nil).Once()
	f.registry.On("GetProvider", models.CalendarProviderGoogle).Return(f.google, nil)
	f.google.On("RefreshAccessToken", mock.Anything, expired).
		Return(&models.TokenRefresh{AccessToken: "new-access", Expiry: newExpiry}, nil)
	f.connections.On("UpdateConnection", mock.Anything, mock.MatchedBy(func(c *models.CalendarConnection) bool {
		return c.AccessToken == "new-access" && c.RefreshToken == "refresh"
	}), uint64(2)).Return(nil).Once()
	f.connections.On("GetConnectionWithRevision", mock.Anything, "conn-1").Return(refreshed, uint64(3), nil).Once()
	f.google.On("ListUpcomingEvents", mock.Anything, refreshed, 48).Return([]models.ProviderEvent{}, nil)
	f.events.On("DeleteEventsEndedBefore", mock.Anything, "conn-1", fixedNow).Return(0, nil)
	f.connections.On("UpdateConnection", mock.Anything, refreshed, uint64(3)).Return(nil).Once()

	result, err := f.service.SyncConnection(context.Background(), "conn-1")
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Zero(t, result.EventsFetched)
	f.google.AssertExpectations(t)
	f.connections.AssertExpectations(t)
}

func TestCalendarSyncService_SyncConnection_Failures(t *testing.T) {
	t.Run("refresh rejected", func(t *testing.T) {
		f := newCalendarFixture()
		expired := googleConnection(fixedNow.Add(-time.Minute))

		f.connections.On("GetConnectionWithRevision", mock.Anything, "conn-1").Return(expired, uint64(2), nil)
		f.registry.On("GetProvider", models.CalendarProviderGoogle).Return(f.google, nil)
		f.google.On("RefreshAccessToken", mock.Anything, expired).Return(nil, domain.NewValidationError("invalid_grant"))

		result, err := f.service.SyncConnection(context.Background(), "conn-1")
		require.Error(t, err)
		assert.False(t, result.Success)
		assert.Equal(t, "invalid_grant", result.Error)
		f.google.AssertNotCalled(t, "ListUpcomingEvents", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("provider outage", func(t *testing.T) {
		f := newCalendarFixture()
		connection := googleConnection(fixedNow.Add(time.Hour))

		f.connections.On("GetConnectionWithRevision", mock.Anything, "conn-1").Return(connection, uint64(2), nil)
		f.registry.On("GetProvider", models.CalendarProviderGoogle).Return(f.google, nil)
		f.google.On("ListUpcomingEvents", mock.Anything, connection, 48).
			Return(nil, domain.NewProviderUnavailableError("google", errors.New("503")))

		result, err := f.service.SyncConnection(context.Background(), "conn-1")
		assert.True(t, domain.IsErrorType(err, domain.ErrorTypeUnavailable))
		assert.False(t, result.Success)
		f.connections.AssertNotCalled(t, "UpdateConnection", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("disabled connection is skipped", func(t *testing.T) {
		f := newCalendarFixture()
		connection := googleConnection(fixedNow.Add(time.Hour))
		connection.SyncEnabled = false

		f.connections.On("GetConnectionWithRevision", mock.Anything, "conn-1").Return(connection, uint64(2), nil)

		result, err := f.service.SyncConnection(context.Background(), "conn-1")
		require.NoError(t, err)
		assert.True(t, result.Skipped)
		assert.True(t, result.Success)
		f.registry.AssertNotCalled(t, "GetProvider", mock.Anything)
	})
}

func TestCalendarSyncService_SyncConnection_PruneFailureDoesNotFailSync(t *testing.T) {
	f := newCalendarFixture()
	connection := googleConnection(fixedNow.Add(time.Hour))

	f.connections.On("GetConnectionWithRevision", mock.Anything, "conn-1").Return(connection, uint64(2), nil)
	f.registry.On("GetProvider", models.CalendarProviderGoogle).Return(f.google, nil)
	f.google.On("ListUpcomingEvents", mock.Anything, connection, 48).Return([]models.ProviderEvent{}, nil)
	f.events.On("DeleteEventsEndedBefore", mock.Anything, "conn-1", fixedNow).
		Return(1, domain.NewInternalError("failed to delete 2 calendar events"))
	f.connections.On("UpdateConnection", mock.Anything, connection, uint64(2)).Return(nil)

	result, err := f.service.SyncConnection(context.Background(), "conn-1")
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, 1, result.EventsPruned)
	require.NotNil(t, connection.LastSyncAt)
}

func TestCalendarSyncService_SyncAllConnections(t *testing.T) {
	f := newCalendarFixture()
	good := googleConnection(fixedNow.Add(time.Hour))
	broken := &models.CalendarConnection{UID: "conn-2", UserID: "user-2", Provider: "outlook", IsActive: true, SyncEnabled: true}

	f.connections.On("ListSyncableConnections", mock.Anything).Return([]*models.CalendarConnection{good, broken}, nil)
	f.connections.On("GetConnectionWithRevision", mock.Anything, "conn-1").Return(good, uint64(1), nil)
	f.connections.On("GetConnectionWithRevision", mock.Anything, "conn-2").Return(broken, uint64(1), nil)
	f.registry.On("GetProvider", models.CalendarProviderGoogle).Return(f.google, nil)
	f.registry.On("GetProvider", "outlook").Return(nil, domain.NewValidationError(`unsupported calendar provider "outlook"`))
	f.google.On("ListUpcomingEvents", mock.Anything, good, 48).Return([]models.ProviderEvent{}, nil)
	f.events.On("DeleteEventsEndedBefore", mock.Anything, "conn-1", fixedNow).Return(0, nil)
	f.connections.On("UpdateConnection", mock.Anything, good, uint64(1)).Return(domain.NewConflictError("changed"))

	results, err := f.service.SyncAllConnections(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.True(t, results[0].Success)
	assert.Equal(t, "conn-2", results[1].ConnectionUID)
	assert.False(t, results[1].Success)
	assert.Contains(t, results[1].Error, "outlook")
}

func TestCalendarSyncService_ConnectCalendar(t *testing.T) {
	t.Run("stores an active connection", func(t *testing.T) {
		f := newCalendarFixture()
		f.registry.On("GetProvider", models.CalendarProviderICS).Return(&mocks.MockCalendarProvider{ProviderName: "ics"}, nil)
		f.connections.On("CreateConnection", mock.Anything, mock.MatchedBy(func(c *models.CalendarConnection) bool {
			return c.UID != "" && c.IsActive && c.SyncEnabled && c.FeedURL == "https://example.com/cal.ics"
		})).Return(nil)

		connection, err := f.service.ConnectCalendar(context.Background(), models.ConnectCalendarRequest{
			UserID:        "user-1",
			Provider:      models.CalendarProviderICS,
			CalendarEmail: "ann@example.com",
			FeedURL:       "https://example.com/cal.ics",
		})
		require.NoError(t, err)
		assert.Equal(t, fixedNow, connection.CreatedAt)
		f.connections.AssertExpectations(t)
	})

	t.Run("duplicate link", func(t *testing.T) {
		f := newCalendarFixture()
		f.registry.On("GetProvider", models.CalendarProviderGoogle).Return(f.google, nil)
		f.connections.On("CreateConnection", mock.Anything, mock.Anything).Return(domain.NewConflictError("calendar already connected"))

		_, err := f.service.ConnectCalendar(context.Background(), models.ConnectCalendarRequest{
			UserID:        "user-1",
			Provider:      models.CalendarProviderGoogle,
			CalendarEmail: "ann@example.com",
			RefreshToken:  "refresh",
		})
		assert.True(t, domain.IsErrorType(err, domain.ErrorTypeConflict))
	})

	t.Run("missing feed url", func(t *testing.T) {
		f := newCalendarFixture()
		_, err := f.service.ConnectCalendar(context.Background(), models.ConnectCalendarRequest{
			UserID:        "user-1",
			Provider:      models.CalendarProviderICS,
			CalendarEmail: "ann@example.com",
		})
		assert.True(t, domain.IsErrorType(err, domain.ErrorTypeValidation))
		f.connections.AssertNotCalled(t, "CreateConnection", mock.Anything, mock.Anything)
	})
}

func TestCalendarSyncService_DisconnectCalendar(t *testing.T) {
	t.Run("removes events then connection", func(t *testing.T) {
		f := newCalendarFixture()
		f.connections.On("GetConnection", mock.Anything, "conn-1").Return(googleConnection(fixedNow), nil)
		f.events.On("DeleteEventsByConnection", mock.Anything, "conn-1").Return(nil)
		f.connections.On("DeleteConnection", mock.Anything, "conn-1").Return(nil)

		require.NoError(t, f.service.DisconnectCalendar(context.Background(), "conn-1", "user-1"))
		f.events.AssertExpectations(t)
		f.connections.AssertExpectations(t)
	})

	t.Run("someone else's connection", func(t *testing.T) {
		f := newCalendarFixture()
		f.connections.On("GetConnection", mock.Anything, "conn-1").Return(googleConnection(fixedNow), nil)

		err := f.service.DisconnectCalendar(context.Background(), "conn-1", "user-2")
		assert.True(t, domain.IsErrorType(err, domain.ErrorTypeNotFound))
		f.events.AssertNotCalled(t, "DeleteEventsByConnection", mock.Anything, mock.Anything)
	})
}

func TestCalendarSyncService_ListUpcomingEvents(t *testing.T) {
	f := newCalendarFixture()
	f.events.On("ListEventsByUser", mock.Anything, "user-1").Return([]*models.CalendarEvent{
		{UID: "past", EndTime: fixedNow.Add(-time.Minute)},
		{UID: "ongoing", StartTime: fixedNow.Add(-time.Minute), EndTime: fixedNow.Add(time.Hour)},
		{UID: "later", StartTime: fixedNow.Add(time.Hour), EndTime: fixedNow.Add(2 * time.Hour)},
	}, nil)

	events, err := f.service.ListUpcomingEvents(context.Background(), "user-1")
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "ongoing", events[0].UID)
	assert.Equal(t, "later", events[1].UID)
}
