// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/linuxfoundation/lfx-v2-meeting-recorder/internal/domain/models"
)

// MockCalendarConnectionRepository implements CalendarConnectionRepository for testing
type MockCalendarConnectionRepository struct {
	mock.Mock
}

func (m *MockCalendarConnectionRepository) CreateConnection(ctx context.Context, connection *models.CalendarConnection) error {
	args := m.Called(ctx, connection)
	return args.Error(0)
}

func (m *MockCalendarConnectionRepository) GetConnection(ctx context.Context, connectionUID string) (*models.CalendarConnection, error) {
	args := m.Called(ctx, connectionUID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.CalendarConnection), args.Error(1)
}

func (m *MockCalendarConnectionRepository) GetConnectionWithRevision(ctx context.Context, connectionUID string) (*models.CalendarConnection, uint64, error) {
	args := m.Called(ctx, connectionUID)
	if args.Get(0) == nil {
		return nil, args.Get(1).(uint64), args.Error(2)
	}
	return args.Get(0).(*models.CalendarConnection), args.Get(1).(uint64), args.Error(2)
}

func (m *MockCalendarConnectionRepository) UpdateConnection(ctx context.Context, connection *models.CalendarConnection, revision uint64) error {
	args := m.Called(ctx, connection, revision)
	return args.Error(0)
}

func (m *MockCalendarConnectionRepository) DeleteConnection(ctx context.Context, connectionUID string) error {
	args := m.Called(ctx, connectionUID)
	return args.Error(0)
}

func (m *MockCalendarConnectionRepository) ListConnectionsByUser(ctx context.Context, userID string) ([]*models.CalendarConnection, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.CalendarConnection), args.Error(1)
}

func (m *MockCalendarConnectionRepository) ListSyncableConnections(ctx context.Context) ([]*models.CalendarConnection, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.CalendarConnection), args.Error(1)
}

// MockCalendarEventRepository implements CalendarEventRepository for testing
type MockCalendarEventRepository struct {
	mock.Mock
}

func (m *MockCalendarEventRepository) UpsertEvent(ctx context.Context, event *models.CalendarEvent) (*models.CalendarEvent, error) {
	args := m.Called(ctx, event)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.CalendarEvent), args.Error(1)
}

func (m *MockCalendarEventRepository) GetEventWithRevision(ctx context.Context, eventUID string) (*models.CalendarEvent, uint64, error) {
	args := m.Called(ctx, eventUID)
	if args.Get(0) == nil {
		return nil, args.Get(1).(uint64), args.Error(2)
	}
	return args.Get(0).(*models.CalendarEvent), args.Get(1).(uint64), args.Error(2)
}

func (m *MockCalendarEventRepository) UpdateEvent(ctx context.Context, event *models.CalendarEvent, revision uint64) error {
	args := m.Called(ctx, event, revision)
	return args.Error(0)
}

func (m *MockCalendarEventRepository) ListEventsByUser(ctx context.Context, userID string) ([]*models.CalendarEvent, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.CalendarEvent), args.Error(1)
}

func (m *MockCalendarEventRepository) DeleteEventsByConnection(ctx context.Context, connectionUID string) error {
	args := m.Called(ctx, connectionUID)
	return args.Error(0)
}

func (m *MockCalendarEventRepository) DeleteEventsEndedBefore(ctx context.Context, connectionUID string, cutoff time.Time) (int, error) {
	args := m.Called(ctx, connectionUID, cutoff)
	return args.Int(0), args.Error(1)
}
