// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/linuxfoundation/lfx-v2-meeting-recorder/internal/domain/models"
)

// MockTranscriptRepository implements TranscriptRepository for testing
type MockTranscriptRepository struct {
	mock.Mock
}

func (m *MockTranscriptRepository) CreateTranscriptIfAbsent(ctx context.Context, transcript *models.Transcript) (bool, error) {
	args := m.Called(ctx, transcript)
	return args.Bool(0), args.Error(1)
}

func (m *MockTranscriptRepository) GetTranscript(ctx context.Context, meetingUID string) (*models.Transcript, error) {
	args := m.Called(ctx, meetingUID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Transcript), args.Error(1)
}

func (m *MockTranscriptRepository) DeleteTranscript(ctx context.Context, meetingUID string) error {
	args := m.Called(ctx, meetingUID)
	return args.Error(0)
}

// MockSummaryRepository implements SummaryRepository for testing
type MockSummaryRepository struct {
	mock.Mock
}

func (m *MockSummaryRepository) CreateSummaryIfAbsent(ctx context.Context, summary *models.Summary) (bool, error) {
	args := m.Called(ctx, summary)
	return args.Bool(0), args.Error(1)
}

func (m *MockSummaryRepository) GetSummary(ctx context.Context, meetingUID string) (*models.Summary, error) {
	args := m.Called(ctx, meetingUID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Summary), args.Error(1)
}

func (m *MockSummaryRepository) DeleteSummary(ctx context.Context, meetingUID string) error {
	args := m.Called(ctx, meetingUID)
	return args.Error(0)
}

// MockTaskRepository implements TaskRepository for testing
type MockTaskRepository struct {
	mock.Mock
}

func (m *MockTaskRepository) CreateTask(ctx context.Context, task *models.Task) error {
	args := m.Called(ctx, task)
	return args.Error(0)
}

func (m *MockTaskRepository) GetTaskWithRevision(ctx context.Context, taskUID string) (*models.Task, uint64, error) {
	args := m.Called(ctx, taskUID)
	if args.Get(0) == nil {
		return nil, args.Get(1).(uint64), args.Error(2)
	}
	return args.Get(0).(*models.Task), args.Get(1).(uint64), args.Error(2)
}

func (m *MockTaskRepository) UpdateTask(ctx context.Context, task *models.Task, revision uint64) error {
	args := m.Called(ctx, task, revision)
	return args.Error(0)
}

func (m *MockTaskRepository) DeleteTask(ctx context.Context, taskUID string) error {
	args := m.Called(ctx, taskUID)
	return args.Error(0)
}

func (m *MockTaskRepository) ListTasksByMeeting(ctx context.Context, meetingUID string) ([]*models.Task, error) {
	args := m.Called(ctx, meetingUID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Task), args.Error(1)
}
