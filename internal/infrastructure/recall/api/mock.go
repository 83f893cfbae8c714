// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package api

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// MockClient is a mock implementation of ClientAPI for testing
type MockClient struct {
	mock.Mock
}

var _ ClientAPI = (*MockClient)(nil)

// StartBot mocks the StartBot method
func (m *MockClient) StartBot(ctx context.Context, request *StartBotRequest) (*BotResponse, error) {
	args := m.Called(ctx, request)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*BotResponse), args.Error(1)
}

// GetBot mocks the GetBot method
func (m *MockClient) GetBot(ctx context.Context, botID string) (*BotResponse, error) {
	args := m.Called(ctx, botID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*BotResponse), args.Error(1)
}

// LeaveCall mocks the LeaveCall method
func (m *MockClient) LeaveCall(ctx context.Context, botID string) error {
	args := m.Called(ctx, botID)
	return args.Error(0)
}

// DeleteBot mocks the DeleteBot method
func (m *MockClient) DeleteBot(ctx context.Context, botID string) error {
	args := m.Called(ctx, botID)
	return args.Error(0)
}

// GetTranscript mocks the GetTranscript method
func (m *MockClient) GetTranscript(ctx context.Context, botID string) (*TranscriptResponse, error) {
	args := m.Called(ctx, botID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*TranscriptResponse), args.Error(1)
}

// GetRecording mocks the GetRecording method
func (m *MockClient) GetRecording(ctx context.Context, recordingID string) (*RecordingResponse, error) {
	args := m.Called(ctx, recordingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*RecordingResponse), args.Error(1)
}

// DeleteRecording mocks the DeleteRecording method
func (m *MockClient) DeleteRecording(ctx context.Context, recordingID string) error {
	args := m.Called(ctx, recordingID)
	return args.Error(0)
}
