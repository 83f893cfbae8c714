// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package mocks

import (
	"context"

	"github.com/linuxfoundation/lfx-v2-meeting-recorder/internal/domain/models"
	"github.com/stretchr/testify/mock"
)

// MockMeetingCreator is a mock implementation of service.MeetingCreator
type MockMeetingCreator struct {
	mock.Mock
}

func (m *MockMeetingCreator) CreateMeeting(ctx context.Context, req models.CreateMeetingRequest) (*models.Meeting, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Meeting), args.Error(1)
}
