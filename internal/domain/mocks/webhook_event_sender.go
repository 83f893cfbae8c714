// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/linuxfoundation/lfx-v2-meeting-recorder/internal/domain/models"
)

// MockWebhookEventSender implements WebhookEventSender for testing
type MockWebhookEventSender struct {
	mock.Mock
}

func (m *MockWebhookEventSender) PublishRecallWebhookEvent(ctx context.Context, subject string, message models.RecallWebhookEventMessage) error {
	args := m.Called(ctx, subject, message)
	return args.Error(0)
}
