// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/linuxfoundation/lfx-v2-meeting-recorder/internal/domain"
	"github.com/linuxfoundation/lfx-v2-meeting-recorder/internal/domain/models"
)

// MockRecordingProvider implements RecordingProvider for testing
type MockRecordingProvider struct {
	mock.Mock
}

func (m *MockRecordingProvider) StartBot(ctx context.Context, meetingURL string, config models.BotConfig) (*models.Bot, error) {
	args := m.Called(ctx, meetingURL, config)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Bot), args.Error(1)
}

func (m *MockRecordingProvider) StopBot(ctx context.Context, botID string) error {
	args := m.Called(ctx, botID)
	return args.Error(0)
}

func (m *MockRecordingProvider) GetBotStatus(ctx context.Context, botID string) (string, error) {
	args := m.Called(ctx, botID)
	return args.String(0), args.Error(1)
}

func (m *MockRecordingProvider) GetTranscript(ctx context.Context, botID string) ([]models.TranscriptWord, error) {
	args := m.Called(ctx, botID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.TranscriptWord), args.Error(1)
}

func (m *MockRecordingProvider) GetFormattedTranscript(ctx context.Context, botID string) (string, error) {
	args := m.Called(ctx, botID)
	return args.String(0), args.Error(1)
}

func (m *MockRecordingProvider) GetRecordingDetails(ctx context.Context, botID string) (*models.RecordingDetails, error) {
	args := m.Called(ctx, botID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.RecordingDetails), args.Error(1)
}

func (m *MockRecordingProvider) DeleteRecording(ctx context.Context, botID string) (bool, error) {
	args := m.Called(ctx, botID)
	return args.Bool(0), args.Error(1)
}

func (m *MockRecordingProvider) DeleteBot(ctx context.Context, botID string) error {
	args := m.Called(ctx, botID)
	return args.Error(0)
}

// MockCalendarProvider implements CalendarProvider for testing
type MockCalendarProvider struct {
	mock.Mock
	ProviderName string
}

func (m *MockCalendarProvider) Name() string {
	return m.ProviderName
}

func (m *MockCalendarProvider) ListUpcomingEvents(ctx context.Context, connection *models.CalendarConnection, hoursAhead int) ([]models.ProviderEvent, error) {
	args := m.Called(ctx, connection, hoursAhead)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.ProviderEvent), args.Error(1)
}

func (m *MockCalendarProvider) RefreshAccessToken(ctx context.Context, connection *models.CalendarConnection) (*models.TokenRefresh, error) {
	args := m.Called(ctx, connection)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.TokenRefresh), args.Error(1)
}

// MockCalendarProviderRegistry implements CalendarProviderRegistry for testing
type MockCalendarProviderRegistry struct {
	mock.Mock
}

func (m *MockCalendarProviderRegistry) GetProvider(name string) (domain.CalendarProvider, error) {
	args := m.Called(name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(domain.CalendarProvider), args.Error(1)
}

// MockAIAnalyzer implements AIAnalyzer for testing
type MockAIAnalyzer struct {
	mock.Mock
}

func (m *MockAIAnalyzer) Analyze(ctx context.Context, transcript string) (*models.AnalysisResult, error) {
	args := m.Called(ctx, transcript)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.AnalysisResult), args.Error(1)
}

// MockPaymentProvider implements PaymentProvider for testing
type MockPaymentProvider struct {
	mock.Mock
}

func (m *MockPaymentProvider) ChargeDefaultPaymentMethod(ctx context.Context, charge models.TopUpCharge) (*models.TopUpReceipt, error) {
	args := m.Called(ctx, charge)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.TopUpReceipt), args.Error(1)
}

// MockWebhookValidator implements WebhookValidator for testing
type MockWebhookValidator struct {
	mock.Mock
}

func (m *MockWebhookValidator) ValidateSignature(body []byte, signature string) error {
	args := m.Called(body, signature)
	return args.Error(0)
}

func (m *MockWebhookValidator) Enabled() bool {
	args := m.Called()
	return args.Bool(0)
}
