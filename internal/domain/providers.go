// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package domain

import (
	"context"

	"github.com/linuxfoundation/lfx-v2-meeting-recorder/internal/domain/models"
)

// RecordingProvider wraps the external bot API. It holds no state.
type RecordingProvider interface {
	StartBot(ctx context.Context, meetingURL string, config models.BotConfig) (*models.Bot, error)
	StopBot(ctx context.Context, botID string) error
	GetBotStatus(ctx context.Context, botID string) (string, error)
	GetTranscript(ctx context.Context, botID string) ([]models.TranscriptWord, error)
	GetFormattedTranscript(ctx context.Context, botID string) (string, error)
	GetRecordingDetails(ctx context.Context, botID string) (*models.RecordingDetails, error)

	// DeleteRecording removes provider-side media. It reports false when the bot has no
	// recording to delete.
	DeleteRecording(ctx context.Context, botID string) (bool, error)
	DeleteBot(ctx context.Context, botID string) error
}

// CalendarProvider reads upcoming events from one kind of external calendar.
type CalendarProvider interface {
	Name() string
	ListUpcomingEvents(ctx context.Context, connection *models.CalendarConnection, hoursAhead int) ([]models.ProviderEvent, error)
	RefreshAccessToken(ctx context.Context, connection *models.CalendarConnection) (*models.TokenRefresh, error)
}

// CalendarProviderRegistry resolves a calendar provider by connection provider name.
type CalendarProviderRegistry interface {
	GetProvider(name string) (CalendarProvider, error)
}

// AIAnalyzer turns transcript text into a summary and a task list.
type AIAnalyzer interface {
	Analyze(ctx context.Context, transcript string) (*models.AnalysisResult, error)
}

// PaymentProvider charges stored payment methods for credit top-ups.
type PaymentProvider interface {
	ChargeDefaultPaymentMethod(ctx context.Context, charge models.TopUpCharge) (*models.TopUpReceipt, error)
}

// WebhookValidator verifies inbound provider webhook signatures.
type WebhookValidator interface {
	ValidateSignature(body []byte, signature string) error
	Enabled() bool
}
