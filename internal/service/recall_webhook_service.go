// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/linuxfoundation/lfx-v2-meeting-recorder/internal/domain"
	"github.com/linuxfoundation/lfx-v2-meeting-recorder/internal/domain/models"
	"github.com/linuxfoundation/lfx-v2-meeting-recorder/internal/logging"
	"github.com/linuxfoundation/lfx-v2-meeting-recorder/internal/metrics"
)

// ErrInvalidWebhookSignature is wrapped by every signature rejection.
var ErrInvalidWebhookSignature = errors.New("invalid webhook signature")

// RecallWebhookService accepts Recall webhooks over HTTP and queues them on NATS.
type RecallWebhookService struct {
	messageSender    domain.WebhookEventSender
	webhookValidator domain.WebhookValidator
	metrics          *metrics.Metrics
	clock            Clock
}

// RecallWebhookResult tells the HTTP layer what happened to an accepted webhook.
type RecallWebhookResult struct {
	Event   string
	BotID   string
	Queued  bool
	Subject string
}

// NewRecallWebhookService creates a new RecallWebhookService
func NewRecallWebhookService(
	messageSender domain.WebhookEventSender,
	webhookValidator domain.WebhookValidator,
	m *metrics.Metrics,
) *RecallWebhookService {
	return &RecallWebhookService{
		messageSender:    messageSender,
		webhookValidator: webhookValidator,
		metrics:          m,
	}
}

// ServiceReady checks if the service is ready to process requests
func (s *RecallWebhookService) ServiceReady() bool {
	return s.messageSender != nil && s.webhookValidator != nil
}

// ProcessWebhook verifies and decodes a raw webhook body and publishes known events for
// asynchronous processing. Unknown events are accepted and dropped.
func (s *RecallWebhookService) ProcessWebhook(ctx context.Context, rawBody []byte, signature string) (*RecallWebhookResult, error) {
	logger := logging.Component("recall_webhook_service")

	if s.webhookValidator.Enabled() {
		if err := s.webhookValidator.ValidateSignature(rawBody, signature); err != nil {
			logger.WarnContext(ctx, "rejecting webhook with bad signature", logging.ErrKey, err)
			s.metrics.WebhookEvent("unknown", "rejected")
			return nil, domain.NewValidationError("invalid webhook signature", ErrInvalidWebhookSignature, err)
		}
	}

	var req models.RecallWebhookRequest
	if err := json.Unmarshal(rawBody, &req); err != nil {
		return nil, domain.NewValidationError("invalid webhook body", err)
	}
	if req.Event == "" {
		return nil, domain.NewValidationError("missing event field")
	}
	botID := req.BotID()
	if botID == "" {
		return nil, domain.NewValidationError("missing data.bot_id field")
	}

	result := &RecallWebhookResult{Event: req.Event, BotID: botID}

	if !models.IsKnownRecallEvent(req.Event) {
		logger.InfoContext(ctx, "ignoring unsupported webhook event", "event", req.Event, "bot_id", botID)
		s.metrics.WebhookEvent(req.Event, metrics.OutcomeIgnored)
		return result, nil
	}

	subject := models.RecallWebhookSubject(req.Event)
	message := models.RecallWebhookEventMessage{
		Event:      req.Event,
		BotID:      botID,
		ReceivedAt: utcNow(s.clock).Unix(),
		Data:       req.Data,
	}

	if err := s.messageSender.PublishRecallWebhookEvent(ctx, subject, message); err != nil {
		logger.ErrorContext(ctx, "failed to publish webhook event to NATS",
			logging.ErrKey, err, "event", req.Event, "subject", subject)
		s.metrics.WebhookEvent(req.Event, metrics.OutcomeError)
		return nil, domain.NewUnavailableError(fmt.Sprintf("failed to queue %s event", req.Event), err)
	}

	logger.InfoContext(ctx, "webhook event queued", "event", req.Event, "bot_id", botID, "subject", subject)
	result.Queued = true
	result.Subject = subject
	return result, nil
}
