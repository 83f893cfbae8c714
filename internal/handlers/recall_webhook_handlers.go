// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/linuxfoundation/lfx-v2-meeting-recorder/internal/domain"
	"github.com/linuxfoundation/lfx-v2-meeting-recorder/internal/domain/models"
	"github.com/linuxfoundation/lfx-v2-meeting-recorder/internal/infrastructure/messaging"
	"github.com/linuxfoundation/lfx-v2-meeting-recorder/internal/logging"
	"github.com/linuxfoundation/lfx-v2-meeting-recorder/internal/metrics"
)

// RecallEventApplier applies provider events to meetings. MeetingLifecycleService
// implements it.
type RecallEventApplier interface {
	ApplyBotStatusChanged(ctx context.Context, botID, providerStatus string) error
	ApplyTranscriptReady(ctx context.Context, botID string) error
	ApplyRecordingReady(ctx context.Context, botID string) error
	ApplyBotError(ctx context.Context, botID, message string) error
	ServiceReady() bool
}

// RecallWebhookHandler consumes queued Recall webhook events from NATS.
type RecallWebhookHandler struct {
	lifecycle RecallEventApplier
	decoder   domain.WebhookEventDecoder
	metrics   *metrics.Metrics
}

// NewRecallWebhookHandler creates a new RecallWebhookHandler.
func NewRecallWebhookHandler(
	lifecycle RecallEventApplier,
	decoder domain.WebhookEventDecoder,
	m *metrics.Metrics,
) *RecallWebhookHandler {
	return &RecallWebhookHandler{
		lifecycle: lifecycle,
		decoder:   decoder,
		metrics:   m,
	}
}

// HandlerReady implements [domain.MessageHandler].
func (h *RecallWebhookHandler) HandlerReady() bool {
	return h.lifecycle != nil && h.decoder != nil && h.lifecycle.ServiceReady()
}

type recallEventFunc func(ctx context.Context, event *models.RecallWebhookEventMessage) error

// HandleMessage implements [domain.MessageHandler]. Failures are logged and never
// surface to the publisher.
func (h *RecallWebhookHandler) HandleMessage(ctx context.Context, msg domain.Message) {
	subject := msg.Subject()
	ctx = logging.AppendCtx(ctx, slog.String("subject", subject))
	slog.DebugContext(ctx, "handling NATS message")

	handlers := map[string]recallEventFunc{
		models.RecallWebhookBotStatusChangeSubject: h.handleBotStatusChange,
		models.RecallWebhookTranscriptReadySubject: h.handleTranscriptReady,
		models.RecallWebhookRecordingReadySubject:  h.handleRecordingReady,
		models.RecallWebhookBotErrorSubject:        h.handleBotError,
	}

	handler, ok := handlers[subject]
	if !ok {
		slog.WarnContext(ctx, "unknown subject")
		h.respond(ctx, msg)
		return
	}

	event, err := h.decoder.DecodeRecallWebhookEvent(msg.Data())
	if err != nil {
		slog.ErrorContext(ctx, "failed to decode webhook event", logging.ErrKey, err)
		h.metrics.WebhookEvent(subject, metrics.OutcomeError)
		h.respond(ctx, msg)
		return
	}

	ctx = logging.AppendCtx(ctx, slog.String("event", event.Event))
	ctx = logging.AppendCtx(ctx, slog.String("bot_id", event.BotID))

	if err := handler(ctx, event); err != nil {
		slog.ErrorContext(ctx, "error handling webhook event", logging.ErrKey, err)
		h.metrics.WebhookEvent(event.Event, metrics.OutcomeError)
	} else {
		slog.InfoContext(ctx, "processed webhook event")
		h.metrics.WebhookEvent(event.Event, metrics.OutcomeSuccess)
	}
	h.respond(ctx, msg)
}

func (h *RecallWebhookHandler) respond(ctx context.Context, msg domain.Message) {
	if !msg.HasReply() {
		return
	}
	if err := msg.Respond(nil); err != nil {
		slog.ErrorContext(ctx, "error responding to NATS message", logging.ErrKey, err)
	}
}

// botID prefers the id inside the payload and falls back to the envelope.
func botID(event *models.RecallWebhookEventMessage, payloadBotID string) (string, error) {
	if payloadBotID != "" {
		return payloadBotID, nil
	}
	if event.BotID != "" {
		return event.BotID, nil
	}
	return "", errors.New("webhook event has no bot id")
}

func (h *RecallWebhookHandler) handleBotStatusChange(ctx context.Context, event *models.RecallWebhookEventMessage) error {
	var payload models.RecallBotStatusChangePayload
	if err := messaging.DecodePayload(event.Data, &payload); err != nil {
		return err
	}
	id, err := botID(event, payload.BotID)
	if err != nil {
		return err
	}

	code, err := statusCode(payload.Status)
	if err != nil {
		return err
	}
	return h.lifecycle.ApplyBotStatusChanged(ctx, id, code)
}

// statusCode reads the status of a bot.status_change event, which is either a bare
// code or an object carrying one.
func statusCode(status any) (string, error) {
	switch v := status.(type) {
	case string:
		return v, nil
	case map[string]any:
		var parsed models.RecallBotStatus
		if err := messaging.DecodePayload(v, &parsed); err != nil {
			return "", err
		}
		return parsed.Code, nil
	case nil:
		return "", errors.New("bot status change without a status")
	default:
		return "", fmt.Errorf("unsupported bot status of type %T", status)
	}
}

func (h *RecallWebhookHandler) handleTranscriptReady(ctx context.Context, event *models.RecallWebhookEventMessage) error {
	var payload models.RecallTranscriptReadyPayload
	if err := messaging.DecodePayload(event.Data, &payload); err != nil {
		return err
	}
	id, err := botID(event, payload.BotID)
	if err != nil {
		return err
	}
	return h.lifecycle.ApplyTranscriptReady(ctx, id)
}

func (h *RecallWebhookHandler) handleRecordingReady(ctx context.Context, event *models.RecallWebhookEventMessage) error {
	var payload models.RecallRecordingReadyPayload
	if err := messaging.DecodePayload(event.Data, &payload); err != nil {
		return err
	}
	id, err := botID(event, payload.BotID)
	if err != nil {
		return err
	}
	return h.lifecycle.ApplyRecordingReady(ctx, id)
}

func (h *RecallWebhookHandler) handleBotError(ctx context.Context, event *models.RecallWebhookEventMessage) error {
	var payload models.RecallBotErrorPayload
	if err := messaging.DecodePayload(event.Data, &payload); err != nil {
		return err
	}
	id, err := botID(event, payload.BotID)
	if err != nil {
		return err
	}
	return h.lifecycle.ApplyBotError(ctx, id, payload.ErrorMessage())
}
