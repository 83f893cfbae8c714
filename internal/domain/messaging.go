// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package domain

import (
	"context"

	"github.com/linuxfoundation/lfx-v2-meeting-recorder/internal/domain/models"
)

// Message represents a domain message interface
type Message interface {
	Subject() string
	Data() []byte
	Respond(data []byte) error
	HasReply() bool
}

// MessageHandler defines how the service handles incoming messages
type MessageHandler interface {
	HandleMessage(ctx context.Context, msg Message)
	HandlerReady() bool
}

// WebhookEventSender handles webhook event publishing.
type WebhookEventSender interface {
	PublishRecallWebhookEvent(ctx context.Context, subject string, message models.RecallWebhookEventMessage) error
}

// WebhookEventDecoder turns a bus message back into a webhook event.
type WebhookEventDecoder interface {
	DecodeRecallWebhookEvent(data []byte) (*models.RecallWebhookEventMessage, error)
}
