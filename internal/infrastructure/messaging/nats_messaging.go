// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

// Package messaging moves recording provider webhook events over NATS.
package messaging

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/go-viper/mapstructure/v2"
	"github.com/linuxfoundation/lfx-v2-meeting-recorder/internal/domain/models"
	"github.com/linuxfoundation/lfx-v2-meeting-recorder/internal/logging"
	"github.com/vmihailenco/msgpack/v5"
)

// ErrNotConnected is returned when publishing without a live NATS connection.
var ErrNotConnected = errors.New("nats connection is not available")

// INatsConn is the subset of *nats.Conn the message builder needs.
type INatsConn interface {
	IsConnected() bool
	Publish(subj string, data []byte) error
}

// MessageBuilder encodes webhook events and sends them to the NATS server.
type MessageBuilder struct {
	NatsConn INatsConn
}

// NewMessageBuilder creates a new MessageBuilder.
func NewMessageBuilder(natsConn INatsConn) *MessageBuilder {
	return &MessageBuilder{
		NatsConn: natsConn,
	}
}

// publish sends the message to the NATS server.
func (m *MessageBuilder) publish(ctx context.Context, subject string, data []byte) error {
	if m.NatsConn == nil || !m.NatsConn.IsConnected() {
		slog.ErrorContext(ctx, "cannot publish, NATS is disconnected", "subject", subject)
		return ErrNotConnected
	}

	if err := m.NatsConn.Publish(subject, data); err != nil {
		slog.ErrorContext(ctx, "error sending message to NATS", logging.ErrKey, err, "subject", subject)
		return err
	}
	slog.DebugContext(ctx, "sent message to NATS", "subject", subject)
	return nil
}

// PublishRecallWebhookEvent publishes a Recall webhook event to NATS for async processing.
func (m *MessageBuilder) PublishRecallWebhookEvent(ctx context.Context, subject string, message models.RecallWebhookEventMessage) error {
	messageBytes, err := msgpack.Marshal(&message)
	if err != nil {
		slog.ErrorContext(ctx, "error encoding Recall webhook event", logging.ErrKey, err, "subject", subject)
		return err
	}

	slog.DebugContext(ctx, "publishing Recall webhook event to NATS",
		"subject", subject,
		"event", message.Event,
		"bot_id", message.BotID,
	)

	return m.publish(ctx, subject, messageBytes)
}

// DecodeRecallWebhookEvent decodes a message published by PublishRecallWebhookEvent.
func (m *MessageBuilder) DecodeRecallWebhookEvent(data []byte) (*models.RecallWebhookEventMessage, error) {
	var message models.RecallWebhookEventMessage
	if err := msgpack.Unmarshal(data, &message); err != nil {
		return nil, fmt.Errorf("decode recall webhook event: %w", err)
	}
	return &message, nil
}

// DecodePayload decodes the loosely typed data map of a webhook event into out,
// a pointer to one of the Recall payload structs.
func DecodePayload(data map[string]any, out any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "mapstructure",
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return fmt.Errorf("create payload decoder: %w", err)
	}
	if err := decoder.Decode(data); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}
	return nil
}
