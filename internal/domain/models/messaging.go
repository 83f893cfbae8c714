// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package models

// NATS wildcard subjects that the recorder handles messages about.
const (
	// RecorderQueue is the queue group shared by all recorder instances.
	// The subject is of the form: lfx.recorder.queue
	RecorderQueue = "lfx.recorder.queue"

	// RecallWebhookSubjectPrefix prefixes every Recall webhook event subject.
	RecallWebhookSubjectPrefix = "lfx.recorder.webhook.recall."

	// RecallWebhookWildcardSubject subscribes to every Recall webhook event.
	// The subject is of the form: lfx.recorder.webhook.recall.>
	RecallWebhookWildcardSubject = RecallWebhookSubjectPrefix + ">"
)

// Recall webhook event subjects, mirroring the provider's event names.
const (
	RecallWebhookBotStatusChangeSubject = RecallWebhookSubjectPrefix + RecallEventBotStatusChange
	RecallWebhookTranscriptReadySubject = RecallWebhookSubjectPrefix + RecallEventTranscriptReady
	RecallWebhookRecordingReadySubject  = RecallWebhookSubjectPrefix + RecallEventRecordingReady
	RecallWebhookBotErrorSubject        = RecallWebhookSubjectPrefix + RecallEventBotError
)

// RecallWebhookSubject returns the NATS subject used for a Recall event name.
func RecallWebhookSubject(event string) string {
	return RecallWebhookSubjectPrefix + event
}

// RecallWebhookEventMessage is the schema for Recall webhook events sent via NATS for
// async processing. It is msgpack-encoded on the wire.
type RecallWebhookEventMessage struct {
	Event      string         `msgpack:"event" json:"event"`
	BotID      string         `msgpack:"bot_id" json:"bot_id"`
	ReceivedAt int64          `msgpack:"received_at" json:"received_at"`
	Data       map[string]any `msgpack:"data" json:"data"`
}
