// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package models

// Recall webhook event names.
const (
	RecallEventBotStatusChange = "bot.status_change"
	RecallEventTranscriptReady = "transcript.ready"
	RecallEventRecordingReady  = "recording.ready"
	RecallEventBotError        = "bot.error"
)

// IsKnownRecallEvent reports whether event is one the recorder processes.
func IsKnownRecallEvent(event string) bool {
	switch event {
	case RecallEventBotStatusChange, RecallEventTranscriptReady, RecallEventRecordingReady, RecallEventBotError:
		return true
	}
	return false
}

// RecallWebhookRequest is the inbound webhook body.
type RecallWebhookRequest struct {
	Event string         `json:"event"`
	Data  map[string]any `json:"data"`
}

// BotID returns data.bot_id when it is a non-empty string.
func (r *RecallWebhookRequest) BotID() string {
	if r == nil || r.Data == nil {
		return ""
	}
	id, _ := r.Data["bot_id"].(string)
	return id
}

// RecallBotStatus is the structured status object some Recall events carry.
type RecallBotStatus struct {
	Code      string `mapstructure:"code"`
	SubCode   string `mapstructure:"sub_code"`
	Message   string `mapstructure:"message"`
	CreatedAt string `mapstructure:"created_at"`
}

// RecallBotStatusChangePayload is the data of a bot.status_change event. Status is either
// a plain string or a RecallBotStatus object depending on the webhook version.
type RecallBotStatusChangePayload struct {
	BotID  string `mapstructure:"bot_id"`
	Status any    `mapstructure:"status"`
}

// RecallTranscriptReadyPayload is the data of a transcript.ready event.
type RecallTranscriptReadyPayload struct {
	BotID string `mapstructure:"bot_id"`
}

// RecallRecordingReadyPayload is the data of a recording.ready event.
type RecallRecordingReadyPayload struct {
	BotID        string `mapstructure:"bot_id"`
	RecordingURL string `mapstructure:"recording_url"`
}

// RecallBotErrorPayload is the data of a bot.error event.
type RecallBotErrorPayload struct {
	BotID   string `mapstructure:"bot_id"`
	Message string `mapstructure:"message"`
	Error   string `mapstructure:"error"`
}

// ErrorMessage returns the most specific error text of the event.
func (p *RecallBotErrorPayload) ErrorMessage() string {
	if p.Message != "" {
		return p.Message
	}
	if p.Error != "" {
		return p.Error
	}
	return "bot error"
}
