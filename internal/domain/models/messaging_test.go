// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package models

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"
)

func TestMessagingSubjects(t *testing.T) {
	tests := []struct {
		name     string
		subject  string
		expected string
	}{
		{
			name:     "RecorderQueue",
			subject:  RecorderQueue,
			expected: "lfx.recorder.queue",
		},
		{
			name:     "RecallWebhookWildcardSubject",
			subject:  RecallWebhookWildcardSubject,
			expected: "lfx.recorder.webhook.recall.>",
		},
		{
			name:     "RecallWebhookBotStatusChangeSubject",
			subject:  RecallWebhookBotStatusChangeSubject,
			expected: "lfx.recorder.webhook.recall.bot.status_change",
		},
		{
			name:     "RecallWebhookTranscriptReadySubject",
			subject:  RecallWebhookTranscriptReadySubject,
			expected: "lfx.recorder.webhook.recall.transcript.ready",
		},
		{
			name:     "RecallWebhookRecordingReadySubject",
			subject:  RecallWebhookRecordingReadySubject,
			expected: "lfx.recorder.webhook.recall.recording.ready",
		},
		{
			name:     "RecallWebhookBotErrorSubject",
			subject:  RecallWebhookBotErrorSubject,
			expected: "lfx.recorder.webhook.recall.bot.error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.subject)
		})
	}
}

func TestRecallWebhookSubject_MatchesWildcard(t *testing.T) {
	prefix := strings.TrimSuffix(RecallWebhookWildcardSubject, ">")
	for _, event := range []string{
		RecallEventBotStatusChange,
		RecallEventTranscriptReady,
		RecallEventRecordingReady,
		RecallEventBotError,
	} {
		assert.True(t, strings.HasPrefix(RecallWebhookSubject(event), prefix), event)
	}
}

func TestRecallWebhookEventMessage_Msgpack(t *testing.T) {
	message := RecallWebhookEventMessage{
		Event:      RecallEventRecordingReady,
		BotID:      "bot-1",
		ReceivedAt: 1767225600,
		Data: map[string]any{
			"bot_id":        "bot-1",
			"recording_url": "https://media.example.com/bot-1.mp4",
		},
	}

	data, err := msgpack.Marshal(message)
	require.NoError(t, err)

	var decoded RecallWebhookEventMessage
	require.NoError(t, msgpack.Unmarshal(data, &decoded))
	assert.Equal(t, message.Event, decoded.Event)
	assert.Equal(t, message.BotID, decoded.BotID)
	assert.Equal(t, message.ReceivedAt, decoded.ReceivedAt)
	assert.Equal(t, "https://media.example.com/bot-1.mp4", decoded.Data["recording_url"])
}

func TestIsKnownRecallEvent(t *testing.T) {
	assert.True(t, IsKnownRecallEvent("bot.status_change"))
	assert.True(t, IsKnownRecallEvent("bot.error"))
	assert.False(t, IsKnownRecallEvent("bot.joining_call"))
	assert.False(t, IsKnownRecallEvent(""))
}

func TestRecallWebhookRequest_BotID(t *testing.T) {
	tests := []struct {
		name     string
		req      *RecallWebhookRequest
		expected string
	}{
		{name: "nil request", req: nil, expected: ""},
		{name: "no data", req: &RecallWebhookRequest{Event: RecallEventBotError}, expected: ""},
		{name: "numeric id", req: &RecallWebhookRequest{Data: map[string]any{"bot_id": 42}}, expected: ""},
		{name: "string id", req: &RecallWebhookRequest{Data: map[string]any{"bot_id": "bot-1"}}, expected: "bot-1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.req.BotID())
		})
	}
}

func TestRecallBotErrorPayload_ErrorMessage(t *testing.T) {
	assert.Equal(t, "kicked", (&RecallBotErrorPayload{Message: "kicked", Error: "other"}).ErrorMessage())
	assert.Equal(t, "other", (&RecallBotErrorPayload{Error: "other"}).ErrorMessage())
	assert.Equal(t, "bot error", (&RecallBotErrorPayload{}).ErrorMessage())
}
