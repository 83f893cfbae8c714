// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package models

import "math"

// Bot is a recording bot as reported by the recording provider.
type Bot struct {
	ID          string `json:"id"`
	Status      string `json:"status"`
	MeetingURL  string `json:"meeting_url"`
	BotName     string `json:"bot_name"`
	RecordingID string `json:"recording_id,omitempty"`
}

// BotConfig controls how the provider's bot joins and records a meeting.
type BotConfig struct {
	BotName                string `json:"bot_name"`
	RecordingMode          string `json:"recording_mode"`
	TranscriptionProvider  string `json:"transcription_provider"`
	WebhookURL             string `json:"webhook_url,omitempty"`
	WaitingRoomTimeoutSecs int    `json:"waiting_room_timeout"`
	NoOneJoinedTimeoutSecs int    `json:"noone_joined_timeout"`
}

// Default bot configuration values.
const (
	DefaultBotName                = "SyncNotesAI"
	DefaultRecordingMode          = "speaker_view"
	DefaultTranscriptionProvider  = "whisper"
	DefaultWaitingRoomTimeoutSecs = 600
	DefaultNoOneJoinedTimeoutSecs = 300
)

// DefaultBotConfig returns the bot configuration used for every meeting unless overridden.
func DefaultBotConfig(webhookURL string) BotConfig {
	return BotConfig{
		BotName:                DefaultBotName,
		RecordingMode:          DefaultRecordingMode,
		TranscriptionProvider:  DefaultTranscriptionProvider,
		WebhookURL:             webhookURL,
		WaitingRoomTimeoutSecs: DefaultWaitingRoomTimeoutSecs,
		NoOneJoinedTimeoutSecs: DefaultNoOneJoinedTimeoutSecs,
	}
}

// TranscriptWord is one timed word of a raw transcript. Times are seconds from the
// start of the recording.
type TranscriptWord struct {
	Text      string  `json:"text"`
	Speaker   string  `json:"speaker"`
	StartTime float64 `json:"start_time"`
	EndTime   float64 `json:"end_time"`
}

// RecordingDetails are the media locations of a finished recording.
type RecordingDetails struct {
	AudioURL string `json:"audio_url,omitempty"`
	VideoURL string `json:"video_url,omitempty"`
}

// MediaURL prefers the video over the audio location.
func (d *RecordingDetails) MediaURL() string {
	if d == nil {
		return ""
	}
	if d.VideoURL != "" {
		return d.VideoURL
	}
	return d.AudioURL
}

// CalculateDuration returns the spoken length of a transcript in whole minutes, rounded up.
// An empty transcript has a duration of zero.
func CalculateDuration(words []TranscriptWord) int {
	if len(words) == 0 {
		return 0
	}
	start := words[0].StartTime
	end := words[len(words)-1].EndTime
	if end <= start {
		return 0
	}
	return int(math.Ceil((end - start) / 60))
}
