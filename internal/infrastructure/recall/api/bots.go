// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
)

// StartBotRequest is the body of POST /bot/start/.
type StartBotRequest struct {
	MeetingURL            string                 `json:"meeting_url"`
	BotName               string                 `json:"bot_name"`
	RecordingMode         string                 `json:"recording_mode,omitempty"`
	TranscriptionOptions  *TranscriptionOptions  `json:"transcription_options,omitempty"`
	RealTimeTranscription *RealTimeTranscription `json:"real_time_transcription,omitempty"`
	AutomaticLeave        *AutomaticLeave        `json:"automatic_leave,omitempty"`
	WebhookURL            string                 `json:"webhook_url,omitempty"`
}

// TranscriptionOptions selects the transcription backend
type TranscriptionOptions struct {
	Provider string `json:"provider"`
}

// RealTimeTranscription is sent empty; streaming delivery is not used.
type RealTimeTranscription struct {
	DestinationURL string `json:"destination_url,omitempty"`
}

// AutomaticLeave controls when the bot gives up on a meeting, in seconds
type AutomaticLeave struct {
	WaitingRoomTimeout int `json:"waiting_room_timeout,omitempty"`
	NoOneJoinedTimeout int `json:"noone_joined_timeout,omitempty"`
}

// StatusChange is one entry of a bot's status history
type StatusChange struct {
	Code      string `json:"code"`
	Message   string `json:"message,omitempty"`
	CreatedAt string `json:"created_at,omitempty"`
}

// RecordingRef points at the recording a bot produced
type RecordingRef struct {
	ID     string `json:"id"`
	Status string `json:"status,omitempty"`
}

// BotResponse is the bot object returned by the bot endpoints
type BotResponse struct {
	ID            string         `json:"id"`
	MeetingURL    any            `json:"meeting_url,omitempty"`
	BotName       string         `json:"bot_name"`
	Status        string         `json:"status,omitempty"`
	StatusChanges []StatusChange `json:"status_changes,omitempty"`
	Recording     *RecordingRef  `json:"recording,omitempty"`
}

// CurrentStatus is the explicit status when present, else the latest status change code.
func (b *BotResponse) CurrentStatus() string {
	if b.Status != "" {
		return b.Status
	}
	if n := len(b.StatusChanges); n > 0 {
		return b.StatusChanges[n-1].Code
	}
	return ""
}

// RecordingID is the id of the bot's recording, or empty.
func (b *BotResponse) RecordingID() string {
	if b.Recording == nil {
		return ""
	}
	return b.Recording.ID
}

// TranscriptWord is one timed, speaker-attributed word. Times are seconds.
type TranscriptWord struct {
	Text      string  `json:"text"`
	Speaker   string  `json:"speaker"`
	StartTime float64 `json:"start_time"`
	EndTime   float64 `json:"end_time"`
}

// TranscriptResponse is the body of GET /bot/{id}/transcript/
type TranscriptResponse struct {
	Words []TranscriptWord `json:"words"`
}

// RecordingResponse holds the media locations of a recording
type RecordingResponse struct {
	ID       string `json:"id"`
	Status   string `json:"status,omitempty"`
	VideoURL string `json:"video_url,omitempty"`
	AudioURL string `json:"audio_url,omitempty"`
}

// StartBot sends a bot into a meeting
func (c *Client) StartBot(ctx context.Context, request *StartBotRequest) (*BotResponse, error) {
	resp, err := c.doRequest(ctx, http.MethodPost, "/bot/start/", request)
	if err != nil {
		return nil, fmt.Errorf("failed to start bot: %w", err)
	}

	var bot BotResponse
	if err := decodeResponse(resp, &bot); err != nil {
		return nil, err
	}
	if bot.ID == "" {
		return nil, fmt.Errorf("recall API returned a bot without an id")
	}
	return &bot, nil
}

// GetBot fetches a bot with its status and recording reference
func (c *Client) GetBot(ctx context.Context, botID string) (*BotResponse, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, botPath(botID, ""), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get bot: %w", err)
	}

	var bot BotResponse
	if err := decodeResponse(resp, &bot); err != nil {
		return nil, err
	}
	return &bot, nil
}

// LeaveCall asks the bot to leave its meeting
func (c *Client) LeaveCall(ctx context.Context, botID string) error {
	resp, err := c.doRequest(ctx, http.MethodPost, botPath(botID, "leave_call/"), nil)
	if err != nil {
		return fmt.Errorf("failed to stop bot: %w", err)
	}
	return decodeResponse(resp, nil)
}

// DeleteBot removes the bot
func (c *Client) DeleteBot(ctx context.Context, botID string) error {
	resp, err := c.doRequest(ctx, http.MethodDelete, botPath(botID, ""), nil)
	if err != nil {
		return fmt.Errorf("failed to delete bot: %w", err)
	}
	return decodeResponse(resp, nil)
}

// GetTranscript fetches the words of a bot's transcript
func (c *Client) GetTranscript(ctx context.Context, botID string) (*TranscriptResponse, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, botPath(botID, "transcript/"), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get transcript: %w", err)
	}

	var transcript TranscriptResponse
	if err := decodeResponse(resp, &transcript); err != nil {
		return nil, err
	}
	return &transcript, nil
}

// GetRecording fetches a recording's media locations
func (c *Client) GetRecording(ctx context.Context, recordingID string) (*RecordingResponse, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, "/recording/"+url.PathEscape(recordingID)+"/", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get recording: %w", err)
	}

	var recording RecordingResponse
	if err := decodeResponse(resp, &recording); err != nil {
		return nil, err
	}
	return &recording, nil
}

// DeleteRecording removes a recording's media
func (c *Client) DeleteRecording(ctx context.Context, recordingID string) error {
	resp, err := c.doRequest(ctx, http.MethodDelete, "/recording/"+url.PathEscape(recordingID)+"/", nil)
	if err != nil {
		return fmt.Errorf("failed to delete recording: %w", err)
	}
	return decodeResponse(resp, nil)
}

func botPath(botID, suffix string) string {
	return "/bot/" + url.PathEscape(botID) + "/" + suffix
}
