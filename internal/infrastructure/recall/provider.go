// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

// Package recall adapts the Recall.ai bot API to the recorder's RecordingProvider.
package recall

import (
	"context"
	"log/slog"
	"strings"

	"github.com/linuxfoundation/lfx-v2-meeting-recorder/internal/domain"
	"github.com/linuxfoundation/lfx-v2-meeting-recorder/internal/domain/models"
	"github.com/linuxfoundation/lfx-v2-meeting-recorder/internal/infrastructure/recall/api"
	"github.com/linuxfoundation/lfx-v2-meeting-recorder/internal/logging"
	"github.com/linuxfoundation/lfx-v2-meeting-recorder/pkg/constants"
)

// Provider implements domain.RecordingProvider on top of the Recall.ai API.
type Provider struct {
	client api.ClientAPI
}

var _ domain.RecordingProvider = (*Provider)(nil)

// NewProvider creates a recording provider backed by client.
func NewProvider(client api.ClientAPI) *Provider {
	return &Provider{client: client}
}

// StartBot sends a bot into the meeting at meetingURL.
func (p *Provider) StartBot(ctx context.Context, meetingURL string, config models.BotConfig) (*models.Bot, error) {
	request := &api.StartBotRequest{
		MeetingURL:            meetingURL,
		BotName:               config.BotName,
		RecordingMode:         config.RecordingMode,
		RealTimeTranscription: &api.RealTimeTranscription{},
		WebhookURL:            config.WebhookURL,
	}
	if config.TranscriptionProvider != "" {
		request.TranscriptionOptions = &api.TranscriptionOptions{Provider: config.TranscriptionProvider}
	}
	if config.WaitingRoomTimeoutSecs > 0 || config.NoOneJoinedTimeoutSecs > 0 {
		request.AutomaticLeave = &api.AutomaticLeave{
			WaitingRoomTimeout: config.WaitingRoomTimeoutSecs,
			NoOneJoinedTimeout: config.NoOneJoinedTimeoutSecs,
		}
	}

	resp, err := p.client.StartBot(ctx, request)
	if err != nil {
		slog.ErrorContext(ctx, "failed to start recall bot", "meeting_url", meetingURL, logging.ErrKey, err)
		return nil, unavailable(err)
	}

	slog.InfoContext(ctx, "recall bot started", "bot_id", resp.ID)
	return toBot(resp, meetingURL), nil
}

// StopBot makes the bot leave its meeting.
func (p *Provider) StopBot(ctx context.Context, botID string) error {
	if err := p.client.LeaveCall(ctx, botID); err != nil {
		return unavailable(err)
	}
	slog.InfoContext(ctx, "recall bot asked to leave call", "bot_id", botID)
	return nil
}

// GetBotStatus returns the provider status code of the bot.
func (p *Provider) GetBotStatus(ctx context.Context, botID string) (string, error) {
	bot, err := p.client.GetBot(ctx, botID)
	if err != nil {
		return "", unavailable(err)
	}
	return bot.CurrentStatus(), nil
}

// GetTranscript returns the timed words of the bot's transcript.
func (p *Provider) GetTranscript(ctx context.Context, botID string) ([]models.TranscriptWord, error) {
	transcript, err := p.client.GetTranscript(ctx, botID)
	if err != nil {
		return nil, unavailable(err)
	}

	words := make([]models.TranscriptWord, 0, len(transcript.Words))
	for _, w := range transcript.Words {
		words = append(words, models.TranscriptWord{
			Text:      w.Text,
			Speaker:   w.Speaker,
			StartTime: w.StartTime,
			EndTime:   w.EndTime,
		})
	}
	return words, nil
}

// GetFormattedTranscript renders the transcript as one "Speaker: text" paragraph per
// run of consecutive words by the same speaker.
func (p *Provider) GetFormattedTranscript(ctx context.Context, botID string) (string, error) {
	words, err := p.GetTranscript(ctx, botID)
	if err != nil {
		return "", err
	}
	return FormatTranscript(words), nil
}

// FormatTranscript groups consecutive words by speaker.
func FormatTranscript(words []models.TranscriptWord) string {
	var (
		out     strings.Builder
		speaker string
		current []string
	)

	flush := func() {
		if len(current) == 0 {
			return
		}
		out.WriteString(speaker)
		out.WriteString(": ")
		out.WriteString(strings.TrimSpace(strings.Join(current, " ")))
		out.WriteString("\n\n")
		current = current[:0]
	}

	for _, w := range words {
		if w.Speaker != speaker {
			flush()
			speaker = w.Speaker
		}
		current = append(current, w.Text)
	}
	flush()

	return out.String()
}

// GetRecordingDetails resolves the bot's recording and returns its media locations.
// A bot without a recording yields empty details.
func (p *Provider) GetRecordingDetails(ctx context.Context, botID string) (*models.RecordingDetails, error) {
	bot, err := p.client.GetBot(ctx, botID)
	if err != nil {
		return nil, unavailable(err)
	}

	recordingID := bot.RecordingID()
	if recordingID == "" {
		slog.WarnContext(ctx, "no recording found for bot", "bot_id", botID)
		return &models.RecordingDetails{}, nil
	}

	recording, err := p.client.GetRecording(ctx, recordingID)
	if err != nil {
		return nil, unavailable(err)
	}

	return &models.RecordingDetails{
		AudioURL: recording.AudioURL,
		VideoURL: recording.VideoURL,
	}, nil
}

// DeleteRecording removes the media of the bot's recording. It reports false when the
// bot has no recording.
func (p *Provider) DeleteRecording(ctx context.Context, botID string) (bool, error) {
	bot, err := p.client.GetBot(ctx, botID)
	if err != nil {
		return false, unavailable(err)
	}

	recordingID := bot.RecordingID()
	if recordingID == "" {
		return false, nil
	}

	if err := p.client.DeleteRecording(ctx, recordingID); err != nil {
		if api.IsNotFound(err) {
			return false, nil
		}
		return false, unavailable(err)
	}

	slog.InfoContext(ctx, "recall recording deleted", "bot_id", botID, "recording_id", recordingID)
	return true, nil
}

// DeleteBot removes the bot. A bot the provider no longer knows is already gone.
func (p *Provider) DeleteBot(ctx context.Context, botID string) error {
	if err := p.client.DeleteBot(ctx, botID); err != nil {
		if api.IsNotFound(err) {
			return nil
		}
		return unavailable(err)
	}
	return nil
}

func toBot(resp *api.BotResponse, meetingURL string) *models.Bot {
	return &models.Bot{
		ID:          resp.ID,
		Status:      resp.CurrentStatus(),
		MeetingURL:  meetingURL,
		BotName:     resp.BotName,
		RecordingID: resp.RecordingID(),
	}
}

func unavailable(err error) error {
	return domain.NewProviderUnavailableError(constants.RecallProviderName, err)
}
