// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/linuxfoundation/lfx-v2-meeting-recorder/internal/domain"
	"github.com/linuxfoundation/lfx-v2-meeting-recorder/internal/domain/models"
	"github.com/linuxfoundation/lfx-v2-meeting-recorder/internal/logging"
)

// MapProviderStatus translates a recording provider status code into a meeting status.
// Codes that are already meeting statuses map to themselves.
func MapProviderStatus(code string) (models.MeetingStatus, bool) {
	if status := models.MeetingStatus(code); status.IsValid() {
		return status, true
	}
	switch code {
	case "in_call_recording":
		return models.MeetingStatusRecording, true
	case "call_ended", "recording_done", "done":
		return models.MeetingStatusProcessing, true
	case "fatal":
		return models.MeetingStatusFailed, true
	}
	return "", false
}

// statusRank orders the lifecycle. All terminal states share the highest rank.
func statusRank(status models.MeetingStatus) int {
	switch status {
	case models.MeetingStatusScheduled:
		return 0
	case models.MeetingStatusRecording:
		return 1
	case models.MeetingStatusProcessing:
		return 2
	case models.MeetingStatusProcessed:
		return 3
	default:
		return 4
	}
}

// canTransition reports whether a meeting may move from one state to another.
// Terminal states are final and the lifecycle only moves forward.
func canTransition(from, to models.MeetingStatus) bool {
	return !from.IsTerminal() && statusRank(to) > statusRank(from)
}

// acceptsRecording reports whether a recording may still complete a meeting in
// status. A meeting whose transcript processing ended in error is completed too.
func acceptsRecording(status models.MeetingStatus) bool {
	return status == models.MeetingStatusError || canTransition(status, models.MeetingStatusCompleted)
}

// mutateMeeting applies fn to a fresh snapshot of the meeting and writes it back
// conditioned on the snapshot's revision. See mutateWithRevision.
func mutateMeeting(
	ctx context.Context,
	repo domain.MeetingRepository,
	meetingUID string,
	fn func(*models.Meeting) (bool, error),
) (*models.Meeting, bool, error) {
	return mutateWithRevision(ctx, repo.GetMeetingWithRevision, repo.UpdateMeeting, meetingUID, fn)
}

// transition moves a meeting forward to target and applies the optional field
// changes in the same conditional write. Requests canTransition rejects report false.
func (s *MeetingLifecycleService) transition(ctx context.Context, meetingUID string, target models.MeetingStatus, apply func(*models.Meeting)) (*models.Meeting, bool, error) {
	return s.transitionIf(ctx, meetingUID, target, func(from models.MeetingStatus) bool {
		return canTransition(from, target)
	}, apply)
}

func (s *MeetingLifecycleService) transitionIf(ctx context.Context, meetingUID string, target models.MeetingStatus, allowed func(models.MeetingStatus) bool, apply func(*models.Meeting)) (*models.Meeting, bool, error) {
	meeting, changed, err := mutateMeeting(ctx, s.MeetingRepository, meetingUID, func(m *models.Meeting) (bool, error) {
		if !allowed(m.Status) {
			slog.DebugContext(ctx, "ignoring transition",
				"meeting_uid", m.UID,
				"from", m.Status,
				"to", target)
			return false, nil
		}
		m.Status = target
		if apply != nil {
			apply(m)
		}
		m.UpdatedAt = s.now()
		return true, nil
	})
	if err != nil {
		return nil, false, err
	}
	if changed {
		s.Metrics.Transition(string(target))
		slog.InfoContext(ctx, "meeting status changed", "meeting_uid", meetingUID, "status", target)
	}
	return meeting, changed, nil
}

// fail moves the meeting to error with message stored, returning cause for the caller.
func (s *MeetingLifecycleService) fail(ctx context.Context, meetingUID string, message string, cause error) error {
	_, _, err := s.transition(ctx, meetingUID, models.MeetingStatusError, func(m *models.Meeting) {
		m.ErrorMessage = message
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to record meeting error", logging.ErrKey, err, "meeting_uid", meetingUID)
	}
	return cause
}

// meetingForBot resolves a webhook's bot id. A bot unknown to the recorder yields nil.
func (s *MeetingLifecycleService) meetingForBot(ctx context.Context, botID string) (*models.Meeting, error) {
	meeting, err := s.MeetingRepository.FindMeetingByBotID(ctx, botID)
	if err != nil {
		return nil, err
	}
	if meeting == nil {
		slog.WarnContext(ctx, "no meeting for bot, dropping event", "bot_id", botID)
	}
	return meeting, nil
}

// ApplyBotStatusChanged maps a provider status code onto the meeting of botID.
// Unknown codes are logged and ignored.
func (s *MeetingLifecycleService) ApplyBotStatusChanged(ctx context.Context, botID, providerStatus string) error {
	meeting, err := s.meetingForBot(ctx, botID)
	if err != nil || meeting == nil {
		return err
	}

	target, ok := MapProviderStatus(providerStatus)
	if !ok {
		slog.InfoContext(ctx, "ignoring unmapped bot status",
			"bot_id", botID,
			"provider_status", providerStatus)
		return nil
	}

	_, _, err = s.transition(ctx, meeting.UID, target, func(m *models.Meeting) {
		now := s.now()
		switch target {
		case models.MeetingStatusRecording:
			if m.StartedAt == nil {
				m.StartedAt = &now
			}
		case models.MeetingStatusProcessing, models.MeetingStatusFailed:
			if m.EndedAt == nil {
				m.EndedAt = &now
			}
		}
	})
	return err
}

// ApplyTranscriptReady stores the transcript of botID's meeting, analyzes it into a
// summary and tasks, and moves the meeting to processed. Any failure moves the meeting
// to error.
func (s *MeetingLifecycleService) ApplyTranscriptReady(ctx context.Context, botID string) error {
	meeting, err := s.meetingForBot(ctx, botID)
	if err != nil || meeting == nil {
		return err
	}

	ctx = logging.AppendCtx(ctx, slog.String("meeting_uid", meeting.UID))

	switch meeting.Status {
	case models.MeetingStatusFailed, models.MeetingStatusError:
		slog.InfoContext(ctx, "ignoring transcript for failed meeting", "status", meeting.Status)
		return nil
	}

	text, err := s.RecordingProvider.GetFormattedTranscript(ctx, botID)
	if err != nil {
		return s.fail(ctx, meeting.UID, "failed to fetch transcript: "+err.Error(), err)
	}

	created, err := s.TranscriptRepository.CreateTranscriptIfAbsent(ctx, &models.Transcript{
		MeetingUID: meeting.UID,
		Content:    text,
		CreatedAt:  s.now(),
	})
	if err != nil {
		return s.fail(ctx, meeting.UID, "failed to store transcript: "+err.Error(), err)
	}

	if created {
		if err := s.analyze(ctx, meeting.UID, text); err != nil {
			return s.fail(ctx, meeting.UID, "failed to analyze transcript: "+err.Error(), err)
		}
	} else {
		slog.InfoContext(ctx, "transcript already stored, skipping analysis")
	}

	_, _, err = s.transition(ctx, meeting.UID, models.MeetingStatusProcessed, nil)
	return err
}

// analyze runs the AI analysis and persists its summary and tasks. Task writes are
// independent of each other; a failed task is logged and skipped.
func (s *MeetingLifecycleService) analyze(ctx context.Context, meetingUID, transcript string) error {
	result, err := s.Analyzer.Analyze(ctx, transcript)
	if err != nil {
		return err
	}

	now := s.now()
	if _, err := s.SummaryRepository.CreateSummaryIfAbsent(ctx, &models.Summary{
		MeetingUID: meetingUID,
		Content:    result.Summary,
		CreatedAt:  now,
	}); err != nil {
		return err
	}

	functions := make([]func() error, 0, len(result.Tasks))
	for _, extracted := range result.Tasks {
		task := &models.Task{
			UID:         uuid.New().String(),
			MeetingUID:  meetingUID,
			Title:       extracted.Title,
			Description: extracted.Description,
			Assignee:    extracted.Assignee,
			Priority:    models.NormalizeTaskPriority(extracted.Priority),
			DueDate:     extracted.DueDate,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		functions = append(functions, func() error {
			if err := s.TaskRepository.CreateTask(ctx, task); err != nil {
				return fmt.Errorf("task %q: %w", task.Title, err)
			}
			return nil
		})
	}

	errs := s.pool().RunAll(ctx, functions...)
	for _, err := range errs {
		slog.WarnContext(ctx, "failed to store extracted task", logging.ErrKey, err)
	}

	slog.InfoContext(ctx, "transcript analyzed",
		"tasks_extracted", len(result.Tasks),
		"tasks_stored", len(result.Tasks)-len(errs))
	return nil
}

// ApplyRecordingReady stores the recording location and duration of botID's meeting,
// completes it, settles its usage and schedules its retention deletion. A meeting in
// error still receives its recording; the error message is kept.
func (s *MeetingLifecycleService) ApplyRecordingReady(ctx context.Context, botID string) error {
	meeting, err := s.meetingForBot(ctx, botID)
	if err != nil || meeting == nil {
		return err
	}

	ctx = logging.AppendCtx(ctx, slog.String("meeting_uid", meeting.UID))

	if !acceptsRecording(meeting.Status) {
		slog.InfoContext(ctx, "ignoring recording for finished meeting", "status", meeting.Status)
		return nil
	}

	details, err := s.RecordingProvider.GetRecordingDetails(ctx, botID)
	if err != nil {
		return s.fail(ctx, meeting.UID, "failed to fetch recording: "+err.Error(), err)
	}
	words, err := s.RecordingProvider.GetTranscript(ctx, botID)
	if err != nil {
		return s.fail(ctx, meeting.UID, "failed to fetch transcript timings: "+err.Error(), err)
	}
	duration := models.CalculateDuration(words)

	completed, changed, err := s.transitionIf(ctx, meeting.UID, models.MeetingStatusCompleted, acceptsRecording, func(m *models.Meeting) {
		m.RecordingURL = details.MediaURL()
		m.DurationMinutes = duration
		if m.EndedAt == nil {
			now := s.now()
			m.EndedAt = &now
		}
	})
	if err != nil {
		return err
	}
	if !changed {
		return nil
	}

	user, err := s.AccountRepository.GetUser(ctx, completed.UserID)
	if err != nil {
		slog.ErrorContext(ctx, "failed to load meeting owner, skipping settlement", logging.ErrKey, err)
		user = nil
	}

	if user != nil && !user.IsUnlimited() && s.Settlement != nil {
		if _, err := s.Settlement.Settle(ctx, user, completed.UID, duration); err != nil {
			slog.ErrorContext(ctx, "failed to settle meeting usage",
				logging.ErrKey, err, "minutes", duration, logging.PriorityCritical())
		}
	}

	if s.Retention != nil {
		if _, err := s.Retention.ScheduleDeletion(ctx, completed.UID, user); err != nil {
			slog.ErrorContext(ctx, "failed to schedule recording deletion", logging.ErrKey, err)
		}
	}
	return nil
}

// ApplyBotError moves botID's meeting to error with the provider's message. Stored
// transcripts, summaries and tasks are kept.
func (s *MeetingLifecycleService) ApplyBotError(ctx context.Context, botID, message string) error {
	meeting, err := s.meetingForBot(ctx, botID)
	if err != nil || meeting == nil {
		return err
	}

	_, _, err = s.transition(ctx, meeting.UID, models.MeetingStatusError, func(m *models.Meeting) {
		m.ErrorMessage = message
	})
	if err != nil && !domain.IsErrorType(err, domain.ErrorTypeNotFound) {
		return err
	}
	return nil
}
