// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/linuxfoundation/lfx-v2-meeting-recorder/internal/domain"
	"github.com/linuxfoundation/lfx-v2-meeting-recorder/internal/domain/models"
	"github.com/linuxfoundation/lfx-v2-meeting-recorder/internal/logging"
	"github.com/linuxfoundation/lfx-v2-meeting-recorder/internal/metrics"
	"github.com/linuxfoundation/lfx-v2-meeting-recorder/pkg/concurrent"
)

// MeetingLifecycleService owns the meeting state machine. User requests create, stop
// and delete meetings; provider webhooks drive the remaining transitions.
type MeetingLifecycleService struct {
	MeetingRepository    domain.MeetingRepository
	TranscriptRepository domain.TranscriptRepository
	SummaryRepository    domain.SummaryRepository
	TaskRepository       domain.TaskRepository
	AccountRepository    domain.AccountRepository
	LedgerRepository     domain.LedgerRepository
	RecordingProvider    domain.RecordingProvider
	Analyzer             domain.AIAnalyzer
	Settlement           *UsageSettlementService
	Retention            *RetentionService
	Metrics              *metrics.Metrics
	Config               ServiceConfig
	Clock                Clock

	workerPool *concurrent.WorkerPool
}

// NewMeetingLifecycleService creates a new MeetingLifecycleService.
func NewMeetingLifecycleService(
	meetingRepository domain.MeetingRepository,
	transcriptRepository domain.TranscriptRepository,
	summaryRepository domain.SummaryRepository,
	taskRepository domain.TaskRepository,
	accountRepository domain.AccountRepository,
	ledgerRepository domain.LedgerRepository,
	recordingProvider domain.RecordingProvider,
	analyzer domain.AIAnalyzer,
	settlement *UsageSettlementService,
	retention *RetentionService,
	m *metrics.Metrics,
	config ServiceConfig,
) *MeetingLifecycleService {
	return &MeetingLifecycleService{
		MeetingRepository:    meetingRepository,
		TranscriptRepository: transcriptRepository,
		SummaryRepository:    summaryRepository,
		TaskRepository:       taskRepository,
		AccountRepository:    accountRepository,
		LedgerRepository:     ledgerRepository,
		RecordingProvider:    recordingProvider,
		Analyzer:             analyzer,
		Settlement:           settlement,
		Retention:            retention,
		Metrics:              m,
		Config:               config,
		workerPool:           concurrent.NewWorkerPool(config.workers()),
	}
}

// ServiceReady checks if the service is ready for use.
func (s *MeetingLifecycleService) ServiceReady() bool {
	return s.MeetingRepository != nil &&
		s.TranscriptRepository != nil &&
		s.SummaryRepository != nil &&
		s.TaskRepository != nil &&
		s.AccountRepository != nil &&
		s.RecordingProvider != nil &&
		s.Analyzer != nil
}

func (s *MeetingLifecycleService) now() time.Time {
	return utcNow(s.Clock)
}

func (s *MeetingLifecycleService) pool() *concurrent.WorkerPool {
	if s.workerPool == nil {
		s.workerPool = concurrent.NewWorkerPool(s.Config.workers())
	}
	return s.workerPool
}

// CreateMeeting starts a recording bot for the meeting and stores it in the recording state.
// No meeting is stored when the provider cannot start a bot.
func (s *MeetingLifecycleService) CreateMeeting(ctx context.Context, req models.CreateMeetingRequest) (*models.Meeting, error) {
	if err := req.Validate(); err != nil {
		return nil, domain.NewValidationError(err.Error())
	}

	ctx = logging.AppendCtx(ctx, slog.String("user_id", req.UserID))

	user, err := s.AccountRepository.GetUser(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	if !user.IsUnlimited() && user.Credits < models.MinimumCreditsToRecord {
		slog.InfoContext(ctx, "rejecting meeting, balance too low", "credits", user.Credits)
		return nil, domain.NewInsufficientCreditsError(
			fmt.Sprintf("at least %d minutes of credit are required to record", models.MinimumCreditsToRecord))
	}

	bot, err := s.RecordingProvider.StartBot(ctx, req.MeetingURL, models.DefaultBotConfig(s.Config.BotWebhookURL))
	if err != nil {
		slog.ErrorContext(ctx, "failed to start recording bot", logging.ErrKey, err)
		var domainErr *domain.DomainError
		if errors.As(err, &domainErr) {
			return nil, err
		}
		return nil, domain.NewProviderUnavailableError("recording", err)
	}

	now := s.now()
	meeting := &models.Meeting{
		UID:              uuid.New().String(),
		UserID:           req.UserID,
		Title:            req.Title,
		Description:      req.Description,
		MeetingURL:       req.MeetingURL,
		Platform:         req.Platform,
		BotID:            bot.ID,
		Status:           models.MeetingStatusRecording,
		StartedAt:        &now,
		CalendarEventUID: req.CalendarEventUID,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if err := s.MeetingRepository.CreateMeeting(ctx, meeting); err != nil {
		slog.ErrorContext(ctx, "failed to store meeting, recalling bot", logging.ErrKey, err, "bot_id", bot.ID)
		if stopErr := s.RecordingProvider.StopBot(ctx, bot.ID); stopErr != nil {
			slog.ErrorContext(ctx, "failed to recall orphaned bot",
				logging.ErrKey, stopErr, "bot_id", bot.ID, logging.PriorityCritical())
		}
		return nil, err
	}

	s.Metrics.Transition(string(models.MeetingStatusRecording))
	slog.InfoContext(ctx, "meeting recording started", "meeting_uid", meeting.UID, "bot_id", bot.ID)
	return meeting, nil
}

// ownedMeeting loads a meeting and hides it from anyone but its owner.
func (s *MeetingLifecycleService) ownedMeeting(ctx context.Context, meetingUID, userID string) (*models.Meeting, error) {
	meeting, err := s.MeetingRepository.GetMeeting(ctx, meetingUID)
	if err != nil {
		return nil, err
	}
	if meeting.UserID != userID {
		return nil, domain.NewNotFoundError(fmt.Sprintf("meeting %s not found", meetingUID))
	}
	return meeting, nil
}

// GetMeeting returns one of the user's meetings.
func (s *MeetingLifecycleService) GetMeeting(ctx context.Context, meetingUID, userID string) (*models.Meeting, error) {
	return s.ownedMeeting(ctx, meetingUID, userID)
}

// ListMeetings returns the user's meetings, newest first.
func (s *MeetingLifecycleService) ListMeetings(ctx context.Context, userID string) ([]*models.Meeting, error) {
	return s.MeetingRepository.ListMeetingsByUser(ctx, userID)
}

// StopMeeting makes the bot leave the call and moves the meeting to processing.
func (s *MeetingLifecycleService) StopMeeting(ctx context.Context, meetingUID, userID string) (*models.Meeting, error) {
	meeting, err := s.ownedMeeting(ctx, meetingUID, userID)
	if err != nil {
		return nil, err
	}
	if meeting.Status != models.MeetingStatusRecording {
		return nil, domain.NewPreconditionFailedError(
			fmt.Sprintf("meeting %s is %s, not recording", meetingUID, meeting.Status))
	}
	if meeting.BotID == "" {
		return nil, domain.NewNoActiveRecordingError(meetingUID)
	}

	if err := s.RecordingProvider.StopBot(ctx, meeting.BotID); err != nil {
		return nil, err
	}

	updated, changed, err := s.transition(ctx, meetingUID, models.MeetingStatusProcessing, func(m *models.Meeting) {
		if m.EndedAt == nil {
			endedAt := s.now()
			m.EndedAt = &endedAt
		}
	})
	if err != nil {
		return nil, err
	}
	if !changed {
		slog.InfoContext(ctx, "meeting moved on before stop was recorded",
			"meeting_uid", meetingUID, "status", updated.Status)
	}
	return updated, nil
}

// DeleteMeeting removes a meeting with its transcript, summary, tasks and usage rows,
// then asks the provider to drop the bot.
func (s *MeetingLifecycleService) DeleteMeeting(ctx context.Context, meetingUID, userID string) error {
	meeting, revision, err := s.MeetingRepository.GetMeetingWithRevision(ctx, meetingUID)
	if err != nil {
		return err
	}
	if meeting.UserID != userID {
		return domain.NewNotFoundError(fmt.Sprintf("meeting %s not found", meetingUID))
	}

	ctx = logging.AppendCtx(ctx, slog.String("meeting_uid", meetingUID))

	if err := s.deleteChildren(ctx, meetingUID); err != nil {
		return err
	}

	if err := s.MeetingRepository.DeleteMeeting(ctx, meetingUID, revision); err != nil {
		return err
	}

	if meeting.BotID != "" {
		if err := s.RecordingProvider.DeleteBot(ctx, meeting.BotID); err != nil {
			slog.WarnContext(ctx, "failed to delete provider bot", logging.ErrKey, err, "bot_id", meeting.BotID)
		}
	}

	slog.InfoContext(ctx, "meeting deleted")
	return nil
}

func (s *MeetingLifecycleService) deleteChildren(ctx context.Context, meetingUID string) error {
	tasks, err := s.TaskRepository.ListTasksByMeeting(ctx, meetingUID)
	if err != nil {
		return err
	}

	functions := []func() error{
		func() error { return s.TranscriptRepository.DeleteTranscript(ctx, meetingUID) },
		func() error { return s.SummaryRepository.DeleteSummary(ctx, meetingUID) },
	}
	if s.LedgerRepository != nil {
		functions = append(functions, func() error { return s.LedgerRepository.DeleteUsageByMeeting(ctx, meetingUID) })
	}
	for _, task := range tasks {
		functions = append(functions, func() error { return s.TaskRepository.DeleteTask(ctx, task.UID) })
	}

	var failed []error
	for _, err := range s.pool().RunAll(ctx, functions...) {
		if domain.IsErrorType(err, domain.ErrorTypeNotFound) {
			continue
		}
		slog.ErrorContext(ctx, "failed to delete meeting artifact", logging.ErrKey, err)
		failed = append(failed, err)
	}
	if len(failed) > 0 {
		return domain.NewInternalError("failed to delete meeting artifacts", failed...)
	}
	return nil
}

// GetTranscript returns the stored transcript of one of the user's meetings.
func (s *MeetingLifecycleService) GetTranscript(ctx context.Context, meetingUID, userID string) (*models.Transcript, error) {
	if _, err := s.ownedMeeting(ctx, meetingUID, userID); err != nil {
		return nil, err
	}
	return s.TranscriptRepository.GetTranscript(ctx, meetingUID)
}

// GetSummary returns the stored summary of one of the user's meetings.
func (s *MeetingLifecycleService) GetSummary(ctx context.Context, meetingUID, userID string) (*models.Summary, error) {
	if _, err := s.ownedMeeting(ctx, meetingUID, userID); err != nil {
		return nil, err
	}
	return s.SummaryRepository.GetSummary(ctx, meetingUID)
}

// ListTasks returns the tasks extracted from one of the user's meetings.
func (s *MeetingLifecycleService) ListTasks(ctx context.Context, meetingUID, userID string) ([]*models.Task, error) {
	if _, err := s.ownedMeeting(ctx, meetingUID, userID); err != nil {
		return nil, err
	}
	return s.TaskRepository.ListTasksByMeeting(ctx, meetingUID)
}

// ownedTask loads a task with its revision, checking that its meeting belongs to userID.
func (s *MeetingLifecycleService) ownedTask(ctx context.Context, taskUID, userID string) (*models.Task, uint64, error) {
	task, revision, err := s.TaskRepository.GetTaskWithRevision(ctx, taskUID)
	if err != nil {
		return nil, 0, err
	}
	if _, err := s.ownedMeeting(ctx, task.MeetingUID, userID); err != nil {
		if domain.IsErrorType(err, domain.ErrorTypeNotFound) {
			return nil, 0, domain.NewNotFoundError(fmt.Sprintf("task %s not found", taskUID))
		}
		return nil, 0, err
	}
	return task, revision, nil
}

// UpdateTask applies the set fields of req to one of the user's tasks.
func (s *MeetingLifecycleService) UpdateTask(ctx context.Context, taskUID, userID string, req models.UpdateTaskRequest) (*models.Task, error) {
	task, revision, err := s.ownedTask(ctx, taskUID, userID)
	if err != nil {
		return nil, err
	}

	if err := req.Apply(task); err != nil {
		return nil, domain.NewValidationError(err.Error())
	}
	task.UpdatedAt = s.now()

	if err := s.TaskRepository.UpdateTask(ctx, task, revision); err != nil {
		return nil, err
	}
	return task, nil
}

// DeleteTask removes one of the user's tasks.
func (s *MeetingLifecycleService) DeleteTask(ctx context.Context, taskUID, userID string) error {
	if _, _, err := s.ownedTask(ctx, taskUID, userID); err != nil {
		return err
	}
	return s.TaskRepository.DeleteTask(ctx, taskUID)
}
