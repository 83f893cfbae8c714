// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/linuxfoundation/lfx-v2-meeting-recorder/internal/domain"
	"github.com/linuxfoundation/lfx-v2-meeting-recorder/internal/domain/models"
	"github.com/linuxfoundation/lfx-v2-meeting-recorder/internal/logging"
)

// SweepResult summarizes one retention sweep.
type SweepResult struct {
	Expired int `json:"expired"`
	Deleted int `json:"deleted"`
	Failed  int `json:"failed"`
}

// RetentionService schedules and performs the deletion of provider-side recordings.
type RetentionService struct {
	MeetingRepository domain.MeetingRepository
	AccountRepository domain.AccountRepository
	RecordingProvider domain.RecordingProvider
	Clock             Clock
}

// NewRetentionService creates a new RetentionService.
func NewRetentionService(
	meetingRepository domain.MeetingRepository,
	accountRepository domain.AccountRepository,
	recordingProvider domain.RecordingProvider,
) *RetentionService {
	return &RetentionService{
		MeetingRepository: meetingRepository,
		AccountRepository: accountRepository,
		RecordingProvider: recordingProvider,
	}
}

// ServiceReady checks if the service is ready for use.
func (s *RetentionService) ServiceReady() bool {
	return s.MeetingRepository != nil &&
		s.AccountRepository != nil &&
		s.RecordingProvider != nil
}

func retentionPeriod(days int) time.Duration {
	return time.Duration(days) * 24 * time.Hour
}

// ScheduleDeletion sets the meeting's deletion date to now plus the user's retention.
// A nil user gets the default retention.
func (s *RetentionService) ScheduleDeletion(ctx context.Context, meetingUID string, user *models.User) (*models.Meeting, error) {
	now := utcNow(s.Clock)
	deletionDate := now.Add(retentionPeriod(user.EffectiveRetentionDays()))

	meeting, _, err := mutateMeeting(ctx, s.MeetingRepository, meetingUID, func(m *models.Meeting) (bool, error) {
		m.DeletionDate = &deletionDate
		m.UpdatedAt = now
		return true, nil
	})
	if err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "recording deletion scheduled",
		"meeting_uid", meetingUID,
		"deletion_date", deletionDate)
	return meeting, nil
}

// SweepExpiredRecordings deletes every recording whose deletion date has passed.
// A failed deletion is retried on the next sweep.
func (s *RetentionService) SweepExpiredRecordings(ctx context.Context) (SweepResult, error) {
	var result SweepResult

	meetings, err := s.MeetingRepository.ListMeetingsWithExpiredRetention(ctx, utcNow(s.Clock))
	if err != nil {
		return result, err
	}
	result.Expired = len(meetings)

	for _, meeting := range meetings {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if err := s.deleteRecording(ctx, meeting); err != nil {
			slog.WarnContext(ctx, "failed to delete expired recording, will retry",
				logging.ErrKey, err, "meeting_uid", meeting.UID)
			result.Failed++
			continue
		}
		result.Deleted++
	}

	slog.InfoContext(ctx, "retention sweep finished",
		"expired", result.Expired,
		"deleted", result.Deleted,
		"failed", result.Failed)
	return result, nil
}

// deleteRecording removes the provider media and clears the meeting's recording fields.
func (s *RetentionService) deleteRecording(ctx context.Context, meeting *models.Meeting) error {
	if meeting.BotID != "" {
		deleted, err := s.RecordingProvider.DeleteRecording(ctx, meeting.BotID)
		if err != nil {
			return err
		}
		if !deleted {
			slog.DebugContext(ctx, "provider held no recording", "meeting_uid", meeting.UID, "bot_id", meeting.BotID)
		}
	}

	_, _, err := mutateMeeting(ctx, s.MeetingRepository, meeting.UID, func(m *models.Meeting) (bool, error) {
		if m.RecordingURL == "" && m.DeletionDate == nil {
			return false, nil
		}
		m.RecordingURL = ""
		m.DeletionDate = nil
		m.UpdatedAt = utcNow(s.Clock)
		return true, nil
	})
	return err
}

// DeleteRecordingNow deletes the recording of one of the user's meetings immediately.
func (s *RetentionService) DeleteRecordingNow(ctx context.Context, meetingUID, userID string) error {
	meeting, err := s.MeetingRepository.GetMeeting(ctx, meetingUID)
	if err != nil {
		return err
	}
	if meeting.UserID != userID {
		return domain.NewNotFoundError(fmt.Sprintf("meeting %s not found", meetingUID))
	}
	if !meeting.HasRecording() {
		return domain.NewPreconditionFailedError(fmt.Sprintf("meeting %s has no recording", meetingUID))
	}

	if err := s.deleteRecording(ctx, meeting); err != nil {
		return err
	}

	slog.InfoContext(ctx, "recording deleted on request", "meeting_uid", meetingUID)
	return nil
}

// UpdateUserRetention stores the user's retention period and reschedules the deletion of
// every recording they still hold to CreatedAt plus the new period.
func (s *RetentionService) UpdateUserRetention(ctx context.Context, userID string, days int) (*models.User, error) {
	if days < 1 || days > models.MaxRetentionDays {
		return nil, domain.NewValidationError(fmt.Sprintf("retention days must be between 1 and %d", models.MaxRetentionDays))
	}

	ctx = logging.AppendCtx(ctx, slog.String("user_id", userID))

	user, err := s.AccountRepository.UpdateRetentionDays(ctx, userID, days)
	if err != nil {
		return nil, err
	}

	meetings, err := s.MeetingRepository.ListMeetingsByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	var rescheduled, failed int
	for _, meeting := range meetings {
		if !meeting.HasRecording() {
			continue
		}
		deletionDate := meeting.CreatedAt.Add(retentionPeriod(days))
		_, _, err := mutateMeeting(ctx, s.MeetingRepository, meeting.UID, func(m *models.Meeting) (bool, error) {
			if !m.HasRecording() {
				return false, nil
			}
			m.DeletionDate = &deletionDate
			m.UpdatedAt = utcNow(s.Clock)
			return true, nil
		})
		if err != nil {
			slog.WarnContext(ctx, "failed to reschedule recording deletion", logging.ErrKey, err, "meeting_uid", meeting.UID)
			failed++
			continue
		}
		rescheduled++
	}

	slog.InfoContext(ctx, "retention updated",
		"retention_days", days,
		"rescheduled", rescheduled,
		"failed", failed)
	return user, nil
}
