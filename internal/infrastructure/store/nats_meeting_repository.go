// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package store

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/linuxfoundation/lfx-v2-meeting-recorder/internal/domain"
	"github.com/linuxfoundation/lfx-v2-meeting-recorder/internal/domain/models"
	"github.com/linuxfoundation/lfx-v2-meeting-recorder/internal/logging"
)

// NatsMeetingRepository implements domain.MeetingRepository using NATS KV store.
// Meetings live under "meeting/<uid>"; "lookup/bot/<bot id>" resolves a bot to
// its meeting.
type NatsMeetingRepository struct {
	*NatsBaseRepository[models.Meeting]
	keyBuilder *KeyBuilder
}

// NewNatsMeetingRepository creates a new meeting repository
func NewNatsMeetingRepository(kvStore INatsKeyValue) *NatsMeetingRepository {
	return &NatsMeetingRepository{
		NatsBaseRepository: NewNatsBaseRepository[models.Meeting](kvStore, "meeting"),
		keyBuilder:         NewKeyBuilder(""),
	}
}

func (r *NatsMeetingRepository) meetingKey(meetingUID string) string {
	return r.keyBuilder.EntityKey(KeyPrefixMeeting, meetingUID)
}

func (r *NatsMeetingRepository) botLookupKey(botID string) string {
	return r.keyBuilder.LookupKey(KeyPrefixLookupBot, botID)
}

// CreateMeeting stores a new meeting and, when a bot is attached, its bot lookup.
func (r *NatsMeetingRepository) CreateMeeting(ctx context.Context, meeting *models.Meeting) error {
	if err := r.Create(ctx, r.meetingKey(meeting.UID), meeting); err != nil {
		return err
	}

	if meeting.BotID != "" {
		if err := r.PutLookup(ctx, r.botLookupKey(meeting.BotID), meeting.UID); err != nil {
			// Without the lookup no webhook can reach the meeting; undo the write.
			if delErr := r.DeleteWithoutRevision(ctx, r.meetingKey(meeting.UID)); delErr != nil {
				slog.ErrorContext(ctx, "failed to roll back meeting after lookup failure",
					logging.ErrKey, delErr, "meeting_uid", meeting.UID, logging.PriorityCritical())
			}
			return err
		}
	}

	return nil
}

// GetMeeting retrieves a meeting by UID
func (r *NatsMeetingRepository) GetMeeting(ctx context.Context, meetingUID string) (*models.Meeting, error) {
	return r.Get(ctx, r.meetingKey(meetingUID))
}

// GetMeetingWithRevision retrieves a meeting with the revision to pass to UpdateMeeting
func (r *NatsMeetingRepository) GetMeetingWithRevision(ctx context.Context, meetingUID string) (*models.Meeting, uint64, error) {
	return r.GetWithRevision(ctx, r.meetingKey(meetingUID))
}

// UpdateMeeting writes the meeting if it is still at revision.
func (r *NatsMeetingRepository) UpdateMeeting(ctx context.Context, meeting *models.Meeting, revision uint64) error {
	return r.Update(ctx, r.meetingKey(meeting.UID), meeting, revision)
}

// DeleteMeeting removes the meeting at revision and then its bot lookup.
func (r *NatsMeetingRepository) DeleteMeeting(ctx context.Context, meetingUID string, revision uint64) error {
	meeting, err := r.GetMeeting(ctx, meetingUID)
	if err != nil {
		return err
	}

	if err := r.Delete(ctx, r.meetingKey(meetingUID), revision); err != nil {
		return err
	}

	if meeting.BotID != "" {
		if err := r.DeleteIndex(ctx, r.botLookupKey(meeting.BotID)); err != nil {
			slog.WarnContext(ctx, "failed to delete bot lookup",
				logging.ErrKey, err, "meeting_uid", meetingUID, "bot_id", meeting.BotID)
		}
	}

	return nil
}

// FindMeetingByBotID resolves a bot id to its meeting. A bot with no meeting, or
// a lookup pointing at a deleted meeting, yields (nil, nil).
func (r *NatsMeetingRepository) FindMeetingByBotID(ctx context.Context, botID string) (*models.Meeting, error) {
	if botID == "" {
		return nil, nil
	}

	meetingUID, err := r.GetLookup(ctx, r.botLookupKey(botID))
	if err != nil {
		if domain.IsErrorType(err, domain.ErrorTypeNotFound) {
			return nil, nil
		}
		return nil, err
	}

	meeting, err := r.GetMeeting(ctx, meetingUID)
	if err != nil {
		if domain.IsErrorType(err, domain.ErrorTypeNotFound) {
			slog.DebugContext(ctx, "bot lookup points at a missing meeting",
				"bot_id", botID, "meeting_uid", meetingUID)
			return nil, nil
		}
		return nil, err
	}

	return meeting, nil
}

// ListMeetingsByUser returns the user's meetings, newest first.
func (r *NatsMeetingRepository) ListMeetingsByUser(ctx context.Context, userID string) ([]*models.Meeting, error) {
	meetings, err := r.ListEntitiesWhere(ctx, r.keyBuilder.EntityPrefix(KeyPrefixMeeting), func(m *models.Meeting) bool {
		return m.UserID == userID
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(meetings, func(i, j int) bool {
		return meetings[i].CreatedAt.After(meetings[j].CreatedAt)
	})
	return meetings, nil
}

// ListMeetingsWithExpiredRetention returns meetings still holding a recording
// whose deletion date is at or before now.
func (r *NatsMeetingRepository) ListMeetingsWithExpiredRetention(ctx context.Context, now time.Time) ([]*models.Meeting, error) {
	return r.ListEntitiesWhere(ctx, r.keyBuilder.EntityPrefix(KeyPrefixMeeting), func(m *models.Meeting) bool {
		return m.RetentionExpired(now)
	})
}
