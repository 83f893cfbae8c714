// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/linuxfoundation/lfx-v2-meeting-recorder/internal/domain"
	"github.com/linuxfoundation/lfx-v2-meeting-recorder/internal/domain/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMeeting(uid, userID, botID string, createdAt time.Time) *models.Meeting {
	return &models.Meeting{
		UID:        uid,
		UserID:     userID,
		Title:      "Weekly sync",
		MeetingURL: "https://zoom.us/j/123",
		Platform:   models.PlatformZoom,
		BotID:      botID,
		Status:     models.MeetingStatusRecording,
		CreatedAt:  createdAt,
		UpdatedAt:  createdAt,
	}
}

func TestNatsMeetingRepository_CreateAndFindByBot(t *testing.T) {
	ctx := context.Background()
	kv := newMockNatsKeyValue()
	repo := NewNatsMeetingRepository(kv)

	meeting := newTestMeeting("m-1", "user-1", "bot-1", time.Now())
	require.NoError(t, repo.CreateMeeting(ctx, meeting))

	found, err := repo.FindMeetingByBotID(ctx, "bot-1")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, "m-1", found.UID)

	tests := []struct {
		name  string
		botID string
	}{
		{name: "unknown bot", botID: "bot-unknown"},
		{name: "empty bot id", botID: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			found, err := repo.FindMeetingByBotID(ctx, tt.botID)
			assert.NoError(t, err)
			assert.Nil(t, found)
		})
	}
}

func TestNatsMeetingRepository_FindByBotIDDanglingLookup(t *testing.T) {
	ctx := context.Background()
	kv := newMockNatsKeyValue()
	repo := NewNatsMeetingRepository(kv)

	require.NoError(t, repo.PutLookup(ctx, repo.botLookupKey("bot-9"), "m-gone"))

	found, err := repo.FindMeetingByBotID(ctx, "bot-9")
	assert.NoError(t, err)
	assert.Nil(t, found)
}

func TestNatsMeetingRepository_FindByBotIDStoreError(t *testing.T) {
	kv := newMockNatsKeyValue()
	kv.getError = errors.New("connection reset")
	repo := NewNatsMeetingRepository(kv)

	found, err := repo.FindMeetingByBotID(context.Background(), "bot-1")
	assert.Error(t, err)
	assert.Nil(t, found)
}

func TestNatsMeetingRepository_CreateRollsBackWhenLookupFails(t *testing.T) {
	ctx := context.Background()
	kv := newMockNatsKeyValue()
	repo := NewNatsMeetingRepository(kv)

	kv.putError = errors.New("disk full")
	kv.putPrefix = "lookup/"

	err := repo.CreateMeeting(ctx, newTestMeeting("m-2", "u", "bot-2", time.Now()))
	require.Error(t, err)

	assert.Empty(t, kv.keysWithPrefix("meeting/"))
}

func TestNatsMeetingRepository_UpdateConflict(t *testing.T) {
	ctx := context.Background()
	repo := NewNatsMeetingRepository(newMockNatsKeyValue())
	require.NoError(t, repo.CreateMeeting(ctx, newTestMeeting("m-1", "u", "bot-1", time.Now())))

	first, rev, err := repo.GetMeetingWithRevision(ctx, "m-1")
	require.NoError(t, err)
	second, staleRev, err := repo.GetMeetingWithRevision(ctx, "m-1")
	require.NoError(t, err)

	first.Status = models.MeetingStatusCompleted
	require.NoError(t, repo.UpdateMeeting(ctx, first, rev))

	second.Status = models.MeetingStatusError
	err = repo.UpdateMeeting(ctx, second, staleRev)
	assert.True(t, domain.IsErrorType(err, domain.ErrorTypeConflict))

	stored, err := repo.GetMeeting(ctx, "m-1")
	require.NoError(t, err)
	assert.Equal(t, models.MeetingStatusCompleted, stored.Status)
}

func TestNatsMeetingRepository_Delete(t *testing.T) {
	ctx := context.Background()
	kv := newMockNatsKeyValue()
	repo := NewNatsMeetingRepository(kv)
	require.NoError(t, repo.CreateMeeting(ctx, newTestMeeting("m-1", "u", "bot-1", time.Now())))

	_, rev, err := repo.GetMeetingWithRevision(ctx, "m-1")
	require.NoError(t, err)
	require.NoError(t, repo.DeleteMeeting(ctx, "m-1", rev))

	_, err = repo.GetMeeting(ctx, "m-1")
	assert.True(t, domain.IsErrorType(err, domain.ErrorTypeNotFound))
	assert.Empty(t, kv.keysWithPrefix("lookup/bot/"))

	err = repo.DeleteMeeting(ctx, "m-1", rev)
	assert.True(t, domain.IsErrorType(err, domain.ErrorTypeNotFound))
}

func TestNatsMeetingRepository_ListMeetingsByUser(t *testing.T) {
	ctx := context.Background()
	repo := NewNatsMeetingRepository(newMockNatsKeyValue())
	base := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

	require.NoError(t, repo.CreateMeeting(ctx, newTestMeeting("m-old", "alice", "b1", base)))
	require.NoError(t, repo.CreateMeeting(ctx, newTestMeeting("m-new", "alice", "b2", base.Add(time.Hour))))
	require.NoError(t, repo.CreateMeeting(ctx, newTestMeeting("m-bob", "bob", "b3", base)))

	meetings, err := repo.ListMeetingsByUser(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, meetings, 2)
	assert.Equal(t, "m-new", meetings[0].UID)
	assert.Equal(t, "m-old", meetings[1].UID)
}

func TestNatsMeetingRepository_ListMeetingsWithExpiredRetention(t *testing.T) {
	ctx := context.Background()
	repo := NewNatsMeetingRepository(newMockNatsKeyValue())
	now := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	tests := []struct {
		uid          string
		recordingURL string
		deletionDate *time.Time
		expired      bool
	}{
		{uid: "due", recordingURL: "https://media/1", deletionDate: &past, expired: true},
		{uid: "due-now", recordingURL: "https://media/2", deletionDate: &now, expired: true},
		{uid: "not-yet", recordingURL: "https://media/3", deletionDate: &future},
		{uid: "already-deleted", deletionDate: &past},
		{uid: "unscheduled", recordingURL: "https://media/4"},
	}

	var want []string
	for _, tt := range tests {
		m := newTestMeeting(tt.uid, "u", "", now)
		m.RecordingURL = tt.recordingURL
		m.DeletionDate = tt.deletionDate
		require.NoError(t, repo.CreateMeeting(ctx, m))
		if tt.expired {
			want = append(want, tt.uid)
		}
	}

	meetings, err := repo.ListMeetingsWithExpiredRetention(ctx, now)
	require.NoError(t, err)

	var got []string
	for _, m := range meetings {
		got = append(got, m.UID)
	}
	assert.ElementsMatch(t, want, got)
}
