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

func TestNatsTaskRepository_CreateAndList(t *testing.T) {
	ctx := context.Background()
	kv := newMockNatsKeyValue()
	repo := NewNatsTaskRepository(kv)
	base := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	second := &models.Task{MeetingUID: "m-1", Title: "Send notes", Priority: models.TaskPriorityLow, CreatedAt: base.Add(time.Second)}
	first := &models.Task{MeetingUID: "m-1", Title: "Book room", Priority: models.TaskPriorityHigh, CreatedAt: base}
	other := &models.Task{MeetingUID: "m-2", Title: "Unrelated", CreatedAt: base}

	for _, task := range []*models.Task{second, first, other} {
		require.NoError(t, repo.CreateTask(ctx, task))
		assert.NotEmpty(t, task.UID)
	}

	tasks, err := repo.ListTasksByMeeting(ctx, "m-1")
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	assert.Equal(t, "Book room", tasks[0].Title)
	assert.Equal(t, "Send notes", tasks[1].Title)

	assert.Len(t, kv.keysWithPrefix("index/meeting/"), 3)
}

func TestNatsTaskRepository_UpdateAndDelete(t *testing.T) {
	ctx := context.Background()
	kv := newMockNatsKeyValue()
	repo := NewNatsTaskRepository(kv)

	task := &models.Task{UID: "t-1", MeetingUID: "m-1", Title: "Draft", Priority: models.TaskPriorityMedium}
	require.NoError(t, repo.CreateTask(ctx, task))

	stored, rev, err := repo.GetTaskWithRevision(ctx, "t-1")
	require.NoError(t, err)
	stored.Completed = true
	require.NoError(t, repo.UpdateTask(ctx, stored, rev))

	err = repo.UpdateTask(ctx, stored, rev)
	assert.True(t, domain.IsErrorType(err, domain.ErrorTypeConflict))

	require.NoError(t, repo.DeleteTask(ctx, "t-1"))
	assert.Empty(t, kv.keysWithPrefix("index/"))

	tasks, err := repo.ListTasksByMeeting(ctx, "m-1")
	require.NoError(t, err)
	assert.Empty(t, tasks)

	err = repo.DeleteTask(ctx, "t-1")
	assert.True(t, domain.IsErrorType(err, domain.ErrorTypeNotFound))
}

func TestNatsTaskRepository_ListSkipsDanglingIndex(t *testing.T) {
	ctx := context.Background()
	repo := NewNatsTaskRepository(newMockNatsKeyValue())

	require.NoError(t, repo.CreateTask(ctx, &models.Task{UID: "t-1", MeetingUID: "m-1", Title: "Kept"}))
	require.NoError(t, repo.PutIndex(ctx, repo.keyBuilder.IndexKey(KeyPrefixIndexMeeting, "m-1", "t-gone")))

	tasks, err := repo.ListTasksByMeeting(ctx, "m-1")
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "t-1", tasks[0].UID)
}

func TestNatsTaskRepository_CreateFailure(t *testing.T) {
	kv := newMockNatsKeyValue()
	kv.putError = errors.New("unavailable")
	repo := NewNatsTaskRepository(kv)

	err := repo.CreateTask(context.Background(), &models.Task{MeetingUID: "m-1", Title: "x"})
	require.Error(t, err)
	assert.Empty(t, kv.keysWithPrefix("task/"))
}
