// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package store

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/linuxfoundation/lfx-v2-meeting-recorder/internal/domain"
	"github.com/linuxfoundation/lfx-v2-meeting-recorder/internal/domain/models"
	"github.com/linuxfoundation/lfx-v2-meeting-recorder/internal/logging"
)

// NatsTaskRepository implements domain.TaskRepository using NATS KV store.
// Every task has an "index/meeting/<meeting uid>/<task uid>" entry so a meeting's
// tasks can be listed without reading the whole bucket.
type NatsTaskRepository struct {
	*NatsBaseRepository[models.Task]
	keyBuilder *KeyBuilder
}

// NewNatsTaskRepository creates a new task repository
func NewNatsTaskRepository(kvStore INatsKeyValue) *NatsTaskRepository {
	return &NatsTaskRepository{
		NatsBaseRepository: NewNatsBaseRepository[models.Task](kvStore, "task"),
		keyBuilder:         NewKeyBuilder(""),
	}
}

func (r *NatsTaskRepository) taskKey(taskUID string) string {
	return r.keyBuilder.EntityKey(KeyPrefixTask, taskUID)
}

// CreateTask stores a new task and its meeting index entry
func (r *NatsTaskRepository) CreateTask(ctx context.Context, task *models.Task) error {
	if task.UID == "" {
		task.UID = uuid.New().String()
	}

	if err := r.Create(ctx, r.taskKey(task.UID), task); err != nil {
		return err
	}

	if err := r.PutIndex(ctx, r.keyBuilder.IndexKey(KeyPrefixIndexMeeting, task.MeetingUID, task.UID)); err != nil {
		// An unindexed task is invisible to ListTasksByMeeting.
		if delErr := r.DeleteWithoutRevision(ctx, r.taskKey(task.UID)); delErr != nil {
			slog.WarnContext(ctx, "failed to roll back unindexed task", logging.ErrKey, delErr, "task_uid", task.UID)
		}
		return err
	}

	return nil
}

// GetTaskWithRevision retrieves a task with its revision
func (r *NatsTaskRepository) GetTaskWithRevision(ctx context.Context, taskUID string) (*models.Task, uint64, error) {
	return r.GetWithRevision(ctx, r.taskKey(taskUID))
}

// UpdateTask writes the task if it is still at revision
func (r *NatsTaskRepository) UpdateTask(ctx context.Context, task *models.Task, revision uint64) error {
	return r.Update(ctx, r.taskKey(task.UID), task, revision)
}

// DeleteTask removes a task and its index entry
func (r *NatsTaskRepository) DeleteTask(ctx context.Context, taskUID string) error {
	task, err := r.Get(ctx, r.taskKey(taskUID))
	if err != nil {
		return err
	}

	if err := r.DeleteWithoutRevision(ctx, r.taskKey(taskUID)); err != nil {
		return err
	}

	if err := r.DeleteIndex(ctx, r.keyBuilder.IndexKey(KeyPrefixIndexMeeting, task.MeetingUID, task.UID)); err != nil {
		slog.WarnContext(ctx, "failed to delete task index", logging.ErrKey, err, "task_uid", taskUID)
	}
	return nil
}

// ListTasksByMeeting returns a meeting's tasks in creation order.
func (r *NatsTaskRepository) ListTasksByMeeting(ctx context.Context, meetingUID string) ([]*models.Task, error) {
	keys, err := r.ListKeys(ctx)
	if err != nil {
		return nil, err
	}

	indexPrefix := r.keyBuilder.IndexPrefix(KeyPrefixIndexMeeting, meetingUID)
	var tasks []*models.Task

	for _, key := range keys {
		if !matchesPattern(key, indexPrefix) {
			continue
		}
		taskUID := strings.TrimPrefix(key, indexPrefix)
		task, err := r.Get(ctx, r.taskKey(taskUID))
		if err != nil {
			if !domain.IsErrorType(err, domain.ErrorTypeNotFound) {
				slog.WarnContext(ctx, "failed to get indexed task, skipping", logging.ErrKey, err, "task_uid", taskUID)
			}
			continue
		}
		tasks = append(tasks, task)
	}

	sort.SliceStable(tasks, func(i, j int) bool {
		return tasks[i].CreatedAt.Before(tasks[j].CreatedAt)
	})
	return tasks, nil
}
