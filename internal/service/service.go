// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

// Package service holds the recorder's business logic: the meeting lifecycle, calendar
// sync, auto-join, usage settlement, retention and webhook intake.
package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/linuxfoundation/lfx-v2-meeting-recorder/internal/domain"
	"github.com/linuxfoundation/lfx-v2-meeting-recorder/pkg/constants"
)

type Service interface {
	ServiceReady() bool
}

// ServiceConfig is the configuration for the Services.
type ServiceConfig struct {
	// BotWebhookURL is passed to the recording provider so bot events reach /webhooks/recall.
	BotWebhookURL string
	// WorkerCount bounds fan-out inside a single operation (task writes, cascade deletes, user scans).
	WorkerCount int
}

// DefaultWorkerCount is used when ServiceConfig.WorkerCount is unset.
const DefaultWorkerCount = 5

func (c ServiceConfig) workers() int {
	if c.WorkerCount <= 0 {
		return DefaultWorkerCount
	}
	return c.WorkerCount
}

// Clock returns the current time. Services take one so tests can pin it.
type Clock func() time.Time

func utcNow(clock Clock) time.Time {
	if clock == nil {
		return time.Now().UTC()
	}
	return clock().UTC()
}

// mutateWithRevision applies fn to a fresh snapshot read by get and writes it back with
// update, conditioned on the snapshot's revision. A conflicting write re-reads and
// re-evaluates fn, up to constants.MaxTransitionAttempts times. fn reporting false
// skips the write; the snapshot is returned unchanged.
func mutateWithRevision[T any](
	ctx context.Context,
	get func(ctx context.Context, uid string) (*T, uint64, error),
	update func(ctx context.Context, entity *T, revision uint64) error,
	uid string,
	fn func(*T) (bool, error),
) (*T, bool, error) {
	var lastErr error
	for attempt := 1; attempt <= constants.MaxTransitionAttempts; attempt++ {
		entity, revision, err := get(ctx, uid)
		if err != nil {
			return nil, false, err
		}

		changed, err := fn(entity)
		if err != nil {
			return nil, false, err
		}
		if !changed {
			return entity, false, nil
		}

		err = update(ctx, entity, revision)
		if err == nil {
			return entity, true, nil
		}
		if !domain.IsErrorType(err, domain.ErrorTypeConflict) {
			return nil, false, err
		}

		lastErr = err
		slog.DebugContext(ctx, "changed concurrently, retrying",
			"uid", uid,
			"attempt", attempt)
	}
	return nil, false, lastErr
}
