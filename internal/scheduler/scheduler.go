// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

// Package scheduler runs the recorder's periodic jobs: the auto-join scan, calendar
// sync and the retention sweep.
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/linuxfoundation/lfx-v2-meeting-recorder/internal/domain"
	"github.com/linuxfoundation/lfx-v2-meeting-recorder/internal/domain/models"
	"github.com/linuxfoundation/lfx-v2-meeting-recorder/internal/logging"
	"github.com/linuxfoundation/lfx-v2-meeting-recorder/internal/metrics"
	"github.com/linuxfoundation/lfx-v2-meeting-recorder/internal/service"
	"github.com/linuxfoundation/lfx-v2-meeting-recorder/pkg/constants"
)

// ErrJobRunning is returned when a job is requested while its previous run is active.
var ErrJobRunning = errors.New("job is already running")

// AutoJoiner runs one auto-join scan.
type AutoJoiner interface {
	RunAutoJoin(ctx context.Context) (models.AutoJoinResult, error)
}

// CalendarSyncer syncs calendar connections.
type CalendarSyncer interface {
	SyncAllConnections(ctx context.Context) ([]models.SyncResult, error)
	SyncUser(ctx context.Context, userID string) ([]models.SyncResult, error)
}

// RetentionSweeper deletes recordings past their retention.
type RetentionSweeper interface {
	SweepExpiredRecordings(ctx context.Context) (service.SweepResult, error)
}

// TickerFunc starts a ticker firing every d. The returned func stops it.
type TickerFunc func(d time.Duration) (<-chan time.Time, func())

func realTicker(d time.Duration) (<-chan time.Time, func()) {
	t := time.NewTicker(d)
	return t.C, t.Stop
}

// Config holds the job intervals. Zero values fall back to the defaults.
type Config struct {
	AutoJoinInterval       time.Duration
	CalendarSyncInterval   time.Duration
	RetentionSweepInterval time.Duration
}

func orDefault(d, fallback time.Duration) time.Duration {
	if d <= 0 {
		return fallback
	}
	return d
}

type job struct {
	name     string
	interval time.Duration
	run      func(ctx context.Context) error
	running  atomic.Bool
}

// Controller owns the periodic jobs. Each job ticks on its own goroutine and a tick is
// skipped while the previous run of the same job is still active.
type Controller struct {
	autoJoin  AutoJoiner
	calendar  CalendarSyncer
	retention RetentionSweeper
	metrics   *metrics.Metrics

	// Ticker is replaced in tests.
	Ticker TickerFunc

	jobs   map[string]*job
	order  []string
	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewController creates a controller with one job per non-nil dependency.
func NewController(
	autoJoin AutoJoiner,
	calendar CalendarSyncer,
	retention RetentionSweeper,
	m *metrics.Metrics,
	config Config,
) *Controller {
	c := &Controller{
		autoJoin:  autoJoin,
		calendar:  calendar,
		retention: retention,
		metrics:   m,
		Ticker:    realTicker,
		jobs:      make(map[string]*job),
	}

	if autoJoin != nil {
		c.register(constants.JobAutoJoin, orDefault(config.AutoJoinInterval, constants.DefaultAutoJoinInterval), c.runAutoJoin)
	}
	if calendar != nil {
		c.register(constants.JobCalendarSync, orDefault(config.CalendarSyncInterval, constants.DefaultCalendarSyncInterval), c.runCalendarSync)
	}
	if retention != nil {
		c.register(constants.JobRetentionSweep, orDefault(config.RetentionSweepInterval, constants.DefaultRetentionSweepInterval), c.runRetentionSweep)
	}
	return c
}

func (c *Controller) register(name string, interval time.Duration, run func(ctx context.Context) error) {
	c.jobs[name] = &job{name: name, interval: interval, run: run}
	c.order = append(c.order, name)
}

// Jobs returns the registered job names in registration order.
func (c *Controller) Jobs() []string {
	return append([]string(nil), c.order...)
}

// Start launches every job loop. Jobs first run one interval after Start.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cancel != nil {
		return errors.New("scheduler already started")
	}

	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	for _, name := range c.order {
		j := c.jobs[name]
		c.wg.Add(1)
		go c.loop(ctx, j)
		slog.InfoContext(ctx, "scheduled job", "job", j.name, "interval", j.interval)
	}
	return nil
}

// Stop cancels the job loops and waits for in-flight runs to return.
func (c *Controller) Stop() {
	c.mu.Lock()
	cancel := c.cancel
	c.cancel = nil
	c.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	c.wg.Wait()
	slog.Info("scheduler stopped")
}

func (c *Controller) loop(ctx context.Context, j *job) {
	defer c.wg.Done()

	tick, stop := c.Ticker(j.interval)
	defer stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-tick:
			c.wg.Add(1)
			go func() {
				defer c.wg.Done()
				if err := c.guarded(ctx, j, j.run); err != nil && !errors.Is(err, ErrJobRunning) {
					slog.ErrorContext(ctx, "scheduled job failed", "job", j.name, logging.ErrKey, err)
				}
			}()
		}
	}
}

// RunJob runs the named job once, outside its schedule.
func (c *Controller) RunJob(ctx context.Context, name string) error {
	j, ok := c.jobs[name]
	if !ok {
		return domain.NewNotFoundError("unknown job " + name)
	}
	return c.guarded(ctx, j, j.run)
}

// guarded runs fn unless j is already running, recording the outcome.
func (c *Controller) guarded(ctx context.Context, j *job, fn func(ctx context.Context) error) error {
	start := time.Now()
	if !j.running.CompareAndSwap(false, true) {
		slog.DebugContext(ctx, "previous run still active, skipping", "job", j.name)
		c.metrics.ObserveJob(j.name, metrics.OutcomeSkipped, start)
		return ErrJobRunning
	}
	defer j.running.Store(false)

	err := fn(ctx)
	outcome := metrics.OutcomeSuccess
	if err != nil {
		outcome = metrics.OutcomeError
	}
	c.metrics.ObserveJob(j.name, outcome, start)
	return err
}

func (c *Controller) runAutoJoin(ctx context.Context) error {
	_, err := c.autoJoin.RunAutoJoin(ctx)
	return err
}

func (c *Controller) runCalendarSync(ctx context.Context) error {
	results, err := c.calendar.SyncAllConnections(ctx)
	if err != nil {
		return err
	}
	failed := 0
	for _, result := range results {
		if !result.Success {
			failed++
		}
	}
	slog.InfoContext(ctx, "calendar sync finished", "connections", len(results), "failed", failed)
	return nil
}

func (c *Controller) runRetentionSweep(ctx context.Context) error {
	_, err := c.retention.SweepExpiredRecordings(ctx)
	return err
}

// TriggerAutoJoin runs one auto-join scan now. It reports a conflict while a scan is
// already running.
func (c *Controller) TriggerAutoJoin(ctx context.Context) (models.AutoJoinResult, error) {
	var result models.AutoJoinResult

	j, ok := c.jobs[constants.JobAutoJoin]
	if !ok {
		return result, domain.NewUnavailableError("auto-join is not configured")
	}

	err := c.guarded(ctx, j, func(ctx context.Context) error {
		var err error
		result, err = c.autoJoin.RunAutoJoin(ctx)
		return err
	})
	if errors.Is(err, ErrJobRunning) {
		return result, domain.NewConflictError("an auto-join scan is already running", err)
	}
	return result, err
}

// TriggerSync syncs the user's connections now.
func (c *Controller) TriggerSync(ctx context.Context, userID string) ([]models.SyncResult, error) {
	if c.calendar == nil {
		return nil, domain.NewUnavailableError("calendar sync is not configured")
	}
	return c.calendar.SyncUser(ctx, userID)
}
