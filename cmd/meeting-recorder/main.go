// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

// Package main is the meeting recorder. It serves the recorder API, accepts
// recording provider webhooks, processes queued webhook events from NATS and runs
// the periodic auto-join, calendar sync and retention jobs.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/linuxfoundation/lfx-v2-meeting-recorder/internal/handlers"
	"github.com/linuxfoundation/lfx-v2-meeting-recorder/internal/infrastructure/messaging"
	"github.com/linuxfoundation/lfx-v2-meeting-recorder/internal/infrastructure/postgres"
	"github.com/linuxfoundation/lfx-v2-meeting-recorder/internal/infrastructure/recall/webhook"
	"github.com/linuxfoundation/lfx-v2-meeting-recorder/internal/logging"
	"github.com/linuxfoundation/lfx-v2-meeting-recorder/internal/scheduler"
	"github.com/linuxfoundation/lfx-v2-meeting-recorder/internal/service"
	"github.com/linuxfoundation/lfx-v2-meeting-recorder/pkg/utils"
)

func main() {
	env := parseEnv()
	flags := parseFlags(env.Port)

	logging.InitStructureLogConfig()

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	gracefulCloseWG := sync.WaitGroup{}

	otelShutdown, err := utils.SetupOTelSDK(ctx)
	if err != nil {
		slog.With(logging.ErrKey, err).Error("error setting up OpenTelemetry SDK")
		os.Exit(1)
	}
	defer func() {
		if err := otelShutdown(context.Background()); err != nil {
			slog.With(logging.ErrKey, err).Error("error shutting down OpenTelemetry SDK")
		}
	}()

	// Set up JWT validator used by the API authentication middleware.
	jwtAuth, err := setupJWTAuth(env)
	if err != nil {
		slog.With(logging.ErrKey, err).Error("error setting up JWT authentication")
		os.Exit(1)
	}

	m := newMetrics()

	providers, err := setupProviders(env)
	if err != nil {
		slog.With(logging.ErrKey, err).Error("error setting up providers")
		return
	}

	pool, err := setupPostgres(ctx, env)
	if err != nil {
		slog.With(logging.ErrKey, err).Error("error setting up postgres")
		return
	}
	defer pool.Close()

	natsConn, err := setupNATS(ctx, env, &gracefulCloseWG, done)
	if err != nil {
		slog.With(logging.ErrKey, err).Error("error setting up NATS")
		return
	}

	repos, err := getKeyValueStores(ctx, natsConn)
	if err != nil {
		slog.With(logging.ErrKey, err).Error("error getting key-value stores")
		return
	}

	// Initialize services
	serviceConfig := service.ServiceConfig{
		BotWebhookURL: env.RecallWebhookURL,
		WorkerCount:   env.WorkerCount,
	}
	accounts := postgres.NewAccountRepository(pool, m)
	ledger := postgres.NewLedgerRepository(pool, m)
	messageBuilder := messaging.NewMessageBuilder(natsConn)

	settlementService := service.NewUsageSettlementService(ledger, providers.Payment, m)
	retentionService := service.NewRetentionService(repos.Meeting, accounts, providers.Recording)
	lifecycleService := service.NewMeetingLifecycleService(
		repos.Meeting,
		repos.Transcript,
		repos.Summary,
		repos.Task,
		accounts,
		ledger,
		providers.Recording,
		providers.Analyzer,
		settlementService,
		retentionService,
		m,
		serviceConfig,
	)
	calendarService := service.NewCalendarSyncService(
		repos.CalendarConnection,
		repos.CalendarEvent,
		providers.Calendars,
	)
	autoJoinService := service.NewAutoJoinService(
		accounts,
		repos.CalendarConnection,
		repos.CalendarEvent,
		lifecycleService,
		m,
		serviceConfig,
	)
	webhookService := service.NewRecallWebhookService(
		messageBuilder,
		webhook.NewRecallWebhookValidator(env.RecallWebhookSecret),
		m,
	)

	jobs := scheduler.NewController(autoJoinService, calendarService, retentionService, m, env.Scheduler)

	api := NewRecorderAPI(apiDependencies{
		Meetings:  lifecycleService,
		Calendars: calendarService,
		AutoJoin:  autoJoinService,
		Retention: retentionService,
		Jobs:      jobs,
		Webhooks:  webhookService,
		Auth:      jwtAuth,
		Metrics:   m,
		Readiness: []readinessCheck{
			func(ctx context.Context) error { return pool.Ping(ctx) },
			func(context.Context) error {
				if !natsConn.IsConnected() {
					return messaging.ErrNotConnected
				}
				return nil
			},
		},
	})

	httpServer := setupHTTPServer(flags, api, &gracefulCloseWG)

	webhookHandler := handlers.NewRecallWebhookHandler(lifecycleService, messageBuilder, m)
	if err := createNatsSubscriptions(ctx, webhookHandler, natsConn); err != nil {
		slog.With(logging.ErrKey, err).Error("error creating NATS subscriptions")
		return
	}

	if env.SchedulerDisabled {
		slog.Info("scheduler disabled, periodic jobs will not run on this instance")
	} else if err := jobs.Start(ctx); err != nil {
		slog.With(logging.ErrKey, err).Error("error starting scheduler")
		return
	}

	// This next line blocks until SIGINT or SIGTERM is received.
	<-done

	jobs.Stop()
	gracefulShutdown(httpServer, natsConn, &gracefulCloseWG, cancel)
}
