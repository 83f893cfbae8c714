// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/linuxfoundation/lfx-v2-meeting-recorder/internal/domain"
	"github.com/linuxfoundation/lfx-v2-meeting-recorder/internal/domain/models"
	"github.com/linuxfoundation/lfx-v2-meeting-recorder/internal/infrastructure/ai"
	"github.com/linuxfoundation/lfx-v2-meeting-recorder/internal/infrastructure/auth"
	"github.com/linuxfoundation/lfx-v2-meeting-recorder/internal/infrastructure/calendar"
	"github.com/linuxfoundation/lfx-v2-meeting-recorder/internal/infrastructure/messaging"
	"github.com/linuxfoundation/lfx-v2-meeting-recorder/internal/infrastructure/payment"
	"github.com/linuxfoundation/lfx-v2-meeting-recorder/internal/infrastructure/postgres"
	"github.com/linuxfoundation/lfx-v2-meeting-recorder/internal/infrastructure/recall"
	"github.com/linuxfoundation/lfx-v2-meeting-recorder/internal/infrastructure/recall/api"
	"github.com/linuxfoundation/lfx-v2-meeting-recorder/internal/infrastructure/store"
	"github.com/linuxfoundation/lfx-v2-meeting-recorder/internal/logging"
	"github.com/linuxfoundation/lfx-v2-meeting-recorder/internal/metrics"
)

const gracefulShutdownSeconds = 25

// setupJWTAuth configures JWT authentication for the API
func setupJWTAuth(env environment) (*auth.JWTAuth, error) {
	return auth.NewJWTAuth(env.JWT)
}

// setupNATS connects to NATS. An unexpected close of the connection triggers a
// shutdown of the process.
func setupNATS(ctx context.Context, env environment, gracefulCloseWG *sync.WaitGroup, done chan os.Signal) (*nats.Conn, error) {
	gracefulCloseWG.Add(1)
	natsConn, err := nats.Connect(
		env.NATSURL,
		nats.Name("lfx-v2-meeting-recorder"),
		nats.DrainTimeout(gracefulShutdownSeconds*time.Second),
		nats.ConnectHandler(func(_ *nats.Conn) {
			slog.With("nats_url", env.NATSURL).Info("NATS connection established")
		}),
		nats.ErrorHandler(func(_ *nats.Conn, s *nats.Subscription, err error) {
			if s != nil {
				slog.With(logging.ErrKey, err, "subject", s.Subject, "queue", s.Queue).Error("async NATS error")
			} else {
				slog.With(logging.ErrKey, err).Error("async NATS error outside subscription")
			}
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			if ctx.Err() != nil {
				// Expected during graceful shutdown.
				slog.Info("NATS connection closed gracefully")
				gracefulCloseWG.Done()
				return
			}
			slog.Error("NATS connection closed unexpectedly")
			gracefulCloseWG.Done()
			done <- os.Interrupt
		}),
	)
	if err != nil {
		gracefulCloseWG.Done()
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	return natsConn, nil
}

// repositories are the NATS KV backed stores of the recorder.
type repositories struct {
	Meeting            *store.NatsMeetingRepository
	Transcript         *store.NatsTranscriptRepository
	Summary            *store.NatsSummaryRepository
	Task               *store.NatsTaskRepository
	CalendarConnection *store.NatsCalendarConnectionRepository
	CalendarEvent      *store.NatsCalendarEventRepository
}

// getKeyValueStores opens every bucket in [store.AllKVStoreNames].
func getKeyValueStores(ctx context.Context, natsConn *nats.Conn) (*repositories, error) {
	js, err := jetstream.New(natsConn)
	if err != nil {
		return nil, fmt.Errorf("create jetstream context: %w", err)
	}

	buckets := make(map[string]jetstream.KeyValue, len(store.AllKVStoreNames))
	for _, name := range store.AllKVStoreNames {
		kv, err := js.KeyValue(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("open key-value bucket %q: %w", name, err)
		}
		buckets[name] = kv
	}

	return &repositories{
		Meeting:            store.NewNatsMeetingRepository(buckets[store.KVStoreNameMeetings]),
		Transcript:         store.NewNatsTranscriptRepository(buckets[store.KVStoreNameTranscripts]),
		Summary:            store.NewNatsSummaryRepository(buckets[store.KVStoreNameSummaries]),
		Task:               store.NewNatsTaskRepository(buckets[store.KVStoreNameTasks]),
		CalendarConnection: store.NewNatsCalendarConnectionRepository(buckets[store.KVStoreNameCalendarConnections]),
		CalendarEvent:      store.NewNatsCalendarEventRepository(buckets[store.KVStoreNameCalendarEvents]),
	}, nil
}

// setupPostgres opens the account database and applies the schema.
func setupPostgres(ctx context.Context, env environment) (*pgxpool.Pool, error) {
	pool, err := postgres.NewPool(ctx, env.Postgres)
	if err != nil {
		return nil, err
	}
	if err := postgres.EnsureSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

// providers are the outbound integrations of the recorder.
type providers struct {
	Recording domain.RecordingProvider
	Calendars *calendar.Registry
	Analyzer  domain.AIAnalyzer
	Payment   domain.PaymentProvider
}

func setupProviders(env environment) (*providers, error) {
	if env.Recall.APIKey == "" {
		return nil, errors.New("RECALL_API_KEY is required")
	}
	if env.AI.APIKey == "" {
		return nil, errors.New("OPENAI_API_KEY is required")
	}

	calendars := []domain.CalendarProvider{calendar.NewICSProvider(calendar.ICSConfig{})}
	if env.Google.ClientID != "" {
		calendars = append(calendars, calendar.NewGoogleProvider(env.Google))
	} else {
		slog.Warn("GOOGLE_CLIENT_ID not set, google calendar connections will not sync")
	}

	p := &providers{
		Recording: recall.NewProvider(api.NewClient(env.Recall)),
		Calendars: calendar.NewRegistry(calendars...),
		Analyzer:  ai.NewAnalyzer(env.AI),
	}

	if env.Payment.SecretKey != "" {
		p.Payment = payment.NewStripeClient(env.Payment)
	} else {
		slog.Warn("STRIPE_SECRET_KEY not set, auto top-up is disabled")
	}

	return p, nil
}

// createNatsSubscriptions queue-subscribes the webhook handler to every Recall event
// subject, so each event is processed by exactly one recorder instance.
func createNatsSubscriptions(ctx context.Context, handler domain.MessageHandler, natsConn *nats.Conn) error {
	slog.InfoContext(ctx, "subscribing to NATS subjects",
		"subject", models.RecallWebhookWildcardSubject,
		"queue", models.RecorderQueue,
	)

	_, err := natsConn.QueueSubscribe(models.RecallWebhookWildcardSubject, models.RecorderQueue, func(msg *nats.Msg) {
		// In-flight messages finish during drain.
		handler.HandleMessage(context.WithoutCancel(ctx), messaging.NewNatsMessage(msg))
	})
	if err != nil {
		return fmt.Errorf("subscribe to %s: %w", models.RecallWebhookWildcardSubject, err)
	}
	return nil
}

// newMetrics registers the recorder instruments, plus the Go runtime and process
// collectors, on a fresh registry.
func newMetrics() *metrics.Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return metrics.New(reg)
}

// gracefulShutdown stops the HTTP server and drains NATS, waiting for both.
func gracefulShutdown(httpServer *http.Server, natsConn *nats.Conn, gracefulCloseWG *sync.WaitGroup, cancel context.CancelFunc) {
	slog.With("timeout_seconds", gracefulShutdownSeconds).Info("graceful shutdown started")

	// Cancel the background context so the NATS closed handler treats the close
	// as expected.
	cancel()

	ctx, shutdownCancel := context.WithTimeout(context.Background(), gracefulShutdownSeconds*time.Second)
	defer shutdownCancel()

	go func() {
		if err := httpServer.Shutdown(ctx); err != nil {
			slog.With(logging.ErrKey, err).Error("http shutdown error")
		}
		gracefulCloseWG.Done()
	}()

	if natsConn != nil && !natsConn.IsClosed() && !natsConn.IsDraining() {
		slog.Info("draining NATS connections")
		if err := natsConn.Drain(); err != nil {
			slog.With(logging.ErrKey, err).Error("error draining NATS connection")
		}
	}

	gracefulCloseWG.Wait()
	slog.Info("graceful shutdown complete")
}
