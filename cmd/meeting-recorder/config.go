// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package main

import (
	"flag"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/linuxfoundation/lfx-v2-meeting-recorder/internal/infrastructure/ai"
	"github.com/linuxfoundation/lfx-v2-meeting-recorder/internal/infrastructure/auth"
	"github.com/linuxfoundation/lfx-v2-meeting-recorder/internal/infrastructure/calendar"
	"github.com/linuxfoundation/lfx-v2-meeting-recorder/internal/infrastructure/payment"
	"github.com/linuxfoundation/lfx-v2-meeting-recorder/internal/infrastructure/postgres"
	"github.com/linuxfoundation/lfx-v2-meeting-recorder/internal/infrastructure/recall/api"
	"github.com/linuxfoundation/lfx-v2-meeting-recorder/internal/logging"
	"github.com/linuxfoundation/lfx-v2-meeting-recorder/internal/scheduler"
)

// flags are the command line flags for the meeting recorder.
type flags struct {
	Debug bool
	Port  string
	Bind  string
}

// environment are the environment variables for the meeting recorder.
type environment struct {
	Port    string
	NATSURL string

	Postgres postgres.Config
	Recall   api.Config
	AI       ai.Config
	Payment  payment.Config
	Google   calendar.GoogleConfig
	JWT      auth.JWTAuthConfig

	RecallWebhookSecret string
	RecallWebhookURL    string

	SchedulerDisabled bool
	Scheduler         scheduler.Config
	WorkerCount       int
}

// parseFlags parses command line flags for the meeting recorder
func parseFlags(defaultPort string) flags {
	var debug = flag.Bool("d", false, "enable debug logging")
	var port = flag.String("p", defaultPort, "listen port")
	var bind = flag.String("bind", "*", "interface to bind on")

	flag.Usage = func() {
		flag.PrintDefaults()
		os.Exit(2)
	}
	flag.Parse()

	// Based on the debug flag, set the log level environment variable used by [logging.InitStructureLogConfig]
	if *debug {
		err := os.Setenv("LOG_LEVEL", "debug")
		if err != nil {
			slog.With(logging.ErrKey, err).Error("error setting log level")
			os.Exit(1)
		}
	}

	return flags{
		Debug: *debug,
		Port:  *port,
		Bind:  *bind,
	}
}

// parseEnv parses environment variables for the meeting recorder
func parseEnv() environment {
	return parseEnvFrom(os.Getenv)
}

func parseEnvFrom(getenv func(string) string) environment {
	port := getenv("PORT")
	if port == "" {
		port = "8080"
	}

	natsURL := getenv("NATS_URL")
	if natsURL == "" {
		natsURL = "nats://localhost:4222"
	}

	pg := postgres.DefaultConfig()
	pg.URL = getenv("DATABASE_URL")
	pg.Host = stringOr(getenv("DB_HOST"), pg.Host)
	pg.Port = stringOr(getenv("DB_PORT"), pg.Port)
	pg.User = stringOr(getenv("DB_USER"), pg.User)
	pg.Password = getenv("DB_PASSWORD")
	pg.Name = stringOr(getenv("DB_NAME"), pg.Name)
	pg.SSLMode = stringOr(getenv("DB_SSLMODE"), pg.SSLMode)

	return environment{
		Port:     port,
		NATSURL:  natsURL,
		Postgres: pg,
		Recall: api.Config{
			APIKey:  getenv("RECALL_API_KEY"),
			BaseURL: getenv("RECALL_BASE_URL"),
		},
		AI: ai.Config{
			APIKey:  getenv("OPENAI_API_KEY"),
			BaseURL: getenv("OPENAI_BASE_URL"),
			Model:   getenv("OPENAI_MODEL"),
		},
		Payment: payment.Config{
			SecretKey: getenv("STRIPE_SECRET_KEY"),
		},
		Google: calendar.GoogleConfig{
			ClientID:     getenv("GOOGLE_CLIENT_ID"),
			ClientSecret: getenv("GOOGLE_CLIENT_SECRET"),
			RedirectURL:  getenv("GOOGLE_REDIRECT_URL"),
		},
		JWT: auth.JWTAuthConfig{
			JWKSURL:            getenv("JWKS_URL"),
			Audience:           getenv("JWT_AUDIENCE"),
			MockLocalPrincipal: getenv("JWT_AUTH_DISABLED_MOCK_LOCAL_PRINCIPAL"),
		},
		RecallWebhookSecret: getenv("RECALL_WEBHOOK_SECRET"),
		RecallWebhookURL:    getenv("RECALL_WEBHOOK_URL"),
		SchedulerDisabled:   boolEnv(getenv, "SCHEDULER_DISABLED"),
		Scheduler: scheduler.Config{
			AutoJoinInterval:       durationEnv(getenv, "AUTO_JOIN_INTERVAL"),
			CalendarSyncInterval:   durationEnv(getenv, "CALENDAR_SYNC_INTERVAL"),
			RetentionSweepInterval: durationEnv(getenv, "RETENTION_SWEEP_INTERVAL"),
		},
		WorkerCount: intEnv(getenv, "WORKER_COUNT"),
	}
}

func stringOr(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

func boolEnv(getenv func(string) string, key string) bool {
	raw := getenv(key)
	if raw == "" {
		return false
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		slog.Warn("invalid boolean environment variable, using false", "key", key, "value", raw)
		return false
	}
	return value
}

// durationEnv returns zero for unset or invalid values so the scheduler defaults apply.
func durationEnv(getenv func(string) string, key string) time.Duration {
	raw := getenv(key)
	if raw == "" {
		return 0
	}
	value, err := time.ParseDuration(raw)
	if err != nil || value <= 0 {
		slog.Warn("invalid duration environment variable, using default", "key", key, "value", raw)
		return 0
	}
	return value
}

func intEnv(getenv func(string) string, key string) int {
	raw := getenv(key)
	if raw == "" {
		return 0
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		slog.Warn("invalid integer environment variable, using default", "key", key, "value", raw)
		return 0
	}
	return value
}
