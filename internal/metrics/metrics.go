// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

// Package metrics holds the Prometheus instruments of the recorder.
package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "meeting_recorder"

// Outcome labels.
const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
	OutcomeSkipped = "skipped"
	OutcomeIgnored = "ignored"
)

// Metrics is the set of recorder instruments. A nil *Metrics is valid and
// records nothing, so components can run without a registry in tests.
type Metrics struct {
	registry prometheus.Gatherer

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	JobRunsTotal    *prometheus.CounterVec
	JobRunDuration  *prometheus.HistogramVec
	WebhookEvents   *prometheus.CounterVec
	Transitions     *prometheus.CounterVec
	SettledMinutes  prometheus.Counter
	DBLatency       *prometheus.HistogramVec
	AutoJoinResults *prometheus.CounterVec
}

// New registers the recorder metrics with reg.
func New(reg *prometheus.Registry) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests processed.",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "Histogram of latencies for HTTP requests.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		JobRunsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "scheduler_job_runs_total",
				Help:      "Periodic job runs by outcome.",
			},
			[]string{"job", "outcome"},
		),
		JobRunDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "scheduler_job_duration_seconds",
				Help:      "Duration of periodic job runs.",
				Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 300},
			},
			[]string{"job"},
		),
		WebhookEvents: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "webhook_events_total",
				Help:      "Recording provider webhook events by type and outcome.",
			},
			[]string{"event", "outcome"},
		),
		Transitions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "meeting_transitions_total",
				Help:      "Committed meeting status transitions by target status.",
			},
			[]string{"status"},
		),
		SettledMinutes: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "settled_minutes_total",
				Help:      "Recorded minutes charged against user balances.",
			},
		),
		DBLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "db_latency_seconds",
				Help:      "Histogram of database operation latencies.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		AutoJoinResults: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "auto_join_events_total",
				Help:      "Calendar events handled by the auto-join scan.",
			},
			[]string{"outcome"},
		),
	}
}

// Handler exposes the registry for scraping.
func (m *Metrics) Handler() http.Handler {
	if m == nil || m.registry == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Middleware records request counts and latencies labelled by chi route pattern.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m == nil {
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		route := routePattern(r)
		m.HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		m.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := strings.TrimSpace(rctx.RoutePattern()); pattern != "" {
			return pattern
		}
	}
	return "unmatched"
}

// ObserveJob records one periodic job run.
func (m *Metrics) ObserveJob(job, outcome string, start time.Time) {
	if m == nil {
		return
	}
	m.JobRunsTotal.WithLabelValues(job, outcome).Inc()
	if outcome != OutcomeSkipped {
		m.JobRunDuration.WithLabelValues(job).Observe(time.Since(start).Seconds())
	}
}

// WebhookEvent counts one processed webhook event.
func (m *Metrics) WebhookEvent(event, outcome string) {
	if m == nil {
		return
	}
	m.WebhookEvents.WithLabelValues(event, outcome).Inc()
}

// Transition counts a committed status change.
func (m *Metrics) Transition(status string) {
	if m == nil {
		return
	}
	m.Transitions.WithLabelValues(status).Inc()
}

// Settled adds charged minutes.
func (m *Metrics) Settled(minutes int) {
	if m == nil || minutes <= 0 {
		return
	}
	m.SettledMinutes.Add(float64(minutes))
}

// AutoJoin counts one auto-join event outcome.
func (m *Metrics) AutoJoin(outcome string) {
	if m == nil {
		return
	}
	m.AutoJoinResults.WithLabelValues(outcome).Inc()
}

// ObserveDB returns a func that records the latency of operation when called.
func (m *Metrics) ObserveDB(operation string) func() {
	start := time.Now()
	return func() {
		if m == nil {
			return
		}
		m.DBLatency.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	}
}
