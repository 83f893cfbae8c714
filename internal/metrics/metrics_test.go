// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.ObserveJob("auto-join", OutcomeSuccess, time.Now())
		m.WebhookEvent("bot.error", OutcomeSuccess)
		m.Transition("completed")
		m.Settled(10)
		m.AutoJoin(OutcomeSuccess)
		m.ObserveDB("settle_usage")()
	})

	rec := httptest.NewRecorder()
	m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)
}

func TestCounters(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveJob("auto-join", OutcomeSuccess, time.Now())
	m.ObserveJob("auto-join", OutcomeSkipped, time.Now())
	m.WebhookEvent("transcript.ready", OutcomeSuccess)
	m.WebhookEvent("transcript.ready", OutcomeSuccess)
	m.Transition("processed")
	m.Settled(42)
	m.Settled(-1)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.JobRunsTotal.WithLabelValues("auto-join", OutcomeSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.JobRunsTotal.WithLabelValues("auto-join", OutcomeSkipped)))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.WebhookEvents.WithLabelValues("transcript.ready", OutcomeSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Transitions.WithLabelValues("processed")))
	assert.Equal(t, 42.0, testutil.ToFloat64(m.SettledMinutes))
}

func TestMiddlewareAndHandler(t *testing.T) {
	m := New(prometheus.NewRegistry())

	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/meetings/{uid}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	r.Handle("/metrics", m.Handler())

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/meetings/abc", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues(http.MethodGet, "/meetings/{uid}", "404")))

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "meeting_recorder_http_requests_total"))
}
