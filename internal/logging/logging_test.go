// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureHandler struct {
	slog.Handler
	records []slog.Record
}

func (h *captureHandler) Handle(_ context.Context, r slog.Record) error {
	h.records = append(h.records, r)
	return nil
}

func recordAttrs(r slog.Record) map[string]string {
	out := map[string]string{}
	r.Attrs(func(a slog.Attr) bool {
		out[a.Key] = a.Value.String()
		return true
	})
	return out
}

func TestAppendCtx(t *testing.T) {
	tests := []struct {
		name  string
		attrs []slog.Attr
	}{
		{name: "single attribute", attrs: []slog.Attr{slog.String("meeting_uid", "m-1")}},
		{name: "stacked attributes", attrs: []slog.Attr{
			slog.String("meeting_uid", "m-1"),
			slog.String("bot_id", "bot-1"),
			slog.Int("attempt", 2),
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			for _, a := range tt.attrs {
				ctx = AppendCtx(ctx, a)
			}

			got, ok := ctx.Value(slogFields).([]slog.Attr)
			require.True(t, ok)
			require.Len(t, got, len(tt.attrs))
			for i := range tt.attrs {
				assert.Equal(t, tt.attrs[i].Key, got[i].Key)
				assert.Equal(t, tt.attrs[i].Value.String(), got[i].Value.String())
			}
		})
	}
}

func TestAppendCtx_NilParent(t *testing.T) {
	//nolint:staticcheck // nil parent is handled explicitly
	ctx := AppendCtx(nil, slog.String("k", "v"))
	require.NotNil(t, ctx)
	attrs, ok := ctx.Value(slogFields).([]slog.Attr)
	require.True(t, ok)
	assert.Len(t, attrs, 1)
}

func TestContextHandler_Handle(t *testing.T) {
	capture := &captureHandler{Handler: slog.NewJSONHandler(&bytes.Buffer{}, nil)}
	handler := contextHandler{Handler: capture}

	ctx := AppendCtx(context.Background(), slog.String("bot_id", "bot-7"))
	record := slog.NewRecord(time.Now(), slog.LevelInfo, "status change", 0)
	record.AddAttrs(slog.String("status", "recording"))

	require.NoError(t, handler.Handle(ctx, record))
	require.Len(t, capture.records, 1)

	attrs := recordAttrs(capture.records[0])
	assert.Equal(t, "bot-7", attrs["bot_id"])
	assert.Equal(t, "recording", attrs["status"])
}

func TestInitStructureLogConfig(t *testing.T) {
	tests := []struct {
		name      string
		logLevel  string
		addSource string
	}{
		{name: "defaults"},
		{name: "debug", logLevel: "debug"},
		{name: "warn", logLevel: "warn"},
		{name: "error", logLevel: "error", addSource: "true"},
		{name: "info", logLevel: "info", addSource: "1"},
		{name: "unknown level", logLevel: "verbose", addSource: "no"},
	}

	previous := slog.Default()
	t.Cleanup(func() { slog.SetDefault(previous) })

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("LOG_LEVEL", tt.logLevel)
			t.Setenv("LOG_ADD_SOURCE", tt.addSource)
			assert.NotNil(t, InitStructureLogConfig())
		})
	}
}

func TestPriorityCritical(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	logger.Error("settlement failed", PriorityCritical())

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "critical", line["priority"])
}

func TestComponent(t *testing.T) {
	var buf bytes.Buffer
	previous := slog.Default()
	t.Cleanup(func() { slog.SetDefault(previous) })
	slog.SetDefault(slog.New(slog.NewJSONHandler(&buf, nil)))

	Component("scheduler").Info("tick")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "scheduler", line["component"])
}
