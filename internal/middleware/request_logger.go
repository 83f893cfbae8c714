// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package middleware

import (
	"log/slog"
	"net/http"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/linuxfoundation/lfx-v2-meeting-recorder/internal/logging"
)

// quietPaths are served without request logs.
var quietPaths = map[string]bool{
	"/livez":   true,
	"/readyz":  true,
	"/metrics": true,
}

// RequestLoggerMiddleware logs each HTTP request and its response. The request
// attributes are appended to the context so handler logs carry them too.
func RequestLoggerMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now().UTC()
			quiet := quietPaths[r.URL.Path]

			ctx := r.Context()
			ctx = logging.AppendCtx(ctx, slog.String("method", r.Method))
			ctx = logging.AppendCtx(ctx, slog.String("path", r.URL.Path))
			ctx = logging.AppendCtx(ctx, slog.String("query", r.URL.RawQuery))
			ctx = logging.AppendCtx(ctx, slog.String("remote_addr", r.RemoteAddr))
			ctx = logging.AppendCtx(ctx, slog.String("user_agent", r.UserAgent()))
			if reqID := chimiddleware.GetReqID(ctx); reqID != "" {
				ctx = logging.AppendCtx(ctx, slog.String("request_id", reqID))
			}
			r = r.WithContext(ctx)

			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

			if !quiet {
				slog.InfoContext(ctx, "HTTP request")
			}

			next.ServeHTTP(ww, r)

			if !quiet {
				status := ww.Status()
				if status == 0 {
					status = http.StatusOK
				}
				slog.InfoContext(ctx, "HTTP response",
					"status", status,
					"bytes", ww.BytesWritten(),
					"duration", time.Since(start).String(),
				)
			}
		})
	}
}
