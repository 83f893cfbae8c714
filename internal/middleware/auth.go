// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package middleware

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/linuxfoundation/lfx-v2-meeting-recorder/internal/logging"
	"github.com/linuxfoundation/lfx-v2-meeting-recorder/pkg/constants"
)

// PrincipalParser resolves a bearer token to the calling user id.
type PrincipalParser interface {
	ParsePrincipal(ctx context.Context, token string, logger *slog.Logger) (string, error)
}

// AuthMiddleware rejects requests without a valid bearer token and stores the
// principal in the request context.
func AuthMiddleware(parser PrincipalParser) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			token := bearerToken(r.Header.Get(constants.AuthorizationHeader))

			principal, err := parser.ParsePrincipal(ctx, token, slog.Default())
			if err != nil || principal == "" {
				slog.WarnContext(ctx, "unauthorized request", logging.ErrKey, err)
				unauthorized(w)
				return
			}

			ctx = context.WithValue(ctx, constants.PrincipalContextID, principal)
			ctx = logging.AppendCtx(ctx, slog.String("principal", principal))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// PrincipalFromContext returns the authenticated user id.
func PrincipalFromContext(ctx context.Context) (string, bool) {
	principal, ok := ctx.Value(constants.PrincipalContextID).(string)
	return principal, ok && principal != ""
}

func bearerToken(header string) string {
	if len(header) > 7 && strings.EqualFold(header[:7], "bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return ""
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set(constants.ContentTypeHeader, constants.ContentTypeJSON)
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"message": "unauthorized"})
}
