// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

// Package calendar holds the calendar providers the sync engine reads events from.
package calendar

import (
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/linuxfoundation/lfx-v2-meeting-recorder/internal/domain"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// DefaultClientTimeout bounds every calendar provider HTTP request.
const DefaultClientTimeout = 30 * time.Second

// Registry resolves calendar providers by connection provider name.
type Registry struct {
	providers map[string]domain.CalendarProvider
}

var _ domain.CalendarProviderRegistry = (*Registry)(nil)

// NewRegistry registers providers under their Name. A later provider with the same
// name replaces an earlier one.
func NewRegistry(providers ...domain.CalendarProvider) *Registry {
	r := &Registry{providers: make(map[string]domain.CalendarProvider, len(providers))}
	for _, p := range providers {
		if _, exists := r.providers[p.Name()]; exists {
			slog.Warn("calendar provider registered twice", "provider", p.Name())
		}
		r.providers[p.Name()] = p
	}
	return r
}

// GetProvider returns the provider registered under name.
func (r *Registry) GetProvider(name string) (domain.CalendarProvider, error) {
	p, ok := r.providers[name]
	if !ok {
		return nil, domain.NewValidationError(fmt.Sprintf("unsupported calendar provider %q", name))
	}
	return p, nil
}

// Names lists the registered provider names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// newHTTPClient returns client, or a traced client with timeout when client is nil.
func newHTTPClient(client *http.Client, timeout time.Duration) *http.Client {
	if client != nil {
		return client
	}
	if timeout == 0 {
		timeout = DefaultClientTimeout
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}
}
