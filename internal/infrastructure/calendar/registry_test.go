// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package calendar

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linuxfoundation/lfx-v2-meeting-recorder/internal/domain"
	"github.com/linuxfoundation/lfx-v2-meeting-recorder/internal/domain/mocks"
)

func TestNewRegistry_Empty(t *testing.T) {
	registry := NewRegistry()
	require.NotNil(t, registry)

	provider, err := registry.GetProvider("google")
	assert.Nil(t, provider)
	assert.True(t, domain.IsErrorType(err, domain.ErrorTypeValidation))
	assert.Empty(t, registry.Names())
}

func TestNewRegistry_LaterProviderWins(t *testing.T) {
	first := &mocks.MockCalendarProvider{ProviderName: "ics"}
	second := &mocks.MockCalendarProvider{ProviderName: "ics"}

	registry := NewRegistry(first, second)

	provider, err := registry.GetProvider("ics")
	require.NoError(t, err)
	assert.Same(t, second, provider)
	assert.Equal(t, []string{"ics"}, registry.Names())
}

func TestNewHTTPClient(t *testing.T) {
	custom := &http.Client{Timeout: time.Second}
	assert.Same(t, custom, newHTTPClient(custom, time.Minute))

	client := newHTTPClient(nil, 0)
	assert.Equal(t, DefaultClientTimeout, client.Timeout)
	assert.NotNil(t, client.Transport)

	assert.Equal(t, 5*time.Second, newHTTPClient(nil, 5*time.Second).Timeout)
}
