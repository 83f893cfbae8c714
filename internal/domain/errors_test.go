// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDomainError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *DomainError
		expected string
	}{
		{
			name:     "message only",
			err:      NewValidationError("title is required"),
			expected: "title is required",
		},
		{
			name:     "message with cause",
			err:      NewUnavailableError("recall provider unavailable", errors.New("connection refused")),
			expected: "recall provider unavailable: connection refused",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.err.Error())
		})
	}
}

func TestGetErrorType(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected ErrorType
	}{
		{"validation", NewValidationError("bad"), ErrorTypeValidation},
		{"not found", NewNotFoundError("missing"), ErrorTypeNotFound},
		{"conflict", NewConflictError("modified"), ErrorTypeConflict},
		{"unavailable", NewProviderUnavailableError("recall"), ErrorTypeUnavailable},
		{"precondition failed", NewPreconditionFailedError("not recording"), ErrorTypePreconditionFailed},
		{"no active recording", NewNoActiveRecordingError("m-1"), ErrorTypePreconditionFailed},
		{"insufficient credits", NewInsufficientCreditsError("no credits"), ErrorTypeInsufficientCredits},
		{"wrapped domain error", fmt.Errorf("outer: %w", NewNotFoundError("missing")), ErrorTypeNotFound},
		{"plain error defaults to internal", errors.New("boom"), ErrorTypeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, GetErrorType(tt.err))
			assert.True(t, IsErrorType(tt.err, tt.expected))
		})
	}
}

func TestIsErrorType_Nil(t *testing.T) {
	assert.False(t, IsErrorType(nil, ErrorTypeInternal))
}

func TestDomainError_Unwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := NewInternalError("failed", cause)

	assert.ErrorIs(t, err, cause)
}

func TestErrorType_String(t *testing.T) {
	assert.Equal(t, "provider_unavailable", ErrorTypeUnavailable.String())
	assert.Equal(t, "insufficient_credits", ErrorTypeInsufficientCredits.String())
	assert.Equal(t, "internal_error", ErrorType(99).String())
}
