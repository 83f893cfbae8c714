// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package domain

import "errors"

// ErrorType represents the semantic category of an error
type ErrorType int

const (
	ErrorTypeValidation          ErrorType = iota // Input validation errors (400 Bad Request)
	ErrorTypeNotFound                             // Resource not found errors (404 Not Found)
	ErrorTypeConflict                             // Resource conflict errors (409 Conflict)
	ErrorTypeInternal                             // Internal server errors (500 Internal Server Error)
	ErrorTypeUnavailable                          // Upstream provider or store unavailable (503 Service Unavailable)
	ErrorTypePreconditionFailed                   // Operation not allowed in the current state (412 Precondition Failed)
	ErrorTypeInsufficientCredits                  // Not enough recording credits (402 Payment Required)
)

// String returns the name used in API error bodies and logs.
func (t ErrorType) String() string {
	switch t {
	case ErrorTypeValidation:
		return "validation_error"
	case ErrorTypeNotFound:
		return "not_found"
	case ErrorTypeConflict:
		return "conflict"
	case ErrorTypeUnavailable:
		return "provider_unavailable"
	case ErrorTypePreconditionFailed:
		return "precondition_failed"
	case ErrorTypeInsufficientCredits:
		return "insufficient_credits"
	default:
		return "internal_error"
	}
}

// DomainError represents an error with semantic type information
type DomainError struct {
	Type    ErrorType
	Message string
	Err     error // underlying error for wrapping
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// GetErrorType returns the semantic type of an error
func GetErrorType(err error) ErrorType {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type
	}
	return ErrorTypeInternal // default fallback
}

// IsErrorType reports whether err is a DomainError of the given type.
func IsErrorType(err error, errorType ErrorType) bool {
	return err != nil && GetErrorType(err) == errorType
}

// Error constructors for different types
func NewValidationError(message string, err ...error) *DomainError {
	return &DomainError{Type: ErrorTypeValidation, Message: message, Err: errors.Join(err...)}
}

func NewNotFoundError(message string, err ...error) *DomainError {
	return &DomainError{Type: ErrorTypeNotFound, Message: message, Err: errors.Join(err...)}
}

func NewConflictError(message string, err ...error) *DomainError {
	return &DomainError{Type: ErrorTypeConflict, Message: message, Err: errors.Join(err...)}
}

func NewInternalError(message string, err ...error) *DomainError {
	return &DomainError{Type: ErrorTypeInternal, Message: message, Err: errors.Join(err...)}
}

func NewUnavailableError(message string, err ...error) *DomainError {
	return &DomainError{Type: ErrorTypeUnavailable, Message: message, Err: errors.Join(err...)}
}

func NewPreconditionFailedError(message string, err ...error) *DomainError {
	return &DomainError{Type: ErrorTypePreconditionFailed, Message: message, Err: errors.Join(err...)}
}

func NewInsufficientCreditsError(message string, err ...error) *DomainError {
	return &DomainError{Type: ErrorTypeInsufficientCredits, Message: message, Err: errors.Join(err...)}
}

// NewProviderUnavailableError is returned when the recording, calendar, AI or payment
// provider could not serve a request.
func NewProviderUnavailableError(provider string, err ...error) *DomainError {
	return NewUnavailableError(provider+" provider unavailable", err...)
}

// NewNoActiveRecordingError is the precondition failure for stopping a meeting that
// has no bot attached.
func NewNoActiveRecordingError(meetingUID string) *DomainError {
	return NewPreconditionFailedError("no active recording for meeting " + meetingUID)
}
