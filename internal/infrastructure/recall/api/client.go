// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"math/rand"
	"net/http"
	"time"

	"github.com/linuxfoundation/lfx-v2-meeting-recorder/internal/logging"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// ClientAPI defines the Recall.ai bot API operations used by the recorder.
type ClientAPI interface {
	StartBot(ctx context.Context, request *StartBotRequest) (*BotResponse, error)
	GetBot(ctx context.Context, botID string) (*BotResponse, error)
	LeaveCall(ctx context.Context, botID string) error
	DeleteBot(ctx context.Context, botID string) error
	GetTranscript(ctx context.Context, botID string) (*TranscriptResponse, error)
	GetRecording(ctx context.Context, recordingID string) (*RecordingResponse, error)
	DeleteRecording(ctx context.Context, recordingID string) error
}

const (
	// BaseURL is the regional base URL for the Recall.ai API
	BaseURL = "https://us-west-2.recall.ai/api/v1"
	// DefaultClientTimeout is the default HTTP client timeout for Recall.ai requests
	DefaultClientTimeout = 30 * time.Second
	// Default retry configuration
	DefaultMaxRetries        = 3
	DefaultInitialBackoff    = 1 * time.Second
	DefaultMaxBackoff        = 30 * time.Second
	DefaultBackoffMultiplier = 2.0
)

// Client is a Recall.ai API client authenticated with an API token.
type Client struct {
	httpClient *http.Client
	config     Config
}

// Config holds the configuration for the Recall.ai client
type Config struct {
	APIKey string
	// Optional: override base URL for testing or another region
	BaseURL string
	// Optional: override timeout for HTTP requests
	Timeout time.Duration
	// Optional: retry configuration
	MaxRetries        int
	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
	BackoffMultiplier float64
}

// APIError is a non-2xx answer from the Recall.ai API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("recall API error (status %d): %s", e.StatusCode, e.Message)
}

// IsNotFound reports whether err is a 404 from the Recall.ai API.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// Ensure that Client implements ClientAPI
var _ ClientAPI = (*Client)(nil)

// NewClient creates a new Recall.ai API client
func NewClient(config Config) *Client {
	if config.BaseURL == "" {
		config.BaseURL = BaseURL
	}
	if config.Timeout == 0 {
		config.Timeout = DefaultClientTimeout
	}
	if config.MaxRetries == 0 {
		config.MaxRetries = DefaultMaxRetries
	}
	if config.InitialBackoff == 0 {
		config.InitialBackoff = DefaultInitialBackoff
	}
	if config.MaxBackoff == 0 {
		config.MaxBackoff = DefaultMaxBackoff
	}
	if config.BackoffMultiplier == 0 {
		config.BackoffMultiplier = DefaultBackoffMultiplier
	}

	return &Client{
		httpClient: &http.Client{
			Timeout:   config.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		config: config,
	}
}

// shouldRetry determines if an error or HTTP status code should be retried
func shouldRetry(statusCode int, err error) bool {
	if err != nil {
		return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
	}

	if statusCode >= 500 && statusCode < 600 {
		return true
	}

	// Recall rate limits bot creation per account
	return statusCode == http.StatusTooManyRequests
}

// calculateBackoff calculates the backoff duration for a retry attempt with jitter
func (c *Client) calculateBackoff(attempt int) time.Duration {
	if attempt <= 0 {
		return c.config.InitialBackoff
	}

	backoff := float64(c.config.InitialBackoff) * math.Pow(c.config.BackoffMultiplier, float64(attempt))
	if time.Duration(backoff) > c.config.MaxBackoff {
		backoff = float64(c.config.MaxBackoff)
	}

	// ±25% jitter
	jitter := backoff * 0.25 * (rand.Float64()*2 - 1)
	backoffWithJitter := time.Duration(backoff + jitter)
	if backoffWithJitter < c.config.InitialBackoff {
		backoffWithJitter = c.config.InitialBackoff
	}

	return backoffWithJitter
}

// doRequest performs a token-authenticated request with retry logic. The caller owns
// the returned response body.
func (c *Client) doRequest(ctx context.Context, method, path string, body any) (*http.Response, error) {
	jsonBody, err := c.marshalRequestBody(body)
	if err != nil {
		return nil, err
	}

	url := c.config.BaseURL + path
	var lastErr error
	var lastResp *http.Response

	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		req, err := c.createRequest(ctx, method, url, jsonBody)
		if err != nil {
			return nil, err
		}

		c.logRequestAttempt(ctx, method, path, attempt)

		startTime := time.Now()
		resp, err := c.httpClient.Do(req)
		duration := time.Since(startTime)

		if err == nil && resp.StatusCode < http.StatusInternalServerError && resp.StatusCode != http.StatusTooManyRequests {
			slog.DebugContext(ctx, "recall API request completed",
				"method", method,
				"path", path,
				"status", resp.StatusCode,
				"duration", duration.String(),
				"attempt", attempt+1,
			)
			return resp, nil
		}

		if lastResp != nil {
			_ = lastResp.Body.Close()
		}
		lastErr, lastResp = err, resp
		statusCode := 0
		if resp != nil {
			statusCode = resp.StatusCode
		}

		if !shouldRetry(statusCode, err) {
			slog.ErrorContext(ctx, "recall API request failed (not retryable)",
				"method", method,
				"path", path,
				"duration", duration.String(),
				"attempt", attempt+1,
				logging.ErrKey, err)
			break
		}

		if attempt == c.config.MaxRetries {
			slog.ErrorContext(ctx, "recall API request failed after all retries",
				"method", method,
				"path", path,
				"status", statusCode,
				"attempts", attempt+1,
				logging.ErrKey, err,
				logging.PriorityCritical())
			break
		}

		if err := c.handleRetryDelay(ctx, method, path, statusCode, attempt, err, lastResp); err != nil {
			return nil, err
		}
	}

	if lastErr != nil {
		if lastResp != nil {
			_ = lastResp.Body.Close()
		}
		return nil, fmt.Errorf("request failed after retries: %w", lastErr)
	}
	return lastResp, nil
}

// marshalRequestBody marshals the request body to JSON
func (c *Client) marshalRequestBody(body any) ([]byte, error) {
	if body == nil {
		return nil, nil
	}
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}
	return jsonBody, nil
}

// createRequest creates a new HTTP request carrying the API token
func (c *Client) createRequest(ctx context.Context, method, url string, jsonBody []byte) (*http.Request, error) {
	var bodyReader io.Reader
	if jsonBody != nil {
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Token "+c.config.APIKey)
	req.Header.Set("Accept", "application/json")
	if jsonBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

func (c *Client) logRequestAttempt(ctx context.Context, method, path string, attempt int) {
	if attempt == 0 {
		slog.DebugContext(ctx, "making recall API request",
			"method", method,
			"path", path,
			"max_retries", c.config.MaxRetries,
		)
		return
	}
	slog.DebugContext(ctx, "retrying recall API request",
		"method", method,
		"path", path,
		"attempt", attempt,
		"max_retries", c.config.MaxRetries,
	)
}

// handleRetryDelay waits out the backoff unless the context ends first
func (c *Client) handleRetryDelay(ctx context.Context, method, path string, statusCode int, attempt int, err error, lastResp *http.Response) error {
	backoff := c.calculateBackoff(attempt)
	slog.WarnContext(ctx, "recall API request failed, retrying",
		"method", method,
		"path", path,
		"status", statusCode,
		"attempt", attempt+1,
		"max_retries", c.config.MaxRetries,
		"backoff", backoff.String(),
		logging.ErrKey, err)

	select {
	case <-ctx.Done():
		if lastResp != nil {
			_ = lastResp.Body.Close()
		}
		return ctx.Err()
	case <-time.After(backoff):
		return nil
	}
}

// decodeResponse closes resp and decodes a 2xx JSON body into out, which may be nil.
func decodeResponse(resp *http.Response, out any) error {
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return parseErrorResponse(resp.StatusCode, body)
	}

	if out == nil || len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// parseErrorResponse extracts the message of a Recall.ai error body
func parseErrorResponse(statusCode int, body []byte) error {
	var errResp struct {
		Detail  string `json:"detail"`
		Message string `json:"message"`
	}
	message := string(body)
	if err := json.Unmarshal(body, &errResp); err == nil {
		switch {
		case errResp.Detail != "":
			message = errResp.Detail
		case errResp.Message != "":
			message = errResp.Message
		}
	}
	return &APIError{StatusCode: statusCode, Message: message}
}
