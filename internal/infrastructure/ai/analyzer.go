// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

// Package ai turns meeting transcripts into summaries and task lists through an
// OpenAI-compatible chat completions API.
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/linuxfoundation/lfx-v2-meeting-recorder/internal/domain"
	"github.com/linuxfoundation/lfx-v2-meeting-recorder/internal/domain/models"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	// ProviderName names the analyzer in errors and logs
	ProviderName = "openai"
	// DefaultBaseURL is the OpenAI API root
	DefaultBaseURL = "https://api.openai.com/v1"
	// DefaultModel is used when no model is configured
	DefaultModel = "gpt-4o-mini"
	// DefaultMaxTokens bounds the completion length
	DefaultMaxTokens = 2000
	// DefaultTemperature keeps the JSON output stable
	DefaultTemperature = 0.3
	// DefaultClientTimeout is generous; long transcripts take a while
	DefaultClientTimeout = 120 * time.Second
)

const systemPrompt = `You analyze meeting transcripts. Respond with a single JSON object of the form
{"summary": string, "tasks": [{"title": string, "description": string, "priority": "urgent"|"high"|"medium"|"low", "due_date": "YYYY-MM-DD" or null, "assignee": string or null}]}.
The summary covers the main topics discussed, key decisions, important points raised and next steps.
The tasks list every actionable item, action item or to-do mentioned; use an empty list when there are none.`

// codeFence matches a markdown code block some models wrap JSON in.
var codeFence = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)\\s*```")

// Config holds the analyzer settings.
type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration
}

// Analyzer implements domain.AIAnalyzer.
type Analyzer struct {
	config     Config
	httpClient *http.Client
}

var _ domain.AIAnalyzer = (*Analyzer)(nil)

// NewAnalyzer creates an analyzer, filling unset settings with defaults.
func NewAnalyzer(config Config) *Analyzer {
	if config.BaseURL == "" {
		config.BaseURL = DefaultBaseURL
	}
	if config.Model == "" {
		config.Model = DefaultModel
	}
	if config.MaxTokens == 0 {
		config.MaxTokens = DefaultMaxTokens
	}
	if config.Temperature == 0 {
		config.Temperature = DefaultTemperature
	}
	if config.Timeout == 0 {
		config.Timeout = DefaultClientTimeout
	}

	return &Analyzer{
		config: config,
		httpClient: &http.Client{
			Timeout:   config.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string            `json:"model"`
	Messages       []chatMessage     `json:"messages"`
	MaxTokens      int               `json:"max_tokens,omitempty"`
	Temperature    float64           `json:"temperature"`
	ResponseFormat map[string]string `json:"response_format,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// analysis is the model's JSON answer. Dates stay strings until validated.
type analysis struct {
	Summary string `json:"summary"`
	Tasks   []struct {
		Title       string  `json:"title"`
		Description string  `json:"description"`
		Priority    string  `json:"priority"`
		DueDate     *string `json:"due_date"`
		Assignee    *string `json:"assignee"`
	} `json:"tasks"`
}

// Analyze produces the summary and extracted tasks of a transcript.
func (a *Analyzer) Analyze(ctx context.Context, transcript string) (*models.AnalysisResult, error) {
	if strings.TrimSpace(transcript) == "" {
		return nil, domain.NewValidationError("transcript is empty")
	}

	content, err := a.complete(ctx, transcript)
	if err != nil {
		return nil, domain.NewProviderUnavailableError(ProviderName, err)
	}

	result, err := parseAnalysis(content)
	if err != nil {
		return nil, domain.NewInternalError("failed to parse analysis", err)
	}

	slog.InfoContext(ctx, "transcript analyzed",
		"model", a.config.Model,
		"tasks", len(result.Tasks))
	return result, nil
}

func (a *Analyzer) complete(ctx context.Context, transcript string) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model: a.config.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: "Transcript:\n" + transcript},
		},
		MaxTokens:      a.config.MaxTokens,
		Temperature:    a.config.Temperature,
		ResponseFormat: map[string]string{"type": "json_object"},
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.config.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+a.config.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	var completion chatResponse
	if err := json.Unmarshal(raw, &completion); err != nil {
		return "", fmt.Errorf("unexpected response (status %d): %s", resp.StatusCode, string(raw))
	}
	if resp.StatusCode >= http.StatusBadRequest || completion.Error != nil {
		message := string(raw)
		if completion.Error != nil {
			message = completion.Error.Message
		}
		return "", fmt.Errorf("chat completion failed (status %d): %s", resp.StatusCode, message)
	}
	if len(completion.Choices) == 0 {
		return "", fmt.Errorf("chat completion returned no choices")
	}
	return completion.Choices[0].Message.Content, nil
}

// parseAnalysis decodes the model output, tolerating a markdown code fence. Tasks
// without a title are dropped and unknown priorities become medium.
func parseAnalysis(content string) (*models.AnalysisResult, error) {
	content = strings.TrimSpace(content)
	if m := codeFence.FindStringSubmatch(content); m != nil {
		content = m[1]
	}

	var parsed analysis
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return nil, err
	}

	result := &models.AnalysisResult{
		Summary: strings.TrimSpace(parsed.Summary),
		Tasks:   make([]models.ExtractedTask, 0, len(parsed.Tasks)),
	}
	for _, t := range parsed.Tasks {
		title := strings.TrimSpace(t.Title)
		if title == "" {
			continue
		}
		task := models.ExtractedTask{
			Title:       title,
			Description: strings.TrimSpace(t.Description),
			Priority:    string(models.NormalizeTaskPriority(strings.ToLower(t.Priority))),
		}
		if t.Assignee != nil && strings.TrimSpace(*t.Assignee) != "" {
			assignee := strings.TrimSpace(*t.Assignee)
			task.Assignee = &assignee
		}
		if t.DueDate != nil {
			task.DueDate = parseDueDate(*t.DueDate)
		}
		result.Tasks = append(result.Tasks, task)
	}
	return result, nil
}

func parseDueDate(value string) *time.Time {
	value = strings.TrimSpace(value)
	for _, layout := range []string{time.DateOnly, time.RFC3339} {
		if t, err := time.Parse(layout, value); err == nil {
			return &t
		}
	}
	return nil
}
