// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/linuxfoundation/lfx-v2-meeting-recorder/internal/domain"
	"github.com/linuxfoundation/lfx-v2-meeting-recorder/internal/domain/models"
	"github.com/linuxfoundation/lfx-v2-meeting-recorder/internal/logging"
	"github.com/linuxfoundation/lfx-v2-meeting-recorder/internal/metrics"
	"github.com/linuxfoundation/lfx-v2-meeting-recorder/internal/middleware"
	"github.com/linuxfoundation/lfx-v2-meeting-recorder/internal/service"
	"github.com/linuxfoundation/lfx-v2-meeting-recorder/pkg/constants"
)

// maxRequestBodyBytes caps JSON request bodies of the API.
const maxRequestBodyBytes = 1 << 20

type meetingService interface {
	ServiceReady() bool
	CreateMeeting(ctx context.Context, req models.CreateMeetingRequest) (*models.Meeting, error)
	GetMeeting(ctx context.Context, meetingUID, userID string) (*models.Meeting, error)
	ListMeetings(ctx context.Context, userID string) ([]*models.Meeting, error)
	StopMeeting(ctx context.Context, meetingUID, userID string) (*models.Meeting, error)
	DeleteMeeting(ctx context.Context, meetingUID, userID string) error
	GetTranscript(ctx context.Context, meetingUID, userID string) (*models.Transcript, error)
	GetSummary(ctx context.Context, meetingUID, userID string) (*models.Summary, error)
	ListTasks(ctx context.Context, meetingUID, userID string) ([]*models.Task, error)
	UpdateTask(ctx context.Context, taskUID, userID string, req models.UpdateTaskRequest) (*models.Task, error)
	DeleteTask(ctx context.Context, taskUID, userID string) error
}

type calendarService interface {
	ListConnections(ctx context.Context, userID string) ([]*models.CalendarConnection, error)
	ConnectCalendar(ctx context.Context, req models.ConnectCalendarRequest) (*models.CalendarConnection, error)
	DisconnectCalendar(ctx context.Context, connectionUID, userID string) error
	ListUpcomingEvents(ctx context.Context, userID string) ([]*models.CalendarEvent, error)
}

type autoJoinSettingsService interface {
	GetSettings(ctx context.Context, userID string) (*models.AutoJoinSettings, error)
	UpdateSettings(ctx context.Context, userID string, settings models.AutoJoinSettings) (*models.AutoJoinSettings, error)
}

type retentionService interface {
	DeleteRecordingNow(ctx context.Context, meetingUID, userID string) error
	UpdateUserRetention(ctx context.Context, userID string, days int) (*models.User, error)
}

type jobTrigger interface {
	TriggerAutoJoin(ctx context.Context) (models.AutoJoinResult, error)
	TriggerSync(ctx context.Context, userID string) ([]models.SyncResult, error)
}

type webhookProcessor interface {
	ProcessWebhook(ctx context.Context, rawBody []byte, signature string) (*service.RecallWebhookResult, error)
}

// readinessCheck reports why the recorder cannot take traffic.
type readinessCheck func(ctx context.Context) error

// RecorderAPI serves the recorder's HTTP API.
type RecorderAPI struct {
	meetings  meetingService
	calendars calendarService
	autoJoin  autoJoinSettingsService
	retention retentionService
	jobs      jobTrigger
	webhooks  webhookProcessor
	auth      middleware.PrincipalParser
	metrics   *metrics.Metrics
	readiness []readinessCheck
}

// apiDependencies are the collaborators of [RecorderAPI].
type apiDependencies struct {
	Meetings  meetingService
	Calendars calendarService
	AutoJoin  autoJoinSettingsService
	Retention retentionService
	Jobs      jobTrigger
	Webhooks  webhookProcessor
	Auth      middleware.PrincipalParser
	Metrics   *metrics.Metrics
	Readiness []readinessCheck
}

// NewRecorderAPI creates a new RecorderAPI.
func NewRecorderAPI(deps apiDependencies) *RecorderAPI {
	return &RecorderAPI{
		meetings:  deps.Meetings,
		calendars: deps.Calendars,
		autoJoin:  deps.AutoJoin,
		retention: deps.Retention,
		jobs:      deps.Jobs,
		webhooks:  deps.Webhooks,
		auth:      deps.Auth,
		metrics:   deps.Metrics,
		readiness: deps.Readiness,
	}
}

// Routes builds the router. Every route except health, metrics and the provider
// webhook requires a bearer token.
func (a *RecorderAPI) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLoggerMiddleware())
	r.Use(chimiddleware.Recoverer)
	r.Use(a.metrics.Middleware)

	r.Get("/livez", a.Livez)
	r.Get("/readyz", a.Readyz)
	r.Method(http.MethodGet, "/metrics", a.metrics.Handler())

	r.With(middleware.WebhookBodyCaptureMiddleware(middleware.DefaultMaxWebhookBodyBytes)).
		Post("/webhooks/recall", a.RecallWebhook)

	r.Group(func(r chi.Router) {
		r.Use(middleware.AuthMiddleware(a.auth))

		r.Route("/meetings", func(r chi.Router) {
			r.Post("/", a.CreateMeeting)
			r.Get("/", a.ListMeetings)
			r.Route("/{uid}", func(r chi.Router) {
				r.Get("/", a.GetMeeting)
				r.Delete("/", a.DeleteMeeting)
				r.Post("/stop", a.StopMeeting)
				r.Get("/transcript", a.GetTranscript)
				r.Get("/summary", a.GetSummary)
				r.Get("/tasks", a.ListTasks)
				r.Delete("/recording", a.DeleteRecording)
			})
		})

		r.Patch("/tasks/{uid}", a.UpdateTask)
		r.Delete("/tasks/{uid}", a.DeleteTask)

		r.Route("/calendar", func(r chi.Router) {
			r.Get("/connections", a.ListConnections)
			r.Post("/connections", a.ConnectCalendar)
			r.Delete("/connections/{uid}", a.DisconnectCalendar)
			r.Post("/sync", a.SyncCalendars)
			r.Get("/events", a.ListUpcomingEvents)
			r.Get("/settings", a.GetAutoJoinSettings)
			r.Put("/settings", a.UpdateAutoJoinSettings)
		})

		r.Post("/autojoin/trigger", a.TriggerAutoJoin)
		r.Put("/settings/retention", a.UpdateRetention)
	})

	return r
}

// Livez checks if the service is alive.
func (a *RecorderAPI) Livez(w http.ResponseWriter, _ *http.Request) {
	// This always returns as long as the service is still running. As this
	// endpoint is expected to be used as a Kubernetes liveness check, this
	// service must likewise self-detect non-recoverable errors and
	// self-terminate.
	writeText(w, http.StatusOK, "OK\n")
}

// Readyz checks if the service is able to take inbound requests.
func (a *RecorderAPI) Readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if a.meetings == nil || !a.meetings.ServiceReady() {
		writeError(w, r, domain.NewUnavailableError("service unavailable"))
		return
	}
	for _, check := range a.readiness {
		if err := check(ctx); err != nil {
			slog.WarnContext(ctx, "readiness check failed", logging.ErrKey, err)
			writeError(w, r, domain.NewUnavailableError("service unavailable", err))
			return
		}
	}
	writeText(w, http.StatusOK, "OK\n")
}

// RecallWebhook accepts a provider webhook and queues it.
func (a *RecorderAPI) RecallWebhook(w http.ResponseWriter, r *http.Request) {
	body, ok := middleware.GetRawBodyFromContext(r.Context())
	if !ok {
		writeError(w, r, domain.NewValidationError("missing request body"))
		return
	}

	result, err := a.webhooks.ProcessWebhook(r.Context(), body, r.Header.Get(constants.RecallSignatureHeader))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, webhookResponse{
		Received: true,
		Queued:   result.Queued,
		Event:    result.Event,
	})
}

func (a *RecorderAPI) CreateMeeting(w http.ResponseWriter, r *http.Request) {
	var req models.CreateMeetingRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	req.UserID = principal(r)

	meeting, err := a.meetings.CreateMeeting(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, meeting)
}

func (a *RecorderAPI) ListMeetings(w http.ResponseWriter, r *http.Request) {
	meetings, err := a.meetings.ListMeetings(r.Context(), principal(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(meetings))
}

func (a *RecorderAPI) GetMeeting(w http.ResponseWriter, r *http.Request) {
	meeting, err := a.meetings.GetMeeting(r.Context(), chi.URLParam(r, "uid"), principal(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, meeting)
}

func (a *RecorderAPI) DeleteMeeting(w http.ResponseWriter, r *http.Request) {
	if err := a.meetings.DeleteMeeting(r.Context(), chi.URLParam(r, "uid"), principal(r)); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *RecorderAPI) StopMeeting(w http.ResponseWriter, r *http.Request) {
	meeting, err := a.meetings.StopMeeting(r.Context(), chi.URLParam(r, "uid"), principal(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, meeting)
}

func (a *RecorderAPI) GetTranscript(w http.ResponseWriter, r *http.Request) {
	transcript, err := a.meetings.GetTranscript(r.Context(), chi.URLParam(r, "uid"), principal(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, transcript)
}

func (a *RecorderAPI) GetSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := a.meetings.GetSummary(r.Context(), chi.URLParam(r, "uid"), principal(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (a *RecorderAPI) ListTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := a.meetings.ListTasks(r.Context(), chi.URLParam(r, "uid"), principal(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(tasks))
}

func (a *RecorderAPI) UpdateTask(w http.ResponseWriter, r *http.Request) {
	var req models.UpdateTaskRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	task, err := a.meetings.UpdateTask(r.Context(), chi.URLParam(r, "uid"), principal(r), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (a *RecorderAPI) DeleteTask(w http.ResponseWriter, r *http.Request) {
	if err := a.meetings.DeleteTask(r.Context(), chi.URLParam(r, "uid"), principal(r)); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *RecorderAPI) DeleteRecording(w http.ResponseWriter, r *http.Request) {
	if err := a.retention.DeleteRecordingNow(r.Context(), chi.URLParam(r, "uid"), principal(r)); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *RecorderAPI) ListConnections(w http.ResponseWriter, r *http.Request) {
	connections, err := a.calendars.ListConnections(r.Context(), principal(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	response := make([]connectionResponse, 0, len(connections))
	for _, conn := range connections {
		response = append(response, newConnectionResponse(conn))
	}
	writeJSON(w, http.StatusOK, response)
}

func (a *RecorderAPI) ConnectCalendar(w http.ResponseWriter, r *http.Request) {
	var req models.ConnectCalendarRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	req.UserID = principal(r)

	conn, err := a.calendars.ConnectCalendar(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newConnectionResponse(conn))
}

func (a *RecorderAPI) DisconnectCalendar(w http.ResponseWriter, r *http.Request) {
	if err := a.calendars.DisconnectCalendar(r.Context(), chi.URLParam(r, "uid"), principal(r)); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *RecorderAPI) SyncCalendars(w http.ResponseWriter, r *http.Request) {
	results, err := a.jobs.TriggerSync(r.Context(), principal(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, syncResponse{Results: nonNil(results)})
}

func (a *RecorderAPI) ListUpcomingEvents(w http.ResponseWriter, r *http.Request) {
	events, err := a.calendars.ListUpcomingEvents(r.Context(), principal(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(events))
}

func (a *RecorderAPI) GetAutoJoinSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := a.autoJoin.GetSettings(r.Context(), principal(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

func (a *RecorderAPI) UpdateAutoJoinSettings(w http.ResponseWriter, r *http.Request) {
	var req models.AutoJoinSettings
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	settings, err := a.autoJoin.UpdateSettings(r.Context(), principal(r), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

func (a *RecorderAPI) TriggerAutoJoin(w http.ResponseWriter, r *http.Request) {
	result, err := a.jobs.TriggerAutoJoin(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (a *RecorderAPI) UpdateRetention(w http.ResponseWriter, r *http.Request) {
	var req retentionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	user, err := a.retention.UpdateUserRetention(r.Context(), principal(r), req.RetentionDays)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, retentionRequest{RetentionDays: user.RetentionDays})
}

type webhookResponse struct {
	Received bool   `json:"received"`
	Queued   bool   `json:"queued"`
	Event    string `json:"event,omitempty"`
}

type syncResponse struct {
	Results []models.SyncResult `json:"results"`
}

type retentionRequest struct {
	RetentionDays int `json:"retention_days"`
}

// connectionResponse is a calendar connection without its credentials.
type connectionResponse struct {
	UID           string     `json:"uid"`
	Provider      string     `json:"provider"`
	CalendarEmail string     `json:"calendar_email"`
	CalendarID    string     `json:"calendar_id,omitempty"`
	IsActive      bool       `json:"is_active"`
	SyncEnabled   bool       `json:"sync_enabled"`
	LastSyncAt    *time.Time `json:"last_sync_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

func newConnectionResponse(conn *models.CalendarConnection) connectionResponse {
	return connectionResponse{
		UID:           conn.UID,
		Provider:      conn.Provider,
		CalendarEmail: conn.CalendarEmail,
		CalendarID:    conn.CalendarID,
		IsActive:      conn.IsActive,
		SyncEnabled:   conn.SyncEnabled,
		LastSyncAt:    conn.LastSyncAt,
		CreatedAt:     conn.CreatedAt,
	}
}

// errorResponse is the body of every error reply.
type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// httpStatus maps an error to its HTTP status code.
func httpStatus(err error) int {
	if errors.Is(err, service.ErrInvalidWebhookSignature) {
		return http.StatusUnauthorized
	}

	switch domain.GetErrorType(err) {
	case domain.ErrorTypeValidation:
		return http.StatusBadRequest
	case domain.ErrorTypeNotFound:
		return http.StatusNotFound
	case domain.ErrorTypeConflict:
		return http.StatusConflict
	case domain.ErrorTypeUnavailable:
		return http.StatusServiceUnavailable
	case domain.ErrorTypePreconditionFailed:
		return http.StatusPreconditionFailed
	case domain.ErrorTypeInsufficientCredits:
		return http.StatusPaymentRequired
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := httpStatus(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		slog.ErrorContext(r.Context(), "request failed", logging.ErrKey, err)
		message = "internal server error"
	}
	writeJSON(w, status, errorResponse{Code: strconv.Itoa(status), Message: message})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set(constants.ContentTypeHeader, constants.ContentTypeJSON)
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("error encoding response", logging.ErrKey, err)
	}
}

func writeText(w http.ResponseWriter, status int, body string) {
	w.Header().Set(constants.ContentTypeHeader, "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(v); err != nil {
		return domain.NewValidationError("invalid request body", err)
	}
	return nil
}

func principal(r *http.Request) string {
	userID, _ := middleware.PrincipalFromContext(r.Context())
	return userID
}

// nonNil keeps empty lists encoding as [] rather than null.
func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
