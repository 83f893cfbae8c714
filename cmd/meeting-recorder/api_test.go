// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/linuxfoundation/lfx-v2-meeting-recorder/internal/domain"
	"github.com/linuxfoundation/lfx-v2-meeting-recorder/internal/domain/models"
	"github.com/linuxfoundation/lfx-v2-meeting-recorder/internal/service"
)

type mockMeetingService struct {
	mock.Mock
}

func (m *mockMeetingService) ServiceReady() bool {
	return m.Called().Bool(0)
}

func (m *mockMeetingService) CreateMeeting(ctx context.Context, req models.CreateMeetingRequest) (*models.Meeting, error) {
	args := m.Called(ctx, req)
	meeting, _ := args.Get(0).(*models.Meeting)
	return meeting, args.Error(1)
}

func (m *mockMeetingService) GetMeeting(ctx context.Context, meetingUID, userID string) (*models.Meeting, error) {
	args := m.Called(ctx, meetingUID, userID)
	meeting, _ := args.Get(0).(*models.Meeting)
	return meeting, args.Error(1)
}

func (m *mockMeetingService) ListMeetings(ctx context.Context, userID string) ([]*models.Meeting, error) {
	args := m.Called(ctx, userID)
	meetings, _ := args.Get(0).([]*models.Meeting)
	return meetings, args.Error(1)
}

func (m *mockMeetingService) StopMeeting(ctx context.Context, meetingUID, userID string) (*models.Meeting, error) {
	args := m.Called(ctx, meetingUID, userID)
	meeting, _ := args.Get(0).(*models.Meeting)
	return meeting, args.Error(1)
}

func (m *mockMeetingService) DeleteMeeting(ctx context.Context, meetingUID, userID string) error {
	return m.Called(ctx, meetingUID, userID).Error(0)
}

func (m *mockMeetingService) GetTranscript(ctx context.Context, meetingUID, userID string) (*models.Transcript, error) {
	args := m.Called(ctx, meetingUID, userID)
	transcript, _ := args.Get(0).(*models.Transcript)
	return transcript, args.Error(1)
}

func (m *mockMeetingService) GetSummary(ctx context.Context, meetingUID, userID string) (*models.Summary, error) {
	args := m.Called(ctx, meetingUID, userID)
	summary, _ := args.Get(0).(*models.Summary)
	return summary, args.Error(1)
}

func (m *mockMeetingService) ListTasks(ctx context.Context, meetingUID, userID string) ([]*models.Task, error) {
	args := m.Called(ctx, meetingUID, userID)
	tasks, _ := args.Get(0).([]*models.Task)
	return tasks, args.Error(1)
}

func (m *mockMeetingService) UpdateTask(ctx context.Context, taskUID, userID string, req models.UpdateTaskRequest) (*models.Task, error) {
	args := m.Called(ctx, taskUID, userID, req)
	task, _ := args.Get(0).(*models.Task)
	return task, args.Error(1)
}

func (m *mockMeetingService) DeleteTask(ctx context.Context, taskUID, userID string) error {
	return m.Called(ctx, taskUID, userID).Error(0)
}

type fakeCalendars struct {
	connections []*models.CalendarConnection
	connectReq  models.ConnectCalendarRequest
}

func (f *fakeCalendars) ListConnections(_ context.Context, _ string) ([]*models.CalendarConnection, error) {
	return f.connections, nil
}

func (f *fakeCalendars) ConnectCalendar(_ context.Context, req models.ConnectCalendarRequest) (*models.CalendarConnection, error) {
	f.connectReq = req
	return &models.CalendarConnection{
		UID:           "conn-9",
		UserID:        req.UserID,
		Provider:      req.Provider,
		CalendarEmail: req.CalendarEmail,
		FeedURL:       req.FeedURL,
		IsActive:      true,
	}, nil
}

func (f *fakeCalendars) DisconnectCalendar(_ context.Context, connectionUID, _ string) error {
	if connectionUID != "conn-1" {
		return domain.NewNotFoundError("calendar connection not found")
	}
	return nil
}

func (f *fakeCalendars) ListUpcomingEvents(_ context.Context, _ string) ([]*models.CalendarEvent, error) {
	return nil, nil
}

type fakeAutoJoinSettings struct{}

func (fakeAutoJoinSettings) GetSettings(_ context.Context, _ string) (*models.AutoJoinSettings, error) {
	return &models.AutoJoinSettings{AutoJoinEnabled: true, AutoJoinLeadTime: 2}, nil
}

func (fakeAutoJoinSettings) UpdateSettings(_ context.Context, _ string, settings models.AutoJoinSettings) (*models.AutoJoinSettings, error) {
	if err := settings.Validate(); err != nil {
		return nil, domain.NewValidationError(err.Error())
	}
	return &settings, nil
}

type fakeRetention struct{}

func (fakeRetention) DeleteRecordingNow(_ context.Context, _, _ string) error {
	return domain.NewPreconditionFailedError("meeting has no recording")
}

func (fakeRetention) UpdateUserRetention(_ context.Context, userID string, days int) (*models.User, error) {
	if days < 1 || days > models.MaxRetentionDays {
		return nil, domain.NewValidationError("retention days out of range")
	}
	return &models.User{ID: userID, RetentionDays: days}, nil
}

type fakeJobs struct {
	autoJoinErr error
}

func (f fakeJobs) TriggerAutoJoin(_ context.Context) (models.AutoJoinResult, error) {
	return models.AutoJoinResult{UsersScanned: 3, Joined: 1}, f.autoJoinErr
}

func (fakeJobs) TriggerSync(_ context.Context, userID string) ([]models.SyncResult, error) {
	return []models.SyncResult{{ConnectionUID: "conn-1", UserID: userID, Success: true, EventsSynced: 2}}, nil
}

type fakeWebhooks struct {
	body      string
	signature string
	result    *service.RecallWebhookResult
	err       error
}

func (f *fakeWebhooks) ProcessWebhook(_ context.Context, rawBody []byte, signature string) (*service.RecallWebhookResult, error) {
	f.body = string(rawBody)
	f.signature = signature
	return f.result, f.err
}

type tokenParser struct{}

func (tokenParser) ParsePrincipal(_ context.Context, token string, _ *slog.Logger) (string, error) {
	if token != "valid" {
		return "", errors.New("invalid token")
	}
	return "user-1", nil
}

type apiFixture struct {
	meetings  *mockMeetingService
	calendars *fakeCalendars
	webhooks  *fakeWebhooks
	jobs      fakeJobs
	readiness []readinessCheck
}

func newAPIFixture() *apiFixture {
	return &apiFixture{
		meetings:  &mockMeetingService{},
		calendars: &fakeCalendars{},
		webhooks:  &fakeWebhooks{},
	}
}

func (f *apiFixture) handler() http.Handler {
	return NewRecorderAPI(apiDependencies{
		Meetings:  f.meetings,
		Calendars: f.calendars,
		AutoJoin:  fakeAutoJoinSettings{},
		Retention: fakeRetention{},
		Jobs:      f.jobs,
		Webhooks:  f.webhooks,
		Auth:      tokenParser{},
		Readiness: f.readiness,
	}).Routes()
}

func (f *apiFixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Authorization", "Bearer valid")
	w := httptest.NewRecorder()
	f.handler().ServeHTTP(w, req)
	return w
}

func TestRecorderAPI_Health(t *testing.T) {
	t.Run("livez", func(t *testing.T) {
		f := newAPIFixture()
		w := httptest.NewRecorder()
		f.handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/livez", nil))
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "OK\n", w.Body.String())
	})

	tests := []struct {
		name         string
		ready        bool
		check        readinessCheck
		expectedCode int
	}{
		{name: "ready", ready: true, expectedCode: http.StatusOK},
		{name: "services not ready", ready: false, expectedCode: http.StatusServiceUnavailable},
		{
			name:         "dependency down",
			ready:        true,
			check:        func(context.Context) error { return errors.New("nats connection is not available") },
			expectedCode: http.StatusServiceUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newAPIFixture()
			f.meetings.On("ServiceReady").Return(tt.ready)
			if tt.check != nil {
				f.readiness = []readinessCheck{tt.check}
			}

			w := httptest.NewRecorder()
			f.handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
			assert.Equal(t, tt.expectedCode, w.Code)
		})
	}
}

func TestRecorderAPI_RequiresToken(t *testing.T) {
	f := newAPIFixture()

	req := httptest.NewRequest(http.MethodGet, "/meetings", nil)
	req.Header.Set("Authorization", "Bearer forged")
	w := httptest.NewRecorder()
	f.handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	f.meetings.AssertNotCalled(t, "ListMeetings", mock.Anything, mock.Anything)
}

func TestRecorderAPI_CreateMeeting(t *testing.T) {
	f := newAPIFixture()
	expectedReq := models.CreateMeetingRequest{
		UserID:     "user-1",
		Title:      "Weekly sync",
		MeetingURL: "https://meet.google.com/abc-defg-hij",
		Platform:   models.PlatformMeet,
	}
	f.meetings.On("CreateMeeting", mock.Anything, expectedReq).Return(&models.Meeting{
		UID:    "meeting-1",
		UserID: "user-1",
		Title:  "Weekly sync",
		BotID:  "bot-1",
		Status: models.MeetingStatusRecording,
	}, nil)

	w := f.do(t, http.MethodPost, "/meetings",
		`{"title":"Weekly sync","meeting_url":"https://meet.google.com/abc-defg-hij","platform":"meet"}`)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, w.Body.String(), `"uid":"meeting-1"`)
	assert.Contains(t, w.Body.String(), `"status":"recording"`)
	f.meetings.AssertExpectations(t)
}

func TestRecorderAPI_MeetingErrors(t *testing.T) {
	tests := []struct {
		name         string
		method       string
		path         string
		body         string
		setup        func(m *mockMeetingService)
		expectedCode int
		expectedBody string
	}{
		{
			name:   "insufficient credits",
			method: http.MethodPost,
			path:   "/meetings",
			body:   `{"title":"t","meeting_url":"https://zoom.us/j/1","platform":"zoom"}`,
			setup: func(m *mockMeetingService) {
				m.On("CreateMeeting", mock.Anything, mock.Anything).
					Return(nil, domain.NewInsufficientCreditsError("insufficient credits"))
			},
			expectedCode: http.StatusPaymentRequired,
			expectedBody: `{"code":"402","message":"insufficient credits"}`,
		},
		{
			name:         "malformed body",
			method:       http.MethodPost,
			path:         "/meetings",
			body:         `{"title":`,
			setup:        func(*mockMeetingService) {},
			expectedCode: http.StatusBadRequest,
		},
		{
			name:   "unknown meeting",
			method: http.MethodGet,
			path:   "/meetings/missing",
			setup: func(m *mockMeetingService) {
				m.On("GetMeeting", mock.Anything, "missing", "user-1").
					Return(nil, domain.NewNotFoundError("meeting not found"))
			},
			expectedCode: http.StatusNotFound,
			expectedBody: `{"code":"404","message":"meeting not found"}`,
		},
		{
			name:   "stop while processing",
			method: http.MethodPost,
			path:   "/meetings/meeting-1/stop",
			setup: func(m *mockMeetingService) {
				m.On("StopMeeting", mock.Anything, "meeting-1", "user-1").
					Return(nil, domain.NewNoActiveRecordingError("meeting-1"))
			},
			expectedCode: http.StatusPreconditionFailed,
			expectedBody: `{"code":"412","message":"no active recording for meeting meeting-1"}`,
		},
		{
			name:   "provider outage",
			method: http.MethodDelete,
			path:   "/meetings/meeting-1",
			setup: func(m *mockMeetingService) {
				m.On("DeleteMeeting", mock.Anything, "meeting-1", "user-1").
					Return(domain.NewUnavailableError("recording provider unavailable"))
			},
			expectedCode: http.StatusServiceUnavailable,
		},
		{
			name:   "internal errors are not echoed",
			method: http.MethodGet,
			path:   "/meetings",
			setup: func(m *mockMeetingService) {
				m.On("ListMeetings", mock.Anything, "user-1").
					Return(nil, fmt.Errorf("kv: bucket %q unreachable", "recorder-meetings"))
			},
			expectedCode: http.StatusInternalServerError,
			expectedBody: `{"code":"500","message":"internal server error"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newAPIFixture()
			tt.setup(f.meetings)

			w := f.do(t, tt.method, tt.path, tt.body)

			assert.Equal(t, tt.expectedCode, w.Code)
			if tt.expectedBody != "" {
				assert.JSONEq(t, tt.expectedBody, w.Body.String())
			}
		})
	}
}

func TestRecorderAPI_MeetingReads(t *testing.T) {
	f := newAPIFixture()
	f.meetings.On("ListMeetings", mock.Anything, "user-1").Return(nil, nil)
	f.meetings.On("DeleteTask", mock.Anything, "task-1", "user-1").Return(nil)
	f.meetings.On("ListTasks", mock.Anything, "meeting-1", "user-1").Return([]*models.Task{
		{UID: "task-1", MeetingUID: "meeting-1", Title: "Send notes", Priority: models.TaskPriorityHigh},
	}, nil)

	w := f.do(t, http.MethodGet, "/meetings", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())

	w = f.do(t, http.MethodGet, "/meetings/meeting-1/tasks", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"priority":"high"`)

	w = f.do(t, http.MethodDelete, "/tasks/task-1", "")
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestRecorderAPI_UpdateTask(t *testing.T) {
	f := newAPIFixture()
	completed := true
	f.meetings.On("UpdateTask", mock.Anything, "task-1", "user-1", models.UpdateTaskRequest{Completed: &completed}).
		Return(&models.Task{UID: "task-1", Title: "Send notes", Completed: true}, nil)

	w := f.do(t, http.MethodPatch, "/tasks/task-1", `{"completed":true}`)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"completed":true`)
	f.meetings.AssertExpectations(t)
}

func TestRecorderAPI_CalendarConnections(t *testing.T) {
	expiry := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	f := newAPIFixture()
	f.calendars.connections = []*models.CalendarConnection{{
		UID:           "conn-1",
		UserID:        "user-1",
		Provider:      models.CalendarProviderGoogle,
		CalendarEmail: "ada@example.com",
		AccessToken:   "ya29.secret",
		RefreshToken:  "1//refresh",
		TokenExpiry:   &expiry,
		IsActive:      true,
		SyncEnabled:   true,
	}}

	w := f.do(t, http.MethodGet, "/calendar/connections", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"uid":"conn-1"`)
	assert.NotContains(t, w.Body.String(), "ya29.secret")
	assert.NotContains(t, w.Body.String(), "1//refresh")

	w = f.do(t, http.MethodPost, "/calendar/connections",
		`{"provider":"ics","calendar_email":"ada@example.com","feed_url":"https://cal.example.com/feed.ics"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "user-1", f.calendars.connectReq.UserID)
	assert.NotContains(t, w.Body.String(), "feed.ics")

	w = f.do(t, http.MethodDelete, "/calendar/connections/conn-2", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRecorderAPI_CalendarSyncAndSettings(t *testing.T) {
	f := newAPIFixture()

	w := f.do(t, http.MethodPost, "/calendar/sync", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"user_id":"user-1"`)

	w = f.do(t, http.MethodGet, "/calendar/events", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())

	w = f.do(t, http.MethodGet, "/calendar/settings", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"auto_join_enabled":true,"auto_join_lead_time":2}`, w.Body.String())

	w = f.do(t, http.MethodPut, "/calendar/settings", `{"auto_join_enabled":true,"auto_join_lead_time":61}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRecorderAPI_TriggerAutoJoin(t *testing.T) {
	f := newAPIFixture()
	w := f.do(t, http.MethodPost, "/autojoin/trigger", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"users_scanned":3,"events_matched":0,"joined":1,"failed":0}`, w.Body.String())

	f.jobs.autoJoinErr = domain.NewConflictError("an auto-join scan is already running")
	w = f.do(t, http.MethodPost, "/autojoin/trigger", "")
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestRecorderAPI_Retention(t *testing.T) {
	f := newAPIFixture()

	w := f.do(t, http.MethodPut, "/settings/retention", `{"retention_days":30}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"retention_days":30}`, w.Body.String())

	w = f.do(t, http.MethodPut, "/settings/retention", `{"retention_days":0}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(t, http.MethodDelete, "/meetings/meeting-1/recording", "")
	assert.Equal(t, http.StatusPreconditionFailed, w.Code)
}

func TestRecorderAPI_RecallWebhook(t *testing.T) {
	body := `{"event":"bot.status_change","data":{"bot_id":"bot-1","status":{"code":"done"}}}`

	tests := []struct {
		name         string
		result       *service.RecallWebhookResult
		err          error
		expectedCode int
		expectedBody string
	}{
		{
			name:         "queued",
			result:       &service.RecallWebhookResult{Event: "bot.status_change", BotID: "bot-1", Queued: true},
			expectedCode: http.StatusOK,
			expectedBody: `{"received":true,"queued":true,"event":"bot.status_change"}`,
		},
		{
			name:         "bad signature",
			err:          domain.NewValidationError("invalid webhook signature", service.ErrInvalidWebhookSignature),
			expectedCode: http.StatusUnauthorized,
		},
		{
			name:         "missing bot id",
			err:          domain.NewValidationError("webhook data.bot_id is required"),
			expectedCode: http.StatusBadRequest,
		},
		{
			name:         "bus down",
			err:          domain.NewUnavailableError("failed to queue webhook event"),
			expectedCode: http.StatusServiceUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newAPIFixture()
			f.webhooks.result = tt.result
			f.webhooks.err = tt.err

			// The webhook route takes no bearer token.
			req := httptest.NewRequest(http.MethodPost, "/webhooks/recall", strings.NewReader(body))
			req.Header.Set("X-Recall-Signature", "abc123")
			w := httptest.NewRecorder()
			f.handler().ServeHTTP(w, req)

			assert.Equal(t, tt.expectedCode, w.Code)
			assert.Equal(t, body, f.webhooks.body)
			assert.Equal(t, "abc123", f.webhooks.signature)
			if tt.expectedBody != "" {
				assert.JSONEq(t, tt.expectedBody, w.Body.String())
			}
		})
	}
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		err      error
		expected int
	}{
		{domain.NewValidationError("bad"), http.StatusBadRequest},
		{domain.NewNotFoundError("missing"), http.StatusNotFound},
		{domain.NewConflictError("busy"), http.StatusConflict},
		{domain.NewInternalError("boom"), http.StatusInternalServerError},
		{domain.NewUnavailableError("down"), http.StatusServiceUnavailable},
		{domain.NewPreconditionFailedError("state"), http.StatusPreconditionFailed},
		{domain.NewInsufficientCreditsError("credits"), http.StatusPaymentRequired},
		{errors.New("plain"), http.StatusInternalServerError},
		{fmt.Errorf("wrapped: %w", service.ErrInvalidWebhookSignature), http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.expected, httpStatus(tt.err))
		})
	}
}
