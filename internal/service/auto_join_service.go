// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/linuxfoundation/lfx-v2-meeting-recorder/internal/domain"
	"github.com/linuxfoundation/lfx-v2-meeting-recorder/internal/domain/models"
	"github.com/linuxfoundation/lfx-v2-meeting-recorder/internal/logging"
	"github.com/linuxfoundation/lfx-v2-meeting-recorder/internal/metrics"
	"github.com/linuxfoundation/lfx-v2-meeting-recorder/pkg/concurrent"
	"github.com/linuxfoundation/lfx-v2-meeting-recorder/pkg/constants"
)

// MeetingCreator starts a recorded meeting. MeetingLifecycleService implements it.
type MeetingCreator interface {
	CreateMeeting(ctx context.Context, req models.CreateMeetingRequest) (*models.Meeting, error)
}

// errAlreadyJoined marks an event another scan joined first.
var errAlreadyJoined = errors.New("calendar event already joined")

// AutoJoinService starts bots for calendar events that are about to begin.
type AutoJoinService struct {
	AccountRepository    domain.AccountRepository
	ConnectionRepository domain.CalendarConnectionRepository
	EventRepository      domain.CalendarEventRepository
	Meetings             MeetingCreator
	Metrics              *metrics.Metrics
	Config               ServiceConfig
	Clock                Clock

	workerPool *concurrent.WorkerPool
}

// NewAutoJoinService creates a new AutoJoinService.
func NewAutoJoinService(
	accountRepository domain.AccountRepository,
	connectionRepository domain.CalendarConnectionRepository,
	eventRepository domain.CalendarEventRepository,
	meetings MeetingCreator,
	m *metrics.Metrics,
	config ServiceConfig,
) *AutoJoinService {
	return &AutoJoinService{
		AccountRepository:    accountRepository,
		ConnectionRepository: connectionRepository,
		EventRepository:      eventRepository,
		Meetings:             meetings,
		Metrics:              m,
		Config:               config,
		workerPool:           concurrent.NewWorkerPool(config.workers()),
	}
}

// ServiceReady checks if the service is ready for use.
func (s *AutoJoinService) ServiceReady() bool {
	return s.AccountRepository != nil &&
		s.ConnectionRepository != nil &&
		s.EventRepository != nil &&
		s.Meetings != nil
}

func (s *AutoJoinService) pool() *concurrent.WorkerPool {
	if s.workerPool == nil {
		s.workerPool = concurrent.NewWorkerPool(s.Config.workers())
	}
	return s.workerPool
}

// RunAutoJoin scans every auto-join user for events starting in
// [now+lead, now+lead+1m) and starts a bot for each. An event is marked joined whether
// or not its bot started, so a failing event is not retried every minute.
func (s *AutoJoinService) RunAutoJoin(ctx context.Context) (models.AutoJoinResult, error) {
	var result models.AutoJoinResult

	users, err := s.AccountRepository.ListAutoJoinUsers(ctx)
	if err != nil {
		return result, err
	}
	result.UsersScanned = len(users)

	now := utcNow(s.Clock)
	var mu sync.Mutex

	errs := concurrent.ForEach(ctx, s.pool(), users, func(ctx context.Context, user *models.User) error {
		userResult, err := s.scanUser(ctx, user, now)

		mu.Lock()
		result.EventsMatched += userResult.EventsMatched
		result.Joined += userResult.Joined
		result.Failed += userResult.Failed
		mu.Unlock()

		if err != nil {
			slog.WarnContext(ctx, "auto-join scan failed for user", logging.ErrKey, err, "user_id", user.ID)
		}
		return err
	})

	slog.InfoContext(ctx, "auto-join scan finished",
		"users", result.UsersScanned,
		"matched", result.EventsMatched,
		"joined", result.Joined,
		"failed", result.Failed,
		"user_errors", len(errs))
	return result, nil
}

// scanUser joins the user's events that start inside the user's lead-time window.
func (s *AutoJoinService) scanUser(ctx context.Context, user *models.User, now time.Time) (models.AutoJoinResult, error) {
	var result models.AutoJoinResult
	ctx = logging.AppendCtx(ctx, slog.String("user_id", user.ID))

	from := now.Add(time.Duration(user.AutoJoinLeadTime) * time.Minute)
	to := from.Add(constants.AutoJoinWindow)

	connections, err := s.ConnectionRepository.ListConnectionsByUser(ctx, user.ID)
	if err != nil {
		return result, err
	}
	active := make(map[string]bool, len(connections))
	for _, connection := range connections {
		active[connection.UID] = connection.IsActive
	}

	events, err := s.EventRepository.ListEventsByUser(ctx, user.ID)
	if err != nil {
		return result, err
	}

	for _, event := range events {
		if !active[event.ConnectionUID] || !event.Joinable() || !event.StartsWithin(from, to) {
			continue
		}
		result.EventsMatched++

		joined, err := s.joinEvent(ctx, user, event)
		switch {
		case errors.Is(err, errAlreadyJoined):
			result.EventsMatched--
			s.Metrics.AutoJoin(metrics.OutcomeSkipped)
		case err != nil || !joined:
			result.Failed++
			s.Metrics.AutoJoin(metrics.OutcomeError)
		default:
			result.Joined++
			s.Metrics.AutoJoin(metrics.OutcomeSuccess)
		}
	}
	return result, nil
}

// joinEvent claims event by marking it joined, then starts its meeting and links the
// meeting to the event. The claim is a revision-checked write, so of two concurrent scans
// only one starts a bot. A failed start keeps the mark. It reports whether a bot was started.
func (s *AutoJoinService) joinEvent(ctx context.Context, user *models.User, event *models.CalendarEvent) (bool, error) {
	ctx = logging.AppendCtx(ctx, slog.String("event_uid", event.UID))

	claimed, _, err := s.mutateEvent(ctx, event.UID, func(e *models.CalendarEvent) (bool, error) {
		if e.BotJoined {
			return false, errAlreadyJoined
		}
		e.BotJoined = true
		e.UpdatedAt = utcNow(s.Clock)
		return true, nil
	})
	if err != nil {
		return false, err
	}

	meeting, err := s.Meetings.CreateMeeting(ctx, models.CreateMeetingRequest{
		UserID:           user.ID,
		Title:            claimed.Title,
		Description:      claimed.Description,
		MeetingURL:       claimed.MeetingURL,
		Platform:         claimed.Platform,
		CalendarEventUID: claimed.UID,
	})
	if err != nil {
		slog.WarnContext(ctx, "auto-join failed to start meeting", logging.ErrKey, err)
		return false, err
	}

	_, _, err = s.mutateEvent(ctx, event.UID, func(e *models.CalendarEvent) (bool, error) {
		if e.MeetingUID == meeting.UID {
			return false, nil
		}
		e.MeetingUID = meeting.UID
		e.UpdatedAt = utcNow(s.Clock)
		return true, nil
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to link meeting to calendar event",
			logging.ErrKey, err, "meeting_uid", meeting.UID, logging.PriorityCritical())
	}

	slog.InfoContext(ctx, "auto-joined calendar event", "meeting_uid", meeting.UID)
	return true, nil
}

func (s *AutoJoinService) mutateEvent(ctx context.Context, eventUID string, fn func(*models.CalendarEvent) (bool, error)) (*models.CalendarEvent, bool, error) {
	return mutateWithRevision(ctx, s.EventRepository.GetEventWithRevision, s.EventRepository.UpdateEvent, eventUID, fn)
}

// GetSettings returns the user's auto-join preferences.
func (s *AutoJoinService) GetSettings(ctx context.Context, userID string) (*models.AutoJoinSettings, error) {
	user, err := s.AccountRepository.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &models.AutoJoinSettings{
		AutoJoinEnabled:  user.AutoJoinEnabled,
		AutoJoinLeadTime: user.AutoJoinLeadTime,
	}, nil
}

// UpdateSettings stores the user's auto-join preferences.
func (s *AutoJoinService) UpdateSettings(ctx context.Context, userID string, settings models.AutoJoinSettings) (*models.AutoJoinSettings, error) {
	if err := settings.Validate(); err != nil {
		return nil, domain.NewValidationError(err.Error())
	}

	user, err := s.AccountRepository.UpdateAutoJoinSettings(ctx, userID, settings)
	if err != nil {
		return nil, err
	}
	return &models.AutoJoinSettings{
		AutoJoinEnabled:  user.AutoJoinEnabled,
		AutoJoinLeadTime: user.AutoJoinLeadTime,
	}, nil
}
