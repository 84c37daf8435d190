package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/voyagedesk/activity-api/internal/models"
	appErrors "github.com/voyagedesk/activity-api/pkg/errors"
)

// SessionStore describes the persistence layer required by TrackerService.
type SessionStore interface {
	Create(ctx context.Context, session *models.Session) error
	FindOpen(ctx context.Context, subjectID string) (*models.Session, error)
	Close(ctx context.Context, sessionID string, endedAt time.Time) error
	OpenSubjects(ctx context.Context) ([]string, error)
}

// EventAppender is the Event Log write side.
type EventAppender interface {
	Append(ctx context.Context, event *models.ActivityEvent) error
}

// SessionWatcher is notified when a subject starts or stops tracking so
// derived data (cached metrics) can follow the session lifecycle.
type SessionWatcher interface {
	Watch(subjectID string)
	Unwatch(subjectID string)
}

// TrackerService owns the start/record/stop lifecycle of tracking sessions.
// Operations for one subject serialize on a per-subject lock; different
// subjects never contend.
type TrackerService struct {
	sessions SessionStore
	events   EventAppender
	metrics  *MetricsService
	watcher  SessionWatcher
	logger   *zap.Logger
	now      func() time.Time

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewTrackerService constructs a tracker.
func NewTrackerService(sessions SessionStore, events EventAppender, metrics *MetricsService, logger *zap.Logger) *TrackerService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TrackerService{
		sessions: sessions,
		events:   events,
		metrics:  metrics,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
		locks:    make(map[string]*sync.Mutex),
	}
}

// SetWatcher attaches a session watcher. Must be called before the
// service handles requests.
func (s *TrackerService) SetWatcher(w SessionWatcher) {
	s.watcher = w
}

func (s *TrackerService) subjectLock(subjectID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[subjectID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[subjectID] = lock
	}
	return lock
}

// Start opens a tracking session for the subject. An already-open session
// is rotated: closed with ended_at = now, then replaced. Rotation is the
// resilient choice for crashed or forgotten sessions and is logged as a
// warning. The returned bool reports whether a rotation happened.
func (s *TrackerService) Start(ctx context.Context, subjectID string) (string, bool, error) {
	if subjectID == "" {
		return "", false, appErrors.Clone(appErrors.ErrValidation, "subject id required")
	}
	lock := s.subjectLock(subjectID)
	lock.Lock()
	defer lock.Unlock()

	now := s.now()
	rotated := false

	open, err := s.sessions.FindOpen(ctx, subjectID)
	if err != nil {
		return "", false, err
	}
	if open != nil {
		if err := s.sessions.Close(ctx, open.ID, now); err != nil {
			return "", false, err
		}
		rotated = true
		s.metrics.IncSessionsRotated()
		s.logger.Warn("rotated stale tracking session",
			zap.String("subject_id", subjectID),
			zap.String("session_id", open.ID),
			zap.Time("started_at", open.StartedAt))
	}

	session := &models.Session{SubjectID: subjectID, StartedAt: now}
	if err := s.sessions.Create(ctx, session); err != nil {
		return "", false, err
	}
	if s.watcher != nil {
		s.watcher.Watch(subjectID)
	}
	s.logger.Info("tracking started",
		zap.String("subject_id", subjectID),
		zap.String("session_id", session.ID))
	return session.ID, rotated, nil
}

// Stop closes the subject's open session. Stopping a subject that is not
// tracked is a no-op, not an error.
func (s *TrackerService) Stop(ctx context.Context, subjectID string) error {
	if subjectID == "" {
		return appErrors.Clone(appErrors.ErrValidation, "subject id required")
	}
	lock := s.subjectLock(subjectID)
	lock.Lock()
	defer lock.Unlock()

	open, err := s.sessions.FindOpen(ctx, subjectID)
	if err != nil {
		return err
	}
	if open == nil {
		return nil
	}
	if err := s.sessions.Close(ctx, open.ID, s.now()); err != nil {
		return err
	}
	if s.watcher != nil {
		s.watcher.Unwatch(subjectID)
	}
	s.logger.Info("tracking stopped",
		zap.String("subject_id", subjectID),
		zap.String("session_id", open.ID))
	return nil
}

// IsTracking reports whether the subject has an open session.
func (s *TrackerService) IsTracking(ctx context.Context, subjectID string) (bool, error) {
	open, err := s.sessions.FindOpen(ctx, subjectID)
	if err != nil {
		return false, err
	}
	return open != nil, nil
}

// CurrentSessionID returns the open session id for the subject, if any.
func (s *TrackerService) CurrentSessionID(ctx context.Context, subjectID string) (string, bool, error) {
	open, err := s.sessions.FindOpen(ctx, subjectID)
	if err != nil {
		return "", false, err
	}
	if open == nil {
		return "", false, nil
	}
	return open.ID, true, nil
}

// CurrentSubjects lists subjects with an open session.
func (s *TrackerService) CurrentSubjects(ctx context.Context) ([]string, error) {
	return s.sessions.OpenSubjects(ctx)
}

// Record stamps an incoming event with the current time and session and
// appends it to the event log. Recording with no open session fails with
// ErrNoActiveSession; the event is never silently dropped.
func (s *TrackerService) Record(ctx context.Context, subjectID string, eventType models.EventType, details models.EventDetails) (*models.ActivityEvent, error) {
	if !eventType.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown event type")
	}
	if err := details.Validate(eventType); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
	}

	lock := s.subjectLock(subjectID)
	lock.Lock()
	defer lock.Unlock()

	open, err := s.sessions.FindOpen(ctx, subjectID)
	if err != nil {
		return nil, err
	}
	if open == nil {
		return nil, appErrors.ErrNoActiveSession
	}

	event := &models.ActivityEvent{
		SubjectID: subjectID,
		SessionID: open.ID,
		Timestamp: s.now(),
		Type:      eventType,
		Details:   details,
	}
	if err := s.events.Append(ctx, event); err != nil {
		return nil, err
	}
	s.metrics.IncEventsRecorded(string(eventType))
	return event, nil
}
