package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// EventPruner is the Event Log maintenance side.
type EventPruner interface {
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

type fileCleaner interface {
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

// RetentionConfig bounds how long raw events and generated export files
// are kept.
type RetentionConfig struct {
	EventRetention time.Duration
	SweepInterval  time.Duration
	ExportTTL      time.Duration
}

// RetentionService periodically removes events past the retention window
// and expired export files.
type RetentionService struct {
	events EventPruner
	files  fileCleaner
	logger *zap.Logger
	cfg    RetentionConfig

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	started bool
}

// NewRetentionService constructs the sweeper.
func NewRetentionService(events EventPruner, files fileCleaner, cfg RetentionConfig, logger *zap.Logger) *RetentionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.EventRetention <= 0 {
		cfg.EventRetention = 90 * 24 * time.Hour
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = time.Hour
	}
	if cfg.ExportTTL <= 0 {
		cfg.ExportTTL = 24 * time.Hour
	}
	return &RetentionService{events: events, files: files, cfg: cfg, logger: logger}
}

// Start launches the sweep loop. Safe to call once.
func (s *RetentionService) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.started = true

	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.cfg.SweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-loopCtx.Done():
				return
			case <-ticker.C:
				s.Sweep(loopCtx)
			}
		}
	}()
}

// Stop halts the sweep loop and waits for it to exit.
func (s *RetentionService) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.cancel()
	done := s.done
	s.started = false
	s.mu.Unlock()
	<-done
}

// Sweep runs one retention pass.
func (s *RetentionService) Sweep(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-s.cfg.EventRetention)
	deleted, err := s.events.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		s.logger.Warn("event retention sweep failed", zap.Error(err))
	} else if deleted > 0 {
		s.logger.Info("expired events removed",
			zap.Int64("deleted", deleted), zap.Time("cutoff", cutoff))
	}

	if s.files != nil {
		removed, err := s.files.CleanupOlderThan(s.cfg.ExportTTL)
		if err != nil {
			s.logger.Warn("export cleanup failed", zap.Error(err))
		} else if len(removed) > 0 {
			s.logger.Info("expired export files removed", zap.Int("count", len(removed)))
		}
	}
}
