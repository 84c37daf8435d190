package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/voyagedesk/activity-api/internal/models"
)

// RefreshFunc receives the latest metrics for a subject. It is never called
// with results from a superseded refresh.
type RefreshFunc func(subjectID string, metrics *models.ProductivityMetrics)

// Refresher periodically recomputes a subject's current-day productivity
// metrics with last-request-wins semantics: triggering a refresh cancels
// any in-flight computation for that subject, and a stale result that
// loses the race is discarded rather than delivered out of order.
type Refresher struct {
	aggregator MetricsComputer
	interval   time.Duration
	window     time.Duration
	logger     *zap.Logger
	deliver    RefreshFunc

	mu      sync.Mutex
	base    context.Context
	entries map[string]*refreshEntry
}

type refreshEntry struct {
	cancel     context.CancelFunc
	generation uint64
	ticker     *time.Ticker
	stop       chan struct{}
}

// NewRefresher constructs a refresher. window is the trailing range each
// refresh recomputes.
func NewRefresher(aggregator MetricsComputer, interval, window time.Duration, deliver RefreshFunc, logger *zap.Logger) *Refresher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if window <= 0 {
		window = 24 * time.Hour
	}
	return &Refresher{
		aggregator: aggregator,
		interval:   interval,
		window:     window,
		logger:     logger,
		deliver:    deliver,
		base:       context.Background(),
		entries:    make(map[string]*refreshEntry),
	}
}

// Run anchors all refresh work to the given context. When ctx is canceled
// every watch stops and in-flight computations are abandoned.
func (r *Refresher) Run(ctx context.Context) {
	r.mu.Lock()
	r.base = ctx
	r.mu.Unlock()

	go func() {
		<-ctx.Done()
		r.mu.Lock()
		subjects := make([]string, 0, len(r.entries))
		for subjectID := range r.entries {
			subjects = append(subjects, subjectID)
		}
		r.mu.Unlock()
		for _, subjectID := range subjects {
			r.Unwatch(subjectID)
		}
	}()
}

// Watch begins periodic refreshes for a subject. Watching an already
// watched subject restarts its schedule.
func (r *Refresher) Watch(subjectID string) {
	r.mu.Lock()
	if entry, ok := r.entries[subjectID]; ok {
		entry.ticker.Stop()
		close(entry.stop)
		if entry.cancel != nil {
			entry.cancel()
		}
	}
	entry := &refreshEntry{
		ticker: time.NewTicker(r.interval),
		stop:   make(chan struct{}),
	}
	r.entries[subjectID] = entry
	base := r.base
	r.mu.Unlock()

	go func() {
		r.Trigger(subjectID)
		for {
			select {
			case <-base.Done():
				return
			case <-entry.stop:
				return
			case <-entry.ticker.C:
				r.Trigger(subjectID)
			}
		}
	}()
}

// Unwatch stops refreshes for a subject and cancels any in-flight compute.
func (r *Refresher) Unwatch(subjectID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.entries[subjectID]
	if !ok {
		return
	}
	entry.ticker.Stop()
	select {
	case <-entry.stop:
	default:
		close(entry.stop)
	}
	if entry.cancel != nil {
		entry.cancel()
	}
	delete(r.entries, subjectID)
}

// Trigger starts a refresh now, superseding any in-flight one for the
// subject.
func (r *Refresher) Trigger(subjectID string) {
	r.mu.Lock()
	entry, ok := r.entries[subjectID]
	if !ok {
		// Only watched subjects refresh; a stray trigger must not
		// register a schedule of its own.
		r.mu.Unlock()
		return
	}
	if entry.cancel != nil {
		entry.cancel()
	}
	refreshCtx, cancel := context.WithCancel(r.base)
	entry.cancel = cancel
	entry.generation++
	generation := entry.generation
	r.mu.Unlock()

	go func() {
		defer cancel()
		to := time.Now().UTC()
		from := to.Add(-r.window)
		metrics, _, err := r.aggregator.Compute(refreshCtx, subjectID, from, to)
		if err != nil {
			if refreshCtx.Err() == nil {
				r.logger.Warn("metrics refresh failed",
					zap.String("subject_id", subjectID), zap.Error(err))
			}
			return
		}

		r.mu.Lock()
		current, ok := r.entries[subjectID]
		stale := !ok || current.generation != generation
		r.mu.Unlock()
		if stale {
			// A newer refresh superseded this one; drop the result.
			return
		}
		if r.deliver != nil {
			r.deliver(subjectID, metrics)
		}
	}()
}
