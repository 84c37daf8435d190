package service

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/voyagedesk/activity-api/internal/models"
	appErrors "github.com/voyagedesk/activity-api/pkg/errors"
)

// EventQuerier is the Event Log read side.
type EventQuerier interface {
	Query(ctx context.Context, filter models.EventFilter) ([]models.ActivityEvent, error)
	Recent(ctx context.Context, filter models.EventFilter, limit int) ([]models.ActivityEvent, error)
}

// AggregatorConfig tunes metric derivation.
type AggregatorConfig struct {
	// FocusGapThreshold is the longest active-classified gap still counted
	// as focus time.
	FocusGapThreshold time.Duration
	// Location resolves the local hour used by the hourly histogram.
	Location *time.Location
	// CacheTTL bounds how long computed metrics may be served from cache.
	CacheTTL time.Duration
}

// AggregatorService turns the ordered event stream into ProductivityMetrics
// for one subject over one half-open [from, to) window.
type AggregatorService struct {
	events  EventQuerier
	cache   *CacheService
	metrics *MetricsService
	logger  *zap.Logger
	cfg     AggregatorConfig
	now     func() time.Time
}

// NewAggregatorService constructs an aggregator.
func NewAggregatorService(events EventQuerier, cache *CacheService, metrics *MetricsService, cfg AggregatorConfig, logger *zap.Logger) *AggregatorService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.FocusGapThreshold <= 0 {
		cfg.FocusGapThreshold = 2 * time.Minute
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &AggregatorService{
		events:  events,
		cache:   cache,
		metrics: metrics,
		logger:  logger,
		cfg:     cfg,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Compute derives productivity metrics from the events in [from, to). An
// empty window is an error; a window with no events is not and yields
// all-zero metrics with score 0. The boolean reports a cache hit.
func (s *AggregatorService) Compute(ctx context.Context, subjectID string, from, to time.Time) (*models.ProductivityMetrics, bool, error) {
	if subjectID == "" {
		return nil, false, appErrors.Clone(appErrors.ErrValidation, "subject id required")
	}
	if !from.Before(to) {
		return nil, false, appErrors.ErrInvalidRange
	}

	cacheKey := metricsCacheKey(subjectID, from, to)
	var cached models.ProductivityMetrics
	if s.cache != nil {
		if hit, err := s.cache.Get(ctx, cacheKey, &cached); err != nil {
			return nil, false, fmt.Errorf("get metrics cache: %w", err)
		} else if hit {
			return &cached, true, nil
		}
	}

	start := time.Now()
	events, err := s.events.Query(ctx, models.EventFilter{SubjectID: subjectID, From: from, To: to})
	if err != nil {
		return nil, false, err
	}
	if s.metrics != nil {
		s.metrics.ObserveDBQuery("events_range", time.Since(start))
	}

	computed := s.derive(subjectID, from, to, events)

	if s.cache != nil {
		if err := s.cache.Set(ctx, cacheKey, computed, s.cfg.CacheTTL); err != nil {
			s.logger.Warn("cache metrics", zap.Error(err))
		}
	}
	return computed, false, nil
}

// derive is the pure aggregation over an ascending event slice: inter-event
// gaps are classified by the type of the event that opened them, the final
// open segment by the last event's type, capped at min(to, now).
func (s *AggregatorService) derive(subjectID string, from, to time.Time, events []models.ActivityEvent) *models.ProductivityMetrics {
	m := &models.ProductivityMetrics{
		SubjectID:        subjectID,
		From:             from.UTC(),
		To:               to.UTC(),
		HourlyActivity:   make([]models.HourlyBucket, 24),
		MostVisitedPages: []models.PageVisit{},
	}
	for h := range m.HourlyActivity {
		m.HourlyActivity[h].Hour = h
	}
	if len(events) == 0 {
		return m
	}

	windowEnd := to.UTC()
	if now := s.now(); windowEnd.After(now) {
		windowEnd = now
	}

	pageIndex := make(map[string]int)

	for i, event := range events {
		var gapEnd time.Time
		if i+1 < len(events) {
			gapEnd = events[i+1].Timestamp
		} else {
			gapEnd = windowEnd
		}
		gap := gapEnd.Sub(event.Timestamp)
		if gap < 0 {
			gap = 0
		}

		switch event.Type {
		case models.EventTypeIdle:
			m.TotalIdleMs += gap.Milliseconds()
		case models.EventTypeBreak:
			m.BreakMs += gap.Milliseconds()
		default:
			// active, page_view and action all open engaged time.
			m.TotalActiveMs += gap.Milliseconds()
			if gap <= s.cfg.FocusGapThreshold {
				m.FocusMs += gap.Milliseconds()
			}
		}

		switch event.Type {
		case models.EventTypePageView:
			m.PageViews++
			idx, seen := pageIndex[event.Details.Page]
			if !seen {
				idx = len(m.MostVisitedPages)
				pageIndex[event.Details.Page] = idx
				m.MostVisitedPages = append(m.MostVisitedPages, models.PageVisit{Page: event.Details.Page})
			}
			m.MostVisitedPages[idx].Count++
			m.MostVisitedPages[idx].DurationMs += event.Details.DurationMs
		case models.EventTypeAction:
			m.ActionsPerformed++
		}

		if event.Type == models.EventTypeActive || event.Type == models.EventTypeAction {
			hour := event.Timestamp.In(s.cfg.Location).Hour()
			m.HourlyActivity[hour].Activity++
		}
	}

	// Count desc, summed duration desc, then first-seen order: SliceStable
	// keeps insertion order for full ties, so the result is deterministic.
	sort.SliceStable(m.MostVisitedPages, func(a, b int) bool {
		pa, pb := m.MostVisitedPages[a], m.MostVisitedPages[b]
		if pa.Count != pb.Count {
			return pa.Count > pb.Count
		}
		return pa.DurationMs > pb.DurationMs
	})

	m.ProductivityScore = score(m.TotalActiveMs, m.TotalIdleMs, m.BreakMs)
	return m
}

func score(activeMs, idleMs, breakMs int64) int {
	total := activeMs + idleMs + breakMs
	if total <= 0 {
		return 0
	}
	s := int(math.Round(100 * float64(activeMs) / float64(total)))
	if s < 0 {
		return 0
	}
	if s > 100 {
		return 100
	}
	return s
}

func metricsCacheKey(subjectID string, from, to time.Time) string {
	var b strings.Builder
	b.WriteString("activity:metrics")
	for _, part := range []string{subjectID, from.UTC().Format(time.RFC3339), to.UTC().Format(time.RFC3339)} {
		b.WriteByte(':')
		b.WriteString(strings.ReplaceAll(part, ":", "|"))
	}
	return b.String()
}
