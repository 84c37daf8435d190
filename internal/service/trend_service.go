package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/voyagedesk/activity-api/internal/models"
	appErrors "github.com/voyagedesk/activity-api/pkg/errors"
)

// MetricsComputer abstracts the aggregator for trend and report assembly.
type MetricsComputer interface {
	Compute(ctx context.Context, subjectID string, from, to time.Time) (*models.ProductivityMetrics, bool, error)
}

// TrendConfig tunes rollups and report assembly.
type TrendConfig struct {
	// Location anchors calendar-day boundaries for the daily trend.
	Location *time.Location
	// RecentActivity caps the event slice bundled into a report.
	RecentActivity int
	// CacheTTL bounds how long a computed trend may be served from cache.
	CacheTTL time.Duration
}

// TrendService produces day-bucketed rollups and report payloads on top of
// the aggregator. Aggregator and event log errors propagate unchanged.
type TrendService struct {
	aggregator MetricsComputer
	events     EventQuerier
	cache      *CacheService
	logger     *zap.Logger
	cfg        TrendConfig
	now        func() time.Time
}

// NewTrendService constructs a trend service.
func NewTrendService(aggregator MetricsComputer, events EventQuerier, cache *CacheService, cfg TrendConfig, logger *zap.Logger) *TrendService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.RecentActivity <= 0 {
		cfg.RecentActivity = 25
	}
	return &TrendService{
		aggregator: aggregator,
		events:     events,
		cache:      cache,
		logger:     logger,
		cfg:        cfg,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// DailyTrend returns exactly numDays entries in ascending date order, one
// per calendar day ending today. Days with no events score 0 and are never
// omitted, so charts show no gaps.
func (s *TrendService) DailyTrend(ctx context.Context, subjectID string, numDays int) ([]models.TrendPoint, error) {
	if subjectID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "subject id required")
	}
	if numDays < 1 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "days must be at least 1")
	}

	today := s.today()
	cacheKey := trendCacheKey(subjectID, today, numDays)
	var cached []models.TrendPoint
	if s.cache != nil {
		if hit, err := s.cache.Get(ctx, cacheKey, &cached); err != nil {
			return nil, fmt.Errorf("get trend cache: %w", err)
		} else if hit {
			return cached, nil
		}
	}

	points := make([]models.TrendPoint, 0, numDays)
	for i := numDays - 1; i >= 0; i-- {
		dayStart := today.AddDate(0, 0, -i)
		dayEnd := dayStart.AddDate(0, 0, 1)
		metrics, _, err := s.aggregator.Compute(ctx, subjectID, dayStart, dayEnd)
		if err != nil {
			return nil, err
		}
		points = append(points, models.TrendPoint{
			Date:  dayStart.Format("2006-01-02"),
			Score: metrics.ProductivityScore,
		})
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, cacheKey, points, s.cfg.CacheTTL); err != nil {
			s.logger.Warn("cache trend", zap.Error(err))
		}
	}
	return points, nil
}

// BuildReport bundles computed metrics with the most recent events in the
// window. Identical inputs produce identical payloads apart from the
// generation timestamp.
func (s *TrendService) BuildReport(ctx context.Context, subjectID string, from, to time.Time) (*models.ActivityReport, error) {
	metrics, _, err := s.aggregator.Compute(ctx, subjectID, from, to)
	if err != nil {
		return nil, err
	}
	recent, err := s.events.Recent(ctx, models.EventFilter{SubjectID: subjectID, From: from, To: to}, s.cfg.RecentActivity)
	if err != nil {
		return nil, err
	}
	return &models.ActivityReport{
		SubjectID:      subjectID,
		GeneratedAt:    s.now(),
		Metrics:        *metrics,
		RecentActivity: recent,
	}, nil
}

func (s *TrendService) today() time.Time {
	now := s.now().In(s.cfg.Location)
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, s.cfg.Location)
}

func trendCacheKey(subjectID string, today time.Time, numDays int) string {
	var b strings.Builder
	b.WriteString("activity:trend:")
	b.WriteString(strings.ReplaceAll(subjectID, ":", "|"))
	b.WriteByte(':')
	b.WriteString(today.Format("2006-01-02"))
	b.WriteString(fmt.Sprintf(":%d", numDays))
	return b.String()
}
