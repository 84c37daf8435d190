package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/voyagedesk/activity-api/internal/models"
	appErrors "github.com/voyagedesk/activity-api/pkg/errors"
)

type fakeEventLog struct {
	events []models.ActivityEvent
	recent []models.ActivityEvent
	err    error
}

func (f *fakeEventLog) Query(context.Context, models.EventFilter) ([]models.ActivityEvent, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.events, nil
}

func (f *fakeEventLog) Recent(context.Context, models.EventFilter, int) ([]models.ActivityEvent, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.recent, nil
}

func newTestAggregator(events EventQuerier, now time.Time) *AggregatorService {
	svc := NewAggregatorService(events, nil, nil, AggregatorConfig{
		FocusGapThreshold: 2 * time.Minute,
		Location:          time.UTC,
	}, zap.NewNop())
	svc.now = func() time.Time { return now }
	return svc
}

func at(base time.Time, offsetMs int64) time.Time {
	return base.Add(time.Duration(offsetMs) * time.Millisecond)
}

func TestAggregatorCompute_BasicSession(t *testing.T) {
	base := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	log := &fakeEventLog{events: []models.ActivityEvent{
		{SubjectID: "agent-1", Timestamp: at(base, 0), Type: models.EventTypeActive},
		{SubjectID: "agent-1", Timestamp: at(base, 60_000), Type: models.EventTypeIdle},
		{SubjectID: "agent-1", Timestamp: at(base, 120_000), Type: models.EventTypeActive},
	}}
	svc := newTestAggregator(log, at(base, 300_000))

	m, hit, err := svc.Compute(context.Background(), "agent-1", base, at(base, 180_000))
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, int64(120_000), m.TotalActiveMs)
	assert.Equal(t, int64(60_000), m.TotalIdleMs)
	assert.Equal(t, int64(0), m.BreakMs)
	assert.Equal(t, 67, m.ProductivityScore)
	assert.Equal(t, 0, m.PageViews)
}

func TestAggregatorCompute_GapPartitionCoversWindow(t *testing.T) {
	base := time.Date(2026, 3, 2, 14, 0, 0, 0, time.UTC)
	log := &fakeEventLog{events: []models.ActivityEvent{
		{Timestamp: at(base, 0), Type: models.EventTypeActive},
		{Timestamp: at(base, 45_000), Type: models.EventTypeBreak},
		{Timestamp: at(base, 200_000), Type: models.EventTypeIdle},
		{Timestamp: at(base, 260_000), Type: models.EventTypeActive},
	}}
	svc := newTestAggregator(log, at(base, 600_000))

	to := at(base, 400_000)
	m, _, err := svc.Compute(context.Background(), "agent-1", base, to)
	require.NoError(t, err)

	// Every millisecond between the first event and the window end lands in
	// exactly one of the three classes.
	assert.Equal(t, to.Sub(base).Milliseconds(), m.TotalActiveMs+m.TotalIdleMs+m.BreakMs)
	assert.Equal(t, int64(45_000+140_000), m.TotalActiveMs)
	assert.Equal(t, int64(60_000), m.TotalIdleMs)
	assert.Equal(t, int64(155_000), m.BreakMs)
}

func TestAggregatorCompute_FinalSegmentCappedAtNow(t *testing.T) {
	base := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	log := &fakeEventLog{events: []models.ActivityEvent{
		{Timestamp: at(base, 0), Type: models.EventTypeActive},
	}}
	// The query window ends an hour out but "now" is only 30s in, so the
	// open segment must not be credited for time that has not elapsed.
	svc := newTestAggregator(log, at(base, 30_000))

	m, _, err := svc.Compute(context.Background(), "agent-1", base, base.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(30_000), m.TotalActiveMs)
}

func TestAggregatorCompute_EmptyRangeRejected(t *testing.T) {
	base := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	svc := newTestAggregator(&fakeEventLog{}, base)

	_, _, err := svc.Compute(context.Background(), "agent-1", base, base)
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrInvalidRange.Code, appErr.Code)

	_, _, err = svc.Compute(context.Background(), "agent-1", base, base.Add(-time.Minute))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidRange.Code, appErrors.FromError(err).Code)
}

func TestAggregatorCompute_NoEventsYieldsZeroMetrics(t *testing.T) {
	base := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	svc := newTestAggregator(&fakeEventLog{}, at(base, 600_000))

	m, _, err := svc.Compute(context.Background(), "agent-1", base, base.Add(time.Hour))
	require.NoError(t, err)
	assert.Zero(t, m.TotalActiveMs)
	assert.Zero(t, m.TotalIdleMs)
	assert.Zero(t, m.BreakMs)
	assert.Zero(t, m.FocusMs)
	assert.Equal(t, 0, m.ProductivityScore)
	require.Len(t, m.HourlyActivity, 24)
	for h, bucket := range m.HourlyActivity {
		assert.Equal(t, h, bucket.Hour)
		assert.Zero(t, bucket.Activity)
	}
	assert.Empty(t, m.MostVisitedPages)
}

func TestAggregatorCompute_FocusExcludesLongGaps(t *testing.T) {
	base := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	log := &fakeEventLog{events: []models.ActivityEvent{
		{Timestamp: at(base, 0), Type: models.EventTypeActive},
		{Timestamp: at(base, 60_000), Type: models.EventTypeActive},
		// Ten silent minutes: still active time, but too sparse for focus.
		{Timestamp: at(base, 660_000), Type: models.EventTypeIdle},
	}}
	svc := newTestAggregator(log, at(base, 700_000))

	m, _, err := svc.Compute(context.Background(), "agent-1", base, at(base, 660_000))
	require.NoError(t, err)
	assert.Equal(t, int64(660_000), m.TotalActiveMs)
	assert.Equal(t, int64(60_000), m.FocusMs)
}

func TestAggregatorCompute_MostVisitedOrdering(t *testing.T) {
	base := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	log := &fakeEventLog{events: []models.ActivityEvent{
		{Timestamp: at(base, 0), Type: models.EventTypePageView, Details: models.EventDetails{Page: "/bookings", DurationMs: 500}},
		{Timestamp: at(base, 1_000), Type: models.EventTypePageView, Details: models.EventDetails{Page: "/clients", DurationMs: 9_000}},
		{Timestamp: at(base, 2_000), Type: models.EventTypePageView, Details: models.EventDetails{Page: "/clients", DurationMs: 1_000}},
		{Timestamp: at(base, 3_000), Type: models.EventTypePageView, Details: models.EventDetails{Page: "/invoices", DurationMs: 700}},
	}}
	svc := newTestAggregator(log, at(base, 600_000))

	m, _, err := svc.Compute(context.Background(), "agent-1", base, at(base, 60_000))
	require.NoError(t, err)
	assert.Equal(t, 4, m.PageViews)
	require.Len(t, m.MostVisitedPages, 3)
	assert.Equal(t, "/clients", m.MostVisitedPages[0].Page)
	assert.Equal(t, 2, m.MostVisitedPages[0].Count)
	assert.Equal(t, int64(10_000), m.MostVisitedPages[0].DurationMs)
	// Equal counts fall back to summed duration, then first-seen order.
	assert.Equal(t, "/invoices", m.MostVisitedPages[1].Page)
	assert.Equal(t, "/bookings", m.MostVisitedPages[2].Page)
}

func TestAggregatorCompute_HourlyHistogram(t *testing.T) {
	base := time.Date(2026, 3, 2, 9, 15, 0, 0, time.UTC)
	log := &fakeEventLog{events: []models.ActivityEvent{
		{Timestamp: base, Type: models.EventTypeActive},
		{Timestamp: base.Add(5 * time.Minute), Type: models.EventTypeAction, Details: models.EventDetails{Action: "save"}},
		{Timestamp: base.Add(50 * time.Minute), Type: models.EventTypeIdle},
		{Timestamp: base.Add(55 * time.Minute), Type: models.EventTypePageView, Details: models.EventDetails{Page: "/home"}},
	}}
	svc := newTestAggregator(log, base.Add(2*time.Hour))

	m, _, err := svc.Compute(context.Background(), "agent-1", base, base.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 2, m.HourlyActivity[9].Activity)
	assert.Equal(t, 0, m.HourlyActivity[10].Activity)
	assert.Equal(t, 1, m.ActionsPerformed)
}

func TestScore_Bounds(t *testing.T) {
	assert.Equal(t, 0, score(0, 0, 0))
	assert.Equal(t, 100, score(1_000, 0, 0))
	assert.Equal(t, 0, score(0, 1_000, 500))
	assert.Equal(t, 50, score(500, 500, 0))
	assert.Equal(t, 67, score(120_000, 60_000, 0))
}

func TestMetricsCacheKey_EscapesColons(t *testing.T) {
	from := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	key := metricsCacheKey("agent:1", from, from.Add(time.Hour))
	assert.Equal(t, "activity:metrics:agent|1:2026-03-02T09|00|00Z:2026-03-02T10|00|00Z", key)
}
