package models

import "time"

// ProductivityMetrics is a derived view over one subject's events in a
// half-open [From, To) window. It is recomputed on demand and never stored.
type ProductivityMetrics struct {
	SubjectID        string       `json:"subject_id"`
	From             time.Time    `json:"from"`
	To               time.Time    `json:"to"`
	TotalActiveMs    int64        `json:"total_active_ms"`
	TotalIdleMs      int64        `json:"total_idle_ms"`
	BreakMs          int64        `json:"break_ms"`
	FocusMs          int64        `json:"focus_ms"`
	PageViews        int          `json:"page_views"`
	ActionsPerformed int          `json:"actions_performed"`
	// ProductivityScore is round(100*active/(active+idle+break)) clamped to
	// [0,100]; 0 when no time was observed.
	ProductivityScore int           `json:"productivity_score"`
	HourlyActivity    []HourlyBucket `json:"hourly_activity"`
	MostVisitedPages  []PageVisit    `json:"most_visited_pages"`
}

// HourlyBucket is one slot of the fixed 24-bucket activity histogram,
// counting active and action events by local hour of day.
type HourlyBucket struct {
	Hour     int `json:"hour"`
	Activity int `json:"activity"`
}

// PageVisit aggregates page_view events for one page.
type PageVisit struct {
	Page       string `json:"page"`
	Count      int    `json:"count"`
	DurationMs int64  `json:"duration_ms"`
}

// TrendPoint is one day of the productivity trend.
type TrendPoint struct {
	Date  string `json:"date"`
	Score int    `json:"score"`
}

// SystemMetrics is an instrumentation snapshot exposed alongside the
// Prometheus endpoint.
type SystemMetrics struct {
	CacheHitRatio            float64   `json:"cache_hit_ratio"`
	CacheHits                uint64    `json:"cache_hits"`
	CacheMisses              uint64    `json:"cache_misses"`
	RequestsTotal            uint64    `json:"requests_total"`
	AverageRequestDurationMs float64   `json:"average_request_duration_ms"`
	DBQueryCount             uint64    `json:"db_query_count"`
	AverageDBQueryDurationMs float64   `json:"average_db_query_duration_ms"`
	EventsRecorded           uint64    `json:"events_recorded"`
	SessionsRotated          uint64    `json:"sessions_rotated"`
	ExportsGenerated         uint64    `json:"exports_generated"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generated_at"`
}

// ActivityReport bundles computed metrics with a bounded slice of the most
// recent events, ready for JSON or PDF rendering.
type ActivityReport struct {
	SubjectID      string              `json:"subject_id"`
	GeneratedAt    time.Time           `json:"generated_at"`
	Metrics        ProductivityMetrics `json:"metrics"`
	RecentActivity []ActivityEvent     `json:"recent_activity"`
}
