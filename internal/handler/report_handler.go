package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/voyagedesk/activity-api/internal/dto"
	"github.com/voyagedesk/activity-api/internal/middleware"
	"github.com/voyagedesk/activity-api/internal/models"
	appErrors "github.com/voyagedesk/activity-api/pkg/errors"
	"github.com/voyagedesk/activity-api/pkg/response"
)

// AggregatorReader computes metrics for report endpoints.
type AggregatorReader interface {
	Compute(ctx context.Context, subjectID string, from, to time.Time) (*models.ProductivityMetrics, bool, error)
}

// TrendReader produces daily rollups and report payloads.
type TrendReader interface {
	DailyTrend(ctx context.Context, subjectID string, numDays int) ([]models.TrendPoint, error)
	BuildReport(ctx context.Context, subjectID string, from, to time.Time) (*models.ActivityReport, error)
}

// ActivityReader lists raw events.
type ActivityReader interface {
	Query(ctx context.Context, filter models.EventFilter) ([]models.ActivityEvent, error)
}

// ReportHandler exposes productivity metrics, trends and raw activity.
type ReportHandler struct {
	aggregator AggregatorReader
	trends     TrendReader
	events     ActivityReader
}

// NewReportHandler constructs the report handler.
func NewReportHandler(aggregator AggregatorReader, trends TrendReader, events ActivityReader) *ReportHandler {
	return &ReportHandler{aggregator: aggregator, trends: trends, events: events}
}

// Productivity returns ProductivityMetrics for a [from, to) window.
func (h *ReportHandler) Productivity(c *gin.Context) {
	var query dto.RangeQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "from and to must be RFC3339 timestamps"))
		return
	}
	metrics, cacheHit, err := h.aggregator.Compute(c.Request.Context(), c.Param("subjectId"), query.From, query.To)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, cacheHit)
	response.JSON(c, http.StatusOK, metrics, nil, middleware.ExtractMeta(c))
}

// Activities returns the raw event list for a [from, to) window.
func (h *ReportHandler) Activities(c *gin.Context) {
	var query dto.RangeQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "from and to must be RFC3339 timestamps"))
		return
	}
	events, err := h.events.Query(c.Request.Context(), models.EventFilter{
		SubjectID: c.Param("subjectId"),
		From:      query.From,
		To:        query.To,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, events, nil)
}

// Trend returns the day-bucketed productivity trend.
func (h *ReportHandler) Trend(c *gin.Context) {
	var query dto.TrendQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "days must be between 1 and 365"))
		return
	}
	trend, err := h.trends.DailyTrend(c.Request.Context(), c.Param("subjectId"), query.Days)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, trend, nil)
}

// Report returns the bundled report payload (metrics + recent activity).
func (h *ReportHandler) Report(c *gin.Context) {
	var query dto.RangeQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "from and to must be RFC3339 timestamps"))
		return
	}
	report, err := h.trends.BuildReport(c.Request.Context(), c.Param("subjectId"), query.From, query.To)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report, nil)
}
