package dto

import (
	"time"

	"github.com/voyagedesk/activity-api/internal/models"
)

// RangeQuery carries the from/to query parameters shared by the report
// endpoints. Both are RFC3339 timestamps; the window is [from, to).
type RangeQuery struct {
	From time.Time `form:"from" binding:"required" time_format:"2006-01-02T15:04:05Z07:00"`
	To   time.Time `form:"to" binding:"required" time_format:"2006-01-02T15:04:05Z07:00"`
}

// TrendQuery selects the trailing window for the daily trend endpoint.
type TrendQuery struct {
	Days int `form:"days,default=30" binding:"min=1,max=365"`
}

// ExportRequest is the body for POST /reports/:subjectId/export.
type ExportRequest struct {
	From   time.Time           `json:"from" binding:"required"`
	To     time.Time           `json:"to" binding:"required"`
	Format models.ExportFormat `json:"format" binding:"required"`
}

// ExportResponse acknowledges an accepted export job.
type ExportResponse struct {
	JobID  string              `json:"job_id"`
	Status models.ExportStatus `json:"status"`
}
