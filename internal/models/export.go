package models

import (
	"fmt"
	"time"
)

// ExportFormat selects the rendering for an export job.
type ExportFormat string

const (
	ExportFormatJSON ExportFormat = "json"
	ExportFormatCSV  ExportFormat = "csv"
	ExportFormatPDF  ExportFormat = "pdf"
)

// Valid reports whether the format is supported.
func (f ExportFormat) Valid() bool {
	switch f {
	case ExportFormatJSON, ExportFormatCSV, ExportFormatPDF:
		return true
	}
	return false
}

// ExportStatus tracks the lifecycle of an asynchronous export job.
type ExportStatus string

const (
	ExportStatusPending   ExportStatus = "PENDING"
	ExportStatusCompleted ExportStatus = "COMPLETED"
	ExportStatusFailed    ExportStatus = "FAILED"
)

// ExportJob describes one requested export of a subject's activity data.
type ExportJob struct {
	ID          string       `json:"id"`
	SubjectID   string       `json:"subject_id"`
	From        time.Time    `json:"from"`
	To          time.Time    `json:"to"`
	Format      ExportFormat `json:"format"`
	Status      ExportStatus `json:"status"`
	FilePath    string       `json:"file_path,omitempty"`
	DownloadURL string       `json:"download_url,omitempty"`
	Error       string       `json:"error,omitempty"`
	RequestedAt time.Time    `json:"requested_at"`
	CompletedAt *time.Time   `json:"completed_at,omitempty"`
	ExpiresAt   *time.Time   `json:"expires_at,omitempty"`
}

// Filename returns the export file name observed by downstream consumers:
// activity-data-<subject>-<date>.json|csv, activity-report-<subject>-<date>.pdf.
func (j ExportJob) Filename() string {
	date := j.RequestedAt.UTC().Format("2006-01-02")
	if j.Format == ExportFormatPDF {
		return fmt.Sprintf("activity-report-%s-%s.pdf", j.SubjectID, date)
	}
	return fmt.Sprintf("activity-data-%s-%s.%s", j.SubjectID, date, j.Format)
}

// RawExport is the self-describing JSON payload for raw event exports.
// Struct marshalling keeps the byte output reproducible for identical
// inputs; no maps appear anywhere in the payload.
type RawExport struct {
	SubjectID  string          `json:"subject_id"`
	From       time.Time       `json:"from"`
	To         time.Time       `json:"to"`
	EventCount int             `json:"event_count"`
	Events     []ActivityEvent `json:"events"`
}
