package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/voyagedesk/activity-api/internal/models"
	appErrors "github.com/voyagedesk/activity-api/pkg/errors"
	"github.com/voyagedesk/activity-api/pkg/export"
	"github.com/voyagedesk/activity-api/pkg/jobs"
	"github.com/voyagedesk/activity-api/pkg/storage"
)

// ReportBuilder assembles report payloads for PDF rendering.
type ReportBuilder interface {
	BuildReport(ctx context.Context, subjectID string, from, to time.Time) (*models.ActivityReport, error)
}

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(doc export.ReportDocument) ([]byte, error)
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	APIPrefix string
	ResultTTL time.Duration
}

// ExportService renders activity data and reports into downloadable files.
// Generation runs on a background queue; finished files are served through
// HMAC-signed URLs.
type ExportService struct {
	events  EventQuerier
	reports ReportBuilder
	storage fileStorage
	csv     csvRenderer
	pdf     pdfRenderer
	signer  *storage.SignedURLSigner
	metrics *MetricsService
	logger  *zap.Logger
	cfg     ExportConfig
	queue   *jobs.Queue

	mu      sync.RWMutex
	tracked map[string]*models.ExportJob
}

// NewExportService constructs an ExportService. Call Start before
// enqueueing work and Stop on shutdown.
func NewExportService(events EventQuerier, reports ReportBuilder, store fileStorage, signer *storage.SignedURLSigner, metrics *MetricsService, cfg ExportConfig, queueCfg jobs.QueueConfig, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	s := &ExportService{
		events:  events,
		reports: reports,
		storage: store,
		csv:     export.NewCSVExporter(),
		pdf:     export.NewPDFExporter(),
		signer:  signer,
		metrics: metrics,
		logger:  logger,
		cfg:     cfg,
		tracked: make(map[string]*models.ExportJob),
	}
	queueCfg.Logger = logger
	s.queue = jobs.NewQueue("exports", s.process, queueCfg)
	return s
}

// Start launches the export workers.
func (s *ExportService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains the export workers.
func (s *ExportService) Stop() {
	s.queue.Stop()
}

// Enqueue accepts an export request and schedules generation.
func (s *ExportService) Enqueue(ctx context.Context, subjectID string, from, to time.Time, format models.ExportFormat) (*models.ExportJob, error) {
	if subjectID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "subject id required")
	}
	if !from.Before(to) {
		return nil, appErrors.ErrInvalidRange
	}
	if !format.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", format))
	}

	job := &models.ExportJob{
		ID:          uuid.NewString(),
		SubjectID:   subjectID,
		From:        from.UTC(),
		To:          to.UTC(),
		Format:      format,
		Status:      models.ExportStatusPending,
		RequestedAt: time.Now().UTC(),
	}

	s.mu.Lock()
	s.tracked[job.ID] = job
	s.mu.Unlock()

	if err := s.queue.Enqueue(jobs.Job{ID: job.ID, Type: string(format), Payload: job.ID}); err != nil {
		s.mu.Lock()
		delete(s.tracked, job.ID)
		s.mu.Unlock()
		return nil, fmt.Errorf("enqueue export: %w", err)
	}
	return s.snapshotJob(job.ID), nil
}

// Job returns the tracked job state.
func (s *ExportService) Job(id string) (*models.ExportJob, error) {
	job := s.snapshotJob(id)
	if job == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "export job not found")
	}
	return job, nil
}

// ExportRaw produces the self-describing JSON payload for a subject's
// events in [from, to). Output is byte-for-byte reproducible for identical
// inputs: struct marshalling fixes field order and events arrive in
// timestamp order from the log.
func (s *ExportService) ExportRaw(ctx context.Context, subjectID string, from, to time.Time) ([]byte, error) {
	if !from.Before(to) {
		return nil, appErrors.ErrInvalidRange
	}
	events, err := s.events.Query(ctx, models.EventFilter{SubjectID: subjectID, From: from, To: to})
	if err != nil {
		return nil, err
	}
	payload := models.RawExport{
		SubjectID:  subjectID,
		From:       from.UTC(),
		To:         to.UTC(),
		EventCount: len(events),
		Events:     events,
	}
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal raw export: %w", err)
	}
	return data, nil
}

// ParseToken validates a signed download token.
func (s *ExportService) ParseToken(token string, allowExpired bool) (jobID, relPath string, expiresAt time.Time, err error) {
	return s.signer.Parse(token, allowExpired)
}

func (s *ExportService) process(ctx context.Context, qj jobs.Job) error {
	jobID, _ := qj.Payload.(string)
	job := s.snapshotJob(jobID)
	if job == nil {
		return fmt.Errorf("export job %s vanished", jobID)
	}

	payload, err := s.render(ctx, job)
	if err != nil {
		s.fail(jobID, err)
		return err
	}

	relPath, err := s.storage.Save(job.Filename(), payload)
	if err != nil {
		s.fail(jobID, err)
		return err
	}

	token, expiresAt, err := s.signer.Generate(job.ID, relPath)
	if err != nil {
		s.fail(jobID, err)
		return err
	}

	url := strings.TrimRight(s.cfg.APIPrefix, "/")
	if url == "" {
		url = "/api/v1"
	}
	url = fmt.Sprintf("%s/export/%s", url, token)

	now := time.Now().UTC()
	s.mu.Lock()
	if tracked, ok := s.tracked[jobID]; ok {
		tracked.Status = models.ExportStatusCompleted
		tracked.FilePath = relPath
		tracked.DownloadURL = url
		tracked.CompletedAt = &now
		tracked.ExpiresAt = &expiresAt
	}
	s.mu.Unlock()

	s.metrics.IncExportsGenerated(string(job.Format))
	s.logger.Info("export generated",
		zap.String("job_id", job.ID),
		zap.String("subject_id", job.SubjectID),
		zap.String("format", string(job.Format)),
		zap.String("file", relPath))
	return nil
}

func (s *ExportService) render(ctx context.Context, job *models.ExportJob) ([]byte, error) {
	switch job.Format {
	case models.ExportFormatJSON:
		return s.ExportRaw(ctx, job.SubjectID, job.From, job.To)
	case models.ExportFormatCSV:
		events, err := s.events.Query(ctx, models.EventFilter{SubjectID: job.SubjectID, From: job.From, To: job.To})
		if err != nil {
			return nil, err
		}
		return s.csv.Render(eventsDataset(events))
	case models.ExportFormatPDF:
		report, err := s.reports.BuildReport(ctx, job.SubjectID, job.From, job.To)
		if err != nil {
			return nil, err
		}
		return s.pdf.Render(reportDocument(report))
	default:
		return nil, fmt.Errorf("unsupported format %s", job.Format)
	}
}

func (s *ExportService) fail(jobID string, err error) {
	s.mu.Lock()
	if tracked, ok := s.tracked[jobID]; ok {
		tracked.Status = models.ExportStatusFailed
		tracked.Error = err.Error()
	}
	s.mu.Unlock()
}

func (s *ExportService) snapshotJob(id string) *models.ExportJob {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.tracked[id]
	if !ok {
		return nil
	}
	clone := *job
	return &clone
}

func eventsDataset(events []models.ActivityEvent) export.Dataset {
	headers := []string{"timestamp", "type", "session_id", "page", "element", "action", "duration_ms"}
	rows := make([]map[string]string, 0, len(events))
	for _, event := range events {
		rows = append(rows, map[string]string{
			"timestamp":   event.Timestamp.UTC().Format(time.RFC3339),
			"type":        string(event.Type),
			"session_id":  event.SessionID,
			"page":        event.Details.Page,
			"element":     event.Details.Element,
			"action":      event.Details.Action,
			"duration_ms": strconv.FormatInt(event.Details.DurationMs, 10),
		})
	}
	return export.Dataset{Headers: headers, Rows: rows}
}

func reportDocument(report *models.ActivityReport) export.ReportDocument {
	m := report.Metrics
	doc := export.ReportDocument{
		Title:    fmt.Sprintf("Activity Report %s", report.SubjectID),
		Subtitle: fmt.Sprintf("%s to %s", m.From.Format("2006-01-02 15:04"), m.To.Format("2006-01-02 15:04")),
		Summary: []export.SummaryItem{
			{Label: "Productivity Score", Value: fmt.Sprintf("%d / 100", m.ProductivityScore)},
			{Label: "Active Time", Value: formatMillis(m.TotalActiveMs)},
			{Label: "Idle Time", Value: formatMillis(m.TotalIdleMs)},
			{Label: "Break Time", Value: formatMillis(m.BreakMs)},
			{Label: "Focus Time", Value: formatMillis(m.FocusMs)},
			{Label: "Page Views", Value: strconv.Itoa(m.PageViews)},
			{Label: "Actions", Value: strconv.Itoa(m.ActionsPerformed)},
		},
	}

	if len(m.MostVisitedPages) > 0 {
		rows := make([]map[string]string, 0, len(m.MostVisitedPages))
		for _, visit := range m.MostVisitedPages {
			rows = append(rows, map[string]string{
				"page":     visit.Page,
				"visits":   strconv.Itoa(visit.Count),
				"duration": formatMillis(visit.DurationMs),
			})
		}
		doc.Sections = append(doc.Sections, export.Section{
			Title: "Most Visited Pages",
			Data:  export.Dataset{Headers: []string{"page", "visits", "duration"}, Rows: rows},
		})
	}

	if len(report.RecentActivity) > 0 {
		rows := make([]map[string]string, 0, len(report.RecentActivity))
		for _, event := range report.RecentActivity {
			detail := event.Details.Page
			if detail == "" {
				detail = event.Details.Action
			}
			rows = append(rows, map[string]string{
				"time":   event.Timestamp.UTC().Format("2006-01-02 15:04:05"),
				"type":   string(event.Type),
				"detail": detail,
			})
		}
		doc.Sections = append(doc.Sections, export.Section{
			Title: "Recent Activity",
			Data:  export.Dataset{Headers: []string{"time", "type", "detail"}, Rows: rows},
		})
	}

	return doc
}

func formatMillis(ms int64) string {
	d := time.Duration(ms) * time.Millisecond
	return d.Truncate(time.Second).String()
}
