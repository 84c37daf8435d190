package handler

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/voyagedesk/activity-api/internal/dto"
	"github.com/voyagedesk/activity-api/internal/models"
	appErrors "github.com/voyagedesk/activity-api/pkg/errors"
	"github.com/voyagedesk/activity-api/pkg/response"
)

// Exporter schedules export jobs and serves raw payloads.
type Exporter interface {
	Enqueue(ctx context.Context, subjectID string, from, to time.Time, format models.ExportFormat) (*models.ExportJob, error)
	Job(id string) (*models.ExportJob, error)
	ExportRaw(ctx context.Context, subjectID string, from, to time.Time) ([]byte, error)
	ParseToken(token string, allowExpired bool) (jobID, relPath string, expiresAt time.Time, err error)
}

// FileOpener resolves stored export files for download.
type FileOpener interface {
	Open(filename string) (*os.File, error)
}

// ExportHandler exposes export scheduling and signed downloads.
type ExportHandler struct {
	exports Exporter
	files   FileOpener
}

// NewExportHandler constructs the export handler.
func NewExportHandler(exports Exporter, files FileOpener) *ExportHandler {
	return &ExportHandler{exports: exports, files: files}
}

// Create schedules an export job for a subject.
func (h *ExportHandler) Create(c *gin.Context) {
	var req dto.ExportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid export request"))
		return
	}
	job, err := h.exports.Enqueue(c.Request.Context(), c.Param("subjectId"), req.From, req.To, req.Format)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"data": dto.ExportResponse{JobID: job.ID, Status: job.Status}})
}

// Job reports the state of an export job, including the signed download
// URL once generation completes.
func (h *ExportHandler) Job(c *gin.Context) {
	job, err := h.exports.Job(c.Param("jobId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, job, nil)
}

// Raw streams the raw JSON export synchronously as a file attachment.
func (h *ExportHandler) Raw(c *gin.Context) {
	var query dto.RangeQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "from and to must be RFC3339 timestamps"))
		return
	}
	subjectID := c.Param("subjectId")
	payload, err := h.exports.ExportRaw(c.Request.Context(), subjectID, query.From, query.To)
	if err != nil {
		response.Error(c, err)
		return
	}
	filename := fmt.Sprintf("activity-data-%s-%s.json", subjectID, time.Now().UTC().Format("2006-01-02"))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, "application/json", payload)
}

// Download serves a previously generated export file through its signed
// token.
func (h *ExportHandler) Download(c *gin.Context) {
	token := c.Param("token")
	_, relPath, _, err := h.exports.ParseToken(token, false)
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrForbidden.Code, appErrors.ErrForbidden.Status, "invalid or expired download token"))
		return
	}
	file, err := h.files.Open(relPath)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "export file no longer available"))
		return
	}
	defer file.Close() //nolint:errcheck

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filepath.Base(relPath)))
	c.Header("Content-Type", contentTypeFor(relPath))
	c.Status(http.StatusOK)
	_, _ = io.Copy(c.Writer, file)
}

func contentTypeFor(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return "application/pdf"
	case ".csv":
		return "text/csv"
	default:
		return "application/json"
	}
}
