package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voyagedesk/activity-api/internal/dto"
	"github.com/voyagedesk/activity-api/internal/models"
	appErrors "github.com/voyagedesk/activity-api/pkg/errors"
	"github.com/voyagedesk/activity-api/pkg/storage"
)

type exporterMock struct {
	job        *models.ExportJob
	raw        []byte
	relPath    string
	enqueueErr error
	jobErr     error
	rawErr     error
	tokenErr   error
}

func (m *exporterMock) Enqueue(context.Context, string, time.Time, time.Time, models.ExportFormat) (*models.ExportJob, error) {
	if m.enqueueErr != nil {
		return nil, m.enqueueErr
	}
	return m.job, nil
}

func (m *exporterMock) Job(string) (*models.ExportJob, error) {
	if m.jobErr != nil {
		return nil, m.jobErr
	}
	return m.job, nil
}

func (m *exporterMock) ExportRaw(context.Context, string, time.Time, time.Time) ([]byte, error) {
	if m.rawErr != nil {
		return nil, m.rawErr
	}
	return m.raw, nil
}

func (m *exporterMock) ParseToken(string, bool) (string, string, time.Time, error) {
	if m.tokenErr != nil {
		return "", "", time.Time{}, m.tokenErr
	}
	return "job-1", m.relPath, time.Now().Add(time.Hour), nil
}

func newExportContext(t *testing.T, method, path string, body []byte) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, err := http.NewRequest(method, path, bytes.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	return c, w
}

func testFileOpener(t *testing.T) *storage.LocalStorage {
	t.Helper()
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	return store
}

func TestExportHandlerCreate(t *testing.T) {
	job := &models.ExportJob{ID: "job-1", Status: models.ExportStatusPending}
	store := testFileOpener(t)
	handler := NewExportHandler(&exporterMock{job: job}, store)

	body, _ := json.Marshal(dto.ExportRequest{
		From:   time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC),
		To:     time.Date(2026, 3, 2, 17, 0, 0, 0, time.UTC),
		Format: models.ExportFormatCSV,
	})
	c, w := newExportContext(t, http.MethodPost, "/reports/agent-1/export", body)
	c.Params = gin.Params{{Key: "subjectId", Value: "agent-1"}}

	handler.Create(c)
	require.Equal(t, http.StatusAccepted, w.Code)
	assert.Contains(t, w.Body.String(), `"job_id":"job-1"`)
	assert.Contains(t, w.Body.String(), `"PENDING"`)
}

func TestExportHandlerCreate_InvalidBody(t *testing.T) {
	store := testFileOpener(t)
	handler := NewExportHandler(&exporterMock{}, store)
	c, w := newExportContext(t, http.MethodPost, "/reports/agent-1/export", []byte(`{"format":"csv"}`))
	c.Params = gin.Params{{Key: "subjectId", Value: "agent-1"}}

	handler.Create(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestExportHandlerJob_NotFound(t *testing.T) {
	store := testFileOpener(t)
	handler := NewExportHandler(&exporterMock{jobErr: appErrors.Clone(appErrors.ErrNotFound, "export job not found")}, store)
	c, w := newExportContext(t, http.MethodGet, "/reports/agent-1/export/jobs/missing", nil)
	c.Params = gin.Params{{Key: "jobId", Value: "missing"}}

	handler.Job(c)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestExportHandlerRaw(t *testing.T) {
	store := testFileOpener(t)
	handler := NewExportHandler(&exporterMock{raw: []byte(`{"subject_id":"agent-1"}`)}, store)
	c, w := newExportContext(t, http.MethodGet, "/reports/agent-1/export/raw?from=2026-03-02T09:00:00Z&to=2026-03-02T17:00:00Z", nil)
	c.Params = gin.Params{{Key: "subjectId", Value: "agent-1"}}

	handler.Raw(c)
	require.Equal(t, http.StatusOK, w.Code)
	disposition := w.Header().Get("Content-Disposition")
	expected := fmt.Sprintf("activity-data-agent-1-%s.json", time.Now().UTC().Format("2006-01-02"))
	assert.Contains(t, disposition, expected)
	assert.JSONEq(t, `{"subject_id":"agent-1"}`, w.Body.String())
}

func TestExportHandlerRaw_MissingRange(t *testing.T) {
	store := testFileOpener(t)
	handler := NewExportHandler(&exporterMock{}, store)
	c, w := newExportContext(t, http.MethodGet, "/reports/agent-1/export/raw", nil)
	c.Params = gin.Params{{Key: "subjectId", Value: "agent-1"}}

	handler.Raw(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestExportHandlerDownload(t *testing.T) {
	store := testFileOpener(t)
	_, err := store.Save("activity-data-agent-1-2026-03-02.csv", []byte("timestamp,type\n"))
	require.NoError(t, err)

	handler := NewExportHandler(&exporterMock{relPath: "activity-data-agent-1-2026-03-02.csv"}, store)
	c, w := newExportContext(t, http.MethodGet, "/export/token-1", nil)
	c.Params = gin.Params{{Key: "token", Value: "token-1"}}

	handler.Download(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "activity-data-agent-1-2026-03-02.csv")
	assert.Equal(t, "timestamp,type\n", w.Body.String())
}

func TestExportHandlerDownload_BadToken(t *testing.T) {
	store := testFileOpener(t)
	handler := NewExportHandler(&exporterMock{tokenErr: os.ErrInvalid}, store)
	c, w := newExportContext(t, http.MethodGet, "/export/bad", nil)
	c.Params = gin.Params{{Key: "token", Value: "bad"}}

	handler.Download(c)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestExportHandlerDownload_FileMissing(t *testing.T) {
	store := testFileOpener(t)
	handler := NewExportHandler(&exporterMock{relPath: "gone.json"}, store)
	c, w := newExportContext(t, http.MethodGet, "/export/token-1", nil)
	c.Params = gin.Params{{Key: "token", Value: "token-1"}}

	handler.Download(c)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
