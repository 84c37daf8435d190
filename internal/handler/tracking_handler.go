package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/voyagedesk/activity-api/internal/dto"
	"github.com/voyagedesk/activity-api/internal/models"
	appErrors "github.com/voyagedesk/activity-api/pkg/errors"
	"github.com/voyagedesk/activity-api/pkg/response"
)

// TrackingService describes the tracker operations exposed over HTTP.
type TrackingService interface {
	Start(ctx context.Context, subjectID string) (string, bool, error)
	Stop(ctx context.Context, subjectID string) error
	IsTracking(ctx context.Context, subjectID string) (bool, error)
	CurrentSessionID(ctx context.Context, subjectID string) (string, bool, error)
	CurrentSubjects(ctx context.Context) ([]string, error)
	Record(ctx context.Context, subjectID string, eventType models.EventType, details models.EventDetails) (*models.ActivityEvent, error)
}

// TrackingHandler exposes session lifecycle and event ingestion endpoints.
type TrackingHandler struct {
	tracker TrackingService
}

// NewTrackingHandler constructs the tracking handler.
func NewTrackingHandler(tracker TrackingService) *TrackingHandler {
	return &TrackingHandler{tracker: tracker}
}

// canActFor gates self-service: agents may only manage their own tracking,
// managers and admins may act for any subject.
func canActFor(c *gin.Context, subjectID string) bool {
	claims := claimsFromContext(c)
	if claims == nil {
		return true
	}
	if claims.Role == models.RoleAgent {
		return claims.UserID == subjectID
	}
	return true
}

// Start opens (or rotates) a tracking session for a subject.
func (h *TrackingHandler) Start(c *gin.Context) {
	subjectID := c.Param("subjectId")
	if !canActFor(c, subjectID) {
		response.Error(c, appErrors.ErrForbidden)
		return
	}
	sessionID, rotated, err := h.tracker.Start(c.Request.Context(), subjectID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, dto.StartTrackingResponse{SessionID: sessionID, Rotated: rotated})
}

// Stop closes the subject's open session; stopping an untracked subject is
// a no-op.
func (h *TrackingHandler) Stop(c *gin.Context) {
	if !canActFor(c, c.Param("subjectId")) {
		response.Error(c, appErrors.ErrForbidden)
		return
	}
	if err := h.tracker.Stop(c.Request.Context(), c.Param("subjectId")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Status reports whether a subject is currently tracked.
func (h *TrackingHandler) Status(c *gin.Context) {
	subjectID := c.Param("subjectId")
	sessionID, tracking, err := h.tracker.CurrentSessionID(c.Request.Context(), subjectID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.TrackingStatusResponse{
		SubjectID: subjectID,
		Tracking:  tracking,
		SessionID: sessionID,
	}, nil)
}

// Subjects lists subjects with an open session.
func (h *TrackingHandler) Subjects(c *gin.Context) {
	subjects, err := h.tracker.CurrentSubjects(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, subjects, nil)
}

// Record ingests one activity event for a subject.
func (h *TrackingHandler) Record(c *gin.Context) {
	var req dto.RecordEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid event payload"))
		return
	}
	if !canActFor(c, c.Param("subjectId")) {
		response.Error(c, appErrors.ErrForbidden)
		return
	}
	event, err := h.tracker.Record(c.Request.Context(), c.Param("subjectId"), req.Type, req.Details)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, event)
}
