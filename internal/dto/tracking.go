package dto

import "github.com/voyagedesk/activity-api/internal/models"

// RecordEventRequest is the body for POST /tracking/:subjectId/events.
type RecordEventRequest struct {
	Type    models.EventType    `json:"type" binding:"required"`
	Details models.EventDetails `json:"details"`
}

// StartTrackingResponse returns the freshly opened session.
type StartTrackingResponse struct {
	SessionID string `json:"session_id"`
	Rotated   bool   `json:"rotated"`
}

// TrackingStatusResponse reports whether a subject is being tracked.
type TrackingStatusResponse struct {
	SubjectID string `json:"subject_id"`
	Tracking  bool   `json:"tracking"`
	SessionID string `json:"session_id,omitempty"`
}
