package models

import (
	"fmt"
	"time"
)

// EventType identifies what kind of activity an event records. The set is
// closed; unknown values are rejected at construction time.
type EventType string

const (
	EventTypeActive   EventType = "active"
	EventTypeIdle     EventType = "idle"
	EventTypeBreak    EventType = "break"
	EventTypePageView EventType = "page_view"
	EventTypeAction   EventType = "action"
)

// Valid reports whether the type belongs to the closed set.
func (t EventType) Valid() bool {
	switch t {
	case EventTypeActive, EventTypeIdle, EventTypeBreak, EventTypePageView, EventTypeAction:
		return true
	}
	return false
}

// EventDetails carries the per-type payload. Which fields are meaningful
// depends on the event type and is enforced by Validate, not guessed at
// read time.
type EventDetails struct {
	Page       string `json:"page,omitempty"`
	Element    string `json:"element,omitempty"`
	Action     string `json:"action,omitempty"`
	DurationMs int64  `json:"duration_ms,omitempty"`
}

// Validate enforces the tagged-union contract between an event type and its
// details payload.
func (d EventDetails) Validate(t EventType) error {
	if d.DurationMs < 0 {
		return fmt.Errorf("duration_ms must be non-negative")
	}
	switch t {
	case EventTypePageView:
		if d.Page == "" {
			return fmt.Errorf("page_view events require details.page")
		}
	case EventTypeAction:
		if d.Action == "" {
			return fmt.Errorf("action events require details.action")
		}
	case EventTypeActive, EventTypeIdle, EventTypeBreak:
		// No required fields; page/element are informational.
	default:
		return fmt.Errorf("unknown event type %q", t)
	}
	return nil
}

// ActivityEvent is a single timestamped occurrence within a tracking
// session. Events are append-only and never mutated after creation.
type ActivityEvent struct {
	ID        string       `db:"id" json:"id"`
	SubjectID string       `db:"subject_id" json:"subject_id"`
	SessionID string       `db:"session_id" json:"session_id"`
	Timestamp time.Time    `db:"timestamp" json:"timestamp"`
	Type      EventType    `db:"type" json:"type"`
	Details   EventDetails `db:"-" json:"details"`
}

// Session is one contiguous start-to-stop tracking interval for a subject.
// EndedAt stays nil while the session is open; at most one session per
// subject may be open at a time.
type Session struct {
	ID        string     `db:"id" json:"id"`
	SubjectID string     `db:"subject_id" json:"subject_id"`
	StartedAt time.Time  `db:"started_at" json:"started_at"`
	EndedAt   *time.Time `db:"ended_at" json:"ended_at,omitempty"`
}

// Open reports whether the session has not been closed yet.
func (s Session) Open() bool {
	return s.EndedAt == nil
}

// EventFilter scopes event log queries to one subject and a half-open
// [From, To) window.
type EventFilter struct {
	SubjectID string
	From      time.Time
	To        time.Time
}

// Validate rejects empty or inverted windows before any query runs.
func (f EventFilter) Validate() error {
	if f.SubjectID == "" {
		return fmt.Errorf("subject_id required")
	}
	if !f.From.Before(f.To) {
		return fmt.Errorf("from must be before to")
	}
	return nil
}

// Pagination carries list paging metadata in API responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
