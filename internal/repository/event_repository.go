package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/voyagedesk/activity-api/internal/models"
	appErrors "github.com/voyagedesk/activity-api/pkg/errors"
)

// EventRepository is the append-only, time-ordered event log.
type EventRepository struct {
	db *sqlx.DB
}

// NewEventRepository constructs a new repository.
func NewEventRepository(db *sqlx.DB) *EventRepository {
	return &EventRepository{db: db}
}

type eventRow struct {
	ID        string           `db:"id"`
	SubjectID string           `db:"subject_id"`
	SessionID string           `db:"session_id"`
	Timestamp time.Time        `db:"timestamp"`
	Type      models.EventType `db:"type"`
	Details   []byte           `db:"details"`
}

func (row eventRow) toModel() (models.ActivityEvent, error) {
	event := models.ActivityEvent{
		ID:        row.ID,
		SubjectID: row.SubjectID,
		SessionID: row.SessionID,
		Timestamp: row.Timestamp.UTC(),
		Type:      row.Type,
	}
	if len(row.Details) > 0 {
		if err := json.Unmarshal(row.Details, &event.Details); err != nil {
			return models.ActivityEvent{}, fmt.Errorf("decode event details: %w", err)
		}
	}
	return event, nil
}

// Append stores a new event, enforcing per-session timestamp monotonicity.
// The session row is locked for the duration of the transaction so
// concurrent appends to one session serialize; an event stamped earlier
// than the session's last stored event is rejected with ErrOutOfOrder and
// the log is left unchanged.
func (r *EventRepository) Append(ctx context.Context, event *models.ActivityEvent) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	event.Timestamp = event.Timestamp.UTC()

	details, err := json.Marshal(event.Details)
	if err != nil {
		return fmt.Errorf("encode event details: %w", err)
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin append: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var sessionID string
	if err := tx.GetContext(ctx, &sessionID,
		`SELECT id FROM tracking_sessions WHERE id = $1 FOR UPDATE`, event.SessionID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "tracking session not found")
		}
		return fmt.Errorf("lock session: %w", err)
	}

	var last sql.NullTime
	if err := tx.GetContext(ctx, &last,
		`SELECT MAX(timestamp) FROM activity_events WHERE session_id = $1`, event.SessionID); err != nil {
		return fmt.Errorf("read last event timestamp: %w", err)
	}
	if last.Valid && event.Timestamp.Before(last.Time) {
		return appErrors.ErrOutOfOrder
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO activity_events (id, subject_id, session_id, timestamp, type, details)
VALUES ($1, $2, $3, $4, $5, $6)`,
		event.ID, event.SubjectID, event.SessionID, event.Timestamp, event.Type, details); err != nil {
		return fmt.Errorf("insert event: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit append: %w", err)
	}
	return nil
}

// Query returns a subject's events in [From, To) ordered by timestamp
// ascending. Each call re-executes the query; no cursor state is kept.
func (r *EventRepository) Query(ctx context.Context, filter models.EventFilter) ([]models.ActivityEvent, error) {
	if err := filter.Validate(); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInvalidRange.Code, appErrors.ErrInvalidRange.Status, appErrors.ErrInvalidRange.Message)
	}
	query := `SELECT id, subject_id, session_id, timestamp, type, details FROM activity_events
WHERE subject_id = $1 AND timestamp >= $2 AND timestamp < $3 ORDER BY timestamp ASC, id ASC`
	var rows []eventRow
	if err := r.db.SelectContext(ctx, &rows, query, filter.SubjectID, filter.From.UTC(), filter.To.UTC()); err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	events := make([]models.ActivityEvent, 0, len(rows))
	for _, row := range rows {
		event, err := row.toModel()
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	return events, nil
}

// Recent returns the newest events in [From, To) for a subject, newest
// first, capped at limit.
func (r *EventRepository) Recent(ctx context.Context, filter models.EventFilter, limit int) ([]models.ActivityEvent, error) {
	if err := filter.Validate(); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInvalidRange.Code, appErrors.ErrInvalidRange.Status, appErrors.ErrInvalidRange.Message)
	}
	if limit <= 0 {
		limit = 25
	}
	query := fmt.Sprintf(`SELECT id, subject_id, session_id, timestamp, type, details FROM activity_events
WHERE subject_id = $1 AND timestamp >= $2 AND timestamp < $3 ORDER BY timestamp DESC, id DESC LIMIT %d`, limit)
	var rows []eventRow
	if err := r.db.SelectContext(ctx, &rows, query, filter.SubjectID, filter.From.UTC(), filter.To.UTC()); err != nil {
		return nil, fmt.Errorf("query recent events: %w", err)
	}
	events := make([]models.ActivityEvent, 0, len(rows))
	for _, row := range rows {
		event, err := row.toModel()
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	return events, nil
}

// DeleteOlderThan removes events past the retention cutoff and returns how
// many rows were deleted.
func (r *EventRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM activity_events WHERE timestamp < $1`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("delete expired events: %w", err)
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("count deleted events: %w", err)
	}
	return deleted, nil
}
