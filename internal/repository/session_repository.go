package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/voyagedesk/activity-api/internal/models"
)

// SessionRepository manages persistence for tracking sessions.
//
// The tracking_sessions table carries a partial unique index on
// (subject_id) WHERE ended_at IS NULL, so the at-most-one-open-session
// invariant holds even if two writers race past the service-level lock.
type SessionRepository struct {
	db *sqlx.DB
}

// NewSessionRepository constructs a new repository.
func NewSessionRepository(db *sqlx.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// Create opens a new session row.
func (r *SessionRepository) Create(ctx context.Context, session *models.Session) error {
	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	if session.StartedAt.IsZero() {
		session.StartedAt = time.Now().UTC()
	}
	query := `INSERT INTO tracking_sessions (id, subject_id, started_at, ended_at)
VALUES (:id, :subject_id, :started_at, :ended_at)`
	if _, err := r.db.NamedExecContext(ctx, query, session); err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

// FindOpen returns the open session for a subject, or nil when none exists.
func (r *SessionRepository) FindOpen(ctx context.Context, subjectID string) (*models.Session, error) {
	query := `SELECT id, subject_id, started_at, ended_at FROM tracking_sessions
WHERE subject_id = $1 AND ended_at IS NULL`
	var session models.Session
	if err := r.db.GetContext(ctx, &session, query, subjectID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find open session: %w", err)
	}
	return &session, nil
}

// Close stamps ended_at on the session. Closing an already-closed session
// leaves it untouched.
func (r *SessionRepository) Close(ctx context.Context, sessionID string, endedAt time.Time) error {
	query := `UPDATE tracking_sessions SET ended_at = $1 WHERE id = $2 AND ended_at IS NULL`
	if _, err := r.db.ExecContext(ctx, query, endedAt.UTC(), sessionID); err != nil {
		return fmt.Errorf("close session: %w", err)
	}
	return nil
}

// OpenSubjects lists subject ids that currently have an open session.
func (r *SessionRepository) OpenSubjects(ctx context.Context) ([]string, error) {
	var subjects []string
	query := `SELECT subject_id FROM tracking_sessions WHERE ended_at IS NULL ORDER BY started_at`
	if err := r.db.SelectContext(ctx, &subjects, query); err != nil {
		return nil, fmt.Errorf("list open subjects: %w", err)
	}
	return subjects, nil
}
