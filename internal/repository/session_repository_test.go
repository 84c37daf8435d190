package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voyagedesk/activity-api/internal/models"
)

func newSessionMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestSessionRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newSessionMock(t)
	defer cleanup()
	repo := NewSessionRepository(db)

	mock.ExpectExec("INSERT INTO tracking_sessions").
		WithArgs(sqlmock.AnyArg(), "agent-1", sqlmock.AnyArg(), nil).
		WillReturnResult(sqlmock.NewResult(1, 1))

	session := &models.Session{SubjectID: "agent-1", StartedAt: time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)}
	require.NoError(t, repo.Create(context.Background(), session))
	assert.NotEmpty(t, session.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionRepositoryFindOpen(t *testing.T) {
	db, mock, cleanup := newSessionMock(t)
	defer cleanup()
	repo := NewSessionRepository(db)

	started := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"id", "subject_id", "started_at", "ended_at"}).
		AddRow("sess-1", "agent-1", started, nil)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, subject_id, started_at, ended_at FROM tracking_sessions\nWHERE subject_id = $1 AND ended_at IS NULL")).
		WithArgs("agent-1").
		WillReturnRows(rows)

	session, err := repo.FindOpen(context.Background(), "agent-1")
	require.NoError(t, err)
	require.NotNil(t, session)
	assert.Equal(t, "sess-1", session.ID)
	assert.True(t, session.Open())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionRepositoryFindOpen_NoneOpen(t *testing.T) {
	db, mock, cleanup := newSessionMock(t)
	defer cleanup()
	repo := NewSessionRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, subject_id, started_at, ended_at FROM tracking_sessions\nWHERE subject_id = $1 AND ended_at IS NULL")).
		WithArgs("agent-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "subject_id", "started_at", "ended_at"}))

	session, err := repo.FindOpen(context.Background(), "agent-1")
	require.NoError(t, err)
	assert.Nil(t, session)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionRepositoryClose(t *testing.T) {
	db, mock, cleanup := newSessionMock(t)
	defer cleanup()
	repo := NewSessionRepository(db)

	endedAt := time.Date(2026, 3, 2, 17, 0, 0, 0, time.UTC)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE tracking_sessions SET ended_at = $1 WHERE id = $2 AND ended_at IS NULL")).
		WithArgs(endedAt, "sess-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Close(context.Background(), "sess-1", endedAt))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionRepositoryOpenSubjects(t *testing.T) {
	db, mock, cleanup := newSessionMock(t)
	defer cleanup()
	repo := NewSessionRepository(db)

	rows := sqlmock.NewRows([]string{"subject_id"}).AddRow("agent-1").AddRow("agent-2")
	mock.ExpectQuery(regexp.QuoteMeta("SELECT subject_id FROM tracking_sessions WHERE ended_at IS NULL ORDER BY started_at")).
		WillReturnRows(rows)

	subjects, err := repo.OpenSubjects(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"agent-1", "agent-2"}, subjects)
	assert.NoError(t, mock.ExpectationsWereMet())
}
