package repo

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskflow/internal/db"
)

func newMock(t *testing.T, dialect db.Dialect) (Repo, sqlmock.Sqlmock) {
	t.Helper()
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return Repo{DB: conn, Dialect: dialect}, mock
}

func TestStopTimeLogAlreadyStoppedIsNotFound(t *testing.T) {
	r, mock := newMock(t, db.SQLite)
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE time_logs SET end_time=?, duration_minutes=?, updated_at=? WHERE id=? AND end_time IS NULL`)).
		WithArgs("2026-01-01T10:00:00+07:00", 30, "2026-01-01T10:00:00+07:00", "log-1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := r.StopTimeLog(context.Background(), "log-1", "2026-01-01T10:00:00+07:00", 30, nil, "2026-01-01T10:00:00+07:00")
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecomputeCardHoursPostgresPlaceholders(t *testing.T) {
	r, mock := newMock(t, db.Postgres)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COALESCE(SUM(duration_minutes),0), COUNT(*) FROM time_logs WHERE end_time IS NOT NULL AND card_id=$1`)).
		WithArgs("card-1").
		WillReturnRows(sqlmock.NewRows([]string{"sum", "count"}).AddRow(85, 3))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE cards SET actual_hours=$1, updated_at=$2 WHERE id=$3`)).
		WithArgs(1.42, "now", "card-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	hours, err := r.RecomputeCardHours(context.Background(), "card-1", "now")
	require.NoError(t, err)
	assert.Equal(t, 1.42, hours)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTxRoutesThroughTransaction(t *testing.T) {
	r, mock := newMock(t, db.SQLite)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE cards SET status=?, updated_at=? WHERE id=?`)).
		WithArgs("review", "now", "card-1").
		WillReturnError(errors.New("disk I/O error"))
	mock.ExpectRollback()

	tx, err := r.DB.Begin()
	require.NoError(t, err)
	err = r.WithTx(tx).UpdateCardStatus(context.Background(), "card-1", "review", "now")
	require.Error(t, err)
	require.NoError(t, tx.Rollback())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListTimeLogsPaging(t *testing.T) {
	r, mock := newMock(t, db.SQLite)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM time_logs l WHERE l.user_id=? AND l.end_time IS NOT NULL AND l.card_id=?`)).
		WithArgs("u1", "card-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(17))
	cols := []string{"id", "card_id", "subtask_id", "user_id", "start_time", "end_time", "duration_minutes", "description", "created_at", "updated_at", "title", "name"}
	mock.ExpectQuery(`SELECT .* FROM time_logs l\s+JOIN cards c .* ORDER BY l.start_time DESC, l.id DESC LIMIT \? OFFSET \?`).
		WithArgs("u1", "card-1", 15, 15).
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow("l16", "card-1", nil, "u1", "s", "e", 90, "", "c", "u", "Card", nil).
			AddRow("l17", "card-1", "st-1", "u1", "s", "e", 5, "x", "c", "u", "Card", "Sub"))

	logs, total, err := r.ListTimeLogs(context.Background(), TimeLogFilters{UserID: "u1", Status: "completed", CardID: "card-1", Limit: 15, Offset: 15})
	require.NoError(t, err)
	assert.Equal(t, 17, total)
	require.Len(t, logs, 2)
	assert.Nil(t, logs[0].SubtaskID)
	assert.Equal(t, "1 jam 30 menit", logs[0].Formatted)
	assert.Equal(t, "Sub", logs[1].SubtaskName)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHashAPIKeyTrims(t *testing.T) {
	assert.Equal(t, HashAPIKey("abc"), HashAPIKey("  abc\n"))
	assert.Len(t, HashAPIKey("abc"), 64)
}
