package repo

import (
	"context"
	"database/sql"
	"strings"

	"taskflow/internal/domain"
	"taskflow/internal/duration"
)

const timeLogCols = `l.id,l.card_id,l.subtask_id,l.user_id,l.start_time,l.end_time,l.duration_minutes,COALESCE(l.description,''),l.created_at,l.updated_at`

func scanTimeLog(row scanner, extra ...any) (domain.TimeLog, error) {
	var l domain.TimeLog
	var subtaskID, endTime sql.NullString
	dest := []any{&l.ID, &l.CardID, &subtaskID, &l.UserID, &l.StartTime, &endTime, &l.DurationMinutes, &l.Description, &l.CreatedAt, &l.UpdatedAt}
	err := row.Scan(append(dest, extra...)...)
	if err == sql.ErrNoRows {
		return l, ErrNotFound
	}
	l.SubtaskID = strPtr(subtaskID)
	l.EndTime = strPtr(endTime)
	return l, err
}

// InsertTimeLog stores a new log. A second ongoing log for the same user
// violates the time_logs_one_ongoing index.
func (r Repo) InsertTimeLog(ctx context.Context, l domain.TimeLog) error {
	_, err := r.exec(ctx, `INSERT INTO time_logs(id,card_id,subtask_id,user_id,start_time,end_time,duration_minutes,description,created_at,updated_at)
VALUES (?,?,?,?,?,?,?,?,?,?)`,
		l.ID, l.CardID, nullableStringPtr(l.SubtaskID), l.UserID, l.StartTime, nullableStringPtr(l.EndTime),
		l.DurationMinutes, nullable(l.Description), l.CreatedAt, l.UpdatedAt)
	return err
}

func (r Repo) GetTimeLog(ctx context.Context, id string) (domain.TimeLog, error) {
	return scanTimeLog(r.queryRow(ctx, `SELECT `+timeLogCols+` FROM time_logs l WHERE l.id=?`, id))
}

// GetOngoingLog returns the user's running log with the card title.
func (r Repo) GetOngoingLog(ctx context.Context, userID string) (domain.TimeLogEntry, error) {
	var e domain.TimeLogEntry
	var subtaskName sql.NullString
	l, err := scanTimeLog(r.queryRow(ctx, `SELECT `+timeLogCols+`,c.title,s.name FROM time_logs l
JOIN cards c ON c.id=l.card_id
LEFT JOIN subtasks s ON s.id=l.subtask_id
WHERE l.user_id=? AND l.end_time IS NULL`, userID), &e.CardTitle, &subtaskName)
	e.TimeLog = l
	e.SubtaskName = subtaskName.String
	return e, err
}

// StopTimeLog closes an ongoing log. A nil description keeps the stored one.
func (r Repo) StopTimeLog(ctx context.Context, id, endTime string, minutes int, description *string, now string) error {
	if description != nil {
		return affectedOne(r.exec(ctx, `UPDATE time_logs SET end_time=?, duration_minutes=?, description=?, updated_at=? WHERE id=? AND end_time IS NULL`,
			endTime, minutes, nullable(*description), now, id))
	}
	return affectedOne(r.exec(ctx, `UPDATE time_logs SET end_time=?, duration_minutes=?, updated_at=? WHERE id=? AND end_time IS NULL`,
		endTime, minutes, now, id))
}

func (r Repo) UpdateTimeLogDescription(ctx context.Context, id, description, now string) error {
	return affectedOne(r.exec(ctx, `UPDATE time_logs SET description=?, updated_at=? WHERE id=?`, nullable(description), now, id))
}

func (r Repo) DeleteTimeLog(ctx context.Context, id string) error {
	return affectedOne(r.exec(ctx, `DELETE FROM time_logs WHERE id=?`, id))
}

type TimeLogFilters struct {
	UserID    string
	Status    string // "ongoing" or "completed"
	CardID    string
	SubtaskID string
	Limit     int
	Offset    int
}

func (f TimeLogFilters) where() (string, []any) {
	var clauses []string
	var args []any
	if f.UserID != "" {
		clauses = append(clauses, "l.user_id=?")
		args = append(args, f.UserID)
	}
	switch f.Status {
	case "ongoing":
		clauses = append(clauses, "l.end_time IS NULL")
	case "completed":
		clauses = append(clauses, "l.end_time IS NOT NULL")
	}
	if f.CardID != "" {
		clauses = append(clauses, "l.card_id=?")
		args = append(args, f.CardID)
	}
	if f.SubtaskID != "" {
		clauses = append(clauses, "l.subtask_id=?")
		args = append(args, f.SubtaskID)
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

// ListTimeLogs returns a page of logs, newest start first, and the total
// number of matching rows.
func (r Repo) ListTimeLogs(ctx context.Context, f TimeLogFilters) ([]domain.TimeLogEntry, int, error) {
	where, args := f.where()
	var total int
	if err := r.queryRow(ctx, `SELECT COUNT(*) FROM time_logs l`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	query := `SELECT ` + timeLogCols + `,c.title,s.name FROM time_logs l
JOIN cards c ON c.id=l.card_id
LEFT JOIN subtasks s ON s.id=l.subtask_id` + where + ` ORDER BY l.start_time DESC, l.id DESC`
	if f.Limit > 0 {
		query += ` LIMIT ? OFFSET ?`
		args = append(args, f.Limit, f.Offset)
	}
	rows, err := r.query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var res []domain.TimeLogEntry
	for rows.Next() {
		var e domain.TimeLogEntry
		var subtaskName sql.NullString
		l, err := scanTimeLog(rows, &e.CardTitle, &subtaskName)
		if err != nil {
			return nil, 0, err
		}
		e.TimeLog = l
		e.SubtaskName = subtaskName.String
		e.Formatted = duration.Format(l.DurationMinutes)
		res = append(res, e)
	}
	return res, total, rows.Err()
}

// LogTotals sums completed logs on a card, or on a subtask when subtaskID is
// set, returning minutes and log count.
func (r Repo) LogTotals(ctx context.Context, cardID, subtaskID string) (int, int, error) {
	query := `SELECT COALESCE(SUM(duration_minutes),0), COUNT(*) FROM time_logs WHERE end_time IS NOT NULL AND `
	arg := cardID
	if subtaskID != "" {
		query += `subtask_id=?`
		arg = subtaskID
	} else {
		query += `card_id=?`
	}
	var minutes, count int
	err := r.queryRow(ctx, query, arg).Scan(&minutes, &count)
	return minutes, count, err
}
