package repo

import (
	"context"
	"database/sql"

	"taskflow/internal/domain"
)

const assignmentCols = `card_id,user_id,assignment_status,assigned_at,started_at,completed_at`

func scanAssignment(row scanner) (domain.CardAssignment, error) {
	var a domain.CardAssignment
	var started, completed sql.NullString
	err := row.Scan(&a.CardID, &a.UserID, &a.AssignmentStatus, &a.AssignedAt, &started, &completed)
	if err == sql.ErrNoRows {
		return a, ErrNotFound
	}
	a.StartedAt = strPtr(started)
	a.CompletedAt = strPtr(completed)
	return a, err
}

// UpsertAssignment assigns a user to a card; re-assigning keeps the history.
func (r Repo) UpsertAssignment(ctx context.Context, a domain.CardAssignment) error {
	_, err := r.exec(ctx, `INSERT INTO card_assignments(card_id,user_id,assignment_status,assigned_at) VALUES (?,?,?,?)
ON CONFLICT(card_id,user_id) DO NOTHING`, a.CardID, a.UserID, a.AssignmentStatus, a.AssignedAt)
	return err
}

func (r Repo) GetAssignment(ctx context.Context, cardID, userID string) (domain.CardAssignment, error) {
	return scanAssignment(r.queryRow(ctx, `SELECT `+assignmentCols+` FROM card_assignments WHERE card_id=? AND user_id=?`, cardID, userID))
}

func (r Repo) ListAssignments(ctx context.Context, cardID string) ([]domain.CardAssignment, error) {
	rows, err := r.query(ctx, `SELECT `+assignmentCols+` FROM card_assignments WHERE card_id=? ORDER BY assigned_at, user_id`, cardID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.CardAssignment
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, a)
	}
	return res, rows.Err()
}

// MarkAssignmentStarted records the first timer start; later starts are no-ops.
func (r Repo) MarkAssignmentStarted(ctx context.Context, cardID, userID, now string) (bool, error) {
	res, err := r.exec(ctx, `UPDATE card_assignments SET started_at=?, assignment_status=? WHERE card_id=? AND user_id=? AND started_at IS NULL`,
		now, domain.AssignmentInProgress, cardID, userID)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// MarkAssignmentCompleted stamps completed_at on every stop.
func (r Repo) MarkAssignmentCompleted(ctx context.Context, cardID, userID, now string) (bool, error) {
	res, err := r.exec(ctx, `UPDATE card_assignments SET completed_at=?, assignment_status=? WHERE card_id=? AND user_id=?`,
		now, domain.AssignmentCompleted, cardID, userID)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}
