package repo

import (
	"context"
	"database/sql"

	"taskflow/internal/domain"
	"taskflow/internal/duration"
)

const cardCols = `c.id,c.board_id,c.title,COALESCE(c.description,''),c.status,c.priority,c.due_date,c.estimated_hours,c.actual_hours,c.created_by,c.created_at,c.updated_at`

type scanner interface{ Scan(...any) error }

func scanCard(row scanner, extra ...any) (domain.Card, error) {
	var c domain.Card
	var due sql.NullString
	dest := []any{&c.ID, &c.BoardID, &c.Title, &c.Description, &c.Status, &c.Priority, &due, &c.EstimatedHours, &c.ActualHours, &c.CreatedBy, &c.CreatedAt, &c.UpdatedAt}
	err := row.Scan(append(dest, extra...)...)
	if err == sql.ErrNoRows {
		return c, ErrNotFound
	}
	c.DueDate = strPtr(due)
	return c, err
}

func (r Repo) InsertCard(ctx context.Context, c domain.Card) error {
	_, err := r.exec(ctx, `INSERT INTO cards(id,board_id,title,description,status,priority,due_date,estimated_hours,actual_hours,created_by,created_at,updated_at)
VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`,
		c.ID, c.BoardID, c.Title, nullable(c.Description), c.Status, c.Priority, nullableStringPtr(c.DueDate),
		c.EstimatedHours, c.ActualHours, c.CreatedBy, c.CreatedAt, c.UpdatedAt)
	return err
}

func (r Repo) GetCard(ctx context.Context, id string) (domain.Card, error) {
	return scanCard(r.queryRow(ctx, `SELECT `+cardCols+` FROM cards c WHERE c.id=?`, id))
}

// GetCardRef loads a card with its board name and owning project.
func (r Repo) GetCardRef(ctx context.Context, id string) (domain.CardRef, error) {
	var ref domain.CardRef
	c, err := scanCard(r.queryRow(ctx, `SELECT `+cardCols+`,b.name,b.project_id FROM cards c JOIN boards b ON b.id=c.board_id WHERE c.id=?`, id),
		&ref.BoardName, &ref.ProjectID)
	ref.Card = c
	return ref, err
}

func (r Repo) ListCards(ctx context.Context, boardID, status string) ([]domain.Card, error) {
	query := `SELECT ` + cardCols + ` FROM cards c WHERE c.board_id=?`
	args := []any{boardID}
	if status != "" {
		query += ` AND c.status=?`
		args = append(args, status)
	}
	query += ` ORDER BY c.created_at, c.id`
	rows, err := r.query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Card
	for rows.Next() {
		c, err := scanCard(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, c)
	}
	return res, rows.Err()
}

func (r Repo) UpdateCardStatus(ctx context.Context, id, status, now string) error {
	return affectedOne(r.exec(ctx, `UPDATE cards SET status=?, updated_at=? WHERE id=?`, status, now, id))
}

// RecomputeCardHours sets actual_hours to the rounded sum of completed log
// minutes on the card and returns the new value.
func (r Repo) RecomputeCardHours(ctx context.Context, cardID, now string) (float64, error) {
	minutes, _, err := r.LogTotals(ctx, cardID, "")
	if err != nil {
		return 0, err
	}
	hours := duration.Hours(minutes)
	if err := affectedOne(r.exec(ctx, `UPDATE cards SET actual_hours=?, updated_at=? WHERE id=?`, hours, now, cardID)); err != nil {
		return 0, err
	}
	return hours, nil
}

const subtaskCols = `id,card_id,name,COALESCE(description,''),status,estimated_hours,actual_hours,created_at,updated_at`

func scanSubtask(row scanner) (domain.Subtask, error) {
	var s domain.Subtask
	err := row.Scan(&s.ID, &s.CardID, &s.Name, &s.Description, &s.Status, &s.EstimatedHours, &s.ActualHours, &s.CreatedAt, &s.UpdatedAt)
	if err == sql.ErrNoRows {
		return s, ErrNotFound
	}
	return s, err
}

func (r Repo) InsertSubtask(ctx context.Context, s domain.Subtask) error {
	_, err := r.exec(ctx, `INSERT INTO subtasks(id,card_id,name,description,status,estimated_hours,actual_hours,created_at,updated_at) VALUES (?,?,?,?,?,?,?,?,?)`,
		s.ID, s.CardID, s.Name, nullable(s.Description), s.Status, s.EstimatedHours, s.ActualHours, s.CreatedAt, s.UpdatedAt)
	return err
}

func (r Repo) GetSubtask(ctx context.Context, id string) (domain.Subtask, error) {
	return scanSubtask(r.queryRow(ctx, `SELECT `+subtaskCols+` FROM subtasks WHERE id=?`, id))
}

func (r Repo) ListSubtasks(ctx context.Context, cardID string) ([]domain.Subtask, error) {
	rows, err := r.query(ctx, `SELECT `+subtaskCols+` FROM subtasks WHERE card_id=? ORDER BY created_at, id`, cardID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Subtask
	for rows.Next() {
		s, err := scanSubtask(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, s)
	}
	return res, rows.Err()
}

func (r Repo) UpdateSubtaskStatus(ctx context.Context, id, status, now string) error {
	return affectedOne(r.exec(ctx, `UPDATE subtasks SET status=?, updated_at=? WHERE id=?`, status, now, id))
}
