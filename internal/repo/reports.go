package repo

import (
	"context"

	"taskflow/internal/domain"
	"taskflow/internal/duration"
)

// ReportRange bounds log start times; empty sides are open.
type ReportRange struct {
	From string
	To   string
}

func (rr ReportRange) clause(args []any) (string, []any) {
	var s string
	if rr.From != "" {
		s += " AND l.start_time>=?"
		args = append(args, rr.From)
	}
	if rr.To != "" {
		s += " AND l.start_time<?"
		args = append(args, rr.To)
	}
	return s, args
}

func totals(minutes, count int) domain.Totals {
	return domain.Totals{
		TotalMinutes: minutes,
		TotalHours:   duration.Hours(minutes),
		Formatted:    duration.Format(minutes),
		LogCount:     count,
	}
}

// CardHours lists every card of the project with its completed log totals.
func (r Repo) CardHours(ctx context.Context, projectID string, rr ReportRange) ([]domain.CardHours, error) {
	cond, args := rr.clause(nil)
	args = append(args, projectID)
	rows, err := r.query(ctx, `SELECT c.id,c.title,c.status,c.estimated_hours,c.actual_hours,
COALESCE(SUM(l.duration_minutes),0),COUNT(l.id)
FROM cards c
JOIN boards b ON b.id=c.board_id
LEFT JOIN time_logs l ON l.card_id=c.id AND l.end_time IS NOT NULL`+cond+`
WHERE b.project_id=?
GROUP BY c.id,c.title,c.status,c.estimated_hours,c.actual_hours,c.created_at
ORDER BY c.created_at, c.id`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.CardHours
	for rows.Next() {
		var h domain.CardHours
		var minutes, count int
		if err := rows.Scan(&h.CardID, &h.Title, &h.Status, &h.EstimatedHours, &h.ActualHours, &minutes, &count); err != nil {
			return nil, err
		}
		h.Totals = totals(minutes, count)
		res = append(res, h)
	}
	return res, rows.Err()
}

// UserHours lists users with completed logs on the project, most hours first.
func (r Repo) UserHours(ctx context.Context, projectID string, rr ReportRange) ([]domain.UserHours, error) {
	cond, args := rr.clause([]any{projectID})
	rows, err := r.query(ctx, `SELECT u.id,u.name,COALESCE(SUM(l.duration_minutes),0),COUNT(l.id)
FROM time_logs l
JOIN cards c ON c.id=l.card_id
JOIN boards b ON b.id=c.board_id
JOIN users u ON u.id=l.user_id
WHERE b.project_id=? AND l.end_time IS NOT NULL`+cond+`
GROUP BY u.id,u.name
ORDER BY 3 DESC, u.name`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.UserHours
	for rows.Next() {
		var h domain.UserHours
		var minutes, count int
		if err := rows.Scan(&h.UserID, &h.Name, &minutes, &count); err != nil {
			return nil, err
		}
		h.Totals = totals(minutes, count)
		res = append(res, h)
	}
	return res, rows.Err()
}

// Totals wraps LogTotals with derived hour and display values.
func (r Repo) Totals(ctx context.Context, cardID, subtaskID string) (domain.Totals, error) {
	minutes, count, err := r.LogTotals(ctx, cardID, subtaskID)
	if err != nil {
		return domain.Totals{}, err
	}
	return totals(minutes, count), nil
}
