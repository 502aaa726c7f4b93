package engine

import (
	"context"
	"time"

	"taskflow/internal/domain"
	"taskflow/internal/duration"
	"taskflow/internal/repo"
)

// HoursReport aggregates completed logs of a project per card and per user.
// from and to are inclusive YYYY-MM-DD dates in the application zone.
func (e Engine) HoursReport(ctx context.Context, projectID, from, to, userID string) (domain.HoursReport, error) {
	rep := domain.HoursReport{ProjectID: projectID, From: from, To: to}
	loc := e.Location
	if loc == nil {
		loc = time.UTC
	}
	var rr repo.ReportRange
	if from != "" {
		t, err := time.ParseInLocation("2006-01-02", from, loc)
		if err != nil {
			return rep, invalid("from", "from must be YYYY-MM-DD")
		}
		rr.From = e.stamp(t)
	}
	if to != "" {
		t, err := time.ParseInLocation("2006-01-02", to, loc)
		if err != nil {
			return rep, invalid("to", "to must be YYYY-MM-DD")
		}
		rr.To = e.stamp(t.AddDate(0, 0, 1))
	}
	if rr.From != "" && rr.To != "" && rr.To <= rr.From {
		return rep, invalid("to", "to must not be before from")
	}
	if _, err := e.GetProject(ctx, projectID, userID); err != nil {
		return rep, err
	}
	cards, err := e.Repo.CardHours(ctx, projectID, rr)
	if err != nil {
		return rep, err
	}
	users, err := e.Repo.UserHours(ctx, projectID, rr)
	if err != nil {
		return rep, err
	}
	rep.Cards, rep.Users = cards, users
	if rep.Cards == nil {
		rep.Cards = []domain.CardHours{}
	}
	if rep.Users == nil {
		rep.Users = []domain.UserHours{}
	}
	minutes, count := 0, 0
	for _, u := range users {
		minutes += u.TotalMinutes
		count += u.LogCount
	}
	rep.Totals = domain.Totals{
		TotalMinutes: minutes,
		TotalHours:   duration.Hours(minutes),
		Formatted:    duration.Format(minutes),
		LogCount:     count,
	}
	return rep, nil
}
