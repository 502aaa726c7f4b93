package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"taskflow/internal/db"
	"taskflow/internal/domain"
	"taskflow/internal/duration"
	"taskflow/internal/engine/auth"
	"taskflow/internal/events"
	"taskflow/internal/lock"
	"taskflow/internal/repo"
	"taskflow/internal/workflow"
)

const (
	DefaultPerPage = 15
	MaxPerPage     = 100
)

type StartOptions struct {
	CardID      string
	SubtaskID   string
	Description string
	UserID      string
}

type StartResult struct {
	Log           domain.TimeLog `json:"time_log"`
	CardTitle     string         `json:"card_title"`
	BoardName     string         `json:"board_name"`
	SubtaskName   string         `json:"subtask_name,omitempty"`
	CardStatus    string         `json:"card_status"`
	SubtaskStatus string         `json:"subtask_status,omitempty"`
}

// StartTimer opens a time log for the user on a card or subtask. The user's
// lock and the one-ongoing index keep a user to a single running log; the
// card lock orders the status changes against manual updates. Locks are
// always taken user first, then card.
func (e Engine) StartTimer(ctx context.Context, opts StartOptions) (StartResult, error) {
	opts.CardID = strings.TrimSpace(opts.CardID)
	opts.SubtaskID = strings.TrimSpace(opts.SubtaskID)
	if opts.CardID == "" && opts.SubtaskID == "" {
		return StartResult{}, invalid("card_id", "card_id or subtask_id is required")
	}
	unlock, err := e.locker().Lock(ctx, lock.UserKey(opts.UserID))
	if err != nil {
		return StartResult{}, fmt.Errorf("acquire timer lock: %w", err)
	}
	defer unlock()

	cardID := opts.CardID
	if cardID == "" {
		s, err := e.Repo.GetSubtask(ctx, opts.SubtaskID)
		if err := notFound("subtask", opts.SubtaskID, err); err != nil {
			return StartResult{}, err
		}
		cardID = s.CardID
	}
	unlockCard, err := e.locker().Lock(ctx, lock.CardKey(cardID))
	if err != nil {
		return StartResult{}, fmt.Errorf("acquire card lock: %w", err)
	}
	defer unlockCard()

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return StartResult{}, err
	}
	defer tx.Rollback()
	r := e.Repo.WithTx(tx)

	var sub *domain.Subtask
	if opts.SubtaskID != "" {
		s, err := r.GetSubtask(ctx, opts.SubtaskID)
		if err := notFound("subtask", opts.SubtaskID, err); err != nil {
			return StartResult{}, err
		}
		if s.CardID != cardID {
			return StartResult{}, invalid("subtask_id", "subtask does not belong to the card")
		}
		sub = &s
	}
	card, err := r.GetCardRef(ctx, cardID)
	if err := notFound("card", cardID, err); err != nil {
		return StartResult{}, err
	}
	if err := e.Policy.Require(ctx, r, card.ProjectID, opts.UserID, "track time"); err != nil {
		return StartResult{}, err
	}
	running, err := r.GetOngoingLog(ctx, opts.UserID)
	if err == nil {
		return StartResult{}, TimerRunningError{LogID: running.ID, CardID: running.CardID, CardTitle: running.CardTitle}
	}
	if !errors.Is(err, repo.ErrNotFound) {
		return StartResult{}, err
	}

	ts := e.stamp(e.now())
	log := domain.TimeLog{
		ID:          uuid.NewString(),
		CardID:      card.ID,
		UserID:      opts.UserID,
		StartTime:   ts,
		Description: strings.TrimSpace(opts.Description),
		CreatedAt:   ts,
		UpdatedAt:   ts,
	}
	if sub != nil {
		log.SubtaskID = &sub.ID
	}
	if err := r.InsertTimeLog(ctx, log); err != nil {
		if db.IsUniqueViolation(err) {
			// The failed insert aborts the tx on postgres and holds the only
			// sqlite connection, so read the winner outside it.
			tx.Rollback()
			return StartResult{}, e.runningConflict(ctx, opts.UserID)
		}
		return StartResult{}, fmt.Errorf("insert time log: %w", err)
	}

	res := StartResult{Log: log, CardTitle: card.Title, BoardName: card.BoardName, CardStatus: card.Status}
	if sub != nil {
		res.SubtaskName = sub.Name
		res.SubtaskStatus = sub.Status
		d, err := workflow.Subtasks.Decide(workflow.TimerStart, sub.Status, domain.SubtaskInProgress, workflow.Facts{})
		if err != nil {
			return StartResult{}, err
		}
		if d.Changed() {
			if err := r.UpdateSubtaskStatus(ctx, sub.ID, d.To, ts); err != nil {
				return StartResult{}, err
			}
			res.SubtaskStatus = d.To
			if err := e.Events.Append(ctx, r, events.SubtaskStatusChanged, card.ProjectID, "subtask", sub.ID, opts.UserID,
				events.EventPayload{"from": d.From, "to": d.To, "trigger": string(workflow.TimerStart)}); err != nil {
				return StartResult{}, err
			}
		}
	} else {
		d, err := workflow.Cards.Decide(workflow.TimerStart, card.Status, domain.CardInProgress, workflow.Facts{})
		if err != nil {
			return StartResult{}, err
		}
		if d.Changed() {
			if err := r.UpdateCardStatus(ctx, card.ID, d.To, ts); err != nil {
				return StartResult{}, err
			}
			res.CardStatus = d.To
			if err := e.Events.Append(ctx, r, events.CardStatusChanged, card.ProjectID, "card", card.ID, opts.UserID,
				events.EventPayload{"from": d.From, "to": d.To, "trigger": string(workflow.TimerStart)}); err != nil {
				return StartResult{}, err
			}
		}
	}
	if _, err := r.MarkAssignmentStarted(ctx, card.ID, opts.UserID, ts); err != nil {
		return StartResult{}, fmt.Errorf("mark assignment started: %w", err)
	}
	if err := e.Events.Append(ctx, r, events.TimeLogStarted, card.ProjectID, "time_log", log.ID, opts.UserID,
		events.EventPayload{"card_id": card.ID, "subtask_id": log.SubtaskID, "start_time": ts}); err != nil {
		return StartResult{}, err
	}
	if err := tx.Commit(); err != nil {
		return StartResult{}, err
	}
	return res, nil
}

// runningConflict describes the user's ongoing log as a TimerRunningError.
func (e Engine) runningConflict(ctx context.Context, userID string) TimerRunningError {
	running, err := e.Repo.GetOngoingLog(ctx, userID)
	if err != nil {
		return TimerRunningError{}
	}
	return TimerRunningError{LogID: running.ID, CardID: running.CardID, CardTitle: running.CardTitle}
}

type StopResult struct {
	Log             domain.TimeLog `json:"time_log"`
	Formatted       string         `json:"formatted_duration"`
	CardActualHours float64        `json:"card_actual_hours"`
}

// ownedLog loads a log and checks the caller owns it.
func (e Engine) ownedLog(ctx context.Context, r repo.Repo, logID, userID, action string) (domain.TimeLog, error) {
	l, err := r.GetTimeLog(ctx, logID)
	if err := notFound("time log", logID, err); err != nil {
		return l, err
	}
	if l.UserID != userID {
		return l, auth.ForbiddenError{Action: action}
	}
	return l, nil
}

// StopTimer closes an ongoing log and recomputes the card's actual hours
// under the card lock. A nil description keeps the stored one.
func (e Engine) StopTimer(ctx context.Context, logID, userID string, description *string) (StopResult, error) {
	l, err := e.ownedLog(ctx, e.Repo, logID, userID, "stop another user's timer")
	if err != nil {
		return StopResult{}, err
	}
	unlock, err := e.locker().Lock(ctx, lock.CardKey(l.CardID))
	if err != nil {
		return StopResult{}, fmt.Errorf("acquire card lock: %w", err)
	}
	defer unlock()

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return StopResult{}, err
	}
	defer tx.Rollback()
	r := e.Repo.WithTx(tx)

	l, err = r.GetTimeLog(ctx, logID)
	if err := notFound("time log", logID, err); err != nil {
		return StopResult{}, err
	}
	if !l.Ongoing() {
		return StopResult{}, ErrAlreadyStopped
	}
	start, err := time.Parse(time.RFC3339, l.StartTime)
	if err != nil {
		return StopResult{}, fmt.Errorf("parse start_time of %s: %w", l.ID, err)
	}
	now := e.now()
	minutes := int(now.Sub(start) / time.Minute)
	if minutes < 0 {
		minutes = 0
	}
	ts := e.stamp(now)
	if description != nil {
		trimmed := strings.TrimSpace(*description)
		description = &trimmed
	}
	if err := r.StopTimeLog(ctx, l.ID, ts, minutes, description, ts); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return StopResult{}, ErrAlreadyStopped
		}
		return StopResult{}, err
	}
	hours, err := r.RecomputeCardHours(ctx, l.CardID, ts)
	if err != nil {
		return StopResult{}, fmt.Errorf("recompute card hours: %w", err)
	}
	if _, err := r.MarkAssignmentCompleted(ctx, l.CardID, userID, ts); err != nil {
		return StopResult{}, fmt.Errorf("mark assignment completed: %w", err)
	}
	card, err := r.GetCardRef(ctx, l.CardID)
	if err != nil {
		return StopResult{}, err
	}
	if err := e.Events.Append(ctx, r, events.TimeLogStopped, card.ProjectID, "time_log", l.ID, userID,
		events.EventPayload{"card_id": l.CardID, "duration_minutes": minutes, "card_actual_hours": hours}); err != nil {
		return StopResult{}, err
	}
	if err := tx.Commit(); err != nil {
		return StopResult{}, err
	}

	l.EndTime = &ts
	l.DurationMinutes = minutes
	l.UpdatedAt = ts
	if description != nil {
		l.Description = *description
	}
	return StopResult{Log: l, Formatted: duration.Format(minutes), CardActualHours: hours}, nil
}

// UpdateTimeLog edits the description of a completed log.
func (e Engine) UpdateTimeLog(ctx context.Context, logID, userID, description string) (domain.TimeLog, error) {
	var out domain.TimeLog
	err := e.inTx(ctx, func(r repo.Repo) error {
		l, err := e.ownedLog(ctx, r, logID, userID, "edit another user's time log")
		if err != nil {
			return err
		}
		if l.Ongoing() {
			return ErrLogOngoing
		}
		ts := e.stamp(e.now())
		l.Description = strings.TrimSpace(description)
		l.UpdatedAt = ts
		if err := r.UpdateTimeLogDescription(ctx, l.ID, l.Description, ts); err != nil {
			return err
		}
		card, err := r.GetCardRef(ctx, l.CardID)
		if err != nil {
			return err
		}
		out = l
		return e.Events.Append(ctx, r, events.TimeLogUpdated, card.ProjectID, "time_log", l.ID, userID, nil)
	})
	return out, err
}

// DeleteTimeLog removes the caller's log. Deleting a completed log
// recomputes the card's actual hours.
func (e Engine) DeleteTimeLog(ctx context.Context, logID, userID string) error {
	l, err := e.ownedLog(ctx, e.Repo, logID, userID, "delete another user's time log")
	if err != nil {
		return err
	}
	unlock, err := e.locker().Lock(ctx, lock.CardKey(l.CardID))
	if err != nil {
		return fmt.Errorf("acquire card lock: %w", err)
	}
	defer unlock()

	return e.inTx(ctx, func(r repo.Repo) error {
		l, err := r.GetTimeLog(ctx, logID)
		if err := notFound("time log", logID, err); err != nil {
			return err
		}
		if err := r.DeleteTimeLog(ctx, l.ID); err != nil {
			return err
		}
		ts := e.stamp(e.now())
		if !l.Ongoing() {
			if _, err := r.RecomputeCardHours(ctx, l.CardID, ts); err != nil {
				return fmt.Errorf("recompute card hours: %w", err)
			}
		}
		card, err := r.GetCardRef(ctx, l.CardID)
		if err != nil {
			return err
		}
		return e.Events.Append(ctx, r, events.TimeLogDeleted, card.ProjectID, "time_log", l.ID, userID,
			events.EventPayload{"card_id": l.CardID, "duration_minutes": l.DurationMinutes})
	})
}

type ListOptions struct {
	UserID    string
	Status    string
	CardID    string
	SubtaskID string
	Page      int
	PerPage   int
}

type Page[T any] struct {
	Items    []T `json:"items"`
	Total    int `json:"total"`
	Page     int `json:"page"`
	PerPage  int `json:"per_page"`
	LastPage int `json:"last_page"`
}

// ListTimeLogs pages through the caller's own logs, newest first.
func (e Engine) ListTimeLogs(ctx context.Context, opts ListOptions) (Page[domain.TimeLogEntry], error) {
	if opts.Status != "" && opts.Status != "ongoing" && opts.Status != "completed" {
		return Page[domain.TimeLogEntry]{}, invalid("status", "status must be ongoing or completed")
	}
	if opts.PerPage <= 0 {
		opts.PerPage = DefaultPerPage
	}
	if opts.PerPage > MaxPerPage {
		opts.PerPage = MaxPerPage
	}
	if opts.Page < 1 {
		opts.Page = 1
	}
	if opts.SubtaskID != "" {
		s, err := e.Repo.GetSubtask(ctx, opts.SubtaskID)
		if err := notFound("subtask", opts.SubtaskID, err); err != nil {
			return Page[domain.TimeLogEntry]{}, err
		}
		if err := e.requireCardAccess(ctx, s.CardID, opts.UserID, "view time logs"); err != nil {
			return Page[domain.TimeLogEntry]{}, err
		}
	}
	if opts.CardID != "" {
		if err := e.requireCardAccess(ctx, opts.CardID, opts.UserID, "view time logs"); err != nil {
			return Page[domain.TimeLogEntry]{}, err
		}
	}
	items, total, err := e.Repo.ListTimeLogs(ctx, repo.TimeLogFilters{
		UserID:    opts.UserID,
		Status:    opts.Status,
		CardID:    opts.CardID,
		SubtaskID: opts.SubtaskID,
		Limit:     opts.PerPage,
		Offset:    (opts.Page - 1) * opts.PerPage,
	})
	if err != nil {
		return Page[domain.TimeLogEntry]{}, err
	}
	if items == nil {
		items = []domain.TimeLogEntry{}
	}
	last := (total + opts.PerPage - 1) / opts.PerPage
	if last < 1 {
		last = 1
	}
	return Page[domain.TimeLogEntry]{Items: items, Total: total, Page: opts.Page, PerPage: opts.PerPage, LastPage: last}, nil
}

// Ongoing returns the caller's running log, or nil.
func (e Engine) Ongoing(ctx context.Context, userID string) (*domain.TimeLogEntry, error) {
	l, err := e.Repo.GetOngoingLog(ctx, userID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &l, nil
}

// CardTotals sums completed logs of every user on the card.
func (e Engine) CardTotals(ctx context.Context, cardID, userID string) (domain.Totals, error) {
	if err := e.requireCardAccess(ctx, cardID, userID, "view card totals"); err != nil {
		return domain.Totals{}, err
	}
	return e.Repo.Totals(ctx, cardID, "")
}

// SubtaskTotals sums completed logs of every user on the subtask.
func (e Engine) SubtaskTotals(ctx context.Context, subtaskID, userID string) (domain.Totals, error) {
	s, err := e.Repo.GetSubtask(ctx, subtaskID)
	if err := notFound("subtask", subtaskID, err); err != nil {
		return domain.Totals{}, err
	}
	if err := e.requireCardAccess(ctx, s.CardID, userID, "view subtask totals"); err != nil {
		return domain.Totals{}, err
	}
	return e.Repo.Totals(ctx, s.CardID, s.ID)
}

func (e Engine) requireCardAccess(ctx context.Context, cardID, userID, action string) error {
	card, err := e.Repo.GetCardRef(ctx, cardID)
	if err := notFound("card", cardID, err); err != nil {
		return err
	}
	return e.Policy.Require(ctx, e.Repo, card.ProjectID, userID, action)
}
