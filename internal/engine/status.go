package engine

import (
	"context"
	"errors"
	"fmt"

	"taskflow/internal/domain"
	"taskflow/internal/events"
	"taskflow/internal/lock"
	"taskflow/internal/repo"
	"taskflow/internal/workflow"
)

// decide runs a manual transition and turns an unknown target into a
// field error.
func decide(m workflow.Machine, from, to string, facts workflow.Facts) (workflow.Decision, error) {
	d, err := m.Decide(workflow.Manual, from, to, facts)
	var ue workflow.UnknownStatusError
	if errors.As(err, &ue) {
		return d, invalid("status", ue.Error())
	}
	return d, err
}

// UpdateSubtaskStatus overwrites a subtask's status. Any status may follow
// any other.
func (e Engine) UpdateSubtaskStatus(ctx context.Context, subtaskID, status, userID string) (domain.Subtask, error) {
	if !domain.OneOf(status, domain.SubtaskStatuses) {
		return domain.Subtask{}, invalid("status", fmt.Sprintf("status must be one of %v", domain.SubtaskStatuses))
	}
	s, err := e.Repo.GetSubtask(ctx, subtaskID)
	if err := notFound("subtask", subtaskID, err); err != nil {
		return s, err
	}
	unlock, err := e.locker().Lock(ctx, lock.CardKey(s.CardID))
	if err != nil {
		return s, fmt.Errorf("acquire card lock: %w", err)
	}
	defer unlock()

	err = e.inTx(ctx, func(r repo.Repo) error {
		s, err = r.GetSubtask(ctx, subtaskID)
		if err := notFound("subtask", subtaskID, err); err != nil {
			return err
		}
		card, err := r.GetCardRef(ctx, s.CardID)
		if err != nil {
			return err
		}
		if err := e.Policy.Require(ctx, r, card.ProjectID, userID, "update subtask status"); err != nil {
			return err
		}
		d, err := decide(workflow.Subtasks, s.Status, status, workflow.Facts{})
		if err != nil {
			return err
		}
		if !d.Changed() {
			return nil
		}
		ts := e.stamp(e.now())
		if err := r.UpdateSubtaskStatus(ctx, s.ID, d.To, ts); err != nil {
			return err
		}
		s.Status = d.To
		s.UpdatedAt = ts
		return e.Events.Append(ctx, r, events.SubtaskStatusChanged, card.ProjectID, "subtask", s.ID, userID,
			events.EventPayload{"from": d.From, "to": d.To, "trigger": string(workflow.Manual)})
	})
	return s, err
}

// UpdateCardStatus moves a card. Promotion to review or done requires every
// subtask to be done and fails with workflow.UnfinishedSubtasksError
// otherwise.
func (e Engine) UpdateCardStatus(ctx context.Context, cardID, status, userID string) (domain.Card, error) {
	if !domain.OneOf(status, domain.CardStatuses) {
		return domain.Card{}, invalid("status", fmt.Sprintf("status must be one of %v", domain.CardStatuses))
	}
	unlock, err := e.locker().Lock(ctx, lock.CardKey(cardID))
	if err != nil {
		return domain.Card{}, fmt.Errorf("acquire card lock: %w", err)
	}
	defer unlock()

	var card domain.CardRef
	err = e.inTx(ctx, func(r repo.Repo) error {
		var err error
		card, err = r.GetCardRef(ctx, cardID)
		if err := notFound("card", cardID, err); err != nil {
			return err
		}
		if err := e.Policy.Require(ctx, r, card.ProjectID, userID, "update card status"); err != nil {
			return err
		}
		subtasks, err := r.ListSubtasks(ctx, card.ID)
		if err != nil {
			return err
		}
		d, err := decide(workflow.Cards, card.Status, status, workflow.Facts{Subtasks: subtasks})
		if err != nil {
			return err
		}
		if !d.Changed() {
			return nil
		}
		ts := e.stamp(e.now())
		if err := r.UpdateCardStatus(ctx, card.ID, d.To, ts); err != nil {
			return err
		}
		card.Status = d.To
		card.UpdatedAt = ts
		return e.Events.Append(ctx, r, events.CardStatusChanged, card.ProjectID, "card", card.ID, userID,
			events.EventPayload{"from": d.From, "to": d.To, "trigger": string(workflow.Manual)})
	})
	return card.Card, err
}
