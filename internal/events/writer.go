package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"taskflow/internal/repo"
)

// Event types appended by the engine.
const (
	TimeLogStarted       = "timelog.started"
	TimeLogStopped       = "timelog.stopped"
	TimeLogUpdated       = "timelog.updated"
	TimeLogDeleted       = "timelog.deleted"
	CardStatusChanged    = "card.status.changed"
	SubtaskStatusChanged = "subtask.status.changed"
	CardCreated          = "card.created"
	SubtaskCreated       = "subtask.created"
	CardAssigned         = "card.assigned"
	ProjectCreated       = "project.created"
	MemberAdded          = "project.member.added"
	MemberRemoved        = "project.member.removed"
)

type Writer struct {
	Now func() time.Time
}

type EventPayload map[string]any

// Append records an event through r, which callers bind to their transaction
// so the event commits or rolls back with the change it describes.
func (w Writer) Append(ctx context.Context, r repo.Repo, evtType, projectID, entityKind, entityID, actorID string, payload EventPayload) error {
	if w.Now == nil {
		w.Now = time.Now
	}
	ts := w.Now().UTC().Format(time.RFC3339)
	if payload == nil {
		payload = EventPayload{}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}
	return r.InsertEvent(ctx, ts, evtType, projectID, entityKind, entityID, actorID, string(data))
}
