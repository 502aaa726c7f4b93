package engine

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"taskflow/internal/db"
	"taskflow/internal/domain"
	"taskflow/internal/events"
	"taskflow/internal/repo"
)

func required(field, v string) error {
	if strings.TrimSpace(v) == "" {
		return invalid(field, field+" is required")
	}
	return nil
}

// CreateUser registers a user. Role defaults to member.
func (e Engine) CreateUser(ctx context.Context, name, email, role string) (domain.User, error) {
	if err := required("name", name); err != nil {
		return domain.User{}, err
	}
	email = strings.ToLower(strings.TrimSpace(email))
	if !strings.Contains(email, "@") {
		return domain.User{}, invalid("email", "email must be a valid address")
	}
	if role == "" {
		role = "member"
	}
	if role != "member" && role != "admin" {
		return domain.User{}, invalid("role", "role must be admin or member")
	}
	u := domain.User{ID: uuid.NewString(), Name: strings.TrimSpace(name), Email: email, Role: role, CreatedAt: e.stamp(e.now())}
	if err := e.Repo.InsertUser(ctx, u); err != nil {
		if db.IsUniqueViolation(err) {
			return domain.User{}, invalid("email", "email is already registered")
		}
		return domain.User{}, err
	}
	return u, nil
}

func (e Engine) GetUser(ctx context.Context, id string) (domain.User, error) {
	u, err := e.Repo.GetUser(ctx, id)
	return u, notFound("user", id, err)
}

// CreateAPIKey issues a key for the user. The plain key is only returned here.
func (e Engine) CreateAPIKey(ctx context.Context, userID, name string) (domain.APIKey, string, error) {
	if _, err := e.GetUser(ctx, userID); err != nil {
		return domain.APIKey{}, "", err
	}
	raw := uuid.New()
	plain := "tf_" + hex.EncodeToString(raw[:]) + strings.ReplaceAll(uuid.NewString(), "-", "")
	key := domain.APIKey{
		ID:        uuid.NewString(),
		UserID:    userID,
		Name:      strings.TrimSpace(name),
		KeyHash:   repo.HashAPIKey(plain),
		CreatedAt: e.stamp(e.now()),
	}
	if err := e.Repo.InsertAPIKey(ctx, key); err != nil {
		return domain.APIKey{}, "", err
	}
	return key, plain, nil
}

func (e Engine) ListAPIKeys(ctx context.Context, userID string) ([]domain.APIKey, error) {
	return e.Repo.ListAPIKeys(ctx, userID)
}

func (e Engine) DeleteAPIKey(ctx context.Context, id string) error {
	return notFound("api key", id, e.Repo.DeleteAPIKey(ctx, id))
}

// CreateProject creates a project owned by the caller.
func (e Engine) CreateProject(ctx context.Context, name, description, userID string) (domain.Project, error) {
	if err := required("name", name); err != nil {
		return domain.Project{}, err
	}
	p := domain.Project{
		ID:          uuid.NewString(),
		Name:        strings.TrimSpace(name),
		Description: strings.TrimSpace(description),
		CreatedBy:   userID,
		CreatedAt:   e.stamp(e.now()),
	}
	err := e.inTx(ctx, func(r repo.Repo) error {
		if _, err := r.GetUser(ctx, userID); err != nil {
			return notFound("user", userID, err)
		}
		if err := r.InsertProject(ctx, p); err != nil {
			return fmt.Errorf("insert project: %w", err)
		}
		return e.Events.Append(ctx, r, events.ProjectCreated, p.ID, "project", p.ID, userID, events.EventPayload{"name": p.Name})
	})
	return p, err
}

func (e Engine) GetProject(ctx context.Context, projectID, userID string) (domain.Project, error) {
	p, err := e.Repo.GetProject(ctx, projectID)
	if err := notFound("project", projectID, err); err != nil {
		return p, err
	}
	return p, e.Policy.Require(ctx, e.Repo, projectID, userID, "view project")
}

func (e Engine) ListProjects(ctx context.Context, userID string) ([]domain.Project, error) {
	return e.Repo.ListProjectsFor(ctx, userID)
}

// AddMember adds or re-roles a member. Only the creator and team leads may.
func (e Engine) AddMember(ctx context.Context, projectID, memberID, role, actorID string) (domain.ProjectMember, error) {
	if role == "" {
		role = domain.RoleDeveloper
	}
	if !domain.OneOf(role, domain.MemberRoles) {
		return domain.ProjectMember{}, invalid("role", fmt.Sprintf("role must be one of %v", domain.MemberRoles))
	}
	m := domain.ProjectMember{ProjectID: projectID, UserID: memberID, Role: role, JoinedAt: e.stamp(e.now())}
	err := e.inTx(ctx, func(r repo.Repo) error {
		if _, err := r.GetProject(ctx, projectID); err != nil {
			return notFound("project", projectID, err)
		}
		if err := e.Policy.RequireManager(ctx, r, projectID, actorID, "manage members"); err != nil {
			return err
		}
		if _, err := r.GetUser(ctx, memberID); err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return invalid("user_id", "user does not exist")
			}
			return err
		}
		if err := r.AddMember(ctx, m); err != nil {
			return err
		}
		return e.Events.Append(ctx, r, events.MemberAdded, projectID, "project", projectID, actorID,
			events.EventPayload{"user_id": memberID, "role": role})
	})
	return m, err
}

func (e Engine) RemoveMember(ctx context.Context, projectID, memberID, actorID string) error {
	return e.inTx(ctx, func(r repo.Repo) error {
		if _, err := r.GetProject(ctx, projectID); err != nil {
			return notFound("project", projectID, err)
		}
		if err := e.Policy.RequireManager(ctx, r, projectID, actorID, "manage members"); err != nil {
			return err
		}
		if err := r.RemoveMember(ctx, projectID, memberID); err != nil {
			return notFound("member", memberID, err)
		}
		return e.Events.Append(ctx, r, events.MemberRemoved, projectID, "project", projectID, actorID,
			events.EventPayload{"user_id": memberID})
	})
}

func (e Engine) ListMembers(ctx context.Context, projectID, userID string) ([]domain.ProjectMember, error) {
	if _, err := e.GetProject(ctx, projectID, userID); err != nil {
		return nil, err
	}
	return e.Repo.ListMembers(ctx, projectID)
}

func (e Engine) CreateBoard(ctx context.Context, projectID, name, description, userID string) (domain.Board, error) {
	if err := required("name", name); err != nil {
		return domain.Board{}, err
	}
	if _, err := e.GetProject(ctx, projectID, userID); err != nil {
		return domain.Board{}, err
	}
	b := domain.Board{
		ID:          uuid.NewString(),
		ProjectID:   projectID,
		Name:        strings.TrimSpace(name),
		Description: strings.TrimSpace(description),
		CreatedAt:   e.stamp(e.now()),
	}
	return b, e.Repo.InsertBoard(ctx, b)
}

func (e Engine) ListBoards(ctx context.Context, projectID, userID string) ([]domain.Board, error) {
	if _, err := e.GetProject(ctx, projectID, userID); err != nil {
		return nil, err
	}
	return e.Repo.ListBoards(ctx, projectID)
}

type CardCreateOptions struct {
	BoardID        string
	Title          string
	Description    string
	Priority       string
	DueDate        string
	EstimatedHours float64
	ActorID        string
}

// CreateCard adds a card in todo.
func (e Engine) CreateCard(ctx context.Context, opts CardCreateOptions) (domain.Card, error) {
	if err := required("title", opts.Title); err != nil {
		return domain.Card{}, err
	}
	if opts.Priority == "" {
		opts.Priority = "medium"
	}
	if !domain.OneOf(opts.Priority, domain.Priorities) {
		return domain.Card{}, invalid("priority", fmt.Sprintf("priority must be one of %v", domain.Priorities))
	}
	if opts.EstimatedHours < 0 {
		return domain.Card{}, invalid("estimated_hours", "estimated_hours must not be negative")
	}
	var due *string
	if opts.DueDate != "" {
		if _, err := time.Parse("2006-01-02", opts.DueDate); err != nil {
			return domain.Card{}, invalid("due_date", "due_date must be YYYY-MM-DD")
		}
		due = &opts.DueDate
	}
	b, err := e.Repo.GetBoard(ctx, opts.BoardID)
	if err := notFound("board", opts.BoardID, err); err != nil {
		return domain.Card{}, err
	}
	ts := e.stamp(e.now())
	c := domain.Card{
		ID:             uuid.NewString(),
		BoardID:        b.ID,
		Title:          strings.TrimSpace(opts.Title),
		Description:    strings.TrimSpace(opts.Description),
		Status:         domain.CardTodo,
		Priority:       opts.Priority,
		DueDate:        due,
		EstimatedHours: opts.EstimatedHours,
		CreatedBy:      opts.ActorID,
		CreatedAt:      ts,
		UpdatedAt:      ts,
	}
	err = e.inTx(ctx, func(r repo.Repo) error {
		if err := e.Policy.Require(ctx, r, b.ProjectID, opts.ActorID, "create cards"); err != nil {
			return err
		}
		if err := r.InsertCard(ctx, c); err != nil {
			return fmt.Errorf("insert card: %w", err)
		}
		return e.Events.Append(ctx, r, events.CardCreated, b.ProjectID, "card", c.ID, opts.ActorID, events.EventPayload{"title": c.Title})
	})
	return c, err
}

// GetCard returns the card with subtasks, assignments and time totals.
func (e Engine) GetCard(ctx context.Context, cardID, userID string) (domain.CardDetail, error) {
	ref, err := e.Repo.GetCardRef(ctx, cardID)
	if err := notFound("card", cardID, err); err != nil {
		return domain.CardDetail{}, err
	}
	if err := e.Policy.Require(ctx, e.Repo, ref.ProjectID, userID, "view card"); err != nil {
		return domain.CardDetail{}, err
	}
	d := domain.CardDetail{CardRef: ref}
	if d.Subtasks, err = e.Repo.ListSubtasks(ctx, cardID); err != nil {
		return d, err
	}
	if d.Assignments, err = e.Repo.ListAssignments(ctx, cardID); err != nil {
		return d, err
	}
	if d.Totals, err = e.Repo.Totals(ctx, cardID, ""); err != nil {
		return d, err
	}
	if d.Subtasks == nil {
		d.Subtasks = []domain.Subtask{}
	}
	if d.Assignments == nil {
		d.Assignments = []domain.CardAssignment{}
	}
	return d, nil
}

func (e Engine) ListCards(ctx context.Context, boardID, status, userID string) ([]domain.Card, error) {
	if status != "" && !domain.OneOf(status, domain.CardStatuses) {
		return nil, invalid("status", fmt.Sprintf("status must be one of %v", domain.CardStatuses))
	}
	b, err := e.Repo.GetBoard(ctx, boardID)
	if err := notFound("board", boardID, err); err != nil {
		return nil, err
	}
	if err := e.Policy.Require(ctx, e.Repo, b.ProjectID, userID, "view cards"); err != nil {
		return nil, err
	}
	return e.Repo.ListCards(ctx, boardID, status)
}

type SubtaskCreateOptions struct {
	CardID         string
	Name           string
	Description    string
	EstimatedHours float64
	ActorID        string
}

// CreateSubtask adds a subtask in todo.
func (e Engine) CreateSubtask(ctx context.Context, opts SubtaskCreateOptions) (domain.Subtask, error) {
	if err := required("name", opts.Name); err != nil {
		return domain.Subtask{}, err
	}
	if opts.EstimatedHours < 0 {
		return domain.Subtask{}, invalid("estimated_hours", "estimated_hours must not be negative")
	}
	ts := e.stamp(e.now())
	s := domain.Subtask{
		ID:             uuid.NewString(),
		CardID:         opts.CardID,
		Name:           strings.TrimSpace(opts.Name),
		Description:    strings.TrimSpace(opts.Description),
		Status:         domain.SubtaskTodo,
		EstimatedHours: opts.EstimatedHours,
		CreatedAt:      ts,
		UpdatedAt:      ts,
	}
	err := e.inTx(ctx, func(r repo.Repo) error {
		card, err := r.GetCardRef(ctx, opts.CardID)
		if err := notFound("card", opts.CardID, err); err != nil {
			return err
		}
		if err := e.Policy.Require(ctx, r, card.ProjectID, opts.ActorID, "create subtasks"); err != nil {
			return err
		}
		if err := r.InsertSubtask(ctx, s); err != nil {
			return fmt.Errorf("insert subtask: %w", err)
		}
		return e.Events.Append(ctx, r, events.SubtaskCreated, card.ProjectID, "subtask", s.ID, opts.ActorID,
			events.EventPayload{"card_id": card.ID, "name": s.Name})
	})
	return s, err
}

func (e Engine) ListSubtasks(ctx context.Context, cardID, userID string) ([]domain.Subtask, error) {
	if err := e.requireCardAccess(ctx, cardID, userID, "view subtasks"); err != nil {
		return nil, err
	}
	return e.Repo.ListSubtasks(ctx, cardID)
}

// AssignCard assigns a project member to a card. Re-assigning is a no-op.
func (e Engine) AssignCard(ctx context.Context, cardID, assigneeID, actorID string) (domain.CardAssignment, error) {
	var out domain.CardAssignment
	err := e.inTx(ctx, func(r repo.Repo) error {
		card, err := r.GetCardRef(ctx, cardID)
		if err := notFound("card", cardID, err); err != nil {
			return err
		}
		if err := e.Policy.Require(ctx, r, card.ProjectID, actorID, "assign cards"); err != nil {
			return err
		}
		ok, _, err := e.Policy.Access(ctx, r, card.ProjectID, assigneeID)
		if err != nil {
			return err
		}
		if !ok {
			return invalid("user_id", "assignee must be a member of the project")
		}
		a := domain.CardAssignment{CardID: cardID, UserID: assigneeID, AssignmentStatus: domain.AssignmentAssigned, AssignedAt: e.stamp(e.now())}
		if err := r.UpsertAssignment(ctx, a); err != nil {
			return err
		}
		if out, err = r.GetAssignment(ctx, cardID, assigneeID); err != nil {
			return err
		}
		return e.Events.Append(ctx, r, events.CardAssigned, card.ProjectID, "card", cardID, actorID,
			events.EventPayload{"user_id": assigneeID})
	})
	return out, err
}

func (e Engine) ListAssignments(ctx context.Context, cardID, userID string) ([]domain.CardAssignment, error) {
	if err := e.requireCardAccess(ctx, cardID, userID, "view assignments"); err != nil {
		return nil, err
	}
	return e.Repo.ListAssignments(ctx, cardID)
}
