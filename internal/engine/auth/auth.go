package auth

import (
	"context"
	"errors"
	"fmt"

	"taskflow/internal/domain"
	"taskflow/internal/repo"
)

// ForbiddenError indicates the user may not act on the project.
type ForbiddenError struct {
	ProjectID string
	Action    string
}

func (e ForbiddenError) Error() string {
	if e.ProjectID == "" {
		return fmt.Sprintf("not allowed to %s", e.Action)
	}
	return fmt.Sprintf("not allowed to %s in project %s", e.Action, e.ProjectID)
}

// Policy is the single authorization check for project-scoped work: the
// project creator and its members have access, team leads and the creator
// may manage membership.
type Policy struct{}

// Access reports whether userID created or belongs to the project. It reads
// through r so callers inside a transaction pass their tx-bound repo.
func (Policy) Access(ctx context.Context, r repo.Repo, projectID, userID string) (bool, domain.ProjectMember, error) {
	p, err := r.GetProject(ctx, projectID)
	if err != nil {
		return false, domain.ProjectMember{}, err
	}
	if p.CreatedBy == userID {
		return true, domain.ProjectMember{ProjectID: projectID, UserID: userID, Role: domain.RoleTeamLead, JoinedAt: p.CreatedAt}, nil
	}
	m, err := r.GetMember(ctx, projectID, userID)
	if errors.Is(err, repo.ErrNotFound) {
		return false, m, nil
	}
	if err != nil {
		return false, m, err
	}
	return true, m, nil
}

// Require returns ForbiddenError unless the user has access.
func (p Policy) Require(ctx context.Context, r repo.Repo, projectID, userID, action string) error {
	ok, _, err := p.Access(ctx, r, projectID, userID)
	if err != nil {
		return err
	}
	if !ok {
		return ForbiddenError{ProjectID: projectID, Action: action}
	}
	return nil
}

// RequireManager allows the creator and team lead members.
func (p Policy) RequireManager(ctx context.Context, r repo.Repo, projectID, userID, action string) error {
	ok, m, err := p.Access(ctx, r, projectID, userID)
	if err != nil {
		return err
	}
	if !ok || m.Role != domain.RoleTeamLead {
		return ForbiddenError{ProjectID: projectID, Action: action}
	}
	return nil
}
