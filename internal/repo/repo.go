package repo

import (
	"context"
	"database/sql"
	"errors"

	"taskflow/internal/db"
	"taskflow/internal/domain"
)

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Repo runs queries against the database or, once bound with WithTx, against
// a single transaction.
type Repo struct {
	DB      *sql.DB
	Dialect db.Dialect
	tx      *sql.Tx
}

var ErrNotFound = errors.New("not found")

// WithTx returns a copy of the repo whose queries run inside tx.
func (r Repo) WithTx(tx *sql.Tx) Repo {
	r.tx = tx
	return r
}

func (r Repo) q() querier {
	if r.tx != nil {
		return r.tx
	}
	return r.DB
}

func (r Repo) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return r.q().ExecContext(ctx, r.Dialect.Rebind(query), args...)
}

func (r Repo) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return r.q().QueryContext(ctx, r.Dialect.Rebind(query), args...)
}

func (r Repo) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return r.q().QueryRowContext(ctx, r.Dialect.Rebind(query), args...)
}

func affectedOne(res sql.Result, err error) error {
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func nullableStringPtr(v *string) any {
	if v == nil || *v == "" {
		return nil
	}
	return *v
}

func strPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func (r Repo) InsertUser(ctx context.Context, u domain.User) error {
	_, err := r.exec(ctx, `INSERT INTO users(id,name,email,role,created_at) VALUES (?,?,?,?,?)`,
		u.ID, u.Name, u.Email, u.Role, u.CreatedAt)
	return err
}

func (r Repo) GetUser(ctx context.Context, id string) (domain.User, error) {
	var u domain.User
	err := r.queryRow(ctx, `SELECT id,name,email,role,created_at FROM users WHERE id=?`, id).
		Scan(&u.ID, &u.Name, &u.Email, &u.Role, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return u, ErrNotFound
	}
	return u, err
}

func (r Repo) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	var u domain.User
	err := r.queryRow(ctx, `SELECT id,name,email,role,created_at FROM users WHERE email=?`, email).
		Scan(&u.ID, &u.Name, &u.Email, &u.Role, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return u, ErrNotFound
	}
	return u, err
}

func (r Repo) InsertProject(ctx context.Context, p domain.Project) error {
	_, err := r.exec(ctx, `INSERT INTO projects(id,name,description,created_by,created_at) VALUES (?,?,?,?,?)`,
		p.ID, p.Name, nullable(p.Description), p.CreatedBy, p.CreatedAt)
	return err
}

const projectCols = `p.id,p.name,COALESCE(p.description,''),p.created_by,p.created_at`

func scanProject(row scanner) (domain.Project, error) {
	var p domain.Project
	err := row.Scan(&p.ID, &p.Name, &p.Description, &p.CreatedBy, &p.CreatedAt)
	if err == sql.ErrNoRows {
		return p, ErrNotFound
	}
	return p, err
}

func (r Repo) GetProject(ctx context.Context, id string) (domain.Project, error) {
	return scanProject(r.queryRow(ctx, `SELECT `+projectCols+` FROM projects p WHERE p.id=?`, id))
}

// ListProjectsFor returns projects the user created or is a member of.
func (r Repo) ListProjectsFor(ctx context.Context, userID string) ([]domain.Project, error) {
	rows, err := r.query(ctx, `SELECT `+projectCols+` FROM projects p
WHERE p.created_by=? OR EXISTS (SELECT 1 FROM project_members m WHERE m.project_id=p.id AND m.user_id=?)
ORDER BY p.created_at DESC, p.id DESC`, userID, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, p)
	}
	return res, rows.Err()
}

// AddMember inserts or updates the member's role.
func (r Repo) AddMember(ctx context.Context, m domain.ProjectMember) error {
	_, err := r.exec(ctx, `INSERT INTO project_members(project_id,user_id,role,joined_at) VALUES (?,?,?,?)
ON CONFLICT(project_id,user_id) DO UPDATE SET role=excluded.role`, m.ProjectID, m.UserID, m.Role, m.JoinedAt)
	return err
}

func (r Repo) RemoveMember(ctx context.Context, projectID, userID string) error {
	return affectedOne(r.exec(ctx, `DELETE FROM project_members WHERE project_id=? AND user_id=?`, projectID, userID))
}

func (r Repo) GetMember(ctx context.Context, projectID, userID string) (domain.ProjectMember, error) {
	var m domain.ProjectMember
	err := r.queryRow(ctx, `SELECT project_id,user_id,role,joined_at FROM project_members WHERE project_id=? AND user_id=?`, projectID, userID).
		Scan(&m.ProjectID, &m.UserID, &m.Role, &m.JoinedAt)
	if err == sql.ErrNoRows {
		return m, ErrNotFound
	}
	return m, err
}

func (r Repo) ListMembers(ctx context.Context, projectID string) ([]domain.ProjectMember, error) {
	rows, err := r.query(ctx, `SELECT project_id,user_id,role,joined_at FROM project_members WHERE project_id=? ORDER BY joined_at, user_id`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.ProjectMember
	for rows.Next() {
		var m domain.ProjectMember
		if err := rows.Scan(&m.ProjectID, &m.UserID, &m.Role, &m.JoinedAt); err != nil {
			return nil, err
		}
		res = append(res, m)
	}
	return res, rows.Err()
}

func (r Repo) InsertBoard(ctx context.Context, b domain.Board) error {
	_, err := r.exec(ctx, `INSERT INTO boards(id,project_id,name,description,created_at) VALUES (?,?,?,?,?)`,
		b.ID, b.ProjectID, b.Name, nullable(b.Description), b.CreatedAt)
	return err
}

func (r Repo) GetBoard(ctx context.Context, id string) (domain.Board, error) {
	var b domain.Board
	err := r.queryRow(ctx, `SELECT id,project_id,name,COALESCE(description,''),created_at FROM boards WHERE id=?`, id).
		Scan(&b.ID, &b.ProjectID, &b.Name, &b.Description, &b.CreatedAt)
	if err == sql.ErrNoRows {
		return b, ErrNotFound
	}
	return b, err
}

func (r Repo) ListBoards(ctx context.Context, projectID string) ([]domain.Board, error) {
	rows, err := r.query(ctx, `SELECT id,project_id,name,COALESCE(description,''),created_at FROM boards WHERE project_id=? ORDER BY created_at, id`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Board
	for rows.Next() {
		var b domain.Board
		if err := rows.Scan(&b.ID, &b.ProjectID, &b.Name, &b.Description, &b.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, b)
	}
	return res, rows.Err()
}
