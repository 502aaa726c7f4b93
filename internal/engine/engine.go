package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"taskflow/internal/config"
	"taskflow/internal/db"
	"taskflow/internal/engine/auth"
	"taskflow/internal/events"
	"taskflow/internal/lock"
	"taskflow/internal/repo"
)

type Engine struct {
	DB       *sql.DB
	Repo     repo.Repo
	Events   events.Writer
	Policy   auth.Policy
	Locks    lock.Locker
	Config   *config.Config
	Location *time.Location
	Now      func() time.Time
}

// New builds an engine with in-process locks. Callers running several
// instances replace Locks with a shared backend.
func New(conn *sql.DB, dialect db.Dialect, cfg *config.Config) (Engine, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	loc, err := cfg.Location()
	if err != nil {
		return Engine{}, err
	}
	return Engine{
		DB:       conn,
		Repo:     repo.Repo{DB: conn, Dialect: dialect},
		Events:   events.Writer{Now: time.Now},
		Locks:    lock.NewMemory(),
		Config:   cfg,
		Location: loc,
		Now:      time.Now,
	}, nil
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

// stamp renders t in the application zone.
func (e Engine) stamp(t time.Time) string {
	loc := e.Location
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format(time.RFC3339)
}

func (e Engine) locker() lock.Locker {
	if e.Locks == nil {
		return noLocks{}
	}
	return e.Locks
}

type noLocks struct{}

func (noLocks) Lock(context.Context, string) (func(), error) { return func() {}, nil }

// inTx runs fn against a tx-bound repo and commits when fn succeeds.
func (e Engine) inTx(ctx context.Context, fn func(r repo.Repo) error) error {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := fn(e.Repo.WithTx(tx)); err != nil {
		return err
	}
	return tx.Commit()
}

// notFound tags repo.ErrNotFound with the entity that was missing.
func notFound(kind, id string, err error) error {
	if errors.Is(err, repo.ErrNotFound) {
		return NotFoundError{Kind: kind, ID: id}
	}
	if err != nil {
		return fmt.Errorf("load %s %s: %w", kind, id, err)
	}
	return nil
}
