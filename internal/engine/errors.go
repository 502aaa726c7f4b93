package engine

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"taskflow/internal/repo"
)

// ValidationError carries per-field messages.
type ValidationError struct {
	Fields map[string][]string
}

func invalid(field, msg string) ValidationError {
	return ValidationError{Fields: map[string][]string{field: {msg}}}
}

func (e ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+strings.Join(e.Fields[k], ", "))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// NotFoundError names the missing entity. It matches repo.ErrNotFound.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

func (e NotFoundError) Unwrap() error { return repo.ErrNotFound }

// TimerRunningError is returned when the user already has an ongoing log.
type TimerRunningError struct {
	LogID     string
	CardID    string
	CardTitle string
}

func (e TimerRunningError) Error() string {
	if e.CardTitle == "" {
		return "a timer is already running; stop it before starting another"
	}
	return fmt.Sprintf("a timer is already running on %q; stop it before starting another", e.CardTitle)
}

var (
	// ErrAlreadyStopped is returned when stopping a completed log.
	ErrAlreadyStopped = errors.New("time log already stopped")
	// ErrLogOngoing is returned when editing a log that is still running.
	ErrLogOngoing = errors.New("time log is still running; stop it first")
)
