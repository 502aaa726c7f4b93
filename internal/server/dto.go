package server

import (
	"taskflow/internal/domain"
	"taskflow/internal/engine"
)

// Request payloads

type StartTimerRequest struct {
	CardID      string `json:"card_id,omitempty" doc:"Card to track; optional when subtask_id is set"`
	SubtaskID   string `json:"subtask_id,omitempty"`
	Description string `json:"description,omitempty" maxLength:"1000"`
}

type StopTimerRequest struct {
	Description *string `json:"description,omitempty" maxLength:"1000"`
}

type UpdateTimeLogRequest struct {
	Description string `json:"description" maxLength:"1000"`
}

type SubtaskStatusRequest struct {
	SubtaskID string `json:"subtask_id" minLength:"1"`
	Status    string `json:"status" enum:"todo,in_progress,done"`
}

type CardStatusRequest struct {
	CardID string `json:"card_id" minLength:"1"`
	Status string `json:"status" enum:"todo,in_progress,review,done"`
}

type CreateProjectRequest struct {
	Name        string `json:"name" minLength:"1" maxLength:"255"`
	Description string `json:"description,omitempty"`
}

type AddMemberRequest struct {
	UserID string `json:"user_id" minLength:"1"`
	Role   string `json:"role,omitempty" enum:"developer,designer,team_lead"`
}

type CreateBoardRequest struct {
	Name        string `json:"name" minLength:"1" maxLength:"255"`
	Description string `json:"description,omitempty"`
}

type CreateCardRequest struct {
	Title          string  `json:"title" minLength:"1" maxLength:"255"`
	Description    string  `json:"description,omitempty"`
	Priority       string  `json:"priority,omitempty" enum:"low,medium,high"`
	DueDate        string  `json:"due_date,omitempty" doc:"YYYY-MM-DD"`
	EstimatedHours float64 `json:"estimated_hours,omitempty" minimum:"0"`
}

type CreateSubtaskRequest struct {
	Name           string  `json:"name" minLength:"1" maxLength:"255"`
	Description    string  `json:"description,omitempty"`
	EstimatedHours float64 `json:"estimated_hours,omitempty" minimum:"0"`
}

type AssignCardRequest struct {
	UserID string `json:"user_id" minLength:"1"`
}

// Response payloads

// TimeLogPage is a page of the caller's time logs.
type TimeLogPage struct {
	Items    []domain.TimeLogEntry `json:"items"`
	Total    int                   `json:"total"`
	Page     int                   `json:"current_page"`
	PerPage  int                   `json:"per_page"`
	LastPage int                   `json:"last_page"`
}

func timeLogPage(p engine.Page[domain.TimeLogEntry]) TimeLogPage {
	return TimeLogPage{Items: p.Items, Total: p.Total, Page: p.Page, PerPage: p.PerPage, LastPage: p.LastPage}
}
