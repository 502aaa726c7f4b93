package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"taskflow/internal/domain"
	"taskflow/internal/engine"
)

var timerErrors = []int{
	http.StatusBadRequest,
	http.StatusUnauthorized,
	http.StatusForbidden,
	http.StatusNotFound,
	http.StatusUnprocessableEntity,
	http.StatusInternalServerError,
}

func registerTimeLogs(api huma.API, h handlers) {
	huma.Register(api, huma.Operation{
		OperationID: "list-time-logs",
		Method:      http.MethodGet,
		Path:        "/time-logs",
		Summary:     "List the caller's time logs",
		Tags:        []string{"time-logs"},
		Errors:      timerErrors,
	}, func(ctx context.Context, input *struct {
		Status    string `query:"status" doc:"ongoing or completed"`
		CardID    string `query:"card_id"`
		SubtaskID string `query:"subtask_id"`
		PerPage   int    `query:"per_page" minimum:"0"`
		Page      int    `query:"page" minimum:"0"`
	}) (*reply, error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		page, err := h.e.ListTimeLogs(ctx, engine.ListOptions{
			UserID:    userID,
			Status:    input.Status,
			CardID:    input.CardID,
			SubtaskID: input.SubtaskID,
			Page:      input.Page,
			PerPage:   input.PerPage,
		})
		if err != nil {
			return nil, h.fail(ctx, err)
		}
		return ok("Time logs retrieved", timeLogPage(page))
	})

	huma.Register(api, huma.Operation{
		OperationID: "ongoing-time-log",
		Method:      http.MethodGet,
		Path:        "/time-logs/ongoing",
		Summary:     "The caller's running timer, or null",
		Tags:        []string{"time-logs"},
		Errors:      timerErrors,
	}, func(ctx context.Context, _ *struct{}) (*reply, error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		l, err := h.e.Ongoing(ctx, userID)
		if err != nil {
			return nil, h.fail(ctx, err)
		}
		if l == nil {
			return ok("No timer running", nil)
		}
		return ok("Timer running", l)
	})

	huma.Register(api, huma.Operation{
		OperationID:   "start-timer",
		Method:        http.MethodPost,
		Path:          "/time-logs/start",
		Summary:       "Start a timer on a card or subtask",
		Tags:          []string{"time-logs"},
		DefaultStatus: http.StatusCreated,
		Errors:        timerErrors,
	}, func(ctx context.Context, input *struct {
		Body StartTimerRequest
	}) (*reply, error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		res, err := h.e.StartTimer(ctx, engine.StartOptions{
			CardID:      input.Body.CardID,
			SubtaskID:   input.Body.SubtaskID,
			Description: input.Body.Description,
			UserID:      userID,
		})
		if err != nil {
			return nil, h.fail(ctx, err)
		}
		return ok("Timer started", res)
	})

	huma.Register(api, huma.Operation{
		OperationID: "stop-timer",
		Method:      http.MethodPost,
		Path:        "/time-logs/{id}/stop",
		Summary:     "Stop a running timer",
		Tags:        []string{"time-logs"},
		Errors:      timerErrors,
	}, func(ctx context.Context, input *struct {
		ID   string           `path:"id"`
		Body StopTimerRequest `required:"false"`
	}) (*reply, error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		res, err := h.e.StopTimer(ctx, input.ID, userID, input.Body.Description)
		if err != nil {
			return nil, h.fail(ctx, err)
		}
		return ok("Timer stopped. Duration: "+res.Formatted, res)
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-time-log",
		Method:      http.MethodPut,
		Path:        "/time-logs/{id}",
		Summary:     "Edit a completed log's description",
		Tags:        []string{"time-logs"},
		Errors:      timerErrors,
	}, func(ctx context.Context, input *struct {
		ID   string `path:"id"`
		Body UpdateTimeLogRequest
	}) (*reply, error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		l, err := h.e.UpdateTimeLog(ctx, input.ID, userID, input.Body.Description)
		if err != nil {
			return nil, h.fail(ctx, err)
		}
		return ok("Time log updated", l)
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-time-log",
		Method:      http.MethodDelete,
		Path:        "/time-logs/{id}",
		Summary:     "Delete one of the caller's logs",
		Tags:        []string{"time-logs"},
		Errors:      timerErrors,
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*reply, error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := h.e.DeleteTimeLog(ctx, input.ID, userID); err != nil {
			return nil, h.fail(ctx, err)
		}
		return ok("Time log deleted", nil)
	})

	huma.Register(api, huma.Operation{
		OperationID: "card-time-total",
		Method:      http.MethodGet,
		Path:        "/time-logs/card/{card_id}/total",
		Summary:     "Completed time on a card",
		Tags:        []string{"time-logs"},
		Errors:      timerErrors,
	}, func(ctx context.Context, input *struct {
		CardID string `path:"card_id"`
	}) (*reply, error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		t, err := h.e.CardTotals(ctx, input.CardID, userID)
		if err != nil {
			return nil, h.fail(ctx, err)
		}
		return ok("Card time total", totalsBody("card_id", input.CardID, t))
	})

	huma.Register(api, huma.Operation{
		OperationID: "subtask-time-total",
		Method:      http.MethodGet,
		Path:        "/time-logs/subtask/{subtask_id}/total",
		Summary:     "Completed time on a subtask",
		Tags:        []string{"time-logs"},
		Errors:      timerErrors,
	}, func(ctx context.Context, input *struct {
		SubtaskID string `path:"subtask_id"`
	}) (*reply, error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		t, err := h.e.SubtaskTotals(ctx, input.SubtaskID, userID)
		if err != nil {
			return nil, h.fail(ctx, err)
		}
		return ok("Subtask time total", totalsBody("subtask_id", input.SubtaskID, t))
	})
}

func totalsBody(key, id string, t domain.Totals) map[string]any {
	return map[string]any{
		key:                  id,
		"total_minutes":      t.TotalMinutes,
		"total_hours":        t.TotalHours,
		"formatted_duration": t.Formatted,
		"log_count":          t.LogCount,
	}
}

func registerStatus(api huma.API, h handlers) {
	huma.Register(api, huma.Operation{
		OperationID: "update-subtask-status",
		Method:      http.MethodPost,
		Path:        "/subtasks/status",
		Summary:     "Set a subtask's status",
		Tags:        []string{"status"},
		Errors:      timerErrors,
	}, func(ctx context.Context, input *struct {
		Body SubtaskStatusRequest
	}) (*reply, error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		s, err := h.e.UpdateSubtaskStatus(ctx, input.Body.SubtaskID, input.Body.Status, userID)
		if err != nil {
			return nil, h.fail(ctx, err)
		}
		return ok("Subtask status updated", s)
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-card-status",
		Method:      http.MethodPost,
		Path:        "/cards/status",
		Summary:     "Set a card's status",
		Description: "Moving a card to review or done requires every subtask to be done.",
		Tags:        []string{"status"},
		Errors:      timerErrors,
	}, func(ctx context.Context, input *struct {
		Body CardStatusRequest
	}) (*reply, error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		c, err := h.e.UpdateCardStatus(ctx, input.Body.CardID, input.Body.Status, userID)
		if err != nil {
			return nil, h.fail(ctx, err)
		}
		return ok("Card status updated", c)
	})
}
