package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"taskflow/internal/domain"
	"taskflow/internal/engine"
)

func registerProjects(api huma.API, h handlers) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-project",
		Method:        http.MethodPost,
		Path:          "/projects",
		Summary:       "Create project",
		Tags:          []string{"projects"},
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusUnauthorized, http.StatusUnprocessableEntity},
	}, func(ctx context.Context, input *struct {
		Body CreateProjectRequest
	}) (*reply, error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		p, err := h.e.CreateProject(ctx, input.Body.Name, input.Body.Description, userID)
		if err != nil {
			return nil, h.fail(ctx, err)
		}
		return ok("Project created", p)
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-projects",
		Method:      http.MethodGet,
		Path:        "/projects",
		Summary:     "Projects the caller created or belongs to",
		Tags:        []string{"projects"},
	}, func(ctx context.Context, _ *struct{}) (*reply, error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		items, err := h.e.ListProjects(ctx, userID)
		if err != nil {
			return nil, h.fail(ctx, err)
		}
		return ok("Projects retrieved", nonNil(items))
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-project",
		Method:      http.MethodGet,
		Path:        "/projects/{id}",
		Summary:     "Get project with members",
		Tags:        []string{"projects"},
		Errors:      []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*reply, error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		p, err := h.e.GetProject(ctx, input.ID, userID)
		if err != nil {
			return nil, h.fail(ctx, err)
		}
		members, err := h.e.ListMembers(ctx, input.ID, userID)
		if err != nil {
			return nil, h.fail(ctx, err)
		}
		return ok("Project retrieved", struct {
			domain.Project
			Members []domain.ProjectMember `json:"members"`
		}{p, nonNil(members)})
	})

	huma.Register(api, huma.Operation{
		OperationID:   "add-member",
		Method:        http.MethodPost,
		Path:          "/projects/{id}/members",
		Summary:       "Add or re-role a project member",
		Tags:          []string{"projects"},
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusForbidden, http.StatusNotFound, http.StatusUnprocessableEntity},
	}, func(ctx context.Context, input *struct {
		ID   string `path:"id"`
		Body AddMemberRequest
	}) (*reply, error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		m, err := h.e.AddMember(ctx, input.ID, input.Body.UserID, input.Body.Role, userID)
		if err != nil {
			return nil, h.fail(ctx, err)
		}
		return ok("Member added", m)
	})

	huma.Register(api, huma.Operation{
		OperationID: "remove-member",
		Method:      http.MethodDelete,
		Path:        "/projects/{id}/members/{user_id}",
		Summary:     "Remove a project member",
		Tags:        []string{"projects"},
		Errors:      []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID     string `path:"id"`
		UserID string `path:"user_id"`
	}) (*reply, error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := h.e.RemoveMember(ctx, input.ID, input.UserID, userID); err != nil {
			return nil, h.fail(ctx, err)
		}
		return ok("Member removed", nil)
	})
}

func registerBoards(api huma.API, h handlers) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-board",
		Method:        http.MethodPost,
		Path:          "/projects/{id}/boards",
		Summary:       "Create board",
		Tags:          []string{"boards"},
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusForbidden, http.StatusNotFound, http.StatusUnprocessableEntity},
	}, func(ctx context.Context, input *struct {
		ID   string `path:"id"`
		Body CreateBoardRequest
	}) (*reply, error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		b, err := h.e.CreateBoard(ctx, input.ID, input.Body.Name, input.Body.Description, userID)
		if err != nil {
			return nil, h.fail(ctx, err)
		}
		return ok("Board created", b)
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-boards",
		Method:      http.MethodGet,
		Path:        "/projects/{id}/boards",
		Summary:     "List boards",
		Tags:        []string{"boards"},
		Errors:      []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*reply, error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		items, err := h.e.ListBoards(ctx, input.ID, userID)
		if err != nil {
			return nil, h.fail(ctx, err)
		}
		return ok("Boards retrieved", nonNil(items))
	})
}

func registerCards(api huma.API, h handlers) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-card",
		Method:        http.MethodPost,
		Path:          "/boards/{id}/cards",
		Summary:       "Create card",
		Tags:          []string{"cards"},
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusForbidden, http.StatusNotFound, http.StatusUnprocessableEntity},
	}, func(ctx context.Context, input *struct {
		ID   string `path:"id"`
		Body CreateCardRequest
	}) (*reply, error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		c, err := h.e.CreateCard(ctx, engine.CardCreateOptions{
			BoardID:        input.ID,
			Title:          input.Body.Title,
			Description:    input.Body.Description,
			Priority:       input.Body.Priority,
			DueDate:        input.Body.DueDate,
			EstimatedHours: input.Body.EstimatedHours,
			ActorID:        userID,
		})
		if err != nil {
			return nil, h.fail(ctx, err)
		}
		return ok("Card created", c)
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-cards",
		Method:      http.MethodGet,
		Path:        "/boards/{id}/cards",
		Summary:     "List cards on a board",
		Tags:        []string{"cards"},
		Errors:      []int{http.StatusForbidden, http.StatusNotFound, http.StatusUnprocessableEntity},
	}, func(ctx context.Context, input *struct {
		ID     string `path:"id"`
		Status string `query:"status"`
	}) (*reply, error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		items, err := h.e.ListCards(ctx, input.ID, input.Status, userID)
		if err != nil {
			return nil, h.fail(ctx, err)
		}
		return ok("Cards retrieved", nonNil(items))
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-card",
		Method:      http.MethodGet,
		Path:        "/cards/{id}",
		Summary:     "Get card with subtasks, assignments and time totals",
		Tags:        []string{"cards"},
		Errors:      []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*reply, error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		c, err := h.e.GetCard(ctx, input.ID, userID)
		if err != nil {
			return nil, h.fail(ctx, err)
		}
		return ok("Card retrieved", c)
	})

	huma.Register(api, huma.Operation{
		OperationID:   "create-subtask",
		Method:        http.MethodPost,
		Path:          "/cards/{id}/subtasks",
		Summary:       "Create subtask",
		Tags:          []string{"cards"},
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusForbidden, http.StatusNotFound, http.StatusUnprocessableEntity},
	}, func(ctx context.Context, input *struct {
		ID   string `path:"id"`
		Body CreateSubtaskRequest
	}) (*reply, error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		s, err := h.e.CreateSubtask(ctx, engine.SubtaskCreateOptions{
			CardID:         input.ID,
			Name:           input.Body.Name,
			Description:    input.Body.Description,
			EstimatedHours: input.Body.EstimatedHours,
			ActorID:        userID,
		})
		if err != nil {
			return nil, h.fail(ctx, err)
		}
		return ok("Subtask created", s)
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-subtasks",
		Method:      http.MethodGet,
		Path:        "/cards/{id}/subtasks",
		Summary:     "List subtasks",
		Tags:        []string{"cards"},
		Errors:      []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*reply, error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		items, err := h.e.ListSubtasks(ctx, input.ID, userID)
		if err != nil {
			return nil, h.fail(ctx, err)
		}
		return ok("Subtasks retrieved", nonNil(items))
	})

	huma.Register(api, huma.Operation{
		OperationID:   "assign-card",
		Method:        http.MethodPost,
		Path:          "/cards/{id}/assignments",
		Summary:       "Assign a project member to a card",
		Tags:          []string{"cards"},
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusForbidden, http.StatusNotFound, http.StatusUnprocessableEntity},
	}, func(ctx context.Context, input *struct {
		ID   string `path:"id"`
		Body AssignCardRequest
	}) (*reply, error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		a, err := h.e.AssignCard(ctx, input.ID, input.Body.UserID, userID)
		if err != nil {
			return nil, h.fail(ctx, err)
		}
		return ok("Card assigned", a)
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-assignments",
		Method:      http.MethodGet,
		Path:        "/cards/{id}/assignments",
		Summary:     "List card assignments",
		Tags:        []string{"cards"},
		Errors:      []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*reply, error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		items, err := h.e.ListAssignments(ctx, input.ID, userID)
		if err != nil {
			return nil, h.fail(ctx, err)
		}
		return ok("Assignments retrieved", nonNil(items))
	})
}

func registerReports(api huma.API, h handlers) {
	huma.Register(api, huma.Operation{
		OperationID: "hours-report",
		Method:      http.MethodGet,
		Path:        "/projects/{id}/reports/hours",
		Summary:     "Completed hours per card and per user",
		Tags:        []string{"reports"},
		Errors:      []int{http.StatusForbidden, http.StatusNotFound, http.StatusUnprocessableEntity},
	}, func(ctx context.Context, input *struct {
		ID   string `path:"id"`
		From string `query:"from" doc:"YYYY-MM-DD, inclusive"`
		To   string `query:"to" doc:"YYYY-MM-DD, inclusive"`
	}) (*reply, error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		rep, err := h.e.HoursReport(ctx, input.ID, input.From, input.To, userID)
		if err != nil {
			return nil, h.fail(ctx, err)
		}
		return ok("Hours report", rep)
	})
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
