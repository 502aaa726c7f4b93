package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path"
	"strings"
	"sync"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"taskflow/internal/config"
	"taskflow/internal/engine"
	"taskflow/internal/engine/auth"
	"taskflow/internal/repo"
	"taskflow/internal/workflow"
)

// Config for the HTTP API handler.
type Config struct {
	Engine    engine.Engine
	BasePath  string
	Auth      AuthConfig
	RateLimit config.RateLimit
	Debug     bool
	Logger    *slog.Logger
}

// envelope is the body of every response.
type envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data"`
}

type reply struct {
	Body envelope
}

func ok(message string, data any) (*reply, error) {
	return &reply{Body: envelope{Success: true, Message: message, Data: data}}, nil
}

// apiError is the failure envelope. It doubles as a huma.StatusError.
type apiError struct {
	status  int
	Success bool                `json:"success"`
	Message string              `json:"message"`
	Data    any                 `json:"data,omitempty"`
	Errors  map[string][]string `json:"errors,omitempty"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Message }

func newAPIError(status int, message string, data any, errs map[string][]string) huma.StatusError {
	return &apiError{status: status, Message: message, Data: data, Errors: errs}
}

// handlers carries what every operation needs to answer and to fail.
type handlers struct {
	e     engine.Engine
	log   *slog.Logger
	debug bool
}

// New returns an HTTP handler exposing the taskflow API.
func New(cfg Config) (http.Handler, error) {
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/api"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	cfg.Auth.Logger = logger
	huma.DefaultArrayNullable = false
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, msg, nil, fieldErrors(errs))
	}
	huma.NewErrorWithContext = func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, msg, nil, fieldErrors(errs))
	}

	router := chi.NewRouter()
	router.Use(middleware.RealIP)
	router.Use(middleware.Recoverer)
	router.Use(requestLogger(logger))
	if cfg.RateLimit.Enabled {
		limiter := newRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst)
		router.Use(limiter.Middleware)
	}
	router.Use(newAuthMiddleware(basePath, cfg.Auth, cfg.Engine.Repo))
	hcfg := huma.DefaultConfig("Taskflow API", "1.0.0")
	hcfg.OpenAPIPath = ""
	hcfg.DocsPath = ""
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	h := handlers{e: cfg.Engine, log: logger, debug: cfg.Debug}
	registerDocs(router, basePath)
	registerHealth(group)
	registerMe(group, h)
	registerTimeLogs(group, h)
	registerStatus(group, h)
	registerProjects(group, h)
	registerBoards(group, h)
	registerCards(group, h)
	registerReports(group, h)
	registerOpenAPI(router, api, basePath)

	return router, nil
}

// fieldErrors groups huma's validation details by the offending field.
func fieldErrors(errs []error) map[string][]string {
	if len(errs) == 0 {
		return nil
	}
	out := map[string][]string{}
	for _, err := range errs {
		var d *huma.ErrorDetail
		if errors.As(err, &d) {
			loc := strings.TrimPrefix(strings.TrimPrefix(d.Location, "body."), "query.")
			out[loc] = append(out[loc], d.Message)
			continue
		}
		out["request"] = append(out["request"], err.Error())
	}
	return out
}

// fail maps engine errors onto the response envelope.
func (h handlers) fail(ctx context.Context, err error) huma.StatusError {
	if err == nil {
		return nil
	}
	var se huma.StatusError
	if errors.As(err, &se) {
		return se
	}
	var ve engine.ValidationError
	if errors.As(err, &ve) {
		return newAPIError(http.StatusUnprocessableEntity, "The given data was invalid.", nil, ve.Fields)
	}
	var ue workflow.UnfinishedSubtasksError
	if errors.As(err, &ue) {
		return newAPIError(http.StatusUnprocessableEntity, err.Error(), unfinishedData(ue), nil)
	}
	var te workflow.TransitionError
	if errors.As(err, &te) {
		return newAPIError(http.StatusUnprocessableEntity, err.Error(), nil, nil)
	}
	var fe auth.ForbiddenError
	if errors.As(err, &fe) {
		return newAPIError(http.StatusForbidden, err.Error(), nil, nil)
	}
	if errors.Is(err, repo.ErrNotFound) {
		return newAPIError(http.StatusNotFound, err.Error(), nil, nil)
	}
	var tre engine.TimerRunningError
	if errors.As(err, &tre) {
		var data any
		if tre.LogID != "" {
			data = map[string]string{"time_log_id": tre.LogID, "card_id": tre.CardID, "card_title": tre.CardTitle}
		}
		return newAPIError(http.StatusBadRequest, err.Error(), data, nil)
	}
	if errors.Is(err, engine.ErrAlreadyStopped) || errors.Is(err, engine.ErrLogOngoing) {
		return newAPIError(http.StatusBadRequest, err.Error(), nil, nil)
	}
	h.log.ErrorContext(ctx, "request failed", "err", err)
	if h.debug {
		return newAPIError(http.StatusInternalServerError, "internal error", map[string]string{"error": err.Error()}, nil)
	}
	return newAPIError(http.StatusInternalServerError, "internal error", nil, nil)
}

func unfinishedData(ue workflow.UnfinishedSubtasksError) map[string]any {
	items := make([]map[string]string, 0, len(ue.Unfinished))
	for _, s := range ue.Unfinished {
		items = append(items, map[string]string{"id": s.ID, "name": s.Name, "status": s.Status})
	}
	return map[string]any{
		"unfinished_subtasks": items,
		"total_subtasks":      ue.Total,
		"completed_subtasks":  ue.Completed(),
		"unfinished_count":    len(ue.Unfinished),
	}
}

func registerDocs(r chi.Router, basePath string) {
	r.Get("/docs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		io.WriteString(w, swaggerHTML(basePath))
	})
}

func registerOpenAPI(r chi.Router, api huma.API, basePath string) {
	var (
		once sync.Once
		spec []byte
	)
	specPath := path.Join(basePath, "openapi.json")
	r.Get(specPath, func(w http.ResponseWriter, r *http.Request) {
		once.Do(func() {
			oas := api.OpenAPI()
			applyAuthSecurity(oas, basePath)
			spec, _ = json.Marshal(oas)
		})
		w.Header().Set("Content-Type", "application/json")
		w.Write(spec)
	})
}

func applyAuthSecurity(oas *huma.OpenAPI, basePath string) {
	if oas == nil {
		return
	}
	if oas.Components == nil {
		oas.Components = &huma.Components{}
	}
	if oas.Components.SecuritySchemes == nil {
		oas.Components.SecuritySchemes = map[string]*huma.SecurityScheme{}
	}
	oas.Components.SecuritySchemes["bearerAuth"] = &huma.SecurityScheme{
		Type:         "http",
		Scheme:       "bearer",
		BearerFormat: "JWT",
	}
	oas.Components.SecuritySchemes["apiKeyAuth"] = &huma.SecurityScheme{
		Type: "apiKey",
		In:   "header",
		Name: "X-Api-Key",
	}
	security := []map[string][]string{
		{"bearerAuth": {}},
		{"apiKeyAuth": {}},
	}
	oas.Security = security
	healthPath := path.Join(basePath, "health")
	for route, item := range oas.Paths {
		for _, op := range []*huma.Operation{
			item.Get, item.Put, item.Post, item.Delete, item.Patch,
		} {
			if op == nil {
				continue
			}
			if route == healthPath {
				op.Security = []map[string][]string{}
				continue
			}
			op.Security = security
		}
	}
}

func swaggerHTML(basePath string) string {
	specURL := path.Join("/", path.Join(basePath, "openapi.json"))
	return fmt.Sprintf(`<!doctype html>
<html lang="en">
  <head>
    <meta charset="utf-8"/>
    <meta name="viewport" content="width=device-width, initial-scale=1"/>
    <title>Taskflow API Docs</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js" crossorigin></script>
    <script>
      window.onload = () => {
        SwaggerUIBundle({
          url: '%s',
          dom_id: '#swagger-ui'
        });
      };
    </script>
    <p style="padding: 1rem; font-family: sans-serif; color: #444;">
      Authenticate with Authorization: Bearer &lt;token&gt; or X-Api-Key.
    </p>
  </body>
</html>`, specURL)
}

func registerHealth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*reply, error) {
		return ok("ok", map[string]string{"status": "ok"})
	})
}

func registerMe(api huma.API, h handlers) {
	huma.Register(api, huma.Operation{
		OperationID: "me",
		Method:      http.MethodGet,
		Path:        "/me",
		Summary:     "Current user",
		Errors:      []int{http.StatusUnauthorized},
	}, func(ctx context.Context, _ *struct{}) (*reply, error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		u, err := h.e.GetUser(ctx, userID)
		if err != nil {
			return nil, h.fail(ctx, err)
		}
		return ok("Current user", u)
	})
}
