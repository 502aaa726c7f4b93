// Package app wires configuration, storage, locks and the HTTP server into a
// running taskflow instance.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"taskflow/internal/config"
	"taskflow/internal/db"
	"taskflow/internal/engine"
	"taskflow/internal/lock"
	"taskflow/internal/migrate"
	"taskflow/internal/server"
)

type App struct {
	Config *config.Config
	DB     *sql.DB
	Engine engine.Engine
	Logger *slog.Logger

	closers []func() error
}

// NewLogger builds the process logger from log.level and log.format.
func NewLogger(w io.Writer, level, format string) (*slog.Logger, error) {
	var lvl slog.Level
	if level != "" {
		if err := lvl.UnmarshalText([]byte(level)); err != nil {
			return nil, fmt.Errorf("log level %q: %w", level, err)
		}
	}
	opts := &slog.HandlerOptions{Level: lvl}
	switch strings.ToLower(format) {
	case "", "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("log format %q must be text or json", format)
	}
}

// Open connects the database, applies migrations and builds the engine. A
// configured lock.redis_url replaces the in-process locker.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	conn, dialect, err := db.Open(db.Config{
		Driver:    cfg.Database.Driver,
		DSN:       cfg.Database.DSN,
		Workspace: cfg.Database.Workspace,
	})
	if err != nil {
		return nil, err
	}
	a := &App{Config: cfg, DB: conn, Logger: logger, closers: []func() error{conn.Close}}
	n, err := migrate.Migrate(ctx, conn, dialect)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	if n > 0 {
		logger.Info("applied migrations", "count", n, "dialect", string(dialect))
	}
	a.Engine, err = engine.New(conn, dialect, cfg)
	if err != nil {
		a.Close()
		return nil, err
	}
	if url := strings.TrimSpace(cfg.Lock.RedisURL); url != "" {
		rl, err := lock.NewRedis(url, cfg.Lock.TTL)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("redis lock: %w", err)
		}
		a.closers = append(a.closers, rl.Close)
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		defer cancel()
		if err := rl.Ping(pingCtx); err != nil {
			a.Close()
			return nil, fmt.Errorf("redis lock: %w", err)
		}
		a.Engine.Locks = rl
		logger.Info("using redis locks")
	}
	return a, nil
}

// Close releases everything Open acquired, newest first.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// Handler builds the HTTP API for the app's configuration.
func (a *App) Handler() (http.Handler, error) {
	cfg := a.Config
	return server.New(server.Config{
		Engine:   a.Engine,
		BasePath: cfg.Server.BasePath,
		Auth: server.AuthConfig{
			JWTSecret: cfg.Auth.JWTSecret,
			Issuer:    cfg.Auth.JWTIssuer,
			Audience:  cfg.Auth.JWTAudience,
		},
		RateLimit: cfg.RateLimit,
		Debug:     cfg.Server.Debug,
		Logger:    a.Logger,
	})
}

// Serve runs the API and the webhook dispatcher until ctx is done.
func (a *App) Serve(ctx context.Context, addr string) error {
	if strings.TrimSpace(a.Config.Auth.JWTSecret) == "" {
		a.Logger.Warn("auth.jwt_secret is empty; only X-Api-Key authentication will work")
	}
	handler, err := a.Handler()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go server.NewDispatcher(a.Engine.Repo, a.Config.Webhooks, a.Logger).Run(ctx)

	srv := &http.Server{Addr: addr, Handler: handler, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()
	a.Logger.Info("serving taskflow API", "addr", addr, "base_path", a.Config.Server.BasePath)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
