package app

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskflow/internal/config"
	"taskflow/internal/lock"
)

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewLogger(&buf, "warn", "json")
	require.NoError(t, err)
	logger.Info("hidden")
	logger.Warn("shown", "k", "v")
	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "shown", line["msg"])
	assert.Equal(t, "v", line["k"])

	_, err = NewLogger(&buf, "loud", "text")
	assert.Error(t, err)
	_, err = NewLogger(&buf, "info", "xml")
	assert.Error(t, err)
}

func TestOpenServesHealth(t *testing.T) {
	cfg := config.Default()
	cfg.Database.Workspace = t.TempDir()
	a, err := Open(context.Background(), cfg, nil)
	require.NoError(t, err)
	defer a.Close()
	_, isMemory := a.Engine.Locks.(*lock.Memory)
	assert.True(t, isMemory)

	h, err := a.Handler()
	require.NoError(t, err)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/time-logs", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestOpenFailsOnUnreachableRedis(t *testing.T) {
	cfg := config.Default()
	cfg.Database.Workspace = t.TempDir()
	cfg.Lock.RedisURL = "redis://127.0.0.1:1/0"
	_, err := Open(context.Background(), cfg, nil)
	assert.ErrorContains(t, err, "redis lock")
}
