package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "/api", cfg.Server.BasePath)
	assert.Equal(t, 30*time.Second, cfg.Lock.TTL)
	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, "Asia/Jakarta", loc.String())
}

func TestFromYAMLOverridesDefaults(t *testing.T) {
	cfg, err := FromYAML([]byte(`
database:
  driver: postgres
  dsn: postgres://localhost/taskflow?sslmode=disable
webhooks:
  - id: slack
    url: https://hooks.example.com/x
    events: [timelog.stopped]
    timeout: 2s
`))
	require.NoError(t, err)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, "127.0.0.1:8080", cfg.Server.Addr)
	require.Len(t, cfg.Webhooks, 1)
	assert.Equal(t, 2*time.Second, cfg.Webhooks[0].Timeout)
}

func TestValidateRejects(t *testing.T) {
	cases := map[string]string{
		"postgres without dsn": "database:\n  driver: postgres\n",
		"unknown driver":       "database:\n  driver: mysql\n",
		"bad timezone":         "timezone: Mars/Olympus\n",
		"bad webhook":          "webhooks:\n  - url: ftp://x\n",
		"bad level":            "log:\n  level: loud\n",
		"zero burst":           "rate_limit:\n  enabled: true\n  rps: 1\n  burst: 0\n",
	}
	for name, doc := range cases {
		_, err := FromYAML([]byte(doc))
		assert.Error(t, err, name)
	}
}

func TestLoadFallsBackToDefaults(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, dir, cfg.Database.Workspace)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "taskflow.yml"), []byte("server:\n  debug: true\n"), 0o644))
	cfg, err = Load(dir)
	require.NoError(t, err)
	assert.True(t, cfg.Server.Debug)
	assert.Equal(t, "/api", cfg.Server.BasePath)
}
