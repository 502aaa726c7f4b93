package db

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRebind(t *testing.T) {
	q := `UPDATE cards SET status=?, updated_at=? WHERE id=? AND title != '?'`
	assert.Equal(t, q, SQLite.Rebind(q))
	assert.Equal(t, `UPDATE cards SET status=$1, updated_at=$2 WHERE id=$3 AND title != '?'`, Postgres.Rebind(q))
}

func TestOpenSQLiteUniqueViolation(t *testing.T) {
	dir := t.TempDir()
	conn, dialect, err := Open(Config{Workspace: dir})
	require.NoError(t, err)
	defer conn.Close()
	assert.Equal(t, SQLite, dialect)
	assert.FileExists(t, filepath.Join(dir, ".taskflow", defaultDBName))

	_, err = conn.Exec(`CREATE TABLE t(user_id TEXT NOT NULL, end_time TEXT);
CREATE UNIQUE INDEX t_one_open ON t(user_id) WHERE end_time IS NULL;`)
	require.NoError(t, err)
	_, err = conn.Exec(`INSERT INTO t(user_id) VALUES ('u1')`)
	require.NoError(t, err)
	_, err = conn.Exec(`INSERT INTO t(user_id, end_time) VALUES ('u1', 'x')`)
	require.NoError(t, err)
	_, err = conn.Exec(`INSERT INTO t(user_id) VALUES ('u1')`)
	require.Error(t, err)
	assert.True(t, IsUniqueViolation(err))
	assert.False(t, IsUniqueViolation(nil))
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, _, err := Open(Config{Driver: "oracle"})
	assert.Error(t, err)
	_, _, err = Open(Config{Driver: "postgres"})
	assert.Error(t, err)
}
