package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMigrateUpSQLite(t *testing.T) {
	setMinimalEnv(t)
	path := filepath.Join(t.TempDir(), "favorites.db")
	t.Setenv("STORAGE_DRIVER", "sqlite")
	t.Setenv("SQLITE_PATH", path)

	out, err := execute(t, "migrate", "up")
	require.NoError(t, err)
	require.Contains(t, out, "sqlite migrations applied")

	_, err = os.Stat(path)
	require.NoError(t, err)
}

func TestMigrateUpMemoryHasNoSchema(t *testing.T) {
	setMinimalEnv(t)

	_, err := execute(t, "migrate", "up")
	require.ErrorContains(t, err, "has no schema")
}

func TestMigrateDownValidation(t *testing.T) {
	setMinimalEnv(t)

	_, err := execute(t, "migrate", "down", "zero")
	require.ErrorContains(t, err, "steps must be a positive integer")

	_, err = execute(t, "migrate", "down", "1")
	require.ErrorContains(t, err, "only supported for postgres")
}
