package migration

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateMigration(t *testing.T) {
	t.Run("creates an up and down pair", func(t *testing.T) {
		dir := t.TempDir()

		mf, err := CreateMigration(dir, "add conflict table")
		require.NoError(t, err)

		assert.FileExists(t, mf.UpPath)
		assert.FileExists(t, mf.DownPath)
		assert.True(t, strings.HasSuffix(mf.UpPath, "_add_conflict_table.up.sql"))
		assert.True(t, strings.HasSuffix(mf.DownPath, "_add_conflict_table.down.sql"))
		assert.Len(t, mf.Version, 14)
	})

	t.Run("creates the migrations directory when missing", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "nested", "migrations")

		_, err := CreateMigration(dir, "initial")
		require.NoError(t, err)

		info, err := os.Stat(dir)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	})
}

func TestSanitizeName(t *testing.T) {
	cases := map[string]string{
		"Add Conflict Table":  "add_conflict_table",
		"queue--dead  letter": "queue_dead_letter",
		"trailing_":           "trailing",
		"UPPER":               "upper",
	}
	for in, want := range cases {
		assert.Equal(t, want, sanitizeName(in), in)
	}
}

func TestListMigrations(t *testing.T) {
	t.Run("returns empty for a missing directory", func(t *testing.T) {
		migrations, err := ListMigrations(filepath.Join(t.TempDir(), "nope"))
		require.NoError(t, err)
		assert.Empty(t, migrations)
	})

	t.Run("lists pairs once by base name", func(t *testing.T) {
		dir := t.TempDir()
		_, err := CreateMigration(dir, "first")
		require.NoError(t, err)

		migrations, err := ListMigrations(dir)
		require.NoError(t, err)
		require.Len(t, migrations, 1)
		assert.True(t, strings.HasSuffix(migrations[0], "_first"))
	})
}
