package main

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func executeContext(ctx context.Context, args ...string) error {
	root := newRootCmd()
	root.SetArgs(args)
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)
	return root.ExecuteContext(ctx)
}

func TestMigrate_CreatesSQLiteDatabase(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	dbPath := filepath.Join(dir, "data", "bot.db")
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("DB_PATH", dbPath)
	t.Setenv("LOG_LEVEL", "error")

	require.NoError(t, executeContext(context.Background(), "migrate"))
	_, err := os.Stat(dbPath)
	require.NoError(t, err)

	// Applying again is a no-op.
	require.NoError(t, executeContext(context.Background(), "migrate"))
}

func TestSweep_RejectsUnknownKind(t *testing.T) {
	require.Error(t, executeContext(context.Background(), "sweep", "weekly"))
	require.Error(t, executeContext(context.Background(), "sweep"))
}

func TestSweep_RequiresBotToken(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("BOT_TOKEN", "")
	t.Setenv("DB_PATH", filepath.Join(t.TempDir(), "bot.db"))

	err := executeContext(context.Background(), "sweep", "digest")
	require.ErrorContains(t, err, "BOT_TOKEN")
}
