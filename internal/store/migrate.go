package store

import (
	"context"
	"embed"
	"io/fs"
	"path"
	"sort"

	"github.com/pkg/errors"
)

//go:embed migrations/sqlite/*.sql migrations/postgres/*.sql
var migrationsFS embed.FS

// applyFunc executes one migration file. Each backend wraps it in its own
// transaction.
type applyFunc func(ctx context.Context, name, sql string) error

// RunMigrations executes the SQL files of a dialect ("sqlite" or "postgres")
// in alphabetical order. Files must be idempotent (IF NOT EXISTS), they are
// re-applied on every start.
func RunMigrations(ctx context.Context, dialect string, apply applyFunc) error {
	dir := path.Join("migrations", dialect)
	entries, err := fs.ReadDir(migrationsFS, dir)
	if err != nil {
		return errors.Wrapf(err, "read migrations for %s", dialect)
	}
	// ensure deterministic order: 001_..., 002_..., etc.
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		sqlBytes, err := fs.ReadFile(migrationsFS, path.Join(dir, e.Name()))
		if err != nil {
			return errors.Wrapf(err, "read %s", e.Name())
		}
		if err := apply(ctx, e.Name(), string(sqlBytes)); err != nil {
			return errors.Wrapf(err, "apply %s", e.Name())
		}
	}
	return nil
}
