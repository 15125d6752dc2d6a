package store

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

//go:embed sqlite_migrations/*.sql
var sqliteMigrationsFS embed.FS

// migrationTarget is a database that can record applied schema versions.
type migrationTarget interface {
	ensureMigrationsTable(ctx context.Context) error
	migrationApplied(ctx context.Context, version string) (bool, error)
	// applyMigration runs the script and records version in one transaction.
	applyMigration(ctx context.Context, version, script string) error
}

// runMigrations applies pending SQL migrations from dir in lexicographic order.
// Migrations are tracked in a schema_migrations table.
// There are no down migrations; fix forward only.
func runMigrations(ctx context.Context, fsys fs.FS, dir string, target migrationTarget) error {
	if err := target.ensureMigrationsTable(ctx); err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}

		version := entry.Name()

		applied, err := target.migrationApplied(ctx, version)
		if err != nil {
			return fmt.Errorf("checking migration %s: %w", version, err)
		}
		if applied {
			continue
		}

		script, err := fs.ReadFile(fsys, dir+"/"+version)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", version, err)
		}

		if err := target.applyMigration(ctx, version, string(script)); err != nil {
			return fmt.Errorf("applying migration %s: %w", version, err)
		}
	}

	return nil
}

// RunMigrations applies pending PostgreSQL migrations.
func RunMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	return runMigrations(ctx, migrationsFS, "migrations", pgMigrator{pool: pool})
}

type pgMigrator struct {
	pool *pgxpool.Pool
}

func (m pgMigrator) ensureMigrationsTable(ctx context.Context) error {
	_, err := m.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version    TEXT PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)
	`)
	return err
}

func (m pgMigrator) migrationApplied(ctx context.Context, version string) (bool, error) {
	var exists bool
	err := m.pool.QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version = $1)",
		version,
	).Scan(&exists)
	return exists, err
}

func (m pgMigrator) applyMigration(ctx context.Context, version, script string) error {
	return pgx.BeginFunc(ctx, m.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, script); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, "INSERT INTO schema_migrations (version) VALUES ($1)", version)
		return err
	})
}
