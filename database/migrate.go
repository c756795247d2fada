// Package database applies the SQL schema migrations through database/sql
package database

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"

	_ "github.com/lib/pq" // PostgreSQL driver for database/sql
	"go.uber.org/zap"
)

const createVersionTable = `CREATE TABLE IF NOT EXISTS schema_migrations (
    version VARCHAR(255) PRIMARY KEY,
    applied_at TIMESTAMPTZ NOT NULL DEFAULT (CURRENT_TIMESTAMP AT TIME ZONE 'UTC')
)`

// RunMigrations opens dsn with lib/pq and applies every *.sql file of files not yet recorded
// in schema_migrations, in lexical order, each inside its own transaction.
func RunMigrations(ctx context.Context, dsn string, files fs.FS, log *zap.Logger) (int, error) {
	if log == nil {
		log = zap.NewNop()
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return 0, fmt.Errorf("failed to open database connection: %w", err)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return 0, fmt.Errorf("failed to ping database: %w", err)
	}

	return Apply(ctx, db, files, log)
}

// Apply runs pending migrations on an open connection
func Apply(ctx context.Context, db *sql.DB, files fs.FS, log *zap.Logger) (int, error) {
	if _, err := db.ExecContext(ctx, createVersionTable); err != nil {
		return 0, fmt.Errorf("failed to create schema_migrations: %w", err)
	}

	names, err := MigrationNames(files)
	if err != nil {
		return 0, err
	}

	applied, err := appliedVersions(ctx, db)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, name := range names {
		if applied[name] {
			continue
		}
		content, err := fs.ReadFile(files, name)
		if err != nil {
			return count, fmt.Errorf("failed to read migration file %s: %w", name, err)
		}
		if err := applyOne(ctx, db, name, string(content)); err != nil {
			return count, err
		}
		log.Info("Applied migration", zap.String("file", name))
		count++
	}
	return count, nil
}

// MigrationNames lists the *.sql files at the root of files in apply order
func MigrationNames(files fs.FS) ([]string, error) {
	entries, err := fs.ReadDir(files, ".")
	if err != nil {
		return nil, fmt.Errorf("failed to list migrations: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || path.Ext(e.Name()) != ".sql" || strings.HasSuffix(e.Name(), ".down.sql") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

func appliedVersions(ctx context.Context, db *sql.DB) (map[string]bool, error) {
	rows, err := db.QueryContext(ctx, "SELECT version FROM schema_migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to read schema_migrations: %w", err)
	}
	defer rows.Close()

	applied := map[string]bool{}
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		applied[v] = true
	}
	return applied, rows.Err()
}

func applyOne(ctx context.Context, db *sql.DB, name, content string) (err error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin migration %s: %w", name, err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, content); err != nil {
		return fmt.Errorf("failed to execute migration %s: %w", name, err)
	}
	if _, err = tx.ExecContext(ctx, "INSERT INTO schema_migrations (version) VALUES ($1)", name); err != nil {
		return fmt.Errorf("failed to record migration %s: %w", name, err)
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit migration %s: %w", name, err)
	}
	return nil
}
