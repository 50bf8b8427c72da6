package store

import (
	"context"
	"embed"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// Migrate applies every embedded schema script that is not yet recorded
// in the schema_migrations ledger. Each script's DDL and its ledger row
// are committed in the same transaction, so a crash mid-migration never
// leaves a half-recorded change. Running with nothing pending is a
// no-op.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			filename   TEXT PRIMARY KEY,
			applied_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`); err != nil {
		return fmt.Errorf("migration: failed to create ledger: %w", err)
	}

	applied, err := s.appliedMigrations(ctx)
	if err != nil {
		return err
	}

	names, err := migrationNames()
	if err != nil {
		return err
	}

	for _, name := range names {
		if applied[name] {
			continue
		}

		script, err := migrationFS.ReadFile("migrations/" + name)
		if err != nil {
			return fmt.Errorf("migration %s: failed to read script: %w", name, err)
		}

		if err := s.applyMigration(ctx, name, string(script)); err != nil {
			return err
		}
		logrus.Infof("Applied migration %s", name)
	}

	return nil
}

func (s *Store) applyMigration(ctx context.Context, name, script string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("migration %s: failed to begin transaction: %w", name, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, script); err != nil {
		return fmt.Errorf("migration %s: failed to apply: %w", name, err)
	}

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO schema_migrations (filename) VALUES (?)", name); err != nil {
		return fmt.Errorf("migration %s: failed to record: %w", name, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("migration %s: failed to commit: %w", name, err)
	}
	return nil
}

func (s *Store) appliedMigrations(ctx context.Context) (map[string]bool, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT filename FROM schema_migrations")
	if err != nil {
		return nil, fmt.Errorf("migration: failed to read ledger: %w", err)
	}
	defer rows.Close()

	applied := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("migration: failed to scan ledger row: %w", err)
		}
		applied[name] = true
	}
	return applied, rows.Err()
}

// migrationNames returns the embedded scripts in order, after validating
// that their numeric prefixes form a gap-free, duplicate-free sequence
// starting at 1.
func migrationNames() ([]string, error) {
	entries, err := migrationFS.ReadDir("migrations")
	if err != nil {
		return nil, fmt.Errorf("migration: failed to list scripts: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if strings.HasSuffix(entry.Name(), ".sql") {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)

	if err := validateMigrationNames(names); err != nil {
		return nil, err
	}
	return names, nil
}

func validateMigrationNames(names []string) error {
	seen := make(map[int]string, len(names))
	for _, name := range names {
		prefix, _, ok := strings.Cut(name, "_")
		if !ok {
			return fmt.Errorf("migration %s: missing numeric prefix", name)
		}
		num, err := strconv.Atoi(prefix)
		if err != nil {
			return fmt.Errorf("migration %s: invalid numeric prefix: %w", name, err)
		}
		if other, dup := seen[num]; dup {
			return fmt.Errorf("migration %s: duplicate number %d (also %s)", name, num, other)
		}
		seen[num] = name
	}
	for i := 1; i <= len(names); i++ {
		if _, ok := seen[i]; !ok {
			return fmt.Errorf("migration sequence has a gap: number %d is missing", i)
		}
	}
	return nil
}
