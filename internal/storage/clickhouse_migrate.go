package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/portfolio-ledger/internal/logging"
)

const clickHouseMigrationsTable = "schema_migrations"

// RunClickHouseMigrations applies the .sql files of migrationsPath in name
// order. Applied file names are recorded so a file runs once.
func RunClickHouseMigrations(ctx context.Context, db *ClickHouseDB, migrationsPath string) ([]string, error) {
	logger := logging.FromContext(ctx).WithComponent("clickhouse_migrate")

	files, err := clickHouseMigrationFiles(migrationsPath)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		logger.Info("no migration files found")
		return nil, nil
	}

	if err := db.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS `+clickHouseMigrationsTable+` (
			name       String,
			applied_at DateTime DEFAULT now()
		) ENGINE = MergeTree ORDER BY name
	`); err != nil {
		return nil, fmt.Errorf("failed to create migrations table: %w", err)
	}
	applied, err := AppliedClickHouseMigrations(ctx, db)
	if err != nil {
		return nil, err
	}
	done := make(map[string]struct{}, len(applied))
	for _, name := range applied {
		done[name] = struct{}{}
	}

	var ran []string
	for _, name := range files {
		if _, ok := done[name]; ok {
			continue
		}
		content, err := os.ReadFile(filepath.Join(migrationsPath, name)) // #nosec G304 - path comes from the operator
		if err != nil {
			return ran, fmt.Errorf("failed to read migration file %s: %w", name, err)
		}

		for i, stmt := range splitSQLStatements(string(content)) {
			logger.WithFields(map[string]interface{}{
				"file":      name,
				"statement": i + 1,
			}).Debug(truncate(stmt, 80))
			if err := db.Exec(ctx, stmt); err != nil {
				return ran, fmt.Errorf("failed to execute statement %d in %s: %w", i+1, name, err)
			}
		}
		if err := db.Exec(ctx, "INSERT INTO "+clickHouseMigrationsTable+" (name) VALUES (?)", name); err != nil {
			return ran, fmt.Errorf("failed to record migration %s: %w", name, err)
		}
		logger.WithField("file", name).Info("applied migration")
		ran = append(ran, name)
	}
	return ran, nil
}

// AppliedClickHouseMigrations lists the recorded migration file names in
// order.
func AppliedClickHouseMigrations(ctx context.Context, db *ClickHouseDB) ([]string, error) {
	rows, err := db.Conn().Query(ctx, "SELECT name FROM "+clickHouseMigrationsTable+" ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("failed to list applied migrations: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan migration name: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func clickHouseMigrationFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations directory: %w", err)
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// splitSQLStatements splits a script on statement-ending semicolons,
// dropping blank and comment-only lines. ClickHouse rejects the trailing
// semicolon, so it is removed.
func splitSQLStatements(content string) []string {
	var (
		statements []string
		current    strings.Builder
	)
	flush := func() {
		stmt := strings.TrimSuffix(strings.TrimSpace(current.String()), ";")
		if stmt = strings.TrimSpace(stmt); stmt != "" {
			statements = append(statements, stmt)
		}
		current.Reset()
	}

	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "--") {
			continue
		}
		current.WriteString(line)
		current.WriteString("\n")
		if strings.HasSuffix(trimmed, ";") {
			flush()
		}
	}
	flush()
	return statements
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
