// Package tests holds integration tests that run against a real Postgres.
// They skip when DATABASE_URL is not set.
package tests

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pressly/goose/v3"
)

// Candidate migration directories depending on the test working directory.
var migrationDirs = []string{
	"internal/db/migrations",
	"../../internal/db/migrations",
}

// ResolveMigrationDir returns the first existing migrations directory, or an
// empty string.
func ResolveMigrationDir() string {
	for _, dir := range migrationDirs {
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			abs, _ := filepath.Abs(dir)
			return abs
		}
	}
	return ""
}

// RunMigrations runs goose Up using the resolved migration directory.
func RunMigrations(db *sql.DB) error {
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}
	dir := ResolveMigrationDir()
	if dir == "" {
		return fmt.Errorf("migrations directory not found; run tests from the repo root")
	}
	if err := goose.Up(db, dir); err != nil {
		return fmt.Errorf("goose up: %w", err)
	}
	return nil
}

// TruncateAll resets every table touched by the auth and loyalty flows.
func TruncateAll(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx,
		"TRUNCATE TABLE bonus_logs, news, tokens, otps, clients, businesses, users RESTART IDENTITY CASCADE")
	if err != nil {
		return fmt.Errorf("truncate tables: %w", err)
	}
	return nil
}
