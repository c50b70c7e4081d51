package store

import (
	"fmt"
)

// migrate runs all pending migrations
func (s *Store) migrate() error {
	createMigrationsTableSQL := `
		CREATE TABLE IF NOT EXISTS migrations (
			id INTEGER PRIMARY KEY,
			version INTEGER NOT NULL UNIQUE,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);
	`

	if _, err := s.db.Exec(createMigrationsTableSQL); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	var currentVersion int
	err := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM migrations").Scan(&currentVersion)
	if err != nil {
		return fmt.Errorf("failed to get current migration version: %w", err)
	}

	s.logger.Debug("Current schema version", "version", currentVersion)

	migrations := []struct {
		version int
		sql     string
	}{
		{
			version: 1,
			sql: `
				CREATE TABLE verification_runs (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					product TEXT NOT NULL,
					install_path TEXT NOT NULL,
					manifest_path TEXT NOT NULL DEFAULT '',
					manifest_digest TEXT NOT NULL DEFAULT '',
					root_packages TEXT NOT NULL DEFAULT '',
					start_time DATETIME NOT NULL,
					end_time DATETIME NOT NULL,
					status TEXT NOT NULL,
					files_checked INTEGER NOT NULL DEFAULT 0,
					files_ignored INTEGER NOT NULL DEFAULT 0,
					files_missing INTEGER NOT NULL DEFAULT 0,
					files_mismatched INTEGER NOT NULL DEFAULT 0,
					files_unreferenced INTEGER NOT NULL DEFAULT 0,
					files_passed INTEGER NOT NULL DEFAULT 0,
					error_message TEXT NOT NULL DEFAULT ''
				);

				CREATE TABLE findings (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					run_id INTEGER NOT NULL,
					kind TEXT NOT NULL,
					path TEXT NOT NULL,
					package TEXT NOT NULL DEFAULT '',
					purl TEXT NOT NULL DEFAULT '',
					detail TEXT NOT NULL DEFAULT '',
					FOREIGN KEY(run_id) REFERENCES verification_runs(id) ON DELETE CASCADE
				);
			`,
		},
		{
			version: 2,
			sql: `
				CREATE INDEX idx_findings_run ON findings(run_id);
				CREATE INDEX idx_runs_product_start ON verification_runs(product, start_time);
			`,
		},
	}

	for _, mig := range migrations {
		if mig.version > currentVersion {
			s.logger.Debug("Running migration", "version", mig.version)

			if err := s.runMigration(mig.version, mig.sql); err != nil {
				return fmt.Errorf("failed to run migration %d: %w", mig.version, err)
			}
		}
	}

	return nil
}

// runMigration executes a migration and records it
func (s *Store) runMigration(version int, sql string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(sql); err != nil {
		return fmt.Errorf("failed to execute migration SQL: %w", err)
	}

	insertSQL := "INSERT INTO migrations (version) VALUES (?)"
	if _, err := tx.Exec(insertSQL, version); err != nil {
		return fmt.Errorf("failed to record migration: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit migration transaction: %w", err)
	}

	return nil
}
