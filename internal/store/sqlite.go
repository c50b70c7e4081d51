package store

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// ErrRunNotFound is returned when a run id does not exist.
var ErrRunNotFound = errors.New("verification run not found")

// Store provides SQLite-backed persistence of verification history
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// New creates a new Store, opening the SQLite database and running migrations
func New(dbPath string, logger *slog.Logger) (*Store, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection keeps ":memory:" databases shared and serializes writers.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &Store{
		db:     db,
		logger: logger,
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	logger.Debug("Store initialized successfully", "path", dbPath)
	return s, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}

// ============================================================================
// VerificationRun Operations
// ============================================================================

// CreateRun inserts run and its findings in one transaction and sets the
// run and finding IDs
func (s *Store) CreateRun(run *VerificationRun, findings []Finding) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	const runQuery = `
		INSERT INTO verification_runs (
			product, install_path, manifest_path, manifest_digest, root_packages,
			start_time, end_time, status, files_checked, files_ignored,
			files_missing, files_mismatched, files_unreferenced, files_passed,
			error_message
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	result, err := tx.Exec(
		runQuery,
		run.Product, run.InstallPath, run.ManifestPath, run.ManifestDigest,
		run.RootPackages, run.StartTime, run.EndTime, run.Status,
		run.FilesChecked, run.FilesIgnored, run.FilesMissing,
		run.FilesMismatched, run.FilesUnreferenced, run.FilesPassed,
		run.ErrorMessage,
	)
	if err != nil {
		return fmt.Errorf("failed to insert verification run: %w", err)
	}

	runID, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO findings (run_id, kind, path, package, purl, detail)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare finding insert: %w", err)
	}
	defer stmt.Close()

	for i := range findings {
		f := &findings[i]
		res, err := stmt.Exec(runID, f.Kind, f.Path, f.Package, f.PURL, f.Detail)
		if err != nil {
			return fmt.Errorf("failed to insert finding for %s: %w", f.Path, err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to get last insert id: %w", err)
		}
		f.ID = id
		f.RunID = runID
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit verification run: %w", err)
	}

	run.ID = runID
	return nil
}

const runColumns = `
	id, product, install_path, manifest_path, manifest_digest, root_packages,
	start_time, end_time, status, files_checked, files_ignored, files_missing,
	files_mismatched, files_unreferenced, files_passed, error_message
`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*VerificationRun, error) {
	run := &VerificationRun{}
	err := row.Scan(
		&run.ID, &run.Product, &run.InstallPath, &run.ManifestPath,
		&run.ManifestDigest, &run.RootPackages, &run.StartTime, &run.EndTime,
		&run.Status, &run.FilesChecked, &run.FilesIgnored, &run.FilesMissing,
		&run.FilesMismatched, &run.FilesUnreferenced, &run.FilesPassed,
		&run.ErrorMessage,
	)
	return run, err
}

// GetRun retrieves a VerificationRun by ID
func (s *Store) GetRun(id int64) (*VerificationRun, error) {
	run, err := scanRun(s.db.QueryRow("SELECT "+runColumns+" FROM verification_runs WHERE id = ?", id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %d", ErrRunNotFound, id)
		}
		return nil, fmt.Errorf("failed to query verification run: %w", err)
	}
	return run, nil
}

// ListRuns retrieves runs newest first, optionally filtered by product
func (s *Store) ListRuns(product string, limit int) ([]VerificationRun, error) {
	query := "SELECT " + runColumns + " FROM verification_runs"
	var args []any

	if product != "" {
		query += " WHERE product = ?"
		args = append(args, product)
	}

	query += " ORDER BY start_time DESC, id DESC"

	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query verification runs: %w", err)
	}
	defer rows.Close()

	var runs []VerificationRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan verification run: %w", err)
		}
		runs = append(runs, *run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating verification runs: %w", err)
	}

	return runs, nil
}

// DeleteRunsBefore removes runs that started before cutoff along with their
// findings and returns how many runs were removed
func (s *Store) DeleteRunsBefore(cutoff time.Time) (int64, error) {
	result, err := s.db.Exec("DELETE FROM verification_runs WHERE start_time < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete verification runs: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n, nil
}

// ============================================================================
// Finding Operations
// ============================================================================

// ListFindings retrieves the findings of a run ordered by kind and path
func (s *Store) ListFindings(runID int64) ([]Finding, error) {
	const query = `
		SELECT id, run_id, kind, path, package, purl, detail
		FROM findings WHERE run_id = ?
		ORDER BY kind, path, id
	`

	rows, err := s.db.Query(query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query findings: %w", err)
	}
	defer rows.Close()

	var findings []Finding
	for rows.Next() {
		f := Finding{}
		if err := rows.Scan(&f.ID, &f.RunID, &f.Kind, &f.Path, &f.Package, &f.PURL, &f.Detail); err != nil {
			return nil, fmt.Errorf("failed to scan finding: %w", err)
		}
		findings = append(findings, f)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating findings: %w", err)
	}

	return findings, nil
}
