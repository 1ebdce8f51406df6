// Package history keeps parsed coverage tables in a SQLite database so
// earlier runs can be listed and rendered again.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/jupierce/coverage-report/pkg/report"
)

// ErrRunNotFound is returned by Load for an unknown run id.
var ErrRunNotFound = errors.New("run not found")

const schemaVersion = 1

// Run is one stored report run. Table is only populated by Load.
type Run struct {
	ID          int64
	Module      string
	Profile     string
	GeneratedAt time.Time
	Files       int
	Records     int
	Table       *report.Table
}

// Store is a SQLite-backed run history.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the history database at path.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create history directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(ON)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}

func createSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL);

		CREATE TABLE IF NOT EXISTS runs (
			id           INTEGER PRIMARY KEY AUTOINCREMENT,
			module       TEXT NOT NULL,
			profile      TEXT NOT NULL DEFAULT '',
			generated_at TEXT NOT NULL,
			file_count   INTEGER NOT NULL DEFAULT 0,
			record_count INTEGER NOT NULL DEFAULT 0
		);

		CREATE TABLE IF NOT EXISTS records (
			run_id     INTEGER NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			file_pos   INTEGER NOT NULL,
			record_pos INTEGER NOT NULL,
			file       TEXT NOT NULL,
			line       TEXT NOT NULL,
			function   TEXT NOT NULL,
			percentage TEXT NOT NULL,
			PRIMARY KEY (run_id, file_pos, record_pos)
		);

		CREATE INDEX IF NOT EXISTS idx_records_file ON records(file);
	`)
	if err != nil {
		return err
	}

	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM schema_version`).Scan(&count); err != nil {
		return err
	}
	if count == 0 {
		_, err = db.Exec(`INSERT INTO schema_version (version) VALUES (?)`, schemaVersion)
	}
	return err
}

// Save stores run and its table, returning the new run id.
func (s *Store) Save(ctx context.Context, run Run) (int64, error) {
	if run.Table == nil {
		return 0, errors.New("save run: nil table")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO runs (module, profile, generated_at, file_count, record_count) VALUES (?, ?, ?, ?, ?)`,
		run.Module, run.Profile, run.GeneratedAt.UTC().Format(time.RFC3339Nano),
		run.Table.Len(), run.Table.RecordCount())
	if err != nil {
		return 0, fmt.Errorf("insert run: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("run id: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO records (run_id, file_pos, record_pos, file, line, function, percentage) VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("prepare record insert: %w", err)
	}
	defer stmt.Close()

	for filePos, entry := range run.Table.Entries() {
		for recPos, rec := range entry.Records {
			if _, err := stmt.ExecContext(ctx, id, filePos, recPos, entry.File, rec.Line, rec.Function, rec.Percentage); err != nil {
				return 0, fmt.Errorf("insert record %s:%s: %w", entry.File, rec.Line, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit run: %w", err)
	}
	return id, nil
}

// List returns stored runs newest first, without their tables.
func (s *Store) List(ctx context.Context) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, module, profile, generated_at, file_count, record_count FROM runs ORDER BY id DESC`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// Load returns the run with id and rebuilds its table in stored order.
func (s *Store) Load(ctx context.Context, id int64) (*Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, module, profile, generated_at, file_count, record_count FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT file, line, function, percentage FROM records WHERE run_id = ? ORDER BY file_pos, record_pos`, id)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	run.Table = report.NewTable()
	for rows.Next() {
		var file string
		var rec report.Record
		if err := rows.Scan(&file, &rec.Line, &rec.Function, &rec.Percentage); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		run.Table.Append(file, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &run, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (Run, error) {
	var run Run
	var generatedAt string
	if err := sc.Scan(&run.ID, &run.Module, &run.Profile, &generatedAt, &run.Files, &run.Records); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return run, err
		}
		return run, fmt.Errorf("scan run: %w", err)
	}

	t, err := time.Parse(time.RFC3339Nano, generatedAt)
	if err != nil {
		return run, fmt.Errorf("parse generated_at %q: %w", generatedAt, err)
	}
	run.GeneratedAt = t
	return run, nil
}
