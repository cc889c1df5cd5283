package state

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// #region schema
const schema = `
CREATE TABLE IF NOT EXISTS training_runs (
	run_id        TEXT PRIMARY KEY,
	parent_id     TEXT,
	status        TEXT NOT NULL,
	log_dir       TEXT NOT NULL,
	export_dir    TEXT NOT NULL,
	config_json   TEXT,
	summary_json  TEXT,
	reason        TEXT,
	started_at    TEXT NOT NULL,
	finished_at   TEXT,
	FOREIGN KEY (parent_id) REFERENCES training_runs(run_id)
);

CREATE TABLE IF NOT EXISTS artifacts (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id        TEXT NOT NULL,
	name          TEXT NOT NULL,
	path          TEXT NOT NULL,
	bytes         INTEGER NOT NULL,
	checksum      TEXT NOT NULL,
	entries       INTEGER NOT NULL,
	created_at    TEXT NOT NULL,
	FOREIGN KEY (run_id) REFERENCES training_runs(run_id)
);

CREATE TABLE IF NOT EXISTS stage_log (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id        TEXT NOT NULL,
	stage         TEXT NOT NULL,
	outcome       TEXT NOT NULL,
	counts_json   TEXT,
	detail        TEXT,
	duration_ms   INTEGER NOT NULL,
	created_at    TEXT NOT NULL,
	FOREIGN KEY (run_id) REFERENCES training_runs(run_id)
);

CREATE TABLE IF NOT EXISTS active_run (
	id            INTEGER PRIMARY KEY CHECK (id = 1),
	run_id        TEXT NOT NULL,
	FOREIGN KEY (run_id) REFERENCES training_runs(run_id)
);
`

// #endregion schema

// #region store-struct
// Store is the SQLite registry of training runs and their artifacts.
type Store struct {
	db *sql.DB
}

// #endregion store-struct

// #region constructor
// NewStore opens a SQLite database and runs migrations.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		return nil, fmt.Errorf("pragma fk: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for use by other packages (e.g. logging).
func (s *Store) DB() *sql.DB {
	return s.db
}

// #endregion constructor

// #region begin-run
// BeginRun records a new run in the running state. The currently active run,
// if any, becomes its parent.
func (s *Store) BeginRun(logDir, exportDir, configJSON string) (RunRecord, error) {
	rec := RunRecord{
		RunID:      uuid.New().String(),
		Status:     StatusRunning,
		LogDir:     logDir,
		ExportDir:  exportDir,
		ConfigJSON: configJSON,
		StartedAt:  time.Now().UTC(),
	}

	var parent sql.NullString
	err := s.db.QueryRow(`SELECT run_id FROM active_run WHERE id = 1`).Scan(&parent)
	if err != nil && err != sql.ErrNoRows {
		return RunRecord{}, fmt.Errorf("get active: %w", err)
	}
	if parent.Valid {
		rec.ParentID = parent.String
	}

	_, err = s.db.Exec(
		`INSERT INTO training_runs (run_id, parent_id, status, log_dir, export_dir, config_json, started_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.RunID, nullIfEmpty(rec.ParentID), rec.Status, rec.LogDir, rec.ExportDir,
		nullIfEmpty(rec.ConfigJSON), rec.StartedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return RunRecord{}, fmt.Errorf("insert run: %w", err)
	}
	return rec, nil
}

// #endregion begin-run

// #region finish-run
// FinishRun moves a run out of the running state. A completed run becomes
// the active run in the same transaction.
func (s *Store) FinishRun(runID, status, reason, summaryJSON string) error {
	if status == StatusRunning {
		return fmt.Errorf("finish run %s: status must not be %s", runID, StatusRunning)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(
		`UPDATE training_runs SET status = ?, reason = ?, summary_json = ?, finished_at = ?
		 WHERE run_id = ? AND status = ?`,
		status, nullIfEmpty(reason), nullIfEmpty(summaryJSON), time.Now().UTC().Format(time.RFC3339Nano),
		runID, StatusRunning,
	)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("run %s not found or already finished", runID)
	}

	if status == StatusCompleted {
		_, err = tx.Exec(
			`INSERT INTO active_run (id, run_id) VALUES (1, ?)
			 ON CONFLICT(id) DO UPDATE SET run_id = excluded.run_id`,
			runID,
		)
		if err != nil {
			return fmt.Errorf("set active: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// #endregion finish-run

// #region record-artifacts
// RecordArtifacts stores the exported files of a run atomically.
func (s *Store) RecordArtifacts(runID string, files []ArtifactRecord) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC().Format(time.RFC3339Nano)
	for _, f := range files {
		_, err := tx.Exec(
			`INSERT INTO artifacts (run_id, name, path, bytes, checksum, entries, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			runID, f.Name, f.Path, f.Bytes, f.Checksum, f.Entries, now,
		)
		if err != nil {
			return fmt.Errorf("insert artifact %s: %w", f.Name, err)
		}
	}
	return tx.Commit()
}

// ListArtifacts returns the files recorded for a run in insertion order.
func (s *Store) ListArtifacts(runID string) ([]ArtifactRecord, error) {
	rows, err := s.db.Query(
		`SELECT run_id, name, path, bytes, checksum, entries, created_at
		 FROM artifacts WHERE run_id = ? ORDER BY id`, runID,
	)
	if err != nil {
		return nil, fmt.Errorf("list artifacts: %w", err)
	}
	defer rows.Close()

	var out []ArtifactRecord
	for rows.Next() {
		var a ArtifactRecord
		var createdStr string
		if err := rows.Scan(&a.RunID, &a.Name, &a.Path, &a.Bytes, &a.Checksum, &a.Entries, &createdStr); err != nil {
			return nil, fmt.Errorf("scan artifact: %w", err)
		}
		a.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
		out = append(out, a)
	}
	return out, rows.Err()
}

// #endregion record-artifacts

// #region get-run
const runColumns = `run_id, parent_id, status, log_dir, export_dir, config_json, summary_json, reason, started_at, finished_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (RunRecord, error) {
	var rec RunRecord
	var parentID, configJSON, summaryJSON, reason, finishedStr sql.NullString
	var startedStr string
	if err := row.Scan(&rec.RunID, &parentID, &rec.Status, &rec.LogDir, &rec.ExportDir,
		&configJSON, &summaryJSON, &reason, &startedStr, &finishedStr); err != nil {
		return RunRecord{}, err
	}
	rec.ParentID = parentID.String
	rec.ConfigJSON = configJSON.String
	rec.SummaryJSON = summaryJSON.String
	rec.Reason = reason.String
	rec.StartedAt, _ = time.Parse(time.RFC3339Nano, startedStr)
	if finishedStr.Valid {
		rec.FinishedAt, _ = time.Parse(time.RFC3339Nano, finishedStr.String)
	}
	return rec, nil
}

// GetRun retrieves a run by ID.
func (s *Store) GetRun(id string) (RunRecord, error) {
	rec, err := scanRun(s.db.QueryRow(`SELECT `+runColumns+` FROM training_runs WHERE run_id = ?`, id))
	if err != nil {
		return RunRecord{}, fmt.Errorf("get run %s: %w", id, err)
	}
	return rec, nil
}

// GetActive reads the run whose artifacts are currently live.
func (s *Store) GetActive() (RunRecord, error) {
	var runID string
	err := s.db.QueryRow(`SELECT run_id FROM active_run WHERE id = 1`).Scan(&runID)
	if err != nil {
		return RunRecord{}, fmt.Errorf("get active: %w", err)
	}
	return s.GetRun(runID)
}

// ListRuns returns the most recent runs, newest first.
func (s *Store) ListRuns(limit int) ([]RunRecord, error) {
	rows, err := s.db.Query(`SELECT `+runColumns+` FROM training_runs ORDER BY rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var records []RunRecord
	for rows.Next() {
		rec, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// #endregion get-run

// #region activate
// Activate points the active run at an earlier completed run.
func (s *Store) Activate(runID string) error {
	var status string
	err := s.db.QueryRow(`SELECT status FROM training_runs WHERE run_id = ?`, runID).Scan(&status)
	if err == sql.ErrNoRows {
		return fmt.Errorf("run %s not found", runID)
	}
	if err != nil {
		return fmt.Errorf("check run: %w", err)
	}
	if status != StatusCompleted {
		return fmt.Errorf("run %s is %s, only completed runs can be activated", runID, status)
	}

	_, err = s.db.Exec(
		`INSERT INTO active_run (id, run_id) VALUES (1, ?)
		 ON CONFLICT(id) DO UPDATE SET run_id = excluded.run_id`,
		runID,
	)
	if err != nil {
		return fmt.Errorf("activate: %w", err)
	}
	return nil
}

// #endregion activate

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
