package logging

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// #region log-stage
// LogStage writes a stage entry to the stage_log table.
func LogStage(db *sql.DB, entry StageEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	var counts string
	if len(entry.Counts) > 0 {
		data, err := json.Marshal(entry.Counts)
		if err != nil {
			return fmt.Errorf("marshal counts: %w", err)
		}
		counts = string(data)
	}

	_, err := db.Exec(
		`INSERT INTO stage_log (run_id, stage, outcome, counts_json, detail, duration_ms, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		entry.RunID,
		entry.Stage,
		entry.Outcome,
		nullIfEmpty(counts),
		nullIfEmpty(entry.Detail),
		entry.DurationMs,
		entry.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("log stage: %w", err)
	}
	return nil
}

// #endregion log-stage

// #region list-stages
// ListStages returns the stage entries of a run in the order they were written.
func ListStages(db *sql.DB, runID string) ([]StageEntry, error) {
	rows, err := db.Query(
		`SELECT run_id, stage, outcome, counts_json, detail, duration_ms, created_at
		 FROM stage_log WHERE run_id = ? ORDER BY rowid`, runID,
	)
	if err != nil {
		return nil, fmt.Errorf("list stages: %w", err)
	}
	defer rows.Close()

	var out []StageEntry
	for rows.Next() {
		var e StageEntry
		var counts, detail sql.NullString
		var createdStr string
		if err := rows.Scan(&e.RunID, &e.Stage, &e.Outcome, &counts, &detail, &e.DurationMs, &createdStr); err != nil {
			return nil, fmt.Errorf("scan stage: %w", err)
		}
		if counts.Valid {
			if err := json.Unmarshal([]byte(counts.String), &e.Counts); err != nil {
				return nil, fmt.Errorf("unmarshal counts: %w", err)
			}
		}
		e.Detail = detail.String
		e.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
		out = append(out, e)
	}
	return out, rows.Err()
}

// #endregion list-stages

// #region helpers
func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// #endregion helpers
