package logging

import "time"

// #region stage-names
// Pipeline stages recorded in stage_log.
const (
	StageLoad      = "load"
	StageImitation = "imitation"
	StageTrain     = "train"
	StageCloning   = "cloning"
	StageKnowledge = "knowledge"
	StageEval      = "eval"
	StageExport    = "export"
)

// Stage outcomes.
const (
	OutcomeOK      = "ok"
	OutcomeWarn    = "warn"
	OutcomeAborted = "aborted"
	OutcomeFailed  = "failed"
)

// #endregion stage-names

// #region stage-entry
// StageEntry is a single row in the stage_log table.
type StageEntry struct {
	RunID      string
	Stage      string
	Outcome    string
	Counts     map[string]int // per-stage tallies, stored as JSON
	Detail     string
	DurationMs int64
	CreatedAt  time.Time
}

// #endregion stage-entry
