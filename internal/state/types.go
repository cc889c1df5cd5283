package state

import "time"

// #region run-status
// Run statuses recorded in training_runs.
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusAborted   = "aborted"
	StatusFailed    = "failed"
)

// #endregion run-status

// #region run-record
// RunRecord represents one training run. ParentID is the run that was active
// when this one started.
type RunRecord struct {
	RunID       string
	ParentID    string
	Status      string
	LogDir      string
	ExportDir   string
	ConfigJSON  string
	SummaryJSON string
	Reason      string
	StartedAt   time.Time
	FinishedAt  time.Time
}

// Finished reports whether the run has left the running state.
func (r RunRecord) Finished() bool {
	return r.Status != StatusRunning
}

// #endregion run-record

// #region artifact-record
// ArtifactRecord is one exported file of a run.
type ArtifactRecord struct {
	RunID     string
	Name      string
	Path      string
	Bytes     int64
	Checksum  string
	Entries   int
	CreatedAt time.Time
}

// #endregion artifact-record
