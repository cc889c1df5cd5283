package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"

	"github.com/danielpatrickdp/demoai/go-trainer/internal/artifact"
	"github.com/danielpatrickdp/demoai/go-trainer/internal/logging"
	demootel "github.com/danielpatrickdp/demoai/go-trainer/internal/otel"
	"github.com/danielpatrickdp/demoai/go-trainer/internal/qlearn"
	"github.com/danielpatrickdp/demoai/go-trainer/internal/state"
	"github.com/danielpatrickdp/demoai/go-trainer/internal/trajectory"
)

// ErrEvalFailed is returned when validation rejects the bundle and
// FailOnEval is set. Nothing is exported in that case.
var ErrEvalFailed = errors.New("artifact validation failed")

// #region summary

// Summary is the outcome of one Runner.Run, stored as the run's summary JSON.
type Summary struct {
	RunID       string               `json:"run_id,omitempty"`
	Status      string               `json:"status"`
	Load        LoadReport           `json:"load"`
	Transitions int                  `json:"transitions"`
	Terminal    int                  `json:"terminal"`
	Invalid     int                  `json:"invalid_actions"`
	QRows       int                  `json:"q_rows"`
	ILStates    int                  `json:"il_states"`
	BCStates    int                  `json:"bc_states"`
	GoalKnown   bool                 `json:"goal_known"`
	DangerZones int                  `json:"danger_zones"`
	Epochs      []qlearn.EpochMetric `json:"epochs,omitempty"`
	EvalPassed  bool                 `json:"eval_passed"`
	EvalReason  string               `json:"eval_reason,omitempty"`
	Files       []artifact.File      `json:"files,omitempty"`
}

// #endregion summary

// #region runner

// Runner executes a full training run and records it in the run registry.
// store may be nil, in which case nothing is persisted besides artifacts.
type Runner struct {
	cfg   Config
	store *state.Store
	now   func() time.Time
}

// NewRunner validates cfg and returns a runner.
func NewRunner(cfg Config, store *state.Store) (*Runner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Runner{cfg: cfg, store: store, now: time.Now}, nil
}

// Run loads the logs, trains every model and exports the artifacts.
// An empty dataset aborts the run before the export directory is touched.
func (r *Runner) Run(ctx context.Context) (*Summary, error) {
	ctx, span := tracer.Start(ctx, "pipeline.run")
	defer span.End()

	sum := &Summary{Status: state.StatusRunning}
	if r.store != nil {
		rec, err := r.store.BeginRun(r.cfg.Logs.Dir, r.cfg.ExportDir, recordJSON("config", r.cfg))
		if err != nil {
			return nil, fmt.Errorf("begin run: %w", err)
		}
		sum.RunID = rec.RunID
		span.SetAttributes(attribute.String("run_id", rec.RunID))
	}
	observe := r.observer(sum.RunID)

	// 1. Load
	start := time.Now()
	episodes, report, err := LoadEpisodes(r.cfg.Logs)
	sum.Load = report
	var exp *trajectory.Experience
	if err == nil {
		exp, err = BuildExperience(episodes, r.cfg.Terminal)
	}
	loadCounts := map[string]int{"files": report.Files, "skipped": report.Skipped, "episodes": report.Episodes}
	if err != nil {
		observe(StageReport{
			Stage:    logging.StageLoad,
			Outcome:  logging.OutcomeAborted,
			Counts:   loadCounts,
			Detail:   err.Error(),
			Duration: time.Since(start),
		})
		demootel.RecordLoad(ctx, 0, report.Skipped, r.cfg.Logs.Dir)
		return sum, r.finish(sum, state.StatusAborted, err)
	}
	sum.Transitions = exp.Len()
	sum.Terminal = exp.TerminalCount()
	sum.Invalid = exp.InvalidActions
	loadCounts["transitions"] = sum.Transitions
	loadCounts["invalid_actions"] = sum.Invalid
	outcome := logging.OutcomeOK
	if report.Skipped > 0 || sum.Invalid > 0 {
		outcome = logging.OutcomeWarn
	}
	observe(StageReport{Stage: logging.StageLoad, Outcome: outcome, Counts: loadCounts, Duration: time.Since(start)})
	demootel.RecordLoad(ctx, sum.Transitions, report.Skipped, r.cfg.Logs.Dir)

	// 2..5. Train and validate
	res, err := Train(ctx, exp, r.cfg, qlearn.NewRand(r.cfg.QLearn.Seed), r.now(), observe)
	if err != nil {
		return sum, r.finish(sum, state.StatusFailed, err)
	}
	sum.QRows = len(res.QLearn.Table)
	sum.ILStates = res.ILStates
	sum.BCStates = res.BCStates
	sum.GoalKnown = res.Knowledge.GoalKnown()
	sum.DangerZones = len(res.Knowledge.Danger)
	sum.Epochs = res.QLearn.Epochs
	sum.EvalPassed = res.Eval.Passed
	sum.EvalReason = res.Eval.Reason
	if !res.Eval.Passed {
		log.Warn().Str("reason", res.Eval.Reason).Msg("Artifact validation failed")
		if r.cfg.FailOnEval {
			return sum, r.finish(sum, state.StatusFailed, fmt.Errorf("%w: %s", ErrEvalFailed, res.Eval.Reason))
		}
	}

	// 6. Export
	start = time.Now()
	files, err := artifact.Export(r.cfg.ExportDir, res.Bundle)
	sum.Files = files
	if err != nil {
		observe(StageReport{Stage: logging.StageExport, Outcome: logging.OutcomeFailed, Detail: err.Error(), Duration: time.Since(start)})
		return sum, r.finish(sum, state.StatusFailed, err)
	}
	observe(StageReport{Stage: logging.StageExport, Outcome: logging.OutcomeOK, Counts: map[string]int{"files": len(files)}, Detail: r.cfg.ExportDir, Duration: time.Since(start)})

	if r.store != nil {
		recs := make([]state.ArtifactRecord, len(files))
		for i, f := range files {
			recs[i] = state.ArtifactRecord{Name: f.Name, Path: f.Path, Bytes: f.Bytes, Checksum: f.Checksum, Entries: f.Entries}
		}
		if err := r.store.RecordArtifacts(sum.RunID, recs); err != nil {
			return sum, r.finish(sum, state.StatusFailed, err)
		}
	}
	return sum, r.finish(sum, state.StatusCompleted, nil)
}

// finish closes the run record. cause is returned unchanged so callers can
// match it with errors.Is.
func (r *Runner) finish(sum *Summary, status string, cause error) error {
	sum.Status = status
	ev := log.Info()
	if cause != nil {
		ev = log.Error().Err(cause)
	}
	ev.Str("run_id", sum.RunID).Str("status", status).Int("transitions", sum.Transitions).Int("files", len(sum.Files)).Msg("Training run finished")

	if r.store == nil {
		return cause
	}
	reason := ""
	if cause != nil {
		reason = cause.Error()
	}
	if err := r.store.FinishRun(sum.RunID, status, reason, recordJSON("summary", sum)); err != nil {
		if cause != nil {
			return fmt.Errorf("%w (finish run: %v)", cause, err)
		}
		return fmt.Errorf("finish run: %w", err)
	}
	return cause
}

// recordJSON encodes v for the run registry. An unencodable value is logged
// and stored as an empty object so the run is still recorded.
func recordJSON(what string, v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("record", what).Msg("Encode run record failed")
		return "{}"
	}
	return string(data)
}

// observer logs each stage and appends it to the stage log when a store is set.
func (r *Runner) observer(runID string) Observer {
	return func(rep StageReport) {
		ev := log.Info()
		switch rep.Outcome {
		case logging.OutcomeWarn:
			ev = log.Warn()
		case logging.OutcomeAborted, logging.OutcomeFailed:
			ev = log.Error()
		}
		fields := ev.Str("stage", rep.Stage).Str("outcome", rep.Outcome).Dur("took", rep.Duration)
		for k, v := range rep.Counts {
			fields = fields.Int(k, v)
		}
		if rep.Detail != "" {
			fields = fields.Str("detail", rep.Detail)
		}
		fields.Msg("Stage complete")

		if r.store == nil {
			return
		}
		err := logging.LogStage(r.store.DB(), logging.StageEntry{
			RunID:      runID,
			Stage:      rep.Stage,
			Outcome:    rep.Outcome,
			Counts:     rep.Counts,
			Detail:     rep.Detail,
			DurationMs: rep.Duration.Milliseconds(),
		})
		if err != nil {
			log.Warn().Err(err).Str("stage", rep.Stage).Msg("Failed to record stage")
		}
	}
}

// #endregion runner
