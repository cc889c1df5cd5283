package pipeline

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/rs/zerolog/log"

	"github.com/danielpatrickdp/demoai/go-trainer/internal/demolog"
	"github.com/danielpatrickdp/demoai/go-trainer/internal/trajectory"
)

// #region load-report
// FileFailure records one skipped log file.
type FileFailure struct {
	File   string `json:"file"`
	Kind   string `json:"kind"` // "schema" | "parse"
	Reason string `json:"reason"`
}

// LoadReport summarizes the load stage.
type LoadReport struct {
	Files       int           `json:"files"`
	Loaded      int           `json:"loaded"`
	Skipped     int           `json:"skipped"`
	Rows        int           `json:"rows"`
	DroppedRows int           `json:"dropped_rows"`
	Episodes    int           `json:"episodes"`
	Failures    []FileFailure `json:"failures,omitempty"`
}

// #endregion load-report

// #region load
// LoadEpisodes reads every log file and returns the episodes of the files
// that passed schema and parse checks. It fails with ErrEmptyDataset when
// nothing usable remains.
func LoadEpisodes(cfg demolog.Config) ([][]trajectory.Step, LoadReport, error) {
	var report LoadReport
	results, err := demolog.LoadDir(cfg)
	if err != nil {
		return nil, report, fmt.Errorf("%w: %v", ErrEmptyDataset, err)
	}
	report.Files = len(results)

	var episodes [][]trajectory.Step
	for _, res := range results {
		if res.Err != nil {
			report.Skipped++
			kind := "parse"
			var schemaErr *demolog.SchemaError
			if errors.As(res.Err, &schemaErr) {
				kind = "schema"
			}
			report.Failures = append(report.Failures, FileFailure{
				File:   filepath.Base(res.Path),
				Kind:   kind,
				Reason: res.Err.Error(),
			})
			continue
		}
		report.Loaded++
		report.Rows += res.Rows
		report.DroppedRows += res.DroppedRows
		for _, ep := range res.Episodes {
			if len(ep) > 0 {
				episodes = append(episodes, ep)
			}
		}
	}
	report.Episodes = len(episodes)

	if len(episodes) == 0 {
		return nil, report, fmt.Errorf("%w in %s (%d files, %d skipped)", ErrEmptyDataset, cfg.Dir, report.Files, report.Skipped)
	}
	return episodes, report, nil
}

// BuildExperience turns episodes into the run's experience store and warns
// once when invalid actions were seen.
func BuildExperience(episodes [][]trajectory.Step, cfg trajectory.TerminalConfig) (*trajectory.Experience, error) {
	exp := trajectory.NewExperience(cfg)
	for _, ep := range episodes {
		exp.AddEpisode(ep)
	}
	if exp.Len() == 0 {
		return nil, ErrEmptyDataset
	}
	if exp.InvalidActions > 0 {
		log.Warn().Int("count", exp.InvalidActions).Msg("Rows with an action outside 1..4 excluded from aggregation")
	}
	return exp, nil
}

// #endregion load
