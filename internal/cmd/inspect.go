package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/demoai/go-trainer/internal/logging"
	"github.com/danielpatrickdp/demoai/go-trainer/internal/pipeline"
	"github.com/danielpatrickdp/demoai/go-trainer/internal/state"
)

var (
	inspectLast int
	inspectRun  string
	inspectJSON bool
)

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "List training runs or show one run's stages and artifacts",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, span := tracer.Start(cmd.Context(), "inspect")
		defer span.End()

		cfg, _, err := loadSettings()
		if err != nil {
			return err
		}
		store, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer store.Close()

		out := cmd.OutOrStdout()
		if inspectRun != "" {
			return runDetailMode(out, store, inspectRun, inspectJSON)
		}
		return runListMode(out, store, inspectLast, inspectJSON)
	},
}

// #region list-mode

type listRow struct {
	RunID       string `json:"run_id"`
	ParentID    string `json:"parent_id,omitempty"`
	Status      string `json:"status"`
	Active      bool   `json:"active"`
	Transitions int    `json:"transitions"`
	QRows       int    `json:"q_rows"`
	StartedAt   string `json:"started_at"`
	Reason      string `json:"reason,omitempty"`
}

func runListMode(w io.Writer, store *state.Store, last int, jsonOut bool) error {
	runs, err := store.ListRuns(last)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(w, "no runs found")
		return nil
	}
	activeID := ""
	if active, err := store.GetActive(); err == nil {
		activeID = active.RunID
	}

	rows := make([]listRow, len(runs))
	for i, r := range runs {
		sum := parseSummary(r.SummaryJSON)
		rows[i] = listRow{
			RunID:       r.RunID,
			ParentID:    r.ParentID,
			Status:      r.Status,
			Active:      r.RunID == activeID,
			Transitions: sum.Transitions,
			QRows:       sum.QRows,
			StartedAt:   r.StartedAt.Format("2006-01-02T15:04:05Z"),
			Reason:      r.Reason,
		}
	}
	if jsonOut {
		return printJSON(w, rows)
	}

	fmt.Fprintf(w, "%-10s  %-10s  %11s  %7s  %-20s  %s\n", "Run", "Status", "Transitions", "Q rows", "Started", "Reason")
	fmt.Fprintf(w, "%-10s+-%-10s+-%11s+-%7s+-%-20s+-%s\n", "----------", "----------", "-----------", "-------", "--------------------", "--------")
	for _, r := range rows {
		id := shortID(r.RunID)
		if r.Active {
			id += " *"
		}
		fmt.Fprintf(w, "%-10s  %-10s  %11d  %7d  %-20s  %s\n", id, r.Status, r.Transitions, r.QRows, r.StartedAt, orDash(r.Reason))
	}
	return nil
}

// #endregion list-mode

// #region detail-mode

type detailOutput struct {
	RunID      string                 `json:"run_id"`
	ParentID   string                 `json:"parent_id,omitempty"`
	Status     string                 `json:"status"`
	LogDir     string                 `json:"log_dir"`
	ExportDir  string                 `json:"export_dir"`
	StartedAt  string                 `json:"started_at"`
	FinishedAt string                 `json:"finished_at,omitempty"`
	Reason     string                 `json:"reason,omitempty"`
	Summary    *pipeline.Summary      `json:"summary,omitempty"`
	Stages     []logging.StageEntry   `json:"stages"`
	Artifacts  []state.ArtifactRecord `json:"artifacts"`
}

func runDetailMode(w io.Writer, store *state.Store, runID string, jsonOut bool) error {
	rec, err := store.GetRun(runID)
	if err != nil {
		return err
	}
	stages, err := logging.ListStages(store.DB(), runID)
	if err != nil {
		return err
	}
	arts, err := store.ListArtifacts(runID)
	if err != nil {
		return err
	}

	out := detailOutput{
		RunID:     rec.RunID,
		ParentID:  rec.ParentID,
		Status:    rec.Status,
		LogDir:    rec.LogDir,
		ExportDir: rec.ExportDir,
		StartedAt: rec.StartedAt.Format("2006-01-02T15:04:05Z"),
		Reason:    rec.Reason,
		Stages:    stages,
		Artifacts: arts,
	}
	if !rec.FinishedAt.IsZero() {
		out.FinishedAt = rec.FinishedAt.Format("2006-01-02T15:04:05Z")
	}
	if rec.SummaryJSON != "" {
		sum := parseSummary(rec.SummaryJSON)
		out.Summary = &sum
	}
	if jsonOut {
		return printJSON(w, out)
	}

	fmt.Fprintf(w, "Run:        %s\n", out.RunID)
	fmt.Fprintf(w, "Parent:     %s\n", orDash(out.ParentID))
	fmt.Fprintf(w, "Status:     %s\n", out.Status)
	fmt.Fprintf(w, "Logs:       %s\n", out.LogDir)
	fmt.Fprintf(w, "Export:     %s\n", out.ExportDir)
	fmt.Fprintf(w, "Started:    %s\n", out.StartedAt)
	fmt.Fprintf(w, "Finished:   %s\n", orDash(out.FinishedAt))
	fmt.Fprintf(w, "Reason:     %s\n", orDash(out.Reason))

	fmt.Fprintf(w, "\nStages:\n")
	for _, s := range stages {
		fmt.Fprintf(w, "  %-10s %-8s %6dms  %s\n", s.Stage, s.Outcome, s.DurationMs, formatCounts(s.Counts))
	}
	if len(arts) > 0 {
		fmt.Fprintf(w, "\nArtifacts:\n")
		for _, a := range arts {
			fmt.Fprintf(w, "  %-28s %8d bytes  %6d entries  %s\n", a.Name, a.Bytes, a.Entries, shortID(a.Checksum))
		}
	}
	return nil
}

// #endregion detail-mode

func parseSummary(s string) pipeline.Summary {
	var sum pipeline.Summary
	if s == "" {
		return sum
	}
	_ = json.Unmarshal([]byte(s), &sum)
	return sum
}

func formatCounts(c map[string]int) string {
	if len(c) == 0 {
		return ""
	}
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := ""
	for i, k := range keys {
		if i > 0 {
			out += " "
		}
		out += fmt.Sprintf("%s=%d", k, c[k])
	}
	return out
}

func init() {
	inspectCmd.Flags().IntVar(&inspectLast, "last", 20, "show N most recent runs")
	inspectCmd.Flags().StringVar(&inspectRun, "run", "", "show a single run in detail")
	inspectCmd.Flags().BoolVar(&inspectJSON, "json", false, "output as JSON instead of table")
	rootCmd.AddCommand(inspectCmd)
}
