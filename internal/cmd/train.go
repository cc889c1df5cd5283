package cmd

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/demoai/go-trainer/internal/artifact"
	"github.com/danielpatrickdp/demoai/go-trainer/internal/pipeline"
	"github.com/danielpatrickdp/demoai/go-trainer/internal/report"
)

var (
	trainJSON   bool
	trainSeed   int64
	trainEpochs int
	trainReport bool
	trainNoDB   bool
)

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Train every artifact from the demonstration logs and export them",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, span := tracer.Start(cmd.Context(), "train")
		defer span.End()

		cfg, profile, err := loadSettings()
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("seed") {
			profile.QLearn.Seed = trainSeed
		}
		if cmd.Flags().Changed("epochs") {
			profile.QLearn.Epochs = trainEpochs
		}
		pcfg := profile.PipelineConfig(cfg)

		var runner *pipeline.Runner
		if trainNoDB {
			runner, err = pipeline.NewRunner(pcfg, nil)
		} else {
			store, serr := openStore(cfg)
			if serr != nil {
				return serr
			}
			defer store.Close()
			runner, err = pipeline.NewRunner(pcfg, store)
		}
		if err != nil {
			return err
		}

		sum, runErr := runner.Run(ctx)
		out := cmd.OutOrStdout()
		if sum != nil {
			if trainJSON {
				if err := printJSON(out, sum); err != nil {
					return err
				}
			} else {
				printSummary(out, sum)
			}
		}
		if runErr != nil {
			return runErr
		}

		if trainReport {
			b, err := artifact.Load(pcfg.ExportDir)
			if err != nil {
				return err
			}
			path := filepath.Join(pcfg.ExportDir, report.DefaultFile)
			if err := report.WriteHTML(path, report.Data{RunID: sum.RunID, Epochs: sum.Epochs, Bundle: b}); err != nil {
				return err
			}
			log.Info().Str("path", path).Msg("Training report written")
		}
		return nil
	},
}

func printSummary(w io.Writer, s *pipeline.Summary) {
	fmt.Fprintf(w, "Run:          %s\n", orDash(s.RunID))
	fmt.Fprintf(w, "Status:       %s\n", s.Status)
	fmt.Fprintf(w, "Log files:    %d loaded, %d skipped\n", s.Load.Loaded, s.Load.Skipped)
	for _, f := range s.Load.Failures {
		fmt.Fprintf(w, "  skipped %-20s %-6s %s\n", f.File, f.Kind, f.Reason)
	}
	fmt.Fprintf(w, "Transitions:  %d (%d terminal, %d invalid actions)\n", s.Transitions, s.Terminal, s.Invalid)
	if s.Transitions == 0 {
		return
	}
	fmt.Fprintf(w, "Q rows:       %d\n", s.QRows)
	fmt.Fprintf(w, "IL states:    %d\n", s.ILStates)
	fmt.Fprintf(w, "BC states:    %d\n", s.BCStates)
	fmt.Fprintf(w, "Goal known:   %v\n", s.GoalKnown)
	fmt.Fprintf(w, "Danger zones: %d\n", s.DangerZones)
	fmt.Fprintf(w, "Eval:         %v (%s)\n", s.EvalPassed, s.EvalReason)
	if n := len(s.Epochs); n > 0 {
		last := s.Epochs[n-1]
		fmt.Fprintf(w, "Last epoch:   %d mean |dQ| %.4f max |dQ| %.4f\n", last.Epoch, last.MeanDelta, last.MaxDelta)
	}
	if len(s.Files) > 0 {
		fmt.Fprintf(w, "\n%-28s  %8s  %7s  %s\n", "Artifact", "Bytes", "Entries", "SHA-256")
		fmt.Fprintf(w, "%-28s+-%8s+-%7s+-%s\n", "----------------------------", "--------", "-------", "------------")
		for _, f := range s.Files {
			fmt.Fprintf(w, "%-28s  %8d  %7d  %s\n", f.Name, f.Bytes, f.Entries, shortID(f.Checksum))
		}
	}
}

func init() {
	trainCmd.Flags().BoolVar(&trainJSON, "json", false, "print the run summary as JSON")
	trainCmd.Flags().Int64Var(&trainSeed, "seed", 0, "shuffle seed (overrides the profile; 0 seeds from the clock)")
	trainCmd.Flags().IntVar(&trainEpochs, "epochs", 0, "training epochs (overrides the profile)")
	trainCmd.Flags().BoolVar(&trainReport, "report", false, "write "+report.DefaultFile+" into the export directory")
	trainCmd.Flags().BoolVar(&trainNoDB, "no-db", false, "do not record the run in the registry")
	rootCmd.AddCommand(trainCmd)
}
