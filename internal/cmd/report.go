package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/demoai/go-trainer/internal/artifact"
	"github.com/danielpatrickdp/demoai/go-trainer/internal/report"
	"github.com/danielpatrickdp/demoai/go-trainer/internal/state"
)

var (
	reportRun     string
	reportOut     string
	reportMap     bool
	reportNoColor bool
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Render the exported artifacts as an HTML report or a terminal map",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, span := tracer.Start(cmd.Context(), "report")
		defer span.End()

		cfg, _, err := loadSettings()
		if err != nil {
			return err
		}
		b, err := artifact.Load(cfg.ExportDir)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if reportMap {
			g, err := report.NewGrid(b)
			if err != nil {
				return err
			}
			return g.Render(out, !reportNoColor)
		}

		d := report.Data{Bundle: b}
		store, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer store.Close()
		if rec, err := reportRecord(store, reportRun); err != nil {
			if reportRun != "" {
				return err
			}
			log.Warn().Err(err).Msg("No run summary, the update curve will be empty")
		} else {
			sum := parseSummary(rec.SummaryJSON)
			d.RunID = rec.RunID
			d.Epochs = sum.Epochs
		}

		path := reportOut
		if path == "" {
			path = filepath.Join(cfg.ExportDir, report.DefaultFile)
		}
		if err := report.WriteHTML(path, d); err != nil {
			return err
		}
		fmt.Fprintf(out, "wrote %s\n", path)
		return nil
	},
}

// reportRecord picks the named run, or the active one.
func reportRecord(store *state.Store, runID string) (state.RunRecord, error) {
	if runID != "" {
		return store.GetRun(runID)
	}
	return store.GetActive()
}

func init() {
	reportCmd.Flags().StringVar(&reportRun, "run", "", "run whose epoch metrics are plotted (default: active run)")
	reportCmd.Flags().StringVar(&reportOut, "out", "", "HTML file to write (default: <export-dir>/"+report.DefaultFile+")")
	reportCmd.Flags().BoolVar(&reportMap, "map", false, "print the learned policy as a grid instead")
	reportCmd.Flags().BoolVar(&reportNoColor, "no-color", false, "disable ANSI colors in --map output")
	rootCmd.AddCommand(reportCmd)
}
