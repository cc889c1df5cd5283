package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/demoai/go-trainer/internal/pipeline"
)

var (
	fixtureOut         string
	fixtureDescription string
)

var fixtureExportCmd = &cobra.Command{
	Use:   "fixture-export",
	Short: "Capture the current demonstration logs as a regression fixture",
	RunE: func(cmd *cobra.Command, args []string) error {
		if fixtureOut == "" {
			return fmt.Errorf("--out is required")
		}
		cfg, profile, err := loadSettings()
		if err != nil {
			return err
		}

		episodes, rep, err := pipeline.LoadEpisodes(cfg.LogConfig())
		if err != nil {
			return err
		}
		if rep.Skipped > 0 {
			log.Warn().Int("skipped", rep.Skipped).Msg("Some log files were skipped")
		}

		fc := profile.FixtureConfig()
		if fc.Seed == 0 {
			// a fixture must replay deterministically
			fc.Seed = 1
		}
		desc := fixtureDescription
		if desc == "" {
			desc = fmt.Sprintf("exported from %s", cfg.LogDir)
		}
		f, err := pipeline.NewFixture(desc, fc, episodes)
		if err != nil {
			return err
		}

		data, err := json.MarshalIndent(f, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal fixture: %w", err)
		}
		if dir := filepath.Dir(fixtureOut); dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("create fixture dir: %w", err)
			}
		}
		if err := os.WriteFile(fixtureOut, append(data, '\n'), 0o644); err != nil {
			return fmt.Errorf("write fixture: %w", err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d episodes, %d transitions)\n",
			fixtureOut, len(f.Episodes), f.Expected.Transitions)
		return nil
	},
}

func init() {
	fixtureExportCmd.Flags().StringVar(&fixtureOut, "out", "", "fixture file to write")
	fixtureExportCmd.Flags().StringVar(&fixtureDescription, "description", "", "fixture description")
	rootCmd.AddCommand(fixtureExportCmd)
}
