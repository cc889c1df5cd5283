package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/demoai/go-trainer/internal/pipeline"
)

var replayFixture string

var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Retrain on a regression fixture and compare against its expected outputs",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, span := tracer.Start(cmd.Context(), "replay")
		defer span.End()

		if replayFixture == "" {
			return fmt.Errorf("--fixture is required")
		}
		f, err := pipeline.LoadFixture(replayFixture)
		if err != nil {
			return err
		}
		_, mismatches, err := pipeline.RunFixture(ctx, f)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Fixture: %s\n", f.Description)
		fmt.Fprintf(out, "Episodes: %d\n", len(f.Episodes))
		if len(mismatches) == 0 {
			fmt.Fprintln(out, "PASS")
			return nil
		}

		fmt.Fprintf(out, "\n%-32s  %-24s  %s\n", "Field", "Expected", "Got")
		fmt.Fprintf(out, "%-32s+-%-24s+-%s\n", "--------------------------------", "------------------------", "------------------------")
		for _, m := range mismatches {
			fmt.Fprintf(out, "%-32s  %-24s  %s\n", m.Field, m.Want, m.Got)
		}
		return fmt.Errorf("fixture %s: %d mismatches", replayFixture, len(mismatches))
	},
}

func init() {
	replayCmd.Flags().StringVar(&replayFixture, "fixture", "", "path to a fixture JSON file")
	rootCmd.AddCommand(replayCmd)
}
