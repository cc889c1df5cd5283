package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/demoai/go-trainer/internal/query"
	"github.com/danielpatrickdp/demoai/go-trainer/internal/trajectory"
)

var (
	queryAddr    string
	queryState   string
	querySummary bool
	queryJSON    bool
)

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Ask a running artifact service about one state or the whole bundle",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, span := tracer.Start(cmd.Context(), "query")
		defer span.End()

		if querySummary == (queryState != "") {
			return fmt.Errorf("exactly one of --state or --summary is required")
		}
		client, err := query.NewClient(queryAddr)
		if err != nil {
			return err
		}
		defer client.Close()

		out := cmd.OutOrStdout()
		if querySummary {
			sum, err := client.Summary(ctx)
			if err != nil {
				return err
			}
			if queryJSON {
				return printJSON(out, sum)
			}
			printQuerySummary(out, sum)
			return nil
		}

		key, err := parseStateFlag(queryState)
		if err != nil {
			return err
		}
		res, err := client.Lookup(ctx, key)
		if err != nil {
			return err
		}
		if queryJSON {
			return printJSON(out, res)
		}
		printLookup(out, res)
		return nil
	},
}

// parseStateFlag reads "x,y,env,up,down,right,left".
func parseStateFlag(s string) (trajectory.FullKey, error) {
	parts := strings.Split(s, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	key, err := trajectory.ParseFullKey("(" + strings.Join(parts, ", ") + ")")
	if err != nil {
		return trajectory.FullKey{}, fmt.Errorf("--state: %w", err)
	}
	return key, nil
}

func printLookup(w io.Writer, r query.LookupResult) {
	fmt.Fprintf(w, "State:   %s\n", r.State)
	if r.Q != nil {
		fmt.Fprintf(w, "Q:       up %.3f  right %.3f  down %.3f  left %.3f\n", r.Q[0], r.Q[1], r.Q[2], r.Q[3])
		fmt.Fprintf(w, "Best:    %s\n", r.BestAction)
	} else {
		fmt.Fprintf(w, "Q:       -\n")
	}
	if r.ILAction != trajectory.ActionNone {
		fmt.Fprintf(w, "IL:      %s via %s\n", r.ILAction, r.ILKey)
	} else {
		fmt.Fprintf(w, "IL:      -\n")
	}
	if r.BC != nil {
		fmt.Fprintf(w, "BC:      up %.3f  right %.3f  down %.3f  left %.3f  (%d samples) via %s\n",
			r.BC.Up, r.BC.Right, r.BC.Down, r.BC.Left, r.BC.Samples, r.BCKey)
	} else {
		fmt.Fprintf(w, "BC:      -\n")
	}
}

func printQuerySummary(w io.Writer, s query.SummaryResult) {
	fmt.Fprintf(w, "Version:      %s\n", orDash(s.Version))
	fmt.Fprintf(w, "Generated:    %s\n", orDash(s.GeneratedAt))
	fmt.Fprintf(w, "Q rows:       %d\n", s.QRows)
	fmt.Fprintf(w, "IL states:    %d\n", s.ILStates)
	fmt.Fprintf(w, "BC states:    %d (%s)\n", s.BCStates, orDash(s.BCFormat))
	fmt.Fprintf(w, "Danger zones: %d\n", s.DangerZones)
	if s.EstimatedGoal.Known {
		fmt.Fprintf(w, "Goal:         (%d, %d)\n", s.EstimatedGoal.X, s.EstimatedGoal.Y)
	} else {
		fmt.Fprintf(w, "Goal:         unknown\n")
	}
	fmt.Fprintf(w, "Weights:      hole_fear %.2f  trap_interest %.2f  goal_bias %.2f  approach %.2f\n",
		s.Weights.HoleFearIndex, s.Weights.TrapInterest, s.Weights.GoalBias, s.Weights.GoalApproachRate)
}

func init() {
	queryCmd.Flags().StringVar(&queryAddr, "addr", DefaultAddr, "artifact service address")
	queryCmd.Flags().StringVar(&queryState, "state", "", "observation as x,y,env,up,down,right,left")
	queryCmd.Flags().BoolVar(&querySummary, "summary", false, "print the served bundle overview")
	queryCmd.Flags().BoolVar(&queryJSON, "json", false, "output as JSON")
	rootCmd.AddCommand(queryCmd)
}
