package cmd

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var activateCmd = &cobra.Command{
	Use:   "activate <run-id>",
	Short: "Mark a completed run as the active one",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadSettings()
		if err != nil {
			return err
		}
		store, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer store.Close()

		if err := store.Activate(args[0]); err != nil {
			return fmt.Errorf("activate %s: %w", args[0], err)
		}
		log.Info().Str("run", args[0]).Msg("Run activated")
		fmt.Fprintf(cmd.OutOrStdout(), "active run: %s\n", args[0])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(activateCmd)
}
