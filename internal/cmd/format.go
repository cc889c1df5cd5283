package cmd

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/danielpatrickdp/demoai/go-trainer/internal/config"
	"github.com/danielpatrickdp/demoai/go-trainer/internal/state"
)

// #region settings
// loadSettings resolves the operator config and the training profile.
func loadSettings() (*config.Config, config.Profile, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, config.Profile{}, err
	}
	profile, err := config.LoadProfile(cfg.ProfilePath)
	if err != nil {
		return nil, config.Profile{}, err
	}
	return cfg, profile, nil
}

// openStore opens the run registry named by cfg.
func openStore(cfg *config.Config) (*state.Store, error) {
	if err := cfg.EnsureDBDir(); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}
	store, err := state.NewStore(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	return store, nil
}

// #endregion settings

// #region output
func printJSON(w io.Writer, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}
	fmt.Fprintln(w, string(data))
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// #endregion output
