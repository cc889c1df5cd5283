// Package config holds the operator settings of a trainer installation and
// the training profiles that tune a run.
//
// Operator settings (this file) say where things live: the demonstration log
// directory, the export directory read by the game, the run registry
// database. They come from env vars (DEMOAI_*), demoai.config.yaml, or flags.
//
// Training profiles (profile.go) hold hyperparameters and key-space choices
// and are versioned alongside the logs they were tuned for.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/danielpatrickdp/demoai/go-trainer/internal/demolog"
)

// Viper keys. Each maps to an env var with the DEMOAI_ prefix
// (e.g. "log_dir" → DEMOAI_LOG_DIR) and to a field in demoai.config.yaml.
const (
	KeyLogDir     = "log_dir"
	KeyExportDir  = "export_dir"
	KeyDBPath     = "db_path"
	KeyLogPattern = "log_pattern"
	KeyProfile    = "profile"
	KeyOtel       = "otel"
	EnvPrefix     = "DEMOAI"
)

// Defaults match the paths the game writes and reads.
const (
	DefaultLogDir    = "Assets/DemoLogs"
	DefaultExportDir = "Assets/DemoAIs"
	DefaultDBPath    = "demoai.db"
)

// Config holds resolved operator-level configuration.
type Config struct {
	LogDir      string // demonstration CSV directory
	ExportDir   string // artifact directory read by the engine
	DBPath      string // run registry SQLite file
	LogPattern  string // glob matched inside LogDir
	ProfilePath string // optional training profile YAML
	Otel        bool
}

func init() {
	SetDefaults()
}

// SetDefaults registers the env prefix and key defaults with viper.
func SetDefaults() {
	viper.SetEnvPrefix(EnvPrefix)
	viper.AutomaticEnv()
	viper.SetDefault(KeyLogDir, DefaultLogDir)
	viper.SetDefault(KeyExportDir, DefaultExportDir)
	viper.SetDefault(KeyDBPath, DefaultDBPath)
	viper.SetDefault(KeyLogPattern, demolog.DefaultGlob)
}

// Load reads configuration from viper (env vars, config file, flags and
// defaults merged) and returns a validated Config.
func Load() (*Config, error) {
	cfg := &Config{
		LogDir:      viper.GetString(KeyLogDir),
		ExportDir:   viper.GetString(KeyExportDir),
		DBPath:      viper.GetString(KeyDBPath),
		LogPattern:  viper.GetString(KeyLogPattern),
		ProfilePath: viper.GetString(KeyProfile),
		Otel:        viper.GetBool(KeyOtel),
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.LogDir == "" {
		return fmt.Errorf("log_dir must be set")
	}
	if c.ExportDir == "" {
		return fmt.Errorf("export_dir must be set")
	}
	if c.DBPath == "" {
		return fmt.Errorf("db_path must be set")
	}
	if _, err := filepath.Match(c.LogPattern, "Plog1.csv"); err != nil {
		return fmt.Errorf("log_pattern %q: %w", c.LogPattern, err)
	}
	return nil
}

// LogConfig returns the log discovery settings.
func (c *Config) LogConfig() demolog.Config {
	return demolog.Config{Dir: c.LogDir, Glob: c.LogPattern}
}

// EnsureDBDir creates the directory holding the run registry.
func (c *Config) EnsureDBDir() error {
	dir := filepath.Dir(c.DBPath)
	if dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
