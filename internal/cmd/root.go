package cmd

import (
	"context"
	"fmt"
	"os"
	"runtime/debug"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/danielpatrickdp/demoai/go-trainer/internal/config"
	"github.com/danielpatrickdp/demoai/go-trainer/internal/otel"
)

// resolvedVersion returns Version unless it is "dev" and Go build info
// contains a real module version.
func resolvedVersion() string {
	if Version != "dev" {
		return Version
	}
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
		return info.Main.Version
	}
	return Version
}

// tracer is the package-level tracer for all CLI commands
var tracer = otel.Tracer("github.com/danielpatrickdp/demoai/go-trainer/internal/cmd")

var (
	otelShutdown func(context.Context) error

	// Version info injected via ldflags at build time
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"

	// Global flags
	cfgFile   string
	verbose   bool
	logLevel  string
	logFormat string
	otelFlag  bool
)

var rootCmd = &cobra.Command{
	Use:   "demoai",
	Short: "Train grid-game agents from recorded demonstrations",
	Long: `demoai turns recorded player episodes into the lookup tables the game
engine plays from:

- a tabular Q-table trained offline over every logged transition
- a majority-vote imitation policy
- a behavior-cloning action distribution per surroundings
- the estimated goal, danger zones and decision weights`,
	SilenceUsage:  true,
	SilenceErrors: true,

	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		setupLogging()

		otelEnabled := otelFlag || viper.GetBool(config.KeyOtel)
		shutdown, err := otel.Setup("demoai-trainer", resolvedVersion(), otelEnabled)
		if err != nil {
			return fmt.Errorf("initializing OpenTelemetry: %w", err)
		}
		otelShutdown = shutdown
		return nil
	},
}

func setupLogging() {
	level, err := zerolog.ParseLevel(logLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	// stdout stays clean for tables and JSON
	if logFormat == "json" {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	} else {
		log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
			With().
			Timestamp().
			Logger()
	}

	if verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "operator config file (default: ./demoai.config.yaml)")
	pf.BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	pf.StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	pf.StringVar(&logFormat, "log-format", "console", "log format (console, json)")
	pf.BoolVar(&otelFlag, "otel", false, "enable OpenTelemetry (traces and metrics to stderr)")
	pf.String("log-dir", config.DefaultLogDir, "demonstration log directory")
	pf.String("export-dir", config.DefaultExportDir, "artifact directory read by the game")
	pf.String("db", config.DefaultDBPath, "run registry database")
	pf.String("log-pattern", "Plog*.csv", "log file glob inside the log directory")
	pf.String("profile", "", "training profile YAML")

	_ = viper.BindPFlag(config.KeyOtel, pf.Lookup("otel"))
	_ = viper.BindPFlag(config.KeyLogDir, pf.Lookup("log-dir"))
	_ = viper.BindPFlag(config.KeyExportDir, pf.Lookup("export-dir"))
	_ = viper.BindPFlag(config.KeyDBPath, pf.Lookup("db"))
	_ = viper.BindPFlag(config.KeyLogPattern, pf.Lookup("log-pattern"))
	_ = viper.BindPFlag(config.KeyProfile, pf.Lookup("profile"))
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName("demoai.config")
		viper.SetConfigType("yaml")
	}
	config.SetDefaults()

	// the file may not exist
	_ = viper.ReadInConfig()
}

// Execute runs the root command and flushes OTel on exit
func Execute() error {
	err := rootCmd.Execute()
	if otelShutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = otelShutdown(ctx)
	}
	return err
}
