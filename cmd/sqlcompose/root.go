package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/pthm/sqlcompose/internal/cli"
	"github.com/pthm/sqlcompose/internal/logger"
)

var (
	// Global state set during PersistentPreRunE
	cfg        *cli.Config
	configPath string
	log        = logger.Discard()

	// Persistent flags
	cfgFile   string
	modelsArg string
	verbose   int
	quiet     bool
	logFormat string
)

var rootCmd = &cobra.Command{
	Use:   "sqlcompose",
	Short: "Compose and run dynamic SELECT statements",
	Long: `sqlcompose - dynamic SQL SELECT composer

sqlcompose merges a model's base clauses with the fragments contributed by
search parameters, paginates the result and materializes rows into nested
JSON documents.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Skip config loading for help/completion/version commands
		if cmd.Name() == "help" || cmd.Name() == "completion" || cmd.Name() == "version" {
			return nil
		}

		var err error
		cfg, configPath, err = cli.LoadConfig(cfgFile)
		if err != nil {
			return cli.ConfigError("loading configuration", err)
		}

		log, err = newLogger(cfg.Log, verbose, quiet, logFormat)
		if err != nil {
			return cli.ConfigError("configuring logger", err)
		}
		log.Debug("configuration loaded", slog.String("path", configPath))
		return nil
	},
	SilenceUsage:  true, // Don't show usage on errors
	SilenceErrors: true, // We handle errors ourselves
}

// Command group IDs
const (
	groupQuery   = "query"
	groupUtility = "utility"
)

func init() {
	// Persistent flags (available to all commands)
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default: auto-discover sqlcompose.yaml)")
	pf.StringVar(&modelsArg, "models", "", "path to the model manifest")
	pf.CountVarP(&verbose, "verbose", "v", "increase verbosity (can be repeated)")
	pf.BoolVarP(&quiet, "quiet", "q", false, "only log errors")
	pf.StringVar(&logFormat, "log-format", "", "log format: text or json")

	rootCmd.AddGroup(
		&cobra.Group{ID: groupQuery, Title: "Query:"},
		&cobra.Group{ID: groupUtility, Title: "Utility:"},
	)

	renderCmd.GroupID = groupQuery
	searchCmd.GroupID = groupQuery
	modelsCmd.GroupID = groupQuery
	rootCmd.AddCommand(renderCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(modelsCmd)

	configCmd.GroupID = groupUtility
	doctorCmd.GroupID = groupUtility
	versionCmd.GroupID = groupUtility
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(doctorCmd)
	rootCmd.AddCommand(versionCmd)
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		cli.ExitWithError(err)
	}
}

// newLogger builds the CLI logger. -v raises the configured level to info,
// -vv to debug; -q lowers it to errors only.
func newLogger(lc cli.LogConfig, verbosity int, quiet bool, format string) (*slog.Logger, error) {
	level, err := logger.ParseLevel(resolveString(lc.Level, "warn"))
	if err != nil {
		return nil, err
	}
	switch {
	case quiet:
		level = slog.LevelError
	case verbosity >= 2:
		level = min(level, slog.LevelDebug)
	case verbosity == 1:
		level = min(level, slog.LevelInfo)
	}

	f, err := logger.ParseFormat(resolveString(format, lc.Format))
	if err != nil {
		return nil, err
	}

	return logger.New(logger.Config{Level: level, Format: f, Writer: os.Stderr}), nil
}

// resolveString returns the first non-empty string from the provided values.
// Used to implement precedence: flag > config > default.
func resolveString(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// resolveBool returns true if any of the provided values is true.
// Used for boolean flags where any true value should win.
func resolveBool(values ...bool) bool {
	for _, v := range values {
		if v {
			return true
		}
	}
	return false
}
