package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/pthm/sqlcompose/internal/cli"
	"github.com/pthm/sqlcompose/internal/doctor"
	"github.com/pthm/sqlcompose/pkg/dialect"
)

var (
	doctorDB      string
	doctorDriver  string
	doctorVerbose bool
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Run health checks",
	Long: `Check that the model manifest loads, that every model composes a statement
and that the statements run against the configured database.`,
	Example: `  # Run health checks
  sqlcompose doctor

  # Against an explicit database, with the composed statements
  sqlcompose doctor --db postgres://localhost/app --driver postgres --verbose`,
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := dialect.Lookup(resolveString(doctorDriver, cfg.Database.Driver))
		if err != nil {
			return cli.ConfigError("resolving dialect", err)
		}

		// Database checks are skipped when no DSN can be resolved.
		dsn := doctorDB
		if dsn == "" {
			dsn, _ = cfg.DSN()
		}

		opts := doctor.Options{
			ManifestPath: resolveString(modelsArg, cfg.Models),
			Dialect:      d,
			DSN:          dsn,
			DefaultLimit: cfg.Search.DefaultLimit,
		}
		return runDoctor(cmd.Context(), cmd.OutOrStdout(), opts, doctorVerbose)
	},
}

func init() {
	f := doctorCmd.Flags()
	f.StringVar(&doctorDB, "db", "", "database URL")
	f.StringVar(&doctorDriver, "driver", "", "dialect and driver (default: database.driver)")
	f.BoolVar(&doctorVerbose, "verbose", false, "show detailed output")
}

func runDoctor(ctx context.Context, w io.Writer, opts doctor.Options, verboseFlag bool) error {
	if ctx == nil {
		ctx = context.Background()
	}

	if !quiet {
		fmt.Fprintln(w, "sqlcompose doctor - Health Check")
	}

	report, err := doctor.New(opts).Run(ctx)
	if err != nil {
		return cli.GeneralError("running doctor", err)
	}

	report.Print(w, verboseFlag)

	if report.HasErrors() {
		return cli.GeneralError("health checks failed", nil)
	}
	return nil
}
