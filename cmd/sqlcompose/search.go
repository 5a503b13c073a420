package main

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"time"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/pthm/sqlcompose"
	"github.com/pthm/sqlcompose/internal/cli"
	"github.com/pthm/sqlcompose/pkg/dialect"
	"github.com/pthm/sqlcompose/pkg/search"
)

var (
	searchModel   string
	searchParams  []string
	searchDB      string
	searchDriver  string
	searchNoCache bool
	searchPretty  bool
	searchTimeout time.Duration
)

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Run a search and print the result as JSON",
	Long: `Run a search against the database and print the page, the total count and
the validated parameters as a JSON document.`,
	Example: `  # Search users whose name starts with "ab"
  sqlcompose search --model users --param starts_with=ab

  # Second page of ten, pretty printed
  sqlcompose search --model users -p page=2 -p limit=10 --pretty

  # Against an explicit database
  sqlcompose search --model users --driver postgres --db postgres://localhost/app`,
	RunE: func(cmd *cobra.Command, args []string) error {
		params, err := parseParams(searchParams)
		if err != nil {
			return cli.GeneralError("parsing parameters", err)
		}

		var opts []sqlcompose.Option
		if resolveBool(searchNoCache, cfg.Search.NoCache) {
			opts = append(opts, sqlcompose.WithNoCache())
		}
		t, err := loadTarget(searchModel, searchDriver, opts...)
		if err != nil {
			return err
		}

		dsn, err := resolveDSN(searchDB)
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		if searchTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, searchTimeout)
			defer cancel()
		}

		return runSearch(ctx, cmd.OutOrStdout(), t, dsn, params, searchPretty)
	},
}

func init() {
	f := searchCmd.Flags()
	f.StringVarP(&searchModel, "model", "m", "", "model to search")
	f.StringArrayVarP(&searchParams, "param", "p", nil, "search parameter as key=value (repeatable)")
	f.StringVar(&searchDB, "db", "", "database URL (default: from config)")
	f.StringVar(&searchDriver, "driver", "", "dialect and driver (default: database.driver)")
	f.BoolVar(&searchNoCache, "no-cache", false, "bypass query and count caches")
	f.BoolVar(&searchPretty, "pretty", false, "indent JSON output")
	f.DurationVar(&searchTimeout, "timeout", 30*time.Second, "overall query timeout (0 disables)")
}

// resolveDSN gets the database DSN from flag or config.
func resolveDSN(flagDSN string) (string, error) {
	if flagDSN != "" {
		return flagDSN, nil
	}

	dsn, err := cfg.DSN()
	if err != nil {
		return "", cli.ConfigError("database configuration", err)
	}
	if dsn == "" {
		return "", cli.ConfigError("database URL is required (use --db or set in config)", nil)
	}
	return dsn, nil
}

func openDB(ctx context.Context, d dialect.Dialect, dsn string) (*sql.DB, error) {
	if err := d.ValidateDSN(dsn); err != nil {
		return nil, cli.ConfigError("database configuration", err)
	}

	db, err := sql.Open(d.DriverName(), dsn)
	if err != nil {
		return nil, cli.DBConnectError("connecting to database", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, cli.DBConnectError("connecting to database", err)
	}
	return db, nil
}

func runSearch(ctx context.Context, w io.Writer, t *target, dsn string, params search.Params, pretty bool) error {
	db, err := openDB(ctx, t.dialect, dsn)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	start := time.Now()
	result, err := t.model.Search(ctx, db, t.registry, params)
	if err != nil {
		return cli.QueryError("searching", err)
	}
	log.Info("search complete",
		slog.String("table", t.model.Table()),
		slog.Int64("count", result.Count),
		slog.Int("rows", len(result.Rows)),
		slog.Duration("elapsed", time.Since(start)))

	var out []byte
	if pretty {
		out, err = json.MarshalIndent(result, "", "  ")
	} else {
		out, err = json.Marshal(result)
	}
	if err != nil {
		return cli.GeneralError("encoding result", err)
	}
	_, err = w.Write(append(out, '\n'))
	return err
}
