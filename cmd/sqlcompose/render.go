package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/pthm/sqlcompose/internal/cli"
	"github.com/pthm/sqlcompose/pkg/search"
)

var (
	renderModel  string
	renderParams []string
	renderDriver string
)

var renderCmd = &cobra.Command{
	Use:   "render",
	Short: "Print the statements of a search",
	Long: `Print the paginated data statement and the count statement a search would
run. No database connection is made.`,
	Example: `  # Render a search on the users model
  sqlcompose render --model users --param starts_with=ab --param page=2

  # Render for another dialect
  sqlcompose render --model users --driver postgres`,
	RunE: func(cmd *cobra.Command, args []string) error {
		params, err := parseParams(renderParams)
		if err != nil {
			return cli.GeneralError("parsing parameters", err)
		}

		t, err := loadTarget(renderModel, renderDriver)
		if err != nil {
			return err
		}

		return runRender(cmd.OutOrStdout(), t, params)
	},
}

func init() {
	f := renderCmd.Flags()
	f.StringVarP(&renderModel, "model", "m", "", "model to render")
	f.StringArrayVarP(&renderParams, "param", "p", nil, "search parameter as key=value (repeatable)")
	f.StringVar(&renderDriver, "driver", "", "dialect to render for (default: database.driver)")
}

func runRender(w io.Writer, t *target, params search.Params) error {
	p, err := t.model.Prepare(t.registry, params)
	if err != nil {
		return cli.QueryError("rendering search", err)
	}

	fmt.Fprintf(w, "-- data\n%s;\n\n-- count\n%s;\n", p.SQL, p.CountSQL)
	return nil
}
