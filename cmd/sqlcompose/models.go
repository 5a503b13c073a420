package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/pthm/sqlcompose/internal/manifest"
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List declared models",
	Long:  `List the models of the manifest with their tables and search parameters.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := loadManifest()
		if err != nil {
			return err
		}
		return printModels(cmd.OutOrStdout(), m)
	},
}

func printModels(w io.Writer, m *manifest.Manifest) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "MODEL\tTABLE\tPARAMETERS")
	for _, model := range m.Models {
		params := make([]string, len(model.Search))
		for i, p := range model.Search {
			params[i] = p.Param
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", model.Name, model.Table, strings.Join(params, ", "))
	}
	return tw.Flush()
}
