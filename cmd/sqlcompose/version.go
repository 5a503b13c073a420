package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/pthm/sqlcompose/internal/update"
	"github.com/pthm/sqlcompose/internal/version"
)

var versionCheck bool

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Example: `  # Print version
  sqlcompose version

  # Also check for a newer release
  sqlcompose version --check`,
	Run: func(cmd *cobra.Command, args []string) {
		w := cmd.OutOrStdout()
		fmt.Fprintln(w, version.Info())
		if !versionCheck {
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		info, err := update.CheckWithCache(ctx)
		switch {
		case err != nil:
			fmt.Fprintf(w, "Update check failed: %v\n", err)
		case info.UpdateAvailable:
			fmt.Fprintf(w, "A newer release is available: %s\n", info.LatestVersion)
		default:
			fmt.Fprintln(w, "You are running the latest release.")
		}
	},
}

func init() {
	versionCmd.Flags().BoolVar(&versionCheck, "check", false, "check GitHub for a newer release")
}
