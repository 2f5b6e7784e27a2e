// Package cli implements docctl, the command line companion of the regdocs
// API.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "docctl",
		Short: "Manage the regulation document repository",
		Long: `docctl talks to a regdocs API server. It imports directories described by a
manifest.csv and mints admin tokens for the API's protected routes.`,
		SilenceUsage: true,
	}
	root.AddCommand(newImportCmd(), newTokenCmd())
	return root
}

// Execute runs docctl and exits non-zero on failure.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render(err.Error()))
		os.Exit(1)
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
