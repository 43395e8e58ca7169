// Command scopeq runs structural syntax queries over source files: it
// highlights them, inspects their locals and injections, checks the
// bundled query sets and compares output against golden files.
package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/oxhq/scopeq/render"
)

const version = "0.3.0"

func main() {
	cmd, a := newRootCmd()
	err := cmd.Execute()
	// PersistentPostRun is skipped when a command fails.
	a.close()
	if err != nil {
		render.Fatal(cmd.ErrOrStderr(), err, a.flags.jsonOut)
		os.Exit(1)
	}
}

// newRootCmd builds the command tree around a fresh app.
func newRootCmd() (*cobra.Command, *app) {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:   "scopeq",
		Short: "Structural syntax queries, highlighting and language injection",
		Long: `scopeq compiles tree query files, matches them against syntax trees and
resolves the captures into highlight spans, local scopes and injected
language layers.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			a.close()
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.BoolVar(&a.flags.jsonOut, "json", false, "Output results in JSON format")
	flags.BoolVar(&a.flags.debug, "debug", false, "Enable debug logging")
	flags.BoolVar(&a.flags.noColor, "no-color", false, "Disable colored output")
	flags.StringVar(&a.flags.dbURL, "db", "", "Database for cached spans and check runs (file path, :memory:, or libsql/http URL)")
	flags.IntVarP(&a.flags.workers, "workers", "w", 0, "Number of concurrent workers")
	flags.StringVar(&a.flags.logLevel, "log-level", "", "Log level (debug, info, notice, warning, error)")
	flags.StringSliceVar(&a.flags.queries, "queries", nil, "Directories of <language>/<concern>.scm files overriding the bundled queries")
	flags.StringSliceVar(&a.flags.envFiles, "env-file", nil, "Environment files to load (default .env)")

	rootCmd.AddCommand(
		newHighlightCmd(a),
		newCheckCmd(a),
		newRunsCmd(a),
		newPruneCmd(a),
		newLocalsCmd(a),
		newInjectionsCmd(a),
		newTestCmd(a),
		newLanguagesCmd(a),
	)
	return rootCmd, a
}
