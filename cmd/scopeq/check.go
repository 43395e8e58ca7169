package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/oxhq/scopeq/highlight"
	"github.com/oxhq/scopeq/internal/logging"
	"github.com/oxhq/scopeq/models"
	"github.com/oxhq/scopeq/query"
	"github.com/oxhq/scopeq/render"
)

var concerns = []string{highlight.ConcernHighlights, highlight.ConcernLocals, highlight.ConcernInjections}

// checkReport is the outcome of compiling query sets.
type checkReport struct {
	Languages   []string          `json:"languages"`
	Patterns    int               `json:"patterns"`
	Diagnostics query.Diagnostics `json:"diagnostics"`
	RunID       string            `json:"run_id,omitempty"`
}

// compileAll compiles every concern of languages and collects the
// diagnostics. Missing concerns are skipped.
func (a *app) compileAll(languages []string) checkReport {
	report := checkReport{Languages: languages, Diagnostics: query.Diagnostics{}}
	for _, lang := range languages {
		for _, concern := range concerns {
			q, diags, err := a.queries.Query(lang, concern)
			if errors.Is(err, query.ErrNotFound) {
				continue
			}
			report.Diagnostics = append(report.Diagnostics, diags...)
			if err != nil {
				if len(diags.Errors()) == 0 {
					report.Diagnostics = append(report.Diagnostics, query.Diagnostic{
						Kind:     query.KindLoad,
						Severity: query.SeverityFatal,
						Language: lang,
						Concern:  concern,
						Pattern:  -1,
						Message:  err.Error(),
						Err:      err,
					})
				}
				continue
			}
			report.Patterns += q.PatternCount()
		}
	}
	return report
}

func newCheckCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "check [languages...]",
		Short: "Compile the query sets and report diagnostics",
		Long: `check compiles the highlights, locals and injections queries of the named
languages (all registered languages by default) and prints every diagnostic.
With a database configured the run is recorded. The command fails when a
query set has a fatal problem.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			languages := a.providers.Languages()
			if len(args) > 0 {
				languages = languages[:0:0]
				for _, name := range args {
					p, ok := a.providers.Get(name)
					if !ok {
						return render.Wrap(render.ErrUnsupportedLang, fmt.Sprintf("unsupported language %q", name), nil)
					}
					languages = append(languages, p.Language())
				}
			}

			report := a.compileAll(languages)
			for _, d := range report.Diagnostics {
				a.logger.Log(logLevelOf(d.Severity), d.Message, logging.LogData{
					"kind":     string(d.Kind),
					"language": d.Language,
					"concern":  d.Concern,
					"pattern":  d.Pattern,
				})
			}

			store, err := a.openStore()
			if err != nil {
				return err
			}
			if store != nil {
				run, err := store.RecordCheck(cmd.Context(), report.Languages, report.Patterns, report.Diagnostics)
				if err != nil {
					return render.Wrap(render.ErrDatabase, "failed to record check run", err)
				}
				report.RunID = run.ID
			}

			out := cmd.OutOrStdout()
			if a.flags.jsonOut {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				if err := enc.Encode(report); err != nil {
					return err
				}
			} else {
				opts := a.renderOptions("")
				if err := render.Diagnostics(out, report.Diagnostics, opts); err != nil {
					return err
				}
				status := "ok"
				if report.Diagnostics.HasFatal() {
					status = "failed"
				}
				fmt.Fprintf(out, "%d languages, %d patterns, %d errors, %d warnings: %s\n",
					len(report.Languages), report.Patterns,
					len(report.Diagnostics.Errors()), len(report.Diagnostics.Warnings()), status)
			}

			if report.Diagnostics.HasFatal() {
				return render.Wrap(render.ErrQuery, "query check failed", report.Diagnostics.Err())
			}
			return nil
		},
	}
}

func logLevelOf(s query.Severity) logging.LogLevel {
	switch s {
	case query.SeverityWarning:
		return logging.LogLevelWarning
	case query.SeverityFatal:
		return logging.LogLevelCritical
	default:
		return logging.LogLevelError
	}
}

func newRunsCmd(a *app) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recorded check runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.openStore()
			if err != nil {
				return err
			}
			if store == nil {
				return render.Wrap(render.ErrUsage, "runs needs a database (--db)", nil)
			}
			runs, err := store.RecentChecks(cmd.Context(), limit)
			if err != nil {
				return render.Wrap(render.ErrDatabase, "failed to list check runs", err)
			}

			out := cmd.OutOrStdout()
			if a.flags.jsonOut {
				if runs == nil {
					runs = []models.CheckRun{}
				}
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(runs)
			}
			opts := a.renderOptions("")
			for _, run := range runs {
				status := "ok"
				attr := color.FgGreen
				if run.Failed {
					status, attr = "failed", color.FgRed
				}
				if opts.Color {
					c := color.New(attr)
					c.EnableColor()
					status = c.Sprint(status)
				}
				fmt.Fprintf(out, "%s\t%s\t%s\t%d patterns\t%d errors\t%d warnings\n",
					run.ID, run.StartedAt.Format(time.RFC3339), status,
					run.Patterns, run.ErrorCount, run.WarningCount)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "Number of runs to show (0 = all)")
	return cmd
}

func newPruneCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "prune",
		Short: "Delete expired cached spans from the database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.openStore()
			if err != nil {
				return err
			}
			if store == nil {
				return render.Wrap(render.ErrUsage, "prune needs a database (--db)", nil)
			}
			removed, err := store.PruneSpans(cmd.Context())
			if err != nil {
				return render.Wrap(render.ErrDatabase, "failed to prune cached spans", err)
			}
			a.logger.Info("cache pruned", logging.LogData{"removed": removed})
			fmt.Fprintf(cmd.OutOrStdout(), "removed %d expired entries\n", removed)
			return nil
		},
	}
}
