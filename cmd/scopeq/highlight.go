package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/oxhq/scopeq/core"
	"github.com/oxhq/scopeq/internal/logging"
	"github.com/oxhq/scopeq/render"
)

func newHighlightCmd(a *app) *cobra.Command {
	var (
		lang     string
		include  []string
		exclude  []string
		maxDepth int
		maxFiles int
		persist  bool
		stats    bool
	)

	cmd := &cobra.Command{
		Use:   "highlight [paths...]",
		Short: "Print the highlight spans of files or directories",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pipeline, err := a.pipeline(persist)
			if err != nil {
				return err
			}

			var results []core.DocumentResult
			for _, path := range args {
				scope := core.FileScope{
					Path:     path,
					Include:  include,
					Exclude:  exclude,
					MaxDepth: maxDepth,
					MaxFiles: maxFiles,
					Language: lang,
				}
				batch, err := pipeline.RunFiles(cmd.Context(), scope)
				if err != nil {
					return render.Wrap(render.ErrReadFile, "failed to scan "+path, err)
				}
				results = append(results, batch...)
			}

			out := cmd.OutOrStdout()
			var failures []error
			for _, r := range results {
				if r.Err != nil {
					failures = append(failures, fmt.Errorf("%s: %w", r.URI, r.Err))
					continue
				}
				if !r.OK() {
					continue
				}
				if err := render.Spans(out, r.Source, r.Result, a.renderOptions(r.URI)); err != nil {
					return err
				}
			}

			summary := core.Summarize(results, 0)
			a.logger.Info("highlight finished", logging.LogData{
				"documents": summary.Documents,
				"cached":    summary.Cached,
				"failed":    summary.Failed,
				"spans":     summary.Spans,
			})
			if stats && !a.flags.jsonOut {
				fmt.Fprintf(cmd.ErrOrStderr(), "%d documents, %d spans, %d cached, %d failed\n",
					summary.Documents, summary.Spans, summary.Cached, summary.Failed)
			}

			if len(failures) > 0 {
				ce := render.AsCLIError(failures[0])
				ce.Message = fmt.Sprintf("%d of %d documents failed", len(failures), len(results))
				ce.Detail = errors.Join(failures...).Error()
				return ce
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&lang, "lang", "l", "", "Language of the files (detected from the extension if omitted)")
	cmd.Flags().StringSliceVar(&include, "include", nil, "Include file patterns (glob)")
	cmd.Flags().StringSliceVar(&exclude, "exclude", nil, "Exclude file patterns (glob)")
	cmd.Flags().IntVar(&maxDepth, "max-depth", 0, "Maximum directory depth (0 = unlimited)")
	cmd.Flags().IntVar(&maxFiles, "max-files", 0, "Maximum number of files (0 = unlimited)")
	cmd.Flags().BoolVar(&persist, "cache", false, "Reuse and store results in the database")
	cmd.Flags().BoolVar(&stats, "stats", false, "Print a summary to stderr")
	return cmd
}
