package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/oxhq/scopeq/core"
	"github.com/oxhq/scopeq/providers/catalog"
	"github.com/oxhq/scopeq/query"
	"github.com/oxhq/scopeq/render"
)

func newLocalsCmd(a *app) *cobra.Command {
	var lang string
	cmd := &cobra.Command{
		Use:   "locals <file>",
		Short: "Print the scopes, definitions and references of a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			source, res, err := a.highlightFile(cmd.Context(), lang, args[0])
			if err != nil {
				return err
			}
			return render.Locals(cmd.OutOrStdout(), source, res.Locals, a.renderOptions(args[0]))
		},
	}
	cmd.Flags().StringVarP(&lang, "lang", "l", "", "Language of the file")
	return cmd
}

func newInjectionsCmd(a *app) *cobra.Command {
	var lang string
	cmd := &cobra.Command{
		Use:   "injections <file>",
		Short: "Print the injected language regions of a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			source, res, err := a.highlightFile(cmd.Context(), lang, args[0])
			if err != nil {
				return err
			}
			return render.Injections(cmd.OutOrStdout(), source, res, a.renderOptions(args[0]))
		},
	}
	cmd.Flags().StringVarP(&lang, "lang", "l", "", "Language of the file")
	return cmd
}

func newTestCmd(a *app) *cobra.Command {
	var (
		lang   string
		update bool
	)
	cmd := &cobra.Command{
		Use:   "test <file> <golden>",
		Short: "Compare the highlight spans of a file against a golden file",
		Long: `test renders the spans of <file> in the plain text form of "scopeq highlight"
and compares them with <golden>. Differences are printed as a unified diff
and make the command fail. With --update the golden file is rewritten.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			file, golden := args[0], args[1]
			source, res, err := a.highlightFile(cmd.Context(), lang, file)
			if err != nil {
				return err
			}
			actual := render.Golden(source, res)

			if update {
				if err := os.WriteFile(golden, []byte(actual), 0o644); err != nil {
					return render.Wrap(render.ErrReadFile, "failed to write "+golden, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "updated %s\n", golden)
				return nil
			}

			expected, err := os.ReadFile(golden)
			if err != nil && !errors.Is(err, fs.ErrNotExist) {
				return render.Wrap(render.ErrReadFile, "failed to read "+golden, err)
			}
			diff, err := render.Diff(string(expected), actual, golden, file)
			if err != nil {
				return err
			}
			if diff == "" {
				fmt.Fprintf(cmd.OutOrStdout(), "ok %s\n", file)
				return nil
			}
			fmt.Fprint(cmd.OutOrStdout(), render.ColorDiff(diff, a.renderOptions(file).Color))
			return render.Wrap(render.ErrGoldenMismatch, fmt.Sprintf("%s does not match %s", file, golden), nil)
		},
	}
	cmd.Flags().StringVarP(&lang, "lang", "l", "", "Language of the file")
	cmd.Flags().BoolVar(&update, "update", false, "Rewrite the golden file with the current output")
	return cmd
}

// languageEntry describes one registered grammar.
type languageEntry struct {
	catalog.LanguageInfo
	Concerns []string `json:"concerns"`
	Inherits []string `json:"inherits,omitempty"`
}

func newLanguagesCmd(a *app) *cobra.Command {
	var (
		stats   bool
		exclude []string
	)
	cmd := &cobra.Command{
		Use:   "languages [--stats [path]]",
		Short: "List the registered grammars, their aliases and extensions",
		Long: `languages lists every registered grammar. With --stats it instead walks
path (the current directory by default) and counts its files per detected
language.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if stats {
				root := "."
				if len(args) == 1 {
					root = args[0]
				}
				return languageStats(cmd, a, core.FileScope{Path: root, Exclude: exclude})
			}
			if len(args) > 0 {
				return render.Wrap(render.ErrUsage, "a path is only accepted with --stats", nil)
			}

			var entries []languageEntry
			for _, p := range a.providers.List() {
				info, _ := catalog.Lookup(p.Language())
				entry := languageEntry{LanguageInfo: info}
				seen := map[string]bool{p.Language(): true}
				for _, concern := range concerns {
					sources, _, err := query.ResolveInherits(a.providers, p.Language(), concern)
					if err != nil {
						continue
					}
					entry.Concerns = append(entry.Concerns, concern)
					for _, src := range sources {
						if !seen[src.Language] {
							seen[src.Language] = true
							entry.Inherits = append(entry.Inherits, src.Language)
						}
					}
				}
				entries = append(entries, entry)
			}

			out := cmd.OutOrStdout()
			if a.flags.jsonOut {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(entries)
			}
			for _, e := range entries {
				line := fmt.Sprintf("%-12s %-24s %s", e.ID, strings.Join(e.Extensions, " "), strings.Join(e.Concerns, ","))
				if len(e.Aliases) > 0 {
					line += "  aliases: " + strings.Join(e.Aliases, ", ")
				}
				fmt.Fprintln(out, line)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&stats, "stats", false, "Count the files under a path by language")
	cmd.Flags().StringSliceVar(&exclude, "exclude", nil, "Glob patterns of files to skip with --stats")
	return cmd
}

func languageStats(cmd *cobra.Command, a *app, scope core.FileScope) error {
	stats, err := core.NewFileWalker().Stats(cmd.Context(), scope)
	if err != nil {
		return render.Wrap(render.ErrReadFile, "failed to scan "+scope.Path, err)
	}

	out := cmd.OutOrStdout()
	if a.flags.jsonOut {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(stats)
	}
	ids := make([]string, 0, len(stats.ByLanguage))
	for id := range stats.ByLanguage {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		if stats.ByLanguage[ids[i]] != stats.ByLanguage[ids[j]] {
			return stats.ByLanguage[ids[i]] > stats.ByLanguage[ids[j]]
		}
		return ids[i] < ids[j]
	})
	for _, id := range ids {
		fmt.Fprintf(out, "%-12s %d\n", id, stats.ByLanguage[id])
	}
	fmt.Fprintf(out, "%d files\n", stats.Files)
	if stats.Unreadable > 0 {
		fmt.Fprintf(out, "%d unreadable\n", stats.Unreadable)
	}
	return nil
}
