package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/oxhq/scopeq/config"
	"github.com/oxhq/scopeq/core"
	"github.com/oxhq/scopeq/db"
	"github.com/oxhq/scopeq/highlight"
	"github.com/oxhq/scopeq/internal/logging"
	"github.com/oxhq/scopeq/providers"
	"github.com/oxhq/scopeq/providers/base"
	"github.com/oxhq/scopeq/providers/catalog"
	"github.com/oxhq/scopeq/providers/css"
	"github.com/oxhq/scopeq/providers/golang"
	"github.com/oxhq/scopeq/providers/html"
	"github.com/oxhq/scopeq/providers/javascript"
	"github.com/oxhq/scopeq/providers/php"
	"github.com/oxhq/scopeq/providers/python"
	"github.com/oxhq/scopeq/providers/typescript"
	"github.com/oxhq/scopeq/query"
	"github.com/oxhq/scopeq/render"
)

// flags shared by every command.
type globalFlags struct {
	jsonOut  bool
	debug    bool
	noColor  bool
	dbURL    string
	workers  int
	logLevel string
	envFiles []string
	queries  []string
}

// app is the state one command invocation runs with.
type app struct {
	flags globalFlags

	cfg         config.Config
	logger      *logging.Logger
	providers   *providers.Registry
	queries     *query.Registry
	highlighter *highlight.Highlighter
	store       *db.Store
}

// builtinProviders registers every bundled grammar. Parsed trees are kept
// for treeTTL; zero disables the tree cache.
func builtinProviders(treeTTL time.Duration) *providers.Registry {
	r := providers.NewRegistry()
	cache := base.WithTreeCache(treeTTL)
	for _, p := range []providers.Provider{
		golang.New(cache),
		javascript.New(cache),
		typescript.New(cache),
		python.New(cache),
		html.New(cache),
		css.New(cache),
		php.New(cache),
	} {
		r.Register(p)
	}
	return r
}

// setup resolves configuration and builds the engine. Flags that were set
// explicitly win over the environment.
func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.FromEnv(a.flags.envFiles...)
	if err != nil {
		return render.Wrap(render.ErrConfig, "failed to load configuration", err)
	}

	flags := cmd.Flags()
	if flags.Changed("db") {
		cfg.DatabaseURL = a.flags.dbURL
	}
	if flags.Changed("workers") {
		cfg.Workers = a.flags.workers
	}
	if flags.Changed("log-level") {
		level, ok := logging.ParseLevel(a.flags.logLevel)
		if !ok {
			return render.Wrap(render.ErrUsage, fmt.Sprintf("unknown log level %q", a.flags.logLevel), nil)
		}
		cfg.LogLevel = level
	}
	if a.flags.debug {
		cfg.Debug = true
		cfg.LogLevel = logging.LogLevelDebug
	}
	if err := cfg.Validate(); err != nil {
		return render.Wrap(render.ErrConfig, "invalid configuration", err)
	}
	a.cfg = cfg

	a.logger = logging.New(cmd.ErrOrStderr(), cfg.LogLevel, "scopeq")
	a.providers = builtinProviders(a.cfg.CacheTTL)
	for _, dir := range a.flags.queries {
		a.providers.RegisterQueries(query.FSLoader{FS: os.DirFS(dir)})
	}
	a.queries = query.NewRegistry(a.providers, query.WithGrammars(a.providers.Grammar))
	a.highlighter = highlight.New(a.providers, a.queries,
		highlight.WithMaxInjectionDepth(cfg.MaxInjectionDepth),
		highlight.WithLanguageNormalizer(catalog.Normalize),
	)
	a.logger.Debug("configuration loaded", logging.LogData{
		"workers":             cfg.Workers,
		"max_injection_depth": cfg.MaxInjectionDepth,
		"database":            cfg.DatabaseURL != "",
	})
	return nil
}

// openStore connects to the configured database. It returns nil when no
// database is configured.
func (a *app) openStore() (*db.Store, error) {
	if a.store != nil || a.cfg.DatabaseURL == "" {
		return a.store, nil
	}
	store, err := db.Open(a.cfg.DatabaseURL, a.cfg.CacheTTL, a.cfg.Debug)
	if err != nil {
		return nil, render.Wrap(render.ErrDatabase, "failed to open database", err)
	}
	a.store = store
	return store, nil
}

func (a *app) close() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.Warning("failed to close database", logging.LogData{"err": err})
		}
		a.store = nil
	}
	// Syncing a terminal fails on some platforms; there is nothing to flush then.
	_ = a.logger.Sync()
}

// pipeline builds a batch pipeline; persist adds the database tier.
func (a *app) pipeline(persist bool) (*core.Pipeline, error) {
	opts := []core.PipelineOption{
		core.WithWorkers(a.cfg.Workers),
		core.WithResultCache(core.NewResultCache(a.cfg.CacheTTL)),
		core.WithLogger(a.logger),
		core.WithPruner(a.providers.Prune),
	}
	if persist {
		store, err := a.openStore()
		if err != nil {
			return nil, err
		}
		if store == nil {
			return nil, render.Wrap(render.ErrUsage, "--cache needs a database (--db or "+config.EnvDatabaseURL+")", nil)
		}
		opts = append(opts, core.WithResultStore(store))
	}
	return core.NewPipeline(a.highlighter, opts...), nil
}

// renderOptions derives output options for path.
func (a *app) renderOptions(path string) render.Options {
	opts := render.Options{Format: render.FormatText, Path: path}
	if a.flags.jsonOut {
		opts.Format = render.FormatJSON
	}
	opts.Color = !a.flags.jsonOut && !a.flags.noColor && !color.NoColor
	return opts
}

// resolveLanguage picks the language of path: an explicit name wins,
// otherwise the file extension decides.
func (a *app) resolveLanguage(explicit, path string) (string, error) {
	if explicit != "" {
		id, ok := catalog.Normalize(explicit)
		if !ok {
			return "", render.Wrap(render.ErrUnsupportedLang, fmt.Sprintf("unsupported language %q", explicit), nil)
		}
		return id, nil
	}
	info, ok := catalog.LookupByPath(path)
	if !ok {
		return "", render.Wrap(render.ErrUnsupportedLang, fmt.Sprintf("cannot detect language of %s", path), nil)
	}
	return info.ID, nil
}

// highlightFile reads and highlights a single file.
func (a *app) highlightFile(ctx context.Context, lang, path string) ([]byte, *highlight.Result, error) {
	language, err := a.resolveLanguage(lang, path)
	if err != nil {
		return nil, nil, err
	}
	source, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, render.Wrap(render.ErrReadFile, "failed to read "+path, err)
	}
	res, err := a.highlighter.Highlight(ctx, language, source)
	if err != nil {
		return nil, nil, err
	}
	for _, d := range res.Diagnostics {
		a.logger.Warning(d.Message, logging.LogData{"kind": string(d.Kind), "language": d.Language, "concern": d.Concern})
	}
	return source, res, nil
}
