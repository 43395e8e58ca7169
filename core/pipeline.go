package core

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/oxhq/scopeq/highlight"
	"github.com/oxhq/scopeq/internal/logging"
)

// Highlighter resolves the spans of one document. *highlight.Highlighter
// implements it.
type Highlighter interface {
	Highlight(ctx context.Context, language string, source []byte) (*highlight.Result, error)
}

// ResultStore persists results across runs. *db.Store implements it.
type ResultStore interface {
	LoadResult(ctx context.Context, language string, source []byte) (*highlight.Result, bool, error)
	SaveResult(ctx context.Context, uri, language string, source []byte, result *highlight.Result) error
}

// Pipeline highlights batches of documents on a bounded worker pool.
type Pipeline struct {
	highlighter Highlighter
	scheduler   *Scheduler
	cache       *ResultCache
	store       ResultStore
	walker      *FileWalker
	logger      *logging.Logger
	workers     int
	pruners     []func() int
}

// PipelineOption configures a Pipeline.
type PipelineOption func(*Pipeline)

// WithWorkers bounds the number of documents highlighted concurrently.
func WithWorkers(n int) PipelineOption {
	return func(p *Pipeline) {
		if n > 0 {
			p.workers = n
		}
	}
}

// WithResultCache enables result memoisation.
func WithResultCache(c *ResultCache) PipelineOption {
	return func(p *Pipeline) { p.cache = c }
}

// WithResultStore adds a persistent tier behind the in-memory cache.
func WithResultStore(s ResultStore) PipelineOption {
	return func(p *Pipeline) { p.store = s }
}

// WithScheduler shares a scheduler between pipelines.
func WithScheduler(s *Scheduler) PipelineOption {
	return func(p *Pipeline) { p.scheduler = s }
}

// WithLogger sets the pipeline logger.
func WithLogger(l *logging.Logger) PipelineOption {
	return func(p *Pipeline) { p.logger = l }
}

// WithPruner registers a cleanup run after every batch, such as dropping
// expired parse trees. It returns how many entries it removed.
func WithPruner(fn func() int) PipelineOption {
	return func(p *Pipeline) { p.pruners = append(p.pruners, fn) }
}

// NewPipeline creates a pipeline around h.
func NewPipeline(h Highlighter, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		highlighter: h,
		scheduler:   NewScheduler(),
		walker:      NewFileWalker(),
		logger:      logging.Discard(),
		workers:     runtime.NumCPU(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Scheduler returns the pipeline's version tracker.
func (p *Pipeline) Scheduler() *Scheduler { return p.scheduler }

// Run highlights docs and returns one result per document in input order.
// When a batch holds several versions of one URI only the newest is
// processed. Per-document failures are reported in the results; the error
// is non-nil only when ctx ends.
func (p *Pipeline) Run(ctx context.Context, docs []Document) ([]DocumentResult, error) {
	start := time.Now()
	results := make([]DocumentResult, len(docs))

	newest := make(map[string]int64, len(docs))
	for _, d := range docs {
		if v, ok := newest[d.URI]; !ok || d.Version > v {
			newest[d.URI] = d.Version
		}
	}

	g := new(errgroup.Group)
	g.SetLimit(p.workers)
	for i, d := range docs {
		if d.Version < newest[d.URI] {
			results[i] = DocumentResult{URI: d.URI, Language: d.Language, Version: d.Version, Superseded: true}
			continue
		}
		if ctx.Err() != nil {
			results[i] = DocumentResult{URI: d.URI, Language: d.Language, Version: d.Version, Err: ctx.Err()}
			continue
		}
		g.Go(func() error {
			results[i] = p.Submit(ctx, d)
			return nil
		})
	}
	_ = g.Wait()
	p.prune()

	stats := Summarize(results, time.Since(start))
	p.logger.Info("batch finished", logging.LogData{
		"documents":   stats.Documents,
		"highlighted": stats.Highlighted,
		"cached":      stats.Cached,
		"superseded":  stats.Superseded,
		"failed":      stats.Failed,
		"duration_ms": stats.Duration.Milliseconds(),
	})
	return results, ctx.Err()
}

// prune drops expired cache entries once a batch is done.
func (p *Pipeline) prune() {
	removed := p.cache.Prune()
	for _, fn := range p.pruners {
		removed += fn()
	}
	if removed > 0 {
		p.logger.Debug("expired cache entries pruned", logging.LogData{"removed": removed})
	}
}

// Submit highlights a single document version. If a newer version of the
// same URI starts meanwhile, the result is discarded and marked superseded.
func (p *Pipeline) Submit(ctx context.Context, d Document) (res DocumentResult) {
	start := time.Now()
	res = DocumentResult{URI: d.URI, Language: d.Language, Version: d.Version, Source: d.Source}
	defer func() { res.Duration = time.Since(start) }()

	job, err := p.scheduler.Begin(ctx, d.URI, d.Version)
	if err != nil {
		res.Superseded = true
		p.logger.Debug("stale version skipped", logging.LogData{"uri": d.URI, "version": d.Version})
		return res
	}

	if cached, ok := p.lookup(job.Context(), d); ok {
		if !job.Finish() {
			res.Superseded = true
			return res
		}
		res.Result, res.Cached = cached, true
		return res
	}

	result, err := p.highlighter.Highlight(job.Context(), d.Language, d.Source)
	if !job.Finish() {
		res.Superseded = true
		p.logger.Debug("superseded result discarded", logging.LogData{"uri": d.URI, "version": d.Version})
		return res
	}
	if err != nil {
		res.Err = err
		p.logger.Error("highlight failed", logging.LogData{"uri": d.URI, "language": d.Language, "err": err})
		return res
	}

	p.cache.Put(d.Language, d.Source, result)
	if p.store != nil {
		if err := p.store.SaveResult(ctx, d.URI, d.Language, d.Source, result); err != nil {
			p.logger.Warning("result store write failed", logging.LogData{"uri": d.URI, "err": err})
		}
	}
	res.Result = result
	for _, diag := range result.Diagnostics {
		p.logger.Warning(diag.Message, logging.LogData{
			"uri":      d.URI,
			"kind":     string(diag.Kind),
			"language": diag.Language,
			"concern":  diag.Concern,
		})
	}
	p.logger.Debug("document highlighted", logging.LogData{
		"uri":      d.URI,
		"language": d.Language,
		"spans":    len(result.Spans),
		"layers":   len(result.Layers),
	})
	return res
}

// lookup consults the memory cache, then the store. Store hits are promoted
// to the memory cache.
func (p *Pipeline) lookup(ctx context.Context, d Document) (*highlight.Result, bool) {
	if cached, ok := p.cache.Get(d.Language, d.Source); ok {
		return cached, true
	}
	if p.store == nil {
		return nil, false
	}
	stored, ok, err := p.store.LoadResult(ctx, d.Language, d.Source)
	if err != nil {
		p.logger.Warning("result store lookup failed", logging.LogData{"uri": d.URI, "err": err})
		return nil, false
	}
	if !ok {
		return nil, false
	}
	p.cache.Put(d.Language, d.Source, stored)
	return stored, true
}

// RunFiles discovers files under scope, reads them and highlights every
// file whose language is known. Results are ordered by path.
func (p *Pipeline) RunFiles(ctx context.Context, scope FileScope) ([]DocumentResult, error) {
	walk, err := p.walker.Walk(ctx, scope)
	if err != nil {
		return nil, err
	}

	var found []WalkResult
	for r := range walk {
		if r.Error != nil {
			p.logger.Warning("skipping unreadable file", logging.LogData{"path": r.Path, "err": r.Error})
			continue
		}
		if r.Language == "" {
			p.logger.Debug("skipping file with unknown language", logging.LogData{"path": r.Path})
			continue
		}
		found = append(found, r)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sort.Slice(found, func(i, j int) bool { return found[i].Path < found[j].Path })

	docs := make([]Document, 0, len(found))
	var failed []DocumentResult
	for _, r := range found {
		source, err := os.ReadFile(r.Path)
		if err != nil {
			failed = append(failed, DocumentResult{
				URI:      r.Path,
				Language: r.Language,
				Err:      fmt.Errorf("read %s: %w", r.Path, err),
			})
			continue
		}
		docs = append(docs, Document{
			URI:      r.Path,
			Language: r.Language,
			Version:  r.Info.ModTime().UnixNano(),
			Source:   source,
		})
	}

	results, err := p.Run(ctx, docs)
	if len(failed) > 0 {
		results = append(results, failed...)
		sort.SliceStable(results, func(i, j int) bool { return results[i].URI < results[j].URI })
	}
	return results, err
}
