package highlight

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/oxhq/scopeq/query"
)

// Query concerns loaded per language.
const (
	ConcernHighlights = "highlights"
	ConcernLocals     = "locals"
	ConcernInjections = "injections"
)

// DefaultMaxInjectionDepth bounds nested injections.
const DefaultMaxInjectionDepth = 6

// Parser produces a syntax tree for a document. Implementations return an
// error wrapping query.ErrUnknownLanguage for languages they cannot parse.
type Parser interface {
	Parse(ctx context.Context, language string, source []byte) (query.Cursor, error)
}

// SyntaxChecker is implemented by parsers that can list the syntax errors of
// a document. The highlighter reports them for the host layer only.
type SyntaxChecker interface {
	SyntaxErrors(ctx context.Context, language string, source []byte) ([]string, error)
}

// Queries supplies compiled query sets. *query.Registry implements it.
type Queries interface {
	Query(language, concern string) (*query.Query, query.Diagnostics, error)
}

// Layer is one parsed region: the host document or an injection.
type Layer struct {
	Language string        `json:"language"`
	Depth    int           `json:"depth"`
	Ranges   []query.Range `json:"ranges"`
}

// Result is everything one highlighting pass produced.
type Result struct {
	Language    string            `json:"language"`
	Spans       []Span            `json:"spans"`
	Locals      *LocalGraph       `json:"locals,omitempty"`
	Injections  []Injection       `json:"injections,omitempty"`
	Layers      []Layer           `json:"layers"`
	Diagnostics query.Diagnostics `json:"diagnostics,omitempty"`

	loaded map[string]bool
}

// Highlighter runs the locals, highlights and injections passes over a
// document and recursively over its injected regions. It holds no per-call
// state and is safe for concurrent use if its Parser and Queries are.
type Highlighter struct {
	parser    Parser
	queries   Queries
	normalize func(string) (string, bool)
	maxDepth  int
}

// Option configures a Highlighter.
type Option func(*Highlighter)

// WithMaxInjectionDepth sets how many levels of nested injection are
// followed. Zero disables injections.
func WithMaxInjectionDepth(depth int) Option {
	return func(h *Highlighter) { h.maxDepth = depth }
}

// WithLanguageNormalizer resolves injection language names and aliases.
func WithLanguageNormalizer(fn func(string) (string, bool)) Option {
	return func(h *Highlighter) { h.normalize = fn }
}

// New creates a Highlighter.
func New(parser Parser, queries Queries, opts ...Option) *Highlighter {
	h := &Highlighter{parser: parser, queries: queries, maxDepth: DefaultMaxInjectionDepth}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Highlight resolves the spans of source in language. Only problems with
// the host language itself are returned as errors; everything below it is
// reported through Result.Diagnostics.
func (h *Highlighter) Highlight(ctx context.Context, language string, source []byte) (*Result, error) {
	res := &Result{Language: language, loaded: make(map[string]bool)}
	spans, err := h.layer(ctx, layerJob{
		language: language,
		source:   source,
		ranges:   []query.Range{{Start: 0, End: uint32(len(source))}},
	}, res)
	if err != nil {
		return nil, err
	}
	res.Spans = spans
	if checker, ok := h.parser.(SyntaxChecker); ok {
		problems, err := checker.SyntaxErrors(ctx, language, source)
		if err != nil {
			return nil, err
		}
		for _, msg := range problems {
			res.Diagnostics = append(res.Diagnostics, query.Diagnostic{
				Kind:     query.KindSourceSyntax,
				Severity: query.SeverityWarning,
				Language: language,
				Pattern:  -1,
				Message:  msg,
			})
		}
	}
	sort.SliceStable(res.Injections, func(i, j int) bool {
		return firstStart(res.Injections[i].Ranges) < firstStart(res.Injections[j].Ranges)
	})
	return res, nil
}

func firstStart(ranges []query.Range) uint32 {
	if len(ranges) == 0 {
		return 0
	}
	return ranges[0].Start
}

type layerJob struct {
	language string
	parent   string
	source   []byte
	depth    int
	// offsets maps the layer's source back to host coordinates; nil is the
	// identity.
	offsets offsetMap
	ranges  []query.Range
}

// layer processes one layer and returns its spans in layer coordinates with
// injected layers already overlaid.
func (h *Highlighter) layer(ctx context.Context, job layerJob, res *Result) ([]Span, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	root, err := h.parser.Parse(ctx, job.language, job.source)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", job.language, err)
	}
	res.Layers = append(res.Layers, Layer{Language: job.language, Depth: job.depth, Ranges: job.ranges})

	highlights, err := h.load(job.language, ConcernHighlights, res)
	if err != nil {
		return nil, err
	}

	var locals *LocalGraph
	if q, err := h.load(job.language, ConcernLocals, res); err != nil {
		return nil, err
	} else if q != nil {
		matches, err := q.Exec(ctx, root, job.source, query.ExecOptions{})
		if err != nil {
			return nil, err
		}
		locals = BuildLocals(matches, job.source)
	}
	if job.depth == 0 {
		res.Locals = locals
	}

	var spans []Span
	if highlights != nil {
		opts := query.ExecOptions{}
		if locals != nil {
			opts.Properties = locals
		}
		matches, err := highlights.Exec(ctx, root, job.source, opts)
		if err != nil {
			return nil, err
		}
		spans = ResolveSpans(matches, locals)
		for i := range spans {
			spans[i].Depth = job.depth
			spans[i].Language = job.language
		}
	}

	injections, err := h.load(job.language, ConcernInjections, res)
	if err != nil || injections == nil {
		return spans, err
	}
	matches, err := injections.Exec(ctx, root, job.source, query.ExecOptions{})
	if err != nil {
		return nil, err
	}
	descs := ResolveInjections(matches, job.source, InjectionContext{
		Language:  job.language,
		Parent:    job.parent,
		Normalize: h.normalize,
	})
	if len(descs) > 0 && job.depth+1 > h.maxDepth {
		res.Diagnostics = append(res.Diagnostics, query.Diagnostic{
			Kind:     query.KindInjectionDepth,
			Severity: query.SeverityWarning,
			Language: job.language,
			Concern:  ConcernInjections,
			Pattern:  descs[0].Pattern,
			Message:  fmt.Sprintf("injection depth %d exceeds limit %d; %d nested injections truncated", job.depth+1, h.maxDepth, len(descs)),
		})
		return spans, nil
	}

	for _, inj := range descs {
		hostInj := inj
		hostInj.Ranges = job.offsets.mapRanges(inj.Ranges)
		res.Injections = append(res.Injections, hostInj)

		sub, offsets := subDocument(job.source, inj.Ranges)
		child, err := h.layer(ctx, layerJob{
			language: inj.Language,
			parent:   job.language,
			source:   sub,
			depth:    job.depth + 1,
			offsets:  job.offsets.compose(offsets),
			ranges:   hostInj.Ranges,
		}, res)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			res.Diagnostics = append(res.Diagnostics, query.Diagnostic{
				Kind:     query.KindLoad,
				Severity: query.SeverityWarning,
				Language: inj.Language,
				Pattern:  inj.Pattern,
				Message:  "injection skipped: " + err.Error(),
				Err:      err,
			})
			continue
		}

		var mapped []Span
		for _, s := range child {
			for _, r := range offsets.mapRange(s.Range) {
				s.Range = r
				mapped = append(mapped, s)
			}
		}
		spans = overlay(spans, inj.Ranges, mapped)
	}
	return spans, nil
}

// load fetches a compiled query, recording its diagnostics. A missing query
// file is not an error.
func (h *Highlighter) load(language, concern string, res *Result) (*query.Query, error) {
	q, diags, err := h.queries.Query(language, concern)
	if key := language + "/" + concern; !res.loaded[key] {
		res.loaded[key] = true
		res.Diagnostics = append(res.Diagnostics, diags...)
	}
	if err != nil {
		if errors.Is(err, query.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("load %s/%s: %w", language, concern, err)
	}
	return q, nil
}

// overlay replaces the parts of base inside regions with top.
func overlay(base []Span, regions []query.Range, top []Span) []Span {
	out := make([]Span, 0, len(base)+len(top))
	for _, s := range base {
		out = append(out, subtract(s, regions)...)
	}
	out = append(out, top...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Range.Start < out[j].Range.Start })
	return out
}

// subtract returns the pieces of s outside every region. Regions are sorted.
func subtract(s Span, regions []query.Range) []Span {
	pieces := []Span{s}
	for _, r := range regions {
		var next []Span
		for _, p := range pieces {
			if r.End <= p.Range.Start || r.Start >= p.Range.End {
				next = append(next, p)
				continue
			}
			if p.Range.Start < r.Start {
				left := p
				left.Range.End = r.Start
				next = append(next, left)
			}
			if p.Range.End > r.End {
				right := p
				right.Range.Start = r.End
				next = append(next, right)
			}
		}
		pieces = next
	}
	return pieces
}
