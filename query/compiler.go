package query

import (
	"errors"
	"fmt"
	"sort"
)

// Grammar describes the node types of a language. When supplied to the
// compiler, patterns naming a type the grammar lacks are kept but can never
// match.
type Grammar interface {
	HasNodeType(name string, named bool) bool
}

// FieldGrammar is implemented by grammars that also know their field names.
type FieldGrammar interface {
	Grammar
	HasField(name string) bool
}

// Options configures compilation.
type Options struct {
	Language string
	Concern  string
	Grammar  Grammar
}

// Source is one query file. Bases come before the files inheriting them.
type Source struct {
	Language string
	Text     string
}

// CompiledPattern is one top-level pattern ready for matching. Index is its
// priority: lower wins at equal span.
type CompiledPattern struct {
	Index      int
	Language   string
	Root       *Pattern
	Captures   []string
	Predicates []*CompiledPredicate
	Offset     int

	// keys is nil when the root can match any node type.
	keys  []Symbol
	never bool
}

// DispatchKeys returns the node types the root can match. any is true when
// the root is unrestricted.
func (cp *CompiledPattern) DispatchKeys() (types []string, any bool) {
	if cp.keys == nil {
		return nil, true
	}
	for _, k := range cp.keys {
		types = append(types, k.Value())
	}
	sort.Strings(types)
	return types, false
}

// NeverMatches reports whether the pattern references a node type or field
// the grammar does not have.
func (cp *CompiledPattern) NeverMatches() bool { return cp.never }

// Query is an immutable compiled query set for one language and concern.
// It is safe for concurrent use.
type Query struct {
	Language string
	Concern  string

	patterns     []*CompiledPattern
	captureNames []string
	bySymbol     map[Symbol][]int
	fallback     []int
}

// Patterns returns the compiled patterns in priority order.
func (q *Query) Patterns() []*CompiledPattern { return q.patterns }

// PatternCount is the number of patterns that compiled.
func (q *Query) PatternCount() int { return len(q.patterns) }

// CaptureNames lists every capture name in first-declaration order.
func (q *Query) CaptureNames() []string { return q.captureNames }

// candidates returns the pattern indexes whose root may match a node of the
// given type, in priority order.
func (q *Query) candidates(sym Symbol) []int {
	return mergePatternIndexLists(q.bySymbol[sym], q.fallback)
}

// Compile compiles a single query source without resolving inheritance.
func Compile(source string, opts Options) (*Query, Diagnostics) {
	return CompileSources([]Source{{Language: opts.Language, Text: source}}, opts)
}

// CompileSources compiles an ordered list of query files into one query.
// Patterns keep file order then declaration order, which becomes priority.
// Malformed patterns are reported and skipped.
func CompileSources(sources []Source, opts Options) (*Query, Diagnostics) {
	q := &Query{
		Language: opts.Language,
		Concern:  opts.Concern,
		bySymbol: make(map[Symbol][]int),
	}
	var diags Diagnostics
	seenCapture := make(map[string]bool)
	ordinal := 0

	for _, src := range sources {
		file := Parse(src.Text)
		for _, se := range file.Errors {
			diags = append(diags, Diagnostic{
				Kind:     KindSyntaxError,
				Severity: SeverityError,
				Language: src.Language,
				Concern:  opts.Concern,
				Pattern:  -1,
				Offset:   se.Offset,
				Message:  se.Error(),
				Err:      se,
			})
		}

		for _, parsed := range file.Patterns {
			cp, pdiags := compilePattern(parsed, src.Language, opts)
			for i := range pdiags {
				pdiags[i].Pattern = ordinal
			}
			diags = append(diags, pdiags.withSource(src.Language, opts.Concern)...)
			ordinal++
			if cp == nil {
				continue
			}

			cp.Index = len(q.patterns)
			q.patterns = append(q.patterns, cp)
			for _, name := range cp.Captures {
				if !seenCapture[name] {
					seenCapture[name] = true
					q.captureNames = append(q.captureNames, name)
				}
			}
			if cp.keys == nil {
				q.fallback = append(q.fallback, cp.Index)
				continue
			}
			for _, k := range cp.keys {
				q.bySymbol[k] = append(q.bySymbol[k], cp.Index)
			}
		}
	}
	return q, diags
}

func compilePattern(parsed ParsedPattern, language string, opts Options) (*CompiledPattern, Diagnostics) {
	var diags Diagnostics
	reject := func(kind DiagnosticKind, err error) (*CompiledPattern, Diagnostics) {
		return nil, append(diags, Diagnostic{
			Kind:     kind,
			Severity: SeverityError,
			Offset:   parsed.Offset,
			Message:  err.Error(),
			Err:      err,
		})
	}

	names, err := declaredCaptures(parsed.Root)
	if err != nil {
		return reject(KindSyntaxError, err)
	}
	declared := make(map[string]bool, len(names))
	for _, n := range names {
		declared[n] = true
	}

	cp := &CompiledPattern{
		Language: language,
		Root:     parsed.Root,
		Captures: names,
		Offset:   parsed.Offset,
	}
	for _, pred := range parsed.Predicates {
		compiled, warn, err := compilePredicate(pred, declared)
		if err != nil {
			var se *SyntaxError
			if errors.As(err, &se) {
				return reject(KindSyntaxError, err)
			}
			return reject(KindUndeclaredCapture, err)
		}
		if warn != nil {
			diags = append(diags, *warn)
		}
		cp.Predicates = append(cp.Predicates, compiled)
	}

	parsed.Root.walk(func(p *Pattern) {
		if p.Kind == PatternNamedNode {
			p.sym = Intern(p.Type)
		}
	})
	if opts.Grammar != nil {
		diags = append(diags, checkGrammar(cp, opts.Grammar)...)
	}
	cp.keys = dispatchKeys(parsed.Root)
	return cp, diags
}

// declaredCaptures lists the capture names of a pattern in declaration order.
// A name may repeat across alternation branches but not within one
// alternative.
func declaredCaptures(root *Pattern) ([]string, error) {
	var order []string
	seen := make(map[string]bool)
	var visit func(p *Pattern) (map[string]bool, error)
	visit = func(p *Pattern) (map[string]bool, error) {
		local := make(map[string]bool)
		add := func(name string) error {
			if local[name] {
				return &SyntaxError{Offset: p.Offset, Kind: SyntaxDuplicateCapture, Detail: "@" + name}
			}
			local[name] = true
			if !seen[name] {
				seen[name] = true
				order = append(order, name)
			}
			return nil
		}
		for _, name := range p.Captures {
			if err := add(name); err != nil {
				return nil, err
			}
		}
		if p.Kind == PatternAlternation {
			union := make(map[string]bool)
			for _, branch := range p.Children {
				names, err := visit(branch)
				if err != nil {
					return nil, err
				}
				for n := range names {
					union[n] = true
				}
			}
			for n := range union {
				if local[n] {
					return nil, &SyntaxError{Offset: p.Offset, Kind: SyntaxDuplicateCapture, Detail: "@" + n}
				}
				local[n] = true
			}
			return local, nil
		}
		for _, child := range p.Children {
			names, err := visit(child)
			if err != nil {
				return nil, err
			}
			for n := range names {
				if local[n] {
					return nil, &SyntaxError{Offset: child.Offset, Kind: SyntaxDuplicateCapture, Detail: "@" + n}
				}
				local[n] = true
			}
		}
		return local, nil
	}
	if _, err := visit(root); err != nil {
		return nil, err
	}
	return order, nil
}

func checkGrammar(cp *CompiledPattern, g Grammar) Diagnostics {
	var diags Diagnostics
	fg, hasFields := g.(FieldGrammar)
	cp.Root.walk(func(p *Pattern) {
		switch p.Kind {
		case PatternNamedNode:
			if p.Type != "ERROR" && p.Type != "MISSING" && !g.HasNodeType(p.Type, true) {
				cp.never = true
				diags = append(diags, Diagnostic{
					Kind:     KindUnknownNodeType,
					Severity: SeverityWarning,
					Offset:   p.Offset,
					Message:  fmt.Sprintf("unknown node type %q; pattern can never match", p.Type),
				})
			}
		case PatternAnonymous:
			if !g.HasNodeType(p.Type, false) {
				cp.never = true
				diags = append(diags, Diagnostic{
					Kind:     KindUnknownNodeType,
					Severity: SeverityWarning,
					Offset:   p.Offset,
					Message:  fmt.Sprintf("unknown anonymous node %q; pattern can never match", p.Type),
				})
			}
		}
		if hasFields && p.Field != "" && !fg.HasField(p.Field) {
			cp.never = true
			diags = append(diags, Diagnostic{
				Kind:     KindUnknownField,
				Severity: SeverityWarning,
				Offset:   p.Offset,
				Message:  fmt.Sprintf("unknown field %q; pattern can never match", p.Field),
			})
		}
	})
	return diags
}

// dispatchKeys computes the node types a root can match, or nil for any.
func dispatchKeys(root *Pattern) []Symbol {
	set := make(map[Symbol]struct{})
	if !collectKeys(root, set) {
		return nil
	}
	keys := make([]Symbol, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Value() < keys[j].Value() })
	return keys
}

func collectKeys(p *Pattern, set map[Symbol]struct{}) bool {
	switch p.Kind {
	case PatternNamedNode:
		set[p.sym] = struct{}{}
		return true
	case PatternAlternation:
		for _, branch := range p.Children {
			if branch.Quantifier.min() == 0 || !collectKeys(branch, set) {
				return false
			}
		}
		return true
	case PatternGroup:
		for _, child := range p.Children {
			if child.Kind == PatternAnchor || child.Kind == PatternNegatedField {
				continue
			}
			if child.Quantifier.min() == 0 {
				return false
			}
			return collectKeys(child, set)
		}
		return false
	default:
		return false
	}
}

func mergePatternIndexLists(a, b []int) []int {
	if len(a) == 0 {
		return b
	}
	if len(b) == 0 {
		return a
	}

	out := make([]int, 0, len(a)+len(b))
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i] < b[j]:
			out = append(out, a[i])
			i++
		case b[j] < a[i]:
			out = append(out, b[j])
			j++
		default:
			out = append(out, a[i])
			i++
			j++
		}
	}
	out = append(out, a[i:]...)
	return append(out, b[j:]...)
}
