package render

import (
	"fmt"
	"io"

	"github.com/fatih/color"

	"github.com/oxhq/scopeq/highlight"
	"github.com/oxhq/scopeq/query"
)

type localsDocument struct {
	Path   string                `json:"path,omitempty"`
	Locals *highlight.LocalGraph `json:"locals"`
}

// Locals writes the scope, definition and reference tables of g.
func Locals(w io.Writer, source []byte, g *highlight.LocalGraph, opts Options) error {
	if g == nil {
		g = &highlight.LocalGraph{}
	}
	if opts.Format == FormatJSON {
		return writeJSON(w, localsDocument{Path: opts.Path, Locals: g})
	}

	idx := newLineIndex(source)
	heading := func(s string) string { return paint(opts.Color, s, color.Bold) }

	fmt.Fprintln(w, heading("scopes:"))
	for i, s := range g.Scopes {
		parent := "-"
		if s.Parent >= 0 {
			parent = fmt.Sprint(s.Parent)
		}
		fmt.Fprintf(w, "  #%d\t%s\tparent=%s\tinherits=%t\n", i, at(idx, s.Range), parent, s.Inherits)
	}

	fmt.Fprintln(w, heading("definitions:"))
	for i, d := range g.Definitions {
		kind := d.Kind
		if kind == "" {
			kind = "-"
		}
		fmt.Fprintf(w, "  #%d\t%s\t%s\t%s\tscope=%d\n", i, at(idx, d.Range), d.Name, kind, d.Scope)
	}

	fmt.Fprintln(w, heading("references:"))
	for _, r := range g.References {
		target := paint(opts.Color, "unresolved", color.FgHiBlack)
		if r.Definition >= 0 && r.Definition < len(g.Definitions) {
			target = fmt.Sprintf("-> #%d %s", r.Definition, at(idx, g.Definitions[r.Definition].Range))
		}
		fmt.Fprintf(w, "  %s\t%s\t%s\n", at(idx, r.Range), r.Name, target)
	}
	return nil
}

type injectionsDocument struct {
	Path       string                `json:"path,omitempty"`
	Injections []highlight.Injection `json:"injections"`
	Layers     []highlight.Layer     `json:"layers"`
}

// Injections writes the injection descriptors and parsed layers of res.
func Injections(w io.Writer, source []byte, res *highlight.Result, opts Options) error {
	if opts.Format == FormatJSON {
		doc := injectionsDocument{Path: opts.Path, Injections: res.Injections, Layers: res.Layers}
		if doc.Injections == nil {
			doc.Injections = []highlight.Injection{}
		}
		return writeJSON(w, doc)
	}

	idx := newLineIndex(source)
	for _, inj := range res.Injections {
		lang := paint(opts.Color, inj.Language, color.FgCyan)
		flags := ""
		if inj.CombinationKey != "" {
			flags += " combined=" + inj.CombinationKey
		}
		if inj.IncludeChildren {
			flags += " include-children"
		}
		fmt.Fprintf(w, "%s\tpattern=%d%s\n", lang, inj.Pattern, flags)
		for _, r := range inj.Ranges {
			fmt.Fprintf(w, "  %s\t%q\n", at(idx, r), excerpt(source, r, 40))
		}
	}
	for _, l := range res.Layers {
		if l.Depth == 0 {
			continue
		}
		fmt.Fprintf(w, "layer %s depth=%d ranges=%d\n", l.Language, l.Depth, len(l.Ranges))
	}
	return nil
}

func at(idx lineIndex, r query.Range) string {
	p := idx.position(r.Start)
	return fmt.Sprintf("%d:%d[%d,%d)", p.Line, p.Column, r.Start, r.End)
}

func excerpt(source []byte, r query.Range, limit int) string {
	if int(r.End) > len(source) || r.Start > r.End {
		return ""
	}
	s := string(source[r.Start:r.End])
	if len(s) > limit {
		return s[:limit] + "..."
	}
	return s
}
