package highlight

import (
	"sort"
	"strings"

	"github.com/oxhq/scopeq/query"
)

// Capture names understood by the locals pass.
const (
	CaptureScope      = "local.scope"
	CaptureDefinition = "local.definition"
	CaptureReference  = "local.reference"

	propScopeInherits = "local.scope-inherits"
)

// Scope is a lexical region. Parent is -1 for the document scope.
type Scope struct {
	Range    query.Range `json:"range"`
	Inherits bool        `json:"inherits"`
	Parent   int         `json:"parent"`
}

// Definition is a name introduced in a scope. Kind is the suffix of a
// "local.definition.<kind>" capture.
type Definition struct {
	Name  string      `json:"name"`
	Kind  string      `json:"kind,omitempty"`
	Range query.Range `json:"range"`
	Scope int         `json:"scope"`
}

// Reference is a use of a name. Definition is -1 when it did not resolve.
type Reference struct {
	Name       string      `json:"name"`
	Range      query.Range `json:"range"`
	Scope      int         `json:"scope"`
	Definition int         `json:"definition"`
}

// LocalGraph is the result of the locals pass for one layer.
type LocalGraph struct {
	Scopes      []Scope      `json:"scopes"`
	Definitions []Definition `json:"definitions"`
	References  []Reference  `json:"references"`

	defAt map[query.Range]int
	refAt map[query.Range]int
}

// DefinitionAt returns the definition whose name node covers exactly r.
func (g *LocalGraph) DefinitionAt(r query.Range) (Definition, bool) {
	if g == nil {
		return Definition{}, false
	}
	i, ok := g.defAt[r]
	if !ok {
		return Definition{}, false
	}
	return g.Definitions[i], true
}

// Resolve returns the definition a reference at r points to.
func (g *LocalGraph) Resolve(r query.Range) (Definition, bool) {
	if g == nil {
		return Definition{}, false
	}
	i, ok := g.refAt[r]
	if !ok || g.References[i].Definition < 0 {
		return Definition{}, false
	}
	return g.Definitions[g.References[i].Definition], true
}

// IsLocal reports whether r is a local definition or a reference that
// resolved to one.
func (g *LocalGraph) IsLocal(r query.Range) bool {
	if _, ok := g.DefinitionAt(r); ok {
		return true
	}
	_, ok := g.Resolve(r)
	return ok
}

// Property answers the "local" key for #is? / #is-not? in the highlights pass.
func (g *LocalGraph) Property(key string, node query.Node) (bool, bool) {
	if key != "local" {
		return false, false
	}
	return g.IsLocal(query.RangeOf(node)), true
}

type localEvent struct {
	kind     int // 0 scope, 1 definition, 2 reference
	rng      query.Range
	name     string
	defKind  string
	inherits bool
}

// BuildLocals runs the first pass: scopes, definitions and references from
// the matches of a locals query. A reference resolves to the nearest
// definition of the same name declared before it in an enclosing scope;
// lookup does not continue past a scope marked local.scope-inherits false.
func BuildLocals(matches []query.Match, source []byte) *LocalGraph {
	g := &LocalGraph{
		Scopes: []Scope{{Range: query.Range{Start: 0, End: uint32(len(source))}, Inherits: false, Parent: -1}},
		defAt:  make(map[query.Range]int),
		refAt:  make(map[query.Range]int),
	}

	var events []localEvent
	for _, m := range matches {
		for _, c := range m.Captures {
			rng := query.RangeOf(c.Node)
			switch {
			case c.Name == CaptureScope:
				inherits := true
				if v, ok := m.Property(c.Name, propScopeInherits); ok && v == "false" {
					inherits = false
				}
				events = append(events, localEvent{kind: 0, rng: rng, inherits: inherits})
			case c.Name == CaptureDefinition || strings.HasPrefix(c.Name, CaptureDefinition+"."):
				events = append(events, localEvent{
					kind:    1,
					rng:     rng,
					name:    query.Text(c.Node, source),
					defKind: strings.TrimPrefix(strings.TrimPrefix(c.Name, CaptureDefinition), "."),
				})
			case c.Name == CaptureReference:
				events = append(events, localEvent{kind: 2, rng: rng, name: query.Text(c.Node, source)})
			}
		}
	}
	// Outer scopes open before the definitions and references they contain.
	sort.SliceStable(events, func(i, j int) bool {
		a, b := events[i], events[j]
		if a.rng.Start != b.rng.Start {
			return a.rng.Start < b.rng.Start
		}
		if a.rng.End != b.rng.End {
			return a.rng.End > b.rng.End
		}
		return a.kind < b.kind
	})

	// defsByScope maps a scope to its definitions by name, latest last.
	defsByScope := map[int]map[string][]int{}
	stack := []int{0}
	for _, ev := range events {
		for len(stack) > 1 && g.Scopes[stack[len(stack)-1]].Range.End <= ev.rng.Start {
			stack = stack[:len(stack)-1]
		}
		current := stack[len(stack)-1]

		switch ev.kind {
		case 0:
			g.Scopes = append(g.Scopes, Scope{Range: ev.rng, Inherits: ev.inherits, Parent: current})
			stack = append(stack, len(g.Scopes)-1)
		case 1:
			if _, dup := g.defAt[ev.rng]; dup {
				continue
			}
			idx := len(g.Definitions)
			g.Definitions = append(g.Definitions, Definition{Name: ev.name, Kind: ev.defKind, Range: ev.rng, Scope: current})
			g.defAt[ev.rng] = idx
			if defsByScope[current] == nil {
				defsByScope[current] = map[string][]int{}
			}
			defsByScope[current][ev.name] = append(defsByScope[current][ev.name], idx)
		case 2:
			if _, isDef := g.defAt[ev.rng]; isDef {
				continue
			}
			if _, dup := g.refAt[ev.rng]; dup {
				continue
			}
			ref := Reference{Name: ev.name, Range: ev.rng, Scope: current, Definition: -1}
			for s := current; s >= 0; s = g.Scopes[s].Parent {
				if defs := defsByScope[s][ev.name]; len(defs) > 0 {
					ref.Definition = defs[len(defs)-1]
					break
				}
				if !g.Scopes[s].Inherits {
					break
				}
			}
			g.refAt[ev.rng] = len(g.References)
			g.References = append(g.References, ref)
		}
	}
	return g
}
