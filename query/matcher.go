package query

import (
	"context"
)

// Capture is one node bound to a capture name.
type Capture struct {
	Name string
	Node Node

	cursor Cursor
}

// Cursor returns an independent cursor positioned at the captured node.
func (c Capture) Cursor() Cursor { return c.cursor.Clone() }

// Match is one successful match of a pattern that passed its predicates.
type Match struct {
	// Pattern is the priority index of the matched pattern.
	Pattern int
	// Captures are in binding order, which is source order for a pattern
	// without alternation.
	Captures []Capture
	// Properties holds #set! key/value pairs without a capture argument.
	Properties map[string]string
	// CaptureProperties holds #set! pairs scoped to a capture name.
	CaptureProperties map[string]map[string]string

	bound map[string][]Node
}

// Nodes returns the nodes bound to name in order. A declared capture that
// bound nothing returns an empty, non-nil list.
func (m *Match) Nodes(name string) []Node { return m.bound[name] }

// Has reports whether name is a capture declared by the matched pattern.
func (m *Match) Has(name string) bool {
	_, ok := m.bound[name]
	return ok
}

// Property returns a #set! value, checking capture-scoped properties first.
func (m *Match) Property(capture, key string) (string, bool) {
	if capture != "" {
		if v, ok := m.CaptureProperties[capture][key]; ok {
			return v, true
		}
	}
	v, ok := m.Properties[key]
	return v, ok
}

// ExecOptions controls a matching pass.
type ExecOptions struct {
	// Range restricts matching to nodes intersecting it. Nil means the whole tree.
	Range *Range
	// Properties answers #is? lookups not settled by #set! metadata.
	Properties PropertyContext
}

// binding is a persistent capture list; extending it never disturbs the
// lists held by other backtracking branches.
type binding struct {
	name   string
	cursor Cursor
	prev   *binding
}

func (b *binding) push(names []string, c Cursor) *binding {
	for _, name := range names {
		b = &binding{name: name, cursor: c, prev: b}
	}
	return b
}

type gapMode uint8

const (
	gapAny       gapMode = iota // any siblings may be skipped
	gapAnonymous                // only anonymous siblings may be skipped
	gapNone                     // the next sibling must match
)

// Exec runs the query over the tree below root and returns the matches in
// traversal order, pattern index order within a node. The context is
// checked between nodes.
func (q *Query) Exec(ctx context.Context, root Cursor, source []byte, opts ExecOptions) ([]Match, error) {
	e := &executor{q: q, source: source, opts: opts, ctx: ctx}
	if err := e.visit([]Cursor{root.Clone()}, 0, nil); err != nil {
		return nil, err
	}
	return e.matches, nil
}

type executor struct {
	q       *Query
	source  []byte
	opts    ExecOptions
	ctx     context.Context
	visited int
	matches []Match

	// frames numbers sibling sequences; reached counts calls of a root
	// continuation. failed records sequence states that failed without
	// reaching it, which makes the failure independent of the bindings.
	frames  int
	reached int
	failed  map[seqState]struct{}
}

// seqState is a position inside one sibling sequence: the remaining
// elements, the next sibling and the gap allowed before it.
type seqState struct {
	frame int
	rest  int
	at    int
	gap   gapMode
}

// visit matches every candidate pattern at sibs[idx] and then descends.
// blocked marks patterns that matched at an ancestor and so may not match
// again inside it.
func (e *executor) visit(sibs []Cursor, idx int, blocked map[int]bool) error {
	e.visited++
	if e.visited%1024 == 0 {
		if err := e.ctx.Err(); err != nil {
			return err
		}
	}

	c := sibs[idx]
	node := c.Node()
	if r := e.opts.Range; r != nil && (node.EndByte() < r.Start || node.StartByte() >= r.End) {
		return nil
	}

	childBlocked := blocked
	copied := false
	for _, pi := range e.q.candidates(Intern(node.Type())) {
		if blocked[pi] {
			continue
		}
		cp := e.q.patterns[pi]
		if cp.never {
			continue
		}
		m, ok := e.matchRoot(cp, sibs, idx)
		if !ok {
			continue
		}
		e.matches = append(e.matches, m)
		if !copied {
			childBlocked = make(map[int]bool, len(blocked)+1)
			for k := range blocked {
				childBlocked[k] = true
			}
			copied = true
		}
		childBlocked[pi] = true
	}

	children := childrenOf(c)
	for i := range children {
		if err := e.visit(children, i, childBlocked); err != nil {
			return err
		}
	}
	return nil
}

// matchRoot attempts cp at sibs[idx]. Predicates run inside the
// continuation, so an alignment they reject makes the matcher try the next.
func (e *executor) matchRoot(cp *CompiledPattern, sibs []Cursor, idx int) (Match, bool) {
	e.failed = nil
	var m Match
	k := func(b *binding, _ int) bool {
		e.reached++
		m = e.buildMatch(cp, b)
		for _, pred := range cp.Predicates {
			if pred.op == opSet {
				pred.apply(&m)
			}
		}
		for _, pred := range cp.Predicates {
			if !pred.eval(&m, e.source, e.opts.Properties) {
				return false
			}
		}
		return true
	}

	root := cp.Root
	var ok bool
	switch {
	case root.Kind == PatternGroup && !root.IsQuantified():
		ok = e.seq(root.Children, sibs, idx, gapNone, nil, func(b *binding, next int) bool {
			return k(e.bindRange(root.Captures, sibs, idx, next, b), next)
		})
	default:
		ok = e.seq([]*Pattern{root}, sibs, idx, gapNone, nil, k)
	}
	if !ok {
		return Match{}, false
	}
	return m, true
}

func (e *executor) buildMatch(cp *CompiledPattern, b *binding) Match {
	var rev []*binding
	for ; b != nil; b = b.prev {
		rev = append(rev, b)
	}
	m := Match{
		Pattern:  cp.Index,
		Captures: make([]Capture, 0, len(rev)),
		bound:    make(map[string][]Node, len(cp.Captures)),
	}
	for _, name := range cp.Captures {
		m.bound[name] = []Node{}
	}
	for i := len(rev) - 1; i >= 0; i-- {
		node := rev[i].cursor.Node()
		m.Captures = append(m.Captures, Capture{Name: rev[i].name, Node: node, cursor: rev[i].cursor})
		m.bound[rev[i].name] = append(m.bound[rev[i].name], node)
	}
	return m
}

// seq starts a new sibling sequence; see matchSeq.
func (e *executor) seq(elems []*Pattern, sibs []Cursor, i int, gap gapMode, b *binding, k func(*binding, int) bool) bool {
	e.frames++
	return e.matchSeq(e.frames, elems, sibs, i, gap, b, k)
}

// matchSeq matches elems against sibs starting at i. gap governs how the
// first element may be placed; later elements may skip siblings unless an
// anchor precedes them. k receives the extended captures and the index
// after the last consumed sibling; returning true accepts the match. Every
// call within a frame shares the same k.
func (e *executor) matchSeq(frame int, elems []*Pattern, sibs []Cursor, i int, gap gapMode, b *binding, k func(*binding, int) bool) bool {
	state := seqState{frame: frame, rest: len(elems), at: i, gap: gap}
	if _, ok := e.failed[state]; ok {
		return false
	}
	reached := e.reached
	if e.stepSeq(frame, elems, sibs, i, gap, b, k) {
		return true
	}
	if e.reached == reached {
		if e.failed == nil {
			e.failed = make(map[seqState]struct{})
		}
		e.failed[state] = struct{}{}
	}
	return false
}

func (e *executor) stepSeq(frame int, elems []*Pattern, sibs []Cursor, i int, gap gapMode, b *binding, k func(*binding, int) bool) bool {
	if len(elems) == 0 {
		if gap == gapAnonymous {
			// A trailing anchor: nothing named may follow.
			for _, s := range sibs[i:] {
				if s.Node().IsNamed() {
					return false
				}
			}
		}
		return k(b, i)
	}

	el := elems[0]
	if el.Kind == PatternAnchor {
		if gap == gapAny {
			gap = gapAnonymous
		}
		return e.matchSeq(frame, elems[1:], sibs, i, gap, b, k)
	}
	rest := func(b *binding, next int) bool {
		return e.matchSeq(frame, elems[1:], sibs, next, gapAny, b, k)
	}
	if el.IsQuantified() {
		return e.matchRepeat(el, sibs, i, gap, 0, b, rest)
	}
	return e.matchOnce(el, sibs, i, gap, b, rest)
}

// matchRepeat consumes repetitions of el greedily, backing off one at a time
// when the rest of the sequence fails.
func (e *executor) matchRepeat(el *Pattern, sibs []Cursor, i int, gap gapMode, count int, b *binding, k func(*binding, int) bool) bool {
	max := el.Quantifier.max()
	if max < 0 || count < max {
		more := e.matchOnce(el, sibs, i, gap, b, func(b2 *binding, next int) bool {
			if next == i {
				return false
			}
			return e.matchRepeat(el, sibs, next, gapAnonymous, count+1, b2, k)
		})
		if more {
			return true
		}
	}
	if count < el.Quantifier.min() {
		return false
	}
	return k(b, i)
}

// matchOnce matches a single occurrence of el, trying each admissible
// starting sibling in order.
func (e *executor) matchOnce(el *Pattern, sibs []Cursor, i int, gap gapMode, b *binding, k func(*binding, int) bool) bool {
	for j := i; j < len(sibs); j++ {
		if j > i {
			switch gap {
			case gapNone:
				return false
			case gapAnonymous:
				if sibs[j-1].Node().IsNamed() {
					return false
				}
			}
		}
		if el.Kind == PatternGroup {
			start := j
			if e.seq(el.Children, sibs, j, gapNone, b, func(b2 *binding, next int) bool {
				return k(e.bindRange(el.Captures, sibs, start, next, b2), next)
			}) {
				return true
			}
			continue
		}
		if el.Field != "" && sibs[j].FieldName() != el.Field {
			continue
		}
		next := j + 1
		if e.matchNode(el, sibs[j], b, func(b2 *binding) bool { return k(b2, next) }) {
			return true
		}
	}
	return false
}

// bindRange binds group captures to the named nodes of sibs[start:end].
func (e *executor) bindRange(names []string, sibs []Cursor, start, end int, b *binding) *binding {
	if len(names) == 0 {
		return b
	}
	for _, s := range sibs[start:end] {
		if s.Node().IsNamed() {
			b = b.push(names, s)
		}
	}
	return b
}

// matchNode matches el against the single node at c, ignoring quantifier
// and field, and binds el's captures before those of its children.
func (e *executor) matchNode(el *Pattern, c Cursor, b *binding, k func(*binding) bool) bool {
	node := c.Node()
	switch el.Kind {
	case PatternAnonymous:
		if node.IsNamed() || node.Type() != el.Type {
			return false
		}
		return k(b.push(el.Captures, c))
	case PatternWildcard:
		if el.NamedOnly && !node.IsNamed() {
			return false
		}
	case PatternNamedNode:
		if !node.IsNamed() || Intern(node.Type()) != el.sym {
			return false
		}
	case PatternAlternation:
		for _, branch := range el.Children {
			if branch.Field != "" && c.FieldName() != branch.Field {
				continue
			}
			if e.matchNode(branch, c, b, func(b2 *binding) bool {
				return k(b2.push(el.Captures, c))
			}) {
				return true
			}
		}
		return false
	case PatternGroup:
		// A group only makes sense as a sibling sequence of length one here.
		elems := el.Children
		return e.seq(elems, []Cursor{c}, 0, gapNone, b.push(el.Captures, c), func(b2 *binding, next int) bool {
			return next == 1 && k(b2)
		})
	default:
		return false
	}

	b = b.push(el.Captures, c)
	var elems []*Pattern
	for _, child := range el.Children {
		if child.Kind == PatternNegatedField {
			if hasField(c, child.Field) {
				return false
			}
			continue
		}
		elems = append(elems, child)
	}
	if len(elems) == 0 {
		return k(b)
	}
	return e.seq(elems, childrenOf(c), 0, gapAny, b, func(b2 *binding, _ int) bool {
		return k(b2)
	})
}

func hasField(c Cursor, field string) bool {
	walker := c.Clone()
	if !walker.GotoFirstChild() {
		return false
	}
	for {
		if walker.FieldName() == field {
			return true
		}
		if !walker.GotoNextSibling() {
			return false
		}
	}
}
