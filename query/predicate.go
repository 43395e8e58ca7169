package query

import (
	"fmt"
	"regexp"
)

// PropertyContext answers #is? / #is-not? lookups that the match metadata
// does not settle. known=false means the property is not set for node.
type PropertyContext interface {
	Property(key string, node Node) (value bool, known bool)
}

// PropertyFunc adapts a function to PropertyContext.
type PropertyFunc func(key string, node Node) (bool, bool)

func (f PropertyFunc) Property(key string, node Node) (bool, bool) { return f(key, node) }

type predicateOp uint8

const (
	opInert predicateOp = iota
	opEq
	opNotEq
	opAnyEq
	opAnyNotEq
	opMatch
	opNotMatch
	opAnyMatch
	opAnyNotMatch
	opAnyOf
	opNotAnyOf
	opIs
	opIsNot
	opSet
	opFalse
)

var predicateOps = map[string]predicateOp{
	"#eq?":            opEq,
	"#not-eq?":        opNotEq,
	"#any-eq?":        opAnyEq,
	"#any-not-eq?":    opAnyNotEq,
	"#match?":         opMatch,
	"#not-match?":     opNotMatch,
	"#any-match?":     opAnyMatch,
	"#any-not-match?": opAnyNotMatch,
	"#any-of?":        opAnyOf,
	"#not-any-of?":    opNotAnyOf,
	"#is?":            opIs,
	"#is-not?":        opIsNot,
	"#set!":           opSet,
}

// CompiledPredicate is a predicate with its operator resolved and its regex
// or literal set prepared.
type CompiledPredicate struct {
	Predicate
	op     predicateOp
	re     *regexp.Regexp
	values map[string]struct{}
}

// Inert reports whether the predicate was compiled as always-true because the
// operator is not recognised.
func (cp *CompiledPredicate) Inert() bool { return cp.op == opInert }

// compilePredicate validates one predicate against the pattern's declared
// captures. A non-nil *SyntaxError or undeclared capture name rejects the
// whole pattern; warnings leave it usable.
func compilePredicate(p Predicate, declared map[string]bool) (*CompiledPredicate, *Diagnostic, error) {
	for _, a := range p.Args {
		if a.IsCapture() && !declared[a.Capture] {
			return nil, nil, fmt.Errorf("predicate %s references undeclared capture @%s", p.Operator, a.Capture)
		}
	}

	op, known := predicateOps[p.Operator]
	cp := &CompiledPredicate{Predicate: p, op: op}
	if !known {
		return &CompiledPredicate{Predicate: p, op: opInert}, &Diagnostic{
			Kind:     KindUnknownPredicate,
			Severity: SeverityWarning,
			Offset:   p.Offset,
			Message:  fmt.Sprintf("unknown predicate %s ignored", p.Operator),
		}, nil
	}

	invalid := func(detail string) (*CompiledPredicate, *Diagnostic, error) {
		return nil, nil, &SyntaxError{Offset: p.Offset, Kind: SyntaxInvalidPredicate, Detail: p.Operator + ": " + detail}
	}

	switch op {
	case opEq, opNotEq, opAnyEq, opAnyNotEq:
		if len(p.Args) != 2 || !p.Args[0].IsCapture() {
			return invalid("expected a capture and a capture or string")
		}
	case opMatch, opNotMatch, opAnyMatch, opAnyNotMatch:
		if len(p.Args) != 2 || !p.Args[0].IsCapture() || p.Args[1].IsCapture() {
			return invalid("expected a capture and a regex string")
		}
		re, err := regexp.Compile(p.Args[1].Literal)
		if err != nil {
			cp.op = opFalse
			return cp, &Diagnostic{
				Kind:     KindRegexCompile,
				Severity: SeverityWarning,
				Offset:   p.Offset,
				Message:  err.Error(),
				Err:      &RegexCompileError{Pattern: p.Args[1].Literal, Err: err},
			}, nil
		}
		cp.re = re
	case opAnyOf, opNotAnyOf:
		if len(p.Args) < 2 || !p.Args[0].IsCapture() {
			return invalid("expected a capture and at least one string")
		}
		cp.values = make(map[string]struct{}, len(p.Args)-1)
		for _, a := range p.Args[1:] {
			if a.IsCapture() {
				return invalid("set members must be strings")
			}
			cp.values[a.Literal] = struct{}{}
		}
	case opIs, opIsNot:
		key := p.Args
		if len(key) > 0 && key[0].IsCapture() {
			key = key[1:]
		}
		if len(key) == 0 || len(key) > 2 || key[0].IsCapture() {
			return invalid("expected [@capture] key [value]")
		}
	case opSet:
		rest := p.Args
		if len(rest) > 0 && rest[0].IsCapture() {
			rest = rest[1:]
		}
		if len(rest) == 0 || len(rest) > 2 {
			return invalid("expected [@capture] key [value]")
		}
		for _, a := range rest {
			if a.IsCapture() {
				return invalid("key and value must be literals")
			}
		}
	}
	return cp, nil, nil
}

// directive splits a #set!/#is? argument list into its optional capture,
// key and value.
func directive(args []PredicateArg) (capture, key, value string, hasValue bool) {
	if len(args) > 0 && args[0].IsCapture() {
		capture = args[0].Capture
		args = args[1:]
	}
	if len(args) > 0 {
		key = args[0].Literal
	}
	if len(args) > 1 {
		value, hasValue = args[1].Literal, true
	}
	return capture, key, value, hasValue
}

// apply records #set! metadata on the match.
func (cp *CompiledPredicate) apply(m *Match) {
	capture, key, value, _ := directive(cp.Args)
	if capture == "" {
		if m.Properties == nil {
			m.Properties = make(map[string]string)
		}
		m.Properties[key] = value
		return
	}
	if m.CaptureProperties == nil {
		m.CaptureProperties = make(map[string]map[string]string)
	}
	props := m.CaptureProperties[capture]
	if props == nil {
		props = make(map[string]string)
		m.CaptureProperties[capture] = props
	}
	props[key] = value
}

// eval reports whether the match satisfies the filtering predicate.
// #set! metadata must already be applied so #is? can read it.
func (cp *CompiledPredicate) eval(m *Match, source []byte, props PropertyContext) bool {
	switch cp.op {
	case opInert, opSet:
		return true
	case opFalse:
		return false
	case opEq, opNotEq, opAnyEq, opAnyNotEq:
		nodes := m.Nodes(cp.Args[0].Capture)
		var want string
		if rhs := cp.Args[1]; rhs.IsCapture() {
			other := m.Nodes(rhs.Capture)
			if len(other) == 0 {
				return quantify(cp.op == opEq || cp.op == opNotEq, nil, nil)
			}
			want = Text(other[0], source)
		} else {
			want = cp.Args[1].Literal
		}
		negate := cp.op == opNotEq || cp.op == opAnyNotEq
		return quantify(cp.op == opEq || cp.op == opNotEq, nodes, func(n Node) bool {
			return (Text(n, source) == want) != negate
		})
	case opMatch, opNotMatch, opAnyMatch, opAnyNotMatch:
		negate := cp.op == opNotMatch || cp.op == opAnyNotMatch
		return quantify(cp.op == opMatch || cp.op == opNotMatch, m.Nodes(cp.Args[0].Capture), func(n Node) bool {
			return cp.re.MatchString(Text(n, source)) != negate
		})
	case opAnyOf, opNotAnyOf:
		negate := cp.op == opNotAnyOf
		return quantify(true, m.Nodes(cp.Args[0].Capture), func(n Node) bool {
			_, ok := cp.values[Text(n, source)]
			return ok != negate
		})
	case opIs:
		return cp.isSet(m, props)
	case opIsNot:
		return !cp.isSet(m, props)
	}
	return true
}

// quantify applies check to nodes. all=true is the plain form: every node
// must pass and an empty list passes. all=false is the any-form: at least
// one node must pass.
func quantify(all bool, nodes []Node, check func(Node) bool) bool {
	if len(nodes) == 0 {
		return all
	}
	for _, n := range nodes {
		ok := check(n)
		if all && !ok {
			return false
		}
		if !all && ok {
			return true
		}
	}
	return all
}

// isSet resolves a property from #set! metadata first and the property
// context second. A property neither of them knows is not set.
func (cp *CompiledPredicate) isSet(m *Match, props PropertyContext) bool {
	capture, key, value, hasValue := directive(cp.Args)

	if capture != "" {
		if v, ok := m.CaptureProperties[capture][key]; ok {
			return !hasValue || v == value
		}
	} else if v, ok := m.Properties[key]; ok {
		return !hasValue || v == value
	}

	if props == nil {
		return false
	}
	var nodes []Node
	if capture != "" {
		nodes = m.Nodes(capture)
	} else {
		for _, c := range m.Captures {
			nodes = append(nodes, c.Node)
		}
	}
	if len(nodes) == 0 {
		return false
	}
	for _, n := range nodes {
		v, known := props.Property(key, n)
		if !known || !v {
			return false
		}
	}
	return true
}
