package query

import (
	"strings"
	"unique"
)

// PatternKind tags the variants of a pattern node.
type PatternKind uint8

const (
	PatternNamedNode    PatternKind = iota // (type children...)
	PatternWildcard                        // (_) or _
	PatternAlternation                     // [a b c]
	PatternAnchor                          // .
	PatternNegatedField                    // !field
	PatternAnonymous                       // "literal"
	PatternGroup                           // ((a) (b))
)

func (k PatternKind) String() string {
	switch k {
	case PatternNamedNode:
		return "node"
	case PatternWildcard:
		return "wildcard"
	case PatternAlternation:
		return "alternation"
	case PatternAnchor:
		return "anchor"
	case PatternNegatedField:
		return "negated-field"
	case PatternAnonymous:
		return "anonymous"
	case PatternGroup:
		return "group"
	default:
		return "unknown"
	}
}

// Quantifier controls how many sibling nodes a pattern may consume.
type Quantifier uint8

const (
	One Quantifier = iota
	ZeroOrMore
	OneOrMore
	Optional
)

func (q Quantifier) String() string {
	switch q {
	case ZeroOrMore:
		return "*"
	case OneOrMore:
		return "+"
	case Optional:
		return "?"
	default:
		return ""
	}
}

func (q Quantifier) min() int {
	if q == ZeroOrMore || q == Optional {
		return 0
	}
	return 1
}

func (q Quantifier) max() int {
	if q == ZeroOrMore || q == OneOrMore {
		return -1
	}
	return 1
}

// Symbol is an interned node-type handle. Grammars are open-ended, so node
// types stay strings and comparisons go through the handle.
type Symbol = unique.Handle[string]

// Intern returns the handle for a node type name.
func Intern(nodeType string) Symbol { return unique.Make(nodeType) }

// Pattern is one node of the pattern AST. It is immutable once the compiler
// has finished with it.
type Pattern struct {
	Kind PatternKind
	// Type is the node type for NamedNode and the literal text for Anonymous.
	Type string
	// Field names the parent field this pattern must occupy, or the field
	// required absent for NegatedField.
	Field string
	// NamedOnly distinguishes (_) from the bare _ wildcard.
	NamedOnly  bool
	Children   []*Pattern
	Quantifier Quantifier
	Captures   []string
	Offset     int

	sym   Symbol
	never bool
}

// IsQuantified reports whether the pattern can bind more or fewer than one node.
func (p *Pattern) IsQuantified() bool { return p.Quantifier != One }

// String renders the pattern back to query syntax.
func (p *Pattern) String() string {
	var b strings.Builder
	p.write(&b)
	return b.String()
}

func (p *Pattern) write(b *strings.Builder) {
	if p.Field != "" && p.Kind != PatternNegatedField {
		b.WriteString(p.Field)
		b.WriteString(": ")
	}
	switch p.Kind {
	case PatternNamedNode, PatternWildcard:
		if p.Kind == PatternWildcard && !p.NamedOnly {
			b.WriteString("_")
			break
		}
		b.WriteString("(")
		if p.Kind == PatternWildcard {
			b.WriteString("_")
		} else {
			b.WriteString(p.Type)
		}
		for _, c := range p.Children {
			b.WriteString(" ")
			c.write(b)
		}
		b.WriteString(")")
	case PatternGroup:
		b.WriteString("(")
		for i, c := range p.Children {
			if i > 0 {
				b.WriteString(" ")
			}
			c.write(b)
		}
		b.WriteString(")")
	case PatternAlternation:
		b.WriteString("[")
		for i, c := range p.Children {
			if i > 0 {
				b.WriteString(" ")
			}
			c.write(b)
		}
		b.WriteString("]")
	case PatternAnchor:
		b.WriteString(".")
	case PatternNegatedField:
		b.WriteString("!")
		b.WriteString(p.Field)
	case PatternAnonymous:
		b.WriteString(`"`)
		b.WriteString(strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`).Replace(p.Type))
		b.WriteString(`"`)
	}
	b.WriteString(p.Quantifier.String())
	for _, c := range p.Captures {
		b.WriteString(" @")
		b.WriteString(c)
	}
}

// walk visits p and all of its descendants in declaration order.
func (p *Pattern) walk(fn func(*Pattern)) {
	fn(p)
	for _, c := range p.Children {
		c.walk(fn)
	}
}

// PredicateArg is either a capture reference or a literal.
type PredicateArg struct {
	Capture string
	Literal string
}

// IsCapture reports whether the argument references a capture.
func (a PredicateArg) IsCapture() bool { return a.Capture != "" }

func (a PredicateArg) String() string {
	if a.IsCapture() {
		return "@" + a.Capture
	}
	return a.Literal
}

// Predicate is a parsed (#operator args...) form.
type Predicate struct {
	Operator string
	Args     []PredicateArg
	Offset   int
}

// ParsedPattern is one top-level form with the predicates attached to it.
type ParsedPattern struct {
	Root       *Pattern
	Predicates []Predicate
	Offset     int
	End        int
}

// File is the parse result for one query source.
type File struct {
	Inherits []string
	Patterns []ParsedPattern
	Errors   []*SyntaxError
}
