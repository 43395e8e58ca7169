package base

import (
	sitter "github.com/smacker/go-tree-sitter"
)

// Grammar answers node type lookups from a tree-sitter language's symbol
// table. Hidden rules are not part of it since they never appear in a tree.
type Grammar struct {
	named     map[string]struct{}
	anonymous map[string]struct{}
}

// NewGrammar reads the symbol table of lang.
func NewGrammar(lang *sitter.Language) *Grammar {
	g := &Grammar{
		named:     make(map[string]struct{}),
		anonymous: make(map[string]struct{}),
	}
	count := lang.SymbolCount()
	for i := uint32(0); i < count; i++ {
		sym := sitter.Symbol(i)
		name := lang.SymbolName(sym)
		switch lang.SymbolType(sym) {
		case sitter.SymbolTypeRegular:
			g.named[name] = struct{}{}
		case sitter.SymbolTypeAnonymous:
			g.anonymous[name] = struct{}{}
		}
	}
	return g
}

// HasNodeType reports whether the grammar can produce a node of that type.
func (g *Grammar) HasNodeType(name string, named bool) bool {
	if named {
		_, ok := g.named[name]
		return ok
	}
	_, ok := g.anonymous[name]
	return ok
}

// NodeTypes returns the number of named and anonymous node types.
func (g *Grammar) NodeTypes() (named, anonymous int) {
	return len(g.named), len(g.anonymous)
}
