package base

import (
	"sync"
	"sync/atomic"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/oxhq/scopeq/providers"
)

// ParserPool hands out parsers for one language. A tree-sitter parser must
// not be used by two goroutines at once, so every parse borrows its own.
type ParserPool struct {
	lang    *sitter.Language
	pool    sync.Pool
	borrows atomic.Int64
	returns atomic.Int64
}

// NewParserPool creates a pool of parsers set to lang.
func NewParserPool(lang *sitter.Language) *ParserPool {
	p := &ParserPool{lang: lang}
	p.pool.New = func() any {
		parser := sitter.NewParser()
		parser.SetLanguage(lang)
		return parser
	}
	return p
}

// Get borrows a parser. It must be handed back with Put.
func (p *ParserPool) Get() *sitter.Parser {
	p.borrows.Add(1)
	return p.pool.Get().(*sitter.Parser)
}

// Put returns a borrowed parser.
func (p *ParserPool) Put(parser *sitter.Parser) {
	parser.Reset()
	p.returns.Add(1)
	p.pool.Put(parser)
}

// Stats reports borrow counters.
func (p *ParserPool) Stats() providers.Stats {
	borrowed, returned := p.borrows.Load(), p.returns.Load()
	return providers.Stats{
		BorrowCount: borrowed,
		ReturnCount: returned,
		Active:      borrowed - returned,
	}
}
