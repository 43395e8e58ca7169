package base

import (
	"context"
	"fmt"
	"sync"
	"time"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/oxhq/scopeq/providers"
	"github.com/oxhq/scopeq/query"
)

// LanguageConfig defines language-specific behavior that must be implemented
type LanguageConfig interface {
	// Metadata
	Language() string
	Aliases() []string
	Extensions() []string
	GetLanguage() *sitter.Language

	// Queries supplies the language's query files.
	Queries() query.Loader
}

// Provider provides common functionality for all language providers
type Provider struct {
	config LanguageConfig
	pool   *ParserPool
	cache  *TreeCache

	grammarOnce sync.Once
	grammar     *Grammar
}

// Option configures a Provider.
type Option func(*Provider)

// WithTreeCache keeps parsed trees for maxAge so identical documents are
// parsed once.
func WithTreeCache(maxAge time.Duration) Option {
	return func(p *Provider) { p.cache = NewTreeCache(maxAge) }
}

// New creates a base provider with language-specific config
func New(config LanguageConfig, opts ...Option) *Provider {
	lang := config.GetLanguage()
	if lang == nil {
		panic(fmt.Sprintf("Failed to load %s language for tree-sitter", config.Language()))
	}
	p := &Provider{
		config: config,
		pool:   NewParserPool(lang),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Language returns language identifier
func (p *Provider) Language() string {
	return p.config.Language()
}

// Aliases returns alternative names used in injections and on the command line
func (p *Provider) Aliases() []string {
	return p.config.Aliases()
}

// Extensions returns supported file extensions
func (p *Provider) Extensions() []string {
	return p.config.Extensions()
}

// Queries returns the loader for the language's query files
func (p *Provider) Queries() query.Loader {
	return p.config.Queries()
}

// Grammar returns the node type table of the language. It is built on first
// use.
func (p *Provider) Grammar() query.Grammar {
	p.grammarOnce.Do(func() {
		p.grammar = NewGrammar(p.config.GetLanguage())
	})
	return p.grammar
}

// Parse parses source and returns a cursor at the root of the tree.
func (p *Provider) Parse(ctx context.Context, source []byte) (query.Cursor, error) {
	tree, _, err := p.cache.GetOrParse(ctx, p.pool, source)
	if err != nil {
		return nil, fmt.Errorf("parse %s source: %w", p.Language(), err)
	}
	return NewCursor(tree.RootNode()), nil
}

// Validate checks syntax
func (p *Provider) Validate(ctx context.Context, source []byte) providers.ValidationResult {
	tree, _, err := p.cache.GetOrParse(ctx, p.pool, source)
	if err != nil {
		return providers.ValidationResult{
			Valid:  false,
			Errors: []string{"Failed to parse source: " + err.Error()},
		}
	}

	var errors []string
	p.findErrors(tree.RootNode(), &errors)

	return providers.ValidationResult{
		Valid:  len(errors) == 0,
		Errors: errors,
	}
}

// PruneCache drops expired trees from the tree cache.
func (p *Provider) PruneCache() int {
	return p.cache.Prune()
}

// Stats reports parser pool and tree cache counters.
func (p *Provider) Stats() providers.Stats {
	stats := p.pool.Stats()
	if p.cache != nil {
		cache := p.cache.Stats()
		stats.CacheHits = cache["hits"]
		stats.CacheMisses = cache["misses"]
	}
	return stats
}

// findErrors looks for syntax errors in AST
func (p *Provider) findErrors(node *sitter.Node, errors *[]string) {
	switch {
	case node.IsMissing():
		*errors = append(*errors, fmt.Sprintf(
			"Missing %s at line %d, column %d",
			node.Type(),
			node.StartPoint().Row+1,
			node.StartPoint().Column+1,
		))
	case node.Type() == "ERROR":
		*errors = append(*errors, fmt.Sprintf(
			"Syntax error at line %d, column %d",
			node.StartPoint().Row+1,
			node.StartPoint().Column+1,
		))
	}
	if !node.HasError() {
		return
	}

	for i := 0; i < int(node.ChildCount()); i++ {
		p.findErrors(node.Child(i), errors)
	}
}
