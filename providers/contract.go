package providers

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/oxhq/scopeq/providers/catalog"
	"github.com/oxhq/scopeq/query"
)

// Provider interface for language-specific implementations
type Provider interface {
	// Metadata
	Language() string
	Aliases() []string
	Extensions() []string

	// Query files and the node type table they are checked against.
	Queries() query.Loader
	Grammar() query.Grammar

	// Core operations
	Parse(ctx context.Context, source []byte) (query.Cursor, error)
	Validate(ctx context.Context, source []byte) ValidationResult

	// Observability
	Stats() Stats
}

// ValidationResult from syntax check
type ValidationResult struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors,omitempty"`
}

// Registry manages all providers. It parses documents for the highlighter
// and serves every provider's query files through one loader.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
	extra     []query.Loader
}

// NewRegistry creates provider registry
func NewRegistry() *Registry {
	return &Registry{
		providers: make(map[string]Provider),
	}
}

// Register adds a provider
func (r *Registry) Register(provider Provider) {
	r.mu.Lock()
	r.providers[provider.Language()] = provider
	r.mu.Unlock()
	catalog.Register(catalog.LanguageInfo{
		ID:         provider.Language(),
		Aliases:    provider.Aliases(),
		Extensions: provider.Extensions(),
	})
}

// RegisterQueries adds query files that are searched before the providers'
// own, for overriding bundled queries or adding shared bases.
func (r *Registry) RegisterQueries(loader query.Loader) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.extra = append(r.extra, loader)
}

// Get retrieves provider by language name or alias
func (r *Registry) Get(language string) (Provider, bool) {
	if id, ok := catalog.Normalize(language); ok {
		language = id
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, exists := r.providers[language]
	return p, exists
}

// List returns all providers sorted by language
func (r *Registry) List() []Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]Provider, 0, len(r.providers))
	for _, p := range r.providers {
		result = append(result, p)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Language() < result[j].Language() })
	return result
}

// Languages returns all registered language identifiers
func (r *Registry) Languages() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	langs := make([]string, 0, len(r.providers))
	for k := range r.providers {
		langs = append(langs, k)
	}
	sort.Strings(langs)
	return langs
}

// Parse implements the highlighter's parser contract.
func (r *Registry) Parse(ctx context.Context, language string, source []byte) (query.Cursor, error) {
	p, ok := r.Get(language)
	if !ok {
		return nil, fmt.Errorf("%w: %s", query.ErrUnknownLanguage, language)
	}
	return p.Parse(ctx, source)
}

// SyntaxErrors lists the syntax errors of source. It is nil for valid
// documents.
func (r *Registry) SyntaxErrors(ctx context.Context, language string, source []byte) ([]string, error) {
	p, ok := r.Get(language)
	if !ok {
		return nil, fmt.Errorf("%w: %s", query.ErrUnknownLanguage, language)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	result := p.Validate(ctx, source)
	if result.Valid {
		return nil, nil
	}
	return result.Errors, nil
}

// Prune drops expired parse trees from every provider that caches them and
// returns how many were removed.
func (r *Registry) Prune() int {
	removed := 0
	for _, p := range r.List() {
		if c, ok := p.(interface{ PruneCache() int }); ok {
			removed += c.PruneCache()
		}
	}
	return removed
}

// Load implements query.Loader over every registered provider. The
// language's own provider is asked first; the others are searched after it
// so that bases embedded by one provider, such as ecma, resolve too.
func (r *Registry) Load(language, concern string) (string, error) {
	r.mu.RLock()
	loaders := append(make(query.MultiLoader, 0, len(r.extra)+len(r.providers)), r.extra...)
	if p, ok := r.providers[language]; ok {
		loaders = append(loaders, p.Queries())
	}
	others := make([]string, 0, len(r.providers))
	for id := range r.providers {
		if id != language {
			others = append(others, id)
		}
	}
	sort.Strings(others)
	for _, id := range others {
		loaders = append(loaders, r.providers[id].Queries())
	}
	r.mu.RUnlock()
	return loaders.Load(language, concern)
}

// Grammar returns the node type table of language, or nil.
func (r *Registry) Grammar(language string) query.Grammar {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if p, ok := r.providers[language]; ok {
		return p.Grammar()
	}
	return nil
}

// Stats captures parser-pool level metrics exposed by providers.
type Stats struct {
	BorrowCount int64 `json:"borrow_count"`
	ReturnCount int64 `json:"return_count"`
	Active      int64 `json:"active"`
	CacheHits   int64 `json:"cache_hits,omitempty"`
	CacheMisses int64 `json:"cache_misses,omitempty"`
}
