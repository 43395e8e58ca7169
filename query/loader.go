package query

import (
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sync"
)

// Loader supplies raw query text. The engine itself never touches the disk.
type Loader interface {
	// Load returns the text of the concern's query file for a language, or
	// an error wrapping ErrNotFound.
	Load(language, concern string) (string, error)
}

// FSLoader reads "<language>/<concern>.scm" from a file system, typically an
// embed.FS.
type FSLoader struct {
	FS   fs.FS
	Root string
}

func (l FSLoader) Load(language, concern string) (string, error) {
	name := path.Join(l.Root, language, concern+".scm")
	data, err := fs.ReadFile(l.FS, name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%s: %w", name, ErrNotFound)
		}
		return "", err
	}
	return string(data), nil
}

// MapLoader serves query text from memory, keyed by "<language>/<concern>".
type MapLoader map[string]string

func (m MapLoader) Load(language, concern string) (string, error) {
	text, ok := m[language+"/"+concern]
	if !ok {
		return "", fmt.Errorf("%s/%s: %w", language, concern, ErrNotFound)
	}
	return text, nil
}

// MultiLoader tries each loader in order and returns the first hit.
type MultiLoader []Loader

func (ml MultiLoader) Load(language, concern string) (string, error) {
	for _, l := range ml {
		text, err := l.Load(language, concern)
		if err == nil {
			return text, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return "", err
		}
	}
	return "", fmt.Errorf("%s/%s: %w", language, concern, ErrNotFound)
}

// GrammarFunc looks up the grammar for a language, or nil.
type GrammarFunc func(language string) Grammar

// Registry memoises compiled queries per language and concern. It is safe
// for concurrent use; a query set is compiled at most once until
// invalidated.
type Registry struct {
	loader   Loader
	grammars GrammarFunc

	mu      sync.RWMutex
	entries map[registryKey]*registryEntry
}

type registryKey struct {
	language string
	concern  string
}

type registryEntry struct {
	query *Query
	diags Diagnostics
	err   error
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithGrammars enables node-type validation using the grammar returned by fn.
func WithGrammars(fn GrammarFunc) RegistryOption {
	return func(r *Registry) { r.grammars = fn }
}

// NewRegistry creates a registry reading query files through loader.
func NewRegistry(loader Loader, opts ...RegistryOption) *Registry {
	r := &Registry{
		loader:  loader,
		entries: make(map[registryKey]*registryEntry),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Query returns the compiled query for (language, concern) together with
// the diagnostics of its compilation. An inheritance cycle or a missing
// file returns a nil query and an error; other problems are diagnostics.
func (r *Registry) Query(language, concern string) (*Query, Diagnostics, error) {
	key := registryKey{language, concern}

	r.mu.RLock()
	entry, ok := r.entries[key]
	r.mu.RUnlock()
	if ok {
		return entry.query, append(Diagnostics(nil), entry.diags...), entry.err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	// Double-check after acquiring the write lock.
	if entry, ok := r.entries[key]; ok {
		return entry.query, append(Diagnostics(nil), entry.diags...), entry.err
	}

	entry = r.compile(language, concern)
	r.entries[key] = entry
	return entry.query, append(Diagnostics(nil), entry.diags...), entry.err
}

func (r *Registry) compile(language, concern string) *registryEntry {
	sources, diags, err := ResolveInherits(r.loader, language, concern)
	if err != nil {
		var cycle *InheritanceCycleError
		if errors.As(err, &cycle) {
			diags = append(diags, Diagnostic{
				Kind:     KindInheritanceCycle,
				Severity: SeverityFatal,
				Language: language,
				Concern:  concern,
				Pattern:  -1,
				Message:  cycle.Error(),
				Err:      cycle,
			})
		}
		return &registryEntry{diags: diags, err: err}
	}

	opts := Options{Language: language, Concern: concern}
	if r.grammars != nil {
		opts.Grammar = r.grammars(language)
	}
	q, cdiags := CompileSources(sources, opts)
	return &registryEntry{query: q, diags: append(diags, cdiags...)}
}

// Invalidate drops every cached query of a language.
func (r *Registry) Invalidate(language string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for key := range r.entries {
		if key.language == language {
			delete(r.entries, key)
		}
	}
}
