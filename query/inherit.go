package query

import (
	"errors"
	"fmt"
)

// ResolveInherits loads the query file for language and every base it
// names through "; inherits:" headers, recursively. The result is ordered
// bases first so that declaration order is priority order. A base shared by
// several parents is included once, at its first position.
//
// A cycle fails with *InheritanceCycleError. A missing base is reported as a
// LoadError diagnostic and skipped; a missing file for language itself
// returns an error wrapping ErrNotFound.
func ResolveInherits(loader Loader, language, concern string) ([]Source, Diagnostics, error) {
	r := &inheritResolver{
		loader:   loader,
		concern:  concern,
		root:     language,
		visiting: make(map[string]bool),
		done:     make(map[string]bool),
	}
	if err := r.visit(language, nil); err != nil {
		return nil, r.diags, err
	}
	return r.sources, r.diags, nil
}

type inheritResolver struct {
	loader   Loader
	concern  string
	root     string
	visiting map[string]bool
	done     map[string]bool
	sources  []Source
	diags    Diagnostics
}

func (r *inheritResolver) visit(language string, path []string) error {
	path = append(path, language)
	if r.visiting[language] {
		return &InheritanceCycleError{Language: r.root, Concern: r.concern, Path: append([]string(nil), path...)}
	}
	if r.done[language] {
		return nil
	}

	text, err := r.loader.Load(language, r.concern)
	if err != nil {
		if len(path) == 1 {
			return fmt.Errorf("load %s/%s: %w", language, r.concern, err)
		}
		r.diags = append(r.diags, Diagnostic{
			Kind:     KindLoad,
			Severity: SeverityError,
			Language: language,
			Concern:  r.concern,
			Pattern:  -1,
			Message:  fmt.Sprintf("base %q inherited by %q: %v", language, path[len(path)-2], err),
			Err:      err,
		})
		return nil
	}

	r.visiting[language] = true
	for _, base := range ParseInherits(text) {
		if err := r.visit(base, path); err != nil {
			return err
		}
	}
	r.visiting[language] = false
	r.done[language] = true
	r.sources = append(r.sources, Source{Language: language, Text: text})
	return nil
}

// IsNotFound reports whether err means a query file does not exist.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }
