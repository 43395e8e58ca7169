package catalog

import (
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// LanguageInfo captures metadata about a language provider.
type LanguageInfo struct {
	ID         string   `json:"id"`
	Aliases    []string `json:"aliases,omitempty"`
	Extensions []string `json:"extensions"`
}

var (
	mu      sync.RWMutex
	byLang  = make(map[string]LanguageInfo)
	byExt   = make(map[string]LanguageInfo)
	byAlias = make(map[string]string)
)

// Register stores language metadata for name and extension lookups.
// Subsequent registrations for the same language overwrite prior data to keep
// the catalog in sync with the latest provider definition.
func Register(info LanguageInfo) {
	if info.ID == "" {
		return
	}

	info.ID = strings.ToLower(info.ID)
	info.Extensions = uniqueExtensions(info.Extensions)
	info.Aliases = uniqueAliases(info.ID, info.Aliases)

	mu.Lock()
	defer mu.Unlock()

	byLang[info.ID] = info
	byAlias[info.ID] = info.ID
	for _, alias := range info.Aliases {
		byAlias[alias] = info.ID
	}
	for _, ext := range info.Extensions {
		byExt[ext] = info
	}
}

// Normalize resolves a language name or alias to its registered id. Names
// are matched case-insensitively; a file extension is accepted as well.
func Normalize(name string) (string, bool) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		return "", false
	}

	mu.RLock()
	defer mu.RUnlock()
	if id, ok := byAlias[key]; ok {
		return id, true
	}
	if info, ok := byExt["."+strings.TrimPrefix(key, ".")]; ok {
		return info.ID, true
	}
	return "", false
}

// Lookup returns the language info for a name or alias.
func Lookup(name string) (LanguageInfo, bool) {
	id, ok := Normalize(name)
	if !ok {
		return LanguageInfo{}, false
	}
	mu.RLock()
	defer mu.RUnlock()
	info, ok := byLang[id]
	return info, ok
}

// LookupByExtension returns the language info associated with a file extension.
func LookupByExtension(ext string) (LanguageInfo, bool) {
	mu.RLock()
	defer mu.RUnlock()
	info, ok := byExt[strings.ToLower(ext)]
	return info, ok
}

// LookupByPath returns the language of a file path by its extension.
func LookupByPath(path string) (LanguageInfo, bool) {
	return LookupByExtension(filepath.Ext(path))
}

// Languages returns all registered language infos sorted by language ID.
func Languages() []LanguageInfo {
	mu.RLock()
	defer mu.RUnlock()

	infos := make([]LanguageInfo, 0, len(byLang))
	for _, info := range byLang {
		infos = append(infos, info)
	}

	sort.Slice(infos, func(i, j int) bool {
		return infos[i].ID < infos[j].ID
	})
	return infos
}

func uniqueExtensions(exts []string) []string {
	seen := make(map[string]struct{})
	result := make([]string, 0, len(exts))
	for _, ext := range exts {
		normalized := strings.ToLower(strings.TrimSpace(ext))
		if normalized == "" {
			continue
		}
		if !strings.HasPrefix(normalized, ".") {
			normalized = "." + normalized
		}
		if _, ok := seen[normalized]; ok {
			continue
		}
		seen[normalized] = struct{}{}
		result = append(result, normalized)
	}
	return result
}

func uniqueAliases(id string, aliases []string) []string {
	seen := map[string]struct{}{id: {}}
	result := make([]string, 0, len(aliases))
	for _, alias := range aliases {
		normalized := strings.ToLower(strings.TrimSpace(alias))
		if normalized == "" {
			continue
		}
		if _, ok := seen[normalized]; ok {
			continue
		}
		seen[normalized] = struct{}{}
		result = append(result, normalized)
	}
	return result
}
