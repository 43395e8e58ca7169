package highlight

import (
	"fmt"
	"sort"
	"strings"

	"github.com/oxhq/scopeq/query"
)

// Injection property and capture names.
const (
	CaptureInjectionContent  = "injection.content"
	CaptureInjectionLanguage = "injection.language"
	legacyContent            = "content"
	legacyLanguage           = "language"

	propLanguage        = "injection.language"
	propCombined        = "injection.combined"
	propIncludeChildren = "injection.include-children"
	propSelf            = "injection.self"
	propParent          = "injection.parent"
)

// Injection describes a region of the host to be reparsed under another
// language. Ranges are in the coordinates of the layer the injection was
// found in until the highlighter maps them to the host document.
type Injection struct {
	Language        string        `json:"language"`
	Ranges          []query.Range `json:"ranges"`
	CombinationKey  string        `json:"combination_key,omitempty"`
	IncludeChildren bool          `json:"include_children"`
	Pattern         int           `json:"pattern"`
}

// InjectionContext carries what injection resolution needs to know about
// the layer being processed.
type InjectionContext struct {
	// Language of the layer; used by injection.self.
	Language string
	// Parent is the language of the enclosing layer; used by
	// injection.parent. Empty for the host document.
	Parent string
	// Normalize maps a language name or alias to a canonical name.
	Normalize func(name string) (string, bool)
}

// ResolveInjections turns matches of an injections query into descriptors.
// Matches with no language or no content are ignored. Matches whose
// combination key is equal are merged into one descriptor, in order.
func ResolveInjections(matches []query.Match, source []byte, ictx InjectionContext) []Injection {
	var out []Injection
	combined := make(map[string]int)

	for _, m := range matches {
		content := CaptureInjectionContent
		if !m.Has(content) {
			content = legacyContent
		}
		nodes := m.Nodes(content)
		if len(nodes) == 0 {
			continue
		}
		lang := injectionLanguage(&m, content, source, ictx)
		if lang == "" {
			continue
		}

		_, includeChildren := m.Property(content, propIncludeChildren)
		var ranges []query.Range
		for _, c := range m.Captures {
			if c.Name != content {
				continue
			}
			if includeChildren {
				ranges = append(ranges, query.RangeOf(c.Node))
				continue
			}
			ranges = append(ranges, ownRanges(c)...)
		}
		if len(ranges) == 0 {
			continue
		}

		key, isCombined := m.Property(content, propCombined)
		if !isCombined {
			out = append(out, Injection{Language: lang, Ranges: ranges, IncludeChildren: includeChildren, Pattern: m.Pattern})
			continue
		}
		if key == "" {
			key = fmt.Sprintf("%d:%s", m.Pattern, lang)
		}
		if i, ok := combined[key]; ok {
			out[i].Ranges = append(out[i].Ranges, ranges...)
			continue
		}
		combined[key] = len(out)
		out = append(out, Injection{
			Language:        lang,
			Ranges:          ranges,
			CombinationKey:  key,
			IncludeChildren: includeChildren,
			Pattern:         m.Pattern,
		})
	}

	for i := range out {
		sort.SliceStable(out[i].Ranges, func(a, b int) bool { return out[i].Ranges[a].Start < out[i].Ranges[b].Start })
	}
	return out
}

func injectionLanguage(m *query.Match, content string, source []byte, ictx InjectionContext) string {
	var name string
	if v, ok := m.Property(content, propLanguage); ok && v != "" {
		name = v
	} else if nodes := m.Nodes(CaptureInjectionLanguage); len(nodes) > 0 {
		name = query.Text(nodes[0], source)
	} else if nodes := m.Nodes(legacyLanguage); len(nodes) > 0 {
		name = query.Text(nodes[0], source)
	} else if _, ok := m.Property(content, propSelf); ok {
		return ictx.Language
	} else if _, ok := m.Property(content, propParent); ok {
		if ictx.Parent != "" {
			return ictx.Parent
		}
		return ictx.Language
	}

	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return ""
	}
	if ictx.Normalize != nil {
		if canonical, ok := ictx.Normalize(name); ok {
			return canonical
		}
	}
	return name
}

// ownRanges is the captured node's range minus the ranges of its named
// children.
func ownRanges(c query.Capture) []query.Range {
	whole := query.RangeOf(c.Node)
	cur := c.Cursor()
	if !cur.GotoFirstChild() {
		return []query.Range{whole}
	}
	var out []query.Range
	pos := whole.Start
	for {
		child := cur.Node()
		if child.IsNamed() {
			if child.StartByte() > pos {
				out = append(out, query.Range{Start: pos, End: child.StartByte()})
			}
			if child.EndByte() > pos {
				pos = child.EndByte()
			}
		}
		if !cur.GotoNextSibling() {
			break
		}
	}
	if whole.End > pos {
		out = append(out, query.Range{Start: pos, End: whole.End})
	}
	return out
}
