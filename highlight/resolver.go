package highlight

import (
	"sort"
	"strings"

	"github.com/oxhq/scopeq/query"
)

// Span is a resolved, non-overlapping tagged byte range.
type Span struct {
	Range    query.Range `json:"range"`
	Tag      string      `json:"tag"`
	Priority int         `json:"priority"`
	Depth    int         `json:"depth"`
	Language string      `json:"language,omitempty"`
}

// localPriority outranks every declared pattern at equal span.
const localPriority = -1

type candidate struct {
	rng      query.Range
	tag      string
	priority int
	order    int
}

// beats decides which of two candidates covering the same byte wins.
// A strictly narrower span wins; otherwise the lower pattern index; then the
// earlier capture.
func (a candidate) beats(b candidate) bool {
	if b.rng.StrictlyContains(a.rng) {
		return true
	}
	if a.rng.StrictlyContains(b.rng) {
		return false
	}
	if a.priority != b.priority {
		return a.priority < b.priority
	}
	return a.order < b.order
}

// ResolveSpans runs the second pass: it turns highlight matches into
// non-overlapping spans. Captures named with a leading underscore are
// helpers and are not emitted. When locals is non-nil, a reference that
// resolved to a definition takes the definition's tag, overriding captures
// of exactly the reference's range.
func ResolveSpans(matches []query.Match, locals *LocalGraph) []Span {
	var cands []candidate
	for _, m := range matches {
		for _, c := range m.Captures {
			if strings.HasPrefix(c.Name, "_") {
				continue
			}
			rng := query.RangeOf(c.Node)
			if rng.Empty() {
				continue
			}
			cands = append(cands, candidate{rng: rng, tag: c.Name, priority: m.Pattern, order: len(cands)})
		}
	}
	if locals != nil {
		cands = append(cands, inheritLocalTags(cands, locals)...)
	}
	return resolveOverlaps(cands)
}

// inheritLocalTags returns candidates giving each resolved reference the tag
// its definition won.
func inheritLocalTags(cands []candidate, locals *LocalGraph) []candidate {
	best := make(map[query.Range]candidate)
	for _, c := range cands {
		if cur, ok := best[c.rng]; !ok || c.beats(cur) {
			best[c.rng] = c
		}
	}
	var out []candidate
	for _, ref := range locals.References {
		if ref.Definition < 0 {
			continue
		}
		def, ok := best[locals.Definitions[ref.Definition].Range]
		if !ok {
			continue
		}
		out = append(out, candidate{rng: ref.Range, tag: def.tag, priority: localPriority, order: -1})
	}
	return out
}

// resolveOverlaps sweeps the boundaries of all candidates and picks the
// winner for each elementary segment, merging adjacent segments won by the
// same capture.
func resolveOverlaps(cands []candidate) []Span {
	if len(cands) == 0 {
		return nil
	}
	sort.SliceStable(cands, func(i, j int) bool {
		if cands[i].rng.Start != cands[j].rng.Start {
			return cands[i].rng.Start < cands[j].rng.Start
		}
		return cands[i].rng.End > cands[j].rng.End
	})

	type event struct {
		pos   uint32
		start bool
		idx   int
	}
	events := make([]event, 0, len(cands)*2)
	for i, c := range cands {
		events = append(events, event{pos: c.rng.Start, start: true, idx: i}, event{pos: c.rng.End, idx: i})
	}
	sort.SliceStable(events, func(i, j int) bool {
		if events[i].pos != events[j].pos {
			return events[i].pos < events[j].pos
		}
		return !events[i].start && events[j].start
	})

	var spans []Span
	var active []int
	lastWin := -1
	for i := 0; i < len(events); {
		pos := events[i].pos
		for ; i < len(events) && events[i].pos == pos; i++ {
			ev := events[i]
			if ev.start {
				at := sort.SearchInts(active, ev.idx)
				active = append(active, 0)
				copy(active[at+1:], active[at:])
				active[at] = ev.idx
				continue
			}
			if at := sort.SearchInts(active, ev.idx); at < len(active) && active[at] == ev.idx {
				active = append(active[:at], active[at+1:]...)
			}
		}
		if len(active) == 0 || i == len(events) {
			continue
		}
		next := events[i].pos

		win := active[0]
		for _, idx := range active[1:] {
			if cands[idx].beats(cands[win]) {
				win = idx
			}
		}
		if n := len(spans); n > 0 && win == lastWin && spans[n-1].Range.End == pos {
			spans[n-1].Range.End = next
			continue
		}
		lastWin = win
		w := cands[win]
		spans = append(spans, Span{Range: query.Range{Start: pos, End: next}, Tag: w.tag, Priority: w.priority})
	}
	return spans
}
