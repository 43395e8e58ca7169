package highlight

import "github.com/oxhq/scopeq/query"

// segment maps [sub, sub+length) of a layer's source onto [host, host+length)
// of its parent.
type segment struct {
	sub    uint32
	host   uint32
	length uint32
}

// offsetMap translates layer offsets to parent offsets. Bytes outside every
// segment, such as the separators of a combined document, map nowhere.
type offsetMap []segment

// subDocument concatenates the source ranges of an injection, separated by
// newlines, and returns the mapping back to source offsets.
func subDocument(source []byte, ranges []query.Range) ([]byte, offsetMap) {
	var buf []byte
	var m offsetMap
	for i, r := range ranges {
		end := min(r.End, uint32(len(source)))
		if r.Start >= end {
			continue
		}
		if i > 0 && len(buf) > 0 {
			buf = append(buf, '\n')
		}
		m = append(m, segment{sub: uint32(len(buf)), host: r.Start, length: end - r.Start})
		buf = append(buf, source[r.Start:end]...)
	}
	return buf, m
}

// mapRange returns the parent ranges covered by r, split at segment
// boundaries. A nil map is the identity.
func (m offsetMap) mapRange(r query.Range) []query.Range {
	if m == nil {
		return []query.Range{r}
	}
	var out []query.Range
	for _, seg := range m {
		start := max(r.Start, seg.sub)
		end := min(r.End, seg.sub+seg.length)
		if start >= end {
			continue
		}
		out = append(out, query.Range{Start: seg.host + (start - seg.sub), End: seg.host + (end - seg.sub)})
	}
	return out
}

func (m offsetMap) mapRanges(rs []query.Range) []query.Range {
	var out []query.Range
	for _, r := range rs {
		out = append(out, m.mapRange(r)...)
	}
	return out
}

// compose returns a map from inner's layer straight to m's parent.
func (m offsetMap) compose(inner offsetMap) offsetMap {
	if m == nil {
		return inner
	}
	var out offsetMap
	for _, in := range inner {
		for _, seg := range m {
			start := max(in.host, seg.sub)
			end := min(in.host+in.length, seg.sub+seg.length)
			if start >= end {
				continue
			}
			out = append(out, segment{
				sub:    in.sub + (start - in.host),
				host:   seg.host + (start - seg.sub),
				length: end - start,
			})
		}
	}
	return out
}
