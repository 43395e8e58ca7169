package query

// Node is the read-only view of a syntax node the engine needs. Text is
// always source[StartByte:EndByte].
type Node interface {
	Type() string
	IsNamed() bool
	StartByte() uint32
	EndByte() uint32
}

// Cursor walks a syntax tree. Implementations are not required to be safe
// for concurrent use; Clone returns an independent cursor at the same
// position so the matcher can explore alternatives.
type Cursor interface {
	Node() Node
	// FieldName is the field under which the current node sits in its
	// parent, or "".
	FieldName() string
	GotoFirstChild() bool
	GotoNextSibling() bool
	GotoParent() bool
	Clone() Cursor
}

// Range is a half-open byte range.
type Range struct {
	Start uint32 `json:"start"`
	End   uint32 `json:"end"`
}

// RangeOf returns the byte range covered by n.
func RangeOf(n Node) Range {
	return Range{Start: n.StartByte(), End: n.EndByte()}
}

// Len is the width of the range in bytes.
func (r Range) Len() uint32 { return r.End - r.Start }

// Empty reports a zero-width range.
func (r Range) Empty() bool { return r.End <= r.Start }

// Contains reports whether o lies within r.
func (r Range) Contains(o Range) bool { return o.Start >= r.Start && o.End <= r.End }

// StrictlyContains reports whether o lies within r and is not r itself.
func (r Range) StrictlyContains(o Range) bool { return r.Contains(o) && r != o }

// Text returns the source bytes of n as a string.
func Text(n Node, source []byte) string {
	start, end := n.StartByte(), n.EndByte()
	if int(end) > len(source) || start > end {
		return ""
	}
	return string(source[start:end])
}

// childrenOf returns clones positioned at each child of the cursor's node.
func childrenOf(c Cursor) []Cursor {
	walker := c.Clone()
	if !walker.GotoFirstChild() {
		return nil
	}
	var out []Cursor
	for {
		out = append(out, walker.Clone())
		if !walker.GotoNextSibling() {
			break
		}
	}
	return out
}
