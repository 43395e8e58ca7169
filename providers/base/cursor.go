package base

import (
	sitter "github.com/smacker/go-tree-sitter"

	"github.com/oxhq/scopeq/query"
)

// Cursor walks a tree-sitter tree through the query.Cursor interface. It
// keeps the path from the root so that field names can be read from the
// parent, and it never moves above the node it was created at.
type Cursor struct {
	path  []*sitter.Node
	index []int
}

// NewCursor returns a cursor positioned at root.
func NewCursor(root *sitter.Node) *Cursor {
	return &Cursor{path: []*sitter.Node{root}, index: []int{0}}
}

func (c *Cursor) Node() query.Node { return c.path[len(c.path)-1] }

// FieldName returns the field the current node occupies in its parent.
func (c *Cursor) FieldName() string {
	if len(c.path) < 2 {
		return ""
	}
	return c.path[len(c.path)-2].FieldNameForChild(c.index[len(c.index)-1])
}

func (c *Cursor) GotoFirstChild() bool {
	n := c.path[len(c.path)-1]
	if n.ChildCount() == 0 {
		return false
	}
	c.path = append(c.path, n.Child(0))
	c.index = append(c.index, 0)
	return true
}

func (c *Cursor) GotoNextSibling() bool {
	if len(c.path) < 2 {
		return false
	}
	parent := c.path[len(c.path)-2]
	next := c.index[len(c.index)-1] + 1
	if next >= int(parent.ChildCount()) {
		return false
	}
	c.path[len(c.path)-1] = parent.Child(next)
	c.index[len(c.index)-1] = next
	return true
}

func (c *Cursor) GotoParent() bool {
	if len(c.path) < 2 {
		return false
	}
	c.path = c.path[:len(c.path)-1]
	c.index = c.index[:len(c.index)-1]
	return true
}

func (c *Cursor) Clone() query.Cursor {
	return &Cursor{
		path:  append([]*sitter.Node(nil), c.path...),
		index: append([]int(nil), c.index...),
	}
}
