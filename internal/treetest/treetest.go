// Package treetest builds small in-memory syntax trees with exact shapes for
// exercising the query engine without a real grammar.
package treetest

import (
	"strings"

	"github.com/oxhq/scopeq/query"
)

// Node is a syntax node built by hand.
type Node struct {
	Kind     string
	Named    bool
	Field    string
	Start    uint32
	End      uint32
	Children []*Node

	text   string
	parent *Node
	index  int
}

func (n *Node) Type() string      { return n.Kind }
func (n *Node) IsNamed() bool     { return n.Named }
func (n *Node) StartByte() uint32 { return n.Start }
func (n *Node) EndByte() uint32   { return n.End }

// Named returns a named node with the given children.
func Named(kind string, children ...*Node) *Node {
	return &Node{Kind: kind, Named: true, Children: children}
}

// Leaf returns a named node without children covering text.
func Leaf(kind, text string) *Node {
	return &Node{Kind: kind, Named: true, text: text}
}

// Token returns an anonymous node whose type is its text.
func Token(text string) *Node {
	return &Node{Kind: text, text: text}
}

// Field tags n as the child occupying field in its parent.
func Field(field string, n *Node) *Node {
	n.Field = field
	return n
}

// At sets an explicit byte range. Layout keeps explicit ranges of leaves.
func (n *Node) At(start, end uint32) *Node {
	n.Start, n.End = start, end
	return n
}

// Layout assigns byte ranges by writing the leaf texts left to right,
// separated by one space, and returns the resulting source.
func Layout(root *Node) []byte {
	var b strings.Builder
	var place func(n *Node)
	place = func(n *Node) {
		if len(n.Children) == 0 {
			if b.Len() > 0 && n.text != "" {
				b.WriteByte(' ')
			}
			n.Start = uint32(b.Len())
			b.WriteString(n.text)
			n.End = uint32(b.Len())
			return
		}
		for _, c := range n.Children {
			place(c)
		}
		n.Start = n.Children[0].Start
		n.End = n.Children[len(n.Children)-1].End
	}
	place(root)
	link(root)
	return []byte(b.String())
}

// Spans derives inner node ranges from leaves whose ranges were set with At.
func Spans(root *Node) *Node {
	var fix func(n *Node)
	fix = func(n *Node) {
		if len(n.Children) == 0 {
			return
		}
		for _, c := range n.Children {
			fix(c)
		}
		if n.Start == 0 && n.End == 0 {
			n.Start = n.Children[0].Start
			n.End = n.Children[len(n.Children)-1].End
		}
	}
	fix(root)
	link(root)
	return root
}

func link(n *Node) {
	for i, c := range n.Children {
		c.parent = n
		c.index = i
		link(c)
	}
}

// Cursor walks a Node tree.
type Cursor struct {
	node *Node
	root *Node
}

// NewCursor returns a cursor at root.
func NewCursor(root *Node) *Cursor {
	link(root)
	return &Cursor{node: root, root: root}
}

func (c *Cursor) Node() query.Node { return c.node }

func (c *Cursor) FieldName() string { return c.node.Field }

func (c *Cursor) GotoFirstChild() bool {
	if len(c.node.Children) == 0 {
		return false
	}
	c.node = c.node.Children[0]
	return true
}

func (c *Cursor) GotoNextSibling() bool {
	if c.node == c.root || c.node.parent == nil {
		return false
	}
	siblings := c.node.parent.Children
	if c.node.index+1 >= len(siblings) {
		return false
	}
	c.node = siblings[c.node.index+1]
	return true
}

func (c *Cursor) GotoParent() bool {
	if c.node == c.root || c.node.parent == nil {
		return false
	}
	c.node = c.node.parent
	return true
}

func (c *Cursor) Clone() query.Cursor {
	clone := *c
	return &clone
}
