package reportpdf

import (
	"fmt"
)

// TocNode is one entry of a table of contents.
// Page is a zero-based page index; nil means the node has no destination.
type TocNode struct {
	Title    string     `json:"title"`
	Page     *int       `json:"page,omitempty"`
	Children []*TocNode `json:"children,omitempty"`
}

// NewTocNode returns a node pointing at page.
func NewTocNode(title string, page int, children ...*TocNode) *TocNode {
	return &TocNode{Title: title, Page: intPtr(page), Children: children}
}

// Clone returns a deep copy of n.
func (n *TocNode) Clone() *TocNode {
	if n == nil {
		return nil
	}
	c := &TocNode{Title: n.Title}
	if n.Page != nil {
		c.Page = intPtr(*n.Page)
	}
	if len(n.Children) > 0 {
		c.Children = make([]*TocNode, len(n.Children))
		for i, child := range n.Children {
			c.Children[i] = child.Clone()
		}
	}
	return c
}

// StepUp returns copies of nodes with offset added to every page, recursively.
// Nodes without a page keep none. The input is not modified.
func StepUp(nodes []*TocNode, offset int) []*TocNode {
	if len(nodes) == 0 {
		return nil
	}
	out := make([]*TocNode, len(nodes))
	for i, n := range nodes {
		c := n.Clone()
		stepUp(c, offset)
		out[i] = c
	}
	return out
}

func stepUp(n *TocNode, offset int) {
	if n.Page != nil {
		*n.Page += offset
	}
	for _, c := range n.Children {
		stepUp(c, offset)
	}
}

// clampPages bounds every page of nodes to [0, last] in place.
// Renderers estimate heading pages; a heading past the fragment's real end
// would otherwise point into the next fragment.
func clampPages(nodes []*TocNode, last int) {
	for _, n := range nodes {
		if n.Page != nil {
			switch {
			case *n.Page < 0:
				*n.Page = 0
			case *n.Page > last:
				*n.Page = last
			}
		}
		clampPages(n.Children, last)
	}
}

// Walk visits nodes depth-first in tree order.
func Walk(nodes []*TocNode, fn func(n *TocNode, depth int)) {
	var walk func([]*TocNode, int)
	walk = func(ns []*TocNode, depth int) {
		for _, n := range ns {
			fn(n, depth)
			walk(n.Children, depth+1)
		}
	}
	walk(nodes, 0)
}

// FirstPage returns the page of n, or of its first descendant with one.
func FirstPage(n *TocNode) (int, bool) {
	if n.Page != nil {
		return *n.Page, true
	}
	for _, c := range n.Children {
		if p, ok := FirstPage(c); ok {
			return p, true
		}
	}
	return 0, false
}

// CheckMonotonic verifies that pages never decrease in a depth-first
// traversal of nodes.
func CheckMonotonic(nodes []*TocNode) error {
	prev, prevTitle := -1, ""
	var err error
	Walk(nodes, func(n *TocNode, _ int) {
		if err != nil || n.Page == nil {
			return
		}
		if *n.Page < prev {
			err = fmt.Errorf("%w: %q (page %d) after %q (page %d)", ErrTOCOrder, n.Title, *n.Page, prevTitle, prev)
			return
		}
		prev, prevTitle = *n.Page, n.Title
	})
	return err
}

// Heading is a flat table of contents entry reported by a renderer.
// Level starts at 1.
type Heading struct {
	Level int    `json:"level"`
	Title string `json:"title"`
	Page  int    `json:"page"`
}

// BuildTOC nests flat headings by level. A heading deeper than its
// predecessor becomes its child; skipped levels do not create empty nodes.
func BuildTOC(headings []Heading) []*TocNode {
	type frame struct {
		level int
		node  *TocNode
	}
	var roots []*TocNode
	var stack []frame

	for _, h := range headings {
		n := NewTocNode(h.Title, h.Page)
		for len(stack) > 0 && stack[len(stack)-1].level >= h.Level {
			stack = stack[:len(stack)-1]
		}
		if len(stack) == 0 {
			roots = append(roots, n)
		} else {
			parent := stack[len(stack)-1].node
			parent.Children = append(parent.Children, n)
		}
		stack = append(stack, frame{level: h.Level, node: n})
	}
	return roots
}

// PageRef is an opaque physical page reference of a merged document.
type PageRef any

// OutlineEntry is an opaque handle on a written outline entry.
// The nil OutlineEntry is the outline root.
type OutlineEntry any

// OutlineWriter writes the bookmark tree of one merged document.
type OutlineWriter interface {
	// Pages returns the page count of the merged document.
	Pages() int

	// ResolvePageRef maps a zero-based page index to a page reference.
	ResolvePageRef(index int) (PageRef, error)

	// WriteOutlineEntry adds an entry under parent (nil for the root) and
	// returns its handle.
	WriteOutlineEntry(parent OutlineEntry, title string, target PageRef) (OutlineEntry, error)

	// Commit writes the document with its outline to outPath.
	Commit(outPath string) error
}

// WriteOutline writes roots to w in tree order. A node without a page links
// to its first descendant's page; a subtree without any page is skipped.
func WriteOutline(w OutlineWriter, roots []*TocNode) error {
	var write func(parent OutlineEntry, nodes []*TocNode) error
	write = func(parent OutlineEntry, nodes []*TocNode) error {
		for _, n := range nodes {
			page, ok := FirstPage(n)
			if !ok {
				continue
			}
			ref, err := w.ResolvePageRef(page)
			if err != nil {
				return fmt.Errorf("resolving %q: %w", n.Title, err)
			}
			entry, err := w.WriteOutlineEntry(parent, n.Title, ref)
			if err != nil {
				return fmt.Errorf("writing %q: %w", n.Title, err)
			}
			if err := write(entry, n.Children); err != nil {
				return err
			}
		}
		return nil
	}
	return write(nil, roots)
}

func intPtr(v int) *int { return &v }
