package render

import (
	"github.com/benjaminschreck/go-stencil-odf/pkg/stencil/xml"
)

// elementsEquivalent checks if two elements have the same name and the same
// attributes, so their content can be merged without changing formatting.
func elementsEquivalent(a, b *xml.Node) bool {
	if a == nil || b == nil || a.Type != xml.ElementNode || b.Type != xml.ElementNode {
		return false
	}
	if a.Name != b.Name || len(a.Attrs) != len(b.Attrs) {
		return false
	}
	for i := range a.Attrs {
		if a.Attrs[i] != b.Attrs[i] {
			return false
		}
	}
	return true
}

// MergeAdjacentText joins consecutive text children of n into one node.
// It returns the number of nodes that were folded away.
func MergeAdjacentText(n *xml.Node) int {
	merged := 0
	for i := 0; i+1 < len(n.Children); {
		cur, next := n.Children[i], n.Children[i+1]
		if cur.Type == xml.TextNode && next.Type == xml.TextNode {
			cur.SetData(cur.Data + next.Data)
			next.Remove()
			merged++
			continue
		}
		i++
	}
	return merged
}

// MergeInto moves the children of src to the end of dst, removes src and
// joins text nodes that meet at the seam.
func MergeInto(dst, src *xml.Node) {
	children := append([]*xml.Node(nil), src.Children...)
	for _, c := range children {
		dst.AppendChild(c)
	}
	src.Remove()
	MergeAdjacentText(dst)
}

// isBlank reports whether n is a whitespace-only text node.
func isBlank(n *xml.Node) bool {
	if n == nil || n.Type != xml.TextNode {
		return false
	}
	for _, r := range n.Data {
		if r != ' ' && r != '\n' && r != '\r' && r != '\t' {
			return false
		}
	}
	return true
}

// prevElement returns the nearest previous sibling skipping blank text.
func prevElement(n *xml.Node) *xml.Node {
	for cur := n.PrevSibling(); cur != nil; cur = cur.PrevSibling() {
		if isBlank(cur) {
			continue
		}
		if cur.Type == xml.ElementNode {
			return cur
		}
		return nil
	}
	return nil
}

// nextElement returns the nearest next sibling skipping blank text.
func nextElement(n *xml.Node) *xml.Node {
	for cur := n.NextSibling(); cur != nil; cur = cur.NextSibling() {
		if isBlank(cur) {
			continue
		}
		if cur.Type == xml.ElementNode {
			return cur
		}
		return nil
	}
	return nil
}
