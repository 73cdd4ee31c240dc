package render

import (
	"github.com/benjaminschreck/go-stencil-odf/pkg/stencil/xml"
)

// scopeElements are the structural units that can bound a block directive.
var scopeElements = []struct{ space, local string }{
	{xml.NSText, "p"},
	{xml.NSText, "h"},
	{xml.NSText, "list-item"},
	{xml.NSTable, "table-cell"},
	{xml.NSTable, "table-row"},
}

// IsScope reports whether n is a paragraph, heading, list item, table cell or table row.
func IsScope(n *xml.Node) bool {
	for _, s := range scopeElements {
		if n.IsElement(s.space, s.local) {
			return true
		}
	}
	return false
}

// EnclosingScope returns the nearest ancestor of n that is a scope element.
// When none exists the parent of n is returned.
func EnclosingScope(n *xml.Node) *xml.Node {
	for cur := n.Parent; cur != nil; cur = cur.Parent {
		if IsScope(cur) {
			return cur
		}
	}
	return n.Parent
}

// CommonAncestor returns the lowest node containing both a and b.
func CommonAncestor(a, b *xml.Node) *xml.Node {
	seen := make(map[*xml.Node]bool)
	for cur := a; cur != nil; cur = cur.Parent {
		seen[cur] = true
	}
	for cur := b; cur != nil; cur = cur.Parent {
		if seen[cur] {
			return cur
		}
	}
	return nil
}

// ChildToward returns the child of ancestor on the path down to n, or nil when
// n is not a strict descendant of ancestor.
func ChildToward(ancestor, n *xml.Node) *xml.Node {
	for cur := n; cur != nil; cur = cur.Parent {
		if cur.Parent == ancestor {
			return cur
		}
	}
	return nil
}

// Precedes reports whether a comes before b in document order.
func Precedes(a, b *xml.Node) bool {
	if a == b {
		return false
	}
	if a.Contains(b) {
		return true
	}
	if b.Contains(a) {
		return false
	}
	lca := CommonAncestor(a, b)
	if lca == nil {
		return false
	}
	return ChildToward(lca, a).Index() < ChildToward(lca, b).Index()
}
