package xml

import (
	"strings"
)

// NodeType identifies the kind of a Node.
type NodeType int

const (
	DocumentNode NodeType = iota
	ElementNode
	TextNode
	CommentNode
	ProcInstNode
	DirectiveNode
)

// Name is a qualified name as written in the source, e.g. text:p.
type Name struct {
	Prefix string
	Local  string
}

// ParseName splits a "prefix:local" string.
func ParseName(s string) Name {
	if i := strings.IndexByte(s, ':'); i >= 0 {
		return Name{Prefix: s[:i], Local: s[i+1:]}
	}
	return Name{Local: s}
}

func (n Name) String() string {
	if n.Prefix == "" {
		return n.Local
	}
	return n.Prefix + ":" + n.Local
}

// Attr is an attribute with its unescaped value.
type Attr struct {
	Name  Name
	Value string
}

// Node is one node of a parsed part.
//
// Data holds the unescaped character data of text nodes, the body of comments
// and directives, and the instruction of processing instructions (whose target
// is stored in Name.Local).
type Node struct {
	Type     NodeType
	Name     Name
	Attrs    []Attr
	Data     string
	Parent   *Node
	Children []*Node

	raw    []byte
	rawEnd []byte
	empty  bool
	dirty  bool
}

// NewElement creates a detached element. name is a qualified "prefix:local" name.
func NewElement(name string, attrs ...Attr) *Node {
	return &Node{Type: ElementNode, Name: ParseName(name), Attrs: attrs, dirty: true}
}

// NewText creates a detached text node.
func NewText(s string) *Node {
	return &Node{Type: TextNode, Data: s, dirty: true}
}

// IsElement reports whether n is an element named space:local, resolving the
// element prefix through the namespace declarations in scope.
func (n *Node) IsElement(space, local string) bool {
	if n == nil || n.Type != ElementNode || n.Name.Local != local {
		return false
	}
	return n.LookupNamespace(n.Name.Prefix) == space
}

// LookupNamespace resolves prefix to a namespace URI using the xmlns
// declarations on n and its ancestors.
func (n *Node) LookupNamespace(prefix string) string {
	if prefix == "xml" {
		return NSXML
	}
	for cur := n; cur != nil; cur = cur.Parent {
		for _, a := range cur.Attrs {
			if prefix == "" && a.Name.Prefix == "" && a.Name.Local == "xmlns" {
				return a.Value
			}
			if prefix != "" && a.Name.Prefix == "xmlns" && a.Name.Local == prefix {
				return a.Value
			}
		}
	}
	return ""
}

// LookupPrefix returns the prefix bound to uri in scope at n.
func (n *Node) LookupPrefix(uri string) (string, bool) {
	if uri == NSXML {
		return "xml", true
	}
	for cur := n; cur != nil; cur = cur.Parent {
		for _, a := range cur.Attrs {
			if a.Name.Prefix == "xmlns" && a.Value == uri {
				return a.Name.Local, true
			}
		}
	}
	return "", false
}

func (n *Node) attrIndex(space, local string) int {
	for i, a := range n.Attrs {
		if a.Name.Local != local || a.Name.Prefix == "xmlns" {
			continue
		}
		if a.Name.Prefix == "" {
			// unprefixed attributes are in no namespace
			if space == "" {
				return i
			}
			continue
		}
		if n.LookupNamespace(a.Name.Prefix) == space {
			return i
		}
	}
	return -1
}

// Attr returns the value of the attribute space:local.
func (n *Node) Attr(space, local string) (string, bool) {
	if i := n.attrIndex(space, local); i >= 0 {
		return n.Attrs[i].Value, true
	}
	return "", false
}

// AttrValue returns the value of space:local or "" when absent.
func (n *Node) AttrValue(space, local string) string {
	v, _ := n.Attr(space, local)
	return v
}

// SetAttr sets space:local, adding the attribute when missing. New attributes
// use the prefix bound in scope, falling back to the conventional ODF prefix.
func (n *Node) SetAttr(space, local, value string) {
	if i := n.attrIndex(space, local); i >= 0 {
		if n.Attrs[i].Value == value {
			return
		}
		n.Attrs[i].Value = value
		n.dirty = true
		return
	}
	prefix, ok := n.LookupPrefix(space)
	if !ok {
		prefix, _ = conventionalPrefix(space)
	}
	n.Attrs = append(n.Attrs, Attr{Name: Name{Prefix: prefix, Local: local}, Value: value})
	n.dirty = true
}

// RemoveAttr deletes space:local if present.
func (n *Node) RemoveAttr(space, local string) {
	if i := n.attrIndex(space, local); i >= 0 {
		n.Attrs = append(n.Attrs[:i], n.Attrs[i+1:]...)
		n.dirty = true
	}
}

// SetData replaces the character data of a text node.
func (n *Node) SetData(s string) {
	if n.Data == s {
		return
	}
	n.Data = s
	n.dirty = true
}

// Modified reports whether n will be serialized from its fields rather than
// from the bytes it was parsed from.
func (n *Node) Modified() bool {
	return n.dirty || n.raw == nil
}

// Text returns the concatenated character data of n and its descendants.
func (n *Node) Text() string {
	if n.Type == TextNode {
		return n.Data
	}
	var sb strings.Builder
	n.Walk(func(c *Node) bool {
		if c.Type == TextNode {
			sb.WriteString(c.Data)
		}
		return true
	})
	return sb.String()
}

// Walk visits n and its descendants in document order. Returning false from
// fn skips the children of the visited node.
func (n *Node) Walk(fn func(*Node) bool) {
	if !fn(n) {
		return
	}
	// children may be replaced while walking
	children := append([]*Node(nil), n.Children...)
	for _, c := range children {
		c.Walk(fn)
	}
}

// FindAll returns every descendant element named space:local in document order.
func (n *Node) FindAll(space, local string) []*Node {
	var out []*Node
	n.Walk(func(c *Node) bool {
		if c != n && c.IsElement(space, local) {
			out = append(out, c)
		}
		return true
	})
	return out
}

// FindFirst returns the first descendant element named space:local.
func (n *Node) FindFirst(space, local string) *Node {
	for _, c := range n.Children {
		if c.IsElement(space, local) {
			return c
		}
		if found := c.FindFirst(space, local); found != nil {
			return found
		}
	}
	return nil
}

// Elements returns the element children of n.
func (n *Node) Elements() []*Node {
	var out []*Node
	for _, c := range n.Children {
		if c.Type == ElementNode {
			out = append(out, c)
		}
	}
	return out
}

// Index returns the position of n in its parent's children, or -1.
func (n *Node) Index() int {
	if n.Parent == nil {
		return -1
	}
	for i, c := range n.Parent.Children {
		if c == n {
			return i
		}
	}
	return -1
}

// PrevSibling returns the node before n.
func (n *Node) PrevSibling() *Node {
	i := n.Index()
	if i <= 0 {
		return nil
	}
	return n.Parent.Children[i-1]
}

// NextSibling returns the node after n.
func (n *Node) NextSibling() *Node {
	i := n.Index()
	if i < 0 || i+1 >= len(n.Parent.Children) {
		return nil
	}
	return n.Parent.Children[i+1]
}

// Contains reports whether m is n or one of its descendants.
func (n *Node) Contains(m *Node) bool {
	for cur := m; cur != nil; cur = cur.Parent {
		if cur == n {
			return true
		}
	}
	return false
}

// Depth returns the number of ancestors of n.
func (n *Node) Depth() int {
	d := 0
	for cur := n.Parent; cur != nil; cur = cur.Parent {
		d++
	}
	return d
}

// AppendChild adds c as the last child of n, detaching it first.
func (n *Node) AppendChild(c *Node) {
	c.detach()
	c.Parent = n
	n.Children = append(n.Children, c)
}

// InsertBefore inserts c before ref. A nil ref appends.
func (n *Node) InsertBefore(c, ref *Node) {
	if ref == nil {
		n.AppendChild(c)
		return
	}
	c.detach()
	i := ref.Index()
	if i < 0 || ref.Parent != n {
		n.AppendChild(c)
		return
	}
	c.Parent = n
	n.Children = append(n.Children, nil)
	copy(n.Children[i+1:], n.Children[i:])
	n.Children[i] = c
}

// Remove detaches n from its parent.
func (n *Node) Remove() {
	n.detach()
}

// ReplaceWith puts nodes in place of n and detaches n.
func (n *Node) ReplaceWith(nodes ...*Node) {
	parent := n.Parent
	if parent == nil {
		return
	}
	for _, r := range nodes {
		parent.InsertBefore(r, n)
	}
	n.detach()
}

func (n *Node) detach() {
	if n.Parent == nil {
		return
	}
	p := n.Parent
	for i, c := range p.Children {
		if c == n {
			p.Children = append(p.Children[:i], p.Children[i+1:]...)
			break
		}
	}
	n.Parent = nil
}

// Clone returns a deep copy of n without a parent. Unmodified nodes keep their
// original bytes.
func (n *Node) Clone() *Node {
	c := &Node{
		Type:   n.Type,
		Name:   n.Name,
		Data:   n.Data,
		raw:    n.raw,
		rawEnd: n.rawEnd,
		empty:  n.empty,
		dirty:  n.dirty,
	}
	if n.Attrs != nil {
		c.Attrs = append([]Attr(nil), n.Attrs...)
	}
	for _, child := range n.Children {
		cc := child.Clone()
		cc.Parent = c
		c.Children = append(c.Children, cc)
	}
	return c
}
