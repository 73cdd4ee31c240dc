package xml

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
)

// Document is a parsed XML part.
type Document struct {
	node *Node
}

// NewDocument wraps top-level nodes into a document.
func NewDocument(nodes ...*Node) *Document {
	d := &Document{node: &Node{Type: DocumentNode}}
	for _, n := range nodes {
		d.node.AppendChild(n)
	}
	return d
}

// Parse reads an XML part into a Document.
func Parse(data []byte) (*Document, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	doc := &Document{node: &Node{Type: DocumentNode}}
	cur := doc.node
	var last int64

	for {
		tok, err := dec.RawToken()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse XML: %w", err)
		}
		off := dec.InputOffset()
		raw := data[last:off]

		switch t := tok.(type) {
		case xml.StartElement:
			n := &Node{
				Type: ElementNode,
				Name: Name{Prefix: t.Name.Space, Local: t.Name.Local},
				raw:  raw,
			}
			if len(t.Attr) > 0 {
				n.Attrs = make([]Attr, len(t.Attr))
				for i, a := range t.Attr {
					n.Attrs[i] = Attr{Name: Name{Prefix: a.Name.Space, Local: a.Name.Local}, Value: a.Value}
				}
			}
			n.Parent = cur
			cur.Children = append(cur.Children, n)
			cur = n
		case xml.EndElement:
			name := Name{Prefix: t.Name.Space, Local: t.Name.Local}
			if cur.Type != ElementNode || cur.Name != name {
				return nil, fmt.Errorf("failed to parse XML: unexpected end element </%s> at offset %d", name, last)
			}
			if off == last {
				cur.empty = true
			} else {
				cur.rawEnd = raw
			}
			cur = cur.Parent
		case xml.CharData:
			cur.Children = append(cur.Children, &Node{Type: TextNode, Data: string(t), raw: raw, Parent: cur})
		case xml.Comment:
			cur.Children = append(cur.Children, &Node{Type: CommentNode, Data: string(t), raw: raw, Parent: cur})
		case xml.ProcInst:
			cur.Children = append(cur.Children, &Node{
				Type:   ProcInstNode,
				Name:   Name{Local: t.Target},
				Data:   string(t.Inst),
				raw:    raw,
				Parent: cur,
			})
		case xml.Directive:
			cur.Children = append(cur.Children, &Node{Type: DirectiveNode, Data: string(t), raw: raw, Parent: cur})
		}
		last = off
	}

	if cur != doc.node {
		return nil, fmt.Errorf("failed to parse XML: element <%s> is not closed", cur.Name)
	}
	if doc.Root() == nil {
		return nil, fmt.Errorf("failed to parse XML: no root element")
	}
	return doc, nil
}

// ParseString is Parse for string input.
func ParseString(s string) (*Document, error) {
	return Parse([]byte(s))
}

// Node returns the document node holding the prolog, the root element and
// any trailing nodes.
func (d *Document) Node() *Node {
	return d.node
}

// Root returns the document element.
func (d *Document) Root() *Node {
	for _, c := range d.node.Children {
		if c.Type == ElementNode {
			return c
		}
	}
	return nil
}

// Namespaces returns the prefix to URI declarations of the root element.
func (d *Document) Namespaces() map[string]string {
	out := make(map[string]string)
	root := d.Root()
	if root == nil {
		return out
	}
	for _, a := range root.Attrs {
		switch {
		case a.Name.Prefix == "xmlns":
			out[a.Name.Local] = a.Value
		case a.Name.Prefix == "" && a.Name.Local == "xmlns":
			out[""] = a.Value
		}
	}
	return out
}

// Bytes serializes the document.
func (d *Document) Bytes() []byte {
	var buf bytes.Buffer
	d.node.WriteXML(&buf)
	return buf.Bytes()
}

func (d *Document) String() string {
	return string(d.Bytes())
}

// WriteTo writes the serialized document to w.
func (d *Document) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(d.Bytes())
	return int64(n), err
}

// WriteXML serializes n and its descendants.
func (n *Node) WriteXML(buf *bytes.Buffer) {
	switch n.Type {
	case DocumentNode:
		for _, c := range n.Children {
			c.WriteXML(buf)
		}
	case ElementNode:
		if len(n.Children) == 0 && (n.empty || n.raw == nil) {
			if n.raw != nil && !n.dirty {
				buf.Write(n.raw)
				return
			}
			n.writeTag(buf, true)
			return
		}
		n.WriteStartTag(buf)
		for _, c := range n.Children {
			c.WriteXML(buf)
		}
		n.WriteEndTag(buf)
	case TextNode:
		if n.raw != nil && !n.dirty {
			buf.Write(n.raw)
			return
		}
		buf.WriteString(EscapeText(n.Data))
	case CommentNode:
		if n.raw != nil && !n.dirty {
			buf.Write(n.raw)
			return
		}
		buf.WriteString("<!--" + n.Data + "-->")
	case ProcInstNode:
		if n.raw != nil && !n.dirty {
			buf.Write(n.raw)
			return
		}
		buf.WriteString("<?" + n.Name.Local)
		if n.Data != "" {
			buf.WriteString(" " + n.Data)
		}
		buf.WriteString("?>")
	case DirectiveNode:
		if n.raw != nil && !n.dirty {
			buf.Write(n.raw)
			return
		}
		buf.WriteString("<!" + n.Data + ">")
	}
}

// WriteStartTag writes the opening tag of an element that will be followed by
// its children and WriteEndTag.
func (n *Node) WriteStartTag(buf *bytes.Buffer) {
	if n.raw != nil && !n.dirty && !n.empty {
		buf.Write(n.raw)
		return
	}
	n.writeTag(buf, false)
}

// WriteEndTag writes the closing tag of an element.
func (n *Node) WriteEndTag(buf *bytes.Buffer) {
	if n.rawEnd != nil {
		buf.Write(n.rawEnd)
		return
	}
	buf.WriteString("</" + n.Name.String() + ">")
}

// String serializes n and its descendants.
func (n *Node) String() string {
	var buf bytes.Buffer
	n.WriteXML(&buf)
	return buf.String()
}

func (n *Node) writeTag(buf *bytes.Buffer, selfClose bool) {
	buf.WriteByte('<')
	buf.WriteString(n.Name.String())
	for _, a := range n.Attrs {
		buf.WriteByte(' ')
		buf.WriteString(a.Name.String())
		buf.WriteString(`="`)
		buf.WriteString(EscapeAttr(a.Value))
		buf.WriteByte('"')
	}
	if selfClose {
		buf.WriteString("/>")
		return
	}
	buf.WriteByte('>')
}

var (
	textEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")
	attrEscaper = strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
		`"`, "&quot;",
		"'", "&apos;",
		"\n", "&#xA;",
		"\r", "&#xD;",
		"\t", "&#x9;",
	)
)

// EscapeText escapes s for use as character data. Characters XML does not
// allow are dropped.
func EscapeText(s string) string {
	return textEscaper.Replace(StripInvalidChars(s))
}

// EscapeAttr escapes s for use inside a double-quoted attribute value.
// Characters XML does not allow are dropped.
func EscapeAttr(s string) string {
	return attrEscaper.Replace(StripInvalidChars(s))
}

// IsValidChar reports whether r may appear in an XML 1.0 document.
func IsValidChar(r rune) bool {
	switch {
	case r == '\t' || r == '\n' || r == '\r':
		return true
	case r < 0x20:
		return false
	case r >= 0xD800 && r <= 0xDFFF:
		return false
	case r == 0xFFFE || r == 0xFFFF:
		return false
	}
	return r <= 0x10FFFF
}

// StripInvalidChars removes the characters IsValidChar rejects.
func StripInvalidChars(s string) string {
	valid := true
	for _, r := range s {
		if !IsValidChar(r) {
			valid = false
			break
		}
	}
	if valid {
		return s
	}
	return strings.Map(func(r rune) rune {
		if !IsValidChar(r) {
			return -1
		}
		return r
	}, s)
}
