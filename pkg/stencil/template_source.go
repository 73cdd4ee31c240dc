package stencil

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/benjaminschreck/go-stencil-odf/pkg/stencil/xml"
)

// Marker stands in for a directive in template source.
type Marker struct {
	Directive *Directive
	Context   OutputContext
}

// Kind returns the kind of the marked directive.
func (m *Marker) Kind() DirectiveKind { return m.Directive.Kind }

// Segment is either literal markup or a marker.
type Segment struct {
	Literal string
	Marker  *Marker
}

// TemplateSource is a content tree lowered to evaluator input: the original
// markup with directive sites replaced by markers.
type TemplateSource struct {
	Segments []Segment
}

// Markers returns the markers in emission order.
func (s *TemplateSource) Markers() []*Marker {
	var out []*Marker
	for _, seg := range s.Segments {
		if seg.Marker != nil {
			out = append(out, seg.Marker)
		}
	}
	return out
}

// Literal returns the concatenated literal markup.
func (s *TemplateSource) Literal() string {
	var sb strings.Builder
	for _, seg := range s.Segments {
		sb.WriteString(seg.Literal)
	}
	return sb.String()
}

// String renders the source with markers shown as {{...}}.
func (s *TemplateSource) String() string {
	var sb strings.Builder
	for _, seg := range s.Segments {
		if seg.Marker == nil {
			sb.WriteString(seg.Literal)
			continue
		}
		d := seg.Marker.Directive
		switch d.Kind {
		case LoopOpen:
			sb.WriteString("{{for " + d.Expr + "}}")
		case IfOpen:
			sb.WriteString("{{if " + d.Expr + "}}")
		case LoopClose, IfClose:
			sb.WriteString("{{" + d.Kind.String() + "}}")
		case ImageBind:
			sb.WriteString("{{image " + d.Expr + "}}")
		default:
			sb.WriteString("{{" + d.Expr + "}}")
		}
	}
	return sb.String()
}

// Tokens converts the source into evaluator tokens.
func (s *TemplateSource) Tokens() []Token {
	tokens := make([]Token, 0, len(s.Segments))
	for _, seg := range s.Segments {
		if seg.Marker == nil {
			tokens = append(tokens, Token{Type: TokenText, Value: seg.Literal})
			continue
		}
		d := seg.Marker.Directive
		tok := Token{Value: d.Expr, Raw: d.Raw, Context: seg.Marker.Context}
		switch d.Kind {
		case LoopOpen:
			tok.Type = TokenFor
		case IfOpen:
			tok.Type = TokenIf
		case LoopClose, IfClose:
			tok.Type, tok.Value = TokenEnd, d.Kind.Block()
		case ImageBind:
			tok.Type, tok.Image = TokenImage, d.Image
		default:
			tok.Type = TokenVariable
		}
		tokens = append(tokens, tok)
	}
	return tokens
}

// typedCellAttr flags, in rendered output, the cells whose value type is set
// from the substituted value. The post processor removes it.
const typedCellAttr = "stencil-typed-cell"

type sourceBuilder struct {
	buf       bytes.Buffer
	segments  []Segment
	carriers  map[*xml.Node][]*Directive
	inline    map[*xml.Node]*Directive
	images    map[*xml.Node]*Directive
	onPath    map[*xml.Node]bool
	cellSites map[*xml.Node]bool
}

// BuildTemplateSource lowers doc into template source. Block carriers are
// replaced by their markers, inline sites by substitution markers and image
// frame names by attribute markers. Everything else is copied from the
// parsed bytes.
func BuildTemplateSource(doc *xml.Document, directives []*Directive, blocks []*Block) (*TemplateSource, error) {
	b := &sourceBuilder{
		carriers:  make(map[*xml.Node][]*Directive),
		inline:    make(map[*xml.Node]*Directive),
		images:    make(map[*xml.Node]*Directive),
		onPath:    make(map[*xml.Node]bool),
		cellSites: make(map[*xml.Node]bool),
	}

	carrierOf := make(map[*Directive]*xml.Node)
	for _, blk := range blocks {
		carrierOf[blk.Open] = blk.OpenCarrier
		carrierOf[blk.Close] = blk.CloseCarrier
	}

	mark := func(n *xml.Node) {
		for cur := n.Parent; cur != nil && !b.onPath[cur]; cur = cur.Parent {
			b.onPath[cur] = true
		}
	}
	// directives are in document order, so each carrier list is too
	for _, d := range directives {
		switch d.Kind {
		case LoopOpen, LoopClose, IfOpen, IfClose:
			c, ok := carrierOf[d]
			if !ok {
				return nil, NewTemplateError(ErrStructure, "No block found for instruction '%s'", d.Raw)
			}
			b.carriers[c] = append(b.carriers[c], d)
			mark(c)
		case ImageBind:
			b.images[d.Site] = d
			mark(d.Site)
		default:
			b.inline[d.Site] = d
			mark(d.Site)
		}
	}

	b.walk(doc.Node())
	b.flush()

	src := &TemplateSource{Segments: b.segments}
	if got := len(src.Markers()); got != len(directives) {
		return nil, fmt.Errorf("template source has %d markers for %d directives", got, len(directives))
	}
	return src, nil
}

func (b *sourceBuilder) flush() {
	if b.buf.Len() > 0 {
		b.segments = append(b.segments, Segment{Literal: b.buf.String()})
		b.buf.Reset()
	}
}

func (b *sourceBuilder) marker(d *Directive, ctx OutputContext) {
	b.flush()
	b.segments = append(b.segments, Segment{Marker: &Marker{Directive: d, Context: ctx}})
}

func (b *sourceBuilder) walk(n *xml.Node) {
	if ds, ok := b.carriers[n]; ok {
		for _, d := range ds {
			b.marker(d, ContextText)
		}
		return
	}
	if d, ok := b.inline[n]; ok {
		if b.cellSites[n] {
			b.marker(d, ContextCell)
		} else {
			b.marker(d, ContextText)
		}
		return
	}
	if d, ok := b.images[n]; ok {
		b.imageFrame(n, d)
		return
	}
	if d := b.typedCell(n); d != nil {
		b.cellSites[d.Site] = true
		b.typedCellTag(n)
		return
	}
	if !b.onPath[n] {
		n.WriteXML(&b.buf)
		return
	}

	if n.Type == xml.DocumentNode {
		for _, c := range n.Children {
			b.walk(c)
		}
		return
	}
	n.WriteStartTag(&b.buf)
	for _, c := range n.Children {
		b.walk(c)
	}
	n.WriteEndTag(&b.buf)
}

// imageFrame writes a frame start tag whose draw:name value is a marker,
// then the frame content.
func (b *sourceBuilder) imageFrame(n *xml.Node, d *Directive) {
	b.buf.WriteString("<" + n.Name.String())
	for _, a := range n.Attrs {
		b.buf.WriteString(" " + a.Name.String() + `="`)
		if a.Name.Local == "name" && a.Name.Prefix != "" && n.LookupNamespace(a.Name.Prefix) == xml.NSDraw {
			b.marker(d, ContextAttribute)
		} else {
			b.buf.WriteString(xml.EscapeAttr(a.Value))
		}
		b.buf.WriteString(`"`)
	}
	b.buf.WriteString(">")
	for _, c := range n.Children {
		b.walk(c)
	}
	n.WriteEndTag(&b.buf)
}

// typedCell returns the substitution that is the only content of table cell
// n, looking through one paragraph and any spans around it.
func (b *sourceBuilder) typedCell(n *xml.Node) *Directive {
	if !b.onPath[n] || !n.IsElement(xml.NSTable, "table-cell") {
		return nil
	}
	cur := n
	for {
		var only *xml.Node
		for _, c := range cur.Children {
			if c.Type == xml.TextNode && strings.TrimSpace(c.Data) == "" {
				continue
			}
			if only != nil {
				return nil
			}
			only = c
		}
		if only == nil {
			return nil
		}
		if d, ok := b.inline[only]; ok {
			return d
		}
		paragraph := cur == n && (only.IsElement(xml.NSText, "p") || only.IsElement(xml.NSText, "h"))
		if !paragraph && (cur == n || !only.IsElement(xml.NSText, "span")) {
			return nil
		}
		cur = only
	}
}

// typedCellTag writes cell n with the typed cell flag added to its start tag.
func (b *sourceBuilder) typedCellTag(n *xml.Node) {
	b.buf.WriteString("<" + n.Name.String())
	for _, a := range n.Attrs {
		b.buf.WriteString(" " + a.Name.String() + `="` + xml.EscapeAttr(a.Value) + `"`)
	}
	b.buf.WriteString(" " + typedCellAttr + `="">`)
	for _, c := range n.Children {
		b.walk(c)
	}
	n.WriteEndTag(&b.buf)
}
