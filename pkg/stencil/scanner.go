package stencil

import (
	"strings"

	"github.com/benjaminschreck/go-stencil-odf/pkg/stencil/render"
	"github.com/benjaminschreck/go-stencil-odf/pkg/stencil/xml"
)

// DirectiveExtractor recognizes one payload encoding. ExtractDirective
// returns ok=false for nodes that do not use the encoding.
type DirectiveExtractor interface {
	ExtractDirective(n *xml.Node) (d *Directive, ok bool, err error)
}

// DefaultExtractors are the encodings recognized by Scan when none are given.
var DefaultExtractors = []DirectiveExtractor{
	HyperlinkExtractor{},
	InputFieldExtractor{},
	UserFieldExtractor{},
	ImageFrameExtractor{},
}

// Scan returns the directives of doc in document order.
func Scan(doc *xml.Document, extractors ...DirectiveExtractor) ([]*Directive, error) {
	if len(extractors) == 0 {
		extractors = DefaultExtractors
	}

	var (
		directives []*Directive
		scanErr    error
	)
	doc.Node().Walk(func(n *xml.Node) bool {
		if scanErr != nil {
			return false
		}
		if n.Type != xml.ElementNode {
			return true
		}
		for _, ex := range extractors {
			d, ok, err := ex.ExtractDirective(n)
			if err != nil {
				scanErr = err
				return false
			}
			if ok {
				directives = append(directives, d)
				// payload text inside a site is not scanned again; frames
				// may still hold directives in their text boxes
				return d.Kind == ImageBind
			}
		}
		return true
	})
	if scanErr != nil {
		return nil, scanErr
	}

	if IsDebugMode() {
		GetLogger().Debug().Int("directives", len(directives)).Msg("scan complete")
	}
	return directives, nil
}

// InputFieldExtractor finds directives in text input fields whose
// description holds py3o://<payload>.
type InputFieldExtractor struct{}

// ExtractDirective implements DirectiveExtractor.
func (InputFieldExtractor) ExtractDirective(n *xml.Node) (*Directive, bool, error) {
	if !n.IsElement(xml.NSText, "text-input") {
		return nil, false, nil
	}
	desc, ok := n.Attr(xml.NSText, "description")
	if !ok || !strings.HasPrefix(desc, payloadPrefix) {
		return nil, false, nil
	}
	payload := strings.TrimSpace(strings.TrimPrefix(desc, payloadPrefix))
	kind, expr, err := ParseInstruction(payload)
	if err != nil {
		return nil, false, err
	}
	return &Directive{
		Kind:     kind,
		Raw:      payload,
		Expr:     expr,
		Encoding: Attribute,
		Site:     n,
		Scope:    render.EnclosingScope(n),
	}, true, nil
}

// UserFieldExtractor turns user and variable fields named py3o.<expr> into
// expression directives.
type UserFieldExtractor struct{}

// ExtractDirective implements DirectiveExtractor.
func (UserFieldExtractor) ExtractDirective(n *xml.Node) (*Directive, bool, error) {
	if !n.IsElement(xml.NSText, "user-field-get") && !n.IsElement(xml.NSText, "variable-get") {
		return nil, false, nil
	}
	name, ok := n.Attr(xml.NSText, "name")
	if !ok || !strings.HasPrefix(name, userFieldPrefix) {
		return nil, false, nil
	}
	expr := strings.TrimSpace(strings.TrimPrefix(name, userFieldPrefix))
	if expr == "" {
		return nil, false, NewTemplateError(ErrGrammar, "Empty instruction in field '%s'", name)
	}
	kind := Expression
	if callRegex.MatchString(expr) {
		kind = FunctionCall
	}
	return &Directive{
		Kind:     kind,
		Raw:      expr,
		Expr:     expr,
		Encoding: Attribute,
		Site:     n,
		Scope:    render.EnclosingScope(n),
	}, true, nil
}

// ImageFrameExtractor finds image placeholders: draw:frame elements whose
// draw:name holds an image binding.
type ImageFrameExtractor struct{}

// ExtractDirective implements DirectiveExtractor.
func (ImageFrameExtractor) ExtractDirective(n *xml.Node) (*Directive, bool, error) {
	if !n.IsElement(xml.NSDraw, "frame") {
		return nil, false, nil
	}
	name, ok := n.Attr(xml.NSDraw, "name")
	if !ok {
		return nil, false, nil
	}
	binding, err := parseImageMarker(name)
	if err != nil || binding == nil {
		return nil, false, err
	}
	return &Directive{
		Kind:     ImageBind,
		Raw:      name,
		Expr:     binding.Name,
		Encoding: Attribute,
		Site:     n,
		Scope:    render.EnclosingScope(n),
		Image:    binding,
	}, true, nil
}
