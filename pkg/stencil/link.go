package stencil

import (
	"net/url"
	"strings"

	"github.com/benjaminschreck/go-stencil-odf/pkg/stencil/render"
	"github.com/benjaminschreck/go-stencil-odf/pkg/stencil/xml"
)

// HyperlinkExtractor finds directives written as hyperlinks whose target is
// py3o://<payload> and whose text repeats the payload.
type HyperlinkExtractor struct{}

// ExtractDirective implements DirectiveExtractor.
func (HyperlinkExtractor) ExtractDirective(n *xml.Node) (*Directive, bool, error) {
	if !n.IsElement(xml.NSText, "a") {
		return nil, false, nil
	}
	href, ok := n.Attr(xml.NSXLink, "href")
	if !ok || !strings.HasPrefix(href, payloadPrefix) {
		return nil, false, nil
	}

	payload, err := validateLink(href, n.Text())
	if err != nil {
		return nil, false, err
	}

	kind, expr, err := ParseInstruction(payload)
	if err != nil {
		return nil, false, err
	}
	return &Directive{
		Kind:     kind,
		Raw:      payload,
		Expr:     expr,
		Encoding: Hyperlink,
		Site:     n,
		Scope:    render.EnclosingScope(n),
	}, true, nil
}

// validateLink checks that a directive link shows the same payload it points
// to and returns that payload. Both sides are compared after trimming
// surrounding whitespace and removing the py3o:// prefix; no other
// normalization is applied.
func validateLink(href, text string) (string, error) {
	target := strings.TrimPrefix(href, payloadPrefix)
	if unescaped, err := url.PathUnescape(target); err == nil {
		target = unescaped
	}
	target = strings.TrimSpace(target)

	shown := strings.TrimSpace(text)
	if shown == "" {
		return "", NewTemplateError(ErrStructure, "Text not found for link: %s", target)
	}
	shown = strings.TrimSpace(strings.TrimPrefix(shown, payloadPrefix))

	if target != shown {
		return "", NewTemplateError(ErrStructure, "url and text do not match in '%s': '%s' != '%s'", target, href, text)
	}
	return target, nil
}
