package stencil

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/benjaminschreck/go-stencil-odf/pkg/stencil/xml"
)

// DirectiveKind classifies a directive.
type DirectiveKind int

const (
	LoopOpen DirectiveKind = iota
	LoopClose
	IfOpen
	IfClose
	Expression
	FunctionCall
	ImageBind
)

func (k DirectiveKind) String() string {
	switch k {
	case LoopOpen:
		return "for"
	case LoopClose:
		return "/for"
	case IfOpen:
		return "if"
	case IfClose:
		return "/if"
	case Expression:
		return "expression"
	case FunctionCall:
		return "function"
	case ImageBind:
		return "image"
	default:
		return fmt.Sprintf("DirectiveKind(%d)", int(k))
	}
}

// IsOpen reports whether k opens a block.
func (k DirectiveKind) IsOpen() bool { return k == LoopOpen || k == IfOpen }

// IsClose reports whether k closes a block.
func (k DirectiveKind) IsClose() bool { return k == LoopClose || k == IfClose }

// Block returns the block keyword of an open or close kind.
func (k DirectiveKind) Block() string {
	switch k {
	case LoopOpen, LoopClose:
		return "for"
	case IfOpen, IfClose:
		return "if"
	default:
		return ""
	}
}

// Encoding is the markup a directive was found in.
type Encoding int

const (
	// Hyperlink is a text:a whose target and text carry the payload.
	Hyperlink Encoding = iota
	// Attribute is a field or frame attribute carrying the payload.
	Attribute
)

func (e Encoding) String() string {
	if e == Hyperlink {
		return "hyperlink"
	}
	return "attribute"
}

// ImageBinding describes an image placeholder frame.
type ImageBinding struct {
	// Static frames are bound by name with Template.SetImage.
	Static bool
	// Name is the static image name or the expression yielding image data.
	Name      string
	KeepRatio bool
}

// Directive is one instruction found in a content tree.
type Directive struct {
	Kind DirectiveKind
	// Raw is the payload as written, without the py3o:// prefix.
	Raw string
	// Expr is the evaluator input: the loop clause, the condition or the
	// substituted expression.
	Expr     string
	Encoding Encoding
	// Site is the element carrying the payload.
	Site *xml.Node
	// Scope is the nearest structural unit around Site.
	Scope *xml.Node
	Image *ImageBinding
}

func (d *Directive) String() string {
	return fmt.Sprintf("%s(%s)", d.Kind, d.Raw)
}

const (
	payloadPrefix     = "py3o://"
	userFieldPrefix   = "py3o."
	staticImagePrefix = "py3o.staticimage."
	imagePrefix       = "py3o.image("
)

var (
	keywordRegex  = regexp.MustCompile(`^(for|if|function)\b`)
	callRegex     = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_.]*\s*\(.*\)$`)
	loopVarsRegex = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\s*,\s*[A-Za-z_][A-Za-z0-9_]*)?\s+in\s+\S`)
)

// ParseInstruction classifies a payload and returns the expression handed to
// the evaluator.
//
//	for="item in items"   loop open, "item in items"
//	/for                  loop close
//	if="cond"             conditional open, "cond"
//	/if                   conditional close
//	function="f(x)"       function call, "f(x)"
//	f(x)                  function call, "f(x)"
//	item.name             expression, "item.name"
func ParseInstruction(payload string) (DirectiveKind, string, error) {
	raw := payload
	p := strings.TrimSpace(payload)
	if p == "" {
		return 0, "", NewTemplateError(ErrGrammar, "Empty instruction")
	}

	if strings.HasPrefix(p, "/") {
		switch strings.TrimSpace(p[1:]) {
		case "for":
			return LoopClose, "", nil
		case "if":
			return IfClose, "", nil
		default:
			return 0, "", NewTemplateError(ErrGrammar, "Unknown closing instruction '%s'", raw)
		}
	}

	if m := keywordRegex.FindString(p); m != "" {
		rest := strings.TrimSpace(p[len(m):])
		if !strings.HasPrefix(rest, "=") {
			// "format_date(x)" style calls are not keywords
			if strings.HasPrefix(rest, "(") {
				return FunctionCall, p, nil
			}
			return 0, "", NewTemplateError(ErrGrammar, "Missing '=' in instruction '%s'", raw)
		}
		value := unquoteValue(strings.TrimSpace(rest[1:]))
		if value == "" {
			return 0, "", NewTemplateError(ErrGrammar, "Empty value in instruction '%s'", raw)
		}
		switch m {
		case "for":
			if !loopVarsRegex.MatchString(value) {
				return 0, "", NewTemplateError(ErrGrammar, "Invalid loop in instruction '%s'", raw)
			}
			return LoopOpen, value, nil
		case "if":
			return IfOpen, value, nil
		default:
			return FunctionCall, value, nil
		}
	}

	if callRegex.MatchString(p) {
		return FunctionCall, p, nil
	}
	return Expression, p, nil
}

// unquoteValue strips one pair of surrounding quotes, including the
// typographic ones word processors substitute while typing.
func unquoteValue(s string) string {
	pairs := [][2]string{{`"`, `"`}, {`'`, `'`}, {"“", "”"}, {"„", "“"}, {"‘", "’"}, {"«", "»"}, {"»", "«"}}
	for _, q := range pairs {
		if len(s) >= len(q[0])+len(q[1]) && strings.HasPrefix(s, q[0]) && strings.HasSuffix(s, q[1]) {
			return strings.TrimSpace(s[len(q[0]) : len(s)-len(q[1])])
		}
	}
	return s
}

// parseImageMarker parses a frame name holding an image binding:
//
//	py3o.staticimage.logo
//	py3o.image(item.picture)
//	py3o.image(item.picture, keep_ratio=False)
//
// It returns nil when name is not a marker.
func parseImageMarker(name string) (*ImageBinding, error) {
	name = strings.TrimSpace(name)
	if strings.HasPrefix(name, staticImagePrefix) {
		n := strings.TrimPrefix(name, staticImagePrefix)
		if n == "" {
			return nil, NewTemplateError(ErrGrammar, "Missing image name in '%s'", name)
		}
		return &ImageBinding{Static: true, Name: n, KeepRatio: true}, nil
	}
	if !strings.HasPrefix(name, imagePrefix) {
		return nil, nil
	}
	if !strings.HasSuffix(name, ")") {
		return nil, NewTemplateError(ErrGrammar, "Unterminated image instruction '%s'", name)
	}

	args := splitArgs(name[len(imagePrefix) : len(name)-1])
	if len(args) == 0 || args[0] == "" {
		return nil, NewTemplateError(ErrGrammar, "Missing image expression in '%s'", name)
	}
	b := &ImageBinding{Name: args[0], KeepRatio: true}
	for _, arg := range args[1:] {
		key, value, ok := strings.Cut(arg, "=")
		if !ok || strings.TrimSpace(key) != "keep_ratio" {
			return nil, NewTemplateError(ErrGrammar, "Unknown image option '%s' in '%s'", arg, name)
		}
		switch strings.ToLower(unquoteValue(strings.TrimSpace(value))) {
		case "true", "1":
			b.KeepRatio = true
		case "false", "0":
			b.KeepRatio = false
		default:
			return nil, NewTemplateError(ErrGrammar, "Invalid keep_ratio value '%s' in '%s'", value, name)
		}
	}
	return b, nil
}

// splitArgs splits on commas outside parentheses, brackets and quotes.
func splitArgs(s string) []string {
	var (
		args  []string
		depth int
		quote rune
		start int
	)
	for i, r := range s {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			}
		case r == '"' || r == '\'':
			quote = r
		case r == '(' || r == '[':
			depth++
		case r == ')' || r == ']':
			depth--
		case r == ',' && depth == 0:
			args = append(args, strings.TrimSpace(s[start:i]))
			start = i + 1
		}
	}
	return append(args, strings.TrimSpace(s[start:]))
}
