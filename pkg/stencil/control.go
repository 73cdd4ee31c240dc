package stencil

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/benjaminschreck/go-stencil-odf/pkg/stencil/render"
	"github.com/benjaminschreck/go-stencil-odf/pkg/stencil/xml"
)

// ControlStructure is one node of a parsed template body.
type ControlStructure interface {
	Render(env *evalEnv, w *strings.Builder) error
	String() string
}

// IfNode represents a conditional block
type IfNode struct {
	Condition ExpressionNode
	Body      []ControlStructure
	Raw       string
}

func (n *IfNode) String() string {
	return fmt.Sprintf("If(%s)", n.Condition.String())
}

func (n *IfNode) Render(env *evalEnv, w *strings.Builder) error {
	if err := env.enter(); err != nil {
		return err
	}
	condValue, err := n.Condition.Evaluate(env)
	if err != nil {
		return fmt.Errorf("failed to evaluate if condition '%s': %w", n.Raw, err)
	}
	if !isTruthy(condValue) {
		return nil
	}
	return renderControlBody(n.Body, env.child(nil), w)
}

// ForNode represents a for loop
type ForNode struct {
	Variable   string
	IndexVar   string // optional, "idx, item in items"
	Collection ExpressionNode
	Body       []ControlStructure
	Raw        string
}

func (n *ForNode) String() string {
	if n.IndexVar != "" {
		return fmt.Sprintf("For(%s, %s in %s)", n.IndexVar, n.Variable, n.Collection.String())
	}
	return fmt.Sprintf("For(%s in %s)", n.Variable, n.Collection.String())
}

func (n *ForNode) Render(env *evalEnv, w *strings.Builder) error {
	if err := env.enter(); err != nil {
		return err
	}
	collectionVal, err := n.Collection.Evaluate(env)
	if err != nil {
		return fmt.Errorf("failed to evaluate collection '%s': %w", n.Raw, err)
	}

	items, err := toSlice(collectionVal)
	if err != nil {
		return fmt.Errorf("collection is not iterable: %w", err)
	}

	for i, item := range items {
		vars := map[string]interface{}{n.Variable: item}
		if n.IndexVar != "" {
			vars[n.IndexVar] = i
		}
		if err := renderControlBody(n.Body, env.child(vars), w); err != nil {
			return err
		}
	}
	return nil
}

// TextNode represents literal markup or text
type TextNode struct {
	Content string
}

func (n *TextNode) String() string {
	return fmt.Sprintf("Text(%q)", n.Content)
}

func (n *TextNode) Render(env *evalEnv, w *strings.Builder) error {
	w.WriteString(n.Content)
	return nil
}

// ExpressionContentNode substitutes the value of an expression
type ExpressionContentNode struct {
	Expression ExpressionNode
	Context    OutputContext
	Raw        string
}

func (n *ExpressionContentNode) String() string {
	return fmt.Sprintf("Expression(%s)", n.Expression.String())
}

func (n *ExpressionContentNode) Render(env *evalEnv, w *strings.Builder) error {
	value, err := n.Expression.Evaluate(env)
	if err != nil {
		return err
	}
	if n.Context == ContextCell && env.opts.TypeCell != nil {
		env.opts.TypeCell(value)
	}
	if b, ok := value.(bool); ok && !b && !env.opts.EscapeFalse {
		return nil
	}
	w.WriteString(escapeFor(n.Context, FormatValue(value)))
	return nil
}

// ImageNode resolves an image placeholder and writes the frame name the
// post processor will look for.
type ImageNode struct {
	Binding *ImageBinding
	Value   ExpressionNode // nil for static images
	Raw     string
}

func (n *ImageNode) String() string {
	return fmt.Sprintf("Image(%s)", n.Binding.Name)
}

func (n *ImageNode) Render(env *evalEnv, w *strings.Builder) error {
	var value interface{}
	if n.Value != nil {
		v, err := n.Value.Evaluate(env)
		if err != nil {
			return err
		}
		value = v
	}
	name := n.Raw
	if env.opts.BindImage != nil {
		bound, _, err := env.opts.BindImage(n.Binding, value)
		if err != nil {
			return err
		}
		if bound != "" {
			name = bound
		}
	}
	w.WriteString(xml.EscapeAttr(name))
	return nil
}

func escapeFor(ctx OutputContext, s string) string {
	switch ctx {
	case ContextAttribute:
		return xml.EscapeAttr(s)
	case ContextRaw:
		return s
	default:
		return render.ParagraphText(s)
	}
}

// renderControlBody renders a list of control structures
func renderControlBody(body []ControlStructure, env *evalEnv, w *strings.Builder) error {
	for _, item := range body {
		if err := item.Render(env, w); err != nil {
			return err
		}
	}
	return nil
}

// ControlParser parses control structures from template tokens
type ControlParser struct {
	tokens []Token
	pos    int
}

// ParseControlStructures parses tokens into control structures.
func ParseControlStructures(tokens []Token) ([]ControlStructure, error) {
	p := &ControlParser{tokens: tokens}
	body, err := p.parseBody(nil)
	if err != nil {
		return nil, err
	}
	if p.pos < len(p.tokens) {
		tok := p.current()
		return nil, NewTemplateError(ErrStructure, "No open instruction for /%s", tok.Value)
	}
	return body, nil
}

func (p *ControlParser) current() Token {
	if p.pos >= len(p.tokens) {
		return Token{Type: TokenText}
	}
	return p.tokens[p.pos]
}

func (p *ControlParser) advance() {
	if p.pos < len(p.tokens) {
		p.pos++
	}
}

// parseBody parses until the end token closing open, or to the end of input
// at top level.
func (p *ControlParser) parseBody(open *Token) ([]ControlStructure, error) {
	var body []ControlStructure

	for p.pos < len(p.tokens) {
		tok := p.current()

		switch tok.Type {
		case TokenEnd:
			if open != nil && tok.Value != blockOf(open.Type) {
				return nil, NewTemplateError(ErrStructure, "Instruction /%s does not match open instruction '%s'", tok.Value, open.Raw)
			}
			return body, nil

		case TokenText:
			if tok.Value != "" {
				body = append(body, &TextNode{Content: tok.Value})
			}
			p.advance()

		case TokenVariable:
			expr, err := parseDirectiveExpression(tok)
			if err != nil {
				return nil, err
			}
			body = append(body, &ExpressionContentNode{Expression: expr, Context: tok.Context, Raw: tok.Raw})
			p.advance()

		case TokenImage:
			node := &ImageNode{Binding: tok.Image, Raw: tok.Raw}
			if !tok.Image.Static {
				expr, err := parseDirectiveExpression(tok)
				if err != nil {
					return nil, err
				}
				node.Value = expr
			}
			body = append(body, node)
			p.advance()

		case TokenIf:
			cond, err := parseDirectiveExpression(tok)
			if err != nil {
				return nil, err
			}
			p.advance()
			inner, err := p.parseClosed(tok)
			if err != nil {
				return nil, err
			}
			body = append(body, &IfNode{Condition: cond, Body: inner, Raw: tok.Raw})

		case TokenFor:
			forNode, err := parseForSyntax(tok.Value)
			if err != nil {
				return nil, NewTemplateError(ErrGrammar, "Invalid loop in instruction '%s': %v", tok.Raw, err)
			}
			forNode.Raw = tok.Raw
			p.advance()
			inner, err := p.parseClosed(tok)
			if err != nil {
				return nil, err
			}
			forNode.Body = inner
			body = append(body, forNode)

		default:
			return nil, fmt.Errorf("unexpected token type: %v", tok.Type)
		}
	}

	return body, nil
}

// parseClosed parses a block body and consumes its end token.
func (p *ControlParser) parseClosed(open Token) ([]ControlStructure, error) {
	inner, err := p.parseBody(&open)
	if err != nil {
		return nil, err
	}
	if p.pos >= len(p.tokens) {
		return nil, NewTemplateError(ErrStructure, "No closing instruction for '%s'", open.Raw)
	}
	p.advance()
	return inner, nil
}

func blockOf(t TokenType) string {
	if t == TokenFor {
		return "for"
	}
	return "if"
}

func parseDirectiveExpression(tok Token) (ExpressionNode, error) {
	expr, err := ParseExpressionStrict(tok.Value)
	if err != nil {
		return nil, &TemplateError{
			Kind:    ErrGrammar,
			Message: fmt.Sprintf("Invalid expression in instruction '%s': %v", tok.Raw, err),
			Cause:   err,
		}
	}
	return expr, nil
}

// forInRegex separates loop variables from the collection; any whitespace
// may surround the keyword.
var forInRegex = regexp.MustCompile(`\s+in\s+`)

// parseForSyntax parses "var in collection" or "idx, var in collection".
func parseForSyntax(forStr string) (*ForNode, error) {
	forStr = strings.TrimSpace(forStr)

	loc := forInRegex.FindStringIndex(forStr)
	if loc == nil {
		return nil, fmt.Errorf("missing 'in' keyword")
	}

	varsStr := strings.TrimSpace(forStr[:loc[0]])
	collection, err := ParseExpressionStrict(strings.TrimSpace(forStr[loc[1]:]))
	if err != nil {
		return nil, fmt.Errorf("failed to parse collection expression: %w", err)
	}

	node := &ForNode{Variable: varsStr, Collection: collection}
	if idx, item, ok := strings.Cut(varsStr, ","); ok {
		node.IndexVar = strings.TrimSpace(idx)
		node.Variable = strings.TrimSpace(item)
		if node.IndexVar == "" || node.Variable == "" || strings.Contains(node.Variable, ",") {
			return nil, fmt.Errorf("invalid indexed for loop syntax")
		}
	}
	return node, nil
}
