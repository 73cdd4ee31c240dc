package stencil

import (
	"io"
	"os"
)

// TextTemplate renders plain text with the directive grammar of documents:
// {% for="x in xs" %}, {% /for %}, {% if="x" %}, {% /if %} and ${expr}.
type TextTemplate struct {
	tokens []Token
	opts   EvalOptions
}

// NewTextTemplate parses src.
func NewTextTemplate(src string, opts ...Option) (*TextTemplate, error) {
	tokens, err := TokenizeText(src)
	if err != nil {
		return nil, toTemplateError(err)
	}
	// surface block errors before render
	if _, err := ParseControlStructures(tokens); err != nil {
		return nil, toTemplateError(err)
	}

	s := DefaultEngine.settings.with(opts)
	return &TextTemplate{
		tokens: tokens,
		opts: EvalOptions{
			RenderOptions: s.render,
			Functions:     s.functions,
			MaxDepth:      s.maxDepth,
		},
	}, nil
}

// ParseTextFile reads and parses a text template file.
func ParseTextFile(path string, opts ...Option) (*TextTemplate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, NewDocumentError("read", path, err)
	}
	return NewTextTemplate(string(data), opts...)
}

// Render returns the rendered text.
func (t *TextTemplate) Render(data TemplateData) (string, error) {
	return evaluateTokens(t.tokens, data, t.opts)
}

// RenderWithOptions is Render with explicit render options.
func (t *TextTemplate) RenderWithOptions(data TemplateData, opts RenderOptions) (string, error) {
	eo := t.opts
	eo.RenderOptions = opts
	return evaluateTokens(t.tokens, data, eo)
}

// RenderTo writes the rendered text to w.
func (t *TextTemplate) RenderTo(w io.Writer, data TemplateData) error {
	out, err := t.Render(data)
	if err != nil {
		return err
	}
	_, err = io.WriteString(w, out)
	return err
}
