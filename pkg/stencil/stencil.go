package stencil

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/benjaminschreck/go-stencil-odf/pkg/stencil/render"
	"github.com/benjaminschreck/go-stencil-odf/pkg/stencil/xml"
)

// TemplateData represents the data context for rendering templates.
// Values can be strings, numbers, booleans, slices, maps, structs or funcs
// callable from function directives.
type TemplateData map[string]interface{}

// ErrAlreadyRendered is returned by a second render of one Template.
var ErrAlreadyRendered = errors.New("template has already been rendered")

// ErrClosed is returned when a closed Template is used.
var ErrClosed = errors.New("template is closed")

// Template is one opened document template. It renders once; open the
// source again for another document.
type Template struct {
	source      string
	destination string
	settings    settings

	pkg    *odfPackage
	parts  []string
	trees  map[string]*xml.Document
	images map[string][]byte

	rendered bool
	closed   bool
	mu       sync.Mutex
}

// Open loads the template at source. Render writes the result to
// destination.
func Open(source, destination string, opts ...Option) (*Template, error) {
	return DefaultEngine.Open(source, destination, opts...)
}

// Load reads a template from r. The result has no destination; use RenderTo.
func Load(r io.Reader, opts ...Option) (*Template, error) {
	return DefaultEngine.Load(r, opts...)
}

func newTemplate(data []byte, source, destination string, s settings) (*Template, error) {
	pkg, err := openPackage(data)
	if err != nil {
		return nil, NewDocumentError("open", source, err)
	}

	t := &Template{
		source:      source,
		destination: destination,
		settings:    s,
		pkg:         pkg,
		trees:       make(map[string]*xml.Document),
		images:      make(map[string][]byte),
	}
	for name, img := range s.images {
		t.images[name] = img
	}
	for _, part := range templatedParts {
		if !pkg.HasPart(part) {
			continue
		}
		raw, err := pkg.ReadPart(part)
		if err != nil {
			return nil, NewDocumentError("read", part, err)
		}
		doc, err := xml.Parse(raw)
		if err != nil {
			return nil, NewDocumentError("parse", part, err)
		}
		t.parts = append(t.parts, part)
		t.trees[part] = doc
	}

	GetLogger().Debug().Str("source", source).Strs("parts", t.parts).Msg("template opened")
	return t, nil
}

// SetImage binds data to the static image placeholder py3o.staticimage.<name>.
func (t *Template) SetImage(name string, data []byte) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.images[name] = data
}

// SetImageFile binds the file at path to a static image placeholder.
func (t *Template) SetImageFile(name, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return NewDocumentError("read", path, err)
	}
	t.SetImage(name, data)
	return nil
}

// Render renders with the configured options and writes the destination.
func (t *Template) Render(data TemplateData) error {
	return t.RenderWithOptions(data, t.settings.render)
}

// RenderWithOptions is Render with explicit render options.
func (t *Template) RenderWithOptions(data TemplateData, opts RenderOptions) error {
	if t.destination == "" {
		return NewDocumentError("render", t.source, fmt.Errorf("no destination set"))
	}
	return writeFileAtomic(t.destination, func(w io.Writer) error {
		return t.renderTo(w, data, opts)
	})
}

// RenderTo renders and writes the document to w.
func (t *Template) RenderTo(w io.Writer, data TemplateData) error {
	return t.renderTo(w, data, t.settings.render)
}

// RenderBytes renders and returns the document.
func (t *Template) RenderBytes(data TemplateData) ([]byte, error) {
	var buf bytes.Buffer
	if err := t.RenderTo(&buf, data); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (t *Template) renderTo(w io.Writer, data TemplateData, opts RenderOptions) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return ErrClosed
	}
	if t.rendered {
		return ErrAlreadyRendered
	}
	t.rendered = true

	if t.settings.removeSoftBreaks {
		t.removeSoftBreaksLocked()
	}

	trees := make([]*xml.Document, 0, len(t.parts))
	for _, part := range t.parts {
		trees = append(trees, t.trees[part])
	}
	session := newRenderSession(t.pkg, trees, t.images)
	session.opts = opts
	session.functions = t.settings.functions
	session.maxDepth = t.settings.maxDepth
	if t.settings.evaluator != nil {
		session.evaluator = t.settings.evaluator
	}

	for _, part := range t.parts {
		out, err := session.renderPart(part, t.trees[part], data)
		if err != nil {
			GetLogger().Debug().Err(err).Str("part", part).Msg("render failed")
			return err
		}
		t.trees[part] = out
		t.pkg.SetPart(part, out.Bytes())
	}

	if err := t.pkg.WriteTo(w); err != nil {
		return NewDocumentError("write", t.destination, err)
	}
	GetLogger().Info().Str("source", t.source).Str("destination", t.destination).Msg("template rendered")
	return nil
}

// ContentTrees returns the trees of the templated parts in TemplatedFiles
// order. After a render they are the rendered trees.
func (t *Template) ContentTrees() []*xml.Document {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]*xml.Document, 0, len(t.parts))
	for _, part := range t.parts {
		out = append(out, t.trees[part])
	}
	return out
}

// TemplatedFiles lists the package parts scanned for directives.
func (t *Template) TemplatedFiles() []string {
	return append([]string(nil), t.parts...)
}

// Namespaces returns the namespace declarations of the templated parts.
func (t *Template) Namespaces() map[string]string {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make(map[string]string)
	for _, part := range t.parts {
		for prefix, uri := range t.trees[part].Namespaces() {
			if _, ok := out[prefix]; !ok {
				out[prefix] = uri
			}
		}
	}
	return out
}

// RemoveSoftBreaks removes soft page breaks from the templated parts and
// returns how many were removed.
func (t *Template) RemoveSoftBreaks() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.removeSoftBreaksLocked()
}

func (t *Template) removeSoftBreaksLocked() int {
	n := 0
	for _, part := range t.parts {
		n += render.RemoveSoftBreaks(t.trees[part])
	}
	if n > 0 {
		GetLogger().Debug().Int("removed", n).Msg("soft page breaks removed")
	}
	return n
}

// Close releases the template.
func (t *Template) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.closed = true
	t.trees = nil
	t.pkg = nil
	return nil
}
