package stencil

import (
	"strings"

	"github.com/benjaminschreck/go-stencil-odf/pkg/stencil/render"
	"github.com/benjaminschreck/go-stencil-odf/pkg/stencil/xml"
)

// RenderOptions are the policies of one render call.
type RenderOptions struct {
	// IgnoreUndefinedVariables renders a missing name or field as empty text
	// instead of failing with an ErrUndefined template error.
	IgnoreUndefinedVariables bool
	// EscapeFalse renders a substituted false as "false"; by default it
	// renders as empty text.
	EscapeFalse bool
}

// EvalOptions is what an Evaluator receives besides source and data.
type EvalOptions struct {
	RenderOptions
	// Functions resolves helper calls. Nil means the default registry.
	Functions FunctionRegistry
	// MaxDepth limits nested blocks. 0 means no limit.
	MaxDepth int
	// BindImage registers the data of an image placeholder and returns the
	// frame name to write. ok=false means no data was bound; a non-empty
	// name is still written so repeated frames stay distinct.
	BindImage func(b *ImageBinding, value interface{}) (name string, ok bool, err error)
	// TypeCell receives, in output order, the value of every substitution
	// that fills a table cell on its own.
	TypeCell func(value interface{})
}

// Evaluator renders template source against a data context. The rendered
// text must be well-formed markup again.
type Evaluator interface {
	Evaluate(src *TemplateSource, data TemplateData, opts EvalOptions) (string, error)
}

// builtinEvaluator is the expression engine of this package.
type builtinEvaluator struct{}

func (builtinEvaluator) Evaluate(src *TemplateSource, data TemplateData, opts EvalOptions) (string, error) {
	return evaluateTokens(src.Tokens(), data, opts)
}

// DefaultEvaluator returns the built-in evaluator.
func DefaultEvaluator() Evaluator { return builtinEvaluator{} }

func evaluateTokens(tokens []Token, data TemplateData, opts EvalOptions) (out string, err error) {
	// funcs from the render context run user code
	defer func() {
		if r := recover(); r != nil {
			out, err = "", toTemplateError(RecoverError(r))
		}
	}()

	body, err := ParseControlStructures(tokens)
	if err != nil {
		return "", toTemplateError(err)
	}
	env := newEvalEnv(data, opts)
	var w strings.Builder
	if err := renderControlBody(body, env, &w); err != nil {
		return "", toTemplateError(err)
	}
	return w.String(), nil
}

// boundImage is image data waiting for its frame in the rendered tree.
type boundImage struct {
	binding *ImageBinding
	data    []byte
}

// renderSession is the state shared by all parts of one render: the id
// registry, the frame names handed out and the images bound so far.
type renderSession struct {
	opts      RenderOptions
	functions FunctionRegistry
	maxDepth  int
	evaluator Evaluator

	ids     *render.IDRegistry
	frames  *render.IDRegistry
	static  map[string][]byte
	pending map[string]*boundImage
	cells   []interface{}
	pkg     *odfPackage
	newName func() (string, error)
}

var frameNameAttributes = []render.IDAttribute{{Space: xml.NSDraw, Local: "name"}}

func newRenderSession(pkg *odfPackage, trees []*xml.Document, static map[string][]byte) *renderSession {
	s := &renderSession{
		ids:       render.NewIDRegistry(),
		frames:    render.NewIDRegistry(),
		static:    static,
		pending:   make(map[string]*boundImage),
		pkg:       pkg,
		evaluator: builtinEvaluator{},
		newName:   newPartName,
	}
	for _, doc := range trees {
		render.ObserveDocument(doc, s.frames, frameNameAttributes)
	}
	return s
}

// renderPart runs scan, balance, lowering, evaluation and repair on one tree
// and returns the rendered tree.
func (s *renderSession) renderPart(part string, doc *xml.Document, data TemplateData) (*xml.Document, error) {
	logger := GetLogger()

	directives, err := Scan(doc)
	if err != nil {
		return nil, inPart(err, part)
	}
	blocks, err := BalanceDirectives(directives)
	if err != nil {
		return nil, inPart(err, part)
	}
	src, err := BuildTemplateSource(doc, directives, blocks)
	if err != nil {
		return nil, inPart(toTemplateError(err), part)
	}
	logger.Debug().Str("part", part).Int("directives", len(directives)).Int("blocks", len(blocks)).Msg("template source built")

	out, err := s.evaluator.Evaluate(src, data, EvalOptions{
		RenderOptions: s.opts,
		Functions:     s.functions,
		MaxDepth:      s.maxDepth,
		BindImage:     s.bindImage,
		TypeCell:      s.typeCell,
	})
	if err != nil {
		return nil, inPart(toTemplateError(err), part)
	}

	rendered, err := xml.ParseString(out)
	if err != nil {
		return nil, inPart(&TemplateError{
			Kind:    ErrStructure,
			Message: "rendered " + part + " is not well-formed: " + err.Error(),
			Cause:   err,
		}, part)
	}

	s.typeCells(rendered)
	if n := render.RepairDuplicateIDs(rendered, s.ids); n > 0 {
		logger.Debug().Str("part", part).Int("renamed", n).Msg("duplicate ids repaired")
	}
	if err := s.injectImages(rendered); err != nil {
		return nil, inPart(err, part)
	}
	return rendered, nil
}

// typeCell implements EvalOptions.TypeCell.
func (s *renderSession) typeCell(value interface{}) {
	s.cells = append(s.cells, value)
}

// bindImage implements EvalOptions.BindImage.
func (s *renderSession) bindImage(b *ImageBinding, value interface{}) (string, bool, error) {
	var data []byte
	base := "image"
	if b.Static {
		d, ok := s.static[b.Name]
		if !ok {
			if s.opts.IgnoreUndefinedVariables {
				return s.frames.Fresh(b.Name), false, nil
			}
			return "", false, &TemplateError{
				Kind:    ErrUndefined,
				Message: "Image '" + b.Name + "' is not set",
			}
		}
		data, base = d, b.Name
	} else {
		if value == nil {
			return s.frames.Fresh(base), false, nil
		}
		d, err := imageData(value)
		if err != nil {
			return "", false, &TemplateError{
				Kind:    ErrData,
				Message: "invalid image data for '" + b.Name + "': " + err.Error(),
				Cause:   err,
			}
		}
		data = d
	}

	name := s.frames.Fresh(base)
	s.pending[name] = &boundImage{binding: b, data: data}
	return name, true, nil
}
