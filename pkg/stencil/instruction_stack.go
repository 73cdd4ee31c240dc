package stencil

import (
	"github.com/benjaminschreck/go-stencil-odf/pkg/stencil/render"
	"github.com/benjaminschreck/go-stencil-odf/pkg/stencil/xml"
)

// StackFrame is an open block waiting for its closing directive.
type StackFrame struct {
	Kind      DirectiveKind
	Directive *Directive
	Scope     *xml.Node
	// Depth is the number of blocks open around this one.
	Depth int
}

// Block is a matched open/close pair and the nodes it governs.
//
// Ancestor is the lowest node containing both directive sites. OpenCarrier
// and CloseCarrier are its children on the paths down to the sites; they are
// replaced by the block markers. The siblings between them form the body.
type Block struct {
	Open, Close  *Directive
	Depth        int
	Ancestor     *xml.Node
	OpenCarrier  *xml.Node
	CloseCarrier *xml.Node
}

// Body returns the nodes repeated or guarded by the block.
func (b *Block) Body() []*xml.Node {
	start, end := b.OpenCarrier.Index(), b.CloseCarrier.Index()
	if start < 0 || end <= start {
		return nil
	}
	return append([]*xml.Node(nil), b.Ancestor.Children[start+1:end]...)
}

// InstructionStack checks the nesting of block directives.
type InstructionStack struct {
	frames []StackFrame
}

// Len returns the number of open blocks.
func (s *InstructionStack) Len() int { return len(s.frames) }

// Push opens a block.
func (s *InstructionStack) Push(d *Directive) {
	s.frames = append(s.frames, StackFrame{
		Kind:      d.Kind,
		Directive: d,
		Scope:     d.Scope,
		Depth:     len(s.frames),
	})
}

// Pop closes the innermost block with d and returns the matched pair.
func (s *InstructionStack) Pop(d *Directive) (*Block, error) {
	if len(s.frames) == 0 {
		return nil, NewTemplateError(ErrStructure, "No open instruction for /%s", d.Kind.Block())
	}
	top := s.frames[len(s.frames)-1]
	if top.Kind.Block() != d.Kind.Block() {
		return nil, NewTemplateError(ErrStructure, "Instruction /%s does not match open instruction '%s'", d.Kind.Block(), top.Directive.Raw)
	}
	s.frames = s.frames[:len(s.frames)-1]

	if top.Scope == d.Scope {
		return nil, NewTemplateError(ErrStructure,
			"invalid template: '%s' and '/%s' are in the same %s", top.Directive.Raw, d.Kind.Block(), scopeName(d.Scope))
	}

	ancestor := render.CommonAncestor(top.Directive.Site, d.Site)
	b := &Block{
		Open:         top.Directive,
		Close:        d,
		Depth:        top.Depth,
		Ancestor:     ancestor,
		OpenCarrier:  render.ChildToward(ancestor, top.Directive.Site),
		CloseCarrier: render.ChildToward(ancestor, d.Site),
	}
	if b.OpenCarrier == nil || b.CloseCarrier == nil || b.OpenCarrier == b.CloseCarrier {
		return nil, NewTemplateError(ErrStructure,
			"invalid template: '%s' and '/%s' cannot delimit a block", top.Directive.Raw, d.Kind.Block())
	}
	return b, nil
}

// Finish reports the innermost block left open.
func (s *InstructionStack) Finish() error {
	if len(s.frames) == 0 {
		return nil
	}
	top := s.frames[len(s.frames)-1]
	return NewTemplateError(ErrStructure, "No closing instruction for '%s'", top.Directive.Raw)
}

// BalanceDirectives pairs the block directives of one tree and checks that
// consumed carriers hold nothing but their own markers.
func BalanceDirectives(directives []*Directive) ([]*Block, error) {
	var (
		stack  InstructionStack
		blocks []*Block
	)
	for _, d := range directives {
		switch {
		case d.Kind.IsOpen():
			stack.Push(d)
		case d.Kind.IsClose():
			b, err := stack.Pop(d)
			if err != nil {
				return nil, err
			}
			blocks = append(blocks, b)
		}
	}
	if err := stack.Finish(); err != nil {
		return nil, err
	}
	if err := checkCarriers(directives, blocks); err != nil {
		return nil, err
	}
	return blocks, nil
}

// checkCarriers rejects directives that would vanish with a consumed carrier
// and carriers that would emit two markers of one kind at one depth.
func checkCarriers(directives []*Directive, blocks []*Block) error {
	type slot struct {
		kind  DirectiveKind
		depth int
	}
	owners := make(map[*xml.Node]map[*Directive]bool)
	slots := make(map[*xml.Node]map[slot]*Directive)

	claim := func(carrier *xml.Node, d *Directive, depth int) error {
		if owners[carrier] == nil {
			owners[carrier] = make(map[*Directive]bool)
			slots[carrier] = make(map[slot]*Directive)
		}
		key := slot{d.Kind, depth}
		if prev, ok := slots[carrier][key]; ok {
			return NewTemplateError(ErrStructure,
				"invalid template: '%s' and '%s' share one %s", prev.Raw, d.Raw, scopeName(carrier))
		}
		slots[carrier][key] = d
		owners[carrier][d] = true
		return nil
	}
	for _, b := range blocks {
		if err := claim(b.OpenCarrier, b.Open, b.Depth); err != nil {
			return err
		}
		if err := claim(b.CloseCarrier, b.Close, b.Depth); err != nil {
			return err
		}
	}

	for _, b := range blocks {
		for _, c := range []struct {
			carrier *xml.Node
			holder  *Directive
		}{{b.OpenCarrier, b.Open}, {b.CloseCarrier, b.Close}} {
			for _, d := range directives {
				if owners[c.carrier][d] || !c.carrier.Contains(d.Site) {
					continue
				}
				return NewTemplateError(ErrStructure,
					"invalid template: instruction '%s' is inside the %s holding '%s'", d.Raw, scopeName(c.carrier), c.holder.Raw)
			}
		}
	}
	return nil
}

// scopeName names an element for messages, e.g. "text:p".
func scopeName(n *xml.Node) string {
	if n == nil {
		return "document"
	}
	if n.Type != xml.ElementNode {
		return "node"
	}
	return n.Name.String()
}
