package stencil

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/hashicorp/go-multierror"

	"github.com/benjaminschreck/go-stencil-odf/pkg/stencil/xml"
)

const validationParserVersion = "odf-1"

// IssueSeverity indicates parser issue severity.
type IssueSeverity string

const (
	IssueSeverityError   IssueSeverity = "error"
	IssueSeverityWarning IssueSeverity = "warning"
)

// StencilIssueCode contains the issue codes emitted by validation.
type StencilIssueCode string

const (
	IssueCodeSyntaxError          StencilIssueCode = "SYNTAX_ERROR"
	IssueCodeControlBlockMismatch StencilIssueCode = "CONTROL_BLOCK_MISMATCH"
	IssueCodeUnsupportedExpr      StencilIssueCode = "UNSUPPORTED_EXPRESSION"
	IssueCodeInvalidDirective     StencilIssueCode = "INVALID_DIRECTIVE"
)

// TokenKind identifies extracted reference categories.
type TokenKind string

const (
	TokenKindVariable TokenKind = "variable"
	TokenKindControl  TokenKind = "control"
	TokenKindFunction TokenKind = "function"
	TokenKindImage    TokenKind = "image"
)

// ValidateTemplateInput controls validation behavior.
type ValidateTemplateInput struct {
	Template           []byte `json:"-"`
	TemplateRevisionID string `json:"templateRevisionId,omitempty"`
	MaxIssues          int    `json:"maxIssues,omitempty"` // 0 = unlimited
}

// ExtractReferencesInput controls reference extraction behavior.
type ExtractReferencesInput struct {
	Template           []byte `json:"-"`
	TemplateRevisionID string `json:"templateRevisionId,omitempty"`
}

// TemplateLocation identifies a directive in a templated part.
type TemplateLocation struct {
	Part string `json:"part"`
	// Ordinal is the position of the directive among the directive sites
	// of its part, in document order.
	Ordinal  int    `json:"ordinal"`
	Encoding string `json:"encoding,omitempty"`
	Element  string `json:"element"`
	AnchorID string `json:"anchorId,omitempty"`
}

// TemplateTokenRef references one directive-derived item.
type TemplateTokenRef struct {
	Raw        string           `json:"raw"`
	Kind       TokenKind        `json:"kind"`
	Expression string           `json:"expression,omitempty"`
	Location   TemplateLocation `json:"location"`
}

// StencilValidationIssue is one problem found in a template.
type StencilValidationIssue struct {
	ID       string           `json:"id"`
	Severity IssueSeverity    `json:"severity"`
	Code     StencilIssueCode `json:"code"`
	Message  string           `json:"message"`
	Token    TemplateTokenRef `json:"token"`
}

func (i StencilValidationIssue) Error() string {
	return fmt.Sprintf("%s: %s: %s", i.Token.Location.Part, i.Code, i.Message)
}

// StencilValidationSummary contains validation counters.
type StencilValidationSummary struct {
	CheckedDirectives  int `json:"checkedDirectives"`
	ErrorCount         int `json:"errorCount"`
	WarningCount       int `json:"warningCount"`
	ReturnedIssueCount int `json:"returnedIssueCount"`
}

// StencilMetadata identifies parser metadata and request passthrough fields.
type StencilMetadata struct {
	DocumentHash       string `json:"documentHash"`
	TemplateRevisionID string `json:"templateRevisionId,omitempty"`
	ParserVersion      string `json:"parserVersion"`
}

// ValidationResult contains validation output.
type ValidationResult struct {
	Valid           bool                     `json:"valid"`
	Summary         StencilValidationSummary `json:"summary"`
	Issues          []StencilValidationIssue `json:"issues"`
	IssuesTruncated bool                     `json:"issuesTruncated"`
	Metadata        StencilMetadata          `json:"metadata"`
}

// Err returns the returned issues as a *multierror.Error, or nil when the
// template is valid.
func (r ValidationResult) Err() error {
	var result *multierror.Error
	for _, issue := range r.Issues {
		result = multierror.Append(result, issue)
	}
	return result.ErrorOrNil()
}

// ExtractReferencesResult contains the references used by a template.
type ExtractReferencesResult struct {
	References []TemplateTokenRef `json:"references"`
	Metadata   StencilMetadata    `json:"metadata"`
}

// ValidateTemplate checks every templated part of an ODF template and
// reports all problems instead of stopping at the first one. The error is
// non-nil only when the package itself cannot be read.
func ValidateTemplate(input ValidateTemplateInput) (ValidationResult, error) {
	if len(input.Template) == 0 {
		return ValidationResult{}, fmt.Errorf("template bytes are required")
	}
	if input.MaxIssues < 0 {
		return ValidationResult{}, fmt.Errorf("maxIssues must be >= 0")
	}

	parts, err := scanTemplateParts(input.Template)
	if err != nil {
		return ValidationResult{}, err
	}

	var (
		issues  []StencilValidationIssue
		checked int
	)
	for _, p := range parts {
		checked += len(p.directives) + len(p.failures)
		issues = append(issues, validatePart(p)...)
	}

	sortValidationIssues(issues)
	for i := range issues {
		issues[i].ID = fmt.Sprintf("iss_%03d", i+1)
	}

	returned := issues
	truncated := false
	if input.MaxIssues > 0 && len(issues) > input.MaxIssues {
		returned = issues[:input.MaxIssues]
		truncated = true
	}

	GetLogger().Debug().Int("directives", checked).Int("issues", len(issues)).Msg("template validated")

	return ValidationResult{
		Valid: len(issues) == 0,
		Summary: StencilValidationSummary{
			CheckedDirectives:  checked,
			ErrorCount:         len(issues),
			ReturnedIssueCount: len(returned),
		},
		Issues:          returned,
		IssuesTruncated: truncated,
		Metadata:        newValidationMetadata(input.Template, input.TemplateRevisionID),
	}, nil
}

// ExtractReferences lists the variables, control expressions, functions and
// static images used by the directives of a template. Directives that do
// not parse are skipped.
func ExtractReferences(input ExtractReferencesInput) (ExtractReferencesResult, error) {
	if len(input.Template) == 0 {
		return ExtractReferencesResult{}, fmt.Errorf("template bytes are required")
	}

	parts, err := scanTemplateParts(input.Template)
	if err != nil {
		return ExtractReferencesResult{}, err
	}

	references := make([]TemplateTokenRef, 0)
	for _, p := range parts {
		for i, d := range p.directives {
			references = append(references, directiveReferences(p.name, i, d)...)
		}
	}
	sortTemplateReferences(references)

	return ExtractReferencesResult{
		References: references,
		Metadata:   newValidationMetadata(input.Template, input.TemplateRevisionID),
	}, nil
}

type scannedPart struct {
	name       string
	directives []*Directive
	failures   []scanFailure
	// ordinals maps directives and failed sites to their document position.
	ordinals map[*xml.Node]int
}

type scanFailure struct {
	site *xml.Node
	err  error
}

func scanTemplateParts(data []byte) ([]scannedPart, error) {
	pkg, err := openPackage(data)
	if err != nil {
		return nil, NewDocumentError("open", "", err)
	}

	var parts []scannedPart
	for _, name := range templatedParts {
		if !pkg.HasPart(name) {
			continue
		}
		raw, err := pkg.ReadPart(name)
		if err != nil {
			return nil, NewDocumentError("read", name, err)
		}
		doc, err := xml.Parse(raw)
		if err != nil {
			return nil, NewDocumentError("parse", name, err)
		}
		parts = append(parts, scanCollecting(name, doc))
	}
	return parts, nil
}

// scanCollecting is Scan that records failing sites and keeps walking.
func scanCollecting(name string, doc *xml.Document) scannedPart {
	p := scannedPart{name: name, ordinals: make(map[*xml.Node]int)}
	doc.Node().Walk(func(n *xml.Node) bool {
		if n.Type != xml.ElementNode {
			return true
		}
		for _, ex := range DefaultExtractors {
			d, ok, err := ex.ExtractDirective(n)
			if err != nil {
				p.ordinals[n] = len(p.ordinals)
				p.failures = append(p.failures, scanFailure{site: n, err: err})
				return false
			}
			if ok {
				p.ordinals[n] = len(p.ordinals)
				p.directives = append(p.directives, d)
				return d.Kind == ImageBind
			}
		}
		return true
	})
	return p
}

func validatePart(p scannedPart) []StencilValidationIssue {
	var issues []StencilValidationIssue

	ref := func(d *Directive) TemplateTokenRef {
		return TemplateTokenRef{
			Raw:        d.Raw,
			Kind:       directiveTokenKind(d),
			Expression: d.Expr,
			Location:   directiveLocation(p.name, p.ordinals[d.Site], d.Encoding.String(), d.Site, d.Raw),
		}
	}
	add := func(code StencilIssueCode, message string, token TemplateTokenRef) {
		issues = append(issues, StencilValidationIssue{
			Severity: IssueSeverityError,
			Code:     code,
			Message:  message,
			Token:    token,
		})
	}

	for _, f := range p.failures {
		raw := sitePayload(f.site)
		code := IssueCodeInvalidDirective
		if IsTemplateErrorKind(f.err, ErrGrammar) {
			code = IssueCodeSyntaxError
		}
		add(code, f.err.Error(), TemplateTokenRef{
			Raw:      raw,
			Kind:     TokenKindControl,
			Location: directiveLocation(p.name, p.ordinals[f.site], "", f.site, raw),
		})
	}

	var (
		stack  InstructionStack
		blocks []*Block
	)
	for _, d := range p.directives {
		if err := checkDirectiveExpression(d); err != nil {
			code := IssueCodeUnsupportedExpr
			if d.Kind == LoopOpen && !strings.Contains(err.Error(), "collection expression") {
				code = IssueCodeSyntaxError
			}
			add(code, err.Error(), ref(d))
		}

		switch {
		case d.Kind.IsOpen():
			stack.Push(d)
		case d.Kind.IsClose():
			mismatched := stack.Len() > 0 && stack.frames[stack.Len()-1].Kind.Block() != d.Kind.Block()
			b, err := stack.Pop(d)
			if err != nil {
				add(IssueCodeControlBlockMismatch, err.Error(), ref(d))
				if mismatched {
					// drop the open block so later pairs still line up
					stack.frames = stack.frames[:stack.Len()-1]
				}
				continue
			}
			blocks = append(blocks, b)
		}
	}
	for _, open := range stack.frames {
		add(IssueCodeControlBlockMismatch, fmt.Sprintf("No closing instruction for '%s'", open.Directive.Raw), ref(open.Directive))
	}
	if err := checkCarriers(p.directives, blocks); err != nil {
		add(IssueCodeControlBlockMismatch, err.Error(), TemplateTokenRef{
			Kind:     TokenKindControl,
			Location: TemplateLocation{Part: p.name, Ordinal: -1},
		})
	}

	return issues
}

// checkDirectiveExpression parses the evaluator input of d.
func checkDirectiveExpression(d *Directive) error {
	var err error
	switch d.Kind {
	case LoopOpen:
		_, err = parseForSyntax(d.Expr)
		if err != nil {
			return fmt.Errorf("invalid for expression: %w", err)
		}
		return nil
	case IfOpen, Expression, FunctionCall:
		_, err = ParseExpressionStrict(d.Expr)
	case ImageBind:
		if d.Image.Static {
			return nil
		}
		_, err = ParseExpressionStrict(d.Image.Name)
	default:
		return nil
	}
	if err != nil {
		return fmt.Errorf("unsupported %s expression: %w", d.Kind, err)
	}
	return nil
}

func directiveReferences(part string, ordinal int, d *Directive) []TemplateTokenRef {
	loc := directiveLocation(part, ordinal, d.Encoding.String(), d.Site, d.Raw)
	var refs []TemplateTokenRef
	emit := func(kind TokenKind, expression string) {
		refs = append(refs, TemplateTokenRef{Raw: d.Raw, Kind: kind, Expression: expression, Location: loc})
	}

	switch d.Kind {
	case LoopOpen:
		emit(TokenKindControl, d.Expr)
		if forNode, err := parseForSyntax(d.Expr); err == nil {
			collectExpressionReferences(forNode.Collection, emit)
		}
	case IfOpen:
		emit(TokenKindControl, d.Expr)
		if node, err := ParseExpressionStrict(d.Expr); err == nil {
			collectExpressionReferences(node, emit)
		}
	case Expression, FunctionCall:
		if node, err := ParseExpressionStrict(d.Expr); err == nil {
			collectExpressionReferences(node, emit)
		}
	case ImageBind:
		if d.Image.Static {
			emit(TokenKindImage, d.Image.Name)
		} else if node, err := ParseExpressionStrict(d.Image.Name); err == nil {
			collectExpressionReferences(node, emit)
		}
	}
	return refs
}

func collectExpressionReferences(node ExpressionNode, emit func(kind TokenKind, expression string)) {
	if node == nil {
		return
	}

	if path, ok := referencePathFromNode(node); ok {
		emit(TokenKindVariable, path)
		if indexNode, ok := node.(*IndexAccessNode); ok {
			if _, literal := indexNode.Index.(*LiteralNode); !literal {
				collectExpressionReferences(indexNode.Index, emit)
			}
		}
		return
	}

	switch n := node.(type) {
	case *FunctionCallNode:
		emit(TokenKindFunction, n.Name)
		for _, arg := range n.Args {
			collectExpressionReferences(arg, emit)
		}
	case *BinaryOpNode:
		collectExpressionReferences(n.Left, emit)
		collectExpressionReferences(n.Right, emit)
	case *UnaryOpNode:
		collectExpressionReferences(n.Operand, emit)
	case *FieldAccessNode:
		collectExpressionReferences(n.Object, emit)
	case *IndexAccessNode:
		collectExpressionReferences(n.Object, emit)
		collectExpressionReferences(n.Index, emit)
	}
}

func referencePathFromNode(node ExpressionNode) (string, bool) {
	switch n := node.(type) {
	case *VariableNode:
		return n.Name, true
	case *FieldAccessNode:
		base, ok := referencePathFromNode(n.Object)
		if !ok {
			return "", false
		}
		return base + "." + n.Field, true
	case *IndexAccessNode:
		base, ok := referencePathFromNode(n.Object)
		if !ok {
			return "", false
		}
		literal, ok := n.Index.(*LiteralNode)
		if !ok {
			return "", false
		}
		switch v := literal.Value.(type) {
		case int:
			return fmt.Sprintf("%s[%d]", base, v), true
		case float64:
			if v == float64(int(v)) {
				return fmt.Sprintf("%s[%d]", base, int(v)), true
			}
			return fmt.Sprintf("%s[%g]", base, v), true
		case string:
			return fmt.Sprintf("%s[%q]", base, v), true
		default:
			return "", false
		}
	default:
		return "", false
	}
}

func directiveTokenKind(d *Directive) TokenKind {
	switch d.Kind {
	case LoopOpen, LoopClose, IfOpen, IfClose:
		return TokenKindControl
	case FunctionCall:
		return TokenKindFunction
	case ImageBind:
		return TokenKindImage
	default:
		return TokenKindVariable
	}
}

func directiveLocation(part string, ordinal int, encoding string, site *xml.Node, raw string) TemplateLocation {
	return TemplateLocation{
		Part:     part,
		Ordinal:  ordinal,
		Encoding: encoding,
		Element:  scopeName(site),
		AnchorID: buildAnchorID(part, ordinal, raw),
	}
}

// sitePayload returns the attribute a failing directive site was
// recognized by.
func sitePayload(n *xml.Node) string {
	for _, attr := range []struct{ space, local string }{
		{xml.NSXLink, "href"},
		{xml.NSText, "description"},
		{xml.NSText, "name"},
		{xml.NSDraw, "name"},
	} {
		if v, ok := n.Attr(attr.space, attr.local); ok {
			return strings.TrimPrefix(v, payloadPrefix)
		}
	}
	return ""
}

func buildAnchorID(part string, ordinal int, raw string) string {
	seed := strings.Join([]string{part, strconv.Itoa(ordinal), raw}, "|")
	sum := sha256.Sum256([]byte(seed))
	return "anchor_" + hex.EncodeToString(sum[:8])
}

func newValidationMetadata(data []byte, templateRevisionID string) StencilMetadata {
	sum := sha256.Sum256(data)
	return StencilMetadata{
		DocumentHash:       "sha256:" + hex.EncodeToString(sum[:]),
		TemplateRevisionID: templateRevisionID,
		ParserVersion:      validationParserVersion,
	}
}

func sortValidationIssues(issues []StencilValidationIssue) {
	sort.SliceStable(issues, func(i, j int) bool {
		left, right := issues[i].Token.Location, issues[j].Token.Location
		if left.Part != right.Part {
			return partOrder(left.Part) < partOrder(right.Part)
		}
		if left.Ordinal != right.Ordinal {
			return left.Ordinal < right.Ordinal
		}
		if issues[i].Code != issues[j].Code {
			return issues[i].Code < issues[j].Code
		}
		return issues[i].Message < issues[j].Message
	})
}

func sortTemplateReferences(references []TemplateTokenRef) {
	sort.SliceStable(references, func(i, j int) bool {
		left, right := references[i], references[j]
		if left.Location.Part != right.Location.Part {
			return partOrder(left.Location.Part) < partOrder(right.Location.Part)
		}
		return left.Location.Ordinal < right.Location.Ordinal
	})
}

func partOrder(part string) int {
	for i, p := range templatedParts {
		if p == part {
			return i
		}
	}
	return len(templatedParts)
}

// IsValidationIssue reports whether err is or wraps a validation issue.
func IsValidationIssue(err error) bool {
	var issue StencilValidationIssue
	return errors.As(err, &issue)
}
