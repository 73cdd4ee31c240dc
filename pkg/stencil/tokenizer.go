package stencil

import (
	"fmt"
	"regexp"
	"strings"
)

// TokenType represents the type of a template token
type TokenType int

const (
	TokenText TokenType = iota
	TokenVariable
	TokenIf
	TokenFor
	TokenEnd
	TokenImage
)

func (t TokenType) String() string {
	switch t {
	case TokenText:
		return "text"
	case TokenVariable:
		return "variable"
	case TokenIf:
		return "if"
	case TokenFor:
		return "for"
	case TokenEnd:
		return "end"
	case TokenImage:
		return "image"
	default:
		return fmt.Sprintf("TokenType(%d)", int(t))
	}
}

// OutputContext selects how a substituted value is escaped.
type OutputContext int

const (
	// ContextText is paragraph content: escaped, with line breaks, tabs and
	// space runs expanded to ODF elements.
	ContextText OutputContext = iota
	// ContextAttribute is an attribute value: escaped only.
	ContextAttribute
	// ContextRaw is plain text output, written as is.
	ContextRaw
	// ContextCell is paragraph content that is the only content of a table
	// cell. The value also decides the cell's value type.
	ContextCell
)

// Token is one unit of evaluator input. Value holds literal text, the
// expression of a substitution or the payload of a block directive. For
// TokenEnd it names the closed block ("for" or "if").
type Token struct {
	Type    TokenType
	Value   string
	Context OutputContext
	Image   *ImageBinding
	// Raw is the directive as written, used in error messages.
	Raw  string
	Line int
}

var (
	// {% for="x in y" %}, {% /for %}, {% if="x" %}, {% /if %} and ${expr}
	textTokenRegex   = regexp.MustCompile(`\{%\s*(.*?)\s*%\}|\$\{([^}]*)\}`)
	blockOnlyLineRex = regexp.MustCompile(`^[ \t]*\{%(?:[^%]|%[^}])*%\}[ \t]*\r?\n?$`)
)

// TokenizeText tokenizes a plain text template. A line that holds nothing but
// one block directive contributes no output of its own, so loops repeat whole
// lines.
func TokenizeText(input string) ([]Token, error) {
	var tokens []Token

	lines := strings.SplitAfter(input, "\n")
	for i, line := range lines {
		if line == "" {
			continue
		}
		lineNo := i + 1

		if blockOnlyLineRex.MatchString(line) {
			m := textTokenRegex.FindStringSubmatch(line)
			tok, err := blockToken(m[1], lineNo)
			if err != nil {
				return nil, err
			}
			tokens = append(tokens, tok)
			continue
		}

		lastEnd := 0
		for _, m := range textTokenRegex.FindAllStringSubmatchIndex(line, -1) {
			if m[0] > lastEnd {
				tokens = append(tokens, Token{Type: TokenText, Value: line[lastEnd:m[0]], Line: lineNo})
			}
			if m[2] >= 0 {
				tok, err := blockToken(line[m[2]:m[3]], lineNo)
				if err != nil {
					return nil, err
				}
				tokens = append(tokens, tok)
			} else {
				expr := strings.TrimSpace(line[m[4]:m[5]])
				tokens = append(tokens, Token{
					Type:    TokenVariable,
					Value:   expr,
					Context: ContextRaw,
					Raw:     line[m[0]:m[1]],
					Line:    lineNo,
				})
			}
			lastEnd = m[1]
		}
		if lastEnd < len(line) {
			tokens = append(tokens, Token{Type: TokenText, Value: line[lastEnd:], Line: lineNo})
		}
	}

	if IsDebugMode() {
		GetLogger().Debug().Int("input_length", len(input)).Int("token_count", len(tokens)).Msg("text template tokenized")
	}
	return tokens, nil
}

// blockToken converts a {% ... %} payload using the directive grammar.
func blockToken(payload string, line int) (Token, error) {
	kind, expr, err := ParseInstruction(payload)
	if err != nil {
		return Token{}, err
	}
	tok := Token{Value: expr, Raw: payload, Line: line, Context: ContextRaw}
	switch kind {
	case LoopOpen:
		tok.Type = TokenFor
	case IfOpen:
		tok.Type = TokenIf
	case LoopClose:
		tok.Type, tok.Value = TokenEnd, "for"
	case IfClose:
		tok.Type, tok.Value = TokenEnd, "if"
	default:
		tok.Type = TokenVariable
	}
	return tok, nil
}

// FindTemplateTokens finds all directive tokens in a plain text template.
func FindTemplateTokens(input string) []string {
	matches := textTokenRegex.FindAllString(input, -1)
	if matches == nil {
		return []string{}
	}
	return matches
}
