package stencil

import (
	"fmt"
	"reflect"
	"regexp"
	"strconv"
	"strings"
)

// ExpressionNode represents a node in the expression AST
type ExpressionNode interface {
	String() string
	Evaluate(env *evalEnv) (interface{}, error)
}

// LiteralNode represents a literal value (string, number, boolean)
type LiteralNode struct {
	Value interface{}
}

func (n *LiteralNode) String() string {
	if str, ok := n.Value.(string); ok {
		return fmt.Sprintf("Literal(%q)", str)
	}
	return fmt.Sprintf("Literal(%v)", n.Value)
}

func (n *LiteralNode) Evaluate(env *evalEnv) (interface{}, error) {
	return n.Value, nil
}

// VariableNode represents a variable reference
type VariableNode struct {
	Name string
}

func (n *VariableNode) String() string {
	return fmt.Sprintf("Variable(%s)", n.Name)
}

func (n *VariableNode) Evaluate(env *evalEnv) (interface{}, error) {
	if v, ok := env.lookup(n.Name); ok {
		return v, nil
	}
	return env.undefined(n.Name)
}

// BinaryOpNode represents a binary operation
type BinaryOpNode struct {
	Left     ExpressionNode
	Operator string
	Right    ExpressionNode
}

func (n *BinaryOpNode) String() string {
	return fmt.Sprintf("BinaryOp(%s %s %s)", n.Left.String(), n.Operator, n.Right.String())
}

func (n *BinaryOpNode) Evaluate(env *evalEnv) (interface{}, error) {
	leftVal, err := n.Left.Evaluate(env)
	if err != nil {
		return nil, err
	}

	// short-circuit so "x and x.field" does not touch an undefined field
	switch n.Operator {
	case "&":
		if !isTruthy(leftVal) {
			return false, nil
		}
	case "|":
		if isTruthy(leftVal) {
			return true, nil
		}
	}

	rightVal, err := n.Right.Evaluate(env)
	if err != nil {
		return nil, err
	}

	return EvaluateBinaryOperation(leftVal, n.Operator, rightVal)
}

// UnaryOpNode represents a unary operation
type UnaryOpNode struct {
	Operator string
	Operand  ExpressionNode
}

func (n *UnaryOpNode) String() string {
	return fmt.Sprintf("UnaryOp(%s %s)", n.Operator, n.Operand.String())
}

func (n *UnaryOpNode) Evaluate(env *evalEnv) (interface{}, error) {
	operandVal, err := n.Operand.Evaluate(env)
	if err != nil {
		return nil, err
	}

	switch n.Operator {
	case "!":
		return !isTruthy(operandVal), nil
	case "-", "+":
		num, ok := toFloat64(operandVal)
		if !ok {
			return nil, fmt.Errorf("cannot apply unary %s to %T", n.Operator, operandVal)
		}
		if n.Operator == "-" {
			num = -num
		}
		if isInteger(operandVal) {
			return int(num), nil
		}
		return num, nil
	default:
		return nil, fmt.Errorf("unknown unary operator: %s", n.Operator)
	}
}

// FieldAccessNode represents field access (obj.field)
type FieldAccessNode struct {
	Object ExpressionNode
	Field  string
}

func (n *FieldAccessNode) String() string {
	return fmt.Sprintf("FieldAccess(%s.%s)", n.Object.String(), n.Field)
}

func (n *FieldAccessNode) Evaluate(env *evalEnv) (interface{}, error) {
	obj, err := n.Object.Evaluate(env)
	if err != nil {
		return nil, err
	}
	if obj == nil && env.opts.IgnoreUndefinedVariables {
		return nil, nil
	}
	if v, ok := accessField(obj, n.Field); ok {
		return v, nil
	}
	return env.undefined(expressionPath(n))
}

// IndexAccessNode represents index access (obj[index])
type IndexAccessNode struct {
	Object ExpressionNode
	Index  ExpressionNode
}

func (n *IndexAccessNode) String() string {
	return fmt.Sprintf("IndexAccess(%s[%s])", n.Object.String(), n.Index.String())
}

func (n *IndexAccessNode) Evaluate(env *evalEnv) (interface{}, error) {
	obj, err := n.Object.Evaluate(env)
	if err != nil {
		return nil, err
	}

	indexVal, err := n.Index.Evaluate(env)
	if err != nil {
		return nil, err
	}

	if key, ok := indexVal.(string); ok {
		if v, ok := accessField(obj, key); ok {
			return v, nil
		}
		return env.undefined(expressionPath(n.Object) + "[" + strconv.Quote(key) + "]")
	}
	idx, ok := toInt(indexVal)
	if !ok {
		return nil, fmt.Errorf("invalid index type: %T", indexVal)
	}
	return accessArrayIndex(obj, idx), nil
}

// FunctionCallNode represents a function call
type FunctionCallNode struct {
	Name string
	Args []ExpressionNode
}

func (n *FunctionCallNode) String() string {
	args := make([]string, len(n.Args))
	for i, arg := range n.Args {
		args[i] = arg.String()
	}
	return fmt.Sprintf("FunctionCall(%s, [%s])", n.Name, strings.Join(args, ", "))
}

func (n *FunctionCallNode) Evaluate(env *evalEnv) (interface{}, error) {
	if n.Name == "data" && len(n.Args) == 0 {
		return env.data, nil
	}

	args := make([]interface{}, len(n.Args))
	for i, arg := range n.Args {
		val, err := arg.Evaluate(env)
		if err != nil {
			return nil, fmt.Errorf("failed to evaluate argument %d for function %s: %w", i, n.Name, err)
		}
		args[i] = val
	}

	// helpers first, then Go funcs handed in with the render context
	if fn, ok := env.functions.GetFunction(n.Name); ok {
		return fn.Call(args...)
	}
	if v, ok := env.lookup(n.Name); ok && v != nil && reflect.TypeOf(v).Kind() == reflect.Func {
		return callFunc(n.Name, v, args)
	}
	if _, ok := env.lookup(n.Name); !ok {
		return env.undefined(n.Name)
	}
	return nil, fmt.Errorf("%s is not callable", n.Name)
}

// expressionPath renders variable and field chains as a dotted path.
func expressionPath(n ExpressionNode) string {
	switch v := n.(type) {
	case *VariableNode:
		return v.Name
	case *FieldAccessNode:
		return expressionPath(v.Object) + "." + v.Field
	case *IndexAccessNode:
		return expressionPath(v.Object) + "[]"
	case *FunctionCallNode:
		return v.Name + "()"
	default:
		return n.String()
	}
}

// ExpressionToken represents a token in an expression
type ExpressionToken struct {
	Type  ExpressionTokenType
	Value string
	Pos   int
}

type ExpressionTokenType int

const (
	ExprTokenIdentifier ExpressionTokenType = iota
	ExprTokenNumber
	ExprTokenString
	ExprTokenOperator
	ExprTokenLeftParen
	ExprTokenRightParen
	ExprTokenComma
	ExprTokenEOF
	ExprTokenInvalid
)

var (
	identifierRegex  = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*`)
	numberRegex      = regexp.MustCompile(`^([0-9]+(\.[0-9]+)?|\.[0-9]+)`)
	stringRegex      = regexp.MustCompile(`^"([^"\\]|\\.)*"`)
	singleQuoteRegex = regexp.MustCompile(`^'([^'\\]|\\.)*'`)
	// authoring tools replace straight quotes while typing: „…“ and »…«
	germanQuoteRegex = regexp.MustCompile("^„([^“”\"\\\\]|\\\\.)*[“”\"]")
	curlyQuoteRegex  = regexp.MustCompile("^“([^”\\\\]|\\\\.)*”")
	frenchQuoteRegex = regexp.MustCompile(`^»([^«\\]|\\.)*«`)
	operatorRegex    = regexp.MustCompile(`^(==|!=|<=|>=|&&|\|\||\+|\-|\*|\/|\%|\&|\||\!|<|>|\.|\[|\])`)

	quotedRegexes = []*regexp.Regexp{stringRegex, singleQuoteRegex, germanQuoteRegex, curlyQuoteRegex, frenchQuoteRegex}
	unquote       = strings.NewReplacer(`\"`, `"`, `\'`, `'`, `\\`, `\`)
)

// keyword operators as written in directive payloads
var keywordOperators = map[string]string{
	"and": "&",
	"or":  "|",
	"not": "!",
}

// TokenizeExpression tokenizes an expression string
func TokenizeExpression(expr string) ([]ExpressionToken, error) {
	var tokens []ExpressionToken
	pos := 0

	emit := func(typ ExpressionTokenType, value string, width int) {
		tokens = append(tokens, ExpressionToken{Type: typ, Value: value, Pos: pos})
		pos += width
	}

scan:
	for pos < len(expr) {
		switch expr[pos] {
		case ' ', '\t', '\n', '\r':
			pos++
			continue
		case '(':
			emit(ExprTokenLeftParen, "(", 1)
			continue
		case ')':
			emit(ExprTokenRightParen, ")", 1)
			continue
		case ',':
			emit(ExprTokenComma, ",", 1)
			continue
		}

		remaining := expr[pos:]

		if match := identifierRegex.FindString(remaining); match != "" {
			if op, ok := keywordOperators[match]; ok {
				emit(ExprTokenOperator, op, len(match))
			} else {
				emit(ExprTokenIdentifier, match, len(match))
			}
			continue
		}

		if match := numberRegex.FindString(remaining); match != "" {
			value := match
			if value[0] == '.' {
				value = "0" + value
			}
			emit(ExprTokenNumber, value, len(match))
			continue
		}

		for _, re := range quotedRegexes {
			if match := re.FindString(remaining); match != "" {
				runes := []rune(match)
				emit(ExprTokenString, unquote.Replace(string(runes[1:len(runes)-1])), len(match))
				continue scan
			}
		}

		if match := operatorRegex.FindString(remaining); match != "" {
			op := match
			switch op {
			case "&&":
				op = "&"
			case "||":
				op = "|"
			}
			emit(ExprTokenOperator, op, len(match))
			continue
		}

		return nil, fmt.Errorf("unexpected character '%c' at position %d", expr[pos], pos)
	}

	tokens = append(tokens, ExpressionToken{Type: ExprTokenEOF, Pos: pos})
	return tokens, nil
}

// ParseExpression parses an expression string into an AST
func ParseExpression(expr string) (ExpressionNode, error) {
	return parseExpressionWithMode(expr, false)
}

// ParseExpressionStrict parses an expression string into an AST and requires full token consumption.
// Validation uses it to reject trailing tokens such as "name name2".
func ParseExpressionStrict(expr string) (ExpressionNode, error) {
	return parseExpressionWithMode(expr, true)
}

func parseExpressionWithMode(expr string, requireEOF bool) (ExpressionNode, error) {
	tokens, err := TokenizeExpression(expr)
	if err != nil {
		return nil, err
	}

	parser := &ExpressionParser{tokens: tokens}

	node, err := parser.parseExpression()
	if err != nil {
		return nil, err
	}

	if requireEOF && parser.current().Type != ExprTokenEOF {
		token := parser.current()
		return nil, fmt.Errorf("unexpected trailing token %q at position %d", token.Value, token.Pos)
	}

	return node, nil
}

// ExpressionParser parses expressions into AST nodes
type ExpressionParser struct {
	tokens []ExpressionToken
	pos    int
}

func (p *ExpressionParser) current() ExpressionToken {
	if p.pos >= len(p.tokens) {
		return ExpressionToken{Type: ExprTokenEOF}
	}
	return p.tokens[p.pos]
}

func (p *ExpressionParser) advance() {
	if p.pos < len(p.tokens) {
		p.pos++
	}
}

// atOperator reports whether the current token is one of ops.
func (p *ExpressionParser) atOperator(ops ...string) bool {
	tok := p.current()
	if tok.Type != ExprTokenOperator {
		return false
	}
	for _, op := range ops {
		if tok.Value == op {
			return true
		}
	}
	return false
}

// binaryLevels lists operator groups from lowest to highest precedence.
var binaryLevels = [][]string{
	{"|"},
	{"&"},
	{"==", "!="},
	{"<", ">", "<=", ">="},
	{"+", "-"},
	{"*", "/", "%"},
}

func (p *ExpressionParser) parseExpression() (ExpressionNode, error) {
	return p.parseBinary(0)
}

func (p *ExpressionParser) parseBinary(level int) (ExpressionNode, error) {
	if level == len(binaryLevels) {
		return p.parseUnary()
	}

	left, err := p.parseBinary(level + 1)
	if err != nil {
		return nil, err
	}

	for p.atOperator(binaryLevels[level]...) {
		op := p.current().Value
		p.advance()
		right, err := p.parseBinary(level + 1)
		if err != nil {
			return nil, err
		}
		left = &BinaryOpNode{Left: left, Operator: op, Right: right}
	}

	return left, nil
}

// parseUnary parses unary expressions (!, -, +)
func (p *ExpressionParser) parseUnary() (ExpressionNode, error) {
	if p.atOperator("!", "-", "+") {
		op := p.current().Value
		p.advance()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &UnaryOpNode{Operator: op, Operand: operand}, nil
	}

	return p.parseFieldAccess()
}

// parseFieldAccess parses field access expressions (obj.field, obj[key])
func (p *ExpressionParser) parseFieldAccess() (ExpressionNode, error) {
	left, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}

	for {
		switch {
		case p.atOperator("."):
			p.advance()
			if p.current().Type != ExprTokenIdentifier {
				return nil, fmt.Errorf("expected identifier after '.'")
			}
			left = &FieldAccessNode{Object: left, Field: p.current().Value}
			p.advance()
		case p.atOperator("["):
			p.advance()
			index, err := p.parseExpression()
			if err != nil {
				return nil, err
			}
			if !p.atOperator("]") {
				return nil, fmt.Errorf("expected ']' after array index")
			}
			p.advance()
			left = &IndexAccessNode{Object: left, Index: index}
		default:
			return left, nil
		}
	}
}

// parsePrimary parses primary expressions (literals, variables, parenthesized expressions)
func (p *ExpressionParser) parsePrimary() (ExpressionNode, error) {
	token := p.current()

	switch token.Type {
	case ExprTokenNumber:
		p.advance()
		if intVal, err := strconv.Atoi(token.Value); err == nil {
			return &LiteralNode{Value: intVal}, nil
		}
		if floatVal, err := strconv.ParseFloat(token.Value, 64); err == nil {
			return &LiteralNode{Value: floatVal}, nil
		}
		return nil, fmt.Errorf("invalid number: %s", token.Value)

	case ExprTokenString:
		p.advance()
		return &LiteralNode{Value: token.Value}, nil

	case ExprTokenIdentifier:
		p.advance()
		switch token.Value {
		case "true", "True":
			return &LiteralNode{Value: true}, nil
		case "false", "False":
			return &LiteralNode{Value: false}, nil
		case "null", "nil", "None":
			return &LiteralNode{Value: nil}, nil
		}

		if p.current().Type == ExprTokenLeftParen {
			return p.parseFunctionCall(token.Value)
		}

		return &VariableNode{Name: token.Value}, nil

	case ExprTokenLeftParen:
		p.advance()
		expr, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		if p.current().Type != ExprTokenRightParen {
			return nil, fmt.Errorf("expected ')' after expression")
		}
		p.advance()
		return expr, nil

	case ExprTokenEOF:
		return nil, fmt.Errorf("unexpected end of expression")

	default:
		return nil, fmt.Errorf("unexpected token: %s", token.Value)
	}
}

// parseFunctionCall parses a function call
func (p *ExpressionParser) parseFunctionCall(name string) (ExpressionNode, error) {
	p.advance() // '('

	call := &FunctionCallNode{Name: name}
	if p.current().Type == ExprTokenRightParen {
		p.advance()
		return call, nil
	}

	for {
		arg, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		call.Args = append(call.Args, arg)

		switch p.current().Type {
		case ExprTokenComma:
			p.advance()
		case ExprTokenRightParen:
			p.advance()
			return call, nil
		default:
			return nil, fmt.Errorf("expected ',' or ')' in function arguments")
		}
	}
}

// EvaluateBinaryOperation evaluates a binary operation between two values
func EvaluateBinaryOperation(left interface{}, operator string, right interface{}) (interface{}, error) {
	switch operator {
	case "+":
		if ls, ok := left.(string); ok {
			return ls + FormatValue(right), nil
		}
		if rs, ok := right.(string); ok {
			return FormatValue(left) + rs, nil
		}
		return arithmetic(left, right, "add", func(a, b float64) float64 { return a + b })
	case "-":
		return arithmetic(left, right, "subtract", func(a, b float64) float64 { return a - b })
	case "*":
		return arithmetic(left, right, "multiply", func(a, b float64) float64 { return a * b })
	case "/":
		return evaluateDivision(left, right)
	case "%":
		return evaluateModulo(left, right)
	case "==":
		return evaluateEquals(left, right), nil
	case "!=":
		return !evaluateEquals(left, right), nil
	case "<", ">", "<=", ">=":
		return evaluateComparison(left, operator, right)
	case "&":
		return isTruthy(left) && isTruthy(right), nil
	case "|":
		return isTruthy(left) || isTruthy(right), nil
	default:
		return nil, fmt.Errorf("unknown binary operator: %s", operator)
	}
}

// arithmetic applies op and keeps integer results for integer operands.
func arithmetic(left, right interface{}, verb string, op func(a, b float64) float64) (interface{}, error) {
	leftNum, leftOk := toFloat64(left)
	rightNum, rightOk := toFloat64(right)
	if !leftOk || !rightOk {
		return nil, fmt.Errorf("cannot %s %T and %T", verb, left, right)
	}
	result := op(leftNum, rightNum)
	if isInteger(left) && isInteger(right) {
		return int(result), nil
	}
	return result, nil
}

func evaluateDivision(left, right interface{}) (interface{}, error) {
	leftNum, leftOk := toFloat64(left)
	rightNum, rightOk := toFloat64(right)

	if !leftOk || !rightOk {
		return nil, fmt.Errorf("cannot divide %T and %T", left, right)
	}
	if rightNum == 0 {
		return nil, fmt.Errorf("division by zero")
	}

	result := leftNum / rightNum
	if isInteger(left) && isInteger(right) && result == float64(int(result)) {
		return int(result), nil
	}
	return result, nil
}

func evaluateModulo(left, right interface{}) (interface{}, error) {
	leftInt, leftOk := toInt(left)
	rightInt, rightOk := toInt(right)

	if !leftOk || !rightOk {
		return nil, fmt.Errorf("modulo operation requires integers, got %T and %T", left, right)
	}
	if rightInt == 0 {
		return nil, fmt.Errorf("modulo by zero")
	}
	return leftInt % rightInt, nil
}

func evaluateEquals(left, right interface{}) bool {
	if left == nil || right == nil {
		return left == nil && right == nil
	}
	if leftNum, ok := toFloat64(left); ok {
		if rightNum, ok := toFloat64(right); ok {
			return leftNum == rightNum
		}
	}
	if reflect.TypeOf(left).Comparable() && reflect.TypeOf(right).Comparable() {
		return left == right
	}
	return reflect.DeepEqual(left, right)
}

func evaluateComparison(left interface{}, op string, right interface{}) (interface{}, error) {
	var cmp int
	leftNum, leftOk := toFloat64(left)
	rightNum, rightOk := toFloat64(right)
	ls, lsOk := left.(string)
	rs, rsOk := right.(string)

	switch {
	case leftOk && rightOk:
		switch {
		case leftNum < rightNum:
			cmp = -1
		case leftNum > rightNum:
			cmp = 1
		}
	case lsOk && rsOk:
		cmp = strings.Compare(ls, rs)
	default:
		return nil, fmt.Errorf("cannot compare %T and %T", left, right)
	}

	switch op {
	case "<":
		return cmp < 0, nil
	case ">":
		return cmp > 0, nil
	case "<=":
		return cmp <= 0, nil
	default:
		return cmp >= 0, nil
	}
}

// toFloat64 converts any Go numeric kind, including named numeric types.
func toFloat64(val interface{}) (float64, bool) {
	rv := reflect.ValueOf(val)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint()), true
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	default:
		return 0, false
	}
}

func toInt(val interface{}) (int, bool) {
	f, ok := toFloat64(val)
	if !ok || f != float64(int(f)) {
		return 0, false
	}
	return int(f), true
}

func isInteger(val interface{}) bool {
	switch reflect.ValueOf(val).Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return true
	default:
		return false
	}
}

func isTruthy(val interface{}) bool {
	if val == nil {
		return false
	}

	rv := reflect.ValueOf(val)
	switch rv.Kind() {
	case reflect.Bool:
		return rv.Bool()
	case reflect.String, reflect.Slice, reflect.Map, reflect.Array:
		return rv.Len() > 0
	case reflect.Ptr, reflect.Interface:
		return !rv.IsNil()
	}
	if f, ok := toFloat64(val); ok {
		return f != 0
	}
	return true
}
