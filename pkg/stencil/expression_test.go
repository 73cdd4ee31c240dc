package stencil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type customer struct {
	Name  string
	Email string
}

func (c customer) Initial() string { return c.Name[:1] }

func evalExpr(t *testing.T, expr string, data TemplateData, opts EvalOptions) (interface{}, error) {
	t.Helper()
	node, err := ParseExpressionStrict(expr)
	require.NoError(t, err, "parse %q", expr)
	return node.Evaluate(newEvalEnv(data, opts))
}

func TestEvaluateExpressions(t *testing.T) {
	data := TemplateData{
		"x":     3,
		"price": 2.5,
		"name":  "Bob",
		"yes":   true,
		"no":    false,
		"zero":  0,
		"items": []string{"a", "b", "c"},
		"m":     map[string]interface{}{"k": "v"},
		"user":  customer{Name: "Ann", Email: "ann@example.com"},
		"ptr":   &customer{Name: "Pat"},
	}

	tests := []struct {
		expr string
		want interface{}
	}{
		{"1 + 2 * 3", 7},
		{"(1 + 2) * 3", 9},
		{"7 / 2", 3.5},
		{"6 / 3", 2},
		{"7 % 3", 1},
		{"-x", -3},
		{"price * 2", 5.0},
		{`"a" + 1`, "a1"},
		{`name == "Bob"`, true},
		{`name != "Bob"`, false},
		{"x > 2", true},
		{"x <= 2", false},
		{`"abc" < "abd"`, true},
		{"not no", true},
		{"yes and zero", false},
		{"no or yes", true},
		{"yes && !no", true},
		{"True", true},
		{"False", false},
		{"None", nil},
		{"items[1]", "b"},
		{"items[-1]", "c"},
		{`m["k"]`, "v"},
		{"m.k", "v"},
		{"user.name", "Ann"},
		{"user.Email", "ann@example.com"},
		{"user.initial", "A"},
		{"ptr.name", "Pat"},
		{`“curly”`, "curly"},
		{`„german“`, "german"},
		{`'single'`, "single"},
		{".5 + 1", 1.5},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			got, err := evalExpr(t, tt.expr, data, EvalOptions{})
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEvaluateShortCircuit(t *testing.T) {
	got, err := evalExpr(t, "missing and missing.field", TemplateData{}, EvalOptions{
		RenderOptions: RenderOptions{IgnoreUndefinedVariables: true},
	})
	require.NoError(t, err)
	assert.Equal(t, false, got)

	got, err = evalExpr(t, "user or missing", TemplateData{"user": "x"}, EvalOptions{})
	require.NoError(t, err)
	assert.Equal(t, true, got)
}

func TestEvaluateUndefined(t *testing.T) {
	data := TemplateData{"user": customer{Name: "Ann"}}

	_, err := evalExpr(t, "missing", data, EvalOptions{})
	var ue *UndefinedError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, "missing", ue.Name)
	assert.Equal(t, `"missing" is not defined`, err.Error())

	_, err = evalExpr(t, "user.age", data, EvalOptions{})
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, "user.age", ue.Name)

	ignore := EvalOptions{RenderOptions: RenderOptions{IgnoreUndefinedVariables: true}}
	got, err := evalExpr(t, "missing.field.deeper", data, ignore)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestEvaluateErrors(t *testing.T) {
	tests := []struct {
		expr string
		want string
	}{
		{"1 / 0", "division by zero"},
		{"5 % 0", "modulo by zero"},
		{`1 - "a"`, "cannot subtract"},
		{`1 < "a"`, "cannot compare"},
		{"-name", "cannot apply unary -"},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			_, err := evalExpr(t, tt.expr, TemplateData{"name": "Bob"}, EvalOptions{})
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestParseExpressionStrict(t *testing.T) {
	_, err := ParseExpression("a b")
	assert.NoError(t, err)

	_, err = ParseExpressionStrict("a b")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected trailing token")

	for _, expr := range []string{"a +", "(a", "f(a b)", "a.", "items[0"} {
		_, err := ParseExpressionStrict(expr)
		assert.Error(t, err, expr)
	}

	_, err = TokenizeExpression("a $ b")
	assert.Error(t, err)
}

func TestParseExpressionKeywordOperators(t *testing.T) {
	node, err := ParseExpressionStrict("a and not b or c")
	require.NoError(t, err)
	assert.Equal(t, "BinaryOp(BinaryOp(Variable(a) & UnaryOp(! Variable(b))) | Variable(c))", node.String())
}

func TestEvaluateFunctionCalls(t *testing.T) {
	data := TemplateData{
		"name":  "ann",
		"greet": func(s string) string { return "hello " + s },
		"fail": func() (string, error) {
			return "", assert.AnError
		},
		"notfunc": 1,
	}

	got, err := evalExpr(t, "uppercase(name)", data, EvalOptions{})
	require.NoError(t, err)
	assert.Equal(t, "ANN", got)

	got, err = evalExpr(t, "greet(name)", data, EvalOptions{})
	require.NoError(t, err)
	assert.Equal(t, "hello ann", got)

	_, err = evalExpr(t, "fail()", data, EvalOptions{})
	assert.ErrorIs(t, err, assert.AnError)

	_, err = evalExpr(t, "notfunc()", data, EvalOptions{})
	assert.EqualError(t, err, "notfunc is not callable")

	_, err = evalExpr(t, "nope()", data, EvalOptions{})
	assert.IsType(t, &UndefinedError{}, err)

	got, err = evalExpr(t, "data().name", data, EvalOptions{})
	require.NoError(t, err)
	assert.Equal(t, "ann", got)
}

func TestLoopScopesShadowData(t *testing.T) {
	env := newEvalEnv(TemplateData{"item": "outer"}, EvalOptions{})
	inner := env.child(map[string]interface{}{"item": "inner"})

	v, ok := inner.lookup("item")
	require.True(t, ok)
	assert.Equal(t, "inner", v)

	v, ok = env.lookup("item")
	require.True(t, ok)
	assert.Equal(t, "outer", v)
}

func TestFormatValue(t *testing.T) {
	assert.Equal(t, "", FormatValue(nil))
	assert.Equal(t, "42", FormatValue(42))
	assert.Equal(t, "42", FormatValue(int64(42)))
	assert.Equal(t, "2.5", FormatValue(2.5))
	assert.Equal(t, "true", FormatValue(true))
	assert.Equal(t, "abc", FormatValue([]byte("abc")))
}

func TestToSliceSortsMapKeys(t *testing.T) {
	items, err := toSlice(map[string]int{"b": 2, "a": 1})
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, map[string]interface{}{"key": "a", "value": 1}, items[0])

	_, err = toSlice(42)
	assert.Error(t, err)
}
