package stencil

import (
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuiltinFunctions(t *testing.T) {
	tests := []struct {
		name string
		fn   string
		args []interface{}
		want interface{}
	}{
		{"empty nil", "empty", []interface{}{nil}, true},
		{"empty string", "empty", []interface{}{""}, true},
		{"empty zero", "empty", []interface{}{0}, true},
		{"empty slice", "empty", []interface{}{[]int{}}, true},
		{"empty text", "empty", []interface{}{"x"}, false},
		{"coalesce", "coalesce", []interface{}{nil, "", "b", "c"}, "b"},
		{"coalesce none", "coalesce", []interface{}{nil, ""}, nil},
		{"str nil", "str", []interface{}{nil}, ""},
		{"str number", "str", []interface{}{12}, "12"},
		{"integer", "integer", []interface{}{"42.9"}, 42},
		{"decimal", "decimal", []interface{}{"1.5"}, 1.5},
		{"lowercase", "lowercase", []interface{}{"ABC"}, "abc"},
		{"uppercase nil", "uppercase", []interface{}{nil}, nil},
		{"titlecase", "titlecase", []interface{}{"hello wORLD"}, "Hello World"},
		{"trim", "trim", []interface{}{"  x  "}, "x"},
		{"join", "join", []interface{}{[]interface{}{"a", 1, nil, "c"}, ", "}, "a, 1, c"},
		{"join no separator", "join", []interface{}{[]string{"a", "b"}}, "ab"},
		{"joinAnd", "joinAnd", []interface{}{[]string{"a", "b", "c"}, ", ", " and "}, "a, b and c"},
		{"joinAnd single", "joinAnd", []interface{}{[]string{"a"}, ", ", " and "}, "a"},
		{"replace", "replace", []interface{}{"a-b-c", "-", "+"}, "a+b+c"},
		{"length runes", "length", []interface{}{"héllo"}, 5},
		{"length slice", "length", []interface{}{[]int{1, 2}}, 2},
		{"round", "round", []interface{}{2.5}, 3},
		{"floor", "floor", []interface{}{2.7}, 2},
		{"ceil", "ceil", []interface{}{2.1}, 3},
		{"sum ints", "sum", []interface{}{[]int{1, 2, 3}}, 6},
		{"sum mixed", "sum", []interface{}{[]interface{}{1, 2.5, nil}}, 3.5},
		{"contains", "contains", []interface{}{2, []int{1, 2, 3}}, true},
		{"contains missing", "contains", []interface{}{"x", []string{"a"}}, false},
		{"range", "range", []interface{}{3}, []interface{}{0, 1, 2}},
		{"range step", "range", []interface{}{1, 7, 2}, []interface{}{1, 3, 5}},
		{"range down", "range", []interface{}{3, 0, -1}, []interface{}{3, 2, 1}},
		{"switch", "switch", []interface{}{"b", "a", 1, "b", 2, 0}, 2},
		{"switch default", "switch", []interface{}{"z", "a", 1, 0}, 0},
		{"switch no default", "switch", []interface{}{"z", "a", 1}, nil},
		{"list", "list", []interface{}{1, "a"}, []interface{}{1, "a"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CallFunction(tt.fn, tt.args...)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMapFunction(t *testing.T) {
	orders := []interface{}{
		map[string]interface{}{"lines": []interface{}{
			map[string]interface{}{"sku": "A"},
			map[string]interface{}{"sku": "B"},
		}},
		map[string]interface{}{"lines": []interface{}{
			map[string]interface{}{"sku": "C"},
		}},
		map[string]interface{}{},
	}

	got, err := CallFunction("map", "lines.sku", orders)
	require.NoError(t, err)
	assert.Equal(t, []interface{}{"A", "B", "C"}, got)

	_, err = CallFunction("map", 1, orders)
	assert.Error(t, err)
}

func TestFunctionErrors(t *testing.T) {
	_, err := CallFunction("uppercase")
	require.Error(t, err)
	assert.True(t, IsFunctionError(err))
	assert.Contains(t, err.Error(), "requires at least 1 arguments, got 0")

	_, err = CallFunction("empty", 1, 2)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts at most 1 arguments, got 2")

	_, err = CallFunction("integer", "abc")
	var dfe *DataFormatError
	assert.ErrorAs(t, err, &dfe)

	_, err = CallFunction("range", 0, 1, 0)
	assert.EqualError(t, err, "range() step cannot be zero")

	_, err = CallFunction("join", "abc")
	assert.Error(t, err)

	_, err = CallFunction("nope")
	assert.EqualError(t, err, "unknown function: nope")
}

type reportFunctions struct{}

func (reportFunctions) ProvideFunctions() map[string]Function {
	return map[string]Function{
		"shout": NewSimpleFunction("shout", 1, 1, func(args ...interface{}) (interface{}, error) {
			return FormatValue(args[0]) + "!", nil
		}),
	}
}

func TestFunctionRegistry(t *testing.T) {
	r := NewFunctionRegistry()
	assert.Empty(t, r.ListFunctions())

	require.NoError(t, r.RegisterFunction(NewSimpleFunction("b", 0, 0, nil)))
	require.NoError(t, r.RegisterFunction(NewSimpleFunction("a", 0, 0, nil)))
	assert.Equal(t, []string{"a", "b"}, r.ListFunctions())
	assert.Error(t, r.RegisterFunction(NewSimpleFunction("", 0, 0, nil)))

	fn, ok := r.GetFunction("a")
	require.True(t, ok)
	assert.Equal(t, "a", fn.Name())
	assert.Equal(t, 0, fn.MinArgs())

	builtins := NewBuiltinRegistry().ListFunctions()
	assert.True(t, sort.StringsAreSorted(builtins))
	for _, name := range []string{"format_date", "format_currency", "format_number", "join", "switch"} {
		assert.Contains(t, builtins, name)
	}

	withProvider, err := CreateRegistryWithProvider(reportFunctions{})
	require.NoError(t, err)
	shout, ok := withProvider.GetFunction("shout")
	require.True(t, ok)
	got, err := shout.Call("hi")
	require.NoError(t, err)
	assert.Equal(t, "hi!", got)
	_, ok = withProvider.GetFunction("uppercase")
	assert.True(t, ok)
}

func TestNumberFormatFunctions(t *testing.T) {
	tests := []struct {
		name string
		fn   string
		args []interface{}
		want interface{}
	}{
		{"format_number default", "format_number", []interface{}{1234.5}, "1,234.50"},
		{"format_number decimals", "format_number", []interface{}{2.0, 0}, "2"},
		{"format_number german", "format_number", []interface{}{1234.5, 2, "de"}, "1.234,50"},
		{"format_number string input", "format_number", []interface{}{"3.14159", 3}, "3.142"},
		{"format_number nil", "format_number", []interface{}{nil}, nil},
		{"format float", "format", []interface{}{"%.2f", 3.14159}, "3.14"},
		{"format padded", "format", []interface{}{"%s-%05d", "A", 42}, "A-00042"},
		{"format grouped", "format", []interface{}{"%,d", 1234567}, "1,234,567"},
		{"format percent sign", "format", []interface{}{"100%%"}, "100%"},
		{"formatWithLocale", "formatWithLocale", []interface{}{"de_DE", "%,d", 1234567}, "1.234.567"},
		{"format_currency en", "format_currency", []interface{}{1234.5, "USD", "en-US"}, "$1,234.50"},
		{"format_currency negative", "format_currency", []interface{}{-5, "USD"}, "-$5.00"},
		{"format_currency de", "format_currency", []interface{}{1234.5, "EUR", "de"}, "1.234,50\u00a0€"},
		{"currency default locale", "currency", []interface{}{10}, "$10.00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CallFunction(tt.fn, tt.args...)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNumberFormatErrors(t *testing.T) {
	_, err := CallFunction("format", "%d %d", 1)
	assert.Error(t, err)

	_, err = CallFunction("format", "%d", "abc")
	var dfe *DataFormatError
	assert.ErrorAs(t, err, &dfe)

	_, err = CallFunction("format_currency", 1, "NOPE")
	assert.ErrorAs(t, err, &dfe)

	_, err = CallFunction("format_number", 1, 2, "not a locale!")
	assert.Error(t, err)
}

func TestDateFunctions(t *testing.T) {
	ts := time.Date(2024, time.March, 5, 14, 7, 9, 0, time.UTC)

	tests := []struct {
		name string
		fn   string
		args []interface{}
		want string
	}{
		{"default", "format_date", []interface{}{"2024-03-05"}, "2024-03-05"},
		{"target", "format_date", []interface{}{"2024-03-05", "%d/%m/%Y"}, "05/03/2024"},
		{"source", "format_date", []interface{}{"05.03.2024", "%B %d, %Y", "%d.%m.%Y"}, "March 05, 2024"},
		{"german names", "format_date", []interface{}{"2024-03-05", "%A %d %B", "%Y-%m-%d", "de_DE"}, "Dienstag 05 März"},
		{"french short", "format_date", []interface{}{ts, "%a %d %b", nil, "fr"}, "mar. 05 mars"},
		{"time value", "format_date", []interface{}{ts, "%d.%m.%y"}, "05.03.24"},
		{"literal percent", "format_date", []interface{}{ts, "%Y%%"}, "2024%"},
		{"datetime", "format_datetime", []interface{}{ts}, "2024-03-05 14:07:09"},
		{"datetime parse", "format_datetime", []interface{}{"2024-03-05 14:07:09", "%H:%M"}, "14:07"},
		{"java pattern", "date", []interface{}{"dd.MM.yyyy", "2024-03-05"}, "05.03.2024"},
		{"java pattern with names", "date", []interface{}{"de", "EEEE, d. MMMM yyyy", "2024-03-05"}, "Dienstag, 5. März 2024"},
		{"go layout", "date", []interface{}{"2006/01/02", ts}, "2024/03/05"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CallFunction(tt.fn, tt.args...)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDateFunctionErrors(t *testing.T) {
	var dfe *DataFormatError

	_, err := CallFunction("format_date", "not a date")
	assert.ErrorAs(t, err, &dfe)

	_, err = CallFunction("format_date", nil)
	require.ErrorAs(t, err, &dfe)
	assert.Equal(t, "None", dfe.Value)

	_, err = CallFunction("format_date", "2024-03-05", "%Q")
	assert.ErrorAs(t, err, &dfe)

	got, err := CallFunction("date", "dd.MM.yyyy", nil)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestTranslateDateFormat(t *testing.T) {
	assert.Equal(t, "02.01.2006", translateDateFormat("dd.MM.yyyy"))
	assert.Equal(t, "January 2, 2006 03:04 PM", translateDateFormat("MMMM d, yyyy hh:mm a"))
	assert.Equal(t, "Mon 15:04:05.000", translateDateFormat("EEE HH:mm:ss.SSS"))
}
