package stencil

import (
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"time"
	"unicode"
	"unicode/utf8"
)

// evalEnv is the scope chain an expression is evaluated in: loop variables
// shadow the render context, which is never modified.
type evalEnv struct {
	data      TemplateData
	vars      map[string]interface{}
	parent    *evalEnv
	opts      EvalOptions
	functions FunctionRegistry
	depth     int
}

func newEvalEnv(data TemplateData, opts EvalOptions) *evalEnv {
	functions := opts.Functions
	if functions == nil {
		functions = GetDefaultFunctionRegistry()
	}
	if data == nil {
		data = TemplateData{}
	}
	return &evalEnv{data: data, opts: opts, functions: functions}
}

// child opens a nested scope for one loop iteration.
func (e *evalEnv) child(vars map[string]interface{}) *evalEnv {
	return &evalEnv{
		data:      e.data,
		vars:      vars,
		parent:    e,
		opts:      e.opts,
		functions: e.functions,
		depth:     e.depth + 1,
	}
}

func (e *evalEnv) lookup(name string) (interface{}, bool) {
	for cur := e; cur != nil; cur = cur.parent {
		if v, ok := cur.vars[name]; ok {
			return v, true
		}
	}
	v, ok := e.data[name]
	return v, ok
}

// undefined applies the undefined-name policy to a missing reference.
func (e *evalEnv) undefined(path string) (interface{}, error) {
	if e.opts.IgnoreUndefinedVariables {
		if IsDebugMode() {
			GetLogger().Debug().Str("name", path).Msg("undefined name rendered empty")
		}
		return nil, nil
	}
	return nil, &UndefinedError{Name: path}
}

// enter guards the nesting depth of block directives.
func (e *evalEnv) enter() error {
	if e.opts.MaxDepth > 0 && e.depth >= e.opts.MaxDepth {
		return fmt.Errorf("maximum render depth %d exceeded", e.opts.MaxDepth)
	}
	return nil
}

// accessField resolves key on maps, structs (exported field or method, with
// the first letter upper-cased as a fallback) and pointers to them.
func accessField(obj interface{}, key string) (interface{}, bool) {
	if obj == nil {
		return nil, false
	}
	switch m := obj.(type) {
	case TemplateData:
		v, ok := m[key]
		return v, ok
	case map[string]interface{}:
		v, ok := m[key]
		return v, ok
	}

	rv := reflect.ValueOf(obj)
	if m := methodByName(rv, key); m.IsValid() {
		return callMethod(m)
	}
	for rv.Kind() == reflect.Ptr || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return nil, false
		}
		rv = rv.Elem()
	}

	switch rv.Kind() {
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return nil, false
		}
		v := rv.MapIndex(reflect.ValueOf(key).Convert(rv.Type().Key()))
		if !v.IsValid() {
			return nil, false
		}
		return v.Interface(), true
	case reflect.Struct:
		for _, name := range fieldNames(key) {
			f := rv.FieldByName(name)
			if f.IsValid() && f.CanInterface() {
				return f.Interface(), true
			}
		}
		if m := methodByName(rv, key); m.IsValid() {
			return callMethod(m)
		}
	}
	return nil, false
}

func fieldNames(key string) []string {
	r, size := utf8.DecodeRuneInString(key)
	if unicode.IsUpper(r) {
		return []string{key}
	}
	return []string{key, string(unicode.ToUpper(r)) + key[size:]}
}

func methodByName(rv reflect.Value, key string) reflect.Value {
	if !rv.IsValid() {
		return reflect.Value{}
	}
	for _, name := range fieldNames(key) {
		m := rv.MethodByName(name)
		if m.IsValid() && m.Type().NumIn() == 0 && m.Type().NumOut() >= 1 {
			return m
		}
	}
	return reflect.Value{}
}

func callMethod(m reflect.Value) (interface{}, bool) {
	out := m.Call(nil)
	return out[0].Interface(), true
}

// accessArrayIndex accesses a slice or array element; negative indices count
// from the end.
func accessArrayIndex(current interface{}, index int) interface{} {
	if current == nil {
		return nil
	}
	rv := reflect.ValueOf(current)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array, reflect.String:
	default:
		return nil
	}
	if index < 0 {
		index += rv.Len()
	}
	if index < 0 || index >= rv.Len() {
		return nil
	}
	if rv.Kind() == reflect.String {
		return string(rv.Index(index).Interface().(uint8))
	}
	return rv.Index(index).Interface()
}

var errorType = reflect.TypeOf((*error)(nil)).Elem()

// callFunc invokes a Go func supplied in the render context. Arguments are
// converted to the parameter types where Go allows it. A trailing error
// result is returned as the call error.
func callFunc(name string, fn interface{}, args []interface{}) (interface{}, error) {
	fv := reflect.ValueOf(fn)
	ft := fv.Type()

	if ft.IsVariadic() {
		if len(args) < ft.NumIn()-1 {
			return nil, NewFunctionError(name, args, fmt.Sprintf("expects at least %d arguments, got %d", ft.NumIn()-1, len(args)))
		}
	} else if len(args) != ft.NumIn() {
		return nil, NewFunctionError(name, args, fmt.Sprintf("expects %d arguments, got %d", ft.NumIn(), len(args)))
	}

	in := make([]reflect.Value, len(args))
	for i, arg := range args {
		var pt reflect.Type
		if ft.IsVariadic() && i >= ft.NumIn()-1 {
			pt = ft.In(ft.NumIn() - 1).Elem()
		} else {
			pt = ft.In(i)
		}
		v, err := convertArg(arg, pt)
		if err != nil {
			return nil, NewFunctionError(name, args, fmt.Sprintf("argument %d: %v", i, err))
		}
		in[i] = v
	}

	out := fv.Call(in)
	switch len(out) {
	case 0:
		return nil, nil
	case 1:
		if ft.Out(0) == errorType {
			err, _ := out[0].Interface().(error)
			return nil, err
		}
		return out[0].Interface(), nil
	default:
		if ft.Out(len(out)-1) == errorType {
			if err, _ := out[len(out)-1].Interface().(error); err != nil {
				return nil, err
			}
		}
		return out[0].Interface(), nil
	}
}

func convertArg(arg interface{}, t reflect.Type) (reflect.Value, error) {
	if arg == nil {
		return reflect.Zero(t), nil
	}
	v := reflect.ValueOf(arg)
	if v.Type().AssignableTo(t) {
		return v, nil
	}
	if v.Type().ConvertibleTo(t) && v.Kind() != reflect.String {
		return v.Convert(t), nil
	}
	if t.Kind() == reflect.String {
		return reflect.ValueOf(FormatValue(arg)).Convert(t), nil
	}
	return reflect.Value{}, fmt.Errorf("cannot use %T as %s", arg, t)
}

// FormatValue converts a value to its string representation
func FormatValue(value interface{}) string {
	if value == nil {
		return ""
	}

	switch v := value.(type) {
	case string:
		return v
	case []byte:
		return string(v)
	case bool:
		return strconv.FormatBool(v)
	case float32:
		return strconv.FormatFloat(float64(v), 'g', 10, 32)
	case float64:
		return strconv.FormatFloat(v, 'g', 15, 64)
	case time.Time:
		return v.Format("2006-01-02 15:04:05")
	case fmt.Stringer:
		return v.String()
	case error:
		return v.Error()
	}
	if f, ok := toFloat64(value); ok && isInteger(value) {
		return strconv.FormatInt(int64(f), 10)
	}
	return fmt.Sprintf("%v", value)
}

// toSlice converts arrays, slices, maps and strings for iteration. Maps yield
// {key, value} pairs sorted by key.
func toSlice(val interface{}) ([]interface{}, error) {
	if val == nil {
		return []interface{}{}, nil
	}
	switch v := val.(type) {
	case []interface{}:
		return v, nil
	case string:
		result := make([]interface{}, 0, len(v))
		for _, r := range v {
			result = append(result, string(r))
		}
		return result, nil
	}

	rv := reflect.ValueOf(val)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		result := make([]interface{}, rv.Len())
		for i := range result {
			result[i] = rv.Index(i).Interface()
		}
		return result, nil
	case reflect.Map:
		keys := rv.MapKeys()
		sortValues(keys)
		result := make([]interface{}, len(keys))
		for i, k := range keys {
			result[i] = map[string]interface{}{
				"key":   k.Interface(),
				"value": rv.MapIndex(k).Interface(),
			}
		}
		return result, nil
	default:
		return nil, fmt.Errorf("type %T is not iterable", val)
	}
}

func sortValues(keys []reflect.Value) {
	sort.Slice(keys, func(i, j int) bool {
		return fmt.Sprint(keys[i].Interface()) < fmt.Sprint(keys[j].Interface())
	})
}
