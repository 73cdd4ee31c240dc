package stencil

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"unicode"

	"github.com/spf13/cast"
)

// Function represents a callable function in templates
type Function interface {
	// Call executes the function with the given arguments
	Call(args ...interface{}) (interface{}, error)

	// Name returns the function name
	Name() string

	// MinArgs returns the minimum number of arguments required
	MinArgs() int

	// MaxArgs returns the maximum number of arguments allowed (-1 for unlimited)
	MaxArgs() int
}

// FunctionRegistry manages available functions
type FunctionRegistry interface {
	RegisterFunction(fn Function) error
	GetFunction(name string) (Function, bool)
	ListFunctions() []string
}

// FunctionProvider supplies a set of functions to register at once.
type FunctionProvider interface {
	ProvideFunctions() map[string]Function
}

// DefaultFunctionRegistry is the default implementation of FunctionRegistry
type DefaultFunctionRegistry struct {
	functions map[string]Function
	mutex     sync.RWMutex
}

// NewFunctionRegistry creates an empty registry.
func NewFunctionRegistry() *DefaultFunctionRegistry {
	return &DefaultFunctionRegistry{
		functions: make(map[string]Function),
	}
}

// NewBuiltinRegistry creates a registry holding the built-in helpers.
func NewBuiltinRegistry() *DefaultFunctionRegistry {
	r := NewFunctionRegistry()
	registerBasicFunctions(r)
	return r
}

func (r *DefaultFunctionRegistry) RegisterFunction(fn Function) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	name := fn.Name()
	if name == "" {
		return fmt.Errorf("function name cannot be empty")
	}
	r.functions[name] = fn
	return nil
}

func (r *DefaultFunctionRegistry) GetFunction(name string) (Function, bool) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	fn, exists := r.functions[name]
	return fn, exists
}

// ListFunctions returns the registered names in sorted order.
func (r *DefaultFunctionRegistry) ListFunctions() []string {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	names := make([]string, 0, len(r.functions))
	for name := range r.functions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

var (
	globalRegistry *DefaultFunctionRegistry
	registryOnce   sync.Once
)

// GetDefaultFunctionRegistry returns the shared registry of built-in helpers.
func GetDefaultFunctionRegistry() FunctionRegistry {
	registryOnce.Do(func() {
		globalRegistry = NewBuiltinRegistry()
	})
	return globalRegistry
}

// CreateRegistryWithProvider creates a registry with the built-ins plus the
// functions of provider.
func CreateRegistryWithProvider(provider FunctionProvider) (FunctionRegistry, error) {
	registry := NewBuiltinRegistry()
	for _, fn := range provider.ProvideFunctions() {
		if err := registry.RegisterFunction(fn); err != nil {
			return nil, err
		}
	}
	return registry, nil
}

// CallFunction calls a built-in helper by name.
func CallFunction(name string, args ...interface{}) (interface{}, error) {
	fn, ok := GetDefaultFunctionRegistry().GetFunction(name)
	if !ok {
		return nil, fmt.Errorf("unknown function: %s", name)
	}
	return fn.Call(args...)
}

// SimpleFunctionImpl adapts a handler to Function and checks the argument count.
type SimpleFunctionImpl struct {
	name    string
	minArgs int
	maxArgs int
	handler func(args ...interface{}) (interface{}, error)
}

func NewSimpleFunction(name string, minArgs, maxArgs int, handler func(args ...interface{}) (interface{}, error)) Function {
	return &SimpleFunctionImpl{
		name:    name,
		minArgs: minArgs,
		maxArgs: maxArgs,
		handler: handler,
	}
}

func (f *SimpleFunctionImpl) Call(args ...interface{}) (interface{}, error) {
	argCount := len(args)
	if argCount < f.minArgs {
		return nil, NewFunctionError(f.name, args, fmt.Sprintf("requires at least %d arguments, got %d", f.minArgs, argCount))
	}
	if f.maxArgs >= 0 && argCount > f.maxArgs {
		return nil, NewFunctionError(f.name, args, fmt.Sprintf("accepts at most %d arguments, got %d", f.maxArgs, argCount))
	}
	return f.handler(args...)
}

func (f *SimpleFunctionImpl) Name() string { return f.name }
func (f *SimpleFunctionImpl) MinArgs() int { return f.minArgs }
func (f *SimpleFunctionImpl) MaxArgs() int { return f.maxArgs }

func registerBasicFunctions(registry *DefaultFunctionRegistry) {
	registerDateFunctions(registry)
	registerNumberFormatFunctions(registry)
	registerCellFunctions(registry)

	fns := []Function{
		NewSimpleFunction("empty", 1, 1, func(args ...interface{}) (interface{}, error) {
			return isEmpty(args[0]), nil
		}),
		NewSimpleFunction("coalesce", 1, -1, func(args ...interface{}) (interface{}, error) {
			for _, arg := range args {
				if !isEmpty(arg) {
					return arg, nil
				}
			}
			return nil, nil
		}),
		NewSimpleFunction("list", 0, -1, func(args ...interface{}) (interface{}, error) {
			return args, nil
		}),
		NewSimpleFunction("map", 2, 2, func(args ...interface{}) (interface{}, error) {
			path, ok := args[0].(string)
			if !ok {
				return nil, fmt.Errorf("first parameter of map() must be a string")
			}
			return mapExtract(path, args[1])
		}),
		NewSimpleFunction("str", 1, 1, func(args ...interface{}) (interface{}, error) {
			if args[0] == nil {
				return "", nil
			}
			return FormatValue(args[0]), nil
		}),
		NewSimpleFunction("integer", 1, 1, func(args ...interface{}) (interface{}, error) {
			if args[0] == nil {
				return nil, nil
			}
			f, err := cast.ToFloat64E(args[0])
			if err != nil {
				return nil, &DataFormatError{Value: FormatValue(args[0]), Cause: err}
			}
			return int(f), nil
		}),
		NewSimpleFunction("decimal", 1, 1, func(args ...interface{}) (interface{}, error) {
			if args[0] == nil {
				return nil, nil
			}
			f, err := cast.ToFloat64E(args[0])
			if err != nil {
				return nil, &DataFormatError{Value: FormatValue(args[0]), Cause: err}
			}
			return f, nil
		}),
		stringFunction("lowercase", strings.ToLower),
		stringFunction("uppercase", strings.ToUpper),
		stringFunction("titlecase", toTitleCase),
		stringFunction("trim", strings.TrimSpace),
		NewSimpleFunction("join", 1, 2, func(args ...interface{}) (interface{}, error) {
			items, err := formattedItems(args[0])
			if err != nil {
				return nil, err
			}
			sep := ""
			if len(args) > 1 && args[1] != nil {
				sep = cast.ToString(args[1])
			}
			return strings.Join(items, sep), nil
		}),
		NewSimpleFunction("joinAnd", 3, 3, func(args ...interface{}) (interface{}, error) {
			items, err := formattedItems(args[0])
			if err != nil {
				return nil, err
			}
			sep, last := cast.ToString(args[1]), cast.ToString(args[2])
			switch len(items) {
			case 0:
				return "", nil
			case 1:
				return items[0], nil
			}
			return strings.Join(items[:len(items)-1], sep) + last + items[len(items)-1], nil
		}),
		NewSimpleFunction("replace", 3, 3, func(args ...interface{}) (interface{}, error) {
			text := cast.ToString(args[0])
			if args[1] == nil {
				return text, nil
			}
			return strings.ReplaceAll(text, cast.ToString(args[1]), cast.ToString(args[2])), nil
		}),
		NewSimpleFunction("length", 1, 1, func(args ...interface{}) (interface{}, error) {
			return length(args[0]), nil
		}),
		mathFunction("round", math.Round),
		mathFunction("floor", math.Floor),
		mathFunction("ceil", math.Ceil),
		NewSimpleFunction("sum", 1, 1, func(args ...interface{}) (interface{}, error) {
			return sumList(args[0])
		}),
		NewSimpleFunction("contains", 2, 2, func(args ...interface{}) (interface{}, error) {
			items, err := toSlice(args[1])
			if err != nil {
				return nil, fmt.Errorf("second parameter of contains() must be a collection")
			}
			for _, item := range items {
				if evaluateEquals(args[0], item) {
					return true, nil
				}
			}
			return false, nil
		}),
		NewSimpleFunction("range", 1, 3, createRange),
		NewSimpleFunction("switch", 3, -1, switchFunction),
	}
	for _, fn := range fns {
		registry.RegisterFunction(fn)
	}
}

func stringFunction(name string, fn func(string) string) Function {
	return NewSimpleFunction(name, 1, 1, func(args ...interface{}) (interface{}, error) {
		if args[0] == nil {
			return nil, nil
		}
		return fn(FormatValue(args[0])), nil
	})
}

func mathFunction(name string, fn func(float64) float64) Function {
	return NewSimpleFunction(name, 1, 1, func(args ...interface{}) (interface{}, error) {
		if args[0] == nil {
			return nil, nil
		}
		f, err := cast.ToFloat64E(args[0])
		if err != nil {
			return nil, NewFunctionError(name, args, fmt.Sprintf("argument must be a number, got %T", args[0]))
		}
		return int(fn(f)), nil
	})
}

// isEmpty checks if a value is considered empty
func isEmpty(val interface{}) bool {
	if val == nil {
		return true
	}
	switch v := val.(type) {
	case bool:
		return !v
	case string:
		return v == ""
	}
	if f, ok := toFloat64(val); ok {
		return f == 0
	}
	if items, err := toSlice(val); err == nil {
		return len(items) == 0
	}
	return false
}

func formattedItems(collection interface{}) ([]string, error) {
	if collection == nil {
		return nil, nil
	}
	if _, ok := collection.(string); ok {
		return nil, fmt.Errorf("first parameter must be a collection")
	}
	items, err := toSlice(collection)
	if err != nil {
		return nil, fmt.Errorf("first parameter must be a collection")
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if item != nil {
			out = append(out, FormatValue(item))
		}
	}
	return out, nil
}

func length(val interface{}) int {
	switch v := val.(type) {
	case nil:
		return 0
	case string:
		return len([]rune(v))
	}
	if items, err := toSlice(val); err == nil {
		return len(items)
	}
	return len([]rune(FormatValue(val)))
}

// mapExtract follows a dotted path into every element of a collection and
// returns the flattened values.
func mapExtract(path string, data interface{}) (interface{}, error) {
	current, err := toSlice(data)
	if err != nil {
		return nil, fmt.Errorf("map() requires a collection, got %T", data)
	}
	for _, part := range strings.Split(path, ".") {
		var next []interface{}
		for _, item := range current {
			v, ok := accessField(item, part)
			if !ok || v == nil {
				continue
			}
			if nested, isList := v.([]interface{}); isList {
				next = append(next, nested...)
				continue
			}
			next = append(next, v)
		}
		current = next
	}
	if current == nil {
		current = []interface{}{}
	}
	return current, nil
}

func toTitleCase(s string) string {
	var sb strings.Builder
	upper := true
	for _, r := range s {
		switch {
		case unicode.IsSpace(r):
			upper = true
			sb.WriteRune(r)
		case upper:
			sb.WriteRune(unicode.ToUpper(r))
			upper = false
		default:
			sb.WriteRune(unicode.ToLower(r))
		}
	}
	return sb.String()
}

func sumList(val interface{}) (interface{}, error) {
	items, err := toSlice(val)
	if err != nil {
		return nil, fmt.Errorf("sum() requires a collection, got %T", val)
	}
	total, allInts := 0.0, true
	for _, item := range items {
		if item == nil {
			continue
		}
		f, err := cast.ToFloat64E(item)
		if err != nil {
			return nil, fmt.Errorf("sum() cannot add %T", item)
		}
		if !isInteger(item) {
			allInts = false
		}
		total += f
	}
	if allInts {
		return int(total), nil
	}
	return total, nil
}

func createRange(args ...interface{}) (interface{}, error) {
	ints := make([]int, len(args))
	for i, a := range args {
		n, err := cast.ToIntE(a)
		if err != nil {
			return nil, fmt.Errorf("range() arguments must be integers")
		}
		ints[i] = n
	}
	start, end, step := 0, 0, 1
	switch len(ints) {
	case 1:
		end = ints[0]
	case 2:
		start, end = ints[0], ints[1]
	case 3:
		start, end, step = ints[0], ints[1], ints[2]
	}
	if step == 0 {
		return nil, fmt.Errorf("range() step cannot be zero")
	}
	var out []interface{}
	for i := start; (step > 0 && i < end) || (step < 0 && i > end); i += step {
		out = append(out, i)
		if len(out) > 10000 {
			return nil, fmt.Errorf("range() too large")
		}
	}
	if out == nil {
		out = []interface{}{}
	}
	return out, nil
}

// switchFunction returns the value paired with the first case equal to the
// first argument, or the trailing default.
func switchFunction(args ...interface{}) (interface{}, error) {
	expr, rest := args[0], args[1:]
	for len(rest) >= 2 {
		if evaluateEquals(expr, rest[0]) {
			return rest[1], nil
		}
		rest = rest[2:]
	}
	if len(rest) == 1 {
		return rest[0], nil
	}
	return nil, nil
}
