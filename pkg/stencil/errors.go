// Package stencil provides custom error types for better error handling and reporting.
package stencil

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind classifies a fatal template failure.
type ErrorKind int

const (
	// ErrGrammar is a malformed directive payload.
	ErrGrammar ErrorKind = iota
	// ErrStructure is a nesting or link validation failure.
	ErrStructure
	// ErrUndefined is a reference to a name missing from the render context.
	ErrUndefined
	// ErrData is a helper or formatting failure while rendering.
	ErrData
)

func (k ErrorKind) String() string {
	switch k {
	case ErrGrammar:
		return "grammar"
	case ErrStructure:
		return "structure"
	case ErrUndefined:
		return "undefined"
	case ErrData:
		return "data"
	default:
		return "unknown"
	}
}

// TemplateError is the error returned for every fatal template condition.
// Error returns Message unchanged so callers can match on it.
type TemplateError struct {
	Kind    ErrorKind
	Message string
	Part    string
	Cause   error
}

func (e *TemplateError) Error() string {
	return e.Message
}

func (e *TemplateError) Unwrap() error {
	return e.Cause
}

// NewTemplateError creates a template error of the given kind.
func NewTemplateError(kind ErrorKind, format string, args ...interface{}) *TemplateError {
	return &TemplateError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// inPart records the part a template error was raised for.
func inPart(err error, part string) error {
	var te *TemplateError
	if errors.As(err, &te) && te.Part == "" {
		te.Part = part
	}
	return err
}

// UndefinedError reports a name missing from the render context.
type UndefinedError struct {
	Name string
}

func (e *UndefinedError) Error() string {
	return fmt.Sprintf("%q is not defined", e.Name)
}

// FunctionError represents an error in a template function call
type FunctionError struct {
	Function string
	Args     []interface{}
	Message  string
	Cause    error
}

func (e *FunctionError) Error() string {
	argsStr := make([]string, len(e.Args))
	for i, arg := range e.Args {
		argsStr[i] = fmt.Sprintf("%v", arg)
	}
	return fmt.Sprintf("function error in '%s(%s)': %s", e.Function, strings.Join(argsStr, ", "), e.Message)
}

func (e *FunctionError) Unwrap() error {
	return e.Cause
}

// NewFunctionError creates a new function error
func NewFunctionError(function string, args []interface{}, message string) error {
	return &FunctionError{
		Function: function,
		Args:     args,
		Message:  message,
	}
}

// DataFormatError reports a value a formatting helper could not interpret.
type DataFormatError struct {
	Value  interface{}
	Format string
	Cause  error
}

func (e *DataFormatError) Error() string {
	if e.Format != "" {
		return fmt.Sprintf("cannot parse %q with format %q", fmt.Sprint(e.Value), e.Format)
	}
	return fmt.Sprintf("cannot parse %q", fmt.Sprint(e.Value))
}

func (e *DataFormatError) Unwrap() error {
	return e.Cause
}

// DocumentError represents an error during document operations
type DocumentError struct {
	Operation string
	Path      string
	Cause     error
}

func (e *DocumentError) Error() string {
	if e.Path != "" && e.Cause != nil {
		return fmt.Sprintf("document error during %s of '%s': %v", e.Operation, e.Path, e.Cause)
	} else if e.Path != "" {
		return fmt.Sprintf("document error during %s of '%s'", e.Operation, e.Path)
	} else if e.Cause != nil {
		return fmt.Sprintf("document error during %s: %v", e.Operation, e.Cause)
	}
	return fmt.Sprintf("document error during %s", e.Operation)
}

func (e *DocumentError) Unwrap() error {
	return e.Cause
}

// NewDocumentError creates a new document error
func NewDocumentError(operation, path string, cause error) error {
	return &DocumentError{
		Operation: operation,
		Path:      path,
		Cause:     cause,
	}
}

// ContextError adds context to an existing error
type ContextError struct {
	Operation string
	Context   map[string]interface{}
	Cause     error
}

func (e *ContextError) Error() string {
	var contextParts []string
	for k, v := range e.Context {
		contextParts = append(contextParts, fmt.Sprintf("%s=%v", k, v))
	}

	if len(contextParts) > 0 {
		return fmt.Sprintf("%s [%s]: %v", e.Operation, strings.Join(contextParts, ", "), e.Cause)
	}
	return fmt.Sprintf("%s: %v", e.Operation, e.Cause)
}

func (e *ContextError) Unwrap() error {
	return e.Cause
}

// WithContext wraps an error with additional context
func WithContext(err error, operation string, context map[string]interface{}) error {
	if err == nil {
		return nil
	}
	return &ContextError{
		Operation: operation,
		Context:   context,
		Cause:     err,
	}
}

// RecoverError converts a panic recovery value to an error
func RecoverError(r interface{}) error {
	switch v := r.(type) {
	case error:
		return fmt.Errorf("panic recovered: %w", v)
	case string:
		return fmt.Errorf("panic recovered: %s", v)
	default:
		return fmt.Errorf("panic recovered: %v", v)
	}
}

// toTemplateError converts an evaluator failure into the fatal template
// error category, keeping the original as cause.
func toTemplateError(err error) error {
	if err == nil {
		return nil
	}
	var te *TemplateError
	if errors.As(err, &te) {
		return err
	}
	var ue *UndefinedError
	if errors.As(err, &ue) {
		return &TemplateError{Kind: ErrUndefined, Message: ue.Error(), Cause: err}
	}
	var de *DataFormatError
	if errors.As(err, &de) {
		return &TemplateError{Kind: ErrData, Message: de.Error(), Cause: err}
	}
	return &TemplateError{Kind: ErrData, Message: err.Error(), Cause: err}
}

// IsTemplateError checks if an error is or wraps a template error
func IsTemplateError(err error) bool {
	var te *TemplateError
	return errors.As(err, &te)
}

// IsTemplateErrorKind checks if err is a template error of the given kind
func IsTemplateErrorKind(err error, kind ErrorKind) bool {
	var te *TemplateError
	return errors.As(err, &te) && te.Kind == kind
}

// IsFunctionError checks if an error is a function error
func IsFunctionError(err error) bool {
	var fe *FunctionError
	return errors.As(err, &fe)
}

// IsDocumentError checks if an error is a document error
func IsDocumentError(err error) bool {
	var de *DocumentError
	return errors.As(err, &de)
}
