package stencil

import (
	"bytes"
	"fmt"
	"io"
	"time"
)

// settings are the knobs shared by an Engine and the templates it opens.
type settings struct {
	config           *Config
	functions        FunctionRegistry
	evaluator        Evaluator
	render           RenderOptions
	maxDepth         int
	removeSoftBreaks bool
	images           map[string][]byte
}

func settingsFromConfig(c *Config) settings {
	return settings{
		config:           c,
		render:           c.RenderOptions(),
		maxDepth:         c.MaxRenderDepth,
		removeSoftBreaks: c.RemoveSoftBreaks,
	}
}

func (s settings) with(opts []Option) settings {
	if len(s.images) > 0 {
		images := make(map[string][]byte, len(s.images))
		for k, v := range s.images {
			images[k] = v
		}
		s.images = images
	}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

// Engine provides the main API for working with templates.
// Use New() to create a new engine instance.
type Engine struct {
	settings settings
	cache    *TemplateCache
	registry *DefaultFunctionRegistry
}

// New creates a new template engine with the global configuration.
func New() *Engine {
	return NewWithConfig(GetGlobalConfig())
}

// NewWithConfig creates a new template engine with custom configuration.
func NewWithConfig(config *Config) *Engine {
	e := &Engine{
		settings: settingsFromConfig(config),
		cache: NewTemplateCacheWithConfig(CacheConfig{
			MaxSize: config.CacheMaxSize,
			TTL:     config.CacheTTL,
		}),
		registry: NewBuiltinRegistry(),
	}
	e.settings.functions = e.registry
	return e
}

// NewWithOptions creates a new engine with the specified options.
func NewWithOptions(opts ...Option) *Engine {
	e := New()
	e.settings = e.settings.with(opts)
	if e.settings.config.CacheMaxSize != e.cache.config.MaxSize {
		e.cache = NewTemplateCacheWithConfig(CacheConfig{
			MaxSize: e.settings.config.CacheMaxSize,
			TTL:     e.settings.config.CacheTTL,
		})
	}
	return e
}

// Open loads the template at source, reusing cached bytes when the file is
// unchanged. Every call returns an independent Template.
func (e *Engine) Open(source, destination string, opts ...Option) (*Template, error) {
	data, err := e.cache.Load(source)
	if err != nil {
		return nil, err
	}
	return newTemplate(data, source, destination, e.settings.with(opts))
}

// Load reads a template from r without caching.
func (e *Engine) Load(r io.Reader, opts ...Option) (*Template, error) {
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(r); err != nil {
		return nil, NewDocumentError("read", "", err)
	}
	return newTemplate(buf.Bytes(), "", "", e.settings.with(opts))
}

// RegisterFunction adds a helper callable from directives of templates opened
// by this engine.
func (e *Engine) RegisterFunction(fn Function) error {
	return e.registry.RegisterFunction(fn)
}

// RegisterFunctionsFromProvider registers all functions from a provider.
func (e *Engine) RegisterFunctionsFromProvider(provider FunctionProvider) error {
	for name, fn := range provider.ProvideFunctions() {
		if err := e.registry.RegisterFunction(fn); err != nil {
			return fmt.Errorf("failed to register function %s: %w", name, err)
		}
	}
	return nil
}

// Functions returns the engine's function registry.
func (e *Engine) Functions() FunctionRegistry {
	return e.settings.functions
}

// Config returns the engine's configuration.
func (e *Engine) Config() *Config {
	return e.settings.config
}

// ClearCache removes all template sources from the cache.
func (e *Engine) ClearCache() {
	e.cache.Clear()
}

// Close releases any resources held by the engine.
func (e *Engine) Close() error {
	return e.cache.Close()
}

// Option configures an Engine or a single Template.
type Option func(*settings)

// WithConfig applies a configuration's render, depth and soft break settings.
func WithConfig(config *Config) Option {
	return func(s *settings) {
		fns, ev, images := s.functions, s.evaluator, s.images
		*s = settingsFromConfig(config)
		s.functions, s.evaluator, s.images = fns, ev, images
	}
}

// WithCache sets the cache size of a new engine (0 disables caching).
func WithCache(maxSize int, ttl time.Duration) Option {
	return func(s *settings) {
		c := *s.config
		c.CacheMaxSize = maxSize
		c.CacheTTL = ttl
		s.config = &c
	}
}

// WithRenderOptions sets the default render options.
func WithRenderOptions(opts RenderOptions) Option {
	return func(s *settings) { s.render = opts }
}

// WithIgnoreUndefined renders undefined names as empty text.
func WithIgnoreUndefined(ignore bool) Option {
	return func(s *settings) { s.render.IgnoreUndefinedVariables = ignore }
}

// WithEscapeFalse renders false values as "false".
func WithEscapeFalse(escape bool) Option {
	return func(s *settings) { s.render.EscapeFalse = escape }
}

// WithSoftBreakRemoval turns soft page break removal before rendering on or off.
func WithSoftBreakRemoval(remove bool) Option {
	return func(s *settings) { s.removeSoftBreaks = remove }
}

// WithMaxDepth limits block nesting during evaluation.
func WithMaxDepth(depth int) Option {
	return func(s *settings) { s.maxDepth = depth }
}

// WithFunctions replaces the function registry.
func WithFunctions(registry FunctionRegistry) Option {
	return func(s *settings) { s.functions = registry }
}

// WithEvaluator replaces the expression engine.
func WithEvaluator(ev Evaluator) Option {
	return func(s *settings) { s.evaluator = ev }
}

// WithImage binds a static image.
func WithImage(name string, data []byte) Option {
	return func(s *settings) {
		if s.images == nil {
			s.images = make(map[string][]byte)
		}
		s.images[name] = data
	}
}

// DefaultEngine is used by the package-level Open and Load.
var DefaultEngine = New()

// RegisterGlobalFunction adds a helper to the default engine.
func RegisterGlobalFunction(fn Function) error {
	return DefaultEngine.RegisterFunction(fn)
}

// ClearCache clears the default engine's cache.
func ClearCache() {
	DefaultEngine.ClearCache()
}
