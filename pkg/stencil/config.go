package stencil

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cast"
	"github.com/spf13/viper"
)

// Config contains all configuration options for the Stencil engine
type Config struct {
	// CacheMaxSize is the maximum number of template sources to cache. 0 disables caching.
	CacheMaxSize int
	// CacheTTL is the time-to-live for cached sources. 0 means no expiration.
	CacheTTL time.Duration
	// LogLevel controls the verbosity of logging (debug, info, warn, error, disabled)
	LogLevel string
	// MaxRenderDepth limits nesting of loop and conditional blocks during evaluation
	MaxRenderDepth int
	// IgnoreUndefinedVariables renders undefined names as empty text instead of failing
	IgnoreUndefinedVariables bool
	// EscapeFalse renders a substituted false value as "false" instead of empty text
	EscapeFalse bool
	// RemoveSoftBreaks strips soft page breaks from content before scanning
	RemoveSoftBreaks bool
}

// EnvPrefix is the prefix of the environment variables read by ConfigFromEnvironment.
const EnvPrefix = "STENCIL"

var (
	globalConfig      = ConfigFromEnvironment()
	globalConfigMutex sync.RWMutex
)

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		CacheMaxSize:             100,
		CacheTTL:                 0,
		LogLevel:                 "disabled",
		MaxRenderDepth:           100,
		IgnoreUndefinedVariables: false,
		EscapeFalse:              false,
		RemoveSoftBreaks:         true,
	}
}

// newViper returns a viper instance with the defaults and the STENCIL_*
// environment binding installed.
func newViper() *viper.Viper {
	v := viper.New()
	defaults := DefaultConfig()
	v.SetDefault("cache_max_size", defaults.CacheMaxSize)
	v.SetDefault("cache_ttl", defaults.CacheTTL)
	v.SetDefault("log_level", defaults.LogLevel)
	v.SetDefault("max_render_depth", defaults.MaxRenderDepth)
	v.SetDefault("ignore_undefined_variables", defaults.IgnoreUndefinedVariables)
	v.SetDefault("escape_false", defaults.EscapeFalse)
	v.SetDefault("remove_soft_breaks", defaults.RemoveSoftBreaks)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	return v
}

// configFromViper reads the known keys. Values that cannot be coerced keep
// their default, matching how malformed environment variables are ignored.
func configFromViper(v *viper.Viper) *Config {
	config := DefaultConfig()

	if n, err := cast.ToIntE(v.Get("cache_max_size")); err == nil {
		config.CacheMaxSize = n
	}
	if d, err := cast.ToDurationE(v.Get("cache_ttl")); err == nil {
		config.CacheTTL = d
	}
	if s, err := cast.ToStringE(v.Get("log_level")); err == nil && s != "" {
		config.LogLevel = strings.ToLower(s)
	}
	if n, err := cast.ToIntE(v.Get("max_render_depth")); err == nil {
		config.MaxRenderDepth = n
	}
	config.IgnoreUndefinedVariables = parseBool(v.Get("ignore_undefined_variables"), config.IgnoreUndefinedVariables)
	config.EscapeFalse = parseBool(v.Get("escape_false"), config.EscapeFalse)
	config.RemoveSoftBreaks = parseBool(v.Get("remove_soft_breaks"), config.RemoveSoftBreaks)

	return config
}

// ConfigFromEnvironment creates a configuration from STENCIL_* environment variables
func ConfigFromEnvironment() *Config {
	return configFromViper(newViper())
}

// LoadConfigFile reads a YAML, TOML or JSON configuration file. Environment
// variables take precedence over the file and defaults fill the rest.
func LoadConfigFile(path string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, NewDocumentError("read config", path, err)
	}
	config := configFromViper(v)
	if err := config.Validate(); err != nil {
		return nil, WithContext(err, "load config", map[string]interface{}{"path": path})
	}
	return config, nil
}

// NewConfigWithDefaults creates a new configuration with defaults applied to unset fields
func NewConfigWithDefaults(overrides *Config) *Config {
	defaults := DefaultConfig()
	if overrides == nil {
		return defaults
	}

	config := *overrides
	if config.LogLevel == "" {
		config.LogLevel = defaults.LogLevel
	}
	if config.MaxRenderDepth == 0 {
		config.MaxRenderDepth = defaults.MaxRenderDepth
	}
	return &config
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.CacheMaxSize < 0 {
		return errors.New("cache max size cannot be negative")
	}

	if c.CacheTTL < 0 {
		return errors.New("cache TTL cannot be negative")
	}

	if _, ok := logLevels[c.LogLevel]; !ok {
		return errors.New("invalid log level: " + c.LogLevel)
	}

	if c.MaxRenderDepth <= 0 {
		return errors.New("max render depth must be positive")
	}

	return nil
}

// RenderOptions returns the render policies configured in c.
func (c *Config) RenderOptions() RenderOptions {
	return RenderOptions{
		IgnoreUndefinedVariables: c.IgnoreUndefinedVariables,
		EscapeFalse:              c.EscapeFalse,
	}
}

// GetGlobalConfig returns the global configuration
func GetGlobalConfig() *Config {
	globalConfigMutex.RLock()
	defer globalConfigMutex.RUnlock()

	if globalConfig == nil {
		return DefaultConfig()
	}

	configCopy := *globalConfig
	return &configCopy
}

// SetGlobalConfig sets the global configuration
func SetGlobalConfig(config *Config) {
	globalConfigMutex.Lock()
	globalConfig = config
	globalConfigMutex.Unlock()

	// outside the lock: UpdateLoggerFromConfig reads the global config
	UpdateLoggerFromConfig()
}

// parseBool accepts the usual spellings (true/1/yes/on) and returns def for
// anything it cannot interpret.
func parseBool(v interface{}, def bool) bool {
	if s, ok := v.(string); ok {
		switch strings.ToLower(strings.TrimSpace(s)) {
		case "true", "1", "yes", "on":
			return true
		case "false", "0", "no", "off":
			return false
		default:
			return def
		}
	}
	b, err := cast.ToBoolE(v)
	if err != nil {
		return def
	}
	return b
}
