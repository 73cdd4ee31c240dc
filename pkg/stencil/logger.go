package stencil

import (
	"io"
	"os"
	"sync"

	"github.com/rs/zerolog"
)

// logLevels maps configuration names to zerolog levels.
var logLevels = map[string]zerolog.Level{
	"debug":    zerolog.DebugLevel,
	"info":     zerolog.InfoLevel,
	"warn":     zerolog.WarnLevel,
	"error":    zerolog.ErrorLevel,
	"disabled": zerolog.Disabled,
}

var (
	loggerMu     sync.RWMutex
	globalLogger = zerolog.New(os.Stderr).With().Timestamp().Str("component", "stencil").Logger().Level(zerolog.Disabled)
)

// ParseLogLevel converts a configuration level name. Unknown names disable logging.
func ParseLogLevel(level string) zerolog.Level {
	if l, ok := logLevels[level]; ok {
		return l
	}
	return zerolog.Disabled
}

// NewLogger creates a logger writing JSON lines to w at the given level.
func NewLogger(w io.Writer, level zerolog.Level) zerolog.Logger {
	return zerolog.New(w).With().Timestamp().Str("component", "stencil").Logger().Level(level)
}

// SetLogger replaces the package logger.
func SetLogger(logger zerolog.Logger) {
	loggerMu.Lock()
	globalLogger = logger
	loggerMu.Unlock()
}

// GetLogger returns the package logger.
func GetLogger() *zerolog.Logger {
	loggerMu.RLock()
	l := globalLogger
	loggerMu.RUnlock()
	return &l
}

// SetLogLevel changes the level of the package logger.
func SetLogLevel(level zerolog.Level) {
	loggerMu.Lock()
	globalLogger = globalLogger.Level(level)
	loggerMu.Unlock()
}

// IsDebugMode reports whether debug events are emitted.
func IsDebugMode() bool {
	return GetLogger().GetLevel() <= zerolog.DebugLevel
}

// UpdateLoggerFromConfig applies the level of the global configuration.
func UpdateLoggerFromConfig() {
	SetLogLevel(ParseLogLevel(GetGlobalConfig().LogLevel))
}

func init() {
	UpdateLoggerFromConfig()
}
