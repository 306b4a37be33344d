// Package logger provides structured logging backed by charmbracelet/log.
package logger

import (
	"context"
	"io"
	"os"

	charmlog "github.com/charmbracelet/log"
)

type (
	// Level is a textual log level: debug, info, warn, error or disabled.
	Level string

	// Logger defines structured logging used across the engine.
	Logger interface {
		Debug(msg string, keyvals ...any)
		Info(msg string, keyvals ...any)
		Warn(msg string, keyvals ...any)
		Error(msg string, keyvals ...any)
		With(keyvals ...any) Logger
	}

	charmLogger struct {
		logger *charmlog.Logger
	}

	contextKey struct{}
)

const (
	DebugLevel    Level = "debug"
	InfoLevel     Level = "info"
	WarnLevel     Level = "warn"
	ErrorLevel    Level = "error"
	DisabledLevel Level = "disabled"
)

// charm has no "off" level; anything above fatal suppresses all records.
const disabled = charmlog.Level(1000)

func (l Level) String() string {
	return string(l)
}

// ToCharmLevel converts the level, falling back to info for unknown values.
func (l Level) ToCharmLevel() charmlog.Level {
	switch l {
	case DebugLevel:
		return charmlog.DebugLevel
	case InfoLevel:
		return charmlog.InfoLevel
	case WarnLevel:
		return charmlog.WarnLevel
	case ErrorLevel:
		return charmlog.ErrorLevel
	case DisabledLevel:
		return disabled
	}
	return charmlog.InfoLevel
}

// Config controls logger construction.
type Config struct {
	Level      Level     `json:"level,omitempty" yaml:"level,omitempty"`
	JSON       bool      `json:"json,omitempty" yaml:"json,omitempty"`
	TimeFormat string    `json:"timeFormat,omitempty" yaml:"timeFormat,omitempty"`
	Prefix     string    `json:"prefix,omitempty" yaml:"prefix,omitempty"`
	Output     io.Writer `json:"-" yaml:"-"`
}

// DefaultConfig logs info and above to stderr.
func DefaultConfig() *Config {
	return &Config{
		Level:      InfoLevel,
		Output:     os.Stderr,
		TimeFormat: "15:04:05",
	}
}

// TestConfig discards everything.
func TestConfig() *Config {
	return &Config{
		Level:      DisabledLevel,
		Output:     io.Discard,
		TimeFormat: "15:04:05",
	}
}

// New creates a logger; nil cfg means DefaultConfig.
func New(cfg *Config) Logger {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	output := cfg.Output
	if output == nil {
		output = os.Stderr
	}
	options := charmlog.Options{
		Level:           cfg.Level.ToCharmLevel(),
		Prefix:          cfg.Prefix,
		ReportTimestamp: cfg.TimeFormat != "",
		TimeFormat:      cfg.TimeFormat,
		Formatter:       charmlog.TextFormatter,
	}
	if cfg.JSON {
		options.Formatter = charmlog.JSONFormatter
	}
	return &charmLogger{logger: charmlog.NewWithOptions(output, options)}
}

// Nop returns a logger that drops every record.
func Nop() Logger {
	return New(TestConfig())
}

func (l *charmLogger) Debug(msg string, keyvals ...any) { l.logger.Debug(msg, keyvals...) }
func (l *charmLogger) Info(msg string, keyvals ...any)  { l.logger.Info(msg, keyvals...) }
func (l *charmLogger) Warn(msg string, keyvals ...any)  { l.logger.Warn(msg, keyvals...) }
func (l *charmLogger) Error(msg string, keyvals ...any) { l.logger.Error(msg, keyvals...) }

func (l *charmLogger) With(keyvals ...any) Logger {
	return &charmLogger{logger: l.logger.With(keyvals...)}
}

// WithLogger attaches logger to ctx.
func WithLogger(ctx context.Context, logger Logger) context.Context {
	return context.WithValue(ctx, contextKey{}, logger)
}

// FromContext returns the logger attached to ctx or a logger writing to the
// charm default output.
func FromContext(ctx context.Context) Logger {
	if ctx != nil {
		if logger, ok := ctx.Value(contextKey{}).(Logger); ok && logger != nil {
			return logger
		}
	}
	return &charmLogger{logger: charmlog.Default()}
}
