// Package logger provides structured logging for the traffic analyzer.
package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Level represents log levels.
type Level = zerolog.Level

// Log levels.
const (
	DebugLevel = zerolog.DebugLevel
	InfoLevel  = zerolog.InfoLevel
	WarnLevel  = zerolog.WarnLevel
	ErrorLevel = zerolog.ErrorLevel
	FatalLevel = zerolog.FatalLevel
)

// Logger wraps zerolog for structured logging.
type Logger struct {
	zl zerolog.Logger
}

// Config holds logger configuration.
type Config struct {
	Level      Level
	Pretty     bool // Use console writer (colored output)
	Output     io.Writer
	TimeFormat string
	Component  string // Component name (e.g., "ingest", "correlator", "validator")
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Level:      InfoLevel,
		Pretty:     true,
		Output:     os.Stderr,
		TimeFormat: time.RFC3339,
	}
}

// New creates a new logger with the given configuration.
func New(cfg Config) *Logger {
	if cfg.Output == nil {
		cfg.Output = os.Stderr
	}
	if cfg.TimeFormat == "" {
		cfg.TimeFormat = time.RFC3339
	}

	zerolog.TimeFieldFormat = cfg.TimeFormat

	var output io.Writer = cfg.Output

	if cfg.Pretty {
		output = zerolog.ConsoleWriter{
			Out:        cfg.Output,
			TimeFormat: "15:04:05",
			NoColor:    false,
		}
	}

	zl := zerolog.New(output).
		With().
		Timestamp().
		Logger().
		Level(cfg.Level)

	if cfg.Component != "" {
		zl = zl.With().Str("component", cfg.Component).Logger()
	}

	return &Logger{zl: zl}
}

// NewDefault creates a logger with default configuration.
func NewDefault() *Logger {
	return New(DefaultConfig())
}

// WithComponent returns a new logger with the component field set.
func (l *Logger) WithComponent(component string) *Logger {
	return &Logger{
		zl: l.zl.With().Str("component", component).Logger(),
	}
}

// WithService returns a new logger with the service id field set.
func (l *Logger) WithService(service string) *Logger {
	return &Logger{
		zl: l.zl.With().Str("service", service).Logger(),
	}
}

// WithEndpoint returns a new logger with method and path fields set.
func (l *Logger) WithEndpoint(method, path string) *Logger {
	return &Logger{
		zl: l.zl.With().Str("method", method).Str("path", path).Logger(),
	}
}

// Debugf logs a formatted debug message.
func (l *Logger) Debugf(format string, args ...interface{}) {
	l.zl.Debug().Msgf(format, args...)
}

// Infof logs a formatted info message.
func (l *Logger) Infof(format string, args ...interface{}) {
	l.zl.Info().Msgf(format, args...)
}

// Warnf logs a formatted warning message.
func (l *Logger) Warnf(format string, args ...interface{}) {
	l.zl.Warn().Msgf(format, args...)
}

// Event returns a zerolog Event for complex logging.
func (l *Logger) Event(level Level) *zerolog.Event {
	switch level {
	case DebugLevel:
		return l.zl.Debug()
	case InfoLevel:
		return l.zl.Info()
	case WarnLevel:
		return l.zl.Warn()
	case ErrorLevel:
		return l.zl.Error()
	case FatalLevel:
		return l.zl.Fatal()
	default:
		return l.zl.Info()
	}
}

// EndpointEvent logs an endpoint-level event with standard fields.
func (l *Logger) EndpointEvent(level Level, method, path string, examples int) *zerolog.Event {
	return l.Event(level).
		Str("method", method).
		Str("path", path).
		Int("examples", examples)
}

// ProbeEvent logs a validation probe result.
func (l *Logger) ProbeEvent(method, url string, statusCode int, duration time.Duration) {
	l.zl.Info().
		Str("method", method).
		Str("url", url).
		Int("status_code", statusCode).
		Dur("duration", duration).
		Msg("Probe completed")
}

// SynthesisEvent logs a catalog synthesis outcome.
func (l *Logger) SynthesisEvent(service, version string, endpoints int, changed bool) {
	l.zl.Info().
		Str("service", service).
		Str("version", version).
		Int("endpoints", endpoints).
		Bool("changed", changed).
		Msg("Catalog synthesized")
}

// ErrorEvent logs an error event with context.
func (l *Logger) ErrorEvent(err error, subject string, operation string) {
	l.zl.Error().
		Err(err).
		Str("subject", subject).
		Str("operation", operation).
		Msg("Operation failed")
}

// SetLevel changes the log level.
func (l *Logger) SetLevel(level Level) {
	l.zl = l.zl.Level(level)
}
