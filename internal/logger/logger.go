package logger

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/harun/recall/internal/config"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Logger wraps zerolog.Logger with a rotating file sink and redaction
type Logger struct {
	logger   zerolog.Logger
	file     *RotatingWriter
	redactor *Redactor
}

// Config holds logger configuration
type Config struct {
	Level     string // debug, info, warn, error
	File      string // log file path
	Console   bool   // enable stderr output
	Pretty    bool   // human readable console output
	Redaction bool   // enable sensitive data redaction
	MaxSize   int    // max size in MB before rotation, 0 disables rotation
	MaxAge    int    // days to keep rotated files
	Compress  bool   // gzip rotated files
}

// FromConfig maps the logging section of the recall config. Console output
// goes to stderr so command output on stdout stays machine readable.
func FromConfig(c config.LoggingConfig, console bool) Config {
	return Config{
		Level:     c.Level,
		File:      c.File,
		Console:   console,
		Pretty:    c.Pretty,
		Redaction: c.Redaction,
		MaxSize:   c.MaxSize,
		MaxAge:    c.MaxAge,
		Compress:  c.Compress,
	}
}

// New creates a new logger and installs it as the zerolog global
func New(cfg Config) (*Logger, error) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}

	var writers []io.Writer

	if cfg.Console {
		var consoleWriter io.Writer = os.Stderr
		if cfg.Pretty {
			consoleWriter = zerolog.ConsoleWriter{
				Out:        os.Stderr,
				TimeFormat: time.RFC3339,
			}
		}
		writers = append(writers, consoleWriter)
	}

	var file *RotatingWriter
	if cfg.File != "" {
		file, err = NewRotatingWriter(cfg.File, int64(cfg.MaxSize)*megabyte, cfg.MaxAge, cfg.Compress)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		writers = append(writers, file)
	}

	var writer io.Writer
	switch len(writers) {
	case 0:
		writer = io.Discard
	case 1:
		writer = writers[0]
	default:
		writer = io.MultiWriter(writers...)
	}

	var redactor *Redactor
	if cfg.Redaction {
		redactor = NewRedactor()
		writer = redactor.Wrap(writer)
	}

	// Child loggers copy the level, so filtering happens at the global level
	// where SetLevel can still reach it.
	zerolog.SetGlobalLevel(level)
	logger := zerolog.New(writer).
		Level(zerolog.TraceLevel).
		With().
		Timestamp().
		Logger()

	log.Logger = logger

	return &Logger{
		logger:   logger,
		file:     file,
		redactor: redactor,
	}, nil
}

// Close flushes and closes the log file
func (l *Logger) Close() error {
	if l.file != nil {
		return l.file.Close()
	}
	return nil
}

// SetLevel changes the level of every logger derived from this one
func (l *Logger) SetLevel(level string) error {
	parsed, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		return fmt.Errorf("invalid log level %q", level)
	}
	zerolog.SetGlobalLevel(parsed)
	return nil
}

// Level returns the effective level
func (l *Logger) Level() zerolog.Level {
	return zerolog.GlobalLevel()
}

// Debug logs a debug message
func (l *Logger) Debug() *zerolog.Event {
	return l.logger.Debug()
}

// Info logs an info message
func (l *Logger) Info() *zerolog.Event {
	return l.logger.Info()
}

// Warn logs a warning message
func (l *Logger) Warn() *zerolog.Event {
	return l.logger.Warn()
}

// Error logs an error message
func (l *Logger) Error() *zerolog.Event {
	return l.logger.Error()
}

// With creates a child logger with additional context
func (l *Logger) With() zerolog.Context {
	return l.logger.With()
}

// GetZerolog returns the underlying zerolog.Logger
func (l *Logger) GetZerolog() zerolog.Logger {
	return l.logger
}

// DefaultConfig returns default logger configuration
func DefaultConfig() Config {
	return Config{
		Level:     "info",
		Console:   true,
		Pretty:    true,
		Redaction: true,
		MaxSize:   100,
		MaxAge:    7,
		Compress:  true,
	}
}
