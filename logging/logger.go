// Package logging configures structured logging for finddrugs: human-readable text
// on the console and JSON lines in weekly rotating files.
package logging

import (
	"context"
	"log/slog"
	"os"
	"strings"
)

// Options configures InitLogger
type Options struct {
	Dir            string // empty disables file logging
	RetentionWeeks int
	MaxFileSize    int64
	ConsoleLevel   slog.Level
	FileLevel      slog.Level
}

// LoggingService owns the process logger and its file writer
type LoggingService struct {
	Logger *slog.Logger
	writer *RotatingWriter
}

// DefaultLoggingService is used by the package-level helpers
var DefaultLoggingService *LoggingService

// ParseLevel maps a LOG_LEVEL value to a slog level, defaulting to info
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLoggingService builds a console logger, plus a rotating JSON file logger when
// opts.Dir is set. If the log directory cannot be used it falls back to the console.
func NewLoggingService(opts Options) *LoggingService {
	console := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: opts.ConsoleLevel})

	if opts.Dir == "" {
		return &LoggingService{Logger: slog.New(console)}
	}

	writer, err := NewRotatingWriter(opts.Dir, opts.RetentionWeeks, opts.MaxFileSize)
	if err != nil {
		logger := slog.New(console)
		logger.Error("Failed to initialize log files, logging to console only", "error", err)
		return &LoggingService{Logger: logger}
	}

	file := slog.NewJSONHandler(writer, &slog.HandlerOptions{Level: opts.FileLevel})

	return &LoggingService{
		Logger: slog.New(&multiHandler{handlers: []slog.Handler{console, file}}),
		writer: writer,
	}
}

// Close flushes and closes the log file, if any
func (s *LoggingService) Close() error {
	if s == nil || s.writer == nil {
		return nil
	}
	return s.writer.Close()
}

// InitLogger installs the process-wide logger and makes it the slog default.
// A previously installed logger is closed.
func InitLogger(opts Options) {
	if err := DefaultLoggingService.Close(); err != nil {
		fallback.Warn("Failed to close previous log file", "error", err)
	}
	DefaultLoggingService = NewLoggingService(opts)
	slog.SetDefault(DefaultLoggingService.Logger)
}

// Close closes the process-wide logger
func Close() error {
	return DefaultLoggingService.Close()
}

// Logger returns the process logger, or a stderr fallback before InitLogger
func Logger() *slog.Logger {
	if DefaultLoggingService == nil || DefaultLoggingService.Logger == nil {
		return fallback
	}
	return DefaultLoggingService.Logger
}

var fallback = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

// Package-level functions for direct access

func Info(msg string, args ...any) {
	Logger().Info(msg, args...)
}

func Warn(msg string, args ...any) {
	Logger().Warn(msg, args...)
}

func Error(msg string, args ...any) {
	Logger().Error(msg, args...)
}

func Debug(msg string, args ...any) {
	Logger().Debug(msg, args...)
}

// multiHandler fans records out to several handlers
type multiHandler struct {
	handlers []slog.Handler
}

func (m *multiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range m.handlers {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (m *multiHandler) Handle(ctx context.Context, r slog.Record) error {
	for _, h := range m.handlers {
		if h.Enabled(ctx, r.Level) {
			if err := h.Handle(ctx, r.Clone()); err != nil {
				return err
			}
		}
	}
	return nil
}

func (m *multiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	handlers := make([]slog.Handler, len(m.handlers))
	for i, h := range m.handlers {
		handlers[i] = h.WithAttrs(attrs)
	}
	return &multiHandler{handlers: handlers}
}

func (m *multiHandler) WithGroup(name string) slog.Handler {
	handlers := make([]slog.Handler, len(m.handlers))
	for i, h := range m.handlers {
		handlers[i] = h.WithGroup(name)
	}
	return &multiHandler{handlers: handlers}
}
