// Package logger implements structured loggers for experiments and
// agents. Loggers write either to the console or to a rotating log
// file.
package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/natefinch/lumberjack"
)

// Log levels
const (
	LevelDebug   = "debug"
	LevelInfo    = "info"
	LevelWarning = "warning"
	LevelError   = "error"
)

// Log types
const (
	TypeConsole = "console"
	TypeFile    = "file"
)

// Logger logs messages along with alternating key-value pairs, e.g.
//
//	log.Info("episode complete", "episode", 3, "return", 21.0)
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
}

// Settings describes a Logger
type Settings struct {
	Level      string `validate:"required,oneof=debug info warning error"`
	Type       string `validate:"required,oneof=console file"`
	FilePath   string `validate:"required_if=Type file"`
	MaxSize    int    `validate:"omitempty,min=1,max=100"` // MB
	MaxBackups int    `validate:"omitempty,min=1,max=10"`
	MaxAge     int    `validate:"omitempty,min=1,max=365"` // days
}

// Validate checks that all fields in Settings are valid
func (s Settings) Validate() error {
	if err := validator.New().Struct(s); err != nil {
		return fmt.Errorf("validate: %w", err)
	}
	return nil
}

// New returns the Logger described by s
func New(s Settings) (Logger, error) {
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("new: %w", err)
	}

	switch s.Type {
	case TypeFile:
		return NewFile(s.Level, s.FilePath, s.MaxSize, s.MaxBackups,
			s.MaxAge), nil
	default:
		return NewConsole(s.Level), nil
	}
}

// logger wraps a slog.Logger
type logger struct {
	*slog.Logger
}

// NewConsole returns a Logger which writes text to stderr
func NewConsole(level string) Logger {
	return newWriter(os.Stderr, level, false)
}

// NewFile returns a Logger which writes JSON to a file which is
// rotated once it reaches maxSize MB. At most maxBackups rotated files
// are kept for at most maxAge days. Zero values take the defaults of
// lumberjack.
func NewFile(level, path string, maxSize, maxBackups, maxAge int) Logger {
	writer := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    maxSize,
		MaxBackups: maxBackups,
		MaxAge:     maxAge,
		Compress:   true,
	}
	return newWriter(writer, level, true)
}

// Nop returns a Logger which discards everything
func Nop() Logger {
	return newWriter(io.Discard, LevelError, false)
}

func newWriter(w io.Writer, level string, json bool) Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(level)}

	var handler slog.Handler
	if json {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return &logger{slog.New(handler)}
}

func (l *logger) Debug(msg string, args ...interface{}) {
	l.Logger.Debug(msg, args...)
}

func (l *logger) Info(msg string, args ...interface{}) {
	l.Logger.Info(msg, args...)
}

func (l *logger) Warn(msg string, args ...interface{}) {
	l.Logger.Warn(msg, args...)
}

func (l *logger) Error(msg string, args ...interface{}) {
	l.Logger.Error(msg, args...)
}

func parseLevel(level string) slog.Level {
	switch level {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarning:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
