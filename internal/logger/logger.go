package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// LogLevel represents different types of log entries
type LogLevel string

const (
	LogLevelDebug   LogLevel = "DEBUG"
	LogLevelInfo    LogLevel = "INFO"
	LogLevelWarning LogLevel = "WARN"
	LogLevelError   LogLevel = "ERROR"
	LogLevelTrade   LogLevel = "TRADE"
	LogLevelStatus  LogLevel = "STATUS"
)

// Trade and status entries sit between INFO and WARN so that a WARN-level
// logger drops them while an INFO-level one keeps them.
const (
	levelStatus = slog.LevelInfo + 1
	levelTrade  = slog.LevelInfo + 2
)

// Config controls where and how log entries are written
type Config struct {
	Component  string `json:"component" mapstructure:"component"`
	Level      string `json:"level" mapstructure:"level" validate:"omitempty,oneof=debug info warn error"`
	Format     string `json:"format" mapstructure:"format" validate:"omitempty,oneof=json text"`
	File       string `json:"file" mapstructure:"file"`
	MaxSizeMB  int    `json:"max_size_mb" mapstructure:"max_size_mb" validate:"gte=0"`
	MaxBackups int    `json:"max_backups" mapstructure:"max_backups" validate:"gte=0"`
	MaxAgeDays int    `json:"max_age_days" mapstructure:"max_age_days" validate:"gte=0"`
	Compress   bool   `json:"compress" mapstructure:"compress"`
}

// Logger is a leveled structured logger for the decision core
type Logger struct {
	slog   *slog.Logger
	closer io.Closer
}

// New creates a logger from config. An empty File writes to stdout; otherwise
// the file is rotated by lumberjack.
func New(cfg Config) *Logger {
	var (
		w      io.Writer = os.Stdout
		closer io.Closer
	)
	if cfg.File != "" {
		rotator := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   cfg.Compress,
		}
		w = rotator
		closer = rotator
	}
	return newWithWriter(w, cfg, closer)
}

// NewWithWriter creates a logger writing to w; used by tests and the CLI
func NewWithWriter(w io.Writer, cfg Config) *Logger {
	return newWithWriter(w, cfg, nil)
}

func newWithWriter(w io.Writer, cfg Config, closer io.Closer) *Logger {
	opts := &slog.HandlerOptions{
		Level:       parseLevel(cfg.Level),
		ReplaceAttr: replaceLevelNames,
	}

	var handler slog.Handler
	if strings.EqualFold(cfg.Format, "text") {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}

	l := slog.New(handler)
	if cfg.Component != "" {
		l = l.With(slog.String("component", cfg.Component))
	}
	return &Logger{slog: l, closer: closer}
}

// Nop returns a logger that discards everything
func Nop() *Logger {
	return &Logger{slog: slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 100}))}
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
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

func replaceLevelNames(_ []string, a slog.Attr) slog.Attr {
	if a.Key != slog.LevelKey {
		return a
	}
	level, ok := a.Value.Any().(slog.Level)
	if !ok {
		return a
	}
	switch level {
	case levelStatus:
		a.Value = slog.StringValue(string(LogLevelStatus))
	case levelTrade:
		a.Value = slog.StringValue(string(LogLevelTrade))
	}
	return a
}

// With returns a child logger carrying the given attributes
func (l *Logger) With(args ...any) *Logger {
	if l == nil {
		return Nop()
	}
	return &Logger{slog: l.slog.With(args...), closer: l.closer}
}

// Component returns a child logger tagged with a component name
func (l *Logger) Component(name string) *Logger {
	return l.With(slog.String("component", name))
}

func (l *Logger) log(level slog.Level, msg string, args ...any) {
	if l == nil {
		return
	}
	l.slog.Log(context.Background(), level, msg, args...)
}

// Debug logs a debug message
func (l *Logger) Debug(msg string, args ...any) {
	l.log(slog.LevelDebug, msg, args...)
}

// Info logs an info message
func (l *Logger) Info(msg string, args ...any) {
	l.log(slog.LevelInfo, msg, args...)
}

// Warning logs a warning message
func (l *Logger) Warning(msg string, args ...any) {
	l.log(slog.LevelWarn, msg, args...)
}

// Error logs an error message
func (l *Logger) Error(msg string, args ...any) {
	l.log(slog.LevelError, msg, args...)
}

// Trade logs a trading decision
func (l *Logger) Trade(msg string, args ...any) {
	l.log(levelTrade, msg, args...)
}

// Status logs component status information
func (l *Logger) Status(msg string, args ...any) {
	l.log(levelStatus, msg, args...)
}

// LogError logs error with context
func (l *Logger) LogError(context string, err error) {
	l.Error(context, slog.String("error", err.Error()))
}

// Close flushes and closes the rotated log file, if any
func (l *Logger) Close() error {
	if l == nil || l.closer == nil {
		return nil
	}
	return l.closer.Close()
}
