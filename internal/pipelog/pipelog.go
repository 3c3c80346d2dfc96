// Package pipelog wraps log/slog with pipeline-specific category gating,
// adapted from the teacher relay's pkg/logger.
package pipelog

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
)

// Level is the logging verbosity level.
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// Category gates fine-grained debug tracing for one pipeline component.
type Category string

const (
	CatQueue    Category = "queue"
	CatJitter   Category = "jitter"
	CatRTP      Category = "rtp"
	CatHLS      Category = "hls"
	CatRTMP     Category = "rtmp"
	CatWHIP     Category = "whip"
	CatEncoder  Category = "encoder"
	CatAll      Category = "all"
)

// Format selects the slog handler used for output.
type Format string

const (
	FormatJSON Format = "json"
	FormatText Format = "text"
)

// Config holds logger configuration.
type Config struct {
	Level             Level
	Format            Format
	OutputFile        string
	EnabledCategories map[Category]bool

	mu sync.RWMutex
}

// NewConfig returns a Config with sane defaults: info level, text output.
func NewConfig() *Config {
	return &Config{
		Level:             LevelInfo,
		Format:            FormatText,
		EnabledCategories: make(map[Category]bool),
	}
}

// ParseLevel converts a string into a Level.
func ParseLevel(level string) (Level, error) {
	switch level {
	case "debug", "DEBUG":
		return LevelDebug, nil
	case "info", "INFO":
		return LevelInfo, nil
	case "warn", "WARN", "warning", "WARNING":
		return LevelWarn, nil
	case "error", "ERROR":
		return LevelError, nil
	default:
		return "", fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", level)
	}
}

// ParseFormat converts a string into a Format.
func ParseFormat(format string) (Format, error) {
	switch format {
	case "json", "JSON":
		return FormatJSON, nil
	case "text", "TEXT":
		return FormatText, nil
	default:
		return "", fmt.Errorf("invalid log format: %s (must be json or text)", format)
	}
}

func (l Level) toSlogLevel() slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// EnableCategory turns on tracing for a category. CatAll enables every
// known category.
func (c *Config) EnableCategory(cat Category) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cat == CatAll {
		for _, known := range []Category{CatQueue, CatJitter, CatRTP, CatHLS, CatRTMP, CatWHIP, CatEncoder} {
			c.EnabledCategories[known] = true
		}
		return
	}
	c.EnabledCategories[cat] = true
}

// IsCategoryEnabled reports whether tracing is on for a category.
func (c *Config) IsCategoryEnabled(cat Category) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.EnabledCategories[cat]
}

// Logger wraps slog.Logger with category-gated trace helpers.
type Logger struct {
	*slog.Logger
	config *Config
	file   *os.File
}

// New builds a Logger from a Config, opening OutputFile if set.
func New(cfg *Config) (*Logger, error) {
	var writer io.Writer = os.Stdout
	var file *os.File

	if cfg.OutputFile != "" {
		f, err := os.OpenFile(cfg.OutputFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open log file %s: %w", cfg.OutputFile, err)
		}
		writer = f
		file = f
	}

	opts := &slog.HandlerOptions{Level: cfg.Level.toSlogLevel()}

	var handler slog.Handler
	switch cfg.Format {
	case FormatJSON:
		handler = slog.NewJSONHandler(writer, opts)
	default:
		handler = slog.NewTextHandler(writer, opts)
	}

	return &Logger{Logger: slog.New(handler), config: cfg, file: file}, nil
}

// Close closes the backing log file, if one was opened.
func (l *Logger) Close() error {
	if l.file != nil {
		return l.file.Close()
	}
	return nil
}

// With returns a derived Logger carrying additional structured attributes.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...), config: l.config, file: l.file}
}

// Trace logs at Debug level, gated by whether cat is enabled. Used for
// spec §7's "trace-level, never surfaced to callers" failures (corrupt
// packets, discontinuities, late frames).
func (l *Logger) Trace(cat Category, msg string, args ...any) {
	if l.config.IsCategoryEnabled(cat) {
		args = append([]any{"category", string(cat)}, args...)
		l.Debug(msg, args...)
	}
}
