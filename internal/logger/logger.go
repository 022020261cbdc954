// Package logger builds the diagnostic logger for the runtime.
//
// Signal dispatch failures and capture diagnostics are written here,
// never to the script's normal error channel. Output goes to stderr by
// default, or to a size-rotated file when a path is configured.
package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Config holds logging settings.
type Config struct {
	// Level is the minimum level: debug, info, warn or error.
	Level string `toml:"level"`
	// Path is the log file path; empty logs to stderr.
	Path string `toml:"path"`
	// MaxSizeMB is the file size in megabytes before rotation.
	MaxSizeMB int `toml:"max_size_mb"`
	// MaxBackups is how many rotated files to keep.
	MaxBackups int `toml:"max_backups"`
}

// Default returns the default logging configuration.
func Default() Config {
	return Config{Level: "info", MaxSizeMB: 5, MaxBackups: 3}
}

// ParseLevel converts a level string to slog.Level, case-insensitively.
// Unrecognized strings map to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// nopCloser wraps writers that must not be closed (stderr).
type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

// Build creates a logger from cfg. The returned closer releases the
// underlying file when one is used; the LevelVar allows adjusting the
// minimum level at runtime (config hot reload).
func Build(cfg Config) (*slog.Logger, io.Closer, *slog.LevelVar) {
	var w io.WriteCloser = nopCloser{os.Stderr}
	if cfg.Path != "" {
		w = &lumberjack.Logger{
			Filename:   cfg.Path,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
		}
	}
	level := new(slog.LevelVar)
	level.Set(ParseLevel(cfg.Level))
	handler := slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
	return slog.New(handler), w, level
}
