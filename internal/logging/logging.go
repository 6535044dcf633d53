// Package logging configures the process-wide slog logger.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

const (
	LevelDebug = "debug"
	LevelInfo  = "info"
	LevelWarn  = "warn"
	LevelError = "error"
)

// Configure installs a process-wide slog default logger writing to stderr.
//
// Supported levels: debug, info, warn, error.
func Configure(level string) error {
	return ConfigureWriter(os.Stderr, level)
}

// ConfigureWriter installs a text handler writing to w.
func ConfigureWriter(w io.Writer, level string) error {
	parsed, err := parseLevel(level)
	if err != nil {
		return err
	}

	h := slog.NewTextHandler(w, &slog.HandlerOptions{Level: parsed})
	slog.SetDefault(slog.New(h))
	return nil
}

// ConfigureFile routes logs to the file at path, appending. It is used while
// the terminal UI owns the screen. The returned closer must be called on exit.
func ConfigureFile(path, level string) (io.Closer, error) {
	if _, err := parseLevel(level); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	if err := ConfigureWriter(f, level); err != nil {
		f.Close()
		return nil, err
	}
	return f, nil
}

func parseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "", LevelInfo:
		return slog.LevelInfo, nil
	case LevelDebug:
		return slog.LevelDebug, nil
	case LevelWarn:
		return slog.LevelWarn, nil
	case LevelError:
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("invalid log level %q", level)
	}
}
