// Package logger builds the process-wide slog.Logger from config. Surfaces
// that own the terminal (the bubbletea wizard and dashboard) must not write
// log lines to it, so they use NewTUISafe, which forces the log file target.
package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"juno-ai/internal/infra/config"
)

// New creates a configured *slog.Logger. The returned closer flushes and
// closes the file target when one is in use; defer it.
func New(cfg config.LoggerConfig) (*slog.Logger, func() error, error) {
	return build(cfg, cfg.Output)
}

// NewTUISafe is New with the output forced to the log file, regardless of
// the configured target. A TUI repaints the whole terminal; interleaved log
// lines on stderr corrupt the frame.
func NewTUISafe(cfg config.LoggerConfig) (*slog.Logger, func() error, error) {
	return build(cfg, "file")
}

// FilePath returns the default log file, next to the rest of the agent state.
func FilePath() string { return filepath.Join(config.Dir(), "agent.log") }

func build(cfg config.LoggerConfig, output string) (*slog.Logger, func() error, error) {
	writer, closer, err := openOutput(output)
	if err != nil {
		return nil, nil, fmt.Errorf("open log output: %w", err)
	}

	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}
	var handler slog.Handler
	switch strings.ToLower(cfg.Format) {
	case "json":
		handler = slog.NewJSONHandler(writer, opts)
	default:
		handler = slog.NewTextHandler(writer, opts)
	}
	return slog.New(handler), closer, nil
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
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

func openOutput(output string) (io.Writer, func() error, error) {
	noop := func() error { return nil }

	switch strings.ToLower(output) {
	case "stdout":
		return os.Stdout, noop, nil
	case "stderr", "":
		return os.Stderr, noop, nil
	case "file":
		return openFile(FilePath())
	default:
		return openFile(output)
	}
}

func openFile(path string) (io.Writer, func() error, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		return nil, nil, err
	}
	return f, f.Close, nil
}
