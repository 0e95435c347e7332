package logger

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"juno-ai/internal/infra/config"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"unknown", slog.LevelInfo},
		{"", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := parseLevel(tt.input); got != tt.want {
			t.Errorf("parseLevel(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestNewWritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "agent.log")
	cfg := config.LoggerConfig{Level: "info", Format: "text", Output: path}

	log, closer, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	log.Info("setup complete", "provider", "openai")
	if err := closer(); err != nil {
		t.Fatalf("closer: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), "setup complete") {
		t.Errorf("log file missing entry, got: %s", data)
	}
	if !strings.Contains(string(data), "provider=openai") {
		t.Errorf("log file missing attr, got: %s", data)
	}
}

func TestNewFiltersBelowLevel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agent.log")
	cfg := config.LoggerConfig{Level: "warn", Format: "text", Output: path}

	log, closer, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	log.Info("quiet")
	log.Warn("loud")
	closer()

	data, _ := os.ReadFile(path)
	if strings.Contains(string(data), "quiet") {
		t.Errorf("info entry should be filtered at warn level")
	}
	if !strings.Contains(string(data), "loud") {
		t.Errorf("warn entry missing, got: %s", data)
	}
}

func TestNewTUISafeIgnoresConfiguredTarget(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	cfg := config.LoggerConfig{Level: "info", Format: "text", Output: "stderr"}

	log, closer, err := NewTUISafe(cfg)
	if err != nil {
		t.Fatalf("NewTUISafe: %v", err)
	}
	log.Info("behind the tui")
	closer()

	data, err := os.ReadFile(FilePath())
	if err != nil {
		t.Fatalf("read %s: %v", FilePath(), err)
	}
	if !strings.Contains(string(data), "behind the tui") {
		t.Errorf("entry not redirected to log file, got: %s", data)
	}
}

func TestOpenOutputStreams(t *testing.T) {
	for _, target := range []string{"stdout", "stderr", ""} {
		w, closer, err := openOutput(target)
		if err != nil {
			t.Fatalf("openOutput(%q): %v", target, err)
		}
		if w == nil {
			t.Errorf("openOutput(%q) returned nil writer", target)
		}
		closer()
	}
}
