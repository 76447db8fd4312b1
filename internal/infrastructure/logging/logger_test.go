package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/nerrad567/focuserd/internal/infrastructure/config"
)

func TestNew_Formats(t *testing.T) {
	for _, format := range []string{"json", "text"} {
		logger := New(config.LoggingConfig{Level: "debug", Format: format, Output: "stderr"}, "1.0.0")
		if logger == nil {
			t.Fatalf("New(format=%s) returned nil", format)
		}
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"unknown", slog.LevelInfo},
		{"", slog.LevelInfo},
		{"DEBUG", slog.LevelDebug},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := parseLevel(tt.input); got != tt.expected {
				t.Errorf("parseLevel(%q) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestNewWithWriter_DefaultFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, config.LoggingConfig{Level: "info", Format: "json"}, "test-version")

	logger.Info("channel moved", "channel", "tube")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse JSON output: %v", err)
	}
	if entry["service"] != serviceName {
		t.Errorf("service = %v, want %s", entry["service"], serviceName)
	}
	if entry["version"] != "test-version" {
		t.Errorf("version = %v, want test-version", entry["version"])
	}
	if entry["msg"] != "channel moved" {
		t.Errorf("msg = %v, want 'channel moved'", entry["msg"])
	}
	if entry["channel"] != "tube" {
		t.Errorf("channel = %v, want tube", entry["channel"])
	}
}

func TestNewWithWriter_LevelFilter(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, config.LoggingConfig{Level: "warn", Format: "text"}, "test")

	logger.Info("suppressed")
	logger.Warn("kept")

	out := buf.String()
	if strings.Contains(out, "suppressed") {
		t.Error("info entry written at warn level")
	}
	if !strings.Contains(out, "kept") {
		t.Error("warn entry missing")
	}
}

func TestLogger_With(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, config.LoggingConfig{Level: "info"}, "test")
	child := logger.With("component", "thermal")

	if child == logger {
		t.Error("expected child logger to be different from parent")
	}

	child.Info("fan on")
	if !strings.Contains(buf.String(), `"component":"thermal"`) {
		t.Errorf("child output missing component attribute: %s", buf.String())
	}
}

func TestDefaultAndDiscard(t *testing.T) {
	if Default() == nil {
		t.Fatal("expected non-nil default logger")
	}
	// Must not panic.
	Discard().Error("dropped", "key", "value")
}
