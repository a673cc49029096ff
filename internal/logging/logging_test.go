package logging

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ai/thinkchat/internal/config"
)

func TestInitCreatesLogFile(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "logs", "thinkchat.log")

	logger, closer, err := Init(config.LogConfig{File: logPath, Format: "json", Level: "info"})
	if err != nil {
		t.Fatalf("Init() error: %v", err)
	}
	defer closer.Close()

	logger.Info("hello", slog.String("component", "test"))
	logger.Debug("hidden")

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("ReadFile() error: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 1 {
		t.Fatalf("Expected 1 line (debug filtered), got %d: %s", len(lines), data)
	}

	var record map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &record); err != nil {
		t.Fatalf("Expected JSON log line, got: %s", lines[0])
	}
	if record["msg"] != "hello" || record["component"] != "test" {
		t.Fatalf("Unexpected record: %v", record)
	}
}

func TestInitTextFormat(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "thinkchat.log")

	logger, closer, err := Init(config.LogConfig{File: logPath, Format: "text", Level: "debug"})
	if err != nil {
		t.Fatalf("Init() error: %v", err)
	}
	defer closer.Close()

	logger.Debug("exchange complete", "fragments", 5)

	data, _ := os.ReadFile(logPath)
	if !strings.Contains(string(data), "msg=\"exchange complete\"") || !strings.Contains(string(data), "fragments=5") {
		t.Fatalf("Expected text record, got: %s", data)
	}
}

func TestInitUnwritableDirectory(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(blocker, nil, 0600); err != nil {
		t.Fatal(err)
	}

	logger, _, err := Init(config.LogConfig{File: filepath.Join(blocker, "sub", "x.log")})
	if err == nil {
		t.Fatal("Expected error when the log directory cannot be created")
	}
	if logger == nil {
		t.Fatal("Expected a usable logger even on error")
	}
	logger.Info("goes nowhere")
}

func TestParseLogLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" WARN ":  slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range tests {
		if got := parseLogLevel(in); got != want {
			t.Errorf("parseLogLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
