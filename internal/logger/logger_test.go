package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestInitQuietWritesFile(t *testing.T) {
	dir := t.TempDir()
	logFile := filepath.Join(dir, "test.log")

	if err := InitQuiet("debug", logFile); err != nil {
		t.Fatalf("InitQuiet failed: %v", err)
	}

	Info("tile loaded")
	Debug("queue state")
	Sync()

	data, err := os.ReadFile(logFile)
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}
	content := string(data)
	if !strings.Contains(content, "tile loaded") {
		t.Error("log file missing info message")
	}
	if !strings.Contains(content, "queue state") {
		t.Error("log file missing debug message")
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]string{
		"debug":   "debug",
		"info":    "info",
		"warn":    "warn",
		"error":   "error",
		"unknown": "info",
	}
	for in, want := range cases {
		if got := parseLevel(in).String(); got != want {
			t.Errorf("parseLevel(%q): got %s, want %s", in, got, want)
		}
	}
}
