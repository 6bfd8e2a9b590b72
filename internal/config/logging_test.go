package config

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestLog(t *testing.T) {
	// Just verify it doesn't panic
	s := &Settings{
		Transport: TransportSSE,
		Host:      "localhost",
		Port:      8080,
	}
	Log(s)
}

func TestLogWithLogger_StdioTransport(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	s := &Settings{
		Transport: TransportStdio,
		Host:      "localhost",
		Port:      8080,
		Project:   ProjectSettings{Root: "/work/app", Extensions: []string{".js", ".ts"}},
	}

	LogWithLogger(s, logger)

	output := buf.String()
	if !strings.Contains(output, "transport") {
		t.Error("Expected 'transport' in log output")
	}
	// stdio transport should not log host/port
	if strings.Contains(output, "Config: host") {
		t.Error("Expected no 'host' in log output for stdio transport")
	}
	if !strings.Contains(output, "/work/app") {
		t.Error("Expected project root in log output")
	}
	if !strings.Contains(output, ".js,.ts") {
		t.Error("Expected extensions in log output")
	}
}

func TestLogWithLogger_SSETransport(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	s := &Settings{
		Transport: TransportSSE,
		Host:      "localhost",
		Port:      8080,
	}

	LogWithLogger(s, logger)

	output := buf.String()
	if !strings.Contains(output, "Config: host") {
		t.Error("Expected 'host' in log output for SSE transport")
	}
	if !strings.Contains(output, "Config: port") {
		t.Error("Expected 'port' in log output for SSE transport")
	}
}

func TestLogWithLogger_Watch(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	s := &Settings{
		Transport: TransportStdio,
		Project:   ProjectSettings{Watch: false, DebounceWindow: 100 * time.Millisecond},
	}
	LogWithLogger(s, logger)
	if strings.Contains(buf.String(), "debounce_window") {
		t.Error("Expected no debounce window when not watching")
	}

	buf.Reset()
	s.Project.Watch = true
	LogWithLogger(s, logger)
	if !strings.Contains(buf.String(), "debounce_window") {
		t.Error("Expected debounce window when watching")
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"INFO":  slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
		"":      slog.LevelInfo,
		"bogus": slog.LevelInfo,
	}
	for name, want := range tests {
		if got := ParseLevel(name); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", name, got, want)
		}
	}
}

func TestSettingsLogValue(t *testing.T) {
	s := Settings{
		Transport: TransportSSE,
		Host:      "localhost",
		Port:      8080,
	}

	val := SettingsLogValue(s)
	if val.Kind() != slog.KindGroup {
		t.Errorf("Expected group kind, got %v", val.Kind())
	}
}
