package observability

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"DEBUG":   slog.LevelDebug,
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warning": slog.LevelWarn,
		"ERROR":   slog.LevelError,
		"":        slog.LevelInfo,
		"chatty":  slog.LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestLogFileName(t *testing.T) {
	day := time.Date(2026, time.March, 7, 12, 0, 0, 0, time.UTC)
	if got := LogFileName(slog.LevelInfo, day); got != "7-3-2026.log" {
		t.Errorf("info: got %q", got)
	}
	if got := LogFileName(slog.LevelDebug, day); got != "DEBUG-7-3-2026.log" {
		t.Errorf("debug: got %q", got)
	}
}

func TestNewLogger_WritesFileAndStderr(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "log")
	var stderr bytes.Buffer
	now := func() time.Time { return time.Date(2026, time.October, 17, 9, 0, 0, 0, time.UTC) }

	logger, closer, err := NewLogger(LoggerConfig{Level: "DEBUG", Dir: dir, Stderr: &stderr, Now: now})
	if err != nil {
		t.Fatal(err)
	}
	logger.Debug("watcher: polling", "page", "shop")
	if err := closer.Close(); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "DEBUG-17-10-2026.log"))
	if err != nil {
		t.Fatalf("log file: %v", err)
	}
	if !strings.Contains(string(data), `"page":"shop"`) {
		t.Errorf("log file content: %q", data)
	}
	if !strings.Contains(stderr.String(), "watcher: polling") {
		t.Errorf("stderr content: %q", stderr.String())
	}
}

func TestNewLogger_InfoSuppressesDebug(t *testing.T) {
	var stderr bytes.Buffer
	logger, closer, err := NewLogger(LoggerConfig{Level: "INFO", Stderr: &stderr})
	if err != nil {
		t.Fatal(err)
	}
	defer closer.Close()

	logger.Debug("hidden")
	logger.Info("shown")
	if strings.Contains(stderr.String(), "hidden") || !strings.Contains(stderr.String(), "shown") {
		t.Fatalf("stderr: %q", stderr.String())
	}
}

func TestProvider_Disabled(t *testing.T) {
	p, err := NewProvider(context.Background(), MetricsConfig{})
	if err != nil {
		t.Fatal(err)
	}
	if p.Meter("pagewatch") == nil {
		t.Fatal("nil meter")
	}
	if err := p.Shutdown(context.Background()); err != nil {
		t.Fatal(err)
	}
}

func TestStripScheme(t *testing.T) {
	for in, want := range map[string]string{
		"http://otel:4318":  "otel:4318",
		"https://otel:4318": "otel:4318",
		"otel:4318":         "otel:4318",
	} {
		if got := stripScheme(in); got != want {
			t.Errorf("stripScheme(%q) = %q, want %q", in, got, want)
		}
	}
}
