// Package observability sets up what pagewatch emits besides notifications:
// structured logs (stderr plus a daily log file) and OpenTelemetry metrics.
package observability

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ParseLevel maps a config log level (DEBUG, INFO, WARN, ERROR; any case) to
// a slog level. Unknown values mean INFO.
func ParseLevel(s string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// LogFileName returns the daily log file name: "<d>-<m>-<yyyy>.log", with a
// "DEBUG-" prefix when running at debug level.
func LogFileName(level slog.Level, now time.Time) string {
	name := fmt.Sprintf("%d-%d-%d.log", now.Day(), int(now.Month()), now.Year())
	if level <= slog.LevelDebug {
		name = "DEBUG-" + name
	}
	return name
}

// LoggerConfig configures NewLogger.
type LoggerConfig struct {
	Level string
	// Dir receives the daily log file. Empty = stderr only.
	Dir string
	// Stderr defaults to os.Stderr.
	Stderr io.Writer
	Now    func() time.Time
}

// NewLogger builds a JSON slog logger writing to stderr and, when Dir is set,
// appending to the day's log file. The returned closer closes that file.
func NewLogger(cfg LoggerConfig) (*slog.Logger, io.Closer, error) {
	if cfg.Stderr == nil {
		cfg.Stderr = os.Stderr
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	level := ParseLevel(cfg.Level)

	var w io.Writer = cfg.Stderr
	var closer io.Closer = nopCloser{}
	if cfg.Dir != "" {
		if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
			return nil, nil, fmt.Errorf("observability: log dir: %w", err)
		}
		path := filepath.Join(cfg.Dir, LogFileName(level, cfg.Now()))
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("observability: open log file: %w", err)
		}
		w = io.MultiWriter(cfg.Stderr, f)
		closer = f
	}

	logger := slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
	return logger, closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
