package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/hearthome/hearth-core/internal/infrastructure/config"
)

const serviceName = "hearth"

// Logger wraps slog.Logger. Every record carries the service name and
// version as default fields so multi-service log streams stay attributable.
//
// Safe for concurrent use.
type Logger struct {
	*slog.Logger
}

// New builds a Logger from config: level filter, json or text format,
// stdout or stderr destination.
func New(cfg config.LoggingConfig, version string) *Logger {
	handler := newHandler(cfg, resolveOutput(cfg.Output)).WithAttrs([]slog.Attr{
		slog.String("service", serviceName),
		slog.String("version", version),
	})

	return &Logger{Logger: slog.New(handler)}
}

func resolveOutput(output string) io.Writer {
	if strings.ToLower(output) == "stderr" {
		return os.Stderr
	}
	return os.Stdout
}

func newHandler(cfg config.LoggingConfig, output io.Writer) slog.Handler {
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}

	if strings.ToLower(cfg.Format) == "text" {
		return slog.NewTextHandler(output, opts)
	}
	return slog.NewJSONHandler(output, opts)
}

// parseLevel maps a config string to slog.Level.
// Unrecognised values fall back to info.
func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
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

// With returns a child Logger carrying additional default attributes.
//
// Example:
//
//	mqttLogger := logger.With("component", "mqtt")
//	mqttLogger.Info("connected") // Includes component=mqtt
func (l *Logger) With(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...)}
}

// Default returns a JSON/info/stdout logger for use before config loads.
func Default() *Logger {
	return New(config.LoggingConfig{
		Level:  "info",
		Format: "json",
		Output: "stdout",
	}, "dev")
}
