package logging

import (
	"io"
	"log"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Options controls optional log file rotation and verbosity. The zero value
// logs INFO and above to stdout only.
type Options struct {
	Level      string
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// ParseLevel maps a textual level onto slog. Unknown values fall back to INFO.
func ParseLevel(raw string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
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

// Setup configures the standard library logger to emit structured JSON and returns
// the underlying slog.Logger for richer logging within the service. All log lines
// include the service name and environment when provided.
func Setup(service, env string) *slog.Logger {
	return SetupWithOptions(service, env, Options{})
}

// SetupWithOptions is Setup with level and file rotation control. When a file
// is configured lines go to both stdout and the rotated file.
func SetupWithOptions(service, env string, opts Options) *slog.Logger {
	var out io.Writer = os.Stdout
	if file := strings.TrimSpace(opts.File); file != "" {
		out = io.MultiWriter(os.Stdout, &lumberjack.Logger{
			Filename:   file,
			MaxSize:    positiveOr(opts.MaxSizeMB, 100),
			MaxBackups: positiveOr(opts.MaxBackups, 3),
			MaxAge:     positiveOr(opts.MaxAgeDays, 28),
			Compress:   true,
		})
	}
	return newLogger(out, service, env, ParseLevel(opts.Level), true)
}

// New builds a logger that writes to out without touching the process-wide
// defaults. Tests use it to capture output.
func New(out io.Writer, service, env string) *slog.Logger {
	return newLogger(out, service, env, slog.LevelDebug, false)
}

func newLogger(out io.Writer, service, env string, level slog.Level, global bool) *slog.Logger {
	handler := slog.NewJSONHandler(out, &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, attr slog.Attr) slog.Attr {
			if attr.Key == slog.TimeKey {
				return slog.Attr{Key: "timestamp", Value: attr.Value}
			}
			if attr.Key == slog.LevelKey {
				return slog.String("severity", strings.ToUpper(attr.Value.String()))
			}
			if attr.Key == slog.MessageKey {
				return slog.Attr{Key: "message", Value: attr.Value}
			}
			return attr
		},
	})

	attrs := []slog.Attr{
		slog.String("service", strings.TrimSpace(service)),
	}
	if env = strings.TrimSpace(env); env != "" {
		attrs = append(attrs, slog.String("env", env))
	}

	withArgs := make([]any, 0, len(attrs))
	for _, attr := range attrs {
		withArgs = append(withArgs, attr)
	}
	base := slog.New(handler).With(withArgs...)
	if !global {
		return base
	}
	slog.SetDefault(base)

	// Bridge the standard library logger so packages using log still emit JSON.
	stdBridge := slog.NewLogLogger(handler.WithAttrs(attrs), slog.LevelInfo)
	stdBridge.SetFlags(0)
	log.SetOutput(stdBridge.Writer())
	log.SetFlags(0)
	log.SetPrefix("")

	return base
}

func positiveOr(v, fallback int) int {
	if v > 0 {
		return v
	}
	return fallback
}
