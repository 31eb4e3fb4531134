package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"
)

type ctxKey struct{}

// Init installs the process-wide logger. Development gets colored tint
// output on stderr; every other environment gets JSON on stdout.
func Init(service, level, appEnv string) *slog.Logger {
	var w io.Writer = os.Stdout
	if appEnv == "development" {
		w = os.Stderr
	}
	logger := New(w, service, level, appEnv)
	slog.SetDefault(logger)
	return logger
}

func New(w io.Writer, service, level, appEnv string) *slog.Logger {
	lvl := parseLevel(level)

	var handler slog.Handler
	if appEnv == "development" {
		handler = tint.NewHandler(w, &tint.Options{
			Level:      lvl,
			TimeFormat: time.Kitchen,
			AddSource:  true,
		})
	} else {
		handler = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl})
	}

	return slog.New(handler).With("service", service)
}

func FromContext(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(ctxKey{}).(*slog.Logger); ok {
		return l
	}
	return slog.Default()
}

func WithLogger(ctx context.Context, l *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
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
