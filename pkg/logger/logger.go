package logger

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/grafana/loki-client-go/loki"
	slogloki "github.com/samber/slog-loki/v3"
)

const serviceName = "photobooth-payment"

var defaultLogger *slog.Logger

type Options struct {
	Env     string
	Level   string
	Format  string
	LokiURL string
}

func Init(env string) {
	Setup(Options{Env: env})
}

// Setup installs the process logger. Production defaults to JSON at info,
// anything else to text at debug. Level and Format override those defaults.
func Setup(opts Options) {
	level := slog.LevelDebug
	if opts.Env == "production" {
		level = slog.LevelInfo
	}
	if opts.Level != "" {
		level = ParseLevel(opts.Level)
	}

	handlerOpts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	switch {
	case strings.EqualFold(opts.Format, "json"):
		handler = slog.NewJSONHandler(os.Stdout, handlerOpts)
	case strings.EqualFold(opts.Format, "text"):
		handler = slog.NewTextHandler(os.Stdout, handlerOpts)
	case opts.Env == "production":
		handler = slog.NewJSONHandler(os.Stdout, handlerOpts)
	default:
		handler = slog.NewTextHandler(os.Stdout, handlerOpts)
	}

	defaultLogger = slog.New(handler)
	slog.SetDefault(defaultLogger)
}

// InitWithLoki ships logs to Loki instead of stdout. The returned stop func
// flushes pending batches.
func InitWithLoki(opts Options) (func(), error) {
	if opts.LokiURL == "" {
		Setup(opts)
		return func() {}, nil
	}

	cfg, err := loki.NewDefaultConfig(opts.LokiURL)
	if err != nil {
		Setup(opts)
		return func() {}, fmt.Errorf("loki config: %w", err)
	}
	client, err := loki.New(cfg)
	if err != nil {
		Setup(opts)
		return func() {}, fmt.Errorf("loki client: %w", err)
	}

	level := slog.LevelInfo
	if opts.Level != "" {
		level = ParseLevel(opts.Level)
	}

	handler := slogloki.Option{
		Level:  level,
		Client: client,
		AttrFromContext: []func(ctx context.Context) []slog.Attr{
			func(ctx context.Context) []slog.Attr {
				if id, ok := ctx.Value(traceIDKey).(string); ok && id != "" {
					return []slog.Attr{slog.String("traceID", id)}
				}
				return nil
			},
		},
	}.NewLokiHandler()

	defaultLogger = slog.New(handler).With("service", serviceName, "env", opts.Env)
	slog.SetDefault(defaultLogger)
	return client.Stop, nil
}

func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
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

func LoggerWrapper() *slog.Logger {
	if defaultLogger == nil {
		// lazy initialize a development logger to avoid nil pointer panics
		Init("development")
	}
	return defaultLogger
}
