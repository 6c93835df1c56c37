package telemetry

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
)

type SlogAdapter struct {
	logger *slog.Logger
}

// NewSlogAdapter emits JSON log lines to stdout at the given level
// ("DEBUG", "INFO", "WARN", "ERROR"). Unknown levels fall back to INFO.
func NewSlogAdapter(level string) *SlogAdapter {
	return &SlogAdapter{
		logger: slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: parseLevel(level),
		})),
	}
}

// NewSlogAdapterTo is NewSlogAdapter with an explicit sink, for tests.
func NewSlogAdapterTo(w io.Writer, level string) *SlogAdapter {
	return &SlogAdapter{
		logger: slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
			Level: parseLevel(level),
		})),
	}
}

func parseLevel(level string) slog.Level {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func (l *SlogAdapter) Info(ctx context.Context, msg string, fields map[string]any) {
	l.logger.InfoContext(ctx, msg, flatten(fields)...)
}

func (l *SlogAdapter) Warn(ctx context.Context, msg string, fields map[string]any) {
	l.logger.WarnContext(ctx, msg, flatten(fields)...)
}

func (l *SlogAdapter) Error(ctx context.Context, msg string, fields map[string]any) {
	l.logger.ErrorContext(ctx, msg, flatten(fields)...)
}

func flatten(fields map[string]any) []any {
	args := make([]any, 0, len(fields)*2)
	for k, v := range fields {
		args = append(args, k, v)
	}
	return args
}

// NopLogger discards everything. Default for tests.
type NopLogger struct{}

func NewNopLogger() *NopLogger { return &NopLogger{} }

func (NopLogger) Info(ctx context.Context, msg string, fields map[string]any)  {}
func (NopLogger) Warn(ctx context.Context, msg string, fields map[string]any)  {}
func (NopLogger) Error(ctx context.Context, msg string, fields map[string]any) {}

type NoopMetrics struct{}

func NewNoopMetrics() *NoopMetrics { return &NoopMetrics{} }

func (NoopMetrics) IncCounter(name string, value float64, labels ...Label)       {}
func (NoopMetrics) ObserveHistogram(name string, value float64, labels ...Label) {}
func (NoopMetrics) SetGauge(name string, value float64, labels ...Label)         {}
