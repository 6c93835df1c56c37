package telemetry

import "context"

type Label struct {
	Key   string
	Value string
}

// Metrics is the minimal metric surface the backtest engine emits to.
type Metrics interface {
	IncCounter(name string, value float64, labels ...Label)
	ObserveHistogram(name string, value float64, labels ...Label)
	SetGauge(name string, value float64, labels ...Label)
}

// Logger is passed explicitly into every component so that concurrent
// per-date evaluation never shares mutable logging state.
type Logger interface {
	Info(ctx context.Context, msg string, fields map[string]any)
	Warn(ctx context.Context, msg string, fields map[string]any)
	Error(ctx context.Context, msg string, fields map[string]any)
}
