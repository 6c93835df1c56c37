package model

import (
	"fmt"

	"github.com/anshulg954/TabAdjust/pkg/features"
	"github.com/anshulg954/TabAdjust/pkg/telemetry"
)

// New instantiates the adapter for a model kind with default configuration.
func New(kind features.ModelKind, logger telemetry.Logger) (Adapter, error) {
	switch kind {
	case features.KindGradientBoosted:
		return NewGradientBoosted(DefaultGBTConfig(), logger), nil
	case features.KindInContext:
		return NewInContext(DefaultInContextConfig(), logger), nil
	default:
		return nil, fmt.Errorf("unknown model kind %q", kind)
	}
}

// NewFactory returns a Factory for the kind, validating it eagerly.
func NewFactory(kind features.ModelKind, logger telemetry.Logger) (Factory, error) {
	if _, err := New(kind, logger); err != nil {
		return nil, err
	}
	return func() Adapter {
		a, _ := New(kind, logger)
		return a
	}, nil
}
