package model

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/anshulg954/TabAdjust/pkg/features"
	"github.com/anshulg954/TabAdjust/pkg/timeseries"
)

var (
	// ErrNotFitted marks a usage fault: Predict before Fit. It indicates a
	// programming defect and is never retried.
	ErrNotFitted = errors.New("model: predict called before fit")

	// ErrLeakage marks a test frame whose target is not entirely unknown.
	ErrLeakage = errors.New("model: test target is not entirely unknown")
)

// Prediction is one test-window row annotated with the model's predicted
// target and the realized outcome joined in from ground truth.
type Prediction struct {
	SeriesID       string
	Timestamp      time.Time
	PeriodEnd      time.Time
	HorizonMinutes int
	Hour           int
	Predicted      float64 // predicted target (forecast error, MW)
	Forecast       float64 // raw forecasted generation, MW
	Actual         float64 // realized generation, MW
}

// Adapter is the uniform fit/predict contract over heterogeneous predictors.
// The gradient-boosted variant does its work in Fit; the in-context variant
// retains the training table in Fit and does all compute in Predict. Callers
// must not be able to tell the difference.
type Adapter interface {
	Name() string
	Fit(ctx context.Context, train *features.Frame) error
	Predict(ctx context.Context, test *features.Frame, groundTruth timeseries.Panel) ([]Prediction, error)
}

// Factory builds a fresh adapter. Orchestrators running dates concurrently
// construct one adapter per date through a factory, since adapters own
// private mutable state.
type Factory func() Adapter

type rowKey struct {
	series string
	ts     time.Time
}

// checkPredictInputs enforces the leakage guard and builds the ground-truth
// index used to join realized actuals onto predictions by row identity.
func checkPredictInputs(test *features.Frame, truth timeseries.Panel) (map[rowKey]*timeseries.Record, error) {
	if !test.AllTargetsUnknown() {
		return nil, ErrLeakage
	}
	index := make(map[rowKey]*timeseries.Record, len(truth))
	for i := range truth {
		index[rowKey{truth[i].SeriesID, truth[i].Timestamp}] = &truth[i]
	}
	for i := 0; i < test.NumRows(); i++ {
		if _, ok := index[rowKey{test.Series[i], test.Times[i]}]; !ok {
			return nil, fmt.Errorf("ground truth missing row %s@%s",
				test.Series[i], test.Times[i].Format(time.RFC3339))
		}
	}
	return index, nil
}

// joinPredictions assembles one Prediction per test row from raw scores.
func joinPredictions(test *features.Frame, index map[rowKey]*timeseries.Record, scores []float64) []Prediction {
	preds := make([]Prediction, test.NumRows())
	for i := 0; i < test.NumRows(); i++ {
		rec := index[rowKey{test.Series[i], test.Times[i]}]
		preds[i] = Prediction{
			SeriesID:       rec.SeriesID,
			Timestamp:      rec.Timestamp,
			PeriodEnd:      rec.PeriodEnd,
			HorizonMinutes: rec.HorizonMinutes,
			Hour:           rec.Hour,
			Predicted:      scores[i],
			Forecast:       rec.Forecast,
			Actual:         rec.Actual,
		}
	}
	return preds
}
