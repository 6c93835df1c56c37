package backtest

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/anshulg954/TabAdjust/pkg/telemetry"
	"github.com/anshulg954/TabAdjust/pkg/timeseries"
)

// ErrDegenerateSplit marks a reference day with no rows in the train or test
// window. Per-date recoverable: the orchestrator records it and moves on.
var ErrDegenerateSplit = errors.New("backtest: degenerate split")

// HoldoutSplit is the leakage-safe train/test material for one reference day.
// Train targets are populated; Test is the same row set as TestGroundTruth
// with every target masked to unknown.
type HoldoutSplit struct {
	Train           timeseries.Panel
	Test            timeseries.Panel
	TestGroundTruth timeseries.Panel
}

// Splitter builds holdout splits: a fixed lookback window ending one second
// before the reference day, and exactly one calendar day of test data.
type Splitter struct {
	trainWindow time.Duration
	logger      telemetry.Logger
}

// NewSplitter uses a lookback of trainWindowDays; values < 1 mean 7 days.
func NewSplitter(trainWindowDays int, logger telemetry.Logger) *Splitter {
	if trainWindowDays < 1 {
		trainWindowDays = 7
	}
	if logger == nil {
		logger = telemetry.NewNopLogger()
	}
	return &Splitter{
		trainWindow: time.Duration(trainWindowDays) * 24 * time.Hour,
		logger:      logger,
	}
}

// Split slices the panel around referenceDay. Postconditions are asserted,
// not assumed: the windows are temporally disjoint and the test target is
// entirely unknown; a violation is returned as an error rather than allowed
// to produce misleading metrics downstream.
func (s *Splitter) Split(ctx context.Context, referenceDay time.Time, panel timeseries.Panel) (*HoldoutSplit, error) {
	trainStart := referenceDay.Add(-s.trainWindow)
	trainEnd := referenceDay.Add(-time.Second)
	testStart := referenceDay
	testEnd := referenceDay.Add(24*time.Hour - time.Second)

	train := panel.Window(trainStart, trainEnd)
	truth := panel.Window(testStart, testEnd)

	if len(train) == 0 {
		return nil, fmt.Errorf("%w: no rows in train window [%s, %s]",
			ErrDegenerateSplit, trainStart.Format(time.RFC3339), trainEnd.Format(time.RFC3339))
	}
	if len(truth) == 0 {
		return nil, fmt.Errorf("%w: no rows in test window [%s, %s]",
			ErrDegenerateSplit, testStart.Format(time.RFC3339), testEnd.Format(time.RFC3339))
	}
	usable := 0
	for i := range truth {
		if !math.IsNaN(truth[i].Actual) {
			usable++
		}
	}
	if usable == 0 {
		return nil, fmt.Errorf("%w: test window [%s, %s] carries no usable actuals",
			ErrDegenerateSplit, testStart.Format(time.RFC3339), testEnd.Format(time.RFC3339))
	}

	test := truth.MaskTargets()

	trainMax, _ := train.MaxTime()
	testMin, _ := test.MinTime()
	if !trainMax.Before(testMin) {
		return nil, fmt.Errorf("split windows overlap: train max %s >= test min %s",
			trainMax.Format(time.RFC3339), testMin.Format(time.RFC3339))
	}
	if !test.AllTargetsUnknown() {
		return nil, fmt.Errorf("test target not fully masked after split")
	}
	if len(test) != len(truth) {
		return nil, fmt.Errorf("test/ground-truth row mismatch: %d vs %d", len(test), len(truth))
	}

	s.logger.Info(ctx, "holdout split built", map[string]any{
		"reference_day": referenceDay.Format("2006-01-02"),
		"train_rows":    len(train),
		"test_rows":     len(test),
	})
	return &HoldoutSplit{Train: train, Test: test, TestGroundTruth: truth}, nil
}
