package backtest

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/anshulg954/TabAdjust/pkg/metrics"
	"github.com/anshulg954/TabAdjust/pkg/model"
	"github.com/anshulg954/TabAdjust/pkg/telemetry"
	"github.com/anshulg954/TabAdjust/pkg/timeseries"
)

// DateResult is the typed per-date outcome: either an evaluation or an error
// with the date it belongs to. Exactly one of the two fields is set.
type DateResult struct {
	Date       time.Time
	Evaluation *DateEvaluation
	Err        error
}

// Failed reports whether the date's evaluation did not complete.
func (r *DateResult) Failed() bool { return r.Err != nil }

// RunResult is the outcome of a full backtest run. Aggregate is nil when
// every date failed; Dates always has one entry per requested date.
type RunResult struct {
	RunID     string
	ModelName string
	Dates     []DateResult
	Aggregate *metrics.AggregateMetrics
	Records   []ObservationRecord
	Started   time.Time
	Elapsed   time.Duration
}

// Succeeded returns the count of dates that evaluated cleanly.
func (r *RunResult) Succeeded() int {
	n := 0
	for i := range r.Dates {
		if !r.Dates[i].Failed() {
			n++
		}
	}
	return n
}

// OrchestratorConfig tunes the run loop.
type OrchestratorConfig struct {
	// Parallelism bounds concurrent date evaluations; <= 1 runs the dates
	// sequentially with a single adapter instance reused across dates.
	Parallelism int
	// DateTimeout bounds one date's evaluation; zero means no limit.
	DateTimeout time.Duration
}

// Orchestrator drives the full date range, isolating per-date failures so a
// single bad date never aborts the run.
type Orchestrator struct {
	evaluator *Evaluator
	factory   model.Factory
	cfg       OrchestratorConfig
	logger    telemetry.Logger
	meter     telemetry.Metrics
}

func NewOrchestrator(evaluator *Evaluator, factory model.Factory, cfg OrchestratorConfig, logger telemetry.Logger, meter telemetry.Metrics) *Orchestrator {
	if logger == nil {
		logger = telemetry.NewNopLogger()
	}
	if meter == nil {
		meter = telemetry.NewNoopMetrics()
	}
	return &Orchestrator{
		evaluator: evaluator,
		factory:   factory,
		cfg:       cfg,
		logger:    logger,
		meter:     meter,
	}
}

// DateRange expands [start, end] into daily UTC reference days, inclusive.
func DateRange(start, end time.Time) []time.Time {
	start = start.UTC().Truncate(24 * time.Hour)
	end = end.UTC().Truncate(24 * time.Hour)
	var dates []time.Time
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		dates = append(dates, d)
	}
	return dates
}

// Run evaluates every date against the shared read-only panel. The returned
// error covers misuse only (no dates); per-date faults land in DateResults.
func (o *Orchestrator) Run(ctx context.Context, panel timeseries.Panel, dates []time.Time) (*RunResult, error) {
	if len(dates) == 0 {
		return nil, fmt.Errorf("backtest: no dates to evaluate")
	}

	result := &RunResult{
		RunID:   uuid.NewString(),
		Started: time.Now(),
		Dates:   make([]DateResult, len(dates)),
	}

	o.logger.Info(ctx, "backtest run starting", map[string]any{
		"run_id":      result.RunID,
		"dates":       len(dates),
		"parallelism": o.cfg.Parallelism,
	})

	if o.cfg.Parallelism > 1 {
		o.runParallel(ctx, panel, dates, result)
	} else {
		o.runSequential(ctx, panel, dates, result)
	}

	var tables [][]metrics.MergedGroup
	for i := range result.Dates {
		dr := &result.Dates[i]
		if dr.Failed() {
			continue
		}
		tables = append(tables, dr.Evaluation.Grouped)
		result.Records = append(result.Records, dr.Evaluation.Records...)
	}

	agg, err := metrics.Aggregate(tables)
	if err != nil {
		// Every date failed: surface an explicit empty aggregate, not a crash.
		o.logger.Error(ctx, "no successful dates to aggregate", map[string]any{
			"run_id": result.RunID,
			"error":  err.Error(),
		})
	} else {
		result.Aggregate = agg
	}

	result.Elapsed = time.Since(result.Started)
	o.logger.Info(ctx, "backtest run finished", map[string]any{
		"run_id":    result.RunID,
		"succeeded": result.Succeeded(),
		"failed":    len(result.Dates) - result.Succeeded(),
		"elapsed":   result.Elapsed.String(),
	})
	return result, nil
}

// runSequential reuses one adapter across dates; its configuration is shared
// and refitting per date is part of the contract.
func (o *Orchestrator) runSequential(ctx context.Context, panel timeseries.Panel, dates []time.Time, result *RunResult) {
	adapter := o.factory()
	result.ModelName = adapter.Name()
	for i, date := range dates {
		result.Dates[i] = o.evaluateOne(ctx, panel, date, adapter)
	}
}

// runParallel gives each date a private adapter; adapters own mutable state
// and must not be shared across concurrently executing dates.
func (o *Orchestrator) runParallel(ctx context.Context, panel timeseries.Panel, dates []time.Time, result *RunResult) {
	result.ModelName = o.factory().Name()
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.cfg.Parallelism)
	for i, date := range dates {
		i, date := i, date
		g.Go(func() error {
			// Failures are captured per date; never returned, so one date's
			// fault cannot cancel its siblings.
			result.Dates[i] = o.evaluateOne(gctx, panel, date, o.factory())
			return nil
		})
	}
	_ = g.Wait()
}

func (o *Orchestrator) evaluateOne(ctx context.Context, panel timeseries.Panel, date time.Time, adapter model.Adapter) DateResult {
	if o.cfg.DateTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.cfg.DateTimeout)
		defer cancel()
	}

	started := time.Now()
	eval, err := o.evaluator.EvaluateDate(ctx, date, panel, adapter)
	o.meter.ObserveHistogram("backtest_date_seconds", time.Since(started).Seconds())

	if err != nil {
		o.meter.IncCounter("backtest_dates_total", 1, telemetry.Label{Key: "status", Value: "failed"})
		o.logger.Error(ctx, "date evaluation failed", map[string]any{
			"date":  date.Format("2006-01-02"),
			"error": err.Error(),
		})
		return DateResult{Date: date, Err: err}
	}
	o.meter.IncCounter("backtest_dates_total", 1, telemetry.Label{Key: "status", Value: "ok"})
	return DateResult{Date: date, Evaluation: eval}
}
