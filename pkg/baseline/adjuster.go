package baseline

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/anshulg954/TabAdjust/pkg/metrics"
	"github.com/anshulg954/TabAdjust/pkg/telemetry"
	"github.com/anshulg954/TabAdjust/pkg/timeseries"
)

// AdjustedRecord is one evaluation-day row after the rule-based correction.
// MeanError and Adjusted are NaN when the row's (hour, horizon) group has no
// historical coverage; such rows are excluded from metrics but kept here so
// the coverage gap is observable.
type AdjustedRecord struct {
	SeriesID       string
	Timestamp      time.Time
	PeriodEnd      time.Time
	HorizonMinutes int
	Hour           int
	Forecast       float64
	Actual         float64
	MeanError      float64
	Adjusted       float64
}

// Covered reports whether the row had a historical mean to apply.
func (r *AdjustedRecord) Covered() bool {
	return !math.IsNaN(r.Adjusted)
}

// Result summarizes the rule-based adjuster against the unadjusted forecast.
// Adjuster* metrics score forecast + mean historical error; Baseline* score
// the raw forecast. Both are computed on the coverage-filtered row set.
type Result struct {
	AdjusterMAE  float64
	AdjusterRMSE float64
	BaselineMAE  float64
	BaselineRMSE float64
	Grouped      []metrics.GroupErrors
	Records      []AdjustedRecord
	Excluded     int
	// MissingActuals counts rows whose realized actual is unknown. They are
	// dropped from the metrics like uncovered rows; a NaN actual would
	// otherwise poison every mean it touches.
	MissingActuals int
}

// Adjuster applies the historical-mean-error correction: the mean forecast
// error of the past window, conditioned on (hour of day, forecast horizon),
// added onto the raw forecast. Non-learned; no state between calls.
type Adjuster struct {
	logger telemetry.Logger
}

func New(logger telemetry.Logger) *Adjuster {
	if logger == nil {
		logger = telemetry.NewNopLogger()
	}
	return &Adjuster{logger: logger}
}

// Adjust corrects currentDay using group-mean errors from history. Both
// panels must carry realized outcomes (raw units, not transformed features).
func (a *Adjuster) Adjust(ctx context.Context, currentDay, history timeseries.Panel) (*Result, error) {
	if len(currentDay) == 0 {
		return nil, fmt.Errorf("baseline: empty evaluation day")
	}
	if len(history) == 0 {
		return nil, fmt.Errorf("baseline: empty history")
	}

	groupMeans := meanErrorByGroup(history)

	res := &Result{Records: make([]AdjustedRecord, 0, len(currentDay))}
	var keys []metrics.GroupKey
	var actual, adjusted, rawForecast []float64

	for i := range currentDay {
		rec := &currentDay[i]
		key := metrics.GroupKey{HorizonMinutes: rec.HorizonMinutes, Hour: rec.Hour}
		out := AdjustedRecord{
			SeriesID:       rec.SeriesID,
			Timestamp:      rec.Timestamp,
			PeriodEnd:      rec.PeriodEnd,
			HorizonMinutes: rec.HorizonMinutes,
			Hour:           rec.Hour,
			Forecast:       rec.Forecast,
			Actual:         rec.Actual,
			MeanError:      math.NaN(),
			Adjusted:       math.NaN(),
		}
		m, covered := groupMeans[key]
		if covered {
			out.MeanError = m
			out.Adjusted = rec.Forecast + m
		}
		switch {
		case !covered:
			res.Excluded++
		case math.IsNaN(rec.Actual):
			res.MissingActuals++
		default:
			keys = append(keys, key)
			actual = append(actual, rec.Actual)
			adjusted = append(adjusted, out.Adjusted)
			rawForecast = append(rawForecast, rec.Forecast)
		}
		res.Records = append(res.Records, out)
	}

	res.AdjusterMAE = metrics.MAE(actual, adjusted)
	res.AdjusterRMSE = metrics.RMSE(actual, adjusted)
	res.BaselineMAE = metrics.MAE(actual, rawForecast)
	res.BaselineRMSE = metrics.RMSE(actual, rawForecast)
	res.Grouped = metrics.GroupedErrors(keys, actual, adjusted)

	if res.Excluded > 0 || res.MissingActuals > 0 {
		a.logger.Warn(ctx, "rows excluded from rule-based metrics", map[string]any{
			"uncovered":       res.Excluded,
			"missing_actuals": res.MissingActuals,
			"total":           len(currentDay),
		})
	}
	return res, nil
}

// meanErrorByGroup averages historical forecast errors per (hour, horizon).
func meanErrorByGroup(history timeseries.Panel) map[metrics.GroupKey]float64 {
	sums := make(map[metrics.GroupKey]float64)
	counts := make(map[metrics.GroupKey]int)
	for i := range history {
		rec := &history[i]
		if math.IsNaN(rec.ForecastError) {
			continue
		}
		key := metrics.GroupKey{HorizonMinutes: rec.HorizonMinutes, Hour: rec.Hour}
		sums[key] += rec.ForecastError
		counts[key]++
	}
	means := make(map[metrics.GroupKey]float64, len(sums))
	for key, sum := range sums {
		means[key] = sum / float64(counts[key])
	}
	return means
}
