package dataset

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/anshulg954/TabAdjust/pkg/timeseries"
)

// Covariate names attached during preprocessing. The realized actual and the
// realized forecast error are carried as covariates so that leakage handling
// is explicit downstream: the feature reducer deny-lists both before any
// model sees the table.
const (
	CovForecast  = "forecast_mw"
	CovActual    = "actual_mw"
	CovError     = "forecast_error_mw"
	CovHour      = "hour"
	CovDayOfWeek = "dayofweek"
	CovHorizon   = "horizon_minutes"
)

const maxLagDays = 7

// Options controls preprocessing.
type Options struct {
	// AddLaggedFeatures attaches lagged actuals and lagged per-horizon
	// forecast errors for lags of 1..7 days plus their 7-day means.
	AddLaggedFeatures bool
}

// Preprocess turns raw rows into a validated panel: one series per forecast
// horizon ("horizon_<minutes>"), sorted by (series, timestamp), target set to
// the realized forecast error.
func Preprocess(rows []RawRow, opts Options) (timeseries.Panel, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("no rows to preprocess")
	}

	sorted := make([]RawRow, len(rows))
	copy(sorted, rows)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].PeriodStart.Before(sorted[j].PeriodStart)
	})

	panel := make(timeseries.Panel, 0, len(sorted))
	for _, row := range sorted {
		ts := row.PeriodStart
		rec := timeseries.Record{
			SeriesID:       fmt.Sprintf("horizon_%d", row.HorizonMinutes),
			Timestamp:      ts,
			PeriodEnd:      row.PeriodEnd,
			CreatedAt:      row.CreatedAt,
			HorizonMinutes: row.HorizonMinutes,
			Hour:           ts.Hour(),
			DayOfWeek:      int(ts.Weekday()),
			Forecast:       row.Forecast,
			Actual:         row.Actual,
			ForecastError:  row.ForecastError,
			Target:         row.ForecastError,
			Covariates: map[string]float64{
				CovForecast:  row.Forecast,
				CovActual:    row.Actual,
				CovError:     row.ForecastError,
				CovHour:      float64(ts.Hour()),
				CovDayOfWeek: float64(ts.Weekday()),
				CovHorizon:   float64(row.HorizonMinutes),
			},
		}
		panel = append(panel, rec)
	}

	if opts.AddLaggedFeatures {
		addLaggedFeatures(panel)
	}

	panel.Sort()
	if err := dedupe(&panel); err != nil {
		return nil, err
	}
	if err := panel.Validate(); err != nil {
		return nil, fmt.Errorf("preprocessed panel invalid: %w", err)
	}
	return panel, nil
}

// addLaggedFeatures attaches, per record, the actual observed k days earlier
// (keyed by period start) and the forecast error observed k days earlier for
// the same horizon, for k in 1..maxLagDays, plus the mean over available lags.
func addLaggedFeatures(panel timeseries.Panel) {
	actualAt := make(map[time.Time]float64, len(panel))
	errorAt := make(map[lagKey]float64, len(panel))
	for i := range panel {
		actualAt[panel[i].Timestamp] = panel[i].Actual
		errorAt[lagKey{panel[i].Timestamp, panel[i].HorizonMinutes}] = panel[i].ForecastError
	}

	for i := range panel {
		rec := &panel[i]

		var actSum float64
		var actN int
		for lag := 1; lag <= maxLagDays; lag++ {
			key := rec.Timestamp.AddDate(0, 0, -lag)
			name := fmt.Sprintf("%s_lag_%dd", CovActual, lag)
			if v, ok := actualAt[key]; ok {
				rec.Covariates[name] = v
				actSum += v
				actN++
			} else {
				rec.Covariates[name] = math.NaN()
			}
		}
		rec.Covariates[fmt.Sprintf("%s_lag_mean_%dd", CovActual, maxLagDays)] = meanOrNaN(actSum, actN)

		var errSum float64
		var errN int
		for lag := 1; lag <= maxLagDays; lag++ {
			key := lagKey{rec.Timestamp.AddDate(0, 0, -lag), rec.HorizonMinutes}
			name := fmt.Sprintf("%s_lag_%dd", CovError, lag)
			if v, ok := errorAt[key]; ok {
				rec.Covariates[name] = v
				errSum += v
				errN++
			} else {
				rec.Covariates[name] = math.NaN()
			}
		}
		rec.Covariates[fmt.Sprintf("%s_lag_mean_%dd", CovError, maxLagDays)] = meanOrNaN(errSum, errN)
	}
}

type lagKey struct {
	ts      time.Time
	horizon int
}

func meanOrNaN(sum float64, n int) float64 {
	if n == 0 {
		return math.NaN()
	}
	return sum / float64(n)
}

// dedupe removes exact (series, timestamp) duplicates, keeping the first
// occurrence. The panel must already be sorted.
func dedupe(panel *timeseries.Panel) error {
	p := *panel
	out := p[:0]
	for i := range p {
		if len(out) > 0 {
			last := &out[len(out)-1]
			if last.SeriesID == p[i].SeriesID && last.Timestamp.Equal(p[i].Timestamp) {
				continue
			}
		}
		out = append(out, p[i])
	}
	*panel = out
	return nil
}
