package dataset

import (
	"fmt"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRead_ParsesAndDerivesError(t *testing.T) {
	csv := strings.Join([]string{
		"forecast_period_start_datetime_utc,forecast_period_end_datetime_utc,forecast_creation_datetime_utc,forecast_horizon_minutes,forecasted_pv_generation_MW,actual_pv_generation_MW,forecast_version",
		"2024-08-01T00:00:00Z,2024-08-01T00:30:00Z,2024-07-31T23:45:00Z,15,10.0,12.5,v1",
		"2024-08-01T00:00:00Z,2024-08-01T00:30:00Z,2024-07-31T23:30:00Z,30.0,9.0,12.5,v1",
	}, "\n")

	rows, err := Read(strings.NewReader(csv))
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, 15, rows[0].HorizonMinutes)
	assert.Equal(t, 30, rows[1].HorizonMinutes, "float-formatted horizons are accepted")
	// No forecast_error_MW column: derived as actual - forecast.
	assert.InDelta(t, 2.5, rows[0].ForecastError, 1e-9)
	assert.InDelta(t, 3.5, rows[1].ForecastError, 1e-9)
	assert.Equal(t, time.Date(2024, 8, 1, 0, 0, 0, 0, time.UTC), rows[0].PeriodStart)
}

func TestRead_MissingRequiredColumn(t *testing.T) {
	csv := "forecast_period_start_datetime_utc,forecasted_pv_generation_MW\n2024-08-01T00:00:00Z,10.0\n"
	_, err := Read(strings.NewReader(csv))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing required column")
}

func syntheticRows(days int, horizons []int) []RawRow {
	start := time.Date(2024, 8, 1, 0, 0, 0, 0, time.UTC)
	var rows []RawRow
	for d := 0; d < days; d++ {
		for h := 0; h < 24; h++ {
			ts := start.AddDate(0, 0, d).Add(time.Duration(h) * time.Hour)
			for _, hz := range horizons {
				rows = append(rows, RawRow{
					PeriodStart:    ts,
					PeriodEnd:      ts.Add(30 * time.Minute),
					CreatedAt:      ts.Add(-time.Duration(hz) * time.Minute),
					HorizonMinutes: hz,
					Forecast:       10,
					Actual:         11,
					ForecastError:  1,
				})
			}
		}
	}
	return rows
}

func TestPreprocess_PanelShape(t *testing.T) {
	rows := syntheticRows(3, []int{15, 30})
	panel, err := Preprocess(rows, Options{})
	require.NoError(t, err)

	assert.Len(t, panel, 3*24*2)
	assert.Equal(t, []string{"horizon_15", "horizon_30"}, panel.SeriesIDs())
	require.NoError(t, panel.Validate())

	rec := panel[0]
	assert.Equal(t, rec.ForecastError, rec.Target, "target is the forecast error")
	assert.Equal(t, float64(rec.Hour), rec.Covariates[CovHour])
	assert.Equal(t, float64(rec.HorizonMinutes), rec.Covariates[CovHorizon])
	assert.Equal(t, rec.Actual, rec.Covariates[CovActual])
}

func TestPreprocess_LaggedFeatures(t *testing.T) {
	rows := syntheticRows(9, []int{15})
	panel, err := Preprocess(rows, Options{AddLaggedFeatures: true})
	require.NoError(t, err)

	// First day has no history: every lag is NaN.
	first := panel[0]
	assert.True(t, math.IsNaN(first.Covariates["actual_mw_lag_1d"]))
	assert.True(t, math.IsNaN(first.Covariates["forecast_error_mw_lag_mean_7d"]))

	// Day 8+ has the full 7-day history; actuals and errors are constant.
	last := panel[len(panel)-1]
	for lag := 1; lag <= 7; lag++ {
		assert.Equal(t, 11.0, last.Covariates[fmt.Sprintf("actual_mw_lag_%dd", lag)])
		assert.Equal(t, 1.0, last.Covariates[fmt.Sprintf("forecast_error_mw_lag_%dd", lag)])
	}
	assert.Equal(t, 11.0, last.Covariates["actual_mw_lag_mean_7d"])
	assert.Equal(t, 1.0, last.Covariates["forecast_error_mw_lag_mean_7d"])
}

func TestPreprocess_Dedupes(t *testing.T) {
	rows := syntheticRows(1, []int{15})
	rows = append(rows, rows[0]) // exact duplicate
	panel, err := Preprocess(rows, Options{})
	require.NoError(t, err)
	assert.Len(t, panel, 24)
}
