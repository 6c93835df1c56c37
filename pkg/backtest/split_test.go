package backtest

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anshulg954/TabAdjust/pkg/timeseries"
)

// forecastPanel builds days of hourly daylight rows for two horizons with a
// constant forecast error, sorted panel-order. skipDays removes whole days so
// tests can punch holes into the coverage.
func forecastPanel(t *testing.T, start time.Time, days int, skipDays ...int) timeseries.Panel {
	t.Helper()
	skip := make(map[int]struct{}, len(skipDays))
	for _, d := range skipDays {
		skip[d] = struct{}{}
	}

	var panel timeseries.Panel
	for _, horizon := range []int{60, 120} {
		series := "horizon_60"
		if horizon == 120 {
			series = "horizon_120"
		}
		for d := 0; d < days; d++ {
			if _, ok := skip[d]; ok {
				continue
			}
			for h := 6; h <= 18; h++ {
				ts := start.AddDate(0, 0, d).Add(time.Duration(h) * time.Hour)
				panel = append(panel, timeseries.Record{
					SeriesID:       series,
					Timestamp:      ts,
					PeriodEnd:      ts.Add(30 * time.Minute),
					CreatedAt:      ts.Add(-time.Duration(horizon) * time.Minute),
					HorizonMinutes: horizon,
					Hour:           h,
					DayOfWeek:      int(ts.Weekday()),
					Forecast:       100,
					Actual:         90,
					ForecastError:  -10,
					Target:         -10,
					Covariates: map[string]float64{
						"forecast_mw":     100,
						"hour":            float64(h),
						"horizon_minutes": float64(horizon),
					},
				})
			}
		}
	}
	panel.Sort()
	require.NoError(t, panel.Validate())
	return panel
}

func TestSplitWindows(t *testing.T) {
	start := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	panel := forecastPanel(t, start, 10)
	ref := start.AddDate(0, 0, 8)

	split, err := NewSplitter(7, nil).Split(context.Background(), ref, panel)
	require.NoError(t, err)

	// 7 days of train, 1 day of test, both horizons, 13 hours each.
	assert.Len(t, split.Train, 7*13*2)
	assert.Len(t, split.Test, 13*2)
	assert.Len(t, split.TestGroundTruth, 13*2)

	trainMax, ok := split.Train.MaxTime()
	require.True(t, ok)
	testMin, ok := split.Test.MinTime()
	require.True(t, ok)
	assert.True(t, trainMax.Before(testMin), "train must end before test begins")

	trainMin, _ := split.Train.MinTime()
	assert.False(t, trainMin.Before(ref.AddDate(0, 0, -7)))
}

func TestSplitMasksTestTargets(t *testing.T) {
	start := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	panel := forecastPanel(t, start, 10)

	split, err := NewSplitter(7, nil).Split(context.Background(), start.AddDate(0, 0, 8), panel)
	require.NoError(t, err)

	assert.True(t, split.Test.AllTargetsUnknown())
	assert.False(t, split.TestGroundTruth.AllTargetsUnknown())
	// Masking must not write back into the shared panel.
	assert.False(t, panel.AllTargetsUnknown())

	for i := range split.Test {
		assert.Equal(t, split.TestGroundTruth[i].SeriesID, split.Test[i].SeriesID)
		assert.True(t, split.TestGroundTruth[i].Timestamp.Equal(split.Test[i].Timestamp))
	}
}

func TestSplitDegenerateTrainWindow(t *testing.T) {
	start := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	panel := forecastPanel(t, start, 10)

	// Reference day at the very start of the data: nothing before it.
	_, err := NewSplitter(7, nil).Split(context.Background(), start, panel)
	assert.ErrorIs(t, err, ErrDegenerateSplit)
}

func TestSplitDegenerateTestWindow(t *testing.T) {
	start := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	panel := forecastPanel(t, start, 10, 8) // day 8 missing entirely

	_, err := NewSplitter(7, nil).Split(context.Background(), start.AddDate(0, 0, 8), panel)
	assert.ErrorIs(t, err, ErrDegenerateSplit)
}

func TestSplitNoUsableActuals(t *testing.T) {
	start := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	panel := forecastPanel(t, start, 10)
	ref := start.AddDate(0, 0, 8)

	// Outcomes for the test day never arrived: every actual is unknown.
	for i := range panel {
		if !panel[i].Timestamp.Before(ref) && panel[i].Timestamp.Before(ref.AddDate(0, 0, 1)) {
			panel[i].Actual = math.NaN()
			panel[i].ForecastError = math.NaN()
			panel[i].Target = math.NaN()
		}
	}

	_, err := NewSplitter(7, nil).Split(context.Background(), ref, panel)
	assert.ErrorIs(t, err, ErrDegenerateSplit)
	assert.Contains(t, err.Error(), "no usable actuals")
}

func TestSplitterDefaultsWindow(t *testing.T) {
	s := NewSplitter(0, nil)
	assert.Equal(t, 7*24*time.Hour, s.trainWindow)
}

func TestDateRange(t *testing.T) {
	start := time.Date(2024, 6, 1, 10, 30, 0, 0, time.UTC)
	end := time.Date(2024, 6, 3, 2, 0, 0, 0, time.UTC)

	dates := DateRange(start, end)
	require.Len(t, dates, 3)
	assert.Equal(t, time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC), dates[0])
	assert.Equal(t, time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC), dates[2])

	assert.Len(t, DateRange(end, start), 0)
}
