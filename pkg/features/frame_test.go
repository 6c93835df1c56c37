package features

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anshulg954/TabAdjust/pkg/timeseries"
)

func testPanel(t *testing.T, hours int) timeseries.Panel {
	t.Helper()
	base := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	var panel timeseries.Panel
	for h := 0; h < hours; h++ {
		ts := base.Add(time.Duration(h) * time.Hour)
		panel = append(panel, timeseries.Record{
			SeriesID:       "horizon_60",
			Timestamp:      ts,
			PeriodEnd:      ts.Add(30 * time.Minute),
			HorizonMinutes: 60,
			Hour:           ts.Hour(),
			DayOfWeek:      int(ts.Weekday()),
			Forecast:       100,
			Actual:         90,
			ForecastError:  -10,
			Target:         -10,
			Covariates: map[string]float64{
				"forecast_mw": 100,
				"hour":        float64(ts.Hour()),
			},
		})
	}
	require.NoError(t, panel.Validate())
	return panel
}

func TestFromPanel(t *testing.T) {
	panel := testPanel(t, 4)
	// One record missing a covariate should yield NaN, not zero.
	delete(panel[2].Covariates, "hour")

	f := FromPanel(panel)
	assert.Equal(t, 4, f.NumRows())
	assert.Equal(t, []string{"forecast_mw", "hour"}, f.Columns)

	hour, ok := f.Column("hour")
	require.True(t, ok)
	assert.Equal(t, 1.0, hour[1])
	assert.True(t, math.IsNaN(hour[2]))
	assert.Equal(t, -10.0, f.Target[0])
	assert.Equal(t, "horizon_60", f.Series[0])
}

func TestFrameAddColumn(t *testing.T) {
	f := FromPanel(testPanel(t, 3))

	require.NoError(t, f.AddColumn("extra", []float64{1, 2, 3}))
	assert.Contains(t, f.Columns, "extra")

	err := f.AddColumn("extra", []float64{4, 5, 6})
	assert.Error(t, err, "duplicate column must be rejected")

	err = f.AddColumn("short", []float64{1})
	assert.Error(t, err, "length mismatch must be rejected")
}

func TestFrameDropAndSelect(t *testing.T) {
	f := FromPanel(testPanel(t, 3))
	require.NoError(t, f.AddColumn("a", []float64{1, 2, 3}))
	require.NoError(t, f.AddColumn("b", []float64{4, 5, 6}))

	f.DropColumns("forecast_mw", "not_there")
	assert.NotContains(t, f.Columns, "forecast_mw")
	_, ok := f.Column("forecast_mw")
	assert.False(t, ok)

	f.SelectColumns([]string{"b", "a", "missing"})
	assert.Equal(t, []string{"b", "a"}, f.Columns)
	_, ok = f.Column("hour")
	assert.False(t, ok)
}

func TestFrameCloneIsIndependent(t *testing.T) {
	f := FromPanel(testPanel(t, 3))
	cp := f.Clone()

	col, _ := cp.Column("forecast_mw")
	col[0] = 999
	cp.Target[0] = 999

	orig, _ := f.Column("forecast_mw")
	assert.Equal(t, 100.0, orig[0])
	assert.Equal(t, -10.0, f.Target[0])
}

func TestFrameRowOrder(t *testing.T) {
	f := FromPanel(testPanel(t, 2))
	f.SelectColumns([]string{"hour", "forecast_mw"})

	row := f.Row(1)
	assert.Equal(t, []float64{1, 100}, row)

	m := f.Matrix()
	require.Len(t, m, 2)
	assert.Equal(t, []float64{0, 100}, m[0])
}

func TestAllTargetsUnknown(t *testing.T) {
	f := FromPanel(testPanel(t, 2).MaskTargets())
	assert.True(t, f.AllTargetsUnknown())

	f.Target[1] = 0.5
	assert.False(t, f.AllTargetsUnknown())
}
