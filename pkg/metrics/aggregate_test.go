package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(d int) time.Time {
	return time.Date(2024, 6, d, 0, 0, 0, 0, time.UTC)
}

func TestAggregateEmpty(t *testing.T) {
	_, err := Aggregate(nil)
	assert.ErrorIs(t, err, ErrEmptyAggregate)

	_, err = Aggregate([][]MergedGroup{{}, {}})
	assert.ErrorIs(t, err, ErrEmptyAggregate)
}

func TestAggregateSingleDateIsIdentity(t *testing.T) {
	// With one date and one row the aggregate must reproduce the row.
	table := []MergedGroup{{
		Date: day(1), HorizonMinutes: 60, Hour: 10,
		ModelMAE: 2, ModelRMSE: 3, OCFMAE: 4, OCFRMSE: 5,
	}}

	agg, err := Aggregate([][]MergedGroup{table})
	require.NoError(t, err)

	assert.Equal(t, Averages{ModelMAE: 2, ModelRMSE: 3, OCFMAE: 4, OCFRMSE: 5}, agg.Overall)
	require.Len(t, agg.ByHorizon, 1)
	assert.Equal(t, 60, agg.ByHorizon[0].HorizonMinutes)
	assert.Equal(t, agg.Overall, agg.ByHorizon[0].Averages)
	require.Len(t, agg.ByHour, 1)
	assert.Equal(t, 10, agg.ByHour[0].Hour)
	require.Len(t, agg.ByHorizonHour, 1)
}

func TestAggregateAveragesAcrossDates(t *testing.T) {
	d1 := []MergedGroup{
		{Date: day(1), HorizonMinutes: 60, Hour: 10, ModelMAE: 2, ModelRMSE: 2, OCFMAE: 4, OCFRMSE: 4},
		{Date: day(1), HorizonMinutes: 120, Hour: 10, ModelMAE: 6, ModelRMSE: 6, OCFMAE: 8, OCFRMSE: 8},
	}
	d2 := []MergedGroup{
		{Date: day(2), HorizonMinutes: 60, Hour: 10, ModelMAE: 4, ModelRMSE: 4, OCFMAE: 6, OCFRMSE: 6},
	}

	agg, err := Aggregate([][]MergedGroup{d1, d2})
	require.NoError(t, err)

	assert.InDelta(t, 4.0, agg.Overall.ModelMAE, 1e-12)
	assert.InDelta(t, 6.0, agg.Overall.OCFMAE, 1e-12)

	require.Len(t, agg.ByHorizon, 2)
	assert.Equal(t, 60, agg.ByHorizon[0].HorizonMinutes)
	assert.InDelta(t, 3.0, agg.ByHorizon[0].ModelMAE, 1e-12)
	assert.Equal(t, 120, agg.ByHorizon[1].HorizonMinutes)
	assert.InDelta(t, 6.0, agg.ByHorizon[1].ModelMAE, 1e-12)

	require.Len(t, agg.ByHour, 1)
	assert.InDelta(t, 4.0, agg.ByHour[0].ModelMAE, 1e-12)
}

func TestAggregateStateless(t *testing.T) {
	table := []MergedGroup{
		{Date: day(1), HorizonMinutes: 60, Hour: 8, ModelMAE: 1, ModelRMSE: 2, OCFMAE: 3, OCFRMSE: 4},
		{Date: day(1), HorizonMinutes: 60, Hour: 9, ModelMAE: 5, ModelRMSE: 6, OCFMAE: 7, OCFRMSE: 8},
	}

	first, err := Aggregate([][]MergedGroup{table})
	require.NoError(t, err)
	second, err := Aggregate([][]MergedGroup{table})
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestAggregateOutputsSorted(t *testing.T) {
	table := []MergedGroup{
		{Date: day(1), HorizonMinutes: 120, Hour: 14},
		{Date: day(1), HorizonMinutes: 60, Hour: 9},
		{Date: day(1), HorizonMinutes: 120, Hour: 9},
	}

	agg, err := Aggregate([][]MergedGroup{table})
	require.NoError(t, err)

	require.Len(t, agg.ByHorizonHour, 3)
	assert.Equal(t, 60, agg.ByHorizonHour[0].HorizonMinutes)
	assert.Equal(t, 120, agg.ByHorizonHour[1].HorizonMinutes)
	assert.Equal(t, 9, agg.ByHorizonHour[1].Hour)
	assert.Equal(t, 14, agg.ByHorizonHour[2].Hour)
}
