package metrics

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMAE(t *testing.T) {
	assert.Equal(t, 1.5, MAE([]float64{1, 2}, []float64{2, 4}))
	assert.Equal(t, 0.0, MAE([]float64{3, 3}, []float64{3, 3}))
	assert.True(t, math.IsNaN(MAE(nil, nil)))
	assert.True(t, math.IsNaN(MAE([]float64{1}, []float64{1, 2})))
}

func TestRMSE(t *testing.T) {
	assert.InDelta(t, math.Sqrt(2.5), RMSE([]float64{1, 2}, []float64{2, 4}), 1e-12)
	assert.True(t, math.IsNaN(RMSE(nil, nil)))
}

func TestGroupedErrors(t *testing.T) {
	keys := []GroupKey{
		{HorizonMinutes: 60, Hour: 10},
		{HorizonMinutes: 60, Hour: 10},
		{HorizonMinutes: 120, Hour: 9},
	}
	actual := []float64{10, 12, 20}
	predicted := []float64{11, 13, 25}

	grouped := GroupedErrors(keys, actual, predicted)
	require.Len(t, grouped, 2)

	// Sorted by horizon then hour.
	assert.Equal(t, GroupKey{HorizonMinutes: 60, Hour: 10}, grouped[0].GroupKey)
	assert.Equal(t, 2, grouped[0].Count)
	assert.Equal(t, 1.0, grouped[0].MAE)

	assert.Equal(t, GroupKey{HorizonMinutes: 120, Hour: 9}, grouped[1].GroupKey)
	assert.Equal(t, 5.0, grouped[1].MAE)
	assert.Equal(t, 5.0, grouped[1].RMSE)
}

func TestGroupedErrorsEmpty(t *testing.T) {
	assert.Empty(t, GroupedErrors(nil, nil, nil))
}
