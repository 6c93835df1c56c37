package metrics

import (
	"math"
	"sort"
)

// MAE computes mean absolute error between aligned slices. Returns NaN for
// empty input so degenerate groups are visible rather than reported as 0.
func MAE(actual, predicted []float64) float64 {
	if len(actual) == 0 || len(actual) != len(predicted) {
		return math.NaN()
	}
	var sum float64
	for i := range actual {
		sum += math.Abs(actual[i] - predicted[i])
	}
	return sum / float64(len(actual))
}

// RMSE computes root-mean-square error between aligned slices.
func RMSE(actual, predicted []float64) float64 {
	if len(actual) == 0 || len(actual) != len(predicted) {
		return math.NaN()
	}
	var sum float64
	for i := range actual {
		d := actual[i] - predicted[i]
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(actual)))
}

// GroupKey buckets observations by forecast lead time and hour of day.
type GroupKey struct {
	HorizonMinutes int
	Hour           int
}

// GroupErrors is the error summary of one (horizon, hour) bucket.
type GroupErrors struct {
	GroupKey
	MAE   float64
	RMSE  float64
	Count int
}

// GroupedErrors computes MAE/RMSE per (horizon, hour) bucket over aligned
// slices, sorted by horizon then hour.
func GroupedErrors(keys []GroupKey, actual, predicted []float64) []GroupErrors {
	buckets := make(map[GroupKey]*accum)
	for i, k := range keys {
		b, ok := buckets[k]
		if !ok {
			b = &accum{}
			buckets[k] = b
		}
		d := actual[i] - predicted[i]
		b.absSum += math.Abs(d)
		b.sqSum += d * d
		b.n++
	}

	out := make([]GroupErrors, 0, len(buckets))
	for k, b := range buckets {
		out = append(out, GroupErrors{
			GroupKey: k,
			MAE:      b.absSum / float64(b.n),
			RMSE:     math.Sqrt(b.sqSum / float64(b.n)),
			Count:    b.n,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].HorizonMinutes != out[j].HorizonMinutes {
			return out[i].HorizonMinutes < out[j].HorizonMinutes
		}
		return out[i].Hour < out[j].Hour
	})
	return out
}

type accum struct {
	absSum float64
	sqSum  float64
	n      int
}
