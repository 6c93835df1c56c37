package features

import (
	"fmt"

	"github.com/anshulg954/TabAdjust/pkg/dataset"
)

// ModelKind selects the reduction strategy. The gradient-boosted path only
// needs the leakage deny-list applied (row identity lives outside the column
// set, so identifier dropping is structural); the in-context path additionally
// narrows the table to the most important columns, since that predictor's
// cost grows with width.
type ModelKind string

const (
	KindGradientBoosted ModelKind = "gbt"
	KindInContext       ModelKind = "incontext"
)

// LeakageColumns are realized-outcome columns that must never reach a model:
// the actual generation and the realized forecast error of the row itself.
// Lagged variants are legal history and are kept.
var LeakageColumns = []string{dataset.CovActual, dataset.CovError}

// ImportanceRanker orders a frame's columns by predictive importance,
// most important first. Implementations train a disposable auxiliary
// regressor; that model is never the adapter under evaluation.
type ImportanceRanker interface {
	Rank(frame *Frame) ([]string, error)
}

// Reducer applies per-model-kind column reduction to a train/test frame pair.
type Reducer struct {
	ranker ImportanceRanker
	topK   int
}

// NewReducer builds a reducer. The ranker is only consulted for model kinds
// that use importance-based selection; topK <= 0 means 20.
func NewReducer(ranker ImportanceRanker, topK int) *Reducer {
	if topK <= 0 {
		topK = 20
	}
	return &Reducer{ranker: ranker, topK: topK}
}

// Reduce returns reduced copies of the frames plus the selected column names.
// The inputs are not mutated.
func (r *Reducer) Reduce(train, test *Frame, kind ModelKind) (*Frame, *Frame, []string, error) {
	trainOut := train.Clone()
	testOut := test.Clone()

	trainOut.DropColumns(LeakageColumns...)
	testOut.DropColumns(LeakageColumns...)

	switch kind {
	case KindGradientBoosted:
		// Deny-list only.
	case KindInContext:
		if r.ranker == nil {
			return nil, nil, nil, fmt.Errorf("model kind %q requires an importance ranker", kind)
		}
		ranked, err := r.ranker.Rank(trainOut)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("importance ranking failed: %w", err)
		}
		if len(ranked) > r.topK {
			ranked = ranked[:r.topK]
		}
		trainOut.SelectColumns(ranked)
		testOut.SelectColumns(ranked)
	default:
		return nil, nil, nil, fmt.Errorf("unknown model kind %q", kind)
	}

	if len(trainOut.Columns) == 0 {
		return nil, nil, nil, fmt.Errorf("reduction left no feature columns")
	}
	selected := append([]string(nil), trainOut.Columns...)
	return trainOut, testOut, selected, nil
}
