package model

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/anshulg954/TabAdjust/pkg/features"
	"github.com/anshulg954/TabAdjust/pkg/telemetry"
	"github.com/anshulg954/TabAdjust/pkg/timeseries"
)

// InContextConfig controls the tabular in-context predictor.
type InContextConfig struct {
	// Neighbors is the context size per prediction.
	Neighbors int
	// Epsilon regularizes inverse-distance weights.
	Epsilon float64
}

func DefaultInContextConfig() InContextConfig {
	return InContextConfig{Neighbors: 16, Epsilon: 1e-6}
}

// InContext is the foundation-model-style adapter: it has no separable fitted
// state cheaper than the training table itself, so Fit just retains the table
// and every prediction is computed against it. Predictions are
// inverse-distance-weighted averages of the nearest labeled rows in
// standardized feature space.
type InContext struct {
	cfg    InContextConfig
	logger telemetry.Logger

	train  *features.Frame
	fitted bool
}

func NewInContext(cfg InContextConfig, logger telemetry.Logger) *InContext {
	if cfg.Neighbors <= 0 {
		cfg = DefaultInContextConfig()
	}
	if logger == nil {
		logger = telemetry.NewNopLogger()
	}
	return &InContext{cfg: cfg, logger: logger}
}

func (m *InContext) Name() string { return "incontext" }

// Fit retains the training frame. Deliberately cheap.
func (m *InContext) Fit(ctx context.Context, train *features.Frame) error {
	if train.NumRows() == 0 {
		return fmt.Errorf("incontext: empty training frame")
	}
	m.train = train.Clone()
	m.fitted = true
	m.logger.Info(ctx, "in-context model retained training table", map[string]any{
		"rows": train.NumRows(),
		"cols": len(train.Columns),
	})
	return nil
}

func (m *InContext) Predict(ctx context.Context, test *features.Frame, groundTruth timeseries.Panel) ([]Prediction, error) {
	if !m.fitted {
		return nil, ErrNotFitted
	}
	index, err := checkPredictInputs(test, groundTruth)
	if err != nil {
		return nil, err
	}

	cols := m.train.Columns
	means := columnMeans(m.train, cols)
	stds := columnStds(m.train, cols, means)

	// Labeled context rows, standardized.
	var ctxRows [][]float64
	var ctxY []float64
	raw := make([]float64, len(cols))
	for i := 0; i < m.train.NumRows(); i++ {
		if math.IsNaN(m.train.Target[i]) {
			continue
		}
		if err := fillRow(m.train, i, cols, means, raw); err != nil {
			return nil, err
		}
		ctxRows = append(ctxRows, standardize(raw, means, stds))
		ctxY = append(ctxY, m.train.Target[i])
	}
	if len(ctxRows) == 0 {
		return nil, fmt.Errorf("incontext: no labeled rows in retained table")
	}

	k := m.cfg.Neighbors
	if k > len(ctxRows) {
		k = len(ctxRows)
	}

	scores := make([]float64, test.NumRows())
	dists := make([]neighbor, len(ctxRows))
	for i := 0; i < test.NumRows(); i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := fillRow(test, i, cols, means, raw); err != nil {
			return nil, err
		}
		q := standardize(raw, means, stds)
		for j, row := range ctxRows {
			dists[j] = neighbor{dist: sqDist(q, row), y: ctxY[j]}
		}
		sort.Slice(dists, func(a, b int) bool { return dists[a].dist < dists[b].dist })

		var wsum, acc float64
		for _, n := range dists[:k] {
			w := 1 / (n.dist + m.cfg.Epsilon)
			wsum += w
			acc += w * n.y
		}
		scores[i] = acc / wsum
	}
	return joinPredictions(test, index, scores), nil
}

type neighbor struct {
	dist float64
	y    float64
}

func standardize(row, means, stds []float64) []float64 {
	out := make([]float64, len(row))
	for j := range row {
		out[j] = (row[j] - means[j]) / stds[j]
	}
	return out
}

func sqDist(a, b []float64) float64 {
	var s float64
	for j := range a {
		d := a[j] - b[j]
		s += d * d
	}
	return s
}

// columnStds computes per-column standard deviations ignoring NaNs, floored
// at 1 so constant columns do not blow up standardization.
func columnStds(f *features.Frame, cols []string, means []float64) []float64 {
	stds := make([]float64, len(cols))
	for j, name := range cols {
		col, _ := f.Column(name)
		var s float64
		var n int
		for _, v := range col {
			if !math.IsNaN(v) {
				d := v - means[j]
				s += d * d
				n++
			}
		}
		std := 0.0
		if n > 1 {
			std = math.Sqrt(s / float64(n-1))
		}
		if std < 1e-9 {
			std = 1
		}
		stds[j] = std
	}
	return stds
}
