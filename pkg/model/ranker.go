package model

import (
	"context"
	"math"
	"math/rand"
	"sort"

	"github.com/anshulg954/TabAdjust/pkg/features"
	"github.com/anshulg954/TabAdjust/pkg/telemetry"
)

// PermutationRanker ranks columns by permutation importance: it trains a
// small disposable gradient-boosted regressor on the frame, then measures how
// much shuffling each column inflates training MSE. The auxiliary model is
// never the adapter under evaluation; its only output is a column ordering.
type PermutationRanker struct {
	cfg     GBTConfig
	repeats int
	seed    int64
}

// NewPermutationRanker uses a deliberately light auxiliary model; the ranking
// only needs relative importance, not predictive accuracy.
func NewPermutationRanker() *PermutationRanker {
	return &PermutationRanker{
		cfg: GBTConfig{
			Trees:        50,
			MaxDepth:     3,
			LearningRate: 0.1,
			MinLeaf:      3,
		},
		repeats: 5,
		seed:    42,
	}
}

// Rank implements features.ImportanceRanker.
func (r *PermutationRanker) Rank(frame *features.Frame) ([]string, error) {
	aux := NewGradientBoosted(r.cfg, telemetry.NewNopLogger())
	ctx := context.Background()
	if err := aux.Fit(ctx, frame); err != nil {
		return nil, err
	}

	baseline, err := r.trainMSE(aux, frame)
	if err != nil {
		return nil, err
	}

	rng := rand.New(rand.NewSource(r.seed))
	type ranked struct {
		name       string
		importance float64
	}
	scores := make([]ranked, 0, len(frame.Columns))

	for _, name := range frame.Columns {
		shuffled := frame.Clone()
		col := shuffled.Data[name]
		var total float64
		for rep := 0; rep < r.repeats; rep++ {
			rng.Shuffle(len(col), func(a, b int) { col[a], col[b] = col[b], col[a] })
			mse, err := r.trainMSE(aux, shuffled)
			if err != nil {
				return nil, err
			}
			total += mse - baseline
		}
		scores = append(scores, ranked{name: name, importance: total / float64(r.repeats)})
	}

	sort.SliceStable(scores, func(i, j int) bool { return scores[i].importance > scores[j].importance })
	names := make([]string, len(scores))
	for i, s := range scores {
		names[i] = s.name
	}
	return names, nil
}

// trainMSE scores the auxiliary model against the frame's own labels.
func (r *PermutationRanker) trainMSE(aux *GradientBoosted, frame *features.Frame) (float64, error) {
	row := make([]float64, len(aux.cols))
	var sse float64
	var n int
	for i := 0; i < frame.NumRows(); i++ {
		if math.IsNaN(frame.Target[i]) {
			continue
		}
		if err := fillRow(frame, i, aux.cols, aux.means, row); err != nil {
			return 0, err
		}
		s := aux.base
		for _, tree := range aux.trees {
			s += aux.cfg.LearningRate * tree.eval(row)
		}
		d := s - frame.Target[i]
		sse += d * d
		n++
	}
	if n == 0 {
		return 0, nil
	}
	return sse / float64(n), nil
}
