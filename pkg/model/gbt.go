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

// GBTConfig mirrors the reference regressor's settings: 200 trees of depth 6
// with a 0.05 learning rate.
type GBTConfig struct {
	Trees        int
	MaxDepth     int
	LearningRate float64
	MinLeaf      int
}

func DefaultGBTConfig() GBTConfig {
	return GBTConfig{
		Trees:        200,
		MaxDepth:     6,
		LearningRate: 0.05,
		MinLeaf:      3,
	}
}

// GradientBoosted is a least-squares gradient-boosted regression-tree
// adapter. All compute happens in Fit; Predict is a cheap tree walk.
type GradientBoosted struct {
	cfg    GBTConfig
	logger telemetry.Logger

	cols   []string
	means  []float64 // per-column imputation values, estimated on train
	base   float64
	trees  []*treeNode
	fitted bool
}

func NewGradientBoosted(cfg GBTConfig, logger telemetry.Logger) *GradientBoosted {
	if cfg.Trees <= 0 {
		cfg = DefaultGBTConfig()
	}
	if logger == nil {
		logger = telemetry.NewNopLogger()
	}
	return &GradientBoosted{cfg: cfg, logger: logger}
}

func (m *GradientBoosted) Name() string { return "gbt" }

func (m *GradientBoosted) Fit(ctx context.Context, train *features.Frame) error {
	if train.NumRows() == 0 {
		return fmt.Errorf("gbt: empty training frame")
	}

	// Rows with an unknown target carry no gradient signal.
	var keep []int
	for i := 0; i < train.NumRows(); i++ {
		if !math.IsNaN(train.Target[i]) {
			keep = append(keep, i)
		}
	}
	if len(keep) == 0 {
		return fmt.Errorf("gbt: no labeled rows in training frame")
	}

	m.cols = append([]string(nil), train.Columns...)
	m.means = columnMeans(train, m.cols)
	cols := imputedColumns(train, m.cols, m.means, keep)

	y := make([]float64, len(keep))
	for i, r := range keep {
		y[i] = train.Target[r]
	}

	m.base = mean(y)
	pred := make([]float64, len(y))
	resid := make([]float64, len(y))
	for i := range pred {
		pred[i] = m.base
		resid[i] = y[i] - pred[i]
	}

	idx := make([]int, len(y))
	for i := range idx {
		idx[i] = i
	}

	m.trees = m.trees[:0]
	for t := 0; t < m.cfg.Trees; t++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("gbt: fit cancelled after %d trees: %w", t, err)
		}
		tree := buildTree(cols, resid, idx, 0, m.cfg.MaxDepth, m.cfg.MinLeaf)
		m.trees = append(m.trees, tree)
		for i := range y {
			pred[i] += m.cfg.LearningRate * tree.eval(rowOf(cols, i))
			resid[i] = y[i] - pred[i]
		}
	}
	m.fitted = true

	m.logger.Info(ctx, "gradient-boosted model trained", map[string]any{
		"rows":  len(y),
		"cols":  len(m.cols),
		"trees": len(m.trees),
	})
	return nil
}

func (m *GradientBoosted) Predict(ctx context.Context, test *features.Frame, groundTruth timeseries.Panel) ([]Prediction, error) {
	if !m.fitted {
		return nil, ErrNotFitted
	}
	index, err := checkPredictInputs(test, groundTruth)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	scores := make([]float64, test.NumRows())
	row := make([]float64, len(m.cols))
	for i := 0; i < test.NumRows(); i++ {
		if err := fillRow(test, i, m.cols, m.means, row); err != nil {
			return nil, err
		}
		s := m.base
		for _, tree := range m.trees {
			s += m.cfg.LearningRate * tree.eval(row)
		}
		scores[i] = s
	}
	return joinPredictions(test, index, scores), nil
}

// treeNode is a binary regression tree node; a nil left child marks a leaf.
type treeNode struct {
	feature   int
	threshold float64
	left      *treeNode
	right     *treeNode
	value     float64
}

func (n *treeNode) eval(row []float64) float64 {
	for n.left != nil {
		if row[n.feature] <= n.threshold {
			n = n.left
		} else {
			n = n.right
		}
	}
	return n.value
}

// buildTree grows a variance-reduction tree over the sample indices in idx.
// cols is column-major training data with NaNs already imputed.
func buildTree(cols [][]float64, resid []float64, idx []int, depth, maxDepth, minLeaf int) *treeNode {
	node := &treeNode{value: meanAt(resid, idx)}
	if depth >= maxDepth || len(idx) < 2*minLeaf {
		return node
	}

	parentSSE := sseAt(resid, idx)
	bestGain := 1e-12
	bestFeat := -1
	var bestThr float64

	order := make([]int, len(idx))
	for f := range cols {
		copy(order, idx)
		col := cols[f]
		sort.Slice(order, func(a, b int) bool { return col[order[a]] < col[order[b]] })

		var leftSum, leftSq float64
		totalSum, totalSq := sumsAt(resid, idx)
		for i := 0; i < len(order)-1; i++ {
			r := resid[order[i]]
			leftSum += r
			leftSq += r * r
			if col[order[i]] == col[order[i+1]] {
				continue
			}
			nl, nr := i+1, len(order)-i-1
			if nl < minLeaf || nr < minLeaf {
				continue
			}
			sseLeft := leftSq - leftSum*leftSum/float64(nl)
			rightSum := totalSum - leftSum
			sseRight := (totalSq - leftSq) - rightSum*rightSum/float64(nr)
			gain := parentSSE - sseLeft - sseRight
			if gain > bestGain {
				bestGain = gain
				bestFeat = f
				bestThr = (col[order[i]] + col[order[i+1]]) / 2
			}
		}
	}
	if bestFeat < 0 {
		return node
	}

	var leftIdx, rightIdx []int
	for _, i := range idx {
		if cols[bestFeat][i] <= bestThr {
			leftIdx = append(leftIdx, i)
		} else {
			rightIdx = append(rightIdx, i)
		}
	}
	node.feature = bestFeat
	node.threshold = bestThr
	node.left = buildTree(cols, resid, leftIdx, depth+1, maxDepth, minLeaf)
	node.right = buildTree(cols, resid, rightIdx, depth+1, maxDepth, minLeaf)
	return node
}

func mean(v []float64) float64 {
	if len(v) == 0 {
		return 0
	}
	var s float64
	for _, x := range v {
		s += x
	}
	return s / float64(len(v))
}

func meanAt(v []float64, idx []int) float64 {
	if len(idx) == 0 {
		return 0
	}
	var s float64
	for _, i := range idx {
		s += v[i]
	}
	return s / float64(len(idx))
}

func sumsAt(v []float64, idx []int) (sum, sumSq float64) {
	for _, i := range idx {
		sum += v[i]
		sumSq += v[i] * v[i]
	}
	return sum, sumSq
}

func sseAt(v []float64, idx []int) float64 {
	sum, sumSq := sumsAt(v, idx)
	return sumSq - sum*sum/float64(len(idx))
}

// columnMeans computes per-column means ignoring NaNs, used for imputation.
func columnMeans(f *features.Frame, cols []string) []float64 {
	means := make([]float64, len(cols))
	for j, name := range cols {
		col, _ := f.Column(name)
		var s float64
		var n int
		for _, v := range col {
			if !math.IsNaN(v) {
				s += v
				n++
			}
		}
		if n > 0 {
			means[j] = s / float64(n)
		}
	}
	return means
}

// imputedColumns materializes column-major training data restricted to keep,
// with NaNs replaced by the column mean.
func imputedColumns(f *features.Frame, cols []string, means []float64, keep []int) [][]float64 {
	out := make([][]float64, len(cols))
	for j, name := range cols {
		src, _ := f.Column(name)
		dst := make([]float64, len(keep))
		for i, r := range keep {
			v := src[r]
			if math.IsNaN(v) {
				v = means[j]
			}
			dst[i] = v
		}
		out[j] = dst
	}
	return out
}

// fillRow writes row i of the frame into dst in cols order, imputing NaNs
// and missing columns with the fitted means.
func fillRow(f *features.Frame, i int, cols []string, means []float64, dst []float64) error {
	for j, name := range cols {
		col, ok := f.Column(name)
		if !ok {
			return fmt.Errorf("test frame missing column %q", name)
		}
		v := col[i]
		if math.IsNaN(v) {
			v = means[j]
		}
		dst[j] = v
	}
	return nil
}

func rowOf(cols [][]float64, i int) []float64 {
	row := make([]float64, len(cols))
	for j := range cols {
		row[j] = cols[j][i]
	}
	return row
}
