package backtest

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/anshulg954/TabAdjust/pkg/baseline"
	"github.com/anshulg954/TabAdjust/pkg/features"
	"github.com/anshulg954/TabAdjust/pkg/metrics"
	"github.com/anshulg954/TabAdjust/pkg/model"
	"github.com/anshulg954/TabAdjust/pkg/telemetry"
	"github.com/anshulg954/TabAdjust/pkg/timeseries"
)

// FoldMetrics is the per-date scalar summary: the unadjusted forecast
// (baseline), the rule-based adjuster, and the model, each as MAE and RMSE.
type FoldMetrics struct {
	Date         time.Time
	BaselineMAE  float64
	BaselineRMSE float64
	AdjusterMAE  float64
	AdjusterRMSE float64
	ModelMAE     float64
	ModelRMSE    float64
}

// ObservationRecord is one flattened test-window row carrying both
// adjustment methods' results, for downstream inspection.
type ObservationRecord struct {
	SeriesID       string
	Timestamp      time.Time
	PeriodEnd      time.Time
	Hour           int
	HorizonMinutes int
	Actual         float64
	Forecast       float64
	OCFAdjusted    float64 // NaN when the row lacked historical coverage
	ModelAdjusted  float64
	ErrModel       float64
	AbsErrModel    float64
	ErrOCF         float64
	AbsErrOCF      float64
}

// DateEvaluation is the full output of one evaluation date.
type DateEvaluation struct {
	Metrics          FoldMetrics
	Grouped          []metrics.MergedGroup
	Records          []ObservationRecord
	SelectedColumns  []string
	BaselineExcluded int
	// MissingActuals counts test rows whose realized actual is unknown.
	// They stay in Records but are dropped from every metric, since a NaN
	// actual would propagate through the run aggregate.
	MissingActuals int
}

// Evaluator runs the per-date pipeline: split, transform, reduce,
// fit/predict, rule-based baseline, merge. Any stage failing fails the date;
// the orchestrator is the recovery boundary.
type Evaluator struct {
	splitter    *Splitter
	transformer *features.Transformer
	reducer     *features.Reducer
	adjuster    *baseline.Adjuster
	kind        features.ModelKind
	logger      telemetry.Logger
}

func NewEvaluator(
	splitter *Splitter,
	transformer *features.Transformer,
	reducer *features.Reducer,
	adjuster *baseline.Adjuster,
	kind features.ModelKind,
	logger telemetry.Logger,
) *Evaluator {
	if logger == nil {
		logger = telemetry.NewNopLogger()
	}
	return &Evaluator{
		splitter:    splitter,
		transformer: transformer,
		reducer:     reducer,
		adjuster:    adjuster,
		kind:        kind,
		logger:      logger,
	}
}

// EvaluateDate evaluates one reference day against the shared panel using
// the given adapter. The panel is read-only; the adapter is mutated (fitted).
func (e *Evaluator) EvaluateDate(ctx context.Context, date time.Time, panel timeseries.Panel, adapter model.Adapter) (*DateEvaluation, error) {
	split, err := e.splitter.Split(ctx, date, panel)
	if err != nil {
		return nil, err
	}

	trainFrame, testFrame, err := e.transformer.Transform(split.Train, split.Test)
	if err != nil {
		return nil, fmt.Errorf("transform: %w", err)
	}
	// Transformation may rebuild columns; re-check the leakage guarantee.
	if !testFrame.AllTargetsUnknown() {
		return nil, fmt.Errorf("transform: test target leaked")
	}

	trainReduced, testReduced, selected, err := e.reducer.Reduce(trainFrame, testFrame, e.kind)
	if err != nil {
		return nil, fmt.Errorf("reduce: %w", err)
	}

	if err := adapter.Fit(ctx, trainReduced); err != nil {
		return nil, fmt.Errorf("fit: %w", err)
	}
	preds, err := adapter.Predict(ctx, testReduced, split.TestGroundTruth)
	if err != nil {
		return nil, fmt.Errorf("predict: %w", err)
	}
	if len(preds) != len(split.TestGroundTruth) {
		return nil, fmt.Errorf("predict returned %d rows for %d test rows", len(preds), len(split.TestGroundTruth))
	}

	// The rule-based baseline sees raw panels, never transformed features.
	ocf, err := e.adjuster.Adjust(ctx, split.TestGroundTruth, split.Train)
	if err != nil {
		return nil, fmt.Errorf("baseline: %w", err)
	}

	eval, err := e.merge(date, preds, ocf)
	if err != nil {
		return nil, fmt.Errorf("merge: %w", err)
	}
	eval.SelectedColumns = selected

	e.logger.Info(ctx, "date evaluated", map[string]any{
		"date":              date.Format("2006-01-02"),
		"model":             adapter.Name(),
		"model_mae":         eval.Metrics.ModelMAE,
		"adjuster_mae":      eval.Metrics.AdjusterMAE,
		"baseline_mae":      eval.Metrics.BaselineMAE,
		"baseline_excluded": eval.BaselineExcluded,
		"missing_actuals":   eval.MissingActuals,
	})
	return eval, nil
}

// merge aligns model predictions with the rule-based records row-for-row
// (both follow the test window's order), computes per-row errors for each
// method, and joins the grouped tables on (horizon, hour).
func (e *Evaluator) merge(date time.Time, preds []model.Prediction, ocf *baseline.Result) (*DateEvaluation, error) {
	if len(preds) != len(ocf.Records) {
		return nil, fmt.Errorf("model and rule-based row counts differ: %d vs %d", len(preds), len(ocf.Records))
	}

	records := make([]ObservationRecord, len(preds))
	var keys []metrics.GroupKey
	var actual, modelAdj []float64
	missing := 0
	for i, p := range preds {
		br := &ocf.Records[i]
		if br.SeriesID != p.SeriesID || !br.Timestamp.Equal(p.Timestamp) {
			return nil, fmt.Errorf("row identity mismatch at %d: %s@%s vs %s@%s",
				i, p.SeriesID, p.Timestamp.Format(time.RFC3339),
				br.SeriesID, br.Timestamp.Format(time.RFC3339))
		}

		adjusted := p.Forecast + p.Predicted
		rec := ObservationRecord{
			SeriesID:       p.SeriesID,
			Timestamp:      p.Timestamp,
			PeriodEnd:      p.PeriodEnd,
			Hour:           p.Hour,
			HorizonMinutes: p.HorizonMinutes,
			Actual:         p.Actual,
			Forecast:       p.Forecast,
			OCFAdjusted:    br.Adjusted,
			ModelAdjusted:  adjusted,
			ErrModel:       adjusted - p.Actual,
			ErrOCF:         br.Adjusted - p.Actual,
		}
		rec.AbsErrModel = math.Abs(rec.ErrModel)
		rec.AbsErrOCF = math.Abs(rec.ErrOCF)
		records[i] = rec

		if math.IsNaN(p.Actual) {
			missing++
			continue
		}
		keys = append(keys, metrics.GroupKey{HorizonMinutes: p.HorizonMinutes, Hour: p.Hour})
		actual = append(actual, p.Actual)
		modelAdj = append(modelAdj, adjusted)
	}
	if len(actual) == 0 {
		return nil, fmt.Errorf("no test rows with a realized actual")
	}

	groupedModel := metrics.GroupedErrors(keys, actual, modelAdj)

	// Inner join on (horizon, hour): only groups both methods scored.
	ocfByKey := make(map[metrics.GroupKey]metrics.GroupErrors, len(ocf.Grouped))
	for _, g := range ocf.Grouped {
		ocfByKey[g.GroupKey] = g
	}
	var merged []metrics.MergedGroup
	for _, g := range groupedModel {
		og, ok := ocfByKey[g.GroupKey]
		if !ok {
			continue
		}
		merged = append(merged, metrics.MergedGroup{
			Date:           date,
			HorizonMinutes: g.HorizonMinutes,
			Hour:           g.Hour,
			ModelMAE:       g.MAE,
			ModelRMSE:      g.RMSE,
			OCFMAE:         og.MAE,
			OCFRMSE:        og.RMSE,
		})
	}

	return &DateEvaluation{
		Metrics: FoldMetrics{
			Date:         date,
			BaselineMAE:  ocf.BaselineMAE,
			BaselineRMSE: ocf.BaselineRMSE,
			AdjusterMAE:  ocf.AdjusterMAE,
			AdjusterRMSE: ocf.AdjusterRMSE,
			ModelMAE:     metrics.MAE(actual, modelAdj),
			ModelRMSE:    metrics.RMSE(actual, modelAdj),
		},
		Grouped:          merged,
		Records:          records,
		BaselineExcluded: ocf.Excluded,
		MissingActuals:   missing,
	}, nil
}
