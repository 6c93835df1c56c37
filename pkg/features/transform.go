package features

import (
	"fmt"
	"math"

	"github.com/anshulg954/TabAdjust/pkg/timeseries"
)

// Feature derives columns for a train/test frame pair. Any parameters a
// feature needs (e.g. a seasonal period) must be estimated from the train
// frame only, so that test information never shapes the representation.
type Feature interface {
	Name() string
	Apply(train, test *Frame) error
}

// Transformer converts a raw train/test panel pair into model-ready frames.
// Deterministic given identical inputs; the test target is guaranteed to
// remain entirely unknown after transformation.
type Transformer struct {
	feats []Feature
}

// NewTransformer builds a transformer from an explicit feature list.
func NewTransformer(feats ...Feature) *Transformer {
	return &Transformer{feats: feats}
}

// NewDefaultTransformer carries the standard feature set: running index,
// calendar features and an automatically detected seasonal signal.
func NewDefaultTransformer() *Transformer {
	return NewTransformer(
		RunningIndexFeature{},
		CalendarFeature{},
		AutoSeasonalFeature{},
	)
}

// Transform builds feature frames for the split. The returned test frame has
// every target unknown; a populated test target is reported as an error
// rather than silently passed through, since features may rebuild columns.
func (t *Transformer) Transform(train, test timeseries.Panel) (*Frame, *Frame, error) {
	trainFrame := FromPanel(train)
	testFrame := FromPanel(test)

	for _, feat := range t.feats {
		if err := feat.Apply(trainFrame, testFrame); err != nil {
			return nil, nil, fmt.Errorf("feature %s: %w", feat.Name(), err)
		}
	}

	if !testFrame.AllTargetsUnknown() {
		return nil, nil, fmt.Errorf("test target leaked through transformation")
	}
	return trainFrame, testFrame, nil
}

// RunningIndexFeature numbers each row within its series in time order. Test
// rows continue the train numbering, so the model sees a monotone position
// signal across the split boundary.
type RunningIndexFeature struct{}

func (RunningIndexFeature) Name() string { return "running_index" }

func (RunningIndexFeature) Apply(train, test *Frame) error {
	counts := make(map[string]int)
	trainIdx := make([]float64, train.NumRows())
	for i := 0; i < train.NumRows(); i++ {
		trainIdx[i] = float64(counts[train.Series[i]])
		counts[train.Series[i]]++
	}
	testIdx := make([]float64, test.NumRows())
	for i := 0; i < test.NumRows(); i++ {
		testIdx[i] = float64(counts[test.Series[i]])
		counts[test.Series[i]]++
	}
	if err := train.AddColumn("running_index", trainIdx); err != nil {
		return err
	}
	return test.AddColumn("running_index", testIdx)
}

// CalendarFeature adds month plus cyclic encodings of hour of day and day of
// year. Plain hour and day-of-week already arrive as covariates.
type CalendarFeature struct{}

func (CalendarFeature) Name() string { return "calendar" }

func (CalendarFeature) Apply(train, test *Frame) error {
	for _, f := range []*Frame{train, test} {
		n := f.NumRows()
		month := make([]float64, n)
		hourSin := make([]float64, n)
		hourCos := make([]float64, n)
		doySin := make([]float64, n)
		doyCos := make([]float64, n)
		for i := 0; i < n; i++ {
			ts := f.Times[i]
			month[i] = float64(ts.Month())
			hourFrac := (float64(ts.Hour()) + float64(ts.Minute())/60) / 24
			hourSin[i] = math.Sin(2 * math.Pi * hourFrac)
			hourCos[i] = math.Cos(2 * math.Pi * hourFrac)
			doyFrac := float64(ts.YearDay()) / 366
			doySin[i] = math.Sin(2 * math.Pi * doyFrac)
			doyCos[i] = math.Cos(2 * math.Pi * doyFrac)
		}
		// Fixed insertion order keeps the column layout deterministic.
		cols := []struct {
			name string
			vals []float64
		}{
			{"cal_month", month},
			{"cal_hour_sin", hourSin},
			{"cal_hour_cos", hourCos},
			{"cal_doy_sin", doySin},
			{"cal_doy_cos", doyCos},
		}
		for _, c := range cols {
			if err := f.AddColumn(c.name, c.vals); err != nil {
				return err
			}
		}
	}
	return nil
}

// AutoSeasonalFeature detects the dominant period of the train target by
// autocorrelation and adds sin/cos columns at that period, indexed by each
// row's position within its series. The period is estimated from the train
// frame only and reused unchanged for the test frame.
type AutoSeasonalFeature struct {
	// MaxLag bounds the period search; zero means 48 steps.
	MaxLag int
}

func (AutoSeasonalFeature) Name() string { return "auto_seasonal" }

func (s AutoSeasonalFeature) Apply(train, test *Frame) error {
	maxLag := s.MaxLag
	if maxLag <= 0 {
		maxLag = 48
	}
	period := dominantPeriod(train.Target, maxLag)

	counts := make(map[string]int)
	add := func(f *Frame, sinName, cosName string) error {
		sinCol := make([]float64, f.NumRows())
		cosCol := make([]float64, f.NumRows())
		for i := 0; i < f.NumRows(); i++ {
			pos := float64(counts[f.Series[i]])
			counts[f.Series[i]]++
			phase := 2 * math.Pi * pos / float64(period)
			sinCol[i] = math.Sin(phase)
			cosCol[i] = math.Cos(phase)
		}
		if err := f.AddColumn(sinName, sinCol); err != nil {
			return err
		}
		return f.AddColumn(cosName, cosCol)
	}
	if err := add(train, "seasonal_sin", "seasonal_cos"); err != nil {
		return err
	}
	return add(test, "seasonal_sin", "seasonal_cos")
}

// dominantPeriod returns the lag in [2, maxLag] with the highest
// autocorrelation of the target, ignoring NaNs. Falls back to 24 (one day of
// hourly data) when the series is too short or carries no signal.
func dominantPeriod(target []float64, maxLag int) int {
	var vals []float64
	for _, v := range target {
		if !math.IsNaN(v) {
			vals = append(vals, v)
		}
	}
	if len(vals) < 3*24 {
		return 24
	}
	if maxLag > len(vals)/2 {
		maxLag = len(vals) / 2
	}

	mean := 0.0
	for _, v := range vals {
		mean += v
	}
	mean /= float64(len(vals))
	var variance float64
	for _, v := range vals {
		variance += (v - mean) * (v - mean)
	}
	if variance == 0 {
		return 24
	}

	best, bestCorr := 24, math.Inf(-1)
	for lag := 2; lag <= maxLag; lag++ {
		var acc float64
		for i := lag; i < len(vals); i++ {
			acc += (vals[i] - mean) * (vals[i-lag] - mean)
		}
		corr := acc / variance
		if corr > bestCorr {
			best, bestCorr = lag, corr
		}
	}
	return best
}
