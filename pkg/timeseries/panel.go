package timeseries

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// Record is one forecast observation: a forecast issued for a period starting
// at Timestamp with a given lead time, plus the realized outcome. Target is
// the value models learn to predict (the forecast error, MW); it is NaN when
// unknown, which is how a masked test window is represented.
type Record struct {
	SeriesID       string
	Timestamp      time.Time
	PeriodEnd      time.Time
	CreatedAt      time.Time
	HorizonMinutes int
	Hour           int
	DayOfWeek      int
	Forecast       float64
	Actual         float64
	ForecastError  float64
	Target         float64
	Covariates     map[string]float64
}

// TargetKnown reports whether the record's target has been populated.
func (r *Record) TargetKnown() bool {
	return !math.IsNaN(r.Target)
}

// Panel is a collection of records keyed by (series, timestamp), sorted by
// series then timestamp with each timestamp unique within a series. The
// backtest engine treats a panel as read-only for the duration of a run.
type Panel []Record

// Validate checks the panel invariant: sorted by (series, timestamp) with
// strictly increasing timestamps per series.
func (p Panel) Validate() error {
	for i := 1; i < len(p); i++ {
		prev, cur := &p[i-1], &p[i]
		if cur.SeriesID < prev.SeriesID {
			return fmt.Errorf("panel not sorted by series at row %d: %q after %q", i, cur.SeriesID, prev.SeriesID)
		}
		if cur.SeriesID == prev.SeriesID && !cur.Timestamp.After(prev.Timestamp) {
			return fmt.Errorf("panel timestamps not strictly increasing for series %q at row %d (%s)",
				cur.SeriesID, i, cur.Timestamp.Format(time.RFC3339))
		}
	}
	return nil
}

// Sort orders the panel by (series, timestamp).
func (p Panel) Sort() {
	sort.SliceStable(p, func(i, j int) bool {
		if p[i].SeriesID != p[j].SeriesID {
			return p[i].SeriesID < p[j].SeriesID
		}
		return p[i].Timestamp.Before(p[j].Timestamp)
	})
}

// Window returns the records with start <= Timestamp <= end, preserving order.
func (p Panel) Window(start, end time.Time) Panel {
	out := make(Panel, 0, len(p))
	for i := range p {
		ts := p[i].Timestamp
		if !ts.Before(start) && !ts.After(end) {
			out = append(out, p[i])
		}
	}
	return out
}

// Clone deep-copies the panel, including covariate maps.
func (p Panel) Clone() Panel {
	out := make(Panel, len(p))
	copy(out, p)
	for i := range out {
		if out[i].Covariates != nil {
			cov := make(map[string]float64, len(out[i].Covariates))
			for k, v := range out[i].Covariates {
				cov[k] = v
			}
			out[i].Covariates = cov
		}
	}
	return out
}

// MaskTargets returns a deep copy with every target set to NaN.
func (p Panel) MaskTargets() Panel {
	out := p.Clone()
	for i := range out {
		out[i].Target = math.NaN()
	}
	return out
}

// AllTargetsUnknown reports whether no record carries a populated target.
func (p Panel) AllTargetsUnknown() bool {
	for i := range p {
		if p[i].TargetKnown() {
			return false
		}
	}
	return true
}

// MinTime returns the earliest timestamp in the panel; ok is false when empty.
func (p Panel) MinTime() (time.Time, bool) {
	if len(p) == 0 {
		return time.Time{}, false
	}
	min := p[0].Timestamp
	for i := 1; i < len(p); i++ {
		if p[i].Timestamp.Before(min) {
			min = p[i].Timestamp
		}
	}
	return min, true
}

// MaxTime returns the latest timestamp in the panel; ok is false when empty.
func (p Panel) MaxTime() (time.Time, bool) {
	if len(p) == 0 {
		return time.Time{}, false
	}
	max := p[0].Timestamp
	for i := 1; i < len(p); i++ {
		if p[i].Timestamp.After(max) {
			max = p[i].Timestamp
		}
	}
	return max, true
}

// SeriesIDs returns the distinct series identifiers in sorted order.
func (p Panel) SeriesIDs() []string {
	seen := make(map[string]struct{})
	var ids []string
	for i := range p {
		if _, ok := seen[p[i].SeriesID]; !ok {
			seen[p[i].SeriesID] = struct{}{}
			ids = append(ids, p[i].SeriesID)
		}
	}
	sort.Strings(ids)
	return ids
}

// CovariateNames returns the sorted union of covariate keys across the panel.
func (p Panel) CovariateNames() []string {
	seen := make(map[string]struct{})
	for i := range p {
		for k := range p[i].Covariates {
			seen[k] = struct{}{}
		}
	}
	names := make([]string, 0, len(seen))
	for k := range seen {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
