package metrics

import (
	"errors"
	"sort"
	"time"
)

// ErrEmptyAggregate is returned when aggregation is asked to summarize an
// empty input, e.g. a run where every date failed.
var ErrEmptyAggregate = errors.New("metrics: nothing to aggregate")

// MergedGroup is one row of a per-date grouped-metrics table after the model
// and rule-based results have been merged on (horizon, hour).
type MergedGroup struct {
	Date           time.Time
	HorizonMinutes int
	Hour           int
	ModelMAE       float64
	ModelRMSE      float64
	OCFMAE         float64
	OCFRMSE        float64
}

// Averages is the mean of each metric column over some set of rows.
type Averages struct {
	ModelMAE  float64
	ModelRMSE float64
	OCFMAE    float64
	OCFRMSE   float64
}

type HorizonAverages struct {
	HorizonMinutes int
	Averages
}

type HourAverages struct {
	Hour int
	Averages
}

type HorizonHourAverages struct {
	HorizonMinutes int
	Hour           int
	Averages
}

// AggregateMetrics holds the four summary views derived from the
// concatenation of all per-date grouped tables.
type AggregateMetrics struct {
	Overall       Averages
	ByHorizon     []HorizonAverages
	ByHour        []HourAverages
	ByHorizonHour []HorizonHourAverages
}

// Aggregate is a stateless reduction over per-date grouped tables: overall
// mean, mean by horizon, by hour, and by (horizon, hour). Within-date
// granularity is already (horizon, hour); aggregation averages across dates.
func Aggregate(tables [][]MergedGroup) (*AggregateMetrics, error) {
	var rows []MergedGroup
	for _, t := range tables {
		rows = append(rows, t...)
	}
	if len(rows) == 0 {
		return nil, ErrEmptyAggregate
	}

	overall := newMeanSet()
	byHorizon := make(map[int]*meanSet)
	byHour := make(map[int]*meanSet)
	byPair := make(map[GroupKey]*meanSet)

	for _, r := range rows {
		overall.add(r)
		upsert(byHorizon, r.HorizonMinutes).add(r)
		upsert(byHour, r.Hour).add(r)
		upsert(byPair, GroupKey{r.HorizonMinutes, r.Hour}).add(r)
	}

	agg := &AggregateMetrics{Overall: overall.averages()}

	for h, ms := range byHorizon {
		agg.ByHorizon = append(agg.ByHorizon, HorizonAverages{HorizonMinutes: h, Averages: ms.averages()})
	}
	sort.Slice(agg.ByHorizon, func(i, j int) bool {
		return agg.ByHorizon[i].HorizonMinutes < agg.ByHorizon[j].HorizonMinutes
	})

	for h, ms := range byHour {
		agg.ByHour = append(agg.ByHour, HourAverages{Hour: h, Averages: ms.averages()})
	}
	sort.Slice(agg.ByHour, func(i, j int) bool { return agg.ByHour[i].Hour < agg.ByHour[j].Hour })

	for k, ms := range byPair {
		agg.ByHorizonHour = append(agg.ByHorizonHour, HorizonHourAverages{
			HorizonMinutes: k.HorizonMinutes,
			Hour:           k.Hour,
			Averages:       ms.averages(),
		})
	}
	sort.Slice(agg.ByHorizonHour, func(i, j int) bool {
		if agg.ByHorizonHour[i].HorizonMinutes != agg.ByHorizonHour[j].HorizonMinutes {
			return agg.ByHorizonHour[i].HorizonMinutes < agg.ByHorizonHour[j].HorizonMinutes
		}
		return agg.ByHorizonHour[i].Hour < agg.ByHorizonHour[j].Hour
	})

	return agg, nil
}

type meanSet struct {
	sums Averages
	n    int
}

func newMeanSet() *meanSet { return &meanSet{} }

func (m *meanSet) add(r MergedGroup) {
	m.sums.ModelMAE += r.ModelMAE
	m.sums.ModelRMSE += r.ModelRMSE
	m.sums.OCFMAE += r.OCFMAE
	m.sums.OCFRMSE += r.OCFRMSE
	m.n++
}

func (m *meanSet) averages() Averages {
	n := float64(m.n)
	return Averages{
		ModelMAE:  m.sums.ModelMAE / n,
		ModelRMSE: m.sums.ModelRMSE / n,
		OCFMAE:    m.sums.OCFMAE / n,
		OCFRMSE:   m.sums.OCFRMSE / n,
	}
}

func upsert[K comparable](m map[K]*meanSet, key K) *meanSet {
	ms, ok := m[key]
	if !ok {
		ms = newMeanSet()
		m[key] = ms
	}
	return ms
}
