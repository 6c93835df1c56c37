package features

import (
	"fmt"
	"math"
	"time"

	"github.com/anshulg954/TabAdjust/pkg/timeseries"
)

// Frame is a model-ready feature table: named float columns plus structural
// row identity (series, timestamp) and the target vector, kept outside the
// column set so models can never treat them as plain features. A NaN target
// means "unknown".
type Frame struct {
	Columns []string
	Data    map[string][]float64
	Series  []string
	Times   []time.Time
	Target  []float64
}

// NewFrame allocates an empty frame for n rows.
func NewFrame(n int) *Frame {
	return &Frame{
		Data:   make(map[string][]float64),
		Series: make([]string, n),
		Times:  make([]time.Time, n),
		Target: make([]float64, n),
	}
}

// FromPanel builds a frame from a panel: one column per covariate name (the
// union across records; missing values become NaN), rows in panel order.
func FromPanel(p timeseries.Panel) *Frame {
	f := NewFrame(len(p))
	names := p.CovariateNames()
	f.Columns = names
	for _, name := range names {
		f.Data[name] = make([]float64, len(p))
	}
	for i := range p {
		f.Series[i] = p[i].SeriesID
		f.Times[i] = p[i].Timestamp
		f.Target[i] = p[i].Target
		for _, name := range names {
			if v, ok := p[i].Covariates[name]; ok {
				f.Data[name][i] = v
			} else {
				f.Data[name][i] = math.NaN()
			}
		}
	}
	return f
}

// NumRows returns the row count.
func (f *Frame) NumRows() int { return len(f.Target) }

// Column returns the named column vector.
func (f *Frame) Column(name string) ([]float64, bool) {
	col, ok := f.Data[name]
	return col, ok
}

// AddColumn appends a column. The vector length must match the row count.
func (f *Frame) AddColumn(name string, values []float64) error {
	if len(values) != f.NumRows() {
		return fmt.Errorf("column %q has %d values for %d rows", name, len(values), f.NumRows())
	}
	if _, exists := f.Data[name]; exists {
		return fmt.Errorf("column %q already present", name)
	}
	f.Columns = append(f.Columns, name)
	f.Data[name] = values
	return nil
}

// DropColumns removes the named columns; absent names are ignored.
func (f *Frame) DropColumns(names ...string) {
	drop := make(map[string]struct{}, len(names))
	for _, n := range names {
		drop[n] = struct{}{}
	}
	kept := f.Columns[:0]
	for _, c := range f.Columns {
		if _, ok := drop[c]; ok {
			delete(f.Data, c)
			continue
		}
		kept = append(kept, c)
	}
	f.Columns = kept
}

// SelectColumns keeps only the named columns, in the given order. Names not
// present in the frame are ignored.
func (f *Frame) SelectColumns(names []string) {
	keep := make(map[string]struct{}, len(names))
	ordered := make([]string, 0, len(names))
	for _, n := range names {
		if _, ok := f.Data[n]; ok {
			if _, dup := keep[n]; !dup {
				keep[n] = struct{}{}
				ordered = append(ordered, n)
			}
		}
	}
	for _, c := range f.Columns {
		if _, ok := keep[c]; !ok {
			delete(f.Data, c)
		}
	}
	f.Columns = ordered
}

// Clone deep-copies the frame.
func (f *Frame) Clone() *Frame {
	out := NewFrame(f.NumRows())
	out.Columns = append([]string(nil), f.Columns...)
	copy(out.Series, f.Series)
	copy(out.Times, f.Times)
	copy(out.Target, f.Target)
	for name, col := range f.Data {
		cp := make([]float64, len(col))
		copy(cp, col)
		out.Data[name] = cp
	}
	return out
}

// AllTargetsUnknown reports whether every target value is NaN.
func (f *Frame) AllTargetsUnknown() bool {
	for _, v := range f.Target {
		if !math.IsNaN(v) {
			return false
		}
	}
	return true
}

// Row materializes row i in column order.
func (f *Frame) Row(i int) []float64 {
	row := make([]float64, len(f.Columns))
	for j, c := range f.Columns {
		row[j] = f.Data[c][i]
	}
	return row
}

// Matrix materializes the frame row-major in column order.
func (f *Frame) Matrix() [][]float64 {
	m := make([][]float64, f.NumRows())
	for i := range m {
		m[i] = f.Row(i)
	}
	return m
}
