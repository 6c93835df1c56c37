package timeseries

import (
	"encoding/json"
	"math"
	"time"
)

// recordJSON is the wire form of a Record. Unknown values (NaN) round-trip
// as JSON null, which encoding/json cannot do for plain float64 fields.
type recordJSON struct {
	SeriesID       string              `json:"series_id"`
	Timestamp      time.Time           `json:"timestamp"`
	PeriodEnd      time.Time           `json:"period_end"`
	CreatedAt      time.Time           `json:"created_at"`
	HorizonMinutes int                 `json:"horizon_minutes"`
	Hour           int                 `json:"hour"`
	DayOfWeek      int                 `json:"day_of_week"`
	Forecast       *float64            `json:"forecast_mw"`
	Actual         *float64            `json:"actual_mw"`
	ForecastError  *float64            `json:"forecast_error_mw"`
	Target         *float64            `json:"target"`
	Covariates     map[string]*float64 `json:"covariates,omitempty"`
}

func (r Record) MarshalJSON() ([]byte, error) {
	out := recordJSON{
		SeriesID:       r.SeriesID,
		Timestamp:      r.Timestamp,
		PeriodEnd:      r.PeriodEnd,
		CreatedAt:      r.CreatedAt,
		HorizonMinutes: r.HorizonMinutes,
		Hour:           r.Hour,
		DayOfWeek:      r.DayOfWeek,
		Forecast:       fptr(r.Forecast),
		Actual:         fptr(r.Actual),
		ForecastError:  fptr(r.ForecastError),
		Target:         fptr(r.Target),
	}
	if r.Covariates != nil {
		out.Covariates = make(map[string]*float64, len(r.Covariates))
		for k, v := range r.Covariates {
			out.Covariates[k] = fptr(v)
		}
	}
	return json.Marshal(out)
}

func (r *Record) UnmarshalJSON(data []byte) error {
	var in recordJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	r.SeriesID = in.SeriesID
	r.Timestamp = in.Timestamp
	r.PeriodEnd = in.PeriodEnd
	r.CreatedAt = in.CreatedAt
	r.HorizonMinutes = in.HorizonMinutes
	r.Hour = in.Hour
	r.DayOfWeek = in.DayOfWeek
	r.Forecast = fval(in.Forecast)
	r.Actual = fval(in.Actual)
	r.ForecastError = fval(in.ForecastError)
	r.Target = fval(in.Target)
	r.Covariates = nil
	if in.Covariates != nil {
		r.Covariates = make(map[string]float64, len(in.Covariates))
		for k, v := range in.Covariates {
			r.Covariates[k] = fval(v)
		}
	}
	return nil
}

func fptr(v float64) *float64 {
	if math.IsNaN(v) {
		return nil
	}
	return &v
}

func fval(p *float64) float64 {
	if p == nil {
		return math.NaN()
	}
	return *p
}
