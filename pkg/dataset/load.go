package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"time"
)

// Raw column names of the adjuster dataset. forecast_version is accepted in
// the input but discarded during preprocessing.
const (
	colPeriodStart = "forecast_period_start_datetime_utc"
	colPeriodEnd   = "forecast_period_end_datetime_utc"
	colCreatedAt   = "forecast_creation_datetime_utc"
	colHorizon     = "forecast_horizon_minutes"
	colForecast    = "forecasted_pv_generation_mw"
	colActual      = "actual_pv_generation_mw"
	colError       = "forecast_error_mw"
)

// RawRow is one line of the input CSV before feature engineering.
type RawRow struct {
	PeriodStart    time.Time
	PeriodEnd      time.Time
	CreatedAt      time.Time
	HorizonMinutes int
	Forecast       float64
	Actual         float64
	ForecastError  float64
}

// Load reads the adjuster dataset from a CSV file. Header names are matched
// case-insensitively. When the forecast error column is absent it is derived
// as actual minus forecast.
func Load(path string) ([]RawRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open dataset: %w", err)
	}
	defer f.Close()
	return Read(f)
}

// Read parses the adjuster dataset from a reader.
func Read(r io.Reader) ([]RawRow, error) {
	cr := csv.NewReader(r)
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}
	idx := make(map[string]int, len(header))
	for i, name := range header {
		idx[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, required := range []string{colPeriodStart, colHorizon, colForecast, colActual} {
		if _, ok := idx[required]; !ok {
			return nil, fmt.Errorf("dataset missing required column %q", required)
		}
	}

	var rows []RawRow
	line := 1
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV line %d: %w", line, err)
		}

		row := RawRow{}
		if row.PeriodStart, err = parseTime(field(rec, idx, colPeriodStart)); err != nil {
			return nil, fmt.Errorf("line %d: bad %s: %w", line, colPeriodStart, err)
		}
		if v := field(rec, idx, colPeriodEnd); v != "" {
			if row.PeriodEnd, err = parseTime(v); err != nil {
				return nil, fmt.Errorf("line %d: bad %s: %w", line, colPeriodEnd, err)
			}
		}
		if v := field(rec, idx, colCreatedAt); v != "" {
			if row.CreatedAt, err = parseTime(v); err != nil {
				return nil, fmt.Errorf("line %d: bad %s: %w", line, colCreatedAt, err)
			}
		}
		if row.HorizonMinutes, err = parseIntField(field(rec, idx, colHorizon)); err != nil {
			return nil, fmt.Errorf("line %d: bad %s: %w", line, colHorizon, err)
		}
		if row.Forecast, err = parseFloatField(field(rec, idx, colForecast)); err != nil {
			return nil, fmt.Errorf("line %d: bad %s: %w", line, colForecast, err)
		}
		if row.Actual, err = parseFloatField(field(rec, idx, colActual)); err != nil {
			return nil, fmt.Errorf("line %d: bad %s: %w", line, colActual, err)
		}
		if v := field(rec, idx, colError); v != "" {
			if row.ForecastError, err = parseFloatField(v); err != nil {
				return nil, fmt.Errorf("line %d: bad %s: %w", line, colError, err)
			}
		} else {
			row.ForecastError = row.Actual - row.Forecast
		}
		rows = append(rows, row)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("dataset contains no rows")
	}
	return rows, nil
}

func field(rec []string, idx map[string]int, name string) string {
	i, ok := idx[name]
	if !ok || i >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[i])
}

var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05-07:00",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

func parseTime(s string) (time.Time, error) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

func parseIntField(s string) (int, error) {
	if s == "" {
		return 0, fmt.Errorf("empty value")
	}
	// Horizon values sometimes arrive as floats ("15.0").
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	return int(f), nil
}

func parseFloatField(s string) (float64, error) {
	if s == "" || strings.EqualFold(s, "nan") {
		return math.NaN(), nil
	}
	return strconv.ParseFloat(s, 64)
}
