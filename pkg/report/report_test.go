package report

import (
	"context"
	"encoding/csv"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/anshulg954/TabAdjust/pkg/backtest"
	"github.com/anshulg954/TabAdjust/pkg/metrics"
)

func sampleResult() *backtest.RunResult {
	d1 := time.Date(2024, 6, 8, 0, 0, 0, 0, time.UTC)
	d2 := time.Date(2024, 6, 9, 0, 0, 0, 0, time.UTC)

	eval := &backtest.DateEvaluation{
		Metrics: backtest.FoldMetrics{
			Date:         d1,
			BaselineMAE:  10,
			BaselineRMSE: 10,
			AdjusterMAE:  1,
			AdjusterRMSE: 1.5,
			ModelMAE:     0.5,
			ModelRMSE:    0.8,
		},
		Grouped: []metrics.MergedGroup{
			{Date: d1, HorizonMinutes: 60, Hour: 10, ModelMAE: 0.5, ModelRMSE: 0.8, OCFMAE: 1, OCFRMSE: 1.5},
		},
		Records: []backtest.ObservationRecord{{
			SeriesID:       "horizon_60",
			Timestamp:      d1.Add(10 * time.Hour),
			PeriodEnd:      d1.Add(10*time.Hour + 30*time.Minute),
			Hour:           10,
			HorizonMinutes: 60,
			Actual:         90,
			Forecast:       100,
			OCFAdjusted:    91,
			ModelAdjusted:  90.5,
			ErrModel:       0.5,
			AbsErrModel:    0.5,
			ErrOCF:         1,
			AbsErrOCF:      1,
		}},
	}

	agg, _ := metrics.Aggregate([][]metrics.MergedGroup{eval.Grouped})

	return &backtest.RunResult{
		RunID:     "run-test",
		ModelName: "gbt",
		Dates: []backtest.DateResult{
			{Date: d1, Evaluation: eval},
			{Date: d2, Err: errors.New("no rows in test window")},
		},
		Aggregate: agg,
		Records:   eval.Records,
		Started:   d1,
		Elapsed:   3 * time.Second,
	}
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestWriteAllProducesArtifacts(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWriter(dir, "gbt", nil)
	require.NoError(t, err)

	paths, err := w.WriteAll(context.Background(), sampleResult())
	require.NoError(t, err)
	require.Len(t, paths, 7)

	for _, p := range paths {
		_, err := os.Stat(p)
		assert.NoError(t, err, p)
		assert.True(t, strings.HasPrefix(filepath.Base(p), "gbt_"))
	}
}

func TestDateMetricsRows(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWriter(dir, "gbt", nil)
	require.NoError(t, err)
	_, err = w.WriteAll(context.Background(), sampleResult())
	require.NoError(t, err)

	rows := readCSV(t, filepath.Join(dir, "gbt_df_date.csv"))
	require.Len(t, rows, 3)
	assert.Equal(t, "date", rows[0][0])

	ok := rows[1]
	assert.Equal(t, "2024-06-08", ok[0])
	assert.Equal(t, "0.5", ok[3])
	assert.Empty(t, ok[7])

	// Failed dates keep their row: empty metrics, error message in the last cell.
	failed := rows[2]
	assert.Equal(t, "2024-06-09", failed[0])
	assert.Empty(t, failed[1])
	assert.Equal(t, "no rows in test window", failed[7])
}

func TestAggregateArtifacts(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWriter(dir, "gbt", nil)
	require.NoError(t, err)
	_, err = w.WriteAll(context.Background(), sampleResult())
	require.NoError(t, err)

	overall := readCSV(t, filepath.Join(dir, "gbt_overall_avg_errors.csv"))
	require.Len(t, overall, 5)
	assert.Equal(t, []string{"rmse_model", "0.8"}, overall[1])
	assert.Equal(t, []string{"mae_ocf", "1"}, overall[4])

	horizon := readCSV(t, filepath.Join(dir, "gbt_errors_per_horizon.csv"))
	require.Len(t, horizon, 2)
	assert.Equal(t, "60", horizon[1][0])

	pair := readCSV(t, filepath.Join(dir, "gbt_errors_per_horizon_hour.csv"))
	require.Len(t, pair, 2)
	assert.Equal(t, []string{"60", "10", "0.5", "0.8", "1", "1.5"}, pair[1])
}

func TestFinalResultsRows(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWriter(dir, "gbt", nil)
	require.NoError(t, err)

	res := sampleResult()
	// A coverage gap leaves the rule-based cells empty rather than zero.
	res.Records[0].OCFAdjusted = math.NaN()
	res.Records[0].ErrOCF = math.NaN()

	_, err = w.WriteAll(context.Background(), res)
	require.NoError(t, err)

	rows := readCSV(t, filepath.Join(dir, "gbt_final_results.csv"))
	require.Len(t, rows, 2)
	assert.Equal(t, "forecast_period_end_datetime_utc", rows[0][0])

	row := rows[1]
	assert.Equal(t, "10", row[1])
	assert.Equal(t, "60", row[2])
	assert.Equal(t, "90", row[3])
	assert.Empty(t, row[5], "uncovered adjustment stays blank")
	assert.Equal(t, "90.5", row[6])
}

func TestWriteAllAggregateNil(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWriter(dir, "gbt", nil)
	require.NoError(t, err)

	res := sampleResult()
	res.Aggregate = nil

	_, err = w.WriteAll(context.Background(), res)
	require.NoError(t, err)

	overall := readCSV(t, filepath.Join(dir, "gbt_overall_avg_errors.csv"))
	assert.Len(t, overall, 1, "header only when there is nothing to aggregate")
}

func TestManifest(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWriter(dir, "gbt", nil)
	require.NoError(t, err)

	_, err = w.WriteAll(context.Background(), sampleResult())
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dir, "gbt_manifest.yaml"))
	require.NoError(t, err)

	var m Manifest
	require.NoError(t, yaml.Unmarshal(data, &m))
	assert.Equal(t, "run-test", m.RunID)
	assert.Equal(t, "gbt", m.Model)
	assert.Equal(t, 2, m.Dates)
	assert.Equal(t, 1, m.Succeeded)
	assert.Equal(t, 1, m.Failed)
	require.Len(t, m.Failures, 1)
	assert.Equal(t, "2024-06-09", m.Failures[0].Date)
	assert.Len(t, m.Artifacts, 6)
}
