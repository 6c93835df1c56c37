package report

import (
	"context"
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/anshulg954/TabAdjust/pkg/backtest"
	"github.com/anshulg954/TabAdjust/pkg/metrics"
	"github.com/anshulg954/TabAdjust/pkg/telemetry"
)

// Writer emits the fixed artifact set of a run: per-date metrics, the four
// aggregate views, the flattened per-observation table and a YAML manifest.
// Failed dates appear as rows with empty metric cells and the error message;
// a run with failures still produces every artifact.
type Writer struct {
	dir    string
	prefix string
	logger telemetry.Logger
}

func NewWriter(dir, prefix string, logger telemetry.Logger) (*Writer, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output dir: %w", err)
	}
	if logger == nil {
		logger = telemetry.NewNopLogger()
	}
	return &Writer{dir: dir, prefix: prefix, logger: logger}, nil
}

// WriteAll writes every artifact and returns their paths.
func (w *Writer) WriteAll(ctx context.Context, res *backtest.RunResult) ([]string, error) {
	artifacts := []struct {
		suffix string
		write  func(*csv.Writer, *backtest.RunResult) error
	}{
		{"df_date.csv", w.writeDateMetrics},
		{"overall_avg_errors.csv", w.writeOverall},
		{"errors_per_horizon.csv", w.writeByHorizon},
		{"errors_per_hour.csv", w.writeByHour},
		{"errors_per_horizon_hour.csv", w.writeByHorizonHour},
		{"final_results.csv", w.writeRecords},
	}

	var paths []string
	for _, a := range artifacts {
		path := filepath.Join(w.dir, fmt.Sprintf("%s_%s", w.prefix, a.suffix))
		if err := w.writeFile(path, res, a.write); err != nil {
			return nil, err
		}
		paths = append(paths, path)
	}

	manifestPath := filepath.Join(w.dir, fmt.Sprintf("%s_manifest.yaml", w.prefix))
	if err := WriteManifest(manifestPath, res, paths); err != nil {
		return nil, err
	}
	paths = append(paths, manifestPath)

	w.logger.Info(ctx, "artifacts written", map[string]any{
		"run_id": res.RunID,
		"dir":    w.dir,
		"count":  len(paths),
	})
	return paths, nil
}

func (w *Writer) writeFile(path string, res *backtest.RunResult, fn func(*csv.Writer, *backtest.RunResult) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	if err := fn(cw, res); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("failed to flush %s: %w", path, err)
	}
	return nil
}

func (w *Writer) writeDateMetrics(cw *csv.Writer, res *backtest.RunResult) error {
	header := []string{"date", "baseline_mae", "adjuster_mae", "model_mae", "baseline_rmse", "adjuster_rmse", "model_rmse", "err"}
	if err := cw.Write(header); err != nil {
		return err
	}
	for i := range res.Dates {
		dr := &res.Dates[i]
		row := []string{dr.Date.Format("2006-01-02"), "", "", "", "", "", "", ""}
		if dr.Failed() {
			row[7] = dr.Err.Error()
		} else {
			m := dr.Evaluation.Metrics
			row[1] = formatFloat(m.BaselineMAE)
			row[2] = formatFloat(m.AdjusterMAE)
			row[3] = formatFloat(m.ModelMAE)
			row[4] = formatFloat(m.BaselineRMSE)
			row[5] = formatFloat(m.AdjusterRMSE)
			row[6] = formatFloat(m.ModelRMSE)
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	return nil
}

func (w *Writer) writeOverall(cw *csv.Writer, res *backtest.RunResult) error {
	if err := cw.Write([]string{"metric", "value"}); err != nil {
		return err
	}
	if res.Aggregate == nil {
		return nil
	}
	o := res.Aggregate.Overall
	rows := [][]string{
		{"rmse_model", formatFloat(o.ModelRMSE)},
		{"mae_model", formatFloat(o.ModelMAE)},
		{"rmse_ocf", formatFloat(o.OCFRMSE)},
		{"mae_ocf", formatFloat(o.OCFMAE)},
	}
	return cw.WriteAll(rows)
}

var groupHeader = []string{"mae_model", "rmse_model", "mae_ocf", "rmse_ocf"}

func (w *Writer) writeByHorizon(cw *csv.Writer, res *backtest.RunResult) error {
	if err := cw.Write(append([]string{"forecast_horizon_minutes"}, groupHeader...)); err != nil {
		return err
	}
	if res.Aggregate == nil {
		return nil
	}
	for _, r := range res.Aggregate.ByHorizon {
		row := append([]string{strconv.Itoa(r.HorizonMinutes)}, averagesCells(r.Averages)...)
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	return nil
}

func (w *Writer) writeByHour(cw *csv.Writer, res *backtest.RunResult) error {
	if err := cw.Write(append([]string{"hour"}, groupHeader...)); err != nil {
		return err
	}
	if res.Aggregate == nil {
		return nil
	}
	for _, r := range res.Aggregate.ByHour {
		row := append([]string{strconv.Itoa(r.Hour)}, averagesCells(r.Averages)...)
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	return nil
}

func (w *Writer) writeByHorizonHour(cw *csv.Writer, res *backtest.RunResult) error {
	if err := cw.Write(append([]string{"forecast_horizon_minutes", "hour"}, groupHeader...)); err != nil {
		return err
	}
	if res.Aggregate == nil {
		return nil
	}
	for _, r := range res.Aggregate.ByHorizonHour {
		row := append([]string{strconv.Itoa(r.HorizonMinutes), strconv.Itoa(r.Hour)}, averagesCells(r.Averages)...)
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	return nil
}

func (w *Writer) writeRecords(cw *csv.Writer, res *backtest.RunResult) error {
	header := []string{
		"forecast_period_end_datetime_utc", "hour", "forecast_horizon_minutes",
		"actual_pv_generation_MW", "forecasted_pv_generation_MW",
		"adjusted_forecast", "adjusted_forecasted_pv_generation_MW",
		"error_model", "error_ocf",
	}
	if err := cw.Write(header); err != nil {
		return err
	}
	for i := range res.Records {
		r := &res.Records[i]
		row := []string{
			r.PeriodEnd.Format(time.RFC3339),
			strconv.Itoa(r.Hour),
			strconv.Itoa(r.HorizonMinutes),
			formatFloat(r.Actual),
			formatFloat(r.Forecast),
			formatFloat(r.OCFAdjusted),
			formatFloat(r.ModelAdjusted),
			formatFloat(r.ErrModel),
			formatFloat(r.ErrOCF),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	return nil
}

func averagesCells(a metrics.Averages) []string {
	return []string{
		formatFloat(a.ModelMAE),
		formatFloat(a.ModelRMSE),
		formatFloat(a.OCFMAE),
		formatFloat(a.OCFRMSE),
	}
}

func formatFloat(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}
