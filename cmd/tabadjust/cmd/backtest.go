package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/anshulg954/TabAdjust/pkg/backtest"
	"github.com/anshulg954/TabAdjust/pkg/baseline"
	"github.com/anshulg954/TabAdjust/pkg/config"
	"github.com/anshulg954/TabAdjust/pkg/dataset"
	"github.com/anshulg954/TabAdjust/pkg/features"
	"github.com/anshulg954/TabAdjust/pkg/model"
	"github.com/anshulg954/TabAdjust/pkg/report"
	"github.com/anshulg954/TabAdjust/pkg/store"
	"github.com/anshulg954/TabAdjust/pkg/telemetry"
	"github.com/anshulg954/TabAdjust/pkg/timeseries"
)

var (
	btInput       string
	btStart       string
	btEnd         string
	btModel       string
	btPrefix      string
	btWindowDays  int
	btTopK        int
	btNoLags      bool
	btParallelism int
	btDateTimeout time.Duration
	btUseCache    bool
)

var backtestCmd = &cobra.Command{
	Use:   "backtest",
	Short: "Run a walk-forward backtest over a date range",
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := newLogger()
		ctx := cmd.Context()

		start, err := time.ParseInLocation("2006-01-02", btStart, time.UTC)
		if err != nil {
			return fmt.Errorf("invalid --start: %w", err)
		}
		end, err := time.ParseInLocation("2006-01-02", btEnd, time.UTC)
		if err != nil {
			return fmt.Errorf("invalid --end: %w", err)
		}
		if end.Before(start) {
			return fmt.Errorf("--end %s precedes --start %s", btEnd, btStart)
		}

		kind := features.ModelKind(btModel)
		factory, err := model.NewFactory(kind, logger)
		if err != nil {
			return err
		}

		panel, err := loadPanel(ctx, logger)
		if err != nil {
			return err
		}

		splitter := backtest.NewSplitter(btWindowDays, logger)
		transformer := features.NewDefaultTransformer()
		reducer := features.NewReducer(model.NewPermutationRanker(), btTopK)
		adjuster := baseline.New(logger)
		evaluator := backtest.NewEvaluator(splitter, transformer, reducer, adjuster, kind, logger)

		orch := backtest.NewOrchestrator(evaluator, factory, backtest.OrchestratorConfig{
			Parallelism: btParallelism,
			DateTimeout: btDateTimeout,
		}, logger, telemetry.NewPrometheusMetrics())

		result, err := orch.Run(ctx, panel, backtest.DateRange(start, end))
		if err != nil {
			return err
		}

		prefix := btPrefix
		if prefix == "" {
			prefix = btModel
		}
		writer, err := report.NewWriter(viper.GetString("output-dir"), prefix, logger)
		if err != nil {
			return err
		}
		paths, err := writer.WriteAll(ctx, result)
		if err != nil {
			return err
		}

		fmt.Printf("run %s: %d/%d dates succeeded\n", result.RunID, result.Succeeded(), len(result.Dates))
		for _, p := range paths {
			fmt.Println(p)
		}
		return nil
	},
}

// loadPanel reads the panel from the cache when enabled and warm, otherwise
// from the input CSV, writing the cache back for the next run.
func loadPanel(ctx context.Context, logger telemetry.Logger) (timeseries.Panel, error) {
	var cache store.PanelStore
	if btUseCache {
		var err error
		cache, err = openStore(logger)
		if err != nil {
			return nil, err
		}
		defer cache.Close()

		panel, err := cache.LoadAll(ctx)
		if err != nil {
			logger.Warn(ctx, "panel cache unavailable, falling back to CSV", map[string]any{"error": err.Error()})
		} else if len(panel) > 0 {
			logger.Info(ctx, "panel loaded from cache", map[string]any{"rows": len(panel)})
			return panel, nil
		}
	}

	if btInput == "" {
		return nil, fmt.Errorf("--input is required when the cache is cold")
	}
	rows, err := dataset.Load(btInput)
	if err != nil {
		return nil, err
	}
	panel, err := dataset.Preprocess(rows, dataset.Options{AddLaggedFeatures: !btNoLags})
	if err != nil {
		return nil, err
	}
	logger.Info(ctx, "panel built from CSV", map[string]any{"rows": len(panel), "input": btInput})

	if cache != nil {
		if err := cache.Save(ctx, panel); err != nil {
			logger.Warn(ctx, "failed to write panel cache", map[string]any{"error": err.Error()})
		}
	}
	return panel, nil
}

func init() {
	cfg := config.Load()

	rootCmd.AddCommand(backtestCmd)
	backtestCmd.Flags().StringVar(&btInput, "input", "", "Input forecast CSV")
	backtestCmd.Flags().StringVar(&btStart, "start", "", "First evaluation date (YYYY-MM-DD, UTC)")
	backtestCmd.Flags().StringVar(&btEnd, "end", "", "Last evaluation date (YYYY-MM-DD, UTC)")
	backtestCmd.Flags().StringVar(&btModel, "model", string(features.KindGradientBoosted), "Model kind (gbt or incontext)")
	backtestCmd.Flags().StringVar(&btPrefix, "prefix", "", "Artifact filename prefix (defaults to the model kind)")
	backtestCmd.Flags().IntVar(&btWindowDays, "train-window", cfg.TrainWindowDays, "Training lookback in days")
	backtestCmd.Flags().IntVar(&btTopK, "top-k", 20, "Feature columns kept by importance selection")
	backtestCmd.Flags().BoolVar(&btNoLags, "no-lags", false, "Skip lagged feature construction")
	backtestCmd.Flags().IntVar(&btParallelism, "parallelism", cfg.Parallelism, "Concurrent date evaluations")
	backtestCmd.Flags().DurationVar(&btDateTimeout, "date-timeout", cfg.DateTimeout, "Per-date evaluation timeout (0 = none)")
	backtestCmd.Flags().BoolVar(&btUseCache, "cache", false, "Use the panel cache")
	backtestCmd.MarkFlagRequired("start")
	backtestCmd.MarkFlagRequired("end")
}
