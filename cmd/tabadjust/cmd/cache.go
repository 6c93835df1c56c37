package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/anshulg954/TabAdjust/pkg/config"
	"github.com/anshulg954/TabAdjust/pkg/dataset"
	"github.com/anshulg954/TabAdjust/pkg/store"
	"github.com/anshulg954/TabAdjust/pkg/telemetry"
)

var (
	cacheBackend string
	cacheDir     string
	redisAddr    string
	redisDB      int
	warmInput    string
	warmNoLags   bool
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the preprocessed panel cache",
}

var cacheWarmCmd = &cobra.Command{
	Use:   "warm",
	Short: "Preprocess a CSV and store the panel in the cache",
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := newLogger()
		ctx := cmd.Context()

		rows, err := dataset.Load(warmInput)
		if err != nil {
			return err
		}
		panel, err := dataset.Preprocess(rows, dataset.Options{AddLaggedFeatures: !warmNoLags})
		if err != nil {
			return err
		}

		s, err := openStore(logger)
		if err != nil {
			return err
		}
		defer s.Close()

		if err := s.Save(ctx, panel); err != nil {
			return err
		}
		fmt.Printf("cached %d rows\n", len(panel))
		return nil
	},
}

var cacheInfoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show what the cache currently holds",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStore(newLogger())
		if err != nil {
			return err
		}
		defer s.Close()

		panel, err := s.LoadAll(cmd.Context())
		if err != nil {
			return err
		}
		if len(panel) == 0 {
			fmt.Println("cache is empty")
			return nil
		}
		min, _ := panel.MinTime()
		max, _ := panel.MaxTime()
		fmt.Printf("rows: %d\nseries: %d\nrange: %s .. %s\n",
			len(panel), len(panel.SeriesIDs()),
			min.Format("2006-01-02 15:04"), max.Format("2006-01-02 15:04"))
		return nil
	},
}

// openStore picks the cache backend: Redis when requested, a local JSON file
// otherwise.
func openStore(logger telemetry.Logger) (store.PanelStore, error) {
	switch cacheBackend {
	case "redis":
		return store.NewRedisPanelStore(redisAddr, redisDB, "", logger)
	case "local":
		return store.NewLocalPanelStore(cacheDir)
	default:
		return nil, fmt.Errorf("unknown cache backend %q (want local or redis)", cacheBackend)
	}
}

func init() {
	cfg := config.Load()

	cacheCmd.AddCommand(cacheWarmCmd)
	cacheCmd.AddCommand(cacheInfoCmd)
	rootCmd.AddCommand(cacheCmd)

	// Shared with the backtest command, which can read through the cache.
	rootCmd.PersistentFlags().StringVar(&cacheBackend, "cache-backend", "local", "Cache backend (local or redis)")
	rootCmd.PersistentFlags().StringVar(&cacheDir, "cache-dir", ".tabadjust", "Directory for the local cache")
	rootCmd.PersistentFlags().StringVar(&redisAddr, "redis-addr", cfg.RedisAddr, "Redis address")
	rootCmd.PersistentFlags().IntVar(&redisDB, "redis-db", cfg.RedisDB, "Redis database")

	cacheWarmCmd.Flags().StringVar(&warmInput, "input", "", "Input forecast CSV")
	cacheWarmCmd.Flags().BoolVar(&warmNoLags, "no-lags", false, "Skip lagged feature construction")
	cacheWarmCmd.MarkFlagRequired("input")
}
