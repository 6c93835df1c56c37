package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/anshulg954/TabAdjust/pkg/config"
	"github.com/anshulg954/TabAdjust/pkg/telemetry"
)

var (
	logLevel  string
	outputDir string
)

var rootCmd = &cobra.Command{
	Use:   "tabadjust",
	Short: "Tabadjust CLI",
	Long:  `Walk-forward backtesting of forecast adjustment models against solar PV forecast data.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cfg := config.Load()

	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", cfg.LogLevel, "Log level (DEBUG, INFO, WARN, ERROR)")
	rootCmd.PersistentFlags().StringVar(&outputDir, "output-dir", cfg.OutputDir, "Directory for run artifacts")

	viper.SetEnvPrefix("TABADJUST")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
	viper.BindPFlag("log-level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("output-dir", rootCmd.PersistentFlags().Lookup("output-dir"))
}

func newLogger() telemetry.Logger {
	return telemetry.NewSlogAdapter(viper.GetString("log-level"))
}
