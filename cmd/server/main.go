// Command server runs the household capture pipeline and its offline tools.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/scottring/family-planner-sub006/pkg/config"
)

var (
	configPath string
	cfg        config.Config
	logger     *slog.Logger
	closeLog   = func() error { return nil }
)

var rootCmd = &cobra.Command{
	Use:           "server",
	Short:         "Household capture pipeline",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		logger, closeLog = config.SetupLogger(cfg.Log.File, cfg.LogLevel())
		slog.SetDefault(logger)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		closeLog()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", os.Getenv("CAPTURE_CONFIG"), "path to YAML config file")
	rootCmd.AddCommand(serveCmd(), parseCmd(), ocrFieldsCmd())
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
