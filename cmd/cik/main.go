// Command cik evaluates instruction-tuned language models on
// context-aided probabilistic time series forecasting tasks.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ishaan-jaff/context-is-key-forecasting/internal/config"
	"github.com/ishaan-jaff/context-is-key-forecasting/internal/logging"
)

var (
	flagConfig  string
	flagVerbose bool

	cfg    *config.Config
	logger *zap.Logger
)

func main() {
	root := &cobra.Command{
		Use:           "cik",
		Short:         "Context is Key forecasting benchmark harness",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			logger, err = logging.New(flagVerbose)
			if err != nil {
				return fmt.Errorf("initializing logger: %w", err)
			}
			cfg, err = config.Load(flagConfig)
			if err != nil {
				return err
			}
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if logger != nil {
				_ = logger.Sync()
			}
		},
	}

	root.PersistentFlags().StringVarP(&flagConfig, "config", "c", "", "path to YAML config file")
	root.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(newForecastCmd())
	root.AddCommand(newRunCmd())
	root.AddCommand(newModelsCmd())
	root.AddCommand(newCacheCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
