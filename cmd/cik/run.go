package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ishaan-jaff/context-is-key-forecasting/internal/cache"
	"github.com/ishaan-jaff/context-is-key-forecasting/internal/forecast"
	"github.com/ishaan-jaff/context-is-key-forecasting/internal/llm"
	"github.com/ishaan-jaff/context-is-key-forecasting/internal/runner"
	"github.com/ishaan-jaff/context-is-key-forecasting/internal/task"
	"github.com/ishaan-jaff/context-is-key-forecasting/internal/usage"
)

func newRunCmd() *cobra.Command {
	var (
		flagTasks    string
		flagModel    string
		flagNSamples int
		flagNoCache  bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Evaluate the configured model on a set of forecasting tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			if flagTasks == "" {
				return fmt.Errorf("--tasks is required")
			}
			if flagModel != "" {
				cfg.LLM.Model = flagModel
			}
			if flagNSamples > 0 {
				cfg.Runner.NSamples = flagNSamples
			}

			instances, err := task.LoadInstances(flagTasks)
			if err != nil {
				return err
			}
			logger.Info("loaded tasks",
				zap.Int("count", len(instances)),
				zap.String("path", flagTasks))

			client, err := llm.New(cmd.Context(), llm.Config{
				Provider: llm.Provider(cfg.LLM.Provider),
				APIKey:   cfg.LLM.APIKey,
				BaseURL:  cfg.LLM.BaseURL,
				Timeout:  cfg.LLM.GetTimeout(),
			})
			if err != nil {
				return err
			}

			engine := forecast.New(client, engineOptions())

			var store *cache.Store
			var resultCache runner.ResultCache
			if !flagNoCache {
				store, err = cache.Open(cfg.Paths.ResultCache)
				if err != nil {
					return err
				}
				defer store.Close()
				resultCache = store
			}

			r := runner.New(engine, resultCache, runner.Config{
				NSamples:    cfg.Runner.NSamples,
				Parallelism: cfg.Runner.Parallelism,
				Logger:      logger,
			})

			results, err := r.Run(cmd.Context(), instances)
			if err != nil {
				return err
			}

			if err := recordUsage(results); err != nil {
				logger.Warn("saving usage record failed", zap.Error(err))
			}

			if err := os.MkdirAll(cfg.Paths.OutputDir, 0o755); err != nil {
				return fmt.Errorf("creating output directory: %w", err)
			}
			stamp := time.Now().UTC().Format("20060102-150405")
			csvPath := filepath.Join(cfg.Paths.OutputDir, "results-"+stamp+".csv")
			jsonPath := filepath.Join(cfg.Paths.OutputDir, "results-"+stamp+".jsonl")
			if err := runner.WriteCSV(csvPath, results); err != nil {
				return err
			}
			if err := runner.WriteJSON(jsonPath, results); err != nil {
				return err
			}

			failed := 0
			for _, res := range results {
				if res.Error != "" {
					failed++
				}
			}
			logger.Info("run complete",
				zap.Int("tasks", len(results)),
				zap.Int("failed", failed),
				zap.Float64("total_cost", engine.TotalCost()),
				zap.String("csv", csvPath),
				zap.String("jsonl", jsonPath))

			if failed > 0 {
				return fmt.Errorf("%d of %d tasks failed", failed, len(results))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&flagTasks, "tasks", "t", "", "path to YAML task fixtures")
	cmd.Flags().StringVarP(&flagModel, "model", "m", "", "override the configured model")
	cmd.Flags().IntVarP(&flagNSamples, "samples", "n", 0, "samples per task (default from config)")
	cmd.Flags().BoolVar(&flagNoCache, "no-cache", false, "skip the result cache")
	return cmd
}

func engineOptions() forecast.Options {
	opts := forecast.DefaultOptions(cfg.LLM.Model)
	opts.UseContext = cfg.Forecast.UseContext
	opts.FailOnInvalid = cfg.Forecast.FailOnInvalid
	opts.NRetries = cfg.Forecast.NRetries
	opts.BatchSize = cfg.Forecast.BatchSize
	opts.BatchSizeOnRetry = cfg.Forecast.BatchSizeOnRetry
	opts.Temperature = cfg.Forecast.Temperature
	opts.MaxTokens = cfg.Forecast.MaxTokens
	opts.MaxDigits = cfg.Forecast.MaxDigits
	opts.Profile = task.ContextProfile{
		Background:  cfg.Forecast.Background,
		Constraints: cfg.Forecast.Constraints,
		Scenario:    cfg.Forecast.Scenario,
	}
	if cfg.Forecast.TokenCostInput > 0 || cfg.Forecast.TokenCostOutput > 0 {
		opts.TokenCost = &forecast.TokenCost{
			Input:  cfg.Forecast.TokenCostInput,
			Output: cfg.Forecast.TokenCostOutput,
		}
	}
	opts.Logger = logger
	return opts
}

func recordUsage(results []runner.TaskResult) error {
	tracker, err := usage.NewTracker(cfg.Paths.UsageFile)
	if err != nil {
		return err
	}
	for _, res := range results {
		if res.CacheHit || res.Error != "" {
			continue
		}
		tracker.Record(cfg.LLM.Model, res.Task, res.InputTokens, res.OutputTokens, res.Cost)
	}
	return tracker.Save()
}
