package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ishaan-jaff/context-is-key-forecasting/internal/forecast"
	"github.com/ishaan-jaff/context-is-key-forecasting/internal/llm"
	"github.com/ishaan-jaff/context-is-key-forecasting/internal/task"
)

// forecastOutput is the printed shape of a single acquisition.
type forecastOutput struct {
	Task         string        `json:"task"`
	Model        string        `json:"model"`
	Samples      [][][]float64 `json:"samples"`
	InputTokens  int           `json:"input_tokens"`
	OutputTokens int           `json:"output_tokens"`
	Cost         float64       `json:"cost"`
	TotalTimeS   float64       `json:"total_time_s"`
	ClientTimeS  float64       `json:"client_time_s"`
}

func newForecastCmd() *cobra.Command {
	var (
		flagTasks    string
		flagTask     string
		flagIndex    int
		flagModel    string
		flagNSamples int
	)

	cmd := &cobra.Command{
		Use:   "forecast",
		Short: "Acquire forecasts for a single task and print them as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			if flagTasks == "" {
				return fmt.Errorf("--tasks is required")
			}
			if flagModel != "" {
				cfg.LLM.Model = flagModel
			}
			nSamples := cfg.Runner.NSamples
			if flagNSamples > 0 {
				nSamples = flagNSamples
			}

			instances, err := task.LoadInstances(flagTasks)
			if err != nil {
				return err
			}
			inst, err := selectInstance(instances, flagTask, flagIndex)
			if err != nil {
				return err
			}

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

			logger.Info("acquiring forecasts",
				zap.String("task", inst.Name),
				zap.String("model", cfg.LLM.Model),
				zap.Int("samples", nSamples))

			res, err := engine.Acquire(cmd.Context(), inst, nSamples)
			if err != nil {
				return err
			}

			out := forecastOutput{
				Task:         inst.Name,
				Model:        cfg.LLM.Model,
				Samples:      res.Samples,
				InputTokens:  res.Usage.InputTokens,
				OutputTokens: res.Usage.OutputTokens,
				Cost:         res.Cost,
				TotalTimeS:   res.TotalTime.Seconds(),
				ClientTimeS:  res.ClientTime.Seconds(),
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}

	cmd.Flags().StringVarP(&flagTasks, "tasks", "t", "", "path to YAML task fixtures")
	cmd.Flags().StringVar(&flagTask, "task", "", "select the task with this name")
	cmd.Flags().IntVar(&flagIndex, "index", 0, "select the task at this position (ignored with --task)")
	cmd.Flags().StringVarP(&flagModel, "model", "m", "", "override the configured model")
	cmd.Flags().IntVarP(&flagNSamples, "samples", "n", 0, "samples to acquire (default from config)")
	return cmd
}

// selectInstance picks one instance by name, or by index when name is empty.
func selectInstance(instances []*task.Instance, name string, index int) (*task.Instance, error) {
	if name != "" {
		for _, inst := range instances {
			if inst.Name == name {
				return inst, nil
			}
		}
		return nil, fmt.Errorf("no task named %q in fixture", name)
	}
	if index < 0 || index >= len(instances) {
		return nil, fmt.Errorf("task index %d out of range (fixture holds %d tasks)", index, len(instances))
	}
	return instances[index], nil
}
