package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ishaan-jaff/context-is-key-forecasting/internal/llm"
)

func newModelsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List models available on the local Ollama server",
		RunE: func(cmd *cobra.Command, args []string) error {
			oc := llm.DefaultOllamaConfig()
			if cfg.LLM.Provider == string(llm.ProviderOllama) && cfg.LLM.BaseURL != "" {
				oc.BaseURL = cfg.LLM.BaseURL
			}
			client := llm.NewOllamaClient(oc)

			models, err := client.ListModels(cmd.Context())
			if err != nil {
				return err
			}
			if len(models) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No models installed.")
				return nil
			}
			for _, m := range models {
				fmt.Fprintln(cmd.OutOrStdout(), m)
			}
			return nil
		},
	}
}
