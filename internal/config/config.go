// Package config loads harness configuration from YAML with environment
// overrides for secrets and paths.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration for the forecasting harness.
type Config struct {
	LLM      LLMConfig      `yaml:"llm"`
	Forecast ForecastConfig `yaml:"forecast"`
	Runner   RunnerConfig   `yaml:"runner"`
	Paths    PathsConfig    `yaml:"paths"`
}

// LLMConfig selects the completion backend.
type LLMConfig struct {
	Provider string `yaml:"provider"`
	APIKey   string `yaml:"api_key"`
	Model    string `yaml:"model"`
	BaseURL  string `yaml:"base_url"`
	Timeout  string `yaml:"timeout"`
}

// GetTimeout parses the request timeout, falling back to ten minutes when
// unset or unparsable.
func (c *LLMConfig) GetTimeout() time.Duration {
	if c.Timeout == "" {
		return 10 * time.Minute
	}
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 10 * time.Minute
	}
	return d
}

// ForecastConfig controls the sampling loop and prompt serialization.
type ForecastConfig struct {
	UseContext       bool    `yaml:"use_context"`
	FailOnInvalid    bool    `yaml:"fail_on_invalid"`
	NRetries         int     `yaml:"n_retries"`
	BatchSize        int     `yaml:"batch_size"`
	BatchSizeOnRetry int     `yaml:"batch_size_on_retry"`
	Temperature      float64 `yaml:"temperature"`
	MaxTokens        int     `yaml:"max_tokens"`
	MaxDigits        int     `yaml:"max_digits"`
	TokenCostInput   float64 `yaml:"token_cost_input"`
	TokenCostOutput  float64 `yaml:"token_cost_output"`
	Background       bool    `yaml:"background"`
	Constraints      bool    `yaml:"constraints"`
	Scenario         bool    `yaml:"scenario"`
}

// RunnerConfig controls batch evaluation.
type RunnerConfig struct {
	NSamples    int `yaml:"n_samples"`
	Parallelism int `yaml:"parallelism"`
}

// PathsConfig locates on-disk state.
type PathsConfig struct {
	ResultCache string `yaml:"result_cache"`
	UsageFile   string `yaml:"usage_file"`
	OutputDir   string `yaml:"output_dir"`
}

// Default returns the configuration used when no file is supplied.
func Default() *Config {
	return &Config{
		LLM: LLMConfig{
			Provider: "openai",
			Model:    "gpt-4o",
			Timeout:  "10m",
		},
		Forecast: ForecastConfig{
			UseContext:       true,
			FailOnInvalid:    true,
			NRetries:         3,
			BatchSizeOnRetry: 5,
			Temperature:      1.0,
			MaxTokens:        10000,
			MaxDigits:        6,
			Background:       true,
			Constraints:      true,
			Scenario:         true,
		},
		Runner: RunnerConfig{
			NSamples:    50,
			Parallelism: 1,
		},
		Paths: PathsConfig{
			ResultCache: "./inference_cache/results.db",
			UsageFile:   "./inference_cache/usage.json",
			OutputDir:   "./results",
		},
	}
}

// Load reads a YAML config file and overlays it on the defaults. An empty
// path returns the defaults with environment overrides applied.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("CIK_API_KEY"); v != "" {
		c.LLM.APIKey = v
	}
	if v := os.Getenv("CIK_RESULT_CACHE"); v != "" {
		c.Paths.ResultCache = v
	}
	if v := os.Getenv("CIK_USAGE_FILE"); v != "" {
		c.Paths.UsageFile = v
	}
}

// Validate rejects configurations that cannot produce a working harness.
func (c *Config) Validate() error {
	if c.LLM.Provider == "" {
		return fmt.Errorf("llm.provider is required")
	}
	if c.LLM.Model == "" {
		return fmt.Errorf("llm.model is required")
	}
	if c.Forecast.NRetries < 1 {
		return fmt.Errorf("forecast.n_retries must be at least 1, got %d", c.Forecast.NRetries)
	}
	if c.Forecast.BatchSize < 0 {
		return fmt.Errorf("forecast.batch_size must not be negative, got %d", c.Forecast.BatchSize)
	}
	if c.Forecast.BatchSizeOnRetry < 1 {
		return fmt.Errorf("forecast.batch_size_on_retry must be at least 1, got %d", c.Forecast.BatchSizeOnRetry)
	}
	if c.Runner.NSamples < 1 {
		return fmt.Errorf("runner.n_samples must be at least 1, got %d", c.Runner.NSamples)
	}
	if c.Runner.Parallelism < 1 {
		return fmt.Errorf("runner.parallelism must be at least 1, got %d", c.Runner.Parallelism)
	}
	return nil
}
