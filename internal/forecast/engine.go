// Package forecast implements the acquisition engine: a rejection-sampling
// loop that turns a task instance into exactly n validated sample paths
// drawn from a format-fragile text-generation backend, while accounting
// for every token the backend billed along the way.
package forecast

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ishaan-jaff/context-is-key-forecasting/internal/llm"
	"github.com/ishaan-jaff/context-is-key-forecasting/internal/parse"
	"github.com/ishaan-jaff/context-is-key-forecasting/internal/prompt"
	"github.com/ishaan-jaff/context-is-key-forecasting/internal/task"
)

// TokenCost prices tokens per thousand, split by direction.
type TokenCost struct {
	Input  float64 `json:"input" yaml:"input"`
	Output float64 `json:"output" yaml:"output"`
}

// Options fixes the engine's behavior at construction time.
type Options struct {
	// Model is the backend model identifier used in every request.
	Model string

	// UseContext includes the instance's textual context in prompts.
	UseContext bool

	// FailOnInvalid makes Acquire fail when the retry budget runs out
	// before n valid forecasts exist; otherwise a short result is
	// returned and callers must tolerate it.
	FailOnInvalid bool

	// NRetries bounds the number of generation rounds per call.
	NRetries int

	// BatchSize is the first request's candidate count. Zero means
	// "equal to the requested number of samples".
	BatchSize int

	// BatchSizeOnRetry is the candidate count for follow-up requests.
	BatchSizeOnRetry int

	Temperature float64
	MaxTokens   int
	MaxDigits   int

	// TokenCost enables cost estimation when non-nil. Leave nil for
	// backends that report zero usage.
	TokenCost *TokenCost

	// Profile selects which context fields reach the prompt.
	Profile task.ContextProfile

	Logger *zap.Logger
}

// DefaultOptions returns the benchmark's standard engine settings for a
// model.
func DefaultOptions(model string) Options {
	return Options{
		Model:            model,
		UseContext:       true,
		FailOnInvalid:    true,
		NRetries:         3,
		BatchSizeOnRetry: 5,
		Temperature:      1.0,
		MaxTokens:        10000,
		MaxDigits:        prompt.DefaultMaxDigits,
		Profile:          task.FullContext(),
	}
}

// Forecaster runs acquisition calls against one backend client. Per-call
// state is exclusively owned by each call; only the lifetime cost
// accumulator is shared, guarded by a mutex so concurrent calls on one
// instance stay consistent.
type Forecaster struct {
	client llm.Client
	opts   Options
	logger *zap.Logger

	mu        sync.Mutex
	totalCost float64
}

// New creates a Forecaster. Use DefaultOptions as the starting point for
// opts.
func New(client llm.Client, opts Options) *Forecaster {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Forecaster{client: client, opts: opts, logger: logger}
}

// Acquire collects nSamples valid forecasts for inst via rejection
// sampling. The conversation is built once and reused verbatim across
// retries; each round's batch size adapts to how many valid samples are
// still missing. Backend failures abort the call and propagate unmodified.
func (f *Forecaster) Acquire(ctx context.Context, inst *task.Instance, nSamples int) (*Result, error) {
	defaultBatchSize := nSamples
	if f.opts.BatchSize > 0 {
		defaultBatchSize = f.opts.BatchSize
		if f.opts.BatchSize*f.opts.NRetries < nSamples {
			return nil, &ConfigError{Reason: fmt.Sprintf(
				"batch_size %d with %d retries cannot cover %d samples",
				f.opts.BatchSize, f.opts.NRetries, nSamples)}
		}
	}
	if f.opts.BatchSizeOnRetry > defaultBatchSize {
		return nil, &ConfigError{Reason: fmt.Sprintf(
			"batch_size_on_retry %d exceeds batch size %d",
			f.opts.BatchSizeOnRetry, defaultBatchSize)}
	}

	start := time.Now()
	var clientTime time.Duration

	messages, targets := prompt.Build(inst, f.opts.Profile, f.opts.UseContext, f.opts.MaxDigits)

	// With a per-task batch cap, single requests shrink; extra retries
	// keep the total requestable volume intact.
	batchSize := defaultBatchSize
	retries := f.opts.NRetries
	if inst.MaxBatchSize > 0 {
		if inst.MaxBatchSize < batchSize {
			batchSize = inst.MaxBatchSize
		}
		retries += defaultBatchSize / batchSize
	}

	var usage Usage
	var valid [][]float64
	var rawOutputs []string

	for len(valid) < nSamples && retries > 0 {
		f.logger.Info("requesting forecast batch",
			zap.String("task", inst.Name),
			zap.String("model", f.opts.Model),
			zap.Int("batch_size", batchSize))

		clientStart := time.Now()
		resp, err := f.client.Generate(ctx, llm.Request{
			Model:       f.opts.Model,
			Messages:    messages,
			N:           batchSize,
			MaxTokens:   f.opts.MaxTokens,
			Temperature: f.opts.Temperature,
		})
		clientTime += time.Since(clientStart)
		if err != nil {
			return nil, fmt.Errorf("generation request failed: %w", err)
		}

		// Tokens are billed for rejected candidates too.
		usage.InputTokens += resp.Usage.PromptTokens
		usage.OutputTokens += resp.Usage.CompletionTokens

		for _, choice := range resp.Choices {
			rawOutputs = append(rawOutputs, choice.Content)
			values, perr := parse.Forecast(choice.Content, targets)
			if perr != nil {
				f.logger.Debug("sample rejected",
					zap.String("task", inst.Name),
					zap.Error(perr),
					zap.String("raw", choice.Content))
				continue
			}
			valid = append(valid, values)
		}

		retries--
		if len(valid) > nSamples {
			valid = valid[:nSamples]
		}

		if inst.MaxBatchSize > 0 {
			// Do not drop to the retry batch size until almost done.
			remaining := nSamples - len(valid)
			batchSize = remaining
			if batchSize < f.opts.BatchSizeOnRetry {
				batchSize = f.opts.BatchSizeOnRetry
			}
			if batchSize > inst.MaxBatchSize {
				batchSize = inst.MaxBatchSize
			}
		} else {
			batchSize = f.opts.BatchSizeOnRetry
		}

		f.logger.Info("round complete",
			zap.String("task", inst.Name),
			zap.Int("valid", len(valid)),
			zap.Int("requested", nSamples),
			zap.Int("retries_left", retries))
	}

	if f.opts.FailOnInvalid && len(valid) < nSamples {
		return nil, &InsufficientSamplesError{Requested: nSamples, Got: len(valid)}
	}

	cost := -1.0
	if f.opts.TokenCost != nil {
		inputCost := float64(usage.InputTokens) / 1000 * f.opts.TokenCost.Input
		outputCost := float64(usage.OutputTokens) / 1000 * f.opts.TokenCost.Output
		cost = math.Round((inputCost+outputCost)*100) / 100
		f.mu.Lock()
		f.totalCost += cost
		f.mu.Unlock()
		f.logger.Info("forecast cost estimated",
			zap.String("task", inst.Name),
			zap.Float64("cost", cost))
	}

	samples := make([][][]float64, len(valid))
	for i, path := range valid {
		row := make([][]float64, len(path))
		for j, v := range path {
			row[j] = []float64{v}
		}
		samples[i] = row
	}

	return &Result{
		Samples:    samples,
		Usage:      usage,
		RawOutputs: rawOutputs,
		Cost:       cost,
		TotalTime:  time.Since(start),
		ClientTime: clientTime,
	}, nil
}

// TotalCost reports the lifetime estimated cost across every call on this
// instance.
func (f *Forecaster) TotalCost() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.totalCost
}

// CacheKey derives the deterministic identifier an external cache uses for
// this engine's results. Parameters that change the distribution of
// outputs are part of the key; parameters that only pace the loop (retry
// batch size) are not. Temperature joins the key only for non-hosted
// models, matching how results were cached historically.
func (f *Forecaster) CacheKey() string {
	parts := []string{
		"model=" + f.opts.Model,
		fmt.Sprintf("use_context=%t", f.opts.UseContext),
		fmt.Sprintf("fail_on_invalid=%t", f.opts.FailOnInvalid),
		fmt.Sprintf("n_retries=%d", f.opts.NRetries),
	}
	if !strings.HasPrefix(f.opts.Model, "gpt") {
		parts = append(parts, fmt.Sprintf("temperature=%g", f.opts.Temperature))
	}
	return "Forecaster_" + strings.Join(parts, "_")
}
