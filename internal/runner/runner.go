// Package runner evaluates a forecaster over a set of task instances.
// Individual acquisition calls stay strictly sequential internally; the
// runner parallelizes across tasks with a bounded worker count and
// consults the result cache before touching the backend.
package runner

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ishaan-jaff/context-is-key-forecasting/internal/forecast"
	"github.com/ishaan-jaff/context-is-key-forecasting/internal/task"
)

// DefaultNSamples is the benchmark's standard sample count per task.
const DefaultNSamples = 50

// Acquirer is the engine surface the runner needs.
type Acquirer interface {
	Acquire(ctx context.Context, inst *task.Instance, nSamples int) (*forecast.Result, error)
	CacheKey() string
}

// ResultCache is the optional cache surface the runner consults.
type ResultCache interface {
	Get(cacheKey, fingerprint string) (*forecast.Result, bool, error)
	Put(cacheKey, fingerprint string, res *forecast.Result) error
}

// TaskResult summarizes one task's evaluation.
type TaskResult struct {
	RunID        string        `json:"run_id"`
	Task         string        `json:"task"`
	Samples      int           `json:"samples"`
	Horizon      int           `json:"horizon"`
	InputTokens  int           `json:"input_tokens"`
	OutputTokens int           `json:"output_tokens"`
	Cost         float64       `json:"cost"`
	TotalTime    time.Duration `json:"total_time"`
	ClientTime   time.Duration `json:"client_time"`
	CacheHit     bool          `json:"cache_hit"`
	Error        string        `json:"error,omitempty"`
}

// Config parameterizes a Runner.
type Config struct {
	NSamples    int
	Parallelism int
	Logger      *zap.Logger
}

// Runner drives the evaluation.
type Runner struct {
	engine   Acquirer
	cache    ResultCache
	nSamples int
	workers  int
	logger   *zap.Logger
}

// New creates a Runner. cache may be nil to disable caching.
func New(engine Acquirer, cache ResultCache, cfg Config) *Runner {
	nSamples := cfg.NSamples
	if nSamples <= 0 {
		nSamples = DefaultNSamples
	}
	workers := cfg.Parallelism
	if workers <= 0 {
		workers = 1
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		engine:   engine,
		cache:    cache,
		nSamples: nSamples,
		workers:  workers,
		logger:   logger,
	}
}

// Run evaluates every instance and returns one TaskResult per instance, in
// input order. A failed task records its error and does not stop the other
// tasks; only context cancellation aborts the whole run.
func (r *Runner) Run(ctx context.Context, instances []*task.Instance) ([]TaskResult, error) {
	results := make([]TaskResult, len(instances))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)

	for i, inst := range instances {
		i, inst := i, inst
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = r.runOne(gctx, inst)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (r *Runner) runOne(ctx context.Context, inst *task.Instance) TaskResult {
	out := TaskResult{
		RunID:   uuid.NewString(),
		Task:    inst.Name,
		Horizon: inst.Horizon(),
	}

	fingerprint := inst.Fingerprint()
	if r.cache != nil {
		cached, ok, err := r.cache.Get(r.engine.CacheKey(), fingerprint)
		if err != nil {
			r.logger.Warn("cache lookup failed", zap.String("task", inst.Name), zap.Error(err))
		} else if ok {
			r.logger.Info("cache hit", zap.String("task", inst.Name))
			fill(&out, cached)
			out.CacheHit = true
			return out
		}
	}

	res, err := r.engine.Acquire(ctx, inst, r.nSamples)
	if err != nil {
		r.logger.Error("acquisition failed", zap.String("task", inst.Name), zap.Error(err))
		out.Error = err.Error()
		return out
	}
	fill(&out, res)

	if r.cache != nil {
		if err := r.cache.Put(r.engine.CacheKey(), fingerprint, res); err != nil {
			r.logger.Warn("cache write failed", zap.String("task", inst.Name), zap.Error(err))
		}
	}
	return out
}

func fill(out *TaskResult, res *forecast.Result) {
	out.Samples = res.NumSamples()
	out.InputTokens = res.Usage.InputTokens
	out.OutputTokens = res.Usage.OutputTokens
	out.Cost = res.Cost
	out.TotalTime = res.TotalTime
	out.ClientTime = res.ClientTime
}
