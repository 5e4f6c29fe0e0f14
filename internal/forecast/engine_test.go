package forecast

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ishaan-jaff/context-is-key-forecasting/internal/llm"
	"github.com/ishaan-jaff/context-is-key-forecasting/internal/task"
)

// fakeClient scripts one response per round and records every request.
type fakeClient struct {
	mu       sync.Mutex
	requests []llm.Request
	rounds   []*llm.Response
	err      error
}

func (c *fakeClient) Generate(ctx context.Context, req llm.Request) (*llm.Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.requests = append(c.requests, req)
	if c.err != nil {
		return nil, c.err
	}
	if len(c.rounds) == 0 {
		return &llm.Response{Choices: []llm.Choice{{Content: "no forecast here"}}}, nil
	}
	resp := c.rounds[0]
	c.rounds = c.rounds[1:]
	return resp, nil
}

func (c *fakeClient) calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.requests)
}

func testInstance() *task.Instance {
	return &task.Instance{
		Name: "demo",
		PastTime: []task.Observation{
			{Timestamp: "2016-01-01 00:00:00", Value: 1},
			{Timestamp: "2016-01-01 01:00:00", Value: 2},
		},
		FutureTime: []string{"2016-01-01 02:00:00", "2016-01-01 03:00:00"},
	}
}

func validChoice(a, b float64) llm.Choice {
	return llm.Choice{Content: fmt.Sprintf(
		"<forecast>\n(2016-01-01 02:00:00, %g)\n(2016-01-01 03:00:00, %g)\n</forecast>", a, b)}
}

func invalidChoice() llm.Choice {
	return llm.Choice{Content: "<forecast>\n(2016-01-01 02:00:00, nonsense)\n</forecast>"}
}

func respond(usage llm.Usage, choices ...llm.Choice) *llm.Response {
	return &llm.Response{Choices: choices, Usage: usage}
}

func TestAcquire_RetryBudgetConfigError(t *testing.T) {
	client := &fakeClient{}
	opts := DefaultOptions("test-model")
	opts.BatchSize = 2
	opts.NRetries = 2

	f := New(client, opts)
	_, err := f.Acquire(context.Background(), testInstance(), 5)

	var ce *ConfigError
	require.ErrorAs(t, err, &ce)
	assert.Zero(t, client.calls(), "no request may be issued on a config error")

	// 2*3 = 6 >= 5 passes the precondition.
	opts.NRetries = 3
	opts.BatchSizeOnRetry = 2
	opts.FailOnInvalid = false
	f = New(client, opts)
	res, err := f.Acquire(context.Background(), testInstance(), 5)
	require.NoError(t, err)
	assert.NotNil(t, res)
}

func TestAcquire_RetryBatchLargerThanDefaultConfigError(t *testing.T) {
	client := &fakeClient{}
	opts := DefaultOptions("test-model")
	opts.BatchSizeOnRetry = 10 // default batch is nSamples = 5

	f := New(client, opts)
	_, err := f.Acquire(context.Background(), testInstance(), 5)

	var ce *ConfigError
	require.ErrorAs(t, err, &ce)
	assert.Zero(t, client.calls())
}

func TestAcquire_RejectionSamplingScenario(t *testing.T) {
	// First round: batch of 10, only 3 parse. Second round must ask for
	// max(5-3, 5) = 5 candidates and completes the set.
	round1 := respond(llm.Usage{PromptTokens: 100, CompletionTokens: 50},
		validChoice(1, 2), invalidChoice(), invalidChoice(), invalidChoice(),
		validChoice(3, 4), invalidChoice(), invalidChoice(), invalidChoice(),
		validChoice(5, 6), invalidChoice())
	round2 := respond(llm.Usage{PromptTokens: 100, CompletionTokens: 40},
		validChoice(7, 8), validChoice(9, 10))

	client := &fakeClient{rounds: []*llm.Response{round1, round2}}
	opts := DefaultOptions("test-model")
	opts.BatchSize = 10
	opts.BatchSizeOnRetry = 5
	opts.FailOnInvalid = false

	f := New(client, opts)
	res, err := f.Acquire(context.Background(), testInstance(), 5)
	require.NoError(t, err)

	require.GreaterOrEqual(t, client.calls(), 2)
	assert.Equal(t, 10, client.requests[0].N)
	assert.Equal(t, 5, client.requests[1].N)
	assert.Equal(t, 5, res.NumSamples())

	// Acceptance order is preserved.
	values := res.Values()
	assert.Equal(t, []float64{1, 2}, values[0])
	assert.Equal(t, []float64{7, 8}, values[3])
}

func TestAcquire_ConversationReusedAcrossRetries(t *testing.T) {
	client := &fakeClient{rounds: []*llm.Response{
		respond(llm.Usage{}, invalidChoice()),
		respond(llm.Usage{}, validChoice(1, 2)),
	}}
	opts := DefaultOptions("test-model")
	opts.FailOnInvalid = false
	opts.BatchSizeOnRetry = 1

	f := New(client, opts)
	_, err := f.Acquire(context.Background(), testInstance(), 1)
	require.NoError(t, err)

	require.GreaterOrEqual(t, client.calls(), 2)
	assert.Equal(t, client.requests[0].Messages, client.requests[1].Messages,
		"prompt must not be rebuilt between retries")
}

func TestAcquire_UsageSumsAllRounds(t *testing.T) {
	// Three rounds, the middle one produces zero valid candidates; its
	// tokens still count.
	client := &fakeClient{rounds: []*llm.Response{
		respond(llm.Usage{PromptTokens: 10, CompletionTokens: 5}, validChoice(1, 2)),
		respond(llm.Usage{PromptTokens: 20, CompletionTokens: 7}, invalidChoice()),
		respond(llm.Usage{PromptTokens: 30, CompletionTokens: 9}, validChoice(3, 4), validChoice(5, 6)),
	}}
	opts := DefaultOptions("test-model")
	opts.FailOnInvalid = false
	opts.BatchSizeOnRetry = 3

	f := New(client, opts)
	res, err := f.Acquire(context.Background(), testInstance(), 3)
	require.NoError(t, err)

	assert.Equal(t, 60, res.Usage.InputTokens)
	assert.Equal(t, 21, res.Usage.OutputTokens)
	assert.Len(t, res.RawOutputs, 4, "raw outputs keep rejected texts")
}

func TestAcquire_TruncatesToNSamples(t *testing.T) {
	client := &fakeClient{rounds: []*llm.Response{
		respond(llm.Usage{},
			validChoice(1, 1), validChoice(2, 2), validChoice(3, 3),
			validChoice(4, 4), validChoice(5, 5)),
	}}
	opts := DefaultOptions("test-model")
	opts.BatchSizeOnRetry = 3
	f := New(client, opts)
	res, err := f.Acquire(context.Background(), testInstance(), 3)
	require.NoError(t, err)

	assert.Equal(t, 3, res.NumSamples())
	// First accepted are kept.
	assert.Equal(t, []float64{1, 1}, res.Values()[0])
}

func TestAcquire_InsufficientSamples(t *testing.T) {
	client := &fakeClient{} // every choice invalid
	opts := DefaultOptions("test-model")

	f := New(client, opts)
	_, err := f.Acquire(context.Background(), testInstance(), 5)

	var ise *InsufficientSamplesError
	require.ErrorAs(t, err, &ise)
	assert.Equal(t, 5, ise.Requested)
	assert.Equal(t, 0, ise.Got)
	assert.Equal(t, 3, client.calls(), "budget is NRetries rounds")
}

func TestAcquire_ShortResultWhenTolerated(t *testing.T) {
	client := &fakeClient{rounds: []*llm.Response{
		respond(llm.Usage{}, validChoice(1, 2)),
	}}
	opts := DefaultOptions("test-model")
	opts.FailOnInvalid = false
	opts.BatchSizeOnRetry = 2

	f := New(client, opts)
	res, err := f.Acquire(context.Background(), testInstance(), 4)
	require.NoError(t, err)
	assert.Equal(t, 1, res.NumSamples())
}

func TestAcquire_BackendErrorAborts(t *testing.T) {
	backendErr := errors.New("rate limit exceeded (429)")
	client := &fakeClient{err: backendErr}

	opts := DefaultOptions("test-model")
	opts.BatchSizeOnRetry = 2
	f := New(client, opts)
	_, err := f.Acquire(context.Background(), testInstance(), 2)
	require.ErrorIs(t, err, backendErr)
	assert.Equal(t, 1, client.calls(), "backend errors are not retried by the loop")
}

func TestAcquire_MaxBatchSizeCapAndExtraRetries(t *testing.T) {
	inst := testInstance()
	inst.MaxBatchSize = 2

	// Every request must be capped at 2; retry budget grows by
	// default/capped = 10/2 = 5 extra rounds.
	var rounds []*llm.Response
	for i := 0; i < 8; i++ {
		rounds = append(rounds, respond(llm.Usage{}, invalidChoice(), invalidChoice()))
	}
	client := &fakeClient{rounds: rounds}
	opts := DefaultOptions("test-model")
	opts.BatchSize = 10
	opts.NRetries = 3
	opts.BatchSizeOnRetry = 2
	opts.FailOnInvalid = false

	f := New(client, opts)
	res, err := f.Acquire(context.Background(), inst, 5)
	require.NoError(t, err)
	assert.Equal(t, 0, res.NumSamples())
	assert.Equal(t, 8, client.calls())
	for _, req := range client.requests {
		assert.LessOrEqual(t, req.N, 2)
	}
}

func TestAcquire_CostAccounting(t *testing.T) {
	client := &fakeClient{rounds: []*llm.Response{
		respond(llm.Usage{PromptTokens: 1500, CompletionTokens: 500}, validChoice(1, 2)),
	}}
	opts := DefaultOptions("test-model")
	opts.TokenCost = &TokenCost{Input: 0.01, Output: 0.03}
	opts.BatchSizeOnRetry = 1

	f := New(client, opts)
	res, err := f.Acquire(context.Background(), testInstance(), 1)
	require.NoError(t, err)

	// 1500/1000*0.01 + 500/1000*0.03 = 0.015 + 0.015 = 0.03
	assert.InDelta(t, 0.03, res.Cost, 1e-9)
	assert.InDelta(t, 0.03, f.TotalCost(), 1e-9)

	// Lifetime accumulator grows across calls.
	client.rounds = []*llm.Response{
		respond(llm.Usage{PromptTokens: 1500, CompletionTokens: 500}, validChoice(1, 2)),
	}
	_, err = f.Acquire(context.Background(), testInstance(), 1)
	require.NoError(t, err)
	assert.InDelta(t, 0.06, f.TotalCost(), 1e-9)
}

func TestAcquire_CostDisabledWithoutPricing(t *testing.T) {
	client := &fakeClient{rounds: []*llm.Response{
		respond(llm.Usage{PromptTokens: 1000, CompletionTokens: 1000}, validChoice(1, 2)),
	}}
	opts := DefaultOptions("test-model")
	opts.BatchSizeOnRetry = 1
	f := New(client, opts)
	res, err := f.Acquire(context.Background(), testInstance(), 1)
	require.NoError(t, err)

	assert.Equal(t, -1.0, res.Cost)
	assert.Zero(t, f.TotalCost())
}

func TestAcquire_ConcurrentCallsKeepLifetimeCostConsistent(t *testing.T) {
	opts := DefaultOptions("test-model")
	opts.TokenCost = &TokenCost{Input: 0.01, Output: 0.01}
	opts.BatchSizeOnRetry = 1

	// Each call bills exactly 0.02.
	mkClient := func() *fakeClient {
		return &fakeClient{rounds: []*llm.Response{
			respond(llm.Usage{PromptTokens: 1000, CompletionTokens: 1000}, validChoice(1, 2)),
		}}
	}

	// One engine, many concurrent acquisitions: the accumulator must see
	// every call exactly once. Each goroutine uses its own scripted
	// client pool via a shared dispatching client.
	shared := &dispatchClient{mk: mkClient}
	f := New(shared, opts)

	const calls = 16
	var wg sync.WaitGroup
	for i := 0; i < calls; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.Acquire(context.Background(), testInstance(), 1)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.InDelta(t, 0.02*calls, f.TotalCost(), 1e-9)
}

// dispatchClient hands each Generate call a fresh scripted response.
type dispatchClient struct {
	mk func() *fakeClient
}

func (d *dispatchClient) Generate(ctx context.Context, req llm.Request) (*llm.Response, error) {
	return d.mk().Generate(ctx, req)
}

func TestCacheKey(t *testing.T) {
	opts := DefaultOptions("llama-3.1-405b-instruct")
	f := New(&fakeClient{}, opts)
	key := f.CacheKey()
	assert.Equal(t,
		"Forecaster_model=llama-3.1-405b-instruct_use_context=true_fail_on_invalid=true_n_retries=3_temperature=1",
		key)

	// Hosted gpt models exclude temperature.
	gpt := New(&fakeClient{}, DefaultOptions("gpt-4o"))
	assert.Equal(t,
		"Forecaster_model=gpt-4o_use_context=true_fail_on_invalid=true_n_retries=3",
		gpt.CacheKey())

	// Batch sizing never enters the key.
	opts.BatchSizeOnRetry = 1
	assert.Equal(t, key, New(&fakeClient{}, opts).CacheKey())
}
