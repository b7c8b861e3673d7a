package router

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/AI2HU/compscout/internal/llm"
	"github.com/AI2HU/compscout/internal/models"
)

type fakeProvider struct {
	name  string
	calls atomic.Int32
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) Generate(ctx context.Context, prompt string, config llm.Config) (*llm.Response, error) {
	f.calls.Add(1)
	switch {
	case strings.Contains(prompt, "panic"):
		panic("provider exploded")
	case strings.Contains(prompt, "fail"):
		return nil, errors.New("upstream unavailable")
	}
	return &llm.Response{Text: "echo:" + prompt, Model: config.Model, Provider: f.name}, nil
}

func (f *fakeProvider) ListModels(ctx context.Context) ([]models.ModelInfo, error) {
	return nil, nil
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func fastModel() models.ModelDescriptor {
	return models.ModelDescriptor{
		Provider: "fake", ModelID: "fast", TokensPerMinute: 100000, RequestsPerMinute: 100,
		QualityScore: 0.6, Throughput: 200, Latency: 300, ContextWindow: 16000, ComplexityRating: 0.4,
	}
}

func smartModel() models.ModelDescriptor {
	return models.ModelDescriptor{
		Provider: "fake", ModelID: "smart", TokensPerMinute: 100000, RequestsPerMinute: 100,
		QualityScore: 0.95, Throughput: 40, Latency: 2000, ContextWindow: 200000, ComplexityRating: 0.95,
	}
}

func newTestRouter(t *testing.T, descs []models.ModelDescriptor, opts ...Option) (*Router, *fakeProvider) {
	t.Helper()

	provider := &fakeProvider{name: "fake"}
	registry := llm.NewRegistry()
	registry.Register(provider)

	r, err := New(descs, registry, opts...)
	require.NoError(t, err)
	t.Cleanup(r.Close)
	return r, provider
}

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestClassifyComplexity(t *testing.T) {
	assert.Equal(t, Simple, ClassifyComplexity("Say hello"))
	assert.Equal(t, Medium, ClassifyComplexity("Return a JSON array of domains"))
	assert.Equal(t, Medium, ClassifyComplexity("Compare these two shops and rank them"))
	assert.Equal(t, Complex, ClassifyComplexity("Analyze and compare the offerings, respond in JSON"))
	assert.Equal(t, Complex, ClassifyComplexity("Evaluate step by step: "+strings.Repeat("x", longPromptChars)))
}

func TestNewValidation(t *testing.T) {
	registry := llm.NewRegistry()
	registry.Register(&fakeProvider{name: "fake"})

	_, err := New(nil, registry)
	assert.ErrorIs(t, err, ErrNoModels)

	_, err = New([]models.ModelDescriptor{fastModel(), fastModel()}, registry)
	assert.Error(t, err)

	_, err = New([]models.ModelDescriptor{{Provider: "missing", ModelID: "x"}}, registry)
	assert.ErrorIs(t, err, llm.ErrProviderNotFound)
}

func TestSelectModelByComplexity(t *testing.T) {
	r, _ := newTestRouter(t, []models.ModelDescriptor{fastModel(), smartModel()})
	ctx := context.Background()

	d, err := r.SelectModel(ctx, "Say hello", "")
	require.NoError(t, err)
	assert.Equal(t, "fast", d.ModelID)

	d, err = r.SelectModel(ctx, "Analyze and compare these competitors step by step and return JSON", "")
	require.NoError(t, err)
	assert.Equal(t, "smart", d.ModelID)

	d, err = r.SelectModel(ctx, "Say hello", "smart")
	require.NoError(t, err)
	assert.Equal(t, "smart", d.ModelID)
}

func TestSelectModelFallsBackWhenPreferredSaturated(t *testing.T) {
	r, _ := newTestRouter(t, []models.ModelDescriptor{fastModel(), smartModel()})
	r.states["smart"].usage.RequestsUsed = smartModel().RequestsPerMinute

	d, err := r.SelectModel(context.Background(), "Say hello", "smart")
	require.NoError(t, err)
	assert.Equal(t, "fast", d.ModelID)
}

func TestSelectModelSaturation(t *testing.T) {
	var waits []time.Duration
	sleep := func(ctx context.Context, d time.Duration) error {
		waits = append(waits, d)
		return nil
	}

	desc := fastModel()
	desc.RequestsPerMinute = 1
	clock := &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	r, _ := newTestRouter(t, []models.ModelDescriptor{desc}, WithSleep(sleep), WithClock(clock.Now))
	r.states["fast"].usage.RequestsUsed = 1

	_, err := r.SelectModel(context.Background(), "hello", "")
	require.ErrorIs(t, err, ErrModelSaturation)

	assert.Equal(t, DefaultBackoffs, waits)
	var total time.Duration
	for _, w := range waits {
		total += w
	}
	assert.Equal(t, 31*time.Second, total)
}

func TestSelectModelSaturationHonoursContext(t *testing.T) {
	desc := fastModel()
	desc.TokensPerMinute = 10
	r, _ := newTestRouter(t, []models.ModelDescriptor{desc})
	r.states["fast"].usage.TokensUsed = 10

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.SelectModel(ctx, "hello", "")
	assert.ErrorIs(t, err, context.Canceled)
}

// idleOptions keep the drain loops from firing so tests can drain by hand
func idleOptions() Options {
	o := DefaultOptions()
	o.BatchWindow = time.Hour
	o.InterRequestDelay = 0
	return o
}

func newRequest(prompt string) *request {
	return &request{ctx: context.Background(), operation: "test", prompt: prompt, done: make(chan outcome, 1)}
}

func TestDrainAdmissionControl(t *testing.T) {
	desc := fastModel()
	desc.RequestsPerMinute = 2
	clock := &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	r, provider := newTestRouter(t, []models.ModelDescriptor{desc}, WithOptions(idleOptions()), WithClock(clock.Now))
	st := r.states["fast"]

	reqs := []*request{newRequest("a"), newRequest("b"), newRequest("c")}
	for _, req := range reqs {
		require.NoError(t, st.enqueue(req, 10))
	}

	r.drain(st)

	assert.Equal(t, int32(2), provider.calls.Load())
	for _, req := range reqs[:2] {
		out := <-req.done
		require.NoError(t, out.err)
	}
	usage := r.Usage()[0]
	assert.Equal(t, 2, usage.RequestsUsed)
	assert.LessOrEqual(t, usage.RequestsUsed, desc.RequestsPerMinute)
	assert.Equal(t, 1, usage.QueueDepth)

	// a new window admits the remaining request
	clock.Advance(61 * time.Second)
	r.drain(st)

	out := <-reqs[2].done
	require.NoError(t, out.err)
	assert.Equal(t, "echo:c", out.result.Text)
	assert.Equal(t, 0, r.Usage()[0].QueueDepth)
}

func TestDrainRespectsBatchSize(t *testing.T) {
	opts := idleOptions()
	opts.BatchSize = 2
	r, provider := newTestRouter(t, []models.ModelDescriptor{fastModel()}, WithOptions(opts))
	st := r.states["fast"]

	for _, p := range []string{"a", "b", "c"} {
		require.NoError(t, st.enqueue(newRequest(p), 10))
	}

	r.drain(st)
	assert.Equal(t, int32(2), provider.calls.Load())
	assert.Equal(t, 1, r.Usage()[0].QueueDepth)
}

func TestDrainIsolatesFailures(t *testing.T) {
	r, _ := newTestRouter(t, []models.ModelDescriptor{fastModel()}, WithOptions(idleOptions()))
	st := r.states["fast"]

	ok1, failing, panicking, ok2 := newRequest("one"), newRequest("fail"), newRequest("panic"), newRequest("two")
	for _, req := range []*request{ok1, failing, panicking, ok2} {
		require.NoError(t, st.enqueue(req, 10))
	}

	r.drain(st)

	out := <-ok1.done
	require.NoError(t, out.err)
	out = <-failing.done
	assert.ErrorContains(t, out.err, "upstream unavailable")
	out = <-panicking.done
	assert.ErrorContains(t, out.err, "panicked")
	out = <-ok2.done
	require.NoError(t, out.err)
	assert.Equal(t, "echo:two", out.result.Text)
}

func TestDrainSkipsCancelledRequests(t *testing.T) {
	r, provider := newTestRouter(t, []models.ModelDescriptor{fastModel()}, WithOptions(idleOptions()))
	st := r.states["fast"]

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	cancelled := &request{ctx: ctx, operation: "test", prompt: "x", done: make(chan outcome, 1)}
	require.NoError(t, st.enqueue(cancelled, 10))

	r.drain(st)

	out := <-cancelled.done
	assert.ErrorIs(t, out.err, context.Canceled)
	assert.Equal(t, int32(0), provider.calls.Load())
	assert.Equal(t, 0, r.Usage()[0].RequestsUsed)
}

func TestRecordsApproximateTokens(t *testing.T) {
	r, _ := newTestRouter(t, []models.ModelDescriptor{fastModel()}, WithOptions(idleOptions()))
	st := r.states["fast"]

	req := newRequest(strings.Repeat("y", 35))
	require.NoError(t, st.enqueue(req, 10))
	r.drain(st)

	out := <-req.done
	require.NoError(t, out.err)
	// "echo:" + 35 characters
	assert.Equal(t, 10, out.result.Tokens)
	assert.Equal(t, 10, r.Usage()[0].TokensUsed)
}

func TestEnqueueQueueFull(t *testing.T) {
	r, _ := newTestRouter(t, []models.ModelDescriptor{fastModel()}, WithOptions(idleOptions()))
	st := r.states["fast"]

	require.NoError(t, st.enqueue(newRequest("a"), 1))
	assert.ErrorIs(t, st.enqueue(newRequest("b"), 1), ErrQueueFull)
}

func TestInvokeEndToEnd(t *testing.T) {
	opts := DefaultOptions()
	opts.BatchWindow = 5 * time.Millisecond
	opts.InterRequestDelay = time.Millisecond
	r, provider := newTestRouter(t, []models.ModelDescriptor{fastModel(), smartModel()}, WithOptions(opts))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var wg sync.WaitGroup
	results := make([]*Result, 6)
	errs := make([]error, 6)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = r.Invoke(ctx, "test", "hello", "")
		}(i)
	}
	wg.Wait()

	for i := range results {
		require.NoError(t, errs[i])
		assert.Equal(t, "echo:hello", results[i].Text)
		assert.Equal(t, "fast", results[i].Model)
	}
	assert.Equal(t, int32(6), provider.calls.Load())
}

func TestCloseFailsQueuedRequests(t *testing.T) {
	provider := &fakeProvider{name: "fake"}
	registry := llm.NewRegistry()
	registry.Register(provider)

	r, err := New([]models.ModelDescriptor{fastModel()}, registry, WithOptions(idleOptions()))
	require.NoError(t, err)

	req := newRequest("queued")
	require.NoError(t, r.states["fast"].enqueue(req, 10))

	r.Close()
	r.Close()

	out := <-req.done
	assert.ErrorIs(t, out.err, ErrRouterClosed)

	_, err = r.Invoke(context.Background(), "test", "hello", "")
	assert.ErrorIs(t, err, ErrRouterClosed)
	assert.Equal(t, int32(0), provider.calls.Load())
}
