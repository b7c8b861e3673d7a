// Package router dispatches LLM prompts across models under per-model
// request and token budgets.
package router

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/AI2HU/compscout/internal/llm"
	"github.com/AI2HU/compscout/internal/logger"
	"github.com/AI2HU/compscout/internal/models"
)

var (
	ErrModelSaturation = errors.New("all models are saturated")
	ErrQueueFull       = errors.New("model queue is full")
	ErrRouterClosed    = errors.New("router is closed")
	ErrNoModels        = errors.New("no models configured")
)

// DefaultBackoffs is the wait schedule used when no model has headroom
var DefaultBackoffs = []time.Duration{
	1 * time.Second,
	2 * time.Second,
	4 * time.Second,
	8 * time.Second,
	16 * time.Second,
}

// Options tunes batching and budgets
type Options struct {
	BatchSize         int           `mapstructure:"batch_size" yaml:"batch_size"`
	BatchWindow       time.Duration `mapstructure:"batch_window" yaml:"batch_window"`
	InterRequestDelay time.Duration `mapstructure:"inter_request_delay" yaml:"inter_request_delay"`
	QueueCapacity     int           `mapstructure:"queue_capacity" yaml:"queue_capacity"`
	UsageWindow       time.Duration `mapstructure:"usage_window" yaml:"usage_window"`
	Temperature       float64       `mapstructure:"temperature" yaml:"temperature"`
	MaxTokens         int           `mapstructure:"max_tokens" yaml:"max_tokens"`
}

// DefaultOptions returns the default router options
func DefaultOptions() Options {
	return Options{
		BatchSize:         5,
		BatchWindow:       time.Second,
		InterRequestDelay: 200 * time.Millisecond,
		QueueCapacity:     100,
		UsageWindow:       time.Minute,
		Temperature:       0.2,
		MaxTokens:         2048,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.BatchSize <= 0 {
		o.BatchSize = d.BatchSize
	}
	if o.BatchWindow <= 0 {
		o.BatchWindow = d.BatchWindow
	}
	if o.InterRequestDelay < 0 {
		o.InterRequestDelay = 0
	}
	if o.QueueCapacity <= 0 {
		o.QueueCapacity = d.QueueCapacity
	}
	if o.UsageWindow <= 0 {
		o.UsageWindow = d.UsageWindow
	}
	if o.MaxTokens <= 0 {
		o.MaxTokens = d.MaxTokens
	}
	return o
}

// Option configures a Router
type Option func(*Router)

// WithOptions overrides batching and budget options
func WithOptions(opts Options) Option {
	return func(r *Router) { r.opts = opts.withDefaults() }
}

// WithSleep replaces the context-aware sleep used between saturation backoffs
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(r *Router) { r.sleep = sleep }
}

// WithClock replaces the clock used for usage windows
func WithClock(now func() time.Time) Option {
	return func(r *Router) { r.now = now }
}

// WithBackoffs replaces the saturation backoff schedule
func WithBackoffs(backoffs []time.Duration) Option {
	return func(r *Router) { r.backoffs = backoffs }
}

// Result is the outcome of a routed prompt
type Result struct {
	Text       string        `json:"text"`
	Model      string        `json:"model"`
	Provider   string        `json:"provider"`
	Tokens     int           `json:"tokens"`
	Latency    time.Duration `json:"latency"`
	Complexity Complexity    `json:"complexity"`
}

// Router owns per-model usage windows and queues. It is safe for concurrent use.
type Router struct {
	registry *llm.Registry
	opts     Options
	backoffs []time.Duration
	sleep    func(ctx context.Context, d time.Duration) error
	now      func() time.Time

	states map[string]*modelState
	order  []models.ModelDescriptor
	ranked map[Complexity][]string

	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// New creates a router over descriptors and starts one drain loop per model.
// Call Close to stop them.
func New(descriptors []models.ModelDescriptor, registry *llm.Registry, opts ...Option) (*Router, error) {
	if len(descriptors) == 0 {
		return nil, ErrNoModels
	}
	if registry == nil {
		return nil, fmt.Errorf("router: registry is required")
	}

	r := &Router{
		registry: registry,
		opts:     DefaultOptions(),
		backoffs: DefaultBackoffs,
		sleep:    sleepContext,
		now:      time.Now,
		states:   make(map[string]*modelState, len(descriptors)),
		order:    descriptors,
		ranked:   make(map[Complexity][]string),
	}
	for _, opt := range opts {
		opt(r)
	}

	for _, d := range descriptors {
		if d.ModelID == "" {
			return nil, fmt.Errorf("router: model descriptor for provider %q has no model id", d.Provider)
		}
		if _, dup := r.states[d.ModelID]; dup {
			return nil, fmt.Errorf("router: duplicate model id %q", d.ModelID)
		}
		if _, err := registry.Get(d.Provider); err != nil {
			return nil, fmt.Errorf("router: model %s: %w", d.ModelID, err)
		}
		r.states[d.ModelID] = &modelState{
			desc:  d,
			usage: models.ModelUsage{ModelID: d.ModelID, WindowStart: r.now()},
		}
	}

	for _, c := range []Complexity{Simple, Medium, Complex} {
		r.ranked[c] = rank(descriptors, c)
	}

	r.ctx, r.cancel = context.WithCancel(context.Background())
	for _, d := range descriptors {
		st := r.states[d.ModelID]
		r.wg.Add(1)
		go r.drainLoop(st)
	}

	logger.Debug("Router started with %d models", len(descriptors))
	return r, nil
}

func rank(descs []models.ModelDescriptor, c Complexity) []string {
	scores := scoreModels(descs, c)
	idx := make([]int, len(descs))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return scores[idx[a]] > scores[idx[b]]
	})

	ids := make([]string, len(idx))
	for i, j := range idx {
		ids[i] = descs[j].ModelID
	}
	return ids
}

// SelectModel picks the model for prompt. The preferred model wins while it has
// headroom, otherwise the best scorer for the prompt's complexity that has
// headroom. When none has headroom it waits through the backoff schedule and
// then fails with ErrModelSaturation.
func (r *Router) SelectModel(ctx context.Context, prompt, preferred string) (models.ModelDescriptor, error) {
	complexity := ClassifyComplexity(prompt)

	for attempt := 0; ; attempt++ {
		if d, ok := r.pick(complexity, preferred); ok {
			return d, nil
		}
		if attempt >= len(r.backoffs) {
			return models.ModelDescriptor{}, ErrModelSaturation
		}

		wait := r.backoffs[attempt]
		logger.Debug("No model has headroom for %s prompt, waiting %s", complexity, wait)
		if err := r.sleep(ctx, wait); err != nil {
			return models.ModelDescriptor{}, err
		}
	}
}

func (r *Router) pick(c Complexity, preferred string) (models.ModelDescriptor, bool) {
	now := r.now()

	if st, ok := r.states[preferred]; ok && st.hasHeadroom(now, r.opts.UsageWindow) {
		return st.desc, true
	}
	for _, id := range r.ranked[c] {
		st := r.states[id]
		if st.hasHeadroom(now, r.opts.UsageWindow) {
			return st.desc, true
		}
	}
	return models.ModelDescriptor{}, false
}

// Invoke routes prompt to a model, queues it and waits for the completion.
// operation labels the call in logs.
func (r *Router) Invoke(ctx context.Context, operation, prompt, preferred string) (*Result, error) {
	if r.ctx.Err() != nil {
		return nil, ErrRouterClosed
	}

	desc, err := r.SelectModel(ctx, prompt, preferred)
	if err != nil {
		return nil, err
	}

	req := &request{
		ctx:       ctx,
		operation: operation,
		prompt:    prompt,
		done:      make(chan outcome, 1),
	}
	if err := r.states[desc.ModelID].enqueue(req, r.opts.QueueCapacity); err != nil {
		return nil, err
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case out := <-req.done:
		return out.result, out.err
	}
}

// Close stops the drain loops and fails queued requests with ErrRouterClosed
func (r *Router) Close() {
	r.closeOnce.Do(func() {
		r.cancel()
		r.wg.Wait()
		for _, st := range r.states {
			st.close()
		}
		logger.Debug("Router closed")
	})
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
