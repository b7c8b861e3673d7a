package router

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/AI2HU/compscout/internal/llm"
	"github.com/AI2HU/compscout/internal/logger"
	"github.com/AI2HU/compscout/internal/models"
)

type request struct {
	ctx       context.Context
	operation string
	prompt    string
	done      chan outcome
}

type outcome struct {
	result *Result
	err    error
}

func (req *request) finish(res *Result, err error) {
	select {
	case req.done <- outcome{result: res, err: err}:
	default:
	}
}

// modelState is the usage window and FIFO queue of one model
type modelState struct {
	desc models.ModelDescriptor

	mu       sync.Mutex
	usage    models.ModelUsage
	queue    []*request
	draining bool
	closed   bool
}

func (s *modelState) enqueue(req *request, capacity int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrRouterClosed
	}
	if len(s.queue) >= capacity {
		return fmt.Errorf("%w: %s has %d pending requests", ErrQueueFull, s.desc.ModelID, len(s.queue))
	}
	s.queue = append(s.queue, req)
	return nil
}

// resetLocked starts a new usage window when the current one has elapsed
func (s *modelState) resetLocked(now time.Time, window time.Duration) {
	if now.Sub(s.usage.WindowStart) >= window {
		s.usage.WindowStart = now
		s.usage.TokensUsed = 0
		s.usage.RequestsUsed = 0
	}
}

func (s *modelState) headroomLocked() bool {
	if s.desc.RequestsPerMinute > 0 && s.usage.RequestsUsed >= s.desc.RequestsPerMinute {
		return false
	}
	if s.desc.TokensPerMinute > 0 && s.usage.TokensUsed >= s.desc.TokensPerMinute {
		return false
	}
	return true
}

func (s *modelState) hasHeadroom(now time.Time, window time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.resetLocked(now, window)
	return s.headroomLocked()
}

func (s *modelState) recordTokens(now time.Time, window time.Duration, tokens int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.resetLocked(now, window)
	s.usage.TokensUsed += tokens
}

// next pops the head of the queue if the model has headroom for it, counting
// the request against the window. Cancelled requests are dropped on the way.
func (s *modelState) next(now time.Time, window time.Duration) (*request, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for len(s.queue) > 0 {
		head := s.queue[0]
		if err := head.ctx.Err(); err != nil {
			s.queue = s.queue[1:]
			head.finish(nil, err)
			continue
		}

		s.resetLocked(now, window)
		if !s.headroomLocked() {
			return nil, false
		}

		s.queue = s.queue[1:]
		s.usage.RequestsUsed++
		return head, true
	}
	return nil, false
}

func (s *modelState) close() {
	s.mu.Lock()
	pending := s.queue
	s.queue = nil
	s.closed = true
	s.mu.Unlock()

	for _, req := range pending {
		req.finish(nil, ErrRouterClosed)
	}
}

func (r *Router) drainLoop(st *modelState) {
	defer r.wg.Done()

	ticker := time.NewTicker(r.opts.BatchWindow)
	defer ticker.Stop()

	for {
		select {
		case <-r.ctx.Done():
			return
		case <-ticker.C:
			r.drain(st)
		}
	}
}

// drain dispatches up to BatchSize queued requests sequentially. It stops
// early when the model runs out of headroom; the rest stay queued in order.
func (r *Router) drain(st *modelState) {
	st.mu.Lock()
	if st.draining || len(st.queue) == 0 {
		st.mu.Unlock()
		return
	}
	st.draining = true
	st.mu.Unlock()

	defer func() {
		st.mu.Lock()
		st.draining = false
		st.mu.Unlock()
	}()

	for processed := 0; processed < r.opts.BatchSize; processed++ {
		if processed > 0 && r.opts.InterRequestDelay > 0 {
			if err := sleepContext(r.ctx, r.opts.InterRequestDelay); err != nil {
				return
			}
		}

		req, ok := st.next(r.now(), r.opts.UsageWindow)
		if !ok {
			return
		}

		res, err := r.execute(st.desc, req)
		if res != nil {
			st.recordTokens(r.now(), r.opts.UsageWindow, res.Tokens)
		}
		req.finish(res, err)
	}
}

// execute runs one request. A panicking provider fails only its own request.
func (r *Router) execute(desc models.ModelDescriptor, req *request) (res *Result, err error) {
	defer func() {
		if p := recover(); p != nil {
			res = nil
			err = fmt.Errorf("%s on %s panicked: %v", req.operation, desc.ModelID, p)
			logger.Error("LLM call panicked: %v", err)
		}
	}()

	provider, err := r.registry.Get(desc.Provider)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	logger.Debug("Dispatching %s to %s/%s", req.operation, desc.Provider, desc.ModelID)

	resp, err := provider.Generate(req.ctx, req.prompt, llm.Config{
		Model:       desc.ModelID,
		Temperature: r.opts.Temperature,
		MaxTokens:   r.opts.MaxTokens,
		JSONMode:    demandsJSON(strings.ToLower(req.prompt)),
	})
	if err != nil {
		logger.Warning("%s on %s failed: %v", req.operation, desc.ModelID, err)
		return nil, fmt.Errorf("%s on %s: %w", req.operation, desc.ModelID, err)
	}

	return &Result{
		Text:       resp.Text,
		Model:      desc.ModelID,
		Provider:   desc.Provider,
		Tokens:     len(resp.Text) / 4,
		Latency:    time.Since(start),
		Complexity: ClassifyComplexity(req.prompt),
	}, nil
}

// UsageSnapshot is a point-in-time view of one model's budget
type UsageSnapshot struct {
	ModelID           string    `json:"modelId"`
	Provider          string    `json:"provider"`
	WindowStart       time.Time `json:"windowStart"`
	TokensUsed        int       `json:"tokensUsed"`
	RequestsUsed      int       `json:"requestsUsed"`
	TokensPerMinute   int       `json:"tokensPerMinute"`
	RequestsPerMinute int       `json:"requestsPerMinute"`
	QueueDepth        int       `json:"queueDepth"`
	Draining          bool      `json:"draining"`
}

// Usage returns a snapshot of every model, sorted by model id
func (r *Router) Usage() []UsageSnapshot {
	now := r.now()
	out := make([]UsageSnapshot, 0, len(r.states))

	for _, st := range r.states {
		st.mu.Lock()
		st.resetLocked(now, r.opts.UsageWindow)
		out = append(out, UsageSnapshot{
			ModelID:           st.desc.ModelID,
			Provider:          st.desc.Provider,
			WindowStart:       st.usage.WindowStart,
			TokensUsed:        st.usage.TokensUsed,
			RequestsUsed:      st.usage.RequestsUsed,
			TokensPerMinute:   st.desc.TokensPerMinute,
			RequestsPerMinute: st.desc.RequestsPerMinute,
			QueueDepth:        len(st.queue),
			Draining:          st.draining,
		})
		st.mu.Unlock()
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ModelID < out[j].ModelID })
	return out
}

// Models returns the configured descriptors in configuration order
func (r *Router) Models() []models.ModelDescriptor {
	out := make([]models.ModelDescriptor, len(r.order))
	copy(out, r.order)
	return out
}
