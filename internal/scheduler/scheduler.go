package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/AI2HU/compscout/internal/competitor"
	"github.com/AI2HU/compscout/internal/logger"
	"github.com/AI2HU/compscout/internal/models"
)

// Retry configuration constants
const (
	DefaultMaxRetries = 3
	DefaultRetryDelay = 30 * time.Second
)

// ErrUnknownWatch is returned by RunNow for a name with no watch
var ErrUnknownWatch = errors.New("unknown watch")

// Watch re-runs competitor discovery for one business on a cron schedule
type Watch struct {
	Name              string   `mapstructure:"name" yaml:"name"`
	Schedule          string   `mapstructure:"schedule" yaml:"schedule"` // standard 5-field cron expression
	Domain            string   `mapstructure:"domain" yaml:"domain"`
	BusinessType      string   `mapstructure:"business_type" yaml:"business_type,omitempty"`
	ProductCatalogURL string   `mapstructure:"product_catalog_url" yaml:"product_catalog_url"`
	KnownCompetitors  []string `mapstructure:"known_competitors" yaml:"known_competitors,omitempty"`
	Location          string   `mapstructure:"location" yaml:"location,omitempty"`
	Disabled          bool     `mapstructure:"disabled" yaml:"disabled,omitempty"`
}

// Request converts the watch into a discovery request
func (w Watch) Request() competitor.Request {
	return competitor.Request{
		Domain:            w.Domain,
		BusinessType:      w.BusinessType,
		KnownCompetitors:  w.KnownCompetitors,
		ProductCatalogURL: w.ProductCatalogURL,
		Location:          w.Location,
	}
}

// Validate checks the fields a watch cannot run without
func (w Watch) Validate() error {
	if strings.TrimSpace(w.Name) == "" {
		return fmt.Errorf("watch name is required")
	}
	if strings.TrimSpace(w.Domain) == "" {
		return fmt.Errorf("watch %s: domain is required", w.Name)
	}
	if strings.TrimSpace(w.ProductCatalogURL) == "" {
		return fmt.Errorf("watch %s: product_catalog_url is required", w.Name)
	}
	if _, err := cron.ParseStandard(w.Schedule); err != nil {
		return fmt.Errorf("watch %s: invalid schedule %q: %w", w.Name, w.Schedule, err)
	}
	return nil
}

// Discoverer runs one competitor discovery
type Discoverer interface {
	DiscoverCompetitors(ctx context.Context, req competitor.Request) (*models.DiscoveryResult, error)
}

// Store persists discovery results
type Store interface {
	SaveDiscovery(ctx context.Context, result *models.DiscoveryResult) error
}

// Option configures a Scheduler
type Option func(*Scheduler)

// WithRetry overrides the attempt count and the delay between attempts
func WithRetry(maxRetries int, delay time.Duration) Option {
	return func(s *Scheduler) {
		if maxRetries > 0 {
			s.maxRetries = maxRetries
		}
		s.retryDelay = delay
	}
}

// WithSleep replaces the wait between attempts, for tests
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(s *Scheduler) { s.sleep = sleep }
}

// Scheduler manages scheduled discovery runs
type Scheduler struct {
	discoverer Discoverer
	store      Store
	watches    []Watch
	cron       *cron.Cron
	entries    map[string]cron.EntryID
	cancel     context.CancelFunc
	running    bool
	mu         sync.RWMutex

	maxRetries int
	retryDelay time.Duration
	sleep      func(ctx context.Context, d time.Duration) error
}

// New creates a new scheduler. store may be nil, results are then only logged.
func New(discoverer Discoverer, store Store, watches []Watch, opts ...Option) *Scheduler {
	s := &Scheduler{
		discoverer: discoverer,
		store:      store,
		watches:    watches,
		cron:       cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger))),
		entries:    make(map[string]cron.EntryID),
		maxRetries: DefaultMaxRetries,
		retryDelay: DefaultRetryDelay,
		sleep:      sleepContext,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start registers every enabled watch and starts the cron loop. Runs use a
// context derived from ctx and are cancelled by Stop.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("scheduler already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	registered := 0
	for _, w := range s.watches {
		if w.Disabled {
			logger.Debug("Watch %s is disabled, skipping", w.Name)
			continue
		}
		if err := s.registerWatch(runCtx, w); err != nil {
			logger.Error("Failed to register watch %s: %v", w.Name, err)
			continue
		}
		registered++
	}
	if registered == 0 && len(s.watches) > 0 {
		cancel()
		return fmt.Errorf("no watch could be registered")
	}

	s.cancel = cancel
	s.cron.Start()
	s.running = true

	logger.Info("Scheduler started with %d watches", registered)
	return nil
}

// Stop stops the cron loop, cancels in-flight runs and waits for them
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}

	s.cancel()
	<-s.cron.Stop().Done()
	for name, id := range s.entries {
		s.cron.Remove(id)
		delete(s.entries, name)
	}
	s.running = false

	logger.Info("Scheduler stopped")
}

func (s *Scheduler) registerWatch(ctx context.Context, w Watch) error {
	if err := w.Validate(); err != nil {
		return err
	}
	if _, dup := s.entries[w.Name]; dup {
		return fmt.Errorf("duplicate watch name %s", w.Name)
	}

	id, err := s.cron.AddFunc(w.Schedule, func() {
		if _, err := s.runWatch(ctx, w); err != nil {
			logger.Error("Watch %s failed: %v", w.Name, err)
		}
	})
	if err != nil {
		return fmt.Errorf("failed to add cron job: %w", err)
	}
	s.entries[w.Name] = id

	logger.Info("Registered watch %s for %s with cron expression: %s", w.Name, w.Domain, w.Schedule)
	return nil
}

// Entry describes a registered watch
type Entry struct {
	Name     string    `json:"name"`
	Domain   string    `json:"domain"`
	Schedule string    `json:"schedule"`
	Next     time.Time `json:"next"`
	Prev     time.Time `json:"prev,omitempty"`
}

// Entries lists the registered watches ordered by next run
func (s *Scheduler) Entries() []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Entry, 0, len(s.entries))
	for _, w := range s.watches {
		id, ok := s.entries[w.Name]
		if !ok {
			continue
		}
		e := s.cron.Entry(id)
		out = append(out, Entry{Name: w.Name, Domain: w.Domain, Schedule: w.Schedule, Next: e.Next, Prev: e.Prev})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Next.Before(out[j].Next) })
	return out
}

// RunNow executes the named watch immediately
func (s *Scheduler) RunNow(ctx context.Context, name string) (*models.DiscoveryResult, error) {
	for _, w := range s.watches {
		if w.Name == name {
			return s.runWatch(ctx, w)
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownWatch, name)
}

func (s *Scheduler) runWatch(ctx context.Context, w Watch) (*models.DiscoveryResult, error) {
	logger.Info("Executing watch: %s (%s)", w.Name, w.Domain)

	result, err := s.discoverWithRetry(ctx, w)
	if err != nil {
		return nil, err
	}

	logger.Info("Watch %s found %d competitors (%d failed analyses)",
		w.Name, len(result.Competitors), result.Stats.FailedAnalyses)

	if s.store != nil {
		if err := s.store.SaveDiscovery(ctx, result); err != nil {
			return result, fmt.Errorf("failed to save discovery %s: %w", result.ID, err)
		}
	}
	return result, nil
}

// discoverWithRetry runs discovery up to maxRetries times. Invalid requests
// and cancellation are not retried.
func (s *Scheduler) discoverWithRetry(ctx context.Context, w Watch) (*models.DiscoveryResult, error) {
	var lastErr error

	for attempt := 1; attempt <= s.maxRetries; attempt++ {
		logger.Debug("Attempt %d/%d for watch %s", attempt, s.maxRetries, w.Name)

		result, err := s.discoverer.DiscoverCompetitors(ctx, w.Request())
		if err == nil {
			if attempt > 1 {
				logger.Info("Watch %s succeeded on attempt %d after %d previous failures", w.Name, attempt, attempt-1)
			}
			return result, nil
		}

		lastErr = err
		if errors.Is(err, competitor.ErrInvalidRequest) || ctx.Err() != nil {
			return nil, err
		}
		logger.Warning("Attempt %d/%d failed for watch %s: %v", attempt, s.maxRetries, w.Name, err)

		if attempt < s.maxRetries {
			logger.Info("Waiting %v before retry attempt %d...", s.retryDelay, attempt+1)
			if err := s.sleep(ctx, s.retryDelay); err != nil {
				return nil, err
			}
		}
	}

	logger.Error("All %d attempts failed for watch %s. Last error: %v", s.maxRetries, w.Name, lastErr)
	return nil, fmt.Errorf("failed after %d attempts, last error: %w", s.maxRetries, lastErr)
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
