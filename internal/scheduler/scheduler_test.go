package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/AI2HU/compscout/internal/competitor"
	"github.com/AI2HU/compscout/internal/models"
)

type fakeDiscoverer struct {
	mu       sync.Mutex
	failures int
	err      error
	requests []competitor.Request
}

func (f *fakeDiscoverer) DiscoverCompetitors(ctx context.Context, req competitor.Request) (*models.DiscoveryResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.failures > 0 {
		f.failures--
		return nil, f.err
	}
	return &models.DiscoveryResult{ID: "run-" + req.Domain, Domain: req.Domain}, nil
}

type fakeStore struct {
	mu    sync.Mutex
	saved []*models.DiscoveryResult
	err   error
}

func (f *fakeStore) SaveDiscovery(ctx context.Context, result *models.DiscoveryResult) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.saved = append(f.saved, result)
	return nil
}

func watch(name, domain string) Watch {
	return Watch{
		Name:              name,
		Schedule:          "0 6 * * *",
		Domain:            domain,
		ProductCatalogURL: "https://" + domain + "/shop",
		KnownCompetitors:  []string{"b.com"},
	}
}

func recordSleep(delays *[]time.Duration) Option {
	return WithSleep(func(ctx context.Context, d time.Duration) error {
		*delays = append(*delays, d)
		return nil
	})
}

func TestRunNowRetriesAndSaves(t *testing.T) {
	disc := &fakeDiscoverer{failures: 2, err: errors.New("catalog timed out")}
	store := &fakeStore{}
	var delays []time.Duration

	s := New(disc, store, []Watch{watch("cafe", "mybiz.com")}, recordSleep(&delays))
	result, err := s.RunNow(context.Background(), "cafe")
	require.NoError(t, err)

	assert.Equal(t, "run-mybiz.com", result.ID)
	assert.Len(t, disc.requests, 3)
	assert.Equal(t, []string{"b.com"}, disc.requests[0].KnownCompetitors)
	assert.Equal(t, []time.Duration{DefaultRetryDelay, DefaultRetryDelay}, delays)
	require.Len(t, store.saved, 1)
	assert.Equal(t, result, store.saved[0])
}

func TestRunNowGivesUpAfterMaxRetries(t *testing.T) {
	boom := errors.New("all models busy")
	disc := &fakeDiscoverer{failures: 5, err: boom}
	store := &fakeStore{}
	var delays []time.Duration

	s := New(disc, store, []Watch{watch("cafe", "mybiz.com")}, WithRetry(2, time.Second), recordSleep(&delays))
	_, err := s.RunNow(context.Background(), "cafe")
	assert.ErrorIs(t, err, boom)
	assert.Len(t, disc.requests, 2)
	assert.Equal(t, []time.Duration{time.Second}, delays)
	assert.Empty(t, store.saved)
}

func TestRunNowDoesNotRetryInvalidRequests(t *testing.T) {
	disc := &fakeDiscoverer{failures: 3, err: competitor.ErrInvalidRequest}
	s := New(disc, nil, []Watch{watch("cafe", "mybiz.com")}, recordSleep(new([]time.Duration)))

	_, err := s.RunNow(context.Background(), "cafe")
	assert.ErrorIs(t, err, competitor.ErrInvalidRequest)
	assert.Len(t, disc.requests, 1)

	_, err = s.RunNow(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrUnknownWatch)
}

func TestRunNowReportsSaveFailure(t *testing.T) {
	store := &fakeStore{err: errors.New("disk full")}
	s := New(&fakeDiscoverer{}, store, []Watch{watch("cafe", "mybiz.com")})

	result, err := s.RunNow(context.Background(), "cafe")
	assert.Error(t, err)
	assert.NotNil(t, result)
}

func TestStartRegistersValidWatches(t *testing.T) {
	defer goleak.VerifyNone(t)

	bad := watch("bad", "bad.com")
	bad.Schedule = "every now and then"
	off := watch("off", "off.com")
	off.Disabled = true

	s := New(&fakeDiscoverer{}, nil, []Watch{watch("cafe", "mybiz.com"), bad, off})
	require.NoError(t, s.Start(context.Background()))
	assert.Error(t, s.Start(context.Background()))

	entries := s.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, "cafe", entries[0].Name)
	assert.Equal(t, "mybiz.com", entries[0].Domain)
	assert.False(t, entries[0].Next.IsZero())

	s.Stop()
	s.Stop()
	assert.Empty(t, s.Entries())
}

func TestStartFailsWithoutValidWatches(t *testing.T) {
	bad := watch("bad", "bad.com")
	bad.ProductCatalogURL = ""

	s := New(&fakeDiscoverer{}, nil, []Watch{bad})
	assert.Error(t, s.Start(context.Background()))
}

func TestWatchValidate(t *testing.T) {
	assert.NoError(t, watch("cafe", "mybiz.com").Validate())

	w := watch("", "mybiz.com")
	assert.Error(t, w.Validate())

	w = watch("cafe", "")
	assert.Error(t, w.Validate())

	w = watch("cafe", "mybiz.com")
	w.Schedule = "61 * * * *"
	assert.Error(t, w.Validate())
}
