// Package fetcher retrieves web pages with protocol and user-agent fallbacks,
// per-host politeness, retries and a shared page cache.
package fetcher

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/AI2HU/compscout/internal/cache"
	"github.com/AI2HU/compscout/internal/logger"
	"github.com/AI2HU/compscout/internal/shared"
)

const (
	DefaultDesktopUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/128.0.0.0 Safari/537.36"
	DefaultMobileUserAgent  = "Mozilla/5.0 (iPhone; CPU iPhone OS 17_5 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.5 Mobile/15E148 Safari/604.1"
)

// Config controls fetch behaviour
type Config struct {
	Timeout           time.Duration `mapstructure:"timeout" yaml:"timeout"`
	MaxRetries        int           `mapstructure:"max_retries" yaml:"max_retries"`
	BaseDelay         time.Duration `mapstructure:"base_delay" yaml:"base_delay"`
	MaxRetryAfter     time.Duration `mapstructure:"max_retry_after" yaml:"max_retry_after"`
	MaxBodyBytes      int64         `mapstructure:"max_body_bytes" yaml:"max_body_bytes"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second" yaml:"requests_per_second"`
	Burst             int           `mapstructure:"burst" yaml:"burst"`
	CacheTTL          time.Duration `mapstructure:"cache_ttl" yaml:"cache_ttl"`
	DesktopUserAgent  string        `mapstructure:"desktop_user_agent" yaml:"desktop_user_agent"`
	MobileUserAgent   string        `mapstructure:"mobile_user_agent" yaml:"mobile_user_agent"`
}

// DefaultConfig returns the default fetch configuration
func DefaultConfig() Config {
	return Config{
		Timeout:           15 * time.Second,
		MaxRetries:        2,
		BaseDelay:         500 * time.Millisecond,
		MaxRetryAfter:     30 * time.Second,
		MaxBodyBytes:      5 << 20,
		RequestsPerSecond: 2,
		Burst:             2,
		CacheTTL:          30 * time.Minute,
		DesktopUserAgent:  DefaultDesktopUserAgent,
		MobileUserAgent:   DefaultMobileUserAgent,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Timeout <= 0 {
		c.Timeout = d.Timeout
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = d.BaseDelay
	}
	if c.MaxRetryAfter <= 0 {
		c.MaxRetryAfter = d.MaxRetryAfter
	}
	if c.MaxBodyBytes <= 0 {
		c.MaxBodyBytes = d.MaxBodyBytes
	}
	if c.RequestsPerSecond <= 0 {
		c.RequestsPerSecond = d.RequestsPerSecond
	}
	if c.Burst <= 0 {
		c.Burst = d.Burst
	}
	if c.DesktopUserAgent == "" {
		c.DesktopUserAgent = d.DesktopUserAgent
	}
	if c.MobileUserAgent == "" {
		c.MobileUserAgent = d.MobileUserAgent
	}
	return c
}

// Page is a fetched document
type Page struct {
	URL        string    `json:"url"`
	FinalURL   string    `json:"finalUrl"`
	StatusCode int       `json:"statusCode"`
	Body       []byte    `json:"body"`
	Source     string    `json:"source"`
	FetchedAt  time.Time `json:"fetchedAt"`
}

// HTML returns the body as text
func (p *Page) HTML() string {
	return string(p.Body)
}

// Renderer fetches pages that plain HTTP cannot, e.g. through a headless browser
type Renderer interface {
	Name() string
	Render(ctx context.Context, url string) (*Page, error)
}

// Option configures a Fetcher
type Option func(*Fetcher)

// WithHTTPClient replaces the HTTP client
func WithHTTPClient(client *http.Client) Option {
	return func(f *Fetcher) { f.client = client }
}

// WithRenderer sets the last-resort renderer
func WithRenderer(r Renderer) Option {
	return func(f *Fetcher) { f.renderer = r }
}

// WithCache enables page caching
func WithCache(c cache.Cache) Option {
	return func(f *Fetcher) { f.cache = c }
}

// WithSleep replaces the context-aware sleep used between retries
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(f *Fetcher) { f.sleep = sleep }
}

// Fetcher retrieves pages. It is safe for concurrent use.
type Fetcher struct {
	cfg      Config
	client   *http.Client
	renderer Renderer
	cache    cache.Cache
	sleep    func(ctx context.Context, d time.Duration) error

	group singleflight.Group

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// New creates a fetcher
func New(cfg Config, opts ...Option) *Fetcher {
	f := &Fetcher{
		cfg:      cfg.withDefaults(),
		limiters: make(map[string]*rate.Limiter),
		sleep:    sleepContext,
	}
	f.client = &http.Client{
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 10 {
				return errors.New("stopped after 10 redirects")
			}
			return nil
		},
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

type attempt struct {
	url       string
	userAgent string
	source    string
}

// Fetch retrieves rawURL, which may be a bare domain. It walks the chain
// HTTPS desktop, HTTP desktop, HTTPS mobile and finally the renderer. A page
// without content moves on to the next step and is returned only when no
// later step does better.
// A 404 yields a nil page and a nil error. Access denial and exhausted
// rate-limit retries stop the chain.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*Page, error) {
	target := shared.EnsureScheme(rawURL)
	if target == "" {
		return nil, fmt.Errorf("fetch: empty url")
	}
	return f.cached(ctx, "page:"+target, func(ctx context.Context) (*Page, error) {
		return f.fetchChain(ctx, target)
	})
}

// FetchResource retrieves a single resource such as robots.txt or a sitemap
// without protocol, user-agent or renderer fallbacks.
func (f *Fetcher) FetchResource(ctx context.Context, rawURL string) (*Page, error) {
	target := shared.EnsureScheme(rawURL)
	if target == "" {
		return nil, fmt.Errorf("fetch: empty url")
	}
	return f.cached(ctx, "resource:"+target, func(ctx context.Context) (*Page, error) {
		return f.try(ctx, attempt{url: target, userAgent: f.cfg.DesktopUserAgent, source: "direct"})
	})
}

// cached coalesces concurrent loads of key. The load runs detached from the
// first caller's context, bounded by loadBudget, so one caller giving up does
// not fail the others. Each caller still returns when its own ctx is done.
func (f *Fetcher) cached(ctx context.Context, key string, load func(ctx context.Context) (*Page, error)) (*Page, error) {
	if f.cache != nil {
		var page Page
		if err := cache.GetJSON(ctx, f.cache, key, &page); err == nil {
			return &page, nil
		}
	}

	ch := f.group.DoChan(key, func() (interface{}, error) {
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), f.loadBudget())
		defer cancel()

		page, err := load(loadCtx)
		if err != nil || page == nil || blank(page.Body) {
			return page, err
		}
		if f.cache != nil && f.cfg.CacheTTL > 0 {
			if cerr := cache.SetJSON(loadCtx, f.cache, key, page, f.cfg.CacheTTL); cerr != nil {
				logger.Warning("Failed to cache %s: %v", page.URL, cerr)
			}
		}
		return page, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		page, _ := res.Val.(*Page)
		return page, nil
	}
}

// loadBudget bounds one detached load: every attempt with its retries and
// the renderer.
func (f *Fetcher) loadBudget() time.Duration {
	perAttempt := time.Duration(f.cfg.MaxRetries+1)*f.cfg.Timeout + time.Duration(f.cfg.MaxRetries)*f.cfg.MaxRetryAfter
	return 4 * perAttempt
}

func (f *Fetcher) fetchChain(ctx context.Context, target string) (*Page, error) {
	u, err := url.Parse(target)
	if err != nil {
		return nil, fmt.Errorf("fetch: invalid url %q: %w", target, err)
	}

	httpsURL := *u
	httpsURL.Scheme = "https"
	httpURL := *u
	httpURL.Scheme = "http"

	attempts := []attempt{
		{url: httpsURL.String(), userAgent: f.cfg.DesktopUserAgent, source: "https-desktop"},
		{url: httpURL.String(), userAgent: f.cfg.DesktopUserAgent, source: "http-desktop"},
		{url: httpsURL.String(), userAgent: f.cfg.MobileUserAgent, source: "https-mobile"},
	}

	var lastErr error
	var empty *Page
	for _, a := range attempts {
		page, err := f.try(ctx, a)
		if err == nil && page != nil && blank(page.Body) {
			logger.Debug("Fetch attempt %s for %s returned no content", a.source, a.url)
			if empty == nil {
				empty = page
			}
			continue
		}
		if err == nil {
			return page, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if terminal(err) {
			return nil, err
		}
		logger.Debug("Fetch attempt %s for %s failed: %v", a.source, a.url, err)
		lastErr = err
	}

	if f.renderer != nil {
		page, err := f.renderer.Render(ctx, httpsURL.String())
		if err == nil && page != nil && !blank(page.Body) {
			return page, nil
		}
		if err != nil {
			logger.Debug("Renderer %s failed for %s: %v", f.renderer.Name(), target, err)
		}
	}

	if empty != nil {
		return empty, nil
	}
	return nil, lastErr
}

// blank reports whether a body carries no readable content: only whitespace,
// or an HTML shell with scripts and an empty body that needs JavaScript.
func blank(body []byte) bool {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return true
	}
	if !bytes.Contains(bytes.ToLower(trimmed), []byte("<script")) {
		return false
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(trimmed))
	if err != nil {
		return false
	}
	sel := doc.Find("body")
	sel.Find("script, style, noscript, template").Remove()
	return strings.TrimSpace(sel.Text()) == "" && sel.Find("img").Length() == 0
}

// try runs one attempt with bounded retries for 429, 5xx and transport errors
func (f *Fetcher) try(ctx context.Context, a attempt) (*Page, error) {
	var lastErr error

	for retry := 0; retry <= f.cfg.MaxRetries; retry++ {
		if retry > 0 {
			delay := f.cfg.BaseDelay * time.Duration(1<<(retry-1))
			var fe *Error
			if errors.As(lastErr, &fe) && fe.retryAfter > delay {
				delay = fe.retryAfter
			}
			if err := f.sleep(ctx, delay); err != nil {
				return nil, err
			}
		}

		page, err := f.do(ctx, a)
		if err == nil {
			return page, nil
		}
		if !retryable(err) {
			return nil, err
		}
		lastErr = err
	}

	return nil, lastErr
}

func retryable(err error) bool {
	return errors.Is(err, ErrRateLimited) || errors.Is(err, ErrServerError) ||
		errors.Is(err, ErrTimeout) || errors.Is(err, ErrUnreachable)
}

func (f *Fetcher) do(ctx context.Context, a attempt) (*Page, error) {
	if err := f.limiter(a.url).Wait(ctx); err != nil {
		return nil, err
	}

	reqCtx, cancel := context.WithTimeout(ctx, f.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, a.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", a.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := f.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		kind := ErrUnreachable
		var netErr net.Error
		if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
			kind = ErrTimeout
		}
		return nil, &Error{URL: a.url, Kind: kind, Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		body, err := io.ReadAll(io.LimitReader(resp.Body, f.cfg.MaxBodyBytes))
		if err != nil {
			return nil, &Error{URL: a.url, Status: resp.StatusCode, Kind: ErrUnreachable, Err: err}
		}
		return &Page{
			URL:        a.url,
			FinalURL:   resp.Request.URL.String(),
			StatusCode: resp.StatusCode,
			Body:       body,
			Source:     a.source,
			FetchedAt:  time.Now(),
		}, nil
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return nil, nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, &Error{URL: a.url, Status: resp.StatusCode, Kind: ErrAccessDenied}
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, &Error{
			URL:        a.url,
			Status:     resp.StatusCode,
			Kind:       ErrRateLimited,
			retryAfter: min(parseRetryAfter(resp.Header.Get("Retry-After")), f.cfg.MaxRetryAfter),
		}
	case resp.StatusCode >= 500:
		return nil, &Error{URL: a.url, Status: resp.StatusCode, Kind: ErrServerError}
	default:
		return nil, &Error{URL: a.url, Status: resp.StatusCode, Kind: ErrUnexpected}
	}
}

func (f *Fetcher) limiter(rawURL string) *rate.Limiter {
	host := shared.HostOf(rawURL)

	f.mu.Lock()
	defer f.mu.Unlock()

	l, ok := f.limiters[host]
	if !ok {
		l = rate.NewLimiter(rate.Limit(f.cfg.RequestsPerSecond), f.cfg.Burst)
		f.limiters[host] = l
	}
	return l
}

// parseRetryAfter reads a Retry-After header given in seconds or as an HTTP date
func parseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
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
