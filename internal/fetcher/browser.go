package fetcher

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"github.com/AI2HU/compscout/internal/logger"
)

// BrowserConfig configures the headless Chromium renderer
type BrowserConfig struct {
	// DebuggerURL connects to an already running browser instead of launching one
	DebuggerURL string        `mapstructure:"debugger_url" yaml:"debugger_url"`
	Bin         string        `mapstructure:"bin" yaml:"bin"`
	Timeout     time.Duration `mapstructure:"timeout" yaml:"timeout"`
	UserAgent   string        `mapstructure:"user_agent" yaml:"user_agent"`
}

// BrowserRenderer renders JavaScript-heavy pages in headless Chromium
type BrowserRenderer struct {
	cfg BrowserConfig

	mu      sync.Mutex
	browser *rod.Browser
}

// NewBrowserRenderer creates a renderer. The browser starts on first use.
func NewBrowserRenderer(cfg BrowserConfig) *BrowserRenderer {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 45 * time.Second
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultDesktopUserAgent
	}
	return &BrowserRenderer{cfg: cfg}
}

// Name returns the renderer name
func (b *BrowserRenderer) Name() string {
	return "browser"
}

func (b *BrowserRenderer) ensureStarted() (*rod.Browser, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.browser != nil {
		return b.browser, nil
	}

	controlURL := b.cfg.DebuggerURL
	if controlURL == "" {
		l := launcher.New().Headless(true)
		if b.cfg.Bin != "" {
			l = l.Bin(b.cfg.Bin)
		}
		u, err := l.Launch()
		if err != nil {
			return nil, fmt.Errorf("launch chrome: %w", err)
		}
		controlURL = u
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("connect to chrome: %w", err)
	}

	logger.Debug("Headless browser connected")
	b.browser = browser
	return browser, nil
}

// Render loads url in a fresh incognito context and returns the DOM after load
func (b *BrowserRenderer) Render(ctx context.Context, url string) (*Page, error) {
	browser, err := b.ensureStarted()
	if err != nil {
		return nil, err
	}

	incognito, err := browser.Incognito()
	if err != nil {
		return nil, fmt.Errorf("incognito context: %w", err)
	}
	defer func() { _ = incognito.Close() }()

	page, err := incognito.Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, fmt.Errorf("create page: %w", err)
	}
	page = page.Context(ctx).Timeout(b.cfg.Timeout)

	if err := (proto.NetworkSetUserAgentOverride{UserAgent: b.cfg.UserAgent}).Call(page); err != nil {
		logger.Debug("Failed to set browser user agent: %v", err)
	}
	if err := page.Navigate(url); err != nil {
		return nil, &Error{URL: url, Kind: ErrUnreachable, Err: err}
	}
	if err := page.WaitLoad(); err != nil {
		return nil, &Error{URL: url, Kind: ErrTimeout, Err: err}
	}

	html, err := page.HTML()
	if err != nil {
		return nil, fmt.Errorf("read rendered html: %w", err)
	}

	finalURL := url
	if info, err := page.Info(); err == nil && info.URL != "" {
		finalURL = info.URL
	}

	return &Page{
		URL:        url,
		FinalURL:   finalURL,
		StatusCode: 200,
		Body:       []byte(html),
		Source:     b.Name(),
		FetchedAt:  time.Now(),
	}, nil
}

// Close shuts the browser down
func (b *BrowserRenderer) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.browser == nil {
		return nil
	}
	err := b.browser.Close()
	b.browser = nil
	return err
}
