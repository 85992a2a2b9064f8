// Package roddoc implements the document runtime protocol over a live
// Chromium page driven through Rod.
//
// Queries and mutations never build executable code from caller data: a
// fixed helper library is injected once per page (go:embed), and every call
// passes its parameters as JSON arguments to a fixed entry point. Page-side
// interactions (clicks in select mode, hovers in inspect mode) come back
// through a runtime binding and surface on the Events channel, making this
// runtime the interactive counterpart of memdoc.
//
// Remote evaluation failures are returned to the caller unmodified; the
// runtime never retries, since a document-side fault is not expected to be
// transient.
package roddoc

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
)

// Config configures the browser manager.
type Config struct {
	// RemoteURL is the WebSocket URL of an external Chrome instance.
	// Empty = launch a local Chrome via launcher.
	RemoteURL string

	// Headless launches Chrome without a display. Default: true.
	Headless *bool

	// Stealth creates pages through the stealth bundle to lower automation
	// fingerprinting.
	Stealth bool

	// NavTimeout bounds page navigation and load. Default: 30s.
	NavTimeout time.Duration

	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.Headless == nil {
		t := true
		c.Headless = &t
	}
	if c.NavTimeout <= 0 {
		c.NavTimeout = 30 * time.Second
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Manager owns the Chrome process and hands out page-bound runtimes.
type Manager struct {
	cfg     Config
	mu      sync.Mutex
	browser *rod.Browser
	lnch    *launcher.Launcher
	closed  bool
}

// NewManager creates a Manager. Call Start to launch or connect Chrome.
func NewManager(cfg Config) *Manager {
	cfg.defaults()
	return &Manager{cfg: cfg}
}

// Start launches a local Chrome (or connects to RemoteURL).
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return fmt.Errorf("roddoc: manager is closed")
	}
	if m.browser != nil {
		return nil
	}

	log := m.cfg.Logger
	var wsURL string
	if m.cfg.RemoteURL != "" {
		wsURL = m.cfg.RemoteURL
		log.Info("roddoc: connecting to remote chrome", "url", wsURL)
	} else {
		l := launcher.New().Headless(*m.cfg.Headless)
		l = l.Set("disable-blink-features", "AutomationControlled")
		u, err := l.Launch()
		if err != nil {
			return fmt.Errorf("roddoc: launch: %w", err)
		}
		wsURL = u
		m.lnch = l
		log.Info("roddoc: launched local chrome", "headless", *m.cfg.Headless)
	}

	b := rod.New().ControlURL(wsURL)
	if err := b.Connect(); err != nil {
		return fmt.Errorf("roddoc: connect: %w", err)
	}
	if err := b.IgnoreCertErrors(true); err != nil {
		log.Warn("roddoc: ignore cert errors failed", "error", err)
	}
	m.browser = b
	return nil
}

// Open navigates a fresh page to url and returns a runtime bound to it.
func (m *Manager) Open(ctx context.Context, url string) (*Runtime, error) {
	m.mu.Lock()
	b := m.browser
	m.mu.Unlock()
	if b == nil {
		return nil, fmt.Errorf("roddoc: manager not started")
	}

	var page *rod.Page
	var err error
	if m.cfg.Stealth {
		page, err = stealth.Page(b)
	} else {
		page, err = b.Page(proto.TargetCreateTarget{URL: ""})
	}
	if err != nil {
		return nil, fmt.Errorf("roddoc: open page: %w", err)
	}

	navCtx, cancel := context.WithTimeout(ctx, m.cfg.NavTimeout)
	defer cancel()
	if err := page.Context(navCtx).Navigate(url); err != nil {
		page.Close()
		return nil, fmt.Errorf("roddoc: navigate %s: %w", url, err)
	}
	if err := page.Context(navCtx).WaitLoad(); err != nil {
		page.Close()
		return nil, fmt.Errorf("roddoc: wait load %s: %w", url, err)
	}

	rt, err := newRuntime(page, m.cfg.Logger)
	if err != nil {
		page.Close()
		return nil, err
	}
	m.cfg.Logger.Info("roddoc: page bound", "url", url)
	return rt, nil
}

// Close shuts the browser down. Runtimes opened from this manager stop
// working.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	if m.browser != nil {
		m.browser.Close()
		m.browser = nil
	}
	if m.lnch != nil {
		m.lnch.Cleanup()
		m.lnch = nil
	}
	return nil
}
