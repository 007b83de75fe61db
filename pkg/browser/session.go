package browser

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/entrhq/bugson/pkg/automator"
)

// Session is one browser window. Its pages are the window's tabs; the first
// page is the one the session navigates and annotates.
type Session struct {
	Name      string
	Browser   playwright.Browser
	Context   playwright.BrowserContext
	Headless  bool
	CreatedAt time.Time

	timeout float64
	tabs    tabSet
	main    playwright.Page

	mu         sync.Mutex
	lastUsedAt time.Time
}

func newSession(name string, browser playwright.Browser, bctx playwright.BrowserContext, opts SessionOptions) *Session {
	now := time.Now()
	s := &Session{
		Name:       name,
		Browser:    browser,
		Context:    bctx,
		Headless:   opts.Headless,
		CreatedAt:  now,
		timeout:    opts.Timeout,
		lastUsedAt: now,
	}

	// Pages opened by the page itself are tabs too. The event also fires for
	// pages the session creates; adopt is idempotent.
	bctx.OnPage(func(page playwright.Page) {
		s.adopt(page)
	})
	return s
}

// open creates the session's main tab.
func (s *Session) open() error {
	page, err := s.Context.NewPage()
	if err != nil {
		return fmt.Errorf("failed to create page: %w", err)
	}
	s.adopt(page)
	s.main = page
	s.tabs.activate(page)
	return nil
}

func (s *Session) adopt(page playwright.Page) {
	if !s.tabs.known(page) {
		page.SetDefaultTimeout(s.timeout)
		page.OnClose(func(p playwright.Page) {
			s.tabs.forget(p)
		})
	}
	s.tabs.track(page)
}

// UpdateLastUsed updates the last use timestamp to the current time.
func (s *Session) UpdateLastUsed() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastUsedAt = time.Now()
}

// LastUsedAt reports when the session was last used.
func (s *Session) LastUsedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastUsedAt
}

// Page returns the session's main page.
func (s *Session) Page() playwright.Page {
	return s.main
}

// CurrentURL returns the URL of the main page.
func (s *Session) CurrentURL() string {
	if s.main == nil {
		return "about:blank"
	}
	return s.main.URL()
}

// Navigate navigates the main page to the specified URL.
func (s *Session) Navigate(url string, opts NavigateOptions) error {
	s.UpdateLastUsed()

	playwrightOpts := playwright.PageGotoOptions{}
	if opts.WaitUntil != "" {
		waitUntil := playwright.WaitUntilState(opts.WaitUntil)
		playwrightOpts.WaitUntil = &waitUntil
	}

	if _, err := s.main.Goto(url, playwrightOpts); err != nil {
		return fmt.Errorf("navigation failed: %w", err)
	}
	return nil
}

// Activate makes page the active tab and brings it to the front.
func (s *Session) Activate(page playwright.Page) {
	s.tabs.activate(page)
	_ = page.BringToFront()
}

// QueryTabs implements automator.TabService.
func (s *Session) QueryTabs(ctx context.Context) ([]automator.Tab, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.tabs.list(), nil
}

// OpenTab implements automator.TabService. The tab is returned as soon as
// navigation has committed; ExecuteScript waits for the page to load.
func (s *Session) OpenTab(ctx context.Context, opts automator.OpenOptions) (automator.Tab, error) {
	if err := ctx.Err(); err != nil {
		return automator.Tab{}, err
	}
	s.UpdateLastUsed()

	page, err := s.Context.NewPage()
	if err != nil {
		return automator.Tab{}, fmt.Errorf("failed to create tab: %w", err)
	}
	s.adopt(page)
	tab := s.tabs.place(page, opts.Index, opts.OpenerID, opts.Active)
	if opts.Active {
		_ = page.BringToFront()
	}

	commit := playwright.WaitUntilState("commit")
	if _, err := page.Goto(opts.URL, playwright.PageGotoOptions{WaitUntil: &commit}); err != nil {
		return tab, fmt.Errorf("failed to open %s: %w", opts.URL, err)
	}
	tab.URL = page.URL()
	return tab, nil
}

// ExecuteScript implements automator.TabService.
func (s *Session) ExecuteScript(ctx context.Context, tab automator.Tab, code string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.UpdateLastUsed()

	page, ok := s.tabs.page(tab.ID)
	if !ok {
		return fmt.Errorf("tab %d is closed", tab.ID)
	}

	load := playwright.LoadState("load")
	if err := page.WaitForLoadState(playwright.PageWaitForLoadStateOptions{State: &load}); err != nil {
		return fmt.Errorf("tab %d did not load: %w", tab.ID, err)
	}
	if _, err := page.Evaluate(code); err != nil {
		return fmt.Errorf("script failed in tab %d: %w", tab.ID, err)
	}
	return nil
}

// close releases every tab, the context and the browser. Errors are
// collected and returned together.
func (s *Session) close() []error {
	var errs []error
	for _, page := range s.tabs.pages() {
		if err := page.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := s.Context.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := s.Browser.Close(); err != nil {
		errs = append(errs, err)
	}
	return errs
}

// SessionInfo contains metadata about a browser session.
type SessionInfo struct {
	Name       string
	CurrentURL string
	Headless   bool
	Tabs       int
	CreatedAt  time.Time
	LastUsedAt time.Time
}

func (s *Session) info() SessionInfo {
	return SessionInfo{
		Name:       s.Name,
		CurrentURL: s.CurrentURL(),
		Headless:   s.Headless,
		Tabs:       len(s.tabs.list()),
		CreatedAt:  s.CreatedAt,
		LastUsedAt: s.LastUsedAt(),
	}
}
