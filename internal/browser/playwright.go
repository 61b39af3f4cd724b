// File: internal/browser/playwright.go
package browser

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/playwright-community/playwright-go"
	"go.uber.org/zap"

	"github.com/avasilev/shopbridge/api/schemas"
	"github.com/avasilev/shopbridge/internal/config"
)

// PlaywrightLauncher drives Chromium through the Playwright driver. Each
// session is a fresh Playwright browser context with one page.
type PlaywrightLauncher struct {
	cfg        config.BrowserConfig
	navTimeout time.Duration
	logger     *zap.Logger

	pw      *playwright.Playwright
	browser playwright.Browser

	mu       sync.Mutex
	sessions map[string]*PlaywrightSession
	closed   bool

	initOnce sync.Once
	initErr  error
}

var _ schemas.BrowserLauncher = (*PlaywrightLauncher)(nil)

// NewPlaywrightLauncher prepares a launcher. The driver is started lazily.
func NewPlaywrightLauncher(cfg *config.Config, logger *zap.Logger) *PlaywrightLauncher {
	return &PlaywrightLauncher{
		cfg:        cfg.Browser,
		navTimeout: cfg.Network.NavigationTimeout,
		logger:     logger.Named("playwright"),
		sessions:   make(map[string]*PlaywrightSession),
	}
}

func (l *PlaywrightLauncher) initialize() error {
	l.initOnce.Do(func() {
		l.logger.Info("Starting Playwright driver and launching Chromium.")
		pw, err := playwright.Run()
		if err != nil {
			l.initErr = fmt.Errorf("failed to start playwright driver: %w", err)
			return
		}

		opts := playwright.BrowserTypeLaunchOptions{
			Headless: playwright.Bool(l.cfg.Headless),
			Args:     l.launchArgs(),
			Timeout:  playwright.Float(60000),
		}
		if l.cfg.ExecPath != "" {
			opts.ExecutablePath = playwright.String(l.cfg.ExecPath)
		}
		browser, err := pw.Chromium.Launch(opts)
		if err != nil {
			_ = pw.Stop()
			l.initErr = fmt.Errorf("failed to launch browser instance: %w", err)
			return
		}
		l.pw, l.browser = pw, browser
		l.logger.Info("Browser launched.", zap.String("browser_version", browser.Version()))
	})
	return l.initErr
}

// launchArgs turns the shared flag set into command line switches. Playwright
// manages headless mode itself.
func (l *PlaywrightLauncher) launchArgs() []string {
	flags := allocatorFlags(l.cfg)
	delete(flags, "headless")
	delete(flags, "enable-automation")

	names := make([]string, 0, len(flags))
	for name := range flags {
		names = append(names, name)
	}
	sort.Strings(names)

	args := make([]string, 0, len(flags))
	for _, name := range names {
		switch val := flags[name].(type) {
		case bool:
			if val {
				args = append(args, "--"+name)
			}
		default:
			args = append(args, fmt.Sprintf("--%s=%v", name, val))
		}
	}
	return args
}

// NewSession opens an isolated browser context with a single page.
func (l *PlaywrightLauncher) NewSession(ctx context.Context) (schemas.BrowserContext, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.Lock()
	closed := l.closed
	l.mu.Unlock()
	if closed {
		return nil, ErrManagerClosed
	}
	if err := l.initialize(); err != nil {
		return nil, err
	}

	width, height := viewport(l.cfg)
	bctx, err := l.browser.NewContext(playwright.BrowserNewContextOptions{
		IgnoreHttpsErrors: playwright.Bool(l.cfg.IgnoreTLSErrors),
		Viewport:          &playwright.Size{Width: width, Height: height},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create browser context: %w", err)
	}
	page, err := bctx.NewPage()
	if err != nil {
		_ = bctx.Close()
		return nil, fmt.Errorf("failed to open page: %w", err)
	}

	wait := l.cfg.WaitTimeout
	if wait <= 0 {
		wait = 10 * time.Second
	}
	nav := l.navTimeout
	if nav <= 0 {
		nav = 60 * time.Second
	}
	page.SetDefaultTimeout(float64(wait.Milliseconds()))
	page.SetDefaultNavigationTimeout(float64(nav.Milliseconds()))

	id := uuid.NewString()
	s := &PlaywrightSession{
		id:     id,
		bctx:   bctx,
		page:   page,
		logger: l.logger.With(zap.String("session_id", id)),
	}
	s.onClose = func() {
		l.mu.Lock()
		delete(l.sessions, id)
		l.mu.Unlock()
	}

	l.mu.Lock()
	l.sessions[id] = s
	l.mu.Unlock()
	l.logger.Info("New browser session created.", zap.String("session_id", id))
	return s, nil
}

// Shutdown closes all sessions, the browser and the driver.
func (l *PlaywrightLauncher) Shutdown(ctx context.Context) error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	open := make([]*PlaywrightSession, 0, len(l.sessions))
	for _, s := range l.sessions {
		open = append(open, s)
	}
	l.mu.Unlock()

	var errs []error
	for _, s := range open {
		if err := s.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if l.browser != nil {
		if err := l.browser.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close browser: %w", err))
		}
	}
	if l.pw != nil {
		if err := l.pw.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop playwright driver: %w", err))
		}
	}
	l.logger.Info("Playwright launcher shutdown complete.")
	return errors.Join(errs...)
}

// PlaywrightSession implements schemas.BrowserContext on a Playwright page.
// Playwright calls are not context aware; ctx is checked before each call and
// the page's default timeouts bound the call itself.
type PlaywrightSession struct {
	id     string
	bctx   playwright.BrowserContext
	page   playwright.Page
	logger *zap.Logger

	closeOnce sync.Once
	onClose   func()
}

var _ schemas.BrowserContext = (*PlaywrightSession)(nil)

func (s *PlaywrightSession) ID() string { return s.id }

func (s *PlaywrightSession) Navigate(ctx context.Context, target string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := s.page.Goto(target, playwright.PageGotoOptions{WaitUntil: playwright.WaitUntilStateLoad}); err != nil {
		return fmt.Errorf("navigate to %s: %w", target, err)
	}
	return nil
}

func (s *PlaywrightSession) CurrentURL(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return s.page.URL(), nil
}

// SetCookie stores a host-only cookie for the loaded page's host with path "/".
func (s *PlaywrightSession) SetCookie(ctx context.Context, name, value string) error {
	loc, err := s.CurrentURL(ctx)
	if err != nil {
		return err
	}
	if !isHTTPDocument(loc) {
		return fmt.Errorf("set cookie %s on %q: %w", name, loc, ErrNoDocument)
	}
	u, err := url.Parse(loc)
	if err != nil {
		return fmt.Errorf("set cookie %s: %w", name, err)
	}

	err = s.bctx.AddCookies([]playwright.OptionalCookie{{
		Name:     name,
		Value:    value,
		Domain:   playwright.String(u.Hostname()),
		Path:     playwright.String("/"),
		HttpOnly: playwright.Bool(true),
		Secure:   playwright.Bool(u.Scheme == "https"),
	}})
	if err != nil {
		return fmt.Errorf("set cookie %s: %w", name, err)
	}
	return nil
}

func (s *PlaywrightSession) Cookie(ctx context.Context, name string) (schemas.Cookie, bool, error) {
	if err := ctx.Err(); err != nil {
		return schemas.Cookie{}, false, err
	}
	cookies, err := s.bctx.Cookies(s.page.URL())
	if err != nil {
		return schemas.Cookie{}, false, fmt.Errorf("read cookies: %w", err)
	}
	for _, c := range cookies {
		if c.Name != name {
			continue
		}
		out := schemas.Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			HTTPOnly: c.HttpOnly,
			Secure:   c.Secure,
		}
		if c.Expires > 0 {
			out.Expires = time.Unix(int64(c.Expires), 0)
		}
		return out, true, nil
	}
	return schemas.Cookie{}, false, nil
}

func (s *PlaywrightSession) Fill(ctx context.Context, sel schemas.Selector, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.locator(sel).Fill(value); err != nil {
		return fmt.Errorf("fill %s: %w", sel, err)
	}
	return nil
}

func (s *PlaywrightSession) Press(ctx context.Context, sel schemas.Selector, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.locator(sel).Press(key); err != nil {
		return fmt.Errorf("press %s on %s: %w", key, sel, err)
	}
	return nil
}

func (s *PlaywrightSession) Text(ctx context.Context, sel schemas.Selector) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	text, err := s.locator(sel).InnerText()
	if err != nil {
		return "", fmt.Errorf("text of %s: %w", sel, err)
	}
	return strings.TrimSpace(text), nil
}

func (s *PlaywrightSession) Value(ctx context.Context, sel schemas.Selector) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	v, err := s.locator(sel).InputValue()
	if err != nil {
		return "", fmt.Errorf("value of %s: %w", sel, err)
	}
	return v, nil
}

func (s *PlaywrightSession) WaitVisible(ctx context.Context, sel schemas.Selector) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := s.locator(sel).WaitFor(playwright.LocatorWaitForOptions{State: playwright.WaitForSelectorStateVisible})
	if err != nil {
		return fmt.Errorf("wait visible %s: %w", sel, err)
	}
	return nil
}

func (s *PlaywrightSession) Exists(ctx context.Context, sel schemas.Selector) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	n, err := s.page.Locator(playwrightSelector(sel)).Count()
	if err != nil {
		return false, fmt.Errorf("check presence of %s: %w", sel, err)
	}
	return n > 0, nil
}

func (s *PlaywrightSession) Evidence(ctx context.Context) (*schemas.Evidence, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ev := &schemas.Evidence{URL: s.page.URL(), CapturedAt: time.Now()}
	var errs []error

	shot, err := s.page.Screenshot(playwright.PageScreenshotOptions{FullPage: playwright.Bool(true)})
	if err != nil {
		errs = append(errs, fmt.Errorf("screenshot: %w", err))
	}
	ev.Screenshot = shot

	dom, err := s.page.Content()
	if err != nil {
		errs = append(errs, fmt.Errorf("dom snapshot: %w", err))
	}
	ev.DOM = dom
	return ev, errors.Join(errs...)
}

func (s *PlaywrightSession) Close(ctx context.Context) error {
	var err error
	s.closeOnce.Do(func() {
		err = s.bctx.Close()
		if s.onClose != nil {
			s.onClose()
		}
		s.logger.Debug("Session closed.")
	})
	return err
}

func (s *PlaywrightSession) locator(sel schemas.Selector) playwright.Locator {
	return s.page.Locator(playwrightSelector(sel)).First()
}

// playwrightSelector prefixes XPath queries with the engine name Playwright expects.
func playwrightSelector(sel schemas.Selector) string {
	if sel.Kind == schemas.SelectorXPath {
		return "xpath=" + sel.Query
	}
	return sel.Query
}
