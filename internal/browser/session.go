// File: internal/browser/session.go
package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"
	"go.uber.org/zap"

	"github.com/avasilev/shopbridge/api/schemas"
)

// ErrNoDocument is returned when a cookie operation is attempted while no
// http(s) document is loaded, for example on about:blank.
var ErrNoDocument = errors.New("no http document is loaded")

// Session is a chromedp-driven browser context with one tab.
type Session struct {
	id          string
	ctx         context.Context
	cancel      context.CancelFunc
	logger      *zap.Logger
	waitTimeout time.Duration
	navTimeout  time.Duration

	closeOnce sync.Once
	onClose   func()
}

var _ schemas.BrowserContext = (*Session)(nil)

// ID returns the unique identifier of the session.
func (s *Session) ID() string { return s.id }

// run executes actions on the session's tab. The actions stop when the
// timeout elapses, the caller's ctx is done, or the session is closed.
func (s *Session) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	runCtx, cancel := context.WithTimeout(s.ctx, timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(runCtx, actions...)
	if err != nil && ctx.Err() != nil {
		// Report the caller's cancellation rather than the derived context's.
		return ctx.Err()
	}
	return err
}

// Navigate loads url and waits for the document body.
func (s *Session) Navigate(ctx context.Context, url string) error {
	timeout := s.navTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	s.logger.Debug("Navigating.", zap.String("url", url))
	if err := s.run(ctx, timeout,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	); err != nil {
		return fmt.Errorf("navigate to %s: %w", url, err)
	}
	return nil
}

// CurrentURL returns the location of the loaded document.
func (s *Session) CurrentURL(ctx context.Context) (string, error) {
	var loc string
	if err := s.run(ctx, s.waitTimeout, chromedp.Location(&loc)); err != nil {
		return "", fmt.Errorf("read location: %w", err)
	}
	return loc, nil
}

// SetCookie stores a host-only, HttpOnly cookie for the loaded document's
// host with path "/". The cookie is scoped through the page URL, which is why
// a document from the target host must be loaded first.
func (s *Session) SetCookie(ctx context.Context, name, value string) error {
	loc, err := s.CurrentURL(ctx)
	if err != nil {
		return err
	}
	if !isHTTPDocument(loc) {
		return fmt.Errorf("set cookie %s on %q: %w", name, loc, ErrNoDocument)
	}

	err = s.run(ctx, s.waitTimeout, chromedp.ActionFunc(func(ctx context.Context) error {
		return network.SetCookie(name, value).
			WithURL(loc).
			WithPath("/").
			WithHTTPOnly(true).
			Do(ctx)
	}))
	if err != nil {
		return fmt.Errorf("set cookie %s: %w", name, err)
	}
	s.logger.Debug("Cookie set.", zap.String("name", name), zap.String("url", loc))
	return nil
}

// Cookie reads a cookie visible to the loaded document.
func (s *Session) Cookie(ctx context.Context, name string) (schemas.Cookie, bool, error) {
	var cookies []*network.Cookie
	err := s.run(ctx, s.waitTimeout, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		cookies, err = network.GetCookies().Do(ctx)
		return err
	}))
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
			HTTPOnly: c.HTTPOnly,
			Secure:   c.Secure,
		}
		if c.Expires > 0 {
			out.Expires = time.Unix(int64(c.Expires), 0)
		}
		return out, true, nil
	}
	return schemas.Cookie{}, false, nil
}

// Fill clears an input and types value into it.
func (s *Session) Fill(ctx context.Context, sel schemas.Selector, value string) error {
	opt := queryOption(sel)
	if err := s.run(ctx, s.waitTimeout,
		chromedp.WaitVisible(sel.Query, opt),
		chromedp.Clear(sel.Query, opt),
		chromedp.SendKeys(sel.Query, value, opt),
	); err != nil {
		return fmt.Errorf("fill %s: %w", sel, err)
	}
	return nil
}

// Press sends a single named key to an element. A navigation triggered by the
// key is not awaited; callers wait for an element of the next page instead.
func (s *Session) Press(ctx context.Context, sel schemas.Selector, key string) error {
	if err := s.run(ctx, s.waitTimeout, chromedp.SendKeys(sel.Query, keyCode(key), queryOption(sel))); err != nil {
		return fmt.Errorf("press %s on %s: %w", key, sel, err)
	}
	return nil
}

// Text returns the trimmed visible text of the first matching element.
func (s *Session) Text(ctx context.Context, sel schemas.Selector) (string, error) {
	var text string
	if err := s.run(ctx, s.waitTimeout, chromedp.Text(sel.Query, &text, queryOption(sel))); err != nil {
		return "", fmt.Errorf("text of %s: %w", sel, err)
	}
	return strings.TrimSpace(text), nil
}

// Value returns the value property of the first matching input.
func (s *Session) Value(ctx context.Context, sel schemas.Selector) (string, error) {
	var value string
	if err := s.run(ctx, s.waitTimeout, chromedp.Value(sel.Query, &value, queryOption(sel))); err != nil {
		return "", fmt.Errorf("value of %s: %w", sel, err)
	}
	return value, nil
}

// WaitVisible blocks until a matching element is visible.
func (s *Session) WaitVisible(ctx context.Context, sel schemas.Selector) error {
	if err := s.run(ctx, s.waitTimeout, chromedp.WaitVisible(sel.Query, queryOption(sel))); err != nil {
		return fmt.Errorf("wait visible %s: %w", sel, err)
	}
	return nil
}

// Exists reports whether a matching element is present right now.
func (s *Session) Exists(ctx context.Context, sel schemas.Selector) (bool, error) {
	q, err := json.Marshal(sel.Query)
	if err != nil {
		return false, err
	}
	var script string
	switch sel.Kind {
	case schemas.SelectorXPath:
		script = fmt.Sprintf(`document.evaluate(%s, document, null, XPathResult.FIRST_ORDERED_NODE_TYPE, null).singleNodeValue !== null`, q)
	default:
		script = fmt.Sprintf(`document.querySelector(%s) !== null`, q)
	}

	var found bool
	if err := s.run(ctx, s.waitTimeout, chromedp.Evaluate(script, &found)); err != nil {
		return false, fmt.Errorf("check presence of %s: %w", sel, err)
	}
	return found, nil
}

// Evidence captures a screenshot, the serialized DOM and the location. Parts
// that cannot be captured are left empty.
func (s *Session) Evidence(ctx context.Context) (*schemas.Evidence, error) {
	ev := &schemas.Evidence{CapturedAt: time.Now()}
	var errs []error

	if err := s.run(ctx, s.waitTimeout, chromedp.Location(&ev.URL)); err != nil {
		errs = append(errs, err)
	}
	if err := s.run(ctx, s.waitTimeout, chromedp.CaptureScreenshot(&ev.Screenshot)); err != nil {
		errs = append(errs, fmt.Errorf("screenshot: %w", err))
	}
	if err := s.run(ctx, s.waitTimeout, chromedp.OuterHTML("html", &ev.DOM, chromedp.ByQuery)); err != nil {
		errs = append(errs, fmt.Errorf("dom snapshot: %w", err))
	}
	return ev, errors.Join(errs...)
}

// Close closes the tab and disposes of the browser context.
func (s *Session) Close(ctx context.Context) error {
	var err error
	s.closeOnce.Do(func() {
		done := make(chan error, 1)
		go func() { done <- chromedp.Cancel(s.ctx) }()
		select {
		case err = <-done:
			if errors.Is(err, context.Canceled) {
				err = nil
			}
		case <-ctx.Done():
			err = ctx.Err()
		}
		s.cancel()
		if s.onClose != nil {
			s.onClose()
		}
		s.logger.Debug("Session closed.")
	})
	return err
}

// queryOption picks the chromedp query strategy for a selector kind.
func queryOption(sel schemas.Selector) chromedp.QueryOption {
	if sel.Kind == schemas.SelectorXPath {
		return chromedp.BySearch
	}
	return chromedp.ByQuery
}

func keyCode(key string) string {
	switch strings.ToLower(key) {
	case "enter":
		return kb.Enter
	case "tab":
		return kb.Tab
	case "escape":
		return kb.Escape
	default:
		return key
	}
}

func isHTTPDocument(loc string) bool {
	return strings.HasPrefix(loc, "http://") || strings.HasPrefix(loc, "https://")
}
