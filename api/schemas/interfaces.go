package schemas

import (
	"context"
)

// -- Browser Interfaces --

// BrowserContext is an exclusive browser session (one tab with its own cookie
// store). Every method blocks until the underlying driver is done or its wait
// timeout fires.
type BrowserContext interface {
	// ID returns the unique identifier of this session.
	ID() string

	// Navigate loads a URL and waits for the document body.
	Navigate(ctx context.Context, url string) error
	// CurrentURL returns the location of the loaded document.
	CurrentURL(ctx context.Context) (string, error)

	// SetCookie writes a cookie scoped to the currently loaded document. A
	// document from the target domain must already be loaded.
	SetCookie(ctx context.Context, name, value string) error
	// Cookie reads a cookie visible to the current document.
	Cookie(ctx context.Context, name string) (Cookie, bool, error)

	// Fill replaces the value of an input element.
	Fill(ctx context.Context, sel Selector, value string) error
	// Press sends a single key (for example "Enter") to an element.
	Press(ctx context.Context, sel Selector, key string) error

	// Text returns the visible text of the first matching element.
	Text(ctx context.Context, sel Selector) (string, error)
	// Value returns the value property of the first matching input element.
	Value(ctx context.Context, sel Selector) (string, error)
	// WaitVisible blocks until a matching element is visible.
	WaitVisible(ctx context.Context, sel Selector) error
	// Exists reports whether a matching element is in the DOM right now, without waiting.
	Exists(ctx context.Context, sel Selector) (bool, error)

	// Evidence captures a screenshot and DOM snapshot of the current page.
	Evidence(ctx context.Context) (*Evidence, error)

	// Close releases the session. It is safe to call more than once.
	Close(ctx context.Context) error
}

// BrowserLauncher creates browser sessions and owns the browser process.
type BrowserLauncher interface {
	// NewSession acquires a fresh, isolated browser session.
	NewSession(ctx context.Context) (BrowserContext, error)
	// Shutdown closes every open session and terminates the browser.
	Shutdown(ctx context.Context) error
}

// -- Store Interface --

// RunStore persists finished runs.
type RunStore interface {
	SaveRun(ctx context.Context, run *RunResult) error
}
