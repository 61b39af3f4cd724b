// File: internal/bridge/bridge.go

// Package bridge carries an authenticated session from the HTTP side of the
// shop into a browser: it obtains a session token, primes the browser on the
// shop host, injects the token as a cookie and asserts that the UI shows the
// logged-in customer.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/avasilev/shopbridge/api/schemas"
	"github.com/avasilev/shopbridge/internal/config"
	"github.com/avasilev/shopbridge/internal/failures"
)

var (
	// ErrInvalidTransition is returned for an operation the current state does not allow.
	ErrInvalidTransition = errors.New("invalid bridge transition")
	// ErrBridgeFailed is returned by every operation after a failed one.
	ErrBridgeFailed = errors.New("bridge has failed")
)

// TokenIssuer produces a session token.
type TokenIssuer interface {
	Issue(ctx context.Context) (schemas.Token, error)
}

// TokenApplier makes a browser context use a session token. Any browser
// preparation the token needs is part of Apply.
type TokenApplier interface {
	Apply(ctx context.Context, token schemas.Token, bc schemas.BrowserContext) error
}

// PrimingApplier exposes the two halves of Apply so the bridge can track them
// as separate states.
type PrimingApplier interface {
	TokenApplier
	Prime(ctx context.Context, bc schemas.BrowserContext) error
	Inject(ctx context.Context, token schemas.Token, bc schemas.BrowserContext) error
}

// State is a position in the bridge's lifecycle.
type State int

const (
	StateUnauthenticated State = iota
	StateTokenAcquired
	StateBrowserPrimed
	StateCookieInjected
	StateAuthenticated
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateUnauthenticated:
		return "unauthenticated"
	case StateTokenAcquired:
		return "token_acquired"
	case StateBrowserPrimed:
		return "browser_primed"
	case StateCookieInjected:
		return "cookie_injected"
	case StateAuthenticated:
		return "authenticated"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Options locate the page and element that prove the UI is authenticated.
type Options struct {
	BaseURL      string
	IdentityPath string
	Account      schemas.Selector
}

// OptionsFromConfig reads the identity page settings of the shop.
func OptionsFromConfig(cfg config.ShopConfig) Options {
	return Options{
		BaseURL:      cfg.BaseURL,
		IdentityPath: cfg.IdentityPath,
		Account:      schemas.CSS(cfg.AccountSelector),
	}
}

// Bridge is the per-scenario session bridge. It caches the issued token so
// it can be applied again to later browser sessions without logging in twice.
// A Bridge is safe for concurrent use but its operations are serialized.
type Bridge struct {
	issuer  TokenIssuer
	applier PrimingApplier
	opts    Options
	logger  *zap.Logger

	mu    sync.Mutex
	state State
	token schemas.Token
	err   error
}

func New(issuer TokenIssuer, applier PrimingApplier, opts Options, logger *zap.Logger) *Bridge {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bridge{
		issuer:  issuer,
		applier: applier,
		opts:    opts,
		logger:  logger.Named("bridge"),
	}
}

// State returns the current state.
func (b *Bridge) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Token returns the cached token, if any.
func (b *Bridge) Token() (schemas.Token, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.token, b.token.Valid()
}

// AuthenticateViaAPI obtains a token from the issuer.
// Unauthenticated -> TokenAcquired.
func (b *Bridge) AuthenticateViaAPI(ctx context.Context) (schemas.Token, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.check("authenticate", StateUnauthenticated); err != nil {
		return schemas.Token{}, err
	}
	if err := b.issue(ctx); err != nil {
		return schemas.Token{}, err
	}
	return b.token, nil
}

// PrimeBrowser loads the in-domain asset in bc.
// TokenAcquired -> BrowserPrimed.
func (b *Bridge) PrimeBrowser(ctx context.Context, bc schemas.BrowserContext) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.check("prime browser", StateTokenAcquired); err != nil {
		return err
	}
	return b.prime(ctx, bc)
}

// InjectSession writes token into the primed browser and caches it.
// BrowserPrimed -> CookieInjected.
func (b *Bridge) InjectSession(ctx context.Context, bc schemas.BrowserContext, token schemas.Token) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.check("inject session", StateBrowserPrimed); err != nil {
		return err
	}
	b.token = token
	return b.inject(ctx, bc)
}

// AssertAuthenticated opens the identity page and checks that the account
// element shows expected. CookieInjected or Authenticated -> Authenticated.
func (b *Bridge) AssertAuthenticated(ctx context.Context, bc schemas.BrowserContext, expected string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.check("assert authenticated", StateCookieInjected, StateAuthenticated); err != nil {
		return err
	}

	if err := VerifyAccount(ctx, bc, b.opts, expected); err != nil {
		return b.fail(err)
	}
	b.advance(StateAuthenticated)
	return nil
}

// VerifyAccount opens the identity page in bc and checks that the account
// element shows expected. It is the authentication predicate for tokens of
// either origin.
func VerifyAccount(ctx context.Context, bc schemas.BrowserContext, opts Options, expected string) error {
	const op = "assert authenticated"
	target := joinURL(opts.BaseURL, opts.IdentityPath)
	if err := bc.Navigate(ctx, target); err != nil {
		return failures.NavigationAt(ctx, bc, op, target, err)
	}
	if err := bc.WaitVisible(ctx, opts.Account); err != nil {
		return failures.AssertionAt(ctx, bc, op, err, "account element %s is not visible", opts.Account)
	}
	got, err := bc.Text(ctx, opts.Account)
	if err != nil {
		return failures.AssertionAt(ctx, bc, op, err, "account element %s has no text", opts.Account)
	}
	if got != expected {
		return failures.AssertionAt(ctx, bc, op, nil, "account shows %q, want %q", got, expected)
	}
	return nil
}

// Establish brings bc to CookieInjected, issuing a token only when none is
// cached. It can be called from any state but Failed.
func (b *Bridge) Establish(ctx context.Context, bc schemas.BrowserContext) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.check("establish",
		StateUnauthenticated, StateTokenAcquired, StateBrowserPrimed, StateCookieInjected, StateAuthenticated); err != nil {
		return err
	}
	if !b.token.Valid() {
		if err := b.issue(ctx); err != nil {
			return err
		}
	}
	if err := b.prime(ctx, bc); err != nil {
		return err
	}
	return b.inject(ctx, bc)
}

// Reapply primes bc and injects the cached token without issuing a new one.
// bc may be a different browser session than the one used before.
// CookieInjected or Authenticated -> CookieInjected.
func (b *Bridge) Reapply(ctx context.Context, bc schemas.BrowserContext) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.check("reapply", StateCookieInjected, StateAuthenticated); err != nil {
		return err
	}
	if err := b.prime(ctx, bc); err != nil {
		return err
	}
	return b.inject(ctx, bc)
}

// check must be called with mu held.
func (b *Bridge) check(op string, allowed ...State) error {
	if b.state == StateFailed {
		return fmt.Errorf("%s: %w: %w", op, ErrBridgeFailed, b.err)
	}
	for _, s := range allowed {
		if b.state == s {
			return nil
		}
	}
	return fmt.Errorf("%w: %s from state %s", ErrInvalidTransition, op, b.state)
}

func (b *Bridge) issue(ctx context.Context) error {
	token, err := b.issuer.Issue(ctx)
	if err != nil {
		return b.fail(err)
	}
	if !token.Valid() {
		return b.fail(failures.Contract("authenticate", "issuer returned an empty token"))
	}
	b.token = token
	b.advance(StateTokenAcquired)
	return nil
}

func (b *Bridge) prime(ctx context.Context, bc schemas.BrowserContext) error {
	if err := b.applier.Prime(ctx, bc); err != nil {
		return b.fail(err)
	}
	b.advance(StateBrowserPrimed)
	return nil
}

func (b *Bridge) inject(ctx context.Context, bc schemas.BrowserContext) error {
	if err := b.applier.Inject(ctx, b.token, bc); err != nil {
		return b.fail(err)
	}
	b.advance(StateCookieInjected)
	return nil
}

func (b *Bridge) advance(to State) {
	b.logger.Debug("Bridge transition.", zap.Stringer("from", b.state), zap.Stringer("to", to))
	b.state = to
}

func (b *Bridge) fail(err error) error {
	b.logger.Warn("Bridge failed.", zap.Stringer("state", b.state), zap.Error(err))
	b.state = StateFailed
	b.err = err
	return err
}
