// File: internal/bridge/applier.go
package bridge

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/avasilev/shopbridge/api/schemas"
	"github.com/avasilev/shopbridge/internal/failures"
	"github.com/avasilev/shopbridge/internal/network"
	"github.com/avasilev/shopbridge/internal/observability"
)

// ErrNotPrimed is returned when a cookie is injected into a browser whose
// loaded document is not served by the shop host.
var ErrNotPrimed = errors.New("browser is not primed on the shop host")

// ErrSiblingHost accompanies ErrNotPrimed when the loaded page shares the
// shop's registrable domain but not its host, as with a www. prefix mismatch
// between shop.base_url and the site's canonical host. A host-only cookie set
// there never reaches the shop.
var ErrSiblingHost = errors.New("page is on a sibling host of the shop")

// CookieApplier injects a session token into a browser cookie store. The
// browser is primed with a cheap in-domain asset first, because a cookie can
// only be scoped through a loaded document of the same host.
type CookieApplier struct {
	baseURL   string
	primePath string
	logger    *zap.Logger
}

var _ TokenApplier = (*CookieApplier)(nil)

// NewCookieApplier creates an applier for the shop at baseURL. primePath is a
// static asset on that host.
func NewCookieApplier(baseURL, primePath string, logger *zap.Logger) *CookieApplier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CookieApplier{
		baseURL:   baseURL,
		primePath: primePath,
		logger:    logger.Named("applier"),
	}
}

// Apply primes bc and injects token.
func (a *CookieApplier) Apply(ctx context.Context, token schemas.Token, bc schemas.BrowserContext) error {
	if err := a.Prime(ctx, bc); err != nil {
		return err
	}
	return a.Inject(ctx, token, bc)
}

// Prime loads the in-domain asset.
func (a *CookieApplier) Prime(ctx context.Context, bc schemas.BrowserContext) error {
	target := joinURL(a.baseURL, a.primePath)
	if err := bc.Navigate(ctx, target); err != nil {
		return failures.NavigationAt(ctx, bc, "prime browser", target, err)
	}
	a.logger.Debug("Browser primed.", zap.String("session_id", bc.ID()), zap.String("url", target))
	return nil
}

// Inject writes the token cookie for the loaded document. It fails with
// ErrNotPrimed unless that document comes from the shop host.
func (a *CookieApplier) Inject(ctx context.Context, token schemas.Token, bc schemas.BrowserContext) error {
	if !token.Valid() {
		return errors.New("inject session: token is empty")
	}
	loc, err := bc.CurrentURL(ctx)
	if err != nil {
		return fmt.Errorf("inject session: %w", err)
	}
	scope, err := network.ResolveCookieScope(loc, a.baseURL)
	if err != nil {
		return fmt.Errorf("inject session: %w", err)
	}
	switch {
	case scope.SameHost:
	case scope.SameSite:
		return fmt.Errorf("inject session: %w: %w: %s", ErrNotPrimed, ErrSiblingHost, scope)
	default:
		return fmt.Errorf("inject session: %w: %s", ErrNotPrimed, scope)
	}

	if err := bc.SetCookie(ctx, token.Name, token.Value); err != nil {
		return fmt.Errorf("inject session: %w", err)
	}
	a.logger.Info("Session cookie injected.",
		zap.String("session_id", bc.ID()),
		zap.String("origin", string(token.Origin)),
		observability.Secret(token.Name, token.Value))
	return nil
}
