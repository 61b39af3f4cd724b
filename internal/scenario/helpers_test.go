// internal/scenario/helpers_test.go
package scenario_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/avasilev/shopbridge/api/schemas"
	"github.com/avasilev/shopbridge/internal/config"
	"github.com/avasilev/shopbridge/internal/mocks"
	"github.com/avasilev/shopbridge/internal/scenario"
	"github.com/avasilev/shopbridge/internal/shopapi"
	"github.com/avasilev/shopbridge/internal/testing/fakeshop"
)

var accountSel = schemas.CSS(".account")

func setupTestConfig(shop *fakeshop.Shop) *config.Config {
	cfg := config.NewDefaultConfig()
	cfg.Shop.BaseURL = shop.URL
	cfg.Shop.Identifier = fakeshop.DefaultIdentifier
	cfg.Shop.Secret = fakeshop.DefaultSecret
	cfg.Shop.AuthCookieName = shop.CookieName
	cfg.Shop.PrimeAssetPath = fakeshop.PrimeAssetPath
	cfg.Network.RateLimit = 0
	cfg.Network.ForceHTTP2 = false
	return cfg
}

func newShopClient(t *testing.T, cfg *config.Config) *shopapi.Client {
	t.Helper()
	client, err := shopapi.NewFromConfig(cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	return client
}

func newMockBrowser(id string) *mocks.MockBrowserContext {
	bc := new(mocks.MockBrowserContext)
	bc.On("ID").Return(id).Maybe()
	bc.On("Close", mock.Anything).Return(nil).Once()
	return bc
}

// expectPrimeAndInject scripts n rounds of priming and cookie injection.
func expectPrimeAndInject(bc *mocks.MockBrowserContext, shop *fakeshop.Shop, n int) {
	primeURL := shop.URL + fakeshop.PrimeAssetPath
	bc.On("Navigate", mock.Anything, primeURL).Return(nil).Times(n)
	bc.On("CurrentURL", mock.Anything).Return(primeURL, nil).Times(n)
	bc.On("SetCookie", mock.Anything, shop.CookieName, mock.AnythingOfType("string")).Return(nil).Times(n)
}

func expectIdentity(bc *mocks.MockBrowserContext, shop *fakeshop.Shop, shown string) {
	bc.On("Navigate", mock.Anything, shop.URL+"/").Return(nil).Once()
	bc.On("WaitVisible", mock.Anything, accountSel).Return(nil).Once()
	bc.On("Text", mock.Anything, accountSel).Return(shown, nil).Once()
}

// queueSessions makes the launcher hand out sessions in order.
func queueSessions(l *mocks.MockBrowserLauncher, sessions ...schemas.BrowserContext) {
	for _, s := range sessions {
		l.On("NewSession", mock.Anything).Return(s, nil).Once()
	}
}

// stubScenario runs fn as its body.
type stubScenario struct {
	name string
	fn   func(ctx context.Context, env *scenario.Env) error
}

func (s stubScenario) Name() string        { return s.name }
func (s stubScenario) DisplayName() string { return "stub " + s.name }

func (s stubScenario) Run(ctx context.Context, env *scenario.Env) error {
	if s.fn == nil {
		return nil
	}
	return s.fn(ctx, env)
}
