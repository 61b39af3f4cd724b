// File: internal/scenario/scenario.go

// Package scenario holds the end-to-end checks run against the shop and the
// runner that gives each of them an exclusive browser session.
package scenario

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/avasilev/shopbridge/api/schemas"
	"github.com/avasilev/shopbridge/internal/bridge"
	"github.com/avasilev/shopbridge/internal/config"
	"github.com/avasilev/shopbridge/internal/failures"
	"github.com/avasilev/shopbridge/internal/reporting"
	"github.com/avasilev/shopbridge/internal/shopapi"
)

const releaseTimeout = 30 * time.Second

// Scenario is one end-to-end check.
type Scenario interface {
	// Name is the stable identifier used on the command line.
	Name() string
	// DisplayName is the human readable title used in reports.
	DisplayName() string
	// Run executes the scenario's steps through env.
	Run(ctx context.Context, env *Env) error
}

// ShopAPI is the HTTP side of the shop used by scenarios.
type ShopAPI interface {
	bridge.Authenticator
	AddToCart(ctx context.Context, token schemas.Token, product schemas.ProductRef) (*shopapi.AddToCartResult, error)
	RemoveFromCart(ctx context.Context, token schemas.Token, item schemas.LineItem) error
}

var _ ShopAPI = (*shopapi.Client)(nil)

// Env is everything a running scenario may use. Apart from the read-only
// configuration and credentials nothing in it is shared between scenarios.
type Env struct {
	Config *config.Config
	Creds  schemas.Credentials
	API    ShopAPI
	Logger *zap.Logger

	recorder *reporting.Recorder
	launcher schemas.BrowserLauncher

	mu      sync.Mutex
	session schemas.BrowserContext
}

func newEnv(cfg *config.Config, api ShopAPI, launcher schemas.BrowserLauncher, logger *zap.Logger) *Env {
	return &Env{
		Config:   cfg,
		Creds:    cfg.Shop.Credentials(),
		API:      api,
		Logger:   logger,
		recorder: reporting.NewRecorder(logger),
		launcher: launcher,
	}
}

// Step runs fn as a labelled step of the scenario report.
func (e *Env) Step(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	return e.recorder.Step(ctx, name, fn)
}

// Skip records a step that was deliberately not run.
func (e *Env) Skip(name, reason string) {
	e.recorder.Skip(name, reason)
}

// Browser returns the scenario's current browser session.
func (e *Env) Browser() schemas.BrowserContext {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.session
}

// ResetBrowser closes the current session and acquires a fresh one.
func (e *Env) ResetBrowser(ctx context.Context) (schemas.BrowserContext, error) {
	e.release(ctx)
	if err := e.acquire(ctx); err != nil {
		return nil, err
	}
	return e.Browser(), nil
}

// NewBridge builds a session bridge that issues tokens through the API.
func (e *Env) NewBridge() *bridge.Bridge {
	shop := e.Config.Shop
	return bridge.New(
		bridge.NewAPIIssuer(e.API, e.Creds),
		bridge.NewCookieApplier(shop.BaseURL, shop.PrimeAssetPath, e.Logger),
		bridge.OptionsFromConfig(shop),
		e.Logger,
	)
}

// BridgeOptions returns the identity page settings.
func (e *Env) BridgeOptions() bridge.Options {
	return bridge.OptionsFromConfig(e.Config.Shop)
}

func (e *Env) acquire(ctx context.Context) error {
	s, err := e.launcher.NewSession(ctx)
	if err != nil {
		return failures.Acquisition("acquire browser", err)
	}
	e.mu.Lock()
	e.session = s
	e.mu.Unlock()
	e.Logger.Debug("Browser session acquired.", zap.String("session_id", s.ID()))
	return nil
}

// release closes the current session. It runs even when ctx is already
// cancelled so browsers are never leaked.
func (e *Env) release(ctx context.Context) {
	e.mu.Lock()
	s := e.session
	e.session = nil
	e.mu.Unlock()
	if s == nil {
		return
	}

	closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
	defer cancel()
	if err := s.Close(closeCtx); err != nil {
		e.Logger.Warn("Failed to close browser session.", zap.String("session_id", s.ID()), zap.Error(err))
		return
	}
	e.Logger.Debug("Browser session released.", zap.String("session_id", s.ID()))
}

// Registry lists scenarios in their declared order.
type Registry struct {
	order  []Scenario
	byName map[string]Scenario
}

// NewRegistry registers scenarios in the given order. Names must be unique.
func NewRegistry(scenarios ...Scenario) (*Registry, error) {
	r := &Registry{byName: make(map[string]Scenario, len(scenarios))}
	for _, s := range scenarios {
		if _, dup := r.byName[s.Name()]; dup {
			return nil, fmt.Errorf("scenario %q registered twice", s.Name())
		}
		r.byName[s.Name()] = s
		r.order = append(r.order, s)
	}
	return r, nil
}

// DefaultRegistry holds the built-in scenarios.
func DefaultRegistry() *Registry {
	r, err := NewRegistry(LoginUI{}, LoginAPI{}, CartRoundTrip{})
	if err != nil {
		panic(err)
	}
	return r
}

// All returns every scenario in declared order.
func (r *Registry) All() []Scenario {
	out := make([]Scenario, len(r.order))
	copy(out, r.order)
	return out
}

// Select returns the named scenarios in declared order, regardless of the
// order of names. An empty selection means all of them.
func (r *Registry) Select(names []string) ([]Scenario, error) {
	if len(names) == 0 {
		return r.All(), nil
	}
	want := make(map[string]bool, len(names))
	for _, n := range names {
		if _, ok := r.byName[n]; !ok {
			return nil, fmt.Errorf("unknown scenario %q", n)
		}
		want[n] = true
	}
	var out []Scenario
	for _, s := range r.order {
		if want[s.Name()] {
			out = append(out, s)
		}
	}
	return out, nil
}
