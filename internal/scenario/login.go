// File: internal/scenario/login.go
package scenario

import (
	"context"

	"github.com/avasilev/shopbridge/api/schemas"
	"github.com/avasilev/shopbridge/internal/bridge"
)

// LoginUI logs in through the shop's login form.
type LoginUI struct{}

func (LoginUI) Name() string        { return "login-ui" }
func (LoginUI) DisplayName() string { return "Login through the UI form" }

func (LoginUI) Run(ctx context.Context, env *Env) error {
	bc := env.Browser()
	shop := env.Config.Shop
	issuer := bridge.NewFormIssuer(bc, env.Creds, bridge.FormIssuerOptions{
		BaseURL:    shop.BaseURL,
		LoginPath:  shop.LoginPath,
		CookieName: shop.AuthCookieName,
		Account:    schemas.CSS(shop.AccountSelector),
	}, env.Logger)

	if err := env.Step(ctx, "log in through the form", func(ctx context.Context) error {
		_, err := issuer.Issue(ctx)
		return err
	}); err != nil {
		return err
	}
	return env.Step(ctx, "verify account is shown", func(ctx context.Context) error {
		return bridge.VerifyAccount(ctx, bc, env.BridgeOptions(), env.Creds.Identifier)
	})
}

// LoginAPI logs in over HTTP and carries the session into the browser.
type LoginAPI struct{}

func (LoginAPI) Name() string        { return "login-api" }
func (LoginAPI) DisplayName() string { return "API login carried into the browser" }

func (LoginAPI) Run(ctx context.Context, env *Env) error {
	bc := env.Browser()
	b := env.NewBridge()

	var token schemas.Token
	if err := env.Step(ctx, "authenticate via API", func(ctx context.Context) error {
		var err error
		token, err = b.AuthenticateViaAPI(ctx)
		return err
	}); err != nil {
		return err
	}
	if err := env.Step(ctx, "prime browser", func(ctx context.Context) error {
		return b.PrimeBrowser(ctx, bc)
	}); err != nil {
		return err
	}
	if err := env.Step(ctx, "inject session cookie", func(ctx context.Context) error {
		return b.InjectSession(ctx, bc, token)
	}); err != nil {
		return err
	}
	return env.Step(ctx, "verify account is shown", func(ctx context.Context) error {
		return b.AssertAuthenticated(ctx, bc, env.Creds.Identifier)
	})
}
