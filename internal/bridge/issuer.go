// File: internal/bridge/issuer.go
package bridge

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/avasilev/shopbridge/api/schemas"
	"github.com/avasilev/shopbridge/internal/failures"
	"github.com/avasilev/shopbridge/internal/observability"
)

// Authenticator exchanges credentials for a session token over HTTP.
// *shopapi.Client implements it.
type Authenticator interface {
	Login(ctx context.Context, creds schemas.Credentials) (schemas.Token, error)
}

// APIIssuer issues tokens through the shop's login endpoint.
type APIIssuer struct {
	auth  Authenticator
	creds schemas.Credentials
}

var _ TokenIssuer = (*APIIssuer)(nil)

func NewAPIIssuer(auth Authenticator, creds schemas.Credentials) *APIIssuer {
	return &APIIssuer{auth: auth, creds: creds}
}

func (i *APIIssuer) Issue(ctx context.Context) (schemas.Token, error) {
	return i.auth.Login(ctx, i.creds)
}

// LoginForm locates the fields of the shop's login form.
type LoginForm struct {
	Identifier schemas.Selector
	Secret     schemas.Selector
}

// DefaultLoginForm matches the nopCommerce login page.
var DefaultLoginForm = LoginForm{
	Identifier: schemas.CSS("#Email"),
	Secret:     schemas.CSS("#Password"),
}

// FormIssuer logs in through the UI of a browser session and harvests the
// session cookie the shop set. The session stays logged in afterwards.
type FormIssuer struct {
	bc         schemas.BrowserContext
	creds      schemas.Credentials
	loginURL   string
	cookieName string
	form       LoginForm
	account    schemas.Selector
	logger     *zap.Logger
}

var _ TokenIssuer = (*FormIssuer)(nil)

// FormIssuerOptions configures a FormIssuer.
type FormIssuerOptions struct {
	BaseURL    string
	LoginPath  string
	CookieName string
	Form       LoginForm
	// Account is the element that appears once the login took effect.
	Account schemas.Selector
}

func NewFormIssuer(bc schemas.BrowserContext, creds schemas.Credentials, opts FormIssuerOptions, logger *zap.Logger) *FormIssuer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Form == (LoginForm{}) {
		opts.Form = DefaultLoginForm
	}
	return &FormIssuer{
		bc:         bc,
		creds:      creds,
		loginURL:   joinURL(opts.BaseURL, opts.LoginPath),
		cookieName: opts.CookieName,
		form:       opts.Form,
		account:    opts.Account,
		logger:     logger.Named("form_issuer"),
	}
}

// Issue fills and submits the login form, waits for the account element and
// reads the session cookie from the browser.
func (i *FormIssuer) Issue(ctx context.Context) (schemas.Token, error) {
	const op = "form login"
	if !i.creds.Valid() {
		return schemas.Token{}, failures.Contract(op, "credentials are incomplete")
	}

	if err := i.bc.Navigate(ctx, i.loginURL); err != nil {
		return schemas.Token{}, failures.NavigationAt(ctx, i.bc, op, i.loginURL, err)
	}
	if err := i.bc.Fill(ctx, i.form.Identifier, i.creds.Identifier); err != nil {
		return schemas.Token{}, failures.AssertionAt(ctx, i.bc, op, err, "login form is not usable")
	}
	if err := i.bc.Fill(ctx, i.form.Secret, i.creds.Secret); err != nil {
		return schemas.Token{}, failures.AssertionAt(ctx, i.bc, op, err, "login form is not usable")
	}
	if err := i.bc.Press(ctx, i.form.Secret, "Enter"); err != nil {
		return schemas.Token{}, failures.AssertionAt(ctx, i.bc, op, err, "login form could not be submitted")
	}
	if err := i.bc.WaitVisible(ctx, i.account); err != nil {
		return schemas.Token{}, failures.AssertionAt(ctx, i.bc, op, err, "account element did not appear after login")
	}

	c, ok, err := i.bc.Cookie(ctx, i.cookieName)
	if err != nil {
		return schemas.Token{}, err
	}
	if !ok || c.Value == "" {
		return schemas.Token{}, failures.Contract(op, "browser has no %s cookie after login", i.cookieName).
			Attach(failures.Evidence(ctx, i.bc)...)
	}
	i.logger.Info("Authenticated via login form.",
		zap.String("identifier", i.creds.Identifier),
		observability.Secret("token", c.Value))
	return schemas.Token{Name: c.Name, Value: c.Value, Origin: schemas.OriginBrowser}, nil
}

func joinURL(base, path string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/")
}
