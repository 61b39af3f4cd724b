// File: internal/shopapi/client.go

// Package shopapi is the HTTP side of the session bridge: it talks to the
// shop's login, add-to-cart and cart endpoints with an explicit session cookie
// and judges each answer against the endpoint's contract.
package shopapi

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/avasilev/shopbridge/api/schemas"
	"github.com/avasilev/shopbridge/internal/config"
	"github.com/avasilev/shopbridge/internal/failures"
	"github.com/avasilev/shopbridge/internal/network"
	"github.com/avasilev/shopbridge/internal/observability"
)

const updateCartLabel = "Update shopping cart"

// UnexpectedStatusError records a status code that breaks an endpoint contract.
type UnexpectedStatusError struct {
	Got  int
	Want []int
}

func (e *UnexpectedStatusError) Error() string {
	return fmt.Sprintf("unexpected status %d, want %v", e.Got, e.Want)
}

// Options configures a Client.
type Options struct {
	BaseURL    string
	CookieName string
	LoginPath  string
	// StrictRedirect accepts only 302 on login; otherwise any 3xx is accepted.
	StrictRedirect bool
	// MaxBodyCapture limits how much of each response body is kept for reports.
	MaxBodyCapture int
}

// Client calls the shop endpoints. It is safe for concurrent use.
type Client struct {
	http   *http.Client
	base   *url.URL
	opts   Options
	redact network.Redactor
	logger *zap.Logger
}

// New creates a Client on top of httpClient. The HTTP client must not follow
// redirects and must not carry a cookie jar; network.NewClient builds one.
func New(httpClient *http.Client, opts Options, logger *zap.Logger) (*Client, error) {
	base, err := url.Parse(opts.BaseURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("shopapi: invalid base url %q", opts.BaseURL)
	}
	if opts.CookieName == "" {
		return nil, fmt.Errorf("shopapi: cookie name is required")
	}
	if opts.LoginPath == "" {
		opts.LoginPath = "/login"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		http: httpClient,
		base: base,
		opts: opts,
		redact: network.Redactor{
			FormFields: []string{"Password"},
			Cookies:    []string{opts.CookieName},
		},
		logger: logger.Named("shopapi"),
	}, nil
}

// NewFromConfig builds the network client and the shop client from configuration.
func NewFromConfig(cfg *config.Config, logger *zap.Logger) (*Client, error) {
	httpClient := network.NewClient(network.NewClientConfigFromConfig(cfg.Network, logger))
	return New(httpClient, Options{
		BaseURL:        cfg.Shop.BaseURL,
		CookieName:     cfg.Shop.AuthCookieName,
		LoginPath:      cfg.Shop.LoginPath,
		StrictRedirect: cfg.Shop.StrictRedirect,
		MaxBodyCapture: cfg.Network.MaxBodyCapture,
	}, logger)
}

// CookieName returns the name of the session cookie this client issues and sends.
func (c *Client) CookieName() string { return c.opts.CookieName }

// Login posts the credentials as a form and extracts the session token from
// the Set-Cookie header of the redirect that follows a successful login.
func (c *Client) Login(ctx context.Context, creds schemas.Credentials) (schemas.Token, error) {
	const op = "api login"
	if !creds.Valid() {
		return schemas.Token{}, failures.Contract(op, "credentials are incomplete")
	}

	form := url.Values{}
	form.Set("Email", creds.Identifier)
	form.Set("Password", creds.Secret)
	form.Set("RememberMe", "false")
	body := []byte(form.Encode())

	resp, ex, _, err := c.do(ctx, op, http.MethodPost, c.opts.LoginPath, "application/x-www-form-urlencoded", body, nil)
	if err != nil {
		return schemas.Token{}, err
	}

	if !c.isLoginRedirect(resp.StatusCode) {
		want := []int{http.StatusFound}
		if !c.opts.StrictRedirect {
			want = []int{http.StatusMovedPermanently, http.StatusFound, http.StatusSeeOther, http.StatusTemporaryRedirect}
		}
		return schemas.Token{}, c.contract(op, ex, &UnexpectedStatusError{Got: resp.StatusCode, Want: want},
			"login was not accepted")
	}

	for _, ck := range resp.Cookies() {
		if ck.Name == c.opts.CookieName && ck.Value != "" {
			c.logger.Info("Authenticated via API.",
				zap.String("identifier", creds.Identifier),
				observability.Secret("token", ck.Value))
			return schemas.Token{Name: ck.Name, Value: ck.Value, Origin: schemas.OriginAPI}, nil
		}
	}
	return schemas.Token{}, c.contract(op, ex, nil, "response has no %s cookie", c.opts.CookieName)
}

func (c *Client) isLoginRedirect(status int) bool {
	if c.opts.StrictRedirect {
		return status == http.StatusFound
	}
	return status >= 300 && status < 400
}

// AddToCartResult is the decoded answer of the AJAX add-to-cart endpoint.
type AddToCartResult struct {
	Success bool
	Message string
	// CartQuantity is the header cart indicator returned by the shop, e.g. "(1)".
	CartQuantity string
}

// AddToCart adds product to the cart of the session identified by token. The
// call succeeds only if the JSON answer carries success == true.
func (c *Client) AddToCart(ctx context.Context, token schemas.Token, product schemas.ProductRef) (*AddToCartResult, error) {
	const op = "api add to cart"
	if !token.Valid() {
		return nil, failures.Contract(op, "no session token")
	}

	path := fmt.Sprintf("/addproducttocart/catalog/%d/%d/%d", product.ProductID, product.CartType, product.Quantity)
	resp, ex, body, err := c.do(ctx, op, http.MethodPost, path, "", nil, &token)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, c.contract(op, ex, &UnexpectedStatusError{Got: resp.StatusCode, Want: []int{http.StatusOK}}, "add to cart rejected")
	}
	if !gjson.ValidBytes(body) {
		return nil, c.contract(op, ex, nil, "response is not JSON")
	}

	success := gjson.GetBytes(body, "success")
	if success.Type != gjson.True && success.Type != gjson.False {
		return nil, c.contract(op, ex, nil, "response has no boolean success field")
	}
	result := &AddToCartResult{
		Success:      success.Bool(),
		Message:      gjson.GetBytes(body, "message").String(),
		CartQuantity: gjson.GetBytes(body, "updatetopcartsectionhtml").String(),
	}
	if !result.Success {
		return result, c.contract(op, ex, nil, "shop reported success=false: %s", result.Message)
	}

	c.logger.Info("Product added to cart.",
		zap.Int("product_id", product.ProductID),
		zap.Int("quantity", product.Quantity),
		zap.String("cart_quantity", result.CartQuantity))
	return result, nil
}

// RemoveFromCart submits the shopping cart form with the line item checked
// for removal. The form is sent as multipart/form-data with plain text parts,
// the way the cart page itself posts it.
func (c *Client) RemoveFromCart(ctx context.Context, token schemas.Token, item schemas.LineItem) error {
	const op = "api remove from cart"
	if !token.Valid() {
		return failures.Contract(op, "no session token")
	}
	if item.ID == "" {
		return failures.Contract(op, "line item has no id")
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fields := [][2]string{
		{"removefromcart", item.ID},
		{"itemquantity" + item.ID, strconv.Itoa(item.Product.Quantity)},
		{"updatecart", updateCartLabel},
	}
	for _, f := range fields {
		if err := mw.WriteField(f[0], f[1]); err != nil {
			return fmt.Errorf("%s: building form: %w", op, err)
		}
	}
	if err := mw.Close(); err != nil {
		return fmt.Errorf("%s: building form: %w", op, err)
	}

	resp, ex, _, err := c.do(ctx, op, http.MethodPost, "/cart", mw.FormDataContentType(), buf.Bytes(), &token)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return c.contract(op, ex, &UnexpectedStatusError{Got: resp.StatusCode, Want: []int{http.StatusOK}}, "cart update rejected")
	}

	c.logger.Info("Cart update submitted.", zap.String("line_item", item.ID))
	return nil
}

// do sends one request and captures the exchange. Transport errors are
// returned as unclassified errors.
func (c *Client) do(ctx context.Context, op, method, path, contentType string, body []byte, token *schemas.Token) (*http.Response, *network.Exchange, []byte, error) {
	target := c.target(path)

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target.String(), reader)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("%s: building request: %w", op, err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("X-Requested-With", "XMLHttpRequest")
	if token != nil {
		req.AddCookie(&http.Cookie{Name: token.Name, Value: token.Value})
	}

	ex := network.NewExchange(req, body)
	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("%s: %s %s: %w", op, method, target.Redacted(), err)
	}
	defer resp.Body.Close()

	full, err := ex.RecordResponse(resp, c.opts.MaxBodyCapture)
	ex.Redact(c.redact)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("%s: %w", op, err)
	}

	c.logger.Debug("Shop request completed.",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(start)))
	return resp, ex, full, nil
}

// target joins a shop-relative path onto the base URL, keeping any path prefix
// the base carries.
func (c *Client) target(path string) *url.URL {
	u := *c.base
	u.Path = strings.TrimRight(c.base.Path, "/") + "/" + strings.TrimLeft(path, "/")
	u.RawPath = ""
	u.RawQuery = ""
	u.Fragment = ""
	return &u
}

// contract builds a contract failure with the captured exchange attached.
func (c *Client) contract(op string, ex *network.Exchange, cause error, format string, args ...interface{}) error {
	fe := failures.Contract(op, format, args...)
	fe.Err = cause
	if ex != nil {
		fe.Attach(ex.Attachment())
	}
	c.logger.Warn("Shop contract violated.", zap.String("op", op), zap.Error(fe))
	return fe
}
