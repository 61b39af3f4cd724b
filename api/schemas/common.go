package schemas

import "strings"

// -- Identity Schemas --

// Credentials holds the identifier/secret pair used to log in to the shop.
// The pair is loaded once at process start and treated as read-only.
type Credentials struct {
	Identifier string `json:"identifier"`
	Secret     string `json:"-"`
}

// Valid reports whether both halves of the pair are present.
func (c Credentials) Valid() bool {
	return strings.TrimSpace(c.Identifier) != "" && c.Secret != ""
}

// TokenOrigin records which side of the bridge produced a session token.
type TokenOrigin string

const (
	// OriginAPI marks a token extracted from the Set-Cookie header of an API login.
	OriginAPI TokenOrigin = "api"
	// OriginBrowser marks a token harvested from the browser cookie store after a form login.
	OriginBrowser TokenOrigin = "browser"
)

// Token is an opaque session token. Tokens from either origin share the same
// cookie name, which is what makes them interchangeable.
type Token struct {
	Name   string      `json:"name"`
	Value  string      `json:"-"`
	Origin TokenOrigin `json:"origin"`
}

// Valid reports whether the token carries a value.
func (t Token) Valid() bool {
	return t.Name != "" && t.Value != ""
}

// -- Cart Schemas --

// ProductRef is the fixed product/cart-type/quantity triple used for add-to-cart calls.
// Name is the rendered product name used to locate the cart row.
type ProductRef struct {
	ProductID int    `json:"product_id"`
	CartType  int    `json:"cart_type"`
	Quantity  int    `json:"quantity"`
	Name      string `json:"name"`
}

// LineItem is a cart row. ID is only known after the cart page has been rendered.
type LineItem struct {
	Product ProductRef `json:"product"`
	ID      string     `json:"id"`
}
