// File: internal/network/scope.go
package network

import (
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// CookieScope describes whether a loaded page can receive a host-only cookie
// meant for the shop.
type CookieScope struct {
	// SameHost is true when the page host equals the shop host. Only then does a
	// cookie set against the page URL reach the shop.
	SameHost bool
	// SameSite is true when both hosts share a registrable domain (eTLD+1).
	SameSite bool
	PageHost string
	ShopHost string
}

// ResolveCookieScope compares a page URL with the shop base URL.
func ResolveCookieScope(pageURL, baseURL string) (CookieScope, error) {
	page, err := url.Parse(pageURL)
	if err != nil {
		return CookieScope{}, fmt.Errorf("parsing page url: %w", err)
	}
	base, err := url.Parse(baseURL)
	if err != nil {
		return CookieScope{}, fmt.Errorf("parsing base url: %w", err)
	}

	scope := CookieScope{
		PageHost: strings.ToLower(page.Hostname()),
		ShopHost: strings.ToLower(base.Hostname()),
	}
	if scope.PageHost == "" || (page.Scheme != "http" && page.Scheme != "https") {
		// about:blank, data: and friends have no cookie store at all.
		return scope, nil
	}
	scope.SameHost = scope.PageHost == scope.ShopHost
	scope.SameSite = scope.SameHost || registrableDomain(scope.PageHost) == registrableDomain(scope.ShopHost)
	return scope, nil
}

// registrableDomain returns eTLD+1 for host, or host itself for IPs, localhost
// and anything the public suffix list cannot place.
func registrableDomain(host string) string {
	d, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return host
	}
	return d
}

func (s CookieScope) String() string {
	switch {
	case s.SameHost:
		return fmt.Sprintf("page %s matches shop host", s.PageHost)
	case s.PageHost == "":
		return "no document from the shop is loaded"
	case s.SameSite:
		return fmt.Sprintf("page %s is on the shop's site but not host %s", s.PageHost, s.ShopHost)
	default:
		return fmt.Sprintf("page %s is outside shop host %s", s.PageHost, s.ShopHost)
	}
}
