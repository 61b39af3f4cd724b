package schemas

import (
	"fmt"
	"strings"
	"time"
)

// -- Browser Schemas --

// SelectorKind tells a driver how to resolve a Selector.
type SelectorKind string

const (
	SelectorCSS   SelectorKind = "css"
	SelectorXPath SelectorKind = "xpath"
)

// Selector locates an element on the page.
type Selector struct {
	Query string       `json:"query"`
	Kind  SelectorKind `json:"kind"`
}

// CSS builds a CSS selector.
func CSS(query string) Selector { return Selector{Query: query, Kind: SelectorCSS} }

// XPath builds an XPath selector.
func XPath(query string) Selector { return Selector{Query: query, Kind: SelectorXPath} }

// TagAndText matches an element by tag name and exact (whitespace-normalized) text.
// When class is not empty the element must also carry that CSS class.
func TagAndText(tag, class, text string) Selector {
	var b strings.Builder
	fmt.Fprintf(&b, "//%s[normalize-space(.)=%s", tag, xpathLiteral(text))
	if class != "" {
		fmt.Fprintf(&b, " and contains(concat(' ', normalize-space(@class), ' '), ' %s ')", class)
	}
	b.WriteString("]")
	return XPath(b.String())
}

// Within scopes a relative XPath expression to the matches of an XPath selector.
// It panics on CSS selectors since CSS has no ancestor axis.
func (s Selector) Within(relative string) Selector {
	if s.Kind != SelectorXPath {
		panic("schemas: Within requires an xpath selector")
	}
	return XPath(s.Query + relative)
}

func (s Selector) String() string {
	return string(s.Kind) + "=" + s.Query
}

// xpathLiteral quotes a string for use in an XPath 1.0 expression. XPath has no
// escape sequences, so strings holding both quote kinds are built with concat().
func xpathLiteral(s string) string {
	if !strings.Contains(s, "'") {
		return "'" + s + "'"
	}
	if !strings.Contains(s, `"`) {
		return `"` + s + `"`
	}
	parts := strings.Split(s, "'")
	quoted := make([]string, 0, len(parts)*2)
	for i, p := range parts {
		if i > 0 {
			quoted = append(quoted, `"'"`)
		}
		if p != "" {
			quoted = append(quoted, "'"+p+"'")
		}
	}
	return "concat(" + strings.Join(quoted, ", ") + ")"
}

// Cookie is a driver-neutral view of a browser cookie.
type Cookie struct {
	Name     string    `json:"name"`
	Value    string    `json:"-"`
	Domain   string    `json:"domain"`
	Path     string    `json:"path"`
	HTTPOnly bool      `json:"http_only"`
	Secure   bool      `json:"secure"`
	Expires  time.Time `json:"expires,omitempty"`
}

// Evidence is what a browser can hand over when a UI assertion fails.
type Evidence struct {
	URL        string    `json:"url"`
	Screenshot []byte    `json:"-"`
	DOM        string    `json:"-"`
	CapturedAt time.Time `json:"captured_at"`
}
