// File: internal/network/capture.go
package network

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/avasilev/shopbridge/api/schemas"
)

const redactedValue = "[REDACTED]"

// Exchange is a captured request/response pair, kept so that a failed API call
// can be attached to the report exactly as it went over the wire.
type Exchange struct {
	Method         string
	URL            string
	RequestHeader  http.Header
	RequestBody    []byte
	Status         int
	ResponseHeader http.Header
	ResponseBody   []byte
	// Truncated is set when ResponseBody was cut to the capture limit.
	Truncated bool
	Started   time.Time
	Duration  time.Duration
}

// Redactor masks sensitive material in captured exchanges.
type Redactor struct {
	// FormFields are url-encoded body fields whose values are masked.
	FormFields []string
	// Cookies are cookie names whose values are masked in Cookie and Set-Cookie headers.
	Cookies []string
}

// NewExchange starts a capture for req. body is the exact request payload; the
// request's own Body is not consumed.
func NewExchange(req *http.Request, body []byte) *Exchange {
	return &Exchange{
		Method:        req.Method,
		URL:           req.URL.String(),
		RequestHeader: req.Header.Clone(),
		RequestBody:   append([]byte(nil), body...),
		Started:       time.Now(),
	}
}

// RecordResponse reads the whole response body, keeps at most limit bytes of it
// in the exchange and returns the complete body. resp.Body is replaced so the
// caller may still read it. A limit of zero or less keeps everything.
func (e *Exchange) RecordResponse(resp *http.Response, limit int) ([]byte, error) {
	e.Duration = time.Since(e.Started)
	e.Status = resp.StatusCode
	e.ResponseHeader = resp.Header.Clone()

	body, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	resp.Body = io.NopCloser(bytes.NewReader(body))
	if err != nil {
		return body, fmt.Errorf("reading response body: %w", err)
	}

	e.ResponseBody = body
	if limit > 0 && len(body) > limit {
		e.ResponseBody = body[:limit]
		e.Truncated = true
	}
	return body, nil
}

// Redact masks sensitive values in place and returns the exchange.
func (e *Exchange) Redact(r Redactor) *Exchange {
	if len(r.FormFields) > 0 && strings.HasPrefix(e.RequestHeader.Get("Content-Type"), "application/x-www-form-urlencoded") {
		if form, err := url.ParseQuery(string(e.RequestBody)); err == nil {
			for _, f := range r.FormFields {
				if form.Has(f) {
					form.Set(f, redactedValue)
				}
			}
			e.RequestBody = []byte(form.Encode())
		}
	}
	if len(r.Cookies) > 0 {
		redactCookieHeader(e.RequestHeader, "Cookie", r.Cookies)
		redactCookieHeader(e.ResponseHeader, "Set-Cookie", r.Cookies)
	}
	return e
}

// redactCookieHeader masks the value of every name=value pair whose name is
// listed. Attributes such as Path and HttpOnly are left as they are.
func redactCookieHeader(h http.Header, key string, names []string) {
	if h == nil {
		return
	}
	values := h.Values(key)
	if len(values) == 0 {
		return
	}
	masked := make([]string, 0, len(values))
	for _, v := range values {
		parts := strings.Split(v, ";")
		for i, p := range parts {
			name, _, ok := strings.Cut(strings.TrimSpace(p), "=")
			if !ok {
				continue
			}
			for _, n := range names {
				if strings.EqualFold(name, n) {
					lead := p[:len(p)-len(strings.TrimLeft(p, " "))]
					parts[i] = lead + name + "=" + redactedValue
					break
				}
			}
		}
		masked = append(masked, strings.Join(parts, ";"))
	}
	h.Del(key)
	for _, v := range masked {
		h.Add(key, v)
	}
}

// Render formats the exchange as plain HTTP/1.1-style text.
func (e *Exchange) Render() []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "%s %s\n", e.Method, e.URL)
	writeHeaders(&b, e.RequestHeader)
	if len(e.RequestBody) > 0 {
		b.WriteString("\n")
		b.Write(e.RequestBody)
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "\n--- %d %s (%s)\n", e.Status, http.StatusText(e.Status), e.Duration.Round(time.Millisecond))
	writeHeaders(&b, e.ResponseHeader)
	if len(e.ResponseBody) > 0 {
		b.WriteString("\n")
		b.Write(e.ResponseBody)
		if e.Truncated {
			b.WriteString("\n[truncated]")
		}
		b.WriteString("\n")
	}
	return b.Bytes()
}

func writeHeaders(b *bytes.Buffer, h http.Header) {
	keys := make([]string, 0, len(h))
	for k := range h {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		for _, v := range h[k] {
			fmt.Fprintf(b, "%s: %s\n", k, v)
		}
	}
}

// Attachment converts the exchange into a report attachment.
func (e *Exchange) Attachment() schemas.Attachment {
	return schemas.Attachment{
		Name:        fmt.Sprintf("%s %s", e.Method, e.URL),
		ContentType: "text/plain",
		Body:        e.Render(),
	}
}
