// internal/network/capture_test.go
package network

import (
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCapturedLogin(t *testing.T) *Exchange {
	t.Helper()
	body := []byte("Email=user%40example.com&Password=secret123&RememberMe=false")
	req, err := http.NewRequest(http.MethodPost, "http://shop.test/login", nil)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Cookie", "Nop.customer=guest; NOPCOMMERCE.AUTH=old-ticket")

	ex := NewExchange(req, body)
	resp := &http.Response{
		StatusCode: http.StatusFound,
		Header: http.Header{
			"Set-Cookie": []string{"NOPCOMMERCE.AUTH=new-ticket; path=/; HttpOnly"},
			"Location":   []string{"/"},
		},
		Body: io.NopCloser(strings.NewReader("")),
	}
	_, err = ex.RecordResponse(resp, 0)
	require.NoError(t, err)
	return ex
}

func TestExchange_RecordResponse(t *testing.T) {
	req, err := http.NewRequest(http.MethodPost, "http://shop.test/cart", nil)
	require.NoError(t, err)
	ex := NewExchange(req, nil)

	resp := &http.Response{
		StatusCode: http.StatusOK,
		Header:     http.Header{},
		Body:       io.NopCloser(strings.NewReader("0123456789")),
	}
	full, err := ex.RecordResponse(resp, 4)
	require.NoError(t, err)

	assert.Equal(t, "0123456789", string(full))
	assert.Equal(t, "0123", string(ex.ResponseBody))
	assert.True(t, ex.Truncated)

	again, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "0123456789", string(again), "body must stay readable for the caller")
}

func TestExchange_Redact(t *testing.T) {
	ex := newCapturedLogin(t).Redact(Redactor{
		FormFields: []string{"Password"},
		Cookies:    []string{"NOPCOMMERCE.AUTH"},
	})

	rendered := string(ex.Render())
	assert.NotContains(t, rendered, "secret123")
	assert.NotContains(t, rendered, "old-ticket")
	assert.NotContains(t, rendered, "new-ticket")

	assert.Contains(t, rendered, "Email=user%40example.com")
	assert.Contains(t, rendered, "Nop.customer=guest")
	assert.Contains(t, rendered, "NOPCOMMERCE.AUTH=[REDACTED]; path=/; HttpOnly")
	assert.Contains(t, rendered, "--- 302 Found")
}

func TestExchange_Attachment(t *testing.T) {
	att := newCapturedLogin(t).Attachment()
	assert.Equal(t, "POST http://shop.test/login", att.Name)
	assert.Equal(t, "text/plain", att.ContentType)
	assert.True(t, strings.HasPrefix(string(att.Body), "POST http://shop.test/login\n"))
}

func TestResolveCookieScope(t *testing.T) {
	const shop = "http://demowebshop.tricentis.com"

	tests := []struct {
		name     string
		page     string
		sameHost bool
		sameSite bool
	}{
		{"shop asset", shop + "/Themes/DefaultClean/Content/images/logo.png", true, true},
		{"blank page", "about:blank", false, false},
		{"sibling host", "http://www.tricentis.com/", false, true},
		{"foreign host", "https://example.org/", false, false},
		{"host case is ignored", "http://DemoWebShop.Tricentis.com/", true, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scope, err := ResolveCookieScope(tt.page, shop)
			require.NoError(t, err)
			assert.Equal(t, tt.sameHost, scope.SameHost)
			assert.Equal(t, tt.sameSite, scope.SameSite)
			assert.NotEmpty(t, scope.String())
		})
	}

	t.Run("loopback", func(t *testing.T) {
		scope, err := ResolveCookieScope("http://127.0.0.1:8080/x", "http://127.0.0.1:8080")
		require.NoError(t, err)
		assert.True(t, scope.SameHost)
	})
}
