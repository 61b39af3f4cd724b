// File: internal/shopapi/client_test.go
package shopapi

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/avasilev/shopbridge/api/schemas"
	"github.com/avasilev/shopbridge/internal/failures"
	"github.com/avasilev/shopbridge/internal/network"
	"github.com/avasilev/shopbridge/internal/testing/fakeshop"
)

var validCreds = schemas.Credentials{Identifier: fakeshop.DefaultIdentifier, Secret: fakeshop.DefaultSecret}

func defaultProduct() schemas.ProductRef {
	return schemas.ProductRef{ProductID: fakeshop.DefaultProductID, CartType: 1, Quantity: 1, Name: fakeshop.DefaultProduct}
}

// newTestClient builds a client against baseURL with the production transport chain.
func newTestClient(t *testing.T, baseURL string, mutate ...func(*Options)) *Client {
	t.Helper()
	opts := Options{
		BaseURL:        baseURL,
		CookieName:     fakeshop.DefaultCookieName,
		StrictRedirect: true,
		MaxBodyCapture: 4096,
	}
	for _, m := range mutate {
		m(&opts)
	}
	client, err := New(network.NewClient(network.NewDefaultClientConfig()), opts, zaptest.NewLogger(t))
	require.NoError(t, err)
	return client
}

func TestNew_Validation(t *testing.T) {
	_, err := New(http.DefaultClient, Options{BaseURL: "not a url", CookieName: "x"}, nil)
	assert.Error(t, err)

	_, err = New(http.DefaultClient, Options{BaseURL: "http://shop.test"}, nil)
	assert.Error(t, err)

	c, err := New(http.DefaultClient, Options{BaseURL: "http://shop.test", CookieName: "AUTH"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "/login", c.opts.LoginPath)
	assert.Equal(t, "AUTH", c.CookieName())
}

// -- Login --

func TestLogin(t *testing.T) {
	ctx := context.Background()

	t.Run("valid credentials yield a token", func(t *testing.T) {
		shop := fakeshop.New(t)
		token, err := newTestClient(t, shop.URL).Login(ctx, validCreds)
		require.NoError(t, err)

		assert.Equal(t, fakeshop.DefaultCookieName, token.Name)
		assert.NotEmpty(t, token.Value)
		assert.Equal(t, schemas.OriginAPI, token.Origin)
		assert.Equal(t, 1, shop.LoginCount())
	})

	t.Run("invalid credentials are a contract failure", func(t *testing.T) {
		shop := fakeshop.New(t)
		token, err := newTestClient(t, shop.URL).Login(ctx, schemas.Credentials{Identifier: fakeshop.DefaultIdentifier, Secret: "wrong"})
		require.Error(t, err)
		assert.False(t, token.Valid())
		assert.Equal(t, failures.KindContract, failures.KindOf(err))

		var statusErr *UnexpectedStatusError
		require.True(t, errors.As(err, &statusErr))
		assert.Equal(t, http.StatusOK, statusErr.Got)
		assert.NotEqual(t, http.StatusFound, statusErr.Got)
	})

	t.Run("captured exchange is redacted", func(t *testing.T) {
		shop := fakeshop.New(t)
		_, err := newTestClient(t, shop.URL).Login(ctx, schemas.Credentials{Identifier: fakeshop.DefaultIdentifier, Secret: "wrong-secret"})
		require.Error(t, err)

		attachments := failures.AttachmentsOf(err)
		require.Len(t, attachments, 1)
		body := string(attachments[0].Body)
		assert.Contains(t, body, "POST "+shop.URL+"/login")
		assert.Contains(t, body, "--- 200 OK")
		assert.NotContains(t, body, "wrong-secret")
	})

	t.Run("missing cookie is a contract failure", func(t *testing.T) {
		shop := fakeshop.New(t, fakeshop.WithFaults(fakeshop.Faults{OmitAuthCookie: true}))
		_, err := newTestClient(t, shop.URL).Login(ctx, validCreds)
		require.Error(t, err)
		assert.Equal(t, failures.KindContract, failures.KindOf(err))
		assert.Contains(t, err.Error(), "no NOPCOMMERCE.AUTH cookie")
	})

	t.Run("strict redirect rejects 303", func(t *testing.T) {
		shop := fakeshop.New(t, fakeshop.WithFaults(fakeshop.Faults{LoginStatus: http.StatusSeeOther}))
		_, err := newTestClient(t, shop.URL).Login(ctx, validCreds)
		require.Error(t, err)

		token, err := newTestClient(t, shop.URL, func(o *Options) { o.StrictRedirect = false }).Login(ctx, validCreds)
		require.NoError(t, err)
		assert.True(t, token.Valid())
	})

	t.Run("incomplete credentials never hit the wire", func(t *testing.T) {
		shop := fakeshop.New(t)
		_, err := newTestClient(t, shop.URL).Login(ctx, schemas.Credentials{Identifier: "x"})
		require.Error(t, err)
		assert.Equal(t, 0, shop.LoginCount())
	})

	t.Run("transport errors are not classified", func(t *testing.T) {
		server := httptest.NewServer(http.NotFoundHandler())
		url := server.URL
		server.Close()

		_, err := newTestClient(t, url).Login(ctx, validCreds)
		require.Error(t, err)
		assert.Equal(t, failures.KindUnknown, failures.KindOf(err))
	})
}

func TestClient_KeepsBasePathPrefix(t *testing.T) {
	ctx := context.Background()
	var (
		mu    sync.Mutex
		paths []string
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		paths = append(paths, r.URL.Path)
		mu.Unlock()
		switch {
		case strings.HasSuffix(r.URL.Path, "/login"):
			http.SetCookie(w, &http.Cookie{Name: fakeshop.DefaultCookieName, Value: "TICKET"})
			w.Header().Set("Location", "/shop/")
			w.WriteHeader(http.StatusFound)
		case strings.Contains(r.URL.Path, "/addproducttocart/"):
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"success":true}`))
		default:
			w.WriteHeader(http.StatusOK)
		}
	}))
	t.Cleanup(server.Close)

	for _, base := range []string{server.URL + "/shop", server.URL + "/shop/"} {
		mu.Lock()
		paths = nil
		mu.Unlock()
		client := newTestClient(t, base)
		token, err := client.Login(ctx, validCreds)
		require.NoError(t, err)
		_, err = client.AddToCart(ctx, token, defaultProduct())
		require.NoError(t, err)
		require.NoError(t, client.RemoveFromCart(ctx, token, schemas.LineItem{ID: "4001", Product: defaultProduct()}))

		mu.Lock()
		assert.Equal(t, []string{
			"/shop/login",
			"/shop/addproducttocart/catalog/13/1/1",
			"/shop/cart",
		}, paths, "base %s", base)
		mu.Unlock()
	}
}

// -- Cart --

func TestAddToCart(t *testing.T) {
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		shop := fakeshop.New(t)
		client := newTestClient(t, shop.URL)
		token := schemas.Token{Name: fakeshop.DefaultCookieName, Value: shop.Login(fakeshop.DefaultIdentifier)}

		result, err := client.AddToCart(ctx, token, defaultProduct())
		require.NoError(t, err)
		assert.True(t, result.Success)
		assert.Equal(t, "(1)", result.CartQuantity)

		cart := shop.Cart(fakeshop.DefaultIdentifier)
		require.Len(t, cart, 1)
		assert.Equal(t, fakeshop.DefaultProductID, cart[0].ProductID)
	})

	t.Run("success false surfaces the message", func(t *testing.T) {
		shop := fakeshop.New(t, fakeshop.WithFaults(fakeshop.Faults{RejectAddToCart: true}))
		token := schemas.Token{Name: fakeshop.DefaultCookieName, Value: shop.Login(fakeshop.DefaultIdentifier)}

		result, err := newTestClient(t, shop.URL).AddToCart(ctx, token, defaultProduct())
		require.Error(t, err)
		require.NotNil(t, result)
		assert.False(t, result.Success)
		assert.Contains(t, err.Error(), "out of stock")
		assert.Equal(t, failures.KindContract, failures.KindOf(err))
	})

	t.Run("missing success field", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"message":"?"}`))
		}))
		defer server.Close()

		_, err := newTestClient(t, server.URL).AddToCart(ctx, schemas.Token{Name: "N", Value: "v"}, defaultProduct())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no boolean success field")
	})

	t.Run("non json answer", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`<html>maintenance</html>`))
		}))
		defer server.Close()

		_, err := newTestClient(t, server.URL).AddToCart(ctx, schemas.Token{Name: "N", Value: "v"}, defaultProduct())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not JSON")
	})

	t.Run("sends the session cookie explicitly", func(t *testing.T) {
		var cookie string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie = r.Header.Get("Cookie")
			assert.Equal(t, "/addproducttocart/catalog/13/1/1", r.URL.Path)
			_, _ = w.Write([]byte(`{"success":true}`))
		}))
		defer server.Close()

		_, err := newTestClient(t, server.URL).AddToCart(ctx, schemas.Token{Name: "NOPCOMMERCE.AUTH", Value: "ticket"}, defaultProduct())
		require.NoError(t, err)
		assert.Equal(t, "NOPCOMMERCE.AUTH=ticket", cookie)
	})
}

func TestRemoveFromCart(t *testing.T) {
	ctx := context.Background()
	shop := fakeshop.New(t)
	client := newTestClient(t, shop.URL)
	token := schemas.Token{Name: fakeshop.DefaultCookieName, Value: shop.Login(fakeshop.DefaultIdentifier)}

	lineID := shop.SeedCart(fakeshop.DefaultIdentifier, fakeshop.DefaultProductID, 1)
	id := strconv.Itoa(lineID)

	err := client.RemoveFromCart(ctx, token, schemas.LineItem{Product: defaultProduct(), ID: id})
	require.NoError(t, err)
	assert.Empty(t, shop.Cart(fakeshop.DefaultIdentifier))

	form := shop.LastRemoval()
	assert.Equal(t, []string{id}, form["removefromcart"])
	assert.Equal(t, []string{"1"}, form["itemquantity"+id])
	assert.Equal(t, []string{"Update shopping cart"}, form["updatecart"])

	t.Run("empty line id", func(t *testing.T) {
		err := client.RemoveFromCart(ctx, token, schemas.LineItem{Product: defaultProduct()})
		require.Error(t, err)
		assert.Equal(t, failures.KindContract, failures.KindOf(err))
	})

	t.Run("server error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.True(t, strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data"))
			http.Error(w, "boom", http.StatusInternalServerError)
		}))
		defer server.Close()

		err := newTestClient(t, server.URL).RemoveFromCart(ctx, token, schemas.LineItem{Product: defaultProduct(), ID: "1"})
		var statusErr *UnexpectedStatusError
		require.True(t, errors.As(err, &statusErr))
		assert.Equal(t, http.StatusInternalServerError, statusErr.Got)
	})
}

// TestCartRoundTrip_LeavesCartEmpty adds then removes the product purely over the API.
func TestCartRoundTrip_LeavesCartEmpty(t *testing.T) {
	ctx := context.Background()
	shop := fakeshop.New(t)
	client := newTestClient(t, shop.URL)

	token, err := client.Login(ctx, validCreds)
	require.NoError(t, err)
	_, err = client.AddToCart(ctx, token, defaultProduct())
	require.NoError(t, err)

	cart := shop.Cart(fakeshop.DefaultIdentifier)
	require.Len(t, cart, 1)
	require.NoError(t, client.RemoveFromCart(ctx, token, schemas.LineItem{Product: defaultProduct(), ID: strconv.Itoa(cart[0].ID)}))
	assert.Empty(t, shop.Cart(fakeshop.DefaultIdentifier))
}
