// internal/scenario/cart_locator_test.go
package scenario

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"testing"

	"github.com/antchfx/htmlquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"golang.org/x/net/html"

	"github.com/avasilev/shopbridge/api/schemas"
	"github.com/avasilev/shopbridge/internal/config"
	"github.com/avasilev/shopbridge/internal/shopapi"
	"github.com/avasilev/shopbridge/internal/testing/fakeshop"
)

const otherProduct = "Fiction"

func fetchCart(t *testing.T, shop *fakeshop.Shop, ticket string) *html.Node {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, shop.URL+cartPath, nil)
	require.NoError(t, err)
	req.AddCookie(&http.Cookie{Name: shop.CookieName, Value: ticket})
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	doc, err := htmlquery.Parse(resp.Body)
	require.NoError(t, err)
	return doc
}

func cartIndicator(t *testing.T, doc *html.Node) string {
	t.Helper()
	node := htmlquery.FindOne(doc, "//span[contains(concat(' ', normalize-space(@class), ' '), ' cart-qty ')]")
	require.NotNil(t, node, "cart indicator is missing")
	return strings.TrimSpace(htmlquery.InnerText(node))
}

func TestCartLocators_RenderedCart(t *testing.T) {
	shop := fakeshop.New(t, fakeshop.WithProduct(45, otherProduct))
	ticket := shop.Login(fakeshop.DefaultIdentifier)
	first := shop.SeedCart(fakeshop.DefaultIdentifier, fakeshop.DefaultProductID, 1)
	second := shop.SeedCart(fakeshop.DefaultIdentifier, 45, 2)

	doc := fetchCart(t, shop, ticket)
	assert.Equal(t, "(3)", cartIndicator(t, doc))

	for name, id := range map[string]int{fakeshop.DefaultProduct: first, otherProduct: second} {
		row := productRow(name)
		require.Equal(t, schemas.SelectorXPath, row.Kind)
		link := htmlquery.FindOne(doc, row.Query)
		require.NotNil(t, link, "no row for %q", name)
		assert.Equal(t, name, htmlquery.InnerText(link))

		checkboxes := htmlquery.Find(doc, removeCheckbox(name).Query)
		require.Len(t, checkboxes, 1, "removal checkbox of %q must be unique", name)
		assert.Equal(t, "checkbox", htmlquery.SelectAttr(checkboxes[0], "type"))
		assert.Equal(t, strconv.Itoa(id), htmlquery.SelectAttr(checkboxes[0], "value"))
	}

	assert.Nil(t, htmlquery.FindOne(doc, productRow("Computing").Query), "partial names must not match")
}

func TestCartLocators_HarvestedIDRemovesTheRow(t *testing.T) {
	shop := fakeshop.New(t)
	cfg := config.NewDefaultConfig()
	cfg.Shop.BaseURL = shop.URL
	cfg.Shop.AuthCookieName = shop.CookieName
	cfg.Network.RateLimit = 0
	cfg.Network.ForceHTTP2 = false
	client, err := shopapi.NewFromConfig(cfg, zaptest.NewLogger(t))
	require.NoError(t, err)

	ctx := context.Background()
	token, err := client.Login(ctx, schemas.Credentials{Identifier: fakeshop.DefaultIdentifier, Secret: fakeshop.DefaultSecret})
	require.NoError(t, err)
	product := schemas.ProductRef{ProductID: fakeshop.DefaultProductID, CartType: 1, Quantity: 1, Name: fakeshop.DefaultProduct}
	_, err = client.AddToCart(ctx, token, product)
	require.NoError(t, err)

	doc := fetchCart(t, shop, token.Value)
	assert.NotEqual(t, cfg.Cart.EmptySentinel, cartIndicator(t, doc))
	checkbox := htmlquery.FindOne(doc, removeCheckbox(product.Name).Query)
	require.NotNil(t, checkbox)
	id := htmlquery.SelectAttr(checkbox, "value")

	require.NoError(t, client.RemoveFromCart(ctx, token, schemas.LineItem{Product: product, ID: id}))
	assert.Equal(t, []string{id}, shop.LastRemoval()["removefromcart"])

	doc = fetchCart(t, shop, token.Value)
	assert.Nil(t, htmlquery.FindOne(doc, productRow(product.Name).Query))
	assert.Equal(t, cfg.Cart.EmptySentinel, cartIndicator(t, doc))
}
