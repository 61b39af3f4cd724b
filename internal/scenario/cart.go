// File: internal/scenario/cart.go
package scenario

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/avasilev/shopbridge/api/schemas"
	"github.com/avasilev/shopbridge/internal/failures"
)

const cartPath = "/cart"

var cartQuantity = schemas.CSS(".cart-qty")

// productRow matches the product link of the cart row for name.
func productRow(name string) schemas.Selector {
	return schemas.TagAndText("a", "product-name", name)
}

// removeCheckbox matches the removal checkbox in the same row as the product link.
func removeCheckbox(name string) schemas.Selector {
	return productRow(name).Within(
		"/ancestor::tr[1]//td[contains(concat(' ', normalize-space(@class), ' '), ' remove-from-cart ')]//input")
}

// CartRoundTrip adds a product over HTTP, finds its line in the rendered cart,
// removes it over HTTP and checks the cart page no longer lists it.
type CartRoundTrip struct{}

func (CartRoundTrip) Name() string        { return "cart" }
func (CartRoundTrip) DisplayName() string { return "Cart add and remove round trip" }

func (CartRoundTrip) Run(ctx context.Context, env *Env) error {
	cfg := env.Config
	product := cfg.Cart.Product()
	cartURL := cfg.Shop.URL(cartPath)
	b := env.NewBridge()
	bc := env.Browser()

	if err := env.Step(ctx, "authenticate and inject session", func(ctx context.Context) error {
		return b.Establish(ctx, bc)
	}); err != nil {
		return err
	}
	token, _ := b.Token()

	if err := env.Step(ctx, "add product to cart via API", func(ctx context.Context) error {
		_, err := env.API.AddToCart(ctx, token, product)
		return err
	}); err != nil {
		return err
	}

	if err := env.Step(ctx, "verify cart indicator", func(ctx context.Context) error {
		if err := b.Reapply(ctx, bc); err != nil {
			return err
		}
		if err := bc.Navigate(ctx, cartURL); err != nil {
			return failures.NavigationAt(ctx, bc, "verify cart indicator", cartURL, err)
		}
		qty, err := bc.Text(ctx, cartQuantity)
		if err != nil {
			return failures.AssertionAt(ctx, bc, "verify cart indicator", err, "cart indicator %s not found", cartQuantity)
		}
		if strings.TrimSpace(qty) == cfg.Cart.EmptySentinel {
			return failures.AssertionAt(ctx, bc, "verify cart indicator", nil, "cart indicator shows %s after adding %q", qty, product.Name)
		}
		return nil
	}); err != nil {
		return err
	}

	item := schemas.LineItem{Product: product}
	if err := env.Step(ctx, "harvest line item id", func(ctx context.Context) error {
		id, err := bc.Value(ctx, removeCheckbox(product.Name))
		if err != nil {
			return failures.AssertionAt(ctx, bc, "harvest line item", err, "no cart row for %q", product.Name)
		}
		if id = strings.TrimSpace(id); id == "" {
			return failures.AssertionAt(ctx, bc, "harvest line item", nil, "cart row for %q has no line item id", product.Name)
		}
		item.ID = id
		env.Logger.Info("Line item harvested.", zap.String("line_item", id), zap.String("product", product.Name))
		return nil
	}); err != nil {
		return err
	}

	if cfg.Scenario.ResetBrowser {
		if err := env.Step(ctx, "reset browser", func(ctx context.Context) error {
			var err error
			bc, err = env.ResetBrowser(ctx)
			return err
		}); err != nil {
			return err
		}
	} else {
		env.Skip("reset browser", "scenario.reset_browser is off")
	}

	if err := env.Step(ctx, "remove line item via API", func(ctx context.Context) error {
		return env.API.RemoveFromCart(ctx, token, item)
	}); err != nil {
		return err
	}

	return env.Step(ctx, "verify product row is gone", func(ctx context.Context) error {
		if err := b.Reapply(ctx, bc); err != nil {
			return err
		}
		if err := bc.Navigate(ctx, cartURL); err != nil {
			return failures.NavigationAt(ctx, bc, "verify removal", cartURL, err)
		}
		present, err := bc.Exists(ctx, productRow(product.Name))
		if err != nil {
			return err
		}
		if present {
			return failures.AssertionAt(ctx, bc, "verify removal", nil, "cart still lists %q (line item %s)", product.Name, item.ID)
		}
		return nil
	})
}
