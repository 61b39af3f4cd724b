// File: internal/config/config_test.go
package config

import (
	"bytes"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avasilev/shopbridge/api/schemas"
)

// -- Constructor and Defaults Tests --

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()

	assert.Equal(t, "info", cfg.Logger.Level)
	assert.Equal(t, "shopbridge", cfg.Logger.ServiceName)
	assert.Equal(t, "NOPCOMMERCE.AUTH", cfg.Shop.AuthCookieName)
	assert.Equal(t, "/Themes/DefaultClean/Content/images/logo.png", cfg.Shop.PrimeAssetPath)
	assert.True(t, cfg.Shop.StrictRedirect)
	assert.Equal(t, "chromedp", cfg.Browser.Driver)
	assert.True(t, cfg.Browser.Headless)
	assert.Equal(t, 10*time.Second, cfg.Browser.WaitTimeout)
	assert.Equal(t, 30*time.Second, cfg.Network.Timeout)
	assert.True(t, cfg.Scenario.ResetBrowser)
	assert.Equal(t, "(0)", cfg.Cart.EmptySentinel)

	assert.Equal(t, schemas.ProductRef{ProductID: 13, CartType: 1, Quantity: 1, Name: "Computing and Internet"}, cfg.Cart.Product())
	require.NoError(t, cfg.Validate(), "defaults must validate")
}

func TestShopConfig_URL(t *testing.T) {
	shop := ShopConfig{BaseURL: "http://127.0.0.1:8080/"}
	assert.Equal(t, "http://127.0.0.1:8080/cart", shop.URL("/cart"))
	assert.Equal(t, "http://127.0.0.1:8080/cart", shop.URL("cart"))
	assert.Equal(t, "http://127.0.0.1:8080/", shop.URL("/"))
}

// -- Validation Logic Tests --

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"relative base url", func(c *Config) { c.Shop.BaseURL = "demowebshop" }, "shop.base_url must be an absolute URL"},
		{"missing cookie name", func(c *Config) { c.Shop.AuthCookieName = "" }, "shop.auth_cookie_name is required"},
		{"relative prime asset", func(c *Config) { c.Shop.PrimeAssetPath = "logo.png" }, "shop.prime_asset_path must be an absolute path"},
		{"zero product", func(c *Config) { c.Cart.ProductID = 0 }, "cart.product_id must be a positive integer"},
		{"zero quantity", func(c *Config) { c.Cart.Quantity = 0 }, "cart.quantity must be a positive integer"},
		{"unknown driver", func(c *Config) { c.Browser.Driver = "selenium" }, "browser.driver must be chromedp or playwright"},
		{"zero concurrency", func(c *Config) { c.Browser.Concurrency = 0 }, "browser.concurrency must be a positive integer"},
		{"negative rate", func(c *Config) { c.Network.RateLimit = -1 }, "network.rate_limit must not be negative"},
		{"unknown report", func(c *Config) { c.Report.Format = "sarif" }, "report.format must be text, json or junit"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}

	t.Run("reports every problem at once", func(t *testing.T) {
		cfg := NewDefaultConfig()
		cfg.Cart.ProductID = 0
		cfg.Browser.Concurrency = 0
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "cart.product_id")
		assert.Contains(t, err.Error(), "browser.concurrency")
	})
}

// -- Loading Tests --

func TestNewConfigFromViper(t *testing.T) {
	t.Run("file values override defaults", func(t *testing.T) {
		yamlBytes := []byte(`
shop:
  base_url: "http://localhost:8080"
  identifier: "user@example.com"
cart:
  product_id: 31
  product_name: "14.1-inch Laptop"
browser:
  driver: "playwright"
  concurrency: 2
report:
  format: "junit"
  output: "report.xml"
`)
		v := viper.New()
		SetDefaults(v)
		v.SetConfigType("yaml")
		require.NoError(t, v.ReadConfig(bytes.NewBuffer(yamlBytes)))

		cfg, err := NewConfigFromViper(v)
		require.NoError(t, err)

		assert.Equal(t, "http://localhost:8080", cfg.Shop.BaseURL)
		assert.Equal(t, 31, cfg.Cart.ProductID)
		assert.Equal(t, 1, cfg.Cart.Quantity, "unset keys keep their defaults")
		assert.Equal(t, "playwright", cfg.Browser.Driver)
		assert.Equal(t, 2, cfg.Browser.Concurrency)
		assert.Equal(t, "junit", cfg.Report.Format)
	})

	t.Run("secrets come from the environment", func(t *testing.T) {
		t.Setenv("SHOPBRIDGE_SHOP_SECRET", "secret123")
		t.Setenv("SHOPBRIDGE_DATABASE_URL", "postgres://u:p@localhost/runs")

		v := viper.New()
		SetDefaults(v)
		v.Set("shop.identifier", "user@example.com")

		cfg, err := NewConfigFromViper(v)
		require.NoError(t, err)

		creds := cfg.Shop.Credentials()
		assert.Equal(t, schemas.Credentials{Identifier: "user@example.com", Secret: "secret123"}, creds)
		assert.True(t, creds.Valid())
		assert.Equal(t, "postgres://u:p@localhost/runs", cfg.Database.URL)
	})

	t.Run("invalid values are rejected", func(t *testing.T) {
		v := viper.New()
		SetDefaults(v)
		v.Set("browser.driver", "webdriver")

		_, err := NewConfigFromViper(v)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid configuration")
	})
}
