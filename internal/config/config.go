// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/avasilev/shopbridge/api/schemas"
)

// Config holds the entire application configuration.
type Config struct {
	Logger   LoggerConfig   `mapstructure:"logger" yaml:"logger"`
	Shop     ShopConfig     `mapstructure:"shop" yaml:"shop"`
	Cart     CartConfig     `mapstructure:"cart" yaml:"cart"`
	Browser  BrowserConfig  `mapstructure:"browser" yaml:"browser"`
	Network  NetworkConfig  `mapstructure:"network" yaml:"network"`
	Scenario ScenarioConfig `mapstructure:"scenario" yaml:"scenario"`
	Report   ReportConfig   `mapstructure:"report" yaml:"report"`
	Database DatabaseConfig `mapstructure:"database" yaml:"database"`
}

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig defines the color names for different log levels.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// ShopConfig describes the target shop and the account used against it.
type ShopConfig struct {
	BaseURL         string `mapstructure:"base_url" yaml:"base_url"`
	Identifier      string `mapstructure:"identifier" yaml:"identifier"`
	Secret          string `mapstructure:"secret" yaml:"-"`
	AuthCookieName  string `mapstructure:"auth_cookie_name" yaml:"auth_cookie_name"`
	LoginPath       string `mapstructure:"login_path" yaml:"login_path"`
	PrimeAssetPath  string `mapstructure:"prime_asset_path" yaml:"prime_asset_path"`
	IdentityPath    string `mapstructure:"identity_path" yaml:"identity_path"`
	AccountSelector string `mapstructure:"account_selector" yaml:"account_selector"`
	// StrictRedirect accepts only 302 as a successful login. When false any 3xx is accepted.
	StrictRedirect bool `mapstructure:"strict_redirect" yaml:"strict_redirect"`
}

// Credentials returns the configured identifier/secret pair.
func (s ShopConfig) Credentials() schemas.Credentials {
	return schemas.Credentials{Identifier: s.Identifier, Secret: s.Secret}
}

// URL resolves a shop-relative path against BaseURL.
func (s ShopConfig) URL(path string) string {
	return strings.TrimRight(s.BaseURL, "/") + "/" + strings.TrimLeft(path, "/")
}

// CartConfig selects the product used by the cart round trip.
type CartConfig struct {
	ProductID     int    `mapstructure:"product_id" yaml:"product_id"`
	CartType      int    `mapstructure:"cart_type" yaml:"cart_type"`
	Quantity      int    `mapstructure:"quantity" yaml:"quantity"`
	ProductName   string `mapstructure:"product_name" yaml:"product_name"`
	EmptySentinel string `mapstructure:"empty_sentinel" yaml:"empty_sentinel"`
}

// Product returns the configured product triple.
func (c CartConfig) Product() schemas.ProductRef {
	return schemas.ProductRef{
		ProductID: c.ProductID,
		CartType:  c.CartType,
		Quantity:  c.Quantity,
		Name:      c.ProductName,
	}
}

// BrowserConfig holds settings for the browser sessions.
type BrowserConfig struct {
	Driver          string         `mapstructure:"driver" yaml:"driver"`
	Headless        bool           `mapstructure:"headless" yaml:"headless"`
	DisableCache    bool           `mapstructure:"disable_cache" yaml:"disable_cache"`
	IgnoreTLSErrors bool           `mapstructure:"ignore_tls_errors" yaml:"ignore_tls_errors"`
	Concurrency     int            `mapstructure:"concurrency" yaml:"concurrency"`
	WaitTimeout     time.Duration  `mapstructure:"wait_timeout" yaml:"wait_timeout"`
	Args            []string       `mapstructure:"args" yaml:"args"`
	Viewport        map[string]int `mapstructure:"viewport" yaml:"viewport"`
	ExecPath        string         `mapstructure:"exec_path" yaml:"exec_path"`
}

// NetworkConfig tunes the HTTP collaborator and navigation behavior.
type NetworkConfig struct {
	Timeout           time.Duration     `mapstructure:"timeout" yaml:"timeout"`
	NavigationTimeout time.Duration     `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
	IgnoreTLSErrors   bool              `mapstructure:"ignore_tls_errors" yaml:"ignore_tls_errors"`
	ForceHTTP2        bool              `mapstructure:"force_http2" yaml:"force_http2"`
	Headers           map[string]string `mapstructure:"headers" yaml:"headers"`
	// RateLimit is the number of API requests per second. Zero disables limiting.
	RateLimit      float64 `mapstructure:"rate_limit" yaml:"rate_limit"`
	RateBurst      int     `mapstructure:"rate_burst" yaml:"rate_burst"`
	MaxBodyCapture int     `mapstructure:"max_body_capture" yaml:"max_body_capture"`
}

// ScenarioConfig controls scenario execution.
type ScenarioConfig struct {
	// ResetBrowser closes and reacquires the browser between the cart
	// harvest and removal steps.
	ResetBrowser bool     `mapstructure:"reset_browser" yaml:"reset_browser"`
	Include      []string `mapstructure:"include" yaml:"include"`
}

// ReportConfig selects how results are written.
type ReportConfig struct {
	Format string `mapstructure:"format" yaml:"format"`
	Output string `mapstructure:"output" yaml:"output"`
}

// DatabaseConfig holds the optional run history database.
type DatabaseConfig struct {
	URL string `mapstructure:"url" yaml:"url"`
}

// NewDefaultConfig creates a new configuration struct populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values for every configuration parameter.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "shopbridge")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")
	v.SetDefault("logger.colors.dpanic", "magenta")
	v.SetDefault("logger.colors.panic", "magenta")
	v.SetDefault("logger.colors.fatal", "magenta")

	// -- Shop --
	v.SetDefault("shop.base_url", "http://demowebshop.tricentis.com")
	v.SetDefault("shop.identifier", "")
	v.SetDefault("shop.secret", "")
	v.SetDefault("shop.auth_cookie_name", "NOPCOMMERCE.AUTH")
	v.SetDefault("shop.login_path", "/login")
	v.SetDefault("shop.prime_asset_path", "/Themes/DefaultClean/Content/images/logo.png")
	v.SetDefault("shop.identity_path", "/")
	v.SetDefault("shop.account_selector", ".account")
	v.SetDefault("shop.strict_redirect", true)

	// -- Cart --
	v.SetDefault("cart.product_id", 13)
	v.SetDefault("cart.cart_type", 1)
	v.SetDefault("cart.quantity", 1)
	v.SetDefault("cart.product_name", "Computing and Internet")
	v.SetDefault("cart.empty_sentinel", "(0)")

	// -- Browser --
	v.SetDefault("browser.driver", "chromedp")
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.disable_cache", true)
	v.SetDefault("browser.ignore_tls_errors", false)
	v.SetDefault("browser.concurrency", 1)
	v.SetDefault("browser.wait_timeout", "10s")

	// -- Network --
	v.SetDefault("network.timeout", "30s")
	v.SetDefault("network.navigation_timeout", "60s")
	v.SetDefault("network.ignore_tls_errors", false)
	v.SetDefault("network.force_http2", true)
	v.SetDefault("network.rate_limit", 5.0)
	v.SetDefault("network.rate_burst", 2)
	v.SetDefault("network.max_body_capture", 16*1024)

	// -- Scenario --
	v.SetDefault("scenario.reset_browser", true)

	// -- Report --
	v.SetDefault("report.format", "text")
	v.SetDefault("report.output", "stdout")
}

// NewConfigFromViper creates a new configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config

	// Bind environment variables for sensitive data.
	_ = v.BindEnv("shop.secret", "SHOPBRIDGE_SHOP_SECRET")
	_ = v.BindEnv("database.url", "SHOPBRIDGE_DATABASE_URL")

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for required fields and sane values.
// Missing credentials are not an error here; scenarios that need them fail on their own.
func (c *Config) Validate() error {
	var errs []error

	u, err := url.Parse(c.Shop.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("shop.base_url must be an absolute URL, got %q", c.Shop.BaseURL))
	}
	if c.Shop.AuthCookieName == "" {
		errs = append(errs, errors.New("shop.auth_cookie_name is required"))
	}
	if !strings.HasPrefix(c.Shop.PrimeAssetPath, "/") {
		errs = append(errs, errors.New("shop.prime_asset_path must be an absolute path"))
	}
	if c.Cart.ProductID <= 0 {
		errs = append(errs, errors.New("cart.product_id must be a positive integer"))
	}
	if c.Cart.Quantity <= 0 {
		errs = append(errs, errors.New("cart.quantity must be a positive integer"))
	}
	switch c.Browser.Driver {
	case "chromedp", "playwright":
	default:
		errs = append(errs, fmt.Errorf("browser.driver must be chromedp or playwright, got %q", c.Browser.Driver))
	}
	if c.Browser.Concurrency <= 0 {
		errs = append(errs, errors.New("browser.concurrency must be a positive integer"))
	}
	if c.Network.RateLimit < 0 {
		errs = append(errs, errors.New("network.rate_limit must not be negative"))
	}
	switch c.Report.Format {
	case "text", "json", "junit":
	default:
		errs = append(errs, fmt.Errorf("report.format must be text, json or junit, got %q", c.Report.Format))
	}
	return errors.Join(errs...)
}
