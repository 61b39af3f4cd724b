// File: internal/browser/launcher.go
package browser

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/avasilev/shopbridge/api/schemas"
	"github.com/avasilev/shopbridge/internal/config"
)

const (
	DriverChromedp   = "chromedp"
	DriverPlaywright = "playwright"
)

// NewLauncher returns the launcher selected by browser.driver.
func NewLauncher(ctx context.Context, cfg *config.Config, logger *zap.Logger) (schemas.BrowserLauncher, error) {
	switch cfg.Browser.Driver {
	case DriverChromedp, "":
		return NewManager(ctx, cfg, logger)
	case DriverPlaywright:
		return NewPlaywrightLauncher(cfg, logger), nil
	default:
		return nil, fmt.Errorf("unknown browser driver %q", cfg.Browser.Driver)
	}
}
