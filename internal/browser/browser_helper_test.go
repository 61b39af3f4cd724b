// internal/browser/browser_helper_test.go
package browser

import (
	"context"
	"os"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/avasilev/shopbridge/internal/config"
)

const testTimeout = 45 * time.Second

func testLogger(t *testing.T) *zap.Logger {
	t.Helper()
	return zaptest.NewLogger(t, zaptest.Level(zap.InfoLevel))
}

// chromePath locates a Chrome binary for the integration tests, honoring
// SHOPBRIDGE_CHROME. The test is skipped when none is installed.
func chromePath(t *testing.T) string {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping browser integration test in short mode")
	}
	if p := os.Getenv("SHOPBRIDGE_CHROME"); p != "" {
		return p
	}
	for _, name := range []string{"google-chrome", "google-chrome-stable", "chromium", "chromium-browser", "headless-shell"} {
		if p, err := exec.LookPath(name); err == nil {
			return p
		}
	}
	t.Skip("no chrome binary found; set SHOPBRIDGE_CHROME to run browser tests")
	return ""
}

func setupTestConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.NewDefaultConfig()
	cfg.Browser.Headless = true
	cfg.Browser.ExecPath = chromePath(t)
	cfg.Browser.WaitTimeout = 5 * time.Second
	cfg.Network.NavigationTimeout = 20 * time.Second
	return cfg
}

// setupBrowserManager starts a manager that is shut down when the test ends.
func setupBrowserManager(t *testing.T) *Manager {
	t.Helper()
	cfg := setupTestConfig(t)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	mgr, err := NewManager(ctx, cfg, testLogger(t))
	require.NoError(t, err)

	t.Cleanup(func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()
		if err := mgr.Shutdown(shutdownCtx); err != nil {
			t.Logf("manager shutdown: %v", err)
		}
		cancel()
	})
	return mgr
}
