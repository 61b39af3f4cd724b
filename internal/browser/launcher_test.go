// internal/browser/launcher_test.go
package browser

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avasilev/shopbridge/internal/config"
)

func TestNewLauncher(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tests := []struct {
		driver  string
		want    interface{}
		wantErr bool
	}{
		{driver: "", want: &Manager{}},
		{driver: DriverChromedp, want: &Manager{}},
		{driver: DriverPlaywright, want: &PlaywrightLauncher{}},
		{driver: "selenium", wantErr: true},
	}
	for _, tt := range tests {
		t.Run("driver="+tt.driver, func(t *testing.T) {
			cfg := config.NewDefaultConfig()
			cfg.Browser.Driver = tt.driver

			l, err := NewLauncher(ctx, cfg, testLogger(t))
			if tt.wantErr {
				assert.ErrorContains(t, err, "unknown browser driver")
				return
			}
			require.NoError(t, err)
			assert.IsType(t, tt.want, l)
			// Nothing was launched, so shutdown returns immediately.
			assert.NoError(t, l.Shutdown(ctx))
		})
	}
}

func TestPlaywrightLauncher_ClosedRejectsSessions(t *testing.T) {
	l := NewPlaywrightLauncher(config.NewDefaultConfig(), testLogger(t))
	require.NoError(t, l.Shutdown(context.Background()))

	_, err := l.NewSession(context.Background())
	assert.ErrorIs(t, err, ErrManagerClosed)
}
