// internal/browser/session_test.go
package browser

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avasilev/shopbridge/api/schemas"
	"github.com/avasilev/shopbridge/internal/testing/fakeshop"
)

func TestSession(t *testing.T) {
	mgr := setupBrowserManager(t)
	shop := fakeshop.New(t)

	newSession := func(t *testing.T) schemas.BrowserContext {
		t.Helper()
		ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
		defer cancel()
		s, err := mgr.NewSession(ctx)
		require.NoError(t, err)
		t.Cleanup(func() { _ = s.Close(context.Background()) })
		return s
	}

	t.Run("CookieRequiresDocument", func(t *testing.T) {
		s := newSession(t)
		ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
		defer cancel()

		err := s.SetCookie(ctx, shop.CookieName, "value")
		assert.ErrorIs(t, err, ErrNoDocument)
	})

	t.Run("InjectedCookieAuthenticates", func(t *testing.T) {
		s := newSession(t)
		ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
		defer cancel()

		require.NoError(t, s.Navigate(ctx, shop.URL+fakeshop.PrimeAssetPath))
		require.NoError(t, s.SetCookie(ctx, shop.CookieName, shop.Login(fakeshop.DefaultIdentifier)))

		c, ok, err := s.Cookie(ctx, shop.CookieName)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, "/", c.Path)
		assert.True(t, c.HTTPOnly)

		require.NoError(t, s.Navigate(ctx, shop.URL+"/"))
		text, err := s.Text(ctx, schemas.CSS(".account"))
		require.NoError(t, err)
		assert.Equal(t, fakeshop.DefaultIdentifier, text)
	})

	t.Run("SessionsAreIsolated", func(t *testing.T) {
		a := newSession(t)
		b := newSession(t)
		ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
		defer cancel()

		require.NoError(t, a.Navigate(ctx, shop.URL+fakeshop.PrimeAssetPath))
		require.NoError(t, a.SetCookie(ctx, shop.CookieName, "ticket"))

		require.NoError(t, b.Navigate(ctx, shop.URL+fakeshop.PrimeAssetPath))
		_, ok, err := b.Cookie(ctx, shop.CookieName)
		require.NoError(t, err)
		assert.False(t, ok, "cookie leaked across browser contexts")
	})

	t.Run("FormLogin", func(t *testing.T) {
		s := newSession(t)
		ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
		defer cancel()

		require.NoError(t, s.Navigate(ctx, shop.URL+"/login"))
		require.NoError(t, s.Fill(ctx, schemas.CSS("#Email"), fakeshop.DefaultIdentifier))
		require.NoError(t, s.Fill(ctx, schemas.CSS("#Password"), fakeshop.DefaultSecret))

		v, err := s.Value(ctx, schemas.CSS("#Email"))
		require.NoError(t, err)
		assert.Equal(t, fakeshop.DefaultIdentifier, v)

		require.NoError(t, s.Press(ctx, schemas.CSS("#Password"), "Enter"))
		require.NoError(t, s.WaitVisible(ctx, schemas.CSS(".account")))

		_, ok, err := s.Cookie(ctx, shop.CookieName)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("ExistsAndEvidence", func(t *testing.T) {
		s := newSession(t)
		ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
		defer cancel()

		require.NoError(t, s.Navigate(ctx, shop.URL+"/"))

		found, err := s.Exists(ctx, schemas.CSS(".ico-login"))
		require.NoError(t, err)
		assert.True(t, found)

		found, err = s.Exists(ctx, schemas.TagAndText("a", "", "Log in"))
		require.NoError(t, err)
		assert.True(t, found)

		found, err = s.Exists(ctx, schemas.CSS(".account"))
		require.NoError(t, err)
		assert.False(t, found)

		ev, err := s.Evidence(ctx)
		require.NoError(t, err)
		assert.Equal(t, shop.URL+"/", ev.URL)
		assert.NotEmpty(t, ev.Screenshot)
		assert.Contains(t, ev.DOM, "ico-login")
	})
}

func TestManager_Shutdown(t *testing.T) {
	mgr := setupBrowserManager(t)
	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()

	_, err := mgr.NewSession(ctx)
	require.NoError(t, err)

	require.NoError(t, mgr.Shutdown(ctx))
	require.NoError(t, mgr.Shutdown(ctx), "second shutdown is a no-op")

	_, err = mgr.NewSession(ctx)
	assert.ErrorIs(t, err, ErrManagerClosed)
}
