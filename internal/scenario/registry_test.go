// internal/scenario/registry_test.go
package scenario_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avasilev/shopbridge/internal/scenario"
)

func names(scenarios []scenario.Scenario) []string {
	out := make([]string, len(scenarios))
	for i, s := range scenarios {
		out[i] = s.Name()
	}
	return out
}

func TestDefaultRegistry(t *testing.T) {
	r := scenario.DefaultRegistry()
	assert.Equal(t, []string{"login-ui", "login-api", "cart"}, names(r.All()))

	for _, s := range r.All() {
		assert.NotEmpty(t, s.DisplayName(), s.Name())
	}
}

func TestRegistry_Select(t *testing.T) {
	r := scenario.DefaultRegistry()

	t.Run("EmptyMeansAll", func(t *testing.T) {
		got, err := r.Select(nil)
		require.NoError(t, err)
		assert.Len(t, got, 3)
	})

	t.Run("DeclaredOrder", func(t *testing.T) {
		got, err := r.Select([]string{"cart", "login-ui"})
		require.NoError(t, err)
		assert.Equal(t, []string{"login-ui", "cart"}, names(got))
	})

	t.Run("DuplicatesCollapse", func(t *testing.T) {
		got, err := r.Select([]string{"cart", "cart"})
		require.NoError(t, err)
		assert.Equal(t, []string{"cart"}, names(got))
	})

	t.Run("Unknown", func(t *testing.T) {
		_, err := r.Select([]string{"cart", "checkout"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), `"checkout"`)
	})
}

func TestRegistry_All_ReturnsCopy(t *testing.T) {
	r := scenario.DefaultRegistry()
	all := r.All()
	all[0] = nil
	assert.NotNil(t, r.All()[0])
}

func TestNewRegistry_Duplicate(t *testing.T) {
	_, err := scenario.NewRegistry(stubScenario{name: "a"}, stubScenario{name: "b"}, stubScenario{name: "a"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "registered twice")
}
