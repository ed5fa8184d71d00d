package aspect

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"driftgate/internal/fingerprint"
)

func TestRegistry(t *testing.T) {
	t.Run("register then resolve", func(t *testing.T) {
		r := NewRegistry()
		require.NoError(t, r.Register(Aspect{ID: "typescript-version", DisplayName: "TypeScript Version"}))

		a, err := r.Of("typescript-version")
		require.NoError(t, err)
		assert.Equal(t, "TypeScript Version", a.Label())
	})

	t.Run("duplicate id rejected", func(t *testing.T) {
		r := NewRegistry()
		require.NoError(t, r.Register(Aspect{ID: "license"}))

		err := r.Register(Aspect{ID: "license"})
		assert.True(t, errors.Is(err, ErrDuplicateAspect))
	})

	t.Run("empty id rejected", func(t *testing.T) {
		r := NewRegistry()
		assert.Error(t, r.Register(Aspect{}))
	})

	t.Run("unknown kind", func(t *testing.T) {
		r := NewRegistry()
		_, err := r.Of("never-registered")
		assert.True(t, errors.Is(err, ErrUnknownAspect))
	})

	t.Run("All preserves registration order", func(t *testing.T) {
		r := NewRegistry()
		require.NoError(t, r.Register(Aspect{ID: "b-aspect"}))
		require.NoError(t, r.Register(Aspect{ID: "a-aspect"}))

		all := r.All()
		require.Len(t, all, 2)
		assert.Equal(t, "b-aspect", all[0].ID)
		assert.Equal(t, "a-aspect", all[1].ID)
	})
}

func TestRenderValue(t *testing.T) {
	t.Run("uses the aspect renderer", func(t *testing.T) {
		a := Aspect{ID: "license", Render: func(f fingerprint.Fingerprint) string {
			return "license " + f.Data.(string)
		}}
		got := a.RenderValue(fingerprint.Fingerprint{Data: "MIT"})
		assert.Equal(t, "license MIT", got)
	})

	t.Run("falls back to compact JSON", func(t *testing.T) {
		a := Aspect{ID: "node-version"}
		got := a.RenderValue(fingerprint.Fingerprint{Data: []string{"20"}})
		assert.Equal(t, `["20"]`, got)
	})

	t.Run("label falls back to id", func(t *testing.T) {
		assert.Equal(t, "node-version", Aspect{ID: "node-version"}.Label())
	})
}
