package diff_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"driftgate/internal/diff"
	"driftgate/internal/fingerprint"
	"driftgate/internal/target"
)

func fact(kind, name string, data any) fingerprint.Fingerprint {
	f := fingerprint.Fingerprint{Kind: kind, Name: name, Data: data}
	if err := f.Fill(); err != nil {
		panic(err)
	}
	return f
}

func concrete(kind, name string, data any) target.Target {
	t := target.Target{Fingerprint: fingerprint.Fingerprint{Kind: kind, Name: name, Data: data}}
	if err := t.Fill(); err != nil {
		panic(err)
	}
	return t
}

func eliminating(kind, name string) target.Target {
	t := target.Target{
		Fingerprint: fingerprint.Fingerprint{Kind: kind, Name: name, Data: map[string]any{}},
		Eliminate:   true,
	}
	if err := t.Fill(); err != nil {
		panic(err)
	}
	return t
}

func TestCompute(t *testing.T) {
	engine := diff.New()

	t.Run("equal hashes emit nothing", func(t *testing.T) {
		facts := []fingerprint.Fingerprint{fact("typescript-version", "typescript-version", []string{"3.5.0"})}
		view := target.NewView([]target.Target{concrete("typescript-version", "typescript-version", []string{"3.5.0"})})
		assert.Empty(t, engine.Compute(facts, view))
	})

	t.Run("differing hash emits one concrete discrepancy", func(t *testing.T) {
		// Scenario: repo pins typescript 3.1.0 while policy wants 3.5.0.
		facts := []fingerprint.Fingerprint{fact("typescript-version", "typescript-version", []string{"3.1.0"})}
		view := target.NewView([]target.Target{concrete("typescript-version", "typescript-version", []string{"3.5.0"})})

		ds := engine.Compute(facts, view)
		require.Len(t, ds, 1)
		assert.Equal(t, diff.Concrete, ds[0].Kind)
		assert.Equal(t, "typescript-version", ds[0].AspectID)
	})

	t.Run("absent fact is not drift for a concrete target", func(t *testing.T) {
		view := target.NewView([]target.Target{concrete("branch-count", "branch-count", map[string]int{"count": 3})})
		assert.Empty(t, engine.Compute(nil, view))
	})

	t.Run("eliminating target flags any matching fact", func(t *testing.T) {
		facts := []fingerprint.Fingerprint{fact("maven-direct-dep", "log4j:log4j", map[string]string{"version": "1.2.17"})}
		view := target.NewView([]target.Target{eliminating("maven-direct-dep", "log4j:log4j")})

		ds := engine.Compute(facts, view)
		require.Len(t, ds, 1)
		assert.Equal(t, diff.Eliminating, ds[0].Kind)
	})

	t.Run("eliminating target with no matching fact emits nothing", func(t *testing.T) {
		view := target.NewView([]target.Target{eliminating("maven-direct-dep", "log4j:log4j")})
		assert.Empty(t, engine.Compute(nil, view))
	})

	t.Run("comparison is per name, never aggregated across names", func(t *testing.T) {
		facts := []fingerprint.Fingerprint{
			fact("maven-direct-dep", "g1:a1", map[string]string{"version": "1.0"}),
			fact("maven-direct-dep", "g2:a2", map[string]string{"version": "2.0"}),
		}
		view := target.NewView([]target.Target{concrete("maven-direct-dep", "g1:a1", map[string]string{"version": "1.1"})})

		ds := engine.Compute(facts, view)
		require.Len(t, ds, 1)
		assert.Equal(t, "g1:a1", ds[0].Name)
	})

	t.Run("path scoped target only applies to matching sub-path", func(t *testing.T) {
		rootFact := fact("node-version", "node-version", []string{"18"})
		scoped := fact("node-version", "node-version", []string{"18"})
		scoped.Path = "services/api"

		tgt := concrete("node-version", "node-version", []string{"20"})
		tgt.Path = "services/api"
		view := target.NewView([]target.Target{tgt})

		ds := engine.Compute([]fingerprint.Fingerprint{rootFact, scoped}, view)
		require.Len(t, ds, 1)
		assert.Equal(t, "services/api", ds[0].Path)
	})

	t.Run("malformed payload excludes only the offending fact", func(t *testing.T) {
		bad := fingerprint.Fingerprint{Kind: "license", Name: "license", Data: make(chan int)}
		good := fact("typescript-version", "typescript-version", []string{"3.1.0"})
		view := target.NewView([]target.Target{
			concrete("license", "license", "Apache-2.0"),
			concrete("typescript-version", "typescript-version", []string{"3.5.0"}),
		})

		ds := engine.Compute([]fingerprint.Fingerprint{bad, good}, view)
		require.Len(t, ds, 1)
		assert.Equal(t, "typescript-version", ds[0].AspectID)
	})

	t.Run("repeated runs are identical", func(t *testing.T) {
		facts := []fingerprint.Fingerprint{
			fact("maven-direct-dep", "g2:a2", map[string]string{"version": "1"}),
			fact("maven-direct-dep", "g1:a1", map[string]string{"version": "1"}),
			fact("node-version", "node-version", []string{"18"}),
		}
		view := target.NewView([]target.Target{
			concrete("node-version", "node-version", []string{"20"}),
			concrete("maven-direct-dep", "g1:a1", map[string]string{"version": "2"}),
			concrete("maven-direct-dep", "g2:a2", map[string]string{"version": "2"}),
		})

		first := engine.Compute(facts, view)
		second := engine.Compute(facts, view)
		assert.Equal(t, first, second)

		// View order is (kind, name) ascending.
		require.Len(t, first, 3)
		assert.Equal(t, "g1:a1", first[0].Name)
		assert.Equal(t, "g2:a2", first[1].Name)
		assert.Equal(t, "node-version", first[2].Name)
	})
}
