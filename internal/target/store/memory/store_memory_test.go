package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"driftgate/internal/fingerprint"
	"driftgate/internal/target"
	"driftgate/internal/target/store"
)

func newTarget(kind, name string, data any) target.Target {
	t := target.Target{Fingerprint: fingerprint.Fingerprint{Kind: kind, Name: name, Data: data}}
	if err := t.Fill(); err != nil {
		panic(err)
	}
	return t
}

func TestInMemoryStore(t *testing.T) {
	ctx := context.Background()
	ws := target.Scope{Workspace: "acme"}

	t.Run("set then get round trip", func(t *testing.T) {
		s := New()
		want := newTarget("typescript-version", "typescript-version", []string{"3.5.0"})
		require.NoError(t, s.Set(ctx, ws, want))

		got, err := s.Get(ctx, ws, "typescript-version", "typescript-version")
		require.NoError(t, err)
		assert.Equal(t, want.Sha, got.Sha)
	})

	t.Run("get missing returns not found", func(t *testing.T) {
		s := New()
		_, err := s.Get(ctx, ws, "nope", "nope")
		assert.True(t, errors.Is(err, store.ErrNotFound))
	})

	t.Run("set overwrites existing policy", func(t *testing.T) {
		s := New()
		require.NoError(t, s.Set(ctx, ws, newTarget("node-version", "node-version", []string{"18"})))
		updated := newTarget("node-version", "node-version", []string{"20"})
		require.NoError(t, s.Set(ctx, ws, updated))

		got, err := s.Get(ctx, ws, "node-version", "node-version")
		require.NoError(t, err)
		assert.Equal(t, updated.Sha, got.Sha)
	})

	t.Run("delete removes target", func(t *testing.T) {
		s := New()
		require.NoError(t, s.Set(ctx, ws, newTarget("license", "license", "Apache-2.0")))
		require.NoError(t, s.Delete(ctx, ws, "license", "license"))

		_, err := s.Get(ctx, ws, "license", "license")
		assert.True(t, errors.Is(err, store.ErrNotFound))
	})

	t.Run("delete missing returns not found", func(t *testing.T) {
		s := New()
		err := s.Delete(ctx, ws, "license", "license")
		assert.True(t, errors.Is(err, store.ErrNotFound))
	})

	t.Run("scopes are isolated", func(t *testing.T) {
		s := New()
		repoScope := target.Scope{Workspace: "acme", Repo: "acme/widgets"}
		require.NoError(t, s.Set(ctx, repoScope, newTarget("license", "license", "MIT")))

		_, err := s.Get(ctx, ws, "license", "license")
		assert.True(t, errors.Is(err, store.ErrNotFound))

		got, err := s.Get(ctx, repoScope, "license", "license")
		require.NoError(t, err)
		assert.Equal(t, "license", got.Kind)
	})
}

func TestResolvePrecedence(t *testing.T) {
	ctx := context.Background()
	s := New()
	ws := target.Scope{Workspace: "acme"}
	repoScope := target.Scope{Workspace: "acme", Repo: "acme/widgets"}

	require.NoError(t, s.Set(ctx, ws, newTarget("node-version", "node-version", []string{"18"})))
	require.NoError(t, s.Set(ctx, ws, newTarget("license", "license", "Apache-2.0")))
	override := newTarget("node-version", "node-version", []string{"20"})
	require.NoError(t, s.Set(ctx, repoScope, override))

	view, err := target.Resolve(ctx, s, "acme", "acme/widgets", "main")
	require.NoError(t, err)
	require.Equal(t, 2, view.Len())

	// Repository override wins for node-version; order is (kind, name).
	targets := view.Targets()
	assert.Equal(t, "license", targets[0].Kind)
	assert.Equal(t, "node-version", targets[1].Kind)
	assert.Equal(t, override.Sha, targets[1].Sha)
}

func TestResolveLayering(t *testing.T) {
	ctx := context.Background()
	s := New()
	ws := target.Scope{Workspace: "acme"}
	repoScope := target.Scope{Workspace: "acme", Repo: "acme/widgets"}
	branchScope := target.Scope{Workspace: "acme", Repo: "acme/widgets", Branch: "main"}

	require.NoError(t, s.Set(ctx, ws, newTarget("node-version", "node-version", []string{"18"})))
	require.NoError(t, s.Set(ctx, ws, newTarget("license", "license", "Apache-2.0")))
	repoNode := newTarget("node-version", "node-version", []string{"20"})
	require.NoError(t, s.Set(ctx, repoScope, repoNode))
	branchLicense := newTarget("license", "license", "MIT")
	require.NoError(t, s.Set(ctx, branchScope, branchLicense))

	t.Run("repo layer applies to branch-qualified resolution", func(t *testing.T) {
		view, err := target.Resolve(ctx, s, "acme", "acme/widgets", "main")
		require.NoError(t, err)
		require.Equal(t, 2, view.Len())

		targets := view.Targets()
		assert.Equal(t, branchLicense.Sha, targets[0].Sha)
		assert.Equal(t, repoNode.Sha, targets[1].Sha)
	})

	t.Run("other branches keep the repo layer but not the branch layer", func(t *testing.T) {
		view, err := target.Resolve(ctx, s, "acme", "acme/widgets", "release")
		require.NoError(t, err)
		require.Equal(t, 2, view.Len())

		targets := view.Targets()
		assert.Equal(t, "Apache-2.0", targets[0].Data)
		assert.Equal(t, repoNode.Sha, targets[1].Sha)
	})

	t.Run("other repos only see the workspace layer", func(t *testing.T) {
		view, err := target.Resolve(ctx, s, "acme", "acme/gadgets", "main")
		require.NoError(t, err)
		require.Equal(t, 2, view.Len())

		targets := view.Targets()
		assert.Equal(t, "Apache-2.0", targets[0].Data)
		assert.NotEqual(t, repoNode.Sha, targets[1].Sha)
	})
}
