package scm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"driftgate/internal/remediation"
	id "driftgate/pkg/domain"
	dErrors "driftgate/pkg/domain-errors"
)

func TestRecorderSubmitOncePerBranch(t *testing.T) {
	ctx := context.Background()
	rec := NewRecorder()
	repo, err := id.ParseRepoRef("acme/webapp")
	require.NoError(t, err)

	req := remediation.Request{Repo: repo, TargetBranch: "main", AspectID: "node-version"}

	first, err := rec.SubmitRemediation(ctx, req)
	require.NoError(t, err)
	assert.NotEmpty(t, first.ID)
	assert.Equal(t, "main", first.Branch)

	_, err = rec.SubmitRemediation(ctx, req)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict))

	// Another branch of the same repo is independent.
	other := req
	other.TargetBranch = "release"
	_, err = rec.SubmitRemediation(ctx, other)
	require.NoError(t, err)

	rec.Complete(repo, "main")
	_, err = rec.SubmitRemediation(ctx, req)
	require.NoError(t, err)

	assert.Len(t, rec.Requests(), 3)
}

func TestRecorderChecks(t *testing.T) {
	ctx := context.Background()
	rec := NewRecorder()
	repo, err := id.ParseRepoRef("acme/webapp")
	require.NoError(t, err)

	require.NoError(t, rec.UpdateCheck(ctx, Check{
		Repo: repo, CommitSha: "abc123", Name: "policy/compliance", Conclusion: ConclusionSuccess,
	}))
	require.NoError(t, rec.UpdateCheck(ctx, Check{
		Repo: repo, CommitSha: "abc123", Name: "policy/compliance", Conclusion: ConclusionFailure,
	}))

	checks := rec.Checks()
	require.Len(t, checks, 2)
	assert.Equal(t, ConclusionSuccess, checks[0].Conclusion)
	assert.Equal(t, ConclusionFailure, checks[1].Conclusion)
}
