package analysis

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"driftgate/internal/aspect"
	"driftgate/internal/audit"
	"driftgate/internal/compliance"
	"driftgate/internal/diff"
	"driftgate/internal/dispatch"
	"driftgate/internal/fingerprint"
	"driftgate/internal/optout"
	"driftgate/internal/remediation"
	"driftgate/internal/scm"
	"driftgate/internal/target"
	"driftgate/internal/target/store/memory"
	id "driftgate/pkg/domain"
	dErrors "driftgate/pkg/domain-errors"
)

type harness struct {
	service  *Service
	targets  *memory.InMemoryStore
	recorder *scm.Recorder
	reports  *compliance.MemoryStore
	auditLog *audit.InMemoryStore
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	registry := aspect.NewRegistry()
	require.NoError(t, aspect.RegisterBuiltins(registry))

	h := &harness{
		targets:  memory.New(),
		recorder: scm.NewRecorder(),
		reports:  compliance.NewMemoryStore(),
		auditLog: audit.NewInMemoryStore(),
	}

	dispatcher := dispatch.New(
		registry,
		optout.NewInMemoryStore(),
		h.recorder,
		h.recorder,
		remediation.NewBuilder(registry),
		h.reports,
		dispatch.WithAuditPublisher(audit.NewPublisher(h.auditLog)),
	)
	h.service = New(registry, h.targets, diff.New(), dispatcher)
	return h
}

func (h *harness) setTarget(t *testing.T, workspace id.Workspace, tgt target.Target) {
	t.Helper()
	require.NoError(t, (&tgt.Fingerprint).Fill())
	require.NoError(t, h.targets.Set(context.Background(), target.Scope{Workspace: workspace}, tgt))
}

func snapshot(repo string, files map[string]string) aspect.RepoSnapshot {
	return aspect.RepoSnapshot{
		Workspace:     "acme",
		Repo:          id.RepoRef{Owner: "acme", Name: repo},
		Branch:        "main",
		DefaultBranch: "main",
		CommitSha:     "abc123",
		BranchCount:   3,
		Files:         files,
	}
}

func TestAnalyzeRepoDetectsDriftAndRemediates(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	h.setTarget(t, "acme", target.Target{Fingerprint: fingerprint.Fingerprint{
		Kind: "typescript-version",
		Name: "typescript-version",
		Data: []string{"5.4.2"},
	}})
	h.setTarget(t, "acme", target.Target{Fingerprint: fingerprint.Fingerprint{
		Kind: "node-version",
		Name: "node-version",
		Data: []string{"20.11.1"},
	}})

	snap := snapshot("webapp", map[string]string{
		"package.json": `{"devDependencies": {"typescript": "^4.9.5"}}`,
		".nvmrc":       "v20.11.1\n",
	})

	report, err := h.service.AnalyzeRepo(ctx, snap)
	require.NoError(t, err)

	// TypeScript drifted, Node matches: one discrepancy over two targets.
	assert.Equal(t, 1, report.OverallDiffs)
	assert.Equal(t, 50, report.OverallPercent)

	tsRow := report.Row("typescript-version")
	require.NotNil(t, tsRow)
	assert.Equal(t, 0, tsRow.Percent)
	require.Len(t, tsRow.Discrepancies, 1)
	assert.Equal(t, diff.Concrete, tsRow.Discrepancies[0].Kind)

	nodeRow := report.Row("node-version")
	require.NotNil(t, nodeRow)
	assert.Equal(t, 100, nodeRow.Percent)

	requests := h.recorder.Requests()
	require.Len(t, requests, 1)
	assert.Equal(t, "typescript-version", requests[0].AspectID)
	assert.Contains(t, requests[0].Title, "5.4.2")

	checks := h.recorder.Checks()
	require.Len(t, checks, 1)
	assert.Equal(t, scm.ConclusionFailure, checks[0].Conclusion)

	stored, err := h.reports.Latest(ctx, snap.Repo)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, report.ID, stored.ID)
}

func TestAnalyzeRepoCompliant(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	h.setTarget(t, "acme", target.Target{Fingerprint: fingerprint.Fingerprint{
		Kind: "node-version",
		Name: "node-version",
		Data: []string{"20.11.1"},
	}})

	report, err := h.service.AnalyzeRepo(ctx, snapshot("webapp", map[string]string{
		".nvmrc": "20.11.1",
	}))
	require.NoError(t, err)
	assert.Equal(t, 0, report.OverallDiffs)
	assert.Equal(t, 100, report.OverallPercent)

	checks := h.recorder.Checks()
	require.Len(t, checks, 1)
	assert.Equal(t, scm.ConclusionSuccess, checks[0].Conclusion)
	assert.Empty(t, h.recorder.Requests())
}

func TestAnalyzeRepoEliminatingTarget(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	h.setTarget(t, "acme", target.Target{
		Fingerprint: fingerprint.Fingerprint{
			Kind: "ci-provider",
			Name: "ci-provider",
		},
		Eliminate: true,
	})

	report, err := h.service.AnalyzeRepo(ctx, snapshot("legacy", map[string]string{
		".travis.yml": "language: node_js",
	}))
	require.NoError(t, err)

	require.Equal(t, 1, report.OverallDiffs)
	row := report.Row("ci-provider")
	require.NotNil(t, row)
	require.Len(t, row.Discrepancies, 1)
	assert.Equal(t, diff.Eliminating, row.Discrepancies[0].Kind)
}

func TestAnalyzeRepoAbsentFactIsNotDrift(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	h.setTarget(t, "acme", target.Target{Fingerprint: fingerprint.Fingerprint{
		Kind: "typescript-version",
		Name: "typescript-version",
		Data: []string{"5.4.2"},
	}})

	// No package.json at all: the aspect never produces the fact.
	report, err := h.service.AnalyzeRepo(ctx, snapshot("docs", map[string]string{
		"README.md": "# docs",
	}))
	require.NoError(t, err)
	assert.Equal(t, 0, report.OverallDiffs)
	assert.Equal(t, 100, report.OverallPercent)
}

func TestAnalyzeRepoTargetStoreDown(t *testing.T) {
	h := newHarness(t)
	h.service.targets = failingTargetStore{}

	_, err := h.service.AnalyzeRepo(context.Background(), snapshot("webapp", nil))
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnavailable))
	assert.Empty(t, h.recorder.Checks())
}

type failingTargetStore struct{}

func (failingTargetStore) Get(context.Context, target.Scope, string, string) (*target.Target, error) {
	return nil, dErrors.New(dErrors.CodeUnavailable, "store down")
}

func (failingTargetStore) Set(context.Context, target.Scope, target.Target) error {
	return dErrors.New(dErrors.CodeUnavailable, "store down")
}

func (failingTargetStore) Delete(context.Context, target.Scope, string, string) error {
	return dErrors.New(dErrors.CodeUnavailable, "store down")
}

func (failingTargetStore) List(context.Context, target.Scope) ([]target.Target, error) {
	return nil, dErrors.New(dErrors.CodeUnavailable, "store down")
}

func TestAnalyzeFleetAnalyzesEachRepo(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	h.setTarget(t, "acme", target.Target{Fingerprint: fingerprint.Fingerprint{
		Kind: "node-version",
		Name: "node-version",
		Data: []string{"20.11.1"},
	}})

	good := snapshot("webapp", map[string]string{".nvmrc": "20.11.1"})
	drifted := snapshot("api", map[string]string{".nvmrc": "18.19.0"})

	results := h.service.AnalyzeFleet(ctx, []aspect.RepoSnapshot{good, drifted})
	require.Len(t, results, 2)

	byRepo := map[string]FleetResult{}
	for _, r := range results {
		byRepo[r.Repo.Slug()] = r
	}

	require.NoError(t, byRepo["acme/webapp"].Err)
	assert.Equal(t, 100, byRepo["acme/webapp"].Report.OverallPercent)

	require.NoError(t, byRepo["acme/api"].Err)
	assert.Equal(t, 0, byRepo["acme/api"].Report.OverallPercent)
	assert.Equal(t, 1, byRepo["acme/api"].Report.OverallDiffs)
}
