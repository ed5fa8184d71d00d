package compliance

import (
	"math"
	"time"

	"github.com/google/uuid"

	"driftgate/internal/diff"
	id "driftgate/pkg/domain"
	dErrors "driftgate/pkg/domain-errors"
)

// Builder is the in-flight report accumulator for one (repository, commit,
// job) execution. It is owned exclusively by that job's call chain — never
// shared across jobs and never reached through ambient state — so it needs
// no locking. Repeated Add calls for the same aspect accumulate, which lets
// multiple diff-handler invocations within one job feed the same report.
type Builder struct {
	workspace id.Workspace
	repo      id.RepoRef
	branch    string
	commitSha string

	order     []string
	targets   map[string]int
	diffs     map[string][]diff.Discrepancy
	finalized bool
}

// NewBuilder starts an empty accumulator for one comparison run.
func NewBuilder(workspace id.Workspace, repo id.RepoRef, branch, commitSha string) *Builder {
	return &Builder{
		workspace: workspace,
		repo:      repo,
		branch:    branch,
		commitSha: commitSha,
		targets:   make(map[string]int),
		diffs:     make(map[string][]diff.Discrepancy),
	}
}

// Add records one aspect's applicable target count and discrepancies. Calls
// after Finalize are rejected: the report is append-only during the run and
// sealed exactly once.
func (b *Builder) Add(aspectID string, targetCount int, ds []diff.Discrepancy) error {
	if b.finalized {
		return dErrors.New(dErrors.CodeConflict, "report already finalized")
	}
	if _, seen := b.targets[aspectID]; !seen {
		b.order = append(b.order, aspectID)
	}
	b.targets[aspectID] += targetCount
	b.diffs[aspectID] = append(b.diffs[aspectID], ds...)
	return nil
}

// DiffCount returns the number of discrepancies accumulated so far.
func (b *Builder) DiffCount() int {
	n := 0
	for _, ds := range b.diffs {
		n += len(ds)
	}
	return n
}

// Finalize seals the accumulator and computes percentages. Aspects with zero
// applicable targets contribute no row: there is nothing to score, and a
// divide-by-zero percent would claim compliance that was never checked.
func (b *Builder) Finalize(now time.Time) (Report, error) {
	if b.finalized {
		return Report{}, dErrors.New(dErrors.CodeConflict, "report already finalized")
	}
	b.finalized = true

	report := Report{
		ID:          uuid.New(),
		Workspace:   b.workspace,
		Repo:        b.repo,
		Branch:      b.branch,
		CommitSha:   b.commitSha,
		GeneratedAt: now,
	}

	for _, aspectID := range b.order {
		targetCount := b.targets[aspectID]
		if targetCount == 0 {
			continue
		}
		ds := b.diffs[aspectID]
		report.Rows = append(report.Rows, AspectRow{
			AspectID:      aspectID,
			TargetCount:   targetCount,
			Discrepancies: ds,
			Percent:       Percent(targetCount, len(ds)),
		})
		report.OverallTargets += targetCount
		report.OverallDiffs += len(ds)
	}
	if report.OverallTargets > 0 {
		report.OverallPercent = Percent(report.OverallTargets, report.OverallDiffs)
	}
	return report, nil
}

// Percent computes a compliance percentage: round-half-up of
// (1 - diffs/targets) * 100, clamped to [0, 100]. Discrepancies exceeding
// the target count should not occur under the comparison invariants, but a
// count bug upstream must never surface as a negative percentage.
func Percent(targets, diffs int) int {
	if targets <= 0 {
		return 0
	}
	p := (1 - float64(diffs)/float64(targets)) * 100
	rounded := int(math.Floor(p + 0.5))
	if rounded < 0 {
		return 0
	}
	if rounded > 100 {
		return 100
	}
	return rounded
}
