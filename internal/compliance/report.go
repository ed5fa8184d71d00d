// Package compliance aggregates discrepancies into per-aspect and overall
// compliance scores for one repository at one commit.
package compliance

import (
	"time"

	"github.com/google/uuid"

	"driftgate/internal/diff"
	id "driftgate/pkg/domain"
)

// AspectRow summarizes one aspect's drift within a report.
type AspectRow struct {
	AspectID      string             `json:"aspectId"`
	TargetCount   int                `json:"targetCount"`
	Discrepancies []diff.Discrepancy `json:"discrepancies"`
	Percent       int                `json:"compliancePercent"`
}

// Report is the aggregated, percentage-scored drift summary for one
// repository/commit. It is owned by the comparison run that created it and
// persisted as an audit event once finalized.
type Report struct {
	ID             uuid.UUID    `json:"id"`
	Workspace      id.Workspace `json:"workspace"`
	Repo           id.RepoRef   `json:"repo"`
	Branch         string       `json:"branch"`
	CommitSha      string       `json:"commitSha"`
	Rows           []AspectRow  `json:"perAspect"`
	OverallTargets int          `json:"overallTargetCount"`
	OverallDiffs   int          `json:"overallDifferenceCount"`
	OverallPercent int          `json:"overallCompliancePercent"`
	GeneratedAt    time.Time    `json:"generatedAt"`
}

// Row returns the row for an aspect, or nil when the aspect contributed no
// applicable targets.
func (r Report) Row(aspectID string) *AspectRow {
	for i := range r.Rows {
		if r.Rows[i].AspectID == aspectID {
			return &r.Rows[i]
		}
	}
	return nil
}
