// Package audit is the durable record of what the engine observed and did:
// every finalized report, dispatched action, and policy change lands here.
// Events are transport-agnostic so stores and sinks can fan out.
package audit

import (
	"context"
	"time"

	id "driftgate/pkg/domain"
)

// Event captures one engine action against one repository.
type Event struct {
	Timestamp      time.Time    `json:"timestamp"`
	Workspace      id.Workspace `json:"workspace"`
	Repo           id.RepoRef   `json:"repo"`
	Branch         string       `json:"branch,omitempty"`
	CommitSha      string       `json:"commitSha,omitempty"`
	Action         string       `json:"action"`
	AspectID       string       `json:"aspectId,omitempty"`
	Decision       string       `json:"decision,omitempty"`
	Reason         string       `json:"reason,omitempty"`
	RequestID      string       `json:"requestId,omitempty"`
	OverallPercent int          `json:"overallPercent,omitempty"`
	DiffCount      int          `json:"diffCount,omitempty"`
}

const (
	EventReportFinalized      = "report_finalized"
	EventRemediationSubmitted = "remediation_submitted"
	EventCheckUpdated         = "check_updated"
	EventFallbackInvoked      = "fallback_invoked"
	EventTargetSet            = "target_set"
	EventTargetUnset          = "target_unset"
	EventOptOutChanged        = "optout_changed"
)

// Store persists events. Implementations must be safe for concurrent use.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListByRepo(ctx context.Context, repo id.RepoRef) ([]Event, error)
	ListRecent(ctx context.Context, limit int) ([]Event, error)
}
