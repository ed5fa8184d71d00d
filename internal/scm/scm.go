// Package scm is the outbound boundary to the source-control host: commit
// status checks and remediation change requests. Implementations talk to the
// host API; the Recorder here is the in-process implementation used for
// development wiring and tests.
package scm

import (
	"context"

	"driftgate/internal/remediation"
	id "driftgate/pkg/domain"
)

// Conclusion is the final state reported on a commit check.
type Conclusion string

const (
	ConclusionSuccess Conclusion = "success"
	ConclusionFailure Conclusion = "failure"
	ConclusionNeutral Conclusion = "neutral"
)

// Check is one commit status update. Detail carries the human-readable
// summary shown next to the check.
type Check struct {
	Repo       id.RepoRef
	CommitSha  string
	Name       string
	Conclusion Conclusion
	Detail     string
}

// JobHandle identifies a submitted remediation so callers can correlate the
// eventual change request with the run that produced it.
type JobHandle struct {
	ID     string
	Repo   id.RepoRef
	Branch string
}

// StatusChecker pushes commit check conclusions to the host.
type StatusChecker interface {
	UpdateCheck(ctx context.Context, check Check) error
}

// Submitter hands a remediation request to the change-request collaborator.
// Implementations must accept at most one in-flight request per repository
// and branch; a second submission before the first completes is rejected.
type Submitter interface {
	SubmitRemediation(ctx context.Context, req remediation.Request) (JobHandle, error)
}
