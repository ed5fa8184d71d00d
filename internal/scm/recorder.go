package scm

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"driftgate/internal/remediation"
	id "driftgate/pkg/domain"
	dErrors "driftgate/pkg/domain-errors"
)

// Recorder is an in-memory StatusChecker and Submitter. It records every
// check and request it receives and enforces the one-in-flight-per-branch
// submission rule, which makes it usable both as the dev-mode collaborator
// and as a test double.
type Recorder struct {
	mu       sync.Mutex
	checks   []Check
	requests []remediation.Request
	inFlight map[string]JobHandle
}

// NewRecorder constructs an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{inFlight: make(map[string]JobHandle)}
}

// UpdateCheck records the check.
func (r *Recorder) UpdateCheck(_ context.Context, check Check) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.checks = append(r.checks, check)
	return nil
}

// SubmitRemediation records the request. A request for a branch that already
// has one in flight is rejected with a conflict.
func (r *Recorder) SubmitRemediation(_ context.Context, req remediation.Request) (JobHandle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := req.Repo.Slug() + "@" + req.TargetBranch
	if _, ok := r.inFlight[key]; ok {
		return JobHandle{}, dErrors.Newf(dErrors.CodeConflict,
			"remediation already in flight for %s", key)
	}

	handle := JobHandle{
		ID:     uuid.NewString(),
		Repo:   req.Repo,
		Branch: req.TargetBranch,
	}
	r.inFlight[key] = handle
	r.requests = append(r.requests, req)
	return handle, nil
}

// Complete clears the in-flight marker for a branch, as the host would when
// the change request merges or closes.
func (r *Recorder) Complete(repo id.RepoRef, branch string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.inFlight, repo.Slug()+"@"+branch)
}

// Checks returns a copy of the recorded checks.
func (r *Recorder) Checks() []Check {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Check, len(r.checks))
	copy(out, r.checks)
	return out
}

// Requests returns a copy of the recorded remediation requests.
func (r *Recorder) Requests() []remediation.Request {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]remediation.Request, len(r.requests))
	copy(out, r.requests)
	return out
}
