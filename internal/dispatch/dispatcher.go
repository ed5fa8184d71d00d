// Package dispatch turns a finalized comparison into outward actions: commit
// status checks, remediation submissions, and fallback handler chains. Every
// run walks a small state machine so actions fire exactly once per job.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"driftgate/internal/aspect"
	"driftgate/internal/audit"
	"driftgate/internal/compliance"
	"driftgate/internal/diff"
	"driftgate/internal/dispatch/metrics"
	"driftgate/internal/optout"
	"driftgate/internal/remediation"
	"driftgate/internal/scm"
	id "driftgate/pkg/domain"
	dErrors "driftgate/pkg/domain-errors"
	"driftgate/pkg/requestcontext"
)

const defaultDispatchTimeout = 10 * time.Second

// CheckName is the commit status check the engine reports under.
const CheckName = "driftgate/compliance"

// Decision is the outcome of the opt-out consultation for one aspect group.
type Decision string

const (
	DecisionRemediate      Decision = "remediate"
	DecisionInvokeFallback Decision = "invoke_fallback"
)

// decide maps the opt-out flag to an action. Kept as an explicit table so
// adding inputs later forces every combination to be named.
func decide(optedOut bool) Decision {
	if optedOut {
		return DecisionInvokeFallback
	}
	return DecisionRemediate
}

// ReportStore persists finalized reports for the query API.
type ReportStore interface {
	Append(ctx context.Context, report compliance.Report) error
}

// Dispatcher owns the outward side effects of analysis runs. Construct one
// per process and create a Run per (repository, commit, job).
type Dispatcher struct {
	registry  *aspect.Registry
	optouts   optout.Store
	checker   scm.StatusChecker
	submitter scm.Submitter
	requests  *remediation.Builder
	reports   ReportStore

	logger    *slog.Logger
	publisher *audit.Publisher
	metrics   *metrics.Metrics
	timeout   time.Duration
}

// Option configures the Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the logger for dispatch outcomes.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) {
		d.logger = logger
	}
}

// WithAuditPublisher enables audit events for dispatched actions. Publish
// failures are logged, never fatal.
func WithAuditPublisher(publisher *audit.Publisher) Option {
	return func(d *Dispatcher) {
		d.publisher = publisher
	}
}

// WithMetrics enables Prometheus instrumentation.
func WithMetrics(m *metrics.Metrics) Option {
	return func(d *Dispatcher) {
		d.metrics = m
	}
}

// WithTimeout bounds each outward call (check update, remediation submit).
func WithTimeout(timeout time.Duration) Option {
	return func(d *Dispatcher) {
		d.timeout = timeout
	}
}

// New constructs a Dispatcher.
func New(
	registry *aspect.Registry,
	optouts optout.Store,
	checker scm.StatusChecker,
	submitter scm.Submitter,
	requests *remediation.Builder,
	reports ReportStore,
	opts ...Option,
) *Dispatcher {
	d := &Dispatcher{
		registry:  registry,
		optouts:   optouts,
		checker:   checker,
		submitter: submitter,
		requests:  requests,
		reports:   reports,
		logger:    slog.Default(),
		timeout:   defaultDispatchTimeout,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// State tracks where a Run is in its lifecycle.
type State string

const (
	StateCollecting State = "collecting"
	StateFinalizing State = "finalizing"
	StateDispatched State = "dispatched"
	StateDone       State = "done"
)

// Run is one (repository, commit, job) execution. Like the report builder it
// wraps, a Run has a single owner and is not shared across goroutines.
type Run struct {
	d *Dispatcher

	workspace     id.Workspace
	repo          id.RepoRef
	branch        string
	defaultBranch string
	commitSha     string

	state   State
	builder *compliance.Builder
}

// NewRun starts a run in the collecting state.
func (d *Dispatcher) NewRun(workspace id.Workspace, repo id.RepoRef, branch, defaultBranch, commitSha string) *Run {
	return &Run{
		d:             d,
		workspace:     workspace,
		repo:          repo,
		branch:        branch,
		defaultBranch: defaultBranch,
		commitSha:     commitSha,
		state:         StateCollecting,
		builder:       compliance.NewBuilder(workspace, repo, branch, commitSha),
	}
}

// State returns the run's current lifecycle state.
func (r *Run) State() State {
	return r.state
}

// Collect records one aspect's comparison outcome and runs the aspect's
// workflow chain over its discrepancies. A failed workflow handler is logged
// and does not abort the chain or the run.
func (r *Run) Collect(ctx context.Context, a aspect.Aspect, targetCount int, ds []diff.Discrepancy) error {
	if r.state != StateCollecting {
		return dErrors.Newf(dErrors.CodeConflict, "cannot collect in state %s", r.state)
	}
	if err := r.builder.Add(a.ID, targetCount, ds); err != nil {
		return err
	}
	if len(ds) == 0 {
		return nil
	}
	for i, handler := range a.Workflows {
		if err := handler(ctx, r.repo, ds); err != nil {
			r.d.logger.ErrorContext(ctx, "workflow handler failed",
				"repo", r.repo.Slug(), "aspect", a.ID, "handler", i,
				"commitSha", r.commitSha, "error", err)
		}
	}
	return nil
}

// Finalize seals the report and dispatches actions. On a non-default branch
// the report is computed and recorded but no action fires. With zero
// discrepancies the commit check is set to success. Otherwise each aspect
// group is dispatched independently: a group's failure is logged and never
// fails its siblings.
func (r *Run) Finalize(ctx context.Context) (compliance.Report, error) {
	if r.state != StateCollecting {
		return compliance.Report{}, dErrors.Newf(dErrors.CodeConflict, "cannot finalize in state %s", r.state)
	}
	r.state = StateFinalizing

	report, err := r.builder.Finalize(requestcontext.Now(ctx))
	if err != nil {
		return compliance.Report{}, err
	}
	r.state = StateDispatched

	if r.branch != r.defaultBranch {
		r.d.logger.InfoContext(ctx, "non-default branch, skipping actions",
			"repo", r.repo.Slug(), "branch", r.branch, "defaultBranch", r.defaultBranch)
	} else if report.OverallDiffs == 0 {
		r.updateCheck(ctx, scm.ConclusionSuccess, "all policy targets satisfied")
	} else {
		r.updateCheck(ctx, scm.ConclusionFailure,
			fmt.Sprintf("%d policy discrepancies across %d aspects", report.OverallDiffs, len(report.Rows)))
		for _, row := range report.Rows {
			if len(row.Discrepancies) == 0 {
				continue
			}
			r.dispatchGroup(ctx, row)
		}
	}

	if err := r.d.reports.Append(ctx, report); err != nil {
		r.d.logger.ErrorContext(ctx, "report store append failed",
			"repo", r.repo.Slug(), "reportId", report.ID, "error", err)
	}
	r.publish(ctx, audit.Event{
		Workspace:      r.workspace,
		Repo:           r.repo,
		Branch:         r.branch,
		CommitSha:      r.commitSha,
		Action:         audit.EventReportFinalized,
		OverallPercent: report.OverallPercent,
		DiffCount:      report.OverallDiffs,
	})

	r.state = StateDone
	return report, nil
}

// dispatchGroup handles one aspect's discrepancies: remediate, or run the
// fallback chain when the repository opted out.
func (r *Run) dispatchGroup(ctx context.Context, row compliance.AspectRow) {
	optedOut, err := optout.Disabled(ctx, r.d.optouts, r.repo)
	if err != nil {
		r.fail(ctx, row.AspectID, "opt-out lookup failed", err)
		return
	}

	switch decide(optedOut) {
	case DecisionRemediate:
		req, err := r.d.requests.Build(r.repo, r.branch, row.AspectID, row.Discrepancies)
		if err != nil {
			r.fail(ctx, row.AspectID, "remediation request build failed", err)
			return
		}
		callCtx, cancel := context.WithTimeout(ctx, r.d.timeout)
		defer cancel()
		handle, err := r.d.submitter.SubmitRemediation(callCtx, req)
		if err != nil {
			r.fail(ctx, row.AspectID, "remediation submit failed", err)
			return
		}
		r.d.logger.InfoContext(ctx, "remediation submitted",
			"repo", r.repo.Slug(), "aspect", row.AspectID, "jobId", handle.ID,
			"discrepancies", len(row.Discrepancies))
		if r.d.metrics != nil {
			r.d.metrics.RemediationsSubmitted.Inc()
		}
		r.publish(ctx, audit.Event{
			Workspace: r.workspace,
			Repo:      r.repo,
			Branch:    r.branch,
			CommitSha: r.commitSha,
			Action:    audit.EventRemediationSubmitted,
			AspectID:  row.AspectID,
			Decision:  string(DecisionRemediate),
			DiffCount: len(row.Discrepancies),
		})

	case DecisionInvokeFallback:
		a, err := r.d.registry.Of(row.AspectID)
		if err != nil {
			r.fail(ctx, row.AspectID, "aspect lookup failed", err)
			return
		}
		for i, handler := range a.Fallback {
			if err := handler(ctx, r.repo, row.Discrepancies); err != nil {
				r.fail(ctx, row.AspectID, fmt.Sprintf("fallback handler %d failed", i), err)
			}
		}
		if r.d.metrics != nil {
			r.d.metrics.FallbacksInvoked.Inc()
		}
		r.publish(ctx, audit.Event{
			Workspace: r.workspace,
			Repo:      r.repo,
			Branch:    r.branch,
			CommitSha: r.commitSha,
			Action:    audit.EventFallbackInvoked,
			AspectID:  row.AspectID,
			Decision:  string(DecisionInvokeFallback),
			Reason:    "repository opted out",
			DiffCount: len(row.Discrepancies),
		})
	}
}

func (r *Run) updateCheck(ctx context.Context, conclusion scm.Conclusion, detail string) {
	callCtx, cancel := context.WithTimeout(ctx, r.d.timeout)
	defer cancel()

	err := r.d.checker.UpdateCheck(callCtx, scm.Check{
		Repo:       r.repo,
		CommitSha:  r.commitSha,
		Name:       CheckName,
		Conclusion: conclusion,
		Detail:     detail,
	})
	if err != nil {
		r.d.logger.ErrorContext(ctx, "check update failed",
			"repo", r.repo.Slug(), "commitSha", r.commitSha, "error", err)
		return
	}
	if r.d.metrics != nil {
		r.d.metrics.ChecksUpdated.WithLabelValues(string(conclusion)).Inc()
	}
	r.publish(ctx, audit.Event{
		Workspace: r.workspace,
		Repo:      r.repo,
		Branch:    r.branch,
		CommitSha: r.commitSha,
		Action:    audit.EventCheckUpdated,
		Decision:  string(conclusion),
	})
}

func (r *Run) fail(ctx context.Context, aspectID, msg string, err error) {
	r.d.logger.ErrorContext(ctx, msg,
		"repo", r.repo.Slug(), "aspect", aspectID, "commitSha", r.commitSha, "error", err)
	if r.d.metrics != nil {
		r.d.metrics.DispatchFailures.WithLabelValues(aspectID).Inc()
	}
}

func (r *Run) publish(ctx context.Context, event audit.Event) {
	if r.d.publisher == nil {
		return
	}
	if err := r.d.publisher.Emit(ctx, event); err != nil {
		r.d.logger.ErrorContext(ctx, "audit publish failed",
			"repo", r.repo.Slug(), "action", event.Action, "error", err)
	}
}
