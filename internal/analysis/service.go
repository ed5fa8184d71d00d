// Package analysis runs the full comparison job for repositories: extract
// fingerprints per aspect, consolidate, diff against the resolved target
// view, and hand the outcome to the dispatcher.
package analysis

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"driftgate/internal/aspect"
	"driftgate/internal/compliance"
	"driftgate/internal/diff"
	"driftgate/internal/dispatch"
	"driftgate/internal/fingerprint"
	"driftgate/internal/target"
	id "driftgate/pkg/domain"
)

const defaultConcurrency = 2

// Service orchestrates per-repository analysis runs.
type Service struct {
	registry   *aspect.Registry
	targets    target.Store
	engine     *diff.Engine
	dispatcher *dispatch.Dispatcher

	logger      *slog.Logger
	tracer      trace.Tracer
	concurrency int
}

// Option configures the Service.
type Option func(*Service)

// WithLogger sets the run logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithConcurrency bounds how many repositories a fleet run analyzes at once.
func WithConcurrency(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// New constructs the analysis service.
func New(
	registry *aspect.Registry,
	targets target.Store,
	engine *diff.Engine,
	dispatcher *dispatch.Dispatcher,
	opts ...Option,
) *Service {
	s := &Service{
		registry:    registry,
		targets:     targets,
		engine:      engine,
		dispatcher:  dispatcher,
		logger:      slog.Default(),
		tracer:      otel.Tracer("driftgate/analysis"),
		concurrency: defaultConcurrency,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AnalyzeRepo runs one repository through extraction, consolidation, diffing,
// and dispatch. A target store outage fails the whole run so the scheduler
// can retry; a single aspect's extraction failure only skips that aspect.
func (s *Service) AnalyzeRepo(ctx context.Context, snap aspect.RepoSnapshot) (compliance.Report, error) {
	ctx, span := s.tracer.Start(ctx, "analysis.repo", trace.WithAttributes(
		attribute.String("repo", snap.Repo.Slug()),
		attribute.String("branch", snap.Branch),
		attribute.String("commit", snap.CommitSha),
	))
	defer span.End()

	view, err := target.Resolve(ctx, s.targets, snap.Workspace, snap.Repo.Slug(), snap.Branch)
	if err != nil {
		span.SetStatus(codes.Error, "target resolution failed")
		span.RecordError(err)
		return compliance.Report{}, err
	}

	s.warnUnknownKinds(ctx, snap.Repo, view)

	facts := s.extract(ctx, snap)
	facts = append(facts, s.consolidate(ctx, snap.Repo, facts)...)

	run := s.dispatcher.NewRun(snap.Workspace, snap.Repo, snap.Branch, snap.DefaultBranch, snap.CommitSha)
	for _, a := range s.registry.All() {
		sub := view.ForKind(a.ID)
		ds := s.engine.Compute(facts, sub)
		if err := run.Collect(ctx, a, sub.Len(), ds); err != nil {
			span.RecordError(err)
			return compliance.Report{}, err
		}
	}

	report, err := run.Finalize(ctx)
	if err != nil {
		span.RecordError(err)
		return compliance.Report{}, err
	}

	span.SetAttributes(
		attribute.Int("report.overall_percent", report.OverallPercent),
		attribute.Int("report.diff_count", report.OverallDiffs),
	)
	s.logger.InfoContext(ctx, "analysis run complete",
		"repo", snap.Repo.Slug(), "branch", snap.Branch, "commitSha", snap.CommitSha,
		"overallPercent", report.OverallPercent, "diffCount", report.OverallDiffs)
	return report, nil
}

// extract runs every registered extractor over the snapshot. A failing
// extractor loses only its own aspect's facts.
func (s *Service) extract(ctx context.Context, snap aspect.RepoSnapshot) []fingerprint.Fingerprint {
	var facts []fingerprint.Fingerprint
	for _, a := range s.registry.All() {
		if a.Extract == nil {
			continue
		}
		extracted, err := a.Extract(ctx, snap)
		if err != nil {
			s.logger.WarnContext(ctx, "aspect extraction failed, skipping",
				"repo", snap.Repo.Slug(), "aspect", a.ID, "error", err)
			continue
		}
		facts = append(facts, extracted...)
	}
	return facts
}

// consolidate runs derivation passes over the full fact set. Each pass sees
// the extraction output, not the output of prior passes.
func (s *Service) consolidate(ctx context.Context, repo id.RepoRef, facts []fingerprint.Fingerprint) []fingerprint.Fingerprint {
	var derived []fingerprint.Fingerprint
	for _, a := range s.registry.All() {
		if a.Consolidate == nil {
			continue
		}
		out, err := a.Consolidate(ctx, facts)
		if err != nil {
			s.logger.WarnContext(ctx, "aspect consolidation failed, skipping",
				"repo", repo.Slug(), "aspect", a.ID, "error", err)
			continue
		}
		derived = append(derived, out...)
	}
	return derived
}

func (s *Service) warnUnknownKinds(ctx context.Context, repo id.RepoRef, view target.View) {
	for _, kind := range view.Kinds() {
		if _, err := s.registry.Of(kind); err != nil {
			s.logger.WarnContext(ctx, "target kind has no registered aspect, ignoring",
				"repo", repo.Slug(), "kind", kind)
		}
	}
}

// FleetResult is one repository's outcome within a fleet run.
type FleetResult struct {
	Repo   id.RepoRef
	Report compliance.Report
	Err    error
}

// AnalyzeFleet analyzes independent repositories with bounded concurrency.
// One repository's failure is recorded in its result and never cancels or
// fails its siblings.
func (s *Service) AnalyzeFleet(ctx context.Context, snaps []aspect.RepoSnapshot) []FleetResult {
	results := make([]FleetResult, len(snaps))

	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for i, snap := range snaps {
		i, snap := i, snap
		g.Go(func() error {
			report, err := s.AnalyzeRepo(ctx, snap)
			results[i] = FleetResult{Repo: snap.Repo, Report: report, Err: err}
			if err != nil {
				s.logger.ErrorContext(ctx, "repository analysis failed",
					"repo", snap.Repo.Slug(), "error", err)
			}
			return nil
		})
	}
	_ = g.Wait()

	return results
}
