// Package handler accepts analysis run submissions over HTTP.
package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"driftgate/internal/analysis"
	"driftgate/internal/aspect"
	id "driftgate/pkg/domain"
	dErrors "driftgate/pkg/domain-errors"
	"driftgate/pkg/platform/httputil"
	"driftgate/pkg/requestcontext"
)

// Handler handles analysis run submissions. The caller ships repository
// snapshots; the engine does the rest.
type Handler struct {
	service *analysis.Service
	logger  *slog.Logger
}

func New(service *analysis.Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the analysis routes.
func (h *Handler) Register(r chi.Router) {
	r.Post("/v1/analysis/run", h.handleRun)
}

type snapshotRequest struct {
	Repo          string            `json:"repo"`
	Branch        string            `json:"branch"`
	DefaultBranch string            `json:"defaultBranch"`
	CommitSha     string            `json:"commitSha"`
	BranchCount   int               `json:"branchCount,omitempty"`
	Files         map[string]string `json:"files"`
}

type runRequest struct {
	Snapshots []snapshotRequest `json:"snapshots"`
}

type runResult struct {
	Repo           id.RepoRef `json:"repo"`
	ReportID       string     `json:"reportId,omitempty"`
	OverallPercent int        `json:"overallPercent"`
	DiffCount      int        `json:"diffCount"`
	Error          string     `json:"error,omitempty"`
}

func (h *Handler) handleRun(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[runRequest](w, r, h.logger, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	if len(req.Snapshots) == 0 {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "at least one snapshot is required"))
		return
	}

	workspace := id.Workspace(requestcontext.Workspace(ctx))
	if workspace.IsNil() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "workspace missing from token"))
		return
	}

	snaps := make([]aspect.RepoSnapshot, 0, len(req.Snapshots))
	for _, s := range req.Snapshots {
		repo, err := id.ParseRepoRef(s.Repo)
		if err != nil {
			httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeValidation, "invalid repo"))
			return
		}
		if s.Branch == "" || s.DefaultBranch == "" || s.CommitSha == "" {
			httputil.WriteError(w, dErrors.New(dErrors.CodeValidation,
				"branch, defaultBranch, and commitSha are required"))
			return
		}
		snaps = append(snaps, aspect.RepoSnapshot{
			Workspace:     workspace,
			Repo:          repo,
			Branch:        s.Branch,
			DefaultBranch: s.DefaultBranch,
			CommitSha:     s.CommitSha,
			BranchCount:   s.BranchCount,
			Files:         s.Files,
		})
	}

	results := h.service.AnalyzeFleet(ctx, snaps)

	out := make([]runResult, 0, len(results))
	for _, res := range results {
		rr := runResult{Repo: res.Repo}
		if res.Err != nil {
			rr.Error = res.Err.Error()
		} else {
			rr.ReportID = res.Report.ID.String()
			rr.OverallPercent = res.Report.OverallPercent
			rr.DiffCount = res.Report.OverallDiffs
		}
		out = append(out, rr)
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"results": out})
}
