// Package handler exposes target administration over HTTP.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"driftgate/internal/audit"
	"driftgate/internal/target"
	id "driftgate/pkg/domain"
	dErrors "driftgate/pkg/domain-errors"
	"driftgate/pkg/platform/httputil"
	"driftgate/pkg/requestcontext"
)

// Handler handles target policy endpoints. All routes require an
// authenticated workspace.
type Handler struct {
	store     target.Store
	logger    *slog.Logger
	publisher *audit.Publisher
}

func New(store target.Store, logger *slog.Logger, publisher *audit.Publisher) *Handler {
	return &Handler{store: store, logger: logger, publisher: publisher}
}

// Register mounts the target routes.
func (h *Handler) Register(r chi.Router) {
	r.Put("/v1/targets", h.handleSet)
	r.Delete("/v1/targets", h.handleDelete)
	r.Get("/v1/targets", h.handleList)
}

type setRequest struct {
	Repo      string `json:"repo,omitempty"`
	Branch    string `json:"branch,omitempty"`
	Kind      string `json:"kind"`
	Name      string `json:"name"`
	Path      string `json:"path,omitempty"`
	Data      any    `json:"data"`
	Eliminate bool   `json:"eliminate,omitempty"`
}

func (h *Handler) handleSet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[setRequest](w, r, h.logger, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	if req.Kind == "" || req.Name == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "kind and name are required"))
		return
	}

	scope, repo, err := h.scope(ctx, req.Repo, req.Branch)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	t := target.Target{Eliminate: req.Eliminate}
	t.Kind, t.Name, t.Path, t.Data = req.Kind, req.Name, req.Path, req.Data
	if err := (&t.Fingerprint).Fill(); err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeValidation, "target payload cannot be hashed"))
		return
	}

	if err := h.store.Set(ctx, scope, t); err != nil {
		h.logger.ErrorContext(ctx, "target set failed",
			"kind", req.Kind, "name", req.Name, "error", err)
		httputil.WriteError(w, err)
		return
	}

	h.audit(ctx, scope, repo, req.Branch, audit.EventTargetSet, req.Kind)
	httputil.WriteJSON(w, http.StatusOK, t)
}

type deleteRequest struct {
	Repo   string `json:"repo,omitempty"`
	Branch string `json:"branch,omitempty"`
	Kind   string `json:"kind"`
	Name   string `json:"name"`
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[deleteRequest](w, r, h.logger, requestcontext.RequestID(ctx))
	if !ok {
		return
	}

	scope, repo, err := h.scope(ctx, req.Repo, req.Branch)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	if err := h.store.Delete(ctx, scope, req.Kind, req.Name); err != nil {
		httputil.WriteError(w, err)
		return
	}

	h.audit(ctx, scope, repo, req.Branch, audit.EventTargetUnset, req.Kind)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	repoSlug := r.URL.Query().Get("repo")
	branch := r.URL.Query().Get("branch")

	workspace := id.Workspace(requestcontext.Workspace(ctx))
	if workspace.IsNil() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "workspace missing from token"))
		return
	}

	if repoSlug == "" {
		targets, err := h.store.List(ctx, target.Scope{Workspace: workspace})
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, target.NewView(targets).Targets())
		return
	}

	view, err := target.Resolve(ctx, h.store, workspace, repoSlug, branch)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, view.Targets())
}

// scope derives the store scope from the authenticated workspace plus the
// optional repo/branch override in the request.
func (h *Handler) scope(ctx context.Context, repoSlug, branch string) (target.Scope, id.RepoRef, error) {
	workspace := id.Workspace(requestcontext.Workspace(ctx))
	if workspace.IsNil() {
		return target.Scope{}, id.RepoRef{}, dErrors.New(dErrors.CodeUnauthorized, "workspace missing from token")
	}

	scope := target.Scope{Workspace: workspace}
	var repo id.RepoRef
	if repoSlug != "" {
		parsed, err := id.ParseRepoRef(repoSlug)
		if err != nil {
			return target.Scope{}, id.RepoRef{}, dErrors.Wrap(err, dErrors.CodeValidation, "invalid repo")
		}
		repo = parsed
		scope.Repo = repoSlug
		scope.Branch = branch
	}
	return scope, repo, nil
}

func (h *Handler) audit(ctx context.Context, scope target.Scope, repo id.RepoRef, branch, action, kind string) {
	if h.publisher == nil {
		return
	}
	err := h.publisher.Emit(ctx, audit.Event{
		Workspace: scope.Workspace,
		Repo:      repo,
		Branch:    branch,
		Action:    action,
		AspectID:  kind,
	})
	if err != nil {
		h.logger.ErrorContext(ctx, "audit publish failed", "action", action, "error", err)
	}
}
