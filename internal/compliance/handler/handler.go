// Package handler serves finalized compliance reports.
package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"driftgate/internal/compliance"
	id "driftgate/pkg/domain"
	dErrors "driftgate/pkg/domain-errors"
	"driftgate/pkg/platform/httputil"
)

// Handler handles report query endpoints.
type Handler struct {
	store  *compliance.MemoryStore
	logger *slog.Logger
}

func New(store *compliance.MemoryStore, logger *slog.Logger) *Handler {
	return &Handler{store: store, logger: logger}
}

// Register mounts the report routes.
func (h *Handler) Register(r chi.Router) {
	r.Get("/v1/reports/{owner}/{name}", h.handleList)
	r.Get("/v1/reports/{owner}/{name}/latest", h.handleLatest)
}

func repoParam(r *http.Request) (id.RepoRef, error) {
	repo := id.RepoRef{Owner: chi.URLParam(r, "owner"), Name: chi.URLParam(r, "name")}
	if repo.IsNil() {
		return id.RepoRef{}, dErrors.New(dErrors.CodeValidation, "owner and name are required")
	}
	return repo, nil
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	repo, err := repoParam(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	reports, err := h.store.ListByRepo(r.Context(), repo)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"reports": reports})
}

func (h *Handler) handleLatest(w http.ResponseWriter, r *http.Request) {
	repo, err := repoParam(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	report, err := h.store.Latest(r.Context(), repo)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if report == nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "no report for repository"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, report)
}
