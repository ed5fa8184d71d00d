// Package handler exposes opt-out preference management over HTTP.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"driftgate/internal/audit"
	"driftgate/internal/optout"
	id "driftgate/pkg/domain"
	dErrors "driftgate/pkg/domain-errors"
	"driftgate/pkg/platform/httputil"
	"driftgate/pkg/requestcontext"
)

// Handler handles opt-out endpoints. The scope path segment is either
// "owner" or "owner/repo".
type Handler struct {
	store     optout.Store
	logger    *slog.Logger
	publisher *audit.Publisher
}

func New(store optout.Store, logger *slog.Logger, publisher *audit.Publisher) *Handler {
	return &Handler{store: store, logger: logger, publisher: publisher}
}

// Register mounts the opt-out routes. The wildcard keeps "owner/repo" scopes
// addressable as a single path suffix.
func (h *Handler) Register(r chi.Router) {
	r.Put("/v1/optout/*", h.handlePut)
	r.Delete("/v1/optout/*", h.handleDelete)
	r.Get("/v1/optout/*", h.handleGet)
}

type putRequest struct {
	Disabled bool `json:"disabled"`
}

func scopeParam(r *http.Request) (string, error) {
	scope := strings.Trim(chi.URLParam(r, "*"), "/")
	if scope == "" {
		return "", dErrors.New(dErrors.CodeValidation, "scope is required")
	}
	if strings.Count(scope, "/") > 1 {
		return "", dErrors.New(dErrors.CodeValidation, "scope must be owner or owner/repo")
	}
	return scope, nil
}

func (h *Handler) handlePut(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	scope, err := scopeParam(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[putRequest](w, r, h.logger, requestcontext.RequestID(ctx))
	if !ok {
		return
	}

	pref := optout.Preference{Scope: scope, Disabled: req.Disabled}
	if err := h.store.Put(ctx, pref); err != nil {
		httputil.WriteError(w, err)
		return
	}

	h.audit(ctx, scope, "disabled="+boolString(req.Disabled))
	httputil.WriteJSON(w, http.StatusOK, pref)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	scope, err := scopeParam(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	if err := h.store.Delete(ctx, scope); err != nil {
		httputil.WriteError(w, err)
		return
	}

	h.audit(ctx, scope, "cleared")
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	scope, err := scopeParam(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	pref, err := h.store.Get(ctx, scope)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, pref)
}

func (h *Handler) audit(ctx context.Context, scope, decision string) {
	if h.publisher == nil {
		return
	}
	event := audit.Event{
		Action:   audit.EventOptOutChanged,
		Decision: decision,
		Reason:   scope,
	}
	if owner, name, ok := strings.Cut(scope, "/"); ok {
		event.Repo = id.RepoRef{Owner: owner, Name: name}
		event.Workspace = id.Workspace(owner)
	} else {
		event.Workspace = id.Workspace(scope)
	}
	if err := h.publisher.Emit(ctx, event); err != nil {
		h.logger.ErrorContext(ctx, "audit publish failed",
			"action", audit.EventOptOutChanged, "scope", scope, "error", err)
	}
}

func boolString(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
