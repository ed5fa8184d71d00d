// Package handler issues admin tokens in exchange for the shared admin
// secret.
package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"driftgate/internal/authtoken"
	dErrors "driftgate/pkg/domain-errors"
	"driftgate/pkg/platform/httputil"
	"driftgate/pkg/requestcontext"
)

const tokenTTL = time.Hour

// Handler exchanges the admin secret for a workspace-scoped bearer token.
type Handler struct {
	tokens     *authtoken.Service
	secretHash string
	logger     *slog.Logger
}

func New(tokens *authtoken.Service, secretHash string, logger *slog.Logger) *Handler {
	return &Handler{tokens: tokens, secretHash: secretHash, logger: logger}
}

// Register mounts the token route.
func (h *Handler) Register(r chi.Router) {
	r.Post("/v1/auth/token", h.handleIssue)
}

type issueRequest struct {
	Workspace string `json:"workspace"`
	Secret    string `json:"secret"`
}

type issueResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

func (h *Handler) handleIssue(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[issueRequest](w, r, h.logger, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	if req.Workspace == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "workspace is required"))
		return
	}

	if err := authtoken.VerifySecret(req.Secret, h.secretHash); err != nil {
		h.logger.WarnContext(ctx, "token issue rejected",
			"workspace", req.Workspace, "request_id", requestcontext.RequestID(ctx))
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "invalid admin secret"))
		return
	}

	token, err := h.tokens.GenerateToken(req.Workspace, tokenTTL)
	if err != nil {
		h.logger.ErrorContext(ctx, "token generation failed", "error", err)
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "could not issue token"))
		return
	}

	httputil.WriteJSON(w, http.StatusOK, issueResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int(tokenTTL.Seconds()),
	})
}
