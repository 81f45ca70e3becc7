package api

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/quillback/tally/pkg/auth"
	"github.com/quillback/tally/pkg/httputil"
	"github.com/quillback/tally/pkg/observability"
)

// TokenHandlers handles API token HTTP requests
type TokenHandlers struct {
	tokens *auth.TokenStore
	guard  *auth.Guard
	logger *observability.Logger
}

// NewTokenHandlers creates a new TokenHandlers
func NewTokenHandlers(tokens *auth.TokenStore, guard *auth.Guard, logger *observability.Logger) *TokenHandlers {
	return &TokenHandlers{
		tokens: tokens,
		guard:  guard,
		logger: logger,
	}
}

// RegisterRoutes registers token routes
func (h *TokenHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/tokens", h.CreateToken).Methods("POST")
	router.HandleFunc("/tokens", h.ListTokens).Methods("GET")
	router.HandleFunc("/tokens/{id}", h.RevokeToken).Methods("DELETE")
}

// CreateTokenRequest is the body for POST /tokens
type CreateTokenRequest struct {
	Name      string     `json:"name"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// CreateTokenResponse carries the plaintext token. It is shown exactly
// once; only the hash is stored.
type CreateTokenResponse struct {
	Token   *auth.APIToken `json:"token"`
	Plain   string         `json:"plain_token"`
	Warning string         `json:"warning"`
}

// CreateToken issues a new API token for the caller
func (h *TokenHandlers) CreateToken(w http.ResponseWriter, r *http.Request) {
	caller, err := h.guard.Resolve(r.Context())
	if err != nil {
		WriteServiceError(w, h.logger, err)
		return
	}

	var req CreateTokenRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.Name, "name") {
		return
	}

	token, plain, err := h.tokens.CreateToken(r.Context(), caller.UserID, req.Name, req.ExpiresAt)
	if err != nil {
		WriteServiceError(w, h.logger, err)
		return
	}

	httputil.WriteCreated(w, CreateTokenResponse{
		Token:   token,
		Plain:   plain,
		Warning: "store this token now; it cannot be retrieved again",
	})
}

// ListTokens lists the caller's tokens, hashes omitted
func (h *TokenHandlers) ListTokens(w http.ResponseWriter, r *http.Request) {
	caller, err := h.guard.Resolve(r.Context())
	if err != nil {
		WriteServiceError(w, h.logger, err)
		return
	}

	tokens, err := h.tokens.ListTokens(r.Context(), caller.UserID)
	if err != nil {
		WriteServiceError(w, h.logger, err)
		return
	}
	httputil.WriteSuccess(w, tokens)
}

// RevokeToken deletes one of the caller's tokens
func (h *TokenHandlers) RevokeToken(w http.ResponseWriter, r *http.Request) {
	caller, err := h.guard.Resolve(r.Context())
	if err != nil {
		WriteServiceError(w, h.logger, err)
		return
	}

	tokenID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	if err := h.tokens.RevokeToken(r.Context(), caller.UserID, tokenID); err != nil {
		WriteServiceError(w, h.logger, err)
		return
	}
	httputil.WriteNoContent(w)
}
