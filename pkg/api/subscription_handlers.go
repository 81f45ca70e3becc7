package api

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/quillback/tally/pkg/auth"
	"github.com/quillback/tally/pkg/billing"
	"github.com/quillback/tally/pkg/httputil"
	"github.com/quillback/tally/pkg/observability"
)

// SubscriptionHandlers handles subscription lifecycle HTTP requests
type SubscriptionHandlers struct {
	billing billing.Service
	guard   *auth.Guard
	logger  *observability.Logger
}

// NewSubscriptionHandlers creates a new SubscriptionHandlers
func NewSubscriptionHandlers(billingSvc billing.Service, guard *auth.Guard, logger *observability.Logger) *SubscriptionHandlers {
	return &SubscriptionHandlers{
		billing: billingSvc,
		guard:   guard,
		logger:  logger,
	}
}

// RegisterRoutes registers subscription routes
func (h *SubscriptionHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/subscriptions", h.CreateSubscription).Methods("POST")
	router.HandleFunc("/subscriptions/current", h.GetCurrent).Methods("GET")
	router.HandleFunc("/subscriptions/active", h.ListActive).Methods("GET")
	router.HandleFunc("/subscriptions/history", h.ListHistory).Methods("GET")
	router.HandleFunc("/subscriptions/{id}/activate", h.Activate).Methods("POST")
	router.HandleFunc("/subscriptions/{id}/activations", h.ListActivations).Methods("GET")
}

// CreateSubscriptionRequest is the body for POST /subscriptions
type CreateSubscriptionRequest struct {
	TeamID int64 `json:"team_id"`
	PlanID int64 `json:"plan_id"`
}

// ActivateRequest is the body for POST /subscriptions/{id}/activate.
// Omitting both dates applies the default term starting now.
type ActivateRequest struct {
	ActivationDate time.Time `json:"activation_date"`
	ExpirationDate time.Time `json:"expiration_date"`
}

// endedResponse is the body returned when the caller's subscription
// lapsed between reads. It renders with a 200 so clients polling their
// entitlement can branch on success without special-casing the status.
type endedResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// CreateSubscription creates a pending subscription for a team the
// caller owns
func (h *SubscriptionHandlers) CreateSubscription(w http.ResponseWriter, r *http.Request) {
	var req CreateSubscriptionRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequirePositive(w, req.TeamID, "team_id") {
		return
	}
	if !httputil.RequirePositive(w, req.PlanID, "plan_id") {
		return
	}

	caller, err := h.guard.RequireTeamOwner(r.Context(), req.TeamID)
	if err != nil {
		WriteServiceError(w, h.logger, err)
		return
	}

	sub, err := h.billing.Create(r.Context(), caller.UserID, req.TeamID, req.PlanID)
	if err != nil {
		WriteServiceError(w, h.logger, err)
		return
	}
	httputil.WriteCreated(w, sub)
}

// Activate opens an activation window for a pending or expired
// subscription. Gated on the caller owning the subscription's team;
// admins pass regardless.
func (h *SubscriptionHandlers) Activate(w http.ResponseWriter, r *http.Request) {
	subscriptionID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	sub, err := h.billing.Get(r.Context(), subscriptionID)
	if err != nil {
		WriteServiceError(w, h.logger, err)
		return
	}
	if _, err := h.guard.RequireTeamOwner(r.Context(), sub.TeamID); err != nil {
		WriteServiceError(w, h.logger, err)
		return
	}

	// An empty body means "use the default term"
	var req ActivateRequest
	if err := httputil.ParseJSON(r, &req); err != nil && !errors.Is(err, io.EOF) {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	activation, err := h.billing.Activate(r.Context(), subscriptionID, billing.Window{
		ActivationDate: req.ActivationDate,
		ExpirationDate: req.ExpirationDate,
	})
	if err != nil {
		WriteServiceError(w, h.logger, err)
		return
	}
	httputil.WriteSuccess(w, activation)
}

// GetCurrent returns the caller's active subscription and window. A
// lapsed subscription is expired on this read and reported as ended.
func (h *SubscriptionHandlers) GetCurrent(w http.ResponseWriter, r *http.Request) {
	caller, err := h.guard.Resolve(r.Context())
	if err != nil {
		WriteServiceError(w, h.logger, err)
		return
	}

	current, err := h.billing.GetCurrent(r.Context(), caller.UserID)
	if err != nil {
		if errors.Is(err, billing.ErrSubscriptionEnded) {
			httputil.WriteJSON(w, http.StatusOK, endedResponse{
				Success: false,
				Message: err.Error(),
			})
			return
		}
		WriteServiceError(w, h.logger, err)
		return
	}
	httputil.WriteSuccess(w, current)
}

// ListActive lists every active subscription. Admin only.
func (h *SubscriptionHandlers) ListActive(w http.ResponseWriter, r *http.Request) {
	if _, err := h.guard.RequireAdmin(r.Context()); err != nil {
		WriteServiceError(w, h.logger, err)
		return
	}

	subs, err := h.billing.ListActive(r.Context())
	if err != nil {
		WriteServiceError(w, h.logger, err)
		return
	}
	httputil.WriteSuccess(w, subs)
}

// ListHistory lists every subscription the caller ever created
func (h *SubscriptionHandlers) ListHistory(w http.ResponseWriter, r *http.Request) {
	caller, err := h.guard.Resolve(r.Context())
	if err != nil {
		WriteServiceError(w, h.logger, err)
		return
	}

	subs, err := h.billing.ListHistory(r.Context(), caller.UserID)
	if err != nil {
		WriteServiceError(w, h.logger, err)
		return
	}
	httputil.WriteSuccess(w, subs)
}

// ListActivations returns the activation ledger for a subscription.
// Admin only.
func (h *SubscriptionHandlers) ListActivations(w http.ResponseWriter, r *http.Request) {
	if _, err := h.guard.RequireAdmin(r.Context()); err != nil {
		WriteServiceError(w, h.logger, err)
		return
	}

	subscriptionID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	activations, err := h.billing.ListActivations(r.Context(), subscriptionID)
	if err != nil {
		WriteServiceError(w, h.logger, err)
		return
	}
	httputil.WriteSuccess(w, activations)
}
