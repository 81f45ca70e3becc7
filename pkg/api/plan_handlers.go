package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/quillback/tally/pkg/auth"
	"github.com/quillback/tally/pkg/billing"
	"github.com/quillback/tally/pkg/httputil"
	"github.com/quillback/tally/pkg/observability"
	"github.com/quillback/tally/pkg/plans"
)

// PlanHandlers handles plan catalog HTTP requests
type PlanHandlers struct {
	plans   plans.Service
	billing billing.Service
	guard   *auth.Guard
	logger  *observability.Logger
}

// NewPlanHandlers creates a new PlanHandlers
func NewPlanHandlers(planSvc plans.Service, billingSvc billing.Service, guard *auth.Guard, logger *observability.Logger) *PlanHandlers {
	return &PlanHandlers{
		plans:   planSvc,
		billing: billingSvc,
		guard:   guard,
		logger:  logger,
	}
}

// RegisterRoutes registers the authenticated plan routes. The public
// catalog reads are registered by the server directly.
func (h *PlanHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/plans", h.CreatePlan).Methods("POST")
	router.HandleFunc("/plans/{id}", h.UpdatePlan).Methods("PUT")
	router.HandleFunc("/plans/{id}/prorate", h.ProratePlanChange).Methods("POST")
}

// ListPlans lists the catalog, cheapest first. An unreadable catalog
// renders as empty; the error only goes to the log.
func (h *PlanHandlers) ListPlans(w http.ResponseWriter, r *http.Request) {
	catalog, err := h.plans.ListPlans(r.Context())
	if err != nil {
		h.logger.WithError(err).Error("failed to list plans")
		catalog = []*plans.Plan{}
	}
	httputil.WriteSuccess(w, catalog)
}

// GetPlan retrieves a single plan
func (h *PlanHandlers) GetPlan(w http.ResponseWriter, r *http.Request) {
	planID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	plan, err := h.plans.GetPlan(r.Context(), planID)
	if err != nil {
		WriteServiceError(w, h.logger, err)
		return
	}
	httputil.WriteSuccess(w, plan)
}

// CreatePlan creates a catalog entry. Admin only.
func (h *PlanHandlers) CreatePlan(w http.ResponseWriter, r *http.Request) {
	if _, err := h.guard.RequireAdmin(r.Context()); err != nil {
		WriteServiceError(w, h.logger, err)
		return
	}

	var req plans.CreatePlanRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	plan, err := h.plans.CreatePlan(r.Context(), &req)
	if err != nil {
		WriteServiceError(w, h.logger, err)
		return
	}
	httputil.WriteCreated(w, plan)
}

// UpdatePlan updates a catalog entry. Admin only. Existing
// subscriptions keep their snapshotted price.
func (h *PlanHandlers) UpdatePlan(w http.ResponseWriter, r *http.Request) {
	if _, err := h.guard.RequireAdmin(r.Context()); err != nil {
		WriteServiceError(w, h.logger, err)
		return
	}

	planID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	var req plans.UpdatePlanRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	plan, err := h.plans.UpdatePlan(r.Context(), planID, &req)
	if err != nil {
		WriteServiceError(w, h.logger, err)
		return
	}
	httputil.WriteSuccess(w, plan)
}

// ProratePlanChange quotes switching the caller's active subscription
// to the plan in the path.
func (h *PlanHandlers) ProratePlanChange(w http.ResponseWriter, r *http.Request) {
	caller, err := h.guard.Resolve(r.Context())
	if err != nil {
		WriteServiceError(w, h.logger, err)
		return
	}

	planID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	proration, err := h.billing.ProrateUpgrade(r.Context(), caller.UserID, planID)
	if err != nil {
		WriteServiceError(w, h.logger, err)
		return
	}
	httputil.WriteSuccess(w, proration)
}
