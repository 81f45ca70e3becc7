package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/quillback/tally/pkg/auth"
	"github.com/quillback/tally/pkg/billing"
	"github.com/quillback/tally/pkg/httputil"
	"github.com/quillback/tally/pkg/observability"
	"github.com/quillback/tally/pkg/teams"
)

// TeamHandlers handles team HTTP requests
type TeamHandlers struct {
	teams   teams.Service
	billing billing.Service
	guard   *auth.Guard
	logger  *observability.Logger
}

// NewTeamHandlers creates a new TeamHandlers
func NewTeamHandlers(teamSvc teams.Service, billingSvc billing.Service, guard *auth.Guard, logger *observability.Logger) *TeamHandlers {
	return &TeamHandlers{
		teams:   teamSvc,
		billing: billingSvc,
		guard:   guard,
		logger:  logger,
	}
}

// RegisterRoutes registers team routes
func (h *TeamHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/teams", h.CreateTeam).Methods("POST")
	router.HandleFunc("/teams", h.GetMyTeam).Methods("GET")
	router.HandleFunc("/teams/{id}", h.GetTeam).Methods("GET")
	router.HandleFunc("/teams/{id}", h.UpdateTeam).Methods("PUT")
	router.HandleFunc("/teams/{id}", h.DeleteTeam).Methods("DELETE")
	router.HandleFunc("/teams/{id}/subscription", h.CancelSubscription).Methods("DELETE")
}

// CreateTeam creates a team owned by the caller
func (h *TeamHandlers) CreateTeam(w http.ResponseWriter, r *http.Request) {
	caller, err := h.guard.Resolve(r.Context())
	if err != nil {
		WriteServiceError(w, h.logger, err)
		return
	}

	var req teams.CreateTeamRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	team, err := h.teams.CreateTeam(r.Context(), caller.UserID, &req)
	if err != nil {
		WriteServiceError(w, h.logger, err)
		return
	}
	httputil.WriteCreated(w, team)
}

// GetMyTeam retrieves the team the caller owns
func (h *TeamHandlers) GetMyTeam(w http.ResponseWriter, r *http.Request) {
	caller, err := h.guard.Resolve(r.Context())
	if err != nil {
		WriteServiceError(w, h.logger, err)
		return
	}

	team, err := h.teams.GetTeamByOwner(r.Context(), caller.UserID)
	if err != nil {
		WriteServiceError(w, h.logger, err)
		return
	}
	httputil.WriteSuccess(w, team)
}

// GetTeam retrieves a team
func (h *TeamHandlers) GetTeam(w http.ResponseWriter, r *http.Request) {
	teamID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	team, err := h.teams.GetTeam(r.Context(), teamID)
	if err != nil {
		WriteServiceError(w, h.logger, err)
		return
	}
	httputil.WriteSuccess(w, team)
}

// UpdateTeam renames a team. Owner only.
func (h *TeamHandlers) UpdateTeam(w http.ResponseWriter, r *http.Request) {
	teamID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	if _, err := h.guard.RequireTeamOwner(r.Context(), teamID); err != nil {
		WriteServiceError(w, h.logger, err)
		return
	}

	var req teams.UpdateTeamRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	team, err := h.teams.UpdateTeam(r.Context(), teamID, &req)
	if err != nil {
		WriteServiceError(w, h.logger, err)
		return
	}
	httputil.WriteSuccess(w, team)
}

// DeleteTeam deletes a team and, via cascade, its subscriptions. Owner
// only.
func (h *TeamHandlers) DeleteTeam(w http.ResponseWriter, r *http.Request) {
	teamID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	if _, err := h.guard.RequireTeamOwner(r.Context(), teamID); err != nil {
		WriteServiceError(w, h.logger, err)
		return
	}

	if err := h.teams.DeleteTeam(r.Context(), teamID); err != nil {
		WriteServiceError(w, h.logger, err)
		return
	}
	httputil.WriteNoContent(w)
}

// CancelSubscription cancels the team's live subscription. Owner only.
func (h *TeamHandlers) CancelSubscription(w http.ResponseWriter, r *http.Request) {
	teamID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	if _, err := h.guard.RequireTeamOwner(r.Context(), teamID); err != nil {
		WriteServiceError(w, h.logger, err)
		return
	}

	if err := h.billing.Cancel(r.Context(), teamID); err != nil {
		WriteServiceError(w, h.logger, err)
		return
	}
	httputil.WriteNoContent(w)
}
