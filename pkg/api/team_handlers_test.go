package api

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quillback/tally/pkg/billing"
	"github.com/quillback/tally/pkg/teams"
)

func registerTeamRoutes(teamSvc teams.Service, billingSvc billing.Service) func(*mux.Router) {
	return func(router *mux.Router) {
		h := NewTeamHandlers(teamSvc, billingSvc, testGuard(ownershipMap{42: 7}), testLogger())
		h.RegisterRoutes(router)
	}
}

func TestCreateTeamHandler(t *testing.T) {
	t.Run("creates team for caller", func(t *testing.T) {
		svc := &stubTeams{team: &teams.Team{ID: 42, Name: "acme", OwnerID: 7}}

		rec := doRequest(t, registerTeamRoutes(svc, &stubBilling{}), "POST", "/teams", `{"name":"acme"}`, ownerCaller)
		assertStatus(t, rec, http.StatusCreated)

		var got teams.Team
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		assert.Equal(t, int64(7), got.OwnerID)
	})

	t.Run("second team for same owner", func(t *testing.T) {
		svc := &stubTeams{err: teams.ErrTeamExists}

		rec := doRequest(t, registerTeamRoutes(svc, &stubBilling{}), "POST", "/teams", `{"name":"other"}`, ownerCaller)
		assertStatus(t, rec, http.StatusBadRequest)
		assert.Contains(t, rec.Body.String(), "TEAM_ALREADY_EXISTS")
	})

	t.Run("anonymous is unauthorized", func(t *testing.T) {
		rec := doRequest(t, registerTeamRoutes(&stubTeams{}, &stubBilling{}), "POST", "/teams", `{"name":"acme"}`, nil)
		assertStatus(t, rec, http.StatusUnauthorized)
	})
}

func TestGetMyTeamHandler(t *testing.T) {
	t.Run("returns caller's team", func(t *testing.T) {
		svc := &stubTeams{team: &teams.Team{ID: 42, Name: "acme", OwnerID: 7}}

		rec := doRequest(t, registerTeamRoutes(svc, &stubBilling{}), "GET", "/teams", "", ownerCaller)
		assertStatus(t, rec, http.StatusOK)
	})

	t.Run("caller has no team", func(t *testing.T) {
		svc := &stubTeams{err: teams.ErrTeamNotFound}

		rec := doRequest(t, registerTeamRoutes(svc, &stubBilling{}), "GET", "/teams", "", ownerCaller)
		assertStatus(t, rec, http.StatusNotFound)
	})
}

func TestUpdateTeamHandler(t *testing.T) {
	t.Run("owner renames team", func(t *testing.T) {
		svc := &stubTeams{team: &teams.Team{ID: 42, Name: "renamed", OwnerID: 7}}

		rec := doRequest(t, registerTeamRoutes(svc, &stubBilling{}), "PUT", "/teams/42", `{"name":"renamed"}`, ownerCaller)
		assertStatus(t, rec, http.StatusOK)
	})

	t.Run("non-owner is forbidden", func(t *testing.T) {
		rec := doRequest(t, registerTeamRoutes(&stubTeams{}, &stubBilling{}), "PUT", "/teams/42", `{"name":"renamed"}`, otherCaller)
		assertStatus(t, rec, http.StatusForbidden)
	})

	t.Run("admin may rename any team", func(t *testing.T) {
		svc := &stubTeams{team: &teams.Team{ID: 42, Name: "renamed", OwnerID: 7}}

		rec := doRequest(t, registerTeamRoutes(svc, &stubBilling{}), "PUT", "/teams/42", `{"name":"renamed"}`, adminCaller)
		assertStatus(t, rec, http.StatusOK)
	})
}

func TestDeleteTeamHandler(t *testing.T) {
	t.Run("owner deletes team", func(t *testing.T) {
		rec := doRequest(t, registerTeamRoutes(&stubTeams{}, &stubBilling{}), "DELETE", "/teams/42", "", ownerCaller)
		assertStatus(t, rec, http.StatusNoContent)
	})

	t.Run("unknown team", func(t *testing.T) {
		svc := &stubTeams{err: teams.ErrTeamNotFound}

		rec := doRequest(t, registerTeamRoutes(svc, &stubBilling{}), "DELETE", "/teams/99", "", adminCaller)
		assertStatus(t, rec, http.StatusNotFound)
	})
}

func TestCancelSubscriptionHandler(t *testing.T) {
	t.Run("owner cancels team subscription", func(t *testing.T) {
		billingSvc := &stubBilling{}

		rec := doRequest(t, registerTeamRoutes(&stubTeams{}, billingSvc), "DELETE", "/teams/42/subscription", "", ownerCaller)
		assertStatus(t, rec, http.StatusNoContent)
		assert.Equal(t, int64(42), billingSvc.canceledTeam)
	})

	t.Run("nothing to cancel", func(t *testing.T) {
		billingSvc := &stubBilling{err: billing.ErrSubscriptionNotFound}

		rec := doRequest(t, registerTeamRoutes(&stubTeams{}, billingSvc), "DELETE", "/teams/42/subscription", "", ownerCaller)
		assertStatus(t, rec, http.StatusNotFound)
	})

	t.Run("non-owner is forbidden", func(t *testing.T) {
		billingSvc := &stubBilling{}

		rec := doRequest(t, registerTeamRoutes(&stubTeams{}, billingSvc), "DELETE", "/teams/42/subscription", "", otherCaller)
		assertStatus(t, rec, http.StatusForbidden)
		assert.Zero(t, billingSvc.canceledTeam)
	})
}
