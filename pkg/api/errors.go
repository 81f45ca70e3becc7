package api

import (
	"errors"
	"net/http"

	"github.com/quillback/tally/pkg/auth"
	"github.com/quillback/tally/pkg/billing"
	"github.com/quillback/tally/pkg/httputil"
	"github.com/quillback/tally/pkg/observability"
	"github.com/quillback/tally/pkg/plans"
	"github.com/quillback/tally/pkg/teams"
)

// WriteServiceError maps service-layer sentinel errors to HTTP statuses.
// Anything unrecognized is a 500 with a generic body; the real error
// only goes to the log.
func WriteServiceError(w http.ResponseWriter, logger *observability.Logger, err error) {
	switch {
	case errors.Is(err, plans.ErrPlanNotFound),
		errors.Is(err, teams.ErrTeamNotFound),
		errors.Is(err, billing.ErrSubscriptionNotFound),
		errors.Is(err, billing.ErrUserNotFound),
		errors.Is(err, auth.ErrTokenNotFound):
		httputil.WriteNotFoundError(w, err.Error())

	case errors.Is(err, billing.ErrSubscriptionExists),
		errors.Is(err, teams.ErrTeamExists),
		errors.Is(err, billing.ErrAlreadyActive),
		errors.Is(err, billing.ErrSubscriptionCanceled),
		errors.Is(err, billing.ErrInvalidWindow),
		errors.Is(err, billing.ErrNoActiveSubscription),
		errors.Is(err, billing.ErrNotActivated),
		errors.Is(err, plans.ErrInvalidPrice),
		errors.Is(err, plans.ErrInvalidName),
		errors.Is(err, teams.ErrInvalidName):
		httputil.WriteBadRequest(w, err.Error())

	case errors.Is(err, plans.ErrPlanExists):
		httputil.WriteConflict(w, err.Error())

	case errors.Is(err, auth.ErrUnauthenticated):
		httputil.WriteUnauthorized(w, err.Error())

	case errors.Is(err, auth.ErrForbidden),
		errors.Is(err, auth.ErrUnauthorized):
		httputil.WriteForbidden(w, err.Error())

	default:
		if logger != nil {
			logger.WithError(err).Error("unhandled service error")
		}
		httputil.WriteErrorMessage(w, http.StatusInternalServerError, "internal server error")
	}
}
