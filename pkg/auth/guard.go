package auth

import (
	"context"
	"fmt"
)

// TeamOwnership reports who owns a team. Implemented by the teams service.
type TeamOwnership interface {
	TeamOwner(ctx context.Context, teamID int64) (int64, error)
}

// Guard enforces access rules for API operations
type Guard struct {
	teams TeamOwnership
}

// NewGuard creates a guard backed by the given team ownership source
func NewGuard(teams TeamOwnership) *Guard {
	return &Guard{teams: teams}
}

// Resolve returns the authenticated caller or ErrUnauthenticated
func (g *Guard) Resolve(ctx context.Context) (*Caller, error) {
	caller, ok := CallerFromContext(ctx)
	if !ok || caller == nil {
		return nil, ErrUnauthenticated
	}
	return caller, nil
}

// RequireAdmin returns the caller if they hold the admin flag
func (g *Guard) RequireAdmin(ctx context.Context) (*Caller, error) {
	caller, err := g.Resolve(ctx)
	if err != nil {
		return nil, err
	}
	if !caller.IsAdmin {
		return nil, fmt.Errorf("%w: admin privilege required", ErrForbidden)
	}
	return caller, nil
}

// RequireTeamOwner returns the caller if they own the team. Admins pass
// regardless of ownership.
func (g *Guard) RequireTeamOwner(ctx context.Context, teamID int64) (*Caller, error) {
	caller, err := g.Resolve(ctx)
	if err != nil {
		return nil, err
	}
	if caller.IsAdmin {
		return caller, nil
	}

	ownerID, err := g.teams.TeamOwner(ctx, teamID)
	if err != nil {
		return nil, err
	}
	if ownerID != caller.UserID {
		return nil, fmt.Errorf("%w: caller does not own team %d", ErrUnauthorized, teamID)
	}

	return caller, nil
}
