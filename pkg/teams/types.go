package teams

import (
	"errors"
	"time"
)

// Team represents a team owned by a single user
type Team struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	OwnerID   int64     `json:"owner_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CreateTeamRequest holds fields for creating a team
type CreateTeamRequest struct {
	Name string `json:"name"`
}

// UpdateTeamRequest holds optional fields for updating a team
type UpdateTeamRequest struct {
	Name *string `json:"name,omitempty"`
}

var (
	// ErrTeamNotFound indicates the requested team does not exist.
	ErrTeamNotFound = errors.New("team not found")

	// ErrTeamExists indicates the owner already has a team. The message
	// is the wire code clients match on.
	ErrTeamExists = errors.New("TEAM_ALREADY_EXISTS")

	// ErrInvalidName indicates a missing team name.
	ErrInvalidName = errors.New("team name is required")
)
