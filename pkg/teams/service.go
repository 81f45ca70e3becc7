package teams

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"
)

// Service defines team operations
type Service interface {
	CreateTeam(ctx context.Context, ownerID int64, req *CreateTeamRequest) (*Team, error)
	GetTeam(ctx context.Context, id int64) (*Team, error)
	GetTeamByOwner(ctx context.Context, ownerID int64) (*Team, error)
	UpdateTeam(ctx context.Context, id int64, req *UpdateTeamRequest) (*Team, error)
	DeleteTeam(ctx context.Context, id int64) error
	TeamOwner(ctx context.Context, teamID int64) (int64, error)
}

// PostgresService implements the teams Service interface using PostgreSQL
type PostgresService struct {
	db *sql.DB
}

// NewPostgresService creates a new PostgresService
func NewPostgresService(db *sql.DB) *PostgresService {
	return &PostgresService{db: db}
}

// CreateTeam creates a team for the owner. The owner_id uniqueness
// constraint enforces one team per owner.
func (s *PostgresService) CreateTeam(ctx context.Context, ownerID int64, req *CreateTeamRequest) (*Team, error) {
	if req.Name == "" {
		return nil, ErrInvalidName
	}

	team := &Team{
		Name:    req.Name,
		OwnerID: ownerID,
	}

	err := s.db.QueryRowContext(ctx, `
		INSERT INTO teams (name, owner_id)
		VALUES ($1, $2)
		RETURNING id, created_at, updated_at`,
		req.Name, ownerID,
	).Scan(&team.ID, &team.CreatedAt, &team.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrTeamExists
		}
		return nil, fmt.Errorf("failed to create team: %w", err)
	}

	return team, nil
}

// GetTeam retrieves a team by id
func (s *PostgresService) GetTeam(ctx context.Context, id int64) (*Team, error) {
	team := &Team{}
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, owner_id, created_at, updated_at
		FROM teams
		WHERE id = $1`,
		id,
	).Scan(&team.ID, &team.Name, &team.OwnerID, &team.CreatedAt, &team.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: id %d", ErrTeamNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get team: %w", err)
	}

	return team, nil
}

// GetTeamByOwner retrieves the team owned by a user
func (s *PostgresService) GetTeamByOwner(ctx context.Context, ownerID int64) (*Team, error) {
	team := &Team{}
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, owner_id, created_at, updated_at
		FROM teams
		WHERE owner_id = $1`,
		ownerID,
	).Scan(&team.ID, &team.Name, &team.OwnerID, &team.CreatedAt, &team.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: owner %d", ErrTeamNotFound, ownerID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get team by owner: %w", err)
	}

	return team, nil
}

// UpdateTeam updates an existing team. Only provided fields change.
func (s *PostgresService) UpdateTeam(ctx context.Context, id int64, req *UpdateTeamRequest) (*Team, error) {
	if req.Name != nil && *req.Name == "" {
		return nil, ErrInvalidName
	}

	team := &Team{}
	err := s.db.QueryRowContext(ctx, `
		UPDATE teams
		SET name = COALESCE($2, name),
		    updated_at = NOW()
		WHERE id = $1
		RETURNING id, name, owner_id, created_at, updated_at`,
		id, req.Name,
	).Scan(&team.ID, &team.Name, &team.OwnerID, &team.CreatedAt, &team.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: id %d", ErrTeamNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update team: %w", err)
	}

	return team, nil
}

// DeleteTeam removes a team. Subscriptions and activations cascade.
func (s *PostgresService) DeleteTeam(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM teams WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to delete team: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete result: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: id %d", ErrTeamNotFound, id)
	}

	return nil
}

// TeamOwner returns the owner of a team
func (s *PostgresService) TeamOwner(ctx context.Context, teamID int64) (int64, error) {
	var ownerID int64
	err := s.db.QueryRowContext(ctx,
		"SELECT owner_id FROM teams WHERE id = $1", teamID,
	).Scan(&ownerID)
	if err == sql.ErrNoRows {
		return 0, fmt.Errorf("%w: id %d", ErrTeamNotFound, teamID)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get team owner: %w", err)
	}

	return ownerID, nil
}

// isUniqueViolation reports whether err is a postgres unique constraint violation
func isUniqueViolation(err error) bool {
	if pqErr, ok := err.(*pq.Error); ok {
		return pqErr.Code == "23505"
	}
	return false
}
