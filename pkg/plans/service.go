package plans

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"
)

// Service defines plan catalog operations
type Service interface {
	CreatePlan(ctx context.Context, req *CreatePlanRequest) (*Plan, error)
	UpdatePlan(ctx context.Context, id int64, req *UpdatePlanRequest) (*Plan, error)
	GetPlan(ctx context.Context, id int64) (*Plan, error)
	ListPlans(ctx context.Context) ([]*Plan, error)
}

// PostgresService implements the plans Service interface using PostgreSQL
type PostgresService struct {
	db *sql.DB
}

// NewPostgresService creates a new PostgresService
func NewPostgresService(db *sql.DB) *PostgresService {
	return &PostgresService{db: db}
}

// CreatePlan creates a new plan
func (s *PostgresService) CreatePlan(ctx context.Context, req *CreatePlanRequest) (*Plan, error) {
	if req.Name == "" {
		return nil, ErrInvalidName
	}
	if req.Price.IsNegative() {
		return nil, ErrInvalidPrice
	}

	plan := &Plan{
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
	}

	err := s.db.QueryRowContext(ctx, `
		INSERT INTO plans (name, description, price)
		VALUES ($1, $2, $3)
		RETURNING id, created_at, updated_at`,
		req.Name, req.Description, req.Price,
	).Scan(&plan.ID, &plan.CreatedAt, &plan.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: %s", ErrPlanExists, req.Name)
		}
		return nil, fmt.Errorf("failed to create plan: %w", err)
	}

	return plan, nil
}

// UpdatePlan updates an existing plan. Only provided fields change.
func (s *PostgresService) UpdatePlan(ctx context.Context, id int64, req *UpdatePlanRequest) (*Plan, error) {
	if req.Name != nil && *req.Name == "" {
		return nil, ErrInvalidName
	}
	if req.Price != nil && req.Price.IsNegative() {
		return nil, ErrInvalidPrice
	}

	plan := &Plan{ID: id}
	err := s.db.QueryRowContext(ctx, `
		UPDATE plans
		SET name = COALESCE($2, name),
		    description = COALESCE($3, description),
		    price = COALESCE($4, price),
		    updated_at = NOW()
		WHERE id = $1
		RETURNING id, name, description, price, created_at, updated_at`,
		id, req.Name, req.Description, req.Price,
	).Scan(&plan.ID, &plan.Name, &plan.Description, &plan.Price, &plan.CreatedAt, &plan.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: id %d", ErrPlanNotFound, id)
	}
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: %s", ErrPlanExists, *req.Name)
		}
		return nil, fmt.Errorf("failed to update plan: %w", err)
	}

	return plan, nil
}

// GetPlan retrieves a plan by id
func (s *PostgresService) GetPlan(ctx context.Context, id int64) (*Plan, error) {
	plan := &Plan{}
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, description, price, created_at, updated_at
		FROM plans
		WHERE id = $1`,
		id,
	).Scan(&plan.ID, &plan.Name, &plan.Description, &plan.Price, &plan.CreatedAt, &plan.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: id %d", ErrPlanNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get plan: %w", err)
	}

	return plan, nil
}

// ListPlans lists all plans ordered by price
func (s *PostgresService) ListPlans(ctx context.Context) ([]*Plan, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, description, price, created_at, updated_at
		FROM plans
		ORDER BY price ASC, id ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list plans: %w", err)
	}
	defer rows.Close()

	plans := make([]*Plan, 0)
	for rows.Next() {
		plan := &Plan{}
		if err := rows.Scan(&plan.ID, &plan.Name, &plan.Description, &plan.Price,
			&plan.CreatedAt, &plan.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan plan: %w", err)
		}
		plans = append(plans, plan)
	}

	return plans, rows.Err()
}

// isUniqueViolation reports whether err is a postgres unique constraint violation
func isUniqueViolation(err error) bool {
	if pqErr, ok := err.(*pq.Error); ok {
		return pqErr.Code == "23505"
	}
	return false
}
