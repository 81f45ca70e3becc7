package plans

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// Plan represents a purchasable subscription plan
type Plan struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Price       decimal.Decimal `json:"price"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// CreatePlanRequest holds fields for creating a plan
type CreatePlanRequest struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Price       decimal.Decimal `json:"price"`
}

// UpdatePlanRequest holds optional fields for updating a plan
type UpdatePlanRequest struct {
	Name        *string          `json:"name,omitempty"`
	Description *string          `json:"description,omitempty"`
	Price       *decimal.Decimal `json:"price,omitempty"`
}

var (
	// ErrPlanNotFound indicates the requested plan does not exist.
	ErrPlanNotFound = errors.New("plan not found")

	// ErrPlanExists indicates a plan with the same name already exists.
	ErrPlanExists = errors.New("plan already exists")

	// ErrInvalidPrice indicates a negative or malformed price.
	ErrInvalidPrice = errors.New("plan price must be non-negative")

	// ErrInvalidName indicates a missing plan name.
	ErrInvalidName = errors.New("plan name is required")
)
