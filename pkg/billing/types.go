package billing

import (
	"time"

	"github.com/shopspring/decimal"
)

// Status represents the lifecycle state of a subscription
type Status string

const (
	StatusPending  Status = "pending"
	StatusActive   Status = "active"
	StatusExpired  Status = "expired"
	StatusCanceled Status = "canceled"
)

// Subscription represents a team's subscription to a plan. Price is a
// snapshot of the plan price at creation time; later plan edits do not
// reprice existing subscriptions.
type Subscription struct {
	ID        int64           `json:"id"`
	UserID    int64           `json:"user_id"`
	TeamID    int64           `json:"team_id"`
	PlanID    int64           `json:"plan_id"`
	Price     decimal.Decimal `json:"price"`
	Status    Status          `json:"status"`
	IsActive  bool            `json:"is_active"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Activation is one append-only activation ledger entry
type Activation struct {
	ID             int64     `json:"id"`
	SubscriptionID int64     `json:"subscription_id"`
	ActivationDate time.Time `json:"activation_date"`
	ExpirationDate time.Time `json:"expiration_date"`
	CreatedAt      time.Time `json:"created_at"`
}

// Window is an activation period. The zero value asks Activate to apply
// the configured default term starting now.
type Window struct {
	ActivationDate time.Time `json:"activation_date"`
	ExpirationDate time.Time `json:"expiration_date"`
}

// IsZero reports whether the window was left unset
func (w Window) IsZero() bool {
	return w.ActivationDate.IsZero() && w.ExpirationDate.IsZero()
}

// CurrentSubscription pairs an active subscription with its current window
type CurrentSubscription struct {
	Subscription *Subscription `json:"subscription"`
	Window       Window        `json:"window"`
}

// Proration is the outcome of a mid-window plan change quote
type Proration struct {
	CurrentPrice   decimal.Decimal `json:"current_price"`
	NewPrice       decimal.Decimal `json:"new_price"`
	RemainingDays  int64           `json:"remaining_days"`
	TotalDays      int64           `json:"total_days"`
	RemainingRatio decimal.Decimal `json:"remaining_ratio"`
	ProratedPrice  decimal.Decimal `json:"prorated_price"`
}
