package billing

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/quillback/tally/pkg/clock"
	"github.com/quillback/tally/pkg/observability"
	"github.com/quillback/tally/pkg/plans"
	"github.com/quillback/tally/pkg/teams"
)

// Service defines subscription lifecycle operations
type Service interface {
	Create(ctx context.Context, userID, teamID, planID int64) (*Subscription, error)
	Get(ctx context.Context, subscriptionID int64) (*Subscription, error)
	Activate(ctx context.Context, subscriptionID int64, window Window) (*Activation, error)
	GetCurrent(ctx context.Context, userID int64) (*CurrentSubscription, error)
	Cancel(ctx context.Context, teamID int64) error
	ListActive(ctx context.Context) ([]*Subscription, error)
	ListHistory(ctx context.Context, userID int64) ([]*Subscription, error)
	ProrateUpgrade(ctx context.Context, userID, newPlanID int64) (*Proration, error)
	CurrentActivation(ctx context.Context, subscriptionID int64) (*Activation, error)
	ListActivations(ctx context.Context, subscriptionID int64) ([]*Activation, error)
	ExpireOverdue(ctx context.Context) (int64, error)
}

// PostgresService implements the billing Service interface using PostgreSQL
type PostgresService struct {
	db              *sql.DB
	plans           plans.Service
	teams           teams.Service
	clock           clock.Clock
	defaultTermDays int
	logger          *observability.Logger
	metrics         *observability.Metrics
}

// NewPostgresService creates a new PostgresService. metrics may be nil.
func NewPostgresService(db *sql.DB, planSvc plans.Service, teamSvc teams.Service, clk clock.Clock, defaultTermDays int, logger *observability.Logger, metrics *observability.Metrics) *PostgresService {
	return &PostgresService{
		db:              db,
		plans:           planSvc,
		teams:           teamSvc,
		clock:           clk,
		defaultTermDays: defaultTermDays,
		logger:          logger,
		metrics:         metrics,
	}
}

const subscriptionColumns = "id, user_id, team_id, plan_id, price, status, is_active, created_at, updated_at"

func scanSubscription(row interface{ Scan(...interface{}) error }) (*Subscription, error) {
	sub := &Subscription{}
	err := row.Scan(&sub.ID, &sub.UserID, &sub.TeamID, &sub.PlanID, &sub.Price,
		&sub.Status, &sub.IsActive, &sub.CreatedAt, &sub.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return sub, nil
}

// Create creates a pending subscription for a team, snapshotting the
// plan price. The check and insert share one transaction; the partial
// unique index on team_id catches any create that races past the check.
func (s *PostgresService) Create(ctx context.Context, userID, teamID, planID int64) (*Subscription, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM users WHERE id = $1 AND is_active)", userID,
	).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("failed to check user: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("%w: id %d", ErrUserNotFound, userID)
	}

	if _, err := s.teams.GetTeam(ctx, teamID); err != nil {
		return nil, err
	}

	plan, err := s.plans.GetPlan(ctx, planID)
	if err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var liveID int64
	err = tx.QueryRowContext(ctx,
		"SELECT id FROM subscriptions WHERE team_id = $1 AND status <> 'canceled'", teamID,
	).Scan(&liveID)
	if err == nil {
		s.countCreated("exists")
		return nil, ErrSubscriptionExists
	}
	if err != sql.ErrNoRows {
		return nil, fmt.Errorf("failed to check existing subscription: %w", err)
	}

	sub := &Subscription{
		UserID:   userID,
		TeamID:   teamID,
		PlanID:   planID,
		Price:    plan.Price,
		Status:   StatusPending,
		IsActive: false,
	}

	err = tx.QueryRowContext(ctx, `
		INSERT INTO subscriptions (user_id, team_id, plan_id, price, status, is_active)
		VALUES ($1, $2, $3, $4, $5, FALSE)
		RETURNING id, created_at, updated_at`,
		userID, teamID, planID, plan.Price, StatusPending,
	).Scan(&sub.ID, &sub.CreatedAt, &sub.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			s.countCreated("exists")
			return nil, ErrSubscriptionExists
		}
		return nil, fmt.Errorf("failed to create subscription: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit subscription: %w", err)
	}

	s.countCreated("ok")
	return sub, nil
}

// Get retrieves a subscription by id
func (s *PostgresService) Get(ctx context.Context, subscriptionID int64) (*Subscription, error) {
	sub, err := scanSubscription(s.db.QueryRowContext(ctx,
		"SELECT "+subscriptionColumns+" FROM subscriptions WHERE id = $1",
		subscriptionID,
	))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: id %d", ErrSubscriptionNotFound, subscriptionID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get subscription: %w", err)
	}

	return sub, nil
}

// Activate appends an activation window and flips the subscription to
// active, in one transaction. Only pending or expired subscriptions may
// activate; a second activation of an active subscription is an error.
// A zero window gets the configured default term starting now.
func (s *PostgresService) Activate(ctx context.Context, subscriptionID int64, window Window) (*Activation, error) {
	if window.IsZero() {
		now := s.clock.Now()
		window = Window{
			ActivationDate: now,
			ExpirationDate: now.AddDate(0, 0, s.defaultTermDays),
		}
	}
	if !window.ExpirationDate.After(window.ActivationDate) {
		return nil, ErrInvalidWindow
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var status Status
	err = tx.QueryRowContext(ctx,
		"SELECT status FROM subscriptions WHERE id = $1 FOR UPDATE", subscriptionID,
	).Scan(&status)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: id %d", ErrSubscriptionNotFound, subscriptionID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock subscription: %w", err)
	}

	switch status {
	case StatusActive:
		s.countActivated("already_active")
		return nil, ErrAlreadyActive
	case StatusCanceled:
		s.countActivated("canceled")
		return nil, ErrSubscriptionCanceled
	}

	activation, err := appendActivation(ctx, tx, subscriptionID, window)
	if err != nil {
		return nil, err
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE subscriptions
		SET status = $2, is_active = TRUE, updated_at = NOW()
		WHERE id = $1`,
		subscriptionID, StatusActive,
	); err != nil {
		return nil, fmt.Errorf("failed to activate subscription: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit activation: %w", err)
	}

	s.countActivated("ok")
	return activation, nil
}

// GetCurrent resolves the caller's active subscription and its window.
// An overdue subscription is flipped to expired here; lazy expiry on
// read is the trigger the service guarantees.
func (s *PostgresService) GetCurrent(ctx context.Context, userID int64) (*CurrentSubscription, error) {
	team, err := s.teams.GetTeamByOwner(ctx, userID)
	if err != nil {
		if errors.Is(err, teams.ErrTeamNotFound) {
			return nil, ErrNoActiveSubscription
		}
		return nil, err
	}

	sub, err := scanSubscription(s.db.QueryRowContext(ctx,
		"SELECT "+subscriptionColumns+" FROM subscriptions WHERE team_id = $1 AND status = $2",
		team.ID, StatusActive,
	))
	if err == sql.ErrNoRows {
		return nil, ErrNoActiveSubscription
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get subscription: %w", err)
	}

	activation, err := s.CurrentActivation(ctx, sub.ID)
	if err != nil {
		if errors.Is(err, ErrNotActivated) {
			// Active row without a ledger entry breaks the ledger invariant
			s.logger.WithField("subscription_id", sub.ID).
				Error("active subscription has no activation record")
			return nil, fmt.Errorf("subscription %d is active without an activation record", sub.ID)
		}
		return nil, err
	}

	if s.clock.Now().After(activation.ExpirationDate) {
		if _, err := s.db.ExecContext(ctx, `
			UPDATE subscriptions
			SET status = $2, is_active = FALSE, updated_at = NOW()
			WHERE id = $1`,
			sub.ID, StatusExpired,
		); err != nil {
			return nil, fmt.Errorf("failed to expire subscription: %w", err)
		}
		s.countExpired("read")
		return nil, ErrSubscriptionEnded
	}

	return &CurrentSubscription{
		Subscription: sub,
		Window: Window{
			ActivationDate: activation.ActivationDate,
			ExpirationDate: activation.ExpirationDate,
		},
	}, nil
}

// Cancel marks a team's live subscription canceled. The row is kept so
// history survives, and the team may subscribe again afterwards.
func (s *PostgresService) Cancel(ctx context.Context, teamID int64) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE subscriptions
		SET status = $2, is_active = FALSE, updated_at = NOW()
		WHERE team_id = $1 AND status <> $2`,
		teamID, StatusCanceled,
	)
	if err != nil {
		return fmt.Errorf("failed to cancel subscription: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check cancel result: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: team %d", ErrSubscriptionNotFound, teamID)
	}

	if s.metrics != nil {
		s.metrics.SubscriptionsCanceledTotal.Inc()
	}
	return nil
}

// ListActive lists every currently active subscription
func (s *PostgresService) ListActive(ctx context.Context) ([]*Subscription, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+subscriptionColumns+" FROM subscriptions WHERE is_active ORDER BY id ASC",
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list active subscriptions: %w", err)
	}
	defer rows.Close()

	return collectSubscriptions(rows)
}

// ListHistory lists every subscription the user ever created, any state,
// newest first.
func (s *PostgresService) ListHistory(ctx context.Context, userID int64) ([]*Subscription, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+subscriptionColumns+" FROM subscriptions WHERE user_id = $1 ORDER BY created_at DESC, id DESC",
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list subscription history: %w", err)
	}
	defer rows.Close()

	return collectSubscriptions(rows)
}

// ProrateUpgrade quotes a plan change for the caller's active
// subscription against its current activation window.
func (s *PostgresService) ProrateUpgrade(ctx context.Context, userID, newPlanID int64) (*Proration, error) {
	team, err := s.teams.GetTeamByOwner(ctx, userID)
	if err != nil {
		return nil, err
	}

	sub, err := scanSubscription(s.db.QueryRowContext(ctx,
		"SELECT "+subscriptionColumns+" FROM subscriptions WHERE team_id = $1 AND status = $2",
		team.ID, StatusActive,
	))
	if err == sql.ErrNoRows {
		return nil, ErrNoActiveSubscription
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get subscription: %w", err)
	}

	newPlan, err := s.plans.GetPlan(ctx, newPlanID)
	if err != nil {
		return nil, err
	}

	activation, err := s.CurrentActivation(ctx, sub.ID)
	if err != nil {
		return nil, err
	}

	window := Window{
		ActivationDate: activation.ActivationDate,
		ExpirationDate: activation.ExpirationDate,
	}
	proration := Prorate(sub.Price, window, newPlan.Price, s.clock.Now())

	if s.metrics != nil {
		s.metrics.ProrationsComputedTotal.Inc()
	}
	return &proration, nil
}

// ExpireOverdue flips every active subscription whose current window has
// lapsed to expired, returning how many rows changed. Used by the
// optional background sweep; the read path does not depend on it.
func (s *PostgresService) ExpireOverdue(ctx context.Context) (int64, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE subscriptions s
		SET status = $1, is_active = FALSE, updated_at = NOW()
		WHERE s.status = $2
		  AND (
			SELECT a.expiration_date
			FROM subscription_activations a
			WHERE a.subscription_id = s.id
			ORDER BY a.activation_date DESC, a.id DESC
			LIMIT 1
		  ) < $3`,
		StatusExpired, StatusActive, s.clock.Now(),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to expire overdue subscriptions: %w", err)
	}

	flipped, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count expired subscriptions: %w", err)
	}

	if flipped > 0 && s.metrics != nil {
		s.metrics.SubscriptionsExpiredTotal.WithLabelValues("sweep").Add(float64(flipped))
		s.metrics.ExpirySweepFlipped.Add(float64(flipped))
	}
	return flipped, nil
}

func collectSubscriptions(rows *sql.Rows) ([]*Subscription, error) {
	subs := make([]*Subscription, 0)
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan subscription: %w", err)
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

func (s *PostgresService) countCreated(status string) {
	if s.metrics != nil {
		s.metrics.SubscriptionsCreatedTotal.WithLabelValues(status).Inc()
	}
}

func (s *PostgresService) countActivated(status string) {
	if s.metrics != nil {
		s.metrics.SubscriptionsActivatedTotal.WithLabelValues(status).Inc()
	}
}

func (s *PostgresService) countExpired(trigger string) {
	if s.metrics != nil {
		s.metrics.SubscriptionsExpiredTotal.WithLabelValues(trigger).Inc()
	}
}

func isUniqueViolation(err error) bool {
	if pqErr, ok := err.(*pq.Error); ok {
		return pqErr.Code == "23505"
	}
	return false
}
