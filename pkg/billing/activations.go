package billing

import (
	"context"
	"database/sql"
	"fmt"
)

// appendActivation writes one activation ledger row inside the caller's
// transaction. The ledger is append-only; rows are never updated.
func appendActivation(ctx context.Context, tx *sql.Tx, subscriptionID int64, window Window) (*Activation, error) {
	activation := &Activation{
		SubscriptionID: subscriptionID,
		ActivationDate: window.ActivationDate,
		ExpirationDate: window.ExpirationDate,
	}

	err := tx.QueryRowContext(ctx, `
		INSERT INTO subscription_activations (subscription_id, activation_date, expiration_date)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`,
		subscriptionID, window.ActivationDate, window.ExpirationDate,
	).Scan(&activation.ID, &activation.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to append activation: %w", err)
	}

	return activation, nil
}

// CurrentActivation returns the most recent activation window for a
// subscription, or ErrNotActivated when the ledger is empty.
func (s *PostgresService) CurrentActivation(ctx context.Context, subscriptionID int64) (*Activation, error) {
	activation := &Activation{}
	err := s.db.QueryRowContext(ctx, `
		SELECT id, subscription_id, activation_date, expiration_date, created_at
		FROM subscription_activations
		WHERE subscription_id = $1
		ORDER BY activation_date DESC, id DESC
		LIMIT 1`,
		subscriptionID,
	).Scan(&activation.ID, &activation.SubscriptionID,
		&activation.ActivationDate, &activation.ExpirationDate, &activation.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: subscription %d", ErrNotActivated, subscriptionID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get current activation: %w", err)
	}

	return activation, nil
}

// ListActivations returns the full activation history for a subscription,
// newest first.
func (s *PostgresService) ListActivations(ctx context.Context, subscriptionID int64) ([]*Activation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, subscription_id, activation_date, expiration_date, created_at
		FROM subscription_activations
		WHERE subscription_id = $1
		ORDER BY activation_date DESC, id DESC`,
		subscriptionID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list activations: %w", err)
	}
	defer rows.Close()

	activations := make([]*Activation, 0)
	for rows.Next() {
		a := &Activation{}
		if err := rows.Scan(&a.ID, &a.SubscriptionID,
			&a.ActivationDate, &a.ExpirationDate, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan activation: %w", err)
		}
		activations = append(activations, a)
	}

	return activations, rows.Err()
}
