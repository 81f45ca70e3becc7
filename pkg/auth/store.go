package auth

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// TokenStore persists API tokens and resolves presented tokens to users
type TokenStore struct {
	db        *sql.DB
	generator *TokenGenerator
}

// NewTokenStore creates a token store over the given database
func NewTokenStore(db *sql.DB) *TokenStore {
	return &TokenStore{
		db:        db,
		generator: NewTokenGenerator(),
	}
}

// CreateToken mints a token for a user. The plaintext token is returned
// once and never stored.
func (s *TokenStore) CreateToken(ctx context.Context, userID int64, name string, expiresAt *time.Time) (*APIToken, string, error) {
	token, tokenHash, err := s.generator.GenerateToken()
	if err != nil {
		return nil, "", fmt.Errorf("failed to generate token: %w", err)
	}

	record := &APIToken{
		UserID:    userID,
		Name:      name,
		TokenHash: tokenHash,
		ExpiresAt: expiresAt,
	}

	err = s.db.QueryRowContext(ctx, `
		INSERT INTO api_tokens (user_id, name, token_hash, expires_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`,
		userID, name, tokenHash, expiresAt,
	).Scan(&record.ID, &record.CreatedAt)
	if err != nil {
		return nil, "", fmt.Errorf("failed to store token: %w", err)
	}

	return record, token, nil
}

// ResolveToken validates a presented token and returns its user.
// Expired tokens resolve to ErrTokenNotFound.
func (s *TokenStore) ResolveToken(ctx context.Context, token string) (*User, error) {
	if err := s.generator.ValidateTokenFormat(token); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrTokenNotFound, err)
	}

	tokenHash := s.generator.HashToken(token)

	var user User
	var tokenID int64
	err := s.db.QueryRowContext(ctx, `
		SELECT t.id, u.id, u.email, u.name, u.is_admin, u.is_active, u.created_at, u.updated_at
		FROM api_tokens t
		JOIN users u ON u.id = t.user_id
		WHERE t.token_hash = $1
		  AND u.is_active
		  AND (t.expires_at IS NULL OR t.expires_at > NOW())`,
		tokenHash,
	).Scan(&tokenID, &user.ID, &user.Email, &user.Name, &user.IsAdmin, &user.IsActive, &user.CreatedAt, &user.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrTokenNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve token: %w", err)
	}

	// Best effort, a stale last_used_at is acceptable
	_, _ = s.db.ExecContext(ctx,
		"UPDATE api_tokens SET last_used_at = NOW() WHERE id = $1", tokenID)

	return &user, nil
}

// RevokeToken deletes a token by id, scoped to its owning user
func (s *TokenStore) RevokeToken(ctx context.Context, userID, tokenID int64) error {
	result, err := s.db.ExecContext(ctx,
		"DELETE FROM api_tokens WHERE id = $1 AND user_id = $2", tokenID, userID)
	if err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check revoke result: %w", err)
	}
	if rows == 0 {
		return ErrTokenNotFound
	}

	return nil
}

// ListTokens lists a user's tokens, newest first
func (s *TokenStore) ListTokens(ctx context.Context, userID int64) ([]*APIToken, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, name, last_used_at, expires_at, created_at
		FROM api_tokens
		WHERE user_id = $1
		ORDER BY created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list tokens: %w", err)
	}
	defer rows.Close()

	var tokens []*APIToken
	for rows.Next() {
		var t APIToken
		if err := rows.Scan(&t.ID, &t.UserID, &t.Name, &t.LastUsedAt, &t.ExpiresAt, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan token: %w", err)
		}
		tokens = append(tokens, &t)
	}

	return tokens, rows.Err()
}
