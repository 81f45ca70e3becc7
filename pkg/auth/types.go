package auth

import (
	"context"
	"time"
)

// User represents an account that can hold API tokens
type User struct {
	ID        int64     `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	IsAdmin   bool      `json:"is_admin"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// APIToken represents an API token record
type APIToken struct {
	ID         int64      `json:"id"`
	UserID     int64      `json:"user_id"`
	Name       string     `json:"name"`
	TokenHash  string     `json:"-"` // Never expose hash
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// Caller holds the authenticated identity attached to a request
type Caller struct {
	UserID  int64
	IsAdmin bool
}

type callerContextKey struct{}

// WithCaller attaches the authenticated caller to the context
func WithCaller(ctx context.Context, caller *Caller) context.Context {
	return context.WithValue(ctx, callerContextKey{}, caller)
}

// CallerFromContext retrieves the authenticated caller, if any
func CallerFromContext(ctx context.Context) (*Caller, bool) {
	caller, ok := ctx.Value(callerContextKey{}).(*Caller)
	return caller, ok
}
