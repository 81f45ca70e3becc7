// Package auth provides API token management and request authorization.
//
// Tokens are opaque strings with a "tally_" prefix. Only the SHA256 hash
// of a token is stored; the plaintext is returned once at creation time.
//
// The Guard resolves the caller from context and enforces the two access
// rules the API needs: admin-only plan management and team-owner-only
// subscription management.
package auth
