package auth

import "errors"

var (
	// ErrUnauthenticated indicates the request carried no valid credentials.
	ErrUnauthenticated = errors.New("authentication required")

	// ErrForbidden indicates the caller is authenticated but lacks the
	// required privilege.
	ErrForbidden = errors.New("forbidden")

	// ErrUnauthorized indicates the caller does not own the resource
	// they are operating on.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrTokenNotFound indicates the presented token does not exist or
	// has expired.
	ErrTokenNotFound = errors.New("token not found")
)
