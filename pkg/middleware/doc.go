// Package middleware provides HTTP middleware for request authentication.
package middleware
