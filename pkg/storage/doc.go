// Package storage holds shared storage configuration consumed by the
// postgres connection manager and the redis cache.
package storage
