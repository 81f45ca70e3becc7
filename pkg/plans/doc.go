// Package plans implements the plan catalog.
//
// Plans carry a decimal monthly price. Mutations are admin-only at the
// API layer; the service itself only validates shape (unique name,
// non-negative price). An optional redis-backed CachedService fronts
// reads and degrades to direct database reads when redis is down.
package plans
