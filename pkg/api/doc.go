// Package api exposes the HTTP surface: plan catalog management, team
// management, API token issuance, and the subscription lifecycle.
//
// Handlers are grouped per domain (PlanHandlers, TeamHandlers,
// SubscriptionHandlers, TokenHandlers) and registered on a shared
// gorilla/mux router under /api/v1. Catalog reads are public; every
// other route requires a bearer token resolved by the auth middleware.
// Admin-only and owner-only routes consult the authorization guard
// inside the handler.
//
// Service errors are translated to HTTP statuses in one place,
// WriteServiceError, so the mapping stays consistent across handlers.
package api
