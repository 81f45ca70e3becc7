// Package billing implements the subscription lifecycle for teams.
//
// # State machine
//
// A team moves through NONE → PENDING → ACTIVE ⇄ EXPIRED, with CANCELED
// reachable from any live state. A canceled team may subscribe again;
// the partial unique index on subscriptions(team_id) permits at most one
// live (non-canceled) row per team, so concurrent creates cannot race
// past the in-transaction check.
//
// # Activation windows
//
// Activations are append-only rows of (activation_date, expiration_date);
// the most recent row is the current window. Expiry is detected lazily
// when the subscription is read: GetCurrent flips an overdue subscription
// to expired before reporting "subscription has ended". An optional cron
// sweep (ExpireOverdue) flips overdue rows in bulk, but the read path is
// what the service guarantees.
//
// # Proration
//
// Prorate is a pure function over decimal prices and an activation
// window. Upgrades yield a positive charge for the remaining days of the
// window at the price difference; downgrades yield a negative (signed)
// amount and the caller decides what to do with it.
package billing
