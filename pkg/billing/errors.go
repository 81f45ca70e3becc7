package billing

import "errors"

var (
	// ErrUserNotFound indicates the referenced user row is missing.
	ErrUserNotFound = errors.New("user not found")

	// ErrSubscriptionNotFound indicates no matching subscription row.
	ErrSubscriptionNotFound = errors.New("subscription not found")

	// ErrSubscriptionExists indicates the team already has a live
	// (non-canceled) subscription. The message is the wire code clients
	// match on.
	ErrSubscriptionExists = errors.New("SUBSCRIPTION_ALREADY_EXISTS")

	// ErrAlreadyActive indicates an activation attempt on a subscription
	// that is already active. Double activation is rejected, not absorbed.
	ErrAlreadyActive = errors.New("subscription is already active")

	// ErrSubscriptionCanceled indicates an operation on a canceled
	// subscription that only live subscriptions admit.
	ErrSubscriptionCanceled = errors.New("subscription is canceled")

	// ErrInvalidWindow indicates an activation window whose expiration
	// does not fall strictly after its activation.
	ErrInvalidWindow = errors.New("expiration date must be after activation date")

	// ErrNotActivated indicates a subscription with no activation record.
	ErrNotActivated = errors.New("subscription has never been activated")

	// ErrNoActiveSubscription indicates the caller has no active
	// subscription to operate on.
	ErrNoActiveSubscription = errors.New("no active subscription")

	// ErrSubscriptionEnded indicates the current activation window has
	// lapsed. The message is rendered verbatim to clients.
	ErrSubscriptionEnded = errors.New("subscription has ended")
)
