package entitlement

import "errors"

var (
	// ErrNotFound means no subscription (or plan) matched the operation.
	ErrNotFound = errors.New("subscription not found")
	// ErrAnonymousUser is returned when an anonymous user tries to subscribe.
	ErrAnonymousUser = errors.New("anonymous users cannot hold paid subscriptions")
	// ErrFeatureLocked is returned by reads of content the caller's plan does not include.
	ErrFeatureLocked = errors.New("feature not included in current plan")
)
