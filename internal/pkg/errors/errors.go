package errors

import "errors"

var (
	// ErrNotFound is a generic sentinel for missing resources.
	ErrNotFound = errors.New("not found")
	// ErrUnauthorized is a generic sentinel for auth failures.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrInvalidArgument is a generic sentinel for invalid input.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrRateLimited signals that an order was finalized too recently.
	ErrRateLimited = errors.New("rate limited")
	// ErrShopClosed signals an order attempt outside working hours.
	ErrShopClosed = errors.New("shop closed")
	// ErrOptedOut signals a customer excluded from retention messaging.
	ErrOptedOut = errors.New("opted out")
)
