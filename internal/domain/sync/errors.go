package sync

import "errors"

var (
	// ErrDealNotFound is returned when the local record does not exist.
	ErrDealNotFound = errors.New("deal not found")

	// ErrOpportunityNotFound is returned when the remote record does not exist.
	ErrOpportunityNotFound = errors.New("opportunity not found")

	// ErrConflictNotFound is returned when a conflict record does not exist.
	ErrConflictNotFound = errors.New("conflict not found")

	// ErrUpdateBlocked is returned by the orchestrator when the remote
	// object's review status forbids updates and force was not set.
	ErrUpdateBlocked = errors.New("update blocked by remote review status")

	// ErrNoHandler is returned when no handler is registered for an event's
	// (type, source) pair.
	ErrNoHandler = errors.New("no handler registered for event")
)
