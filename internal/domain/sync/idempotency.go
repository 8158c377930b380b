package sync

import (
	"context"
	"time"
)

// IdempotencyStore records processed event IDs so redelivered messages are
// not handled twice. The queue deduplicates at enqueue time; this store
// covers the processing side, where at-least-once delivery can replay an
// already-handled event after a crash between handling and Ack.
type IdempotencyStore interface {
	// MarkProcessed marks an event as processed with a TTL. Returns true if
	// the event was newly marked, false if it was already processed.
	MarkProcessed(ctx context.Context, eventID string, ttl time.Duration) (bool, error)

	// IsProcessed checks whether an event has already been processed.
	IsProcessed(ctx context.Context, eventID string) (bool, error)

	// Close releases store resources.
	Close() error
}
