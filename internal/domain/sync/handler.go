package sync

import "context"

// Action summarizes what a handler did with an event.
type Action string

const (
	ActionCreated Action = "created"
	ActionUpdated Action = "updated"
	ActionSkipped Action = "skipped"
	ActionBlocked Action = "blocked"
)

// Result is the structured outcome of handling one event. Blocked and
// skipped outcomes are not errors; they carry a reason and any warnings
// generated by the mapping engine.
type Result struct {
	Action   Action   `json:"action"`
	Reason   string   `json:"reason,omitempty"`
	LocalID  string   `json:"local_id,omitempty"`
	RemoteID string   `json:"remote_id,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

// Handler processes one canonical event. Handlers must be idempotent: the
// queue guarantees at-least-once delivery, so a handler may see the same
// event again after a partial failure. Returning an error triggers
// queue-native redelivery; business-rule outcomes (skipped, blocked) are
// results, not errors.
type Handler interface {
	Handle(ctx context.Context, event *Event) (*Result, error)
	EventTypes() []EventType
}
