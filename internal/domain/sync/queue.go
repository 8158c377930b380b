package sync

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// MessageStatus represents the delivery state of a queue message.
type MessageStatus string

const (
	MessageStatusPending   MessageStatus = "PENDING"
	MessageStatusInflight  MessageStatus = "INFLIGHT"
	MessageStatusCompleted MessageStatus = "COMPLETED"
	MessageStatusDead      MessageStatus = "DEAD"
)

// Message wraps a serialized canonical event for durable, per-entity-ordered
// delivery. Two messages with the same OrderingKey are never inflight at the
// same time; DedupKey collapses duplicate enqueues within the dedup window.
type Message struct {
	ID             uuid.UUID
	OrderingKey    string
	DedupKey       string
	Body           []byte
	Status         MessageStatus
	DeliveryCount  int
	LeaseExpiresAt *time.Time
	NotBefore      *time.Time
	LastError      string
	EnqueuedAt     time.Time
	UpdatedAt      time.Time
}

// DefaultBaseBackoff is the first redelivery delay; it doubles on every
// failed delivery.
const DefaultBaseBackoff = time.Second

// MarkFailed records a failed delivery. The message dead-letters once the
// delivery count reaches maxDeliveries; otherwise it returns to PENDING with
// an exponential redelivery delay (1s, 2s, 4s, ...).
func (m *Message) MarkFailed(errMsg string, maxDeliveries int) {
	m.LastError = errMsg
	m.LeaseExpiresAt = nil
	m.UpdatedAt = time.Now()

	if m.DeliveryCount >= maxDeliveries {
		m.Status = MessageStatusDead
		m.NotBefore = nil
		return
	}
	m.Status = MessageStatusPending
	backoff := DefaultBaseBackoff * time.Duration(1<<uint(m.DeliveryCount-1))
	notBefore := time.Now().Add(backoff)
	m.NotBefore = &notBefore
}

// ResetForRetry returns a dead-lettered message to the queue.
func (m *Message) ResetForRetry() error {
	if m.Status != MessageStatusDead {
		return errors.New("can only retry dead-lettered messages")
	}
	m.Status = MessageStatusPending
	m.DeliveryCount = 0
	m.LastError = ""
	m.NotBefore = nil
	m.LeaseExpiresAt = nil
	m.UpdatedAt = time.Now()
	return nil
}

// IsDead reports whether the message has been dead-lettered.
func (m *Message) IsDead() bool {
	return m.Status == MessageStatusDead
}

// Queue is the durable ordered queue contract. Redelivery and dead-lettering
// are queue-native: a message whose lease expires becomes deliverable again,
// and a message claimed more than the configured maximum number of times is
// moved to DEAD instead of redelivered.
type Queue interface {
	// Enqueue stores a message. A message whose dedup key was already seen
	// within the dedup window is silently dropped; the returned ID is then
	// uuid.Nil.
	Enqueue(ctx context.Context, orderingKey, dedupKey string, body []byte) (uuid.UUID, error)

	// Dequeue claims the oldest deliverable message whose ordering key has
	// no other inflight message, leasing it for the visibility timeout.
	// Returns (nil, nil) when no message is deliverable.
	Dequeue(ctx context.Context) (*Message, error)

	// Ack marks a claimed message as successfully processed.
	Ack(ctx context.Context, msg *Message) error

	// Nack releases a claimed message for redelivery, recording the error.
	Nack(ctx context.Context, msg *Message, reason string) error
}

// DeadLetterStore exposes dead-lettered messages for manual triage.
type DeadLetterStore interface {
	FindDead(ctx context.Context, page, pageSize int) ([]*Message, int64, error)
	Requeue(ctx context.Context, id uuid.UUID) error
	CountByStatus(ctx context.Context) (map[MessageStatus]int64, error)
}
