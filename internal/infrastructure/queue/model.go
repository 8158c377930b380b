package queue

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/dealbridge/backend/internal/domain/sync"
)

// messageModel is the persistence model for queue messages. The dedup key is
// enforced by a unique index; ordering and claim scans are served by the
// (status, not_before, enqueued_at) and ordering-key indexes.
type messageModel struct {
	ID             uuid.UUID          `gorm:"type:uuid;primaryKey"`
	OrderingKey    string             `gorm:"type:varchar(255);not null;index:idx_queue_ordering,priority:1"`
	DedupKey       string             `gorm:"type:varchar(255);not null;uniqueIndex"`
	Body           []byte             `gorm:"not null"`
	Status         sync.MessageStatus `gorm:"type:varchar(20);not null;default:PENDING;index:idx_queue_claim,priority:1;index:idx_queue_ordering,priority:2"`
	DeliveryCount  int                `gorm:"not null;default:0"`
	LeaseExpiresAt *time.Time
	NotBefore      *time.Time
	LastError      string    `gorm:"type:text"`
	EnqueuedAt     time.Time `gorm:"not null;index:idx_queue_claim,priority:2"`
	UpdatedAt      time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (messageModel) TableName() string {
	return "sync_queue_messages"
}

// ToDomain converts the persistence model to a domain Message
func (m *messageModel) ToDomain() *sync.Message {
	return &sync.Message{
		ID:             m.ID,
		OrderingKey:    m.OrderingKey,
		DedupKey:       m.DedupKey,
		Body:           m.Body,
		Status:         m.Status,
		DeliveryCount:  m.DeliveryCount,
		LeaseExpiresAt: m.LeaseExpiresAt,
		NotBefore:      m.NotBefore,
		LastError:      m.LastError,
		EnqueuedAt:     m.EnqueuedAt,
		UpdatedAt:      m.UpdatedAt,
	}
}

// fromDomain populates the persistence model from a domain Message
func (m *messageModel) fromDomain(msg *sync.Message) {
	m.ID = msg.ID
	m.OrderingKey = msg.OrderingKey
	m.DedupKey = msg.DedupKey
	m.Body = msg.Body
	m.Status = msg.Status
	m.DeliveryCount = msg.DeliveryCount
	m.LeaseExpiresAt = msg.LeaseExpiresAt
	m.NotBefore = msg.NotBefore
	m.LastError = msg.LastError
	m.EnqueuedAt = msg.EnqueuedAt
	m.UpdatedAt = msg.UpdatedAt
}

// Migrate creates or updates the queue schema.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&messageModel{})
}
