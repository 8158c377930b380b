package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/dealbridge/backend/internal/domain/sync"
)

// claimBatchSize bounds how many candidate rows one Dequeue scan inspects.
const claimBatchSize = 20

// Config holds queue tuning knobs.
type Config struct {
	LeaseDuration time.Duration
	MaxDeliveries int
	DedupWindow   time.Duration
}

// GormQueue is a database-backed ordered queue. Claims use an optimistic
// guarded update keyed on the delivery count, which works on both PostgreSQL
// and SQLite; a lost race simply moves on to the next candidate.
type GormQueue struct {
	db  *gorm.DB
	cfg Config
	now func() time.Time
}

// NewGormQueue creates a database-backed queue.
func NewGormQueue(db *gorm.DB, cfg Config) *GormQueue {
	if cfg.LeaseDuration == 0 {
		cfg.LeaseDuration = 5 * time.Minute
	}
	if cfg.MaxDeliveries == 0 {
		cfg.MaxDeliveries = 5
	}
	if cfg.DedupWindow == 0 {
		cfg.DedupWindow = 5 * time.Minute
	}
	return &GormQueue{db: db, cfg: cfg, now: time.Now}
}

// Enqueue stores a message, silently dropping duplicates by dedup key.
func (q *GormQueue) Enqueue(ctx context.Context, orderingKey, dedupKey string, body []byte) (uuid.UUID, error) {
	if orderingKey == "" {
		return uuid.Nil, errors.New("ordering key is required")
	}
	if dedupKey == "" {
		return uuid.Nil, errors.New("dedup key is required")
	}

	now := q.now()
	model := &messageModel{
		ID:          uuid.New(),
		OrderingKey: orderingKey,
		DedupKey:    dedupKey,
		Body:        body,
		Status:      sync.MessageStatusPending,
		EnqueuedAt:  now,
		UpdatedAt:   now,
	}

	result := q.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "dedup_key"}},
			DoNothing: true,
		}).
		Create(model)
	if result.Error != nil {
		return uuid.Nil, fmt.Errorf("enqueue message: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		// Duplicate within the dedup window.
		return uuid.Nil, nil
	}
	return model.ID, nil
}

// Dequeue claims the oldest deliverable message. A message is deliverable
// when it is pending (or its lease expired), its backoff delay has elapsed,
// and no earlier message with the same ordering key is still unfinished.
func (q *GormQueue) Dequeue(ctx context.Context) (*sync.Message, error) {
	now := q.now()

	var candidates []messageModel
	err := q.db.WithContext(ctx).
		Where("(status = ? AND (not_before IS NULL OR not_before <= ?))"+
			" OR (status = ? AND lease_expires_at <= ?)",
			sync.MessageStatusPending, now,
			sync.MessageStatusInflight, now).
		Order("enqueued_at ASC, id ASC").
		Limit(claimBatchSize).
		Find(&candidates).Error
	if err != nil {
		return nil, fmt.Errorf("scan queue candidates: %w", err)
	}

	seenKeys := make(map[string]struct{}, len(candidates))
	for i := range candidates {
		c := &candidates[i]
		if _, seen := seenKeys[c.OrderingKey]; seen {
			continue
		}
		seenKeys[c.OrderingKey] = struct{}{}

		blocked, err := q.orderingKeyBlocked(ctx, c, now)
		if err != nil {
			return nil, err
		}
		if blocked {
			continue
		}

		claimed, err := q.tryClaim(ctx, c, now)
		if err != nil {
			return nil, err
		}
		if claimed != nil {
			return claimed, nil
		}
		// Lost the claim race; another worker owns this key now.
	}
	return nil, nil
}

// orderingKeyBlocked reports whether an earlier unfinished message for the
// candidate's ordering key exists (inflight with a live lease, or pending
// ahead of the candidate).
func (q *GormQueue) orderingKeyBlocked(ctx context.Context, c *messageModel, now time.Time) (bool, error) {
	var count int64
	err := q.db.WithContext(ctx).
		Model(&messageModel{}).
		Where("ordering_key = ? AND id <> ?", c.OrderingKey, c.ID).
		Where("(status = ? AND lease_expires_at > ?) OR (status IN ? AND enqueued_at < ?)",
			sync.MessageStatusInflight, now,
			[]sync.MessageStatus{sync.MessageStatusPending, sync.MessageStatusInflight}, c.EnqueuedAt).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("check ordering key: %w", err)
	}
	return count > 0, nil
}

// tryClaim performs the optimistic claim. The delivery count acts as the
// optimistic token: a concurrent claim bumps it and our guarded update
// matches zero rows.
func (q *GormQueue) tryClaim(ctx context.Context, c *messageModel, now time.Time) (*sync.Message, error) {
	lease := now.Add(q.cfg.LeaseDuration)
	result := q.db.WithContext(ctx).
		Model(&messageModel{}).
		Where("id = ? AND status = ? AND delivery_count = ?", c.ID, c.Status, c.DeliveryCount).
		Updates(map[string]any{
			"status":           sync.MessageStatusInflight,
			"delivery_count":   c.DeliveryCount + 1,
			"lease_expires_at": lease,
			"not_before":       nil,
			"updated_at":       now,
		})
	if result.Error != nil {
		return nil, fmt.Errorf("claim message: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, nil
	}

	c.Status = sync.MessageStatusInflight
	c.DeliveryCount++
	c.LeaseExpiresAt = &lease
	c.NotBefore = nil
	c.UpdatedAt = now
	return c.ToDomain(), nil
}

// Ack marks a claimed message as completed.
func (q *GormQueue) Ack(ctx context.Context, msg *sync.Message) error {
	result := q.db.WithContext(ctx).
		Model(&messageModel{}).
		Where("id = ? AND status = ?", msg.ID, sync.MessageStatusInflight).
		Updates(map[string]any{
			"status":           sync.MessageStatusCompleted,
			"lease_expires_at": nil,
			"updated_at":       q.now(),
		})
	if result.Error != nil {
		return fmt.Errorf("ack message: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("ack message %s: not inflight", msg.ID)
	}
	msg.Status = sync.MessageStatusCompleted
	return nil
}

// Nack releases a claimed message for redelivery with exponential backoff,
// dead-lettering it once the delivery budget is spent.
func (q *GormQueue) Nack(ctx context.Context, msg *sync.Message, reason string) error {
	msg.MarkFailed(reason, q.cfg.MaxDeliveries)

	result := q.db.WithContext(ctx).
		Model(&messageModel{}).
		Where("id = ? AND status = ?", msg.ID, sync.MessageStatusInflight).
		Updates(map[string]any{
			"status":           msg.Status,
			"last_error":       msg.LastError,
			"lease_expires_at": nil,
			"not_before":       msg.NotBefore,
			"updated_at":       q.now(),
		})
	if result.Error != nil {
		return fmt.Errorf("nack message: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("nack message %s: not inflight", msg.ID)
	}
	return nil
}

// FindDead retrieves dead-lettered messages with pagination.
func (q *GormQueue) FindDead(ctx context.Context, page, pageSize int) ([]*sync.Message, int64, error) {
	var total int64
	if err := q.db.WithContext(ctx).
		Model(&messageModel{}).
		Where("status = ?", sync.MessageStatusDead).
		Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var models []messageModel
	offset := (page - 1) * pageSize
	if err := q.db.WithContext(ctx).
		Where("status = ?", sync.MessageStatusDead).
		Order("updated_at DESC").
		Offset(offset).
		Limit(pageSize).
		Find(&models).Error; err != nil {
		return nil, 0, err
	}

	messages := make([]*sync.Message, len(models))
	for i := range models {
		messages[i] = models[i].ToDomain()
	}
	return messages, total, nil
}

// Requeue returns a dead-lettered message to PENDING with a fresh delivery
// budget.
func (q *GormQueue) Requeue(ctx context.Context, id uuid.UUID) error {
	var model messageModel
	if err := q.db.WithContext(ctx).Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("requeue %s: message not found", id)
		}
		return err
	}

	msg := model.ToDomain()
	if err := msg.ResetForRetry(); err != nil {
		return fmt.Errorf("requeue %s: %w", id, err)
	}

	return q.db.WithContext(ctx).
		Model(&messageModel{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":           msg.Status,
			"delivery_count":   0,
			"last_error":       "",
			"not_before":       nil,
			"lease_expires_at": nil,
			"updated_at":       q.now(),
		}).Error
}

// CountByStatus returns the number of messages in each status.
func (q *GormQueue) CountByStatus(ctx context.Context) (map[sync.MessageStatus]int64, error) {
	type statusCount struct {
		Status sync.MessageStatus
		Count  int64
	}

	var results []statusCount
	err := q.db.WithContext(ctx).
		Model(&messageModel{}).
		Select("status, count(*) as count").
		Group("status").
		Scan(&results).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[sync.MessageStatus]int64)
	for _, r := range results {
		counts[r.Status] = r.Count
	}
	return counts, nil
}

// DeleteCompletedOlderThan removes completed messages past the dedup window,
// which is what allows a dedup key to be reused later.
func (q *GormQueue) DeleteCompletedOlderThan(ctx context.Context, before time.Time) (int64, error) {
	result := q.db.WithContext(ctx).
		Where("status = ? AND updated_at < ?", sync.MessageStatusCompleted, before).
		Delete(&messageModel{})
	return result.RowsAffected, result.Error
}

// Ensure GormQueue implements the queue contracts
var (
	_ sync.Queue           = (*GormQueue)(nil)
	_ sync.DeadLetterStore = (*GormQueue)(nil)
)
