package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/dealbridge/backend/internal/domain/sync"
)

// conflictModel is the persistence model for conflict records.
type conflictModel struct {
	ID              uuid.UUID           `gorm:"type:uuid;primaryKey"`
	ObjectID        string              `gorm:"type:varchar(255);not null;index:idx_conflict_object"`
	Field           string              `gorm:"type:varchar(255);not null"`
	LocalValue      string              `gorm:"type:text"`
	LocalTimestamp  time.Time           `gorm:"not null"`
	RemoteValue     string              `gorm:"type:text"`
	RemoteTimestamp time.Time           `gorm:"not null"`
	LastSyncedAt    time.Time           `gorm:"not null"`
	DetectedAt      time.Time           `gorm:"not null"`
	Status          sync.ConflictStatus `gorm:"type:varchar(20);not null;default:PENDING;index:idx_conflict_status"`
	Winner          sync.Winner         `gorm:"type:varchar(10)"`
	ResolvedBy      string              `gorm:"type:varchar(255)"`
	ResolvedAt      *time.Time
}

// TableName returns the table name for GORM
func (conflictModel) TableName() string {
	return "sync_conflicts"
}

// ToDomain converts the persistence model to a domain Conflict
func (m *conflictModel) ToDomain() *sync.Conflict {
	return &sync.Conflict{
		ID:              m.ID,
		ObjectID:        m.ObjectID,
		Field:           m.Field,
		LocalValue:      m.LocalValue,
		LocalTimestamp:  m.LocalTimestamp,
		RemoteValue:     m.RemoteValue,
		RemoteTimestamp: m.RemoteTimestamp,
		LastSyncedAt:    m.LastSyncedAt,
		DetectedAt:      m.DetectedAt,
		Status:          m.Status,
		Winner:          m.Winner,
		ResolvedBy:      m.ResolvedBy,
		ResolvedAt:      m.ResolvedAt,
	}
}

// fromDomain populates the persistence model from a domain Conflict
func (m *conflictModel) fromDomain(c *sync.Conflict) {
	m.ID = c.ID
	m.ObjectID = c.ObjectID
	m.Field = c.Field
	m.LocalValue = c.LocalValue
	m.LocalTimestamp = c.LocalTimestamp
	m.RemoteValue = c.RemoteValue
	m.RemoteTimestamp = c.RemoteTimestamp
	m.LastSyncedAt = c.LastSyncedAt
	m.DetectedAt = c.DetectedAt
	m.Status = c.Status
	m.Winner = c.Winner
	m.ResolvedBy = c.ResolvedBy
	m.ResolvedAt = c.ResolvedAt
}

// MigrateConflicts creates or updates the conflict schema.
func MigrateConflicts(db *gorm.DB) error {
	return db.AutoMigrate(&conflictModel{})
}

// GormConflictRepository implements ConflictRepository using GORM
type GormConflictRepository struct {
	db *gorm.DB
}

// NewGormConflictRepository creates a new GormConflictRepository
func NewGormConflictRepository(db *gorm.DB) *GormConflictRepository {
	return &GormConflictRepository{db: db}
}

// Save persists one or more conflict records.
func (r *GormConflictRepository) Save(ctx context.Context, conflicts ...*sync.Conflict) error {
	if len(conflicts) == 0 {
		return nil
	}
	models := make([]conflictModel, len(conflicts))
	for i, c := range conflicts {
		models[i].fromDomain(c)
	}
	return r.db.WithContext(ctx).Create(&models).Error
}

// FindPending lists unresolved conflicts, oldest first.
func (r *GormConflictRepository) FindPending(ctx context.Context, limit int) ([]*sync.Conflict, error) {
	var models []conflictModel
	query := r.db.WithContext(ctx).
		Where("status = ?", sync.ConflictStatusPending).
		Order("detected_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}

	conflicts := make([]*sync.Conflict, len(models))
	for i := range models {
		conflicts[i] = models[i].ToDomain()
	}
	return conflicts, nil
}

// FindByID finds a conflict by its ID.
func (r *GormConflictRepository) FindByID(ctx context.Context, id uuid.UUID) (*sync.Conflict, error) {
	var model conflictModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, sync.ErrConflictNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// Update persists changes to an existing conflict record.
func (r *GormConflictRepository) Update(ctx context.Context, conflict *sync.Conflict) error {
	var model conflictModel
	model.fromDomain(conflict)
	result := r.db.WithContext(ctx).Save(&model)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return sync.ErrConflictNotFound
	}
	return nil
}

// Ensure GormConflictRepository implements ConflictRepository
var _ sync.ConflictRepository = (*GormConflictRepository)(nil)
