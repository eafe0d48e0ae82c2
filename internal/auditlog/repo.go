package auditlog

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/certtrack-backend/pkg/db/models"
)

// Repository exposes change log persistence.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a change log repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Insert appends a change log row using the supplied connection, which may be
// a transaction so the row commits atomically with the mutation it records.
func (r *Repository) Insert(ctx context.Context, tx *gorm.DB, row *models.ChangeLog) error {
	conn := tx
	if conn == nil {
		conn = r.db
	}
	return conn.WithContext(ctx).Create(row).Error
}

// LatestAsOf returns the most recent snapshot at or before the given time.
func (r *Repository) LatestAsOf(ctx context.Context, entityType string, entityID uuid.UUID, at time.Time) (*models.ChangeLog, error) {
	var row models.ChangeLog
	err := r.db.WithContext(ctx).
		Where("entity_type = ? AND entity_id = ? AND recorded_at <= ?", entityType, entityID, at).
		Order("recorded_at DESC").
		First(&row).Error
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// History lists snapshots for an entity, newest first.
func (r *Repository) History(ctx context.Context, entityType string, entityID uuid.UUID, limit int) ([]models.ChangeLog, error) {
	query := r.db.WithContext(ctx).
		Where("entity_type = ? AND entity_id = ?", entityType, entityID).
		Order("recorded_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	var rows []models.ChangeLog
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
