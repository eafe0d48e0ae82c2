package certconfig

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/certtrack-backend/pkg/db/models"
)

// LookupsRepository persists the HS code, port, and void reason tables.
type LookupsRepository struct {
	db *gorm.DB
}

// NewLookupsRepository constructs a lookups repository tied to the provided GORM DB.
func NewLookupsRepository(db *gorm.DB) *LookupsRepository {
	return &LookupsRepository{db: db}
}

func (r *LookupsRepository) ListHSCodes(ctx context.Context) ([]models.HSCode, error) {
	var rows []models.HSCode
	err := r.db.WithContext(ctx).Order("sort_order ASC, value ASC").Find(&rows).Error
	return rows, err
}

func (r *LookupsRepository) ListPorts(ctx context.Context) ([]models.PortOfExport, error) {
	var rows []models.PortOfExport
	err := r.db.WithContext(ctx).Order("sort_order ASC, name ASC").Find(&rows).Error
	return rows, err
}

func (r *LookupsRepository) ListVoidReasons(ctx context.Context) ([]models.VoidReason, error) {
	var rows []models.VoidReason
	err := r.db.WithContext(ctx).Order("sort_order ASC, value ASC").Find(&rows).Error
	return rows, err
}

func (r *LookupsRepository) CreateHSCode(ctx context.Context, row *models.HSCode) error {
	return r.db.WithContext(ctx).Create(row).Error
}

func (r *LookupsRepository) CreatePort(ctx context.Context, row *models.PortOfExport) error {
	return r.db.WithContext(ctx).Create(row).Error
}

func (r *LookupsRepository) CreateVoidReason(ctx context.Context, row *models.VoidReason) error {
	return r.db.WithContext(ctx).Create(row).Error
}

func (r *LookupsRepository) DeleteHSCode(ctx context.Context, id uuid.UUID) error {
	return deleteByID[models.HSCode](ctx, r.db, id)
}

func (r *LookupsRepository) DeletePort(ctx context.Context, id uuid.UUID) error {
	return deleteByID[models.PortOfExport](ctx, r.db, id)
}

func (r *LookupsRepository) DeleteVoidReason(ctx context.Context, id uuid.UUID) error {
	return deleteByID[models.VoidReason](ctx, r.db, id)
}

func deleteByID[T any](ctx context.Context, db *gorm.DB, id uuid.UUID) error {
	var row T
	result := db.WithContext(ctx).Where("id = ?", id).Delete(&row)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
