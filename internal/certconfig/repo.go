package certconfig

import (
	"context"

	"gorm.io/gorm"

	"github.com/angelmondragon/certtrack-backend/pkg/db/models"
)

// Repository exposes persistence for the singleton certificate configuration.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a config repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Find loads the singleton configuration row.
func (r *Repository) Find(ctx context.Context) (*models.CertificateConfig, error) {
	var row models.CertificateConfig
	if err := r.db.WithContext(ctx).First(&row, models.CertificateConfigID).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

// Save persists changes to the singleton configuration row.
func (r *Repository) Save(ctx context.Context, cfg *models.CertificateConfig) error {
	cfg.ID = models.CertificateConfigID
	return r.db.WithContext(ctx).Save(cfg).Error
}
