package licensees

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/certtrack-backend/pkg/db/models"
)

// Repository exposes licensee and address book persistence.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a licensee repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// FindByID loads a licensee with its address book and contacts preloaded.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Licensee, error) {
	var row models.Licensee
	err := r.db.WithContext(ctx).
		Preload("Addresses", func(db *gorm.DB) *gorm.DB {
			return db.Order("name ASC")
		}).
		Preload("Contacts").
		First(&row, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// FindAddress loads one address book entry.
func (r *Repository) FindAddress(ctx context.Context, id uuid.UUID) (*models.LicenseeAddress, error) {
	var row models.LicenseeAddress
	if err := r.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

// CreateAddress inserts an address book entry.
func (r *Repository) CreateAddress(ctx context.Context, row *models.LicenseeAddress) error {
	return r.db.WithContext(ctx).Create(row).Error
}

// SaveAddress persists changes to an address book entry.
func (r *Repository) SaveAddress(ctx context.Context, row *models.LicenseeAddress) error {
	return r.db.WithContext(ctx).Save(row).Error
}

// DeleteAddress removes an address book entry.
func (r *Repository) DeleteAddress(ctx context.Context, row *models.LicenseeAddress) error {
	return r.db.WithContext(ctx).Delete(row).Error
}

// AddressInUse reports whether any certificate still references this address
// book entry by its rendered exporter text. Used to protect deletions.
func (r *Repository) AddressInUse(ctx context.Context, row *models.LicenseeAddress) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Certificate{}).
		Where("licensee_id = ? AND exporter = ?", row.LicenseeID, row.Name).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
