package receipts

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/certtrack-backend/pkg/db/models"
)

// Repository exposes receipt persistence.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a receipt repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// FindByID loads a single receipt.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Receipt, error) {
	var row models.Receipt
	if err := r.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

// MaxNumber returns the highest receipt number issued so far, or zero when no
// receipts exist.
func (r *Repository) MaxNumber(ctx context.Context) (int, error) {
	var max *int
	err := r.db.WithContext(ctx).
		Model(&models.Receipt{}).
		Select("MAX(number)").
		Scan(&max).Error
	if err != nil {
		return 0, err
	}
	if max == nil {
		return 0, nil
	}
	return *max, nil
}

// Create inserts a receipt using the supplied connection, which may be a
// transaction.
func (r *Repository) Create(ctx context.Context, tx *gorm.DB, receipt *models.Receipt) error {
	conn := tx
	if conn == nil {
		conn = r.db
	}
	return conn.WithContext(ctx).Create(receipt).Error
}
