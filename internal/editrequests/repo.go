package editrequests

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/certtrack-backend/pkg/db/models"
	"github.com/angelmondragon/certtrack-backend/pkg/enums"
)

// Repository exposes edit request persistence.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs an edit request repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// FindByID loads an edit request with its certificate and requester preloaded.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.EditRequest, error) {
	var row models.EditRequest
	err := r.db.WithContext(ctx).
		Preload("Certificate").
		Preload("Certificate.Licensee").
		Preload("Contact").
		First(&row, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// HasPending reports whether the certificate already has a pending request.
func (r *Repository) HasPending(ctx context.Context, certificateID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.EditRequest{}).
		Where("certificate_id = ? AND status = ?", certificateID, enums.EditRequestStatusPending).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// Create inserts a new edit request.
func (r *Repository) Create(ctx context.Context, row *models.EditRequest) error {
	return r.db.WithContext(ctx).Create(row).Error
}

// Save persists review outcome changes using the supplied connection, which
// may be a transaction.
func (r *Repository) Save(ctx context.Context, tx *gorm.DB, row *models.EditRequest) error {
	conn := tx
	if conn == nil {
		conn = r.db
	}
	return conn.WithContext(ctx).Save(row).Error
}
