package certificates

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/certtrack-backend/pkg/db/models"
	"github.com/angelmondragon/certtrack-backend/pkg/enums"
)

// Repository exposes certificate persistence operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a certificate repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// FindByNumber loads a certificate by its public number with display
// associations preloaded.
func (r *Repository) FindByNumber(ctx context.Context, number int) (*models.Certificate, error) {
	var row models.Certificate
	err := r.db.WithContext(ctx).
		Preload("Licensee").
		Preload("HSCode").
		Preload("PortOfExport").
		Where("number = ?", number).
		First(&row).Error
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// MaxNumber returns the highest allocated certificate number, zero when none.
func (r *Repository) MaxNumber(ctx context.Context) (int, error) {
	var max *int
	err := r.db.WithContext(ctx).
		Model(&models.Certificate{}).
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

// ExistingNumbers returns which of the candidate numbers are already allocated.
func (r *Repository) ExistingNumbers(ctx context.Context, numbers []int) ([]int, error) {
	var existing []int
	err := r.db.WithContext(ctx).
		Model(&models.Certificate{}).
		Where("number IN ?", numbers).
		Pluck("number", &existing).Error
	if err != nil {
		return nil, err
	}
	return existing, nil
}

// Save persists the full certificate row using the supplied connection, which
// may be a transaction.
func (r *Repository) Save(ctx context.Context, tx *gorm.DB, cert *models.Certificate) error {
	conn := tx
	if conn == nil {
		conn = r.db
	}
	return conn.WithContext(ctx).Save(cert).Error
}

// BulkCreate inserts a batch of certificates inside the supplied transaction.
func (r *Repository) BulkCreate(ctx context.Context, tx *gorm.DB, certs []models.Certificate) error {
	conn := tx
	if conn == nil {
		conn = r.db
	}
	return conn.WithContext(ctx).Create(&certs).Error
}

// searchQuery is the repository-level search filter built by the service.
type searchQuery struct {
	statuses        []enums.CertificateStatus
	numberPrefix    string
	licenseeID      *uuid.UUID
	licenseeScope   []uuid.UUID
	issuedFrom      *string
	issuedTo        *string
	dateOfSaleFrom  *string
	dateOfSaleTo    *string
	limit           int
	offset          int
	includeVoidOnly bool
}

// Search lists certificates matching the filter ordered by number.
func (r *Repository) Search(ctx context.Context, opts searchQuery) ([]models.Certificate, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Certificate{})

	if len(opts.statuses) > 0 {
		query = query.Where("status IN ?", opts.statuses)
	}
	if opts.includeVoidOnly {
		query = query.Where("void = TRUE")
	}
	if opts.numberPrefix != "" {
		query = query.Where("CAST(number AS TEXT) LIKE ?", opts.numberPrefix+"%")
	}
	if opts.licenseeID != nil {
		query = query.Where("licensee_id = ?", *opts.licenseeID)
	}
	if opts.licenseeScope != nil {
		query = query.Where("licensee_id IN ?", opts.licenseeScope)
	}
	if opts.issuedFrom != nil {
		query = query.Where("date_of_issue >= ?", *opts.issuedFrom)
	}
	if opts.issuedTo != nil {
		query = query.Where("date_of_issue <= ?", *opts.issuedTo)
	}
	if opts.dateOfSaleFrom != nil {
		query = query.Where("date_of_sale >= ?", *opts.dateOfSaleFrom)
	}
	if opts.dateOfSaleTo != nil {
		query = query.Where("date_of_sale <= ?", *opts.dateOfSaleTo)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	// Display associations feed both the listing and the CSV export.
	query = query.
		Preload("Licensee").
		Preload("HSCode").
		Preload("PortOfExport").
		Order("number ASC")
	if opts.limit > 0 {
		query = query.Limit(opts.limit)
	}
	if opts.offset > 0 {
		query = query.Offset(opts.offset)
	}

	var rows []models.Certificate
	if err := query.Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

// FindVoidReason loads a configured void reason by id.
func (r *Repository) FindVoidReason(ctx context.Context, id uuid.UUID) (*models.VoidReason, error) {
	var row models.VoidReason
	if err := r.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &row, nil
}
