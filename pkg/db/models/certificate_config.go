package models

import (
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

// CertificateConfigID is the fixed primary key of the singleton config row.
const CertificateConfigID = 1

// CertificateConfig is the singleton configuration row consumed by expiry
// validation, price calculation, and the edit-request feature gate.
type CertificateConfig struct {
	ID           int             `gorm:"column:id;primaryKey"`
	DaysToExpiry int             `gorm:"column:days_to_expiry;not null;default:60"`
	Price        decimal.Decimal `gorm:"column:price;type:numeric(10,2);not null;default:20.00"`
	// KPCountries holds the ISO codes selectable as Country of Origin.
	KPCountries  pq.StringArray `gorm:"column:kp_countries;type:text[];not null;default:ARRAY[]::text[]"`
	EditRequests bool           `gorm:"column:edit_requests;not null;default:false"`
	UpdatedAt    time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName keeps the singular table name for the singleton row.
func (CertificateConfig) TableName() string {
	return "certificate_config"
}
