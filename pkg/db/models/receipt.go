package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/certtrack-backend/pkg/enums"
)

// Receipt is an immutable snapshot of a certificate-registration transaction.
// Values are copied at creation time so later licensee or price changes do not
// rewrite history.
type Receipt struct {
	ID               uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Number           int                 `gorm:"column:number;not null;unique"`
	LicenseeName     string              `gorm:"column:licensee_name;not null"`
	LicenseeAddress  string              `gorm:"column:licensee_address;not null"`
	Certificates     pq.StringArray      `gorm:"column:certificates;type:text[];not null"`
	TotalPaid        decimal.Decimal     `gorm:"column:total_paid;type:numeric(10,2);not null"`
	CertificatesSold int                 `gorm:"column:certificates_sold;not null"`
	UnitPrice        decimal.Decimal     `gorm:"column:unit_price;type:numeric(10,2);not null"`
	PaymentMethod    enums.PaymentMethod `gorm:"column:payment_method;type:payment_method;not null"`
	Contact          string              `gorm:"column:contact;not null"`
	DateSold         time.Time           `gorm:"column:date_sold;type:date;not null"`
	CreatedAt        time.Time           `gorm:"column:created_at;autoCreateTime"`
}

// CertificatesText renders the snapshot certificate list for display.
func (r Receipt) CertificatesText() string {
	return strings.Join(r.Certificates, ", ")
}
