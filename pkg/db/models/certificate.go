package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/certtrack-backend/pkg/enums"
)

// Certificate is the core tracked document. Physical fields mirror what is
// printed on the paper certificate; workflow fields drive the
// available → prepared → shipped → delivered lifecycle.
type Certificate struct {
	ID uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	// Number is the public identity printed on the certificate, displayed as US{number}.
	Number int `gorm:"column:number;not null;unique"`

	// Physical certificate fields. All nullable until the certificate is issued.
	AES             string           `gorm:"column:aes"`
	CountryOfOrigin string           `gorm:"column:country_of_origin"`
	DateOfIssue     *time.Time       `gorm:"column:date_of_issue;type:date"`
	DateOfExpiry    *time.Time       `gorm:"column:date_of_expiry;type:date"`
	ShippedValue    *decimal.Decimal `gorm:"column:shipped_value;type:numeric(20,2)"`
	Exporter        string           `gorm:"column:exporter"`
	ExporterAddress string           `gorm:"column:exporter_address"`
	NumberOfParcels *int             `gorm:"column:number_of_parcels"`
	Consignee       string           `gorm:"column:consignee"`
	ConsigneeAddr   string           `gorm:"column:consignee_address"`
	CaratWeight     *decimal.Decimal `gorm:"column:carat_weight;type:numeric(20,2)"`
	HarmonizedCode  *uuid.UUID       `gorm:"column:harmonized_code_id;type:uuid"`
	HSCode          *HSCode          `gorm:"foreignKey:HarmonizedCode"`

	// Workflow fields.
	Status         enums.CertificateStatus `gorm:"column:status;type:certificate_status;not null;default:'available'"`
	LicenseeID     *uuid.UUID              `gorm:"column:licensee_id;type:uuid"`
	Licensee       *Licensee               `gorm:"foreignKey:LicenseeID"`
	AssignorID     *uuid.UUID              `gorm:"column:assignor_id;type:uuid"`
	PortOfExportID *uuid.UUID              `gorm:"column:port_of_export_id;type:uuid"`
	PortOfExport   *PortOfExport           `gorm:"foreignKey:PortOfExportID"`
	DateOfSale     *time.Time              `gorm:"column:date_of_sale;type:date"`
	PaymentMethod  enums.PaymentMethod     `gorm:"column:payment_method;type:payment_method"`
	Void           bool                    `gorm:"column:void;not null;default:false"`
	Notes          string                  `gorm:"column:notes"`
	Attested       bool                    `gorm:"column:attested;not null;default:false"`
	DateOfShipment *time.Time              `gorm:"column:date_of_shipment;type:date"`
	DateOfDelivery *time.Time              `gorm:"column:date_of_delivery;type:date"`
	DateVoided     *time.Time              `gorm:"column:date_voided;type:date"`
	LastModified   time.Time               `gorm:"column:last_modified;autoUpdateTime"`
	CreatedAt      time.Time               `gorm:"column:created_at;autoCreateTime"`
}

// DisplayName is the certificate identity shown to users and on receipts.
func (c Certificate) DisplayName() string {
	return fmt.Sprintf("US%d", c.Number)
}

// StatusCanBeUpdated reports whether users may advance this certificate's status.
func (c Certificate) StatusCanBeUpdated() bool {
	return c.Status.IsModifiable()
}

// NextStatus returns the only legal forward transition, or false when none exists.
func (c Certificate) NextStatus() (enums.CertificateStatus, bool) {
	return c.Status.Next()
}

// LicenseeEditable reports whether the certificate is still awaiting issue,
// meaning a licensee contact may complete its physical fields.
func (c Certificate) LicenseeEditable() bool {
	return c.Status == enums.CertificateStatusAvailable
}
