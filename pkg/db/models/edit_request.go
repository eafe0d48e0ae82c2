package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/certtrack-backend/pkg/enums"
)

// EditRequest captures proposed replacement values for an issued certificate.
// Only fields the requester actually changed are populated; everything else
// stays NULL so review can show current vs. proposed for touched fields only.
type EditRequest struct {
	ID            uuid.UUID    `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	CertificateID uuid.UUID    `gorm:"column:certificate_id;type:uuid;not null"`
	Certificate   *Certificate `gorm:"foreignKey:CertificateID"`
	ContactID     uuid.UUID    `gorm:"column:contact_id;type:uuid;not null"`
	Contact       *User        `gorm:"foreignKey:ContactID"`

	AES             *string          `gorm:"column:aes"`
	CountryOfOrigin *string          `gorm:"column:country_of_origin"`
	DateOfIssue     *time.Time       `gorm:"column:date_of_issue;type:date"`
	DateOfExpiry    *time.Time       `gorm:"column:date_of_expiry;type:date"`
	ShippedValue    *decimal.Decimal `gorm:"column:shipped_value;type:numeric(20,2)"`
	Exporter        *string          `gorm:"column:exporter"`
	ExporterAddress *string          `gorm:"column:exporter_address"`
	NumberOfParcels *int             `gorm:"column:number_of_parcels"`
	Consignee       *string          `gorm:"column:consignee"`
	ConsigneeAddr   *string          `gorm:"column:consignee_address"`
	CaratWeight     *decimal.Decimal `gorm:"column:carat_weight;type:numeric(20,2)"`
	HarmonizedCode  *uuid.UUID       `gorm:"column:harmonized_code_id;type:uuid"`

	Status        enums.EditRequestStatus `gorm:"column:status;type:edit_request_status;not null;default:'pending'"`
	DateRequested time.Time               `gorm:"column:date_requested;autoCreateTime"`
	DateReviewed  *time.Time              `gorm:"column:date_reviewed"`
	ReviewedByID  *uuid.UUID              `gorm:"column:reviewed_by_id;type:uuid"`
}

// Reviewed reports whether this request has already been adjudicated.
func (e EditRequest) Reviewed() bool {
	return e.Status != enums.EditRequestStatusPending
}
