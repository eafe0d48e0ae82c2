package certificates

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/certtrack-backend/pkg/db/models"
	"github.com/angelmondragon/certtrack-backend/pkg/enums"
)

// IssueInput carries the physical fields required to issue an available
// certificate. Every field is mandatory; Attested confirms the declaration
// printed on the paper form.
type IssueInput struct {
	AES              string
	CountryOfOrigin  string
	DateOfIssue      time.Time
	DateOfExpiry     time.Time
	ShippedValue     decimal.Decimal
	Exporter         string
	ExporterAddress  string
	NumberOfParcels  int
	Consignee        string
	ConsigneeAddress string
	CaratWeight      decimal.Decimal
	HarmonizedCodeID uuid.UUID
	PortOfExportID   uuid.UUID
	Attested         bool
}

// StatusUpdateInput advances a certificate to the single legal next status.
type StatusUpdateInput struct {
	NextStatus enums.CertificateStatus
	Date       time.Time
}

// VoidInput voids a certificate. ReasonID selects a configured reason; leave
// it nil for "Other", which makes Notes mandatory.
type VoidInput struct {
	ReasonID *uuid.UUID
	Notes    string
}

// VoidResult reports the outcome of a void request. AlreadyVoid is a warning:
// the certificate was untouched because it was voided earlier.
type VoidResult struct {
	Certificate *models.Certificate
	AlreadyVoid bool
}

// SearchParams filters the certificate listing. VoidOnly narrows results to
// voided paper and suppresses the default status filter.
type SearchParams struct {
	Statuses     []enums.CertificateStatus
	NumberPrefix string
	LicenseeID   *uuid.UUID
	IssuedFrom   *time.Time
	IssuedTo     *time.Time
	SoldFrom     *time.Time
	SoldTo       *time.Time
	VoidOnly     bool
	Limit        int
	Offset       int
}

// SearchResult is a page of matching certificates.
type SearchResult struct {
	Items  []models.Certificate
	Total  int64
	Limit  int
	Offset int
}
