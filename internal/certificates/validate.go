package certificates

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/certtrack-backend/internal/certconfig"
	"github.com/angelmondragon/certtrack-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/certtrack-backend/pkg/errors"
)

// aesPattern is the US export declaration identifier format.
var aesPattern = regexp.MustCompile(`^X\d{14}$`)

func validateIssueInput(input IssueInput, cfg *models.CertificateConfig) error {
	var problems []string
	if !input.Attested {
		problems = append(problems, "attestation is required")
	}
	problems = append(problems, fieldProblems(certFromIssueInput(input), cfg)...)

	if len(problems) > 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "certificate fields failed validation").
			WithDetails(problems)
	}
	return nil
}

// ValidateFields checks the physical field values on a certificate against
// the configured rules. The edit request flow runs it over the merged result
// of a proposed change, so approvals can never copy invalid values onto the
// live certificate.
func ValidateFields(cert *models.Certificate, cfg *models.CertificateConfig) error {
	if problems := fieldProblems(cert, cfg); len(problems) > 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "certificate fields failed validation").
			WithDetails(problems)
	}
	return nil
}

func certFromIssueInput(input IssueInput) *models.Certificate {
	cert := &models.Certificate{
		AES:             input.AES,
		CountryOfOrigin: input.CountryOfOrigin,
		Exporter:        input.Exporter,
		ExporterAddress: input.ExporterAddress,
		Consignee:       input.Consignee,
		ConsigneeAddr:   input.ConsigneeAddress,
	}
	if !input.DateOfIssue.IsZero() {
		issue := dateOnly(input.DateOfIssue)
		cert.DateOfIssue = &issue
	}
	if !input.DateOfExpiry.IsZero() {
		expiry := dateOnly(input.DateOfExpiry)
		cert.DateOfExpiry = &expiry
	}
	shipped := input.ShippedValue
	cert.ShippedValue = &shipped
	carat := input.CaratWeight
	cert.CaratWeight = &carat
	parcels := input.NumberOfParcels
	cert.NumberOfParcels = &parcels
	if input.HarmonizedCodeID != uuid.Nil {
		hs := input.HarmonizedCodeID
		cert.HarmonizedCode = &hs
	}
	if input.PortOfExportID != uuid.Nil {
		port := input.PortOfExportID
		cert.PortOfExportID = &port
	}
	return cert
}

func fieldProblems(cert *models.Certificate, cfg *models.CertificateConfig) []string {
	var problems []string

	if !aesPattern.MatchString(cert.AES) {
		problems = append(problems, "aes must match X followed by 14 digits")
	}
	if !countryAllowed(cert.CountryOfOrigin, cfg) {
		problems = append(problems, "country_of_origin is not in the configured country list")
	}
	if cert.DateOfIssue == nil {
		problems = append(problems, "date_of_issue is required")
	}
	if cert.DateOfExpiry == nil {
		problems = append(problems, "date_of_expiry is required")
	}
	if cert.DateOfIssue != nil && cert.DateOfExpiry != nil {
		expected := dateOnly(*cert.DateOfIssue).AddDate(0, 0, cfg.DaysToExpiry)
		if !dateOnly(*cert.DateOfExpiry).Equal(expected) {
			problems = append(problems, fmt.Sprintf("date_of_expiry must be exactly %d days after date_of_issue", cfg.DaysToExpiry))
		}
	}
	if cert.ShippedValue == nil || !cert.ShippedValue.IsPositive() {
		problems = append(problems, "shipped_value must be greater than zero")
	}
	if cert.CaratWeight == nil || !cert.CaratWeight.IsPositive() {
		problems = append(problems, "carat_weight must be greater than zero")
	}
	if strings.TrimSpace(cert.Exporter) == "" {
		problems = append(problems, "exporter is required")
	}
	if strings.TrimSpace(cert.Consignee) == "" {
		problems = append(problems, "consignee is required")
	}
	if cert.NumberOfParcels == nil || *cert.NumberOfParcels <= 0 {
		problems = append(problems, "number_of_parcels must be greater than zero")
	}
	if cert.HarmonizedCode == nil || *cert.HarmonizedCode == uuid.Nil {
		problems = append(problems, "harmonized_code is required")
	}
	if cert.PortOfExportID == nil || *cert.PortOfExportID == uuid.Nil {
		problems = append(problems, "port_of_export is required")
	}
	if !addressNamesKPCountry(cert.ExporterAddress, cfg) {
		problems = append(problems, "exporter_address must include a participant country name")
	}
	if !addressNamesKPCountry(cert.ConsigneeAddr, cfg) {
		problems = append(problems, "consignee_address must include a participant country name")
	}
	return problems
}

func countryAllowed(code string, cfg *models.CertificateConfig) bool {
	if code == certconfig.MixedOriginCode {
		return true
	}
	for _, allowed := range cfg.KPCountries {
		if allowed == code {
			return true
		}
	}
	return false
}

// addressNamesKPCountry checks that the free-text address names one of the
// configured participant countries, matching case-insensitively.
func addressNamesKPCountry(address string, cfg *models.CertificateConfig) bool {
	if strings.TrimSpace(address) == "" {
		return false
	}
	lowered := strings.ToLower(address)
	for _, code := range cfg.KPCountries {
		name := certconfig.CountryName(code)
		if name != code && strings.Contains(lowered, strings.ToLower(name)) {
			return true
		}
	}
	return false
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
