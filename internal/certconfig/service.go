package certconfig

import (
	"context"
	"fmt"
	"strings"

	"github.com/biter777/countries"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/certtrack-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/certtrack-backend/pkg/errors"
)

// MixedOriginCode is the sentinel country-of-origin value for parcels
// aggregating goods from multiple participant countries.
const MixedOriginCode = "**"

// MixedOriginLabel is the display name for the sentinel.
const MixedOriginLabel = "Mixed Origin"

type configRepository interface {
	Find(ctx context.Context) (*models.CertificateConfig, error)
	Save(ctx context.Context, cfg *models.CertificateConfig) error
}

// CountryOption pairs a selectable code with its display name.
type CountryOption struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// UpdateInput carries admin changes to the singleton configuration.
type UpdateInput struct {
	DaysToExpiry *int
	Price        *decimal.Decimal
	KPCountries  []string
	EditRequests *bool
}

// Service exposes the singleton certificate configuration.
type Service interface {
	Get(ctx context.Context) (*models.CertificateConfig, error)
	Update(ctx context.Context, input UpdateInput) (*models.CertificateConfig, error)
	CountryOptions(ctx context.Context) ([]CountryOption, error)
	IsAllowedCountry(ctx context.Context, code string) (bool, error)
}

type service struct {
	repo configRepository
}

// NewService builds the config service.
func NewService(repo configRepository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("config repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) Get(ctx context.Context) (*models.CertificateConfig, error) {
	row, err := s.repo.Find(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load certificate config")
	}
	return row, nil
}

func (s *service) Update(ctx context.Context, input UpdateInput) (*models.CertificateConfig, error) {
	row, err := s.repo.Find(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load certificate config")
	}

	if input.DaysToExpiry != nil {
		if *input.DaysToExpiry <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "days_to_expiry must be positive")
		}
		row.DaysToExpiry = *input.DaysToExpiry
	}
	if input.Price != nil {
		if input.Price.IsNegative() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "price cannot be negative")
		}
		row.Price = *input.Price
	}
	if input.KPCountries != nil {
		codes, err := normalizeCountryCodes(input.KPCountries)
		if err != nil {
			return nil, err
		}
		row.KPCountries = codes
	}
	if input.EditRequests != nil {
		row.EditRequests = *input.EditRequests
	}

	if err := s.repo.Save(ctx, row); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save certificate config")
	}
	return row, nil
}

func (s *service) CountryOptions(ctx context.Context) ([]CountryOption, error) {
	row, err := s.repo.Find(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load certificate config")
	}

	options := make([]CountryOption, 0, len(row.KPCountries)+1)
	for _, code := range row.KPCountries {
		options = append(options, CountryOption{Code: code, Name: CountryName(code)})
	}
	options = append(options, CountryOption{Code: MixedOriginCode, Name: MixedOriginLabel})
	return options, nil
}

func (s *service) IsAllowedCountry(ctx context.Context, code string) (bool, error) {
	if code == MixedOriginCode {
		return true, nil
	}
	row, err := s.repo.Find(ctx)
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load certificate config")
	}
	for _, allowed := range row.KPCountries {
		if allowed == code {
			return true, nil
		}
	}
	return false, nil
}

// CountryName resolves a stored code to its display name. The sentinel code
// maps to the Mixed Origin label; unknown codes fall back to the raw value.
func CountryName(code string) string {
	if code == MixedOriginCode {
		return MixedOriginLabel
	}
	country := countries.ByName(code)
	if country == countries.Unknown {
		return code
	}
	return country.String()
}

func normalizeCountryCodes(raw []string) ([]string, error) {
	seen := map[string]bool{}
	codes := make([]string, 0, len(raw))
	for _, value := range raw {
		code := strings.ToUpper(strings.TrimSpace(value))
		if code == "" {
			continue
		}
		if code != MixedOriginCode && countries.ByName(code) == countries.Unknown {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown country code %q", code))
		}
		if seen[code] {
			continue
		}
		seen[code] = true
		codes = append(codes, code)
	}
	return codes, nil
}
