package export

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/certtrack-backend/internal/certconfig"
	"github.com/angelmondragon/certtrack-backend/internal/certificates"
	"github.com/angelmondragon/certtrack-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/certtrack-backend/pkg/errors"
	"github.com/angelmondragon/certtrack-backend/pkg/pagination"
)

// header is the fixed export column order.
var header = []string{
	"number", "aes", "licensee", "status",
	"last_modified", "date_of_sale", "date_of_issue", "date_of_expiry",
	"date_of_shipment", "date_of_delivery", "date_voided",
	"country_of_origin", "shipped_value", "number_of_parcels", "carat_weight",
	"harmonized_code",
	"exporter", "exporter_address",
	"consignee", "consignee_address",
	"port_of_export",
	"notes",
}

type certificatesService interface {
	Search(ctx context.Context, user models.User, params certificates.SearchParams) (*certificates.SearchResult, error)
}

// Service streams filtered certificates as CSV. Access scoping is inherited
// from the certificate search, so contacts export only their own.
type Service interface {
	Export(ctx context.Context, user models.User, params certificates.SearchParams, w io.Writer) error
}

type service struct {
	certs certificatesService
}

// NewService builds the export service.
func NewService(certs certificatesService) (Service, error) {
	if certs == nil {
		return nil, fmt.Errorf("certificate service required")
	}
	return &service{certs: certs}, nil
}

func (s *service) Export(ctx context.Context, user models.User, params certificates.SearchParams, w io.Writer) error {
	out := csv.NewWriter(w)
	if err := out.Write(header); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "write csv header")
	}

	// Search clamps the limit, so page by what actually came back and stop
	// on the first short page.
	params.Limit = pagination.MaxLimit
	params.Offset = 0
	for {
		page, err := s.certs.Search(ctx, user, params)
		if err != nil {
			return err
		}
		for i := range page.Items {
			if err := out.Write(row(&page.Items[i])); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "write csv row")
			}
		}
		limit := page.Limit
		if limit <= 0 {
			limit = pagination.MaxLimit
		}
		if len(page.Items) < limit {
			break
		}
		params.Offset += len(page.Items)
	}

	out.Flush()
	if err := out.Error(); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "flush csv")
	}
	return nil
}

func row(cert *models.Certificate) []string {
	licenseeName := ""
	if cert.Licensee != nil {
		licenseeName = cert.Licensee.Name
	}
	hsCode := ""
	if cert.HSCode != nil {
		hsCode = cert.HSCode.Value
	}
	port := ""
	if cert.PortOfExport != nil {
		port = cert.PortOfExport.Name
	}
	country := ""
	if cert.CountryOfOrigin != "" {
		country = certconfig.CountryName(cert.CountryOfOrigin)
	}

	return []string{
		cert.DisplayName(),
		cert.AES,
		licenseeName,
		cert.Status.Label(),
		cert.LastModified.Format("01/02/2006 15:04:05 MST"),
		mdy(cert.DateOfSale),
		mdy(cert.DateOfIssue),
		mdy(cert.DateOfExpiry),
		mdy(cert.DateOfShipment),
		mdy(cert.DateOfDelivery),
		mdy(cert.DateVoided),
		country,
		money(cert.ShippedValue),
		number(cert.NumberOfParcels),
		money(cert.CaratWeight),
		hsCode,
		cert.Exporter,
		cert.ExporterAddress,
		cert.Consignee,
		cert.ConsigneeAddr,
		port,
		cert.Notes,
	}
}

func mdy(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("01/02/2006")
}

func money(d *decimal.Decimal) string {
	if d == nil {
		return ""
	}
	return d.StringFixed(2)
}

func number(n *int) string {
	if n == nil {
		return ""
	}
	return fmt.Sprintf("%d", *n)
}
