package controllers

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/certtrack-backend/api/middleware"
	"github.com/angelmondragon/certtrack-backend/api/responses"
	"github.com/angelmondragon/certtrack-backend/api/validators"
	"github.com/angelmondragon/certtrack-backend/internal/certificates"
	"github.com/angelmondragon/certtrack-backend/internal/export"
	"github.com/angelmondragon/certtrack-backend/internal/preview"
	"github.com/angelmondragon/certtrack-backend/pkg/db/models"
	"github.com/angelmondragon/certtrack-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/certtrack-backend/pkg/errors"
	"github.com/angelmondragon/certtrack-backend/pkg/logger"
	"github.com/angelmondragon/certtrack-backend/pkg/pagination"
)

const dateLayout = "2006-01-02"

type certificateView struct {
	ID              uuid.UUID  `json:"id"`
	Number          string     `json:"number"`
	Status          string     `json:"status"`
	StatusLabel     string     `json:"status_label"`
	AES             string     `json:"aes,omitempty"`
	CountryOfOrigin string     `json:"country_of_origin,omitempty"`
	DateOfIssue     *time.Time `json:"date_of_issue,omitempty"`
	DateOfExpiry    *time.Time `json:"date_of_expiry,omitempty"`
	ShippedValue    *string    `json:"shipped_value,omitempty"`
	Exporter        string     `json:"exporter,omitempty"`
	ExporterAddress string     `json:"exporter_address,omitempty"`
	NumberOfParcels *int       `json:"number_of_parcels,omitempty"`
	Consignee       string     `json:"consignee,omitempty"`
	ConsigneeAddr   string     `json:"consignee_address,omitempty"`
	CaratWeight     *string    `json:"carat_weight,omitempty"`
	HarmonizedCode  string     `json:"harmonized_code,omitempty"`
	PortOfExport    string     `json:"port_of_export,omitempty"`
	Licensee        string     `json:"licensee,omitempty"`
	DateOfSale      *time.Time `json:"date_of_sale,omitempty"`
	DateOfShipment  *time.Time `json:"date_of_shipment,omitempty"`
	DateOfDelivery  *time.Time `json:"date_of_delivery,omitempty"`
	DateVoided      *time.Time `json:"date_voided,omitempty"`
	Void            bool       `json:"void"`
	Notes           string     `json:"notes,omitempty"`
	LastModified    time.Time  `json:"last_modified"`
}

func certificateToView(cert *models.Certificate) certificateView {
	view := certificateView{
		ID:              cert.ID,
		Number:          cert.DisplayName(),
		Status:          cert.Status.String(),
		StatusLabel:     cert.Status.Label(),
		AES:             cert.AES,
		CountryOfOrigin: cert.CountryOfOrigin,
		DateOfIssue:     cert.DateOfIssue,
		DateOfExpiry:    cert.DateOfExpiry,
		Exporter:        cert.Exporter,
		ExporterAddress: cert.ExporterAddress,
		NumberOfParcels: cert.NumberOfParcels,
		Consignee:       cert.Consignee,
		ConsigneeAddr:   cert.ConsigneeAddr,
		DateOfSale:      cert.DateOfSale,
		DateOfShipment:  cert.DateOfShipment,
		DateOfDelivery:  cert.DateOfDelivery,
		DateVoided:      cert.DateVoided,
		Void:            cert.Void,
		Notes:           cert.Notes,
		LastModified:    cert.LastModified,
	}
	if cert.ShippedValue != nil {
		v := cert.ShippedValue.StringFixed(2)
		view.ShippedValue = &v
	}
	if cert.CaratWeight != nil {
		v := cert.CaratWeight.StringFixed(2)
		view.CaratWeight = &v
	}
	if cert.HSCode != nil {
		view.HarmonizedCode = cert.HSCode.Value
	}
	if cert.PortOfExport != nil {
		view.PortOfExport = cert.PortOfExport.Name
	}
	if cert.Licensee != nil {
		view.Licensee = cert.Licensee.Name
	}
	return view
}

func searchParamsFromQuery(r *http.Request) (certificates.SearchParams, error) {
	var params certificates.SearchParams

	if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			status, err := enums.ParseCertificateStatus(strings.TrimSpace(part))
			if err != nil {
				return params, pkgerrors.New(pkgerrors.CodeValidation, "invalid status filter").
					WithDetails(map[string]any{"status": part})
			}
			params.Statuses = append(params.Statuses, status)
		}
	}

	params.NumberPrefix = strings.TrimPrefix(
		strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("number"))), "US")

	licenseeID, err := validators.ParseQueryUUID(r, "licensee")
	if err != nil {
		return params, err
	}
	params.LicenseeID = licenseeID

	if raw := strings.TrimSpace(r.URL.Query().Get("void")); raw != "" {
		voidOnly, err := strconv.ParseBool(raw)
		if err != nil {
			return params, pkgerrors.New(pkgerrors.CodeValidation, "void must be a boolean").
				WithDetails(map[string]any{"void": raw})
		}
		params.VoidOnly = voidOnly
	}

	for key, dest := range map[string]**time.Time{
		"issued_from": &params.IssuedFrom,
		"issued_to":   &params.IssuedTo,
		"sold_from":   &params.SoldFrom,
		"sold_to":     &params.SoldTo,
	} {
		value, err := validators.ParseQueryDate(r, key)
		if err != nil {
			return params, err
		}
		*dest = value
	}

	limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
	if err != nil {
		return params, err
	}
	params.Limit = limit

	offset, err := validators.ParseQueryInt(r, "offset", 0, 0, 1<<30)
	if err != nil {
		return params, err
	}
	params.Offset = offset

	return params, nil
}

// CertificateSearch lists certificates visible to the caller.
func CertificateSearch(svc certificates.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "certificate service unavailable"))
			return
		}
		user := middleware.UserFromContext(r.Context())

		params, err := searchParamsFromQuery(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Search(r.Context(), *user, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		items := make([]certificateView, len(result.Items))
		for i := range result.Items {
			items[i] = certificateToView(&result.Items[i])
		}
		responses.WriteSuccess(w, map[string]any{
			"items":  items,
			"total":  result.Total,
			"limit":  result.Limit,
			"offset": result.Offset,
		})
	}
}

// CertificateGet returns one certificate by number.
func CertificateGet(svc certificates.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "certificate service unavailable"))
			return
		}
		user := middleware.UserFromContext(r.Context())

		number, err := validators.ParsePathNumber(chi.URLParam(r, "number"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		cert, err := svc.Get(r.Context(), *user, number)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, certificateToView(cert))
	}
}

type issueRequest struct {
	AES              string `json:"aes" validate:"required"`
	CountryOfOrigin  string `json:"country_of_origin" validate:"required"`
	DateOfIssue      string `json:"date_of_issue" validate:"required"`
	DateOfExpiry     string `json:"date_of_expiry" validate:"required"`
	ShippedValue     string `json:"shipped_value" validate:"required"`
	Exporter         string `json:"exporter" validate:"required"`
	ExporterAddress  string `json:"exporter_address" validate:"required"`
	NumberOfParcels  int    `json:"number_of_parcels" validate:"required,gt=0"`
	Consignee        string `json:"consignee" validate:"required"`
	ConsigneeAddress string `json:"consignee_address" validate:"required"`
	CaratWeight      string `json:"carat_weight" validate:"required"`
	HarmonizedCodeID string `json:"harmonized_code_id" validate:"required,uuid"`
	PortOfExportID   string `json:"port_of_export_id" validate:"required,uuid"`
	Attested         bool   `json:"attested"`
}

func (body issueRequest) toInput() (certificates.IssueInput, error) {
	var problems []string

	dateOfIssue, err := time.Parse(dateLayout, body.DateOfIssue)
	if err != nil {
		problems = append(problems, "date_of_issue must be a YYYY-MM-DD date")
	}
	dateOfExpiry, err := time.Parse(dateLayout, body.DateOfExpiry)
	if err != nil {
		problems = append(problems, "date_of_expiry must be a YYYY-MM-DD date")
	}
	shippedValue, err := decimal.NewFromString(body.ShippedValue)
	if err != nil {
		problems = append(problems, "shipped_value must be a decimal amount")
	}
	caratWeight, err := decimal.NewFromString(body.CaratWeight)
	if err != nil {
		problems = append(problems, "carat_weight must be a decimal amount")
	}
	if len(problems) > 0 {
		return certificates.IssueInput{}, pkgerrors.New(pkgerrors.CodeValidation, "invalid certificate fields").WithDetails(problems)
	}

	// uuid tags already validated the format.
	hsCodeID := uuid.MustParse(body.HarmonizedCodeID)
	portID := uuid.MustParse(body.PortOfExportID)

	return certificates.IssueInput{
		AES:              strings.TrimSpace(body.AES),
		CountryOfOrigin:  strings.ToUpper(strings.TrimSpace(body.CountryOfOrigin)),
		DateOfIssue:      dateOfIssue,
		DateOfExpiry:     dateOfExpiry,
		ShippedValue:     shippedValue,
		Exporter:         strings.TrimSpace(body.Exporter),
		ExporterAddress:  strings.TrimSpace(body.ExporterAddress),
		NumberOfParcels:  body.NumberOfParcels,
		Consignee:        strings.TrimSpace(body.Consignee),
		ConsigneeAddress: strings.TrimSpace(body.ConsigneeAddress),
		CaratWeight:      caratWeight,
		HarmonizedCodeID: hsCodeID,
		PortOfExportID:   portID,
		Attested:         body.Attested,
	}, nil
}

// CertificateIssue completes an available certificate's physical fields.
func CertificateIssue(svc certificates.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "certificate service unavailable"))
			return
		}
		user := middleware.UserFromContext(r.Context())

		number, err := validators.ParsePathNumber(chi.URLParam(r, "number"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body issueRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input, err := body.toInput()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		cert, err := svc.Issue(r.Context(), *user, number, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, certificateToView(cert))
	}
}

type statusUpdateRequest struct {
	NextStatus string `json:"next_status" validate:"required"`
	Date       string `json:"date" validate:"required"`
}

// CertificateStatusUpdate advances a certificate one step along its lifecycle.
func CertificateStatusUpdate(svc certificates.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "certificate service unavailable"))
			return
		}
		user := middleware.UserFromContext(r.Context())

		number, err := validators.ParsePathNumber(chi.URLParam(r, "number"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body statusUpdateRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		nextStatus, err := enums.ParseCertificateStatus(body.NextStatus)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid next_status"))
			return
		}
		date, err := time.Parse(dateLayout, body.Date)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "date must be a YYYY-MM-DD date"))
			return
		}

		cert, err := svc.UpdateStatus(r.Context(), *user, number, certificates.StatusUpdateInput{
			NextStatus: nextStatus,
			Date:       date,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, certificateToView(cert))
	}
}

type voidRequest struct {
	ReasonID *string `json:"reason_id,omitempty" validate:"omitempty,uuid"`
	Notes    string  `json:"notes,omitempty"`
}

// CertificateVoid permanently voids a certificate.
func CertificateVoid(svc certificates.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "certificate service unavailable"))
			return
		}
		user := middleware.UserFromContext(r.Context())

		number, err := validators.ParsePathNumber(chi.URLParam(r, "number"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body voidRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := certificates.VoidInput{Notes: strings.TrimSpace(body.Notes)}
		if body.ReasonID != nil {
			id := uuid.MustParse(*body.ReasonID)
			input.ReasonID = &id
		}

		result, err := svc.Void(r.Context(), *user, number, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{
			"certificate":  certificateToView(result.Certificate),
			"already_void": result.AlreadyVoid,
		})
	}
}

// CertificateExport streams the filtered certificate list as CSV.
func CertificateExport(svc export.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "export service unavailable"))
			return
		}
		user := middleware.UserFromContext(r.Context())

		params, err := searchParamsFromQuery(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		fileName := fmt.Sprintf("certificates-%s.csv", time.Now().UTC().Format(dateLayout))
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", fileName))

		if err := svc.Export(r.Context(), *user, params, w); err != nil {
			// Headers may already be out; log instead of rewriting the response.
			if logg != nil {
				logg.Error(r.Context(), "certificate export failed", err)
			}
		}
	}
}

// CertificatePreview renders the certificate's fields as a printable PDF.
func CertificatePreview(certs certificates.Service, renderer preview.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if certs == nil || renderer == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "preview service unavailable"))
			return
		}
		user := middleware.UserFromContext(r.Context())

		number, err := validators.ParsePathNumber(chi.URLParam(r, "number"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		cert, err := certs.Get(r.Context(), *user, number)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := renderer.Render(r.Context(), cert)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{
			"file_name": result.FileName,
			"content":   result.Base64Content,
		})
	}
}

// CertificateNextNumber reports the next unregistered certificate number for
// the admin registration form.
func CertificateNextNumber(svc certificates.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "certificate service unavailable"))
			return
		}
		next, err := svc.NextAvailableNumber(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]int{"next_number": next})
	}
}
