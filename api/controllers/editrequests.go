package controllers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/certtrack-backend/api/middleware"
	"github.com/angelmondragon/certtrack-backend/api/responses"
	"github.com/angelmondragon/certtrack-backend/api/validators"
	"github.com/angelmondragon/certtrack-backend/internal/editrequests"
	"github.com/angelmondragon/certtrack-backend/pkg/db/models"
	"github.com/angelmondragon/certtrack-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/certtrack-backend/pkg/errors"
	"github.com/angelmondragon/certtrack-backend/pkg/logger"
)

type editRequestSubmission struct {
	AES              *string `json:"aes,omitempty"`
	CountryOfOrigin  *string `json:"country_of_origin,omitempty"`
	DateOfIssue      *string `json:"date_of_issue,omitempty"`
	DateOfExpiry     *string `json:"date_of_expiry,omitempty"`
	ShippedValue     *string `json:"shipped_value,omitempty"`
	Exporter         *string `json:"exporter,omitempty"`
	ExporterAddress  *string `json:"exporter_address,omitempty"`
	NumberOfParcels  *int    `json:"number_of_parcels,omitempty" validate:"omitempty,gt=0"`
	Consignee        *string `json:"consignee,omitempty"`
	ConsigneeAddress *string `json:"consignee_address,omitempty"`
	CaratWeight      *string `json:"carat_weight,omitempty"`
	HarmonizedCodeID *string `json:"harmonized_code_id,omitempty" validate:"omitempty,uuid"`
}

func (body editRequestSubmission) toInput() (editrequests.SubmitInput, error) {
	input := editrequests.SubmitInput{
		AES:              body.AES,
		CountryOfOrigin:  body.CountryOfOrigin,
		Exporter:         body.Exporter,
		ExporterAddress:  body.ExporterAddress,
		NumberOfParcels:  body.NumberOfParcels,
		Consignee:        body.Consignee,
		ConsigneeAddress: body.ConsigneeAddress,
	}

	var problems []string
	parseDate := func(field string, raw *string) *time.Time {
		if raw == nil {
			return nil
		}
		parsed, err := time.Parse(dateLayout, *raw)
		if err != nil {
			problems = append(problems, field+" must be a YYYY-MM-DD date")
			return nil
		}
		return &parsed
	}
	parseDecimal := func(field string, raw *string) *decimal.Decimal {
		if raw == nil {
			return nil
		}
		parsed, err := decimal.NewFromString(*raw)
		if err != nil {
			problems = append(problems, field+" must be a decimal amount")
			return nil
		}
		return &parsed
	}

	input.DateOfIssue = parseDate("date_of_issue", body.DateOfIssue)
	input.DateOfExpiry = parseDate("date_of_expiry", body.DateOfExpiry)
	input.ShippedValue = parseDecimal("shipped_value", body.ShippedValue)
	input.CaratWeight = parseDecimal("carat_weight", body.CaratWeight)
	if body.HarmonizedCodeID != nil {
		id := uuid.MustParse(*body.HarmonizedCodeID)
		input.HarmonizedCodeID = &id
	}

	if len(problems) > 0 {
		return editrequests.SubmitInput{}, pkgerrors.New(pkgerrors.CodeValidation, "invalid edit request fields").WithDetails(problems)
	}
	return input, nil
}

type editRequestView struct {
	ID            uuid.UUID  `json:"id"`
	Certificate   string     `json:"certificate,omitempty"`
	Status        string     `json:"status"`
	DateRequested time.Time  `json:"date_requested"`
	DateReviewed  *time.Time `json:"date_reviewed,omitempty"`
	RequestedBy   string     `json:"requested_by,omitempty"`

	AES              *string `json:"aes,omitempty"`
	CountryOfOrigin  *string `json:"country_of_origin,omitempty"`
	DateOfIssue      *string `json:"date_of_issue,omitempty"`
	DateOfExpiry     *string `json:"date_of_expiry,omitempty"`
	ShippedValue     *string `json:"shipped_value,omitempty"`
	Exporter         *string `json:"exporter,omitempty"`
	ExporterAddress  *string `json:"exporter_address,omitempty"`
	NumberOfParcels  *int    `json:"number_of_parcels,omitempty"`
	Consignee        *string `json:"consignee,omitempty"`
	ConsigneeAddress *string `json:"consignee_address,omitempty"`
	CaratWeight      *string `json:"carat_weight,omitempty"`
}

func editRequestToView(req *models.EditRequest) editRequestView {
	view := editRequestView{
		ID:               req.ID,
		Status:           req.Status.String(),
		DateRequested:    req.DateRequested,
		DateReviewed:     req.DateReviewed,
		AES:              req.AES,
		CountryOfOrigin:  req.CountryOfOrigin,
		Exporter:         req.Exporter,
		ExporterAddress:  req.ExporterAddress,
		NumberOfParcels:  req.NumberOfParcels,
		Consignee:        req.Consignee,
		ConsigneeAddress: req.ConsigneeAddr,
	}
	if req.Certificate != nil {
		view.Certificate = req.Certificate.DisplayName()
	}
	if req.Contact != nil {
		view.RequestedBy = req.Contact.DisplayName()
	}
	if req.DateOfIssue != nil {
		v := req.DateOfIssue.Format(dateLayout)
		view.DateOfIssue = &v
	}
	if req.DateOfExpiry != nil {
		v := req.DateOfExpiry.Format(dateLayout)
		view.DateOfExpiry = &v
	}
	if req.ShippedValue != nil {
		v := req.ShippedValue.StringFixed(2)
		view.ShippedValue = &v
	}
	if req.CaratWeight != nil {
		v := req.CaratWeight.StringFixed(2)
		view.CaratWeight = &v
	}
	return view
}

// EditRequestSubmit proposes changes to an issued certificate's fields.
func EditRequestSubmit(svc editrequests.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "edit request service unavailable"))
			return
		}
		user := middleware.UserFromContext(r.Context())

		number, err := validators.ParsePathNumber(chi.URLParam(r, "number"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body editRequestSubmission
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input, err := body.toInput()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Submit(r.Context(), *user, number, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if result.NoChange {
			responses.WriteSuccess(w, map[string]any{"no_change": true})
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, editRequestToView(result.Request))
	}
}

// EditRequestGet returns one edit request.
func EditRequestGet(svc editrequests.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "edit request service unavailable"))
			return
		}
		user := middleware.UserFromContext(r.Context())

		id, err := validators.ParsePathUUID(chi.URLParam(r, "id"), "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		req, err := svc.Get(r.Context(), *user, id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, editRequestToView(req))
	}
}

// EditRequestAsOf returns the certificate as it stood when the request was
// submitted, so a reviewer can judge the proposed diff against the right base.
func EditRequestAsOf(svc editrequests.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "edit request service unavailable"))
			return
		}
		user := middleware.UserFromContext(r.Context())

		id, err := validators.ParsePathUUID(chi.URLParam(r, "id"), "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		cert, err := svc.CertAsOfRequest(r.Context(), *user, id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, certificateToView(cert))
	}
}

type reviewRequest struct {
	Decision string `json:"decision" validate:"required,oneof=approved rejected"`
}

// EditRequestReview approves or rejects a pending edit request.
func EditRequestReview(svc editrequests.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "edit request service unavailable"))
			return
		}
		user := middleware.UserFromContext(r.Context())

		id, err := validators.ParsePathUUID(chi.URLParam(r, "id"), "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body reviewRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		decision, err := enums.ParseEditRequestStatus(body.Decision)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "decision must be approved or rejected"))
			return
		}

		req, err := svc.Review(r.Context(), *user, id, decision)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, editRequestToView(req))
	}
}
