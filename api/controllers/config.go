package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/certtrack-backend/api/responses"
	"github.com/angelmondragon/certtrack-backend/api/validators"
	"github.com/angelmondragon/certtrack-backend/internal/certconfig"
	"github.com/angelmondragon/certtrack-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/certtrack-backend/pkg/errors"
	"github.com/angelmondragon/certtrack-backend/pkg/logger"
)

type configView struct {
	DaysToExpiry int                        `json:"days_to_expiry"`
	Price        string                     `json:"price"`
	Countries    []certconfig.CountryOption `json:"countries"`
	EditRequests bool                       `json:"edit_requests"`
}

type lookupsView struct {
	HSCodes     []lookupItem `json:"hs_codes"`
	Ports       []lookupItem `json:"ports_of_export"`
	VoidReasons []lookupItem `json:"void_reasons"`
}

type lookupItem struct {
	ID    string `json:"id"`
	Value string `json:"value"`
}

func lookupsToView(lookups *certconfig.Lookups) lookupsView {
	view := lookupsView{
		HSCodes:     make([]lookupItem, len(lookups.HSCodes)),
		Ports:       make([]lookupItem, len(lookups.Ports)),
		VoidReasons: make([]lookupItem, len(lookups.VoidReasons)),
	}
	for i, row := range lookups.HSCodes {
		view.HSCodes[i] = lookupItem{ID: row.ID.String(), Value: row.Value}
	}
	for i, row := range lookups.Ports {
		view.Ports[i] = lookupItem{ID: row.ID.String(), Value: row.Name}
	}
	for i, row := range lookups.VoidReasons {
		view.VoidReasons[i] = lookupItem{ID: row.ID.String(), Value: row.Value}
	}
	return view
}

func configToView(row *models.CertificateConfig, options []certconfig.CountryOption) configView {
	return configView{
		DaysToExpiry: row.DaysToExpiry,
		Price:        row.Price.StringFixed(2),
		Countries:    options,
		EditRequests: row.EditRequests,
	}
}

// ConfigGet returns the certificate configuration plus the lookup tables
// needed by the issue and void forms.
func ConfigGet(svc certconfig.Service, lookups certconfig.LookupsService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil || lookups == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "config service unavailable"))
			return
		}

		row, err := svc.Get(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		options, err := svc.CountryOptions(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		tables, err := lookups.List(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]any{
			"config":  configToView(row, options),
			"lookups": lookupsToView(tables),
		})
	}
}

type configUpdateRequest struct {
	DaysToExpiry *int     `json:"days_to_expiry,omitempty" validate:"omitempty,gt=0"`
	Price        *string  `json:"price,omitempty"`
	KPCountries  []string `json:"kp_countries,omitempty"`
	EditRequests *bool    `json:"edit_requests,omitempty"`
}

// ConfigUpdate applies admin changes to the singleton configuration.
func ConfigUpdate(svc certconfig.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "config service unavailable"))
			return
		}

		var body configUpdateRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := certconfig.UpdateInput{
			DaysToExpiry: body.DaysToExpiry,
			KPCountries:  body.KPCountries,
			EditRequests: body.EditRequests,
		}
		if body.Price != nil {
			price, err := decimal.NewFromString(*body.Price)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "price must be a decimal amount"))
				return
			}
			input.Price = &price
		}

		row, err := svc.Update(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		options, err := svc.CountryOptions(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, configToView(row, options))
	}
}

type lookupCreateRequest struct {
	Value     string `json:"value" validate:"required"`
	SortOrder int    `json:"sort_order,omitempty"`
}

// LookupCreate adds a value to one of the lookup tables.
func LookupCreate(svc certconfig.LookupsService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "lookup service unavailable"))
			return
		}

		kind, err := certconfig.ParseLookupKind(chi.URLParam(r, "kind"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body lookupCreateRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		id, err := svc.Create(r.Context(), kind, certconfig.LookupInput{
			Value:     body.Value,
			SortOrder: body.SortOrder,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, map[string]string{"id": id.String()})
	}
}

// LookupDelete removes a value from one of the lookup tables.
func LookupDelete(svc certconfig.LookupsService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "lookup service unavailable"))
			return
		}

		kind, err := certconfig.ParseLookupKind(chi.URLParam(r, "kind"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		id, err := validators.ParsePathUUID(chi.URLParam(r, "id"), "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.Delete(r.Context(), kind, id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "deleted"})
	}
}
